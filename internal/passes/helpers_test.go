/*
 * Copyright 2021 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package passes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/hloopt/internal/eval"
	"github.com/cloudwego/hloopt/internal/hlo"
	"github.com/cloudwego/hloopt/internal/opts"
)

func scalar(elem hlo.PrimitiveType) hlo.Shape {
	return hlo.MakeScalarShape(elem)
}

func vector(elem hlo.PrimitiveType, n int64) hlo.Shape {
	return hlo.MakeShape(elem, n)
}

// comparator builds a sort comparator over the element types, returning
// the result of fn on the parameters.
func comparator(name string, fn func(b *hlo.Builder, ps []*hlo.Instruction) *hlo.Instruction, elems ...hlo.PrimitiveType) *hlo.Computation {
	b := hlo.NewBuilder(name)
	ps := make([]*hlo.Instruction, 0, 2*len(elems))
	for i, elem := range elems {
		ps = append(ps, b.Parameter(int64(2*i), scalar(elem), ""))
		ps = append(ps, b.Parameter(int64(2*i+1), scalar(elem), ""))
	}
	return b.Build(fn(b, ps))
}

// lessOn compares operand k of the sort.
func lessOn(k int) func(b *hlo.Builder, ps []*hlo.Instruction) *hlo.Instruction {
	return func(b *hlo.Builder, ps []*hlo.Instruction) *hlo.Instruction {
		return b.Compare(ps[2*k], ps[2*k+1], hlo.CmpLT)
	}
}

// buildLoop builds a while loop over (s32[] i, f32[4] v, s32[] acc) that
// runs while i < limit, adds one to i and i to acc, and keeps v as is. The
// entry returns acc.
func buildLoop(limit int64) *hlo.Module {
	m := hlo.NewModule("loop", hlo.DefaultModuleConfig())
	state := hlo.MakeTupleShape(scalar(hlo.S32), vector(hlo.F32, 4), scalar(hlo.S32))

	/* i < limit */
	cb := hlo.NewBuilder("cond")
	cp := cb.Parameter(0, state, "")
	cb.Compare(cb.GetTupleElement(cp, 0), cb.Constant(hlo.ScalarS32(limit)), hlo.CmpLT)
	cond := cb.Build(nil)

	/* (i + 1, v, acc + i) */
	bb := hlo.NewBuilder("body")
	bp := bb.Parameter(0, state, "")
	i := bb.GetTupleElement(bp, 0)
	v := bb.GetTupleElement(bp, 1)
	acc := bb.GetTupleElement(bp, 2)
	bb.Tuple(bb.Binary(hlo.OpAdd, i, bb.Constant(hlo.ScalarS32(1))), v, bb.Binary(hlo.OpAdd, acc, i))
	body := bb.Build(nil)

	/* entry */
	eb := hlo.NewBuilder("main")
	x := eb.Parameter(0, vector(hlo.F32, 4), "x")
	init := eb.Tuple(eb.Constant(hlo.ScalarS32(0)), x, eb.Constant(hlo.ScalarS32(0)))
	w := eb.Add(hlo.NewWhile(state, cond, body, init))
	eb.GetTupleElement(w, 2)
	m.AddEntryComputation(eb.Build(nil))
	m.AddEmbeddedComputation(cond)
	m.AddEmbeddedComputation(body)
	return m
}

// buildSortModule sorts (keys, values) with a comparator on the keys.
func buildSortModule(stable bool) *hlo.Module {
	m := hlo.NewModule("sort", hlo.DefaultModuleConfig())
	cmp := comparator("less", lessOn(0), hlo.S32, hlo.S32)
	b := hlo.NewBuilder("main")
	keys := b.Parameter(0, vector(hlo.S32, 3), "keys")
	vals := b.Parameter(1, vector(hlo.S32, 3), "vals")
	shape := hlo.MakeTupleShape(keys.Shape(), vals.Shape())
	b.Add(hlo.NewSort(shape, 0, []*hlo.Instruction{keys, vals}, cmp, stable))
	m.AddEntryComputation(b.Build(nil))
	m.AddEmbeddedComputation(cmp)
	return m
}

// buildConditional returns negate(conditional(p, x)) where both branches
// compute a bare scalar.
func buildConditional(shared bool) *hlo.Module {
	m := hlo.NewModule("cond", hlo.DefaultModuleConfig())
	branch := func(name string, op hlo.Opcode) *hlo.Computation {
		b := hlo.NewBuilder(name)
		p := b.Parameter(0, scalar(hlo.S32), "")
		b.Add(hlo.NewUnary(p.Shape(), op, p))
		return b.Build(nil)
	}

	/* the two branches, or one called twice */
	br0 := branch("on_true", hlo.OpNegate)
	br1 := br0
	if !shared {
		br1 = branch("on_false", hlo.OpNot)
	}

	/* entry */
	b := hlo.NewBuilder("main")
	pred := b.Parameter(0, scalar(hlo.PRED), "pred")
	x := b.Parameter(1, scalar(hlo.S32), "x")
	r := b.Add(hlo.NewConditional(scalar(hlo.S32), pred, []*hlo.Computation{br0, br1}, []*hlo.Instruction{x, x}))
	b.Add(hlo.NewUnary(r.Shape(), hlo.OpNegate, r))
	m.AddEntryComputation(b.Build(nil))
	m.AddEmbeddedComputation(br0)
	if !shared {
		m.AddEmbeddedComputation(br1)
	}
	return m
}

func defaultOptions() opts.Options {
	o := opts.GetDefaultOptions()
	o.Verify = true
	return o
}

func requireVerified(t *testing.T, m *hlo.Module) {
	if err := hlo.Verify(m, hlo.VerifyOptions{}); err != nil {
		t.Log(m.String())
		require.NoError(t, err)
	}
}

func evaluate(t *testing.T, m *hlo.Module, args ...*hlo.Literal) *hlo.Literal {
	ret, err := eval.New(eval.Options{MaxLoopIterations: 1 << 16}).Evaluate(m.EntryComputation(), args...)
	require.NoError(t, err)
	return ret
}

func count(m *hlo.Module, op hlo.Opcode) int {
	n := 0
	for _, c := range m.Computations() {
		for _, v := range c.Instructions() {
			if v.Opcode() == op {
				n++
			}
		}
	}
	return n
}

// requireIdempotent runs p again and checks that nothing changes.
func requireIdempotent(t *testing.T, p Pass, m *hlo.Module) {
	before := m.String()
	changed, err := p.Run(m)
	require.NoError(t, err)
	require.False(t, changed, "%s changed the module again", p.Name())
	require.Equal(t, before, m.String())
}
