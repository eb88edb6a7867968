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

package hlo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func scalar(elem PrimitiveType) Shape {
	return MakeScalarShape(elem)
}

// buildChainModule builds main -> outer -> inner through call instructions.
func buildChainModule() *Module {
	m := NewModule("chain", DefaultModuleConfig())
	ib := NewBuilder("inner")
	a := ib.Parameter(0, scalar(F32), "a")
	ib.Add(NewUnary(a.Shape(), OpNegate, a))
	inner := ib.Build(nil)

	/* outer only forwards to inner */
	ob := NewBuilder("outer")
	b := ob.Parameter(0, scalar(F32), "b")
	ob.Add(NewCall(b.Shape(), []*Instruction{b}, inner))
	outer := ob.Build(nil)

	/* entry */
	eb := NewBuilder("main")
	x := eb.Parameter(0, scalar(F32), "x")
	one := eb.Constant(ScalarF32(1))
	sum := eb.Binary(OpAdd, x, one)
	eb.Add(NewCall(sum.Shape(), []*Instruction{sum}, outer))
	m.AddEntryComputation(eb.Build(nil))
	m.AddEmbeddedComputation(outer)
	m.AddEmbeddedComputation(inner)
	return m
}

func buildLessThan(name string, elem PrimitiveType) *Computation {
	b := NewBuilder(name)
	lhs := b.Parameter(0, scalar(elem), "lhs")
	rhs := b.Parameter(1, scalar(elem), "rhs")
	b.Compare(lhs, rhs, CmpLT)
	return b.Build(nil)
}

// buildSortModule sorts a rotated parameter.
func buildSortModule() *Module {
	m := NewModule("sort", DefaultModuleConfig())
	cmp := buildLessThan("less", F32)
	b := NewBuilder("main")
	keys := b.Parameter(0, MakeShape(F32, 4), "keys")
	rot := b.Add(NewRotateRight(keys, 0, 1))
	b.Add(NewSort(keys.Shape(), 0, []*Instruction{rot}, cmp, true))
	m.AddEntryComputation(b.Build(nil))
	m.AddEmbeddedComputation(cmp)
	return m
}

// buildCountingLoop builds a while loop over (s32[], f32[4]) that adds one
// to the counter until it reaches limit.
func buildCountingLoop(limit int64) *Module {
	m := NewModule("loop", DefaultModuleConfig())
	state := MakeTupleShape(scalar(S32), MakeShape(F32, 4))

	/* condition: i < limit */
	cb := NewBuilder("cond")
	cp := cb.Parameter(0, state, "cond_state")
	ci := cb.GetTupleElement(cp, 0)
	cb.Compare(ci, cb.Constant(ScalarS32(limit)), CmpLT)
	cond := cb.Build(nil)

	/* body: (i + 1, v) */
	bb := NewBuilder("body")
	bp := bb.Parameter(0, state, "body_state")
	bi := bb.GetTupleElement(bp, 0)
	bv := bb.GetTupleElement(bp, 1)
	inc := bb.Binary(OpAdd, bi, bb.Constant(ScalarS32(1)))
	bb.Tuple(inc, bv)
	body := bb.Build(nil)

	/* entry */
	eb := NewBuilder("main")
	v := eb.Parameter(0, MakeShape(F32, 4), "v")
	init := eb.Tuple(eb.Constant(ScalarS32(0)), v)
	w := eb.Add(NewWhile(state, cond, body, init))
	eb.GetTupleElement(w, 1)
	m.AddEntryComputation(eb.Build(nil))
	m.AddEmbeddedComputation(cond)
	m.AddEmbeddedComputation(body)
	return m
}

func requireVerified(t *testing.T, m *Module) {
	if err := Verify(m, VerifyOptions{}); err != nil {
		t.Log(m.String())
		require.NoError(t, err)
	}
}

func requireUsersConsistent(t *testing.T, c *Computation) {
	for _, v := range c.Instructions() {
		for _, p := range v.Operands() {
			require.Contains(t, p.Users(), v, "%s should be a user of %s", v.Name(), p.Name())
		}
		for _, u := range v.Users() {
			require.True(t, u.hasOperand(v), "stale user %s of %s", u.Name(), v.Name())
		}
	}
}
