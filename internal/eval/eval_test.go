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

package eval

import (
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/hloopt/internal/hlo"
	"github.com/cloudwego/hloopt/internal/status"
)

func scalar(elem hlo.PrimitiveType) hlo.Shape {
	return hlo.MakeScalarShape(elem)
}

func lessThan(name string, elems ...hlo.PrimitiveType) *hlo.Computation {
	b := hlo.NewBuilder(name)
	var ps []*hlo.Instruction
	for i, elem := range elems {
		ps = append(ps, b.Parameter(int64(2*i), scalar(elem), ""))
		ps = append(ps, b.Parameter(int64(2*i+1), scalar(elem), ""))
	}
	b.Compare(ps[0], ps[1], hlo.CmpLT)
	return b.Build(nil)
}

func countingLoop(limit int64) *hlo.Computation {
	state := hlo.MakeTupleShape(scalar(hlo.S32), scalar(hlo.S32))

	/* i < limit */
	cb := hlo.NewBuilder("cond")
	cp := cb.Parameter(0, state, "")
	cb.Compare(cb.GetTupleElement(cp, 0), cb.Constant(hlo.ScalarS32(limit)), hlo.CmpLT)
	cond := cb.Build(nil)

	/* (i + 1, acc + i) */
	bb := hlo.NewBuilder("body")
	bp := bb.Parameter(0, state, "")
	i := bb.GetTupleElement(bp, 0)
	acc := bb.GetTupleElement(bp, 1)
	bb.Tuple(bb.Binary(hlo.OpAdd, i, bb.Constant(hlo.ScalarS32(1))), bb.Binary(hlo.OpAdd, acc, i))
	body := bb.Build(nil)

	/* returns the sum of 0..limit-1 */
	eb := hlo.NewBuilder("main")
	init := eb.Tuple(eb.Constant(hlo.ScalarS32(0)), eb.Constant(hlo.ScalarS32(0)))
	w := eb.Add(hlo.NewWhile(state, cond, body, init))
	eb.GetTupleElement(w, 1)
	return eb.Build(nil)
}

func TestEvaluate_Arithmetic(t *testing.T) {
	b := hlo.NewBuilder("main")
	x := b.Parameter(0, hlo.MakeShape(hlo.S8, 3), "x")
	y := b.Parameter(1, hlo.MakeShape(hlo.S8, 3), "y")
	sum := b.Binary(hlo.OpAdd, x, y)
	b.Binary(hlo.OpMaximum, sum, b.Add(hlo.NewUnary(sum.Shape(), hlo.OpNegate, sum)))
	c := b.Build(nil)

	/* |x + y| with 8-bit wraparound */
	ret, err := Evaluate(c,
		hlo.NewIntLiteral(hlo.S8, []int64{3}, 100, -3, 1),
		hlo.NewIntLiteral(hlo.S8, []int64{3}, 100, -4, 1),
	)
	require.NoError(t, err)
	require.Equal(t, []int64{56, 7, 2}, ret.Ints)
}

func TestEvaluate_WhileLoop(t *testing.T) {
	n := int64(gofakeit.Number(0, 50))
	ret, err := Evaluate(countingLoop(n))
	require.NoError(t, err)
	require.Equal(t, n*(n-1)/2, ret.Int(0))

	/* bounded */
	_, err = New(Options{MaxLoopIterations: 10}).Evaluate(countingLoop(1000))
	require.True(t, status.IsInvariant(err), "%v", err)
}

func TestEvaluate_Conditional(t *testing.T) {
	branch := func(name string, op hlo.Opcode) *hlo.Computation {
		b := hlo.NewBuilder(name)
		p := b.Parameter(0, scalar(hlo.S32), "")
		b.Add(hlo.NewUnary(p.Shape(), op, p))
		return b.Build(nil)
	}

	/* selected by an s32 index */
	b := hlo.NewBuilder("main")
	idx := b.Parameter(0, scalar(hlo.S32), "idx")
	x := b.Parameter(1, scalar(hlo.S32), "x")
	branches := []*hlo.Computation{branch("neg", hlo.OpNegate), branch("not", hlo.OpNot)}
	b.Add(hlo.NewConditional(scalar(hlo.S32), idx, branches, []*hlo.Instruction{x, x}))
	c := b.Build(nil)

	for _, tc := range []struct {
		idx    int64
		expect int64
	}{
		{0, -5},
		{1, ^int64(5)},
		{7, ^int64(5)},
		{-1, ^int64(5)},
	} {
		ret, err := Evaluate(c, hlo.ScalarS32(tc.idx), hlo.ScalarS32(5))
		require.NoError(t, err)
		require.Equal(t, tc.expect, ret.Int(0), "index %d", tc.idx)
	}
}

func TestEvaluate_SortKeyValue(t *testing.T) {
	cmp := lessThan("less", hlo.S32, hlo.F32)
	b := hlo.NewBuilder("main")
	keys := b.Parameter(0, hlo.MakeShape(hlo.S32, 4), "keys")
	vals := b.Parameter(1, hlo.MakeShape(hlo.F32, 4), "vals")
	shape := hlo.MakeTupleShape(keys.Shape(), vals.Shape())
	b.Add(hlo.NewSort(shape, 0, []*hlo.Instruction{keys, vals}, cmp, false))
	c := b.Build(nil)

	ret, err := Evaluate(c,
		hlo.NewIntLiteral(hlo.S32, []int64{4}, 4, 1, 3, 2),
		hlo.NewFloatLiteral(hlo.F32, []int64{4}, 0.4, 0.1, 0.3, 0.2),
	)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4}, ret.Elements[0].Ints)
	require.Equal(t, hlo.NewFloatLiteral(hlo.F32, []int64{4}, 0.1, 0.2, 0.3, 0.4).Floats, ret.Elements[1].Floats)
}

func TestEvaluate_SortScramblesTies(t *testing.T) {
	cmp := lessThan("less", hlo.S32, hlo.S32)
	b := hlo.NewBuilder("main")
	keys := b.Parameter(0, hlo.MakeShape(hlo.S32, 8), "keys")
	pos := b.Add(hlo.NewIota(keys.Shape(), 0))
	shape := hlo.MakeTupleShape(keys.Shape(), keys.Shape())
	b.Add(hlo.NewSort(shape, 0, []*hlo.Instruction{keys, pos}, cmp, false))
	c := b.Build(nil)

	/* all keys are equal, so the positions are shuffled unless disabled */
	arg := hlo.ZeroLiteral(keys.Shape())
	ret, err := New(Options{}).Evaluate(c, arg)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7}, ret.Elements[1].Ints)

	/* shuffled positions are still a permutation */
	ret, err = Evaluate(c, arg)
	require.NoError(t, err)
	seen := map[int64]bool{}
	for _, v := range ret.Elements[1].Ints {
		seen[v] = true
	}
	require.Len(t, seen, 8)
}

func TestEvaluate_RotateRight(t *testing.T) {
	b := hlo.NewBuilder("main")
	x := b.Parameter(0, hlo.MakeShape(hlo.S32, 2, 4), "x")
	b.Add(hlo.NewRotateRight(x, 1, 5))
	c := b.Build(nil)

	ret, err := Evaluate(c, hlo.NewIntLiteral(hlo.S32, []int64{2, 4}, 1, 2, 3, 4, 5, 6, 7, 8))
	require.NoError(t, err)
	require.Equal(t, []int64{4, 1, 2, 3, 8, 5, 6, 7}, ret.Ints)
}

func TestEvaluate_ConvertRounding(t *testing.T) {
	b := hlo.NewBuilder("main")
	x := b.Parameter(0, scalar(hlo.F32), "x")
	b.Convert(b.Convert(x, hlo.BF16), hlo.F32)
	c := b.Build(nil)

	/* bf16 keeps 8 bits of mantissa */
	ret, err := Evaluate(c, hlo.ScalarF32(1.00390625))
	require.NoError(t, err)
	require.Equal(t, 1.0, ret.Float(0))
}

func TestEvaluate_Iota(t *testing.T) {
	b := hlo.NewBuilder("main")
	b.Add(hlo.NewIota(hlo.MakeShape(hlo.S32, 2, 3), 1))
	ret, err := Evaluate(b.Build(nil))
	require.NoError(t, err)
	require.Equal(t, []int64{0, 1, 2, 0, 1, 2}, ret.Ints)
}

func TestEvaluate_Arguments(t *testing.T) {
	b := hlo.NewBuilder("main")
	b.Parameter(0, scalar(hlo.S32), "x")
	c := b.Build(nil)

	_, err := Evaluate(c)
	require.True(t, status.IsInvalidArgument(err), "%v", err)
	_, err = Evaluate(c, hlo.ScalarF32(1))
	require.True(t, status.IsInvalidArgument(err), "%v", err)
}
