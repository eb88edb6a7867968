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

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/hloopt/internal/hlo"
)

func findWhile(m *hlo.Module) *hlo.Instruction {
	for _, v := range m.EntryComputation().Instructions() {
		if v.Opcode() == hlo.OpWhile {
			return v
		}
	}
	return nil
}

func loopArg() *hlo.Literal {
	return hlo.NewFloatLiteral(hlo.F32, []int64{4}, 1, 2, 3, 4)
}

func TestComputeWhileLoopTripCount(t *testing.T) {
	n := int64(gofakeit.Number(0, 100))
	got, ok := ComputeWhileLoopTripCount(findWhile(buildLoop(n)), 128)
	require.True(t, ok)
	require.Equal(t, n, got)

	/* beyond the evaluation budget */
	_, ok = ComputeWhileLoopTripCount(findWhile(buildLoop(200)), 128)
	require.False(t, ok)

	/* negative bounds never enter the loop */
	got, ok = ComputeWhileLoopTripCount(findWhile(buildLoop(-5)), 128)
	require.True(t, ok)
	require.Zero(t, got)
}

func TestComputeWhileLoopTripCount_ConstantCondition(t *testing.T) {
	for _, tc := range []struct {
		value bool
		known bool
	}{
		{false, true},
		{true, false},
	} {
		m := buildLoop(3)
		w := findWhile(m)
		cond := w.WhileCondition()
		k := cond.AddInstruction(hlo.NewConstant(hlo.ScalarPred(tc.value)))
		require.NoError(t, cond.SetRootInstruction(k, false))

		got, ok := ComputeWhileLoopTripCount(w, 128)
		require.Equal(t, tc.known, ok)
		require.Zero(t, got)
	}
}

func TestComputeWhileLoopTripCount_UnknownInduction(t *testing.T) {
	m := buildLoop(3)
	w := findWhile(m)

	/* the condition also reads the accumulator */
	cond := w.WhileCondition()
	p := cond.ParameterInstruction(0)
	acc := cond.AddInstruction(hlo.NewGetTupleElement(p, 2))
	lt := cond.AddInstruction(hlo.NewCompare(scalar(hlo.PRED), acc, cond.Root().Operand(1), hlo.CmpLT))
	and := cond.AddInstruction(hlo.NewBinary(scalar(hlo.PRED), hlo.OpAnd, cond.Root(), lt))
	require.NoError(t, cond.SetRootInstruction(and, false))

	_, ok := ComputeWhileLoopTripCount(w, 128)
	require.False(t, ok)
}

func TestWhileLoopSimplifier_ZeroTripCount(t *testing.T) {
	m := buildLoop(0)
	shape := m.EntryComputation().Root().Shape()

	changed, err := NewWhileLoopSimplifier(128).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireVerified(t, m)

	/* the loop is gone and so are its computations */
	require.Nil(t, findWhile(m))
	require.Equal(t, 1, m.ComputationCount())
	require.True(t, shape.Equal(m.EntryComputation().Root().Shape()))
	require.Zero(t, evaluate(t, m, loopArg()).Int(0))
}

func TestWhileLoopSimplifier_SingleTrip(t *testing.T) {
	m := buildLoop(1)
	expect := evaluate(t, m, loopArg())

	changed, err := NewWhileLoopSimplifier(128).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireVerified(t, m)

	/* one inlined copy of the body */
	require.Nil(t, findWhile(m))
	require.Equal(t, 1, m.ComputationCount())
	require.True(t, expect.Equal(evaluate(t, m, loopArg())))
}

func TestWhileLoopSimplifier_RemovesUnusedElements(t *testing.T) {
	m := buildLoop(10)
	expect := evaluate(t, m, loopArg())

	/* v is only carried around */
	changed, err := NewWhileLoopSimplifier(128).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireVerified(t, m)

	w := findWhile(m)
	require.NotNil(t, w)
	require.True(t, hlo.MakeTupleShape(scalar(hlo.S32), scalar(hlo.S32)).Equal(w.Shape()))

	/* reads are renumbered inside and outside the loop */
	require.EqualValues(t, 1, m.EntryComputation().Root().TupleIndex())
	for _, g := range w.WhileBody().ParameterInstruction(0).Users() {
		require.Less(t, g.TupleIndex(), int64(2))
	}
	root := w.WhileBody().Root()
	require.Equal(t, 2, root.OperandCount())
	require.Equal(t, int64(45), expect.Int(0))
	require.True(t, expect.Equal(evaluate(t, m, loopArg())))
	requireIdempotent(t, NewWhileLoopSimplifier(128), m)
}

func TestWhileLoopSimplifier_KeepsReadElements(t *testing.T) {
	m := buildLoop(10)

	/* the entry now reads v too */
	main := m.EntryComputation()
	w := findWhile(m)
	v := main.AddInstruction(hlo.NewGetTupleElement(w, 1))
	root := main.AddInstruction(hlo.NewTuple(main.Root(), v))
	require.NoError(t, main.SetRootInstruction(root, true))

	changed, err := NewWhileLoopSimplifier(128).Run(m)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 3, w.Shape().TupleCount())
}

// buildNestedLoop runs over (s32[] i, (f32[] x, s32[] y)) and returns the
// inner tuple.
func buildNestedLoop(limit int64) *hlo.Module {
	m := hlo.NewModule("nested", hlo.DefaultModuleConfig())
	inner := hlo.MakeTupleShape(scalar(hlo.F32), scalar(hlo.S32))
	state := hlo.MakeTupleShape(scalar(hlo.S32), inner)

	/* i < limit */
	cb := hlo.NewBuilder("cond")
	cp := cb.Parameter(0, state, "")
	cb.Compare(cb.GetTupleElement(cp, 0), cb.Constant(hlo.ScalarS32(limit)), hlo.CmpLT)
	cond := cb.Build(nil)

	/* (i + 1, (x, y + i)) */
	bb := hlo.NewBuilder("body")
	bp := bb.Parameter(0, state, "")
	i := bb.GetTupleElement(bp, 0)
	t := bb.GetTupleElement(bp, 1)
	y := bb.Binary(hlo.OpAdd, bb.GetTupleElement(t, 1), i)
	bb.Tuple(bb.Binary(hlo.OpAdd, i, bb.Constant(hlo.ScalarS32(1))), bb.Tuple(bb.GetTupleElement(t, 0), y))
	body := bb.Build(nil)

	/* entry */
	eb := hlo.NewBuilder("main")
	x := eb.Parameter(0, scalar(hlo.F32), "x")
	init := eb.Tuple(eb.Constant(hlo.ScalarS32(0)), eb.Tuple(x, eb.Constant(hlo.ScalarS32(7))))
	w := eb.Add(hlo.NewWhile(state, cond, body, init))
	eb.GetTupleElement(w, 1)
	m.AddEntryComputation(eb.Build(nil))
	m.AddEmbeddedComputation(cond)
	m.AddEmbeddedComputation(body)
	return m
}

func TestWhileLoopSimplifier_FlattensNestedState(t *testing.T) {
	m := buildNestedLoop(4)
	arg := hlo.ScalarF32(1.5)
	expect := evaluate(t, m, arg)
	shape := m.EntryComputation().Root().Shape()

	changed, err := NewWhileLoopSimplifier(128).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireVerified(t, m)

	/* flat loop, same result */
	w := findWhile(m)
	flat := hlo.MakeTupleShape(scalar(hlo.S32), scalar(hlo.F32), scalar(hlo.S32))
	require.True(t, flat.Equal(w.Shape()))
	require.True(t, shape.Equal(m.EntryComputation().Root().Shape()))
	require.True(t, expect.Equal(evaluate(t, m, arg)))
	requireIdempotent(t, NewWhileLoopSimplifier(128), m)

	/* the leftovers are for the tuple simplifier */
	p := Fix(NewPipeline("cleanup", defaultOptions(), new(TupleSimplifier), new(DCE)), 8)
	changed, err = p.Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireVerified(t, m)
	require.True(t, expect.Equal(evaluate(t, m, arg)))
}
