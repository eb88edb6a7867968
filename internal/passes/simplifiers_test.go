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

	"github.com/cloudwego/hloopt/internal/hlo"
)

func TestConditionalCanonicalizer(t *testing.T) {
	for _, shared := range []bool{false, true} {
		m := buildConditional(shared)
		pred, x := hlo.ScalarPred(false), hlo.ScalarS32(5)
		expect := evaluate(t, m, pred, x)

		changed, err := NewConditionalCanonicalizer().Run(m)
		require.NoError(t, err)
		require.True(t, changed)
		requireVerified(t, m)

		/* every branch returns a 1-tuple, read back through element 0 */
		root := m.EntryComputation().Root()
		g := root.Operand(0)
		require.Equal(t, hlo.OpGetTupleElement, g.Opcode())
		require.EqualValues(t, 0, g.TupleIndex())
		v := g.Operand(0)
		require.True(t, hlo.MakeTupleShape(scalar(hlo.S32)).Equal(v.Shape()))
		require.NotSame(t, v.BranchComputation(0), v.BranchComputation(1))
		for i := 0; i < v.BranchCount(); i++ {
			require.Equal(t, hlo.OpTuple, v.BranchComputation(i).Root().Opcode())
		}
		require.True(t, expect.Equal(evaluate(t, m, pred, x)))
		requireIdempotent(t, NewConditionalCanonicalizer(), m)
	}
}

func TestConditionalCanonicalizer_Root(t *testing.T) {
	m := buildConditional(false)
	main := m.EntryComputation()
	cond := main.Root().Operand(0)
	require.NoError(t, main.SetRootInstruction(cond, false))

	changed, err := NewConditionalCanonicalizer().Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireVerified(t, m)

	/* the computation still returns a bare scalar */
	require.True(t, scalar(hlo.S32).Equal(main.Root().Shape()))
	require.Equal(t, hlo.OpGetTupleElement, main.Root().Opcode())
}

// buildConversions returns x converted through the element types, in order.
func buildConversions(elems ...hlo.PrimitiveType) (*hlo.Module, *hlo.Builder, *hlo.Instruction) {
	m := hlo.NewModule("convert", hlo.DefaultModuleConfig())
	b := hlo.NewBuilder("main")
	v := b.Parameter(0, vector(hlo.F32, 2), "x")
	for _, elem := range elems {
		v = b.Convert(v, elem)
	}
	return m, b, v
}

func TestFpConversionSimplifier_FoldsChains(t *testing.T) {
	m, b, _ := buildConversions(hlo.BF16, hlo.F32, hlo.F16)
	m.AddEntryComputation(b.Build(nil))

	changed, err := new(FpConversionSimplifier).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireVerified(t, m)

	/* a single f32 -> f16 conversion is left */
	root := m.EntryComputation().Root()
	require.Equal(t, hlo.OpConvert, root.Opcode())
	require.Equal(t, hlo.OpParameter, root.Operand(0).Opcode())
	require.Equal(t, hlo.F16, root.Shape().Elem)
	require.Equal(t, 1, count(m, hlo.OpConvert))
	requireIdempotent(t, new(FpConversionSimplifier), m)
}

func TestFpConversionSimplifier_RoundTripIsIdentity(t *testing.T) {
	m, b, _ := buildConversions(hlo.BF16, hlo.F32)
	m.AddEntryComputation(b.Build(nil))

	changed, err := new(FpConversionSimplifier).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireVerified(t, m)

	/* the bf16 rounding is gone on purpose */
	require.Equal(t, hlo.OpParameter, m.EntryComputation().Root().Opcode())
	arg := hlo.NewFloatLiteral(hlo.F32, []int64{2}, 1.00390625, 3)
	require.Equal(t, arg.Floats, evaluate(t, m, arg).Floats)
}

func TestFpConversionSimplifier_StopsAtSharedValues(t *testing.T) {
	m, b, f16 := buildConversions(hlo.BF16, hlo.F32, hlo.F16)
	f32 := f16.Operand(0)
	neg := b.Add(hlo.NewUnary(f32.Shape(), hlo.OpNegate, f32))
	b.Tuple(f16, neg)
	m.AddEntryComputation(b.Build(nil))

	changed, err := new(FpConversionSimplifier).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireVerified(t, m)

	/* f32 <- bf16 <- x folds into x, the f16 conversion stays on top */
	root := m.EntryComputation().Root()
	require.Equal(t, hlo.OpParameter, root.Operand(1).Operand(0).Opcode())
	require.Equal(t, hlo.OpConvert, root.Operand(0).Opcode())
	require.Equal(t, hlo.OpParameter, root.Operand(0).Operand(0).Opcode())
	require.Equal(t, 1, count(m, hlo.OpConvert))
}

func TestFpConversionSimplifier_IgnoresIntegers(t *testing.T) {
	m, b, _ := buildConversions(hlo.S32, hlo.F32)
	m.AddEntryComputation(b.Build(nil))

	changed, err := new(FpConversionSimplifier).Run(m)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 2, count(m, hlo.OpConvert))
}

func TestDCE(t *testing.T) {
	m := buildConditional(false)
	main := m.EntryComputation()
	x := main.ParameterInstruction(1)

	/* a dead chain, and a dead instruction with side effects */
	dead := main.AddInstruction(hlo.NewUnary(x.Shape(), hlo.OpNegate, x))
	main.AddInstruction(hlo.NewUnary(x.Shape(), hlo.OpNot, dead))
	log := main.AddInstruction(hlo.NewCustomCall(hlo.MakeTupleShape(), []*hlo.Instruction{x}, "log", nil))
	log.SetSideEffect(true)

	/* and an orphan computation */
	ob := hlo.NewBuilder("orphan")
	ob.Parameter(0, scalar(hlo.S32), "")
	m.AddEmbeddedComputation(ob.Build(nil))

	n := main.InstructionCount()
	changed, err := new(DCE).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireVerified(t, m)
	require.Equal(t, n-2, main.InstructionCount())
	require.Same(t, main, log.Parent())
	require.Equal(t, 3, m.ComputationCount())
	requireIdempotent(t, new(DCE), m)
}

func TestTupleSimplifier(t *testing.T) {
	m := hlo.NewModule("tuples", hlo.DefaultModuleConfig())
	b := hlo.NewBuilder("main")
	x := b.Parameter(0, scalar(hlo.S32), "x")
	y := b.Parameter(1, vector(hlo.F32, 2), "y")
	p := b.Parameter(2, hlo.MakeTupleShape(scalar(hlo.S32), scalar(hlo.S32)), "p")

	/* gte(tuple(x, y), 1) and tuple(gte(p, 0), gte(p, 1)) */
	t0 := b.Tuple(x, y)
	g := b.GetTupleElement(t0, 1)
	re := b.Tuple(b.GetTupleElement(p, 0), b.GetTupleElement(p, 1))
	b.Tuple(g, re)
	m.AddEntryComputation(b.Build(nil))

	changed, err := new(TupleSimplifier).Run(m)
	require.NoError(t, err)
	require.True(t, changed)
	requireVerified(t, m)

	root := m.EntryComputation().Root()
	require.Same(t, y, root.Operand(0))
	require.Same(t, p, root.Operand(1))
	require.Equal(t, 4, m.EntryComputation().InstructionCount())
	requireIdempotent(t, new(TupleSimplifier), m)
}
