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
	"github.com/cloudwego/hloopt/internal/hlo"
	"github.com/cloudwego/hloopt/internal/status"
)

// StableSortExpander rewrites stable sorts into unstable ones that break
// ties with the original position of the elements.
//
// The position comes from an iota operand along the sort dimension. An
// existing one is reused, otherwise an s32 iota is appended and stripped from
// the result again. The comparator becomes
//
//	select(cmp(a, b) == cmp(b, a), index(a) < index(b), cmp(a, b))
//
// so elements the original comparator cannot order keep their input order.
type StableSortExpander struct{}

func NewStableSortExpander() *OpExpander {
	return NewOpExpander("stable-sort-expander", StableSortExpander{})
}

func (StableSortExpander) InstructionMatchesPattern(v *hlo.Instruction) bool {
	return v.Opcode() == hlo.OpSort && v.IsStable()
}

// ValidateInstruction requires a plain pairwise comparator.
func (StableSortExpander) ValidateInstruction(v *hlo.Instruction) error {
	if cmp := v.Comparator(); cmp.NumParameters() != 2*v.OperandCount() {
		return status.Invariant("StableSortExpander", v.Name(),
			"comparator %s takes %d parameters for %d operands", cmp.Name(), cmp.NumParameters(), v.OperandCount())
	}
	return nil
}

func (self StableSortExpander) ExpandInstruction(v *hlo.Instruction) (*hlo.Instruction, error) {
	if err := self.ValidateInstruction(v); err != nil {
		return nil, err
	}

	/* the sort and its comparator */
	c := v.Parent()
	m := c.Parent()
	dim := v.Dimension()
	ops := v.Operands()
	old := v.Comparator()

	/* reuse an iota along the sort dimension if there is one */
	pos := findIota(ops, dim)
	nops := ops
	if pos < 0 {
		pos = len(ops)
		index := c.AddInstruction(hlo.NewIota(hlo.MakeShape(hlo.S32, ops[0].Shape().Dims...), dim))
		nops = append(nops, index)
	}

	/* clone the comparator, and extend it with the index pair if needed */
	cmp := old.Clone("stable")
	if pos == len(ops) {
		cmp.AddInstruction(hlo.NewParameter(int64(2*pos), hlo.MakeScalarShape(hlo.S32), ""))
		cmp.AddInstruction(hlo.NewParameter(int64(2*pos+1), hlo.MakeScalarShape(hlo.S32), ""))
	}

	/* the original comparator with every pair swapped */
	args := make([]*hlo.Instruction, old.NumParameters())
	for i := range args {
		args[i] = cmp.ParameterInstruction(i ^ 1)
	}
	swapped, err := old.CloneInto(cmp, args)
	if err != nil {
		return nil, err
	}

	/* fall back to the index when both orders agree */
	pred := hlo.MakeScalarShape(hlo.PRED)
	lhs := cmp.Root()
	tie := cmp.AddInstruction(hlo.NewCompare(pred, lhs, swapped, hlo.CmpEQ))
	idx := cmp.AddInstruction(hlo.NewCompare(pred, cmp.ParameterInstruction(2*pos), cmp.ParameterInstruction(2*pos+1), hlo.CmpLT))
	sel := cmp.AddInstruction(hlo.NewSelect(pred, tie, idx, lhs))
	if err = cmp.SetRootInstruction(sel, false); err != nil {
		return nil, err
	}

	/* build the unstable sort */
	m.AddEmbeddedComputation(cmp)
	ns := c.AddInstruction(hlo.NewSort(sortShape(nops), dim, nops, cmp, false))
	if len(nops) == len(ops) {
		return ns, nil
	}

	/* strip the index column */
	if len(ops) == 1 {
		return c.AddInstruction(hlo.NewGetTupleElement(ns, 0)), nil
	}
	elems := make([]*hlo.Instruction, len(ops))
	for i := range elems {
		elems[i] = c.AddInstruction(hlo.NewGetTupleElement(ns, int64(i)))
	}
	return c.AddInstruction(hlo.NewTuple(elems...)), nil
}

func findIota(ops []*hlo.Instruction, dim int64) int {
	for i, p := range ops {
		if p.Opcode() == hlo.OpIota && p.Dimension() == dim && p.Shape().Elem.IsIntegral() {
			return i
		}
	}
	return -1
}

// sortShape is the result shape of a sort over ops.
func sortShape(ops []*hlo.Instruction) hlo.Shape {
	if len(ops) == 1 {
		return ops[0].Shape()
	}
	shapes := make([]hlo.Shape, len(ops))
	for i, p := range ops {
		shapes[i] = p.Shape()
	}
	return hlo.MakeTupleShape(shapes...)
}
