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
)

// SortSimplifier drops the operands of multi-operand sorts whose outputs are
// never read, unless the comparator looks at them.
type SortSimplifier struct{}

func (SortSimplifier) Name() string {
	return "simplify-sorts"
}

func (self SortSimplifier) Run(m *hlo.Module) (bool, error) {
	var sorts []*hlo.Instruction
	for _, c := range m.Computations() {
		hlo.PostOrder(c).ForEach(func(v *hlo.Instruction) {
			if v.Opcode() == hlo.OpSort && v.Shape().IsTuple() {
				sorts = append(sorts, v)
			}
		})
	}

	/* rewrite every sort with removable outputs */
	changed := false
	for _, v := range sorts {
		ok, err := self.simplify(m, v)
		if err != nil {
			return false, err
		}
		changed = changed || ok
	}
	return changed, nil
}

// unusedOutputs returns the output positions nobody reads, or nil when the
// sort cannot be simplified.
func unusedOutputs(v *hlo.Instruction) []bool {
	if v.IsRoot() {
		return nil
	}

	/* only get-tuple-element users tell us which outputs are read */
	used := make([]bool, v.OperandCount())
	for _, u := range v.Users() {
		if u.Opcode() != hlo.OpGetTupleElement {
			return nil
		}
		used[u.TupleIndex()] = true
	}

	/* the comparator may still look at the values of an unused output */
	cmp := v.Comparator()
	ret := make([]bool, len(used))
	count := 0
	for i, ok := range used {
		if ok {
			continue
		}
		for _, p := range []*hlo.Instruction{cmp.ParameterInstruction(2 * i), cmp.ParameterInstruction(2*i + 1)} {
			if p.UserCount() != 0 || p.IsRoot() {
				return nil
			}
		}
		ret[i] = true
		count++
	}

	/* keep at least one operand, the rest is for dead code elimination */
	if count == 0 || count == len(used) {
		return nil
	}
	return ret
}

func (SortSimplifier) simplify(m *hlo.Module, v *hlo.Instruction) (bool, error) {
	drop := unusedOutputs(v)
	if drop == nil {
		return false, nil
	}

	/* the new operand list, and where every kept output moves to */
	c := v.Parent()
	old := v.Comparator()
	remap := make([]int64, len(drop))
	var ops []*hlo.Instruction
	for i, p := range v.Operands() {
		if drop[i] {
			remap[i] = -1
		} else {
			remap[i] = int64(len(ops))
			ops = append(ops, p)
		}
	}

	/* re-parameterize a copy of the comparator */
	cmp := old.Clone("simplified")
	for i := len(drop) - 1; i >= 0; i-- {
		if !drop[i] {
			continue
		}
		if err := cmp.RemoveParameter(2*i + 1); err != nil {
			return false, err
		}
		if err := cmp.RemoveParameter(2 * i); err != nil {
			return false, err
		}
	}

	/* the reduced sort */
	m.AddEmbeddedComputation(cmp)
	ns := c.AddInstruction(hlo.NewSort(sortShape(ops), v.Dimension(), ops, cmp, v.IsStable()))

	/* reroute every reader to the new position */
	for _, u := range v.Users() {
		var nv *hlo.Instruction
		if len(ops) == 1 {
			nv = ns
		} else {
			nv = hlo.NewGetTupleElement(ns, remap[u.TupleIndex()])
		}
		if err := c.ReplaceInstruction(u, nv); err != nil {
			return false, err
		}
	}

	/* the old sort is dead by now */
	if v.Parent() != nil && v.UserCount() == 0 {
		if err := c.RemoveInstructionAndUnusedOperands(v); err != nil {
			return false, err
		}
	}
	if len(m.CallersOf(old)) == 0 {
		if err := m.RemoveEmbeddedComputation(old); err != nil {
			return false, err
		}
	}
	return true, nil
}
