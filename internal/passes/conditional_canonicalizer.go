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

// ConditionalCanonicalizer makes every conditional return a tuple.
//
// Branches returning a bare value have their root wrapped in a 1-tuple, and
// the former direct users of the conditional read element 0 instead. Branches
// that are called from anywhere else are cloned first.
type ConditionalCanonicalizer struct{}

func NewConditionalCanonicalizer() ConditionalCanonicalizer {
	return ConditionalCanonicalizer{}
}

func (ConditionalCanonicalizer) Name() string {
	return "conditional-canonicalizer"
}

func (self ConditionalCanonicalizer) Run(m *hlo.Module) (bool, error) {
	var conds []*hlo.Instruction
	for _, c := range m.Computations() {
		hlo.PostOrder(c).ForEach(func(v *hlo.Instruction) {
			if v.Opcode() == hlo.OpConditional && !v.Shape().IsTuple() {
				conds = append(conds, v)
			}
		})
	}

	/* canonicalize one by one */
	for _, v := range conds {
		if err := self.canonicalize(m, v); err != nil {
			return false, err
		}
	}
	return len(conds) != 0, nil
}

func (ConditionalCanonicalizer) canonicalize(m *hlo.Module, v *hlo.Instruction) error {
	seen := make(map[*hlo.Computation]bool, v.BranchCount())

	/* Phase 1: make sure every branch is private to this conditional */
	for i := 0; i < v.BranchCount(); i++ {
		b := v.BranchComputation(i)
		if seen[b] || len(m.CallersOf(b)) > 1 {
			b = m.AddEmbeddedComputation(b.Clone("canonical"))
			v.SetCalledComputation(i, b)
		}
		seen[b] = true
	}

	/* Phase 2: wrap every branch result */
	for i := 0; i < v.BranchCount(); i++ {
		b := v.BranchComputation(i)
		t := b.AddInstruction(hlo.NewTuple(b.Root()))
		if err := b.SetRootInstruction(t, true); err != nil {
			return err
		}
	}

	/* Phase 3: fix the conditional and unwrap the result for its users */
	c := v.Parent()
	users := v.Users()
	v.SetShape(hlo.MakeTupleShape(v.Shape()))
	gte := c.AddInstruction(hlo.NewGetTupleElement(v, 0))
	c.ReplaceUsesWith(v, users, gte)
	return nil
}
