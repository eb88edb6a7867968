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

// Expander is implemented by find-and-replace passes.
//
// InstructionMatchesPattern must not mutate anything. ExpandInstruction
// returns the replacement, which must have the shape of the original. The
// replacement may be an instruction already added to the computation, or a
// new one that is added on replacement.
type Expander interface {
	InstructionMatchesPattern(v *hlo.Instruction) bool
	ExpandInstruction(v *hlo.Instruction) (*hlo.Instruction, error)
}

// Validator is implemented by expanders that can reject a match before any
// match is expanded.
type Validator interface {
	ValidateInstruction(v *hlo.Instruction) error
}

// OpExpander adapts an Expander into a Pass.
type OpExpander struct {
	name string
	impl Expander
}

func NewOpExpander(name string, impl Expander) *OpExpander {
	return &OpExpander{
		name: name,
		impl: impl,
	}
}

func (self *OpExpander) Name() string {
	return self.name
}

func (self *OpExpander) Run(m *hlo.Module) (bool, error) {
	var matches []*hlo.Instruction

	/* Phase 1: collect every match over a stable snapshot */
	for _, c := range m.Computations() {
		hlo.PostOrder(c).ForEach(func(v *hlo.Instruction) {
			if self.impl.InstructionMatchesPattern(v) {
				matches = append(matches, v)
			}
		})
	}

	/* Phase 2: reject the whole run while the module is untouched */
	if vd, ok := self.impl.(Validator); ok {
		for _, v := range matches {
			if err := vd.ValidateInstruction(v); err != nil {
				return false, err
			}
		}
	}

	/* Phase 3: expand and rewire each match */
	var called []*hlo.Computation
	for _, v := range matches {
		c := v.Parent()
		nv, err := self.impl.ExpandInstruction(v)
		if err != nil {
			return false, err
		}
		called = append(called, v.CalledComputations()...)
		if err = c.ReplaceInstruction(v, nv); err != nil {
			return false, err
		}
	}

	/* Phase 4: computations only the replaced instructions called */
	for _, c := range called {
		if c.Parent() == m && len(m.CallersOf(c)) == 0 {
			if err := m.RemoveEmbeddedComputation(c); err != nil {
				return false, err
			}
		}
	}
	return len(matches) != 0, nil
}
