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

// TupleSimplifier forwards values through tuple/get-tuple-element pairs:
//
//	get-tuple-element(tuple(a0, ..., an), i)                        => ai
//	tuple(get-tuple-element(x, 0), ..., get-tuple-element(x, n))    => x
type TupleSimplifier struct{}

func (TupleSimplifier) Name() string {
	return "tuple-simplifier"
}

func (self TupleSimplifier) Run(m *hlo.Module) (bool, error) {
	changed := false
	for _, c := range m.Computations() {
		for _, v := range c.MakeInstructionPostOrder() {
			if v.Parent() == nil {
				continue
			}

			/* find the forwarded value, if any */
			var nv *hlo.Instruction
			switch v.Opcode() {
			case hlo.OpGetTupleElement:
				nv = forwardElement(v)
			case hlo.OpTuple:
				nv = forwardTuple(v)
			}

			/* replace in place */
			if nv != nil {
				if err := c.ReplaceInstruction(v, nv); err != nil {
					return false, err
				}
				changed = true
			}
		}
	}
	return changed, nil
}

func forwardElement(v *hlo.Instruction) *hlo.Instruction {
	if t := v.Operand(0); t.Opcode() == hlo.OpTuple {
		return t.Operand(int(v.TupleIndex()))
	} else {
		return nil
	}
}

func forwardTuple(v *hlo.Instruction) *hlo.Instruction {
	if v.OperandCount() == 0 || v.Operand(0).Opcode() != hlo.OpGetTupleElement {
		return nil
	}

	/* every element must come from the same tuple, in order */
	src := v.Operand(0).Operand(0)
	for i, p := range v.Operands() {
		if p.Opcode() != hlo.OpGetTupleElement || p.Operand(0) != src || p.TupleIndex() != int64(i) {
			return nil
		}
	}

	/* and cover all of it */
	if !src.Shape().Equal(v.Shape()) {
		return nil
	}
	return src
}
