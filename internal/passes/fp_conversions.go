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
	"github.com/oleiade/lane"

	"github.com/cloudwego/hloopt/internal/hlo"
)

// FpConversionSimplifier folds chains of floating-point conversions into a
// single conversion from the first input to the last output type.
//
// Intermediate rounding is dropped, so f32 -> bf16 -> f32 becomes the
// identity. This changes results on purpose. A conversion whose value is also
// read elsewhere ends the chain below it.
type FpConversionSimplifier struct{}

func (FpConversionSimplifier) Name() string {
	return "simplify-fp-conversions"
}

func isFpConvert(v *hlo.Instruction) bool {
	return v.Opcode() == hlo.OpConvert &&
		v.Shape().Elem.IsFloat() &&
		v.Operand(0).Shape().Elem.IsFloat()
}

// isChainEnd reports whether v is the last conversion of a chain, that is
// its value is not just forwarded to another conversion.
func isChainEnd(v *hlo.Instruction) bool {
	if !isFpConvert(v) {
		return false
	}
	users := v.Users()
	return v.IsRoot() || len(users) != 1 || !isFpConvert(users[0])
}

func (self FpConversionSimplifier) Run(m *hlo.Module) (bool, error) {
	q := lane.NewQueue()
	for _, c := range m.Computations() {
		hlo.PostOrder(c).ForEach(func(v *hlo.Instruction) {
			if isChainEnd(v) {
				q.Enqueue(v)
			}
		})
	}

	/* fold every chain */
	changed := false
	for !q.Empty() {
		ok, err := self.fold(q.Dequeue().(*hlo.Instruction))
		if err != nil {
			return false, err
		}
		changed = changed || ok
	}
	return changed, nil
}

func (FpConversionSimplifier) fold(v *hlo.Instruction) (bool, error) {
	if v.Parent() == nil {
		return false, nil
	}

	n := 1
	src := v.Operand(0)

	/* walk back over single-use conversions */
	for isFpConvert(src) && src.UserCount() == 1 && !src.IsRoot() {
		src = src.Operand(0)
		n++
	}
	if n < 2 {
		return false, nil
	}

	/* the chain input itself when no conversion is left */
	c := v.Parent()
	if src.Shape().Elem == v.Shape().Elem {
		return true, c.ReplaceInstruction(v, src)
	} else {
		return true, c.ReplaceInstruction(v, hlo.NewConvert(v.Shape(), src))
	}
}
