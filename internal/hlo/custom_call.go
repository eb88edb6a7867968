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

const (
	RotateRightTarget = "SPMDInternalOp_RotateRight"
)

// NewRotateRight creates a custom-call that rotates the operand along dim
// by amount elements. It has the shape of the operand and no side effects.
func NewRotateRight(operand *Instruction, dim int64, amount int64) *Instruction {
	return NewCustomCall(operand.shape, []*Instruction{operand}, RotateRightTarget, map[string]int64{
		"dimension": dim,
		"amount":    amount,
	})
}

// AsRotateRight returns the parameters of a rotate custom-call.
func AsRotateRight(v *Instruction) (dim int64, amount int64, ok bool) {
	if v.opcode != OpCustomCall || v.target != RotateRightTarget {
		return 0, 0, false
	}
	if dim, ok = v.attrs["dimension"]; !ok {
		return 0, 0, false
	}
	if amount, ok = v.attrs["amount"]; !ok {
		return 0, 0, false
	}
	return dim, amount, true
}
