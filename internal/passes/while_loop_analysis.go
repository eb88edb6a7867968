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
	"github.com/cloudwego/hloopt/internal/eval"
	"github.com/cloudwego/hloopt/internal/hlo"
)

// ComputeWhileLoopTripCount returns how many times the body of w runs, when
// that can be proven by evaluating the condition at most max+1 times.
//
// The loop must either have a constant condition, or an integral induction
// variable: a state element initialized by a constant, stepped by a constant
// in the body, and the only part of the state the condition reads.
func ComputeWhileLoopTripCount(w *hlo.Instruction, max int) (int64, bool) {
	cond := w.WhileCondition()
	root := cond.Root()

	/* constant conditions need no induction variable */
	if root.Opcode() == hlo.OpConstant {
		if root.Literal().Bool(0) {
			return 0, false
		} else {
			return 0, true
		}
	}

	/* find the induction variable */
	idx, ok := conditionIndex(cond)
	if !ok {
		return 0, false
	}
	start, step, ok := inductionVariable(w, idx)
	if !ok {
		return 0, false
	}

	/* the rest of the state is never read, zeros will do */
	elem := w.Shape().Tuple[idx].Elem
	state := hlo.ZeroLiteral(w.Shape())
	ev := eval.New(eval.Options{MaxLoopIterations: max})

	/* step until the condition turns false */
	val := start
	for n := 0; n <= max; n++ {
		state.Elements[idx] = hlo.NewIntLiteral(elem, nil, val)
		ret, err := ev.Evaluate(cond, state)
		if err != nil {
			return 0, false
		}
		if !ret.Bool(0) {
			return int64(n), true
		}
		val = hlo.WrapToType(val+step, elem)
	}
	return 0, false
}

// conditionIndex returns the only state element the condition reads.
func conditionIndex(cond *hlo.Computation) (int, bool) {
	p := cond.ParameterInstruction(0)
	if p.IsRoot() || p.UserCount() == 0 || !p.Shape().IsTuple() {
		return 0, false
	}

	/* every read must go through the same get-tuple-element index */
	idx := int64(-1)
	for _, u := range p.Users() {
		if u.Opcode() != hlo.OpGetTupleElement {
			return 0, false
		}
		if idx >= 0 && u.TupleIndex() != idx {
			return 0, false
		}
		idx = u.TupleIndex()
	}
	return int(idx), true
}

// inductionVariable returns the initial value and the step of state element
// idx, if it is (init: constant, body: element + constant).
func inductionVariable(w *hlo.Instruction, idx int) (int64, int64, bool) {
	shape := w.Shape().Tuple[idx]
	if !shape.IsScalar() || !shape.Elem.IsIntegral() {
		return 0, 0, false
	}

	/* the initial value */
	init := w.WhileInit()
	if init.Opcode() != hlo.OpTuple {
		return 0, 0, false
	}
	start, ok := init.Operand(idx).IsConstantScalar()
	if !ok {
		return 0, 0, false
	}

	/* the update in the body */
	body := w.WhileBody()
	root := body.Root()
	if root.Opcode() != hlo.OpTuple {
		return 0, 0, false
	}
	add := root.Operand(idx)
	if add.Opcode() != hlo.OpAdd {
		return 0, 0, false
	}

	/* either operand order */
	param := body.ParameterInstruction(0)
	for i := 0; i < 2; i++ {
		lhs, rhs := add.Operand(i), add.Operand(1-i)
		if lhs.Opcode() != hlo.OpGetTupleElement || lhs.Operand(0) != param || lhs.TupleIndex() != int64(idx) {
			continue
		}
		if step, ok := rhs.IsConstantScalar(); ok {
			return start, step, true
		}
	}
	return 0, 0, false
}
