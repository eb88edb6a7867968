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

import (
	"github.com/cloudwego/hloopt/internal/status"
)

type VerifyOptions struct {
	// PostOptimizations allows element-wise ops to mix precisions.
	PostOptimizations bool
}

type _Verifier struct {
	m    *Module
	opts VerifyOptions
}

// Verify checks the structural invariants of a module and returns the first
// violation found.
func Verify(m *Module, opts VerifyOptions) error {
	return (&_Verifier{m: m, opts: opts}).run()
}

func fail(v *Instruction, format string, args ...interface{}) error {
	return status.Invariant("Verify", v.name, format, args...)
}

func (self *_Verifier) run() error {
	if self.m.entry == nil {
		return status.Invariant("Verify", "", "module %s has no entry computation", self.m.name)
	}

	/* the call graph must be a DAG */
	if _, err := self.m.MakeComputationPostOrder(); err != nil {
		return err
	}

	/* then every computation */
	for _, c := range self.m.comps {
		if err := self.computation(c); err != nil {
			return err
		}
	}
	return nil
}

func (self *_Verifier) computation(c *Computation) error {
	if c.root == nil || c.root.parent != c {
		return status.Invariant("Verify", "", "computation %s has no valid root", c.name)
	}

	/* parameters must be numbered densely */
	for i, p := range c.params {
		if p == nil {
			return status.Invariant("Verify", "", "computation %s is missing parameter %d", c.name, i)
		}
	}

	/* operands must be defined before their uses */
	pos := make(map[*Instruction]int, len(c.instrs))
	for i, v := range c.MakeInstructionPostOrder() {
		pos[v] = i
	}

	/* check every instruction */
	for _, v := range c.instrs {
		if v.parent != c {
			return fail(v, "parent is not %s", c.name)
		}
		if err := self.edges(c, v, pos); err != nil {
			return err
		}
		if err := self.instruction(v); err != nil {
			return err
		}
	}
	return nil
}

func (self *_Verifier) edges(c *Computation, v *Instruction, pos map[*Instruction]int) error {
	for i, p := range v.operands {
		if p.parent != c {
			return fail(v, "operand %d (%s) does not belong to %s", i, p.name, c.name)
		}
		if pos[p] >= pos[v] {
			return fail(v, "operand %d (%s) is not defined before its use", i, p.name)
		}
		if !containsInstr(p.users, v) {
			return fail(v, "missing from the users of operand %s", p.name)
		}
	}
	for _, u := range v.users {
		if u.parent != c || !u.hasOperand(v) {
			return fail(v, "stale user %s", u.name)
		}
	}
	for _, cc := range v.called {
		if cc.parent != self.m {
			return fail(v, "calls %s which is not part of the module", cc.name)
		}
	}
	return nil
}

func containsInstr(list []*Instruction, v *Instruction) bool {
	for _, p := range list {
		if p == v {
			return true
		}
	}
	return false
}

func (self *_Verifier) operands(v *Instruction, n int) error {
	if len(v.operands) != n {
		return fail(v, "expects %d operands, got %d", n, len(v.operands))
	} else {
		return nil
	}
}

func (self *_Verifier) called(v *Instruction, n int) error {
	if len(v.called) != n {
		return fail(v, "expects %d called computations, got %d", n, len(v.called))
	} else {
		return nil
	}
}

func (self *_Verifier) instruction(v *Instruction) error {
	switch v.opcode {
	case OpParameter:
		return self.operands(v, 0)
	case OpConstant:
		if v.literal == nil || !v.literal.Shape.Equal(v.shape) {
			return fail(v, "literal does not match shape %s", v.shape)
		}
		return nil
	case OpTuple:
		return self.tuple(v)
	case OpGetTupleElement:
		return self.gte(v)
	case OpWhile:
		return self.while(v)
	case OpConditional:
		return self.conditional(v)
	case OpSort:
		return self.sort(v)
	case OpConvert:
		return self.convert(v)
	case OpIota:
		if !v.shape.IsArray() || v.dimension < 0 || int(v.dimension) >= v.shape.Rank() {
			return fail(v, "iota dimension %d out of range for %s", v.dimension, v.shape)
		}
		return self.operands(v, 0)
	case OpCompare:
		return self.compare(v)
	case OpSelect:
		return self.selects(v)
	case OpCall:
		return self.call(v)
	case OpCustomCall:
		return nil
	default:
		if v.opcode.IsBinaryElementwise() {
			return self.elementwise(v, 2)
		} else if v.opcode.IsUnaryElementwise() {
			return self.elementwise(v, 1)
		} else {
			return fail(v, "unexpected opcode %s", v.opcode)
		}
	}
}

func (self *_Verifier) tuple(v *Instruction) error {
	shapes := make([]Shape, len(v.operands))
	for i, p := range v.operands {
		shapes[i] = p.shape
	}
	if want := MakeTupleShape(shapes...); !want.Equal(v.shape) {
		return fail(v, "tuple shape %s does not match operands %s", v.shape, want)
	}
	return nil
}

func (self *_Verifier) gte(v *Instruction) error {
	if err := self.operands(v, 1); err != nil {
		return err
	}
	elem, ok := v.operands[0].shape.Subshape(int(v.tupleIndex))
	if !ok {
		return fail(v, "index %d out of range for %s", v.tupleIndex, v.operands[0].shape)
	}
	if !elem.Equal(v.shape) {
		return fail(v, "shape %s does not match tuple element %s", v.shape, elem)
	}
	return nil
}

func (self *_Verifier) while(v *Instruction) error {
	if err := self.operands(v, 1); err != nil {
		return err
	}
	if err := self.called(v, 2); err != nil {
		return err
	}
	cond, body := v.called[0], v.called[1]

	/* loop state shape is shared by operand, result and both computations */
	if !v.operands[0].shape.Equal(v.shape) {
		return fail(v, "operand shape %s differs from result %s", v.operands[0].shape, v.shape)
	}
	if len(cond.params) != 1 || !cond.params[0].shape.Equal(v.shape) {
		return fail(v, "condition %s must take a single %s parameter", cond.name, v.shape)
	}
	if len(body.params) != 1 || !body.params[0].shape.Equal(v.shape) {
		return fail(v, "body %s must take a single %s parameter", body.name, v.shape)
	}
	if !body.root.shape.Equal(v.shape) {
		return fail(v, "body %s returns %s, want %s", body.name, body.root.shape, v.shape)
	}
	if !cond.root.shape.Equal(MakeScalarShape(PRED)) {
		return fail(v, "condition %s returns %s, want pred[]", cond.name, cond.root.shape)
	}
	return nil
}

func (self *_Verifier) conditional(v *Instruction) error {
	nb := len(v.called)
	if nb == 0 {
		return fail(v, "conditional without branches")
	}
	if err := self.operands(v, nb+1); err != nil {
		return err
	}

	/* the selector is either a predicate for two branches or an s32 index */
	sel := v.operands[0].shape
	if !(sel.Equal(MakeScalarShape(PRED)) && nb == 2) && !sel.Equal(MakeScalarShape(S32)) {
		return fail(v, "invalid branch selector %s for %d branches", sel, nb)
	}

	/* every branch maps its operand to the result shape */
	for i, b := range v.called {
		if len(b.params) != 1 || !b.params[0].shape.Equal(v.operands[i+1].shape) {
			return fail(v, "branch %s must take a single %s parameter", b.name, v.operands[i+1].shape)
		}
		if !b.root.shape.Equal(v.shape) {
			return fail(v, "branch %s returns %s, want %s", b.name, b.root.shape, v.shape)
		}
	}
	return nil
}

func (self *_Verifier) sort(v *Instruction) error {
	if len(v.operands) == 0 {
		return fail(v, "sort without operands")
	}
	if err := self.called(v, 1); err != nil {
		return err
	}

	/* operands are arrays of the same dimensions */
	keys := v.operands[0].shape
	shapes := make([]Shape, len(v.operands))
	for i, p := range v.operands {
		if !p.shape.IsArray() || !p.shape.SameDimensions(keys) {
			return fail(v, "operand %d has shape %s, want dimensions of %s", i, p.shape, keys)
		}
		shapes[i] = p.shape
	}
	if v.dimension < 0 || int(v.dimension) >= keys.Rank() {
		return fail(v, "sort dimension %d out of range for %s", v.dimension, keys)
	}

	/* result is the operand shape, or a tuple of them */
	want := shapes[0]
	if len(shapes) > 1 {
		want = MakeTupleShape(shapes...)
	}
	if !want.Equal(v.shape) {
		return fail(v, "sort shape %s, want %s", v.shape, want)
	}

	/* comparator takes a pair of scalars per operand */
	cmp := v.called[0]
	if len(cmp.params) != 2*len(v.operands) {
		return fail(v, "comparator %s takes %d parameters, want %d", cmp.name, len(cmp.params), 2*len(v.operands))
	}
	for i, p := range cmp.params {
		if want := MakeScalarShape(shapes[i/2].Elem); !p.shape.Equal(want) {
			return fail(v, "comparator parameter %d has shape %s, want %s", i, p.shape, want)
		}
	}
	if !cmp.root.shape.Equal(MakeScalarShape(PRED)) {
		return fail(v, "comparator %s returns %s, want pred[]", cmp.name, cmp.root.shape)
	}
	return nil
}

func (self *_Verifier) convert(v *Instruction) error {
	if err := self.operands(v, 1); err != nil {
		return err
	}
	if !v.shape.IsArray() || !v.operands[0].shape.IsArray() || !v.shape.SameDimensions(v.operands[0].shape) {
		return fail(v, "cannot convert %s to %s", v.operands[0].shape, v.shape)
	}
	return nil
}

func (self *_Verifier) compare(v *Instruction) error {
	if err := self.operands(v, 2); err != nil {
		return err
	}
	lhs, rhs := v.operands[0].shape, v.operands[1].shape
	if !lhs.Equal(rhs) {
		return fail(v, "comparing %s with %s", lhs, rhs)
	}
	if !v.shape.Equal(lhs.ChangeElementType(PRED)) {
		return fail(v, "compare shape %s, want pred dimensions of %s", v.shape, lhs)
	}
	return nil
}

func (self *_Verifier) selects(v *Instruction) error {
	if err := self.operands(v, 3); err != nil {
		return err
	}
	pred := v.operands[0].shape
	if pred.Elem != PRED || !(pred.IsScalar() || pred.SameDimensions(v.shape)) {
		return fail(v, "invalid select predicate %s", pred)
	}
	if !v.operands[1].shape.Equal(v.shape) || !v.operands[2].shape.Equal(v.shape) {
		return fail(v, "select branches must have shape %s", v.shape)
	}
	return nil
}

func (self *_Verifier) call(v *Instruction) error {
	if err := self.called(v, 1); err != nil {
		return err
	}
	c := v.called[0]
	if err := self.operands(v, len(c.params)); err != nil {
		return err
	}
	for i, p := range c.params {
		if !p.shape.Equal(v.operands[i].shape) {
			return fail(v, "argument %d has shape %s, want %s", i, v.operands[i].shape, p.shape)
		}
	}
	if !c.root.shape.Equal(v.shape) {
		return fail(v, "callee %s returns %s, want %s", c.name, c.root.shape, v.shape)
	}
	return nil
}

func (self *_Verifier) elementwise(v *Instruction, n int) error {
	if err := self.operands(v, n); err != nil {
		return err
	}
	mixed := self.opts.PostOptimizations || self.m.config.AllowMixedPrecision
	for i, p := range v.operands {
		if !p.shape.IsArray() || !p.shape.SameDimensions(v.shape) {
			return fail(v, "operand %d has shape %s, want dimensions of %s", i, p.shape, v.shape)
		}
		if !mixed && p.shape.Elem != v.shape.Elem {
			return fail(v, "operand %d mixes precision %s with %s", i, p.shape.Elem, v.shape.Elem)
		}
	}
	return nil
}
