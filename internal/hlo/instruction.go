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

// Instruction is a typed node of a computation graph.
//
// Operands are the source of truth for the edges; users are derived and are
// kept consistent by every mutation primitive in this package, so passes must
// never patch operand lists by hand.
type Instruction struct {
	id       int
	name     string
	opcode   Opcode
	shape    Shape
	operands []*Instruction
	users    []*Instruction
	called   []*Computation
	parent   *Computation

	/* opcode specific attributes */
	literal    *Literal
	tupleIndex int64
	paramNum   int64
	dimension  int64
	isStable   bool
	direction  ComparisonDirection
	target     string
	attrs      map[string]int64
	sideEffect bool
}

func newInstruction(op Opcode, shape Shape, operands ...*Instruction) *Instruction {
	ret := &Instruction{
		opcode: op,
		shape:  shape.Clone(),
	}
	for _, v := range operands {
		ret.AppendOperand(v)
	}
	return ret
}

func NewParameter(num int64, shape Shape, name string) *Instruction {
	ret := newInstruction(OpParameter, shape)
	ret.paramNum = num
	ret.name = name
	return ret
}

func NewConstant(lit *Literal) *Instruction {
	ret := newInstruction(OpConstant, lit.Shape)
	ret.literal = lit.Clone()
	return ret
}

func NewTuple(elems ...*Instruction) *Instruction {
	shapes := make([]Shape, len(elems))
	for i, v := range elems {
		shapes[i] = v.shape
	}
	return newInstruction(OpTuple, MakeTupleShape(shapes...), elems...)
}

// NewGetTupleElement panics when the index is out of range, operands of a
// verified module never hit that.
func NewGetTupleElement(op *Instruction, index int64) *Instruction {
	shape, ok := op.shape.Subshape(int(index))
	if !ok {
		panic("hlo: get-tuple-element index out of range for " + op.shape.String())
	}
	ret := newInstruction(OpGetTupleElement, shape, op)
	ret.tupleIndex = index
	return ret
}

func NewWhile(shape Shape, cond *Computation, body *Computation, init *Instruction) *Instruction {
	ret := newInstruction(OpWhile, shape, init)
	ret.called = []*Computation{cond, body}
	return ret
}

func NewConditional(shape Shape, index *Instruction, branches []*Computation, operands []*Instruction) *Instruction {
	ret := newInstruction(OpConditional, shape, append([]*Instruction{index}, operands...)...)
	ret.called = append([]*Computation(nil), branches...)
	return ret
}

func NewSort(shape Shape, dimension int64, operands []*Instruction, comparator *Computation, isStable bool) *Instruction {
	ret := newInstruction(OpSort, shape, operands...)
	ret.called = []*Computation{comparator}
	ret.dimension = dimension
	ret.isStable = isStable
	return ret
}

func NewConvert(shape Shape, op *Instruction) *Instruction {
	return newInstruction(OpConvert, shape, op)
}

func NewIota(shape Shape, dimension int64) *Instruction {
	ret := newInstruction(OpIota, shape)
	ret.dimension = dimension
	return ret
}

func NewCompare(shape Shape, lhs *Instruction, rhs *Instruction, dir ComparisonDirection) *Instruction {
	ret := newInstruction(OpCompare, shape, lhs, rhs)
	ret.direction = dir
	return ret
}

func NewBinary(shape Shape, op Opcode, lhs *Instruction, rhs *Instruction) *Instruction {
	if !op.IsBinaryElementwise() {
		panic("hlo: not a binary opcode: " + op.String())
	}
	return newInstruction(op, shape, lhs, rhs)
}

func NewUnary(shape Shape, op Opcode, operand *Instruction) *Instruction {
	if !op.IsUnaryElementwise() {
		panic("hlo: not a unary opcode: " + op.String())
	}
	return newInstruction(op, shape, operand)
}

func NewSelect(shape Shape, pred *Instruction, onTrue *Instruction, onFalse *Instruction) *Instruction {
	return newInstruction(OpSelect, shape, pred, onTrue, onFalse)
}

func NewCall(shape Shape, operands []*Instruction, comp *Computation) *Instruction {
	ret := newInstruction(OpCall, shape, operands...)
	ret.called = []*Computation{comp}
	return ret
}

func NewCustomCall(shape Shape, operands []*Instruction, target string, attrs map[string]int64) *Instruction {
	ret := newInstruction(OpCustomCall, shape, operands...)
	ret.target = target
	ret.attrs = make(map[string]int64, len(attrs))
	for k, v := range attrs {
		ret.attrs[k] = v
	}
	return ret
}

func (self *Instruction) Id() int { return self.id }
func (self *Instruction) Name() string { return self.name }
func (self *Instruction) Opcode() Opcode { return self.opcode }
func (self *Instruction) Shape() Shape { return self.shape }
func (self *Instruction) Parent() *Computation { return self.parent }
func (self *Instruction) OperandCount() int { return len(self.operands) }
func (self *Instruction) Operand(i int) *Instruction { return self.operands[i] }
func (self *Instruction) UserCount() int { return len(self.users) }
func (self *Instruction) Literal() *Literal { return self.literal }
func (self *Instruction) TupleIndex() int64 { return self.tupleIndex }
func (self *Instruction) ParameterNumber() int64 { return self.paramNum }
func (self *Instruction) Dimension() int64 { return self.dimension }
func (self *Instruction) IsStable() bool { return self.isStable }
func (self *Instruction) Direction() ComparisonDirection { return self.direction }
func (self *Instruction) CustomCallTarget() string { return self.target }

// Operands returns a copy of the operand list.
func (self *Instruction) Operands() []*Instruction {
	return append([]*Instruction(nil), self.operands...)
}

// Users returns a copy of the derived use-set, in first-use order.
func (self *Instruction) Users() []*Instruction {
	return append([]*Instruction(nil), self.users...)
}

func (self *Instruction) CalledComputations() []*Computation {
	return append([]*Computation(nil), self.called...)
}

func (self *Instruction) WhileCondition() *Computation {
	self.expect(OpWhile)
	return self.called[0]
}

func (self *Instruction) WhileBody() *Computation {
	self.expect(OpWhile)
	return self.called[1]
}

func (self *Instruction) WhileInit() *Instruction {
	self.expect(OpWhile)
	return self.operands[0]
}

func (self *Instruction) BranchCount() int {
	self.expect(OpConditional)
	return len(self.called)
}

func (self *Instruction) BranchComputation(i int) *Computation {
	self.expect(OpConditional)
	return self.called[i]
}

func (self *Instruction) Comparator() *Computation {
	self.expect(OpSort)
	return self.called[0]
}

func (self *Instruction) SetName(name string) {
	self.name = name
}

// Attr returns a custom-call attribute.
func (self *Instruction) Attr(key string) (int64, bool) {
	v, ok := self.attrs[key]
	return v, ok
}

func (self *Instruction) SetSideEffect(v bool) {
	self.sideEffect = v
}

// HasSideEffect reports whether the instruction, or any computation it
// calls, has side effects.
func (self *Instruction) HasSideEffect() bool {
	return self.hasSideEffect(make(map[*Computation]bool))
}

func (self *Instruction) hasSideEffect(seen map[*Computation]bool) bool {
	if self.sideEffect {
		return true
	}
	for _, c := range self.called {
		if c.hasSideEffect(seen) {
			return true
		}
	}
	return false
}

func (self *Instruction) IsRoot() bool {
	return self.parent != nil && self.parent.root == self
}

// IsConstantScalar returns the integral value of a scalar constant.
func (self *Instruction) IsConstantScalar() (int64, bool) {
	if self.opcode != OpConstant || !self.shape.IsScalar() || self.shape.Elem.IsFloat() {
		return 0, false
	} else {
		return self.literal.Ints[0], true
	}
}

func (self *Instruction) expect(op Opcode) {
	if self.opcode != op {
		panic("hlo: expected " + op.String() + " but got " + self.opcode.String())
	}
}

func (self *Instruction) hasOperand(v *Instruction) bool {
	for _, p := range self.operands {
		if p == v {
			return true
		}
	}
	return false
}

func (self *Instruction) addUser(v *Instruction) {
	for _, p := range self.users {
		if p == v {
			return
		}
	}
	self.users = append(self.users, v)
}

func (self *Instruction) removeUser(v *Instruction) {
	for i, p := range self.users {
		if p == v {
			self.users = append(self.users[:i], self.users[i+1:]...)
			return
		}
	}
}

// AppendOperand adds an operand edge and records the reverse edge.
func (self *Instruction) AppendOperand(v *Instruction) {
	self.operands = append(self.operands, v)
	v.addUser(self)
}

// SetShape overwrites the result shape. It is meant for structural rewrites
// that fix up every user in the same step.
func (self *Instruction) SetShape(shape Shape) {
	self.shape = shape.Clone()
}

// SetTupleIndex renumbers a get-tuple-element.
func (self *Instruction) SetTupleIndex(index int64) {
	self.expect(OpGetTupleElement)
	self.tupleIndex = index
}

// SetCalledComputation swaps the i-th called computation.
func (self *Instruction) SetCalledComputation(i int, c *Computation) {
	self.called[i] = c
}

func (self *Instruction) ReplaceOperandWith(i int, v *Instruction) error {
	if i < 0 || i >= len(self.operands) {
		return status.Invariant("ReplaceOperandWith", self.name, "operand index %d out of range", i)
	}
	if !self.operands[i].shape.Equal(v.shape) {
		return status.Invariant("ReplaceOperandWith", self.name,
			"shape mismatch: %s vs %s", self.operands[i].shape, v.shape)
	}
	self.replaceOperandAt(i, v)
	return nil
}

func (self *Instruction) ReplaceOperandWithDifferentShape(i int, v *Instruction) error {
	if i < 0 || i >= len(self.operands) {
		return status.Invariant("ReplaceOperandWith", self.name, "operand index %d out of range", i)
	}
	self.replaceOperandAt(i, v)
	return nil
}

func (self *Instruction) replaceOperandAt(i int, v *Instruction) {
	old := self.operands[i]
	if old == v {
		return
	}
	self.operands[i] = v
	v.addUser(self)
	if !self.hasOperand(old) {
		old.removeUser(self)
	}
}

// ReplaceUseWith rewires every operand slot of user that refers to this
// instruction.
func (self *Instruction) ReplaceUseWith(user *Instruction, v *Instruction) error {
	if !self.shape.Equal(v.shape) {
		return status.Invariant("ReplaceUseWith", self.name, "shape mismatch: %s vs %s", self.shape, v.shape)
	}
	self.replaceUse(user, v)
	return nil
}

func (self *Instruction) replaceUse(user *Instruction, v *Instruction) {
	for i, p := range user.operands {
		if p == self {
			user.operands[i] = v
		}
	}
	self.removeUser(user)
	v.addUser(user)
}

// ReplaceAllUsesWith rewires every user to v and moves the computation root
// if this instruction was the root. The shapes must be identical.
func (self *Instruction) ReplaceAllUsesWith(v *Instruction) error {
	if !self.shape.Equal(v.shape) {
		return status.Invariant("ReplaceAllUsesWith", self.name, "shape mismatch: %s vs %s", self.shape, v.shape)
	}
	if v == self {
		return nil
	}

	/* one user at a time */
	for _, u := range self.Users() {
		if u == v {
			continue
		}
		if err := self.ReplaceUseWith(u, v); err != nil {
			return err
		}
	}
	if self.IsRoot() {
		self.parent.root = v
	}
	return nil
}

// ReplaceAllUsesWithDifferentShape is ReplaceAllUsesWith without the shape
// check, callers are responsible for fixing the shapes of the users.
func (self *Instruction) ReplaceAllUsesWithDifferentShape(v *Instruction) {
	if v == self {
		return
	}
	for _, u := range self.Users() {
		if u == v {
			continue
		}
		self.replaceUse(u, v)
	}
	if self.IsRoot() {
		self.parent.root = v
	}
}

// detach drops every operand edge, used when removing an instruction.
func (self *Instruction) detach() {
	for _, p := range self.operands {
		p.removeUser(self)
	}
	self.operands = nil
}

// CloneWithNewOperands copies the instruction and all its attributes, with a
// new shape and operand list. Called computations are shared.
func (self *Instruction) CloneWithNewOperands(shape Shape, operands []*Instruction) *Instruction {
	ret := newInstruction(self.opcode, shape, operands...)
	ret.name = self.name
	ret.called = append([]*Computation(nil), self.called...)
	ret.tupleIndex = self.tupleIndex
	ret.paramNum = self.paramNum
	ret.dimension = self.dimension
	ret.isStable = self.isStable
	ret.direction = self.direction
	ret.target = self.target
	ret.sideEffect = self.sideEffect
	if self.literal != nil {
		ret.literal = self.literal.Clone()
	}
	if self.attrs != nil {
		ret.attrs = make(map[string]int64, len(self.attrs))
		for k, v := range self.attrs {
			ret.attrs[k] = v
		}
	}
	return ret
}
