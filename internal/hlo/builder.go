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

// Builder assembles a computation bottom-up.
type Builder struct {
	c    *Computation
	last *Instruction
}

func NewBuilder(name string) *Builder {
	return &Builder{c: NewComputation(name)}
}

func (self *Builder) Add(v *Instruction) *Instruction {
	self.last = self.c.AddInstruction(v)
	return v
}

func (self *Builder) Parameter(num int64, shape Shape, name string) *Instruction {
	return self.Add(NewParameter(num, shape, name))
}

func (self *Builder) Constant(lit *Literal) *Instruction {
	return self.Add(NewConstant(lit))
}

func (self *Builder) Tuple(elems ...*Instruction) *Instruction {
	return self.Add(NewTuple(elems...))
}

func (self *Builder) GetTupleElement(op *Instruction, index int64) *Instruction {
	return self.Add(NewGetTupleElement(op, index))
}

// Compare builds a scalar or element-wise comparison with a PRED result.
func (self *Builder) Compare(lhs *Instruction, rhs *Instruction, dir ComparisonDirection) *Instruction {
	return self.Add(NewCompare(lhs.shape.ChangeElementType(PRED), lhs, rhs, dir))
}

// Binary builds an element-wise op whose shape follows lhs.
func (self *Builder) Binary(op Opcode, lhs *Instruction, rhs *Instruction) *Instruction {
	return self.Add(NewBinary(lhs.shape, op, lhs, rhs))
}

func (self *Builder) Convert(op *Instruction, elem PrimitiveType) *Instruction {
	return self.Add(NewConvert(op.shape.ChangeElementType(elem), op))
}

// Build fixes the root, which defaults to the last added instruction.
func (self *Builder) Build(root *Instruction) *Computation {
	if root == nil {
		root = self.last
	}
	if root == nil || root.parent != self.c {
		panic("hlo: invalid root for computation " + self.c.name)
	}
	self.c.root = root
	return self.c
}
