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

// Computation is a named DAG of instructions with a single root.
type Computation struct {
	name   string
	params []*Instruction
	instrs []*Instruction
	root   *Instruction
	parent *Module
}

func NewComputation(name string) *Computation {
	return &Computation{name: name}
}

func (self *Computation) Name() string { return self.name }
func (self *Computation) Parent() *Module { return self.parent }
func (self *Computation) Root() *Instruction { return self.root }
func (self *Computation) NumParameters() int { return len(self.params) }
func (self *Computation) InstructionCount() int { return len(self.instrs) }

func (self *Computation) ParameterInstruction(i int) *Instruction {
	return self.params[i]
}

func (self *Computation) Parameters() []*Instruction {
	return append([]*Instruction(nil), self.params...)
}

// Instructions returns the instructions in insertion order.
func (self *Computation) Instructions() []*Instruction {
	return append([]*Instruction(nil), self.instrs...)
}

func (self *Computation) IsEntry() bool {
	return self.parent != nil && self.parent.entry == self
}

// AddInstruction takes ownership of v.
func (self *Computation) AddInstruction(v *Instruction) *Instruction {
	if v.parent != nil {
		panic("hlo: instruction " + v.name + " already belongs to " + v.parent.name)
	}

	/* parameters are also indexed by their number */
	if v.opcode == OpParameter {
		for int64(len(self.params)) <= v.paramNum {
			self.params = append(self.params, nil)
		}
		if self.params[v.paramNum] != nil {
			panic("hlo: duplicated parameter number in " + self.name)
		}
		self.params[v.paramNum] = v
	}

	/* link into the computation */
	v.parent = self
	self.instrs = append(self.instrs, v)

	/* assign ids and unique names if the module is known */
	if self.parent != nil {
		self.parent.register(v)
	}
	return v
}

// SetRootInstruction changes the root. Unless acceptDifferentShape is set
// the new root must have the shape of the old one.
func (self *Computation) SetRootInstruction(v *Instruction, acceptDifferentShape bool) error {
	if v.parent != self {
		return status.Invariant("SetRootInstruction", v.name, "not an instruction of %s", self.name)
	}
	if self.root != nil && !acceptDifferentShape && !self.root.shape.Equal(v.shape) {
		return status.Invariant("SetRootInstruction", v.name,
			"root shape changes from %s to %s", self.root.shape, v.shape)
	}
	self.root = v
	return nil
}

func (self *Computation) checkRemovable(v *Instruction) error {
	switch {
	case v.parent != self:
		return status.Invariant("RemoveInstruction", v.name, "not an instruction of %s", self.name)
	case len(v.users) != 0:
		return status.Invariant("RemoveInstruction", v.name, "instruction still has %d users", len(v.users))
	case v == self.root:
		return status.Invariant("RemoveInstruction", v.name, "cannot remove the root of %s", self.name)
	case v.opcode == OpParameter:
		return status.Invariant("RemoveInstruction", v.name, "cannot remove a parameter")
	default:
		return nil
	}
}

// RemoveInstruction unlinks an instruction without users.
func (self *Computation) RemoveInstruction(v *Instruction) error {
	if err := self.checkRemovable(v); err != nil {
		return err
	}
	self.unlink(v)
	return nil
}

func (self *Computation) unlink(v *Instruction) {
	v.detach()
	v.parent = nil
	for i, p := range self.instrs {
		if p == v {
			self.instrs = append(self.instrs[:i], self.instrs[i+1:]...)
			break
		}
	}
}

// IsSafelyRemovable reports whether v can be dropped once it has no users.
func (self *Computation) IsSafelyRemovable(v *Instruction) bool {
	return v.parent == self && v != self.root && v.opcode != OpParameter && !v.HasSideEffect()
}

// RemoveInstructionAndUnusedOperands removes v, then every operand that
// became dead because of it, transitively.
func (self *Computation) RemoveInstructionAndUnusedOperands(v *Instruction) error {
	if err := self.checkRemovable(v); err != nil {
		return err
	}

	/* remove the instruction itself */
	ops := v.Operands()
	self.unlink(v)

	/* then the operands that are no longer used */
	seen := make(map[*Instruction]struct{}, len(ops))
	for _, p := range ops {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		if len(p.users) == 0 && self.IsSafelyRemovable(p) {
			if err := self.RemoveInstructionAndUnusedOperands(p); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReplaceInstruction rewires all uses of old to v, then removes old and its
// dead operands. v is added to the computation if it is not already there.
func (self *Computation) ReplaceInstruction(old *Instruction, v *Instruction) error {
	if !old.shape.Equal(v.shape) {
		return status.Invariant("ReplaceInstruction", old.name, "shape mismatch: %s vs %s", old.shape, v.shape)
	}
	return self.ReplaceInstructionWithDifferentShape(old, v)
}

func (self *Computation) ReplaceInstructionWithDifferentShape(old *Instruction, v *Instruction) error {
	if old.parent != self {
		return status.Invariant("ReplaceInstruction", old.name, "not an instruction of %s", self.name)
	}
	if old.opcode == OpParameter {
		return status.Invariant("ReplaceInstruction", old.name, "cannot replace a parameter")
	}
	if v.parent == nil {
		self.AddInstruction(v)
	} else if v.parent != self {
		return status.Invariant("ReplaceInstruction", v.name, "replacement belongs to %s", v.parent.name)
	}
	old.ReplaceAllUsesWithDifferentShape(v)
	if len(old.users) != 0 {
		return nil
	}
	return self.RemoveInstructionAndUnusedOperands(old)
}

// ReplaceUsesWith rewires only the listed users of old to v, and the root
// when old is the root. It is for replacements that consume old themselves.
func (self *Computation) ReplaceUsesWith(old *Instruction, users []*Instruction, v *Instruction) {
	for _, u := range users {
		if u != v && u.hasOperand(old) {
			old.replaceUse(u, v)
		}
	}
	if self.root == old {
		self.root = v
	}
}

// MakeInstructionPostOrder returns every instruction, operands first.
func (self *Computation) MakeInstructionPostOrder() []*Instruction {
	return newPostOrderIter(self).Collect()
}

// Clone deep-copies the computation. Called computations are shared with the
// original. The clone is not part of any module yet.
func (self *Computation) Clone(suffix string) *Computation {
	ret := NewComputation(self.name + "." + suffix)
	mapping := make(map[*Instruction]*Instruction, len(self.instrs))

	/* clone in post-order so that operands are always mapped */
	for _, v := range self.MakeInstructionPostOrder() {
		ops := make([]*Instruction, len(v.operands))
		for i, p := range v.operands {
			ops[i] = mapping[p]
		}
		nv := v.CloneWithNewOperands(v.shape, ops)
		nv.name = v.name + "." + suffix
		mapping[v] = ret.AddInstruction(nv)
	}

	/* keep the same root */
	if self.root != nil {
		ret.root = mapping[self.root]
	}
	return ret
}

// CloneInto inlines the computation into dst with the parameters bound to
// args, and returns the instruction corresponding to the root.
func (self *Computation) CloneInto(dst *Computation, args []*Instruction) (*Instruction, error) {
	if len(args) != len(self.params) {
		return nil, status.Invariant("CloneInto", self.name, "expects %d arguments, got %d", len(self.params), len(args))
	}

	/* bind every parameter */
	mapping := make(map[*Instruction]*Instruction, len(self.instrs))
	for i, p := range self.params {
		if args[i].parent != dst {
			return nil, status.Invariant("CloneInto", args[i].name, "argument does not belong to %s", dst.name)
		}
		if !p.shape.Equal(args[i].shape) {
			return nil, status.Invariant("CloneInto", self.name,
				"argument %d has shape %s, want %s", i, args[i].shape, p.shape)
		}
		mapping[p] = args[i]
	}

	/* copy the rest of the instructions */
	for _, v := range self.MakeInstructionPostOrder() {
		if v.opcode == OpParameter {
			continue
		}
		ops := make([]*Instruction, len(v.operands))
		for i, p := range v.operands {
			ops[i] = mapping[p]
		}
		nv := v.CloneWithNewOperands(v.shape, ops)
		nv.name = ""
		mapping[v] = dst.AddInstruction(nv)
	}
	return mapping[self.root], nil
}

// RemoveParameter drops an unused parameter, the following parameters are
// renumbered.
func (self *Computation) RemoveParameter(i int) error {
	if i < 0 || i >= len(self.params) {
		return status.Invariant("RemoveParameter", "", "parameter %d out of range for %s", i, self.name)
	}
	p := self.params[i]
	if len(p.users) != 0 || p == self.root {
		return status.Invariant("RemoveParameter", p.name, "parameter is still used")
	}

	/* unlink and renumber */
	self.unlink(p)
	self.params = append(self.params[:i], self.params[i+1:]...)
	for j := i; j < len(self.params); j++ {
		self.params[j].paramNum = int64(j)
	}
	return nil
}

// HasSideEffect reports whether any instruction of the computation, or of a
// computation it calls, has side effects.
func (self *Computation) HasSideEffect() bool {
	return self.hasSideEffect(make(map[*Computation]bool))
}

func (self *Computation) hasSideEffect(seen map[*Computation]bool) bool {
	if ret, ok := seen[self]; ok {
		return ret
	}
	seen[self] = false
	for _, v := range self.instrs {
		if v.hasSideEffect(seen) {
			seen[self] = true
			return true
		}
	}
	return false
}
