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
	"github.com/oleiade/lane"
)

const (
	_S_new = iota
	_S_visiting
	_S_done
)

// PostOrderIter walks the instructions of a computation so that every
// operand is produced before its users. Instructions unreachable from the
// root are visited too, in insertion order.
type PostOrderIter struct {
	c *Computation
	v *Instruction
	i int
	s *lane.Stack
	m map[*Instruction]uint8
}

func newPostOrderIter(c *Computation) *PostOrderIter {
	return &PostOrderIter{
		c: c,
		s: lane.NewStack(),
		m: make(map[*Instruction]uint8, len(c.instrs)),
	}
}

func (self *PostOrderIter) Next() bool {
	for {
		var tail bool
		var this *Instruction

		/* start from the next unvisited instruction if the stack is drained */
		if self.s.Empty() {
			for self.i < len(self.c.instrs) && self.m[self.c.instrs[self.i]] != _S_new {
				self.i++
			}
			if self.i == len(self.c.instrs) {
				self.v = nil
				return false
			}
			self.s.Push(self.c.instrs[self.i])
		}

		/* scan until the stack is empty */
		for !self.s.Empty() {
			tail = true
			this = self.s.Head().(*Instruction)
			self.m[this] = _S_visiting

			/* descend into the first unvisited operand */
			for _, p := range this.operands {
				if p.parent == self.c && self.m[p] == _S_new {
					tail = false
					self.s.Push(p)
					break
				}
			}

			/* all the operands are visited, pop the current node */
			if tail {
				self.v = self.s.Pop().(*Instruction)
				self.m[self.v] = _S_done
				return true
			}
		}
	}
}

func (self *PostOrderIter) Instruction() *Instruction {
	return self.v
}

func (self *PostOrderIter) ForEach(action func(v *Instruction)) {
	for self.Next() {
		action(self.v)
	}
}

func (self *PostOrderIter) Collect() []*Instruction {
	ret := make([]*Instruction, 0, len(self.c.instrs))
	for self.Next() {
		ret = append(ret, self.v)
	}
	return ret
}

// Reversed returns users before operands.
func (self *PostOrderIter) Reversed() []*Instruction {
	ret := self.Collect()
	for i, j := 0, len(ret)-1; i < j; i, j = i+1, j-1 {
		ret[i], ret[j] = ret[j], ret[i]
	}
	return ret
}

// PostOrder returns an iterator over the instructions of c.
func PostOrder(c *Computation) *PostOrderIter {
	return newPostOrderIter(c)
}
