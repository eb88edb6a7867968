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

// DCE removes instructions that cannot affect the result of their
// computation, then the computations nothing calls anymore.
type DCE struct{}

func (DCE) Name() string {
	return "dce"
}

func (self DCE) Run(m *hlo.Module) (bool, error) {
	changed := false
	for _, c := range m.Computations() {
		ok, err := self.sweep(c)
		if err != nil {
			return false, err
		}
		changed = changed || ok
	}

	/* Phase 3: drop the computations that are no longer reachable */
	if m.RemoveUnusedComputations() != 0 {
		changed = true
	}
	return changed, nil
}

func (DCE) sweep(c *hlo.Computation) (bool, error) {
	q := lane.NewQueue()
	live := make(map[*hlo.Instruction]struct{}, c.InstructionCount())

	/* Phase 1: mark the root, the parameters and side effects as live */
	for _, v := range c.Instructions() {
		if v.IsRoot() || v.Opcode() == hlo.OpParameter || v.HasSideEffect() {
			live[v] = struct{}{}
			q.Enqueue(v)
		}
	}

	/* propagate liveness to the operands */
	for !q.Empty() {
		v := q.Dequeue().(*hlo.Instruction)
		for _, p := range v.Operands() {
			if _, ok := live[p]; !ok {
				live[p] = struct{}{}
				q.Enqueue(p)
			}
		}
	}

	/* Phase 2: remove everything else, users first */
	changed := false
	for _, v := range hlo.PostOrder(c).Reversed() {
		if _, ok := live[v]; ok {
			continue
		}
		if err := c.RemoveInstruction(v); err != nil {
			return false, err
		}
		changed = true
	}
	return changed, nil
}
