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
	"github.com/cloudwego/hloopt/internal/opts"
)

// WhileLoopSimplifier removes loops that run at most once, drops loop state
// elements nothing reads, and flattens nested loop state.
//
// Flattening leaves tuple/get-tuple-element pairs behind, the tuple
// simplifier is expected to run afterwards.
type WhileLoopSimplifier struct {
	maxTripCount int
}

func NewWhileLoopSimplifier(maxTripCount int) *WhileLoopSimplifier {
	if maxTripCount <= 0 {
		maxTripCount = opts.MaxTripCountEval
	}
	return &WhileLoopSimplifier{
		maxTripCount: maxTripCount,
	}
}

func (self *WhileLoopSimplifier) Name() string {
	return "simplify-while-loops"
}

func (self *WhileLoopSimplifier) Run(m *hlo.Module) (bool, error) {
	var loops []*hlo.Instruction
	for _, c := range m.Computations() {
		hlo.PostOrder(c).ForEach(func(v *hlo.Instruction) {
			if v.Opcode() == hlo.OpWhile {
				loops = append(loops, v)
			}
		})
	}

	/* simplify every loop that is still around */
	changed := false
	for _, w := range loops {
		if w.Parent() == nil || w.Parent().Parent() != m {
			continue
		}
		ok, err := self.simplify(m, w)
		if err != nil {
			return false, err
		}
		changed = changed || ok
	}
	return changed, nil
}

func (self *WhileLoopSimplifier) simplify(m *hlo.Module, w *hlo.Instruction) (bool, error) {
	if !w.WhileCondition().HasSideEffect() {
		if n, ok := ComputeWhileLoopTripCount(w, self.maxTripCount); ok && n <= 1 {
			return true, self.unroll(m, w, n)
		}
	}

	/* the remaining rewrites keep the loop */
	pruned, err := self.removeUnusedElements(m, w)
	if err != nil {
		return false, err
	}
	flattened, err := self.flattenState(m, w)
	if err != nil {
		return false, err
	}
	return pruned || flattened, nil
}

// unroll replaces a loop running n <= 1 times with its initial value, or one
// inlined copy of the body.
func (self *WhileLoopSimplifier) unroll(m *hlo.Module, w *hlo.Instruction, n int64) error {
	c := w.Parent()
	cond, body := w.WhileCondition(), w.WhileBody()

	/* the value the loop produces */
	nv := w.WhileInit()
	if n == 1 {
		root, err := body.CloneInto(c, []*hlo.Instruction{nv})
		if err != nil {
			return err
		}
		nv = root
	}

	/* replace it and drop what only the loop called */
	if err := c.ReplaceInstruction(w, nv); err != nil {
		return err
	}
	return removeOrphans(m, cond, body)
}

func removeOrphans(m *hlo.Module, comps ...*hlo.Computation) error {
	for _, c := range comps {
		if c.Parent() == m && !c.IsEntry() && len(m.CallersOf(c)) == 0 {
			if err := m.RemoveEmbeddedComputation(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// ownsComputations reports whether the condition and the body of w are
// called by w only, so they can be rewritten in place.
func ownsComputations(m *hlo.Module, w *hlo.Instruction) bool {
	cond, body := w.WhileCondition(), w.WhileBody()
	if cond == body {
		return false
	}
	for _, c := range []*hlo.Computation{cond, body} {
		if callers := m.CallersOf(c); len(callers) != 1 || callers[0] != w {
			return false
		}
	}
	return true
}

// onlyElementUsers reports whether v is read through get-tuple-element only.
func onlyElementUsers(v *hlo.Instruction) bool {
	if v.IsRoot() {
		return false
	}
	for _, u := range v.Users() {
		if u.Opcode() != hlo.OpGetTupleElement {
			return false
		}
	}
	return true
}

func isLive(v *hlo.Instruction) bool {
	return v.UserCount() != 0 || v.IsRoot()
}

// unusedElements finds the state elements that are only carried around.
func unusedElements(w *hlo.Instruction) []bool {
	cond, body := w.WhileCondition(), w.WhileBody()
	root := body.Root()
	n := w.Shape().TupleCount()
	unused := make([]bool, n)
	for i := range unused {
		unused[i] = true
	}

	/* reads inside the body, other than passing the element through */
	for _, g := range body.ParameterInstruction(0).Users() {
		i := int(g.TupleIndex())
		for _, u := range g.Users() {
			if u != root {
				unused[i] = false
				continue
			}
			for j := 0; j < root.OperandCount(); j++ {
				if root.Operand(j) == g && j != i {
					unused[i] = false
				}
			}
		}
	}

	/* reads in the condition and after the loop */
	for _, g := range cond.ParameterInstruction(0).Users() {
		if isLive(g) {
			unused[g.TupleIndex()] = false
		}
	}
	for _, g := range w.Users() {
		if isLive(g) {
			unused[g.TupleIndex()] = false
		}
	}
	return unused
}

func (self *WhileLoopSimplifier) removeUnusedElements(m *hlo.Module, w *hlo.Instruction) (bool, error) {
	shape := w.Shape()
	if !shape.IsTuple() || shape.TupleCount() < 2 || !ownsComputations(m, w) {
		return false, nil
	}

	/* everything must be accessed element by element */
	c := w.Parent()
	cond, body := w.WhileCondition(), w.WhileBody()
	root := body.Root()
	if !onlyElementUsers(w) || root.Opcode() != hlo.OpTuple || root.UserCount() != 0 {
		return false, nil
	}
	if !onlyElementUsers(body.ParameterInstruction(0)) || !onlyElementUsers(cond.ParameterInstruction(0)) {
		return false, nil
	}

	/* find the elements to keep, at least one */
	unused := unusedElements(w)
	remap := make([]int64, len(unused))
	var kept []int
	var shapes []hlo.Shape
	for i, ok := range unused {
		if ok && !(i == len(unused)-1 && len(kept) == 0) {
			remap[i] = -1
		} else {
			remap[i] = int64(len(kept))
			kept = append(kept, i)
			shapes = append(shapes, shape.Tuple[i])
		}
	}
	if len(kept) == len(unused) {
		return false, nil
	}

	/* Phase 1: the body result */
	elems := make([]*hlo.Instruction, len(kept))
	for j, i := range kept {
		elems[j] = root.Operand(i)
	}
	nr := body.AddInstruction(hlo.NewTuple(elems...))
	if err := body.SetRootInstruction(nr, true); err != nil {
		return false, err
	}
	if err := body.RemoveInstructionAndUnusedOperands(root); err != nil {
		return false, err
	}

	/* Phase 2: renumber the element reads everywhere */
	for _, p := range []*hlo.Instruction{body.ParameterInstruction(0), cond.ParameterInstruction(0), w} {
		if err := renumberElements(p, remap); err != nil {
			return false, err
		}
	}

	/* Phase 3: the new state shape */
	nshape := hlo.MakeTupleShape(shapes...)
	body.ParameterInstruction(0).SetShape(nshape)
	cond.ParameterInstruction(0).SetShape(nshape)

	/* Phase 4: the initial value */
	init := w.WhileInit()
	for j, i := range kept {
		if init.Opcode() == hlo.OpTuple {
			elems[j] = init.Operand(i)
		} else {
			elems[j] = c.AddInstruction(hlo.NewGetTupleElement(init, int64(i)))
		}
	}
	ni := c.AddInstruction(hlo.NewTuple(elems...))
	if err := w.ReplaceOperandWithDifferentShape(0, ni); err != nil {
		return false, err
	}
	if init.UserCount() == 0 && c.IsSafelyRemovable(init) {
		if err := c.RemoveInstructionAndUnusedOperands(init); err != nil {
			return false, err
		}
	}

	/* Phase 5: the loop itself */
	w.SetShape(nshape)
	return true, nil
}

// renumberElements drops the dead reads of removed elements and moves the
// others to their new index.
func renumberElements(v *hlo.Instruction, remap []int64) error {
	for _, g := range v.Users() {
		if i := remap[g.TupleIndex()]; i >= 0 {
			g.SetTupleIndex(i)
		} else if err := g.Parent().RemoveInstruction(g); err != nil {
			return err
		}
	}
	return nil
}

func (self *WhileLoopSimplifier) flattenState(m *hlo.Module, w *hlo.Instruction) (bool, error) {
	shape := w.Shape()
	if !shape.IsTuple() || !shape.IsNestedTuple() || !ownsComputations(m, w) {
		return false, nil
	}

	/* the flat state */
	c := w.Parent()
	cond, body := w.WhileCondition(), w.WhileBody()
	flat := hlo.MakeTupleShape(shape.FlattenTuple()...)

	/* Phase 1: parameters rebuild the nested value from the flat one */
	for _, k := range []*hlo.Computation{cond, body} {
		p := k.ParameterInstruction(0)
		users := p.Users()
		p.SetShape(flat)
		next := 0
		k.ReplaceUsesWith(p, users, reconstruct(k, p, shape, &next))
	}

	/* Phase 2: the body returns the flat value */
	root := body.Root()
	nr := body.AddInstruction(hlo.NewTuple(flatten(body, root, shape, nil)...))
	if err := body.SetRootInstruction(nr, true); err != nil {
		return false, err
	}
	if root.UserCount() == 0 && body.IsSafelyRemovable(root) {
		if err := body.RemoveInstructionAndUnusedOperands(root); err != nil {
			return false, err
		}
	}

	/* Phase 3: so does the initial value */
	init := w.WhileInit()
	ni := c.AddInstruction(hlo.NewTuple(flatten(c, init, shape, nil)...))
	if err := w.ReplaceOperandWithDifferentShape(0, ni); err != nil {
		return false, err
	}
	if init.UserCount() == 0 && c.IsSafelyRemovable(init) {
		if err := c.RemoveInstructionAndUnusedOperands(init); err != nil {
			return false, err
		}
	}

	/* Phase 4: users of the loop see the nested value again */
	users := w.Users()
	w.SetShape(flat)
	next := 0
	c.ReplaceUsesWith(w, users, reconstruct(c, w, shape, &next))
	return true, nil
}

// reconstruct builds a value of the nested shape from the leaves of flat,
// starting at leaf *next.
func reconstruct(c *hlo.Computation, flat *hlo.Instruction, shape hlo.Shape, next *int) *hlo.Instruction {
	if !shape.IsTuple() {
		v := c.AddInstruction(hlo.NewGetTupleElement(flat, int64(*next)))
		*next++
		return v
	}
	elems := make([]*hlo.Instruction, len(shape.Tuple))
	for i, sub := range shape.Tuple {
		elems[i] = reconstruct(c, flat, sub, next)
	}
	return c.AddInstruction(hlo.NewTuple(elems...))
}

// flatten returns the leaves of a value of the nested shape, looking through
// tuple instructions instead of reading them back.
func flatten(c *hlo.Computation, v *hlo.Instruction, shape hlo.Shape, out []*hlo.Instruction) []*hlo.Instruction {
	if !shape.IsTuple() {
		return append(out, v)
	}
	for i, sub := range shape.Tuple {
		var e *hlo.Instruction
		if v.Opcode() == hlo.OpTuple {
			e = v.Operand(i)
		} else {
			e = c.AddInstruction(hlo.NewGetTupleElement(v, int64(i)))
		}
		out = flatten(c, e, sub, out)
	}
	return out
}
