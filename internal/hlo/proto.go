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
	"github.com/cloudwego/hloopt/internal/hloproto"
	"github.com/cloudwego/hloopt/internal/status"
)

func ShapeToProto(s Shape) *hloproto.ShapeProto {
	ret := &hloproto.ShapeProto{ElementType: s.Elem.String()}
	if s.IsTuple() {
		ret.TupleShapes = make([]*hloproto.ShapeProto, len(s.Tuple))
		for i, v := range s.Tuple {
			ret.TupleShapes[i] = ShapeToProto(v)
		}
	} else if len(s.Dims) != 0 {
		ret.Dimensions = append([]int64(nil), s.Dims...)
	}
	return ret
}

func ShapeFromProto(p *hloproto.ShapeProto) (Shape, error) {
	if p == nil {
		return Shape{}, status.InvalidArgument("missing shape")
	}
	elem, ok := ParsePrimitiveType(p.ElementType)
	if !ok || elem == InvalidType {
		return Shape{}, status.InvalidArgument("unknown element type %q", p.ElementType)
	}

	/* tuples and tokens have no dimensions */
	switch elem {
	case TOKEN:
		return MakeTokenShape(), nil
	case TUPLE:
		elems := make([]Shape, len(p.TupleShapes))
		for i, v := range p.TupleShapes {
			s, err := ShapeFromProto(v)
			if err != nil {
				return Shape{}, err
			}
			elems[i] = s
		}
		return MakeTupleShape(elems...), nil
	}

	/* array shapes */
	for _, d := range p.Dimensions {
		if d < 0 {
			return Shape{}, status.InvalidArgument("negative dimension %d in %s shape", d, p.ElementType)
		}
	}
	return MakeShape(elem, p.Dimensions...), nil
}

func LiteralToProto(lit *Literal) *hloproto.LiteralProto {
	ret := &hloproto.LiteralProto{Shape: ShapeToProto(lit.Shape)}
	if lit.Shape.IsTuple() {
		ret.Tuple = make([]*hloproto.LiteralProto, len(lit.Elements))
		for i, v := range lit.Elements {
			ret.Tuple[i] = LiteralToProto(v)
		}
	} else if lit.IsFloat() {
		ret.Floats = append([]float64(nil), lit.Floats...)
	} else {
		ret.Ints = append([]int64(nil), lit.Ints...)
	}
	return ret
}

func LiteralFromProto(p *hloproto.LiteralProto) (*Literal, error) {
	shape, err := ShapeFromProto(p.Shape)
	if err != nil {
		return nil, err
	}

	/* tuple literals recurse */
	if shape.IsTuple() {
		elems := make([]*Literal, len(p.Tuple))
		for i, v := range p.Tuple {
			if v == nil {
				return nil, status.InvalidArgument("missing tuple literal element %d", i)
			}
			if elems[i], err = LiteralFromProto(v); err != nil {
				return nil, err
			}
		}
		ret := NewTupleLiteral(elems...)
		if !ret.Shape.Equal(shape) {
			return nil, status.InvalidArgument("tuple literal %s does not match shape %s", ret.Shape, shape)
		}
		return ret, nil
	}

	/* array literals must carry exactly one value per element */
	n := shape.ElementCount()
	if shape.Elem.IsFloat() {
		if int64(len(p.Floats)) != n {
			return nil, status.InvalidArgument("literal of shape %s has %d values", shape, len(p.Floats))
		}
		return NewFloatLiteral(shape.Elem, shape.Dims, p.Floats...), nil
	} else {
		if int64(len(p.Ints)) != n {
			return nil, status.InvalidArgument("literal of shape %s has %d values", shape, len(p.Ints))
		}
		return NewIntLiteral(shape.Elem, shape.Dims, p.Ints...), nil
	}
}

// MakeHloProto converts a module into its persisted form. Computations are
// emitted callees first and instructions operands first, so the result can be
// loaded in a single pass.
func MakeHloProto(m *Module) (*hloproto.HloProto, error) {
	comps, err := m.MakeComputationPostOrder()
	if err != nil {
		return nil, err
	}

	/* computation ids follow the emission order */
	ids := make(map[*Computation]int64, len(comps))
	for i, c := range comps {
		ids[c] = int64(i + 1)
	}

	/* module header */
	ret := &hloproto.HloProto{
		Module: &hloproto.ModuleProto{
			Name: m.name,
			Id:   m.uid,
			Config: &hloproto.ModuleConfigProto{
				ReplicaCount:        int32(m.config.ReplicaCount),
				NumPartitions:       int32(m.config.NumPartitions),
				AllowMixedPrecision: m.config.AllowMixedPrecision,
			},
		},
	}

	/* entry computation */
	if m.entry != nil {
		ret.Module.EntryComputationId = ids[m.entry]
		ret.Module.EntryComputationName = m.entry.name
	}

	/* every computation */
	for _, c := range comps {
		cp := &hloproto.ComputationProto{Id: ids[c], Name: c.name}
		for _, v := range c.MakeInstructionPostOrder() {
			cp.Instructions = append(cp.Instructions, instructionToProto(v, ids))
		}
		if c.root != nil {
			cp.RootId = int64(c.root.id)
		}
		ret.Module.Computations = append(ret.Module.Computations, cp)
	}
	return ret, nil
}

func instructionToProto(v *Instruction, ids map[*Computation]int64) *hloproto.InstructionProto {
	ret := &hloproto.InstructionProto{
		Id:              int64(v.id),
		Name:            v.name,
		Opcode:          v.opcode.String(),
		Shape:           ShapeToProto(v.shape),
		TupleIndex:      v.tupleIndex,
		ParameterNumber: v.paramNum,
		Dimension:       v.dimension,
		IsStable:        v.isStable,
		HasSideEffect:   v.sideEffect,
	}

	/* edges by id */
	for _, p := range v.operands {
		ret.OperandIds = append(ret.OperandIds, int64(p.id))
	}
	for _, c := range v.called {
		ret.CalledComputationIds = append(ret.CalledComputationIds, ids[c])
	}

	/* opcode specific attributes */
	if v.literal != nil {
		ret.Literal = LiteralToProto(v.literal)
	}
	if v.opcode == OpCompare {
		ret.ComparisonDirection = v.direction.String()
	}
	if v.opcode == OpCustomCall {
		ret.CustomCallTarget = v.target
		if len(v.attrs) != 0 {
			ret.Attributes = make(map[string]int64, len(v.attrs))
			for k, x := range v.attrs {
				ret.Attributes[k] = x
			}
		}
	}
	return ret
}

// ModuleConfigFromProto returns the configuration stored with a module,
// falling back to the defaults for unset counts.
func ModuleConfigFromProto(p *hloproto.HloProto) ModuleConfig {
	ret := DefaultModuleConfig()
	if p.Module == nil || p.Module.Config == nil {
		return ret
	}

	/* stored counts override the defaults */
	cfg := p.Module.Config
	if cfg.ReplicaCount > 0 {
		ret.ReplicaCount = int(cfg.ReplicaCount)
	}
	if cfg.NumPartitions > 0 {
		ret.NumPartitions = int(cfg.NumPartitions)
	}
	ret.AllowMixedPrecision = cfg.AllowMixedPrecision
	return ret
}

// CreateModuleFromProto rebuilds a module and verifies it. Instruction ids
// are reassigned, names are kept when they are unique.
func CreateModuleFromProto(p *hloproto.HloProto, config ModuleConfig, postOptimizations bool) (*Module, error) {
	mp := p.Module
	if mp == nil {
		return nil, status.InvalidArgument("missing module")
	}
	m := NewModule(mp.Name, config)
	if mp.Id != "" {
		m.uid = mp.Id
	}

	/* create all the computations first, so calls can refer to any of them */
	comps := make(map[int64]*Computation, len(mp.Computations))
	for i, cp := range mp.Computations {
		if cp == nil {
			return nil, status.InvalidArgument("missing computation %d", i)
		}
		if _, ok := comps[cp.Id]; ok {
			return nil, status.InvalidArgument("duplicated computation id %d", cp.Id)
		}
		comps[cp.Id] = NewComputation(cp.Name)
	}

	/* the entry must be one of them */
	entry, ok := comps[mp.EntryComputationId]
	if !ok {
		return nil, status.InvalidArgument("entry computation %d not found", mp.EntryComputationId)
	}

	/* fill in the instructions */
	for _, cp := range mp.Computations {
		c := comps[cp.Id]
		if c == entry {
			m.AddEntryComputation(c)
		} else {
			m.AddEmbeddedComputation(c)
		}
		if err := loadComputation(c, cp, comps); err != nil {
			return nil, err
		}
	}

	/* a loaded module must be well formed */
	if err := Verify(m, VerifyOptions{PostOptimizations: postOptimizations}); err != nil {
		return nil, err
	}
	return m, nil
}

func loadComputation(c *Computation, cp *hloproto.ComputationProto, comps map[int64]*Computation) error {
	instrs := make(map[int64]*Instruction, len(cp.Instructions))
	for i, ip := range cp.Instructions {
		if ip == nil {
			return status.InvalidArgument("missing instruction %d in %s", i, cp.Name)
		}
		if _, ok := instrs[ip.Id]; ok {
			return status.InvalidArgument("duplicated instruction id %d in %s", ip.Id, cp.Name)
		}

		/* operands must have been loaded already */
		ops := make([]*Instruction, len(ip.OperandIds))
		for j, id := range ip.OperandIds {
			if ops[j] = instrs[id]; ops[j] == nil {
				return status.InvalidArgument("instruction %s refers to unknown operand %d", ip.Name, id)
			}
		}

		/* so must the called computations */
		called := make([]*Computation, len(ip.CalledComputationIds))
		for j, id := range ip.CalledComputationIds {
			if called[j] = comps[id]; called[j] == nil {
				return status.InvalidArgument("instruction %s calls unknown computation %d", ip.Name, id)
			}
		}

		/* a parameter number can't exceed the number of instructions */
		if ip.Opcode == OpParameter.String() && ip.ParameterNumber >= int64(len(cp.Instructions)) {
			return status.InvalidArgument("parameter number %d of %s out of range", ip.ParameterNumber, ip.Name)
		}

		/* build the instruction */
		v, err := instructionFromProto(ip, ops, called)
		if err != nil {
			return err
		}
		if v.opcode == OpParameter && int(v.paramNum) < len(c.params) && c.params[v.paramNum] != nil {
			return status.InvalidArgument("duplicated parameter %d in %s", v.paramNum, cp.Name)
		}
		instrs[ip.Id] = c.AddInstruction(v)
	}

	/* finally the root */
	root, ok := instrs[cp.RootId]
	if !ok {
		return status.InvalidArgument("root %d of %s not found", cp.RootId, cp.Name)
	}
	return c.SetRootInstruction(root, true)
}

func instructionFromProto(ip *hloproto.InstructionProto, ops []*Instruction, called []*Computation) (*Instruction, error) {
	op, ok := ParseOpcode(ip.Opcode)
	if !ok || op == OpInvalid {
		return nil, status.InvalidArgument("unknown opcode %q", ip.Opcode)
	}
	shape, err := ShapeFromProto(ip.Shape)
	if err != nil {
		return nil, err
	}

	/* generic fields */
	ret := newInstruction(op, shape, ops...)
	ret.name = ip.Name
	ret.called = called
	ret.tupleIndex = ip.TupleIndex
	ret.paramNum = ip.ParameterNumber
	ret.dimension = ip.Dimension
	ret.isStable = ip.IsStable
	ret.sideEffect = ip.HasSideEffect

	/* opcode specific fields */
	switch op {
	case OpParameter:
		if ip.ParameterNumber < 0 {
			return nil, status.InvalidArgument("negative parameter number in %s", ip.Name)
		}
	case OpConstant:
		if ip.Literal == nil {
			return nil, status.InvalidArgument("constant %s has no literal", ip.Name)
		}
		if ret.literal, err = LiteralFromProto(ip.Literal); err != nil {
			return nil, err
		}
	case OpCompare:
		if ret.direction, ok = ParseComparisonDirection(ip.ComparisonDirection); !ok {
			return nil, status.InvalidArgument("invalid comparison direction %q", ip.ComparisonDirection)
		}
	case OpCustomCall:
		ret.target = ip.CustomCallTarget
		ret.attrs = make(map[string]int64, len(ip.Attributes))
		for k, x := range ip.Attributes {
			ret.attrs[k] = x
		}
	}
	return ret, nil
}

func entryComputationProto(p *hloproto.HloProto) (*hloproto.ComputationProto, error) {
	if p.Module == nil {
		return nil, status.InvalidArgument("missing module")
	}
	c, ok := p.Module.EntryComputation()
	if !ok {
		return nil, status.NotFound("entry computation", p.Module.EntryComputationId)
	}
	return c, nil
}

// EntryComputationParameterShapes reads the parameter shapes of the entry
// computation without loading the module.
func EntryComputationParameterShapes(p *hloproto.HloProto) ([]Shape, error) {
	c, err := entryComputationProto(p)
	if err != nil {
		return nil, err
	}

	/* parameters are keyed by number */
	shapes := make(map[int64]Shape)
	for _, ip := range c.Instructions {
		if ip == nil || ip.Opcode != OpParameter.String() {
			continue
		}
		n := ip.ParameterNumber
		if n < 0 || n >= int64(len(c.Instructions)) {
			return nil, status.InvalidArgument("parameter number %d of %s out of range", n, ip.Name)
		}
		if _, ok := shapes[n]; ok {
			return nil, status.InvalidArgument("duplicated parameter %d in %s", n, c.Name)
		}
		if shapes[n], err = ShapeFromProto(ip.Shape); err != nil {
			return nil, err
		}
	}

	/* parameters must be dense */
	ret := make([]Shape, len(shapes))
	for i := range ret {
		s, ok := shapes[int64(i)]
		if !ok {
			return nil, status.InvalidArgument("entry computation is missing parameter %d", i)
		}
		ret[i] = s
	}
	return ret, nil
}

// EntryComputationOutputShape reads the result shape of the entry
// computation without loading the module.
func EntryComputationOutputShape(p *hloproto.HloProto) (Shape, error) {
	c, err := entryComputationProto(p)
	if err != nil {
		return Shape{}, err
	}
	for _, ip := range c.Instructions {
		if ip != nil && ip.Id == c.RootId {
			return ShapeFromProto(ip.Shape)
		}
	}
	return Shape{}, status.InvalidArgument("root %d of %s not found", c.RootId, c.Name)
}
