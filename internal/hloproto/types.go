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

package hloproto

// ShapeProto is the persisted form of a shape.
type ShapeProto struct {
	ElementType string        `frugal:"1,default,string" yaml:"element_type"`
	Dimensions  []int64       `frugal:"2,default,list<i64>" yaml:"dimensions,omitempty,flow"`
	TupleShapes []*ShapeProto `frugal:"3,default,list<ShapeProto>" yaml:"tuple_shapes,omitempty"`
}

type LiteralProto struct {
	Shape  *ShapeProto     `frugal:"1,default,ShapeProto" yaml:"shape"`
	Ints   []int64         `frugal:"2,default,list<i64>" yaml:"ints,omitempty,flow"`
	Floats []float64       `frugal:"3,default,list<double>" yaml:"floats,omitempty,flow"`
	Tuple  []*LiteralProto `frugal:"4,default,list<LiteralProto>" yaml:"tuple_literals,omitempty"`
}

// InstructionProto refers to operands and called computations by id.
type InstructionProto struct {
	Id                   int64            `frugal:"1,default,i64" yaml:"id"`
	Name                 string           `frugal:"2,default,string" yaml:"name"`
	Opcode               string           `frugal:"3,default,string" yaml:"opcode"`
	Shape                *ShapeProto      `frugal:"4,default,ShapeProto" yaml:"shape"`
	OperandIds           []int64          `frugal:"5,default,list<i64>" yaml:"operand_ids,omitempty,flow"`
	CalledComputationIds []int64          `frugal:"6,default,list<i64>" yaml:"called_computation_ids,omitempty,flow"`
	Literal              *LiteralProto    `frugal:"7,optional,LiteralProto" yaml:"literal,omitempty"`
	TupleIndex           int64            `frugal:"8,default,i64" yaml:"tuple_index,omitempty"`
	ParameterNumber      int64            `frugal:"9,default,i64" yaml:"parameter_number,omitempty"`
	Dimension            int64            `frugal:"10,default,i64" yaml:"dimension,omitempty"`
	IsStable             bool             `frugal:"11,default,bool" yaml:"is_stable,omitempty"`
	ComparisonDirection  string           `frugal:"12,default,string" yaml:"comparison_direction,omitempty"`
	CustomCallTarget     string           `frugal:"13,default,string" yaml:"custom_call_target,omitempty"`
	Attributes           map[string]int64 `frugal:"14,default,map<string:i64>" yaml:"attributes,omitempty"`
	HasSideEffect        bool             `frugal:"15,default,bool" yaml:"has_side_effect,omitempty"`
}

type ComputationProto struct {
	Id           int64               `frugal:"1,default,i64" yaml:"id"`
	Name         string              `frugal:"2,default,string" yaml:"name"`
	Instructions []*InstructionProto `frugal:"3,default,list<InstructionProto>" yaml:"instructions"`
	RootId       int64               `frugal:"4,default,i64" yaml:"root_id"`
}

type ModuleConfigProto struct {
	ReplicaCount        int32 `frugal:"1,default,i32" yaml:"replica_count"`
	NumPartitions       int32 `frugal:"2,default,i32" yaml:"num_partitions"`
	AllowMixedPrecision bool  `frugal:"3,default,bool" yaml:"allow_mixed_precision,omitempty"`
}

type ModuleProto struct {
	Name                 string              `frugal:"1,default,string" yaml:"name"`
	Id                   string              `frugal:"2,default,string" yaml:"id,omitempty"`
	EntryComputationId   int64               `frugal:"3,default,i64" yaml:"entry_computation_id"`
	EntryComputationName string              `frugal:"4,default,string" yaml:"entry_computation_name"`
	Computations         []*ComputationProto `frugal:"5,default,list<ComputationProto>" yaml:"computations"`
	Config               *ModuleConfigProto  `frugal:"6,default,ModuleConfigProto" yaml:"config"`
}

// HloProto is the top level persisted form of a module.
type HloProto struct {
	Module *ModuleProto `frugal:"1,default,ModuleProto" yaml:"hlo_module"`
}

type ComputationDevice struct {
	ReplicaDeviceIds []int64 `frugal:"1,default,list<i64>" yaml:"replica_device_ids,flow"`
}

// DeviceAssignmentProto stores one device list per computation.
type DeviceAssignmentProto struct {
	ReplicaCount       int32                `frugal:"1,default,i32" yaml:"replica_count"`
	ComputationCount   int32                `frugal:"2,default,i32" yaml:"computation_count"`
	ComputationDevices []*ComputationDevice `frugal:"3,default,list<ComputationDevice>" yaml:"computation_devices"`
}

// EntryComputation returns the entry computation of a module proto.
func (self *ModuleProto) EntryComputation() (*ComputationProto, bool) {
	for _, c := range self.Computations {
		if c != nil && c.Id == self.EntryComputationId {
			return c, true
		}
	}
	return nil, false
}
