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
	"strconv"
)

type Opcode uint8

const (
	OpInvalid Opcode = iota
	OpParameter
	OpConstant
	OpTuple
	OpGetTupleElement
	OpWhile
	OpConditional
	OpSort
	OpConvert
	OpCustomCall
	OpIota
	OpCompare
	OpAdd
	OpSubtract
	OpMultiply
	OpMaximum
	OpMinimum
	OpAnd
	OpOr
	OpNot
	OpNegate
	OpSelect
	OpCall
)

var _OpcodeNames = [...]string{
	OpInvalid:         "invalid",
	OpParameter:       "parameter",
	OpConstant:        "constant",
	OpTuple:           "tuple",
	OpGetTupleElement: "get-tuple-element",
	OpWhile:           "while",
	OpConditional:     "conditional",
	OpSort:            "sort",
	OpConvert:         "convert",
	OpCustomCall:      "custom-call",
	OpIota:            "iota",
	OpCompare:         "compare",
	OpAdd:             "add",
	OpSubtract:        "subtract",
	OpMultiply:        "multiply",
	OpMaximum:         "maximum",
	OpMinimum:         "minimum",
	OpAnd:             "and",
	OpOr:              "or",
	OpNot:             "not",
	OpNegate:          "negate",
	OpSelect:          "select",
	OpCall:            "call",
}

func (self Opcode) String() string {
	if int(self) < len(_OpcodeNames) {
		return _OpcodeNames[self]
	} else {
		return "opcode(" + strconv.Itoa(int(self)) + ")"
	}
}

// ParseOpcode is the inverse of Opcode.String.
func ParseOpcode(s string) (Opcode, bool) {
	for i, v := range _OpcodeNames {
		if v == s && i != int(OpInvalid) {
			return Opcode(i), true
		}
	}
	return OpInvalid, false
}

func (self Opcode) IsBinaryElementwise() bool {
	switch self {
	case OpAdd, OpSubtract, OpMultiply, OpMaximum, OpMinimum, OpAnd, OpOr:
		return true
	default:
		return false
	}
}

func (self Opcode) IsUnaryElementwise() bool {
	return self == OpNot || self == OpNegate
}

// HasCalledComputations reports whether instructions of this opcode own
// sub-computations.
func (self Opcode) HasCalledComputations() bool {
	switch self {
	case OpWhile, OpConditional, OpSort, OpCall:
		return true
	default:
		return false
	}
}

type ComparisonDirection uint8

const (
	CmpEQ ComparisonDirection = iota
	CmpNE
	CmpLT
	CmpLE
	CmpGT
	CmpGE
)

var _DirectionNames = [...]string{
	CmpEQ: "EQ",
	CmpNE: "NE",
	CmpLT: "LT",
	CmpLE: "LE",
	CmpGT: "GT",
	CmpGE: "GE",
}

func (self ComparisonDirection) String() string {
	if int(self) < len(_DirectionNames) {
		return _DirectionNames[self]
	} else {
		return "direction(" + strconv.Itoa(int(self)) + ")"
	}
}

func ParseComparisonDirection(s string) (ComparisonDirection, bool) {
	for i, v := range _DirectionNames {
		if v == s {
			return ComparisonDirection(i), true
		}
	}
	return CmpEQ, false
}
