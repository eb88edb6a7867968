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
	"fmt"
	"strconv"
	"strings"
)

type PrimitiveType uint8

const (
	InvalidType PrimitiveType = iota
	PRED
	S8
	S16
	S32
	S64
	U8
	U16
	U32
	U64
	F16
	BF16
	F32
	F64
	TUPLE
	TOKEN
)

var _PrimitiveNames = [...]string{
	InvalidType: "invalid",
	PRED:        "pred",
	S8:          "s8",
	S16:         "s16",
	S32:         "s32",
	S64:         "s64",
	U8:          "u8",
	U16:         "u16",
	U32:         "u32",
	U64:         "u64",
	F16:         "f16",
	BF16:        "bf16",
	F32:         "f32",
	F64:         "f64",
	TUPLE:       "tuple",
	TOKEN:       "token",
}

func (self PrimitiveType) String() string {
	if int(self) < len(_PrimitiveNames) {
		return _PrimitiveNames[self]
	} else {
		return "PrimitiveType(" + strconv.Itoa(int(self)) + ")"
	}
}

// ParsePrimitiveType is the inverse of PrimitiveType.String.
func ParsePrimitiveType(s string) (PrimitiveType, bool) {
	for i, v := range _PrimitiveNames {
		if v == s && i != int(InvalidType) {
			return PrimitiveType(i), true
		}
	}
	return InvalidType, false
}

func (self PrimitiveType) IsFloat() bool {
	return self == F16 || self == BF16 || self == F32 || self == F64
}

func (self PrimitiveType) IsSigned() bool {
	return self >= S8 && self <= S64
}

func (self PrimitiveType) IsUnsigned() bool {
	return self >= U8 && self <= U64
}

func (self PrimitiveType) IsIntegral() bool {
	return self.IsSigned() || self.IsUnsigned()
}

func (self PrimitiveType) IsArray() bool {
	return self >= PRED && self <= F64
}

// BitWidth returns the storage width of an array element type, or 0.
func (self PrimitiveType) BitWidth() int {
	switch self {
	case PRED, S8, U8:
		return 8
	case S16, U16, F16, BF16:
		return 16
	case S32, U32, F32:
		return 32
	case S64, U64, F64:
		return 64
	default:
		return 0
	}
}

// Shape is either an array shape (element type + dimensions), a tuple of
// shapes or a token.
type Shape struct {
	Elem  PrimitiveType
	Dims  []int64
	Tuple []Shape
}

func MakeShape(elem PrimitiveType, dims ...int64) Shape {
	if !elem.IsArray() {
		panic("hlo: MakeShape with non-array element type " + elem.String())
	}
	return Shape{Elem: elem, Dims: append([]int64(nil), dims...)}
}

func MakeScalarShape(elem PrimitiveType) Shape {
	return MakeShape(elem)
}

func MakeTupleShape(elems ...Shape) Shape {
	ret := Shape{Elem: TUPLE, Tuple: make([]Shape, len(elems))}
	for i, v := range elems {
		ret.Tuple[i] = v.Clone()
	}
	return ret
}

func MakeTokenShape() Shape {
	return Shape{Elem: TOKEN}
}

func (self Shape) IsTuple() bool {
	return self.Elem == TUPLE
}

func (self Shape) IsArray() bool {
	return self.Elem.IsArray()
}

func (self Shape) IsScalar() bool {
	return self.IsArray() && len(self.Dims) == 0
}

func (self Shape) Rank() int {
	return len(self.Dims)
}

func (self Shape) TupleCount() int {
	return len(self.Tuple)
}

// IsNestedTuple reports whether any element of a tuple shape is a tuple.
func (self Shape) IsNestedTuple() bool {
	for _, v := range self.Tuple {
		if v.IsTuple() {
			return true
		}
	}
	return false
}

func (self Shape) ElementCount() int64 {
	n := int64(1)
	for _, d := range self.Dims {
		n *= d
	}
	return n
}

func (self Shape) Clone() Shape {
	ret := Shape{Elem: self.Elem}
	if self.Dims != nil {
		ret.Dims = append([]int64(nil), self.Dims...)
	}
	if self.Tuple != nil {
		ret.Tuple = make([]Shape, len(self.Tuple))
		for i, v := range self.Tuple {
			ret.Tuple[i] = v.Clone()
		}
	}
	return ret
}

func (self Shape) Equal(other Shape) bool {
	if self.Elem != other.Elem || len(self.Dims) != len(other.Dims) || len(self.Tuple) != len(other.Tuple) {
		return false
	}
	for i, d := range self.Dims {
		if other.Dims[i] != d {
			return false
		}
	}
	for i, v := range self.Tuple {
		if !v.Equal(other.Tuple[i]) {
			return false
		}
	}
	return true
}

// SameDimensions compares two array shapes ignoring the element type.
func (self Shape) SameDimensions(other Shape) bool {
	if len(self.Dims) != len(other.Dims) {
		return false
	}
	for i, d := range self.Dims {
		if other.Dims[i] != d {
			return false
		}
	}
	return true
}

// ChangeElementType returns a copy of an array shape with a new element type.
func (self Shape) ChangeElementType(elem PrimitiveType) Shape {
	ret := self.Clone()
	ret.Elem = elem
	return ret
}

// Subshape walks a shape index into nested tuples.
func (self Shape) Subshape(index ...int) (Shape, bool) {
	ret := self
	for _, i := range index {
		if !ret.IsTuple() || i < 0 || i >= len(ret.Tuple) {
			return Shape{}, false
		}
		ret = ret.Tuple[i]
	}
	return ret, true
}

// LeafCount returns the number of non-tuple leaves of a shape.
func (self Shape) LeafCount() int {
	if !self.IsTuple() {
		return 1
	}
	n := 0
	for _, v := range self.Tuple {
		n += v.LeafCount()
	}
	return n
}

// FlattenTuple returns the non-tuple leaves of a shape in depth-first order.
func (self Shape) FlattenTuple() []Shape {
	if !self.IsTuple() {
		return []Shape{self.Clone()}
	}
	ret := make([]Shape, 0, len(self.Tuple))
	for _, v := range self.Tuple {
		ret = append(ret, v.FlattenTuple()...)
	}
	return ret
}

func (self Shape) String() string {
	switch {
	case self.IsTuple():
		buf := make([]string, len(self.Tuple))
		for i, v := range self.Tuple {
			buf[i] = v.String()
		}
		return "(" + strings.Join(buf, ", ") + ")"
	case self.Elem == TOKEN:
		return "token[]"
	default:
		buf := make([]string, len(self.Dims))
		for i, d := range self.Dims {
			buf[i] = strconv.FormatInt(d, 10)
		}
		return fmt.Sprintf("%s[%s]", self.Elem, strings.Join(buf, ","))
	}
}
