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
	"math"
	"strconv"
	"strings"
)

// Literal is a constant value of some shape. Integral and PRED elements are
// stored in Ints, floating point elements in Floats, tuples in Elements.
type Literal struct {
	Shape    Shape
	Ints     []int64
	Floats   []float64
	Elements []*Literal
}

func NewIntLiteral(elem PrimitiveType, dims []int64, values ...int64) *Literal {
	ret := &Literal{Shape: MakeShape(elem, dims...)}
	ret.Ints = make([]int64, ret.Shape.ElementCount())
	copy(ret.Ints, values)
	return ret
}

func NewFloatLiteral(elem PrimitiveType, dims []int64, values ...float64) *Literal {
	ret := &Literal{Shape: MakeShape(elem, dims...)}
	ret.Floats = make([]float64, ret.Shape.ElementCount())
	for i, v := range values {
		if i < len(ret.Floats) {
			ret.Floats[i] = RoundToType(v, elem)
		}
	}
	return ret
}

func NewTupleLiteral(elems ...*Literal) *Literal {
	shapes := make([]Shape, len(elems))
	for i, v := range elems {
		shapes[i] = v.Shape
	}
	return &Literal{
		Shape:    MakeTupleShape(shapes...),
		Elements: elems,
	}
}

func ScalarS32(v int64) *Literal {
	return NewIntLiteral(S32, nil, v)
}

func ScalarS64(v int64) *Literal {
	return NewIntLiteral(S64, nil, v)
}

func ScalarPred(v bool) *Literal {
	if v {
		return NewIntLiteral(PRED, nil, 1)
	} else {
		return NewIntLiteral(PRED, nil, 0)
	}
}

func ScalarF32(v float64) *Literal {
	return NewFloatLiteral(F32, nil, v)
}

// ZeroLiteral returns the zero value of a shape, including tuples.
func ZeroLiteral(shape Shape) *Literal {
	switch {
	case shape.IsTuple():
		elems := make([]*Literal, len(shape.Tuple))
		for i, v := range shape.Tuple {
			elems[i] = ZeroLiteral(v)
		}
		return NewTupleLiteral(elems...)
	case shape.Elem.IsFloat():
		return NewFloatLiteral(shape.Elem, shape.Dims)
	default:
		return NewIntLiteral(shape.Elem, shape.Dims)
	}
}

func (self *Literal) IsFloat() bool {
	return self.Shape.Elem.IsFloat()
}

func (self *Literal) Len() int {
	if self.IsFloat() {
		return len(self.Floats)
	} else {
		return len(self.Ints)
	}
}

// Int returns element i as an integer, truncating floats.
func (self *Literal) Int(i int) int64 {
	if self.IsFloat() {
		return int64(self.Floats[i])
	} else {
		return self.Ints[i]
	}
}

// Float returns element i as a float64.
func (self *Literal) Float(i int) float64 {
	if self.IsFloat() {
		return self.Floats[i]
	} else if self.Shape.Elem.IsUnsigned() {
		return float64(uint64(self.Ints[i]))
	} else {
		return float64(self.Ints[i])
	}
}

// Bool reports whether element i is non-zero.
func (self *Literal) Bool(i int) bool {
	if self.IsFloat() {
		return self.Floats[i] != 0
	} else {
		return self.Ints[i] != 0
	}
}

// Slice returns the scalar literal at element i of an array literal.
func (self *Literal) Slice(i int) *Literal {
	if self.IsFloat() {
		return NewFloatLiteral(self.Shape.Elem, nil, self.Floats[i])
	} else {
		return NewIntLiteral(self.Shape.Elem, nil, self.Ints[i])
	}
}

func (self *Literal) Clone() *Literal {
	ret := &Literal{Shape: self.Shape.Clone()}
	if self.Ints != nil {
		ret.Ints = append([]int64(nil), self.Ints...)
	}
	if self.Floats != nil {
		ret.Floats = append([]float64(nil), self.Floats...)
	}
	if self.Elements != nil {
		ret.Elements = make([]*Literal, len(self.Elements))
		for i, v := range self.Elements {
			ret.Elements[i] = v.Clone()
		}
	}
	return ret
}

func (self *Literal) Equal(other *Literal) bool {
	if !self.Shape.Equal(other.Shape) || len(self.Elements) != len(other.Elements) {
		return false
	}
	if len(self.Ints) != len(other.Ints) || len(self.Floats) != len(other.Floats) {
		return false
	}
	for i, v := range self.Ints {
		if other.Ints[i] != v {
			return false
		}
	}
	for i, v := range self.Floats {
		if w := other.Floats[i]; w != v && !(math.IsNaN(v) && math.IsNaN(w)) {
			return false
		}
	}
	for i, v := range self.Elements {
		if !v.Equal(other.Elements[i]) {
			return false
		}
	}
	return true
}

// Convert changes the element type of an array literal, rounding floats to
// the precision of the destination type.
func (self *Literal) Convert(elem PrimitiveType) *Literal {
	ret := &Literal{Shape: self.Shape.ChangeElementType(elem)}
	n := self.Len()

	/* float destination */
	if elem.IsFloat() {
		ret.Floats = make([]float64, n)
		for i := 0; i < n; i++ {
			ret.Floats[i] = RoundToType(self.Float(i), elem)
		}
		return ret
	}

	/* integral or predicate destination */
	ret.Ints = make([]int64, n)
	for i := 0; i < n; i++ {
		if elem == PRED {
			if self.Bool(i) {
				ret.Ints[i] = 1
			}
		} else {
			ret.Ints[i] = WrapToType(self.Int(i), elem)
		}
	}
	return ret
}

func (self *Literal) String() string {
	if self.Shape.IsTuple() {
		buf := make([]string, len(self.Elements))
		for i, v := range self.Elements {
			buf[i] = v.String()
		}
		return "(" + strings.Join(buf, ", ") + ")"
	}

	/* format every element */
	n := self.Len()
	buf := make([]string, n)
	for i := 0; i < n; i++ {
		switch {
		case self.IsFloat():
			buf[i] = strconv.FormatFloat(self.Floats[i], 'g', -1, 64)
		case self.Shape.Elem == PRED:
			buf[i] = strconv.FormatBool(self.Ints[i] != 0)
		default:
			buf[i] = strconv.FormatInt(self.Ints[i], 10)
		}
	}

	/* scalars are printed bare */
	if self.Shape.IsScalar() && n == 1 {
		return buf[0]
	} else {
		return fmt.Sprintf("{%s}", strings.Join(buf, ", "))
	}
}

// RoundToType rounds a float64 to the nearest value representable in the
// given floating point type.
func RoundToType(v float64, elem PrimitiveType) float64 {
	switch elem {
	case F64:
		return v
	case F32:
		return float64(float32(v))
	case BF16:
		return float64(roundBF16(float32(v)))
	case F16:
		return roundF16(v)
	default:
		return v
	}
}

func roundBF16(v float32) float32 {
	if math.IsNaN(float64(v)) {
		return v
	}
	bits := math.Float32bits(v)
	bits += 0x7fff + ((bits >> 16) & 1)
	return math.Float32frombits(bits &^ 0xffff)
}

func roundF16(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v == 0 {
		return v
	}
	if a := math.Abs(v); a > 65504 {
		return math.Copysign(math.Inf(1), v)
	} else if a < 6.103515625e-05 {
		return math.RoundToEven(v/5.960464477539063e-08) * 5.960464477539063e-08
	}
	frac, exp := math.Frexp(v)
	return math.Ldexp(math.RoundToEven(frac*2048)/2048, exp)
}

// WrapToType truncates an integer to the width of an integral type.
func WrapToType(v int64, elem PrimitiveType) int64 {
	switch elem {
	case S8:
		return int64(int8(v))
	case S16:
		return int64(int16(v))
	case S32:
		return int64(int32(v))
	case U8:
		return int64(uint8(v))
	case U16:
		return int64(uint16(v))
	case U32:
		return int64(uint32(v))
	default:
		return v
	}
}
