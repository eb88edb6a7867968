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

package eval

import (
	"math"

	"github.com/cloudwego/hloopt/internal/hlo"
)

// strides returns the row-major strides of an array shape.
func strides(shape hlo.Shape) []int64 {
	ret := make([]int64, shape.Rank())
	n := int64(1)
	for i := len(ret) - 1; i >= 0; i-- {
		ret[i] = n
		n *= shape.Dims[i]
	}
	return ret
}

func makeIota(shape hlo.Shape, dim int) *hlo.Literal {
	ret := hlo.ZeroLiteral(shape)
	st := strides(shape)
	for k := 0; k < ret.Len(); k++ {
		c := (int64(k) / st[dim]) % shape.Dims[dim]
		if ret.IsFloat() {
			ret.Floats[k] = hlo.RoundToType(float64(c), shape.Elem)
		} else {
			ret.Ints[k] = hlo.WrapToType(c, shape.Elem)
		}
	}
	return ret
}

func compare(shape hlo.Shape, dir hlo.ComparisonDirection, a *hlo.Literal, b *hlo.Literal) *hlo.Literal {
	ret := hlo.ZeroLiteral(shape)
	for i := range ret.Ints {
		var c int
		switch {
		case a.IsFloat():
			c = cmpFloat(a.Floats[i], b.Floats[i])
		case a.Shape.Elem.IsUnsigned():
			c = cmpUint(uint64(a.Ints[i]), uint64(b.Ints[i]))
		default:
			c = cmpInt(a.Ints[i], b.Ints[i])
		}
		if holds(dir, c, a.IsFloat() && (math.IsNaN(a.Floats[i]) || math.IsNaN(b.Floats[i]))) {
			ret.Ints[i] = 1
		}
	}
	return ret
}

// holds reports whether a three-way comparison result satisfies dir. Every
// direction except NE is false when a NaN is involved.
func holds(dir hlo.ComparisonDirection, c int, nan bool) bool {
	if nan {
		return dir == hlo.CmpNE
	}
	switch dir {
	case hlo.CmpEQ:
		return c == 0
	case hlo.CmpNE:
		return c != 0
	case hlo.CmpLT:
		return c < 0
	case hlo.CmpLE:
		return c <= 0
	case hlo.CmpGT:
		return c > 0
	default:
		return c >= 0
	}
}

func cmpFloat(a float64, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpInt(a int64, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpUint(a uint64, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func selects(shape hlo.Shape, pred *hlo.Literal, a *hlo.Literal, b *hlo.Literal) *hlo.Literal {
	ret := hlo.ZeroLiteral(shape)
	for i := 0; i < ret.Len(); i++ {
		p := pred.Bool(0)
		if !pred.Shape.IsScalar() {
			p = pred.Bool(i)
		}

		/* pick the element */
		src := b
		if p {
			src = a
		}
		if ret.IsFloat() {
			ret.Floats[i] = src.Floats[i]
		} else {
			ret.Ints[i] = src.Ints[i]
		}
	}
	return ret
}

// promote converts an operand to the result type, which only happens for
// mixed precision element-wise ops.
func promote(v *hlo.Literal, elem hlo.PrimitiveType) *hlo.Literal {
	if v.Shape.Elem == elem {
		return v
	} else {
		return v.Convert(elem)
	}
}

func binary(v *hlo.Instruction, a *hlo.Literal, b *hlo.Literal) (*hlo.Literal, error) {
	shape := v.Shape()
	elem := shape.Elem
	a, b = promote(a, elem), promote(b, elem)
	ret := hlo.ZeroLiteral(shape)

	/* floating point */
	if elem.IsFloat() {
		for i := range ret.Floats {
			x, y := a.Floats[i], b.Floats[i]
			switch v.Opcode() {
			case hlo.OpAdd:
				ret.Floats[i] = x + y
			case hlo.OpSubtract:
				ret.Floats[i] = x - y
			case hlo.OpMultiply:
				ret.Floats[i] = x * y
			case hlo.OpMaximum:
				ret.Floats[i] = math.Max(x, y)
			case hlo.OpMinimum:
				ret.Floats[i] = math.Min(x, y)
			default:
				return nil, unsupported(v, "%s is not defined on %s", v.Opcode(), elem)
			}
			ret.Floats[i] = hlo.RoundToType(ret.Floats[i], elem)
		}
		return ret, nil
	}

	/* integral and predicates */
	for i := range ret.Ints {
		var r int64
		x, y := a.Ints[i], b.Ints[i]
		switch v.Opcode() {
		case hlo.OpAdd:
			r = x + y
		case hlo.OpSubtract:
			r = x - y
		case hlo.OpMultiply:
			r = x * y
		case hlo.OpMaximum:
			if r = x; cmpTyped(elem, x, y) < 0 {
				r = y
			}
		case hlo.OpMinimum:
			if r = x; cmpTyped(elem, x, y) > 0 {
				r = y
			}
		case hlo.OpAnd:
			r = x & y
		case hlo.OpOr:
			r = x | y
		}
		if elem == hlo.PRED {
			r &= 1
		}
		ret.Ints[i] = hlo.WrapToType(r, elem)
	}
	return ret, nil
}

func cmpTyped(elem hlo.PrimitiveType, x int64, y int64) int {
	if elem.IsUnsigned() {
		return cmpUint(uint64(x), uint64(y))
	} else {
		return cmpInt(x, y)
	}
}

func unary(v *hlo.Instruction, a *hlo.Literal) (*hlo.Literal, error) {
	shape := v.Shape()
	elem := shape.Elem
	a = promote(a, elem)
	ret := hlo.ZeroLiteral(shape)

	/* floating point only negates */
	if elem.IsFloat() {
		if v.Opcode() != hlo.OpNegate {
			return nil, unsupported(v, "%s is not defined on %s", v.Opcode(), elem)
		}
		for i, x := range a.Floats {
			ret.Floats[i] = -x
		}
		return ret, nil
	}

	/* integral and predicates */
	for i, x := range a.Ints {
		switch {
		case v.Opcode() == hlo.OpNegate:
			ret.Ints[i] = hlo.WrapToType(-x, elem)
		case elem == hlo.PRED:
			ret.Ints[i] = 1 - x
		default:
			ret.Ints[i] = hlo.WrapToType(^x, elem)
		}
	}
	return ret, nil
}

func customCall(v *hlo.Instruction, ops []*hlo.Literal) (*hlo.Literal, error) {
	dim, amount, ok := hlo.AsRotateRight(v)
	if !ok {
		return nil, unsupported(v, "unknown custom-call target %q", v.CustomCallTarget())
	}
	src := ops[0]
	if !src.Shape.IsArray() || dim < 0 || int(dim) >= src.Shape.Rank() {
		return nil, unsupported(v, "cannot rotate %s along dimension %d", src.Shape, dim)
	}
	return rotateRight(src, int(dim), amount), nil
}

// rotateRight moves element i along dim to position (i + amount) mod n.
func rotateRight(src *hlo.Literal, dim int, amount int64) *hlo.Literal {
	ret := src.Clone()
	n := src.Shape.Dims[dim]
	if n == 0 {
		return ret
	}

	/* normalize the amount */
	st := strides(src.Shape)
	if amount %= n; amount < 0 {
		amount += n
	}

	/* move every element */
	for k := 0; k < src.Len(); k++ {
		c := (int64(k) / st[dim]) % n
		d := int64(k) + ((c+amount)%n-c)*st[dim]
		if src.IsFloat() {
			ret.Floats[d] = src.Floats[k]
		} else {
			ret.Ints[d] = src.Ints[k]
		}
	}
	return ret
}
