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
	"sort"

	"github.com/bytedance/gopkg/lang/fastrand"

	"github.com/cloudwego/hloopt/internal/hlo"
)

// sort permutes every operand by the order the comparator defines on the
// index positions. The primitive is not stable: when ties are scrambled the
// relative order of equal elements is arbitrary.
func (self *_Frame) sort(v *hlo.Instruction, ops []*hlo.Literal) (*hlo.Literal, error) {
	if ops[0].Shape.Rank() != 1 {
		return nil, unsupported(v, "only rank-1 sorts can be evaluated, got %s", ops[0].Shape)
	}
	n := ops[0].Len()
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	/* shuffle the positions first */
	if self.ev.opts.ScrambleTies {
		for i := n - 1; i > 0; i-- {
			j := fastrand.Intn(i + 1)
			perm[i], perm[j] = perm[j], perm[i]
		}
	}

	/* the comparator takes a (lhs, rhs) pair of scalars per operand */
	var err error
	cmp := v.Comparator()
	args := make([]*hlo.Literal, 2*len(ops))
	less := func(i int, j int) bool {
		if err != nil {
			return false
		}
		for k, op := range ops {
			args[2*k] = op.Slice(perm[i])
			args[2*k+1] = op.Slice(perm[j])
		}
		r, e := self.ev.Evaluate(cmp, args...)
		if e != nil {
			err = e
			return false
		}
		return r.Bool(0)
	}

	/* sort the permutation */
	sort.Slice(perm, less)
	if err != nil {
		return nil, err
	}

	/* gather every operand */
	rets := make([]*hlo.Literal, len(ops))
	for k, op := range ops {
		rets[k] = gather(op, perm)
	}
	if len(rets) == 1 {
		return rets[0], nil
	} else {
		return hlo.NewTupleLiteral(rets...), nil
	}
}

func gather(src *hlo.Literal, perm []int) *hlo.Literal {
	ret := src.Clone()
	for i, p := range perm {
		if src.IsFloat() {
			ret.Floats[i] = src.Floats[p]
		} else {
			ret.Ints[i] = src.Ints[p]
		}
	}
	return ret
}
