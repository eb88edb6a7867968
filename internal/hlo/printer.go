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
	"sort"
	"strings"
)

func (self *Instruction) String() string {
	ops := make([]string, len(self.operands))
	for i, p := range self.operands {
		ops[i] = "%" + p.name
	}

	/* operand list, parameters and constants print their attribute inline */
	var args string
	switch self.opcode {
	case OpParameter:
		args = fmt.Sprint(self.paramNum)
	case OpConstant:
		args = self.literal.String()
	default:
		args = strings.Join(ops, ", ")
	}

	/* the root is marked */
	prefix := ""
	if self.IsRoot() {
		prefix = "ROOT "
	}
	return fmt.Sprintf("%s%%%s = %s %s(%s)%s", prefix, self.name, self.shape, self.opcode, args, self.attributes())
}

func (self *Instruction) attributes() string {
	var buf []string
	switch self.opcode {
	case OpGetTupleElement:
		buf = append(buf, fmt.Sprintf("index=%d", self.tupleIndex))
	case OpWhile:
		buf = append(buf, "condition=%"+self.called[0].name, "body=%"+self.called[1].name)
	case OpConditional:
		names := make([]string, len(self.called))
		for i, c := range self.called {
			names[i] = "%" + c.name
		}
		buf = append(buf, "branch_computations={"+strings.Join(names, ", ")+"}")
	case OpSort:
		buf = append(buf, fmt.Sprintf("dimensions={%d}", self.dimension))
		if self.isStable {
			buf = append(buf, "is_stable=true")
		}
		buf = append(buf, "to_apply=%"+self.called[0].name)
	case OpIota:
		buf = append(buf, fmt.Sprintf("iota_dimension=%d", self.dimension))
	case OpCompare:
		buf = append(buf, "direction="+self.direction.String())
	case OpCall:
		buf = append(buf, "to_apply=%"+self.called[0].name)
	case OpCustomCall:
		buf = append(buf, fmt.Sprintf("custom_call_target=%q", self.target))
		if len(self.attrs) != 0 {
			keys := make([]string, 0, len(self.attrs))
			for k := range self.attrs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for i, k := range keys {
				keys[i] = fmt.Sprintf("%s=%d", k, self.attrs[k])
			}
			buf = append(buf, "attributes={"+strings.Join(keys, ", ")+"}")
		}
		if self.sideEffect {
			buf = append(buf, "custom_call_has_side_effect=true")
		}
	}
	if len(buf) == 0 {
		return ""
	} else {
		return ", " + strings.Join(buf, ", ")
	}
}

func (self *Computation) String() string {
	params := make([]string, len(self.params))
	for i, p := range self.params {
		if p != nil {
			params[i] = fmt.Sprintf("%s: %s", p.name, p.shape)
		}
	}

	/* header with the signature */
	rs := "?"
	if self.root != nil {
		rs = self.root.shape.String()
	}
	buf := []string{fmt.Sprintf("%%%s (%s) -> %s {", self.name, strings.Join(params, ", "), rs)}

	/* body in post-order */
	for _, v := range self.MakeInstructionPostOrder() {
		buf = append(buf, "  "+v.String())
	}
	buf = append(buf, "}")
	return strings.Join(buf, "\n")
}

func (self *Module) String() string {
	comps, err := self.MakeComputationPostOrder()
	if err != nil {
		comps = self.comps
	}

	/* callees first, the entry is marked */
	buf := []string{"HloModule " + self.name}
	for _, c := range comps {
		if c == self.entry {
			buf = append(buf, "", "ENTRY "+c.String())
		} else {
			buf = append(buf, "", c.String())
		}
	}
	return strings.Join(buf, "\n") + "\n"
}
