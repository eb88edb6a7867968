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
	"github.com/cloudwego/hloopt/internal/hlo"
	"github.com/cloudwego/hloopt/internal/status"
)

const (
	_DefaultMaxLoopIterations = 1 << 20
)

type Options struct {
	// MaxLoopIterations bounds every while loop, a loop running longer fails
	// the evaluation instead of hanging.
	MaxLoopIterations int

	// ScrambleTies shuffles the input of every sort, so that elements the
	// comparator considers equal end up in an arbitrary order.
	ScrambleTies bool
}

func DefaultOptions() Options {
	return Options{
		MaxLoopIterations: _DefaultMaxLoopIterations,
		ScrambleTies:      true,
	}
}

// Evaluator interprets computations on literal arguments. It is the reference
// used to check that rewrites preserve the computed function.
type Evaluator struct {
	opts Options
}

func New(opts Options) *Evaluator {
	if opts.MaxLoopIterations <= 0 {
		opts.MaxLoopIterations = _DefaultMaxLoopIterations
	}
	return &Evaluator{opts: opts}
}

// Evaluate runs c with the default options.
func Evaluate(c *hlo.Computation, args ...*hlo.Literal) (*hlo.Literal, error) {
	return New(DefaultOptions()).Evaluate(c, args...)
}

func (self *Evaluator) Evaluate(c *hlo.Computation, args ...*hlo.Literal) (*hlo.Literal, error) {
	if len(args) != c.NumParameters() {
		return nil, status.InvalidArgument("%s takes %d arguments, got %d", c.Name(), c.NumParameters(), len(args))
	}
	for i, p := range c.Parameters() {
		if !p.Shape().Equal(args[i].Shape) {
			return nil, status.InvalidArgument("argument %d of %s has shape %s, want %s", i, c.Name(), args[i].Shape, p.Shape())
		}
	}
	fr := &_Frame{
		ev:   self,
		args: args,
		vals: make(map[*hlo.Instruction]*hlo.Literal, c.InstructionCount()),
	}
	return fr.value(c.Root())
}

type _Frame struct {
	ev   *Evaluator
	args []*hlo.Literal
	vals map[*hlo.Instruction]*hlo.Literal
}

func unsupported(v *hlo.Instruction, format string, args ...interface{}) error {
	return status.Invariant("Evaluate", v.Name(), format, args...)
}

// value evaluates the instructions reachable from v, memoizing each one.
func (self *_Frame) value(v *hlo.Instruction) (*hlo.Literal, error) {
	if ret, ok := self.vals[v]; ok {
		return ret, nil
	}

	/* operands first */
	ops := make([]*hlo.Literal, v.OperandCount())
	for i, p := range v.Operands() {
		var err error
		if ops[i], err = self.value(p); err != nil {
			return nil, err
		}
	}

	/* then the instruction itself */
	ret, err := self.eval(v, ops)
	if err != nil {
		return nil, err
	}
	self.vals[v] = ret
	return ret, nil
}

func (self *_Frame) eval(v *hlo.Instruction, ops []*hlo.Literal) (*hlo.Literal, error) {
	switch op := v.Opcode(); op {
	case hlo.OpParameter:
		return self.args[v.ParameterNumber()], nil
	case hlo.OpConstant:
		return v.Literal(), nil
	case hlo.OpTuple:
		return hlo.NewTupleLiteral(ops...), nil
	case hlo.OpGetTupleElement:
		return ops[0].Elements[v.TupleIndex()], nil
	case hlo.OpIota:
		return makeIota(v.Shape(), int(v.Dimension())), nil
	case hlo.OpConvert:
		return ops[0].Convert(v.Shape().Elem), nil
	case hlo.OpCompare:
		return compare(v.Shape(), v.Direction(), ops[0], ops[1]), nil
	case hlo.OpSelect:
		return selects(v.Shape(), ops[0], ops[1], ops[2]), nil
	case hlo.OpWhile:
		return self.while(v, ops[0])
	case hlo.OpConditional:
		return self.conditional(v, ops)
	case hlo.OpCall:
		return self.ev.Evaluate(v.CalledComputations()[0], ops...)
	case hlo.OpSort:
		return self.sort(v, ops)
	case hlo.OpCustomCall:
		return customCall(v, ops)
	default:
		if op.IsBinaryElementwise() {
			return binary(v, ops[0], ops[1])
		} else if op.IsUnaryElementwise() {
			return unary(v, ops[0])
		} else {
			return nil, unsupported(v, "cannot evaluate opcode %s", op)
		}
	}
}

func (self *_Frame) while(v *hlo.Instruction, init *hlo.Literal) (*hlo.Literal, error) {
	cond, body := v.WhileCondition(), v.WhileBody()
	state := init

	/* run the body until the condition turns false */
	for i := 0; ; i++ {
		if i > self.ev.opts.MaxLoopIterations {
			return nil, unsupported(v, "loop did not finish after %d iterations", self.ev.opts.MaxLoopIterations)
		}
		ok, err := self.ev.Evaluate(cond, state)
		if err != nil {
			return nil, err
		}
		if !ok.Bool(0) {
			return state, nil
		}
		if state, err = self.ev.Evaluate(body, state); err != nil {
			return nil, err
		}
	}
}

// conditional picks branch 0 on true and 1 on false for predicates, out of
// range indices select the last branch.
func (self *_Frame) conditional(v *hlo.Instruction, ops []*hlo.Literal) (*hlo.Literal, error) {
	nb := v.BranchCount()
	sel := ops[0]

	/* find the branch */
	var idx int
	if sel.Shape.Elem == hlo.PRED {
		if !sel.Bool(0) {
			idx = 1
		}
	} else if i := sel.Int(0); i < 0 || i >= int64(nb) {
		idx = nb - 1
	} else {
		idx = int(i)
	}
	return self.ev.Evaluate(v.BranchComputation(idx), ops[idx+1])
}
