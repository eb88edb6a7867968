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
	"strings"

	"github.com/cloudwego/hloopt/internal/opts"
	"github.com/cloudwego/hloopt/internal/status"
)

type _PassDescriptor struct {
	name string
	desc string
	new  func(o *opts.Options) Pass
}

var _passes = [...]_PassDescriptor{
	{name: "conditional-canonicalizer", desc: "Wrap Conditional Branch Results in Tuples", new: func(*opts.Options) Pass { return NewConditionalCanonicalizer() }},
	{name: "stable-sort-expander", desc: "Stable Sort Expansion", new: func(*opts.Options) Pass { return NewStableSortExpander() }},
	{name: "simplify-sorts", desc: "Unused Sort Operand Elimination", new: func(*opts.Options) Pass { return new(SortSimplifier) }},
	{name: "simplify-while-loops", desc: "While Loop Simplification", new: func(o *opts.Options) Pass { return NewWhileLoopSimplifier(o.MaxTripCountEval) }},
	{name: "simplify-fp-conversions", desc: "Floating-Point Conversion Chain Folding", new: func(*opts.Options) Pass { return new(FpConversionSimplifier) }},
	{name: "tuple-simplifier", desc: "Tuple Forwarding", new: func(*opts.Options) Pass { return new(TupleSimplifier) }},
	{name: "dce", desc: "Dead Code Elimination", new: func(*opts.Options) Pass { return new(DCE) }},
}

var _DefaultPasses = []string{
	"conditional-canonicalizer",
	"stable-sort-expander",
	"fix(simplify-sorts, simplify-while-loops, tuple-simplifier, dce)",
	"simplify-fp-conversions",
	"dce",
}

// Names lists every registered pass.
func Names() []string {
	ret := make([]string, len(_passes))
	for i, p := range _passes {
		ret[i] = p.name
	}
	return ret
}

// Describe returns the human readable description of a pass.
func Describe(name string) (string, error) {
	for _, p := range _passes {
		if p.name == name {
			return p.desc, nil
		}
	}
	return "", status.NotFound("pass", name)
}

// New creates the pass registered under name.
func New(name string, o *opts.Options) (Pass, error) {
	for _, p := range _passes {
		if p.name == name {
			return p.new(o), nil
		}
	}
	return nil, status.NotFound("pass", name)
}

// Build creates a pipeline from a list of pass names. An entry of the form
// fix(a, b, ...) groups the listed passes and runs them to a fixpoint.
func Build(name string, specs []string, o opts.Options) (*Pipeline, error) {
	ret := NewPipeline(name, o)
	for _, spec := range specs {
		p, err := parseEntry(strings.TrimSpace(spec), &o)
		if err != nil {
			return nil, err
		}
		ret.AddPass(p)
	}
	return ret, nil
}

func parseEntry(spec string, o *opts.Options) (Pass, error) {
	if !strings.HasPrefix(spec, "fix(") {
		return New(spec, o)
	}

	/* fixpoint group */
	if !strings.HasSuffix(spec, ")") {
		return nil, status.InvalidArgument("unterminated fixpoint group: %q", spec)
	}
	body := strings.TrimSpace(spec[4 : len(spec)-1])
	if body == "" {
		return nil, status.InvalidArgument("empty fixpoint group")
	}

	/* every member must be a plain pass */
	var group []Pass
	for _, item := range strings.Split(body, ",") {
		p, err := New(strings.TrimSpace(item), o)
		if err != nil {
			return nil, err
		}
		group = append(group, p)
	}

	/* a single pass needs no wrapping pipeline */
	var inner Pass
	if len(group) == 1 {
		inner = group[0]
	} else {
		pl := NewPipeline(groupName(group), *o, group...)
		pl.group = true
		inner = pl
	}
	max := o.MaxFixpointIterations
	if max <= 0 {
		max = opts.MaxFixpointIterations
	}
	return Fix(inner, max).WithLogger(o.Log()), nil
}

// DefaultPipeline builds the pipeline named by o.Passes, or the default
// pipeline when no passes are configured.
func DefaultPipeline(o opts.Options) (*Pipeline, error) {
	specs := o.Passes
	if specs == nil {
		specs = _DefaultPasses
	}
	return Build("default", specs, o)
}

// DefaultPasses returns the pass list of the default pipeline.
func DefaultPasses() []string {
	return append([]string(nil), _DefaultPasses...)
}
