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
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cloudwego/hloopt/internal/hlo"
	"github.com/cloudwego/hloopt/internal/opts"
)

// Pass rewrites a module in place and reports whether anything changed.
//
// A pass that fails must not leave a half rewritten module behind, so passes
// validate everything they rely on before the first mutation. Running a pass
// twice in a row must report no change the second time.
type Pass interface {
	Name() string
	Run(m *hlo.Module) (bool, error)
}

// Pipeline runs an ordered list of passes once.
type Pipeline struct {
	name   string
	group  bool
	passes []Pass
	opts   opts.Options
}

func NewPipeline(name string, o opts.Options, passes ...Pass) *Pipeline {
	return &Pipeline{
		name:   name,
		opts:   o,
		passes: passes,
	}
}

func (self *Pipeline) Name() string {
	return self.name
}

func (self *Pipeline) AddPass(p Pass) *Pipeline {
	self.passes = append(self.passes, p)
	return self
}

func (self *Pipeline) Passes() []Pass {
	return append([]Pass(nil), self.passes...)
}

// PassNames returns the names of the top level passes. A fixpoint group is a
// single entry named fix(a, b, ...).
func (self *Pipeline) PassNames() []string {
	var ret []string
	for _, p := range self.passes {
		ret = append(ret, p.Name())
	}
	return ret
}

func (self *Pipeline) Run(m *hlo.Module) (bool, error) {
	changed := false
	log := self.opts.Log()

	/* groups inside a fixpoint are not pipelines of their own */
	if !self.group {
		countPipeline()
	}

	/* run every pass in order */
	for _, p := range self.passes {
		ok, err := self.runPass(log, p, m)
		if err != nil {
			return false, err
		}
		changed = changed || ok
	}
	return changed, nil
}

func (self *Pipeline) runPass(log *slog.Logger, p Pass, m *hlo.Module) (bool, error) {
	start := time.Now()
	changed, err := p.Run(m)
	elapsed := time.Since(start)
	recordRun(p.Name(), changed, err, elapsed)

	/* the module may be unusable after a failed pass */
	if err != nil {
		log.Error("pass failed", "pipeline", self.name, "pass", p.Name(), "error", err)
		return false, errors.Wrapf(err, "pass %s", p.Name())
	}

	/* check the invariants again if the module changed */
	log.Debug("pass finished", "pipeline", self.name, "pass", p.Name(), "changed", changed, "elapsed", elapsed)
	if changed && self.opts.Verify {
		if err = hlo.Verify(m, hlo.VerifyOptions{PostOptimizations: self.opts.PostOptimizations}); err != nil {
			log.Error("verification failed", "pipeline", self.name, "pass", p.Name(), "error", err)
			return false, errors.Wrapf(err, "verification after pass %s", p.Name())
		}
	}
	return changed, nil
}

// Fixpoint repeats a pass until it stops changing the module.
type Fixpoint struct {
	pass Pass
	max  int
	log  *slog.Logger
}

// Fix wraps p so that it runs until it reports no change, at most max times.
func Fix(p Pass, max int) *Fixpoint {
	if max <= 0 {
		panic("hloopt: invalid fixpoint iteration limit")
	}
	return &Fixpoint{
		pass: p,
		max:  max,
		log:  slog.Default(),
	}
}

func (self *Fixpoint) WithLogger(log *slog.Logger) *Fixpoint {
	self.log = log
	return self
}

func (self *Fixpoint) Name() string {
	return "fix(" + self.pass.Name() + ")"
}

// Run reports changed when any iteration changed the module. Exhausting the
// iteration budget is not an error, the module is valid after every round.
func (self *Fixpoint) Run(m *hlo.Module) (bool, error) {
	changed := false
	for i := 0; i < self.max; i++ {
		ok, err := self.pass.Run(m)
		if err != nil {
			return false, err
		}
		if !ok {
			return changed, nil
		}
		changed = true
	}

	/* still changing after the last round */
	countExhausted()
	self.log.Warn("fixpoint iteration limit reached", "pass", self.pass.Name(), "iterations", self.max)
	return true, nil
}

func groupName(passes []Pass) string {
	names := make([]string, len(passes))
	for i, p := range passes {
		names[i] = p.Name()
	}
	return strings.Join(names, ", ")
}
