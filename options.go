/*
 * Copyright 2022 CloudWeGo Authors
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

package hloopt

import (
	"fmt"
	"log/slog"

	"github.com/cloudwego/hloopt/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

// WithMaxIterations sets the number of rounds a fixpoint group may run before
// it gives up and moves on.
//
// Running out of rounds is not an error, the module is still valid, it is
// just not fully simplified.
//
// The default value of this option is "25".
func WithMaxIterations(n int) Option {
	if n < 1 {
		panic(fmt.Sprintf("hloopt: invalid fixpoint iteration limit: %d", n))
	} else {
		return func(o *opts.Options) { o.MaxFixpointIterations = n }
	}
}

// WithMaxTripCount sets how many iterations the while loop simplifier
// simulates when it tries to compute the trip count of a loop.
//
// The default value of this option is "128".
func WithMaxTripCount(n int) Option {
	if n < 1 {
		panic(fmt.Sprintf("hloopt: invalid trip count limit: %d", n))
	} else {
		return func(o *opts.Options) { o.MaxTripCountEval = n }
	}
}

// WithVerifier turns the structural verifier on or off. When it is on, the
// verifier runs after every pass that reported a change, and a violation
// aborts the pipeline.
func WithVerifier(v bool) Option {
	return func(o *opts.Options) { o.Verify = v }
}

// WithPostOptimizations relaxes the precision mixing checks, which are only
// allowed on modules that already went through optimization.
func WithPostOptimizations(v bool) Option {
	return func(o *opts.Options) { o.PostOptimizations = v }
}

// WithLogger sets the logger the pipeline reports to, slog.Default() is used
// when it is not set.
func WithLogger(log *slog.Logger) Option {
	return func(o *opts.Options) { o.Logger = log }
}

// WithPasses replaces the default pass list. Each entry is either a pass
// name or a group of the form "fix(a, b, ...)".
func WithPasses(specs ...string) Option {
	if len(specs) == 0 {
		panic("hloopt: empty pass list")
	} else {
		specs = append([]string(nil), specs...)
		return func(o *opts.Options) { o.Passes = specs }
	}
}

// LoadPipeline reads a TOML pipeline file and returns the option that applies
// it. Options given after it still take precedence.
func LoadPipeline(path string) (Option, error) {
	cfg, err := opts.LoadPipelineConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg.Apply, nil
}

// SetMaxIterations sets the default fixpoint iteration limit for all
// pipelines from now on.
//
// This value can also be configured with the `HLOOPT_MAX_FIXPOINT_ITERATIONS`
// environment variable.
//
// Returns the old opts.MaxFixpointIterations value.
func SetMaxIterations(n int) int {
	n, opts.MaxFixpointIterations = opts.MaxFixpointIterations, n
	return n
}

// SetMaxTripCount sets the default trip count evaluation limit.
//
// This value can also be configured with the `HLOOPT_MAX_TRIP_COUNT_EVAL`
// environment variable.
//
// Returns the old opts.MaxTripCountEval value.
func SetMaxTripCount(n int) int {
	n, opts.MaxTripCountEval = opts.MaxTripCountEval, n
	return n
}

func buildOptions(options []Option) opts.Options {
	ret := opts.GetDefaultOptions()
	for _, fn := range options {
		fn(&ret)
	}
	return ret
}
