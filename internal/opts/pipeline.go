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

package opts

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// PipelineConfig is the TOML description of a pass pipeline:
//
//	name           = "default"
//	max_iterations = 25
//	verify         = true
//	passes         = ["conditional-canonicalizer", "fix(simplify-sorts, dce)"]
//
// Entries of the form fix(a, b, ...) run the listed passes to a fixpoint.
type PipelineConfig struct {
	Name          string   `toml:"name"`
	MaxIterations int      `toml:"max_iterations"`
	Verify        bool     `toml:"verify"`
	Passes        []string `toml:"passes"`

	hasVerify bool
}

func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read pipeline config")
	}
	ret, err := ParsePipelineConfig(data)
	if err != nil {
		return nil, errors.Wrapf(err, "pipeline config %s", path)
	}
	return ret, nil
}

func ParsePipelineConfig(data []byte) (*PipelineConfig, error) {
	tree, err := toml.LoadBytes(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse toml")
	}

	/* decode the known keys */
	ret := new(PipelineConfig)
	if err = tree.Unmarshal(ret); err != nil {
		return nil, errors.Wrap(err, "decode toml")
	}

	/* verify defaults to on, so only an explicit key turns it off */
	ret.hasVerify = tree.Has("verify")
	if ret.MaxIterations < 0 {
		return nil, errors.Errorf("invalid max_iterations: %d", ret.MaxIterations)
	}
	if len(ret.Passes) == 0 {
		return nil, errors.New("pipeline has no passes")
	}
	return ret, nil
}

// Marshal renders the config in the form LoadPipelineConfig reads.
func (self *PipelineConfig) Marshal() ([]byte, error) {
	ret, err := toml.Marshal(*self)
	if err != nil {
		return nil, errors.Wrap(err, "encode toml")
	}
	return ret, nil
}

// Apply overrides the options with the values the config sets.
func (self *PipelineConfig) Apply(o *Options) {
	if self.MaxIterations != 0 {
		o.MaxFixpointIterations = self.MaxIterations
	}
	if self.hasVerify {
		o.Verify = self.Verify
	}
	o.Passes = append([]string(nil), self.Passes...)
}
