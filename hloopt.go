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
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/cloudwego/hloopt/internal/hlo"
	"github.com/cloudwego/hloopt/internal/hloproto"
	"github.com/cloudwego/hloopt/internal/passes"
)

type (
	// Module is a graph of computations with one entry computation.
	Module = hlo.Module

	Computation = hlo.Computation
	Instruction = hlo.Instruction
	Shape       = hlo.Shape
)

// Format selects how a module is persisted.
type Format int

const (
	// Binary is the Thrift binary encoding of the module proto.
	Binary Format = iota

	// YAML is the human readable text form of the module proto.
	YAML
)

func (self Format) String() string {
	switch self {
	case Binary:
		return "binary"
	case YAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// FormatOf picks the format of a file by its extension, anything that is not
// YAML is taken as binary.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return Binary
	}
}

func decode(data []byte, format Format) (*hloproto.HloProto, error) {
	var err error
	ret := new(hloproto.HloProto)

	/* parse the proto */
	switch format {
	case Binary:
		err = hloproto.Unmarshal(data, ret)
	case YAML:
		err = hloproto.UnmarshalYAML(data, ret)
	default:
		return nil, FormatError{Format: format, Note: "unsupported format"}
	}

	/* keep the parser message */
	if err != nil {
		return nil, FormatError{Format: format, Note: err.Error()}
	} else {
		return ret, nil
	}
}

func encode(p *hloproto.HloProto, format Format) ([]byte, error) {
	switch format {
	case Binary:
		return hloproto.Marshal(p)
	case YAML:
		return hloproto.MarshalYAML(p)
	default:
		return nil, FormatError{Format: format, Note: "unsupported format"}
	}
}

// LoadModule parses and verifies a persisted module. Only the
// WithPostOptimizations option is consulted.
func LoadModule(data []byte, format Format, options ...Option) (*Module, error) {
	o := buildOptions(options)
	p, err := decode(data, format)
	if err != nil {
		return nil, err
	}
	return hlo.CreateModuleFromProto(p, hlo.ModuleConfigFromProto(p), o.PostOptimizations)
}

// StoreModule persists a module in the given format.
func StoreModule(m *Module, format Format) ([]byte, error) {
	p, err := hlo.MakeHloProto(m)
	if err != nil {
		return nil, err
	}
	return encode(p, format)
}

// OptimizeModule runs the pipeline described by the options over m in place,
// and reports whether anything changed.
func OptimizeModule(m *Module, options ...Option) (bool, error) {
	p, err := passes.DefaultPipeline(buildOptions(options))
	if err != nil {
		return false, err
	}
	return p.Run(m)
}

// Optimize loads a persisted module, runs the pipeline over it and persists
// the result in the same format.
func Optimize(data []byte, format Format, options ...Option) ([]byte, error) {
	m, err := LoadModule(data, format, options...)
	if err != nil {
		return nil, errors.Wrap(err, "load module")
	}
	if _, err = OptimizeModule(m, options...); err != nil {
		return nil, errors.Wrapf(err, "optimize module %s", m.Name())
	}
	return StoreModule(m, format)
}

// PassNames lists the top level passes of the pipeline described by the
// options, groups are rendered as "fix(a, b, ...)".
func PassNames(options ...Option) ([]string, error) {
	p, err := passes.DefaultPipeline(buildOptions(options))
	if err != nil {
		return nil, err
	}
	return p.PassNames(), nil
}

// EntryShapes reads the parameter shapes and the result shape of the entry
// computation, without loading the rest of the module.
func EntryShapes(data []byte, format Format) ([]string, string, error) {
	p, err := decode(data, format)
	if err != nil {
		return nil, "", err
	}

	/* parameters */
	params, err := hlo.EntryComputationParameterShapes(p)
	if err != nil {
		return nil, "", err
	}
	ret := make([]string, len(params))
	for i, s := range params {
		ret[i] = s.String()
	}

	/* result */
	out, err := hlo.EntryComputationOutputShape(p)
	if err != nil {
		return nil, "", err
	}
	return ret, out.String(), nil
}
