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

package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/hloopt"
	"github.com/cloudwego/hloopt/internal/hlo"
	"github.com/cloudwego/hloopt/internal/opts"
	"github.com/cloudwego/hloopt/internal/passes"
)

func run(t *testing.T, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeModule(t *testing.T, m *hlo.Module, name string) string {
	path := filepath.Join(t.TempDir(), name)
	data, err := hloopt.StoreModule(m, hloopt.FormatOf(path))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// chainModule converts an f32 vector through bf16 and f32 down to f16.
func chainModule() *hlo.Module {
	m := hlo.NewModule("chain", hlo.DefaultModuleConfig())
	b := hlo.NewBuilder("main")
	v := b.Parameter(0, hlo.MakeShape(hlo.F32, 2), "x")
	for _, elem := range []hlo.PrimitiveType{hlo.BF16, hlo.F32, hlo.F16} {
		v = b.Convert(v, elem)
	}
	m.AddEntryComputation(b.Build(nil))
	return m
}

func addModule() *hlo.Module {
	m := hlo.NewModule("add", hlo.DefaultModuleConfig())
	b := hlo.NewBuilder("main")
	x := b.Parameter(0, hlo.MakeScalarShape(hlo.S32), "x")
	y := b.Parameter(1, hlo.MakeScalarShape(hlo.S32), "y")
	b.Binary(hlo.OpAdd, x, y)
	m.AddEntryComputation(b.Build(nil))
	return m
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"opt", "passes", "place", "shapes", "eval"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	verbose := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
}

func TestOpt(t *testing.T) {
	in := writeModule(t, chainModule(), "chain.yaml")
	out := filepath.Join(filepath.Dir(in), "chain.bin")

	/* text in, binary out */
	stdout, stderr, err := run(t, "opt", in, "-o", out, "--report")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, "simplify-fp-conversions")
	assert.Contains(t, stdout, "pipelines:")
	assert.Contains(t, stderr, "module optimized")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	m, err := hloopt.LoadModule(data, hloopt.Binary)
	require.NoError(t, err)
	root := m.EntryComputation().Root()
	assert.Equal(t, hlo.OpConvert, root.Opcode())
	assert.Equal(t, hlo.OpParameter, root.Operand(0).Opcode())
}

func TestOpt_Stdout(t *testing.T) {
	in := writeModule(t, chainModule(), "chain.yml")
	stdout, stderr, err := run(t, "opt", in, "--passes", "dce", "--verbose")
	require.NoError(t, err, stderr)
	assert.Contains(t, stderr, "pass=dce")

	/* only dce ran, the chain is still there */
	m, err := hloopt.LoadModule([]byte(stdout), hloopt.YAML)
	require.NoError(t, err)
	assert.Equal(t, 4, m.InstructionCount())
}

func TestOpt_Errors(t *testing.T) {
	in := writeModule(t, chainModule(), "chain.yaml")

	_, _, err := run(t, "opt", in, "--passes", "unroll-everything")
	assert.True(t, hloopt.IsNotFound(err), "%v", err)
	_, _, err = run(t, "opt", in, "--max-iterations", "-2")
	assert.Error(t, err)
	_, _, err = run(t, "opt", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	_, _, err = run(t, "opt")
	assert.Error(t, err)
}

func TestPasses(t *testing.T) {
	stdout, _, err := run(t, "passes")
	require.NoError(t, err)
	for _, name := range []string{"simplify-sorts", "stable-sort-expander", "simplify-while-loops", "conditional-canonicalizer", "simplify-fp-conversions", "dce"} {
		assert.Contains(t, stdout, name)
	}
	assert.Contains(t, stdout, "pipeline:")
	assert.Contains(t, stdout, "fix(simplify-sorts, simplify-while-loops, tuple-simplifier, dce)")

	/* a pipeline file */
	path := filepath.Join(t.TempDir(), "p.toml")
	require.NoError(t, os.WriteFile(path, []byte("passes = [\"tuple-simplifier\"]\n"), 0o644))
	stdout, _, err = run(t, "passes", "--pipeline", path)
	require.NoError(t, err)
	assert.NotContains(t, stdout, "fix(")
}

func TestPasses_Dump(t *testing.T) {
	stdout, _, err := run(t, "passes", "--dump")
	require.NoError(t, err)

	/* the dump lists the default pipeline */
	cfg, err := opts.ParsePipelineConfig([]byte(stdout))
	require.NoError(t, err, stdout)
	require.Equal(t, passes.DefaultPasses(), cfg.Passes)

	/* and loads back into the same pipeline */
	path := filepath.Join(t.TempDir(), "default.toml")
	require.NoError(t, os.WriteFile(path, []byte(stdout), 0o644))
	custom, _, err := run(t, "passes", "--pipeline", path)
	require.NoError(t, err)
	builtin, _, err := run(t, "passes")
	require.NoError(t, err)
	assert.Equal(t, builtin, custom)

	_, _, err = run(t, "passes", "--dump", "--pipeline", path)
	assert.Error(t, err)
}

func TestPlace(t *testing.T) {
	stdout, _, err := run(t, "place", "--replicas", "1", "--computations", "1")
	require.NoError(t, err)
	assert.Equal(t, "Computations: 1 Replicas: 1\nComputation 0 Devices: 0\n", stdout)

	stdout, _, err = run(t, "place", "--yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "replica_count: 1")

	_, _, err = run(t, "place", "--platform", "tpu")
	assert.True(t, hloopt.IsNotFound(err), "%v", err)
	_, _, err = run(t, "place", "--replicas", "0")
	assert.True(t, hloopt.IsInvalidArgument(err), "%v", err)
}

func TestShapes(t *testing.T) {
	m := hlo.NewModule("mixed", hlo.DefaultModuleConfig())
	b := hlo.NewBuilder("main")
	x := b.Parameter(0, hlo.MakeShape(hlo.F32, 2), "x")
	y := b.Parameter(1, hlo.MakeShape(hlo.BF16, 2), "y")
	b.Add(hlo.NewBinary(x.Shape(), hlo.OpAdd, x, y))
	m.AddEntryComputation(b.Build(nil))

	/* shapes do not need a verified module */
	stdout, _, err := run(t, "shapes", writeModule(t, m, "mixed.bin"))
	require.NoError(t, err)
	assert.Equal(t, "param 0: f32[2]\nparam 1: bf16[2]\nresult: f32[2]\n", stdout)
}

func TestEval(t *testing.T) {
	path := writeModule(t, addModule(), "add.yaml")
	stdout, _, err := run(t, "eval", path, "--arg", "2", "--arg", "40")
	require.NoError(t, err)
	assert.Equal(t, "42\n", stdout)

	_, _, err = run(t, "eval", path, "--arg", "2")
	assert.Error(t, err)
	_, _, err = run(t, "eval", path, "--arg", "2", "--arg", "forty")
	assert.Error(t, err)
}

func TestParseScalar(t *testing.T) {
	v, err := parseScalar(hlo.MakeScalarShape(hlo.PRED), "true")
	require.NoError(t, err)
	assert.Equal(t, "true", v.String())
	v, err = parseScalar(hlo.MakeScalarShape(hlo.F32), "0.5")
	require.NoError(t, err)
	assert.Equal(t, "0.5", v.String())
	_, err = parseScalar(hlo.MakeShape(hlo.S32, 3), "1")
	assert.Error(t, err)
}
