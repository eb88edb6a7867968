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
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/hloopt/internal/hloproto"
	"github.com/cloudwego/hloopt/internal/status"
)

func requireSameComputations(t *testing.T, expect *Module, actual *Module) {
	require.Equal(t, expect.ComputationCount(), actual.ComputationCount())
	require.Equal(t, expect.EntryComputation().Name(), actual.EntryComputation().Name())
	for _, c := range expect.Computations() {
		v, err := actual.ComputationByName(c.Name())
		require.NoError(t, err)
		require.Equal(t, c.String(), v.String())
	}
}

func TestProto_RoundTrip(t *testing.T) {
	for _, m := range []*Module{buildChainModule(), buildSortModule(), buildCountingLoop(4)} {
		p, err := MakeHloProto(m)
		require.NoError(t, err)

		/* through the thrift binary form */
		buf, err := hloproto.Marshal(p)
		require.NoError(t, err)
		var bin hloproto.HloProto
		require.NoError(t, hloproto.Unmarshal(buf, &bin))
		requireSameProto(t, p, &bin)

		/* back to a module */
		m2, err := CreateModuleFromProto(&bin, ModuleConfigFromProto(&bin), false)
		require.NoError(t, err)
		require.Equal(t, m.UniqueId(), m2.UniqueId())
		requireSameComputations(t, m, m2)
		requireUsersConsistent(t, m2.EntryComputation())
	}
}

func requireSameProto(t *testing.T, expect *hloproto.HloProto, actual *hloproto.HloProto) {
	a, err := hloproto.MarshalYAML(expect)
	require.NoError(t, err)
	b, err := hloproto.MarshalYAML(actual)
	require.NoError(t, err)
	require.Equal(t, string(a), string(b), spew.Sdump(actual))
}

func TestProto_YAML(t *testing.T) {
	m := buildCountingLoop(2)
	p, err := MakeHloProto(m)
	require.NoError(t, err)

	/* through the text form */
	text, err := hloproto.MarshalYAML(p)
	require.NoError(t, err)
	var p2 hloproto.HloProto
	require.NoError(t, hloproto.UnmarshalYAML(text, &p2))
	m2, err := CreateModuleFromProto(&p2, m.Config(), false)
	require.NoError(t, err)
	requireSameComputations(t, m, m2)
}

func TestProto_EntryShapes(t *testing.T) {
	p, err := MakeHloProto(buildCountingLoop(2))
	require.NoError(t, err)

	params, err := EntryComputationParameterShapes(p)
	require.NoError(t, err)
	require.Len(t, params, 1)
	require.Equal(t, "f32[4]", params[0].String())

	out, err := EntryComputationOutputShape(p)
	require.NoError(t, err)
	require.Equal(t, "f32[4]", out.String())

	/* no entry */
	p.Module.EntryComputationId = 1000
	_, err = EntryComputationOutputShape(p)
	require.True(t, status.IsNotFound(err), "%v", err)
	_, err = EntryComputationParameterShapes(p)
	require.True(t, status.IsNotFound(err), "%v", err)
}

func TestProto_Invalid(t *testing.T) {
	p, err := MakeHloProto(buildChainModule())
	require.NoError(t, err)
	entry, ok := p.Module.EntryComputation()
	require.True(t, ok)

	/* forward references are rejected */
	last := entry.Instructions[len(entry.Instructions)-1]
	entry.Instructions[0].OperandIds = []int64{last.Id}
	_, err = CreateModuleFromProto(p, DefaultModuleConfig(), false)
	require.True(t, status.IsInvalidArgument(err), "%v", err)

	/* unknown opcodes too */
	entry.Instructions[0].OperandIds = nil
	entry.Instructions[0].Opcode = "fft"
	_, err = CreateModuleFromProto(p, DefaultModuleConfig(), false)
	require.True(t, status.IsInvalidArgument(err), "%v", err)
}

func TestProto_ParameterNumberOutOfRange(t *testing.T) {
	for _, n := range []int64{1 << 25, 1 << 40} {
		p, err := MakeHloProto(buildCountingLoop(2))
		require.NoError(t, err)
		entry, ok := p.Module.EntryComputation()
		require.True(t, ok)
		for _, ip := range entry.Instructions {
			if ip.Opcode == OpParameter.String() {
				ip.ParameterNumber = n
			}
		}

		/* the number arrives through the binary form */
		buf, err := hloproto.Marshal(p)
		require.NoError(t, err)
		bin := new(hloproto.HloProto)
		require.NoError(t, hloproto.Unmarshal(buf, bin))

		_, err = CreateModuleFromProto(bin, DefaultModuleConfig(), false)
		require.True(t, status.IsInvalidArgument(err), "%v", err)
		_, err = EntryComputationParameterShapes(bin)
		require.True(t, status.IsInvalidArgument(err), "%v", err)
	}
}

func TestProto_MissingParts(t *testing.T) {
	_, err := CreateModuleFromProto(new(hloproto.HloProto), DefaultModuleConfig(), false)
	require.True(t, status.IsInvalidArgument(err), "%v", err)
	_, err = EntryComputationOutputShape(new(hloproto.HloProto))
	require.True(t, status.IsInvalidArgument(err), "%v", err)
	require.Equal(t, DefaultModuleConfig(), ModuleConfigFromProto(new(hloproto.HloProto)))

	/* an instruction without a shape */
	p, err := MakeHloProto(buildChainModule())
	require.NoError(t, err)
	entry, _ := p.Module.EntryComputation()
	entry.Instructions[0].Shape = nil
	_, err = CreateModuleFromProto(p, DefaultModuleConfig(), false)
	require.True(t, status.IsInvalidArgument(err), "%v", err)
}

func TestProto_VerifiesOnLoad(t *testing.T) {
	m := NewModule("mixed", DefaultModuleConfig())
	b := NewBuilder("main")
	x := b.Parameter(0, MakeShape(F32, 2), "x")
	y := b.Parameter(1, MakeShape(F16, 2), "y")
	b.Add(NewBinary(x.Shape(), OpMultiply, x, y))
	m.AddEntryComputation(b.Build(nil))

	p, err := MakeHloProto(m)
	require.NoError(t, err)
	_, err = CreateModuleFromProto(p, DefaultModuleConfig(), false)
	require.True(t, status.IsInvariant(err), "%v", err)
	_, err = CreateModuleFromProto(p, DefaultModuleConfig(), true)
	require.NoError(t, err)
}
