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

package debug

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cloudwego/hloopt"
	"github.com/cloudwego/hloopt/internal/hlo"
)

func TestGetStats(t *testing.T) {
	m := hlo.NewModule("stats", hlo.DefaultModuleConfig())
	b := hlo.NewBuilder("main")
	x := b.Parameter(0, hlo.MakeScalarShape(hlo.F32), "x")
	b.Convert(b.Convert(x, hlo.F64), hlo.F32)
	m.AddEntryComputation(b.Build(nil))

	/* one pipeline run over a module with something to fold */
	before := GetStats()
	changed, err := hloopt.OptimizeModule(m)
	require.NoError(t, err)
	require.True(t, changed)
	after := GetStats()

	require.Equal(t, before.Pipeline.Runs+1, after.Pipeline.Runs)
	require.GreaterOrEqual(t, after.Pipeline.Exhausted, before.Pipeline.Exhausted)
	fp := after.Passes["simplify-fp-conversions"]
	require.Equal(t, before.Passes["simplify-fp-conversions"].Runs+1, fp.Runs)
	require.Equal(t, before.Passes["simplify-fp-conversions"].Changed+1, fp.Changed)
	require.Zero(t, fp.Failed)
	require.NotZero(t, after.Passes["dce"].Runs)
}
