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
	"sync/atomic"
	"time"

	"github.com/cloudwego/hloopt/internal/passes"
)

// A Stats records statistics about the optimizer in this process.
type Stats struct {
	Pipeline PipelineStats
	Passes   map[string]PassStats
}

// A PipelineStats records how often pipelines ran and how often a fixpoint
// group ran out of rounds.
type PipelineStats struct {
	Runs      int
	Exhausted int
}

// A PassStats records the runs of a single pass, keyed by its name.
type PassStats struct {
	Runs    int
	Changed int
	Failed  int
	Elapsed time.Duration
}

// GetStats returns statistics of the optimizer.
func GetStats() Stats {
	ret := Stats{
		Pipeline: PipelineStats{
			Runs:      int(atomic.LoadUint64(&passes.PipelineCount)),
			Exhausted: int(atomic.LoadUint64(&passes.FixpointExhausted)),
		},
		Passes: make(map[string]PassStats),
	}
	for name, st := range passes.GetStats() {
		ret.Passes[name] = PassStats(st)
	}
	return ret
}
