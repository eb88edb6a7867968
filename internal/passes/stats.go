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
	"sync"
	"sync/atomic"
	"time"
)

// Stats records how a pass behaved over the lifetime of the process.
type Stats struct {
	Runs    int
	Changed int
	Failed  int
	Elapsed time.Duration
}

var (
	PipelineCount     uint64
	FixpointExhausted uint64
)

var (
	statsLock sync.Mutex
	passStats = make(map[string]*Stats)
)

func recordRun(name string, changed bool, err error, elapsed time.Duration) {
	statsLock.Lock()
	defer statsLock.Unlock()

	/* find or create the entry */
	st, ok := passStats[name]
	if !ok {
		st = new(Stats)
		passStats[name] = st
	}

	/* update the counters */
	st.Runs++
	st.Elapsed += elapsed
	if err != nil {
		st.Failed++
	} else if changed {
		st.Changed++
	}
}

// GetStats returns a snapshot of the per-pass counters.
func GetStats() map[string]Stats {
	statsLock.Lock()
	defer statsLock.Unlock()
	ret := make(map[string]Stats, len(passStats))
	for k, v := range passStats {
		ret[k] = *v
	}
	return ret
}

func countPipeline() {
	atomic.AddUint64(&PipelineCount, 1)
}

func countExhausted() {
	atomic.AddUint64(&FixpointExhausted, 1)
}
