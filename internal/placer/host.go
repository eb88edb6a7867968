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

package placer

import (
	"runtime"

	"github.com/klauspost/cpuid/v2"

	"github.com/cloudwego/hloopt/internal/status"
)

const (
	HostPlatformID PlatformID = "host"
)

// HostPlacer places every (replica, computation) pair on its own logical
// core of the current machine.
type HostPlacer struct {
	DefaultPlacer
	cores int
}

func NewHostPlacer() *HostPlacer {
	n := cpuid.CPU.LogicalCores
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &HostPlacer{cores: n}
}

func (self *HostPlacer) Cores() int {
	return self.cores
}

func (self *HostPlacer) DeviceId(replica int, computation int, replicaCount int, computationCount int) (int64, error) {
	if replicaCount*computationCount > self.cores {
		return 0, status.InvalidArgument("%d replicas of %d computations need more than the %d host cores",
			replicaCount, computationCount, self.cores)
	}
	return self.DefaultPlacer.DeviceId(replica, computation, replicaCount, computationCount)
}

func (self *HostPlacer) AssignDevices(replicaCount int, computationCount int) (*DeviceAssignment, error) {
	return assignDevices(self, replicaCount, computationCount)
}

func init() {
	RegisterComputationPlacer(HostPlatformID, func() ComputationPlacer {
		return NewHostPlacer()
	})
}
