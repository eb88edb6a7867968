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
	"fmt"
	"strings"

	"github.com/cloudwego/hloopt/internal/hloproto"
	"github.com/cloudwego/hloopt/internal/status"
)

const (
	MaxDevices = 1 << 24
)

// LogicalID identifies a (replica, computation) pair of an assignment.
type LogicalID struct {
	ReplicaId     int
	ComputationId int
}

// DeviceAssignment maps every (replica, computation) pair to a device id.
// Its dimensions are fixed at construction.
type DeviceAssignment struct {
	replicas     int
	computations int
	devices      []int64
}

func NewDeviceAssignment(replicaCount int, computationCount int) (*DeviceAssignment, error) {
	if replicaCount <= 0 || computationCount <= 0 {
		return nil, status.InvalidArgument("invalid device assignment dimensions %dx%d", replicaCount, computationCount)
	}
	if int64(replicaCount)*int64(computationCount) > MaxDevices {
		return nil, status.InvalidArgument("device assignment %dx%d exceeds %d devices", replicaCount, computationCount, MaxDevices)
	}
	return &DeviceAssignment{
		replicas:     replicaCount,
		computations: computationCount,
		devices:      make([]int64, replicaCount*computationCount),
	}, nil
}

func (self *DeviceAssignment) ReplicaCount() int     { return self.replicas }
func (self *DeviceAssignment) ComputationCount() int { return self.computations }

func (self *DeviceAssignment) offset(replica int, computation int) int {
	if replica < 0 || replica >= self.replicas || computation < 0 || computation >= self.computations {
		panic(fmt.Sprintf("placer: (%d, %d) out of range for a %dx%d assignment", replica, computation, self.replicas, self.computations))
	}
	return replica*self.computations + computation
}

func (self *DeviceAssignment) Get(replica int, computation int) int64 {
	return self.devices[self.offset(replica, computation)]
}

func (self *DeviceAssignment) Set(replica int, computation int, device int64) {
	self.devices[self.offset(replica, computation)] = device
}

// LogicalIdForDevice scans the table for a device.
func (self *DeviceAssignment) LogicalIdForDevice(device int64) (LogicalID, error) {
	for i, v := range self.devices {
		if v == device {
			return LogicalID{
				ReplicaId:     i / self.computations,
				ComputationId: i % self.computations,
			}, nil
		}
	}
	return LogicalID{}, status.NotFound("device", device)
}

func (self *DeviceAssignment) ReplicaIdForDevice(device int64) (int, error) {
	if id, err := self.LogicalIdForDevice(device); err != nil {
		return 0, err
	} else {
		return id.ReplicaId, nil
	}
}

// GetDeviceToLogicalIdMap builds the reverse index of the whole table, for
// callers that look up many devices.
func (self *DeviceAssignment) GetDeviceToLogicalIdMap() map[int64]LogicalID {
	ret := make(map[int64]LogicalID, len(self.devices))
	for i, v := range self.devices {
		if _, ok := ret[v]; !ok {
			ret[v] = LogicalID{
				ReplicaId:     i / self.computations,
				ComputationId: i % self.computations,
			}
		}
	}
	return ret
}

// Serialize stores the table one computation at a time.
func (self *DeviceAssignment) Serialize() *hloproto.DeviceAssignmentProto {
	ret := &hloproto.DeviceAssignmentProto{
		ReplicaCount:       int32(self.replicas),
		ComputationCount:   int32(self.computations),
		ComputationDevices: make([]*hloproto.ComputationDevice, self.computations),
	}
	for c := range ret.ComputationDevices {
		ids := make([]int64, self.replicas)
		for r := range ids {
			ids[r] = self.Get(r, c)
		}
		ret.ComputationDevices[c] = &hloproto.ComputationDevice{ReplicaDeviceIds: ids}
	}
	return ret
}

// DeserializeDeviceAssignment checks the stored table against its declared
// dimensions before allocating anything.
func DeserializeDeviceAssignment(p *hloproto.DeviceAssignmentProto) (*DeviceAssignment, error) {
	if len(p.ComputationDevices) != int(p.ComputationCount) {
		return nil, status.InvalidArgument("expected %d computation devices, got %d", p.ComputationCount, len(p.ComputationDevices))
	}

	/* the table must be complete */
	for c, dev := range p.ComputationDevices {
		if dev == nil || len(dev.ReplicaDeviceIds) != int(p.ReplicaCount) {
			n := 0
			if dev != nil {
				n = len(dev.ReplicaDeviceIds)
			}
			return nil, status.InvalidArgument("computation %d has %d replica devices, want %d", c, n, p.ReplicaCount)
		}
	}

	/* allocate and fill */
	ret, err := NewDeviceAssignment(int(p.ReplicaCount), int(p.ComputationCount))
	if err != nil {
		return nil, err
	}
	for c, dev := range p.ComputationDevices {
		for r, id := range dev.ReplicaDeviceIds {
			ret.Set(r, c, id)
		}
	}
	return ret, nil
}

func (self *DeviceAssignment) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Computations: %d Replicas: %d\n", self.computations, self.replicas)
	for c := 0; c < self.computations; c++ {
		fmt.Fprintf(&sb, "Computation %d Devices:", c)
		for r := 0; r < self.replicas; r++ {
			fmt.Fprintf(&sb, " %d", self.Get(r, c))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
