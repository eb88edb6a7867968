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
	"log/slog"
	"sync"

	"github.com/cloudwego/hloopt/internal/status"
)

// PlatformID names a device platform.
type PlatformID string

// ComputationPlacer decides which device runs a (replica, computation) pair.
type ComputationPlacer interface {
	DeviceId(replica int, computation int, replicaCount int, computationCount int) (int64, error)
	AssignDevices(replicaCount int, computationCount int) (*DeviceAssignment, error)
}

// CreationFunc builds the placer of a platform. It is called once.
type CreationFunc func() ComputationPlacer

// DefaultPlacer numbers the devices computation by computation.
type DefaultPlacer struct{}

func (DefaultPlacer) DeviceId(replica int, computation int, replicaCount int, computationCount int) (int64, error) {
	if replica < 0 || replica >= replicaCount || computation < 0 || computation >= computationCount {
		return 0, status.InvalidArgument("(%d, %d) out of range for %d replicas and %d computations", replica, computation, replicaCount, computationCount)
	}
	return int64(computation*replicaCount + replica), nil
}

func (self DefaultPlacer) AssignDevices(replicaCount int, computationCount int) (*DeviceAssignment, error) {
	return assignDevices(self, replicaCount, computationCount)
}

func assignDevices(p ComputationPlacer, replicaCount int, computationCount int) (*DeviceAssignment, error) {
	ret, err := NewDeviceAssignment(replicaCount, computationCount)
	if err != nil {
		return nil, err
	}

	/* fill the table */
	for r := 0; r < replicaCount; r++ {
		for c := 0; c < computationCount; c++ {
			id, err := p.DeviceId(r, c, replicaCount, computationCount)
			if err != nil {
				return nil, err
			}
			ret.Set(r, c, id)
		}
	}
	return ret, nil
}

type _PlacerEntry struct {
	create CreationFunc
	placer ComputationPlacer
}

var (
	placerLock sync.Mutex
	placers    = make(map[PlatformID]*_PlacerEntry)
)

// RegisterComputationPlacer makes a placer available for a platform. The
// first registration wins, later ones are ignored.
func RegisterComputationPlacer(id PlatformID, fn CreationFunc) {
	placerLock.Lock()
	defer placerLock.Unlock()

	/* keep the first one */
	if _, ok := placers[id]; ok {
		slog.Warn("computation placer already registered", "platform", string(id))
		return
	}
	placers[id] = &_PlacerEntry{create: fn}
}

// GetForPlatform returns the placer of a platform, creating it on first use.
func GetForPlatform(id PlatformID) (ComputationPlacer, error) {
	placerLock.Lock()
	defer placerLock.Unlock()

	/* look up the platform */
	e, ok := placers[id]
	if !ok {
		return nil, status.NotFound("computation placer for platform", string(id))
	}

	/* create the singleton on first use */
	if e.placer == nil {
		e.placer = e.create()
	}
	return e.placer, nil
}
