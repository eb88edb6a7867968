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
	"strconv"
)

const (
	_DefaultMaxFixpointIterations = 25  // cutoff of every fixpoint group
	_DefaultMaxTripCountEval      = 128 // iterations simulated by trip count analysis
	_DefaultVerify                = 1   // verify after every pass that changed the module
)

var (
	MaxFixpointIterations = parseOrDefault("HLOOPT_MAX_FIXPOINT_ITERATIONS", _DefaultMaxFixpointIterations, 1)
	MaxTripCountEval      = parseOrDefault("HLOOPT_MAX_TRIP_COUNT_EVAL", _DefaultMaxTripCountEval, 1)
	Verify                = parseOrDefault("HLOOPT_VERIFY", _DefaultVerify, -1) != 0
)

func parseOrDefault(key string, def int, min int) int {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val, err := strconv.ParseUint(env, 0, 64); err != nil {
		panic("hloopt: invalid value for " + key)
	} else if ret := int(val); ret <= min {
		panic("hloopt: value too small for " + key)
	} else {
		return ret
	}
}
