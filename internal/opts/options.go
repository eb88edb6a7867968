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
	"log/slog"
)

type Options struct {
	MaxFixpointIterations int
	MaxTripCountEval      int
	Verify                bool
	PostOptimizations     bool
	Passes                []string
	Logger                *slog.Logger
}

// Log returns the configured logger, or the process default.
func (self *Options) Log() *slog.Logger {
	if self.Logger != nil {
		return self.Logger
	} else {
		return slog.Default()
	}
}

func GetDefaultOptions() Options {
	return Options{
		MaxFixpointIterations: MaxFixpointIterations,
		MaxTripCountEval:      MaxTripCountEval,
		Verify:                Verify,
	}
}
