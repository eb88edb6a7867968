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

package hloopt

import (
	"fmt"

	"github.com/cloudwego/hloopt/internal/status"
)

type (
	InvariantError       = status.InvariantError
	NotFoundError        = status.NotFoundError
	InvalidArgumentError = status.InvalidArgumentError
)

// FormatError occures when the input is not a module persisted in the
// requested format.
type FormatError struct {
	Format Format
	Note   string
}

func (self FormatError) Error() string {
	if self.Note != "" {
		return fmt.Sprintf("FormatError(%s): %s", self.Format, self.Note)
	} else {
		return fmt.Sprintf("FormatError(%s): malformed module", self.Format)
	}
}

// IsInvariant reports whether err is caused by a module that breaks a
// structural invariant, either on load or after a pass.
func IsInvariant(err error) bool {
	return status.IsInvariant(err)
}

func IsNotFound(err error) bool {
	return status.IsNotFound(err)
}

func IsInvalidArgument(err error) bool {
	return status.IsInvalidArgument(err)
}
