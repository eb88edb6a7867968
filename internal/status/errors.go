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

package status

import (
	"fmt"

	"github.com/pkg/errors"
)

// InvariantError occures when a module violates a structural invariant, such
// as a dangling operand, a shape mismatch or an unexpected opcode.
type InvariantError struct {
	Op     string
	Instr  string
	Reason string
}

func (self *InvariantError) Error() string {
	if self.Instr != "" {
		return fmt.Sprintf("InvariantError(%s) at %s: %s", self.Op, self.Instr, self.Reason)
	} else {
		return fmt.Sprintf("InvariantError(%s): %s", self.Op, self.Reason)
	}
}

// NotFoundError occures when looking up something that was never registered
// or does not exist, it is meant to be handled as control flow.
type NotFoundError struct {
	What string
	Key  string
}

func (self *NotFoundError) Error() string {
	return fmt.Sprintf("NotFound: %s %s", self.What, self.Key)
}

// InvalidArgumentError occures when the caller breaks an API contract.
type InvalidArgumentError struct {
	Reason string
}

func (self *InvalidArgumentError) Error() string {
	return "InvalidArgument: " + self.Reason
}

func Invariant(op string, instr string, format string, args ...interface{}) error {
	return &InvariantError{
		Op:     op,
		Instr:  instr,
		Reason: fmt.Sprintf(format, args...),
	}
}

func NotFound(what string, key interface{}) error {
	return &NotFoundError{
		What: what,
		Key:  fmt.Sprint(key),
	}
}

func InvalidArgument(format string, args ...interface{}) error {
	return &InvalidArgumentError{
		Reason: fmt.Sprintf(format, args...),
	}
}

func IsInvariant(err error) bool {
	var e *InvariantError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsInvalidArgument(err error) bool {
	var e *InvalidArgumentError
	return errors.As(err, &e)
}
