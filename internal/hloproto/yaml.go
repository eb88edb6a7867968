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

package hloproto

import (
	"bytes"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MarshalYAML renders a message in the human readable text form.
func MarshalYAML(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	/* encode and close to flush the document */
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "hloproto: encode yaml")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "hloproto: encode yaml")
	}
	return buf.Bytes(), nil
}

// UnmarshalYAML parses the text form, unknown keys are rejected.
func UnmarshalYAML(data []byte, v interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "hloproto: decode yaml")
	}
	return nil
}
