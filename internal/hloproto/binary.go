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
	"github.com/cloudwego/frugal"
	"github.com/cloudwego/gopkg/protocol/thrift"
	"github.com/pkg/errors"
)

const (
	_MaxDepth = 64
)

var (
	errShortMessage = errors.New("unexpected end of message")
)

var _FixedSize = map[thrift.TType]int{
	thrift.BOOL:   1,
	thrift.BYTE:   1,
	thrift.I16:    2,
	thrift.I32:    4,
	thrift.I64:    8,
	thrift.DOUBLE: 8,
}

// smallest encoding of a value, used to bound container sizes
var _MinSize = map[thrift.TType]int{
	thrift.BOOL:   1,
	thrift.BYTE:   1,
	thrift.I16:    2,
	thrift.I32:    4,
	thrift.I64:    8,
	thrift.DOUBLE: 8,
	thrift.STRING: 4,
	thrift.STRUCT: 1,
	thrift.MAP:    6,
	thrift.SET:    5,
	thrift.LIST:   5,
}

// Marshal encodes a message with the Thrift binary protocol.
func Marshal(v interface{}) ([]byte, error) {
	buf := make([]byte, frugal.EncodedSize(v))
	n, err := frugal.EncodeObject(buf, nil, v)
	if err != nil {
		return nil, errors.Wrap(err, "hloproto: encode")
	}
	return buf[:n], nil
}

// Unmarshal decodes a message written by Marshal. The input is walked with
// Check first and must be consumed entirely.
func Unmarshal(data []byte, v interface{}) error {
	n, err := Check(data)
	if err != nil {
		return errors.Wrap(err, "hloproto: decode")
	}
	if n != len(data) {
		return errors.Errorf("hloproto: decode: %d trailing bytes", len(data)-n)
	}
	if _, err = frugal.DecodeObject(data, v); err != nil {
		return errors.Wrap(err, "hloproto: decode")
	}
	return nil
}

// Check walks a Thrift binary struct without decoding it and returns its
// encoded length. Every container must be able to fit its declared number of
// elements in the remaining input.
func Check(buf []byte) (int, error) {
	return checkValue(buf, thrift.STRUCT, 0)
}

func checkType(tt thrift.TType) error {
	if _, ok := _MinSize[tt]; !ok {
		return errors.Errorf("unknown data type %d", tt)
	}
	return nil
}

func checkSize(buf []byte, size int, min int) error {
	if size < 0 {
		return errors.Errorf("negative container size %d", size)
	}
	if int64(size)*int64(min) > int64(len(buf)) {
		return errors.Errorf("container of %d elements exceeds the remaining %d bytes", size, len(buf))
	}
	return nil
}

func checkValue(buf []byte, tt thrift.TType, depth int) (int, error) {
	if depth > _MaxDepth {
		return 0, errors.Errorf("nesting deeper than %d levels", _MaxDepth)
	}

	/* scalars */
	if n, ok := _FixedSize[tt]; ok {
		if len(buf) < n {
			return 0, errShortMessage
		}
		return n, nil
	}

	/* variable sized values */
	switch tt {
	case thrift.STRING:
		return checkString(buf)
	case thrift.STRUCT:
		return checkStruct(buf, depth)
	case thrift.MAP:
		return checkMap(buf, depth)
	case thrift.SET, thrift.LIST:
		return checkList(buf, depth)
	default:
		return 0, errors.Errorf("unknown data type %d", tt)
	}
}

func checkString(buf []byte) (int, error) {
	if len(buf) < 4 {
		return 0, errShortMessage
	}
	sz, _, err := thrift.Binary.ReadI32(buf)
	if err != nil {
		return 0, err
	}
	if sz < 0 {
		return 0, errors.Errorf("negative string length %d", sz)
	}
	if int64(sz) > int64(len(buf)-4) {
		return 0, errShortMessage
	}
	return 4 + int(sz), nil
}

func checkStruct(buf []byte, depth int) (int, error) {
	n := 0
	ids := make(map[int16]struct{})

	/* fields until STOP */
	for {
		if n >= len(buf) {
			return 0, errShortMessage
		}
		if thrift.TType(buf[n]) == thrift.STOP {
			return n + 1, nil
		}
		if len(buf)-n < 3 {
			return 0, errShortMessage
		}

		/* field header */
		tt, id, l, err := thrift.Binary.ReadFieldBegin(buf[n:])
		if err != nil {
			return 0, err
		}
		if err = checkType(tt); err != nil {
			return 0, err
		}
		if _, ok := ids[id]; ok {
			return 0, errors.Errorf("duplicate field id: %d", id)
		}

		/* field value */
		n += l
		ids[id] = struct{}{}
		if l, err = checkValue(buf[n:], tt, depth+1); err != nil {
			return 0, err
		}
		n += l
	}
}

func checkList(buf []byte, depth int) (int, error) {
	if len(buf) < 5 {
		return 0, errShortMessage
	}
	et, size, n, err := thrift.Binary.ReadListBegin(buf)
	if err != nil {
		return 0, err
	}
	if err = checkType(et); err != nil {
		return 0, err
	}
	if err = checkSize(buf[n:], size, _MinSize[et]); err != nil {
		return 0, err
	}

	/* every element */
	for i := 0; i < size; i++ {
		l, err := checkValue(buf[n:], et, depth+1)
		if err != nil {
			return 0, err
		}
		n += l
	}
	return n, nil
}

func checkMap(buf []byte, depth int) (int, error) {
	if len(buf) < 6 {
		return 0, errShortMessage
	}
	kt, vt, size, n, err := thrift.Binary.ReadMapBegin(buf)
	if err != nil {
		return 0, err
	}
	if err = checkType(kt); err != nil {
		return 0, err
	}
	if err = checkType(vt); err != nil {
		return 0, err
	}
	if err = checkSize(buf[n:], size, _MinSize[kt]+_MinSize[vt]); err != nil {
		return 0, err
	}

	/* every key value pair */
	for i := 0; i < size; i++ {
		l, err := checkValue(buf[n:], kt, depth+1)
		if err != nil {
			return 0, err
		}
		n += l
		if l, err = checkValue(buf[n:], vt, depth+1); err != nil {
			return 0, err
		}
		n += l
	}
	return n, nil
}
