// Copyright 2023-2024 daviszhen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package compare builds the ordering of column values from the
// physical type and the sort order of the column. A comparator is
// picked once at construction. The hot path never branches on types
// again.
package compare

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/daviszhen/zonemap/pkg/common"
	"github.com/daviszhen/zonemap/pkg/schema"
)

// Comparator is a strict weak ordering over the values of one
// column. Both operands must carry the physical type the comparator
// was built for.
type Comparator interface {
	LessThan(left, right *common.Value) bool
}

// ErrUnsupportedComparison reports a (physical type, sort order)
// pair without a defined ordering.
var ErrUnsupportedComparison = errors.New("unsupported comparison")

type lessBoolOp struct {
}

func (e lessBoolOp) LessThan(left, right *common.Value) bool {
	return !left.Bool && right.Bool
}

type lessInt32Op struct {
}

func (e lessInt32Op) LessThan(left, right *common.Value) bool {
	return left.I32 < right.I32
}

type lessUint32Op struct {
}

func (e lessUint32Op) LessThan(left, right *common.Value) bool {
	return uint32(left.I32) < uint32(right.I32)
}

type lessInt64Op struct {
}

func (e lessInt64Op) LessThan(left, right *common.Value) bool {
	return left.I64 < right.I64
}

type lessUint64Op struct {
}

func (e lessUint64Op) LessThan(left, right *common.Value) bool {
	return uint64(left.I64) < uint64(right.I64)
}

// lessInt96Op decides on the top word as a signed int32. the lower
// words only matter on equal higher words and always compare
// unsigned.
type lessInt96Op struct {
}

func (e lessInt96Op) LessThan(left, right *common.Value) bool {
	lw := &left.I96.Value
	rw := &right.I96.Value
	if lw[2] != rw[2] {
		return int32(lw[2]) < int32(rw[2])
	}
	if lw[1] != rw[1] {
		return lw[1] < rw[1]
	}
	return lw[0] < rw[0]
}

type lessUint96Op struct {
}

func (e lessUint96Op) LessThan(left, right *common.Value) bool {
	lw := &left.I96.Value
	rw := &right.I96.Value
	if lw[2] != rw[2] {
		return lw[2] < rw[2]
	}
	if lw[1] != rw[1] {
		return lw[1] < rw[1]
	}
	return lw[0] < rw[0]
}

type lessFloatOp struct {
}

func (e lessFloatOp) LessThan(left, right *common.Value) bool {
	return left.F32 < right.F32
}

type lessDoubleOp struct {
}

func (e lessDoubleOp) LessThan(left, right *common.Value) bool {
	return left.F64 < right.F64
}

// lessBytesOp is the lexicographic order over unsigned bytes. a
// strict prefix comes first.
type lessBytesOp struct {
}

func (e lessBytesOp) LessThan(left, right *common.Value) bool {
	return bytes.Compare(left.Bytes, right.Bytes) < 0
}

// lessSignedBytesOp reads every byte as int8.
type lessSignedBytesOp struct {
}

func (e lessSignedBytesOp) LessThan(left, right *common.Value) bool {
	ldata := left.Bytes
	rdata := right.Bytes
	n := len(ldata)
	if len(rdata) < n {
		n = len(rdata)
	}
	for i := 0; i < n; i++ {
		lb := int8(ldata[i])
		rb := int8(rdata[i])
		if lb != rb {
			return lb < rb
		}
	}
	return len(ldata) < len(rdata)
}

// Make picks the comparator of the pair. The unsigned order exists
// only for the integer and byte sequence types. Everything else
// fails with ErrUnsupportedComparison.
func Make(pt common.PhyType, so common.SortOrder) (Comparator, error) {
	switch so {
	case common.SortSigned:
		switch pt {
		case common.BOOLEAN:
			return lessBoolOp{}, nil
		case common.INT32:
			return lessInt32Op{}, nil
		case common.INT64:
			return lessInt64Op{}, nil
		case common.INT96:
			return lessInt96Op{}, nil
		case common.FLOAT:
			return lessFloatOp{}, nil
		case common.DOUBLE:
			return lessDoubleOp{}, nil
		case common.BYTE_ARRAY, common.FIXED_LEN_BYTE_ARRAY:
			return lessSignedBytesOp{}, nil
		}
	case common.SortUnsigned:
		switch pt {
		case common.INT32:
			return lessUint32Op{}, nil
		case common.INT64:
			return lessUint64Op{}, nil
		case common.INT96:
			return lessUint96Op{}, nil
		case common.BYTE_ARRAY, common.FIXED_LEN_BYTE_ARRAY:
			return lessBytesOp{}, nil
		}
	}
	return nil, fmt.Errorf("%w: %v %v", ErrUnsupportedComparison, pt, so)
}

// ForColumn derives the sort order from the column annotation and
// picks the comparator.
func ForColumn(col *schema.Column) (Comparator, error) {
	cmp, err := Make(col.PhyTyp, col.SortOrder())
	if err != nil {
		return nil, fmt.Errorf("column %s: %w", col.PathString(), err)
	}
	return cmp, nil
}
