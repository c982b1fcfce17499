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

package common

import (
	"fmt"

	"github.com/daviszhen/zonemap/pkg/util"
)

// Value is one decoded cell of a column. Typ selects the payload
// field. The caller keeps the payload consistent with Typ.
type Value struct {
	Typ PhyType
	//value
	Bool  bool
	I32   int32
	I64   int64
	I96   Int96
	F32   float32
	F64   float64
	Bytes []byte
}

func NewBoolValue(b bool) *Value {
	return &Value{Typ: BOOLEAN, Bool: b}
}

func NewInt32Value(i int32) *Value {
	return &Value{Typ: INT32, I32: i}
}

func NewInt64Value(i int64) *Value {
	return &Value{Typ: INT64, I64: i}
}

func NewInt96Value(i Int96) *Value {
	return &Value{Typ: INT96, I96: i}
}

func NewFloatValue(f float32) *Value {
	return &Value{Typ: FLOAT, F32: f}
}

func NewDoubleValue(f float64) *Value {
	return &Value{Typ: DOUBLE, F64: f}
}

func NewBytesValue(pt PhyType, data []byte) *Value {
	util.AssertFunc(pt.IsByteSeq())
	return &Value{Typ: pt, Bytes: data}
}

func (val Value) String() string {
	switch val.Typ {
	case BOOLEAN:
		return fmt.Sprintf("%v", val.Bool)
	case INT32:
		return fmt.Sprintf("%d", val.I32)
	case INT64:
		return fmt.Sprintf("%d", val.I64)
	case INT96:
		return val.I96.String()
	case FLOAT:
		return fmt.Sprintf("%v", val.F32)
	case DOUBLE:
		return fmt.Sprintf("%v", val.F64)
	case BYTE_ARRAY:
		return string(val.Bytes)
	case FIXED_LEN_BYTE_ARRAY:
		return fmt.Sprintf("0x%x", val.Bytes)
	default:
		panic("usp")
	}
}

func (val *Value) Copy() *Value {
	ret := *val
	if val.Bytes != nil {
		ret.Bytes = util.CopyTo(val.Bytes)
	}
	return &ret
}

// PlainBytes is the plain image of the value. fixed width scalars
// in little endian word order, byte sequences as they are.
func (val *Value) PlainBytes() []byte {
	switch val.Typ {
	case BOOLEAN:
		if val.Bool {
			return []byte{1}
		}
		return []byte{0}
	case INT32:
		buf := make([]byte, Int32Size)
		util.Store[int32](val.I32, util.BytesSliceToPointer(buf))
		return buf
	case INT64:
		buf := make([]byte, Int64Size)
		util.Store[int64](val.I64, util.BytesSliceToPointer(buf))
		return buf
	case INT96:
		return val.I96.Bytes()
	case FLOAT:
		buf := make([]byte, Float32Size)
		util.Store[float32](val.F32, util.BytesSliceToPointer(buf))
		return buf
	case DOUBLE:
		buf := make([]byte, Int64Size)
		util.Store[float64](val.F64, util.BytesSliceToPointer(buf))
		return buf
	case BYTE_ARRAY, FIXED_LEN_BYTE_ARRAY:
		return val.Bytes
	default:
		panic("usp")
	}
}

// DecodePlain builds the value back from its plain image.
func DecodePlain(pt PhyType, data []byte) (*Value, error) {
	if pt.IsConstant() && len(data) != pt.Size() {
		return nil, fmt.Errorf("plain image of %v needs %d bytes, got %d",
			pt, pt.Size(), len(data))
	}
	switch pt {
	case BOOLEAN:
		return NewBoolValue(data[0] != 0), nil
	case INT32:
		return NewInt32Value(util.Load[int32](util.BytesSliceToPointer(data))), nil
	case INT64:
		return NewInt64Value(util.Load[int64](util.BytesSliceToPointer(data))), nil
	case INT96:
		i96, err := NewInt96FromBytes(data)
		if err != nil {
			return nil, err
		}
		return NewInt96Value(i96), nil
	case FLOAT:
		return NewFloatValue(util.Load[float32](util.BytesSliceToPointer(data))), nil
	case DOUBLE:
		return NewDoubleValue(util.Load[float64](util.BytesSliceToPointer(data))), nil
	case BYTE_ARRAY, FIXED_LEN_BYTE_ARRAY:
		return NewBytesValue(pt, data), nil
	default:
		return nil, fmt.Errorf("no plain image for %d", pt)
	}
}

func (val *Value) Serialize(serial util.Serialize) error {
	err := util.Write[int32](int32(val.Typ), serial)
	if err != nil {
		return err
	}
	return util.WriteBytes(val.PlainBytes(), serial)
}

func DeserializeValue(deserial util.Deserialize) (*Value, error) {
	var typ int32
	err := util.Read[int32](&typ, deserial)
	if err != nil {
		return nil, err
	}
	data, err := util.ReadBytes(deserial)
	if err != nil {
		return nil, err
	}
	if PhyType(typ) == BYTE_ARRAY && data == nil {
		data = []byte{}
	}
	return DecodePlain(PhyType(typ), data)
}
