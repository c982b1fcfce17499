package common

import (
	"fmt"
	"unsafe"
)

type PhyType int

const (
	BOOLEAN              PhyType = 0
	INT32                PhyType = 1
	INT64                PhyType = 2
	INT96                PhyType = 3
	FLOAT                PhyType = 4
	DOUBLE               PhyType = 5
	BYTE_ARRAY           PhyType = 6
	FIXED_LEN_BYTE_ARRAY PhyType = 7

	INVALID PhyType = 255
)

var pTypeToStr = map[PhyType]string{
	BOOLEAN:              "BOOLEAN",
	INT32:                "INT32",
	INT64:                "INT64",
	INT96:                "INT96",
	FLOAT:                "FLOAT",
	DOUBLE:               "DOUBLE",
	BYTE_ARRAY:           "BYTE_ARRAY",
	FIXED_LEN_BYTE_ARRAY: "FIXED_LEN_BYTE_ARRAY",
	INVALID:              "INVALID",
}

func (pt PhyType) String() string {
	if s, has := pTypeToStr[pt]; has {
		return s
	}
	panic(fmt.Sprintf("usp %d", pt))
}

var (
	BoolSize    int
	Int32Size   int
	Int64Size   int
	Int96Size   int
	Float32Size int
)

func init() {
	b := false
	BoolSize = int(unsafe.Sizeof(b))
	i := int32(0)
	Int32Size = int(unsafe.Sizeof(i))
	Int64Size = Int32Size * 2
	Int96Size = int(unsafe.Sizeof(Int96{}))
	f := float32(0)
	Float32Size = int(unsafe.Sizeof(f))
}

// Size is the width of the plain image. zero for the
// variable length types.
func (pt PhyType) Size() int {
	switch pt {
	case BOOLEAN:
		return BoolSize
	case INT32:
		return Int32Size
	case INT64:
		return Int64Size
	case INT96:
		return Int96Size
	case FLOAT:
		return Float32Size
	case DOUBLE:
		return Int64Size
	case BYTE_ARRAY, FIXED_LEN_BYTE_ARRAY:
		return 0
	default:
		panic("usp")
	}
}

func (pt PhyType) IsConstant() bool {
	return pt >= BOOLEAN && pt <= DOUBLE
}

func (pt PhyType) IsByteSeq() bool {
	return pt == BYTE_ARRAY || pt == FIXED_LEN_BYTE_ARRAY
}
