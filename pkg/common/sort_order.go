package common

import "fmt"

// SortOrder tells how the bits of a column value take part in
// ordered comparison.
type SortOrder int

const (
	SortSigned   SortOrder = 0
	SortUnsigned SortOrder = 1
	SortUnknown  SortOrder = 2
)

var sortOrderToStr = map[SortOrder]string{
	SortSigned:   "SIGNED",
	SortUnsigned: "UNSIGNED",
	SortUnknown:  "UNKNOWN",
}

func (so SortOrder) String() string {
	if s, has := sortOrderToStr[so]; has {
		return s
	}
	panic(fmt.Sprintf("usp %d", so))
}

// SortOrderOf derives the sort order from the annotation. A column
// without annotation keeps the signed interpretation of its bits.
func SortOrderOf(ct ConvertedType, pt PhyType) SortOrder {
	if ct == CT_NONE {
		switch pt {
		case BOOLEAN, INT32, INT64, INT96,
			FLOAT, DOUBLE,
			BYTE_ARRAY, FIXED_LEN_BYTE_ARRAY:
			return SortSigned
		default:
			return SortUnknown
		}
	}
	switch ct {
	case CT_INT_8, CT_INT_16, CT_INT_32, CT_INT_64,
		CT_DATE, CT_TIME_MILLIS, CT_TIME_MICROS,
		CT_TIMESTAMP_MILLIS, CT_TIMESTAMP_MICROS:
		return SortSigned
	case CT_UINT_8, CT_UINT_16, CT_UINT_32, CT_UINT_64,
		CT_UTF8, CT_ENUM, CT_JSON, CT_BSON:
		return SortUnsigned
	default:
		return SortUnknown
	}
}
