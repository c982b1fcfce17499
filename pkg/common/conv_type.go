package common

import "fmt"

// ConvertedType annotates a physical type with its logical meaning.
// CT_NONE stands for the absent annotation.
type ConvertedType int

const (
	CT_NONE             ConvertedType = 0
	CT_UTF8             ConvertedType = 1
	CT_MAP              ConvertedType = 2
	CT_MAP_KEY_VALUE    ConvertedType = 3
	CT_LIST             ConvertedType = 4
	CT_ENUM             ConvertedType = 5
	CT_DECIMAL          ConvertedType = 6
	CT_DATE             ConvertedType = 7
	CT_TIME_MILLIS      ConvertedType = 8
	CT_TIME_MICROS      ConvertedType = 9
	CT_TIMESTAMP_MILLIS ConvertedType = 10
	CT_TIMESTAMP_MICROS ConvertedType = 11
	CT_UINT_8           ConvertedType = 12
	CT_UINT_16          ConvertedType = 13
	CT_UINT_32          ConvertedType = 14
	CT_UINT_64          ConvertedType = 15
	CT_INT_8            ConvertedType = 16
	CT_INT_16           ConvertedType = 17
	CT_INT_32           ConvertedType = 18
	CT_INT_64           ConvertedType = 19
	CT_JSON             ConvertedType = 20
	CT_BSON             ConvertedType = 21
	CT_INTERVAL         ConvertedType = 22
)

var cTypeToStr = map[ConvertedType]string{
	CT_NONE:             "NONE",
	CT_UTF8:             "UTF8",
	CT_MAP:              "MAP",
	CT_MAP_KEY_VALUE:    "MAP_KEY_VALUE",
	CT_LIST:             "LIST",
	CT_ENUM:             "ENUM",
	CT_DECIMAL:          "DECIMAL",
	CT_DATE:             "DATE",
	CT_TIME_MILLIS:      "TIME_MILLIS",
	CT_TIME_MICROS:      "TIME_MICROS",
	CT_TIMESTAMP_MILLIS: "TIMESTAMP_MILLIS",
	CT_TIMESTAMP_MICROS: "TIMESTAMP_MICROS",
	CT_UINT_8:           "UINT_8",
	CT_UINT_16:          "UINT_16",
	CT_UINT_32:          "UINT_32",
	CT_UINT_64:          "UINT_64",
	CT_INT_8:            "INT_8",
	CT_INT_16:           "INT_16",
	CT_INT_32:           "INT_32",
	CT_INT_64:           "INT_64",
	CT_JSON:             "JSON",
	CT_BSON:             "BSON",
	CT_INTERVAL:         "INTERVAL",
}

func (ct ConvertedType) String() string {
	if s, has := cTypeToStr[ct]; has {
		return s
	}
	panic(fmt.Sprintf("usp %d", ct))
}
