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

package schema

import (
	"fmt"
	"math"
	"strings"

	"github.com/daviszhen/zonemap/pkg/common"
	"github.com/daviszhen/zonemap/pkg/util"
)

type RepType int

const (
	RT_REQUIRED RepType = 0
	RT_OPTIONAL RepType = 1
	RT_REPEATED RepType = 2
)

var repTypeToStr = map[RepType]string{
	RT_REQUIRED: "REQUIRED",
	RT_OPTIONAL: "OPTIONAL",
	RT_REPEATED: "REPEATED",
}

func (rt RepType) String() string {
	if s, has := repTypeToStr[rt]; has {
		return s
	}
	panic(fmt.Sprintf("usp %d", rt))
}

// Column describes one leaf of the file schema.
type Column struct {
	Name      string
	Path      []string
	PhyTyp    common.PhyType
	CnvTyp    common.ConvertedType
	Rep       RepType
	TypeLen   int
	Precision int
	Scale     int
}

func NewColumn(name string, pt common.PhyType, ct common.ConvertedType) (*Column, error) {
	col := &Column{
		Name:   name,
		PhyTyp: pt,
		CnvTyp: ct,
		Rep:    RT_OPTIONAL,
	}
	err := col.Validate()
	if err != nil {
		return nil, err
	}
	return col, nil
}

func NewFixedColumn(name string, ct common.ConvertedType, typeLen int) (*Column, error) {
	col := &Column{
		Name:    name,
		PhyTyp:  common.FIXED_LEN_BYTE_ARRAY,
		CnvTyp:  ct,
		Rep:     RT_OPTIONAL,
		TypeLen: typeLen,
	}
	err := col.Validate()
	if err != nil {
		return nil, err
	}
	return col, nil
}

func NewDecimalColumn(name string, pt common.PhyType, typeLen, precision, scale int) (*Column, error) {
	col := &Column{
		Name:      name,
		PhyTyp:    pt,
		CnvTyp:    common.CT_DECIMAL,
		Rep:       RT_OPTIONAL,
		TypeLen:   typeLen,
		Precision: precision,
		Scale:     scale,
	}
	err := col.Validate()
	if err != nil {
		return nil, err
	}
	return col, nil
}

func (col *Column) Validate() error {
	if len(col.Name) == 0 {
		return fmt.Errorf("column without name")
	}
	if col.PhyTyp == common.FIXED_LEN_BYTE_ARRAY && col.TypeLen <= 0 {
		return fmt.Errorf("column %s: fixed len byte array needs a positive length", col.Name)
	}
	switch col.CnvTyp {
	case common.CT_NONE:
	case common.CT_UTF8, common.CT_JSON, common.CT_BSON, common.CT_ENUM:
		if col.PhyTyp != common.BYTE_ARRAY {
			return col.annotationError()
		}
	case common.CT_DECIMAL:
		return col.validateDecimal()
	case common.CT_DATE, common.CT_TIME_MILLIS,
		common.CT_UINT_8, common.CT_UINT_16, common.CT_UINT_32,
		common.CT_INT_8, common.CT_INT_16, common.CT_INT_32:
		if col.PhyTyp != common.INT32 {
			return col.annotationError()
		}
	case common.CT_TIME_MICROS, common.CT_TIMESTAMP_MILLIS, common.CT_TIMESTAMP_MICROS,
		common.CT_UINT_64, common.CT_INT_64:
		if col.PhyTyp != common.INT64 {
			return col.annotationError()
		}
	case common.CT_INTERVAL:
		if col.PhyTyp != common.FIXED_LEN_BYTE_ARRAY || col.TypeLen != 12 {
			return col.annotationError()
		}
	default:
		return col.annotationError()
	}
	return nil
}

func (col *Column) annotationError() error {
	return fmt.Errorf("column %s: %v can not annotate %v",
		col.Name, col.CnvTyp, col.PhyTyp)
}

func (col *Column) validateDecimal() error {
	if col.Precision < 1 || col.Scale < 0 || col.Scale > col.Precision {
		return fmt.Errorf("column %s: bad decimal precision %d scale %d",
			col.Name, col.Precision, col.Scale)
	}
	switch col.PhyTyp {
	case common.INT32:
		if col.Precision > 9 {
			return fmt.Errorf("column %s: int32 holds at most 9 decimal digits", col.Name)
		}
	case common.INT64:
		if col.Precision > 18 {
			return fmt.Errorf("column %s: int64 holds at most 18 decimal digits", col.Name)
		}
	case common.FIXED_LEN_BYTE_ARRAY:
		if col.Precision > maxDecimalDigits(col.TypeLen) {
			return fmt.Errorf("column %s: %d bytes hold at most %d decimal digits",
				col.Name, col.TypeLen, maxDecimalDigits(col.TypeLen))
		}
	case common.BYTE_ARRAY:
	default:
		return col.annotationError()
	}
	return nil
}

func maxDecimalDigits(typeLen int) int {
	return int(math.Floor(math.Log10(math.Pow(2, float64(8*typeLen-1)) - 1)))
}

// SortOrder is how values of the column take part in ordered
// comparison.
func (col *Column) SortOrder() common.SortOrder {
	return common.SortOrderOf(col.CnvTyp, col.PhyTyp)
}

func (col *Column) PathString() string {
	if util.Empty(col.Path) {
		return col.Name
	}
	return strings.Join(col.Path, ".")
}

func (col *Column) String() string {
	if col.CnvTyp == common.CT_NONE {
		return fmt.Sprintf("%s %v", col.PathString(), col.PhyTyp)
	}
	return fmt.Sprintf("%s %v(%v)", col.PathString(), col.PhyTyp, col.CnvTyp)
}

// DecimalValue interprets the value with the precision and scale of
// the column.
func (col *Column) DecimalValue(val *common.Value) (common.Decimal, error) {
	if col.CnvTyp != common.CT_DECIMAL {
		return common.Decimal{}, fmt.Errorf("column %s is not decimal", col.PathString())
	}
	switch col.PhyTyp {
	case common.INT32:
		return common.NewDecimalFromUnscaled(int64(val.I32), col.Scale)
	case common.INT64:
		return common.NewDecimalFromUnscaled(val.I64, col.Scale)
	case common.BYTE_ARRAY, common.FIXED_LEN_BYTE_ARRAY:
		return common.NewDecimalFromBigEndian(val.Bytes, col.Scale)
	default:
		panic("usp")
	}
}

type Schema struct {
	Columns []*Column
}

func NewSchema(cols ...*Column) (*Schema, error) {
	seen := make(map[string]bool, len(cols))
	for _, col := range cols {
		err := col.Validate()
		if err != nil {
			return nil, err
		}
		path := col.PathString()
		if seen[path] {
			return nil, fmt.Errorf("duplicated column %s", path)
		}
		seen[path] = true
	}
	return &Schema{Columns: cols}, nil
}

func (sch *Schema) NumColumns() int {
	return util.Size(sch.Columns)
}

func (sch *Schema) Column(idx int) *Column {
	return sch.Columns[idx]
}

func (sch *Schema) ColumnIndex(path string) int {
	return util.FindIf(sch.Columns, func(col *Column) bool {
		return col.PathString() == path
	})
}

// Resolve finds the column by the full dotted path or by the bare
// leaf name when it is unique.
func (sch *Schema) Resolve(ident string) (*Column, error) {
	idx := sch.ColumnIndex(ident)
	if idx >= 0 {
		return sch.Columns[idx], nil
	}
	var found *Column
	for _, col := range sch.Columns {
		if col.Name == ident {
			if found != nil {
				return nil, fmt.Errorf("ambiguous column %s", ident)
			}
			found = col
		}
	}
	if found == nil {
		return nil, fmt.Errorf("no column %s", ident)
	}
	return found, nil
}
