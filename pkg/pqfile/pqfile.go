package pqfile

import (
	"fmt"

	"github.com/daviszhen/zonemap/pkg/common"
	"github.com/daviszhen/zonemap/pkg/schema"
	"github.com/daviszhen/zonemap/pkg/util"
	pqLocal "github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	pqReader "github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"go.uber.org/zap"
)

var phyTypFromThrift = map[parquet.Type]common.PhyType{
	parquet.Type_BOOLEAN:              common.BOOLEAN,
	parquet.Type_INT32:                common.INT32,
	parquet.Type_INT64:                common.INT64,
	parquet.Type_INT96:                common.INT96,
	parquet.Type_FLOAT:                common.FLOAT,
	parquet.Type_DOUBLE:               common.DOUBLE,
	parquet.Type_BYTE_ARRAY:           common.BYTE_ARRAY,
	parquet.Type_FIXED_LEN_BYTE_ARRAY: common.FIXED_LEN_BYTE_ARRAY,
}

var cnvTypFromThrift = map[parquet.ConvertedType]common.ConvertedType{
	parquet.ConvertedType_UTF8:             common.CT_UTF8,
	parquet.ConvertedType_MAP:              common.CT_MAP,
	parquet.ConvertedType_MAP_KEY_VALUE:    common.CT_MAP_KEY_VALUE,
	parquet.ConvertedType_LIST:             common.CT_LIST,
	parquet.ConvertedType_ENUM:             common.CT_ENUM,
	parquet.ConvertedType_DECIMAL:          common.CT_DECIMAL,
	parquet.ConvertedType_DATE:             common.CT_DATE,
	parquet.ConvertedType_TIME_MILLIS:      common.CT_TIME_MILLIS,
	parquet.ConvertedType_TIME_MICROS:      common.CT_TIME_MICROS,
	parquet.ConvertedType_TIMESTAMP_MILLIS: common.CT_TIMESTAMP_MILLIS,
	parquet.ConvertedType_TIMESTAMP_MICROS: common.CT_TIMESTAMP_MICROS,
	parquet.ConvertedType_UINT_8:           common.CT_UINT_8,
	parquet.ConvertedType_UINT_16:          common.CT_UINT_16,
	parquet.ConvertedType_UINT_32:          common.CT_UINT_32,
	parquet.ConvertedType_UINT_64:          common.CT_UINT_64,
	parquet.ConvertedType_INT_8:            common.CT_INT_8,
	parquet.ConvertedType_INT_16:           common.CT_INT_16,
	parquet.ConvertedType_INT_32:           common.CT_INT_32,
	parquet.ConvertedType_INT_64:           common.CT_INT_64,
	parquet.ConvertedType_JSON:             common.CT_JSON,
	parquet.ConvertedType_BSON:             common.CT_BSON,
	parquet.ConvertedType_INTERVAL:         common.CT_INTERVAL,
}

var repTypFromThrift = map[parquet.FieldRepetitionType]schema.RepType{
	parquet.FieldRepetitionType_REQUIRED: schema.RT_REQUIRED,
	parquet.FieldRepetitionType_OPTIONAL: schema.RT_OPTIONAL,
	parquet.FieldRepetitionType_REPEATED: schema.RT_REPEATED,
}

// File is one parquet file opened for footer and column reads.
type File struct {
	_path   string
	_file   source.ParquetFile
	_reader *pqReader.ParquetReader
	_schema *schema.Schema
}

func Open(path string) (*File, error) {
	if !util.FileIsValid(path) {
		return nil, fmt.Errorf("no parquet file %s", path)
	}
	pqFile, err := pqLocal.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	reader, err := pqReader.NewParquetColumnReader(pqFile, 1)
	if err != nil {
		pqFile.Close()
		return nil, err
	}
	sch, err := SchemaFromFooter(reader.Footer)
	if err != nil {
		reader.ReadStop()
		pqFile.Close()
		return nil, err
	}
	util.Info("open parquet file",
		zap.String("path", path),
		zap.Int64("rows", reader.Footer.GetNumRows()),
		zap.Int("rowGroups", len(reader.Footer.GetRowGroups())),
		zap.Int("columns", sch.NumColumns()),
	)
	return &File{
		_path:   path,
		_file:   pqFile,
		_reader: reader,
		_schema: sch,
	}, nil
}

func (file *File) Close() error {
	file._reader.ReadStop()
	return file._file.Close()
}

func (file *File) Path() string {
	return file._path
}

func (file *File) Schema() *schema.Schema {
	return file._schema
}

func (file *File) Footer() *parquet.FileMetaData {
	return file._reader.Footer
}

func (file *File) NumRows() int64 {
	return file._reader.Footer.GetNumRows()
}

func (file *File) NumRowGroups() int {
	return len(file._reader.Footer.GetRowGroups())
}

type groupFrame struct {
	_remaining int
	_path      []string
}

// SchemaFromFooter rebuilds the leaf columns from the flat schema list
// in the footer. The list stores the tree in preorder. Group nodes
// carry the child count, leaves carry the physical type.
func SchemaFromFooter(footer *parquet.FileMetaData) (*schema.Schema, error) {
	elems := footer.GetSchema()
	if util.Empty(elems) {
		return nil, fmt.Errorf("footer without schema")
	}
	frames := []groupFrame{{_remaining: int(elems[0].GetNumChildren())}}
	var cols []*schema.Column
	for idx := 1; idx < len(elems); idx++ {
		elem := elems[idx]
		if util.Empty(frames) {
			return nil, fmt.Errorf("schema element %s outside the root group", elem.GetName())
		}
		top := len(frames) - 1
		frames[top]._remaining--
		parentPath := frames[top]._path
		if elem.IsSetNumChildren() && elem.GetNumChildren() > 0 {
			frames = append(frames, groupFrame{
				_remaining: int(elem.GetNumChildren()),
				_path:      appendPath(parentPath, elem.GetName()),
			})
			continue
		}
		col, err := leafColumn(elem, parentPath)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		for len(frames) > 0 && frames[len(frames)-1]._remaining == 0 {
			frames = frames[:len(frames)-1]
		}
	}
	for len(frames) > 0 && frames[len(frames)-1]._remaining == 0 {
		frames = frames[:len(frames)-1]
	}
	if !util.Empty(frames) {
		return nil, fmt.Errorf("schema tree of %d elements ends inside a group", len(elems))
	}
	if util.Empty(cols) {
		return nil, fmt.Errorf("footer without leaf columns")
	}
	return schema.NewSchema(cols...)
}

func leafColumn(elem *parquet.SchemaElement, parentPath []string) (*schema.Column, error) {
	if !elem.IsSetType() {
		return nil, fmt.Errorf("leaf %s without physical type", elem.GetName())
	}
	pt, has := phyTypFromThrift[elem.GetType()]
	if !has {
		return nil, fmt.Errorf("leaf %s: unknown physical type %v", elem.GetName(), elem.GetType())
	}
	col := &schema.Column{
		Name:   elem.GetName(),
		Path:   appendPath(parentPath, elem.GetName()),
		PhyTyp: pt,
		CnvTyp: common.CT_NONE,
		Rep:    schema.RT_OPTIONAL,
	}
	if elem.IsSetRepetitionType() {
		rep, has := repTypFromThrift[elem.GetRepetitionType()]
		if !has {
			return nil, fmt.Errorf("leaf %s: unknown repetition %v", elem.GetName(), elem.GetRepetitionType())
		}
		col.Rep = rep
	}
	if elem.IsSetConvertedType() {
		ct, has := cnvTypFromThrift[elem.GetConvertedType()]
		if !has {
			return nil, fmt.Errorf("leaf %s: unknown annotation %v", elem.GetName(), elem.GetConvertedType())
		}
		col.CnvTyp = ct
	}
	if elem.IsSetTypeLength() {
		col.TypeLen = int(elem.GetTypeLength())
	}
	if elem.IsSetPrecision() {
		col.Precision = int(elem.GetPrecision())
	}
	if elem.IsSetScale() {
		col.Scale = int(elem.GetScale())
	}
	return col, nil
}

func appendPath(parent []string, name string) []string {
	path := make([]string, 0, len(parent)+1)
	path = append(path, parent...)
	return append(path, name)
}
