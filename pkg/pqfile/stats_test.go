package pqfile

import (
	"path/filepath"
	"testing"

	"github.com/daviszhen/zonemap/pkg/common"
	"github.com/daviszhen/zonemap/pkg/schema"
	"github.com/daviszhen/zonemap/pkg/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pqLocal "github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

func chunkOf(path []string, pt parquet.Type, numValues int64, st *parquet.Statistics) *parquet.ColumnChunk {
	meta := parquet.NewColumnMetaData()
	meta.Type = pt
	meta.PathInSchema = path
	meta.NumValues = numValues
	meta.Statistics = st
	ck := parquet.NewColumnChunk()
	ck.MetaData = meta
	return ck
}

func windowOf(minVal, maxVal *common.Value, nullCount int64) *parquet.Statistics {
	st := parquet.NewStatistics()
	st.MinValue = minVal.PlainBytes()
	st.MaxValue = maxVal.PlainBytes()
	st.NullCount = i64Ptr(nullCount)
	return st
}

func legacyWindowOf(minImage, maxImage []byte) *parquet.Statistics {
	st := parquet.NewStatistics()
	st.Min = minImage
	st.Max = maxImage
	return st
}

func TestStatsFromFooter(t *testing.T) {
	name := leafElem("name", parquet.Type_BYTE_ARRAY)
	name.ConvertedType = parquet.ConvertedTypePtr(parquet.ConvertedType_UTF8)
	footer := footerWith(
		groupElem("root", 2),
		leafElem("id", parquet.Type_INT32),
		name,
	)

	rg0 := parquet.NewRowGroup()
	rg0.NumRows = 4
	rg0.Columns = []*parquet.ColumnChunk{
		chunkOf([]string{"id"}, parquet.Type_INT32, 4,
			windowOf(common.NewInt32Value(-3), common.NewInt32Value(9), 1)),
		chunkOf([]string{"name"}, parquet.Type_BYTE_ARRAY, 4,
			windowOf(common.NewBytesValue(common.BYTE_ARRAY, []byte("apple")),
				common.NewBytesValue(common.BYTE_ARRAY, []byte("kiwi")), 0)),
	}
	rg1 := parquet.NewRowGroup()
	rg1.NumRows = 3
	rg1.Columns = []*parquet.ColumnChunk{
		chunkOf([]string{"id"}, parquet.Type_INT32, 3,
			legacyWindowOf(common.NewInt32Value(10).PlainBytes(),
				common.NewInt32Value(20).PlainBytes())),
		chunkOf([]string{"name"}, parquet.Type_BYTE_ARRAY, 3,
			legacyWindowOf([]byte("aa"), []byte("zz"))),
	}
	footer.RowGroups = []*parquet.RowGroup{rg0, rg1}

	sch, err := SchemaFromFooter(footer)
	require.NoError(t, err)

	groups, err := statsFromFooter(sch, footer, 1)
	require.NoError(t, err)
	require.Equal(t, 2, len(groups))

	idStat, has := groups[0].Column("id")
	require.True(t, has)
	require.True(t, idStat.HasMinMax())
	assert.Equal(t, int32(-3), idStat.Min().I32)
	assert.Equal(t, int32(9), idStat.Max().I32)
	assert.Equal(t, uint64(1), idStat.NullCount())
	assert.Equal(t, uint64(3), idStat.ValueCount())

	nameStat, has := groups[0].Column("name")
	require.True(t, has)
	require.True(t, nameStat.HasMinMax())
	assert.Equal(t, []byte("apple"), nameStat.Min().Bytes)
	assert.Equal(t, []byte("kiwi"), nameStat.Max().Bytes)

	// the legacy pair still counts for a signed column
	idStat1, has := groups[1].Column("id")
	require.True(t, has)
	require.True(t, idStat1.HasMinMax())
	assert.Equal(t, int32(10), idStat1.Min().I32)
	assert.Equal(t, int32(20), idStat1.Max().I32)

	// but not for utf8, which orders its bytes unsigned
	nameStat1, has := groups[1].Column("name")
	require.True(t, has)
	assert.False(t, nameStat1.HasMinMax())
	assert.Equal(t, uint64(3), nameStat1.ValueCount())
}

func TestChunkWindow(t *testing.T) {
	price := leafElem("price", parquet.Type_INT64)
	price.ConvertedType = parquet.ConvertedTypePtr(parquet.ConvertedType_DECIMAL)
	price.Precision = i32Ptr(18)
	price.Scale = i32Ptr(2)
	footer := footerWith(groupElem("root", 1), price)

	rg := parquet.NewRowGroup()
	rg.NumRows = 4
	rg.Columns = []*parquet.ColumnChunk{
		chunkOf([]string{"price"}, parquet.Type_INT64, 4,
			windowOf(common.NewInt64Value(1250), common.NewInt64Value(99999), 0)),
	}
	footer.RowGroups = []*parquet.RowGroup{rg}

	sch, err := SchemaFromFooter(footer)
	require.NoError(t, err)

	// decimal keeps no zone map
	groups, err := statsFromFooter(sch, footer, 0)
	require.NoError(t, err)
	_, has := groups[0].Column("price")
	assert.False(t, has)

	// but the raw window still decodes
	minVal, maxVal := chunkWindow(sch, footer, 0, "price")
	require.NotNil(t, minVal)
	require.NotNil(t, maxVal)
	assert.Equal(t, int64(1250), minVal.I64)
	assert.Equal(t, int64(99999), maxVal.I64)

	dec, err := sch.Column(0).DecimalValue(minVal)
	require.NoError(t, err)
	assert.Equal(t, "12.50", dec.String())

	minVal, maxVal = chunkWindow(sch, footer, 0, "missing")
	assert.Nil(t, minVal)
	assert.Nil(t, maxVal)

	minVal, maxVal = chunkWindow(sch, footer, 5, "price")
	assert.Nil(t, minVal)
	assert.Nil(t, maxVal)
}

func TestDecodeWindow(t *testing.T) {
	idCol, err := schema.NewColumn("id", common.INT32, common.CT_NONE)
	require.NoError(t, err)
	nameCol, err := schema.NewColumn("name", common.BYTE_ARRAY, common.CT_UTF8)
	require.NoError(t, err)

	minVal, maxVal := decodeWindow(0, idCol,
		windowOf(common.NewInt32Value(1), common.NewInt32Value(5), 0))
	require.NotNil(t, minVal)
	require.NotNil(t, maxVal)
	assert.Equal(t, int32(1), minVal.I32)
	assert.Equal(t, int32(5), maxVal.I32)

	// a three byte image can not be an int32
	st := parquet.NewStatistics()
	st.MinValue = []byte{1, 2, 3}
	st.MaxValue = common.NewInt32Value(5).PlainBytes()
	minVal, maxVal = decodeWindow(0, idCol, st)
	assert.Nil(t, minVal)
	assert.Nil(t, maxVal)

	// legacy pair on an unsigned column gets dropped
	minVal, maxVal = decodeWindow(0, nameCol, legacyWindowOf([]byte("aa"), []byte("zz")))
	assert.Nil(t, minVal)
	assert.Nil(t, maxVal)

	// unless the window is one point
	minVal, maxVal = decodeWindow(0, nameCol, legacyWindowOf([]byte("aa"), []byte("aa")))
	require.NotNil(t, minVal)
	assert.Equal(t, []byte("aa"), minVal.Bytes)
	assert.Equal(t, []byte("aa"), maxVal.Bytes)

	// nothing set
	minVal, maxVal = decodeWindow(0, idCol, parquet.NewStatistics())
	assert.Nil(t, minVal)
	assert.Nil(t, maxVal)
}

func TestValueFromParquet(t *testing.T) {
	mk := func(name string, pt common.PhyType) *schema.Column {
		col, err := schema.NewColumn(name, pt, common.CT_NONE)
		require.NoError(t, err)
		return col
	}

	val, err := valueFromParquet(mk("id", common.INT32), nil)
	require.NoError(t, err)
	assert.Nil(t, val)

	val, err = valueFromParquet(mk("id", common.INT32), int32(7))
	require.NoError(t, err)
	assert.Equal(t, int32(7), val.I32)

	val, err = valueFromParquet(mk("n", common.INT64), int64(-9))
	require.NoError(t, err)
	assert.Equal(t, int64(-9), val.I64)

	val, err = valueFromParquet(mk("ok", common.BOOLEAN), true)
	require.NoError(t, err)
	assert.True(t, val.Bool)

	val, err = valueFromParquet(mk("f", common.FLOAT), float32(1.5))
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), val.F32)

	val, err = valueFromParquet(mk("d", common.DOUBLE), 2.5)
	require.NoError(t, err)
	assert.Equal(t, 2.5, val.F64)

	val, err = valueFromParquet(mk("s", common.BYTE_ARRAY), "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), val.Bytes)

	i96 := common.NewInt96(1, 2, 3)
	val, err = valueFromParquet(mk("ts", common.INT96), string(i96.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{1, 2, 3}, val.I96.Value)

	_, err = valueFromParquet(mk("id", common.INT32), int64(7))
	assert.Error(t, err)

	_, err = valueFromParquet(mk("ts", common.INT96), "short")
	assert.Error(t, err)
}

func TestDiffColumn(t *testing.T) {
	col, err := schema.NewColumn("id", common.INT32, common.CT_NONE)
	require.NoError(t, err)

	build := func(minVal, maxVal *common.Value, nullCount, valueCount uint64) *stats.ColumnStats {
		st, err := stats.NewColumnStats(col)
		require.NoError(t, err)
		if minVal != nil {
			st.SetWindow(minVal, maxVal)
		}
		st.AddCounts(nullCount, valueCount)
		return st
	}
	fields := func(bad []Mismatch) []string {
		var ret []string
		for _, mis := range bad {
			ret = append(ret, mis.Field)
		}
		return ret
	}

	// a footer window wider than the data passes
	foot := build(common.NewInt32Value(0), common.NewInt32Value(100), 1, 9)
	data := build(common.NewInt32Value(5), common.NewInt32Value(50), 1, 9)
	assert.Empty(t, diffColumn(0, "id", foot, data))

	// data below the claimed min
	foot = build(common.NewInt32Value(10), common.NewInt32Value(100), 0, 10)
	data = build(common.NewInt32Value(5), common.NewInt32Value(50), 0, 10)
	assert.Equal(t, []string{"min"}, fields(diffColumn(0, "id", foot, data)))

	// data above the claimed max
	foot = build(common.NewInt32Value(0), common.NewInt32Value(40), 0, 10)
	data = build(common.NewInt32Value(5), common.NewInt32Value(50), 0, 10)
	assert.Equal(t, []string{"max"}, fields(diffColumn(0, "id", foot, data)))

	// totals disagree
	foot = build(nil, nil, 0, 10)
	data = build(nil, nil, 0, 8)
	assert.Equal(t, []string{"values"}, fields(diffColumn(0, "id", foot, data)))

	// without any claim the null split stays unchecked
	foot = build(nil, nil, 0, 10)
	data = build(nil, nil, 2, 8)
	assert.Empty(t, diffColumn(0, "id", foot, data))

	// with a window the null split becomes a claim
	foot = build(common.NewInt32Value(0), common.NewInt32Value(9), 1, 9)
	data = build(common.NewInt32Value(0), common.NewInt32Value(9), 2, 8)
	assert.Equal(t, []string{"null_count"}, fields(diffColumn(0, "id", foot, data)))

	bad := diffColumn(3, "id",
		build(common.NewInt32Value(10), common.NewInt32Value(100), 0, 10),
		build(common.NewInt32Value(5), common.NewInt32Value(100), 0, 10))
	require.Equal(t, 1, len(bad))
	assert.Equal(t, "row group 3 column id min: footer 10, data 5", bad[0].String())
}

type fruitRow struct {
	Id    int32   `parquet:"name=id, type=INT32"`
	Name  string  `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Size  *int32  `parquet:"name=size, type=INT32, convertedtype=UINT_32, repetitiontype=OPTIONAL"`
	Score float64 `parquet:"name=score, type=DOUBLE"`
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fruits.parquet")
	fw, err := pqLocal.NewLocalFileWriter(path)
	require.NoError(t, err)
	pw, err := writer.NewParquetWriter(fw, new(fruitRow), 1)
	require.NoError(t, err)

	size := func(v int32) *int32 { return &v }
	for _, row := range []fruitRow{
		{Id: 5, Name: "kiwi", Size: size(3), Score: 1.5},
		{Id: -3, Name: "apple", Size: nil, Score: -2.25},
		{Id: 7, Name: "pear", Size: size(-1), Score: 0},
	} {
		require.NoError(t, pw.Write(row))
	}
	require.NoError(t, pw.Flush(true))
	for _, row := range []fruitRow{
		{Id: 40, Name: "fig", Size: size(9), Score: 9.75},
		{Id: 50, Name: "plum", Size: size(8), Score: -1},
	} {
		require.NoError(t, pw.Write(row))
	}
	require.NoError(t, pw.WriteStop())
	require.NoError(t, fw.Close())

	file, err := Open(path)
	require.NoError(t, err)
	defer file.Close()

	assert.Equal(t, int64(5), file.NumRows())
	require.Equal(t, 2, file.NumRowGroups())
	require.Equal(t, 4, file.Schema().NumColumns())
	assert.Equal(t, common.CT_UINT_32, file.Schema().Column(2).CnvTyp)

	scanned, err := file.ScanStats()
	require.NoError(t, err)
	require.Equal(t, 2, len(scanned))

	idStat, has := scanned[0].Column("id")
	require.True(t, has)
	assert.Equal(t, int32(-3), idStat.Min().I32)
	assert.Equal(t, int32(7), idStat.Max().I32)
	assert.Equal(t, uint64(3), idStat.ValueCount())
	assert.Equal(t, uint64(0), idStat.NullCount())

	// unsigned window, the bit pattern with the sign bit is the biggest
	sizeStat, has := scanned[0].Column("size")
	require.True(t, has)
	assert.Equal(t, uint64(1), sizeStat.NullCount())
	assert.Equal(t, int32(3), sizeStat.Min().I32)
	assert.Equal(t, int32(-1), sizeStat.Max().I32)

	idStat1, has := scanned[1].Column("id")
	require.True(t, has)
	assert.Equal(t, int32(40), idStat1.Min().I32)
	assert.Equal(t, int32(50), idStat1.Max().I32)

	bad, err := file.VerifyStats()
	require.NoError(t, err)
	assert.Empty(t, bad)
}
