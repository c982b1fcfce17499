package pqfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/daviszhen/zonemap/pkg/common"
	"github.com/daviszhen/zonemap/pkg/schema"
	"github.com/daviszhen/zonemap/pkg/stats"
	"github.com/daviszhen/zonemap/pkg/util"
	"github.com/xitongsys/parquet-go/parquet"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RowGroupStats turns the footer statistics of every row group into
// zone maps. Columns whose type keeps no window and chunks without
// usable statistics stay empty, pruning treats them as unknown.
func (file *File) RowGroupStats() ([]*stats.TableStats, error) {
	return statsFromFooter(file._schema, file._reader.Footer, 0)
}

// RowGroupStatsN bounds how many row groups get decoded at once.
func (file *File) RowGroupStatsN(parallelism int) ([]*stats.TableStats, error) {
	return statsFromFooter(file._schema, file._reader.Footer, parallelism)
}

func statsFromFooter(sch *schema.Schema, footer *parquet.FileMetaData, parallelism int) ([]*stats.TableStats, error) {
	groups := footer.GetRowGroups()
	result := make([]*stats.TableStats, len(groups))
	wg := errgroup.Group{}
	if parallelism > 0 {
		wg.SetLimit(parallelism)
	}
	for i := 0; i < len(groups); i++ {
		wg.Go(func() (retErr error) {
			defer func() {
				if xre := recover(); xre != nil {
					retErr = util.ConvertPanicError(xre)
				}
			}()
			result[i] = statsFromRowGroup(sch, i, groups[i])
			return
		})
	}
	err := wg.Wait()
	if err != nil {
		return nil, err
	}
	return result, nil
}

func statsFromRowGroup(sch *schema.Schema, gidx int, rg *parquet.RowGroup) *stats.TableStats {
	tstats := stats.NewTableStats(sch)
	for _, chunk := range rg.GetColumns() {
		meta := chunk.GetMetaData()
		if meta == nil {
			continue
		}
		path := strings.Join(meta.GetPathInSchema(), ".")
		colStats, has := tstats.Column(path)
		if !has {
			continue
		}
		fillChunkStats(gidx, colStats, meta)
	}
	return tstats
}

func fillChunkStats(gidx int, colStats *stats.ColumnStats, meta *parquet.ColumnMetaData) {
	st := meta.GetStatistics()
	total := uint64(meta.GetNumValues())
	var nullCount uint64
	if st != nil && st.IsSetNullCount() {
		nullCount = uint64(st.GetNullCount())
	}
	if nullCount > total {
		nullCount = total
	}
	colStats.AddCounts(nullCount, total-nullCount)
	if st == nil {
		return
	}
	minVal, maxVal := decodeWindow(gidx, colStats.Column(), st)
	if minVal != nil && maxVal != nil {
		colStats.SetWindow(minVal, maxVal)
	}
}

func decodeWindow(gidx int, col *schema.Column, st *parquet.Statistics) (*common.Value, *common.Value) {
	minImage := st.GetMinValue()
	maxImage := st.GetMaxValue()
	if minImage == nil || maxImage == nil {
		// Old writers compared bytes as signed. The legacy pair is
		// only safe for columns that still order that way, or when
		// the window is a single point.
		minImage = st.GetMin()
		maxImage = st.GetMax()
		if minImage == nil || maxImage == nil {
			return nil, nil
		}
		if col.SortOrder() != common.SortSigned && !bytes.Equal(minImage, maxImage) {
			return nil, nil
		}
	}
	minVal, err := common.DecodePlain(col.PhyTyp, minImage)
	if err != nil {
		util.Warn("drop min image",
			zap.Int("rowGroup", gidx),
			zap.String("column", col.PathString()),
			zap.Error(err))
		return nil, nil
	}
	maxVal, err := common.DecodePlain(col.PhyTyp, maxImage)
	if err != nil {
		util.Warn("drop max image",
			zap.Int("rowGroup", gidx),
			zap.String("column", col.PathString()),
			zap.Error(err))
		return nil, nil
	}
	return minVal, maxVal
}

// ChunkWindow decodes the raw footer window of one column chunk, even
// for columns that keep no zone map.
func (file *File) ChunkWindow(gidx int, path string) (*common.Value, *common.Value) {
	return chunkWindow(file._schema, file._reader.Footer, gidx, path)
}

func chunkWindow(sch *schema.Schema, footer *parquet.FileMetaData, gidx int, path string) (*common.Value, *common.Value) {
	groups := footer.GetRowGroups()
	if gidx < 0 || gidx >= len(groups) {
		return nil, nil
	}
	col, err := sch.Resolve(path)
	if err != nil {
		return nil, nil
	}
	for _, chunk := range groups[gidx].GetColumns() {
		meta := chunk.GetMetaData()
		if meta == nil || strings.Join(meta.GetPathInSchema(), ".") != path {
			continue
		}
		st := meta.GetStatistics()
		if st == nil {
			return nil, nil
		}
		return decodeWindow(gidx, col, st)
	}
	return nil, nil
}

// ScanStats rebuilds the zone maps from the data pages instead of the
// footer. The column streams come back in row group order, so the
// split into groups follows the footer row counts.
func (file *File) ScanStats() ([]*stats.TableStats, error) {
	groups := file._reader.Footer.GetRowGroups()
	result := make([]*stats.TableStats, len(groups))
	for i := range groups {
		result[i] = stats.NewTableStats(file._schema)
	}
	if len(groups) == 0 {
		return result, nil
	}
	for idx := 0; idx < file._schema.NumColumns(); idx++ {
		col := file._schema.Column(idx)
		if col.Rep == schema.RT_REPEATED {
			util.Warn("skip repeated column", zap.String("column", col.PathString()))
			continue
		}
		if _, has := result[0].Column(col.PathString()); !has {
			continue
		}
		err := file.scanColumn(idx, col, result)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (file *File) scanColumn(idx int, col *schema.Column, result []*stats.TableStats) error {
	groups := file._reader.Footer.GetRowGroups()
	path := col.PathString()
	gidx := 0
	remaining := groups[0].GetNumRows()
	var fed, total int64
	for _, rg := range groups {
		total += rg.GetNumRows()
	}
	for fed < total {
		maxCnt := min(int64(util.DefaultVectorSize), total-fed)
		values, _, _, err := file._reader.ReadColumnByIndex(int64(idx), maxCnt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if len(values) == 0 {
			break
		}
		for _, raw := range values {
			for remaining == 0 && gidx+1 < len(groups) {
				gidx++
				remaining = groups[gidx].GetNumRows()
			}
			if remaining == 0 {
				return fmt.Errorf("column %s holds more values than the footer row counts", path)
			}
			val, err := valueFromParquet(col, raw)
			if err != nil {
				return err
			}
			err = result[gidx].Update(path, val)
			if err != nil {
				return err
			}
			remaining--
			fed++
		}
	}
	if fed != total {
		return fmt.Errorf("column %s ends after %d of %d values", path, fed, total)
	}
	return nil
}

// valueFromParquet converts one raw entry of a column stream. The
// reader hands back nil for NULL rows and raw bytes as string.
func valueFromParquet(col *schema.Column, raw any) (*common.Value, error) {
	if raw == nil {
		return nil, nil
	}
	switch col.PhyTyp {
	case common.BOOLEAN:
		if v, ok := raw.(bool); ok {
			return common.NewBoolValue(v), nil
		}
	case common.INT32:
		if v, ok := raw.(int32); ok {
			return common.NewInt32Value(v), nil
		}
	case common.INT64:
		if v, ok := raw.(int64); ok {
			return common.NewInt64Value(v), nil
		}
	case common.INT96:
		if v, ok := raw.(string); ok {
			i96, err := common.NewInt96FromBytes([]byte(v))
			if err != nil {
				return nil, err
			}
			return common.NewInt96Value(i96), nil
		}
	case common.FLOAT:
		if v, ok := raw.(float32); ok {
			return common.NewFloatValue(v), nil
		}
	case common.DOUBLE:
		if v, ok := raw.(float64); ok {
			return common.NewDoubleValue(v), nil
		}
	case common.BYTE_ARRAY, common.FIXED_LEN_BYTE_ARRAY:
		if v, ok := raw.(string); ok {
			return common.NewBytesValue(col.PhyTyp, []byte(v)), nil
		}
	default:
		panic("usp")
	}
	return nil, fmt.Errorf("column %s: %T does not match %v", col.PathString(), raw, col.PhyTyp)
}

// Mismatch is one disagreement between the footer statistics and the
// data pages.
type Mismatch struct {
	Group  int
	Column string
	Field  string
	Footer string
	Data   string
}

func (mis Mismatch) String() string {
	return fmt.Sprintf("row group %d column %s %s: footer %s, data %s",
		mis.Group, mis.Column, mis.Field, mis.Footer, mis.Data)
}

// VerifyStats checks the footer statistics against the data pages.
// The value totals always get checked. The null split and the window
// only when the footer actually claims them. A window wider than the
// data passes, only a value outside the claimed window is corruption.
func (file *File) VerifyStats() ([]Mismatch, error) {
	fromFooter, err := file.RowGroupStats()
	if err != nil {
		return nil, err
	}
	fromData, err := file.ScanStats()
	if err != nil {
		return nil, err
	}
	util.AssertFunc(len(fromFooter) == len(fromData))
	var bad []Mismatch
	for gidx := range fromFooter {
		for _, path := range fromFooter[gidx].Paths() {
			footStat, _ := fromFooter[gidx].Column(path)
			dataStat, has := fromData[gidx].Column(path)
			if !has {
				continue
			}
			bad = append(bad, diffColumn(gidx, path, footStat, dataStat)...)
		}
	}
	if util.Empty(bad) {
		util.Info("footer statistics check out", zap.String("path", file._path))
	} else {
		util.Warn("footer statistics disagree with the data pages",
			zap.String("path", file._path),
			zap.Int("mismatches", len(bad)))
	}
	return bad, nil
}

func diffColumn(gidx int, path string, footStat, dataStat *stats.ColumnStats) []Mismatch {
	var bad []Mismatch
	footTotal := footStat.NullCount() + footStat.ValueCount()
	dataTotal := dataStat.NullCount() + dataStat.ValueCount()
	if footTotal != dataTotal {
		bad = append(bad, Mismatch{
			Group:  gidx,
			Column: path,
			Field:  "values",
			Footer: fmt.Sprintf("%d", footTotal),
			Data:   fmt.Sprintf("%d", dataTotal),
		})
	}
	claims := footStat.HasMinMax()
	if (claims || footStat.NullCount() > 0) && footStat.NullCount() != dataStat.NullCount() {
		bad = append(bad, Mismatch{
			Group:  gidx,
			Column: path,
			Field:  "null_count",
			Footer: fmt.Sprintf("%d", footStat.NullCount()),
			Data:   fmt.Sprintf("%d", dataStat.NullCount()),
		})
	}
	if claims && dataStat.HasMinMax() {
		cmp := footStat.Comparator()
		if cmp.LessThan(dataStat.Min(), footStat.Min()) {
			bad = append(bad, Mismatch{
				Group:  gidx,
				Column: path,
				Field:  "min",
				Footer: footStat.Min().String(),
				Data:   dataStat.Min().String(),
			})
		}
		if cmp.LessThan(footStat.Max(), dataStat.Max()) {
			bad = append(bad, Mismatch{
				Group:  gidx,
				Column: path,
				Field:  "max",
				Footer: footStat.Max().String(),
				Data:   dataStat.Max().String(),
			})
		}
	}
	return bad
}
