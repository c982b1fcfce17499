package stats

import (
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	hll "github.com/axiomhq/hyperloglog"
	"github.com/huandu/go-clone"
	treemap "github.com/liyue201/gostl/ds/map"
	"go.uber.org/zap"

	"github.com/daviszhen/zonemap/pkg/common"
	"github.com/daviszhen/zonemap/pkg/compare"
	"github.com/daviszhen/zonemap/pkg/schema"
	"github.com/daviszhen/zonemap/pkg/util"
)

const (
	SAMPLE_RATE float64 = 0.1
)

type DistinctStats struct {
	_log         *hll.Sketch
	_sampleCount atomic.Uint64
	_totalCount  atomic.Uint64
}

func NewDistinctStats() *DistinctStats {
	ret := &DistinctStats{
		_log: hll.New14(),
	}
	return ret
}

func (stats *DistinctStats) Update(hashes []uint64, sample bool) {
	count := len(hashes)
	if count == 0 {
		return
	}
	stats._totalCount.Add(uint64(count))
	if sample {
		mval := int(float64(max(util.DefaultVectorSize, count)) * SAMPLE_RATE)
		count = min(mval, count)
	}
	stats._sampleCount.Add(uint64(count))
	for i := 0; i < count; i++ {
		stats._log.InsertHash(hashes[i])
	}
}

func (stats *DistinctStats) UpdateOne(hash uint64) {
	stats._totalCount.Add(1)
	stats._sampleCount.Add(1)
	stats._log.InsertHash(hash)
}

func (stats *DistinctStats) Count() uint64 {
	if stats._sampleCount.Load() == 0 ||
		stats._totalCount.Load() == 0 {
		return 0
	}
	cnt := stats._log.Estimate()
	u := float64(min(cnt, stats._sampleCount.Load()))
	s := float64(stats._sampleCount.Load())
	n := float64(stats._totalCount.Load())
	u1 := math.Pow(u/s, 2) * u
	est := u + u1/s*(n-s)
	return min(uint64(est), stats._totalCount.Load())
}

func (stats *DistinctStats) Copy() *DistinctStats {
	ret := &DistinctStats{
		_log: stats._log.Clone(),
	}
	ret._sampleCount.Store(stats._sampleCount.Load())
	ret._totalCount.Store(stats._totalCount.Load())

	return ret
}

func (stats *DistinctStats) Merge(other *DistinctStats) {
	_ = stats._log.Merge(other._log)
	stats._sampleCount.Add(other._sampleCount.Load())
	stats._totalCount.Add(other._totalCount.Load())
}

func (stats *DistinctStats) Serialize(serial util.Serialize) error {
	writer := NewFieldWriter(serial)
	err := WriteField[uint64](stats._sampleCount.Load(), writer)
	if err != nil {
		return err
	}
	err = WriteField[uint64](stats._totalCount.Load(), writer)
	if err != nil {
		return err
	}
	logData, err := stats._log.MarshalBinary()
	if err != nil {
		return err
	}
	err = WriteBlob(logData, writer)
	if err != nil {
		return err
	}
	return writer.Finalize()
}

func (stats *DistinctStats) Deserialize(deserial util.Deserialize) error {
	reader, err := NewFieldReader(deserial)
	if err != nil {
		return err
	}
	var scount, tcount uint64
	err = ReadRequired[uint64](&scount, reader)
	if err != nil {
		return err
	}
	err = ReadRequired[uint64](&tcount, reader)
	if err != nil {
		return err
	}
	stats._sampleCount.Store(scount)
	stats._totalCount.Store(tcount)
	logData, err := ReadBlob(reader)
	if err != nil {
		return err
	}
	reader.Finalize()
	return stats._log.UnmarshalBinary(logData)
}

// NaN never enters the window
func skipExtremum(val *common.Value) bool {
	switch val.Typ {
	case common.FLOAT:
		return math.IsNaN(float64(val.F32))
	case common.DOUBLE:
		return math.IsNaN(val.F64)
	}
	return false
}

func hashValue(val *common.Value) uint64 {
	img := val.PlainBytes()
	return util.HashBytes(util.BytesSliceToPointer(img), uint64(len(img)))
}

// ColumnStats folds decoded values of one column into a min max
// window plus null, value and distinct counts. the window is kept
// with the ordering of the column, nothing here compares raw values.
type ColumnStats struct {
	_col           *schema.Column
	_cmp           compare.Comparator
	_hasMin        bool
	_hasMax        bool
	_min           *common.Value
	_max           *common.Value
	_nullCount     uint64
	_valueCount    uint64
	_distinctStats *DistinctStats
}

func NewColumnStats(col *schema.Column) (*ColumnStats, error) {
	cmp, err := compare.ForColumn(col)
	if err != nil {
		return nil, err
	}
	ret := &ColumnStats{
		_col:           col,
		_cmp:           cmp,
		_distinctStats: NewDistinctStats(),
	}
	return ret, nil
}

func (stat *ColumnStats) updateMinMax(val *common.Value) {
	if skipExtremum(val) {
		return
	}
	if !stat._hasMin || stat._cmp.LessThan(val, stat._min) {
		stat._min = val.Copy()
		stat._hasMin = true
	}
	if !stat._hasMax || stat._cmp.LessThan(stat._max, val) {
		stat._max = val.Copy()
		stat._hasMax = true
	}
}

// Update folds one value. nil means NULL.
func (stat *ColumnStats) Update(val *common.Value) {
	if val == nil {
		stat._nullCount++
		return
	}
	stat._valueCount++
	stat._distinctStats.UpdateOne(hashValue(val))
	stat.updateMinMax(val)
}

// UpdateBatch folds a batch. rows invalid in the mask count as NULL.
func (stat *ColumnStats) UpdateBatch(vals []*common.Value, validity *util.Bitmap) {
	hashes := make([]uint64, 0, len(vals))
	for i, val := range vals {
		if validity != nil && !validity.RowIsValid(uint64(i)) {
			stat._nullCount++
			continue
		}
		stat._valueCount++
		hashes = append(hashes, hashValue(val))
		stat.updateMinMax(val)
	}
	stat._distinctStats.Update(hashes, true)
}

// Merge other into me
func (stat *ColumnStats) Merge(other *ColumnStats) {
	util.AssertFunc(stat._col.PathString() == other._col.PathString())
	stat._nullCount += other._nullCount
	stat._valueCount += other._valueCount
	if other._hasMin && (!stat._hasMin || stat._cmp.LessThan(other._min, stat._min)) {
		stat._min = other._min.Copy()
		stat._hasMin = true
	}
	if other._hasMax && (!stat._hasMax || stat._cmp.LessThan(stat._max, other._max)) {
		stat._max = other._max.Copy()
		stat._hasMax = true
	}
	stat._distinctStats.Merge(other._distinctStats)
}

func (stat *ColumnStats) Copy() *ColumnStats {
	ret := &ColumnStats{
		_col:           stat._col,
		_cmp:           stat._cmp,
		_hasMin:        stat._hasMin,
		_hasMax:        stat._hasMax,
		_nullCount:     stat._nullCount,
		_valueCount:    stat._valueCount,
		_distinctStats: stat._distinctStats.Copy(),
	}
	if stat._min != nil {
		ret._min = clone.Clone(stat._min).(*common.Value)
	}
	if stat._max != nil {
		ret._max = clone.Clone(stat._max).(*common.Value)
	}
	return ret
}

func (stat *ColumnStats) Column() *schema.Column {
	return stat._col
}

func (stat *ColumnStats) Comparator() compare.Comparator {
	return stat._cmp
}

func (stat *ColumnStats) HasMinMax() bool {
	return stat._hasMin && stat._hasMax
}

func (stat *ColumnStats) Min() *common.Value {
	return stat._min
}

func (stat *ColumnStats) Max() *common.Value {
	return stat._max
}

func (stat *ColumnStats) NullCount() uint64 {
	return stat._nullCount
}

func (stat *ColumnStats) ValueCount() uint64 {
	return stat._valueCount
}

func (stat *ColumnStats) DistinctCount() uint64 {
	return stat._distinctStats.Count()
}

func (stat *ColumnStats) String() string {
	window := "no window"
	if stat.HasMinMax() {
		window = fmt.Sprintf("min %v max %v", stat._min, stat._max)
	}
	return fmt.Sprintf("%s nulls %d values %d distinct %d",
		window, stat._nullCount, stat._valueCount, stat.DistinctCount())
}

// SetWindow installs extrema decoded elsewhere, for windows read
// back from a file footer instead of folded from values.
func (stat *ColumnStats) SetWindow(minVal, maxVal *common.Value) {
	if minVal != nil {
		stat._min = minVal.Copy()
		stat._hasMin = true
	}
	if maxVal != nil {
		stat._max = maxVal.Copy()
		stat._hasMax = true
	}
}

func (stat *ColumnStats) AddCounts(nullCount, valueCount uint64) {
	stat._nullCount += nullCount
	stat._valueCount += valueCount
}

func (stat *ColumnStats) Serialize(serial util.Serialize) error {
	writer := NewFieldWriter(serial)
	if err := WriteFieldString(stat._col.PathString(), writer); err != nil {
		return err
	}
	if err := WriteField[bool](stat._hasMin, writer); err != nil {
		return err
	}
	if err := WriteField[bool](stat._hasMax, writer); err != nil {
		return err
	}
	if err := WriteField[uint64](stat._nullCount, writer); err != nil {
		return err
	}
	if err := WriteField[uint64](stat._valueCount, writer); err != nil {
		return err
	}
	if stat._hasMin {
		if err := WriteFieldValue(stat._min, writer); err != nil {
			return err
		}
	}
	if stat._hasMax {
		if err := WriteFieldValue(stat._max, writer); err != nil {
			return err
		}
	}
	if err := writer.Finalize(); err != nil {
		return err
	}
	return util.WriteOptional(
		func() bool {
			return stat._distinctStats != nil
		},
		func(serial util.Serialize) error {
			return stat._distinctStats.Serialize(serial)
		},
		serial,
	)
}

func DeserializeColumnStats(
	deserial util.Deserialize,
	col *schema.Column) (*ColumnStats, error) {
	stat, err := NewColumnStats(col)
	if err != nil {
		return nil, err
	}
	reader, err := NewFieldReader(deserial)
	if err != nil {
		return nil, err
	}
	path, err := ReadFieldString(reader)
	if err != nil {
		return nil, err
	}
	if path != col.PathString() {
		return nil, fmt.Errorf("stats of column %s do not fit column %s",
			path, col.PathString())
	}
	if err = ReadRequired[bool](&stat._hasMin, reader); err != nil {
		return nil, err
	}
	if err = ReadRequired[bool](&stat._hasMax, reader); err != nil {
		return nil, err
	}
	if err = ReadRequired[uint64](&stat._nullCount, reader); err != nil {
		return nil, err
	}
	if err = ReadRequired[uint64](&stat._valueCount, reader); err != nil {
		return nil, err
	}
	if stat._hasMin {
		if stat._min, err = ReadFieldValue(reader); err != nil {
			return nil, err
		}
	}
	if stat._hasMax {
		if stat._max, err = ReadFieldValue(reader); err != nil {
			return nil, err
		}
	}
	reader.Finalize()
	err = util.ReadOptional(
		func(deserial util.Deserialize) error {
			return stat._distinctStats.Deserialize(deserial)
		},
		deserial,
	)
	if err != nil {
		return nil, err
	}
	return stat, nil
}

// TableStats keeps one accumulator per orderable column, keyed by
// the dotted path. Merge re-enters through Column, the lock allows
// that.
type TableStats struct {
	_lock        *util.ReentryLock
	_schema      *schema.Schema
	_columnStats *treemap.Map[string, *ColumnStats]
}

func NewTableStats(sch *schema.Schema) *TableStats {
	temp := treemap.New[string, *ColumnStats](strings.Compare)
	ret := &TableStats{
		_lock:        util.NewReentryLock(),
		_schema:      sch,
		_columnStats: temp,
	}
	for i := 0; i < sch.NumColumns(); i++ {
		col := sch.Column(i)
		colStats, err := NewColumnStats(col)
		if err != nil {
			util.Debug("column keeps no window",
				zap.String("column", col.PathString()),
				zap.Error(err))
			continue
		}
		ret._columnStats.Insert(col.PathString(), colStats)
	}
	return ret
}

func (stats *TableStats) Schema() *schema.Schema {
	return stats._schema
}

func (stats *TableStats) NumColumns() int {
	stats._lock.Lock()
	defer stats._lock.Unlock()
	return stats._columnStats.Size()
}

func (stats *TableStats) Column(path string) (*ColumnStats, bool) {
	stats._lock.Lock()
	defer stats._lock.Unlock()
	get, err := stats._columnStats.Get(path)
	if err != nil {
		return nil, false
	}
	return get, true
}

func (stats *TableStats) Paths() []string {
	stats._lock.Lock()
	defer stats._lock.Unlock()
	paths := make([]string, 0, stats._columnStats.Size())
	for iter := stats._columnStats.Begin(); iter.IsValid(); iter.Next() {
		paths = append(paths, iter.Key())
	}
	return paths
}

func (stats *TableStats) Update(path string, val *common.Value) error {
	colStats, has := stats.Column(path)
	if !has {
		return fmt.Errorf("no stats kept for column %s", path)
	}
	colStats.Update(val)
	return nil
}

func (stats *TableStats) UpdateBatch(
	path string,
	vals []*common.Value,
	validity *util.Bitmap) error {
	colStats, has := stats.Column(path)
	if !has {
		return fmt.Errorf("no stats kept for column %s", path)
	}
	colStats.UpdateBatch(vals, validity)
	return nil
}

func (stats *TableStats) Merge(other *TableStats) {
	stats._lock.Lock()
	defer stats._lock.Unlock()
	for iter := other._columnStats.Begin(); iter.IsValid(); iter.Next() {
		colStats, has := stats.Column(iter.Key())
		if !has {
			stats._columnStats.Insert(iter.Key(), iter.Value().Copy())
			continue
		}
		colStats.Merge(iter.Value())
	}
}

func (stats *TableStats) Serialize(serial util.Serialize) error {
	stats._lock.Lock()
	defer stats._lock.Unlock()
	err := util.Write[uint32](uint32(stats._columnStats.Size()), serial)
	if err != nil {
		return err
	}
	for iter := stats._columnStats.Begin(); iter.IsValid(); iter.Next() {
		if err = util.WriteString(iter.Key(), serial); err != nil {
			return err
		}
		if err = iter.Value().Serialize(serial); err != nil {
			return err
		}
	}
	return nil
}

func DeserializeTableStats(
	deserial util.Deserialize,
	sch *schema.Schema) (*TableStats, error) {
	ret := &TableStats{
		_lock:        util.NewReentryLock(),
		_schema:      sch,
		_columnStats: treemap.New[string, *ColumnStats](strings.Compare),
	}
	var count uint32
	err := util.Read[uint32](&count, deserial)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		path, err := util.ReadString(deserial)
		if err != nil {
			return nil, err
		}
		col, err := sch.Resolve(path)
		if err != nil {
			return nil, err
		}
		colStats, err := DeserializeColumnStats(deserial, col)
		if err != nil {
			return nil, err
		}
		ret._columnStats.Insert(path, colStats)
	}
	return ret, nil
}

// SaveToFile writes the stats behind a checksum.
func (stats *TableStats) SaveToFile(name string) error {
	buffer := NewBufferedSerialize(nil)
	if err := stats.Serialize(buffer); err != nil {
		return err
	}
	data := buffer._data.Bytes()
	sum := util.Checksum(util.BytesSliceToPointer(data), uint64(len(data)))
	serial, err := util.NewFileSerialize(name)
	if err != nil {
		return err
	}
	defer serial.Close()
	if err = util.Write[uint64](sum, serial); err != nil {
		return err
	}
	return util.WriteBytes(data, serial)
}

func LoadTableStatsFromFile(name string, sch *schema.Schema) (*TableStats, error) {
	deserial, err := util.NewFileDeserialize(name)
	if err != nil {
		return nil, err
	}
	defer deserial.Close()
	var sum uint64
	if err = util.Read[uint64](&sum, deserial); err != nil {
		return nil, err
	}
	data, err := util.ReadBytes(deserial)
	if err != nil {
		return nil, err
	}
	got := util.Checksum(util.BytesSliceToPointer(data), uint64(len(data)))
	if got != sum {
		return nil, fmt.Errorf("stats file %s corrupted", name)
	}
	return DeserializeTableStats(NewBufferedDeserialize(data), sch)
}
