package stats

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/daviszhen/zonemap/pkg/common"
	"github.com/daviszhen/zonemap/pkg/util"
)

var _ util.Serialize = new(BufferedSerialize)

type BufferedSerialize struct {
	_data *bytes.Buffer
}

func NewBufferedSerialize(buf []byte) *BufferedSerialize {
	return &BufferedSerialize{
		_data: bytes.NewBuffer(buf),
	}
}

func (serial *BufferedSerialize) WriteData(buffer []byte, len int) error {
	_, err := serial._data.Write(buffer[:len])
	return err
}

func (serial *BufferedSerialize) Close() error {
	serial._data.Reset()
	return nil
}

var _ util.Deserialize = new(BufferedDeserialize)

type BufferedDeserialize struct {
	_data *bytes.Buffer
}

func NewBufferedDeserialize(buf []byte) *BufferedDeserialize {
	return &BufferedDeserialize{
		_data: bytes.NewBuffer(buf),
	}
}

func (deserial *BufferedDeserialize) ReadData(buffer []byte, len int) error {
	n, err := deserial._data.Read(buffer[:len])
	if err != nil {
		return err
	}
	if n != len {
		return fmt.Errorf("short read %d of %d", n, len)
	}
	return nil
}

func (deserial *BufferedDeserialize) Close() error {
	return nil
}

// FieldWriter buffers a group of fields and flushes them behind a
// field count and a byte size. readers written against an older
// field layout can skip the fields they do not know.
type FieldWriter struct {
	_serial     util.Serialize
	_buffer     *BufferedSerialize
	_fieldCount uint64
	_finalized  bool
}

func NewFieldWriter(serial util.Serialize) *FieldWriter {
	return &FieldWriter{
		_serial: serial,
		_buffer: NewBufferedSerialize(nil),
	}
}

func (writer *FieldWriter) Close() {
	util.AssertFunc(writer._finalized)
	_ = writer._buffer.Close()
}

func (writer *FieldWriter) AddField() {
	writer._fieldCount++
}

func (writer *FieldWriter) WriteData(buf []byte) error {
	return writer._buffer.WriteData(buf, len(buf))
}

func (writer *FieldWriter) Finalize() error {
	util.AssertFunc(!writer._finalized)
	writer._finalized = true
	util.AssertFunc(writer._fieldCount > 0)
	err := util.Write[uint64](writer._fieldCount, writer._serial)
	if err != nil {
		return err
	}
	err = util.Write[uint64](uint64(writer._buffer._data.Len()), writer._serial)
	if err != nil {
		return err
	}
	err = writer._serial.WriteData(
		writer._buffer._data.Bytes(),
		writer._buffer._data.Len())
	if err != nil {
		return err
	}
	err = writer._buffer.Close()
	if err != nil {
		return err
	}
	writer._buffer = nil
	return err
}

func WriteField[T any](value T, writer *FieldWriter) error {
	writer.AddField()

	cnt := int(unsafe.Sizeof(value))
	buf := util.PointerToSlice[byte](unsafe.Pointer(&value), cnt)
	return writer.WriteData(buf)
}

func WriteFieldString(value string, writer *FieldWriter) error {
	writer.AddField()

	err := util.Write[uint32](uint32(len(value)), writer._buffer)
	if err != nil {
		return err
	}
	if len(value) > 0 {
		return writer._buffer.WriteData(util.UnsafeStringToBytes(value), len(value))
	}
	return nil
}

func WriteBlob(data []byte, writer *FieldWriter) error {
	writer.AddField()
	err := util.Write[uint32](uint32(len(data)), writer._buffer)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		return writer.WriteData(data)
	}
	return nil
}

func WriteFieldValue(val *common.Value, writer *FieldWriter) error {
	writer.AddField()
	return val.Serialize(writer._buffer)
}

type FieldReader struct {
	_source        util.Deserialize
	_fieldCount    uint64
	_maxFieldCount uint64
	_totalSize     uint64
	_finalized     bool
}

func NewFieldReader(source util.Deserialize) (*FieldReader, error) {
	ret := &FieldReader{
		_source: source,
	}
	err := util.Read[uint64](&ret._maxFieldCount, source)
	if err != nil {
		return nil, err
	}
	err = util.Read[uint64](&ret._totalSize, source)
	if err != nil {
		return nil, err
	}
	util.AssertFunc(ret._maxFieldCount > 0)
	return ret, err
}

func (reader *FieldReader) Finalize() {
	util.AssertFunc(!reader._finalized)
	reader._finalized = true
}

func (reader *FieldReader) AddField() {
	reader._fieldCount++
}

func ReadRequired[T any](value *T, reader *FieldReader) error {
	if reader._fieldCount >= reader._maxFieldCount {
		return fmt.Errorf("field_count >= max_field_count")
	}
	reader.AddField()
	return util.Read[T](value, reader._source)
}

func ReadFieldString(reader *FieldReader) (string, error) {
	if reader._fieldCount >= reader._maxFieldCount {
		return "", fmt.Errorf("field_count >= max_field_count")
	}
	reader.AddField()
	return util.ReadString(reader._source)
}

func ReadBlob(reader *FieldReader) ([]byte, error) {
	if reader._fieldCount >= reader._maxFieldCount {
		return nil, fmt.Errorf("field_count >= max_field_count")
	}
	reader.AddField()
	var dlen uint32
	err := util.Read[uint32](&dlen, reader._source)
	if err != nil {
		return nil, err
	}
	if dlen == 0 {
		return nil, nil
	}
	data := make([]byte, dlen)
	err = reader._source.ReadData(data, int(dlen))
	if err != nil {
		return nil, err
	}
	return data, nil
}

func ReadFieldValue(reader *FieldReader) (*common.Value, error) {
	if reader._fieldCount >= reader._maxFieldCount {
		return nil, fmt.Errorf("field_count >= max_field_count")
	}
	reader.AddField()
	return common.DeserializeValue(reader._source)
}
