package common

import (
	"fmt"
	"time"

	"github.com/daviszhen/zonemap/pkg/util"
)

const (
	JulianUnixEpochDays int64 = 2440588
	NanosPerDay         int64 = 86400 * 1000 * 1000 * 1000
)

// Int96 keeps three 32bit words. The most significant word is the
// last one.
type Int96 struct {
	Value [3]uint32
}

func NewInt96(w0, w1, w2 uint32) Int96 {
	return Int96{Value: [3]uint32{w0, w1, w2}}
}

func NewInt96FromBytes(data []byte) (Int96, error) {
	if len(data) != Int96Size {
		return Int96{}, fmt.Errorf("int96 needs %d bytes, got %d", Int96Size, len(data))
	}
	ptr := util.BytesSliceToPointer(data)
	return NewInt96(
		util.Load[uint32](ptr),
		util.Load[uint32](util.PointerAdd(ptr, Int32Size)),
		util.Load[uint32](util.PointerAdd(ptr, 2*Int32Size)),
	), nil
}

func (i *Int96) Bytes() []byte {
	buf := make([]byte, Int96Size)
	ptr := util.BytesSliceToPointer(buf)
	util.Store[uint32](i.Value[0], ptr)
	util.Store[uint32](i.Value[1], util.PointerAdd(ptr, Int32Size))
	util.Store[uint32](i.Value[2], util.PointerAdd(ptr, 2*Int32Size))
	return buf
}

func (i *Int96) Equal(o *Int96) bool {
	return i.Value == o.Value
}

func (i Int96) String() string {
	return fmt.Sprintf("[%d %d %d]", i.Value[0], i.Value[1], i.Value[2])
}

// NewInt96FromTime packs the instant into the legacy timestamp
// layout. nanoseconds within the day in the low two words, julian
// day in the top word.
func NewInt96FromTime(t time.Time) Int96 {
	n := t.UnixNano()
	day := n / NanosPerDay
	rem := n % NanosPerDay
	if rem < 0 {
		day--
		rem += NanosPerDay
	}
	jd := day + JulianUnixEpochDays
	return NewInt96(
		uint32(uint64(rem)),
		uint32(uint64(rem)>>32),
		uint32(jd),
	)
}

func (i *Int96) Time() time.Time {
	nanos := int64(uint64(i.Value[0]) | uint64(i.Value[1])<<32)
	day := int64(int32(i.Value[2]))
	return time.Unix(0, (day-JulianUnixEpochDays)*NanosPerDay+nanos).UTC()
}
