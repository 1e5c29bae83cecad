package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgio"
)

// PostgreSQL's date epoch is 2000-01-01; dates travel as a day count and
// timestamps as a microsecond count relative to it.
const (
	secFromUnixEpochToY2K      = 946684800
	microsecFromUnixEpochToY2K = secFromUnixEpochToY2K * 1000000
)

// InfinityModifier marks a date or timestamp as one of the special
// infinity values, which have no time.Time representation.
type InfinityModifier int8

const (
	Infinity         InfinityModifier = 1
	NegativeInfinity InfinityModifier = -1
)

func (im InfinityModifier) String() string {
	switch im {
	case Infinity:
		return "infinity"
	case NegativeInfinity:
		return "-infinity"
	default:
		return "invalid"
	}
}

// Interval mirrors the on-the-wire interval representation: independent
// month, day, and microsecond components that do not reduce to one another.
type Interval struct {
	Microseconds int64
	Days         int32
	Months       int32
}

func decodeDate(m *Map, src []byte) (interface{}, error) {
	if len(src) != 4 {
		return nil, fmt.Errorf("invalid length for date: %v", len(src))
	}

	days := int32(binary.BigEndian.Uint32(src))

	switch days {
	case math.MaxInt32:
		return Infinity, nil
	case math.MinInt32:
		return NegativeInfinity, nil
	}

	return time.Date(2000, 1, int(1+days), 0, 0, 0, 0, time.UTC), nil
}

func encodeDate(m *Map, dst []byte, v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case time.Time:
		t := v.UTC()
		secs := t.Unix() - secFromUnixEpochToY2K
		days := secs / 86400
		if secs%86400 < 0 {
			days--
		}
		return pgio.AppendInt32(dst, int32(days)), nil
	case InfinityModifier:
		if v == Infinity {
			return pgio.AppendInt32(dst, math.MaxInt32), nil
		}
		return pgio.AppendInt32(dst, math.MinInt32), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to date", v)
	}
}

func decodeTime(m *Map, src []byte) (interface{}, error) {
	if len(src) != 8 {
		return nil, fmt.Errorf("invalid length for time: %v", len(src))
	}

	usec := int64(binary.BigEndian.Uint64(src))
	return time.Duration(usec) * time.Microsecond, nil
}

func encodeTime(m *Map, dst []byte, v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case time.Duration:
		return pgio.AppendInt64(dst, int64(v/time.Microsecond)), nil
	case time.Time:
		t := v.UTC()
		usec := int64(t.Hour())*3600000000 + int64(t.Minute())*60000000 +
			int64(t.Second())*1000000 + int64(t.Nanosecond())/1000
		return pgio.AppendInt64(dst, usec), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to time", v)
	}
}

func decodeTimestamp(m *Map, src []byte) (interface{}, error) {
	if len(src) != 8 {
		return nil, fmt.Errorf("invalid length for timestamp: %v", len(src))
	}

	usec := int64(binary.BigEndian.Uint64(src))

	switch usec {
	case math.MaxInt64:
		return Infinity, nil
	case math.MinInt64:
		return NegativeInfinity, nil
	}

	usec += microsecFromUnixEpochToY2K
	return time.Unix(usec/1000000, usec%1000000*1000).UTC(), nil
}

func encodeTimestamp(m *Map, dst []byte, v interface{}) ([]byte, error) {
	switch v := v.(type) {
	case time.Time:
		t := v.UTC()
		usec := t.Unix()*1000000 + int64(t.Nanosecond())/1000 - microsecFromUnixEpochToY2K
		return pgio.AppendInt64(dst, usec), nil
	case InfinityModifier:
		if v == Infinity {
			return pgio.AppendInt64(dst, math.MaxInt64), nil
		}
		return pgio.AppendInt64(dst, math.MinInt64), nil
	default:
		return nil, fmt.Errorf("cannot convert %T to timestamp", v)
	}
}

func decodeInterval(m *Map, src []byte) (interface{}, error) {
	if len(src) != 16 {
		return nil, fmt.Errorf("invalid length for interval: %v", len(src))
	}

	return Interval{
		Microseconds: int64(binary.BigEndian.Uint64(src)),
		Days:         int32(binary.BigEndian.Uint32(src[8:])),
		Months:       int32(binary.BigEndian.Uint32(src[12:])),
	}, nil
}

func encodeInterval(m *Map, dst []byte, v interface{}) ([]byte, error) {
	var iv Interval
	switch v := v.(type) {
	case Interval:
		iv = v
	case time.Duration:
		iv = Interval{Microseconds: int64(v / time.Microsecond)}
	default:
		return nil, fmt.Errorf("cannot convert %T to interval", v)
	}

	dst = pgio.AppendInt64(dst, iv.Microseconds)
	dst = pgio.AppendInt32(dst, iv.Days)
	dst = pgio.AppendInt32(dst, iv.Months)
	return dst, nil
}
