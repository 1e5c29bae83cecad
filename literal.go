package pgwire

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/apd"
)

// Null is the marker value that ToSQLLiteral formats as SQL NULL.
var Null = sqlNull{}

type sqlNull struct{}

// ToSQLLiteral formats a Go value as SQL literal text. needsQuoting reports
// whether the text must be wrapped in single quotes (with embedded quotes
// doubled) before interpolation; booleans, NULL, and numbers are emitted in
// their unquoted SQL spelling. Quoting itself is left to the caller.
func ToSQLLiteral(v interface{}) (text string, needsQuoting bool) {
	switch v := v.(type) {
	case nil:
		return "NULL", false
	case sqlNull:
		return "NULL", false
	case bool:
		if v {
			return "true", false
		}
		return "false", false
	case int:
		return strconv.FormatInt(int64(v), 10), false
	case int8:
		return strconv.FormatInt(int64(v), 10), false
	case int16:
		return strconv.FormatInt(int64(v), 10), false
	case int32:
		return strconv.FormatInt(int64(v), 10), false
	case int64:
		return strconv.FormatInt(v, 10), false
	case uint:
		return strconv.FormatUint(uint64(v), 10), false
	case uint8:
		return strconv.FormatUint(uint64(v), 10), false
	case uint16:
		return strconv.FormatUint(uint64(v), 10), false
	case uint32:
		return strconv.FormatUint(uint64(v), 10), false
	case uint64:
		return strconv.FormatUint(v, 10), false
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), false
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), false
	case *apd.Decimal:
		return v.String(), false
	case apd.Decimal:
		return v.String(), false
	case string:
		return v, true
	case []byte:
		return `\x` + hex.EncodeToString(v), true
	case time.Time:
		return v.Format("2006-01-02 15:04:05.999999999Z07:00"), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}
