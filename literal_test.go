package pgwire_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/apd"
	"github.com/stretchr/testify/assert"

	"github.com/pgkit/pgwire"
)

func TestToSQLLiteral(t *testing.T) {
	t.Parallel()

	dec, _, err := apd.NewFromString("12.345")
	assert.NoError(t, err)

	tests := []struct {
		v            interface{}
		text         string
		needsQuoting bool
	}{
		{nil, "NULL", false},
		{pgwire.Null, "NULL", false},
		{true, "true", false},
		{false, "false", false},
		{42, "42", false},
		{int16(-7), "-7", false},
		{int64(9223372036854775807), "9223372036854775807", false},
		{uint32(4294967295), "4294967295", false},
		{1.5, "1.5", false},
		{float64(-0.25), "-0.25", false},
		{dec, "12.345", false},
		{"hello", "hello", true},
		{"it's", "it's", true},
		{[]byte{0xde, 0xad}, `\xdead`, true},
		{time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC), "2026-08-26 12:00:00Z", true},
	}

	for _, tt := range tests {
		text, needsQuoting := pgwire.ToSQLLiteral(tt.v)
		assert.Equal(t, tt.text, text, "%v", tt.v)
		assert.Equal(t, tt.needsQuoting, needsQuoting, "%v", tt.v)
	}
}
