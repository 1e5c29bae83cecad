package codec

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/cockroachdb/apd"
	"github.com/jackc/pgio"
)

// PostgreSQL stores numeric values as a sequence of base-10000 digit groups
// plus a weight (position of the first group relative to the decimal point),
// a sign word, and a display scale. See src/backend/utils/adt/numeric.c.
const (
	pgNumericSignPositive = 0x0000
	pgNumericSignNegative = 0x4000
	pgNumericSignNaN      = 0xC000
	pgNumericSignPosInf   = 0xD000
	pgNumericSignNegInf   = 0xF000
)

var big10k = big.NewInt(10000)
var big10 = big.NewInt(10)

// decodeNumeric reconstructs the exact decimal value; no floating point is
// involved at any step. NaN and the infinities have no apd.Decimal
// representation and fail the decode.
func decodeNumeric(m *Map, src []byte) (interface{}, error) {
	if len(src) < 8 {
		return nil, fmt.Errorf("numeric incomplete, length %d", len(src))
	}

	ndigits := int(binary.BigEndian.Uint16(src))
	weight := int(int16(binary.BigEndian.Uint16(src[2:])))
	sign := binary.BigEndian.Uint16(src[4:])
	dscale := int(int16(binary.BigEndian.Uint16(src[6:])))
	rp := 8

	switch sign {
	case pgNumericSignPositive, pgNumericSignNegative:
	case pgNumericSignNaN:
		return nil, fmt.Errorf("cannot decode numeric NaN")
	case pgNumericSignPosInf, pgNumericSignNegInf:
		return nil, fmt.Errorf("cannot decode numeric infinity")
	default:
		return nil, fmt.Errorf("invalid numeric sign word %04x", sign)
	}

	if len(src[rp:]) < ndigits*2 {
		return nil, fmt.Errorf("numeric incomplete, length %d", len(src))
	}

	accum := &big.Int{}
	digit := &big.Int{}
	for i := 0; i < ndigits; i++ {
		d := binary.BigEndian.Uint16(src[rp:])
		rp += 2
		if d >= 10000 {
			return nil, fmt.Errorf("invalid base-10000 digit group %d", d)
		}
		accum.Mul(accum, big10k)
		accum.Add(accum, digit.SetInt64(int64(d)))
	}

	// The raw value is accum * 10^(4*(weight+1-ndigits)). Rescale to the
	// declared display scale; digit groups past dscale hold only zeros, so
	// the division below is always exact.
	exp := 4 * (weight + 1 - ndigits)
	if ndigits == 0 {
		exp = 0
	}
	targetExp := -dscale

	if exp > targetExp {
		accum.Mul(accum, new(big.Int).Exp(big10, big.NewInt(int64(exp-targetExp)), nil))
	} else if exp < targetExp {
		accum.Quo(accum, new(big.Int).Exp(big10, big.NewInt(int64(targetExp-exp)), nil))
	}

	d := apd.NewWithBigInt(accum, int32(targetExp))
	d.Negative = sign == pgNumericSignNegative

	return d, nil
}

func encodeNumeric(m *Map, dst []byte, v interface{}) ([]byte, error) {
	var d *apd.Decimal
	switch v := v.(type) {
	case *apd.Decimal:
		d = v
	case apd.Decimal:
		d = &v
	case string:
		var err error
		d, _, err = apd.NewFromString(v)
		if err != nil {
			return nil, err
		}
	default:
		if n, ok := int64Value(v); ok {
			d = apd.New(n, 0)
		} else {
			return nil, fmt.Errorf("cannot convert %T to numeric", v)
		}
	}

	coeff := new(big.Int).Abs(&d.Coeff)
	exp := int(d.Exponent)

	var dscale int
	if exp < 0 {
		dscale = -exp
	}

	// Shift the coefficient so the exponent lands on a base-10000 group
	// boundary.
	if shift := ((exp % 4) + 4) % 4; shift != 0 {
		coeff.Mul(coeff, new(big.Int).Exp(big10, big.NewInt(int64(shift)), nil))
		exp -= shift
	}

	var groups []uint16
	rem := &big.Int{}
	for coeff.Sign() != 0 {
		coeff.QuoRem(coeff, big10k, rem)
		groups = append(groups, uint16(rem.Int64()))
	}

	ndigits := len(groups)
	weight := ndigits - 1 + exp/4
	if ndigits == 0 {
		weight = 0
	}

	sign := pgNumericSignPositive
	if d.Negative {
		sign = pgNumericSignNegative
	}

	dst = pgio.AppendUint16(dst, uint16(ndigits))
	dst = pgio.AppendInt16(dst, int16(weight))
	dst = pgio.AppendUint16(dst, uint16(sign))
	dst = pgio.AppendUint16(dst, uint16(dscale))
	for i := ndigits - 1; i >= 0; i-- {
		dst = pgio.AppendUint16(dst, groups[i])
	}

	return dst, nil
}
