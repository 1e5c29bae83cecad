// Package shopspringnum offers an alternate numeric codec that produces
// github.com/shopspring/decimal values instead of apd decimals.
//
// Typical use registers it on a derived map so the override is scoped:
//
//	m := conn.CodecMap().Derive()
//	shopspringnum.Register(m)
//	conn.SetCodecMap(m)
package shopspringnum

import (
	"fmt"

	"github.com/cockroachdb/apd"
	"github.com/shopspring/decimal"

	"github.com/pgkit/pgwire/codec"
)

// Register installs the shopspring numeric codec on m, replacing the numeric
// codec m would otherwise use. Values decode as decimal.Decimal.
func Register(m *codec.Map) {
	base, ok := m.Lookup(codec.NumericOID)
	if !ok {
		return
	}
	baseDecode := base.DecodeBinary
	baseEncode := base.EncodeBinary

	m.Register(&codec.Codec{
		Name: "numeric",
		OID:  codec.NumericOID,
		DecodeBinary: func(m *codec.Map, src []byte) (interface{}, error) {
			v, err := baseDecode(m, src)
			if err != nil {
				return nil, err
			}

			d, err := decimal.NewFromString(v.(*apd.Decimal).String())
			if err != nil {
				return nil, err
			}
			return d, nil
		},
		EncodeBinary: func(m *codec.Map, dst []byte, v interface{}) ([]byte, error) {
			switch v := v.(type) {
			case decimal.Decimal:
				return baseEncode(m, dst, v.String())
			case *decimal.Decimal:
				return baseEncode(m, dst, v.String())
			default:
				return nil, fmt.Errorf("cannot convert %T to numeric", v)
			}
		},
	})
}
