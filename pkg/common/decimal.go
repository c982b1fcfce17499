package common

import (
	"fmt"
	"math/big"

	decimal2 "github.com/govalues/decimal"
)

type Decimal struct {
	decimal2.Decimal
}

func (dec *Decimal) Equal(o *Decimal) bool {
	return dec.Decimal.Cmp(o.Decimal) == 0
}

func (dec *Decimal) String() string {
	return dec.Decimal.String()
}

func (dec *Decimal) Less(lhs, rhs *Decimal) bool {
	return lhs.Decimal.Cmp(rhs.Decimal) < 0
}

// NewDecimalFromUnscaled builds unscaled / 10^scale.
func NewDecimalFromUnscaled(unscaled int64, scale int) (Decimal, error) {
	d, err := decimal2.New(unscaled, scale)
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{Decimal: d}, nil
}

// NewDecimalFromBigEndian reads the unscaled coefficient from a two's
// complement big endian image.
func NewDecimalFromBigEndian(data []byte, scale int) (Decimal, error) {
	if len(data) == 0 {
		return Decimal{}, fmt.Errorf("empty decimal image")
	}
	unscaled := new(big.Int)
	if data[0]&0x80 != 0 {
		inv := make([]byte, len(data))
		for i, b := range data {
			inv[i] = ^b
		}
		unscaled.SetBytes(inv)
		unscaled.Add(unscaled, big.NewInt(1))
		unscaled.Neg(unscaled)
	} else {
		unscaled.SetBytes(data)
	}
	if unscaled.IsInt64() {
		return NewDecimalFromUnscaled(unscaled.Int64(), scale)
	}
	d, err := decimal2.Parse(scaleDigits(unscaled.String(), scale))
	if err != nil {
		return Decimal{}, err
	}
	return Decimal{Decimal: d}, nil
}

func scaleDigits(digits string, scale int) string {
	neg := ""
	if len(digits) > 0 && digits[0] == '-' {
		neg = "-"
		digits = digits[1:]
	}
	if scale <= 0 {
		return neg + digits
	}
	for len(digits) <= scale {
		digits = "0" + digits
	}
	point := len(digits) - scale
	return neg + digits[:point] + "." + digits[point:]
}
