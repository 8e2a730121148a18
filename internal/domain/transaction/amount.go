package transaction

import (
	"github.com/shopspring/decimal"
)

// MicroPerUnit is the number of micro-units in one unit of the native currency
const MicroPerUnit = 1_000_000

// ToMicro converts a unit amount to micro-units, truncating anything below one micro-unit
func ToMicro(units decimal.Decimal) int64 {
	return units.Shift(6).Truncate(0).IntPart()
}

// FormatUnits renders micro-units as a unit amount without trailing zeros
func FormatUnits(micro int64) string {
	return decimal.New(micro, -6).String()
}
