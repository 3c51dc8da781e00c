// Package units holds the container and display arithmetic for ingredient stock.
//
// Stock is tracked in a base unit (g, ml, pc, ...). Ingredients bought in containers
// carry three tiers: containers, secondary units per container and base units per
// secondary unit. Every surface that converts between tiers goes through this package so
// rounding stays uniform.
package units

import (
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/counterpos-backend/pkg/errors"
)

const (
	Gram       = "g"
	Kilogram   = "kg"
	Millilitre = "ml"
	Litre      = "L"
	Piece      = "pc"
	Ounce      = "oz"
)

// QuantityScale is the number of decimals persisted for stock quantities.
const QuantityScale = 3

const displayScale = 2

var (
	thousand   = decimal.NewFromInt(1000)
	knownUnits = map[string]struct{}{
		Gram: {}, Kilogram: {}, Millilitre: {}, Litre: {}, Piece: {}, Ounce: {},
	}
)

// ErrIndeterminate is returned when container math cannot be computed from the inputs.
// Callers withhold the derived value instead of writing a guess.
var ErrIndeterminate = pkgerrors.New(pkgerrors.CodeStaleContainerMath, "container quantities are missing or not positive")

// IsKnown reports whether unit is a supported base unit symbol.
func IsKnown(unit string) bool {
	_, ok := knownUnits[unit]
	return ok
}

// Normalize rounds a quantity to the persisted scale.
func Normalize(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityScale)
}

// ComputeTotalFromContainers returns containers × containerQty × qtyPerUnit in base units.
func ComputeTotalFromContainers(containers, containerQty, qtyPerUnit decimal.NullDecimal) (decimal.Decimal, error) {
	if !positive(containers) || !positive(containerQty) || !positive(qtyPerUnit) {
		return decimal.Zero, ErrIndeterminate
	}
	return containers.Decimal.Mul(containerQty.Decimal).Mul(qtyPerUnit.Decimal), nil
}

// ComputeSecondaryUnitsFromStock back-derives secondary units per container:
// stock / (qtyPerUnit × containers).
func ComputeSecondaryUnitsFromStock(stock, qtyPerUnit, containers decimal.NullDecimal) (decimal.Decimal, error) {
	if !stock.Valid || stock.Decimal.IsNegative() {
		return decimal.Zero, ErrIndeterminate
	}
	if !positive(qtyPerUnit) || !positive(containers) {
		return decimal.Zero, ErrIndeterminate
	}
	return stock.Decimal.Div(qtyPerUnit.Decimal.Mul(containers.Decimal)), nil
}

// Display is a quantity scaled for humans.
type Display struct {
	Value decimal.Decimal `json:"value"`
	Unit  string          `json:"unit"`
}

// String renders "<value> <unit>" with trailing zeros stripped.
func (d Display) String() string {
	return d.Value.String() + " " + d.Unit
}

// Equal compares value and unit.
func (d Display) Equal(other Display) bool {
	return d.Unit == other.Unit && d.Value.Equal(other.Value)
}

// FormatForDisplay scales grams to kilograms and millilitres to litres at 1000 and keeps
// at most two decimals. Applying it to its own output returns the same display.
func FormatForDisplay(value decimal.Decimal, unit string) Display {
	switch unit {
	case Gram:
		return scaleDown(value, Gram, Kilogram)
	case Millilitre:
		return scaleDown(value, Millilitre, Litre)
	}
	return Display{Value: value.Round(displayScale), Unit: unit}
}

func scaleDown(value decimal.Decimal, small, large string) Display {
	// compare after rounding so 999.6 g is shown as 1 kg on the first pass
	rounded := value.Round(0)
	if rounded.GreaterThanOrEqual(thousand) {
		return Display{Value: value.Div(thousand).Round(displayScale), Unit: large}
	}
	return Display{Value: rounded, Unit: small}
}

func positive(d decimal.NullDecimal) bool {
	return d.Valid && d.Decimal.IsPositive()
}

// Known wraps a decimal as a valid NullDecimal.
func Known(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
