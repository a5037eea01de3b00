// Package money holds the pure split arithmetic for settlement. All amounts
// are int64 minor currency units and the commission rate is carried in basis
// points, so no floating point ever touches a money value.
package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// BpsScale is the denominator for commission rates: 10000 bps == 100%.
const BpsScale = 10000

var (
	ErrEmptyOrder  = errors.New("money: order has no line items")
	ErrInvalidRate = errors.New("money: platform rate must be in [0, 1)")
)

// Line is a single order line attributed to a seller.
type Line struct {
	SellerID  int
	LineTotal int64
}

// Split is the per-seller settlement breakdown.
// Gross == Commission + Net always holds.
type Split struct {
	SellerID   int
	Gross      int64
	Commission int64
	Net        int64
}

// ComputeSplits groups lines by seller, sums gross per seller and takes the
// platform commission as floor(gross * rateBps / 10000). The sub-minor-unit
// remainder stays with the seller, so net + commission == gross exactly per
// seller and the sum over sellers conserves the order total.
//
// Sellers are returned in first-seen line order. The function is pure:
// retrying a settlement with the same inputs yields the same rows.
func ComputeSplits(lines []Line, rateBps int64) ([]Split, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	if rateBps < 0 || rateBps >= BpsScale {
		return nil, ErrInvalidRate
	}

	index := make(map[int]int, len(lines))
	splits := make([]Split, 0, len(lines))
	for _, l := range lines {
		i, ok := index[l.SellerID]
		if !ok {
			i = len(splits)
			index[l.SellerID] = i
			splits = append(splits, Split{SellerID: l.SellerID})
		}
		splits[i].Gross += l.LineTotal
	}

	for i := range splits {
		splits[i].Commission = splits[i].Gross * rateBps / BpsScale
		splits[i].Net = splits[i].Gross - splits[i].Commission
	}
	return splits, nil
}

// Conserves reports whether the splits add up to the given order total.
func Conserves(splits []Split, total int64) bool {
	var sum int64
	for _, s := range splits {
		sum += s.Commission + s.Net
	}
	return sum == total
}

// ParseRateBps parses a decimal rate like "0.10" into basis points.
// Used for config values; rejects anything outside [0, 1).
func ParseRateBps(s string) (int64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("money: bad rate %q: %w", s, err)
	}
	bps := int64(f*BpsScale + 0.5)
	if bps < 0 || bps >= BpsScale {
		return 0, ErrInvalidRate
	}
	return bps, nil
}

// FormatMinor renders a minor-unit amount as a decimal string with two
// fraction digits, e.g. 123456 -> "1234.56".
func FormatMinor(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
