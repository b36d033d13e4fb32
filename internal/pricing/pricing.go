// Package pricing recomputes order totals from catalog prices and checks them against the client.
package pricing

import (
	"fmt"
	"math"

	"github.com/Skotchmaster/kiosk_order/internal/apperr"
	"github.com/Skotchmaster/kiosk_order/internal/catalog"
)

const (
	MaxItems          = 50
	MaxOptionsPerItem = 20
)

type Line struct {
	ProductID uint
	Quantity  int
	OptionIDs []uint
}

// PriceBook is the read side of the catalog as seen by one order.
type PriceBook interface {
	AvailableProduct(id uint) (catalog.Product, bool)
	OptionPrice(productID, optionID uint) (catalog.OptionPrice, bool)
}

type PricedOption struct {
	OptionID   uint
	Name       string
	ExtraPrice int64
}

type PricedLine struct {
	ProductID   uint
	ProductName string
	Quantity    int
	UnitPrice   int64
	LineTotal   int64
	Options     []PricedOption
}

type Quote struct {
	Lines []PricedLine
	Total int64
}

// CheckShape validates what can be checked without the catalog.
func CheckShape(lines []Line, clientTotal int64) error {
	if clientTotal < 1 {
		return apperr.Field(apperr.CodeInvalidTotalPrice, "totalPrice", "must be a positive integer")
	}
	if len(lines) == 0 {
		return apperr.New(apperr.CodeItemsRequired, "")
	}
	if len(lines) > MaxItems {
		return apperr.New(apperr.CodeItemsTooMany, fmt.Sprintf("max %d", MaxItems))
	}

	for i, l := range lines {
		if l.ProductID == 0 {
			return apperr.At(apperr.CodeInvalidProductID, i)
		}
		if l.Quantity < 1 {
			return apperr.At(apperr.CodeInvalidQuantity, i)
		}
		if len(l.OptionIDs) > MaxOptionsPerItem {
			return apperr.At(apperr.CodeOptionIDsTooMany, i)
		}
		seen := make(map[uint]struct{}, len(l.OptionIDs))
		for _, oid := range l.OptionIDs {
			if oid == 0 {
				return apperr.At(apperr.CodeInvalidOptionID, i)
			}
			if _, dup := seen[oid]; dup {
				return apperr.At(apperr.CodeDuplicateOptionID, i)
			}
			seen[oid] = struct{}{}
		}
	}
	return nil
}

// Price derives every line total from the price book. Any unknown or unavailable
// product or option fails the whole order.
func Price(book PriceBook, lines []Line) (*Quote, error) {
	q := &Quote{Lines: make([]PricedLine, 0, len(lines))}

	for i, l := range lines {
		p, ok := book.AvailableProduct(l.ProductID)
		if !ok {
			e := apperr.At(apperr.CodeProductUnavailable, i)
			e.Reason = fmt.Sprintf("product %d", l.ProductID)
			return nil, e
		}

		unit := p.BasePrice
		opts := make([]PricedOption, 0, len(l.OptionIDs))
		for _, oid := range l.OptionIDs {
			op, ok := book.OptionPrice(l.ProductID, oid)
			if !ok {
				e := apperr.At(apperr.CodeOptionUnavailable, i)
				e.Reason = fmt.Sprintf("option %d", oid)
				return nil, e
			}
			unit += op.ExtraPrice
			opts = append(opts, PricedOption{OptionID: oid, Name: op.Name, ExtraPrice: op.ExtraPrice})
		}

		lineTotal, ok := mul(unit, int64(l.Quantity))
		if !ok || q.Total > math.MaxInt64-lineTotal {
			return nil, apperr.At(apperr.CodeInvalidQuantity, i)
		}

		q.Lines = append(q.Lines, PricedLine{
			ProductID:   l.ProductID,
			ProductName: p.Name,
			Quantity:    l.Quantity,
			UnitPrice:   unit,
			LineTotal:   lineTotal,
			Options:     opts,
		})
		q.Total += lineTotal
	}
	return q, nil
}

// Verify prices the lines and requires the client total to match exactly.
func Verify(book PriceBook, lines []Line, clientTotal int64) (*Quote, error) {
	if err := CheckShape(lines, clientTotal); err != nil {
		return nil, err
	}
	q, err := Price(book, lines)
	if err != nil {
		return nil, err
	}
	if q.Total != clientTotal {
		return nil, apperr.New(apperr.CodeTotalMismatch, fmt.Sprintf("expected %d, got %d", q.Total, clientTotal))
	}
	return q, nil
}

// ProductIDs and OptionIDs list what a snapshot has to load for these lines.
func ProductIDs(lines []Line) []uint {
	seen := make(map[uint]struct{}, len(lines))
	out := make([]uint, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; !ok {
			seen[l.ProductID] = struct{}{}
			out = append(out, l.ProductID)
		}
	}
	return out
}

func OptionIDs(lines []Line) []uint {
	seen := map[uint]struct{}{}
	var out []uint
	for _, l := range lines {
		for _, o := range l.OptionIDs {
			if _, ok := seen[o]; !ok {
				seen[o] = struct{}{}
				out = append(out, o)
			}
		}
	}
	return out
}

func mul(a, b int64) (int64, bool) {
	if a < 0 || b < 0 {
		return 0, false
	}
	if a != 0 && b > math.MaxInt64/a {
		return 0, false
	}
	return a * b, true
}
