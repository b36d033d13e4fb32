// Package catalog reads menu prices. The menu itself is maintained by another service.
package catalog

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/kiosk_order/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Product struct {
	ID        uint
	Name      string
	BasePrice int64
}

type OptionPrice struct {
	OptionID   uint
	Name       string
	ExtraPrice int64
}

type optionKey struct {
	productID uint
	optionID  uint
}

// Snapshot is the slice of the catalog one order needs, read at a single point in time.
type Snapshot struct {
	products  map[uint]Product
	options   map[uint]models.Option
	overrides map[optionKey]int64
}

func (s *Snapshot) AvailableProduct(id uint) (Product, bool) {
	p, ok := s.products[id]
	return p, ok
}

// OptionPrice returns the per-product override when one is set, otherwise the option's default.
func (s *Snapshot) OptionPrice(productID, optionID uint) (OptionPrice, bool) {
	opt, ok := s.options[optionID]
	if !ok {
		return OptionPrice{}, false
	}
	price := opt.DefaultExtraPrice
	if override, ok := s.overrides[optionKey{productID, optionID}]; ok {
		price = override
	}
	return OptionPrice{OptionID: opt.ID, Name: opt.Name, ExtraPrice: price}, true
}

type GormCatalog struct {
	DB *gorm.DB
}

// Snapshot loads the products and options referenced by an order. Pass a transaction handle
// in DB to read the catalog inside the order's transaction.
func (c *GormCatalog) Snapshot(ctx context.Context, productIDs, optionIDs []uint) (*Snapshot, error) {
	db := c.DB.WithContext(ctx)
	snap := &Snapshot{
		products:  make(map[uint]Product, len(productIDs)),
		options:   make(map[uint]models.Option, len(optionIDs)),
		overrides: make(map[optionKey]int64),
	}

	if len(productIDs) > 0 {
		var products []models.Product
		// shared row locks keep products from being disabled until the order commits
		if err := db.Clauses(clause.Locking{Strength: "SHARE"}).
			Where("id IN ? AND is_available = ?", productIDs, true).Find(&products).Error; err != nil {
			return nil, fmt.Errorf("load products: %w", err)
		}
		for _, p := range products {
			snap.products[p.ID] = Product{ID: p.ID, Name: p.Name, BasePrice: p.BasePrice}
		}
	}

	if len(optionIDs) == 0 {
		return snap, nil
	}

	var options []models.Option
	if err := db.Where("id IN ?", optionIDs).Find(&options).Error; err != nil {
		return nil, fmt.Errorf("load options: %w", err)
	}
	for _, o := range options {
		snap.options[o.ID] = o
	}

	var links []models.ProductOption
	if err := db.Where("product_id IN ? AND option_id IN ? AND extra_price IS NOT NULL", productIDs, optionIDs).
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("load option overrides: %w", err)
	}
	for _, l := range links {
		snap.overrides[optionKey{l.ProductID, l.OptionID}] = *l.ExtraPrice
	}

	return snap, nil
}

// NewSnapshot builds a snapshot from literal data; used by tests and fixtures.
func NewSnapshot(products []models.Product, options []models.Option, links []models.ProductOption) *Snapshot {
	snap := &Snapshot{
		products:  map[uint]Product{},
		options:   map[uint]models.Option{},
		overrides: map[optionKey]int64{},
	}
	for _, p := range products {
		if p.IsAvailable {
			snap.products[p.ID] = Product{ID: p.ID, Name: p.Name, BasePrice: p.BasePrice}
		}
	}
	for _, o := range options {
		snap.options[o.ID] = o
	}
	for _, l := range links {
		if l.ExtraPrice != nil {
			snap.overrides[optionKey{l.ProductID, l.OptionID}] = *l.ExtraPrice
		}
	}
	return snap
}
