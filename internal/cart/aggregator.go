package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	"github.com/rtwroastery/roastery-backend/pkg/types"
)

const (
	UnknownProductName = "Unknown Product"
	UnknownBlendName   = "Unknown Blend"
	UnknownItemName    = "Unknown Item"
)

// ItemKind says which catalog a line resolved against.
type ItemKind string

const (
	KindProduct     ItemKind = "product"
	KindCustomBlend ItemKind = "custom_blend"
	KindUnknown     ItemKind = "unknown"
)

// LineItemRef is a cart entry before pricing. It must reference exactly one
// of a product or a custom blend.
type LineItemRef struct {
	ID            uuid.UUID  `json:"id"`
	ProductID     *uuid.UUID `json:"product_id,omitempty"`
	CustomBlendID *uuid.UUID `json:"custom_blend_id,omitempty"`
	Quantity      int        `json:"quantity"`
}

// IndexEntry is the priced view of a catalog product or custom blend.
type IndexEntry struct {
	Name  string
	Price decimal.Decimal
}

type CatalogIndex map[uuid.UUID]IndexEntry

type BlendIndex map[uuid.UUID]IndexEntry

// PricedLineItem is a resolved cart line. Missing lines carry a zero price
// so totals stay computable while the reference is gone.
type PricedLineItem struct {
	ID            uuid.UUID       `json:"id"`
	Kind          ItemKind        `json:"kind"`
	ProductID     *uuid.UUID      `json:"product_id,omitempty"`
	CustomBlendID *uuid.UUID      `json:"custom_blend_id,omitempty"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	Missing       bool            `json:"missing"`
}

// LineTotal is unit price times quantity, unrounded.
func (p PricedLineItem) LineTotal() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// OrderItem freezes the line for an order snapshot.
func (p PricedLineItem) OrderItem() types.OrderItem {
	return types.OrderItem{
		ProductID:     p.ProductID,
		CustomBlendID: p.CustomBlendID,
		Name:          p.Name,
		UnitPrice:     p.UnitPrice,
		Quantity:      p.Quantity,
		Missing:       p.Missing,
	}
}

// Resolve prices each reference against the pre-fetched indexes. Output has
// the same length and order as items; unresolvable lines become placeholders.
func Resolve(items []LineItemRef, catalog CatalogIndex, blends BlendIndex) []PricedLineItem {
	out := make([]PricedLineItem, len(items))
	for i, item := range items {
		out[i] = resolveOne(item, catalog, blends)
	}
	return out
}

func resolveOne(item LineItemRef, catalog CatalogIndex, blends BlendIndex) PricedLineItem {
	line := PricedLineItem{
		ID:            item.ID,
		ProductID:     item.ProductID,
		CustomBlendID: item.CustomBlendID,
		Quantity:      item.Quantity,
		UnitPrice:     decimal.Zero,
	}

	hasProduct := item.ProductID != nil && *item.ProductID != uuid.Nil
	hasBlend := item.CustomBlendID != nil && *item.CustomBlendID != uuid.Nil

	switch {
	case hasProduct && !hasBlend:
		line.Kind = KindProduct
		if entry, ok := catalog[*item.ProductID]; ok {
			line.Name = entry.Name
			line.UnitPrice = entry.Price
			return line
		}
		line.Name = UnknownProductName
	case hasBlend && !hasProduct:
		line.Kind = KindCustomBlend
		if entry, ok := blends[*item.CustomBlendID]; ok {
			line.Name = entry.Name
			line.UnitPrice = entry.Price
			return line
		}
		line.Name = UnknownBlendName
	default:
		line.Kind = KindUnknown
		line.Name = UnknownItemName
	}
	line.Missing = true
	return line
}

// ProductIDs collects the distinct product references in items.
func ProductIDs(items []LineItemRef) []uuid.UUID {
	return collectIDs(items, func(i LineItemRef) *uuid.UUID { return i.ProductID })
}

// BlendIDs collects the distinct custom blend references in items.
func BlendIDs(items []LineItemRef) []uuid.UUID {
	return collectIDs(items, func(i LineItemRef) *uuid.UUID { return i.CustomBlendID })
}

func collectIDs(items []LineItemRef, pick func(LineItemRef) *uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	var ids []uuid.UUID
	for _, item := range items {
		id := pick(item)
		if id == nil || *id == uuid.Nil {
			continue
		}
		if _, ok := seen[*id]; ok {
			continue
		}
		seen[*id] = struct{}{}
		ids = append(ids, *id)
	}
	return ids
}

func CatalogIndexFromModels(products []models.Product) CatalogIndex {
	idx := make(CatalogIndex, len(products))
	for _, p := range products {
		idx[p.ID] = IndexEntry{Name: p.Name, Price: p.Price}
	}
	return idx
}

func BlendIndexFromModels(rows []models.CustomBlend) BlendIndex {
	idx := make(BlendIndex, len(rows))
	for _, b := range rows {
		idx[b.ID] = IndexEntry{Name: b.Name, Price: b.Price}
	}
	return idx
}
