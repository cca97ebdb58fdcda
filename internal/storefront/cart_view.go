package storefront

import (
	"context"

	"github.com/rtwroastery/roastery-backend/internal/cart"
	"github.com/rtwroastery/roastery-backend/internal/pricing"
)

// CartView prices the active cart without shipping. Lines whose reference is
// gone come back marked Missing.
func (a *App) CartView(ctx context.Context) ([]cart.PricedLineItem, pricing.Quote, error) {
	refs, err := a.Cart.Items(ctx)
	if err != nil {
		return nil, pricing.Quote{}, err
	}
	if len(refs) == 0 {
		return []cart.PricedLineItem{}, pricing.Compute([]cart.PricedLineItem{}, nil), nil
	}

	catalogIdx := cart.CatalogIndex{}
	if len(cart.ProductIDs(refs)) > 0 {
		products, err := a.Client.ListProducts(ctx)
		if err != nil {
			return nil, pricing.Quote{}, err
		}
		for _, p := range products {
			catalogIdx[p.ID] = cart.IndexEntry{Name: p.Name, Price: p.Price}
		}
	}

	blendIdx := cart.BlendIndex{}
	if len(cart.BlendIDs(refs)) > 0 && a.Identity.Current().Authenticated() {
		owned, err := a.Client.ListBlends(ctx)
		if err != nil {
			return nil, pricing.Quote{}, err
		}
		for _, b := range owned {
			blendIdx[b.ID] = cart.IndexEntry{Name: b.Name, Price: b.Price}
		}
	}

	lines := cart.Resolve(refs, catalogIdx, blendIdx)
	return lines, pricing.Compute(lines, nil).Rounded(), nil
}
