package catalog

import (
	"context"
	"fmt"
)

// Landing page sections.
const (
	featuredLimit     = 4
	newArrivalsLimit  = 4
	limitedDealsLimit = 1

	// lowStockThreshold is the stock level at or below which a product is a deal.
	lowStockThreshold = 5

	// dealMarkup derives the struck-through price of a deal from its price.
	dealMarkup = 1.5
)

// Home loads the landing page: featured products, the newest arrivals and
// one low-stock deal. A failure of any section fails the whole call.
func (c *Client) Home(ctx context.Context) (*Home, error) {
	featured, err := c.Products(ctx, Query{Limit: featuredLimit})
	if err != nil {
		return nil, fmt.Errorf("fetch featured products: %w", err)
	}

	arrivals, err := c.Products(ctx, Query{Sort: SortCreatedAtDesc, Limit: newArrivalsLimit})
	if err != nil {
		return nil, fmt.Errorf("fetch new arrivals: %w", err)
	}

	deals, err := c.Products(ctx, Query{MaxStock: lowStockThreshold, Limit: limitedDealsLimit})
	if err != nil {
		return nil, fmt.Errorf("fetch limited deals: %w", err)
	}

	return &Home{
		FeaturedProducts: featured.Products,
		NewArrivals:      arrivals.Products,
		LimitedDeals:     asDeals(deals.Products),
	}, nil
}

func asDeals(products []Product) []Product {
	deals := make([]Product, len(products))
	for i, p := range products {
		p.OriginalPrice = p.Price * dealMarkup
		deals[i] = p
	}
	return deals
}
