package catalog

import (
	"net/url"
	"strconv"
	"time"
)

// Category is a product category.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Image is a product image.
type Image struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	IsPrimary bool   `json:"isPrimary"`
	Order     int    `json:"order"`
}

// Spec is a key/value product specification row.
type Spec struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Product is a catalog product as listed by GET /products.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	CategoryID  int64     `json:"categoryId"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Category    *Category `json:"category,omitempty"`
	Images      []Image   `json:"images,omitempty"`
	Specs       []Spec    `json:"specs,omitempty"`

	// OriginalPrice is the struck-through price shown on deals.
	// Zero when the product is not presented as a deal.
	OriginalPrice float64 `json:"originalPrice,omitempty"`
}

// PrimaryImage returns the image marked primary, the first image otherwise,
// or nil when the product has none.
func (p Product) PrimaryImage() *Image {
	for i := range p.Images {
		if p.Images[i].IsPrimary {
			return &p.Images[i]
		}
	}
	if len(p.Images) > 0 {
		return &p.Images[0]
	}
	return nil
}

// Sort orders accepted by the catalog API.
const (
	SortCreatedAtDesc = "createdAtDesc"
	SortPriceAsc      = "priceAsc"
	SortPriceDesc     = "priceDesc"
)

// Query filters a product listing. Zero fields are omitted from the request.
type Query struct {
	Search   string
	Category string
	MinPrice float64
	MaxPrice float64
	MaxStock int
	Sort     string
	Page     int
	Limit    int
}

// Values encodes q as URL query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.MinPrice > 0 {
		v.Set("minPrice", strconv.FormatFloat(q.MinPrice, 'f', -1, 64))
	}
	if q.MaxPrice > 0 {
		v.Set("maxPrice", strconv.FormatFloat(q.MaxPrice, 'f', -1, 64))
	}
	if q.MaxStock > 0 {
		v.Set("maxStock", strconv.Itoa(q.MaxStock))
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// Page is one page of a product listing.
type Page struct {
	Products    []Product `json:"products"`
	TotalPages  int       `json:"totalPages"`
	CurrentPage int       `json:"currentPage"`
	TotalItems  int64     `json:"totalItems"`
}

// Home is the data behind the storefront landing page.
type Home struct {
	FeaturedProducts []Product `json:"featuredProducts"`
	NewArrivals      []Product `json:"newArrivals"`
	LimitedDeals     []Product `json:"limitedDeals"`
}
