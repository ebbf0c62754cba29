// Package catalog browses the public shop listings.
package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/models"
)

// DefaultLimit is the page size used when a query does not set one.
const DefaultLimit = 50

// AllCategories selects every category.
const AllCategories = "All"

// Categories lists the shop sections offered for filtering.
var Categories = []string{AllCategories, "Electronics", "Sports", "Accessories", "Home"}

// API lists shop listings.
type API interface {
	Listings(ctx context.Context, q api.ListingsQuery) (*api.ListingsPage, error)
}

// Query selects a page of listings.
type Query struct {
	Category string
	Search   string
	Limit    int
	Offset   int
}

// Page is one page of results. Total counts every match, not just this page.
type Page struct {
	Listings []models.Listing
	Total    int
	Limit    int
	Offset   int
}

// Catalog reads listings; it needs no session.
type Catalog struct {
	api API
	log *zap.Logger
}

// New returns a catalog over a.
func New(a API, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{api: a, log: log}
}

// Browse returns the listings matching q.
func (c *Catalog) Browse(ctx context.Context, q Query) (*Page, error) {
	aq := api.ListingsQuery{
		Category: strings.TrimSpace(q.Category),
		Search:   strings.TrimSpace(q.Search),
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	if strings.EqualFold(aq.Category, AllCategories) {
		aq.Category = ""
	}
	if aq.Limit <= 0 {
		aq.Limit = DefaultLimit
	}
	if aq.Offset < 0 {
		aq.Offset = 0
	}

	res, err := c.api.Listings(ctx, aq)
	if err != nil {
		c.log.Info("browse listings failed", zap.String("category", aq.Category), zap.Error(err))
		return nil, err
	}
	c.log.Debug("browsed listings", zap.Int("count", len(res.Listings)), zap.Int("total", res.Total))

	listings := res.Listings
	if listings == nil {
		listings = []models.Listing{}
	}
	return &Page{Listings: listings, Total: res.Total, Limit: aq.Limit, Offset: aq.Offset}, nil
}
