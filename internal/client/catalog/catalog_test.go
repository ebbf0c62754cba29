package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/apitest"
	"github.com/atinyakov/GophShop/internal/models"
)

type stubAPI struct {
	got  api.ListingsQuery
	page *api.ListingsPage
	err  error
}

func (s *stubAPI) Listings(_ context.Context, q api.ListingsQuery) (*api.ListingsPage, error) {
	s.got = q
	return s.page, s.err
}

func TestBrowse_QueryNormalization(t *testing.T) {
	tests := []struct {
		name string
		in   Query
		want api.ListingsQuery
	}{
		{
			name: "defaults",
			in:   Query{},
			want: api.ListingsQuery{Limit: DefaultLimit},
		},
		{
			name: "all means no filter",
			in:   Query{Category: "all", Search: "  lamp "},
			want: api.ListingsQuery{Search: "lamp", Limit: DefaultLimit},
		},
		{
			name: "explicit paging",
			in:   Query{Category: "Home", Limit: 10, Offset: -3},
			want: api.ListingsQuery{Category: "Home", Limit: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubAPI{page: &api.ListingsPage{}}
			page, err := New(stub, nil).Browse(context.Background(), tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stub.got)
			assert.NotNil(t, page.Listings)
			assert.Equal(t, tt.want.Limit, page.Limit)
		})
	}
}

func TestBrowse_Error(t *testing.T) {
	stub := &stubAPI{err: errors.New("boom")}
	_, err := New(stub, nil).Browse(context.Background(), Query{})
	assert.EqualError(t, err, "boom")
}

func TestBrowse_FakeStorefront(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)

	lamp := srv.AddListing(models.Listing{
		Title:    "Desk lamp",
		Price:    decimal.NewFromInt(25),
		Category: "Home",
		Images:   models.Images{"https://img.example.com/lamp.jpg"},
	})
	srv.AddListing(models.Listing{Title: "Football", Price: decimal.NewFromInt(15), Category: "Sports"})

	c := New(api.New(srv.URL, srv.Client(), nil), nil)

	page, err := c.Browse(context.Background(), Query{Category: AllCategories})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = c.Browse(context.Background(), Query{Category: "Home"})
	require.NoError(t, err)
	require.Len(t, page.Listings, 1)
	assert.Equal(t, lamp, page.Listings[0].ID)
	assert.Equal(t, "https://img.example.com/lamp.jpg", page.Listings[0].Images.First())

	page, err = c.Browse(context.Background(), Query{Search: "foot"})
	require.NoError(t, err)
	require.Len(t, page.Listings, 1)
	assert.Equal(t, "Football", page.Listings[0].Title)
}
