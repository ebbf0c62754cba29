package dashboard

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/apitest"
	"github.com/atinyakov/GophShop/internal/models"
)

type tokenSession string

func (s tokenSession) Token() (string, bool) { return string(s), s != "" }

func TestOverview_Unauthenticated(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)

	_, err := New(api.New(srv.URL, srv.Client(), nil), tokenSession(""), nil).Overview(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Zero(t, srv.Calls("GET /api/dashboard/stats"))
}

func TestOverview(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)

	token := srv.AddUser("Sam", "sam@example.com", "secret1")
	srv.AddListing(models.Listing{Title: "Lamp", Price: decimal.NewFromInt(20), SellerName: "Sam"})
	srv.AddListing(models.Listing{Title: "Rug", Price: decimal.NewFromInt(40), SellerName: "Other"})
	srv.SetStats("sam@example.com", models.DashboardStats{
		ListingsCount: 1,
		SalesCount:    3,
		AverageRating: decimal.RequireFromString("4.5"),
	})

	o, err := New(api.New(srv.URL, srv.Client(), nil), tokenSession(token), nil).Overview(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, o.Stats.ListingsCount)
	assert.Equal(t, 3, o.Stats.SalesCount)
	assert.True(t, o.Stats.AverageRating.Equal(decimal.RequireFromString("4.5")))
	require.Len(t, o.Listings, 1)
	assert.Equal(t, "Lamp", o.Listings[0].Title)
	assert.Empty(t, o.Orders)
	assert.Zero(t, o.Unread())
}

func TestOverview_SectionFails(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	token := srv.AddUser("Sam", "sam@example.com", "secret1")
	srv.Fail("GET /api/messages/inbox", http.StatusInternalServerError, "inbox unavailable")

	_, err := New(api.New(srv.URL, srv.Client(), nil), tokenSession(token), nil).Overview(context.Background())
	var rej *api.RejectedError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, "inbox unavailable", rej.Detail)
}

func TestOverview_Unread(t *testing.T) {
	o := Overview{Inbox: []models.Message{{IsRead: true}, {}, {}}}
	assert.Equal(t, 2, o.Unread())
}

func TestOrders(t *testing.T) {
	srv := apitest.New()
	t.Cleanup(srv.Close)
	d := New(api.New(srv.URL, srv.Client(), nil), tokenSession(""), nil)

	_, err := d.Orders(context.Background())
	assert.ErrorIs(t, err, ErrUnauthenticated)

	token := srv.AddUser("Sam", "sam@example.com", "secret1")
	d = New(api.New(srv.URL, srv.Client(), nil), tokenSession(token), nil)
	orders, err := d.Orders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, 1, srv.Calls("GET /api/orders"))
}
