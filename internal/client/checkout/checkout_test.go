package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/apitest"
	"github.com/atinyakov/GophShop/internal/client/cart"
	"github.com/atinyakov/GophShop/internal/client/credential"
	"github.com/atinyakov/GophShop/internal/client/session"
	"github.com/atinyakov/GophShop/internal/models"
)

const (
	checkoutRoute = "POST /api/checkout"
	email         = "bob@example.com"
)

type fixture struct {
	srv   *apitest.Server
	sess  *session.Store
	cart  *cart.Synchronizer
	svc   *Service
	token string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)

	client := api.New(srv.URL, srv.Client(), nil)
	sess := session.NewStore(client, credential.NewFileStore(filepath.Join(t.TempDir(), "s.json"), nil), nil)
	sess.Initialize(context.Background())
	c := cart.New(client, sess, nil, 0)
	t.Cleanup(c.Close)

	return &fixture{
		srv:   srv,
		sess:  sess,
		cart:  c,
		svc:   New(client, sess, c, nil),
		token: srv.AddUser("Bob", email, "secret1"),
	}
}

func (f *fixture) login() {
	f.sess.Login(context.Background(), f.token, &models.User{Name: "Bob", Email: email})
	f.cart.Wait()
}

func validForm() Form {
	return Form{
		Shipping: models.ShippingAddress{
			FirstName: "Bob",
			LastName:  "Builder",
			Email:     email,
			Phone:     "555-0100",
			Address:   "1 Main St",
			City:      "Springfield",
			State:     "IL",
			ZipCode:   "62701",
			Country:   "US",
		},
		Payment: models.PaymentInfo{Method: "cod"},
	}
}

func TestSubmit_Unauthenticated(t *testing.T) {
	f := newFixture(t)

	res, ack, err := f.svc.Submit(context.Background(), validForm())
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.False(t, res.OK)
	assert.Nil(t, ack)
	assert.Zero(t, f.srv.Calls(checkoutRoute))
}

func TestSubmit_EmptyCart(t *testing.T) {
	f := newFixture(t)
	f.login()

	res, ack, err := f.svc.Submit(context.Background(), validForm())
	require.NoError(t, err)
	assert.Equal(t, cart.Result{Message: "Your cart is empty!"}, res)
	assert.Nil(t, ack)
	assert.Zero(t, f.srv.Calls(checkoutRoute))
}

func TestSubmit_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Form)
		want   string
	}{
		{
			name:   "missing first name",
			modify: func(f *Form) { f.Shipping.FirstName = "" },
			want:   "firstName is required",
		},
		{
			name:   "bad email",
			modify: func(f *Form) { f.Shipping.Email = "nope" },
			want:   "email must be a valid email address",
		},
		{
			name:   "unknown payment method",
			modify: func(f *Form) { f.Payment.Method = "barter" },
			want:   "method must be one of: credit paypal cod",
		},
		{
			name: "card without number",
			modify: func(f *Form) {
				f.Payment = models.PaymentInfo{Method: "credit", ExpiryDate: "12/30", CVV: "123", NameOnCard: "Bob"}
			},
			want: "cardNumber is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			id := f.srv.AddListing(models.Listing{Title: "Lamp", Price: decimal.NewFromInt(20)})
			f.srv.SetCart(email, []models.CartLine{{ProductID: id, Price: decimal.NewFromInt(20), Quantity: 1}})
			f.login()

			form := validForm()
			tt.modify(&form)
			res, ack, err := f.svc.Submit(context.Background(), form)
			require.NoError(t, err)
			assert.Equal(t, cart.Result{Message: tt.want}, res)
			assert.Nil(t, ack)
			assert.Zero(t, f.srv.Calls(checkoutRoute))
		})
	}
}

func TestSubmit_PlacesOrderAndClearsCart(t *testing.T) {
	f := newFixture(t)
	lamp := f.srv.AddListing(models.Listing{Title: "Lamp", Price: decimal.NewFromInt(20)})
	rug := f.srv.AddListing(models.Listing{Title: "Rug", Price: decimal.RequireFromString("7.5")})
	f.srv.SetCart(email, []models.CartLine{
		{ProductID: lamp, Price: decimal.NewFromInt(20), Quantity: 2},
		{ProductID: rug, Price: decimal.RequireFromString("7.5"), Quantity: 1},
	})
	f.login()

	bodies := make(chan []byte, 1)
	f.srv.Hook(checkoutRoute, func(r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		r.Body = io.NopCloser(bytes.NewReader(body))
	})

	form := validForm()
	form.Payment = models.PaymentInfo{Method: "credit", CardNumber: "4111111111111111", ExpiryDate: "12/30", CVV: "123", NameOnCard: "Bob"}
	res, ack, err := f.svc.Submit(context.Background(), form)
	require.NoError(t, err)

	assert.Equal(t, cart.Result{OK: true, Message: "Order placed successfully!"}, res)
	require.NotNil(t, ack)
	assert.Equal(t, "ORD-TEST-0001", ack.OrderNumber)
	assert.True(t, ack.TotalAmount.Equal(decimal.RequireFromString("47.5")))

	var sent models.CheckoutRequest
	require.NoError(t, json.Unmarshal(<-bodies, &sent))
	require.Len(t, sent.OrderItems, 2)
	assert.Equal(t, lamp, sent.OrderItems[0].ProductID)
	assert.Equal(t, 2, sent.OrderItems[0].Quantity)
	assert.Equal(t, "Springfield", sent.ShippingAddress.City)
	assert.Equal(t, "4111111111111111", sent.PaymentInfo.CardNumber)

	assert.Empty(t, f.cart.Items())
	assert.Equal(t, 1, f.srv.Calls("DELETE /api/cart/clear"))
}

func TestSubmit_Rejected(t *testing.T) {
	f := newFixture(t)
	id := f.srv.AddListing(models.Listing{Title: "Lamp", Price: decimal.NewFromInt(20)})
	f.srv.SetCart(email, []models.CartLine{{ProductID: id, Price: decimal.NewFromInt(20), Quantity: 1}})
	f.login()

	f.srv.Fail(checkoutRoute, http.StatusBadRequest, "Listing Lamp is no longer available")
	res, ack, err := f.svc.Submit(context.Background(), validForm())
	require.NoError(t, err)
	assert.Equal(t, cart.Result{Message: "Listing Lamp is no longer available"}, res)
	assert.Nil(t, ack)
	assert.Len(t, f.cart.Items(), 1, "cart is kept when the order fails")

	f.srv.Fail(checkoutRoute, http.StatusInternalServerError, "")
	res, _, err = f.svc.Submit(context.Background(), validForm())
	require.NoError(t, err)
	assert.Equal(t, cart.Result{Message: "Checkout failed. Please try again."}, res)
}

func TestSubmit_ClearFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	id := f.srv.AddListing(models.Listing{Title: "Lamp", Price: decimal.NewFromInt(20)})
	f.srv.SetCart(email, []models.CartLine{{ProductID: id, Price: decimal.NewFromInt(20), Quantity: 1}})
	f.login()

	f.srv.Fail("DELETE /api/cart/clear", http.StatusInternalServerError, "")
	res, ack, err := f.svc.Submit(context.Background(), validForm())
	require.NoError(t, err)
	assert.True(t, res.OK)
	require.NotNil(t, ack)
}
