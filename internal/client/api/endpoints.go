package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/atinyakov/GophShop/internal/models"
)

const (
	pathProfile    = "/api/profile"
	pathLogin      = "/api/login"
	pathRegister   = "/api/register"
	pathCart       = "/api/cart"
	pathCartAdd    = "/api/cart/add"
	pathCartUpdate = "/api/cart/update"
	pathCartRemove = "/api/cart/remove"
	pathCartClear  = "/api/cart/clear"
	pathCheckout   = "/api/checkout"
	pathListings   = "/api/listings"
	pathMyListings = "/api/listings/my"
	pathOrders     = "/api/orders"
	pathInbox      = "/api/messages/inbox"
	pathReviews    = "/api/reviews/received"
	pathStats      = "/api/dashboard/stats"
)

// LoginResponse is the body of a successful POST /api/login.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        *models.User `json:"user,omitempty"`
}

// cartBody accepts both "items" and the older "cart_items" key.
type cartBody struct {
	Items     []models.CartLine `json:"items"`
	CartItems []models.CartLine `json:"cart_items"`
}

func (b cartBody) lines() []models.CartLine {
	if b.Items != nil {
		return b.Items
	}
	if b.CartItems != nil {
		return b.CartItems
	}
	return []models.CartLine{}
}

type cartLineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity,omitempty"`
}

// Profile fetches the identity behind token.
func (c *Client) Profile(ctx context.Context, token string) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, "profile", http.MethodGet, pathProfile, token, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Login exchanges e-mail and password for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	in := map[string]string{"email": email, "password": password}
	var out LoginResponse
	if err := c.do(ctx, "login", http.MethodPost, pathLogin, "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	in := map[string]string{"name": name, "email": email, "password": password}
	return c.do(ctx, "register", http.MethodPost, pathRegister, "", in, nil)
}

// Cart returns the full remote cart.
func (c *Client) Cart(ctx context.Context, token string) ([]models.CartLine, error) {
	var out cartBody
	if err := c.do(ctx, "fetch cart", http.MethodGet, pathCart, token, nil, &out); err != nil {
		return nil, err
	}
	return out.lines(), nil
}

// AddToCart adds quantity units of productID and returns the resulting cart.
func (c *Client) AddToCart(ctx context.Context, token string, productID int64, quantity int) ([]models.CartLine, error) {
	return c.cartCall(ctx, "add to cart", http.MethodPost, pathCartAdd, token, cartLineRequest{ProductID: productID, Quantity: quantity})
}

// UpdateCart sets the absolute quantity of productID and returns the resulting cart.
func (c *Client) UpdateCart(ctx context.Context, token string, productID int64, quantity int) ([]models.CartLine, error) {
	return c.cartCall(ctx, "update cart", http.MethodPut, pathCartUpdate, token, cartLineRequest{ProductID: productID, Quantity: quantity})
}

// RemoveFromCart drops the line for productID and returns the resulting cart.
func (c *Client) RemoveFromCart(ctx context.Context, token string, productID int64) ([]models.CartLine, error) {
	return c.cartCall(ctx, "remove from cart", http.MethodDelete, pathCartRemove, token, cartLineRequest{ProductID: productID})
}

// ClearCart empties the remote cart. Only the status code is used.
func (c *Client) ClearCart(ctx context.Context, token string) error {
	return c.do(ctx, "clear cart", http.MethodDelete, pathCartClear, token, nil, nil)
}

func (c *Client) cartCall(ctx context.Context, op, method, path, token string, in cartLineRequest) ([]models.CartLine, error) {
	var out cartBody
	if err := c.do(ctx, op, method, path, token, in, &out); err != nil {
		return nil, err
	}
	return out.lines(), nil
}

// Checkout places an order.
func (c *Client) Checkout(ctx context.Context, token string, req models.CheckoutRequest) (*models.OrderAck, error) {
	var ack models.OrderAck
	if err := c.do(ctx, "checkout", http.MethodPost, pathCheckout, token, req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// ListingsQuery filters the public shop listing.
type ListingsQuery struct {
	Category string
	Search   string
	Limit    int
	Offset   int
}

// ListingsPage is one page of shop listings.
type ListingsPage struct {
	Listings []models.Listing `json:"listings"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// Listings returns active listings matching q. No credential is sent.
func (c *Client) Listings(ctx context.Context, q ListingsQuery) (*ListingsPage, error) {
	v := url.Values{}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	path := pathListings
	if enc := v.Encode(); enc != "" {
		path += "?" + enc
	}

	var page ListingsPage
	if err := c.do(ctx, "listings", http.MethodGet, path, "", nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// MyListings returns the listings owned by the authenticated seller.
func (c *Client) MyListings(ctx context.Context, token string) ([]models.Listing, error) {
	var out struct {
		Listings []models.Listing `json:"listings"`
	}
	if err := c.do(ctx, "my listings", http.MethodGet, pathMyListings, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Listings, nil
}

// Orders returns the order history of the authenticated user.
func (c *Client) Orders(ctx context.Context, token string) ([]models.Order, error) {
	var out struct {
		Orders []models.Order `json:"orders"`
	}
	if err := c.do(ctx, "orders", http.MethodGet, pathOrders, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// Inbox returns messages received by the authenticated user.
func (c *Client) Inbox(ctx context.Context, token string) ([]models.Message, error) {
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	if err := c.do(ctx, "inbox", http.MethodGet, pathInbox, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// ReceivedReviews returns reviews left on the seller's listings.
func (c *Client) ReceivedReviews(ctx context.Context, token string) ([]models.Review, error) {
	var out struct {
		Reviews []models.Review `json:"reviews"`
	}
	if err := c.do(ctx, "received reviews", http.MethodGet, pathReviews, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Reviews, nil
}

// DashboardStats returns the seller summary counters.
func (c *Client) DashboardStats(ctx context.Context, token string) (*models.DashboardStats, error) {
	var out models.DashboardStats
	if err := c.do(ctx, "dashboard stats", http.MethodGet, pathStats, token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
