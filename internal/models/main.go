// Package models defines the storefront data structures exchanged with the
// backend API: users, cart lines, listings, orders and checkout payloads.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// User is the authenticated identity returned by GET /api/profile.
type User struct {
	// ID is the backend identifier of the user.
	ID int64 `json:"id"`
	// Name is the display name.
	Name string `json:"name"`
	// Email is the login e-mail.
	Email string `json:"email"`
	// CreatedAt is the registration timestamp as sent by the backend.
	CreatedAt string `json:"created_at,omitempty"`
	// IsActive reports whether the account is enabled.
	IsActive bool `json:"is_active"`
}

// CartLine is one entry of the remote cart with a display snapshot of the product.
// A line present in a cart always has Quantity >= 1.
type CartLine struct {
	ProductID  int64           `json:"product_id"`
	Title      string          `json:"title"`
	Price      decimal.Decimal `json:"price"`
	SellerName string          `json:"seller_name"`
	Image      string          `json:"image"`
	Quantity   int             `json:"quantity"`
}

// Subtotal returns Price × Quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// UnmarshalJSON accepts the image reference as a URL, an array of URLs or a
// JSON-encoded array, under either "image" or "images", and keeps the first URL.
func (l *CartLine) UnmarshalJSON(data []byte) error {
	type line CartLine
	var wire struct {
		line
		Image  Images `json:"image"`
		Images Images `json:"images"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*l = CartLine(wire.line)
	l.Image = wire.Image.First()
	if l.Image == "" {
		l.Image = wire.Images.First()
	}
	return nil
}

// Images is a normalized list of image URLs.
//
// The backend sends images as a JSON array, as a JSON string that itself
// encodes an array, or as a single URL string. All of them decode to Images.
type Images []string

// UnmarshalJSON implements json.Unmarshaler.
func (im *Images) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*im = nil
		return nil
	}

	if data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("images: %w", err)
		}
		*im = compact(list)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("images: %w", err)
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var list []string
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			*im = compact(list)
			return nil
		}
	}
	if s == "" {
		*im = nil
		return nil
	}
	*im = Images{s}
	return nil
}

// First returns the first URL or an empty string.
func (im Images) First() string {
	if len(im) == 0 {
		return ""
	}
	return im[0]
}

func compact(list []string) Images {
	out := make(Images, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Listing is a product offered in the shop.
type Listing struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Condition   string          `json:"condition_type"`
	Location    string          `json:"location"`
	Images      Images          `json:"images"`
	Status      string          `json:"status"`
	Views       int             `json:"views"`
	SellerName  string          `json:"seller_name"`
	SellerEmail string          `json:"seller_email"`
	CreatedAt   string          `json:"created_at"`
}

// OrderItem is one line of a checkout request.
type OrderItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// ShippingAddress is the delivery part of the checkout form.
type ShippingAddress struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Phone     string `json:"phone" validate:"required"`
	Address   string `json:"address" validate:"required"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state" validate:"required"`
	ZipCode   string `json:"zipCode" validate:"required"`
	Country   string `json:"country" validate:"required"`
}

// PaymentInfo is forwarded verbatim to the backend; card fields are only
// required for card payments.
type PaymentInfo struct {
	Method     string `json:"method" validate:"required,oneof=credit paypal cod"`
	CardNumber string `json:"cardNumber,omitempty" validate:"required_if=Method credit"`
	ExpiryDate string `json:"expiryDate,omitempty" validate:"required_if=Method credit"`
	CVV        string `json:"cvv,omitempty" validate:"required_if=Method credit"`
	NameOnCard string `json:"nameOnCard,omitempty" validate:"required_if=Method credit"`
}

// CheckoutRequest is the body of POST /api/checkout.
type CheckoutRequest struct {
	OrderItems      []OrderItem     `json:"order_items"`
	ShippingAddress ShippingAddress `json:"shipping_address"`
	PaymentInfo     PaymentInfo     `json:"payment_info"`
}

// OrderAck is the backend acknowledgement of a placed order.
type OrderAck struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Message     string          `json:"message"`
}

// Order is an entry of the user's order history.
type Order struct {
	ID          int64           `json:"id"`
	OrderNumber string          `json:"order_number"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   string          `json:"created_at"`
}

// Message is a seller inbox entry.
type Message struct {
	ID         int64  `json:"id"`
	SenderName string `json:"sender_name"`
	Subject    string `json:"subject"`
	Content    string `json:"content"`
	IsRead     bool   `json:"is_read"`
	CreatedAt  string `json:"created_at"`
}

// Review is a rating left on one of the seller's listings.
type Review struct {
	ID           int64  `json:"id"`
	ListingID    int64  `json:"listing_id"`
	ReviewerName string `json:"reviewer_name"`
	Rating       int    `json:"rating"`
	Comment      string `json:"comment"`
	CreatedAt    string `json:"created_at"`
}

// DashboardStats is the seller summary from GET /api/dashboard/stats.
type DashboardStats struct {
	ListingsCount  int             `json:"listings_count"`
	UnreadMessages int             `json:"unread_messages"`
	OrdersCount    int             `json:"orders_count"`
	SalesCount     int             `json:"sales_count"`
	AverageRating  decimal.Decimal `json:"average_rating"`
}
