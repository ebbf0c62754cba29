// Package checkout turns the cached cart into an order.
package checkout

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/cart"
	"github.com/atinyakov/GophShop/internal/client/session"
	"github.com/atinyakov/GophShop/internal/client/validate"
	"github.com/atinyakov/GophShop/internal/models"
)

const (
	msgEmptyCart = "Your cart is empty!"
	msgFailed    = "Checkout failed. Please try again."
	msgPlaced    = "Order placed successfully!"
)

// ErrUnauthenticated is returned, without any network call, when no user is logged in.
var ErrUnauthenticated = session.ErrUnauthenticated

// API places orders.
type API interface {
	Checkout(ctx context.Context, token string, req models.CheckoutRequest) (*models.OrderAck, error)
}

// Cart is the part of the cart synchronizer checkout reads and clears.
type Cart interface {
	Items() []models.CartLine
	Clear(ctx context.Context) (cart.Result, error)
}

// Session provides the current credential.
type Session interface {
	Token() (string, bool)
}

// Form is the data the user enters on checkout.
type Form struct {
	Shipping models.ShippingAddress `json:"shipping_address"`
	Payment  models.PaymentInfo     `json:"payment_info"`
}

// Service submits orders for the current session.
type Service struct {
	api      API
	sess     Session
	cart     Cart
	log      *zap.Logger
	validate *validator.Validate
}

// New returns a checkout service.
func New(a API, sess Session, c Cart, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{api: a, sess: sess, cart: c, log: log, validate: validate.New()}
}

// Submit validates form, posts the cart snapshot as an order and clears the
// cart on success. A failure to clear the cart afterwards is logged and does
// not fail the order.
func (s *Service) Submit(ctx context.Context, form Form) (cart.Result, *models.OrderAck, error) {
	token, ok := s.sess.Token()
	if !ok {
		return cart.Result{Message: "Please login to checkout"}, nil, ErrUnauthenticated
	}

	lines := s.cart.Items()
	if len(lines) == 0 {
		return cart.Result{Message: msgEmptyCart}, nil, nil
	}
	if err := s.validate.Struct(form); err != nil {
		return cart.Result{Message: validate.Message(err)}, nil, nil
	}

	req := models.CheckoutRequest{
		OrderItems:      make([]models.OrderItem, 0, len(lines)),
		ShippingAddress: form.Shipping,
		PaymentInfo:     form.Payment,
	}
	for _, l := range lines {
		req.OrderItems = append(req.OrderItems, models.OrderItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price,
		})
	}

	ack, err := s.api.Checkout(ctx, token, req)
	if err != nil {
		s.log.Info("checkout failed", zap.Error(err))
		return cart.Result{Message: api.Message(err, msgFailed)}, nil, nil
	}
	s.log.Info("order placed",
		zap.Int64("order_id", ack.OrderID),
		zap.String("order_number", ack.OrderNumber),
		zap.String("total", ack.TotalAmount.String()),
	)

	if res, err := s.cart.Clear(ctx); err != nil || !res.OK {
		s.log.Warn("clearing cart after checkout failed", zap.String("message", res.Message), zap.Error(err))
	}

	msg := ack.Message
	if msg == "" {
		msg = msgPlaced
	}
	return cart.Result{OK: true, Message: msg}, ack, nil
}
