// Package cart mirrors the remote cart of the authenticated user.
//
// Every successful call replaces the whole local cache with the cart the
// server returned; nothing is merged client-side. Calls carry a sequence
// number and only the response to the most recently issued call may update
// the cache, so a slow response cannot overwrite a newer one.
package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/session"
	"github.com/atinyakov/GophShop/internal/models"
)

// ErrUnauthenticated is returned, without any network call, when an operation
// is attempted while the session holds no credential.
var ErrUnauthenticated = session.ErrUnauthenticated

const (
	msgFetched     = "Cart loaded"
	msgFetchFailed = "Failed to fetch cart items"
)

// State is the lifecycle state of the cache.
type State int

const (
	// StateEmpty is the initial state and the state after logout.
	StateEmpty State = iota
	// StateLoading means a call is in flight.
	StateLoading
	// StateReady means the cache mirrors the last server response.
	StateReady
	// StateError means the last call failed; the cache holds the last good cart.
	StateError
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is the outcome of a cart operation as shown to the user.
type Result struct {
	OK      bool
	Message string
}

// API is the subset of the backend used by the synchronizer.
type API interface {
	Cart(ctx context.Context, token string) ([]models.CartLine, error)
	AddToCart(ctx context.Context, token string, productID int64, quantity int) ([]models.CartLine, error)
	UpdateCart(ctx context.Context, token string, productID int64, quantity int) ([]models.CartLine, error)
	RemoveFromCart(ctx context.Context, token string, productID int64) ([]models.CartLine, error)
	ClearCart(ctx context.Context, token string) error
}

// Session provides the credential and authentication events.
type Session interface {
	Token() (string, bool)
	Subscribe(fn func(session.Event)) func()
}

// Synchronizer owns the cart cache.
type Synchronizer struct {
	api     API
	sess    Session
	log     *zap.Logger
	timeout time.Duration

	mu      sync.RWMutex
	items   []models.CartLine
	state   State
	lastErr error
	issued  uint64
	// epoch increases on every reset; a call whose credential was read in
	// an older epoch is refused.
	epoch uint64

	unsubscribe func()
	wg          sync.WaitGroup
}

// New returns a synchronizer subscribed to sess. Each call is bounded by
// timeout; zero disables the bound.
func New(a API, sess Session, log *zap.Logger, timeout time.Duration) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Synchronizer{
		api:     a,
		sess:    sess,
		log:     log,
		timeout: timeout,
		items:   []models.CartLine{},
	}
	s.unsubscribe = sess.Subscribe(s.onSession)
	return s
}

// Close stops reacting to session events and waits for background fetches.
func (s *Synchronizer) Close() {
	s.unsubscribe()
	s.wg.Wait()
}

// Wait blocks until background fetches triggered by logins have finished.
func (s *Synchronizer) Wait() { s.wg.Wait() }

func (s *Synchronizer) onSession(ev session.Event) {
	switch ev.Status {
	case session.StatusAuthenticated:
		// The sequence is taken before returning so that a logout published
		// after this event always invalidates the fetch.
		seq, _ := s.begin(s.currentEpoch())
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			res := s.complete(context.Background(), seq, msgFetched, msgFetchFailed, func(ctx context.Context) ([]models.CartLine, error) {
				return s.api.Cart(ctx, ev.Token)
			})
			if !res.OK {
				s.log.Warn("cart fetch after login failed", zap.String("message", res.Message))
			}
		}()
	case session.StatusAnonymous:
		s.reset()
	}
}

// reset empties the cache and invalidates every call in flight.
func (s *Synchronizer) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	s.epoch++
	s.items = []models.CartLine{}
	s.state = StateEmpty
	s.lastErr = nil
}

// Fetch reloads the whole cart from the server.
func (s *Synchronizer) Fetch(ctx context.Context) (Result, error) {
	return s.run(ctx, "Please login to view your cart", msgFetched, msgFetchFailed, func(ctx context.Context, token string) ([]models.CartLine, error) {
		return s.api.Cart(ctx, token)
	})
}

// Add adds one unit of productID. Adding a product already in the cart is a
// normal add; the server decides how lines merge.
func (s *Synchronizer) Add(ctx context.Context, productID int64) (Result, error) {
	return s.run(ctx, "Please login to add items to cart", "Item added to cart successfully", "Failed to add item to cart", func(ctx context.Context, token string) ([]models.CartLine, error) {
		return s.api.AddToCart(ctx, token, productID, 1)
	})
}

// Update sets the quantity of productID. A quantity of zero or less removes the line.
func (s *Synchronizer) Update(ctx context.Context, productID int64, quantity int) (Result, error) {
	if quantity <= 0 {
		return s.Remove(ctx, productID)
	}
	return s.run(ctx, "Please login to update cart", "Cart updated successfully", "Failed to update cart", func(ctx context.Context, token string) ([]models.CartLine, error) {
		return s.api.UpdateCart(ctx, token, productID, quantity)
	})
}

// Remove drops the line of productID. Removing an absent product succeeds with
// whatever cart the server returns.
func (s *Synchronizer) Remove(ctx context.Context, productID int64) (Result, error) {
	return s.run(ctx, "Please login to remove items from cart", "Item removed from cart successfully", "Failed to remove item from cart", func(ctx context.Context, token string) ([]models.CartLine, error) {
		return s.api.RemoveFromCart(ctx, token, productID)
	})
}

// Clear empties the cart. The server acknowledgement is enough; the local
// cache is emptied without reading a cart back.
func (s *Synchronizer) Clear(ctx context.Context) (Result, error) {
	return s.run(ctx, "Please login to clear cart", "Cart cleared successfully", "Failed to clear cart", func(ctx context.Context, token string) ([]models.CartLine, error) {
		if err := s.api.ClearCart(ctx, token); err != nil {
			return nil, err
		}
		return []models.CartLine{}, nil
	})
}

// run reads the credential, reserves a sequence number and performs call.
// A logout between the two steps makes the call fail as unauthenticated
// without reaching the network.
func (s *Synchronizer) run(ctx context.Context, unauthMsg, okMsg, failMsg string, call func(context.Context, string) ([]models.CartLine, error)) (Result, error) {
	epoch := s.currentEpoch()
	token, ok := s.sess.Token()
	if !ok {
		return Result{Message: unauthMsg}, ErrUnauthenticated
	}
	seq, ok := s.begin(epoch)
	if !ok {
		return Result{Message: unauthMsg}, ErrUnauthenticated
	}
	return s.complete(ctx, seq, okMsg, failMsg, func(ctx context.Context) ([]models.CartLine, error) {
		return call(ctx, token)
	}), nil
}

// complete performs call for seq and applies its outcome if no newer call
// was issued meanwhile.
func (s *Synchronizer) complete(ctx context.Context, seq uint64, okMsg, failMsg string, call func(context.Context) ([]models.CartLine, error)) Result {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	lines, err := call(ctx)

	if err != nil {
		msg := api.Message(err, failMsg)
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "Request timed out"
		}
		s.log.Info("cart call failed", zap.Uint64("seq", seq), zap.Error(err))
		s.finish(seq, nil, err)
		return Result{Message: msg}
	}
	s.finish(seq, lines, nil)
	return Result{OK: true, Message: okMsg}
}

func (s *Synchronizer) currentEpoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// begin reserves the next sequence number unless a reset happened since epoch.
func (s *Synchronizer) begin(epoch uint64) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return 0, false
	}
	s.issued++
	s.state = StateLoading
	return s.issued, true
}

func (s *Synchronizer) finish(seq uint64, lines []models.CartLine, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.issued {
		s.log.Debug("discarding stale cart response", zap.Uint64("seq", seq), zap.Uint64("latest", s.issued))
		return
	}
	if err != nil {
		s.state = StateError
		s.lastErr = err
		return
	}
	s.items = sanitize(lines)
	s.state = StateReady
	s.lastErr = nil
}

// sanitize copies lines, dropping any without a positive quantity.
func sanitize(lines []models.CartLine) []models.CartLine {
	out := make([]models.CartLine, 0, len(lines))
	for _, l := range lines {
		if l.Quantity >= 1 {
			out = append(out, l)
		}
	}
	return out
}

// Items returns a copy of the cached lines in server order.
func (s *Synchronizer) Items() []models.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CartLine(nil), s.items...)
}

// TotalQuantity is the sum of line quantities.
func (s *Synchronizer) TotalQuantity() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, l := range s.items {
		n += l.Quantity
	}
	return n
}

// TotalPrice is the sum of quantity × unit price.
func (s *Synchronizer) TotalPrice() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, l := range s.items {
		total = total.Add(l.Subtotal())
	}
	return total
}

// IsInCart reports whether a line for productID is cached.
func (s *Synchronizer) IsInCart(productID int64) bool {
	return s.QuantityOf(productID) > 0
}

// QuantityOf returns the cached quantity of productID, or 0.
func (s *Synchronizer) QuantityOf(productID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.items {
		if l.ProductID == productID {
			return l.Quantity
		}
	}
	return 0
}

// State returns the lifecycle state.
func (s *Synchronizer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the error of the last applied call, if it failed.
func (s *Synchronizer) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}
