// Package apitest provides an in-memory storefront backend speaking the same
// REST API as the real shop. It is used by the client package tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/atinyakov/GophShop/internal/models"
)

type account struct {
	user     models.User
	password string
}

type failure struct {
	status int
	detail string
}

// Server is a fake storefront. The zero value is not usable; call New.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]*account // by e-mail
	tokens   map[string]string   // token -> e-mail
	carts    map[string][]models.CartLine
	listings map[int64]models.Listing
	orders   map[string][]models.Order
	stats    map[string]models.DashboardStats
	calls    map[string]int
	failures map[string][]failure
	hooks    map[string]func(*http.Request)
	nextID   int64
}

// New starts a fake storefront. It is closed by t.Cleanup-style callers via Close.
func New() *Server {
	s := &Server{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		carts:    make(map[string][]models.CartLine),
		listings: make(map[int64]models.Listing),
		orders:   make(map[string][]models.Order),
		stats:    make(map[string]models.DashboardStats),
		calls:    make(map[string]int),
		failures: make(map[string][]failure),
		hooks:    make(map[string]func(*http.Request)),
		nextID:   1,
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(s.instrument)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.Get("/listings", s.browse)

		r.Group(func(r chi.Router) {
			r.Use(s.bearerAuth)
			r.Get("/profile", s.profile)
			r.Get("/cart", s.cart)
			r.Post("/cart/add", s.cartAdd)
			r.Put("/cart/update", s.cartUpdate)
			r.Delete("/cart/remove", s.cartRemove)
			r.Delete("/cart/clear", s.cartClear)
			r.Post("/checkout", s.checkout)
			r.Get("/orders", s.myOrders)
			r.Get("/listings/my", s.myListings)
			r.Get("/messages/inbox", s.inbox)
			r.Get("/reviews/received", s.reviews)
			r.Get("/dashboard/stats", s.dashboardStats)
		})
	})
	return r
}

// instrument counts calls, runs hooks and serves injected failures.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		s.mu.Lock()
		s.calls[key]++
		hook := s.hooks[key]
		var fail *failure
		if q := s.failures[key]; len(q) > 0 {
			fail = &q[0]
			s.failures[key] = q[1:]
		}
		s.mu.Unlock()

		if hook != nil {
			hook(r)
		}
		if fail != nil {
			if fail.detail == "" {
				w.WriteHeader(fail.status)
				return
			}
			writeDetail(w, fail.status, fail.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AddUser registers an account and returns a valid token for it.
func (s *Server) AddUser(name, email, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.addAccountLocked(name, email, password)
	return s.issueLocked(acc.user.Email)
}

// AddListing puts a product in the shop and returns its id.
func (s *Server) AddListing(l models.Listing) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == 0 {
		l.ID = s.nextID
		s.nextID++
	} else if l.ID >= s.nextID {
		s.nextID = l.ID + 1
	}
	if l.Status == "" {
		l.Status = "active"
	}
	s.listings[l.ID] = l
	return l.ID
}

// SetCart replaces the stored cart of email.
func (s *Server) SetCart(email string, lines []models.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[email] = append([]models.CartLine(nil), lines...)
}

// CartOf returns a copy of the stored cart of email.
func (s *Server) CartOf(email string) []models.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CartLine(nil), s.carts[email]...)
}

// SetStats sets the dashboard counters of email.
func (s *Server) SetStats(email string, st models.DashboardStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[email] = st
}

// RevokeTokens invalidates every token issued so far.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]string)
}

// Fail makes the next call to "METHOD /path" answer status with detail.
// An empty detail sends no body.
func (s *Server) Fail(route string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], failure{status: status, detail: detail})
}

// Hook runs fn before every call to "METHOD /path". fn may block.
func (s *Server) Hook(route string, fn func(*http.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		delete(s.hooks, route)
		return
	}
	s.hooks[route] = fn
}

// Calls returns how many requests reached "METHOD /path".
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) addAccountLocked(name, email, password string) *account {
	acc := &account{
		user: models.User{
			ID:        int64(len(s.accounts) + 1),
			Name:      name,
			Email:     email,
			CreatedAt: "2025-01-01T00:00:00",
			IsActive:  true,
		},
		password: password,
	}
	s.accounts[email] = acc
	return acc
}

func (s *Server) issueLocked(email string) string {
	token := fmt.Sprintf("tok-%d-%s", len(s.tokens)+1, strings.ReplaceAll(email, "@", "."))
	s.tokens[token] = email
	return token
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeDetail(w, http.StatusBadRequest, "invalid request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[req.Email]; ok {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	acc := s.addAccountLocked(req.Name, req.Email, req.Password)
	writeJSON(w, http.StatusOK, map[string]any{"message": "User created successfully", "user_id": acc.user.ID})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[req.Email]
	if !ok || acc.password != req.Password {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": s.issueLocked(req.Email),
		"token_type":   "bearer",
		"user":         acc.user,
	})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[userFromContext(r.Context())]
	writeJSON(w, http.StatusOK, acc.user)
}

func (s *Server) browse(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := q.Get("category")
	search := strings.ToLower(q.Get("search"))

	s.mu.Lock()
	var out []models.Listing
	for _, l := range s.listings {
		if l.Status != "active" {
			continue
		}
		if category != "" && category != "All" && l.Category != category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(l.Title+" "+l.Description+" "+l.Location), search) {
			continue
		}
		out = append(out, l)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{
		"listings": encodeListings(out),
		"total":    len(out),
		"limit":    50,
		"offset":   0,
	})
}

// encodeListings sends images as a JSON-encoded string, as the real backend
// does for rows it did not post-process.
func encodeListings(ls []models.Listing) []map[string]any {
	out := make([]map[string]any, 0, len(ls))
	for _, l := range ls {
		imgs, _ := json.Marshal([]string(l.Images))
		out = append(out, map[string]any{
			"id":          l.ID,
			"title":       l.Title,
			"description": l.Description,
			"price":       l.Price,
			"category":    l.Category,
			"location":    l.Location,
			"images":      string(imgs),
			"status":      l.Status,
			"seller_name": l.SellerName,
		})
	}
	return out
}

func (s *Server) cart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeCartLocked(w, userFromContext(r.Context()))
}

type lineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

func (s *Server) cartAdd(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	email := userFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[req.ProductID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Listing not found")
		return
	}

	lines := s.carts[email]
	merged := false
	for i := range lines {
		if lines[i].ProductID == req.ProductID {
			lines[i].Quantity += req.Quantity
			merged = true
			break
		}
	}
	if !merged {
		lines = append(lines, models.CartLine{
			ProductID:  l.ID,
			Title:      l.Title,
			Price:      l.Price,
			SellerName: l.SellerName,
			Image:      l.Images.First(),
			Quantity:   req.Quantity,
		})
	}
	s.carts[email] = lines
	s.writeCartLocked(w, email)
}

func (s *Server) cartUpdate(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity <= 0 {
		writeDetail(w, http.StatusBadRequest, "Quantity must be positive")
		return
	}
	email := userFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[email]
	for i := range lines {
		if lines[i].ProductID == req.ProductID {
			lines[i].Quantity = req.Quantity
			s.writeCartLocked(w, email)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Item not in cart")
}

func (s *Server) cartRemove(w http.ResponseWriter, r *http.Request) {
	var req lineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request")
		return
	}
	email := userFromContext(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()
	lines := s.carts[email][:0:0]
	for _, l := range s.carts[email] {
		if l.ProductID != req.ProductID {
			lines = append(lines, l)
		}
	}
	s.carts[email] = lines
	s.writeCartLocked(w, email)
}

func (s *Server) cartClear(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userFromContext(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.OrderItems) == 0 {
		writeDetail(w, http.StatusBadRequest, "invalid request")
		return
	}
	email := userFromContext(r.Context())

	total := decimal.Zero
	for _, it := range req.OrderItems {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := int64(len(s.orders[email]) + 1)
	number := fmt.Sprintf("ORD-TEST-%04d", id)
	s.orders[email] = append(s.orders[email], models.Order{
		ID:          id,
		OrderNumber: number,
		Status:      "pending",
		TotalAmount: total,
	})
	delete(s.carts, email)

	writeJSON(w, http.StatusOK, models.OrderAck{
		OrderID:     id,
		OrderNumber: number,
		Status:      "pending",
		TotalAmount: total,
		Message:     "Order placed successfully!",
	})
}

func (s *Server) myOrders(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := s.orders[userFromContext(r.Context())]
	if orders == nil {
		orders = []models.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) myListings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[userFromContext(r.Context())]
	mine := []models.Listing{}
	for _, l := range s.listings {
		if l.SellerName == acc.user.Name {
			mine = append(mine, l)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].ID < mine[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"listings": mine})
}

func (s *Server) inbox(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"messages": []models.Message{}})
}

func (s *Server) reviews(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"reviews": []models.Review{}})
}

func (s *Server) dashboardStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.stats[userFromContext(r.Context())])
}

func (s *Server) writeCartLocked(w http.ResponseWriter, email string) {
	lines := s.carts[email]
	if lines == nil {
		lines = []models.CartLine{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": lines})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
