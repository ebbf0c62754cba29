// Package shell is the interactive terminal front end of the shop.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/cart"
	"github.com/atinyakov/GophShop/internal/client/catalog"
	"github.com/atinyakov/GophShop/internal/client/checkout"
	"github.com/atinyakov/GophShop/internal/client/dashboard"
	"github.com/atinyakov/GophShop/internal/client/session"
	"github.com/atinyakov/GophShop/internal/models"
)

const prompt = "gophshop> "

const helpText = `Available commands:
  help                     show this help
  register                 create an account
  login [email]            sign in
  logout                   sign out
  whoami                   show the signed-in user
  shop [category] [text]   browse listings
  cart                     show the cart
  add <id>                 add one unit of a product
  update <id> <qty>        set the quantity of a product (0 removes it)
  remove <id>              remove a product
  clear                    empty the cart
  checkout                 place an order for the cart
  orders                   show your orders
  dashboard                show the seller dashboard
  exit                     quit`

// Session is the authentication surface used by the shell.
type Session interface {
	State() session.State
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	Register(ctx context.Context, name, email, password string) error
	Logout(ctx context.Context)
	RefreshProfile(ctx context.Context) (*models.User, error)
}

// Cart is the cart surface used by the shell.
type Cart interface {
	Items() []models.CartLine
	TotalQuantity() int
	TotalPrice() decimal.Decimal
	State() cart.State
	Fetch(ctx context.Context) (cart.Result, error)
	Add(ctx context.Context, productID int64) (cart.Result, error)
	Update(ctx context.Context, productID int64, quantity int) (cart.Result, error)
	Remove(ctx context.Context, productID int64) (cart.Result, error)
	Clear(ctx context.Context) (cart.Result, error)
	Wait()
}

type Checkout interface {
	Submit(ctx context.Context, form checkout.Form) (cart.Result, *models.OrderAck, error)
}

type Catalog interface {
	Browse(ctx context.Context, q catalog.Query) (*catalog.Page, error)
}

type Dashboard interface {
	Overview(ctx context.Context) (*dashboard.Overview, error)
	Orders(ctx context.Context) ([]models.Order, error)
}

// Deps groups the components driven by the shell.
type Deps struct {
	Session   Session
	Cart      Cart
	Checkout  Checkout
	Catalog   Catalog
	Dashboard Dashboard
}

// Option configures a Shell.
type Option func(*Shell)

// WithNotificationTTL overrides how long banners stay active.
func WithNotificationTTL(d time.Duration) Option {
	return func(s *Shell) { s.ttl = d }
}

type Shell struct {
	deps   Deps
	in     *prompter
	out    io.Writer
	notify *Notifier
	log    *zap.Logger
	ttl    time.Duration
}

// New returns a shell reading commands from in and writing to out.
func New(deps Deps, in io.Reader, out io.Writer, log *zap.Logger, opts ...Option) *Shell {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Shell{
		deps: deps,
		in:   newPrompter(in, out),
		out:  out,
		log:  log,
		ttl:  DefaultNotificationTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.notify = NewNotifier(out, s.ttl)
	return s
}

// Notifier returns the banner state of the shell.
func (s *Shell) Notifier() *Notifier { return s.notify }

// Run reads and executes commands until exit, end of input or ctx is done.
func (s *Shell) Run(ctx context.Context) error {
	defer s.notify.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(s.out, prompt)
		line, ok := s.in.line()
		if !ok {
			fmt.Fprintln(s.out)
			return s.in.scanner.Err()
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			fmt.Fprintln(s.out, "Bye")
			return nil
		}
		s.exec(ctx, args[0], args[1:])
	}
}

func (s *Shell) exec(ctx context.Context, cmd string, args []string) {
	s.log.Debug("command", zap.String("cmd", cmd), zap.Int("args", len(args)))

	switch cmd {
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "register":
		s.register(ctx)
	case "login":
		email := ""
		if len(args) > 0 {
			email = args[0]
		}
		s.login(ctx, email)
	case "logout":
		s.deps.Session.Logout(ctx)
		s.notify.Success("Logged out")
	case "whoami":
		s.whoami(ctx)
	case "shop":
		s.shop(ctx, args)
	case "cart":
		s.showCart(ctx)
	case "add":
		id, ok := s.productID(args, "add <id>")
		if !ok {
			return
		}
		s.report(s.deps.Cart.Add(ctx, id))
	case "update":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "Usage: update <id> <qty>")
			return
		}
		id, ok := s.productID(args, "update <id> <qty>")
		if !ok {
			return
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintln(s.out, "Quantity must be a number")
			return
		}
		s.report(s.deps.Cart.Update(ctx, id, qty))
	case "remove":
		id, ok := s.productID(args, "remove <id>")
		if !ok {
			return
		}
		s.report(s.deps.Cart.Remove(ctx, id))
	case "clear":
		s.report(s.deps.Cart.Clear(ctx))
	case "checkout":
		s.checkout(ctx)
	case "orders":
		s.orders(ctx)
	case "dashboard":
		s.dashboard(ctx)
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
	}
}

func (s *Shell) productID(args []string, usage string) (int64, bool) {
	if len(args) < 1 {
		fmt.Fprintf(s.out, "Usage: %s\n", usage)
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(s.out, "Invalid product id %q\n", args[0])
		return 0, false
	}
	return id, true
}

// report turns a cart-style outcome into a banner.
func (s *Shell) report(res cart.Result, err error) {
	if err != nil && !errors.Is(err, session.ErrUnauthenticated) {
		s.log.Warn("operation failed", zap.Error(err))
	}
	if res.OK {
		s.notify.Success(res.Message)
		return
	}
	s.notify.Error(res.Message)
}

// describe picks the text shown for a failed call: the server detail when
// there is one, the error itself for local validation, fallback otherwise.
func describe(err error, fallback string) string {
	var (
		rej *api.RejectedError
		ne  *api.NetworkError
	)
	switch {
	case errors.As(err, &rej):
		return api.Message(err, fallback)
	case errors.As(err, &ne), errors.Is(err, api.ErrInvalidResponse):
		return fallback
	default:
		return err.Error()
	}
}

func (s *Shell) register(ctx context.Context) {
	name := s.in.ask("Name", "")
	email, password := s.in.credentials("")
	if confirm := s.in.ask("Confirm password", ""); confirm != password {
		s.notify.Error("Passwords do not match")
		return
	}
	if err := s.deps.Session.Register(ctx, strings.TrimSpace(name), email, password); err != nil {
		s.notify.Error(describe(err, "Registration failed"))
		return
	}
	s.notify.Success("Registration successful! You can now sign in.")
}

func (s *Shell) login(ctx context.Context, email string) {
	email, password := s.in.credentials(email)
	if _, err := s.deps.Session.Authenticate(ctx, email, password); err != nil {
		s.notify.Error(describe(err, "Login failed"))
		return
	}
	s.deps.Cart.Wait()
	s.notify.Success("Login successful!")
}

func (s *Shell) whoami(ctx context.Context) {
	st := s.deps.Session.State()
	if st.Status != session.StatusAuthenticated {
		fmt.Fprintln(s.out, "Not logged in")
		return
	}
	u := st.Identity
	if u == nil {
		var err error
		if u, err = s.deps.Session.RefreshProfile(ctx); err != nil {
			s.notify.Error(describe(err, "Failed to fetch profile"))
			return
		}
	}
	fmt.Fprintf(s.out, "%s <%s>\n", u.Name, u.Email)
}

func (s *Shell) shop(ctx context.Context, args []string) {
	var q catalog.Query
	if len(args) > 0 {
		for _, c := range catalog.Categories {
			if strings.EqualFold(args[0], c) {
				q.Category = c
				args = args[1:]
				break
			}
		}
	}
	q.Search = strings.Join(args, " ")

	page, err := s.deps.Catalog.Browse(ctx, q)
	if err != nil {
		s.notify.Error(describe(err, "Failed to load listings"))
		return
	}
	if len(page.Listings) == 0 {
		fmt.Fprintln(s.out, "No products found in this category.")
		return
	}

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tPRICE\tSELLER")
	for _, l := range page.Listings {
		fmt.Fprintf(tw, "%d\t%s\t%s\t$%s\t%s\n", l.ID, l.Title, l.Category, l.Price.StringFixed(2), l.SellerName)
	}
	_ = tw.Flush()
	fmt.Fprintf(s.out, "Showing %d of %d\n", len(page.Listings), page.Total)
}

func (s *Shell) showCart(ctx context.Context) {
	if s.deps.Session.State().Status != session.StatusAuthenticated {
		s.notify.Error("Please login to view your cart")
		return
	}
	if s.deps.Cart.State() == cart.StateError {
		if res, _ := s.deps.Cart.Fetch(ctx); !res.OK {
			s.notify.Error(res.Message)
		}
	}

	items := s.deps.Cart.Items()
	if len(items) == 0 {
		fmt.Fprintln(s.out, "Your cart is empty")
		return
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tQTY\tPRICE\tSUBTOTAL")
	for _, l := range items {
		fmt.Fprintf(tw, "%d\t%s\t%d\t$%s\t$%s\n", l.ProductID, l.Title, l.Quantity, l.Price.StringFixed(2), l.Subtotal().StringFixed(2))
	}
	_ = tw.Flush()
	fmt.Fprintf(s.out, "Items: %d  Total: $%s\n", s.deps.Cart.TotalQuantity(), s.deps.Cart.TotalPrice().StringFixed(2))
}

func (s *Shell) checkout(ctx context.Context) {
	st := s.deps.Session.State()
	if st.Status != session.StatusAuthenticated {
		s.notify.Error("Please login to checkout")
		return
	}
	if s.deps.Cart.TotalQuantity() == 0 {
		s.notify.Error("Your cart is empty!")
		return
	}

	var name, email string
	if st.Identity != nil {
		name, email = st.Identity.Name, st.Identity.Email
	}
	fmt.Fprintf(s.out, "Order total: $%s\n", s.deps.Cart.TotalPrice().StringFixed(2))
	form := s.in.checkoutForm(name, email)

	res, ack, err := s.deps.Checkout.Submit(ctx, form)
	s.report(res, err)
	if ack != nil {
		fmt.Fprintf(s.out, "Order %s: %s, total $%s\n", ack.OrderNumber, ack.Status, ack.TotalAmount.StringFixed(2))
	}
}

func (s *Shell) orders(ctx context.Context) {
	orders, err := s.deps.Dashboard.Orders(ctx)
	if errors.Is(err, session.ErrUnauthenticated) {
		s.notify.Error("Please login to view your orders")
		return
	}
	if err != nil {
		s.notify.Error(describe(err, "Failed to load orders"))
		return
	}
	if len(orders) == 0 {
		fmt.Fprintln(s.out, "No orders yet")
		return
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tSTATUS\tTOTAL\tDATE")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t$%s\t%s\n", o.OrderNumber, o.Status, o.TotalAmount.StringFixed(2), o.CreatedAt)
	}
	_ = tw.Flush()
}

func (s *Shell) dashboard(ctx context.Context) {
	o, err := s.deps.Dashboard.Overview(ctx)
	if errors.Is(err, session.ErrUnauthenticated) {
		s.notify.Error("Please login to view your dashboard")
		return
	}
	if err != nil {
		s.notify.Error(describe(err, "Failed to load dashboard"))
		return
	}

	fmt.Fprintf(s.out, "Listings: %d  Orders: %d  Sales: %d  Unread messages: %d  Rating: %s\n",
		o.Stats.ListingsCount, o.Stats.OrdersCount, o.Stats.SalesCount, o.Stats.UnreadMessages, o.Stats.AverageRating.StringFixed(1))

	if len(o.Listings) > 0 {
		fmt.Fprintln(s.out, "My listings:")
		for _, l := range o.Listings {
			fmt.Fprintf(s.out, "  #%d %s $%s (%s, %d views)\n", l.ID, l.Title, l.Price.StringFixed(2), l.Status, l.Views)
		}
	}
	if len(o.Inbox) > 0 {
		fmt.Fprintf(s.out, "Inbox (%d unread):\n", o.Unread())
		for _, m := range o.Inbox {
			fmt.Fprintf(s.out, "  %s: %s\n", m.SenderName, m.Subject)
		}
	}
	if len(o.Reviews) > 0 {
		fmt.Fprintln(s.out, "Reviews:")
		for _, r := range o.Reviews {
			fmt.Fprintf(s.out, "  %d/5 by %s: %s\n", r.Rating, r.ReviewerName, r.Comment)
		}
	}
}
