// Package dashboard gathers the read-only seller overview.
package dashboard

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/GophShop/internal/client/session"
	"github.com/atinyakov/GophShop/internal/models"
)

// ErrUnauthenticated is returned, without any network call, when no user is logged in.
var ErrUnauthenticated = session.ErrUnauthenticated

// API is the set of bearer endpoints the dashboard reads.
type API interface {
	DashboardStats(ctx context.Context, token string) (*models.DashboardStats, error)
	MyListings(ctx context.Context, token string) ([]models.Listing, error)
	Orders(ctx context.Context, token string) ([]models.Order, error)
	Inbox(ctx context.Context, token string) ([]models.Message, error)
	ReceivedReviews(ctx context.Context, token string) ([]models.Review, error)
}

// Session provides the current credential.
type Session interface {
	Token() (string, bool)
}

// Overview is everything shown on the dashboard.
type Overview struct {
	Stats    models.DashboardStats
	Listings []models.Listing
	Orders   []models.Order
	Inbox    []models.Message
	Reviews  []models.Review
}

// Unread counts inbox messages not yet read.
func (o *Overview) Unread() int {
	n := 0
	for _, m := range o.Inbox {
		if !m.IsRead {
			n++
		}
	}
	return n
}

type Dashboard struct {
	api  API
	sess Session
	log  *zap.Logger
}

func New(a API, sess Session, log *zap.Logger) *Dashboard {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dashboard{api: a, sess: sess, log: log}
}

// Overview loads all dashboard sections concurrently. The first failure
// cancels the remaining requests and is returned.
func (d *Dashboard) Overview(ctx context.Context) (*Overview, error) {
	token, ok := d.sess.Token()
	if !ok {
		return nil, ErrUnauthenticated
	}

	var o Overview
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := d.api.DashboardStats(ctx, token)
		if err == nil {
			o.Stats = *st
		}
		return err
	})
	g.Go(func() (err error) {
		o.Listings, err = d.api.MyListings(ctx, token)
		return err
	})
	g.Go(func() (err error) {
		o.Orders, err = d.api.Orders(ctx, token)
		return err
	})
	g.Go(func() (err error) {
		o.Inbox, err = d.api.Inbox(ctx, token)
		return err
	})
	g.Go(func() (err error) {
		o.Reviews, err = d.api.ReceivedReviews(ctx, token)
		return err
	})
	if err := g.Wait(); err != nil {
		d.log.Info("dashboard load failed", zap.Error(err))
		return nil, err
	}
	return &o, nil
}

// Orders returns the order history alone.
func (d *Dashboard) Orders(ctx context.Context) ([]models.Order, error) {
	token, ok := d.sess.Token()
	if !ok {
		return nil, ErrUnauthenticated
	}
	return d.api.Orders(ctx, token)
}
