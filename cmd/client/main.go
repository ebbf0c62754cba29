package main

import (
	"context"
	"crypto/cipher"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/atinyakov/GophShop/internal/client/api"
	"github.com/atinyakov/GophShop/internal/client/cart"
	"github.com/atinyakov/GophShop/internal/client/catalog"
	"github.com/atinyakov/GophShop/internal/client/checkout"
	"github.com/atinyakov/GophShop/internal/client/credential"
	"github.com/atinyakov/GophShop/internal/client/dashboard"
	"github.com/atinyakov/GophShop/internal/client/session"
	"github.com/atinyakov/GophShop/internal/client/shell"
	"github.com/atinyakov/GophShop/internal/config"
	"github.com/atinyakov/GophShop/internal/db"
	"github.com/atinyakov/GophShop/internal/logger"
)

var (
	version   string
	buildDate string
)

// openSlot returns the credential store selected by opts: PostgreSQL when a
// DSN is configured, otherwise a local file.
func openSlot(ctx context.Context, opts *config.Options, lg *zap.Logger) (credential.Store, func(), error) {
	if opts.DatabaseDSN != "" {
		conn, err := db.InitPostgres(opts.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		db.StartStaleCredentialCleaner(ctx, conn, opts.CleanupInterval, opts.CredentialRetention, lg)
		return credential.NewPostgresStore(conn), func() { _ = conn.Close() }, nil
	}

	var aead cipher.AEAD
	if opts.KeyFile != "" {
		material, err := os.ReadFile(opts.KeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("read key file: %w", err)
		}
		if aead, err = credential.NewAEADFromKey(material); err != nil {
			return nil, nil, err
		}
	}
	return credential.NewFileStore(opts.TokenFile, aead), func() {}, nil
}

// main parses configuration, restores the session and runs the shell.
func main() {
	opts := config.Parse()

	if opts.ShowVersion {
		fmt.Printf("GophShop Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	l := logger.New()
	if err := l.Init(opts.LogLevel); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient, err := api.NewHTTPClient(opts.CAFile, opts.Timeout)
	if err != nil {
		l.Log.Fatal("failed to build http client", zap.Error(err))
	}
	client := api.New(opts.URL, httpClient, l.Log)

	slot, closeSlot, err := openSlot(ctx, opts, l.Log)
	if err != nil {
		l.Log.Fatal("failed to open credential store", zap.Error(err))
	}
	defer closeSlot()

	sess := session.NewStore(client, slot, l.Log.Named("session"), session.WithFetchTimeout(opts.Timeout))
	cartSync := cart.New(client, sess, l.Log.Named("cart"), opts.Timeout)
	defer cartSync.Close()

	sess.Initialize(ctx)
	<-sess.Ready()
	cartSync.Wait()

	sh := shell.New(shell.Deps{
		Session:   sess,
		Cart:      cartSync,
		Checkout:  checkout.New(client, sess, cartSync, l.Log.Named("checkout")),
		Catalog:   catalog.New(client, l.Log.Named("catalog")),
		Dashboard: dashboard.New(client, sess, l.Log.Named("dashboard")),
	}, os.Stdin, os.Stdout, l.Log.Named("shell"))

	if st := sess.State(); st.Status == session.StatusAuthenticated && st.Identity != nil {
		fmt.Printf("Welcome back, %s\n", st.Identity.Name)
	}
	if err := sh.Run(ctx); err != nil && ctx.Err() == nil {
		l.Log.Error("shell stopped", zap.Error(err))
	}
	sess.Wait()
}
