package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"

	"github.com/Olooce/ledgerly/internal/auth"
	"github.com/Olooce/ledgerly/internal/config"
	"github.com/Olooce/ledgerly/internal/device"
	"github.com/Olooce/ledgerly/internal/remote"
	"github.com/Olooce/ledgerly/internal/store"
	"github.com/Olooce/ledgerly/internal/sync"
)

// env bundles the pieces nearly every command needs: loaded config, the open
// local database and the session provider. Commands that talk to the cloud
// add a remote store and orchestrator on top via orchestrator().
type env struct {
	cfg     *config.Config
	db      *store.DB
	session *auth.FileSession
}

// openEnv loads config and opens the local database, exiting the process on
// failure. Callers must defer e.close().
func openEnv() *env {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	db, err := store.Open(cfg.DBPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		fmt.Fprintf(os.Stderr, "Error initializing schema: %v\n", err)
		os.Exit(1)
	}

	return &env{
		cfg:     cfg,
		db:      db,
		session: auth.NewFileSession(cfg.DataDir, cfg.Auth.Secret),
	}
}

func (e *env) close() {
	if err := e.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: error closing database: %v\n", err)
	}
}

// remoteStore dials the configured CouchDB endpoint.
func (e *env) remoteStore(logger *log.Logger) *remote.Store {
	rs, err := remote.Dial(remoteURL(e.cfg), e.cfg.Remote.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to remote store: %v\n", err)
		os.Exit(1)
	}
	return rs
}

// orchestrator wires the full sync stack and resolves the device identity.
func (e *env) orchestrator(ctx context.Context, logger *log.Logger) (*sync.Orchestrator, string) {
	rs := e.remoteStore(logger)
	deviceID, err := device.Identity(ctx, e.db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving device identity: %v\n", err)
		os.Exit(1)
	}
	return sync.New(e.db, rs, e.session, nil, logger), deviceID
}

// remoteURL folds configured credentials into the CouchDB URL.
func remoteURL(cfg *config.Config) string {
	if cfg.Remote.Username == "" {
		return cfg.Remote.URL
	}
	u, err := url.Parse(cfg.Remote.URL)
	if err != nil {
		return cfg.Remote.URL
	}
	u.User = url.UserPassword(cfg.Remote.Username, cfg.Remote.Password)
	return u.String()
}
