package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/technojoe/claude-token-share/internal/config"
	"github.com/technojoe/claude-token-share/internal/db"
	"github.com/technojoe/claude-token-share/internal/locallog"
	"github.com/technojoe/claude-token-share/internal/logger"
	"github.com/technojoe/claude-token-share/internal/server"
	"github.com/technojoe/claude-token-share/internal/session"
	"github.com/technojoe/claude-token-share/internal/version"
	"github.com/technojoe/claude-token-share/internal/xapi"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:   "tokenshare",
		Short: "Token usage statistics service with a public leaderboard",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				logger.SetDebug()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Info())
		},
	})

	return root
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := db.New(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	sessions, err := session.NewStore(cfg.SessionSecret, cfg.SecureCookies)
	if err != nil {
		return err
	}

	var oauth *xapi.OAuthClient
	if cfg.XClientID != "" && cfg.XClientSecret != "" {
		oauth = xapi.NewOAuthClient(cfg.XClientID, cfg.XClientSecret, cfg.XRedirectURI)
	} else {
		logger.Warn("X OAuth app not configured, sign-in disabled")
	}

	publisher := xapi.NewPublisher(oauth, xapi.AppCredentials{
		Key:          cfg.XAppKey,
		Secret:       cfg.XAppSecret,
		AccessToken:  cfg.XAppAccessToken,
		AccessSecret: cfg.XAppAccessSecret,
	})

	srv := server.New(cfg, store, sessions, oauth, publisher)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WatchLocalLogs {
		watcher := locallog.NewWatcher(
			locallog.NewScanner(cfg.LocalLogsRoot), cfg.TargetYear, srv.SetLiveUsage)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("log watcher stopped", "error", err)
			}
		}()
	}

	logger.Info("starting server", "addr", cfg.ListenAddr, "db", store.Path(), "version", version.Info())
	return srv.ListenAndServe(ctx)
}
