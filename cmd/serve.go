package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/property-map/internal/api"
	"github.com/sells-group/property-map/internal/config"
	"github.com/sells-group/property-map/internal/listing"
)

const shutdownTimeout = 10 * time.Second

var (
	servePort    int
	serveMigrate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the listing API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := openStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer env.Close()

		if serveMigrate {
			if err := env.Migrate(ctx); err != nil {
				return err
			}
		}

		handler, cleanup, err := buildHandler(cfg, env.Repo)
		if err != nil {
			return err
		}
		defer cleanup()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		return runServer(ctx, srv)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply schema migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

// buildHandler wires the listing services into the API router. cleanup
// releases the bounds cache.
func buildHandler(c *config.Config, repo listing.Repository) (http.Handler, func(), error) {
	var cache *listing.BoundsCache
	if ttl := c.Query.CacheTTL(); ttl > 0 {
		bc, err := listing.NewBoundsCache(c.Query.CacheMaxFeatures, ttl)
		if err != nil {
			return nil, nil, err
		}
		cache = bc
	}
	cleanup := func() {
		if cache != nil {
			cache.Close()
		}
	}

	if c.Auth.JWTSecret == "" {
		zap.L().Warn("auth.jwt_secret is empty; /properties/similar will reject every request")
	}

	srv := api.NewServer(
		listing.NewBoundsService(repo, cache),
		listing.NewRecommender(repo, c.Similar.PriceBand),
		api.NewAuthenticator(c.Auth.JWTSecret, c.Auth.Issuer),
		api.Config{
			AllowedOrigins: c.Server.AllowedOrigins,
			RequestTimeout: time.Duration(c.Server.RequestTimeout) * time.Second,
			SimilarLimit:   c.Similar.Limit,
		},
	)
	return srv.Router(), cleanup, nil
}

// runServer serves until ctx is done, then shuts down gracefully.
func runServer(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
	})

	return g.Wait()
}
