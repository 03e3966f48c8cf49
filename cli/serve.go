package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ferreirogomes/imovelnft/auth"
	"github.com/ferreirogomes/imovelnft/config"
	"github.com/ferreirogomes/imovelnft/handlers"
	"github.com/ferreirogomes/imovelnft/ledger"
	"github.com/ferreirogomes/imovelnft/metrics"
	"github.com/ferreirogomes/imovelnft/models"
	"github.com/ferreirogomes/imovelnft/services"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Inicia o servidor HTTP do registro",
		Long: `Inicia o servidor HTTP do registro.

Se registry.admin estiver configurado e o registro ainda não tiver sido
inicializado, o administrador e os metadados da coleção são gravados antes
de aceitar requisições.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts.cfg, opts.logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := services.NewRegistryService(store, ledger.New(newAuthorizer(cfg)),
		services.WithLogger(logger),
		services.WithMetrics(metrics.New(reg)),
		services.WithCacheTTL(cfg.Cache.TTL),
	)

	if cfg.Registry.Admin != "" {
		admin, err := auth.ParseIdentity(cfg.Registry.Admin)
		if err != nil {
			return err
		}
		err = svc.Initialize(ctx, admin, cfg.CollectionMetadata())
		if err != nil && !errors.Is(err, models.ErrAlreadyInitialized) {
			return err
		}
	}
	if _, err := svc.Collection(ctx); errors.Is(err, models.ErrNotInitialized) {
		logger.Warn("registro não inicializado: mints serão recusados até registry.admin ser configurado", "store", cfg.Store.Backend)
	}
	if cfg.Auth.Mode == config.AuthNone {
		logger.Warn("autorização desligada: qualquer chamador pode mutar o registro")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handlers.NewRouter(svc, logger, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("servidor backend rodando", "addr", cfg.ListenAddr, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("encerrando servidor")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
