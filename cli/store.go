package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ferreirogomes/imovelnft/auth"
	"github.com/ferreirogomes/imovelnft/config"
	"github.com/ferreirogomes/imovelnft/storage"
)

// openStore abre o backend configurado em store.backend.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return storage.NewMemoryStore(), nil
	case config.BackendBadger:
		return storage.OpenBadger(ctx, cfg.Store.Path, logger)
	case config.BackendPostgres:
		return storage.NewDB(ctx, storage.DriverPostgres, cfg.Store.DSN, logger)
	case config.BackendSQLite:
		return storage.NewDB(ctx, storage.DriverSQLite, cfg.Store.DSN, logger)
	}
	return nil, fmt.Errorf("store.backend desconhecido: %q", cfg.Store.Backend)
}

// ephemeralStore diz se o backend configurado perde tudo ao fechar.
func ephemeralStore(cfg *config.Config) bool {
	return cfg.Store.Backend == config.BackendMemory ||
		(cfg.Store.Backend == config.BackendBadger && cfg.Store.Path == "")
}

func newAuthorizer(cfg *config.Config) auth.Authorizer {
	if cfg.Auth.Mode == config.AuthNone {
		return auth.AllowAll{}
	}
	return auth.SignerAuthorizer{}
}
