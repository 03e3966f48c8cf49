package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/patrickmn/go-cache"

	"github.com/ferreirogomes/imovelnft/ledger"
	"github.com/ferreirogomes/imovelnft/metrics"
	"github.com/ferreirogomes/imovelnft/models"
	"github.com/ferreirogomes/imovelnft/storage"
)

const (
	DefaultCacheTTL      = 10 * time.Minute
	cacheCleanupInterval = 15 * time.Minute
)

// Ledger é o livro de posse usado pelo registro.
type Ledger interface {
	SequentialMint(ctx context.Context, st ledger.State, to solana.PublicKey) (uint32, error)
	OwnerOf(st ledger.State, id uint32) (solana.PublicKey, error)
	Balance(st ledger.State, owner solana.PublicKey) (uint32, error)
	TokensOf(st ledger.State, owner solana.PublicKey) ([]uint32, error)
	TotalMinted(st ledger.State) (uint32, error)
	Metadata(st ledger.State) (models.Collection, error)
	SetMetadata(st ledger.State, c models.Collection) error
	Transfer(ctx context.Context, st ledger.State, from, to solana.PublicKey, id uint32) error
	TransferFrom(ctx context.Context, st ledger.State, spender, from, to solana.PublicKey, id uint32) error
	Approve(ctx context.Context, st ledger.State, approver, spender solana.PublicKey, id uint32) error
	Burn(ctx context.Context, st ledger.State, from solana.PublicKey, id uint32) error
	BurnFrom(ctx context.Context, st ledger.State, spender, from solana.PublicKey, id uint32) error
}

// RegistryService é a fachada do registro de imóveis: inicializa o registro,
// tokeniza imóveis e responde consultas. Mutações são serializadas e cada
// uma roda em uma única transação do armazenamento.
type RegistryService struct {
	store    storage.Store
	ledger   Ledger
	cache    *cache.Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// mu serializa mutações. Leituras que preenchem o cache seguram RLock
	// até o Set, para que um burn não seja desfeito por um Set atrasado.
	mu sync.RWMutex
}

type Option func(s *RegistryService)

func WithLogger(logger *slog.Logger) Option {
	return func(s *RegistryService) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *RegistryService) {
		s.metrics = m
	}
}

// WithCacheTTL define por quanto tempo um imóvel lido fica no cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *RegistryService) {
		s.cacheTTL = ttl
	}
}

// NewRegistryService cria a fachada sobre o armazenamento e o ledger informados.
func NewRegistryService(store storage.Store, l Ledger, opts ...Option) *RegistryService {
	s := &RegistryService{
		store:    store,
		ledger:   l,
		cacheTTL: DefaultCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.cache = cache.New(s.cacheTTL, cacheCleanupInterval)
	return s
}

// Initialize grava o administrador e os metadados da coleção. Só pode ser
// chamado uma vez; chamadas seguintes falham sem alterar o administrador.
func (s *RegistryService) Initialize(ctx context.Context, admin solana.PublicKey, collection models.Collection) (err error) {
	defer s.observe("initialize", time.Now(), &err)

	if admin.IsZero() {
		return models.ErrInvalidIdentity
	}
	if collection == (models.Collection{}) {
		collection = models.DefaultCollection()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.store.Update(ctx, func(tx storage.Tx) error {
		if err := tx.SetAdmin(admin); err != nil {
			return err
		}
		return s.ledger.SetMetadata(tx, collection)
	})
	if err != nil {
		err = classifyWrite(err)
		s.logger.Warn("falha ao inicializar registro", "admin", admin.String(), "error", err)
		return err
	}

	s.logger.Info("registro inicializado", "admin", admin.String(), "collection", collection.Name)
	return nil
}

// MintProperty emite um novo token para to e grava o imóvel vinculado a ele.
// Ou tudo é gravado, ou nada é.
func (s *RegistryService) MintProperty(ctx context.Context, to solana.PublicKey, location string, price uint32, document string) (id uint32, err error) {
	defer s.observe("mint_property", time.Now(), &err)

	prop := models.Property{
		Owner:    to,
		Location: location,
		Price:    price,
		Document: document,
	}
	if err := prop.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.store.Update(ctx, func(tx storage.Tx) error {
		if err := requireInitialized(tx); err != nil {
			return err
		}
		tokenID, err := s.ledger.SequentialMint(ctx, tx, to)
		if err != nil {
			return err
		}
		prop.ID = tokenID
		if err := tx.InsertProperty(prop); err != nil {
			return fmt.Errorf("falha ao gravar imóvel %d: %w", tokenID, err)
		}
		return nil
	})
	if err != nil {
		err = classifyWrite(err)
		s.logger.Warn("falha ao tokenizar imóvel", "to", to.String(), "location", location, "error", err)
		return 0, err
	}

	s.cache.Set(cacheKey(prop.ID), prop, cache.DefaultExpiration)
	s.metrics.IncrementMinted()
	s.logger.Info("imóvel tokenizado", "id", prop.ID, "owner", to.String(), "location", location)
	return prop.ID, nil
}

// GetProperty retorna o imóvel gravado no mint do token id.
func (s *RegistryService) GetProperty(ctx context.Context, id uint32) (prop models.Property, err error) {
	defer s.observe("get_property", time.Now(), &err)

	if cached, ok := s.cache.Get(cacheKey(id)); ok {
		s.metrics.IncrementCacheHit()
		return cached.(models.Property), nil
	}
	s.metrics.IncrementCacheMiss()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var found bool
	err = s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		prop, found, err = tx.Property(id)
		return err
	})
	if err != nil {
		return models.Property{}, fmt.Errorf("falha ao ler imóvel %d: %w", id, err)
	}
	if !found {
		return models.Property{}, fmt.Errorf("imóvel %d: %w", id, models.ErrNotFound)
	}

	s.cache.Set(cacheKey(id), prop, cache.DefaultExpiration)
	return prop, nil
}

// ListProperties lista os imóveis mais recentes primeiro, aplicando os filtros.
func (s *RegistryService) ListProperties(ctx context.Context, filter models.PropertyFilter) (props []models.Property, page models.Pagination, err error) {
	defer s.observe("list_properties", time.Now(), &err)

	filter = filter.Normalize()
	var total int
	err = s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		props, total, err = tx.ListProperties(filter)
		return err
	})
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("falha ao listar imóveis: %w", err)
	}
	return props, models.NewPagination(filter, total), nil
}

// Collection retorna os metadados da coleção, o administrador e quantos
// tokens já foram emitidos.
func (s *RegistryService) Collection(ctx context.Context) (info models.CollectionInfo, err error) {
	defer s.observe("collection", time.Now(), &err)

	err = s.store.View(ctx, func(tx storage.Tx) error {
		admin, found, err := tx.Admin()
		if err != nil {
			return err
		} else if !found {
			return models.ErrNotInitialized
		}
		info.Admin = admin

		if info.Collection, err = s.ledger.Metadata(tx); err != nil {
			return err
		}
		info.TotalMinted, err = s.ledger.TotalMinted(tx)
		return err
	})
	return info, err
}

// OwnerOf retorna o dono atual do token, que pode divergir do dono gravado
// no imóvel.
func (s *RegistryService) OwnerOf(ctx context.Context, id uint32) (owner solana.PublicKey, err error) {
	defer s.observe("owner_of", time.Now(), &err)

	err = s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		owner, err = s.ledger.OwnerOf(tx, id)
		return err
	})
	return owner, err
}

func (s *RegistryService) Balance(ctx context.Context, owner solana.PublicKey) (balance uint32, err error) {
	defer s.observe("balance", time.Now(), &err)

	err = s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		balance, err = s.ledger.Balance(tx, owner)
		return err
	})
	return balance, err
}

// TokensOf lista os ids que owner possui hoje, segundo o ledger. Ao
// contrário do filtro por dono de ListProperties, acompanha transferências.
func (s *RegistryService) TokensOf(ctx context.Context, owner solana.PublicKey) (tokens []uint32, err error) {
	defer s.observe("tokens_of", time.Now(), &err)

	err = s.store.View(ctx, func(tx storage.Tx) error {
		var err error
		tokens, err = s.ledger.TokensOf(tx, owner)
		return err
	})
	return tokens, err
}

// Events retorna o histórico do token em ordem cronológica.
func (s *RegistryService) Events(ctx context.Context, id uint32) (events []models.Event, err error) {
	defer s.observe("events", time.Now(), &err)

	err = s.store.View(ctx, func(tx storage.Tx) error {
		total, err := s.ledger.TotalMinted(tx)
		if err != nil {
			return err
		}
		if id >= total {
			return fmt.Errorf("token %d: %w", id, models.ErrNotFound)
		}
		events, err = tx.ListEvents(id)
		return err
	})
	return events, err
}

func (s *RegistryService) Transfer(ctx context.Context, from, to solana.PublicKey, id uint32) error {
	return s.mutate(ctx, "transfer", func(tx storage.Tx) error {
		return s.ledger.Transfer(ctx, tx, from, to, id)
	})
}

func (s *RegistryService) TransferFrom(ctx context.Context, spender, from, to solana.PublicKey, id uint32) error {
	return s.mutate(ctx, "transfer_from", func(tx storage.Tx) error {
		return s.ledger.TransferFrom(ctx, tx, spender, from, to, id)
	})
}

func (s *RegistryService) Approve(ctx context.Context, approver, spender solana.PublicKey, id uint32) error {
	return s.mutate(ctx, "approve", func(tx storage.Tx) error {
		return s.ledger.Approve(ctx, tx, approver, spender, id)
	})
}

// Burn queima o token e apaga o imóvel vinculado na mesma transação.
func (s *RegistryService) Burn(ctx context.Context, from solana.PublicKey, id uint32) error {
	return s.burn(ctx, "burn", id, func(tx storage.Tx) error {
		return s.ledger.Burn(ctx, tx, from, id)
	})
}

func (s *RegistryService) BurnFrom(ctx context.Context, spender, from solana.PublicKey, id uint32) error {
	return s.burn(ctx, "burn_from", id, func(tx storage.Tx) error {
		return s.ledger.BurnFrom(ctx, tx, spender, from, id)
	})
}

func (s *RegistryService) burn(ctx context.Context, operation string, id uint32, fn func(tx storage.Tx) error) error {
	return s.mutateThen(ctx, operation, func(tx storage.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return tx.DeleteProperty(id)
	}, func() {
		s.cache.Delete(cacheKey(id))
	})
}

func (s *RegistryService) mutate(ctx context.Context, operation string, fn func(tx storage.Tx) error) error {
	return s.mutateThen(ctx, operation, fn, nil)
}

// mutateThen roda fn em uma transação e, se ela for confirmada, chama
// committed ainda com o lock de escrita.
func (s *RegistryService) mutateThen(ctx context.Context, operation string, fn func(tx storage.Tx) error, committed func()) (err error) {
	defer s.observe(operation, time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.store.Update(ctx, func(tx storage.Tx) error {
		if err := requireInitialized(tx); err != nil {
			return err
		}
		return fn(tx)
	})
	if err != nil {
		err = classifyWrite(err)
		s.logger.Warn("operação recusada", "operation", operation, "error", err)
		return err
	}
	if committed != nil {
		committed()
	}
	s.logger.Info("operação concluída", "operation", operation)
	return nil
}

func (s *RegistryService) observe(operation string, start time.Time, err *error) {
	s.metrics.ObserveOperation(operation, resultLabel(*err), time.Since(start))
}

func requireInitialized(tx storage.Tx) error {
	_, found, err := tx.Admin()
	if err != nil {
		return err
	}
	if !found {
		return models.ErrNotInitialized
	}
	return nil
}

// classifyWrite mantém os erros conhecidos e trata qualquer outro erro de
// uma escrita como falha do armazenamento.
func classifyWrite(err error) error {
	for _, known := range []error{
		models.ErrStorageWriteFailed,
		models.ErrAlreadyInitialized,
		models.ErrNotInitialized,
		models.ErrUnauthorized,
		models.ErrNotFound,
		models.ErrInvalidIdentity,
		models.ErrInvalidInput,
		models.ErrIncorrectOwner,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", models.ErrStorageWriteFailed, err)
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, models.ErrIncorrectOwner):
		return "incorrect_owner"
	case errors.Is(err, models.ErrAlreadyInitialized), errors.Is(err, models.ErrNotInitialized):
		return "conflict"
	case errors.Is(err, models.ErrInvalidIdentity), errors.Is(err, models.ErrInvalidInput):
		return "invalid"
	case errors.Is(err, models.ErrStorageWriteFailed):
		return "storage_write_failed"
	}
	return "error"
}

func cacheKey(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}
