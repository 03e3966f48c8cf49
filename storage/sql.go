package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
	_ "modernc.org/sqlite"

	"github.com/ferreirogomes/imovelnft/models"
)

// Drivers SQL suportados.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	settingAdmin             = "admin"
	settingCollectionName    = "collection.name"
	settingCollectionSymbol  = "collection.symbol"
	settingCollectionBaseURI = "collection.base_uri"
	settingTokenCounter      = "token_counter"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLStore representa a conexão com o banco relacional (PostgreSQL ou SQLite).
type SQLStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewDB conecta-se ao banco e executa as migrações.
func NewDB(ctx context.Context, driver, dataSourceName string, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dialect, err := migrationDialect(driver)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.ConnectContext(ctx, driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar ao banco de dados: %w", err)
	}
	if driver == DriverSQLite {
		// Cada conexão SQLite em memória é um banco diferente.
		db.SetMaxOpenConns(1)
	}
	logger.Info("conexão com o banco estabelecida", "driver", driver)

	if err := runMigrations(db.DB, dialect, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("falha ao executar migrações: %w", err)
	}

	return &SQLStore{db: db, logger: logger}, nil
}

func migrationDialect(driver string) (string, error) {
	switch driver {
	case DriverPostgres:
		return "postgres", nil
	case DriverSQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("driver SQL não suportado: %q", driver)
}

// runMigrations executa as migrações usando sql-migrate.
func runMigrations(db *sql.DB, dialect string, logger *slog.Logger) error {
	migrations := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationsFS,
		Root:       "migrations",
	}

	n, err := migrate.Exec(db, dialect, migrations, migrate.Up)
	if err != nil {
		return fmt.Errorf("erro ao aplicar migrações: %w", err)
	}
	if n > 0 {
		logger.Info("migrações aplicadas", "count", n)
	} else {
		logger.Debug("nenhuma migração nova para aplicar")
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("falha ao abrir transação: %w", err)
	}
	if err := fn(&sqlTx{ctx: ctx, tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("falha ao desfazer transação", "error", rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) View(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("falha ao abrir transação: %w", err)
	}
	defer tx.Rollback()
	return fn(&sqlTx{ctx: ctx, tx: tx})
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

type sqlTx struct {
	ctx context.Context
	tx  *sqlx.Tx
}

type propertyRow struct {
	ID       int64  `db:"id"`
	Owner    string `db:"owner"`
	Location string `db:"location"`
	Price    int64  `db:"price"`
	Document string `db:"document"`
}

type eventRow struct {
	ID        string `db:"id"`
	TokenID   int64  `db:"token_id"`
	Kind      string `db:"kind"`
	From      string `db:"from_identity"`
	To        string `db:"to_identity"`
	CreatedAt int64  `db:"created_at"`
}

func (t *sqlTx) get(dest interface{}, query string, args ...interface{}) (bool, error) {
	err := t.tx.GetContext(t.ctx, dest, t.tx.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (t *sqlTx) exec(query string, args ...interface{}) error {
	_, err := t.tx.ExecContext(t.ctx, t.tx.Rebind(query), args...)
	return err
}

func (t *sqlTx) setting(name string) (string, bool, error) {
	var value string
	found, err := t.get(&value, `SELECT value FROM registry_settings WHERE setting = ?`, name)
	return value, found, err
}

func (t *sqlTx) setSetting(name, value string) error {
	return t.exec(`INSERT INTO registry_settings (setting, value) VALUES (?, ?)
		ON CONFLICT (setting) DO UPDATE SET value = excluded.value`, name, value)
}

func (t *sqlTx) Admin() (solana.PublicKey, bool, error) {
	value, found, err := t.setting(settingAdmin)
	if err != nil || !found {
		return solana.PublicKey{}, false, err
	}
	admin, err := parseStoredKey(value)
	return admin, err == nil, err
}

func (t *sqlTx) SetAdmin(admin solana.PublicKey) error {
	_, found, err := t.setting(settingAdmin)
	if err != nil {
		return err
	} else if found {
		return models.ErrAlreadyInitialized
	}
	return t.exec(`INSERT INTO registry_settings (setting, value) VALUES (?, ?)`, settingAdmin, admin.String())
}

func (t *sqlTx) Metadata() (models.Collection, bool, error) {
	var c models.Collection
	var found bool
	for _, f := range []struct {
		name string
		dest *string
	}{
		{settingCollectionName, &c.Name},
		{settingCollectionSymbol, &c.Symbol},
		{settingCollectionBaseURI, &c.BaseURI},
	} {
		value, ok, err := t.setting(f.name)
		if err != nil {
			return models.Collection{}, false, err
		}
		*f.dest = value
		found = found || ok
	}
	return c, found, nil
}

func (t *sqlTx) SetMetadata(c models.Collection) error {
	if err := t.setSetting(settingCollectionName, c.Name); err != nil {
		return err
	}
	if err := t.setSetting(settingCollectionSymbol, c.Symbol); err != nil {
		return err
	}
	return t.setSetting(settingCollectionBaseURI, c.BaseURI)
}

func (t *sqlTx) TokenCounter() (uint32, error) {
	value, found, err := t.setting(settingTokenCounter)
	if err != nil || !found {
		return 0, err
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("contador de tokens corrompido %q: %w", value, err)
	}
	return uint32(n), nil
}

func (t *sqlTx) SetTokenCounter(next uint32) error {
	return t.setSetting(settingTokenCounter, strconv.FormatUint(uint64(next), 10))
}

func (t *sqlTx) TokenOwner(id uint32) (solana.PublicKey, bool, error) {
	var owner string
	found, err := t.get(&owner, `SELECT owner FROM token_owners WHERE token_id = ?`, id)
	if err != nil || !found {
		return solana.PublicKey{}, false, err
	}
	pub, err := parseStoredKey(owner)
	return pub, err == nil, err
}

func (t *sqlTx) SetTokenOwner(id uint32, owner solana.PublicKey) error {
	return t.exec(`INSERT INTO token_owners (token_id, owner) VALUES (?, ?)
		ON CONFLICT (token_id) DO UPDATE SET owner = excluded.owner`, id, owner.String())
}

func (t *sqlTx) DeleteTokenOwner(id uint32) error {
	return t.exec(`DELETE FROM token_owners WHERE token_id = ?`, id)
}

func (t *sqlTx) TokensOf(owner solana.PublicKey) ([]uint32, error) {
	var ids []int64
	err := t.tx.SelectContext(t.ctx, &ids, t.tx.Rebind(`SELECT token_id FROM token_owners WHERE owner = ? ORDER BY token_id`), owner.String())
	if err != nil {
		return nil, fmt.Errorf("falha ao listar tokens de %s: %w", owner, err)
	}
	tokens := make([]uint32, 0, len(ids))
	for _, id := range ids {
		tokens = append(tokens, uint32(id))
	}
	return tokens, nil
}

func (t *sqlTx) Balance(owner solana.PublicKey) (uint32, error) {
	var balance int64
	_, err := t.get(&balance, `SELECT balance FROM token_balances WHERE owner = ?`, owner.String())
	return uint32(balance), err
}

func (t *sqlTx) SetBalance(owner solana.PublicKey, balance uint32) error {
	if balance == 0 {
		return t.exec(`DELETE FROM token_balances WHERE owner = ?`, owner.String())
	}
	return t.exec(`INSERT INTO token_balances (owner, balance) VALUES (?, ?)
		ON CONFLICT (owner) DO UPDATE SET balance = excluded.balance`, owner.String(), balance)
}

func (t *sqlTx) Approval(id uint32) (solana.PublicKey, bool, error) {
	var spender string
	found, err := t.get(&spender, `SELECT spender FROM token_approvals WHERE token_id = ?`, id)
	if err != nil || !found {
		return solana.PublicKey{}, false, err
	}
	pub, err := parseStoredKey(spender)
	return pub, err == nil, err
}

func (t *sqlTx) SetApproval(id uint32, spender solana.PublicKey) error {
	return t.exec(`INSERT INTO token_approvals (token_id, spender) VALUES (?, ?)
		ON CONFLICT (token_id) DO UPDATE SET spender = excluded.spender`, id, spender.String())
}

func (t *sqlTx) DeleteApproval(id uint32) error {
	return t.exec(`DELETE FROM token_approvals WHERE token_id = ?`, id)
}

func (t *sqlTx) Property(id uint32) (models.Property, bool, error) {
	var row propertyRow
	found, err := t.get(&row, `SELECT id, owner, location, price, document FROM properties WHERE id = ?`, id)
	if err != nil || !found {
		return models.Property{}, false, err
	}
	p, err := row.toModel()
	return p, err == nil, err
}

func (t *sqlTx) InsertProperty(p models.Property) error {
	var exists int
	found, err := t.get(&exists, `SELECT 1 FROM properties WHERE id = ?`, p.ID)
	if err != nil {
		return err
	} else if found {
		return fmt.Errorf("id %d: %w", p.ID, models.ErrPropertyExists)
	}
	return t.exec(`INSERT INTO properties (id, owner, location, price, document) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Owner.String(), p.Location, p.Price, p.Document)
}

func (t *sqlTx) DeleteProperty(id uint32) error {
	return t.exec(`DELETE FROM properties WHERE id = ?`, id)
}

func (t *sqlTx) ListProperties(f models.PropertyFilter) ([]models.Property, int, error) {
	f = f.Normalize()

	var where []string
	var args []interface{}
	if !f.Owner.IsZero() {
		where = append(where, "owner = ?")
		args = append(args, f.Owner.String())
	}
	if f.Location != "" {
		where = append(where, `LOWER(location) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(f.Location))+"%")
	}
	if f.MinPrice != nil {
		where = append(where, "price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where = append(where, "price <= ?")
		args = append(args, *f.MaxPrice)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if _, err := t.get(&total, `SELECT COUNT(*) FROM properties`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("falha ao contar imóveis: %w", err)
	}

	var rows []propertyRow
	query := `SELECT id, owner, location, price, document FROM properties` + clause + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset())
	if err := t.tx.SelectContext(t.ctx, &rows, t.tx.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("falha ao listar imóveis: %w", err)
	}

	props := make([]models.Property, 0, len(rows))
	for _, row := range rows {
		p, err := row.toModel()
		if err != nil {
			return nil, 0, err
		}
		props = append(props, p)
	}
	return props, total, nil
}

func (t *sqlTx) AppendEvent(e models.Event) error {
	return t.exec(`INSERT INTO token_events (id, token_id, kind, from_identity, to_identity, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.TokenID, string(e.Kind), e.From.String(), e.To.String(), e.At.UnixNano())
}

func (t *sqlTx) ListEvents(tokenID uint32) ([]models.Event, error) {
	var rows []eventRow
	err := t.tx.SelectContext(t.ctx, &rows, t.tx.Rebind(`SELECT id, token_id, kind, from_identity, to_identity, created_at
		FROM token_events WHERE token_id = ? ORDER BY created_at, id`), tokenID)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar eventos: %w", err)
	}

	events := make([]models.Event, 0, len(rows))
	for _, row := range rows {
		from, err := parseStoredKey(row.From)
		if err != nil {
			return nil, err
		}
		to, err := parseStoredKey(row.To)
		if err != nil {
			return nil, err
		}
		events = append(events, models.Event{
			ID:      row.ID,
			Kind:    models.EventKind(row.Kind),
			TokenID: uint32(row.TokenID),
			From:    from,
			To:      to,
			At:      time.Unix(0, row.CreatedAt).UTC(),
		})
	}
	return events, nil
}

func (r propertyRow) toModel() (models.Property, error) {
	owner, err := parseStoredKey(r.Owner)
	if err != nil {
		return models.Property{}, err
	}
	return models.Property{
		ID:       uint32(r.ID),
		Owner:    owner,
		Location: r.Location,
		Price:    uint32(r.Price),
		Document: r.Document,
	}, nil
}

// parseStoredKey decodifica uma chave gravada pelo próprio registro. A chave
// zerada é válida aqui (eventos de mint e burn).
func parseStoredKey(s string) (solana.PublicKey, error) {
	pub, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("chave corrompida no banco %q: %w", s, err)
	}
	return pub, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
