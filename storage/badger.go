package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v3"
)

const badgerGCInterval = 5 * time.Minute

// BadgerStore guarda o estado em um Badger local, com chaves prefixadas e
// valores em msgpack.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// OpenBadger abre (ou cria) o banco no diretório informado. Com path vazio
// o banco vive só em memória.
func OpenBadger(ctx context.Context, path string, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	gcCtx, cancel := context.WithCancel(ctx)
	bs := &BadgerStore{
		db:     db,
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if path == "" {
		close(bs.done)
	} else {
		go bs.collectGarbage(gcCtx)
	}
	return bs, nil
}

func (bs *BadgerStore) collectGarbage(ctx context.Context) {
	defer close(bs.done)
	ticker := time.NewTicker(badgerGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		lsm, vlog := bs.db.Size()
		bs.logger.Debug("tamanho do badger", "lsm", lsm, "vlog", vlog)
		if lsm > 1024*1024*8 || vlog > 1024*1024*32 {
			err := bs.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				bs.logger.Warn("falha no GC do value log", "error", err)
			}
		}
	}
}

func (bs *BadgerStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return bs.db.Update(func(txn *badger.Txn) error {
		return fn(&kvTx{txn: badgerTxn{txn}})
	})
}

func (bs *BadgerStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return bs.db.View(func(txn *badger.Txn) error {
		return fn(&kvTx{txn: badgerTxn{txn}})
	})
}

func (bs *BadgerStore) Close() error {
	bs.cancel()
	<-bs.done
	return bs.db.Close()
}

type badgerTxn struct {
	txn *badger.Txn
}

func (t badgerTxn) get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t badgerTxn) set(key, val []byte) error {
	return t.txn.Set(key, val)
}

func (t badgerTxn) delete(key []byte) error {
	return t.txn.Delete(key)
}

func (t badgerTxn) scan(prefix []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.Valid(); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), val); err != nil {
			return err
		}
	}
	return nil
}
