package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var errReadOnly = errors.New("transação somente leitura")

// MemoryStore mantém todo o estado em memória. Cada Update trabalha sobre
// uma camada de escrita que só é aplicada quando a função termina sem erro.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore cria um armazenamento vazio em memória.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	txn := &memTxn{
		base:     s.data,
		writes:   make(map[string][]byte),
		deletes:  make(map[string]struct{}),
		writable: true,
	}
	if err := fn(&kvTx{txn: txn}); err != nil {
		return err
	}
	txn.commit()
	return nil
}

func (s *MemoryStore) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&kvTx{txn: &memTxn{base: s.data}})
}

func (s *MemoryStore) Close() error {
	return nil
}

type memTxn struct {
	base     map[string][]byte
	writes   map[string][]byte
	deletes  map[string]struct{}
	writable bool
}

func (t *memTxn) get(key []byte) ([]byte, error) {
	k := string(key)
	if _, deleted := t.deletes[k]; deleted {
		return nil, nil
	}
	if val, ok := t.writes[k]; ok {
		return val, nil
	}
	if val, ok := t.base[k]; ok {
		return append([]byte(nil), val...), nil
	}
	return nil, nil
}

func (t *memTxn) set(key, val []byte) error {
	if !t.writable {
		return errReadOnly
	}
	k := string(key)
	delete(t.deletes, k)
	t.writes[k] = append([]byte(nil), val...)
	return nil
}

func (t *memTxn) delete(key []byte) error {
	if !t.writable {
		return errReadOnly
	}
	k := string(key)
	delete(t.writes, k)
	t.deletes[k] = struct{}{}
	return nil
}

func (t *memTxn) scan(prefix []byte, fn func(key, val []byte) error) error {
	p := string(prefix)
	seen := make(map[string]struct{})
	var keys []string
	for k := range t.base {
		if strings.HasPrefix(k, p) {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	for k := range t.writes {
		if _, ok := seen[k]; !ok && strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		val, err := t.get([]byte(k))
		if err != nil {
			return err
		}
		if val == nil {
			continue
		}
		if err := fn([]byte(k), val); err != nil {
			return err
		}
	}
	return nil
}

func (t *memTxn) commit() {
	for k := range t.deletes {
		delete(t.base, k)
	}
	for k, v := range t.writes {
		t.base[k] = v
	}
}
