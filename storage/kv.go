package storage

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/ferreirogomes/imovelnft/models"
)

const (
	keyRegistryAdmin      = "REGISTRY:ADMIN"
	keyRegistryCollection = "REGISTRY:COLLECTION"
	keyTokenCounter       = "TOKENS:COUNTER"

	prefixTokenOwner      = "TOKENS:OWNER:"
	prefixTokenHeld       = "TOKENS:HELD:"
	prefixTokenBalance    = "TOKENS:BALANCE:"
	prefixTokenApproval   = "TOKENS:APPROVAL:"
	prefixPropertyPayload = "PROPERTIES:PAYLOAD:"
	prefixEventToken      = "EVENTS:TOKEN:"
)

// kvTxn é o mínimo que um armazenamento chave/valor precisa oferecer.
// get devolve nil, nil quando a chave não existe; scan percorre em ordem crescente.
type kvTxn interface {
	get(key []byte) ([]byte, error)
	set(key, val []byte) error
	delete(key []byte) error
	scan(prefix []byte, fn func(key, val []byte) error) error
}

type propertyPayload struct {
	ID       uint32 `msgpack:"i"`
	Owner    []byte `msgpack:"o"`
	Location string `msgpack:"l"`
	Price    uint32 `msgpack:"p"`
	Document string `msgpack:"d"`
}

type eventPayload struct {
	ID      string `msgpack:"i"`
	Kind    string `msgpack:"k"`
	TokenID uint32 `msgpack:"t"`
	From    []byte `msgpack:"f"`
	To      []byte `msgpack:"r"`
	At      int64  `msgpack:"a"`
}

// kvTx implementa Tx sobre qualquer kvTxn.
type kvTx struct {
	txn kvTxn
}

func (tx *kvTx) Admin() (solana.PublicKey, bool, error) {
	val, err := tx.txn.get([]byte(keyRegistryAdmin))
	if err != nil || val == nil {
		return solana.PublicKey{}, false, err
	}
	return solana.PublicKeyFromBytes(val), true, nil
}

func (tx *kvTx) SetAdmin(admin solana.PublicKey) error {
	key := []byte(keyRegistryAdmin)
	old, err := tx.txn.get(key)
	if err != nil {
		return err
	} else if old != nil {
		return models.ErrAlreadyInitialized
	}
	return tx.txn.set(key, admin.Bytes())
}

func (tx *kvTx) Metadata() (models.Collection, bool, error) {
	val, err := tx.txn.get([]byte(keyRegistryCollection))
	if err != nil || val == nil {
		return models.Collection{}, false, err
	}
	var c models.Collection
	err = msgpack.Unmarshal(val, &c)
	return c, err == nil, err
}

func (tx *kvTx) SetMetadata(c models.Collection) error {
	val, err := msgpack.Marshal(c)
	if err != nil {
		return err
	}
	return tx.txn.set([]byte(keyRegistryCollection), val)
}

func (tx *kvTx) TokenCounter() (uint32, error) {
	val, err := tx.txn.get([]byte(keyTokenCounter))
	if err != nil || val == nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(val), nil
}

func (tx *kvTx) SetTokenCounter(next uint32) error {
	return tx.txn.set([]byte(keyTokenCounter), uint32ToBytes(next))
}

func (tx *kvTx) TokenOwner(id uint32) (solana.PublicKey, bool, error) {
	val, err := tx.txn.get(tokenKey(prefixTokenOwner, id))
	if err != nil || val == nil {
		return solana.PublicKey{}, false, err
	}
	return solana.PublicKeyFromBytes(val), true, nil
}

// SetTokenOwner grava o dono e move o token no índice dono -> tokens.
func (tx *kvTx) SetTokenOwner(id uint32, owner solana.PublicKey) error {
	if err := tx.unindexOwner(id); err != nil {
		return err
	}
	if err := tx.txn.set(heldKey(owner, id), []byte{1}); err != nil {
		return err
	}
	return tx.txn.set(tokenKey(prefixTokenOwner, id), owner.Bytes())
}

func (tx *kvTx) DeleteTokenOwner(id uint32) error {
	if err := tx.unindexOwner(id); err != nil {
		return err
	}
	return tx.txn.delete(tokenKey(prefixTokenOwner, id))
}

func (tx *kvTx) unindexOwner(id uint32) error {
	old, found, err := tx.TokenOwner(id)
	if err != nil || !found {
		return err
	}
	return tx.txn.delete(heldKey(old, id))
}

func (tx *kvTx) TokensOf(owner solana.PublicKey) ([]uint32, error) {
	prefix := append([]byte(prefixTokenHeld), owner.Bytes()...)
	tokens := []uint32{}
	err := tx.txn.scan(prefix, func(key, _ []byte) error {
		tokens = append(tokens, binary.BigEndian.Uint32(key[len(prefix):]))
		return nil
	})
	return tokens, err
}

func (tx *kvTx) Balance(owner solana.PublicKey) (uint32, error) {
	key := append([]byte(prefixTokenBalance), owner.Bytes()...)
	val, err := tx.txn.get(key)
	if err != nil || val == nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(val), nil
}

func (tx *kvTx) SetBalance(owner solana.PublicKey, balance uint32) error {
	key := append([]byte(prefixTokenBalance), owner.Bytes()...)
	if balance == 0 {
		return tx.txn.delete(key)
	}
	return tx.txn.set(key, uint32ToBytes(balance))
}

func (tx *kvTx) Approval(id uint32) (solana.PublicKey, bool, error) {
	val, err := tx.txn.get(tokenKey(prefixTokenApproval, id))
	if err != nil || val == nil {
		return solana.PublicKey{}, false, err
	}
	return solana.PublicKeyFromBytes(val), true, nil
}

func (tx *kvTx) SetApproval(id uint32, spender solana.PublicKey) error {
	return tx.txn.set(tokenKey(prefixTokenApproval, id), spender.Bytes())
}

func (tx *kvTx) DeleteApproval(id uint32) error {
	return tx.txn.delete(tokenKey(prefixTokenApproval, id))
}

func (tx *kvTx) Property(id uint32) (models.Property, bool, error) {
	val, err := tx.txn.get(tokenKey(prefixPropertyPayload, id))
	if err != nil || val == nil {
		return models.Property{}, false, err
	}
	p, err := decodeProperty(val)
	return p, err == nil, err
}

func (tx *kvTx) InsertProperty(p models.Property) error {
	key := tokenKey(prefixPropertyPayload, p.ID)
	old, err := tx.txn.get(key)
	if err != nil {
		return err
	} else if old != nil {
		return fmt.Errorf("id %d: %w", p.ID, models.ErrPropertyExists)
	}
	val, err := msgpack.Marshal(propertyPayload{
		ID:       p.ID,
		Owner:    p.Owner.Bytes(),
		Location: p.Location,
		Price:    p.Price,
		Document: p.Document,
	})
	if err != nil {
		return err
	}
	return tx.txn.set(key, val)
}

func (tx *kvTx) DeleteProperty(id uint32) error {
	return tx.txn.delete(tokenKey(prefixPropertyPayload, id))
}

func (tx *kvTx) ListProperties(f models.PropertyFilter) ([]models.Property, int, error) {
	f = f.Normalize()
	var matched []models.Property
	err := tx.txn.scan([]byte(prefixPropertyPayload), func(_, val []byte) error {
		p, err := decodeProperty(val)
		if err != nil {
			return err
		}
		if matchProperty(f, p) {
			matched = append(matched, p)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	// Mais recentes primeiro
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := len(matched)
	start := f.Offset()
	if start >= total {
		return []models.Property{}, total, nil
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (tx *kvTx) AppendEvent(e models.Event) error {
	key := tokenKey(prefixEventToken, e.TokenID)
	key = append(key, tsToBytes(e.At)...)
	key = append(key, []byte(e.ID)...)
	val, err := msgpack.Marshal(eventPayload{
		ID:      e.ID,
		Kind:    string(e.Kind),
		TokenID: e.TokenID,
		From:    e.From.Bytes(),
		To:      e.To.Bytes(),
		At:      e.At.UnixNano(),
	})
	if err != nil {
		return err
	}
	return tx.txn.set(key, val)
}

func (tx *kvTx) ListEvents(tokenID uint32) ([]models.Event, error) {
	events := []models.Event{}
	err := tx.txn.scan(tokenKey(prefixEventToken, tokenID), func(_, val []byte) error {
		var ep eventPayload
		if err := msgpack.Unmarshal(val, &ep); err != nil {
			return err
		}
		events = append(events, models.Event{
			ID:      ep.ID,
			Kind:    models.EventKind(ep.Kind),
			TokenID: ep.TokenID,
			From:    solana.PublicKeyFromBytes(ep.From),
			To:      solana.PublicKeyFromBytes(ep.To),
			At:      time.Unix(0, ep.At).UTC(),
		})
		return nil
	})
	return events, err
}

func decodeProperty(val []byte) (models.Property, error) {
	var pp propertyPayload
	if err := msgpack.Unmarshal(val, &pp); err != nil {
		return models.Property{}, err
	}
	return models.Property{
		ID:       pp.ID,
		Owner:    solana.PublicKeyFromBytes(pp.Owner),
		Location: pp.Location,
		Price:    pp.Price,
		Document: pp.Document,
	}, nil
}

// matchProperty aplica os filtros de listagem a um registro.
func matchProperty(f models.PropertyFilter, p models.Property) bool {
	if !f.Owner.IsZero() && !f.Owner.Equals(p.Owner) {
		return false
	}
	if f.Location != "" && !strings.Contains(strings.ToLower(p.Location), strings.ToLower(f.Location)) {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	return true
}

func heldKey(owner solana.PublicKey, id uint32) []byte {
	key := append([]byte(prefixTokenHeld), owner.Bytes()...)
	return append(key, uint32ToBytes(id)...)
}

func tokenKey(prefix string, id uint32) []byte {
	return append([]byte(prefix), uint32ToBytes(id)...)
}

func uint32ToBytes(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return buf
}

func tsToBytes(ts time.Time) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(ts.UnixNano()))
	return buf
}
