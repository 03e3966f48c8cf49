// Package ledger é o livro de posse dos tokens não fungíveis: emite ids
// sequenciais, guarda o dono atual de cada token e aplica as regras de
// transferência, aprovação e queima.
package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/ferreirogomes/imovelnft/auth"
	"github.com/ferreirogomes/imovelnft/models"
)

// State é o estado persistido de que o ledger precisa. Todas as chamadas
// acontecem dentro de uma única transação do armazenamento.
type State interface {
	TokenCounter() (uint32, error)
	SetTokenCounter(next uint32) error

	TokenOwner(id uint32) (solana.PublicKey, bool, error)
	SetTokenOwner(id uint32, owner solana.PublicKey) error
	DeleteTokenOwner(id uint32) error
	// TokensOf devolve os tokens do dono em ordem crescente de id.
	TokensOf(owner solana.PublicKey) ([]uint32, error)

	Balance(owner solana.PublicKey) (uint32, error)
	SetBalance(owner solana.PublicKey, balance uint32) error

	Approval(id uint32) (solana.PublicKey, bool, error)
	SetApproval(id uint32, spender solana.PublicKey) error
	DeleteApproval(id uint32) error

	Metadata() (models.Collection, bool, error)
	SetMetadata(c models.Collection) error

	AppendEvent(e models.Event) error
}

// Base implementa o comportamento padrão de um token não fungível.
type Base struct {
	authorizer auth.Authorizer
	now        func() time.Time
}

// New cria o ledger usando o Authorizer informado para as mutações.
func New(authorizer auth.Authorizer) *Base {
	return &Base{authorizer: authorizer, now: time.Now}
}

// SequentialMint emite o próximo id e o atribui a to. Exige que to tenha
// autorizado o mint.
func (b *Base) SequentialMint(ctx context.Context, st State, to solana.PublicKey) (uint32, error) {
	if err := b.authorizer.Require(ctx, to, auth.ActionMint); err != nil {
		return 0, err
	}

	id, err := st.TokenCounter()
	if err != nil {
		return 0, fmt.Errorf("falha ao ler contador de tokens: %w", err)
	}
	if id == math.MaxUint32 {
		return 0, models.ErrSupplyExhausted
	}

	if err := st.SetTokenOwner(id, to); err != nil {
		return 0, err
	}
	if err := b.adjustBalance(st, to, 1); err != nil {
		return 0, err
	}
	if err := st.SetTokenCounter(id + 1); err != nil {
		return 0, err
	}
	return id, b.emit(st, models.EventMint, id, solana.PublicKey{}, to)
}

// OwnerOf retorna o dono atual do token.
func (b *Base) OwnerOf(st State, id uint32) (solana.PublicKey, error) {
	owner, found, err := st.TokenOwner(id)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if !found {
		return solana.PublicKey{}, fmt.Errorf("token %d: %w", id, models.ErrNotFound)
	}
	return owner, nil
}

// Balance retorna quantos tokens a identidade possui.
func (b *Base) Balance(st State, owner solana.PublicKey) (uint32, error) {
	return st.Balance(owner)
}

// TokensOf lista os tokens que a identidade possui agora.
func (b *Base) TokensOf(st State, owner solana.PublicKey) ([]uint32, error) {
	return st.TokensOf(owner)
}

// TotalMinted retorna quantos ids já foram emitidos, incluindo os queimados.
func (b *Base) TotalMinted(st State) (uint32, error) {
	return st.TokenCounter()
}

// Metadata retorna os metadados da coleção.
func (b *Base) Metadata(st State) (models.Collection, error) {
	c, found, err := st.Metadata()
	if err != nil {
		return models.Collection{}, err
	}
	if !found {
		return models.Collection{}, fmt.Errorf("metadados da coleção: %w", models.ErrNotFound)
	}
	return c, nil
}

// SetMetadata grava os metadados da coleção.
func (b *Base) SetMetadata(st State, c models.Collection) error {
	return st.SetMetadata(c)
}

// Transfer move o token de from para to; from precisa autorizar.
func (b *Base) Transfer(ctx context.Context, st State, from, to solana.PublicKey, id uint32) error {
	if err := b.authorizer.Require(ctx, from, auth.ActionTransfer); err != nil {
		return err
	}
	if to.IsZero() {
		return models.ErrInvalidIdentity
	}
	return b.update(st, from, to, id)
}

// TransferFrom move o token em nome de from; spender precisa autorizar e ser
// o dono ou o aprovado do token.
func (b *Base) TransferFrom(ctx context.Context, st State, spender, from, to solana.PublicKey, id uint32) error {
	if err := b.authorizer.Require(ctx, spender, auth.ActionTransfer); err != nil {
		return err
	}
	if to.IsZero() {
		return models.ErrInvalidIdentity
	}
	if err := b.checkSpender(st, spender, id); err != nil {
		return err
	}
	return b.update(st, from, to, id)
}

// Approve permite que spender mova ou queime o token. Só o dono aprova.
func (b *Base) Approve(ctx context.Context, st State, approver, spender solana.PublicKey, id uint32) error {
	if err := b.authorizer.Require(ctx, approver, auth.ActionApprove); err != nil {
		return err
	}
	owner, err := b.OwnerOf(st, id)
	if err != nil {
		return err
	}
	if !owner.Equals(approver) {
		return fmt.Errorf("token %d: %w", id, models.ErrIncorrectOwner)
	}
	if spender.IsZero() {
		return models.ErrInvalidIdentity
	}
	if err := st.SetApproval(id, spender); err != nil {
		return err
	}
	return b.emit(st, models.EventApprove, id, approver, spender)
}

// Burn retira o token de circulação; from precisa autorizar.
func (b *Base) Burn(ctx context.Context, st State, from solana.PublicKey, id uint32) error {
	if err := b.authorizer.Require(ctx, from, auth.ActionBurn); err != nil {
		return err
	}
	return b.update(st, from, solana.PublicKey{}, id)
}

// BurnFrom queima o token em nome de from.
func (b *Base) BurnFrom(ctx context.Context, st State, spender, from solana.PublicKey, id uint32) error {
	if err := b.authorizer.Require(ctx, spender, auth.ActionBurn); err != nil {
		return err
	}
	if err := b.checkSpender(st, spender, id); err != nil {
		return err
	}
	return b.update(st, from, solana.PublicKey{}, id)
}

func (b *Base) checkSpender(st State, spender solana.PublicKey, id uint32) error {
	owner, err := b.OwnerOf(st, id)
	if err != nil {
		return err
	}
	if owner.Equals(spender) {
		return nil
	}
	approved, found, err := st.Approval(id)
	if err != nil {
		return err
	}
	if found && approved.Equals(spender) {
		return nil
	}
	return fmt.Errorf("%w: %s não pode movimentar o token %d", models.ErrUnauthorized, spender, id)
}

// update troca o dono de um token existente. to zerado significa queima.
func (b *Base) update(st State, from, to solana.PublicKey, id uint32) error {
	owner, err := b.OwnerOf(st, id)
	if err != nil {
		return err
	}
	if !owner.Equals(from) {
		return fmt.Errorf("token %d: %w", id, models.ErrIncorrectOwner)
	}

	if err := st.DeleteApproval(id); err != nil {
		return err
	}
	if err := b.adjustBalance(st, from, -1); err != nil {
		return err
	}

	kind := models.EventTransfer
	if to.IsZero() {
		kind = models.EventBurn
		if err := st.DeleteTokenOwner(id); err != nil {
			return err
		}
	} else {
		if err := st.SetTokenOwner(id, to); err != nil {
			return err
		}
		if err := b.adjustBalance(st, to, 1); err != nil {
			return err
		}
	}
	return b.emit(st, kind, id, from, to)
}

func (b *Base) adjustBalance(st State, owner solana.PublicKey, delta int) error {
	balance, err := st.Balance(owner)
	if err != nil {
		return err
	}
	switch {
	case delta < 0 && balance == 0:
		return fmt.Errorf("saldo de %s já está zerado", owner)
	case delta > 0 && balance == math.MaxUint32:
		return models.ErrSupplyExhausted
	}
	return st.SetBalance(owner, uint32(int64(balance)+int64(delta)))
}

func (b *Base) emit(st State, kind models.EventKind, id uint32, from, to solana.PublicKey) error {
	return st.AppendEvent(models.Event{
		ID:      uuid.New().String(),
		Kind:    kind,
		TokenID: id,
		From:    from,
		To:      to,
		At:      b.now().UTC(),
	})
}
