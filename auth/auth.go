// Package auth implementa a fronteira de autorização do registro.
//
// O registro não verifica assinaturas por conta própria nas operações: ele
// chama Authorizer.Require antes de qualquer mutação e aborta a operação
// inteira quando o predicado falha.
package auth

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/ferreirogomes/imovelnft/models"
)

// Action nomeia a operação para a qual uma identidade precisa autorizar.
type Action string

const (
	ActionMint     Action = "mint"
	ActionTransfer Action = "transfer"
	ActionApprove  Action = "approve"
	ActionBurn     Action = "burn"
)

// Authorizer decide se uma identidade autorizou a ação na chamada atual.
type Authorizer interface {
	Require(ctx context.Context, identity solana.PublicKey, action Action) error
}

type signersKey struct{}

// WithSigners anexa ao contexto as identidades cujas assinaturas já foram verificadas.
func WithSigners(ctx context.Context, signers ...solana.PublicKey) context.Context {
	existing := Signers(ctx)
	all := make([]solana.PublicKey, 0, len(existing)+len(signers))
	all = append(all, existing...)
	all = append(all, signers...)
	return context.WithValue(ctx, signersKey{}, all)
}

// Signers retorna as identidades verificadas da chamada atual.
func Signers(ctx context.Context) []solana.PublicKey {
	signers, _ := ctx.Value(signersKey{}).([]solana.PublicKey)
	return signers
}

// Caller retorna a identidade que está executando a chamada, isto é, o
// primeiro signatário verificado.
func Caller(ctx context.Context) (solana.PublicKey, bool) {
	signers := Signers(ctx)
	if len(signers) == 0 {
		return solana.PublicKey{}, false
	}
	return signers[0], true
}

// SignerAuthorizer exige que a identidade esteja entre os signatários verificados.
type SignerAuthorizer struct{}

func (SignerAuthorizer) Require(ctx context.Context, identity solana.PublicKey, action Action) error {
	for _, signer := range Signers(ctx) {
		if signer.Equals(identity) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s não assinou a ação %s", models.ErrUnauthorized, identity, action)
}

// AllowAll aceita qualquer identidade. Serve para desenvolvimento e testes.
type AllowAll struct{}

func (AllowAll) Require(context.Context, solana.PublicKey, Action) error {
	return nil
}
