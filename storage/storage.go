// Package storage persiste o estado do registro: administrador, estado do
// ledger, registros de imóveis e eventos.
//
// Toda mutação acontece dentro de Store.Update. Se a função devolver erro,
// nada do que ela escreveu sobrevive.
package storage

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/ferreirogomes/imovelnft/ledger"
	"github.com/ferreirogomes/imovelnft/models"
)

// Store abre transações sobre o estado do registro.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx é o estado visível dentro de uma transação.
type Tx interface {
	ledger.State

	Admin() (solana.PublicKey, bool, error)
	SetAdmin(admin solana.PublicKey) error

	Property(id uint32) (models.Property, bool, error)
	// InsertProperty grava uma única vez; um id ocupado devolve ErrPropertyExists.
	InsertProperty(p models.Property) error
	DeleteProperty(id uint32) error
	ListProperties(f models.PropertyFilter) ([]models.Property, int, error)

	ListEvents(tokenID uint32) ([]models.Event, error)
}
