package models

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// EventKind identifica a operação do ledger que gerou o evento.
type EventKind string

const (
	EventMint     EventKind = "mint"
	EventTransfer EventKind = "transfer"
	EventApprove  EventKind = "approve"
	EventBurn     EventKind = "burn"
)

// Event registra uma mudança de posse de um token.
type Event struct {
	ID      string           `json:"id"`
	Kind    EventKind        `json:"kind"`
	TokenID uint32           `json:"token_id"`
	From    solana.PublicKey `json:"from"` // Zero no mint
	To      solana.PublicKey `json:"to"`   // Zero no burn; spender no approve
	At      time.Time        `json:"at"`
}
