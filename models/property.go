package models

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// MaxTextLength limita, em bytes, os campos de texto livre de um imóvel.
const MaxTextLength = 512

// Property representa o imóvel vinculado a um token no momento do mint.
// Owner é um retrato de quem recebeu o mint; a posse atual vive no ledger
// e pode divergir deste campo após uma transferência.
type Property struct {
	ID       uint32           `json:"id"`
	Owner    solana.PublicKey `json:"owner"`
	Location string           `json:"location"` // Ex: "Mumbai", "Bangalore"
	Price    uint32           `json:"price"`    // Unidade monetária fica a cargo de quem chama
	Document string           `json:"document"` // Referência ou hash do documento externo
}

// Validate verifica os campos informados por quem chama o mint.
func (p Property) Validate() error {
	if p.Owner.IsZero() {
		return ErrInvalidIdentity
	}
	if len(p.Location) > MaxTextLength {
		return fmt.Errorf("%w: location excede %d bytes", ErrInvalidInput, MaxTextLength)
	}
	if len(p.Document) > MaxTextLength {
		return fmt.Errorf("%w: document excede %d bytes", ErrInvalidInput, MaxTextLength)
	}
	return nil
}

// PropertyFilter descreve os filtros aceitos na listagem de imóveis.
type PropertyFilter struct {
	Owner    solana.PublicKey // Zero significa sem filtro
	Location string           // Substring, sem diferenciar maiúsculas
	MinPrice *uint32
	MaxPrice *uint32
	Page     int
	Limit    int
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Normalize aplica os valores padrão de paginação.
func (f PropertyFilter) Normalize() PropertyFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	return f
}

// Offset retorna quantos registros pular para a página atual.
func (f PropertyFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

// Pagination acompanha uma página de resultados.
type Pagination struct {
	CurrentPage  int `json:"current_page"`
	TotalPages   int `json:"total_pages"`
	TotalItems   int `json:"total_items"`
	ItemsPerPage int `json:"items_per_page"`
}

// NewPagination calcula a paginação a partir do filtro já normalizado.
func NewPagination(f PropertyFilter, total int) Pagination {
	pages := (total + f.Limit - 1) / f.Limit
	return Pagination{
		CurrentPage:  f.Page,
		TotalPages:   pages,
		TotalItems:   total,
		ItemsPerPage: f.Limit,
	}
}

// Collection guarda os metadados descritivos da coleção no ledger.
type Collection struct {
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	BaseURI string `json:"base_uri"`
}

// DefaultCollection são os metadados usados quando nada é configurado.
func DefaultCollection() Collection {
	return Collection{
		Name:    "My Property",
		Symbol:  "PROP",
		BaseURI: "www.mytoken.com",
	}
}

// CollectionInfo resume o estado público do registro.
type CollectionInfo struct {
	Collection
	Admin       solana.PublicKey `json:"admin"`
	TotalMinted uint32           `json:"total_minted"`
}
