package handlers

import (
	"context"
	"net/http"

	"github.com/gagliardetto/solana-go"

	"github.com/ferreirogomes/imovelnft/auth"
	"github.com/ferreirogomes/imovelnft/models"
)

// Registry é o conjunto de operações do registro exposto via HTTP.
type Registry interface {
	MintProperty(ctx context.Context, to solana.PublicKey, location string, price uint32, document string) (uint32, error)
	GetProperty(ctx context.Context, id uint32) (models.Property, error)
	ListProperties(ctx context.Context, filter models.PropertyFilter) ([]models.Property, models.Pagination, error)
	Collection(ctx context.Context) (models.CollectionInfo, error)

	OwnerOf(ctx context.Context, id uint32) (solana.PublicKey, error)
	Balance(ctx context.Context, owner solana.PublicKey) (uint32, error)
	TokensOf(ctx context.Context, owner solana.PublicKey) ([]uint32, error)
	Events(ctx context.Context, id uint32) ([]models.Event, error)
	Transfer(ctx context.Context, from, to solana.PublicKey, id uint32) error
	TransferFrom(ctx context.Context, spender, from, to solana.PublicKey, id uint32) error
	Approve(ctx context.Context, approver, spender solana.PublicKey, id uint32) error
	Burn(ctx context.Context, from solana.PublicKey, id uint32) error
	BurnFrom(ctx context.Context, spender, from solana.PublicKey, id uint32) error
}

// PropertyHandler lida com requisições HTTP relacionadas a imóveis.
type PropertyHandler struct {
	Service Registry
}

// NewPropertyHandler cria uma nova instância do handler de imóveis.
func NewPropertyHandler(s Registry) *PropertyHandler {
	return &PropertyHandler{Service: s}
}

// MintPropertyRequest é o corpo de POST /properties.
type MintPropertyRequest struct {
	To       string `json:"to"`
	Location string `json:"location"`
	Price    uint32 `json:"price"`
	Document string `json:"document"`
}

// MintPropertyResponse devolve o id emitido.
type MintPropertyResponse struct {
	ID uint32 `json:"id"`
}

// PropertyPage é a resposta da listagem de imóveis.
type PropertyPage struct {
	Data       []models.Property `json:"data"`
	Pagination models.Pagination `json:"pagination"`
}

// MintProperty tokeniza um imóvel para o destinatário, que precisa assinar a requisição.
// POST /properties
func (h *PropertyHandler) MintProperty(w http.ResponseWriter, r *http.Request) {
	var req MintPropertyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	to, err := auth.ParseIdentity(req.To)
	if err != nil {
		writeError(w, err)
		return
	}

	id, err := h.Service.MintProperty(r.Context(), to, req.Location, req.Price, req.Document)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, MintPropertyResponse{ID: id})
}

// GetProperty obtém o imóvel de um token.
// GET /properties/{id}
func (h *PropertyHandler) GetProperty(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	prop, err := h.Service.GetProperty(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, prop)
}

// ListProperties lista imóveis com filtros e paginação.
// GET /properties?owner=&location=&min_price=&max_price=&page=&limit=
func (h *PropertyHandler) ListProperties(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	props, page, err := h.Service.ListProperties(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if props == nil {
		props = []models.Property{}
	}

	writeJSON(w, http.StatusOK, PropertyPage{Data: props, Pagination: page})
}

// Collection retorna os metadados da coleção.
// GET /collection
func (h *PropertyHandler) Collection(w http.ResponseWriter, r *http.Request) {
	info, err := h.Service.Collection(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func parseFilter(r *http.Request) (models.PropertyFilter, error) {
	q := r.URL.Query()
	var f models.PropertyFilter

	if owner := q.Get("owner"); owner != "" {
		pub, err := auth.ParseIdentity(owner)
		if err != nil {
			return f, err
		}
		f.Owner = pub
	}
	f.Location = q.Get("location")

	if v := q.Get("min_price"); v != "" {
		n, err := parseUint32(v, "min_price")
		if err != nil {
			return f, err
		}
		f.MinPrice = &n
	}
	if v := q.Get("max_price"); v != "" {
		n, err := parseUint32(v, "max_price")
		if err != nil {
			return f, err
		}
		f.MaxPrice = &n
	}
	if v := q.Get("page"); v != "" {
		n, err := parseUint32(v, "page")
		if err != nil {
			return f, err
		}
		f.Page = int(n)
	}
	if v := q.Get("limit"); v != "" {
		n, err := parseUint32(v, "limit")
		if err != nil {
			return f, err
		}
		f.Limit = int(n)
	}
	return f, nil
}
