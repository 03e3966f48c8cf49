package handlers

import (
	"net/http"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"

	"github.com/ferreirogomes/imovelnft/auth"
)

// AccountHandler lida com consultas por identidade.
type AccountHandler struct {
	Service Registry
}

func NewAccountHandler(s Registry) *AccountHandler {
	return &AccountHandler{Service: s}
}

type BalanceResponse struct {
	Address solana.PublicKey `json:"address"`
	Balance uint32           `json:"balance"`
}

// Balance retorna quantos tokens a identidade possui.
// GET /accounts/{address}/balance
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	address, err := auth.ParseIdentity(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}

	balance, err := h.Service.Balance(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceResponse{Address: address, Balance: balance})
}

type TokensResponse struct {
	Address solana.PublicKey `json:"address"`
	Tokens  []uint32         `json:"tokens"`
}

// TokensOf lista os tokens que a identidade possui agora.
// GET /accounts/{address}/tokens
func (h *AccountHandler) TokensOf(w http.ResponseWriter, r *http.Request) {
	address, err := auth.ParseIdentity(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, err)
		return
	}

	tokens, err := h.Service.TokensOf(r.Context(), address)
	if err != nil {
		writeError(w, err)
		return
	}
	if tokens == nil {
		tokens = []uint32{}
	}

	writeJSON(w, http.StatusOK, TokensResponse{Address: address, Tokens: tokens})
}
