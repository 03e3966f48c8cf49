package handlers

import (
	"net/http"

	"github.com/gagliardetto/solana-go"

	"github.com/ferreirogomes/imovelnft/auth"
)

type TokenHandler struct {
	Service Registry
}

func NewTokenHandler(s Registry) *TokenHandler {
	return &TokenHandler{Service: s}
}

// TransferRequest é o corpo de POST /tokens/{id}/transfer. Com spender
// preenchido a transferência é feita por um aprovado.
type TransferRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Spender string `json:"spender,omitempty"`
}

type ApproveRequest struct {
	Approver string `json:"approver"`
	Spender  string `json:"spender"`
}

type BurnRequest struct {
	From    string `json:"from"`
	Spender string `json:"spender,omitempty"`
}

type OwnerResponse struct {
	ID    uint32           `json:"id"`
	Owner solana.PublicKey `json:"owner"`
}

// OwnerOf retorna o dono atual do token.
// GET /tokens/{id}/owner
func (h *TokenHandler) OwnerOf(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	owner, err := h.Service.OwnerOf(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, OwnerResponse{ID: id, Owner: owner})
}

// Events retorna o histórico do token.
// GET /tokens/{id}/events
func (h *TokenHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}

	events, err := h.Service.Events(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

// Transfer move o token para outra identidade.
// POST /tokens/{id}/transfer
func (h *TokenHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req TransferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	from, err := auth.ParseIdentity(req.From)
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := auth.ParseIdentity(req.To)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Spender == "" {
		err = h.Service.Transfer(r.Context(), from, to, id)
	} else {
		var spender solana.PublicKey
		if spender, err = auth.ParseIdentity(req.Spender); err != nil {
			writeError(w, err)
			return
		}
		err = h.Service.TransferFrom(r.Context(), spender, from, to, id)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Approve autoriza um spender a mover ou queimar o token.
// POST /tokens/{id}/approve
func (h *TokenHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req ApproveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	approver, err := auth.ParseIdentity(req.Approver)
	if err != nil {
		writeError(w, err)
		return
	}
	spender, err := auth.ParseIdentity(req.Spender)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.Service.Approve(r.Context(), approver, spender, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Burn queima o token e apaga o imóvel vinculado.
// POST /tokens/{id}/burn
func (h *TokenHandler) Burn(w http.ResponseWriter, r *http.Request) {
	id, err := tokenIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req BurnRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	from, err := auth.ParseIdentity(req.From)
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Spender == "" {
		err = h.Service.Burn(r.Context(), from, id)
	} else {
		var spender solana.PublicKey
		if spender, err = auth.ParseIdentity(req.Spender); err != nil {
			writeError(w, err)
			return
		}
		err = h.Service.BurnFrom(r.Context(), spender, from, id)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
