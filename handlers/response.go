package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ferreirogomes/imovelnft/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError traduz os erros do registro em códigos HTTP.
func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), StatusFor(err))
}

// StatusFor retorna o código HTTP correspondente ao erro.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrIncorrectOwner):
		return http.StatusForbidden
	case errors.Is(err, models.ErrAlreadyInitialized), errors.Is(err, models.ErrNotInitialized):
		return http.StatusConflict
	case errors.Is(err, models.ErrInvalidIdentity), errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func decodeBody(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: corpo JSON inválido: %v", models.ErrInvalidInput, err)
	}
	return nil
}

func parseUint32(s, field string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s deve ser um inteiro sem sinal de 32 bits", models.ErrInvalidInput, field)
	}
	return uint32(n), nil
}

func tokenIDParam(r *http.Request) (uint32, error) {
	return parseUint32(chi.URLParam(r, "id"), "id")
}
