package models

import (
	"errors"
	"fmt"
)

// Erros que atravessam as camadas do registro. Use errors.Is para compará-los.
var (
	ErrAlreadyInitialized = errors.New("registro já inicializado")
	ErrNotInitialized     = errors.New("registro não inicializado")
	ErrUnauthorized       = errors.New("chamador não autorizado")
	ErrNotFound           = errors.New("não encontrado")
	ErrStorageWriteFailed = errors.New("falha ao gravar no armazenamento")

	ErrInvalidIdentity = errors.New("identidade inválida")
	ErrInvalidInput    = errors.New("entrada inválida")
	ErrIncorrectOwner  = errors.New("identidade não é dona do token")

	// ErrPropertyExists indica uma segunda escrita no mesmo id, o que nunca
	// deveria acontecer com ids emitidos pelo ledger.
	ErrPropertyExists = errors.New("imóvel já registrado para este id")

	ErrSupplyExhausted = fmt.Errorf("%w: contador de tokens esgotado", ErrStorageWriteFailed)
)
