package handlers

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/ferreirogomes/imovelnft/auth"
)

// maxBodyBytes limita o corpo de qualquer requisição.
const maxBodyBytes = 1 << 20

// VerifySignature confere os cabeçalhos X-Signer, X-Signature e X-Timestamp
// e anexa o signatário ao contexto. Requisições sem assinatura seguem sem
// signatários e são recusadas pelo Authorizer quando precisam de um. Cada
// assinatura é aceita uma única vez.
func VerifySignature(logger *slog.Logger) func(http.Handler) http.Handler {
	guard := auth.NewReplayGuard(auth.DefaultSignatureWindow)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			signer := r.Header.Get(auth.HeaderSigner)
			signature := r.Header.Get(auth.HeaderSignature)
			if signer == "" && signature == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				http.Error(w, "corpo da requisição muito grande ou ilegível", http.StatusRequestEntityTooLarge)
				return
			}
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			timestamp := r.Header.Get(auth.HeaderTimestamp)
			pub, err := auth.Verify(signer, signature, auth.SigningPayload(r.Method, r.URL.Path, timestamp, body))
			if err == nil {
				err = guard.Check(timestamp, signature)
			}
			if err != nil {
				logger.Warn("assinatura recusada", "path", r.URL.Path, "signer", signer, "error", err)
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithSigners(r.Context(), pub)))
		})
	}
}
