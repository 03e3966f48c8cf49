package auth

import (
	"bytes"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/ferreirogomes/imovelnft/models"
)

// Cabeçalhos HTTP que carregam a assinatura de uma requisição.
const (
	HeaderSigner    = "X-Signer"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
)

// SigningPayload monta a mensagem canônica assinada pelo cliente:
// "METHOD PATH\n", o carimbo de tempo do cabeçalho X-Timestamp, "\n" e o
// corpo bruto.
func SigningPayload(method, path, timestamp string, body []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(method) + len(path) + len(timestamp) + len(body) + 3)
	buf.WriteString(method)
	buf.WriteByte(' ')
	buf.WriteString(path)
	buf.WriteByte('\n')
	buf.WriteString(timestamp)
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes()
}

// Timestamp formata o instante no formato esperado em X-Timestamp.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Sign assina o payload com a chave privada e devolve a assinatura em base58.
func Sign(key solana.PrivateKey, payload []byte) (string, error) {
	sig, err := key.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("falha ao assinar payload: %w", err)
	}
	return sig.String(), nil
}

// Verify confere a assinatura base58 do signatário sobre o payload e devolve
// a chave pública já decodificada.
func Verify(signer, signature string, payload []byte) (solana.PublicKey, error) {
	pub, err := ParseIdentity(signer)
	if err != nil {
		return solana.PublicKey{}, err
	}
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: assinatura malformada: %v", models.ErrUnauthorized, err)
	}
	if !sig.Verify(pub, payload) {
		return solana.PublicKey{}, fmt.Errorf("%w: assinatura não confere para %s", models.ErrUnauthorized, pub)
	}
	return pub, nil
}

// ParseIdentity valida sintaticamente uma identidade em base58.
func ParseIdentity(s string) (solana.PublicKey, error) {
	pub, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q: %v", models.ErrInvalidIdentity, s, err)
	}
	if pub.IsZero() {
		return solana.PublicKey{}, fmt.Errorf("%w: chave zerada", models.ErrInvalidIdentity)
	}
	return pub, nil
}
