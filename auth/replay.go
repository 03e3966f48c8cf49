package auth

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/ferreirogomes/imovelnft/models"
)

// DefaultSignatureWindow é a tolerância entre o X-Timestamp de uma
// requisição e o relógio do servidor.
const DefaultSignatureWindow = 5 * time.Minute

// ReplayGuard recusa assinaturas fora da janela de tempo e assinaturas já
// usadas dentro dela. Uma assinatura só precisa ser lembrada enquanto o
// carimbo de tempo dela ainda for aceito.
type ReplayGuard struct {
	window time.Duration
	seen   *cache.Cache
	now    func() time.Time
}

func NewReplayGuard(window time.Duration) *ReplayGuard {
	return &ReplayGuard{
		window: window,
		seen:   cache.New(2*window, window),
		now:    time.Now,
	}
}

// Check valida o carimbo de tempo e registra a assinatura. Deve ser chamado
// só depois que a assinatura foi verificada.
func (g *ReplayGuard) Check(timestamp, signature string) error {
	if timestamp == "" {
		return fmt.Errorf("%w: cabeçalho %s ausente", models.ErrUnauthorized, HeaderTimestamp)
	}
	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return fmt.Errorf("%w: %s inválido: %v", models.ErrUnauthorized, HeaderTimestamp, err)
	}
	now := g.now()
	if ts.Before(now.Add(-g.window)) || ts.After(now.Add(g.window)) {
		return fmt.Errorf("%w: assinatura expirada ou adiantada (%s)", models.ErrUnauthorized, timestamp)
	}
	// Add falha se a chave já existe, o que torna a checagem atômica.
	if err := g.seen.Add(signature, struct{}{}, cache.DefaultExpiration); err != nil {
		return fmt.Errorf("%w: assinatura já utilizada", models.ErrUnauthorized)
	}
	return nil
}
