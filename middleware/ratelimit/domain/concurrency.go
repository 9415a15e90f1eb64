package domain

import "context"

// SlotLimiter representa um recurso com capacidade finita (slots de
// requisições em andamento).
//
// Acquire devolve um token de lease que deve ser liberado exatamente uma
// vez via Release. Quem nunca libera perde o slot quando o lease vence —
// isso evita starvation permanente por caller que morreu no meio.
type SlotLimiter interface {
	Acquire(ctx context.Context, clientID, endpoint string, policy Policy) (token string, dec Decision, err error)
	Release(ctx context.Context, clientID, endpoint, token string) error
}
