package domain

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable indica falha de rede/timeout do backend de
// contadores. O composite engine trata isso como fail-open.
var ErrStoreUnavailable = errors.New("counter store unavailable")

// ErrSlotNotHeld indica Release de um slot que não existe mais
// (já liberado ou recuperado por expiração de lease).
var ErrSlotNotHeld = errors.New("slot not held")

// CounterStore é a abstração de chave-valor compartilhada por todos os
// engines. Cada método é UMA operação atômica do ponto de vista do store:
// nunca read-modify-write em duas idas, para não admitir corrida entre
// requisições concorrentes da mesma chave.
//
// Implementações precisam tolerar escritores externos (várias instâncias
// do gateway compartilhando o mesmo backend) e expirar chaves de forma
// preguiçosa após o TTL.
type CounterStore interface {
	// IncrWindow incrementa o contador da chave e devolve o valor novo,
	// criando a chave com o TTL dado quando ausente. Janela fixa.
	IncrWindow(ctx context.Context, key CounterKey, ttl time.Duration) (int64, error)

	// SegmentIncr avalia a janela deslizante segmentada: keys vem em ordem
	// do segmento mais antigo para o atual (o último é o segmento corrente).
	// weighted = counts[0]*oldestWeight + sum(counts[1:]). Se weighted < limit,
	// incrementa o segmento corrente. Retorna a contagem ponderada
	// PRÉ-incremento e se o incremento aconteceu.
	SegmentIncr(ctx context.Context, keys []CounterKey, oldestWeight float64, limit int64, ttl time.Duration) (allowed bool, weighted float64, err error)

	// TakeToken aplica o token bucket: recarrega por tempo decorrido até
	// capacity e consome 1 token quando há saldo. Primeiro acesso começa
	// com o bucket cheio. Retorna o saldo após a operação.
	TakeToken(ctx context.Context, key CounterKey, capacity, refillPerSec float64, now time.Time, ttl time.Duration) (allowed bool, tokens float64, err error)

	// AppendLog aplica o sliding window log: poda timestamps mais velhos
	// que now-window, adiciona now somente se a contagem podada < limit.
	// Retorna a contagem após a operação e o timestamp mais antigo restante
	// (zero quando o log ficou vazio).
	AppendLog(ctx context.Context, key CounterKey, now time.Time, window time.Duration, limit int64) (allowed bool, count int64, oldest time.Time, err error)

	// AcquireSlot tenta ocupar um slot de concorrência com lease. Slots
	// cujo lease venceu contam como livres (dono que morreu sem Release).
	// Retorna quantos slots ativos existem após a operação.
	AcquireSlot(ctx context.Context, key CounterKey, token string, maxSlots int64, lease time.Duration, now time.Time) (allowed bool, active int64, err error)

	// ReleaseSlot devolve um slot adquirido. ErrSlotNotHeld quando o token
	// já não está ativo.
	ReleaseSlot(ctx context.Context, key CounterKey, token string) error
}
