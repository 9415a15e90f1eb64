package config

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"priority-gateway/middleware/ratelimit/domain"
)

// Snapshot é uma visão imutável das tabelas de limites, com versão
// monotônica para observabilidade.
type Snapshot struct {
	Version int64
	Limits  Limits
}

// Provider entrega snapshots e os re-lê num intervalo limitado.
//
// A releitura é preguiçosa (acontece dentro de Current quando o snapshot
// venceu), então não há goroutine de fundo para gerenciar. Erro de
// releitura mantém o snapshot anterior: configuração velha é melhor do
// que nenhuma.
type Provider struct {
	load     func() (Limits, error)
	interval time.Duration
	clock    domain.Clock
	logger   *zap.Logger

	mu       sync.Mutex
	cur      Snapshot
	loadedAt time.Time
}

// NewProvider cria o provider com uma carga inicial imediata. Se a carga
// inicial falha, os DefaultLimits entram no lugar (e o erro é logado).
func NewProvider(load func() (Limits, error), interval time.Duration, clock domain.Clock, logger *zap.Logger) *Provider {
	if interval <= 0 || interval > maxReloadInterval {
		interval = maxReloadInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Provider{load: load, interval: interval, clock: clock, logger: logger}

	limits, err := load()
	if err != nil {
		logger.Warn("carga inicial de limites falhou, usando defaults", zap.Error(err))
		limits = DefaultLimits()
	}
	p.cur = Snapshot{Version: 1, Limits: normalizeLimits(limits)}
	p.loadedAt = clock.Now()
	return p
}

// StaticProvider embrulha tabelas fixas (testes e exemplos).
func StaticProvider(l Limits) *Provider {
	return &Provider{
		load:     func() (Limits, error) { return l, nil },
		interval: maxReloadInterval,
		clock:    frozenClock{},
		logger:   zap.NewNop(),
		cur:      Snapshot{Version: 1, Limits: normalizeLimits(l)},
	}
}

type frozenClock struct{}

func (frozenClock) Now() time.Time { return time.Time{} }

// Current devolve o snapshot vigente, re-lendo quando o intervalo venceu.
func (p *Provider) Current() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clock == nil {
		return p.cur
	}
	now := p.clock.Now()
	if now.Sub(p.loadedAt) < p.interval {
		return p.cur
	}
	p.loadedAt = now

	limits, err := p.load()
	if err != nil {
		p.logger.Warn("releitura de limites falhou, mantendo snapshot anterior",
			zap.Int64("version", p.cur.Version), zap.Error(err))
		return p.cur
	}
	p.cur = Snapshot{Version: p.cur.Version + 1, Limits: normalizeLimits(limits)}
	return p.cur
}
