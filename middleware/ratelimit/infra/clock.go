package infra

import (
	"sync"
	"time"
)

// SystemClock usa o relógio do sistema (time.Now carrega leitura
// monotônica junto com a wall clock).
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock é um relógio controlável para testes determinísticos:
// nada de sleep nem flakiness, o teste avança o tempo na mão.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance move o relógio para frente. Só aceita delta >= 0 para manter
// a monotonicidade que os engines assumem.
func (c *ManualClock) Advance(d time.Duration) {
	if d < 0 {
		return
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set pula para um instante absoluto. Pode andar para trás; use apenas
// na montagem do teste.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}
