package domain

import (
	"context"
	"time"
)

// EventKind classifica um evento de telemetria.
//
// Allowed/Denied/Bypassed/StoreError são eventos de decisão: o engine
// emite exatamente um deles por requisição. PriorityClamped é evento de
// auditoria, emitido ADICIONALMENTE quando um pedido de prioridade não
// autorizado é rebaixado.
type EventKind string

const (
	EventAllowed         EventKind = "allowed"
	EventDenied          EventKind = "denied"
	EventBypassed        EventKind = "bypassed"
	EventStoreError      EventKind = "store_error"
	EventPriorityClamped EventKind = "priority_clamped"
)

// Event representa um evento de decisão ou auditoria.
//
// Ele é propositalmente agnóstico de HTTP: Endpoint é uma string genérica
// e pode ser rota web, método gRPC, etc.
type Event struct {
	Kind     EventKind
	ClientID string
	Priority PriorityLevel
	Endpoint string
	Details  string

	At time.Time
}

// TelemetryStore é a estratégia de persistência/emissão de eventos.
//
// Implementações podem gravar em Redis, memória, log estruturado, etc.
// O engine trata erro como best-effort (não derruba a decisão).
type TelemetryStore interface {
	Record(ctx context.Context, ev Event) error
}
