package domain

import "time"

// Clock abstrai a fonte de tempo para permitir testes determinísticos
// (sem sleep). Implementações em infra: SystemClock e ManualClock.
type Clock interface {
	Now() time.Time
}
