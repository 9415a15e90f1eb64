package domain

// Níveis de prioridade e tiers de cliente.
//
// A prioridade vem declarada na requisição; o tier vem da identidade já
// resolvida pelo pipeline (autenticação está fora do escopo deste módulo).

import "strings"

// PriorityLevel é a urgência declarada pelo cliente. Ordem total:
// Background < Low < Medium < High.
type PriorityLevel int

const (
	PriorityBackground PriorityLevel = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
)

func (p PriorityLevel) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	}
	return "low"
}

// ParsePriority interpreta o valor vindo do payload/header.
//
// Valor ausente ou não reconhecido vira PriorityLow em silêncio: entrada
// malformada não pode virar erro para o caller.
func ParsePriority(s string) PriorityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "background":
		return PriorityBackground
	case "low":
		return PriorityLow
	case "medium":
		return PriorityMedium
	case "high":
		return PriorityHigh
	}
	return PriorityLow
}

// ClientTier é a classificação de assinatura do cliente. Ordem total:
// Trial < Standard < Premium < Critical.
type ClientTier int

const (
	TierTrial ClientTier = iota
	TierStandard
	TierPremium
	TierCritical
)

func (t ClientTier) String() string {
	switch t {
	case TierTrial:
		return "trial"
	case TierStandard:
		return "standard"
	case TierPremium:
		return "premium"
	case TierCritical:
		return "critical"
	}
	return "trial"
}

// ParseTier interpreta o tier resolvido pelo pipeline.
// Desconhecido vira TierTrial (o tier mais restritivo), nunca erro.
func ParseTier(s string) ClientTier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trial":
		return TierTrial
	case "standard":
		return TierStandard
	case "premium":
		return TierPremium
	case "critical":
		return TierCritical
	}
	return TierTrial
}

// Authorizes responde se o tier pode usar o nível pedido.
//
// Matriz fechada (função total de tier × prioridade):
//
//	Critical  → background, low, medium, high
//	Premium   → background, low, medium
//	Standard  → background, low
//	Trial     → low
func (t ClientTier) Authorizes(p PriorityLevel) bool {
	switch t {
	case TierCritical:
		return true
	case TierPremium:
		return p <= PriorityMedium
	case TierStandard:
		return p <= PriorityLow
	case TierTrial:
		return p == PriorityLow
	}
	return false
}

// MaxAuthorized é o teto de prioridade do tier.
func (t ClientTier) MaxAuthorized() PriorityLevel {
	switch t {
	case TierCritical:
		return PriorityHigh
	case TierPremium:
		return PriorityMedium
	case TierStandard:
		return PriorityLow
	}
	return PriorityLow
}

// ClampPriority rebaixa a prioridade pedida para o maior nível autorizado
// que seja <= requested. Se nenhum nível <= requested é autorizado (caso
// Trial pedindo background), usa o teto do tier. Nunca escala para cima
// além do pedido quando existe nível autorizado abaixo dele.
//
// Retorna a prioridade efetiva e se o pedido original era autorizado.
func ClampPriority(t ClientTier, requested PriorityLevel) (PriorityLevel, bool) {
	if t.Authorizes(requested) {
		return requested, true
	}
	for p := requested; p >= PriorityBackground; p-- {
		if t.Authorizes(p) {
			return p, false
		}
	}
	return t.MaxAuthorized(), false
}
