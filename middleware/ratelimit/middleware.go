package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"priority-gateway/middleware/ratelimit/application"
	"priority-gateway/middleware/ratelimit/domain"
)

// KeyFunc extrai a identidade do cliente a partir da requisição.
type KeyFunc func(r *http.Request) string

type Options struct {
	Engine *application.Engine

	// KeyFn substitui a extração padrão de identidade. Quando nil, usa
	// DefaultKeyFunc(ClientHeader, TrustXForwardedFor).
	KeyFn KeyFunc

	ClientHeader   string
	TierHeader     string
	PriorityHeader string

	TrustXForwardedFor bool

	// RejectStatus para negativa de taxa (padrão 429). Negativa de slot de
	// concorrência responde 503 independente disso: é saturação do
	// servidor, não abuso do cliente.
	RejectStatus        int
	AddRateLimitHeaders bool
}

// DefaultKeyFunc resolve a identidade na ordem: header dedicado, primeiro
// IP do X-Forwarded-For (somente quando confiável) e por fim RemoteAddr.
func DefaultKeyFunc(clientHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if clientHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(clientHeader)); v != "" {
				return v
			}
		}

		if trustXFF {
			// pega o primeiro IP do X-Forwarded-For (cliente original)
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				parts := strings.Split(xff, ",")
				if len(parts) > 0 {
					ip := strings.TrimSpace(parts[0])
					if ip != "" {
						return ip
					}
				}
			}
		}

		// fallback: RemoteAddr
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

// Middleware aplica a decisão completa (prioridade + política + taxa +
// concorrência) antes do próximo handler.
//
// Tier e prioridade vêm de headers e são interpretados com defaults
// silenciosos: header ausente ou inválido nunca vira 4xx, só classifica o
// cliente no nível mais conservador.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.ClientHeader, opts.TrustXForwardedFor)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := application.Request{
				ClientID: opts.KeyFn(r),
				Endpoint: r.URL.Path,
				Tier:     domain.ParseTier(r.Header.Get(opts.TierHeader)),
				Priority: domain.ParsePriority(r.Header.Get(opts.PriorityHeader)),
			}

			dec, release := opts.Engine.Decide(r.Context(), req)
			defer release()

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", req.ClientID)
				if dec.Remaining >= 0 {
					w.Header().Set("X-RateLimit-Remaining", formatInt64(dec.Remaining))
				}
				if !dec.ResetAt.IsZero() {
					w.Header().Set("X-RateLimit-Reset", formatInt64(dec.ResetAt.Unix()))
				}
				w.Header().Set("X-RateLimit-Reason", dec.Reason)
			}

			if !dec.Allowed {
				w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
				status := opts.RejectStatus
				if dec.Reason == domain.ReasonNoSlots {
					status = http.StatusServiceUnavailable
				}
				http.Error(w, http.StatusText(status), status)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
