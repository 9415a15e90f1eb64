// utilitário pequeno para formatação rápida/consistente de valores numéricos em headers.
//    Evita puxar fmt (que é mais “pesado” e genérico) só para formatação simples
// 	  Mantém o Retry-After sempre >= 1s em negativas: zero segundos faria o
//        cliente re-tentar imediatamente e perder de novo

package ratelimit

import (
	"strconv"
	"time"
)

func formatInt64(v int64) string { return strconv.FormatInt(v, 10) }

func formatSeconds(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second) // arredonda para cima
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
