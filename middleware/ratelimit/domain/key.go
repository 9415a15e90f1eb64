package domain

import "strconv"

// CounterKey identifica um contador mutável no store: cliente, endpoint,
// algoritmo e o bucket de janela (quando o algoritmo é janelado).
//
// Ciclo de vida: criado no primeiro increment, expira sozinho depois de
// window+grace sem escrita. A expiração pode ser preguiçosa, mas leitura
// após expirar precisa se comportar como "ausente".
type CounterKey struct {
	ClientID     string
	Endpoint     string
	Algorithm    AlgorithmKind
	WindowBucket int64
}

// String serializa a chave no formato usado pelos backends
// (separador ':' no estilo das chaves Redis).
func (k CounterKey) String() string {
	return k.ClientID + ":" + k.Endpoint + ":" + string(k.Algorithm) + ":" + strconv.FormatInt(k.WindowBucket, 10)
}
