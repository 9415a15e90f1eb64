// Package application contém os casos de uso do rate limit com
// prioridade: autorizar/rebaixar a prioridade pedida, resolver a política
// efetiva e orquestrar os engines até a decisão final.
//
// Ele depende apenas de domain e config e não conhece net/http.
package application
