package main

import (
	"fmt"
	"net/http"
)

func main() {
	http.HandleFunc("/showTela", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<h1>Tela do Sistema</h1><p>Requisição recebida com sucesso!</p>")
		fmt.Printf("Log: acesso em /showTela (tier=%s prioridade=%s)\n",
			r.Header.Get("X-Client-Tier"), r.Header.Get("X-Priority"))
	})
	fmt.Println("Servidor de validação rodando em http://localhost:8082")
	err := http.ListenAndServe(":8082", nil)
	if err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}
