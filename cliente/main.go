package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"HexTerrain/cliente/internal/app"
	"HexTerrain/shared/config"
	"HexTerrain/shared/hexgrid"
	"HexTerrain/shared/util"
)

func main() {
	// Flags de linha de comando
	serverURL := flag.String("server", "", "URL do servidor HexTerrain (padrão: ws://127.0.0.1:8080/ws)")
	configPath := flag.String("config", "", "arquivo de configuração (.json ou .yaml)")
	col := flag.Int("col", -1, "coluna do hex a editar (-1: nenhuma edição)")
	row := flag.Int("row", 0, "linha do hex a editar")
	point := flag.String("point", "Center", "ponto a editar: nome (Center, East, ...) ou índice 0-6")
	amount := flag.Int("amount", 1, "níveis a subir (negativo desce)")
	timeout := flag.Duration("timeout", 30*time.Second, "tempo máximo de execução")
	debug := flag.Bool("debug", false, "Mostrar informações de debug")
	flag.Parse()

	// Configurar Log em Arquivo
	f, err := os.OpenFile("debug_hex.log", os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err == nil {
		defer f.Close()
		log.SetOutput(f)
		log.Println("--- INICIANDO HEXTERRAIN ---")
	}

	log.SetFlags(log.Ltime | log.Lshortfile)
	log.Println("╔══════════════════════════════════════╗")
	log.Println("║       HexTerrain v0.1.0              ║")
	log.Println("║   Cliente de terreno hexagonal       ║")
	log.Println("╚══════════════════════════════════════╝")

	// Carregar configurações
	cfg := config.Load()
	if *configPath != "" {
		loaded, err := config.LoadFrom(*configPath)
		if err != nil {
			log.Fatalf("Erro ao carregar configuração: %v", err)
		}
		cfg = loaded
	}

	// Aplicar flags de linha de comando (sobrescrevem o config salvo)
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *debug {
		cfg.ShowDebugInfo = true
	}

	var edit *app.EditCommand
	if *col >= 0 {
		p, err := hexgrid.ParsePoint(*point)
		if err != nil {
			log.Fatalf("Flag -point: %v", err)
		}
		edit = &app.EditCommand{Pos: util.NewMapPos(int32(*col), int32(*row)), Point: p, Amount: *amount}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	application := app.New(cfg)
	rep, err := application.Run(ctx, edit)
	if err != nil {
		log.Fatalf("Cliente encerrado com erro: %v", err)
	}
	log.Printf("Sessão %s: %s", rep.SessionID, rep)
}
