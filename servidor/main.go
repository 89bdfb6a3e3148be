package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"HexTerrain/shared/config"
	"HexTerrain/shared/mapdata"

	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "", "arquivo de configuração (.json ou .yaml)")
	flag.Parse()

	// Garante que o working directory é o mesmo diretório do executável,
	// para que caminhos relativos (saves/, tmp/) funcionem corretamente.
	if exePath, err := os.Executable(); err == nil {
		os.Chdir(filepath.Dir(exePath))
	}

	log.SetFlags(log.Ltime | log.Lshortfile)
	if err := os.MkdirAll("tmp", 0755); err == nil {
		logFile, err := os.OpenFile("tmp/server.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err == nil {
			log.SetOutput(io.MultiWriter(os.Stdout, logFile))
		}
	}
	log.Println("╔══════════════════════════════════════╗")
	log.Println("║      HexTerrain SERVER v0.1.0        ║")
	log.Println("╚══════════════════════════════════════╝")

	cfg := config.Load()
	if *configPath != "" {
		loaded, err := config.LoadFrom(*configPath)
		if err != nil {
			log.Fatalf("Erro ao carregar configuração: %v", err)
		}
		cfg = loaded
	}

	world, err := openWorld(cfg)
	if err != nil {
		log.Fatalf("Erro fatal ao abrir o mundo %q: %v", cfg.WorldName, err)
	}
	defer world.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := NewServer(cfg, world)
	srv.Run(ctx)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Printf("ERRO CRÍTICO: Não foi possível abrir %s. Provavelmente há outra instância do servidor rodando.", cfg.ListenAddr)
		log.Fatalf("Erro ao iniciar servidor: %v", err)
	}

	httpSrv := &http.Server{Handler: srv.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	log.Printf("Servidor HexTerrain iniciado em %s (mundo %q, %dx%d)", ln.Addr(), cfg.WorldName, world.Width, world.Height)
	if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Erro fatal no servidor HTTP: %v", err)
	}

	n, err := world.Save()
	if err != nil {
		log.Printf("[Persistence] Erro no salvamento final: %v", err)
	}
	log.Printf("Servidor encerrado. %d hexes salvos na saída.", n)
}

// openWorld carrega o mundo salvo ou cria um mapa plano com as dimensões da
// configuração.
func openWorld(cfg *config.Config) (*mapdata.HexMap, error) {
	db, err := mapdata.OpenDB(cfg.SavesDir, cfg.WorldName)
	if err != nil {
		return nil, err
	}

	world, err := mapdata.LoadMap(db)
	if err == nil {
		return world, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	log.Printf("[Startup] Mundo novo: criando mapa plano %dx%d", cfg.MapWidth, cfg.MapHeight)
	world = mapdata.NewHexMap(cfg.MapWidth, cfg.MapHeight, cfg.HexWidth)
	if err := world.Attach(db, cfg.WorldName); err != nil {
		return nil, err
	}
	if err := world.SaveAll(); err != nil {
		return nil, err
	}
	return world, nil
}
