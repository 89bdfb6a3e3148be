package app

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"

	"HexTerrain/cliente/internal/client"
	"HexTerrain/cliente/internal/meshing"
	"HexTerrain/shared/config"
	"HexTerrain/shared/hexgrid"
	"HexTerrain/shared/mapdata"
	"HexTerrain/shared/proto/hexnet"
	"HexTerrain/shared/util"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// AppState representa os estados possíveis da aplicação.
type AppState int

const (
	StateConnecting AppState = iota // Conectando ao servidor
	StateLoading                    // Aguardando snapshot / gerando malhas
	StateReady                      // Todas as malhas em dia
	StateClosed
)

// EditCommand é uma edição pedida pela linha de comando.
type EditCommand struct {
	Pos    util.MapPos
	Point  hexgrid.HexagonPoint
	Amount int
}

// Report resume o estado final do cliente.
type Report struct {
	WorldName     string
	SessionID     string
	Width, Height int32
	Hexes         int
	Vertices      int
	SkirtVertices int
	Bounds        rl.BoundingBox
	MTime         int64
	Edit          *hexnet.EditResult
}

func (r Report) String() string {
	s := fmt.Sprintf("mundo %q (%dx%d, %d hexes, mtime %d): %d vértices de terreno, %d de saia, limites %v..%v",
		r.WorldName, r.Width, r.Height, r.Hexes, r.MTime, r.Vertices, r.SkirtVertices, r.Bounds.Min, r.Bounds.Max)
	if r.Edit != nil {
		if r.Edit.Accepted {
			s += fmt.Sprintf("; edição aceita (%d hexes alterados)", len(r.Edit.Changed))
		} else {
			s += fmt.Sprintf("; edição rejeitada: %s", r.Edit.Reason)
		}
	}
	return s
}

// App é o cliente headless: mantém a cópia do mapa sincronizada com o
// servidor e as malhas de cada hex atualizadas.
type App struct {
	Config *config.Config
	State  AppState

	netClient   *client.NetworkClient
	mesher      *meshing.HexMesher
	resultStore *meshing.ResultStore

	mu       sync.Mutex
	world    *mapdata.HexMap
	versions map[util.MapPos]int64 // versão atual dos dados de cada hex
	meshes   map[util.MapPos]meshing.Result
	queue    *util.UniqueQueue[util.MapPos, int64] // hexes a remalhar
	changed  chan struct{}                         // sinaliza snapshot ou edição aplicada
	edits    chan *hexnet.EditResult               // só o resultado da edição pendente
	// pendingEdit é o RequestID aguardado por sendEdit ("" sem edição pendente)
	pendingEdit string

	WorldName string
}

// New cria uma nova instância da aplicação.
func New(cfg *config.Config) *App {
	return &App{
		Config:   cfg,
		State:    StateConnecting,
		versions: make(map[util.MapPos]int64),
		meshes:   make(map[util.MapPos]meshing.Result),
		queue:    util.NewUniqueQueue[util.MapPos, int64](),
		changed:  make(chan struct{}, 1),
		edits:    make(chan *hexnet.EditResult, 1),
	}
}

// Run conecta, espera o snapshot, gera todas as malhas e, se edit não for nil,
// envia a edição e espera as malhas alteradas.
func (a *App) Run(ctx context.Context, edit *EditCommand) (Report, error) {
	workers := a.Config.MesherThreads
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	log.Printf("[App] Iniciando Mesher com %d workers", workers)
	a.resultStore = meshing.NewResultStore()
	a.mesher = meshing.NewHexMesher(workers, a.resultStore, -a.Config.HexWidth)
	defer a.shutdown()

	if err := a.connectServer(); err != nil {
		return Report{}, err
	}

	a.State = StateLoading
	if err := a.waitForWorld(ctx); err != nil {
		return Report{}, err
	}
	if err := a.waitMeshed(ctx); err != nil {
		return Report{}, err
	}

	var result *hexnet.EditResult
	if edit != nil {
		var err error
		if result, err = a.sendEdit(ctx, *edit); err != nil {
			return Report{}, err
		}
		if err := a.waitMeshed(ctx); err != nil {
			return Report{}, err
		}
	}

	a.State = StateReady
	rep := a.report()
	rep.Edit = result
	return rep, nil
}

// World retorna a cópia local do mapa.
func (a *App) World() *mapdata.HexMap {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.world
}

// shutdown realiza a limpeza de recursos.
func (a *App) shutdown() {
	log.Println("[App] Finalizando aplicação...")
	if a.netClient != nil {
		a.netClient.Close()
	}
	if a.mesher != nil {
		a.mesher.Stop()
	}
	a.State = StateClosed
}

func (a *App) report() Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	rep := Report{
		WorldName: a.WorldName,
		SessionID: a.netClient.SessionID(),
		Width:     a.world.Width,
		Height:    a.world.Height,
		Hexes:     len(a.meshes),
		MTime:     a.world.Version(),
	}
	first := true
	for _, res := range a.meshes {
		rep.Vertices += res.Terrain.VertexCount()
		rep.SkirtVertices += res.Skirt.VertexCount()
		if first {
			rep.Bounds, first = res.Bounds, false
			continue
		}
		rep.Bounds.Min = rl.Vector3Min(rep.Bounds.Min, res.Bounds.Min)
		rep.Bounds.Max = rl.Vector3Max(rep.Bounds.Max, res.Bounds.Max)
	}
	return rep
}
