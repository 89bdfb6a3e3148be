package meshing

import (
	"log"
	"sync"

	"HexTerrain/shared/hexgrid"
	"HexTerrain/shared/mapdata"
	"HexTerrain/shared/util"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	GrassColor  = [4]uint8{106, 153, 78, 255}
	ForestColor = [4]uint8{45, 95, 46, 255}
	SkirtColor  = [4]uint8{120, 94, 66, 255}
)

// edgeDirs[i] é a direção do vizinho que compartilha a aresta entre o canto i
// e o canto i+1 da borda.
var edgeDirs = [hexgrid.CornerCount]util.HexDirection{
	util.DirSouthEast, // East-SouthEast
	util.DirSouth,     // SouthEast-SouthWest
	util.DirSouthWest, // SouthWest-West
	util.DirNorthWest, // West-NorthWest
	util.DirNorth,     // NorthWest-NorthEast
	util.DirNorthEast, // NorthEast-East
}

// NewRequest copia do mapa o que é preciso para gerar a malha do hex em pos.
func NewRequest(world *mapdata.HexMap, pos util.MapPos, mtime int64) (Request, bool) {
	world.Mu.RLock()
	defer world.Mu.RUnlock()

	h, ok := world.Hex(pos)
	if !ok {
		return Request{}, false
	}
	g := h.Geometry()
	req := Request{
		Pos:       pos,
		Triangles: g.Triangles(),
		Border:    g.Border(),
		Forested:  h.IsForest,
		MTime:     mtime,
	}
	for i, dir := range edgeDirs {
		_, has := h.Neighbor(dir)
		req.OpenEdges[i] = !has
	}
	return req, true
}

// HexMesher gera malhas de hexes num pool de workers.
type HexMesher struct {
	requests    chan Request
	results     chan Result
	stop        chan struct{}
	stopOnce    sync.Once
	ResultStore *ResultStore
	pending     map[util.MapPos]bool
	pendingMu   sync.Mutex
	generate    func(Request) Result

	// FloorY é a altura da base das saias desenhadas na borda do mapa.
	FloorY float32
}

// NewHexMesher cria e inicia um novo mesher.
func NewHexMesher(workers int, resultStore *ResultStore, floorY float32) *HexMesher {
	m := &HexMesher{
		requests:    make(chan Request, 2000),
		results:     make(chan Result, 2000),
		stop:        make(chan struct{}),
		ResultStore: resultStore,
		pending:     make(map[util.MapPos]bool),
		FloorY:      floorY,
	}
	m.generate = m.Generate

	for i := 0; i < workers; i++ {
		go m.worker()
	}
	return m
}

// Enqueue agenda o pedido. Retorna false se o hex já está na fila ou se a
// fila está cheia.
func (m *HexMesher) Enqueue(req Request) bool {
	m.pendingMu.Lock()
	if m.pending[req.Pos] {
		m.pendingMu.Unlock()
		return false
	}
	m.pending[req.Pos] = true
	m.pendingMu.Unlock()

	select {
	case m.requests <- req:
		return true
	default:
		// Se a fila estiver cheia, remove do pendente para tentar depois
		m.pendingMu.Lock()
		delete(m.pending, req.Pos)
		m.pendingMu.Unlock()
		return false
	}
}

func (m *HexMesher) Results() <-chan Result {
	return m.results
}

func (m *HexMesher) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *HexMesher) worker() {
	for {
		select {
		case req := <-m.requests:
			res, ok := m.process(req)
			if !ok {
				continue
			}
			select {
			case m.results <- res:
			case <-m.stop:
				return
			}
		case <-m.stop:
			return
		}
	}
}

// process gera (ou busca no cache) a malha de um pedido. Um pânico descarta
// só este pedido; o hex sai do pendente e pode ser reenfileirado.
func (m *HexMesher) process(req Request) (res Result, ok bool) {
	defer func() {
		m.pendingMu.Lock()
		delete(m.pending, req.Pos)
		m.pendingMu.Unlock()
		if r := recover(); r != nil {
			log.Printf("[Mesher] PANIC ao gerar %v: %v", req.Pos, r)
			res, ok = Result{}, false
		}
	}()

	if m.ResultStore != nil {
		if cached, hit := m.ResultStore.Get(req.Pos, req.MTime); hit {
			return cached, true
		}
	}
	res = m.generate(req)
	if m.ResultStore != nil {
		m.ResultStore.Store(res)
	}
	return res, true
}

// Generate transforma um hex em geometria: o leque de 6 triângulos do topo e,
// nas arestas abertas, uma saia vertical até FloorY.
func (m *HexMesher) Generate(req Request) Result {
	res := Result{Pos: req.Pos, MTime: req.MTime}

	top := GetMeshBuffer()
	skirt := GetMeshBuffer()
	defer PutMeshBuffer(top)
	defer PutMeshBuffer(skirt)

	color := GrassColor
	if req.Forested {
		color = ForestColor
	}

	lo := rl.NewVector3(0, 0, 0)
	hi := lo
	first := true
	grow := func(p rl.Vector3) {
		if first {
			lo, hi, first = p, p, false
			return
		}
		lo = rl.Vector3Min(lo, p)
		hi = rl.Vector3Max(hi, p)
	}

	for _, tri := range req.Triangles {
		n := vec3(tri.Normal())
		top.AddTriangleUV(
			vec3(tri.Points[0]), vec3(tri.Points[1]), vec3(tri.Points[2]),
			vec2(tri.UVs[0]), vec2(tri.UVs[1]), vec2(tri.UVs[2]),
			n, color)
		for _, p := range tri.Points {
			grow(p)
		}
	}

	if len(req.Border) == hexgrid.CornerCount {
		for i, open := range req.OpenEdges {
			if !open {
				continue
			}
			a := req.Border[i]
			b := req.Border[(i+1)%hexgrid.CornerCount]
			if a.Y <= m.FloorY && b.Y <= m.FloorY {
				continue
			}
			aBot := rl.NewVector3(a.X, m.FloorY, a.Z)
			bBot := rl.NewVector3(b.X, m.FloorY, b.Z)
			skirt.AddFace(vec3(a), vec3(b), vec3(bBot), vec3(aBot), faceNormal(a, b, bBot), SkirtColor)
			grow(aBot)
			grow(bBot)
		}
	}

	res.Terrain = top.Geometry.Clone()
	res.Skirt = skirt.Geometry.Clone()
	res.Bounds = rl.NewBoundingBox(lo, hi)
	return res
}

func vec3(v rl.Vector3) [3]float32 { return [3]float32{v.X, v.Y, v.Z} }

func vec2(v rl.Vector2) [2]float32 { return [2]float32{v.X, v.Y} }

// faceNormal retorna a normal unitária do triângulo (a, b, c).
func faceNormal(a, b, c rl.Vector3) [3]float32 {
	va := mgl32.Vec3(vec3(a))
	n := mgl32.Vec3(vec3(b)).Sub(va).Cross(mgl32.Vec3(vec3(c)).Sub(va))
	if n.Len() == 0 {
		return [3]float32{0, 1, 0}
	}
	return [3]float32(n.Normalize())
}
