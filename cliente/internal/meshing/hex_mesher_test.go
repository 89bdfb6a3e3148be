package meshing

import (
	"math"
	"sync/atomic"
	"testing"
	"time"

	"HexTerrain/shared/hexgrid"
	"HexTerrain/shared/mapdata"
	"HexTerrain/shared/util"
)

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-4 }

func mustRequest(t *testing.T, world *mapdata.HexMap, col, row int32) Request {
	t.Helper()
	req, ok := NewRequest(world, util.NewMapPos(col, row), 0)
	if !ok {
		t.Fatalf("NewRequest(%d, %d) falhou", col, row)
	}
	return req
}

func TestGenerateInteriorHex(t *testing.T) {
	world := mapdata.NewHexMap(3, 3, 1)
	m := &HexMesher{FloorY: -1}
	res := m.Generate(mustRequest(t, world, 1, 1))

	if got := res.Terrain.VertexCount(); got != 18 {
		t.Errorf("Terrain tem %d vértices, want 18", got)
	}
	if got := res.Skirt.VertexCount(); got != 0 {
		t.Errorf("hex interior com saia de %d vértices", got)
	}
	if len(res.Terrain.UVs) != 36 || len(res.Terrain.Colors) != 72 {
		t.Errorf("buffers UVs=%d Colors=%d, want 36 72", len(res.Terrain.UVs), len(res.Terrain.Colors))
	}
	for i := 0; i < len(res.Terrain.Normals); i += 3 {
		n := res.Terrain.Normals[i : i+3]
		if !near(n[0], 0) || !near(n[1], 1) || !near(n[2], 0) {
			t.Fatalf("normal %d = %v, want (0, 1, 0)", i/3, n)
		}
	}
	if c := res.Terrain.Colors[:4]; c[0] != GrassColor[0] || c[1] != GrassColor[1] {
		t.Errorf("cor = %v, want grama", c)
	}
	if !near(res.Bounds.Min.Y, 0) || !near(res.Bounds.Max.Y, 0) {
		t.Errorf("Bounds Y = [%v, %v], want [0, 0]", res.Bounds.Min.Y, res.Bounds.Max.Y)
	}
}

func TestGenerateBorderSkirts(t *testing.T) {
	world := mapdata.NewHexMap(3, 3, 1)
	h, _ := world.Hex(util.NewMapPos(0, 0))
	h.IsForest = true

	req := mustRequest(t, world, 0, 0)
	want := [hexgrid.CornerCount]bool{false, false, true, true, true, true}
	if req.OpenEdges != want {
		t.Fatalf("OpenEdges = %v, want %v", req.OpenEdges, want)
	}

	m := &HexMesher{FloorY: -1}
	res := m.Generate(req)
	if got := res.Skirt.VertexCount(); got != 4*6 {
		t.Fatalf("saia com %d vértices, want 24", got)
	}
	if c := res.Terrain.Colors[:4]; c[0] != ForestColor[0] || c[1] != ForestColor[1] {
		t.Errorf("cor = %v, want floresta", c)
	}
	if !near(res.Bounds.Min.Y, -1) {
		t.Errorf("Bounds.Min.Y = %v, want -1", res.Bounds.Min.Y)
	}

	// Cada quad da saia aponta para fora, na direção do meio da aresta.
	quad := 0
	for i, open := range req.OpenEdges {
		if !open {
			continue
		}
		angle := float64(60*i+30) * math.Pi / 180
		n := res.Skirt.Normals[quad*18 : quad*18+3]
		if !near(n[0], float32(math.Cos(angle))) || !near(n[1], 0) || !near(n[2], float32(math.Sin(angle))) {
			t.Errorf("aresta %d: normal %v, want (%.3f, 0, %.3f)", i, n, math.Cos(angle), math.Sin(angle))
		}
		quad++
	}
}

func TestGenerateSkipsSkirtBelowFloor(t *testing.T) {
	world := mapdata.NewHexMap(1, 1, 1)
	m := &HexMesher{FloorY: 0}
	if got := m.Generate(mustRequest(t, world, 0, 0)).Skirt.VertexCount(); got != 0 {
		t.Errorf("saia com topo no chão gerou %d vértices", got)
	}
}

func TestRequestIsDetachedFromMap(t *testing.T) {
	world := mapdata.NewHexMap(3, 3, 1)
	req := mustRequest(t, world, 1, 1)
	if ok, _, _ := world.RaiseCorner(util.NewMapPos(1, 1), hexgrid.Center, 1); !ok {
		t.Fatal("edição rejeitada")
	}
	if y := req.Triangles[0].Points[0].Y; y != 0 {
		t.Errorf("pedido mudou junto com o mapa: Y = %v", y)
	}
	if _, ok := NewRequest(world, util.NewMapPos(5, 5), 0); ok {
		t.Error("NewRequest fora do mapa: want false")
	}
}

func TestHexMesherPool(t *testing.T) {
	world := mapdata.NewHexMap(3, 3, 1)
	store := NewResultStore()
	m := NewHexMesher(3, store, -1)
	defer m.Stop()

	for i := 0; i < world.Len(); i++ {
		pos := world.HexAt(i).MapPos()
		req, _ := NewRequest(world, pos, 7)
		if !m.Enqueue(req) {
			t.Fatalf("Enqueue(%v) recusado", pos)
		}
	}

	seen := make(map[util.MapPos]bool)
	timeout := time.After(5 * time.Second)
	for len(seen) < world.Len() {
		select {
		case res := <-m.Results():
			if res.MTime != 7 || res.Terrain.VertexCount() != 18 {
				t.Errorf("resultado %v: mtime %d, %d vértices", res.Pos, res.MTime, res.Terrain.VertexCount())
			}
			seen[res.Pos] = true
		case <-timeout:
			t.Fatalf("apenas %d de %d resultados", len(seen), world.Len())
		}
	}
	if store.Len() != world.Len() {
		t.Errorf("ResultStore.Len() = %d, want %d", store.Len(), world.Len())
	}
}

func TestResultStoreVersioning(t *testing.T) {
	world := mapdata.NewHexMap(1, 1, 1)
	req, _ := NewRequest(world, util.NewMapPos(0, 0), 3)
	res := (&HexMesher{FloorY: -1}).Generate(req)

	store := NewResultStore()
	store.Store(res)
	if _, ok := store.Get(res.Pos, 4); ok {
		t.Error("Get com mtime diferente retornou resultado")
	}
	got, ok := store.Get(res.Pos, 3)
	if !ok {
		t.Fatal("Get com mtime igual falhou")
	}
	got.Terrain.Vertices[0] = 99
	again, _ := store.Get(res.Pos, 3)
	if again.Terrain.Vertices[0] == 99 {
		t.Error("alterar o resultado retornado alterou o cache")
	}
	store.Clear()
	if store.Len() != 0 {
		t.Errorf("Len() após Clear = %d", store.Len())
	}
}

func TestWorkerSurvivesPanic(t *testing.T) {
	world := mapdata.NewHexMap(1, 1, 1)
	m := NewHexMesher(1, nil, -1)
	defer m.Stop()

	var calls atomic.Int32
	m.generate = func(req Request) Result {
		if calls.Add(1) == 1 {
			panic("falha simulada")
		}
		return m.Generate(req)
	}

	req := mustRequest(t, world, 0, 0)
	if !m.Enqueue(req) {
		t.Fatal("primeiro Enqueue recusado")
	}

	// Após o pânico o hex sai do pendente e o mesmo worker volta a atender.
	deadline := time.After(5 * time.Second)
	for !m.Enqueue(req) {
		select {
		case <-deadline:
			t.Fatal("hex continuou pendente após o pânico")
		case <-time.After(10 * time.Millisecond):
		}
	}
	select {
	case res := <-m.Results():
		if res.Pos != req.Pos || res.Terrain.VertexCount() != 18 {
			t.Errorf("resultado = %v com %d vértices", res.Pos, res.Terrain.VertexCount())
		}
	case <-deadline:
		t.Fatal("worker não produziu resultado após o pânico")
	}
}
