package meshing

import (
	"sync"

	"HexTerrain/shared/hexgrid"
	"HexTerrain/shared/util"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// GeometryData contém os buffers de vértices para uma malha (triângulos
// soltos, sem índices).
type GeometryData struct {
	Vertices []float32
	Normals  []float32
	Colors   []uint8
	UVs      []float32
}

// VertexCount retorna o número de vértices.
func (g GeometryData) VertexCount() int { return len(g.Vertices) / 3 }

// Clone cria uma cópia profunda dos dados para evitar corrupção de memória.
func (g GeometryData) Clone() GeometryData {
	clone := GeometryData{}
	if len(g.Vertices) > 0 {
		clone.Vertices = append([]float32(nil), g.Vertices...)
	}
	if len(g.Normals) > 0 {
		clone.Normals = append([]float32(nil), g.Normals...)
	}
	if len(g.Colors) > 0 {
		clone.Colors = append([]uint8(nil), g.Colors...)
	}
	if len(g.UVs) > 0 {
		clone.UVs = append([]float32(nil), g.UVs...)
	}
	return clone
}

// Request é um pedido de malha para um hex. Guarda uma cópia da geometria,
// então o mapa pode continuar sendo editado enquanto o worker processa.
type Request struct {
	Pos       util.MapPos
	Triangles []hexgrid.Triangle
	Border    []rl.Vector3 // cantos na ordem East..NorthEast
	Forested  bool
	// OpenEdges marca as arestas sem vizinho (borda do mapa), na ordem das
	// arestas East-SouthEast .. NorthEast-East.
	OpenEdges [hexgrid.CornerCount]bool
	MTime     int64 // Versão dos dados no momento da requisição
}

// Result contém os dados de geometria gerados para um hex.
type Result struct {
	Pos     util.MapPos
	Terrain GeometryData // topo do hex
	Skirt   GeometryData // paredes nas bordas do mapa
	Bounds  rl.BoundingBox
	MTime   int64 // Versão dos dados processados
}

// Mesher é a interface para geradores de malha.
type Mesher interface {
	Enqueue(req Request) bool
	Results() <-chan Result
	Stop()
}

// Global Pool para reciclar MeshBuffers e evitar alocação excessiva (GC Pressure)
var meshBufferPool = sync.Pool{
	New: func() interface{} {
		return &MeshBuffer{
			Geometry: GeometryData{
				Vertices: make([]float32, 0, 256),
				Normals:  make([]float32, 0, 256),
				Colors:   make([]uint8, 0, 256),
				UVs:      make([]float32, 0, 128),
			},
		}
	},
}

// GetMeshBuffer aloca ou recicla um buffer vazio para meshing.
func GetMeshBuffer() *MeshBuffer {
	return meshBufferPool.Get().(*MeshBuffer)
}

// PutMeshBuffer zera os slices e devolve a memória para o Pool.
func PutMeshBuffer(b *MeshBuffer) {
	if b == nil {
		return
	}
	b.Geometry.Vertices = b.Geometry.Vertices[:0]
	b.Geometry.Normals = b.Geometry.Normals[:0]
	b.Geometry.Colors = b.Geometry.Colors[:0]
	b.Geometry.UVs = b.Geometry.UVs[:0]
	meshBufferPool.Put(b)
}

// MeshBuffer auxilia na construção de malhas dinâmicas.
type MeshBuffer struct {
	Geometry GeometryData
}

// AddFace adiciona uma face retangular (quad) ao buffer.
func (b *MeshBuffer) AddFace(v1, v2, v3, v4 [3]float32, n [3]float32, c [4]uint8) {
	// Triângulo 1 (v1, v2, v3)
	b.addVertex(v1, n, c)
	b.addVertex(v2, n, c)
	b.addVertex(v3, n, c)

	// Triângulo 2 (v1, v3, v4)
	b.addVertex(v1, n, c)
	b.addVertex(v3, n, c)
	b.addVertex(v4, n, c)
}

func (b *MeshBuffer) addVertex(v [3]float32, n [3]float32, c [4]uint8) {
	b.addVertexUV(v, [2]float32{}, n, c)
}

func (b *MeshBuffer) addVertexUV(v [3]float32, uv [2]float32, n [3]float32, c [4]uint8) {
	b.Geometry.Vertices = append(b.Geometry.Vertices, v[0], v[1], v[2])
	b.Geometry.Normals = append(b.Geometry.Normals, n[0], n[1], n[2])
	b.Geometry.Colors = append(b.Geometry.Colors, c[0], c[1], c[2], c[3])
	b.Geometry.UVs = append(b.Geometry.UVs, uv[0], uv[1])
}

// AddTriangleUV adiciona uma face triangular ao buffer com coordenadas UV.
func (b *MeshBuffer) AddTriangleUV(v1, v2, v3 [3]float32, uv1, uv2, uv3 [2]float32, normal [3]float32, color [4]uint8) {
	b.addVertexUV(v1, uv1, normal, color)
	b.addVertexUV(v2, uv2, normal, color)
	b.addVertexUV(v3, uv3, normal, color)
}
