package hexgrid

import (
	"fmt"

	"HexTerrain/shared/util"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/mathgl/mgl32"
)

// NoPatch é o valor de PatchID de um hex ainda não agrupado.
const NoPatch = -1

// NoNeighbor marca uma direção sem vizinho.
const NoNeighbor = -1

// MatchEpsilon é a tolerância (distância euclidiana) usada para considerar dois
// pontos de hexes diferentes como o mesmo vértice. Deve ser a mesma em todo o sistema.
const MatchEpsilon float32 = 1e-3

// HexRecord é o registro persistido de um hex: coordenada, 7 níveis indexados
// por HexagonPoint e a flag de floresta.
type HexRecord struct {
	MapPos   util.MapPos
	Heights  []int
	Forested bool
}

// Valid verifica o tamanho do registro antes de construir um Hexagon.
func (r HexRecord) Valid() error {
	if len(r.Heights) != int(PointCount) {
		return fmt.Errorf("registro %s: esperados %d níveis, recebido %d", r.MapPos, PointCount, len(r.Heights))
	}
	return nil
}

// Hexagon é a célula lógica da grade; possui exclusivamente uma Geometry.
type Hexagon struct {
	mapPos   util.MapPos
	height   int
	geometry *Geometry

	// PatchID é escrito pelo agrupamento externo; NoPatch por padrão.
	PatchID  int
	IsForest bool

	// neighbors guarda índices na grade externa (não ponteiros).
	neighbors [util.DirCount]int
}

// NewHexagon cria um hex plano na altura 0.
func NewHexagon(mapPos util.MapPos, hexWidth float32) *Hexagon {
	h := &Hexagon{
		mapPos:   mapPos,
		geometry: NewGeometry(mapPos, hexWidth),
		PatchID:  NoPatch,
	}
	for i := range h.neighbors {
		h.neighbors[i] = NoNeighbor
	}
	return h
}

// NewHexagonFromRecord cria um hex a partir do registro persistido, já com as alturas ajustadas.
func NewHexagonFromRecord(rec HexRecord, hexWidth float32) *Hexagon {
	h := NewHexagon(rec.MapPos, hexWidth)
	h.geometry.AdjustHeights(rec.Heights)
	h.height = rec.Heights[Center]
	h.IsForest = rec.Forested
	return h
}

func (h *Hexagon) String() string {
	return fmt.Sprintf("%d %d", h.mapPos.Col, h.mapPos.Row)
}

// MapPos retorna a coordenada de grade (identidade imutável).
func (h *Hexagon) MapPos() util.MapPos { return h.mapPos }

// Height retorna o nível do centro.
func (h *Hexagon) Height() int { return h.height }

// Geometry retorna a geometria do hex.
func (h *Hexagon) Geometry() *Geometry { return h.geometry }

// Position é um atalho para o centro em espaço de mundo.
func (h *Hexagon) Position() rl.Vector3 { return h.geometry.Position() }

// SetNeighbor registra o índice do vizinho na direção dir.
func (h *Hexagon) SetNeighbor(dir util.HexDirection, index int) {
	h.neighbors[dir] = index
}

// Neighbor retorna o índice do vizinho na direção dir, se houver.
func (h *Hexagon) Neighbor(dir util.HexDirection) (int, bool) {
	idx := h.neighbors[dir]
	return idx, idx != NoNeighbor
}

// Raise sobe o ponto em um nível. Não verifica a inclinação: use CanRaisePoint ou TryRaise.
func (h *Hexagon) Raise(p HexagonPoint) {
	h.geometry.Raise(1, p)
	if p == Center {
		h.height++
	}
}

// Lower desce o ponto em um nível. Não verifica a inclinação.
func (h *Hexagon) Lower(p HexagonPoint) {
	h.geometry.Raise(-1, p)
	if p == Center {
		h.height--
	}
}

// RaiseBy move o ponto amount níveis de uma vez. Não verifica a inclinação.
func (h *Hexagon) RaiseBy(p HexagonPoint, amount int) {
	if amount == 0 {
		return
	}
	h.geometry.Raise(amount, p)
	if p == Center {
		h.height += amount
	}
}

// CanRaisePoint repassa a verificação de inclinação para a geometria.
func (h *Hexagon) CanRaisePoint(p HexagonPoint, amount int) bool {
	return h.geometry.CanRaisePoint(p, amount)
}

// TryRaise aplica amount níveis ao ponto somente se a inclinação permitir.
// Retorna false (sem alterar nada) quando a mudança é rejeitada.
func (h *Hexagon) TryRaise(p HexagonPoint, amount int) bool {
	if amount == 0 {
		return true
	}
	if !h.geometry.CanRaisePoint(p, amount) {
		return false
	}
	h.RaiseBy(p, amount)
	return true
}

// TryLower é TryRaise com amount negativo.
func (h *Hexagon) TryLower(p HexagonPoint, amount int) bool {
	return h.TryRaise(p, -amount)
}

// GetMatchingPoints retorna os pontos do vizinho que coincidem com algum canto deste hex.
func (h *Hexagon) GetMatchingPoints(neighbor *Hexagon) []HexagonPoint {
	border := h.geometry.Border()
	var matches []HexagonPoint
	for _, np := range PointOrder {
		v := neighbor.geometry.points[np]
		for _, p := range border {
			if samePoint(p, v) {
				matches = append(matches, np)
				break
			}
		}
	}
	return matches
}

// MatchPoint retorna o ponto do vizinho que coincide com o ponto p deste hex.
func (h *Hexagon) MatchPoint(p HexagonPoint, neighbor *Hexagon) (HexagonPoint, bool) {
	v := h.geometry.Point(p)
	for _, np := range PointOrder {
		if samePoint(v, neighbor.geometry.points[np]) {
			return np, true
		}
	}
	return Center, false
}

// Record retorna o estado atual como registro persistível.
func (h *Hexagon) Record() HexRecord {
	levels := h.geometry.Levels()
	return HexRecord{
		MapPos:   h.mapPos,
		Heights:  levels[:],
		Forested: h.IsForest,
	}
}

func samePoint(a, b rl.Vector3) bool {
	va := mgl32.Vec3{a.X, a.Y, a.Z}
	vb := mgl32.Vec3{b.X, b.Y, b.Z}
	return va.Sub(vb).Len() <= MatchEpsilon
}
