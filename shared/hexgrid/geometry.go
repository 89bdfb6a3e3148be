package hexgrid

import (
	"fmt"
	"math"

	"HexTerrain/shared/util"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Triangle é um triângulo do leque com os pontos, UVs e os identificadores de origem.
type Triangle struct {
	Points [3]rl.Vector3
	UVs    [3]rl.Vector2
	IDs    [3]HexagonPoint
}

// Contains indica se o triângulo usa o ponto p.
func (t Triangle) Contains(p HexagonPoint) bool {
	return t.IDs[0] == p || t.IDs[1] == p || t.IDs[2] == p
}

// Normal retorna a normal unitária da face.
func (t Triangle) Normal() rl.Vector3 {
	e1 := rl.Vector3Subtract(t.Points[1], t.Points[0])
	e2 := rl.Vector3Subtract(t.Points[2], t.Points[0])
	return rl.Vector3Normalize(rl.Vector3CrossProduct(e1, e2))
}

// Geometry contém os 7 pontos de um hex em espaço de mundo e os dados derivados
// (caixa envolvente e leque de triângulos). Os derivados são reconstruídos por
// inteiro a cada mutação.
type Geometry struct {
	hexWidth  float32
	position  rl.Vector3
	points    [PointCount]rl.Vector3
	levels    [PointCount]int
	bounds    rl.BoundingBox
	triangles [CornerCount]Triangle
}

// NewGeometry cria a geometria plana do hex na posição de grade informada.
func NewGeometry(mapPos util.MapPos, hexWidth float32) *Geometry {
	if !(hexWidth > 0) {
		panic(fmt.Sprintf("hexgrid: largura do hex deve ser positiva, recebido %v", hexWidth))
	}
	g := &Geometry{hexWidth: hexWidth}
	g.position = HexCenter(mapPos, hexWidth)
	for _, p := range PointOrder {
		g.points[p] = GetPoint(p, g.position, hexWidth)
	}
	g.rebuild()
	return g
}

// HexCenter converte a coordenada de grade no centro do hex em espaço de mundo.
func HexCenter(pos util.MapPos, hexWidth float32) rl.Vector3 {
	hexHeight := Height(hexWidth)
	center := rl.Vector3{
		X: 1.5 * hexWidth * float32(pos.Col),
		Z: hexHeight * float32(pos.Row),
	}
	if pos.OddCol() {
		center.Z += hexHeight / 2
	}
	return center
}

// HexWidth retorna a largura fixada na construção.
func (g *Geometry) HexWidth() float32 { return g.hexWidth }

// HeightStep é a distância vertical de um nível de altura (metade da largura).
func (g *Geometry) HeightStep() float32 { return g.hexWidth / 2 }

// Position retorna o centro atual (sempre igual a Point(Center)).
func (g *Geometry) Position() rl.Vector3 { return g.position }

// Point retorna a posição de um ponto nomeado.
func (g *Geometry) Point(p HexagonPoint) rl.Vector3 {
	p.mustValid()
	return g.points[p]
}

// Points retorna uma cópia dos 7 pontos indexados por HexagonPoint.
func (g *Geometry) Points() [PointCount]rl.Vector3 { return g.points }

// Level retorna o nível inteiro de altura de um ponto.
func (g *Geometry) Level(p HexagonPoint) int {
	p.mustValid()
	return g.levels[p]
}

// Levels retorna os 7 níveis indexados por HexagonPoint.
func (g *Geometry) Levels() [PointCount]int { return g.levels }

// BoundingBox retorna a caixa alinhada aos eixos que envolve os 7 pontos.
func (g *Geometry) BoundingBox() rl.BoundingBox { return g.bounds }

// Triangles retorna uma cópia do leque de triângulos.
func (g *Geometry) Triangles() []Triangle {
	out := make([]Triangle, len(g.triangles))
	copy(out, g.triangles[:])
	return out
}

// Border retorna os 6 cantos (sem o centro) em PointOrder.
func (g *Geometry) Border() []rl.Vector3 {
	border := make([]rl.Vector3, 0, CornerCount)
	for _, p := range PointOrder[1:] {
		border = append(border, g.points[p])
	}
	return border
}

// MidPoints retorna o ponto médio entre cada canto e o centro, seguido do próprio centro.
// Usado para montar a geometria que preenche o espaço entre hexes vizinhos.
func (g *Geometry) MidPoints() []rl.Vector3 {
	mids := make([]rl.Vector3, 0, PointCount)
	for _, p := range g.Border() {
		mids = append(mids, rl.Vector3Lerp(p, g.position, 0.5))
	}
	return append(mids, g.position)
}

// AdjustHeights aplica os 7 níveis (indexados por HexagonPoint) às alturas dos pontos.
func (g *Geometry) AdjustHeights(levels []int) {
	if len(levels) != int(PointCount) {
		panic(fmt.Sprintf("hexgrid: esperados %d níveis de altura, recebido %d", PointCount, len(levels)))
	}
	step := g.HeightStep()
	for i, level := range levels {
		g.levels[i] = level
		g.points[i].Y = float32(level) * step
	}
	g.position = g.points[Center]
	g.rebuild()
}

// CanRaisePoint simula mover p em amount níveis e verifica a inclinação máxima:
// nenhum outro vértice de um triângulo que contém p pode ficar mais distante em Y
// da nova altura do que |dy|. Não altera o estado.
func (g *Geometry) CanRaisePoint(p HexagonPoint, amount int) bool {
	p.mustValid()
	dy := g.HeightStep() * float32(amount)
	limit := float32(math.Abs(float64(dy)))
	newHeight := g.points[p].Y + dy

	for _, tri := range g.triangles {
		if !tri.Contains(p) {
			continue
		}
		for i, id := range tri.IDs {
			if id == p {
				continue
			}
			if float32(math.Abs(float64(newHeight-tri.Points[i].Y))) > limit {
				return false
			}
		}
	}
	return true
}

// Raise soma dy níveis ao ponto sem verificar a inclinação; a verificação é do chamador.
func (g *Geometry) Raise(dy int, p HexagonPoint) {
	p.mustValid()
	g.levels[p] += dy
	g.points[p].Y = float32(g.levels[p]) * g.HeightStep()
	if p == Center {
		g.position = g.points[p]
	}
	g.rebuild()
}

// IntersectedBy testa o raio contra a caixa envolvente e, se houver colisão,
// contra cada triângulo. Retorna a menor distância e true, ou false se nada foi atingido.
func (g *Geometry) IntersectedBy(ray rl.Ray) (float32, bool) {
	if !rl.GetRayCollisionBox(ray, g.bounds).Hit {
		return 0, false
	}

	best := float32(math.MaxFloat32)
	hit := false
	for _, tri := range g.triangles {
		c := rl.GetRayCollisionTriangle(ray, tri.Points[0], tri.Points[1], tri.Points[2])
		if c.Hit && c.Distance < best {
			best = c.Distance
			hit = true
		}
	}
	if !hit {
		return 0, false
	}
	return best, true
}

func (g *Geometry) rebuild() {
	lo, hi := g.points[0], g.points[0]
	for _, p := range g.points[1:] {
		lo = rl.Vector3Min(lo, p)
		hi = rl.Vector3Max(hi, p)
	}
	g.bounds = rl.NewBoundingBox(lo, hi)

	for t := range g.triangles {
		var tri Triangle
		for i := 0; i < 3; i++ {
			id := IndexOrder[t*3+i]
			tri.IDs[i] = id
			tri.Points[i] = g.points[id]
			tri.UVs[i] = UVs[id]
		}
		g.triangles[t] = tri
	}
}
