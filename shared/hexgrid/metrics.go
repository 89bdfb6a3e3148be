// Package hexgrid contém a geometria de um hexágono de terreno flat-top:
// posicionamento na grade, malha em leque, altura por canto, picking e
// casamento de bordas entre vizinhos.
package hexgrid

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// HexagonPoint identifica um dos 7 pontos de um hex: o centro e os seis cantos.
// É usado como índice denso nos arrays de pontos e alturas.
type HexagonPoint int

const (
	Center HexagonPoint = iota
	East
	SouthEast
	SouthWest
	West
	NorthWest
	NorthEast
	PointCount
)

// CornerCount é o número de cantos de borda.
const CornerCount = int(PointCount) - 1

var pointNames = [PointCount]string{"Center", "East", "SouthEast", "SouthWest", "West", "NorthWest", "NorthEast"}

func (p HexagonPoint) String() string {
	if !p.Valid() {
		return fmt.Sprintf("HexagonPoint(%d)", int(p))
	}
	return pointNames[p]
}

// Valid indica se p é um dos 7 identificadores.
func (p HexagonPoint) Valid() bool {
	return p >= Center && p < PointCount
}

// ParsePoint aceita o nome do ponto (sem distinção de caixa) ou seu índice.
func ParsePoint(s string) (HexagonPoint, error) {
	for i, name := range pointNames {
		if strings.EqualFold(s, name) {
			return HexagonPoint(i), nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || !HexagonPoint(n).Valid() {
		return 0, fmt.Errorf("hexgrid: ponto desconhecido: %q", s)
	}
	return HexagonPoint(n), nil
}

func (p HexagonPoint) mustValid() {
	if !p.Valid() {
		panic(fmt.Sprintf("hexgrid: ponto fora do intervalo: %d", int(p)))
	}
}

// PointOrder é a ordem determinística de iteração dos pontos.
var PointOrder = [PointCount]HexagonPoint{Center, East, SouthEast, SouthWest, West, NorthWest, NorthEast}

// cornerDirs guarda (cos θ, sin θ) de cada canto, θ = 60° * k medido de +X para +Z.
var cornerDirs [PointCount]rl.Vector2

// IndexOrder define os 6 triângulos do leque, lidos de 3 em 3.
// Ordem Center, próximo, atual: anti-horário visto de +Y, normal para cima.
var IndexOrder [CornerCount * 3]HexagonPoint

// UVs guarda a coordenada de textura de cada ponto.
var UVs [PointCount]rl.Vector2

func init() {
	for k := 0; k < CornerCount; k++ {
		theta := float64(k) * math.Pi / 3
		p := PointOrder[k+1]
		cornerDirs[p] = rl.NewVector2(float32(math.Cos(theta)), float32(math.Sin(theta)))
		UVs[p] = rl.NewVector2(0.5+0.5*cornerDirs[p].X, 0.5+0.5*cornerDirs[p].Y)
	}
	UVs[Center] = rl.NewVector2(0.5, 0.5)

	for k := 0; k < CornerCount; k++ {
		cur := PointOrder[k+1]
		next := PointOrder[(k+1)%CornerCount+1]
		IndexOrder[k*3] = Center
		IndexOrder[k*3+1] = next
		IndexOrder[k*3+2] = cur
	}
}

// Height converte a largura do hex no passo vertical entre linhas da grade
// (2 * w * sin 60° = w * √3).
func Height(hexWidth float32) float32 {
	return float32(2 * float64(hexWidth) * math.Sin(math.Pi/3))
}

// GetPoint retorna a posição de um ponto nomeado a partir do centro.
func GetPoint(which HexagonPoint, center rl.Vector3, hexWidth float32) rl.Vector3 {
	which.mustValid()
	if which == Center {
		return center
	}
	d := cornerDirs[which]
	return rl.NewVector3(center.X+hexWidth*d.X, center.Y, center.Z+hexWidth*d.Y)
}
