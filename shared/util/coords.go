package util

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Vector3 é um alias para rl.Vector3 para conveniência
type Vector3 = rl.Vector3

// Ray é um alias para rl.Ray (Origem em Position, Direção em Direction)
type Ray = rl.Ray

// MapPos representa uma coordenada de grade em offset (coluna, linha).
// Layout flat-top "odd-q": colunas ímpares são deslocadas meia linha em +Z.
type MapPos struct {
	Col, Row int32
}

// NewMapPos cria uma nova coordenada de grade.
func NewMapPos(col, row int32) MapPos {
	return MapPos{Col: col, Row: row}
}

// Add soma duas coordenadas.
func (p MapPos) Add(other MapPos) MapPos {
	return MapPos{Col: p.Col + other.Col, Row: p.Row + other.Row}
}

// OddCol indica se a coluna é ímpar (também para colunas negativas).
func (p MapPos) OddCol() bool {
	return p.Col&1 == 1
}

// String retorna a representação em string da coordenada.
func (p MapPos) String() string {
	return fmt.Sprintf("(%d, %d)", p.Col, p.Row)
}

// Key retorna a chave usada no banco ("col_row").
func (p MapPos) Key() string {
	return fmt.Sprintf("%d_%d", p.Col, p.Row)
}

// HexDirection representa as seis direções de vizinhança de um hex flat-top.
type HexDirection int

const (
	DirNorth HexDirection = iota
	DirNorthEast
	DirSouthEast
	DirSouth
	DirSouthWest
	DirNorthWest
	DirCount
)

// AllDirections lista as direções em ordem horária começando pelo norte.
var AllDirections = [DirCount]HexDirection{
	DirNorth, DirNorthEast, DirSouthEast, DirSouth, DirSouthWest, DirNorthWest,
}

var dirNames = [DirCount]string{"N", "NE", "SE", "S", "SW", "NW"}

func (d HexDirection) String() string {
	if d < 0 || d >= DirCount {
		return fmt.Sprintf("HexDirection(%d)", int(d))
	}
	return dirNames[d]
}

// Opposite retorna a direção contrária.
func (d HexDirection) Opposite() HexDirection {
	return (d + 3) % DirCount
}

// Offsets por paridade da coluna. Norte é -Z (linha menor).
var (
	evenColOffsets = [DirCount]MapPos{
		DirNorth:     {0, -1},
		DirNorthEast: {1, -1},
		DirSouthEast: {1, 0},
		DirSouth:     {0, 1},
		DirSouthWest: {-1, 0},
		DirNorthWest: {-1, -1},
	}
	oddColOffsets = [DirCount]MapPos{
		DirNorth:     {0, -1},
		DirNorthEast: {1, 0},
		DirSouthEast: {1, 1},
		DirSouth:     {0, 1},
		DirSouthWest: {-1, 1},
		DirNorthWest: {-1, 0},
	}
)

// Neighbor retorna a coordenada vizinha na direção especificada.
func (p MapPos) Neighbor(dir HexDirection) MapPos {
	if p.OddCol() {
		return p.Add(oddColOffsets[dir])
	}
	return p.Add(evenColOffsets[dir])
}
