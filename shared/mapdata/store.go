package mapdata

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"HexTerrain/shared/hexgrid"
	"HexTerrain/shared/util"

	"gorm.io/gorm"
)

var (
	// ErrOutOfBounds indica uma coordenada fora do mapa.
	ErrOutOfBounds = errors.New("coordenada fora do mapa")
	// ErrMalformedRecord indica um registro de hex inválido (níveis, duplicado).
	ErrMalformedRecord = errors.New("registro de hex inválido")
)

// HexMap é o contêiner da grade: dono de todos os hexes, que guardam apenas
// índices para seus vizinhos. Edições são serializadas por Mu.
type HexMap struct {
	Mu sync.RWMutex

	// dbMu serializa escritas no banco SQLite (impede "database is locked")
	dbMu sync.Mutex

	Width, Height int32
	HexWidth      float32

	hexes []*hexgrid.Hexagon
	// dirty guarda o MTime da última alteração de cada hex ainda não salvo.
	dirty map[util.MapPos]int64

	// MTime é incrementado a cada edição aceita.
	MTime int64

	// DB é a conexão com o banco SQLite (GORM)
	DB *gorm.DB
}

// NewHexMap cria um mapa plano width x height.
func NewHexMap(width, height int32, hexWidth float32) *HexMap {
	m := newEmptyMap(width, height, hexWidth)
	for row := int32(0); row < height; row++ {
		for col := int32(0); col < width; col++ {
			pos := util.NewMapPos(col, row)
			m.hexes[m.index(pos)] = hexgrid.NewHexagon(pos, hexWidth)
		}
	}
	m.linkNeighbors()
	return m
}

// FromRecords monta o mapa a partir de registros persistidos. Posições sem
// registro recebem um hex plano.
func FromRecords(width, height int32, hexWidth float32, records []hexgrid.HexRecord) (*HexMap, error) {
	m := newEmptyMap(width, height, hexWidth)
	for _, rec := range records {
		if !m.InBounds(rec.MapPos) {
			return nil, fmt.Errorf("%w: %s", ErrOutOfBounds, rec.MapPos)
		}
		if err := rec.Valid(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		idx := m.index(rec.MapPos)
		if m.hexes[idx] != nil {
			return nil, fmt.Errorf("%w: posição duplicada %s", ErrMalformedRecord, rec.MapPos)
		}
		m.hexes[idx] = hexgrid.NewHexagonFromRecord(rec, hexWidth)
	}
	for i, h := range m.hexes {
		if h == nil {
			m.hexes[i] = hexgrid.NewHexagon(m.posOf(i), hexWidth)
		}
	}
	m.linkNeighbors()
	return m, nil
}

func newEmptyMap(width, height int32, hexWidth float32) *HexMap {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("mapdata: dimensões inválidas %dx%d", width, height))
	}
	return &HexMap{
		Width:    width,
		Height:   height,
		HexWidth: hexWidth,
		hexes:    make([]*hexgrid.Hexagon, int(width)*int(height)),
		dirty:    make(map[util.MapPos]int64),
	}
}

func (m *HexMap) index(pos util.MapPos) int {
	return int(pos.Row)*int(m.Width) + int(pos.Col)
}

func (m *HexMap) posOf(i int) util.MapPos {
	return util.NewMapPos(int32(i%int(m.Width)), int32(i/int(m.Width)))
}

// InBounds verifica se a coordenada pertence ao mapa.
func (m *HexMap) InBounds(pos util.MapPos) bool {
	return pos.Col >= 0 && pos.Row >= 0 && pos.Col < m.Width && pos.Row < m.Height
}

// Index retorna o índice denso da coordenada.
func (m *HexMap) Index(pos util.MapPos) (int, bool) {
	if !m.InBounds(pos) {
		return 0, false
	}
	return m.index(pos), true
}

// linkNeighbors grava em cada hex os índices dos vizinhos existentes.
func (m *HexMap) linkNeighbors() {
	for i, h := range m.hexes {
		pos := m.posOf(i)
		for _, dir := range util.AllDirections {
			if idx, ok := m.Index(pos.Neighbor(dir)); ok {
				h.SetNeighbor(dir, idx)
			}
		}
	}
}

// Len retorna o número de hexes.
func (m *HexMap) Len() int { return len(m.hexes) }

// HexAt retorna o hex pelo índice denso.
func (m *HexMap) HexAt(i int) *hexgrid.Hexagon { return m.hexes[i] }

// Hex retorna o hex na coordenada, se existir.
func (m *HexMap) Hex(pos util.MapPos) (*hexgrid.Hexagon, bool) {
	idx, ok := m.Index(pos)
	if !ok {
		return nil, false
	}
	return m.hexes[idx], true
}

// Neighbor resolve o índice guardado no hex para o vizinho na direção dir.
func (m *HexMap) Neighbor(h *hexgrid.Hexagon, dir util.HexDirection) (*hexgrid.Hexagon, bool) {
	idx, ok := h.Neighbor(dir)
	if !ok {
		return nil, false
	}
	return m.hexes[idx], true
}

// vertexRef identifica um vértice físico em um hex específico.
type vertexRef struct {
	hex   *hexgrid.Hexagon
	point hexgrid.HexagonPoint
}

// sharedVertex retorna todos os hexes (incluindo h) que possuem o mesmo vértice físico que p.
func (m *HexMap) sharedVertex(h *hexgrid.Hexagon, p hexgrid.HexagonPoint) []vertexRef {
	refs := []vertexRef{{hex: h, point: p}}
	if p == hexgrid.Center {
		return refs
	}
	for _, dir := range util.AllDirections {
		n, ok := m.Neighbor(h, dir)
		if !ok {
			continue
		}
		if np, ok := h.MatchPoint(p, n); ok {
			refs = append(refs, vertexRef{hex: n, point: np})
		}
	}
	return refs
}

// RaiseCorner move o ponto p do hex em pos por amount níveis, propagando a mesma
// mudança para os cantos coincidentes dos vizinhos. A edição só é aplicada se a
// inclinação permitir em todos os hexes envolvidos. Retorna se foi aceita e as
// posições alteradas.
func (m *HexMap) RaiseCorner(pos util.MapPos, p hexgrid.HexagonPoint, amount int) (bool, []util.MapPos, error) {
	if !p.Valid() {
		return false, nil, fmt.Errorf("ponto inválido: %d", int(p))
	}
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return m.raiseCorner(pos, p, amount)
}

// EditOutcome é o resultado de EditCorner.
type EditOutcome struct {
	Accepted bool
	Changed  []hexgrid.HexRecord
	MTime    int64 // MTime do mapa logo após a edição
}

// EditCorner é RaiseCorner retornando os registros alterados e o MTime
// resultante, lidos sob a mesma trava da edição.
func (m *HexMap) EditCorner(pos util.MapPos, p hexgrid.HexagonPoint, amount int) (EditOutcome, error) {
	if !p.Valid() {
		return EditOutcome{}, fmt.Errorf("ponto inválido: %d", int(p))
	}
	m.Mu.Lock()
	defer m.Mu.Unlock()

	ok, changed, err := m.raiseCorner(pos, p, amount)
	if err != nil {
		return EditOutcome{}, err
	}
	out := EditOutcome{Accepted: ok, MTime: m.MTime}
	for _, cp := range changed {
		h, _ := m.Hex(cp)
		out.Changed = append(out.Changed, h.Record())
	}
	return out, nil
}

func (m *HexMap) raiseCorner(pos util.MapPos, p hexgrid.HexagonPoint, amount int) (bool, []util.MapPos, error) {
	h, ok := m.Hex(pos)
	if !ok {
		return false, nil, fmt.Errorf("%w: %s", ErrOutOfBounds, pos)
	}
	if amount == 0 {
		return true, nil, nil
	}

	refs := m.sharedVertex(h, p)
	for _, ref := range refs {
		if !ref.hex.CanRaisePoint(ref.point, amount) {
			return false, nil, nil
		}
	}

	m.MTime++
	changed := make([]util.MapPos, 0, len(refs))
	for _, ref := range refs {
		ref.hex.RaiseBy(ref.point, amount)
		m.dirty[ref.hex.MapPos()] = m.MTime
		changed = append(changed, ref.hex.MapPos())
	}
	return true, changed, nil
}

// Pick retorna o hex mais próximo atingido pelo raio.
func (m *HexMap) Pick(ray util.Ray) (util.MapPos, float32, bool) {
	m.Mu.RLock()
	defer m.Mu.RUnlock()

	best := float32(math.MaxFloat32)
	var bestPos util.MapPos
	found := false
	for _, h := range m.hexes {
		d, ok := h.Geometry().IntersectedBy(ray)
		if ok && d < best {
			best, bestPos, found = d, h.MapPos(), true
		}
	}
	if !found {
		return util.MapPos{}, 0, false
	}
	return bestPos, best, true
}

// Records retorna os registros de todos os hexes em ordem de índice.
func (m *HexMap) Records() []hexgrid.HexRecord {
	m.Mu.RLock()
	defer m.Mu.RUnlock()
	out := make([]hexgrid.HexRecord, len(m.hexes))
	for i, h := range m.hexes {
		out[i] = h.Record()
	}
	return out
}

// RecordsAt retorna os registros das posições informadas (ignorando as inválidas).
func (m *HexMap) RecordsAt(positions []util.MapPos) []hexgrid.HexRecord {
	m.Mu.RLock()
	defer m.Mu.RUnlock()
	out := make([]hexgrid.HexRecord, 0, len(positions))
	for _, pos := range positions {
		if h, ok := m.Hex(pos); ok {
			out = append(out, h.Record())
		}
	}
	return out
}

// Version retorna o MTime atual.
func (m *HexMap) Version() int64 {
	m.Mu.RLock()
	defer m.Mu.RUnlock()
	return m.MTime
}

// Snapshot retorna todos os registros e o MTime correspondente.
func (m *HexMap) Snapshot() ([]hexgrid.HexRecord, int64) {
	m.Mu.RLock()
	defer m.Mu.RUnlock()
	out := make([]hexgrid.HexRecord, len(m.hexes))
	for i, h := range m.hexes {
		out[i] = h.Record()
	}
	return out, m.MTime
}

// ApplyRecord substitui o hex na posição do registro. Os índices de vizinhos
// e o PatchID são mantidos.
func (m *HexMap) ApplyRecord(rec hexgrid.HexRecord) error {
	if err := rec.Valid(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if err := m.applyRecord(rec); err != nil {
		return err
	}
	m.MTime++
	return nil
}

// ApplyRecords aplica uma edição recebida do servidor. Edições com mtime não
// mais novo que o do mapa já estão refletidas e são ignoradas (retorna false).
func (m *HexMap) ApplyRecords(recs []hexgrid.HexRecord, mtime int64) (bool, error) {
	for _, rec := range recs {
		if err := rec.Valid(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		if !m.InBounds(rec.MapPos) {
			return false, fmt.Errorf("%w: %s", ErrOutOfBounds, rec.MapPos)
		}
	}
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if mtime <= m.MTime {
		return false, nil
	}
	for _, rec := range recs {
		if err := m.applyRecord(rec); err != nil {
			return false, err
		}
	}
	m.MTime = mtime
	return true, nil
}

func (m *HexMap) applyRecord(rec hexgrid.HexRecord) error {
	idx, ok := m.Index(rec.MapPos)
	if !ok {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, rec.MapPos)
	}
	old := m.hexes[idx]
	h := hexgrid.NewHexagonFromRecord(rec, m.HexWidth)
	h.PatchID = old.PatchID
	for _, dir := range util.AllDirections {
		if n, ok := old.Neighbor(dir); ok {
			h.SetNeighbor(dir, n)
		}
	}
	m.hexes[idx] = h
	return nil
}

// Dirty retorna as posições alteradas desde o último ClearDirty.
func (m *HexMap) Dirty() []util.MapPos {
	m.Mu.RLock()
	defer m.Mu.RUnlock()
	out := make([]util.MapPos, 0, len(m.dirty))
	for pos := range m.dirty {
		out = append(out, pos)
	}
	return out
}

// clearSaved remove do conjunto sujo apenas os hexes que não mudaram desde
// a versão salva.
func (m *HexMap) clearSaved(saved map[util.MapPos]int64) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	for pos, v := range saved {
		if m.dirty[pos] == v {
			delete(m.dirty, pos)
		}
	}
}

// ClearDirty remove as posições informadas do conjunto sujo.
func (m *HexMap) ClearDirty(positions []util.MapPos) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	for _, pos := range positions {
		delete(m.dirty, pos)
	}
}
