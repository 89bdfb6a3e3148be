package mapdata

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"HexTerrain/shared/hexgrid"
	"HexTerrain/shared/util"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotInitialized indica que o banco ainda não foi aberto.
var ErrNotInitialized = errors.New("banco de dados não inicializado")

// HexModel representa o esquema do banco de dados para um hex
type HexModel struct {
	ID        string `gorm:"primaryKey"` // Coordenada formatada "col_row"
	Col, Row  int32  `gorm:"index:idx_pos"`
	Heights   []byte // Níveis serializados em GOB
	Forested  bool
	PatchID   int
	UpdatedAt time.Time // Para controle interno do GORM
}

// WorldMetadata armazena informações globais do mundo no banco
type WorldMetadata struct {
	Key   string `gorm:"primaryKey"`
	Value string
}

const CurrentFormatVersion = 1

// OpenDB abre (ou cria) o banco SQLite em dir/<worldName>.hex e roda migrações.
func OpenDB(dir, worldName string) (*gorm.DB, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	dbPath := filepath.Join(dir, fmt.Sprintf("%s.hex", worldName))

	// Configuramos o logger para ser silencioso em produção
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar no SQLite: %w", err)
	}

	if err := db.AutoMigrate(&HexModel{}, &WorldMetadata{}); err != nil {
		return nil, fmt.Errorf("falha na migração do banco: %w", err)
	}

	log.Printf("[Persistence] Banco de dados SQLite aberto: %s", dbPath)
	return db, nil
}

// OpenInitialize abre o banco para este mapa e grava os metadados do mundo.
func (m *HexMap) OpenInitialize(dir, worldName string) error {
	db, err := OpenDB(dir, worldName)
	if err != nil {
		return err
	}
	return m.Attach(db, worldName)
}

// Attach associa um banco já aberto ao mapa e grava os metadados do mundo.
func (m *HexMap) Attach(db *gorm.DB, worldName string) error {
	m.DB = db

	meta := []WorldMetadata{
		{Key: "FormatVersion", Value: strconv.Itoa(CurrentFormatVersion)},
		{Key: "WorldName", Value: worldName},
		{Key: "Width", Value: strconv.Itoa(int(m.Width))},
		{Key: "Height", Value: strconv.Itoa(int(m.Height))},
		{Key: "HexWidth", Value: strconv.FormatFloat(float64(m.HexWidth), 'g', -1, 32)},
	}
	for i := range meta {
		if err := db.Save(&meta[i]).Error; err != nil {
			return fmt.Errorf("falha ao salvar metadados: %w", err)
		}
	}
	return nil
}

func toModel(rec hexgrid.HexRecord, patchID int) (HexModel, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(rec.Heights); err != nil {
		return HexModel{}, err
	}
	return HexModel{
		ID:       rec.MapPos.Key(),
		Col:      rec.MapPos.Col,
		Row:      rec.MapPos.Row,
		Heights:  buf.Bytes(),
		Forested: rec.Forested,
		PatchID:  patchID,
	}, nil
}

func fromModel(model HexModel) (hexgrid.HexRecord, error) {
	var heights []int
	if err := gob.NewDecoder(bytes.NewReader(model.Heights)).Decode(&heights); err != nil {
		return hexgrid.HexRecord{}, fmt.Errorf("hex %s: %w", model.ID, err)
	}
	rec := hexgrid.HexRecord{
		MapPos:   util.NewMapPos(model.Col, model.Row),
		Heights:  heights,
		Forested: model.Forested,
	}
	if err := rec.Valid(); err != nil {
		return hexgrid.HexRecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return rec, nil
}

// SaveHex salva um único hex no banco de dados SQLite.
func (m *HexMap) SaveHex(pos util.MapPos) error {
	_, err := m.saveHex(pos)
	return err
}

// saveHex grava o hex e retorna a versão suja copiada junto com o registro.
func (m *HexMap) saveHex(pos util.MapPos) (int64, error) {
	if m.DB == nil {
		return 0, ErrNotInitialized
	}

	m.Mu.RLock()
	h, ok := m.Hex(pos)
	if !ok {
		m.Mu.RUnlock()
		return 0, fmt.Errorf("%w: %s", ErrOutOfBounds, pos)
	}
	rec, patchID, version := h.Record(), h.PatchID, m.dirty[pos]
	m.Mu.RUnlock()

	model, err := toModel(rec, patchID)
	if err != nil {
		log.Printf("[Persistence] ERRO Crítico GOB: %v", err)
		return 0, err
	}

	m.dbMu.Lock()
	defer m.dbMu.Unlock()
	// Upsert (Cria ou Atualiza)
	if err := m.DB.Save(&model).Error; err != nil {
		log.Printf("[Persistence] ERRO ao salvar hex %s: %v", model.ID, err)
		return 0, err
	}
	return version, nil
}

// Save persiste todos os hexes sujos. Um hex editado durante o salvamento
// continua sujo para o próximo Save.
func (m *HexMap) Save() (int, error) {
	if m.DB == nil {
		return 0, ErrNotInitialized
	}
	dirty := m.Dirty()
	if len(dirty) == 0 {
		return 0, nil
	}

	saved := make(map[util.MapPos]int64, len(dirty))
	var firstErr error
	for _, pos := range dirty {
		version, err := m.saveHex(pos)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		saved[pos] = version
	}
	m.clearSaved(saved)
	log.Printf("[Persistence] Salvamento concluído: %d hexes persistidos.", len(saved))
	return len(saved), firstErr
}

// SaveAll grava todos os hexes numa única transação (usado ao criar um mundo novo).
func (m *HexMap) SaveAll() error {
	if m.DB == nil {
		return ErrNotInitialized
	}
	m.Mu.RLock()
	models := make([]HexModel, 0, len(m.hexes))
	for _, h := range m.hexes {
		model, err := toModel(h.Record(), h.PatchID)
		if err != nil {
			m.Mu.RUnlock()
			return err
		}
		models = append(models, model)
	}
	m.Mu.RUnlock()

	m.dbMu.Lock()
	defer m.dbMu.Unlock()
	return m.DB.Transaction(func(tx *gorm.DB) error {
		for i := range models {
			if err := tx.Save(&models[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadMap reconstrói um HexMap a partir do banco. Retorna gorm.ErrRecordNotFound
// se o mundo ainda não tiver metadados.
func LoadMap(db *gorm.DB) (*HexMap, error) {
	width, err := readMetaInt(db, "Width")
	if err != nil {
		return nil, err
	}
	height, err := readMetaInt(db, "Height")
	if err != nil {
		return nil, err
	}
	raw, err := readMeta(db, "HexWidth")
	if err != nil {
		return nil, err
	}
	hexWidth, err := strconv.ParseFloat(raw, 32)
	if err != nil {
		return nil, fmt.Errorf("metadado HexWidth inválido: %w", err)
	}
	if width <= 0 || height <= 0 || !(hexWidth > 0) {
		return nil, fmt.Errorf("metadados inválidos: %dx%d, hex_width %v", width, height, hexWidth)
	}

	var models []HexModel
	if err := db.Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]hexgrid.HexRecord, 0, len(models))
	for _, model := range models {
		rec, err := fromModel(model)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	m, err := FromRecords(int32(width), int32(height), float32(hexWidth), records)
	if err != nil {
		return nil, err
	}
	for _, model := range models {
		if h, ok := m.Hex(util.NewMapPos(model.Col, model.Row)); ok {
			h.PatchID = model.PatchID
		}
	}
	m.DB = db
	log.Printf("[Persistence] Mundo carregado: %dx%d, %d hexes salvos", width, height, len(models))
	return m, nil
}

func readMeta(db *gorm.DB, key string) (string, error) {
	var meta WorldMetadata
	if err := db.Where(&WorldMetadata{Key: key}).First(&meta).Error; err != nil {
		return "", err
	}
	return meta.Value, nil
}

func readMetaInt(db *gorm.DB, key string) (int, error) {
	raw, err := readMeta(db, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("metadado %s inválido: %w", key, err)
	}
	return v, nil
}

// Close fecha a conexão com o banco.
func (m *HexMap) Close() error {
	if m.DB == nil {
		return nil
	}
	sqlDB, err := m.DB.DB()
	if err != nil {
		return err
	}
	m.DB = nil
	return sqlDB.Close()
}
