package meshing

import (
	"sync"

	"HexTerrain/shared/util"
)

// ResultStore armazena os resultados de meshing na RAM para evitar re-processamento.
type ResultStore struct {
	mu      sync.RWMutex
	results map[util.MapPos]Result
}

// NewResultStore cria um novo repositório de resultados.
func NewResultStore() *ResultStore {
	return &ResultStore{
		results: make(map[util.MapPos]Result),
	}
}

// Get retorna um resultado se ele existir e for compatível com o MTime informado.
func (s *ResultStore) Get(pos util.MapPos, mtime int64) (Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.results[pos]
	if ok && res.MTime == mtime {
		// Retornamos um clone para evitar que modificações externas afetem o cache
		return res.Clone(), true
	}
	return Result{}, false
}

// Store salva um resultado no repositório.
func (s *ResultStore) Store(res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.Pos] = res.Clone()
}

// Len retorna o número de resultados guardados.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// Clear limpa todo o cache de resultados.
func (s *ResultStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make(map[util.MapPos]Result)
}

// Clone realiza uma cópia profunda de um Result.
func (r Result) Clone() Result {
	return Result{
		Pos:     r.Pos,
		Terrain: r.Terrain.Clone(),
		Skirt:   r.Skirt.Clone(),
		Bounds:  r.Bounds,
		MTime:   r.MTime,
	}
}
