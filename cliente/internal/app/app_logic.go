package app

import (
	"context"
	"log"
	"time"

	"HexTerrain/cliente/internal/meshing"
	"HexTerrain/shared/util"
)

// enqueue marca o hex para remalhar na versão atual.
func (a *App) enqueue(pos util.MapPos) {
	a.mu.Lock()
	version, ok := a.versions[pos]
	a.mu.Unlock()
	if ok {
		a.queue.Enqueue(pos, version)
	}
}

// flush envia ao mesher todos os hexes marcados.
func (a *App) flush() {
	world := a.World()
	if world == nil {
		return
	}
	for {
		pos, version, ok := a.queue.Dequeue()
		if !ok {
			return
		}
		if req, ok := meshing.NewRequest(world, pos, version); ok {
			a.mesher.Enqueue(req)
		}
	}
}

// outdated retorna os hexes cuja malha não corresponde à versão atual.
func (a *App) outdated() []util.MapPos {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []util.MapPos
	for pos, v := range a.versions {
		if res, ok := a.meshes[pos]; !ok || res.MTime != v {
			out = append(out, pos)
		}
	}
	return out
}

// processMesherResult guarda o resultado se ainda for atual; senão pede de novo.
func (a *App) processMesherResult(res meshing.Result) {
	a.mu.Lock()
	current, known := a.versions[res.Pos]
	if known && res.MTime == current {
		a.meshes[res.Pos] = res
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()
	if known {
		a.enqueue(res.Pos)
		a.flush()
	}
}

// waitMeshed consome resultados do mesher até todas as malhas estarem em dia.
func (a *App) waitMeshed(ctx context.Context) error {
	// Reenfileira periodicamente o que ficou para trás (fila cheia, pendente)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	start := time.Now()
	for {
		if len(a.outdated()) == 0 {
			a.mu.Lock()
			n := len(a.meshes)
			a.mu.Unlock()
			log.Printf("[App] Malhas em dia: %d hexes (%.1fms)", n, float64(time.Since(start).Microseconds())/1000)
			return nil
		}
		select {
		case res := <-a.mesher.Results():
			a.processMesherResult(res)
		case <-ticker.C:
			for _, pos := range a.outdated() {
				a.enqueue(pos)
			}
			a.flush()
		case <-a.netClient.Done():
			return ErrConnectionClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
