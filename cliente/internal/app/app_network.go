package app

import (
	"context"
	"errors"
	"log"

	"HexTerrain/cliente/internal/client"
	"HexTerrain/shared/mapdata"
	"HexTerrain/shared/proto/hexnet"
	"HexTerrain/shared/util"

	"github.com/google/uuid"
)

// ErrConnectionClosed indica que o servidor encerrou a conexão antes do fim.
var ErrConnectionClosed = errors.New("conexão com o servidor encerrada")

// connectServer conecta ao servidor e liga os callbacks ao mesher.
func (a *App) connectServer() error {
	a.netClient = client.NewNetworkClient(a.Config.ServerURL)

	a.netClient.OnStatus = func(status *hexnet.ServerStatus) {
		a.mu.Lock()
		if status.WorldName != "" {
			a.WorldName = status.WorldName
		}
		a.mu.Unlock()
		if a.Config.ShowDebugInfo {
			log.Printf("[Client] Status: mundo %q, %d clientes, mtime %d", status.WorldName, status.Clients, status.MTime)
		}
	}

	a.netClient.OnSnapshot = func(world *mapdata.HexMap) {
		mtime := world.Version()
		positions := make([]util.MapPos, 0, world.Len())
		for i := 0; i < world.Len(); i++ {
			positions = append(positions, world.HexAt(i).MapPos())
		}

		a.mu.Lock()
		a.world = world
		a.versions = make(map[util.MapPos]int64, len(positions))
		for _, pos := range positions {
			a.versions[pos] = mtime
		}
		a.mu.Unlock()

		for _, pos := range positions {
			a.enqueue(pos)
		}
		a.flush()
		a.notify()
	}

	a.netClient.OnEdit = func(res *hexnet.EditResult, changed []util.MapPos) {
		a.mu.Lock()
		for _, pos := range changed {
			a.versions[pos] = res.MTime
		}
		a.mu.Unlock()

		for _, pos := range changed {
			a.enqueue(pos)
		}
		a.flush()
		a.deliverEdit(res)
		a.notify()
	}

	if err := a.netClient.Connect(); err != nil {
		log.Printf("[Client] Erro ao conectar: %v", err)
		return err
	}
	log.Printf("[Client] Conectado ao servidor %s", a.Config.ServerURL)
	return nil
}

// deliverEdit repassa a sendEdit apenas o resultado da edição pendente;
// broadcasts de outros clientes não ocupam o canal.
func (a *App) deliverEdit(res *hexnet.EditResult) {
	a.mu.Lock()
	wanted := a.pendingEdit
	if wanted == "" || res.RequestID != wanted {
		a.mu.Unlock()
		return
	}
	a.pendingEdit = ""
	a.mu.Unlock()

	select {
	case a.edits <- res:
	default:
	}
}

func (a *App) notify() {
	select {
	case a.changed <- struct{}{}:
	default:
	}
}

// waitForWorld bloqueia até o snapshot inicial chegar.
func (a *App) waitForWorld(ctx context.Context) error {
	for {
		if a.World() != nil {
			return nil
		}
		select {
		case <-a.changed:
		case <-a.netClient.Done():
			if a.World() != nil {
				return nil
			}
			return ErrConnectionClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sendEdit envia a edição e espera o EditResult com o mesmo id.
func (a *App) sendEdit(ctx context.Context, cmd EditCommand) (*hexnet.EditResult, error) {
	id := uuid.NewString()
	a.mu.Lock()
	a.pendingEdit = id
	a.mu.Unlock()

	req := &hexnet.EditRequest{
		RequestID: id,
		Col:       cmd.Pos.Col,
		Row:       cmd.Pos.Row,
		Point:     int32(cmd.Point),
		Amount:    int32(cmd.Amount),
	}
	if err := a.netClient.Send(req); err != nil {
		a.mu.Lock()
		a.pendingEdit = ""
		a.mu.Unlock()
		return nil, err
	}
	log.Printf("[Client] Edição %s enviada: %s %v %+d", id, cmd.Pos, cmd.Point, cmd.Amount)

	for {
		select {
		case res := <-a.edits:
			if res.RequestID == id {
				return res, nil
			}
		case <-a.netClient.Done():
			return nil, ErrConnectionClosed
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
