package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"HexTerrain/shared/config"
	"HexTerrain/shared/hexgrid"
	"HexTerrain/shared/mapdata"
	"HexTerrain/shared/proto/hexnet"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server liga o mapa compartilhado aos clientes websocket.
type Server struct {
	cfg   *config.Config
	world *mapdata.HexMap
	hub   *Hub

	// editMu mantém a ordem dos broadcasts igual à ordem das edições
	editMu sync.Mutex

	// StatusInterval controla o broadcast periódico de ServerStatus (0 desativa)
	StatusInterval time.Duration
}

func NewServer(cfg *config.Config, world *mapdata.HexMap) *Server {
	return &Server{
		cfg:            cfg,
		world:          world,
		hub:            newHub(),
		StatusInterval: 5 * time.Second,
	}
}

// Run inicia o hub e os loops de fundo até ctx ser cancelado.
func (s *Server) Run(ctx context.Context) {
	go s.hub.run()
	if s.cfg.AutosaveSeconds > 0 {
		go s.autosaveLoop(ctx, s.cfg.AutosaveInterval())
	}
	if s.StatusInterval > 0 {
		go s.statusLoop(ctx)
	}
	go func() {
		<-ctx.Done()
		s.hub.Close()
	}()
}

// Handler retorna as rotas HTTP do servidor.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWs)
	return mux
}

// serveWs maneja requisições websocket do peer.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Hub] Erro no upgrade do WebSocket: %v", err)
		return
	}
	sess := newSession(conn)
	if !s.hub.Register(sess) {
		conn.Close()
		return
	}

	// Segurar a trava da sessão durante o envio inicial garante que nenhum
	// broadcast chegue antes do snapshot.
	sess.lock.Lock()
	err = s.sendInitial(sess)
	sess.lock.Unlock()
	if err != nil {
		log.Printf("[Hub] Erro ao enviar estado inicial: %v", err)
		s.hub.Unregister(conn)
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Hub] Recuperado de pânico na sessão %s: %v", sess.id, r)
			}
			s.hub.Unregister(conn)
		}()

		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("[Hub] Erro ao ler mensagem: %v", err)
				}
				return
			}

			msg, err := hexnet.Decode(message)
			if err != nil {
				log.Printf("[Hub] Mensagem inválida da sessão %s: %v", sess.id, err)
				continue
			}
			s.handleClientMessage(conn, msg)
		}
	}()
}

func (s *Server) sendInitial(sess *session) error {
	recs, mtime := s.world.Snapshot()
	status := &hexnet.ServerStatus{
		SessionID: sess.id,
		WorldName: s.cfg.WorldName,
		Clients:   int32(s.hub.ClientCount()),
		MTime:     mtime,
	}
	snap := hexnet.NewMapSnapshot(s.world.Width, s.world.Height, s.world.HexWidth, mtime, s.cfg.WorldName, recs)

	for _, m := range []hexnet.Message{status, snap} {
		if err := sess.conn.WriteMessage(websocket.BinaryMessage, hexnet.Encode(m)); err != nil {
			return err
		}
	}
	log.Printf("[Hub] Snapshot enviado à sessão %s: %d hexes (mtime %d)", sess.id, len(recs), mtime)
	return nil
}

func (s *Server) handleClientMessage(conn *websocket.Conn, msg hexnet.Message) {
	switch m := msg.(type) {
	case *hexnet.EditRequest:
		res, broadcast := s.applyEdit(m)
		if !broadcast {
			if err := s.hub.WriteSafe(conn, hexnet.Encode(res)); err != nil {
				log.Printf("[Hub] Erro ao enviar resultado: %v", err)
			}
		}
	default:
		log.Printf("[Hub] Mensagem %v ignorada", msg.Type())
	}
}

// applyEdit executa a edição no mapa. Edições aceitas são enviadas a todos os
// clientes (broadcast=true); rejeições voltam só para quem pediu.
func (s *Server) applyEdit(req *hexnet.EditRequest) (*hexnet.EditResult, bool) {
	res := &hexnet.EditResult{RequestID: req.RequestID}

	point := hexgrid.HexagonPoint(req.Point)
	if !point.Valid() {
		res.Reason = fmt.Sprintf("ponto inválido: %d", req.Point)
		return res, false
	}

	if amount := int64(req.Amount); amount > int64(s.cfg.MaxEditAmount) || -amount > int64(s.cfg.MaxEditAmount) {
		res.Reason = fmt.Sprintf("amount %d excede o limite de %d níveis", req.Amount, s.cfg.MaxEditAmount)
		return res, false
	}

	s.editMu.Lock()
	defer s.editMu.Unlock()

	out, err := s.world.EditCorner(req.Pos(), point, int(req.Amount))
	if err != nil {
		if errors.Is(err, mapdata.ErrOutOfBounds) {
			res.Reason = "hex fora do mapa"
		} else {
			res.Reason = err.Error()
		}
		return res, false
	}
	res.MTime = out.MTime
	if !out.Accepted {
		res.Reason = "inclinação excede o limite"
		return res, false
	}
	if len(out.Changed) == 0 {
		// amount 0: nada mudou, só confirma para quem pediu
		res.Accepted = true
		return res, false
	}

	res.Accepted = true
	res.SetRecords(out.Changed)
	s.hub.safeSend(hexnet.Encode(res))
	return res, true
}

func (s *Server) statusLoop(ctx context.Context) {
	ticker := time.NewTicker(s.StatusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := &hexnet.ServerStatus{
				WorldName: s.cfg.WorldName,
				Clients:   int32(s.hub.ClientCount()),
				MTime:     s.world.Version(),
			}
			s.hub.safeSend(hexnet.Encode(status))
		}
	}
}

// autosaveLoop persiste periodicamente os hexes alterados.
func (s *Server) autosaveLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("[AutoSave-Loop] Recuperado de pânico: %v", r)
					}
				}()
				if _, err := s.world.Save(); err != nil && !errors.Is(err, mapdata.ErrNotInitialized) {
					log.Printf("[AutoSave-Loop] Erro ao salvar: %v", err)
				}
			}()
		}
	}
}
