package main

import (
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// session é um cliente conectado. lock serializa escritas no websocket.
type session struct {
	id   string
	conn *websocket.Conn
	lock sync.Mutex
}

func newSession(conn *websocket.Conn) *session {
	return &session{id: uuid.NewString(), conn: conn}
}

// Hub gerencia as conexões WebSocket ativas
type Hub struct {
	clients    map[*websocket.Conn]*session
	broadcast  chan []byte
	register   chan *session
	unregister chan *websocket.Conn
	quit       chan struct{}
	closeOnce  sync.Once
	mu         sync.Mutex
}

func newHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*session),
		broadcast:  make(chan []byte, 4096), // Bufferizado para evitar deadlocks e bloqueios
		register:   make(chan *session),
		unregister: make(chan *websocket.Conn),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) run() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Hub] Recuperado de pânico fatal: %v", r)
		}
	}()

	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for conn, s := range h.clients {
				s.lock.Lock()
				conn.Close()
				s.lock.Unlock()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return
		case s := <-h.register:
			h.mu.Lock()
			h.clients[s.conn] = s
			h.mu.Unlock()
			log.Printf("[Hub] Cliente registrado: %s (sessão %s)", s.conn.RemoteAddr(), s.id)
		case conn := <-h.unregister:
			h.mu.Lock()
			if s, ok := h.clients[conn]; ok {
				s.lock.Lock()
				delete(h.clients, conn)
				conn.Close()
				s.lock.Unlock()
				log.Printf("[Hub] Cliente desregistrado: %s (sessão %s)", conn.RemoteAddr(), s.id)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			// Copiamos a lista de clientes para escrever fora do lock do hub
			h.mu.Lock()
			targets := make([]*session, 0, len(h.clients))
			for _, s := range h.clients {
				targets = append(targets, s)
			}
			h.mu.Unlock()

			for _, s := range targets {
				s.lock.Lock()
				err := s.conn.WriteMessage(websocket.BinaryMessage, message)
				if err != nil {
					log.Printf("[Hub] Erro ao enviar para cliente %s: %v", s.conn.RemoteAddr(), err)
					s.conn.Close()
					h.mu.Lock()
					delete(h.clients, s.conn)
					h.mu.Unlock()
				}
				s.lock.Unlock()
			}
		}
	}
}

// Register adiciona a sessão ao hub. Broadcasts enfileirados depois do retorno
// chegam a ela.
func (h *Hub) Register(s *session) bool {
	select {
	case h.register <- s:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister remove e fecha a conexão.
func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.quit:
	}
}

// ClientCount retorna o número de clientes registrados.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// WriteSafe garante que apenas uma goroutine escreva no WebSocket por vez
func (h *Hub) WriteSafe(conn *websocket.Conn, data []byte) error {
	h.mu.Lock()
	s, ok := h.clients[conn]
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("cliente não encontrado no hub")
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// safeSend envia para o canal de broadcast protegendo contra pânicos de canal fechado
func (h *Hub) safeSend(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Hub] Aviso: Falha ao enviar broadcast: %v", r)
		}
	}()
	// Não segurar h.mu aqui: com o buffer cheio o envio bloqueia até o run() esvaziar.
	select {
	case h.broadcast <- data:
	case <-h.quit:
	}
}

// Close encerra o loop do hub e fecha todas as conexões.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.quit) })
}
