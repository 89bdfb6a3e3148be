package client

import (
	"errors"
	"log"
	"sync"
	"time"

	"HexTerrain/shared/hexgrid"
	"HexTerrain/shared/mapdata"
	"HexTerrain/shared/proto/hexnet"
	"HexTerrain/shared/util"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrNotConnected indica envio sem conexão ativa.
var ErrNotConnected = errors.New("cliente não conectado")

// NetworkClient lida com a comunicação com o servidor de edição e mantém a
// cópia local do mapa.
type NetworkClient struct {
	conn      *websocket.Conn
	url       string
	world     *mapdata.HexMap
	sessionID string
	connected bool
	mu        sync.RWMutex
	writeMu   sync.Mutex
	done      chan struct{}

	MaxRetries int
	RetryDelay time.Duration

	// Callbacks para o App. São chamados pela goroutine de leitura.
	OnSnapshot func(world *mapdata.HexMap)
	OnEdit     func(res *hexnet.EditResult, changed []util.MapPos)
	OnStatus   func(status *hexnet.ServerStatus)
}

func NewNetworkClient(url string) *NetworkClient {
	return &NetworkClient{
		url:        url,
		done:       make(chan struct{}),
		MaxRetries: 10,
		RetryDelay: 2 * time.Second,
	}
}

func (c *NetworkClient) Connect() error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	var (
		conn *websocket.Conn
		err  error
	)
	for i := 0; i < c.MaxRetries; i++ {
		log.Printf("[Client] Tentativa de conexão %d/%d em %s...", i+1, c.MaxRetries, c.url)
		conn, _, err = dialer.Dial(c.url, nil)
		if err == nil {
			break
		}
		log.Printf("[Client] Servidor ainda não está pronto: %v. Aguardando...", err)
		time.Sleep(c.RetryDelay)
	}
	if conn == nil {
		if err == nil {
			err = ErrNotConnected
		}
		log.Printf("[Client] ERRO CRÍTICO após %d tentativas: %v", c.MaxRetries, err)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop()
	return nil
}

func (c *NetworkClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// World retorna a cópia local do mapa (nil antes do snapshot).
func (c *NetworkClient) World() *mapdata.HexMap {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.world
}

// SessionID retorna o id atribuído pelo servidor.
func (c *NetworkClient) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Done é fechado quando a conexão termina.
func (c *NetworkClient) Done() <-chan struct{} { return c.done }

// RequestEdit pede ao servidor para mover um ponto e retorna o id da requisição.
func (c *NetworkClient) RequestEdit(pos util.MapPos, p hexgrid.HexagonPoint, amount int) (string, error) {
	req := &hexnet.EditRequest{
		RequestID: uuid.NewString(),
		Col:       pos.Col,
		Row:       pos.Row,
		Point:     int32(p),
		Amount:    int32(amount),
	}
	return req.RequestID, c.Send(req)
}

func (c *NetworkClient) Send(msg hexnet.Message) error {
	c.mu.RLock()
	conn, ok := c.conn, c.connected
	c.mu.RUnlock()
	if !ok {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	err := conn.WriteMessage(websocket.BinaryMessage, hexnet.Encode(msg))
	c.writeMu.Unlock()

	if err != nil {
		log.Printf("[Client] Erro ao enviar mensagem: %v", err)
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}
	return err
}

// Close encerra a conexão.
func (c *NetworkClient) Close() error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return conn.Close()
}

func (c *NetworkClient) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Client] Recuperado de pânico no loop de leitura: %v", r)
		}
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.conn.Close()
		close(c.done)
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure) {
				log.Printf("[Client] Conexão perdida: %v", err)
			}
			return
		}

		msg, err := hexnet.Decode(message)
		if err != nil {
			log.Printf("[Client] Erro ao decodificar mensagem: %v", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *NetworkClient) handleMessage(msg hexnet.Message) {
	switch m := msg.(type) {
	case *hexnet.ServerStatus:
		if m.SessionID != "" {
			c.mu.Lock()
			c.sessionID = m.SessionID
			c.mu.Unlock()
		}
		if c.OnStatus != nil {
			c.OnStatus(m)
		}
	case *hexnet.MapSnapshot:
		c.processSnapshot(m)
	case *hexnet.EditResult:
		c.processEdit(m)
	default:
		log.Printf("[Client] Mensagem %v ignorada", msg.Type())
	}
}

func (c *NetworkClient) processSnapshot(snap *hexnet.MapSnapshot) {
	if snap.Width <= 0 || snap.Height <= 0 || !(snap.HexWidth > 0) {
		log.Printf("[Client] Snapshot inválido: %dx%d, hex_width %v", snap.Width, snap.Height, snap.HexWidth)
		return
	}
	world, err := mapdata.FromRecords(snap.Width, snap.Height, snap.HexWidth, snap.Records())
	if err != nil {
		log.Printf("[Client] Snapshot inválido: %v", err)
		return
	}
	world.MTime = snap.MTime

	c.mu.Lock()
	c.world = world
	c.mu.Unlock()
	log.Printf("[Client] Snapshot recebido: %q %dx%d (mtime %d)", snap.WorldName, snap.Width, snap.Height, snap.MTime)

	if c.OnSnapshot != nil {
		c.OnSnapshot(world)
	}
}

func (c *NetworkClient) processEdit(res *hexnet.EditResult) {
	var changed []util.MapPos
	if world := c.World(); world != nil && res.Accepted && len(res.Changed) > 0 {
		recs := res.Records()
		applied, err := world.ApplyRecords(recs, res.MTime)
		if err != nil {
			log.Printf("[Client] Edição %s inválida: %v", res.RequestID, err)
			return
		}
		if applied {
			for _, rec := range recs {
				changed = append(changed, rec.MapPos)
			}
		}
	}
	if c.OnEdit != nil {
		c.OnEdit(res, changed)
	}
}
