package main

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"HexTerrain/shared/config"
	"HexTerrain/shared/hexgrid"
	"HexTerrain/shared/mapdata"
	"HexTerrain/shared/proto/hexnet"
	"HexTerrain/shared/util"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.AutosaveSeconds = 0
	srv := NewServer(cfg, mapdata.NewHexMap(3, 3, 1))
	srv.StatusInterval = 0

	ctx, cancel := context.WithCancel(context.Background())
	srv.Run(ctx)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) hexnet.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	msg, err := hexnet.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msg hexnet.Message) {
	t.Helper()
	if err := conn.WriteMessage(websocket.BinaryMessage, hexnet.Encode(msg)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
}

// connect abre uma conexão e consome o status e o snapshot iniciais.
func connect(t *testing.T, url string) (*websocket.Conn, *hexnet.ServerStatus, *hexnet.MapSnapshot) {
	t.Helper()
	conn := dial(t, url)
	status, ok := read(t, conn).(*hexnet.ServerStatus)
	if !ok {
		t.Fatal("primeira mensagem não é ServerStatus")
	}
	snap, ok := read(t, conn).(*hexnet.MapSnapshot)
	if !ok {
		t.Fatal("segunda mensagem não é MapSnapshot")
	}
	return conn, status, snap
}

func readResult(t *testing.T, conn *websocket.Conn) *hexnet.EditResult {
	t.Helper()
	res, ok := read(t, conn).(*hexnet.EditResult)
	if !ok {
		t.Fatal("mensagem recebida não é EditResult")
	}
	return res
}

func TestInitialSnapshot(t *testing.T) {
	_, url := newTestServer(t)
	_, status, snap := connect(t, url)

	if _, err := uuid.Parse(status.SessionID); err != nil {
		t.Errorf("SessionID %q não é um uuid: %v", status.SessionID, err)
	}
	if status.WorldName != "mundo" {
		t.Errorf("WorldName = %q, want mundo", status.WorldName)
	}
	if snap.Width != 3 || snap.Height != 3 || snap.HexWidth != 1 || len(snap.Hexes) != 9 {
		t.Errorf("snapshot = %dx%d w=%v com %d hexes", snap.Width, snap.Height, snap.HexWidth, len(snap.Hexes))
	}
	if _, err := mapdata.FromRecords(snap.Width, snap.Height, snap.HexWidth, snap.Records()); err != nil {
		t.Errorf("FromRecords(snapshot): %v", err)
	}
}

func TestAcceptedEditIsBroadcast(t *testing.T) {
	srv, url := newTestServer(t)
	a, _, _ := connect(t, url)
	b, _, _ := connect(t, url)

	send(t, a, &hexnet.EditRequest{RequestID: "e1", Col: 1, Row: 1, Point: int32(hexgrid.East), Amount: 1})

	for _, conn := range []*websocket.Conn{a, b} {
		res := readResult(t, conn)
		if !res.Accepted || res.RequestID != "e1" || res.MTime != 1 {
			t.Errorf("EditResult = %+v, want aceito e1 mtime 1", res)
		}
		if len(res.Changed) != 3 {
			t.Errorf("%d hexes alterados, want 3", len(res.Changed))
		}
	}
	if srv.world.Version() != 1 {
		t.Errorf("Version() = %d, want 1", srv.world.Version())
	}
	if len(srv.world.Dirty()) != 3 {
		t.Errorf("Dirty() = %v, want 3 posições", srv.world.Dirty())
	}

	// Um cliente novo recebe o estado já editado.
	_, _, snap := connect(t, url)
	m, err := mapdata.FromRecords(snap.Width, snap.Height, snap.HexWidth, snap.Records())
	if err != nil {
		t.Fatal(err)
	}
	h, _ := m.Hex(util.NewMapPos(1, 1))
	if h.Geometry().Level(hexgrid.East) != 1 {
		t.Errorf("snapshot após edição: nível East = %d, want 1", h.Geometry().Level(hexgrid.East))
	}
}

func TestRejectedEditsGoOnlyToRequester(t *testing.T) {
	srv, url := newTestServer(t)
	// Centro de (1,1) um nível acima dos cantos: subir mais um viola a inclinação.
	if ok, _, _ := srv.world.RaiseCorner(util.NewMapPos(1, 1), hexgrid.Center, 1); !ok {
		t.Fatal("edição inicial rejeitada")
	}
	a, _, _ := connect(t, url)
	b, _, _ := connect(t, url)

	tests := []struct {
		req    *hexnet.EditRequest
		reason string
	}{
		{&hexnet.EditRequest{RequestID: "p", Col: 0, Row: 0, Point: 9, Amount: 1}, "ponto inválido"},
		{&hexnet.EditRequest{RequestID: "b", Col: 7, Row: 0, Point: 0, Amount: 1}, "fora do mapa"},
		{&hexnet.EditRequest{RequestID: "s", Col: 1, Row: 1, Point: 0, Amount: 1}, "inclinação"},
		{&hexnet.EditRequest{RequestID: "g", Col: 0, Row: 0, Point: 1, Amount: 1 << 30}, "excede o limite"},
		{&hexnet.EditRequest{RequestID: "n", Col: 0, Row: 0, Point: 1, Amount: -2147483648}, "excede o limite"},
	}
	for _, tt := range tests {
		send(t, a, tt.req)
		res := readResult(t, a)
		if res.Accepted || res.RequestID != tt.req.RequestID || !strings.Contains(res.Reason, tt.reason) {
			t.Errorf("EditResult(%s) = %+v, want rejeitado com %q", tt.req.RequestID, res, tt.reason)
		}
	}

	// b não deve ter recebido nada: a próxima mensagem dele é o broadcast desta edição.
	send(t, a, &hexnet.EditRequest{RequestID: "ok", Col: 2, Row: 2, Point: 0, Amount: -1})
	if res := readResult(t, b); res.RequestID != "ok" {
		t.Errorf("b recebeu %q antes do broadcast", res.RequestID)
	}
}

func TestOpenWorldCreatesAndReloads(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SavesDir = filepath.Join(t.TempDir(), "saves")
	cfg.MapWidth, cfg.MapHeight = 4, 2

	world, err := openWorld(cfg)
	if err != nil {
		t.Fatalf("openWorld (novo): %v", err)
	}
	if ok, _, _ := world.RaiseCorner(util.NewMapPos(2, 1), hexgrid.Center, 1); !ok {
		t.Fatal("edição rejeitada")
	}
	if _, err := world.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	world.Close()

	again, err := openWorld(cfg)
	if err != nil {
		t.Fatalf("openWorld (existente): %v", err)
	}
	defer again.Close()
	if again.Width != 4 || again.Height != 2 {
		t.Errorf("dimensões = %dx%d, want 4x2", again.Width, again.Height)
	}
	h, _ := again.Hex(util.NewMapPos(2, 1))
	if h.Height() != 1 {
		t.Errorf("altura após recarregar = %d, want 1", h.Height())
	}
}
