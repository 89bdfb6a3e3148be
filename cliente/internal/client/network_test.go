package client

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"HexTerrain/shared/hexgrid"
	"HexTerrain/shared/mapdata"
	"HexTerrain/shared/proto/hexnet"
	"HexTerrain/shared/util"

	"github.com/gorilla/websocket"
)

// fakeServer envia status e um snapshot 2x2 e responde cada EditRequest com um
// EditResult aceito cujo mtime é o próprio amount pedido.
func fakeServer(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		world := mapdata.NewHexMap(2, 2, 1)
		recs, _ := world.Snapshot()
		conn.WriteMessage(websocket.BinaryMessage, hexnet.Encode(&hexnet.ServerStatus{SessionID: "s-1", WorldName: "teste"}))
		conn.WriteMessage(websocket.BinaryMessage, hexnet.Encode(hexnet.NewMapSnapshot(2, 2, 1, 0, "teste", recs)))

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			msg, err := hexnet.Decode(data)
			if err != nil {
				continue
			}
			req, ok := msg.(*hexnet.EditRequest)
			if !ok {
				continue
			}
			levels := make([]int, hexgrid.PointCount)
			levels[req.Point] = int(req.Amount)
			res := &hexnet.EditResult{RequestID: req.RequestID, Accepted: true, MTime: int64(req.Amount)}
			res.SetRecords([]hexgrid.HexRecord{{MapPos: req.Pos(), Heights: levels}})
			conn.WriteMessage(websocket.BinaryMessage, hexnet.Encode(res))
		}
	}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

type edit struct {
	res     *hexnet.EditResult
	changed []util.MapPos
}

func TestNetworkClientSnapshotAndEdits(t *testing.T) {
	c := NewNetworkClient(fakeServer(t))
	snapshots := make(chan *mapdata.HexMap, 1)
	edits := make(chan edit, 4)
	c.OnSnapshot = func(w *mapdata.HexMap) { snapshots <- w }
	c.OnEdit = func(res *hexnet.EditResult, changed []util.MapPos) { edits <- edit{res, changed} }

	if err := c.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer c.Close()

	var world *mapdata.HexMap
	select {
	case world = <-snapshots:
	case <-time.After(5 * time.Second):
		t.Fatal("snapshot não recebido")
	}
	if world.Width != 2 || world.Height != 2 || world.Len() != 4 {
		t.Errorf("mapa local = %dx%d (%d hexes)", world.Width, world.Height, world.Len())
	}
	if c.SessionID() != "s-1" {
		t.Errorf("SessionID() = %q, want s-1", c.SessionID())
	}

	waitEdit := func() edit {
		t.Helper()
		select {
		case e := <-edits:
			return e
		case <-time.After(5 * time.Second):
			t.Fatal("EditResult não recebido")
		}
		return edit{}
	}

	id, err := c.RequestEdit(util.NewMapPos(1, 1), hexgrid.Center, 1)
	if err != nil {
		t.Fatalf("RequestEdit: %v", err)
	}
	e := waitEdit()
	if e.res.RequestID != id || len(e.changed) != 1 || e.changed[0] != util.NewMapPos(1, 1) {
		t.Errorf("edição = %+v alterados %v", e.res, e.changed)
	}
	if h, _ := world.Hex(util.NewMapPos(1, 1)); h.Height() != 1 {
		t.Errorf("altura local = %d, want 1", h.Height())
	}

	// Mesmo mtime: já refletido, nada muda.
	if _, err := c.RequestEdit(util.NewMapPos(0, 0), hexgrid.Center, 1); err != nil {
		t.Fatalf("RequestEdit: %v", err)
	}
	if e := waitEdit(); len(e.changed) != 0 {
		t.Errorf("edição antiga aplicada: %v", e.changed)
	}
	if h, _ := world.Hex(util.NewMapPos(0, 0)); h.Height() != 0 {
		t.Errorf("altura de (0,0) = %d, want 0", h.Height())
	}
}

func TestNetworkClientConnectFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ts.Close()

	c := NewNetworkClient(url)
	c.MaxRetries = 2
	c.RetryDelay = 10 * time.Millisecond
	if err := c.Connect(); err == nil {
		t.Fatal("Connect em servidor fechado: esperado erro")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true após falha")
	}
	if err := c.Send(&hexnet.EditRequest{}); err != ErrNotConnected {
		t.Errorf("Send sem conexão: err = %v, want ErrNotConnected", err)
	}
}
