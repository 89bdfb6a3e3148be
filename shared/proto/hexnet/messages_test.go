package hexnet

import (
	"errors"
	"reflect"
	"testing"

	"HexTerrain/shared/hexgrid"
	"HexTerrain/shared/util"

	"google.golang.org/protobuf/encoding/protowire"
)

func sampleRecord(col, row int32) HexRecordMessage {
	return HexRecordMessage{Col: col, Row: row, Levels: []int32{0, 1, -1, 0, 2, 0, -3}, Forested: true}
}

func TestEncodeDecodeMessages(t *testing.T) {
	tests := []Message{
		&ServerStatus{SessionID: "abc", WorldName: "mundo", Clients: 3, MTime: 42},
		&MapSnapshot{Width: 2, Height: 1, HexWidth: 0.5, MTime: 7, WorldName: "mundo",
			Hexes: []HexRecordMessage{sampleRecord(0, 0), sampleRecord(1, 0)}},
		&EditRequest{RequestID: "r1", Col: -2, Row: 5, Point: int32(hexgrid.SouthWest), Amount: -1},
		&EditResult{RequestID: "r1", Accepted: true, MTime: 9, Changed: []HexRecordMessage{sampleRecord(3, 4)}},
		&EditResult{RequestID: "r2", Reason: "inclinação"},
	}
	for _, msg := range tests {
		got, err := Decode(Encode(msg))
		if err != nil {
			t.Errorf("Decode(%v): %v", msg.Type(), err)
			continue
		}
		if !reflect.DeepEqual(got, msg) {
			t.Errorf("Decode(Encode(%+v)) = %+v", msg, got)
		}
	}
}

func TestRecordConversion(t *testing.T) {
	rec := hexgrid.HexRecord{MapPos: util.NewMapPos(4, -1), Heights: []int{3, 2, 2, 3, 4, 3, 3}}
	msg := NewHexRecordMessage(rec)
	if got := msg.ToRecord(); !reflect.DeepEqual(got, rec) {
		t.Errorf("ToRecord() = %+v, want %+v", got, rec)
	}

	snap := NewMapSnapshot(5, 5, 1, 0, "w", []hexgrid.HexRecord{rec})
	if got := snap.Records(); !reflect.DeepEqual(got, []hexgrid.HexRecord{rec}) {
		t.Errorf("Records() = %+v", got)
	}
}

func TestRecordRequiresSevenLevels(t *testing.T) {
	for _, n := range []int{0, 6, 8} {
		msg := HexRecordMessage{Col: 1, Levels: make([]int32, n)}
		var out HexRecordMessage
		if err := out.Unmarshal(msg.Marshal()); !errors.Is(err, ErrMalformed) {
			t.Errorf("%d níveis: err = %v, want ErrMalformed", n, err)
		}
	}

	// Um snapshot com um registro curto inteiro é rejeitado.
	snap := &MapSnapshot{Width: 1, Height: 1, Hexes: []HexRecordMessage{{Levels: []int32{1, 2}}}}
	if _, err := Decode(Encode(snap)); !errors.Is(err, ErrMalformed) {
		t.Errorf("snapshot com registro curto: err = %v, want ErrMalformed", err)
	}
}

func TestUnknownFieldsAreSkipped(t *testing.T) {
	req := &EditRequest{RequestID: "x", Col: 1, Row: 2, Point: 3, Amount: 1}
	data := req.Marshal()
	data = protowire.AppendTag(data, 99, protowire.BytesType)
	data = protowire.AppendString(data, "extensão futura")
	data = protowire.AppendTag(data, 100, protowire.Fixed64Type)
	data = protowire.AppendFixed64(data, 1)

	var got EditRequest
	if err := got.Unmarshal(data); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(&got, req) {
		t.Errorf("got %+v, want %+v", got, req)
	}
}

func TestUnpackedLevelsAccepted(t *testing.T) {
	var data []byte
	for _, l := range []int32{1, 1, 1, 1, 1, 1, -1} {
		data = protowire.AppendTag(data, 3, protowire.VarintType)
		data = protowire.AppendVarint(data, protowire.EncodeZigZag(int64(l)))
	}
	var rec HexRecordMessage
	if err := rec.Unmarshal(data); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if rec.Levels[6] != -1 {
		t.Errorf("Levels = %v", rec.Levels)
	}
}

func TestDecodeErrors(t *testing.T) {
	truncated := Encode(&ServerStatus{WorldName: "mundo"})
	truncated = truncated[:len(truncated)-2]

	unknown := (&Envelope{Type: 99}).Marshal()

	var wrongType []byte
	wrongType = protowire.AppendTag(wrongType, 1, protowire.BytesType)
	wrongType = protowire.AppendString(wrongType, "1")

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"truncado", truncated, ErrMalformed},
		{"tipo desconhecido", unknown, ErrUnknownType},
		{"wire type errado", wrongType, ErrMalformed},
		{"lixo", []byte{0xff, 0xff, 0xff}, ErrMalformed},
	}
	for _, tt := range tests {
		if _, err := Decode(tt.data); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}
