package hexnet

import (
	"errors"
	"fmt"

	"HexTerrain/shared/hexgrid"
	"HexTerrain/shared/util"

	"google.golang.org/protobuf/encoding/protowire"
)

// MessageType identifica o payload de um Envelope.
type MessageType int32

const (
	MsgUnknown MessageType = iota
	MsgServerStatus
	MsgMapSnapshot
	MsgEditRequest
	MsgEditResult
)

func (t MessageType) String() string {
	switch t {
	case MsgServerStatus:
		return "ServerStatus"
	case MsgMapSnapshot:
		return "MapSnapshot"
	case MsgEditRequest:
		return "EditRequest"
	case MsgEditResult:
		return "EditResult"
	}
	return fmt.Sprintf("MessageType(%d)", int32(t))
}

// ErrUnknownType indica um envelope com tipo que esta versão não conhece.
var ErrUnknownType = errors.New("tipo de mensagem desconhecido")

// Message é implementada por todas as mensagens do protocolo.
type Message interface {
	Type() MessageType
	Marshal() []byte
	Unmarshal(data []byte) error
}

// Envelope embrulha uma mensagem com seu tipo. É o que trafega em cada frame
// binário do websocket.
type Envelope struct {
	Type    MessageType
	Payload []byte
}

func (m *Envelope) Marshal() []byte {
	e := newEncoder()
	e.varint(1, uint64(m.Type))
	e.raw(2, m.Payload)
	return e.bytes()
}

func (m *Envelope) Unmarshal(data []byte) error {
	*m = Envelope{}
	d := newDecoder(data)
	for !d.done() {
		num, typ, err := d.tag()
		if err != nil {
			return err
		}
		switch num {
		case 1:
			v, err := d.varint(num, typ)
			if err != nil {
				return err
			}
			m.Type = MessageType(v)
		case 2:
			if m.Payload, err = d.bytes(num, typ); err != nil {
				return err
			}
		default:
			if err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// Encode serializa msg dentro de um Envelope.
func Encode(msg Message) []byte {
	env := Envelope{Type: msg.Type(), Payload: msg.Marshal()}
	return env.Marshal()
}

// Decode lê um Envelope e decodifica o payload na mensagem correspondente.
func Decode(data []byte) (Message, error) {
	var env Envelope
	if err := env.Unmarshal(data); err != nil {
		return nil, err
	}
	var msg Message
	switch env.Type {
	case MsgServerStatus:
		msg = &ServerStatus{}
	case MsgMapSnapshot:
		msg = &MapSnapshot{}
	case MsgEditRequest:
		msg = &EditRequest{}
	case MsgEditResult:
		msg = &EditResult{}
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownType, env.Type)
	}
	if err := msg.Unmarshal(env.Payload); err != nil {
		return nil, fmt.Errorf("%v: %w", env.Type, err)
	}
	return msg, nil
}

// HexRecordMessage é o registro de um hex: posição, os 7 níveis na ordem dos
// pontos (centro primeiro) e a flag de floresta.
type HexRecordMessage struct {
	Col      int32
	Row      int32
	Levels   []int32
	Forested bool
}

// NewHexRecordMessage converte um registro do núcleo para o protocolo.
func NewHexRecordMessage(rec hexgrid.HexRecord) HexRecordMessage {
	levels := make([]int32, len(rec.Heights))
	for i, h := range rec.Heights {
		levels[i] = int32(h)
	}
	return HexRecordMessage{
		Col:      rec.MapPos.Col,
		Row:      rec.MapPos.Row,
		Levels:   levels,
		Forested: rec.Forested,
	}
}

// ToRecord converte de volta para o registro do núcleo.
func (m *HexRecordMessage) ToRecord() hexgrid.HexRecord {
	heights := make([]int, len(m.Levels))
	for i, l := range m.Levels {
		heights[i] = int(l)
	}
	return hexgrid.HexRecord{
		MapPos:   util.NewMapPos(m.Col, m.Row),
		Heights:  heights,
		Forested: m.Forested,
	}
}

func (m *HexRecordMessage) encode(e *encoder) {
	e.sint(1, int64(m.Col))
	e.sint(2, int64(m.Row))
	e.packedSint(3, m.Levels)
	e.boolean(4, m.Forested)
}

func (m *HexRecordMessage) Marshal() []byte {
	e := newEncoder()
	m.encode(e)
	return e.bytes()
}

// Unmarshal rejeita registros que não tenham exatamente um nível por ponto.
func (m *HexRecordMessage) Unmarshal(data []byte) error {
	*m = HexRecordMessage{}
	d := newDecoder(data)
	for !d.done() {
		num, typ, err := d.tag()
		if err != nil {
			return err
		}
		switch num {
		case 1:
			if m.Col, err = d.sint32(num, typ); err != nil {
				return err
			}
		case 2:
			if m.Row, err = d.sint32(num, typ); err != nil {
				return err
			}
		case 3:
			if m.Levels, err = d.sint32s(num, typ, m.Levels); err != nil {
				return err
			}
		case 4:
			if m.Forested, err = d.boolean(num, typ); err != nil {
				return err
			}
		default:
			if err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}
	if len(m.Levels) != int(hexgrid.PointCount) {
		return fmt.Errorf("%w: hex (%d, %d) com %d níveis, esperado %d",
			ErrMalformed, m.Col, m.Row, len(m.Levels), hexgrid.PointCount)
	}
	return nil
}

func encodeRecords(e *encoder, num protowire.Number, recs []HexRecordMessage) {
	for i := range recs {
		e.raw(num, recs[i].Marshal())
	}
}

func decodeRecord(d *decoder, num protowire.Number, typ protowire.Type, dst []HexRecordMessage) ([]HexRecordMessage, error) {
	sub, err := d.bytes(num, typ)
	if err != nil {
		return dst, err
	}
	var rec HexRecordMessage
	if err := rec.Unmarshal(sub); err != nil {
		return dst, err
	}
	return append(dst, rec), nil
}

func recordsOf(msgs []HexRecordMessage) []hexgrid.HexRecord {
	out := make([]hexgrid.HexRecord, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].ToRecord()
	}
	return out
}

func messagesOf(recs []hexgrid.HexRecord) []HexRecordMessage {
	out := make([]HexRecordMessage, len(recs))
	for i, rec := range recs {
		out[i] = NewHexRecordMessage(rec)
	}
	return out
}

// MapSnapshot é o estado completo do mapa, enviado a cada cliente ao conectar.
type MapSnapshot struct {
	Width     int32
	Height    int32
	HexWidth  float32
	MTime     int64
	WorldName string
	Hexes     []HexRecordMessage
}

// NewMapSnapshot monta um snapshot a partir dos registros do mapa.
func NewMapSnapshot(width, height int32, hexWidth float32, mtime int64, world string, recs []hexgrid.HexRecord) *MapSnapshot {
	return &MapSnapshot{
		Width:     width,
		Height:    height,
		HexWidth:  hexWidth,
		MTime:     mtime,
		WorldName: world,
		Hexes:     messagesOf(recs),
	}
}

func (m *MapSnapshot) Type() MessageType { return MsgMapSnapshot }

// Records converte os hexes do snapshot para registros do núcleo.
func (m *MapSnapshot) Records() []hexgrid.HexRecord { return recordsOf(m.Hexes) }

func (m *MapSnapshot) Marshal() []byte {
	e := newEncoder()
	e.varint(1, uint64(m.Width))
	e.varint(2, uint64(m.Height))
	e.float(3, m.HexWidth)
	e.varint(4, uint64(m.MTime))
	e.str(5, m.WorldName)
	encodeRecords(e, 6, m.Hexes)
	return e.bytes()
}

func (m *MapSnapshot) Unmarshal(data []byte) error {
	*m = MapSnapshot{}
	d := newDecoder(data)
	for !d.done() {
		num, typ, err := d.tag()
		if err != nil {
			return err
		}
		switch num {
		case 1, 2, 4:
			v, err := d.varint(num, typ)
			if err != nil {
				return err
			}
			switch num {
			case 1:
				m.Width = int32(v)
			case 2:
				m.Height = int32(v)
			default:
				m.MTime = int64(v)
			}
		case 3:
			if m.HexWidth, err = d.float(num, typ); err != nil {
				return err
			}
		case 5:
			if m.WorldName, err = d.str(num, typ); err != nil {
				return err
			}
		case 6:
			if m.Hexes, err = decodeRecord(d, num, typ, m.Hexes); err != nil {
				return err
			}
		default:
			if err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// EditRequest pede para mover um ponto de um hex por Amount níveis.
type EditRequest struct {
	RequestID string
	Col       int32
	Row       int32
	Point     int32
	Amount    int32
}

func (m *EditRequest) Type() MessageType { return MsgEditRequest }

// Pos retorna a posição alvo.
func (m *EditRequest) Pos() util.MapPos { return util.NewMapPos(m.Col, m.Row) }

func (m *EditRequest) Marshal() []byte {
	e := newEncoder()
	e.str(1, m.RequestID)
	e.sint(2, int64(m.Col))
	e.sint(3, int64(m.Row))
	e.varint(4, uint64(m.Point))
	e.sint(5, int64(m.Amount))
	return e.bytes()
}

func (m *EditRequest) Unmarshal(data []byte) error {
	*m = EditRequest{}
	d := newDecoder(data)
	for !d.done() {
		num, typ, err := d.tag()
		if err != nil {
			return err
		}
		switch num {
		case 1:
			if m.RequestID, err = d.str(num, typ); err != nil {
				return err
			}
		case 2:
			if m.Col, err = d.sint32(num, typ); err != nil {
				return err
			}
		case 3:
			if m.Row, err = d.sint32(num, typ); err != nil {
				return err
			}
		case 4:
			v, err := d.varint(num, typ)
			if err != nil {
				return err
			}
			m.Point = int32(v)
		case 5:
			if m.Amount, err = d.sint32(num, typ); err != nil {
				return err
			}
		default:
			if err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// EditResult é a resposta do servidor a um EditRequest. Quando aceita, é
// enviada a todos os clientes com os hexes alterados.
type EditResult struct {
	RequestID string
	Accepted  bool
	Reason    string
	MTime     int64
	Changed   []HexRecordMessage
}

func (m *EditResult) Type() MessageType { return MsgEditResult }

// Records converte os hexes alterados para registros do núcleo.
func (m *EditResult) Records() []hexgrid.HexRecord { return recordsOf(m.Changed) }

// SetRecords substitui os hexes alterados.
func (m *EditResult) SetRecords(recs []hexgrid.HexRecord) { m.Changed = messagesOf(recs) }

func (m *EditResult) Marshal() []byte {
	e := newEncoder()
	e.str(1, m.RequestID)
	e.boolean(2, m.Accepted)
	e.str(3, m.Reason)
	e.varint(4, uint64(m.MTime))
	encodeRecords(e, 5, m.Changed)
	return e.bytes()
}

func (m *EditResult) Unmarshal(data []byte) error {
	*m = EditResult{}
	d := newDecoder(data)
	for !d.done() {
		num, typ, err := d.tag()
		if err != nil {
			return err
		}
		switch num {
		case 1:
			if m.RequestID, err = d.str(num, typ); err != nil {
				return err
			}
		case 2:
			if m.Accepted, err = d.boolean(num, typ); err != nil {
				return err
			}
		case 3:
			if m.Reason, err = d.str(num, typ); err != nil {
				return err
			}
		case 4:
			v, err := d.varint(num, typ)
			if err != nil {
				return err
			}
			m.MTime = int64(v)
		case 5:
			if m.Changed, err = decodeRecord(d, num, typ, m.Changed); err != nil {
				return err
			}
		default:
			if err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

// ServerStatus é enviado ao conectar e quando o número de clientes muda.
type ServerStatus struct {
	SessionID string
	WorldName string
	Clients   int32
	MTime     int64
}

func (m *ServerStatus) Type() MessageType { return MsgServerStatus }

func (m *ServerStatus) Marshal() []byte {
	e := newEncoder()
	e.str(1, m.SessionID)
	e.str(2, m.WorldName)
	e.varint(3, uint64(m.Clients))
	e.varint(4, uint64(m.MTime))
	return e.bytes()
}

func (m *ServerStatus) Unmarshal(data []byte) error {
	*m = ServerStatus{}
	d := newDecoder(data)
	for !d.done() {
		num, typ, err := d.tag()
		if err != nil {
			return err
		}
		switch num {
		case 1:
			if m.SessionID, err = d.str(num, typ); err != nil {
				return err
			}
		case 2:
			if m.WorldName, err = d.str(num, typ); err != nil {
				return err
			}
		case 3:
			v, err := d.varint(num, typ)
			if err != nil {
				return err
			}
			m.Clients = int32(v)
		case 4:
			v, err := d.varint(num, typ)
			if err != nil {
				return err
			}
			m.MTime = int64(v)
		default:
			if err := d.skip(num, typ); err != nil {
				return err
			}
		}
	}
	return nil
}
