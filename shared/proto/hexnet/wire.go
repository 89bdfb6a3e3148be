// Package hexnet define o protocolo entre o servidor de edição e os clientes.
// As mensagens usam o formato wire do protobuf (campos numerados, proto3:
// valores zero não são serializados). Campos desconhecidos são ignorados.
package hexnet

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed indica bytes que não formam uma mensagem hexnet válida.
var ErrMalformed = errors.New("mensagem hexnet malformada")

// ---------- ENCODER ----------

type encoder struct {
	buf []byte
}

func newEncoder() *encoder {
	return &encoder{buf: make([]byte, 0, 64)}
}

func (e *encoder) bytes() []byte { return e.buf }

// varint codifica um campo varint; zero é omitido.
func (e *encoder) varint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
}

// sint codifica inteiros com sinal em zigzag (sint32/sint64).
func (e *encoder) sint(num protowire.Number, v int64) {
	e.varint(num, protowire.EncodeZigZag(v))
}

func (e *encoder) boolean(num protowire.Number, v bool) {
	e.varint(num, protowire.EncodeBool(v))
}

func (e *encoder) float(num protowire.Number, v float32) {
	if v == 0 {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.Fixed32Type)
	e.buf = protowire.AppendFixed32(e.buf, math.Float32bits(v))
}

func (e *encoder) str(num protowire.Number, s string) {
	if s == "" {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendString(e.buf, s)
}

// raw codifica bytes sempre, mesmo vazios (submensagens, payload).
func (e *encoder) raw(num protowire.Number, b []byte) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, b)
}

// packedSint codifica um repeated sint32 no formato packed.
func (e *encoder) packedSint(num protowire.Number, vs []int32) {
	if len(vs) == 0 {
		return
	}
	var inner []byte
	for _, v := range vs {
		inner = protowire.AppendVarint(inner, protowire.EncodeZigZag(int64(v)))
	}
	e.raw(num, inner)
}

// ---------- DECODER ----------

type decoder struct {
	buf []byte
}

func newDecoder(data []byte) *decoder {
	return &decoder{buf: data}
}

func (d *decoder) done() bool { return len(d.buf) == 0 }

func parseErr(n int) error {
	return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
}

func wrongType(num protowire.Number, typ protowire.Type) error {
	return fmt.Errorf("%w: campo %d com wire type %d inesperado", ErrMalformed, num, typ)
}

func (d *decoder) tag() (protowire.Number, protowire.Type, error) {
	num, typ, n := protowire.ConsumeTag(d.buf)
	if n < 0 {
		return 0, 0, parseErr(n)
	}
	d.buf = d.buf[n:]
	return num, typ, nil
}

func (d *decoder) varint(num protowire.Number, typ protowire.Type) (uint64, error) {
	if typ != protowire.VarintType {
		return 0, wrongType(num, typ)
	}
	v, n := protowire.ConsumeVarint(d.buf)
	if n < 0 {
		return 0, parseErr(n)
	}
	d.buf = d.buf[n:]
	return v, nil
}

func (d *decoder) sint32(num protowire.Number, typ protowire.Type) (int32, error) {
	v, err := d.varint(num, typ)
	return int32(protowire.DecodeZigZag(v)), err
}

func (d *decoder) boolean(num protowire.Number, typ protowire.Type) (bool, error) {
	v, err := d.varint(num, typ)
	return protowire.DecodeBool(v), err
}

func (d *decoder) float(num protowire.Number, typ protowire.Type) (float32, error) {
	if typ != protowire.Fixed32Type {
		return 0, wrongType(num, typ)
	}
	v, n := protowire.ConsumeFixed32(d.buf)
	if n < 0 {
		return 0, parseErr(n)
	}
	d.buf = d.buf[n:]
	return math.Float32frombits(v), nil
}

func (d *decoder) bytes(num protowire.Number, typ protowire.Type) ([]byte, error) {
	if typ != protowire.BytesType {
		return nil, wrongType(num, typ)
	}
	v, n := protowire.ConsumeBytes(d.buf)
	if n < 0 {
		return nil, parseErr(n)
	}
	d.buf = d.buf[n:]
	return v, nil
}

func (d *decoder) str(num protowire.Number, typ protowire.Type) (string, error) {
	b, err := d.bytes(num, typ)
	return string(b), err
}

// sint32s lê um repeated sint32, aceitando tanto a forma packed quanto a
// forma de um valor por tag.
func (d *decoder) sint32s(num protowire.Number, typ protowire.Type, dst []int32) ([]int32, error) {
	if typ == protowire.VarintType {
		v, err := d.sint32(num, typ)
		return append(dst, v), err
	}
	packed, err := d.bytes(num, typ)
	if err != nil {
		return dst, err
	}
	for len(packed) > 0 {
		v, n := protowire.ConsumeVarint(packed)
		if n < 0 {
			return dst, parseErr(n)
		}
		packed = packed[n:]
		dst = append(dst, int32(protowire.DecodeZigZag(v)))
	}
	return dst, nil
}

// skip descarta o valor de um campo desconhecido.
func (d *decoder) skip(num protowire.Number, typ protowire.Type) error {
	n := protowire.ConsumeFieldValue(num, typ, d.buf)
	if n < 0 {
		return parseErr(n)
	}
	d.buf = d.buf[n:]
	return nil
}
