package classic

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"io"
)

// levelChunkSize is the fixed payload width of a level-chunk frame.
const levelChunkSize = 1024

// transmitLevel writes the full start-level / level-chunk* / finish-level
// sequence for data, compressing it with a fast deflate preset behind a
// 4-byte big-endian length prefix, as described in §4.4.
func transmitLevel(c *codec, writeOpcode func(Opcode) error, spawn Position, data []byte) error {
	if err := writeOpcode(OpStartLevel); err != nil {
		return err
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))

	var compressed bytes.Buffer
	fw, err := flate.NewWriter(&compressed, flate.BestSpeed)
	if err != nil {
		return wrapErr(KindConnectionClosed, "deflate writer init failed", err)
	}
	if _, err := fw.Write(header[:]); err != nil {
		return wrapErr(KindConnectionClosed, "deflate write failed", err)
	}
	if _, err := fw.Write(data); err != nil {
		return wrapErr(KindConnectionClosed, "deflate write failed", err)
	}
	if err := fw.Close(); err != nil {
		return wrapErr(KindConnectionClosed, "deflate close failed", err)
	}

	payload := compressed.Bytes()
	chunks := [][]byte{payload}
	if len(payload) > levelChunkSize {
		chunks = nil
		for off := 0; off < len(payload); off += levelChunkSize {
			end := off + levelChunkSize
			if end > len(payload) {
				end = len(payload)
			}
			chunks = append(chunks, payload[off:end])
		}
	}
	for _, chunk := range chunks {
		if err := writeOpcode(OpLevelChunk); err != nil {
			return err
		}
		if err := c.writeShort(int16(len(chunk))); err != nil {
			return err
		}
		buf := make([]byte, levelChunkSize)
		copy(buf, chunk)
		if err := c.write(buf); err != nil {
			return err
		}
		if err := c.writeByte(0); err != nil {
			return err
		}
	}

	if err := writeOpcode(OpFinishLevel); err != nil {
		return err
	}
	return c.writePosition(spawn)
}

// levelReassembler accumulates level-chunk payloads between a start-level
// and finish-level frame. The buffer is non-empty only while receiving is
// true, matching the invariant in spec §3.
type levelReassembler struct {
	receiving bool
	buf       []byte
}

func (r *levelReassembler) start() {
	r.receiving = true
	r.buf = r.buf[:0]
}

func (r *levelReassembler) chunk(length int16, payload []byte) {
	if !r.receiving {
		return
	}
	n := int(length)
	if n > len(payload) {
		n = len(payload)
	}
	if n < 0 {
		n = 0
	}
	r.buf = append(r.buf, payload[:n]...)
}

// finish decompresses the accumulated buffer, strips the leading 4-byte
// length header, and clears reassembly state. The returned data slice is
// the level payload the server originally supplied to send_level.
func (r *levelReassembler) finish() ([]byte, error) {
	wasReceiving := r.receiving
	data := r.buf
	r.receiving = false
	r.buf = nil
	if !wasReceiving {
		return nil, nil
	}

	fr := flate.NewReader(bytes.NewReader(data))
	defer fr.Close()
	decompressed, err := io.ReadAll(fr)
	if err != nil {
		return nil, wrapErr(KindProtocolViolation, "level payload did not inflate", err)
	}
	if len(decompressed) < 4 {
		return nil, newErr(KindProtocolViolation, "level payload shorter than its length header")
	}
	return decompressed[4:], nil
}
