package classic

import (
	"bytes"
	"testing"
)

func TestTransmitLevelRoundTripsSmallPayload(t *testing.T) {
	var buf bytes.Buffer
	c := newCodec(&buf, &buf)

	data := bytes.Repeat([]byte{0x07}, 500)
	writeOpcode := func(op Opcode) error { return c.writeByte(byte(op)) }

	if err := transmitLevel(c, writeOpcode, Position{X: 1, Y: 2, Z: 3}, data); err != nil {
		t.Fatalf("transmitLevel: %v", err)
	}

	var r levelReassembler
	for {
		op, err := c.readByte()
		if err != nil {
			t.Fatalf("readByte: %v", err)
		}
		switch Opcode(op) {
		case OpStartLevel:
			r.start()
		case OpLevelChunk:
			length, err := c.readShort()
			if err != nil {
				t.Fatalf("readShort: %v", err)
			}
			var chunk [levelChunkSize]byte
			if err := c.readExact(chunk[:]); err != nil {
				t.Fatalf("readExact: %v", err)
			}
			if _, err := c.readByte(); err != nil {
				t.Fatalf("readByte (percent): %v", err)
			}
			r.chunk(length, chunk[:])
		case OpFinishLevel:
			spawn, err := c.readPosition()
			if err != nil {
				t.Fatalf("readPosition: %v", err)
			}
			if spawn != (Position{X: 1, Y: 2, Z: 3}) {
				t.Fatalf("spawn = %+v, want {1 2 3}", spawn)
			}
			got, err := r.finish()
			if err != nil {
				t.Fatalf("finish: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("reassembled %d bytes, want %d matching bytes", len(got), len(data))
			}
			return
		default:
			t.Fatalf("unexpected opcode %#x", op)
		}
	}
}

func TestTransmitLevelSpansMultipleChunks(t *testing.T) {
	var buf bytes.Buffer
	c := newCodec(&buf, &buf)

	// Large enough, even after compression, to require more than one
	// level-chunk frame: xorshift pseudo-random bytes resist deflate.
	data := make([]byte, levelChunkSize*3)
	x := uint32(2463534242)
	for i := range data {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		data[i] = byte(x)
	}
	writeOpcode := func(op Opcode) error { return c.writeByte(byte(op)) }

	if err := transmitLevel(c, writeOpcode, Position{}, data); err != nil {
		t.Fatalf("transmitLevel: %v", err)
	}

	var r levelReassembler
	chunkCount := 0
	for {
		op, err := c.readByte()
		if err != nil {
			t.Fatalf("readByte: %v", err)
		}
		switch Opcode(op) {
		case OpStartLevel:
			r.start()
		case OpLevelChunk:
			chunkCount++
			length, err := c.readShort()
			if err != nil {
				t.Fatalf("readShort: %v", err)
			}
			var chunk [levelChunkSize]byte
			if err := c.readExact(chunk[:]); err != nil {
				t.Fatalf("readExact: %v", err)
			}
			if _, err := c.readByte(); err != nil {
				t.Fatalf("readByte (percent): %v", err)
			}
			r.chunk(length, chunk[:])
		case OpFinishLevel:
			if _, err := c.readPosition(); err != nil {
				t.Fatalf("readPosition: %v", err)
			}
			got, err := r.finish()
			if err != nil {
				t.Fatalf("finish: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Fatal("reassembled payload does not match original")
			}
			if chunkCount < 2 {
				t.Fatalf("expected more than one level-chunk frame, got %d", chunkCount)
			}
			return
		default:
			t.Fatalf("unexpected opcode %#x", op)
		}
	}
}

func TestLevelReassemblerFinishWithoutStartIsNoop(t *testing.T) {
	var r levelReassembler
	data, err := r.finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if data != nil {
		t.Fatalf("finish() without start() = %v, want nil", data)
	}
}
