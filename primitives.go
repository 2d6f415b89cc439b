package classic

import (
	"errors"
	"io"

	"go.uber.org/atomic"
	"golang.org/x/text/encoding/charmap"
)

// textEncoding is the session's current string encoding. It starts as
// ASCII and switches to CP437 iff FullCP437 negotiates.
type textEncoding int

const (
	encodingASCII textEncoding = iota
	encodingCP437
)

// locationWidth is the per-axis width used by Location. It starts short
// and switches to int iff ExtEntityPositions negotiates.
type locationWidth int

const (
	widthShort locationWidth = iota
	widthInt
)

// stringFieldLen is the wire width of every string field: 64 bytes,
// right-padded with ASCII space.
const stringFieldLen = 64

// Location is a fractional-space coordinate (1/32 block per unit) plus
// yaw/pitch, as carried by absolute/relative-location frames.
type Location struct {
	X, Y, Z    int32
	Yaw, Pitch uint8
}

// Position is a block-space coordinate (1 block per unit), always encoded
// as three unsigned 16-bit big-endian integers regardless of negotiated
// extensions.
type Position struct {
	X, Y, Z uint16
}

// codec reads and writes the protocol's primitive scalars and strings
// against a byte-oriented full-duplex stream. It owns the mutable
// post-negotiation state (text encoding, location width) shared by every
// frame the session exchanges.
type codec struct {
	r io.Reader
	w io.Writer

	textEncoding  textEncoding
	locationWidth locationWidth

	bytesIn  *atomic.Uint64
	bytesOut *atomic.Uint64
}

func newCodec(r io.Reader, w io.Writer) *codec {
	return &codec{
		r:        r,
		w:        w,
		bytesIn:  atomic.NewUint64(0),
		bytesOut: atomic.NewUint64(0),
	}
}

// readExact reads exactly len(buf) bytes, translating a short read into
// KindConnectionClosed: every read in this codec must see a complete
// field or none at all.
func (c *codec) readExact(buf []byte) error {
	_, err := io.ReadFull(c.r, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return wrapErr(KindConnectionClosed, "stream ended mid-frame", err)
		}
		return wrapErr(KindConnectionClosed, "read failed", err)
	}
	c.bytesIn.Add(uint64(len(buf)))
	return nil
}

func (c *codec) write(buf []byte) error {
	n, err := c.w.Write(buf)
	c.bytesOut.Add(uint64(n))
	if err != nil {
		return wrapErr(KindConnectionClosed, "write failed", err)
	}
	return nil
}

// bytesInCount and bytesOutCount report the cumulative bytes read/written
// on this codec, fed to the session registry on every dispatch.
func (c *codec) bytesInCount() uint64  { return c.bytesIn.Load() }
func (c *codec) bytesOutCount() uint64 { return c.bytesOut.Load() }

func (c *codec) readByte() (uint8, error) {
	var buf [1]byte
	if err := c.readExact(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (c *codec) writeByte(v uint8) error {
	return c.write([]byte{v})
}

func (c *codec) readShort() (int16, error) {
	var buf [2]byte
	if err := c.readExact(buf[:]); err != nil {
		return 0, err
	}
	return int16(uint16(buf[0])<<8 | uint16(buf[1])), nil
}

func (c *codec) writeShort(v int16) error {
	u := uint16(v)
	return c.write([]byte{byte(u >> 8), byte(u)})
}

func (c *codec) readUint32() (uint32, error) {
	var buf [4]byte
	if err := c.readExact(buf[:]); err != nil {
		return 0, err
	}
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]), nil
}

func (c *codec) writeUint32(v uint32) error {
	return c.write([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

func (c *codec) readInt32() (int32, error) {
	u, err := c.readUint32()
	return int32(u), err
}

func (c *codec) writeInt32(v int32) error {
	return c.writeUint32(uint32(v))
}

func (c *codec) readUint16() (uint16, error) {
	var buf [2]byte
	if err := c.readExact(buf[:]); err != nil {
		return 0, err
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

func (c *codec) writeUint16(v uint16) error {
	return c.write([]byte{byte(v >> 8), byte(v)})
}

// readRawStringField reads the raw 64-byte wire field without decoding
// it, for callers that must accumulate several fragments (chat
// reassembly) before decoding the concatenated bytes as one string.
func (c *codec) readRawStringField() ([]byte, error) {
	buf := make([]byte, stringFieldLen)
	if err := c.readExact(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// decodeStringBytes decodes buf under the current text encoding,
// stripping trailing ASCII spaces only.
func (c *codec) decodeStringBytes(buf []byte) (string, error) {
	trimmed := rstripSpace(buf)
	switch c.textEncoding {
	case encodingCP437:
		out, err := charmap.CodePage437.NewDecoder().Bytes(trimmed)
		if err != nil {
			return "", wrapErr(KindEncodingError, "cp437 decode failed", err)
		}
		return string(out), nil
	default:
		return string(trimmed), nil
	}
}

// readString reads the 64-byte wire field and decodes it under the
// current text encoding, stripping trailing ASCII spaces only.
func (c *codec) readString() (string, error) {
	buf, err := c.readRawStringField()
	if err != nil {
		return "", err
	}
	return c.decodeStringBytes(buf)
}

// writeString encodes x under the current text encoding and right-pads
// it to exactly 64 bytes. It fails with KindStringTooLong if the encoded
// form exceeds 64 bytes.
func (c *codec) writeString(x string) error {
	var encoded []byte
	switch c.textEncoding {
	case encodingCP437:
		out, err := charmap.CodePage437.NewEncoder().Bytes([]byte(x))
		if err != nil {
			return wrapErr(KindEncodingError, "cp437 encode failed", err)
		}
		encoded = out
	default:
		for i := 0; i < len(x); i++ {
			if x[i] > 127 {
				return newErr(KindEncodingError, "non-ASCII byte in ASCII-encoded string")
			}
		}
		encoded = []byte(x)
	}
	if len(encoded) > stringFieldLen {
		return newErr(KindStringTooLong, "string exceeds 64 encoded bytes")
	}
	buf := make([]byte, stringFieldLen)
	copy(buf, encoded)
	for i := len(encoded); i < stringFieldLen; i++ {
		buf[i] = ' '
	}
	return c.write(buf)
}

func rstripSpace(buf []byte) []byte {
	end := len(buf)
	for end > 0 && buf[end-1] == ' ' {
		end--
	}
	return buf[:end]
}

// readLocation reads a fractional-space location at the current
// locationWidth: three signed axis components (16-bit short or 32-bit
// int) followed by one-byte yaw and pitch.
func (c *codec) readLocation() (Location, error) {
	var loc Location
	if c.locationWidth == widthInt {
		x, err := c.readInt32()
		if err != nil {
			return loc, err
		}
		y, err := c.readInt32()
		if err != nil {
			return loc, err
		}
		z, err := c.readInt32()
		if err != nil {
			return loc, err
		}
		loc.X, loc.Y, loc.Z = x, y, z
	} else {
		x, err := c.readShort()
		if err != nil {
			return loc, err
		}
		y, err := c.readShort()
		if err != nil {
			return loc, err
		}
		z, err := c.readShort()
		if err != nil {
			return loc, err
		}
		loc.X, loc.Y, loc.Z = int32(x), int32(y), int32(z)
	}
	yaw, err := c.readByte()
	if err != nil {
		return loc, err
	}
	pitch, err := c.readByte()
	if err != nil {
		return loc, err
	}
	loc.Yaw, loc.Pitch = yaw, pitch
	return loc, nil
}

// writeLocation writes loc at the current locationWidth. A location is
// never partially re-encoded mid-frame: the width is read once at the
// top of the call.
func (c *codec) writeLocation(loc Location) error {
	width := c.locationWidth
	if width == widthInt {
		if err := c.writeInt32(loc.X); err != nil {
			return err
		}
		if err := c.writeInt32(loc.Y); err != nil {
			return err
		}
		if err := c.writeInt32(loc.Z); err != nil {
			return err
		}
	} else {
		if err := c.writeShort(int16(loc.X)); err != nil {
			return err
		}
		if err := c.writeShort(int16(loc.Y)); err != nil {
			return err
		}
		if err := c.writeShort(int16(loc.Z)); err != nil {
			return err
		}
	}
	if err := c.writeByte(loc.Yaw); err != nil {
		return err
	}
	return c.writeByte(loc.Pitch)
}

// readPosition reads a block-space position: always three unsigned
// 16-bit big-endian integers, unaffected by ExtEntityPositions.
func (c *codec) readPosition() (Position, error) {
	var pos Position
	x, err := c.readUint16()
	if err != nil {
		return pos, err
	}
	y, err := c.readUint16()
	if err != nil {
		return pos, err
	}
	z, err := c.readUint16()
	if err != nil {
		return pos, err
	}
	pos.X, pos.Y, pos.Z = x, y, z
	return pos, nil
}

func (c *codec) writePosition(pos Position) error {
	if err := c.writeUint16(pos.X); err != nil {
		return err
	}
	if err := c.writeUint16(pos.Y); err != nil {
		return err
	}
	return c.writeUint16(pos.Z)
}
