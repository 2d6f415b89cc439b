package classic

import (
	"bytes"
	"testing"
)

func TestWriteStringPadsAndStripsTrailingSpace(t *testing.T) {
	var buf bytes.Buffer
	c := newCodec(&buf, &buf)

	if err := c.writeString("hello"); err != nil {
		t.Fatalf("writeString: %v", err)
	}
	if buf.Len() != stringFieldLen {
		t.Fatalf("wrote %d bytes, want %d", buf.Len(), stringFieldLen)
	}

	got, err := c.readString()
	if err != nil {
		t.Fatalf("readString: %v", err)
	}
	if got != "hello" {
		t.Fatalf("readString = %q, want %q", got, "hello")
	}
}

func TestWriteStringTooLong(t *testing.T) {
	var buf bytes.Buffer
	c := newCodec(&buf, &buf)

	long := bytes.Repeat([]byte{'a'}, 65)
	err := c.writeString(string(long))
	if !IsKind(err, KindStringTooLong) {
		t.Fatalf("writeString(65 bytes) error = %v, want KindStringTooLong", err)
	}
}

func TestWriteStringRejectsNonASCIIWithoutCP437(t *testing.T) {
	var buf bytes.Buffer
	c := newCodec(&buf, &buf)

	err := c.writeString("caf\xc3\xa9") // "café" in UTF-8, contains a byte > 127
	if !IsKind(err, KindEncodingError) {
		t.Fatalf("writeString(non-ASCII) error = %v, want KindEncodingError", err)
	}
}

func TestLocationWidthSwitchesWithExtEntityPositions(t *testing.T) {
	var buf bytes.Buffer
	c := newCodec(&buf, &buf)

	loc := Location{X: 1000000, Y: -5, Z: 42, Yaw: 10, Pitch: 20}
	c.locationWidth = widthInt
	if err := c.writeLocation(loc); err != nil {
		t.Fatalf("writeLocation: %v", err)
	}
	if buf.Len() != 3*4+2 {
		t.Fatalf("wrote %d bytes for int-width location, want %d", buf.Len(), 3*4+2)
	}

	got, err := c.readLocation()
	if err != nil {
		t.Fatalf("readLocation: %v", err)
	}
	if got != loc {
		t.Fatalf("readLocation = %+v, want %+v", got, loc)
	}
}

func TestLocationWidthShortByDefault(t *testing.T) {
	var buf bytes.Buffer
	c := newCodec(&buf, &buf)

	loc := Location{X: 100, Y: 200, Z: -300, Yaw: 1, Pitch: 2}
	if err := c.writeLocation(loc); err != nil {
		t.Fatalf("writeLocation: %v", err)
	}
	if buf.Len() != 3*2+2 {
		t.Fatalf("wrote %d bytes for short-width location, want %d", buf.Len(), 3*2+2)
	}
}

func TestPositionAlwaysShort(t *testing.T) {
	var buf bytes.Buffer
	c := newCodec(&buf, &buf)
	c.locationWidth = widthInt // must not affect Position encoding

	pos := Position{X: 1, Y: 2, Z: 3}
	if err := c.writePosition(pos); err != nil {
		t.Fatalf("writePosition: %v", err)
	}
	if buf.Len() != 6 {
		t.Fatalf("wrote %d bytes for position, want 6", buf.Len())
	}

	got, err := c.readPosition()
	if err != nil {
		t.Fatalf("readPosition: %v", err)
	}
	if got != pos {
		t.Fatalf("readPosition = %+v, want %+v", got, pos)
	}
}

func TestReadExactOnShortReadIsConnectionClosed(t *testing.T) {
	buf := bytes.NewBuffer([]byte{1, 2})
	c := newCodec(buf, buf)

	_, err := c.readUint32()
	if !IsKind(err, KindConnectionClosed) {
		t.Fatalf("readUint32 on short stream error = %v, want KindConnectionClosed", err)
	}
}

func TestRstripSpaceOnlyStripsASCIISpace(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hello   ", "hello"},
		{"   ", ""},
		{"a b c", "a b c"},
		{"", ""},
	}
	for _, tc := range cases {
		got := string(rstripSpace([]byte(tc.in)))
		if got != tc.want {
			t.Fatalf("rstripSpace(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
