package sedap

import (
	"encoding/base64"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(senderID string) *Codec {
	c := NewCodec(senderID, "U", &Counters{})
	c.now = func() time.Time { return time.UnixMilli(0xABC) }
	return c
}

func splitContact(t *testing.T, line string) []string {
	t.Helper()
	require.True(t, strings.HasSuffix(line, "\r\n"), "CONTACT must end with CRLF")
	return strings.Split(strings.TrimSuffix(line, "\r\n"), ";")
}

func TestSequenceCounterWrapsAt128(t *testing.T) {
	var c SequenceCounter
	for i := 0; i < 128; i++ {
		assert.Equal(t, uint32(i), c.Next())
	}
	assert.Equal(t, uint32(0), c.Next(), "counter wraps after 127")
	assert.Equal(t, uint32(1), c.Next())
}

func TestCountersIndependent(t *testing.T) {
	c := newTestCodec("BASE-1")
	lat, lon := 52.52, 13.405
	inc := ContactIncident{Code: "INC-2026-0001", Latitude: &lat, Longitude: &lon}

	contact := splitContact(t, c.FormatContact(inc, nil))
	assert.Equal(t, "0", contact[1])
	contact = splitContact(t, c.FormatContact(inc, nil))
	assert.Equal(t, "1", contact[1])

	// TEXT numbering is independent from CONTACT numbering.
	text := strings.Split(strings.TrimSuffix(c.FormatText("hi", TextNotice), "\r\n"), ";")
	assert.Equal(t, "0", text[1])
}

func TestFormatContactFieldLayout(t *testing.T) {
	c := newTestCodec("BASE-1")
	lat, lon, alt, heading := 52.52, 13.405, 34.0, 270.0
	fields := splitContact(t, c.FormatContact(ContactIncident{
		Code:        "INC-2026-0042",
		Title:       "Suspicious drone",
		Description: "Quadcopter over perimeter",
		Category:    "drone_detection",
		Priority:    "high",
		Latitude:    &lat,
		Longitude:   &lon,
		Altitude:    &alt,
		Heading:     &heading,
	}, nil))

	require.Len(t, fields, 30, "CONTACT keyword plus 29 fields")
	assert.Equal(t, "CONTACT", fields[0])
	assert.Equal(t, "0", fields[1])
	assert.Equal(t, "ABC", fields[2], "time is uppercase hex Unix millis")
	assert.Equal(t, "BASE-1", fields[3])
	assert.Equal(t, "U", fields[4])
	assert.Empty(t, fields[5], "acknowledgement")
	assert.Empty(t, fields[6], "MAC")
	assert.Equal(t, "INC-2026-0042", fields[7])
	assert.Equal(t, "FALSE", fields[8])
	assert.Equal(t, "52.52", fields[9])
	assert.Equal(t, "13.405", fields[10])
	assert.Equal(t, "34", fields[11])
	assert.Equal(t, "270", fields[17])
	assert.Equal(t, "Suspected Drone", fields[23])
	assert.Equal(t, "M", fields[24])
	assert.Equal(t, "SUAPMFQ--------", fields[25])
	assert.Empty(t, fields[28], "no image")
}

func TestFormatContactSenderFallback(t *testing.T) {
	c := newTestCodec("BASE-1")

	fields := splitContact(t, c.FormatContact(ContactIncident{Code: "X", ReporterPhone: "+4915112345678"}, nil))
	assert.Equal(t, "+4915112345678", fields[3])

	fields = splitContact(t, c.FormatContact(ContactIncident{Code: "X"}, nil))
	assert.Equal(t, "BASE-1", fields[3])
}

func TestFormatContactMissingPosition(t *testing.T) {
	c := newTestCodec("BASE-1")
	fields := splitContact(t, c.FormatContact(ContactIncident{Code: "X"}, nil))
	assert.Empty(t, fields[9])
	assert.Empty(t, fields[10])
	assert.Empty(t, fields[11])
	assert.Empty(t, fields[17])
}

func TestFormatContactUnknownCategory(t *testing.T) {
	c := newTestCodec("BASE-1")
	fields := splitContact(t, c.FormatContact(ContactIncident{Code: "X", Category: "volcano"}, nil))
	assert.Equal(t, "Unclassified Incident", fields[23])
	assert.Equal(t, "SUGP-----------", fields[25])
	assert.Len(t, fields[25], 15)
}

func TestFormatContactImage(t *testing.T) {
	c := newTestCodec("BASE-1")
	img := []byte{0xFF, 0xD8, 0x00, 0x10}
	fields := splitContact(t, c.FormatContact(ContactIncident{Code: "X"}, img))
	decoded, err := base64.StdEncoding.DecodeString(fields[28])
	require.NoError(t, err)
	assert.Equal(t, img, decoded)
}

func TestFormatContactComment(t *testing.T) {
	c := newTestCodec("BASE-1")
	created := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	fields := splitContact(t, c.FormatContact(ContactIncident{
		Code:        "X",
		Title:       "Perimeter breach",
		Description: "Fence cut near gate 3",
		Category:    "security",
		Priority:    "high",
		Transcript:  "two persons heading north",
		CreatedAt:   created,
	}, nil))

	decoded, err := base64.StdEncoding.DecodeString(fields[29])
	require.NoError(t, err)
	comment := string(decoded)
	parts := strings.Split(comment, "|")
	assert.Equal(t, "Priority: high", parts[0])
	assert.Equal(t, "Category: security", parts[1])
	assert.Contains(t, comment, "Fence cut near gate 3")
	assert.Contains(t, comment, "Voice: two persons heading north")
	assert.Contains(t, comment, "Title: Perimeter breach")
	assert.Contains(t, comment, "Created: 2026-08-30T12:00:00Z")
}

func TestFormatContactSemicolonCount(t *testing.T) {
	// An empty incident must still render every delimiter so field positions
	// stay fixed for the receiver.
	c := newTestCodec("S")
	line := c.FormatContact(ContactIncident{}, nil)
	assert.Equal(t, 29, strings.Count(line, ";"))
}

func TestFormatText(t *testing.T) {
	c := newTestCodec("BASE-1")
	line := c.FormatText("critical incident INC-2026-0042 reported", TextAlert)
	require.True(t, strings.HasSuffix(line, "\r\n"))
	fields := strings.Split(strings.TrimSuffix(line, "\r\n"), ";")

	require.Len(t, fields, 11, "TEXT keyword plus 10 fields")
	assert.Equal(t, "TEXT", fields[0])
	assert.Equal(t, "0", fields[1])
	assert.Equal(t, "ABC", fields[2])
	assert.Equal(t, "BASE-1", fields[3])
	assert.Equal(t, "U", fields[4])
	assert.Empty(t, fields[7], "broadcast recipient")
	assert.Equal(t, strconv.Itoa(int(TextAlert)), fields[8])
	assert.Equal(t, "NONE", fields[9])
	assert.Equal(t, `"critical incident INC-2026-0042 reported"`, fields[10])
}

func TestHexMillisUppercase(t *testing.T) {
	assert.Equal(t, "1000", hexMillis(time.UnixMilli(4096)))
	assert.Equal(t, "ABC", hexMillis(time.UnixMilli(2748)))
}

func TestValidClassification(t *testing.T) {
	for _, s := range []string{"P", "U", "R", "C", "S", "T"} {
		assert.True(t, ValidClassification(s), s)
	}
	assert.False(t, ValidClassification("X"))
	assert.False(t, ValidClassification(""))
	assert.False(t, ValidClassification("UU"))
}

func TestNewCodecDefaultsClassification(t *testing.T) {
	c := NewCodec("S", "", &Counters{})
	assert.Equal(t, "U", c.classification)
}

func TestTextTypeName(t *testing.T) {
	assert.Equal(t, "Alert", TextTypeName(TextAlert))
	assert.Equal(t, "Chat", TextTypeName(TextChat))
	assert.Contains(t, TextTypeName(TextType(9)), "UNKNOWN")
}
