// Package sedap encodes incidents into the semicolon-delimited SEDAP protocol
// consumed by the downstream battle management system. Two message kinds are
// produced: CONTACT (a geolocated entity report) and TEXT (a free-text alert).
//
// Encoding is pure apart from two process-scoped 7-bit sequence counters, one
// per message kind. The codec itself does not enforce field-length or range
// limits; Validate exists as the separate offline checker.
package sedap

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Classification markings accepted by the receiving system.
const ValidClassifications = "PURCST"

// TextType selects the TEXT message category.
type TextType int

const (
	TextAlert   TextType = 1
	TextWarning TextType = 2
	TextNotice  TextType = 3
	TextChat    TextType = 4
)

// SequenceCounter is a monotonically increasing 7-bit message counter that
// wraps at 128. It is safe for concurrent use and resets only on process
// restart.
type SequenceCounter struct {
	n atomic.Uint32
}

// Next returns the current counter value and advances it.
func (c *SequenceCounter) Next() uint32 {
	return (c.n.Add(1) - 1) & 0x7F
}

// Counters holds the per-message-kind sequence counters. One Counters value
// is shared by every codec in the process so numbering stays monotonic across
// integrations.
type Counters struct {
	Contact SequenceCounter
	Text    SequenceCounter
}

// Codec formats SEDAP messages for one sender identity and classification.
type Codec struct {
	senderID       string
	classification string
	counters       *Counters
	// now is swappable for tests.
	now func() time.Time
}

// NewCodec returns a codec using the given shared counters. An empty
// classification defaults to U (unclassified).
func NewCodec(senderID, classification string, counters *Counters) *Codec {
	if classification == "" {
		classification = "U"
	}
	return &Codec{
		senderID:       senderID,
		classification: classification,
		counters:       counters,
		now:            time.Now,
	}
}

// ContactIncident is the subset of incident data a CONTACT message carries.
// It is a plain value so the codec stays independent of the incident model.
type ContactIncident struct {
	Code          string // mandatory human-readable incident code
	Title         string
	Description   string
	Category      string
	Priority      string
	ReporterPhone string
	Latitude      *float64
	Longitude     *float64
	Altitude      *float64
	Heading       *float64
	Transcript    string
	CreatedAt     time.Time
}

// FormatContact renders a CONTACT message: the CONTACT keyword plus 29
// semicolon-delimited fields, terminated by CRLF. The optional image is
// Base64-encoded into the Image field.
func (c *Codec) FormatContact(inc ContactIncident, image []byte) string {
	fields := make([]string, 0, 30)
	fields = append(fields,
		"CONTACT",
		strconv.FormatUint(uint64(c.counters.Contact.Next()), 10),
		hexMillis(c.now()),
		c.sender(inc.ReporterPhone),
		c.classification,
		"", // Acknowledgement
		"", // MAC: reserved, signing is not implemented
		inc.Code,
		"FALSE", // DeleteFlag: new contacts are never deletions
		coord(inc.Latitude),
		coord(inc.Longitude),
		coord(inc.Altitude),
		"", // RelX
		"", // RelY
		"", // RelZ
		"", // Speed
		"", // Course
		coord(inc.Heading),
		"", // Roll
		"", // Pitch
		"", // Width
		"", // Length
		"", // Height
		CategoryName(inc.Category),
		"M", // Source: manual/app submission
		CategorySIDC(inc.Category),
		"", // MMSI
		"", // ICAO
		encodeImage(image),
		encodeComment(inc),
	)
	return strings.Join(fields, ";") + "\r\n"
}

// FormatText renders a TEXT message: the TEXT keyword plus 10 fields,
// terminated by CRLF. The text body is double-quote wrapped and sent with
// Encoding NONE.
func (c *Codec) FormatText(message string, t TextType) string {
	fields := []string{
		"TEXT",
		strconv.FormatUint(uint64(c.counters.Text.Next()), 10),
		hexMillis(c.now()),
		c.senderID,
		c.classification,
		"", // Acknowledgement
		"", // MAC
		"", // Recipient: broadcast
		strconv.Itoa(int(t)),
		"NONE",
		`"` + message + `"`,
	}
	return strings.Join(fields, ";") + "\r\n"
}

func (c *Codec) sender(reporterPhone string) string {
	if reporterPhone != "" {
		return reporterPhone
	}
	return c.senderID
}

// hexMillis renders Unix time in milliseconds as uppercase hexadecimal.
func hexMillis(t time.Time) string {
	return strings.ToUpper(strconv.FormatInt(t.UnixMilli(), 16))
}

func coord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func encodeImage(image []byte) string {
	if len(image) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(image)
}

// encodeComment assembles the pipe-joined plain-text summary and Base64
// encodes it. All available parts are included regardless of how the incident
// was classified.
func encodeComment(inc ContactIncident) string {
	parts := make([]string, 0, 6)
	if inc.Priority != "" {
		parts = append(parts, "Priority: "+inc.Priority)
	}
	if inc.Category != "" {
		parts = append(parts, "Category: "+inc.Category)
	}
	if inc.Description != "" {
		parts = append(parts, inc.Description)
	}
	if inc.Transcript != "" {
		parts = append(parts, "Voice: "+inc.Transcript)
	}
	if inc.Title != "" && inc.Title != inc.Description {
		parts = append(parts, "Title: "+inc.Title)
	}
	if !inc.CreatedAt.IsZero() {
		parts = append(parts, "Created: "+inc.CreatedAt.UTC().Format(time.RFC3339))
	}
	if len(parts) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(strings.Join(parts, "|")))
}

// ValidClassification reports whether the marking is one of P,U,R,C,S,T.
func ValidClassification(s string) bool {
	return len(s) == 1 && strings.Contains(ValidClassifications, s)
}

// TextTypeName returns the human-readable name of a TEXT message type.
func TextTypeName(t TextType) string {
	switch t {
	case TextAlert:
		return "Alert"
	case TextWarning:
		return "Warning"
	case TextNotice:
		return "Notice"
	case TextChat:
		return "Chat"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}
