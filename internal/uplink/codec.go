// Package uplink decodes the compact binary wire format used by embedded
// field devices on constrained radio links. Decoding is pure and synchronous;
// the resulting Draft is handed to the ingestion layer which turns it into a
// normalized incident.
package uplink

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/BATSNet/sims-sub000/internal/incident"
)

// FormatVersion is the only supported uplink format version.
const FormatVersion = 0x01

// minPayloadLen covers the fixed header through the description length byte.
const minPayloadLen = 19

// Flag bits in the header flags byte.
const (
	flagHasImage = 1 << 0
	flagHasAudio = 1 << 1
	// bits 2-3 carry the priority
	flagRawPCM = 1 << 4
)

// devicePrefix is prepended to the hex-encoded MAC to form the device ID.
const devicePrefix = "uplink-"

var (
	ErrPayloadTooShort = errors.New("uplink payload too short: need at least 19 bytes")
	ErrVersionMismatch = errors.New("unsupported uplink format version")
)

// TruncatedFieldError reports a length-prefixed field whose declared length
// exceeds the remaining buffer.
type TruncatedFieldError struct {
	Field     string
	Declared  int
	Available int
}

func (e *TruncatedFieldError) Error() string {
	return fmt.Sprintf("uplink field %s truncated: declared %d bytes, %d available",
		e.Field, e.Declared, e.Available)
}

// Draft is the ephemeral result of decoding one uplink payload. It is not
// persisted as-is; the ingestion layer converts it into an incident-creation
// request.
type Draft struct {
	DeviceID    string
	MAC         string
	Priority    incident.Priority
	Latitude    float64
	Longitude   float64
	Altitude    int16
	Description string
	Image       []byte
	Audio       []byte
	// RawPCM marks the audio bytes as unwrapped 16-bit/16kHz mono PCM that
	// must be WAV-wrapped before transcription.
	RawPCM bool
}

// Decode parses a binary uplink payload.
//
// Layout (little-endian):
//
//	0      u8     format version (0x01)
//	1      u8     flags: bit0 image, bit1 audio, bits2-3 priority, bit4 raw PCM
//	2-5    i32    latitude * 1e7
//	6-9    i32    longitude * 1e7
//	10-11  i16    altitude (m)
//	12-17  6B     device MAC
//	18     u8     description length N
//	19..   N      description (UTF-8)
//	+2     u16    image length (section optional)
//	...           image bytes
//	+4     u32    audio length (section optional)
//	...           audio bytes
//
// The description length is mandatory; the image and audio sections are
// best-effort trailing data. When fewer than the section's header bytes
// remain, the payload is simply absent. A declared length overrunning the
// buffer is a hard error.
func Decode(data []byte) (*Draft, error) {
	if len(data) < minPayloadLen {
		return nil, ErrPayloadTooShort
	}
	if data[0] != FormatVersion {
		return nil, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrVersionMismatch, data[0], FormatVersion)
	}

	flags := data[1]
	lat := int32(binary.LittleEndian.Uint32(data[2:6]))
	lon := int32(binary.LittleEndian.Uint32(data[6:10]))
	alt := int16(binary.LittleEndian.Uint16(data[10:12]))
	mac := hex.EncodeToString(data[12:18])

	d := &Draft{
		DeviceID:  devicePrefix + mac,
		MAC:       mac,
		Priority:  priorityFromFlags(flags),
		Latitude:  float64(lat) / 1e7,
		Longitude: float64(lon) / 1e7,
		Altitude:  alt,
		RawPCM:    flags&flagRawPCM != 0,
	}

	descLen := int(data[18])
	off := minPayloadLen
	if off+descLen > len(data) {
		return nil, &TruncatedFieldError{Field: "description", Declared: descLen, Available: len(data) - off}
	}
	d.Description = string(data[off : off+descLen])
	off += descLen

	// Image section: u16 length header, best-effort.
	if len(data)-off >= 2 {
		imgLen := int(binary.LittleEndian.Uint16(data[off : off+2]))
		off += 2
		if imgLen > 0 {
			if off+imgLen > len(data) {
				return nil, &TruncatedFieldError{Field: "image", Declared: imgLen, Available: len(data) - off}
			}
			d.Image = data[off : off+imgLen]
			off += imgLen
		}
	}

	// Audio section: u32 length header, best-effort.
	if len(data)-off >= 4 {
		audioLen := int(binary.LittleEndian.Uint32(data[off : off+4]))
		off += 4
		if audioLen > 0 {
			if off+audioLen > len(data) {
				return nil, &TruncatedFieldError{Field: "audio", Declared: audioLen, Available: len(data) - off}
			}
			d.Audio = data[off : off+audioLen]
		}
	}

	return d, nil
}

// priorityFromFlags maps the 2-bit priority field, defaulting to medium for
// out-of-range values.
func priorityFromFlags(flags byte) incident.Priority {
	switch (flags >> 2) & 0x03 {
	case 0:
		return incident.PriorityCritical
	case 1:
		return incident.PriorityHigh
	case 2:
		return incident.PriorityMedium
	case 3:
		return incident.PriorityLow
	}
	return incident.PriorityMedium
}

// Incident converts the draft into a normalized incident with the given id
// and code. The placeholder description is used when the device sent none; it
// is later replaced by the audio transcript when one is produced.
func (d *Draft) Incident(id, code string) *incident.Incident {
	now := time.Now().UTC()
	desc := d.Description
	if desc == "" {
		desc = "Uplink report from device " + d.DeviceID
	}
	lat, lon := d.Latitude, d.Longitude
	altitude := float64(d.Altitude)
	return &incident.Incident{
		ID:          id,
		Code:        code,
		Title:       desc,
		Description: desc,
		Category:    incident.CategoryUnclassified,
		Priority:    d.Priority,
		Status:      incident.StatusOpen,
		Latitude:    &lat,
		Longitude:   &lon,
		Altitude:    &altitude,
		ReporterID:  d.DeviceID,
		Image:       d.Image,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
