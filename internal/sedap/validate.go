package sedap

import (
	"fmt"
	"strconv"
	"strings"
)

// Offline message checker. The codec intentionally sends unvalidated (the
// receiving system is the authority on what it accepts); this checker exists
// for operators to lint configured integrations and captured traffic.

const (
	maxNameBytes    = 64
	maxImageBase64  = 4 * 1024 * 1024
	maxCommentBytes = 64 * 1024

	contactFieldCount = 30 // CONTACT keyword + 29 fields
	textFieldCount    = 11 // TEXT keyword + 10 fields
)

// ValidateContact checks a rendered CONTACT line against the receiver's
// documented limits and returns every violation found.
func ValidateContact(line string) []error {
	var errs []error
	line = strings.TrimSuffix(line, "\r\n")
	fields := strings.Split(line, ";")
	if len(fields) != contactFieldCount {
		return append(errs, fmt.Errorf("CONTACT must have %d fields, got %d", contactFieldCount, len(fields)))
	}
	if fields[0] != "CONTACT" {
		errs = append(errs, fmt.Errorf("message keyword must be CONTACT, got %q", fields[0]))
	}
	if fields[7] == "" {
		errs = append(errs, fmt.Errorf("ContactID must not be empty"))
	}
	if err := checkRange(fields[9], "Latitude", -90, 90); err != nil {
		errs = append(errs, err)
	}
	if err := checkRange(fields[10], "Longitude", -180, 180); err != nil {
		errs = append(errs, err)
	}
	if len(fields[23]) > maxNameBytes {
		errs = append(errs, fmt.Errorf("Name exceeds %d bytes", maxNameBytes))
	}
	if sidc := fields[25]; len(sidc) != 15 {
		errs = append(errs, fmt.Errorf("SIDC must be 15 characters, got %d", len(sidc)))
	}
	if len(fields[28]) > maxImageBase64 {
		errs = append(errs, fmt.Errorf("Image exceeds %d Base64 bytes", maxImageBase64))
	}
	if len(fields[29]) > maxCommentBytes {
		errs = append(errs, fmt.Errorf("Comment exceeds %d Base64 bytes", maxCommentBytes))
	}
	return errs
}

// ValidateText checks a rendered TEXT line.
func ValidateText(line string) []error {
	var errs []error
	line = strings.TrimSuffix(line, "\r\n")
	fields := strings.Split(line, ";")
	if len(fields) != textFieldCount {
		return append(errs, fmt.Errorf("TEXT must have %d fields, got %d", textFieldCount, len(fields)))
	}
	if fields[0] != "TEXT" {
		errs = append(errs, fmt.Errorf("message keyword must be TEXT, got %q", fields[0]))
	}
	if t, err := strconv.Atoi(fields[8]); err != nil || t < int(TextAlert) || t > int(TextChat) {
		errs = append(errs, fmt.Errorf("Type must be 1..4, got %q", fields[8]))
	}
	if !strings.HasPrefix(fields[10], `"`) || !strings.HasSuffix(fields[10], `"`) {
		errs = append(errs, fmt.Errorf("Text must be double-quote wrapped"))
	}
	return errs
}

func checkRange(s, name string, lo, hi float64) error {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%s is not numeric: %q", name, s)
	}
	if v < lo || v > hi {
		return fmt.Errorf("%s %v out of range [%v,%v]", name, v, lo, hi)
	}
	return nil
}
