// Package sanitize normalizes untrusted dashboard input. Every function is
// total: bad input yields an empty/zero result or a rejection, never a panic.
package sanitize

import (
	"math"
	"regexp"
	"strings"
)

const (
	// MaxTextLength bounds free-form text fields (titles, descriptions).
	MaxTextLength = 10000
	// MaxIDLength bounds external identifiers.
	MaxIDLength = 100
	// MaxURLLength bounds stored URLs.
	MaxURLLength = 2048
	// MaxUploadBytes bounds attachment size (5 MiB).
	MaxUploadBytes = 5 << 20

	maxEmailLength    = 254
	maxFileNameLength = 100
)

// htmlEscaper runs a single left-to-right pass, so '&' produced by an earlier
// replacement is never escaped again within one call. Re-sanitizing already
// escaped text does re-escape it ("&amp;" becomes "&amp;amp;"); callers must
// sanitize exactly once.
var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

var (
	idStripPattern = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	emailPattern   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// Text HTML-escapes the five dangerous characters and truncates to maxLength.
// A non-positive maxLength falls back to MaxTextLength.
func Text(input string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = MaxTextLength
	}
	escaped := htmlEscaper.Replace(input)
	return truncate(escaped, maxLength)
}

// ID strips every character outside [A-Za-z0-9_-] and truncates to maxLength.
func ID(input string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = MaxIDLength
	}
	return truncate(idStripPattern.ReplaceAllString(input, ""), maxLength)
}

// Email trims, lowercases and validates the address. The second return value
// is false when the input is not a plausible address.
func Email(input string) (string, bool) {
	addr := strings.ToLower(strings.TrimSpace(input))
	if addr == "" || len(addr) > maxEmailLength {
		return "", false
	}
	if !emailPattern.MatchString(addr) {
		return "", false
	}
	return addr, true
}

// URL accepts http://, https:// and site-relative values, rejects executable
// schemes outright, and truncates to MaxURLLength.
func URL(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	lower := strings.ToLower(trimmed)
	for _, scheme := range []string{"javascript:", "data:", "vbscript:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}
	if !strings.HasPrefix(lower, "http://") &&
		!strings.HasPrefix(lower, "https://") &&
		!strings.HasPrefix(trimmed, "/") {
		return "", false
	}
	return truncate(trimmed, MaxURLLength), true
}

// Coordinates is a validated WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Coordinate rejects non-finite values and anything outside [-90,90]/[-180,180].
func Coordinate(lat, lng float64) (Coordinates, bool) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return Coordinates{}, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Coordinates{}, false
	}
	return Coordinates{Lat: lat, Lng: lng}, true
}

// Object projects only the allow-listed keys of a decoded JSON object.
// Keys opening with "__" and the reserved prototype-access names are dropped
// even when allow-listed; structural pollution is rejected independently of
// the caller's list.
func Object(obj map[string]any, allowedKeys []string) map[string]any {
	out := make(map[string]any, len(allowedKeys))
	if obj == nil {
		return out
	}
	allowed := make(map[string]struct{}, len(allowedKeys))
	for _, k := range allowedKeys {
		allowed[k] = struct{}{}
	}
	for k, v := range obj {
		if _, ok := allowed[k]; !ok {
			continue
		}
		if isReservedKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func isReservedKey(key string) bool {
	if strings.HasPrefix(key, "__") {
		return true
	}
	switch key {
	case "prototype", "constructor":
		return true
	}
	return false
}

// FileMeta describes an upload before its payload is accepted.
type FileMeta struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

var allowedUploadTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

// ValidateFileUpload reports whether the metadata describes an acceptable
// image attachment: sane name, allow-listed MIME type, bounded size.
func ValidateFileUpload(meta FileMeta) bool {
	name := meta.Name
	if name == "" || len(name) > maxFileNameLength {
		return false
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return false
	}
	if _, ok := allowedUploadTypes[meta.Type]; !ok {
		return false
	}
	if meta.Size <= 0 || meta.Size > MaxUploadBytes {
		return false
	}
	return true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
