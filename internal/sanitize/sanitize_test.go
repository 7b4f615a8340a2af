package sanitize

import (
	"math"
	"strings"
	"testing"
)

func TestTextEscapesDangerousCharacters(t *testing.T) {
	got := Text(`<script>alert("x") & 'y'</script>`, 0)
	want := "&lt;script&gt;alert(&quot;x&quot;) &amp; &#39;y&#39;&lt;/script&gt;"
	if got != want {
		t.Fatalf("Text escaped wrong: %q", got)
	}
}

func TestTextIsNotReentrant(t *testing.T) {
	// Sanitizing twice re-escapes the ampersand of the entity. The contract
	// is sanitize-exactly-once; this pins the behavior down.
	once := Text("a & b", 0)
	if once != "a &amp; b" {
		t.Fatalf("first pass: %q", once)
	}
	twice := Text(once, 0)
	if twice != "a &amp;amp; b" {
		t.Fatalf("second pass: %q", twice)
	}
	// Text without escapable characters is idempotent.
	plain := Text("no specials here", 0)
	if Text(plain, 0) != plain {
		t.Fatalf("plain text changed on second pass")
	}
}

func TestTextTruncates(t *testing.T) {
	long := strings.Repeat("a", 60)
	if got := Text(long, 10); got != strings.Repeat("a", 10) {
		t.Fatalf("expected 10 chars, got %d", len(got))
	}
	if got := Text(long, 0); len(got) != 60 {
		t.Fatalf("default cap should not touch short input, got %d", len(got))
	}
}

func TestID(t *testing.T) {
	if got := ID("abc-123_XYZ", 0); got != "abc-123_XYZ" {
		t.Fatalf("clean id mangled: %q", got)
	}
	if got := ID("a b;DROP TABLE--'x", 0); got != "abDROPTABLE--x" {
		t.Fatalf("unexpected strip result: %q", got)
	}
	if got := ID(strings.Repeat("a", 200), 0); len(got) != MaxIDLength {
		t.Fatalf("expected truncation to %d, got %d", MaxIDLength, len(got))
	}
}

func TestEmail(t *testing.T) {
	cases := []struct {
		in    string
		want  string
		valid bool
	}{
		{"  Ops@Example.COM ", "ops@example.com", true},
		{"dispatcher+roads@city.gov", "dispatcher+roads@city.gov", true},
		{"not-an-email", "", false},
		{"a@b", "", false},
		{"", "", false},
		{strings.Repeat("a", 250) + "@x.co", "", false},
	}
	for _, tc := range cases {
		got, ok := Email(tc.in)
		if ok != tc.valid || got != tc.want {
			t.Fatalf("Email(%q)=(%q,%v), want (%q,%v)", tc.in, got, ok, tc.want, tc.valid)
		}
	}
}

func TestURL(t *testing.T) {
	if _, ok := URL("javascript:alert(1)"); ok {
		t.Fatal("javascript scheme accepted")
	}
	if _, ok := URL("  DATA:text/html;base64,xxx"); ok {
		t.Fatal("data scheme accepted")
	}
	if _, ok := URL("vbscript:msgbox"); ok {
		t.Fatal("vbscript scheme accepted")
	}
	if _, ok := URL("ftp://example.com/file"); ok {
		t.Fatal("unlisted scheme accepted")
	}
	if got, ok := URL("https://maps.example.com/tile/4"); !ok || got != "https://maps.example.com/tile/4" {
		t.Fatalf("https rejected: %q %v", got, ok)
	}
	if got, ok := URL("/tickets/42"); !ok || got != "/tickets/42" {
		t.Fatalf("relative path rejected: %q %v", got, ok)
	}
	long := "https://example.com/" + strings.Repeat("a", 3000)
	if got, ok := URL(long); !ok || len(got) != MaxURLLength {
		t.Fatalf("expected truncation to %d, got %d", MaxURLLength, len(got))
	}
}

func TestCoordinate(t *testing.T) {
	if _, ok := Coordinate(91, 0); ok {
		t.Fatal("latitude 91 accepted")
	}
	if _, ok := Coordinate(0, -181); ok {
		t.Fatal("longitude -181 accepted")
	}
	if _, ok := Coordinate(math.NaN(), 0); ok {
		t.Fatal("NaN accepted")
	}
	if _, ok := Coordinate(0, math.Inf(1)); ok {
		t.Fatal("Inf accepted")
	}
	got, ok := Coordinate(45.0, -93.0)
	if !ok || got.Lat != 45.0 || got.Lng != -93.0 {
		t.Fatalf("valid pair rejected: %+v %v", got, ok)
	}
}

func TestObject(t *testing.T) {
	in := map[string]any{
		"title":       "pothole",
		"department":  "roads_infrastructure",
		"unexpected":  "dropped",
		"__proto__":   map[string]any{"polluted": true},
		"constructor": "x",
	}
	out := Object(in, []string{"title", "department", "__proto__", "constructor"})
	if len(out) != 2 {
		t.Fatalf("expected 2 keys, got %d: %v", len(out), out)
	}
	if out["title"] != "pothole" || out["department"] != "roads_infrastructure" {
		t.Fatalf("allow-listed keys missing: %v", out)
	}
	if _, ok := out["__proto__"]; ok {
		t.Fatal("reserved key survived the allow-list")
	}
	if got := Object(nil, []string{"a"}); len(got) != 0 {
		t.Fatalf("nil object should project to empty, got %v", got)
	}
}

func TestValidateFileUpload(t *testing.T) {
	cases := []struct {
		name  string
		meta  FileMeta
		valid bool
	}{
		{"traversal", FileMeta{Name: "../x.png", Type: "image/png", Size: 1024}, false},
		{"slash", FileMeta{Name: "a/b.png", Type: "image/png", Size: 1024}, false},
		{"backslash", FileMeta{Name: `a\b.png`, Type: "image/png", Size: 1024}, false},
		{"oversize", FileMeta{Name: "a.png", Type: "image/png", Size: 6 * 1024 * 1024}, false},
		{"bad type", FileMeta{Name: "a.pdf", Type: "application/pdf", Size: 1024}, false},
		{"no name", FileMeta{Type: "image/png", Size: 1024}, false},
		{"long name", FileMeta{Name: strings.Repeat("a", 101), Type: "image/png", Size: 1024}, false},
		{"ok", FileMeta{Name: "a.png", Type: "image/png", Size: 1024}, true},
		{"webp ok", FileMeta{Name: "photo.webp", Type: "image/webp", Size: 2048}, true},
	}
	for _, tc := range cases {
		if got := ValidateFileUpload(tc.meta); got != tc.valid {
			t.Fatalf("%s: ValidateFileUpload=%v, want %v", tc.name, got, tc.valid)
		}
	}
}
