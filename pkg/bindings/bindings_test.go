package bindings

import (
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/user/hostcomply/pkg/compliance"
	"github.com/user/hostcomply/pkg/pattern"
	"golang.org/x/sys/unix"
)

func TestParseModeIsOctal(t *testing.T) {
	for v := uint64(0); v <= 0o7777; v += 7 {
		s := strconv.FormatUint(v, 8)
		got, err := Parse[Mode](s)
		if err != nil {
			t.Fatalf("Parse[Mode](%q) failed: %v", s, err)
		}
		if uint64(got) != v {
			t.Fatalf("Parse[Mode](%q) = %o, want %o", s, got, v)
		}
	}

	for _, bad := range []string{"", "0644x", "8", "777777777777"} {
		if _, err := Parse[Mode](bad); !errors.Is(err, unix.EINVAL) {
			t.Errorf("Parse[Mode](%q) expected EINVAL, got %v", bad, err)
		}
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"true", true}, {"TRUE", true}, {"Yes", true}, {"1", true},
		{"false", false}, {"No", false}, {"0", false}, {"FALSE", false},
	}
	for _, tt := range tests {
		got, err := Parse[bool](tt.in)
		if err != nil {
			t.Errorf("Parse[bool](%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse[bool](%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := Parse[bool]("maybe"); !errors.Is(err, unix.EINVAL) {
		t.Errorf("expected EINVAL for 'maybe', got %v", err)
	}
}

func TestParseInt(t *testing.T) {
	if v, err := Parse[int]("-42"); err != nil || v != -42 {
		t.Errorf("Parse[int](-42) = %d, %v", v, err)
	}
	if _, err := Parse[int]("12a"); !errors.Is(err, unix.EINVAL) {
		t.Errorf("expected EINVAL, got %v", err)
	}
	if _, err := Parse[int]("99999999999999999999999"); !errors.Is(err, unix.ERANGE) {
		t.Errorf("expected ERANGE, got %v", err)
	}
}

func TestParsePattern(t *testing.T) {
	p, err := Parse[pattern.Pattern]("^root$")
	if err != nil || !p.Match("root") {
		t.Fatalf("unexpected pattern result: %v", err)
	}
	_, err = Parse[pattern.Pattern]("(")
	if compliance.KindOf(err) != compliance.KindPatternCompile {
		t.Errorf("expected pattern compile error, got %v", err)
	}
}

func TestSeparatedRoundTrip(t *testing.T) {
	tests := []struct {
		in  string
		sep byte
	}{
		{"root|adm|syslog", '|'},
		{"a", ','},
		{"", ','},
	}
	for _, tt := range tests {
		s, err := ParseSeparated[string](tt.in, tt.sep)
		if err != nil {
			t.Fatalf("ParseSeparated(%q) failed: %v", tt.in, err)
		}
		if s.String() != tt.in {
			t.Errorf("round trip of %q gave %q", tt.in, s.String())
		}
	}

	modes, err := ParseSeparated[Mode]("0644,0600,755", ',')
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if modes.String() != "0644,0600,755" {
		t.Errorf("mode list round trip gave %q", modes.String())
	}
	if modes.Len() != 3 || modes.Items[2] != 0o755 {
		t.Errorf("unexpected items %v", modes.Items)
	}
}

func TestSeparatedFirstBadTokenAborts(t *testing.T) {
	_, err := ParseSeparated[int]("1,x,3", ',')
	if !errors.Is(err, unix.EINVAL) {
		t.Fatalf("expected EINVAL, got %v", err)
	}
	empty, err := ParseSeparated[int]("", ',')
	if err != nil || empty.Len() != 0 {
		t.Errorf("empty input should give an empty list, got %v, %v", empty.Items, err)
	}
}

func TestNewSeparatedFormats(t *testing.T) {
	s := NewSeparated[int](':', 1, 2, 3)
	if s.String() != "1:2:3" {
		t.Errorf("unexpected %q", s.String())
	}
}

func TestBindField(t *testing.T) {
	args := map[string]string{"packageName": "openssh-server"}

	name, err := BindField[string](args, "packageName", true, nil)
	if err != nil || name != "openssh-server" {
		t.Fatalf("unexpected result %q, %v", name, err)
	}

	_, err = BindField[string](map[string]string{}, "packageName", true, nil)
	if err == nil || err.Error() != "missing required 'packageName' parameter" {
		t.Fatalf("unexpected error %v", err)
	}
	if !errors.Is(err, unix.EINVAL) {
		t.Errorf("expected EINVAL")
	}

	def := Mode(0o022)
	mask, err := BindField(map[string]string{}, "mask", false, &def)
	if err != nil || mask != 0o022 {
		t.Errorf("expected default mask, got %v, %v", mask, err)
	}
}

type color int

func (c *color) UnmarshalText(text []byte) error {
	switch string(text) {
	case "red":
		*c = 1
	case "blue":
		*c = 2
	default:
		return fmt.Errorf("unknown color %q", string(text))
	}
	return nil
}

type sampleParams struct {
	Filename    string            `arg:"filename"`
	Permissions *Mode             `arg:"permissions"`
	Mask        Mode              `arg:"mask" default:"0022"`
	Owners      Separated[string] `arg:"owner" sep:"|" default:"root"`
	Recursive   bool              `arg:"recursive,optional"`
	Match       pattern.Pattern   `arg:"match,optional"`
	Color       color             `arg:"color" default:"red"`
	Depths      Separated[int]    `arg:"depths,optional"`
}

func TestBindStruct(t *testing.T) {
	var p sampleParams
	err := Bind(map[string]string{
		"filename":    "/etc/passwd",
		"permissions": "0644",
		"owner":       "root|adm",
		"color":       "blue",
	}, &p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Filename != "/etc/passwd" {
		t.Errorf("filename = %q", p.Filename)
	}
	if p.Permissions == nil || *p.Permissions != 0o644 {
		t.Errorf("permissions = %v", p.Permissions)
	}
	if p.Mask != 0o022 {
		t.Errorf("mask default not applied: %v", p.Mask)
	}
	if p.Owners.Len() != 2 || p.Owners.Items[1] != "adm" {
		t.Errorf("owners = %v", p.Owners.Items)
	}
	if p.Recursive {
		t.Error("recursive should stay false")
	}
	if !p.Match.IsZero() {
		t.Error("absent pattern should stay zero")
	}
	if p.Color != 2 {
		t.Errorf("color = %d", p.Color)
	}
}

func TestBindStructErrors(t *testing.T) {
	tests := []struct {
		name string
		args map[string]string
		want string
	}{
		{"missing required", map[string]string{}, "missing required 'filename' parameter"},
		{"unknown", map[string]string{"filename": "x", "bogus": "1"}, "unknown parameter 'bogus'"},
		{"bad mode", map[string]string{"filename": "x", "permissions": "rw"}, "invalid octal mode 'rw'"},
		{"bad pattern", map[string]string{"filename": "x", "match": "a["}, ""},
		{"bad enum", map[string]string{"filename": "x", "color": "green"}, `invalid value 'green' for 'color' parameter: unknown color "green"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p sampleParams
			err := Bind(tt.args, &p)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, unix.EINVAL) {
				t.Errorf("expected EINVAL, got %v", compliance.CodeOf(err))
			}
			if tt.want != "" && err.Error() != tt.want {
				t.Errorf("got %q, want %q", err.Error(), tt.want)
			}
		})
	}
}

func TestBindFirstFailureInDeclarationOrder(t *testing.T) {
	var p sampleParams
	err := Bind(map[string]string{"permissions": "xx"}, &p)
	if err == nil || err.Error() != "missing required 'filename' parameter" {
		t.Errorf("expected the first declared field to fail, got %v", err)
	}
}

func TestBindEmptyParamsRejectsArguments(t *testing.T) {
	var p struct{}
	if err := Bind(map[string]string{}, &p); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := Bind(map[string]string{"x": "1"}, &p); err == nil {
		t.Error("expected unknown parameter error")
	}
}

func TestBindRejectsNonPointer(t *testing.T) {
	if err := Bind(nil, sampleParams{}); err == nil {
		t.Error("expected error for non-pointer target")
	}
}
