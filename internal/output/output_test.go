package output

import (
	"bytes"
	"strings"
	"testing"
)

type report struct {
	Path string `json:"path" yaml:"path"`
	Kind string `json:"kind" yaml:"kind"`
}

func (r report) String() string {
	return "Path: " + r.Path + "\nKind: " + r.Kind + "\n"
}

func TestWriter(t *testing.T) {
	r := report{Path: "/apps/app.AppImage", Kind: "zsync"}

	tests := []struct {
		format Format
		want   string
	}{
		{FormatText, "Path: /apps/app.AppImage\nKind: zsync\n"},
		{FormatJSON, "{\n  \"path\": \"/apps/app.AppImage\",\n  \"kind\": \"zsync\"\n}\n"},
		{FormatYAML, "path: /apps/app.AppImage\nkind: zsync\n"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewWriter(&buf, tt.format).Write(r); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("Write() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestWriterTextWithoutStringer(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter(&buf, FormatText).Write(struct{ A int }{A: 1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if buf.String() != "{A:1}\n" {
		t.Errorf("Write() = %q", buf.String())
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name     string
		fraction float64
		width    int
		want     string
	}{
		{"empty", 0, 10, "[..........]   0%"},
		{"half", 0.5, 10, "[#####.....]  50%"},
		{"full", 1, 10, "[##########] 100%"},
		{"clamped high", 1.5, 4, "[####] 100%"},
		{"clamped low", -1, 4, "[....]   0%"},
		{"minimum width", 1, 0, "[#] 100%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProgressBar(tt.fraction, tt.width); got != tt.want {
				t.Errorf("ProgressBar() = %q, want %q", got, tt.want)
			}
		})
	}

	if !strings.HasPrefix(ProgressBar(0.25, 8), "[##......]") {
		t.Errorf("ProgressBar(0.25, 8) = %q", ProgressBar(0.25, 8))
	}
}
