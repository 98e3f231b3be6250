package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

type sample struct {
	Name string `json:"name" yaml:"name"`
	ID   string `json:"id" yaml:"id"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"tsv", FormatTSV, false},
		{"ndjson", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, FormatTable)

	err := r.RenderTable([]string{"NAME", "ID"}, [][]string{
		{"bug", "l1"},
		{"feature-request", "l2"},
	})
	if err != nil {
		t.Fatalf("RenderTable failed: %v", err)
	}

	expected := "" +
		"NAME             ID\n" +
		"---------------  --\n" +
		"bug              l1\n" +
		"feature-request  l2\n"
	if buf.String() != expected {
		t.Errorf("unexpected table:\n%q\nwant:\n%q", buf.String(), expected)
	}
}

func TestRenderTable_Unicode(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, FormatTable)

	if err := r.RenderTable([]string{"N", "X"}, [][]string{{"héllo", "1"}, {"a", "2"}}); err != nil {
		t.Fatalf("RenderTable failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[3] != "a      2" {
		t.Errorf("expected rune-based padding, got %q", lines[3])
	}
}

func TestRender_Sections(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, "")

	err := r.Render(nil,
		Table{Title: "Boards", Headers: []string{"NAME"}, Rows: [][]string{{"Work"}}},
		Table{Title: "Cards", Headers: []string{"NAME"}},
	)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Boards (1)\nNAME\n----\nWork\n") {
		t.Errorf("missing boards section:\n%s", out)
	}
	if !strings.HasSuffix(out, "\nCards (0)\n") {
		t.Errorf("expected empty cards section, got:\n%s", out)
	}
}

func TestRender_TSV(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, FormatTSV)

	err := r.Render(nil, Table{Headers: []string{"NAME", "ID"}, Rows: [][]string{{"a\tb", "1"}}})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if buf.String() != "NAME\tID\na b\t1\n" {
		t.Errorf("unexpected tsv %q", buf.String())
	}
}

func TestRender_Structured(t *testing.T) {
	data := []sample{{Name: "bug", ID: "l1"}}

	var jsonBuf bytes.Buffer
	if err := NewRenderer(&jsonBuf, FormatJSON).Render(data); err != nil {
		t.Fatalf("json Render failed: %v", err)
	}
	var fromJSON []sample
	if err := json.Unmarshal(jsonBuf.Bytes(), &fromJSON); err != nil {
		t.Fatalf("output is not json: %v", err)
	}
	if len(fromJSON) != 1 || fromJSON[0] != data[0] {
		t.Errorf("unexpected json %s", jsonBuf.String())
	}

	var yamlBuf bytes.Buffer
	if err := NewRenderer(&yamlBuf, FormatYAML).Render(data); err != nil {
		t.Fatalf("yaml Render failed: %v", err)
	}
	var fromYAML []sample
	if err := yaml.Unmarshal(yamlBuf.Bytes(), &fromYAML); err != nil {
		t.Fatalf("output is not yaml: %v", err)
	}
	if len(fromYAML) != 1 || fromYAML[0] != data[0] {
		t.Errorf("unexpected yaml %s", yamlBuf.String())
	}
}
