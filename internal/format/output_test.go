package format

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteJSONPretty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, map[string]any{"a": 1}, "json", true); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if got := buf.String(); got != "{\n  \"a\": 1\n}\n" {
		t.Fatalf("expected indented json; got %q", got)
	}
}

func TestWriteTableListPutsIDFirst(t *testing.T) {
	type row struct {
		Status string `json:"status"`
		ID     string `json:"id"`
		Name   string `json:"name"`
	}
	var buf bytes.Buffer
	if err := Write(&buf, []row{{ID: "p1", Name: "Alpha", Status: "planned"}}, "table", false); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	out := buf.String()
	id, name, status := strings.Index(out, "id"), strings.Index(out, "name"), strings.Index(out, "status")
	if id < 0 || !(id < name && name < status) {
		t.Fatalf("expected id, name, status column order; got\n%s", out)
	}
	if !strings.Contains(out, "Alpha") {
		t.Fatalf("expected row value; got\n%s", out)
	}
}

func TestTableTruncatesLongCells(t *testing.T) {
	_, rows, err := tabulate(map[string]any{"description": strings.Repeat("x", 200)})
	if err != nil {
		t.Fatalf("tabulate error: %v", err)
	}
	if got := rows[0][1]; len([]rune(got)) != maxCell {
		t.Fatalf("expected %d cells; got %d", maxCell, len([]rune(got)))
	}
}

func TestUnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, 1, "edn", false); err == nil {
		t.Fatalf("expected unknown format error")
	}
}
