package model

import (
	"encoding/json"
	"testing"
)

func TestFormatSetMembership(t *testing.T) {
	s := NewFormatSet(FormatDWG, FormatPDF)
	if !s.Has(FormatPDF) || !s.Has(FormatDWG) {
		t.Fatalf("expected pdf and dwg in %s", s)
	}
	if s.Has(FormatIFC) || s.Has(FormatNWC) {
		t.Fatalf("unexpected members in %s", s)
	}
	if got := s.String(); got != "pdf,dwg" {
		t.Fatalf("expected processing order pdf,dwg, got %q", got)
	}
	s = s.Remove(FormatPDF)
	if s.Has(FormatPDF) || s.Len() != 1 {
		t.Fatalf("remove failed: %s", s)
	}
	if s.Has(Format(64)) {
		t.Fatalf("invalid format reported as member")
	}
}

func TestParseFormatSet(t *testing.T) {
	s, err := ParseFormatSet(" PDF, .ifc ,,nwc")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if s != NewFormatSet(FormatPDF, FormatIFC, FormatNWC) {
		t.Fatalf("unexpected set %s", s)
	}
	if _, err := ParseFormatSet("pdf,dxf"); err == nil {
		t.Fatalf("expected unknown tag to be rejected")
	}
}

func TestFormatSetJSON(t *testing.T) {
	data, err := json.Marshal(NewFormatSet(FormatNWC, FormatPDF))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["pdf","nwc"]` {
		t.Fatalf("unexpected JSON %s", data)
	}
	var back FormatSet
	if err := json.Unmarshal([]byte(`["dwg","DWG","ifc"]`), &back); err != nil {
		t.Fatal(err)
	}
	if back != NewFormatSet(FormatDWG, FormatIFC) {
		t.Fatalf("unexpected decoded set %s", back)
	}
	if err := json.Unmarshal([]byte(`["PDFX"]`), &back); err == nil {
		t.Fatalf("expected typo'd tag to fail")
	}
}

func TestFormatExtensionAndPerSheet(t *testing.T) {
	if FormatPDF.Extension() != ".pdf" || FormatNWC.Extension() != ".nwc" {
		t.Fatalf("unexpected extensions")
	}
	if !FormatPDF.PerSheet() || !FormatDWG.PerSheet() || FormatIFC.PerSheet() || FormatNWC.PerSheet() {
		t.Fatalf("unexpected per-sheet classification")
	}
}

func TestSelectionFilter(t *testing.T) {
	sheets := []Sheet{
		{Number: "A101", Revision: "B"},
		{Number: "A102", Revision: "C"},
		{Number: "S201", Revision: "B"},
	}
	if got := (SelectionFilter{}).Select(sheets); len(got) != 3 {
		t.Fatalf("zero filter should select all, got %d", len(got))
	}
	got := SelectionFilter{NumberPrefix: "a", Revision: "b"}.Select(sheets)
	if len(got) != 1 || got[0].Number != "A101" {
		t.Fatalf("unexpected selection %+v", got)
	}
	got = SelectionFilter{Numbers: []string{"s201", "A102"}}.Select(sheets)
	if len(got) != 2 || got[0].Number != "A102" || got[1].Number != "S201" {
		t.Fatalf("selection must keep register order, got %+v", got)
	}
}
