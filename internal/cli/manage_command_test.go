package cli

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"sheetbatch/internal/model"
)

func TestManageBoolFieldSupportsYN(t *testing.T) {
	m := manageModel{
		mode: manageModeForm,
		form: newManageForm(nil, 80),
	}
	m.form.Index = findFieldIndexByKey(m.form, "combine")
	if m.form.Index < 0 {
		t.Fatal("combine field not found")
	}

	next, _ := m.updateForm(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})
	m2 := next.(manageModel)
	if got := m2.form.currentField().Value; got != "y" {
		t.Fatalf("expected combine value y after 'y', got %q", got)
	}

	next, _ = m2.updateForm(tea.KeyMsg{Type: tea.KeySpace})
	m3 := next.(manageModel)
	if got := m3.form.currentField().Value; got != "n" {
		t.Fatalf("expected combine value n after space, got %q", got)
	}
}

func TestManageSelectFieldCycles(t *testing.T) {
	m := manageModel{
		mode: manageModeForm,
		form: newManageForm(nil, 80),
	}
	m.form.Index = findFieldIndexByKey(m.form, "color")
	if got := m.form.currentField().Value; got != "color" {
		t.Fatalf("expected default color mode, got %q", got)
	}

	next, _ := m.updateForm(tea.KeyMsg{Type: tea.KeyLeft})
	m2 := next.(manageModel)
	if got := m2.form.currentField().Value; got != "black_white" {
		t.Fatalf("expected wrap to black_white, got %q", got)
	}

	next, _ = m2.updateForm(tea.KeyMsg{Type: tea.KeyRight})
	m3 := next.(manageModel)
	if got := m3.form.currentField().Value; got != "color" {
		t.Fatalf("expected color after right, got %q", got)
	}
}

func TestManageFormToSettingsKeepsHiddenFields(t *testing.T) {
	id := -1007900
	existing := model.DefaultSettings()
	existing.Name = "Issue Set"
	existing.Naming.Parameters = []model.ParameterModel{
		{Name: "Sheet Number", Separator: "_"},
		{Name: "Drawn By", ID: &id, Prefix: "["},
	}
	existing.Selection = model.SelectionFilter{NumberPrefix: "A"}

	f := newManageForm(&existing, 80)
	setField(f, "formats", "pdf, ifc")
	setField(f, "naming", "Drawn By; Sheet Name")
	setField(f, "zoom", "50")

	got, err := f.toSettings()
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Issue Set" {
		t.Fatalf("edit must keep the profile name, got %q", got.Name)
	}
	if got.Formats != model.NewFormatSet(model.FormatPDF, model.FormatIFC) {
		t.Fatalf("unexpected formats %s", got.Formats)
	}
	if len(got.Naming.Parameters) != 2 || got.Naming.Parameters[0].ID == nil || got.Naming.Parameters[0].Prefix != "[" {
		t.Fatalf("expected Drawn By to keep its id and prefix: %+v", got.Naming.Parameters)
	}
	if got.Naming.Parameters[1].Name != "Sheet Name" {
		t.Fatalf("unexpected second parameter %+v", got.Naming.Parameters[1])
	}
	if got.Options.ZoomPercent != 50 || got.Selection.NumberPrefix != "A" {
		t.Fatalf("unexpected settings: %+v", got)
	}
}

func TestManageFormRejectsInvalidInput(t *testing.T) {
	f := newManageForm(nil, 80)
	setField(f, "output", "exports")
	if _, err := f.toSettings(); err == nil {
		t.Fatal("expected missing name to be rejected")
	}

	setField(f, "name", "Fresh")
	setField(f, "formats", "pdf,svg")
	if _, err := f.toSettings(); err == nil {
		t.Fatal("expected unknown format to be rejected")
	}

	setField(f, "formats", "pdf")
	setField(f, "zoom", "500")
	if _, err := f.toSettings(); err == nil {
		t.Fatal("expected out-of-range zoom to be rejected")
	}

	setField(f, "zoom", "0")
	got, err := f.toSettings()
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Fresh" || got.OutputFolder != "exports" {
		t.Fatalf("unexpected settings: %+v", got)
	}
}

func TestManageBrowseDeleteNeedsProfileRow(t *testing.T) {
	m := manageModel{
		mode:     manageModeBrowse,
		profiles: []model.ExportSettings{model.DefaultSettings()},
	}
	next, _ := m.updateBrowse(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	m2 := next.(manageModel)
	if m2.mode != manageModeDeleteConfirm || m2.confirmDeleteName != model.DefaultProfileName {
		t.Fatalf("expected delete confirm without store, got mode %d", m2.mode)
	}

	m.cursor = 1
	next, _ = m.updateBrowse(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	m3 := next.(manageModel)
	if m3.mode != manageModeBrowse || m3.statusMessage == "" {
		t.Fatalf("expected status on the new-profile row, got %+v", m3)
	}
}

func findFieldIndexByKey(f *manageForm, key string) int {
	if f == nil {
		return -1
	}
	for i, field := range f.Fields {
		if field.Key == key {
			return i
		}
	}
	return -1
}

func setField(f *manageForm, key, value string) {
	if i := findFieldIndexByKey(f, key); i >= 0 {
		f.Fields[i].Value = value
	}
}
