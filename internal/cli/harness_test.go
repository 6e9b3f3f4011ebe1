package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sheetbatch/internal/history"
	"sheetbatch/internal/model"
	"sheetbatch/internal/runstore"
)

// fakeRenderer ignores the name hint and writes "<hint>-Sheet-<id>.<fmt>",
// so every export goes through reconciliation. FAIL_SHEET makes one sheet fail.
const fakeRenderer = `#!/usr/bin/env bash
set -euo pipefail
if [ "${1:-}" = "version" ]; then
  echo "2.1.0"
  exit 0
fi
shift
fmt=""; out=""; name="render"; sheets=()
while [ $# -gt 0 ]; do
  case "$1" in
    --format) fmt="$2"; shift 2 ;;
    --out) out="$2"; shift 2 ;;
    --name) name="$2"; shift 2 ;;
    --sheet) sheets+=("$2"); shift 2 ;;
    *) shift 2 ;;
  esac
done
if [ -n "${FAIL_SHEET:-}" ] && [ "${sheets[0]}" = "$FAIL_SHEET" ]; then
  echo "render failed for sheet $FAIL_SHEET" >&2
  exit 3
fi
echo "rendering ${#sheets[@]} sheet(s) as $fmt"
printf 'fake %s output for %s\n' "$fmt" "${sheets[*]}" > "$out/${name}-Sheet-${sheets[0]}.$fmt"
`

const harnessRegister = `{
  "title": "Harness",
  "sheets": [
    {"id": "1", "number": "A101", "name": "Ground Floor"},
    {"id": "2", "number": "A102", "name": "First Floor"},
    {"id": "3", "number": "A103", "name": "Roof"}
  ]
}`

type harness struct {
	root       string
	configPath string
	register   string
	outDir     string
	runsDir    string
	history    string
}

func newHarness(t *testing.T) harness {
	t.Helper()
	tmp := t.TempDir()
	fakeBin := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fakeBin, "sheet-render"), []byte(fakeRenderer), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))

	h := harness{
		root:       tmp,
		configPath: filepath.Join(tmp, "sheetbatch.yaml"),
		register:   filepath.Join(tmp, "sheets.json"),
		outDir:     filepath.Join(tmp, "out"),
		runsDir:    filepath.Join(tmp, "runs"),
		history:    filepath.Join(tmp, "runs", "history.db"),
	}
	cfg := "profiles:\n" +
		"  dir: " + filepath.Join(tmp, "profiles") + "\n" +
		"  defaults_dir: " + filepath.Join(tmp, "profiles", "defaults") + "\n" +
		"runs_dir: " + h.runsDir + "\n" +
		"history:\n  path: " + h.history + "\n" +
		"reconcile:\n  settle_delay: 1ms\n" +
		"log:\n  output: discard\n"
	if err := os.WriteFile(h.configPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(h.register, []byte(harnessRegister), 0o644); err != nil {
		t.Fatal(err)
	}
	return h
}

func (h harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	full := append([]string{}, args...)
	full = append(full, "--config", h.configPath)
	err := RunContext(context.Background(), full, &stdout, &stderr)
	return stdout.String(), err
}

func TestHarnessRunToleratesSheetFailure(t *testing.T) {
	h := newHarness(t)
	t.Setenv("FAIL_SHEET", "2")

	out, err := h.run(t, "run", "--register", h.register, "--output-dir", h.outDir, "--formats", "pdf", "--json")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}

	var result model.ExportResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result: %v\n%s", err, out)
	}
	if !result.Success || result.Succeeded != 2 || result.Failed != 1 {
		t.Fatalf("unexpected totals: %+v", result)
	}
	if !strings.HasPrefix(result.Message, "exported 2 of 3 items (1 failed); A102 - First Floor [pdf]: ") {
		t.Fatalf("unexpected message: %s", result.Message)
	}
	if !strings.Contains(result.Jobs[1].Message, "render failed for sheet 2") {
		t.Fatalf("expected renderer stderr in failure message, got %q", result.Jobs[1].Message)
	}

	for _, name := range []string{"A101-Ground_Floor.pdf", "A103-Roof.pdf"} {
		if _, err := os.Stat(filepath.Join(h.outDir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	entries, err := os.ReadDir(h.outDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "sbtmp-") {
			t.Fatalf("temporary render output left behind: %s", e.Name())
		}
	}

	dirs, err := runstore.ListBatchDirs(h.runsDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirs) != 1 {
		t.Fatalf("expected one batch dir, got %d", len(dirs))
	}
	mf, err := runstore.LoadJobsManifest(dirs[0])
	if err != nil {
		t.Fatal(err)
	}
	if mf.Total != 3 || mf.Renamed != 2 || mf.Failed != 1 {
		t.Fatalf("unexpected manifest totals: %+v", mf)
	}

	st, err := history.Open(h.history)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	batches, err := st.Recent(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(batches) != 1 || batches[0].BatchID != result.BatchID {
		t.Fatalf("expected batch %s in history, got %+v", result.BatchID, batches)
	}
}

func TestHarnessRunPlainOutputAndReport(t *testing.T) {
	h := newHarness(t)
	reportPath := filepath.Join(h.root, "report.xlsx")

	out, err := h.run(t, "run", "--register", h.register, "--output-dir", h.outDir,
		"--formats", "pdf,nwc", "--sheets", "A101,A103", "--report", reportPath, "--progress=false")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, out)
	}
	for _, want := range []string{
		"[1/3] start A101 - Ground Floor",
		"[2/3] done  A103 - Roof",
		"exported 3 of 3 items (0 failed)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	if _, err := os.Stat(filepath.Join(h.outDir, "Default.nwc")); err != nil {
		t.Fatalf("expected whole-model nwc named after the profile: %v", err)
	}
	if _, err := os.Stat(reportPath); err != nil {
		t.Fatalf("expected xlsx report: %v", err)
	}
}

func TestHarnessRunAllFailuresReturnsError(t *testing.T) {
	h := newHarness(t)
	t.Setenv("FAIL_SHEET", "1")

	_, err := h.run(t, "run", "--register", h.register, "--output-dir", h.outDir, "--formats", "pdf", "--sheets", "A101", "--json")
	if err == nil {
		t.Fatal("expected batch failure error")
	}
	if !strings.Contains(err.Error(), "batch failed") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHarnessProfilesImportListAndHistory(t *testing.T) {
	h := newHarness(t)
	xmlPath := filepath.Join(h.root, "profiles.xml")
	doc := `<ExportProfiles><Profiles>
  <Profile Name="Issue Set">
    <TemplateInfo>
      <OutputFolder>issue</OutputFolder>
      <Formats PDF="true" DWG="true"/>
      <NamingParameters><Parameter Name="Sheet Number"/></NamingParameters>
    </TemplateInfo>
  </Profile>
  <Profile Name="Broken"><TemplateInfo/></Profile>
</Profiles></ExportProfiles>`
	if err := os.WriteFile(xmlPath, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := h.run(t, "profiles", "import", xmlPath)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if !strings.Contains(out, "imported 1 profile(s), skipped 1") {
		t.Fatalf("unexpected import output:\n%s", out)
	}

	out, err = h.run(t, "profiles", "list", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var entries []profileListEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode list: %v\n%s", err, out)
	}
	if len(entries) != 2 || entries[0].Name != "Default" || entries[1].Name != "Issue Set" {
		t.Fatalf("unexpected profiles: %+v", entries)
	}
	if entries[0].Source != "(built-in)" || !strings.HasSuffix(entries[1].Source, "issue-set.yaml") {
		t.Fatalf("unexpected sources: %+v", entries)
	}

	out, err = h.run(t, "profiles", "show", "issue set")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "output_folder: issue") {
		t.Fatalf("unexpected show output:\n%s", out)
	}

	if _, err := h.run(t, "profiles", "delete", "Issue Set", "--yes"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.run(t, "profiles", "show", "Issue Set"); err == nil {
		t.Fatal("expected deleted profile to be gone")
	}

	out, err = h.run(t, "history")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "no batches recorded") {
		t.Fatalf("unexpected history output:\n%s", out)
	}
}

func TestHarnessDoctorAndInit(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "init")
	if err != nil {
		t.Fatalf("init failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "default profile written to") {
		t.Fatalf("expected default profile to be written:\n%s", out)
	}

	out, err = h.run(t, "doctor", "--json")
	if err != nil {
		t.Fatalf("doctor failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"ok": true`) {
		t.Fatalf("unexpected doctor output:\n%s", out)
	}
}
