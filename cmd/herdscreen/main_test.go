package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"herdscreen/internal/api"
	"herdscreen/internal/services"
	"herdscreen/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.backend.URL())

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestConfigShowReflectsURLFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env, "--url", "http://backend.test:9000", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "http://backend.test:9000")
	requireContains(t, out, "[filter]")
}

func TestWaitReportsReady(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, env, "wait", "--timeout", "5s")
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	requireContains(t, out, "backend ready")
}

func TestFilesListAndDelete(t *testing.T) {
	env := setupCLITestEnv(t)
	rows := 1200
	env.backend.Handle(testsupport.RouteFiles, func(w http.ResponseWriter, _ *http.Request) {
		testsupport.WriteJSON(w, http.StatusOK, api.FilesResponse{Success: true, Files: []api.FileInfo{
			{FileID: "f-1", Filename: "herd-jan.xlsx", UploadTime: "not a time", RowCount: &rows},
		}})
	})
	env.backend.Handle(testsupport.RouteDeleteFile, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/missing") {
			testsupport.WriteError(w, http.StatusNotFound, "file not found")
			return
		}
		testsupport.WriteJSON(w, http.StatusOK, api.StatusResponse{Success: true, Message: "deleted"})
	})

	out, _, err := runCLI(t, env, "files", "list")
	if err != nil {
		t.Fatalf("files list: %v", err)
	}
	requireContains(t, out, "herd-jan.xlsx")
	requireContains(t, out, "1,200")

	out, _, err = runCLI(t, env, "files", "delete", "f-1", "missing")
	if err == nil || err.Error() != "1 of 2 deletions failed" {
		t.Fatalf("unexpected delete error %v", err)
	}
	requireContains(t, out, "f-1")
	requireContains(t, out, "file not found")
	if got := len(env.backend.Requests(testsupport.RouteDeleteFile)); got != 2 {
		t.Fatalf("expected 2 delete requests, got %d", got)
	}
}

func seedFilterBackend(env *cliTestEnv) {
	pmin, pmax := 2.0, 4.5
	env.backend.Handle(testsupport.RouteStatistics, func(w http.ResponseWriter, _ *http.Request) {
		testsupport.WriteJSON(w, http.StatusOK, api.DataStatistics{
			Success:      true,
			DateRange:    &api.DateBounds{Min: "2024-01-01", Max: "2024-06-30"},
			ProteinRange: &api.NumberRange{Min: &pmin, Max: &pmax},
			FarmIDs:      []string{"F01", "F02"},
		})
	})
	env.backend.Handle(testsupport.RouteFilters, func(w http.ResponseWriter, _ *http.Request) {
		testsupport.WriteJSON(w, http.StatusOK, api.FiltersResponse{Success: true, Filters: map[string]api.FilterDefinition{
			"scc":     {Field: "somatic_cell_count", Label: "SCC"},
			"fat_pct": {Label: "Fat %", Enabled: true},
		}})
	})
}

func TestFilterBatchSubmitsSpecAndRendersResult(t *testing.T) {
	env := setupCLITestEnv(t)
	seedFilterBackend(env)
	env.backend.Handle(testsupport.RouteFilterBatch, func(w http.ResponseWriter, _ *http.Request) {
		testsupport.WriteJSON(w, http.StatusOK, api.NewCurrentResult(5000, 1200, 37, "0.74", "/api/download/out.xlsx"))
	})

	out, _, err := runCLI(t, env, "filter", "--file", "a", "--file", "b",
		"--protein-max", "4.0", "--enable", "somatic_cell_count=:400", "--disable", "fat_pct")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	requireContains(t, out, "5,000")
	requireContains(t, out, "0.74%")
	requireContains(t, out, "/api/download/out.xlsx")

	reqs := env.backend.Requests(testsupport.RouteFilterBatch)
	if len(reqs) != 1 {
		t.Fatalf("expected one batch request, got %d", len(reqs))
	}
	var spec map[string]map[string]any
	if err := json.Unmarshal([]byte(reqs[0].Form["filters"][0]), &spec); err != nil {
		t.Fatalf("decode filters: %v", err)
	}
	if got := spec["date_range"]["start_date"]; got != "2024-01-01" {
		t.Fatalf("start_date = %v", got)
	}
	if got := spec["farm_id"]["allowed"].([]any); len(got) != 2 {
		t.Fatalf("allowed = %v", got)
	}
	if got := spec["protein_pct"]; got["min"] != 2.0 || got["max"] != 4.0 {
		t.Fatalf("protein = %v", got)
	}
	if got := spec["somatic_cell_count"]; got["required"] != false || got["min"] != nil || got["max"] != 400.0 {
		t.Fatalf("optional entry = %v", got)
	}
	if _, ok := spec["fat_pct"]; ok {
		t.Fatal("disabled optional filter should be absent")
	}
	if got := reqs[0].Form["min_match_months"]; len(got) != 1 || got[0] != "3" {
		t.Fatalf("min_match_months = %v", got)
	}
	if got := reqs[0].Form["display_fields"]; len(got) != 4 {
		t.Fatalf("display_fields = %v", got)
	}

	out, _, err = runCLI(t, env, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "batch_filter")
	requireContains(t, out, "succeeded")
}

func TestFilterLegacyJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	seedFilterBackend(env)
	env.backend.Handle(testsupport.RouteFilter, func(w http.ResponseWriter, _ *http.Request) {
		testsupport.WriteJSON(w, http.StatusOK, api.NewLegacyResult(0, 0, ""))
	})

	out, _, err := runCLI(t, env, "--json", "filter", "--legacy", "--file", "a")
	if err != nil {
		t.Fatalf("filter --legacy: %v", err)
	}
	var payload struct {
		Shape string `json:"shape"`
		Stats []struct {
			Label string `json:"label"`
			Value string `json:"value"`
		} `json:"stats"`
		Download string `json:"download_url"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if payload.Shape != "legacy" || payload.Download != "" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if last := payload.Stats[len(payload.Stats)-1]; last.Value != "n/a" {
		t.Fatalf("zero-row ratio = %q", last.Value)
	}
	if len(env.backend.Requests(testsupport.RouteFilterBatch)) != 0 {
		t.Fatal("legacy mode must not call the batch endpoint")
	}
}

func TestFilterServerErrorMessage(t *testing.T) {
	env := setupCLITestEnv(t)
	seedFilterBackend(env)
	env.backend.Handle(testsupport.RouteFilterBatch, func(w http.ResponseWriter, _ *http.Request) {
		testsupport.WriteError(w, http.StatusInternalServerError, "disk full")
	})

	_, _, err := runCLI(t, env, "filter", "--file", "a")
	if !errors.Is(err, services.ErrSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
	if got := describeError(err); got != "submission failed: disk full" {
		t.Fatalf("describeError = %q", got)
	}
}

func TestFilterRequiresFiles(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, env, "filter"); err == nil {
		t.Fatal("expected error without --file")
	}
	if _, _, err := runCLI(t, env, "filter", "--legacy", "--file", "a", "--file", "b"); err == nil {
		t.Fatal("expected error for --legacy with two files")
	}
}

func TestUploadBatchPartialFailureExitsZero(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.Handle(testsupport.RouteUploadBatch, func(w http.ResponseWriter, _ *http.Request) {
		testsupport.WriteJSON(w, http.StatusOK, api.BatchUploadResponse{
			Success:      true,
			SuccessFiles: []api.UploadedFile{{Filename: "a.xlsx", RowCount: 12}},
			FailedFiles:  []api.FailedFile{{Filename: "b.xlsx", Error: "no sample date column"}},
		})
	})
	dir := t.TempDir()
	a := filepath.Join(dir, "a.xlsx")
	b := filepath.Join(dir, "b.xlsx")
	testsupport.WriteFile(t, a, 32)
	testsupport.WriteFile(t, b, 32)

	out, _, err := runCLI(t, env, "upload", a, b)
	if err != nil {
		t.Fatalf("partial batch upload should not fail the command: %v", err)
	}
	requireContains(t, out, "1 file(s) uploaded, 1 failed: b.xlsx")
	requireContains(t, out, "no sample date column")
}

func TestUploadRejectsUnsupportedFile(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	testsupport.WriteFile(t, path, 8)

	_, _, err := runCLI(t, env, "upload", path)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(env.backend.Requests(testsupport.RouteUpload)) != 0 {
		t.Fatal("no upload request expected")
	}
}

func TestDownloadWithPreview(t *testing.T) {
	env := setupCLITestEnv(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range [][]any{{"farm_id", "protein_pct"}, {"F01", 3.2}, {"F02", 3.4}, {"F03", 3.1}} {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	_ = f.Close()
	ref := env.backend.ServeDownload("result.xlsx", buf.Bytes())

	out, _, err := runCLI(t, env, "download", ref, "--preview", "2")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	saved := filepath.Join(env.downloadDir, "result.xlsx")
	if _, err := os.Stat(saved); err != nil {
		t.Fatalf("expected download at %s: %v", saved, err)
	}
	requireContains(t, out, "Showing 2 of 3 rows")
	requireContains(t, out, "F02")
	sum := sha256.Sum256(buf.Bytes())
	requireContains(t, out, "sha256 "+hex.EncodeToString(sum[:]))

	if _, _, err := runCLI(t, env, "download", "/api/download/missing.xlsx"); err == nil {
		t.Fatal("expected error for missing download")
	}
	if _, err := os.Stat(filepath.Join(env.downloadDir, "missing.xlsx")); !os.IsNotExist(err) {
		t.Fatalf("failed download must not leave a file: %v", err)
	}
}

func TestDefaultDownloadPath(t *testing.T) {
	tests := []struct {
		ref  string
		want string
	}{
		{"/api/download/out.xlsx", "out.xlsx"},
		{"/api/download/out.xlsx?token=abc", "out.xlsx"},
		{"/api/download/", "download"},
		{"/", "result.xlsx"},
		{"", "result.xlsx"},
		{"/api/download/..", "result.xlsx"},
	}
	for _, tt := range tests {
		got := defaultDownloadPath("/tmp/dl", tt.ref)
		if want := filepath.Join("/tmp/dl", tt.want); got != want {
			t.Fatalf("defaultDownloadPath(%q) = %q, want %q", tt.ref, got, want)
		}
	}
}

func TestParseToggle(t *testing.T) {
	tests := []struct {
		raw     string
		field   string
		min     string
		max     string
		wantErr bool
	}{
		{raw: "scc=100:400", field: "scc", min: "100", max: "400"},
		{raw: "scc=:400", field: "scc", max: "400"},
		{raw: "scc", field: "scc"},
		{raw: "=1:2", wantErr: true},
		{raw: "parity=1:3", wantErr: true},
	}
	for _, tt := range tests {
		field, toggle, err := parseToggle(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseToggle(%q): expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseToggle(%q): %v", tt.raw, err)
		}
		if field != tt.field || !toggle.Enabled || toggle.Min != tt.min || toggle.Max != tt.max {
			t.Fatalf("parseToggle(%q) = %s %+v", tt.raw, field, toggle)
		}
	}
}
