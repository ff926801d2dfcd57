package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/towerworks/foundation-core/internal/designd"
	"github.com/towerworks/foundation-core/internal/store"
	"github.com/towerworks/foundation-core/pkg/logger"
)

const (
	sitePath   = "../../config/site.yaml"
	paramsPath = "../../config/params.yaml"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	prev := logger.Default
	t.Cleanup(func() { logger.SetDefault(prev) })
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestOptimizeCommand(t *testing.T) {
	out, logs, err := execute(t, "optimize", "--site", sitePath, "--params", paramsPath, "--kind", "pile", "--run-id", "run-cli", "--log-format", "json")
	if err != nil {
		t.Fatalf("optimize: %v\n%s", err, logs)
	}
	var res designd.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("stdout is not a result document: %v\n%s", err, out)
	}
	if res.RunID != "run-cli" || res.Batch == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(res.Batch.Results) != 5 || res.Summary.Towers != 5 {
		t.Fatalf("expected 5 tower results, got %d", len(res.Batch.Results))
	}
	if !strings.Contains(logs, "batch completed") {
		t.Fatalf("expected batch log on stderr, got %s", logs)
	}
}

func TestGroupCommandPersistsRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	out, logs, err := execute(t, "group", "--site", sitePath, "--params", paramsPath, "--db", db, "--run-id", "run-grp", "--log-level", "error")
	if err != nil {
		t.Fatalf("group: %v\n%s", err, logs)
	}
	var res designd.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("stdout is not a result document: %v", err)
	}
	if res.Coverage == nil {
		t.Fatal("expected coverage report")
	}

	st, err := store.NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	run, err := st.Get(context.Background(), "run-grp")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Status != store.StatusCompleted || run.Mode != store.ModeGroup || run.ParamsYAML == "" {
		t.Fatalf("unexpected stored run %+v", run)
	}
	picks, err := st.Picks(context.Background(), "run-grp")
	if err != nil {
		t.Fatalf("Picks: %v", err)
	}
	if len(picks) != len(res.Coverage.Picks) {
		t.Fatalf("expected %d stored picks, got %d", len(res.Coverage.Picks), len(picks))
	}
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing kind", []string{"optimize", "--site", sitePath, "--params", paramsPath}, "kind"},
		{"unknown kind", []string{"optimize", "--site", sitePath, "--params", paramsPath, "--kind", "caisson"}, "unknown foundation kind"},
		{"missing site file", []string{"group", "--site", "nope.yaml", "--params", paramsPath}, "nope.yaml"},
		{"bad log format", []string{"group", "--site", sitePath, "--params", paramsPath, "--log-format", "xml"}, "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
