package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetLoggingState() {
	CloseAll()
	logsDir = ""
	workspace = ""
	configLoaded = false
	cfg = loggingConfig{}
}

func TestAllCategoriesLog(t *testing.T) {
	tempDir := t.TempDir()
	defer resetLoggingState()

	categories := map[string]bool{
		"boot": true, "parser": true, "sir": true, "inference": true,
		"relstore": true, "graphstore": true, "vectorstore": true,
		"orchestrator": true, "retrieval": true, "memory": true,
		"analysis": true, "historian": true,
	}

	if err := Initialize(tempDir, true, "debug", false, categories); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	all := []Category{
		CategoryBoot, CategoryParser, CategorySIR, CategoryInference,
		CategoryRelStore, CategoryGraphStore, CategoryVectorStore,
		CategoryOrchestrator, CategoryRetrieval, CategoryMemory,
		CategoryAnalysis, CategoryHistorian,
	}
	for _, cat := range all {
		Get(cat).Info("hello from %s", cat)
	}
	CloseAll()

	for _, cat := range all {
		date := time.Now().Format("2006-01-02")
		path := filepath.Join(tempDir, ".aether", "logs", date+"_"+string(cat)+".log")
		data, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("expected log file for category %s: %v", cat, err)
			continue
		}
		if !strings.Contains(string(data), "hello from "+string(cat)) {
			t.Errorf("log file for %s missing expected content", cat)
		}
	}
}

func TestProductionModeIsNoop(t *testing.T) {
	tempDir := t.TempDir()
	defer resetLoggingState()

	if err := Initialize(tempDir, false, "info", false, nil); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	Get(CategoryBoot).Info("should not be written")

	logsPath := filepath.Join(tempDir, ".aether", "logs")
	if _, err := os.Stat(logsPath); !os.IsNotExist(err) {
		t.Errorf("expected no logs directory in production mode, got err=%v", err)
	}
}

func TestCategoryDisabledIsNoop(t *testing.T) {
	tempDir := t.TempDir()
	defer resetLoggingState()

	if err := Initialize(tempDir, true, "debug", false, map[string]bool{"parser": false}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	Get(CategoryParser).Info("should be suppressed")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(tempDir, ".aether", "logs", date+"_parser.log")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected no log file for disabled category, got err=%v", err)
	}
}

func TestJSONFormat(t *testing.T) {
	tempDir := t.TempDir()
	defer resetLoggingState()

	if err := Initialize(tempDir, true, "debug", true, nil); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	Get(CategorySIR).Info("canonicalized")
	CloseAll()

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(tempDir, ".aether", "logs", date+"_sir.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"canonicalized"`) {
		t.Errorf("expected JSON-formatted entry, got: %s", data)
	}
}

func TestTimerStopWithThreshold(t *testing.T) {
	tempDir := t.TempDir()
	defer resetLoggingState()

	if err := Initialize(tempDir, true, "debug", false, nil); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	timer := StartTimer(CategoryOrchestrator, "index_file")
	elapsed := timer.StopWithThreshold(time.Hour)
	if elapsed < 0 {
		t.Errorf("expected non-negative elapsed duration")
	}
}
