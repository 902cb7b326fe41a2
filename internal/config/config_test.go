package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultWeightsSumToOne(t *testing.T) {
	cfg := Default()
	sum := cfg.Similarity.TextWeight + cfg.Similarity.EntityWeight + cfg.Similarity.TemporalWeight +
		cfg.Similarity.SourceTypeWeight + cfg.Similarity.SourceNameWeight
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("similarity weights sum to %f", sum)
	}
}

func TestDefaultThresholds(t *testing.T) {
	cfg := Default()
	if cfg.Clustering.Threshold != 0.7 {
		t.Fatalf("expected threshold 0.7, got %f", cfg.Clustering.Threshold)
	}
	if cfg.Clustering.MinClusterSize != 2 {
		t.Fatalf("expected min cluster size 2, got %d", cfg.Clustering.MinClusterSize)
	}
	if cfg.Rescoring.HistoryCap != 10 {
		t.Fatalf("expected history cap 10, got %d", cfg.Rescoring.HistoryCap)
	}
	if cfg.Collection.MinConfidence != 0.4 {
		t.Fatalf("expected confidence floor 0.4, got %f", cfg.Collection.MinConfidence)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
db_path: /tmp/custom.db
clustering:
  threshold: 0.8
  min_cluster_size: 3
  max_parallel: 4
collection:
  min_confidence: 0.5
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(configPathEnv, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/custom.db" {
		t.Fatalf("expected overridden db path, got %s", cfg.DBPath)
	}
	if cfg.Clustering.Threshold != 0.8 || cfg.Clustering.MinClusterSize != 3 {
		t.Fatalf("clustering overrides not applied: %+v", cfg.Clustering)
	}
	// Untouched sections keep their defaults.
	if cfg.Rescoring.HistoryCap != 10 {
		t.Fatalf("expected default history cap, got %d", cfg.Rescoring.HistoryCap)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(configPathEnv, "/nonexistent/config.yaml")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(dbPathEnv, "/tmp/env.db")
	t.Setenv(classifierAddrEnv, "classifier:9000")
	t.Setenv(thresholdEnv, "0.85")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("db path env override not applied: %s", cfg.DBPath)
	}
	if cfg.Classifier.Addr != "classifier:9000" {
		t.Fatalf("classifier env override not applied: %s", cfg.Classifier.Addr)
	}
	if cfg.Clustering.Threshold != 0.85 {
		t.Fatalf("threshold env override not applied: %f", cfg.Clustering.Threshold)
	}
}

func TestThresholdEnvRejectsOutOfRange(t *testing.T) {
	t.Setenv(thresholdEnv, "1.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Clustering.Threshold != 0.7 {
		t.Fatalf("out-of-range threshold applied: %f", cfg.Clustering.Threshold)
	}
}
