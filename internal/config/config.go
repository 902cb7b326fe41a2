package config

// #region imports
import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// #endregion imports

// #region env-keys

const (
	configPathEnv     = "RECOUPEMENT_CONFIG"
	dbPathEnv         = "RECOUPEMENT_DB"
	classifierAddrEnv = "CLASSIFIER_ADDR"
	thresholdEnv      = "SIMILARITY_THRESHOLD"
)

// #endregion env-keys

// #region config

// Config holds all tunables for the reevaluation engine.
type Config struct {
	DBPath     string           `yaml:"db_path"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Similarity SimilarityConfig `yaml:"similarity"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Rescoring  RescoringConfig  `yaml:"rescoring"`
	Collection CollectionConfig `yaml:"collection"`
	Cache      CacheConfig      `yaml:"cache"`
}

// ClassifierConfig wires the external anomaly-classification sidecar.
type ClassifierConfig struct {
	Addr    string        `yaml:"addr"`
	Timeout time.Duration `yaml:"timeout"`
	Enabled bool          `yaml:"enabled"`
}

// SimilarityConfig holds the factor weights of the similarity engine.
// Weights should sum to 1; each factor is independently bounded to [0,1].
type SimilarityConfig struct {
	TextWeight       float64 `yaml:"text_weight"`
	EntityWeight     float64 `yaml:"entity_weight"`
	TemporalWeight   float64 `yaml:"temporal_weight"`
	SourceTypeWeight float64 `yaml:"source_type_weight"`
	SourceNameWeight float64 `yaml:"source_name_weight"`
}

// ClusteringConfig controls the connected-components builder.
type ClusteringConfig struct {
	Threshold      float64 `yaml:"threshold"`
	MinClusterSize int     `yaml:"min_cluster_size"`
	MaxParallel    int     `yaml:"max_parallel"` // concurrent pairwise scoring goroutines
}

// RescoringConfig controls threat rescoring and history.
type RescoringConfig struct {
	ClusterBoostPerDoc float64 `yaml:"cluster_boost_per_doc"`
	ClusterFactorCap   float64 `yaml:"cluster_factor_cap"`
	HistoryCap         int     `yaml:"history_cap"`
}

// CollectionConfig controls collection-request generation.
type CollectionConfig struct {
	MinConfidence float64       `yaml:"min_confidence"`
	RequestTTL    time.Duration `yaml:"request_ttl"`
}

// CacheConfig holds TTLs for the shared cache.
type CacheConfig struct {
	SimilarityTTL time.Duration `yaml:"similarity_ttl"`
	AnalysisTTL   time.Duration `yaml:"analysis_ttl"`
}

// #endregion config

// #region defaults

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath: "recoupement.db",
		Classifier: ClassifierConfig{
			Addr:    "localhost:50061",
			Timeout: 5 * time.Second,
			Enabled: false,
		},
		Similarity: SimilarityConfig{
			TextWeight:       0.4,
			EntityWeight:     0.3,
			TemporalWeight:   0.15,
			SourceTypeWeight: 0.1,
			SourceNameWeight: 0.05,
		},
		Clustering: ClusteringConfig{
			Threshold:      0.7,
			MinClusterSize: 2,
			MaxParallel:    8,
		},
		Rescoring: RescoringConfig{
			ClusterBoostPerDoc: 0.1,
			ClusterFactorCap:   1.5,
			HistoryCap:         10,
		},
		Collection: CollectionConfig{
			MinConfidence: 0.4,
			RequestTTL:    7 * 24 * time.Hour,
		},
		Cache: CacheConfig{
			SimilarityTTL: 30 * time.Minute,
			AnalysisTTL:   10 * time.Minute,
		},
	}
}

// #endregion defaults

// #region load

// Load reads the yaml config (path from RECOUPEMENT_CONFIG, or the built-in
// defaults if unset) and applies environment overrides.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DBPath = envOr(dbPathEnv, cfg.DBPath)
	cfg.Classifier.Addr = envOr(classifierAddrEnv, cfg.Classifier.Addr)
	if v := os.Getenv(thresholdEnv); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 && f <= 1 {
			cfg.Clustering.Threshold = f
		}
	}
}

// envOr returns the environment value for key, or fallback if unset.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load
