// Package config holds the typed option structs AETHER's components
// consume. Loading config.toml off disk and merging environment overrides
// is an external collaborator's job (out of scope here); this package only
// defines the shapes those options decode into and sensible defaults, plus
// a thin Decode helper the orchestrator's tests use to build a Config from
// an in-memory TOML string.
package config

import "github.com/pelletier/go-toml/v2"

// Config holds all AETHER configuration relevant to the core pipeline.
type Config struct {
	Inference    InferenceConfig    `toml:"inference"`
	Storage      StorageConfig      `toml:"storage"`
	Embeddings   EmbeddingsConfig   `toml:"embeddings"`
	Search       SearchConfig       `toml:"search"`
	Coupling     CouplingConfig     `toml:"coupling"`
	Drift        DriftConfig        `toml:"drift"`
	Health       HealthConfig       `toml:"health"`
	Intent       IntentConfig       `toml:"intent"`
	Logging      LoggingConfig      `toml:"logging"`
}

// InferenceConfig selects and configures the SIR generator.
type InferenceConfig struct {
	// Provider ∈ {auto, mock, cloud_api, local_runtime}. "auto" selects
	// cloud_api when APIKeyEnv resolves to a non-empty value, else mock.
	Provider string `toml:"provider"`
	// APIKeyEnv names the environment variable holding the cloud API key.
	APIKeyEnv string `toml:"api_key_env"`
	Model     string `toml:"model"`
	Endpoint  string `toml:"endpoint"`
}

// StorageConfig configures on-disk mirroring and backend selection.
type StorageConfig struct {
	MirrorSIRFiles   bool   `toml:"mirror_sir_files"`
	GraphBackend     string `toml:"graph_backend"` // full | fallback
	Neo4jURI         string `toml:"neo4j_uri"`
	Neo4jUsername    string `toml:"neo4j_username"`
	Neo4jPasswordEnv string `toml:"neo4j_password_env"`
	Neo4jDatabase    string `toml:"neo4j_database"`
}

// EmbeddingsConfig selects and configures the embedding generator.
type EmbeddingsConfig struct {
	Provider      string `toml:"provider"`       // cloud_api | local_runtime | mock
	VectorBackend string `toml:"vector_backend"` // ann | fallback
	Model         string `toml:"model"`
	Endpoint      string `toml:"endpoint"`
}

// SearchConfig configures the retrieval engine.
type SearchConfig struct {
	LexicalWeight  float64                `toml:"lexical_weight"`
	SemanticWeight float64                `toml:"semantic_weight"`
	Reranker       string                 `toml:"reranker"` // none | local | api
	RerankWindow   int                    `toml:"rerank_window"`
	Thresholds     SearchThresholdsConfig `toml:"thresholds"`
}

// SearchThresholdsConfig configures adaptive similarity cutoffs.
type SearchThresholdsConfig struct {
	Default      float64            `toml:"default"`
	PerLanguage  map[string]float64 `toml:"per_language"`
}

// CouplingConfig configures the temporal coupling miner.
type CouplingConfig struct {
	CommitWindow      int      `toml:"commit_window"`
	MinCoChangeCount  int      `toml:"min_co_change_count"`
	ExcludePatterns   []string `toml:"exclude_patterns"`
	MaxFilesPerCommit int      `toml:"max_files_per_commit"`
}

// DriftConfig configures semantic drift detection.
type DriftConfig struct {
	DriftThreshold float64 `toml:"drift_threshold"`
	AnalysisWindow int     `toml:"analysis_window"` // sir_history versions per symbol
	HubPercentile  float64 `toml:"hub_percentile"`
}

// HealthConfig configures the graph-health composite risk score.
type HealthConfig struct {
	RiskWeights RiskWeights `toml:"risk_weights"`
}

// RiskWeights are the §4.11.4 composite risk factor weights.
type RiskWeights struct {
	PageRank       float64 `toml:"pagerank"`
	TestCoverage   float64 `toml:"test_coverage"`
	Drift          float64 `toml:"drift"`
	MissingSIR     float64 `toml:"missing_sir"`
	AccessRecency  float64 `toml:"access_recency"`
}

// IntentConfig configures snapshot/verify classification.
type IntentConfig struct {
	SimilarityPreservedThreshold float64 `toml:"similarity_preserved_threshold"`
	SimilarityShiftedThreshold   float64 `toml:"similarity_shifted_threshold"`
	AutoRegenerateSIR            bool    `toml:"auto_regenerate_sir"`
}

// LoggingConfig mirrors internal/logging's configuration surface.
type LoggingConfig struct {
	DebugMode  bool            `toml:"debug_mode"`
	Level      string          `toml:"level"`
	JSONFormat bool            `toml:"json_format"`
	Categories map[string]bool `toml:"categories"`
}

// DefaultConfig returns AETHER's default configuration.
func DefaultConfig() *Config {
	return &Config{
		Inference: InferenceConfig{
			Provider: "auto",
		},
		Storage: StorageConfig{
			MirrorSIRFiles:   false,
			GraphBackend:     "fallback",
			Neo4jURI:         "bolt://localhost:7687",
			Neo4jUsername:    "neo4j",
			Neo4jPasswordEnv: "AETHER_NEO4J_PASSWORD",
			Neo4jDatabase:    "neo4j",
		},
		Embeddings: EmbeddingsConfig{
			Provider:      "mock",
			VectorBackend: "fallback",
		},
		Search: SearchConfig{
			LexicalWeight:  0.5,
			SemanticWeight: 0.5,
			Reranker:       "none",
			RerankWindow:   20,
			Thresholds: SearchThresholdsConfig{
				Default:     0.6,
				PerLanguage: map[string]float64{},
			},
		},
		Coupling: CouplingConfig{
			CommitWindow:      500,
			MinCoChangeCount:  3,
			MaxFilesPerCommit: 50,
		},
		Drift: DriftConfig{
			DriftThreshold: 0.85,
			AnalysisWindow: 200,
			HubPercentile:  0.95,
		},
		Health: HealthConfig{
			RiskWeights: RiskWeights{
				PageRank:      0.30,
				TestCoverage:  0.25,
				Drift:         0.20,
				MissingSIR:    0.15,
				AccessRecency: 0.10,
			},
		},
		Intent: IntentConfig{
			SimilarityPreservedThreshold: 0.90,
			SimilarityShiftedThreshold:   0.70,
			AutoRegenerateSIR:            false,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Decode parses TOML bytes into a Config seeded from DefaultConfig, so that
// a partial document only overrides the fields it sets.
func Decode(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
