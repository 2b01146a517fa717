// Package inference implements the text-to-SQL orchestrator: the state
// machine that turns a clinical question into executed, policy-checked
// SQL. The pipeline is request-scoped and reentrant, so parallel callers
// can share one Pipeline value across goroutines.
package inference

import (
	"encoding/json"
	"os"
)

// AppConfig carries every orchestrator-tunable knob, loaded the same
// multi-path-lookup way as internal/llm.loadConfig (mirrored here rather
// than imported so the orchestrator config and the LLM client config can
// evolve independently).
type AppConfig struct {
	DemoMode      bool    `json:"demo_mode"`
	BudgetLimit   int     `json:"budget_limit"`
	CostPer1KTok  float64 `json:"llm_cost_per_1k_tokens"`
	TokenBudget   int     `json:"context_token_budget"`
	ExamplesPerQ  int     `json:"examples_per_query"`
	TemplatesPerQ int     `json:"templates_per_query"`
	MaxRetries    int     `json:"max_retry_attempts"`

	ExpertTriggerMode  string `json:"expert_trigger_mode"` // "off" | "score"
	ExpertScoreThresh  int    `json:"expert_score_threshold"`

	MaxDBJoins   int `json:"max_db_joins"`
	RowCap       int `json:"row_cap"`
	DBTimeoutSec int `json:"db_timeout_sec"`

	OracleDSN            string `json:"oracle_dsn"`
	OracleUser           string `json:"oracle_user"`
	OraclePassword       string `json:"oracle_password"`
	OracleDefaultSchema  string `json:"oracle_default_schema"`

	RAGTopK            int  `json:"rag_top_k"`
	RAGHybridEnabled   bool `json:"rag_hybrid_enabled"`
	RAGHybridCandidates int `json:"rag_hybrid_candidates"`
	RAGBM25MaxDocs     int  `json:"rag_bm25_max_docs"`
	RAGEmbeddingDim    int  `json:"rag_embedding_dim"`

	MongoURI         string `json:"mongo_uri"`
	MongoVectorIndex string `json:"mongo_vector_index"`

	AllowedTables []string `json:"allowed_tables"`
}

// DefaultAppConfig provides sane defaults for the knobs that matter
// before any config file is found: a conservative budget, a sensible row
// cap, and two retry attempts.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		BudgetLimit:        50000,
		CostPer1KTok:       2.0,
		TokenBudget:        3500,
		ExamplesPerQ:       4,
		TemplatesPerQ:      3,
		MaxRetries:         2,
		ExpertTriggerMode:  "score",
		ExpertScoreThresh:  3,
		MaxDBJoins:         5,
		RowCap:             1000,
		DBTimeoutSec:       30,
		RAGTopK:            8,
		RAGHybridEnabled:   true,
		RAGHybridCandidates: 5,
		RAGBM25MaxDocs:     2000,
		RAGEmbeddingDim:    384,
	}
}

// LoadAppConfig loads and overlays an AppConfig JSON file on top of
// DefaultAppConfig, trying each path in order and returning the defaults
// unchanged if none exist — unlike internal/llm.loadConfig, a missing
// orchestrator config file is not fatal, since every field has a workable
// default.
func LoadAppConfig(paths ...string) AppConfig {
	cfg := DefaultAppConfig()
	if len(paths) == 0 {
		paths = []string{"app_config.json", "../app_config.json", "../../app_config.json"}
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := json.Unmarshal(data, &cfg); err == nil {
			return cfg
		}
	}
	return cfg
}
