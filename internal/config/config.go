// Package config loads runtime configuration from the environment, with
// optional .env support for local development.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/kbridge-ai/kbridge/internal/filter"
)

// Config is the full runtime configuration.
type Config struct {
	Server    ServerConfig
	AWS       AWSConfig
	Model     ModelConfig
	Retrieval RetrievalConfig
	Pipeline  PipelineConfig
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Port  int
	Token string // bearer token; empty disables auth
}

// AWSConfig holds credentials and endpoint overrides for Bedrock.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	AssumeRoleARN   string
	RuntimeEndpoint string
	AgentEndpoint   string
}

// ModelConfig selects models and inference parameters.
type ModelConfig struct {
	GenerationID string
	FilterID     string // used for reference extraction and citation attribution
	MaxTokens    int
	Temperature  float64
	TopP         float64
}

// RetrievalConfig selects the retrieval backend.
type RetrievalConfig struct {
	Backend         string // "bedrock" or "local"
	KnowledgeBaseID string
	Results         int
	DataDir         string // local backend only
}

// PipelineConfig controls query processing behavior.
type PipelineConfig struct {
	EnableFiltering bool
	EnableCitations bool
	MaxHistory      int
	SchemaPath      string
	AlwaysInclude   []string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Model: ModelConfig{
			GenerationID: "anthropic.claude-3-5-sonnet-20240620-v1:0",
			FilterID:     "anthropic.claude-3-haiku-20240307-v1:0",
			MaxTokens:    4096,
			Temperature:  0.7,
			TopP:         0.9,
		},
		Retrieval: RetrievalConfig{
			Backend: "bedrock",
			Results: 5,
			DataDir: defaultDataDir(),
		},
		Pipeline: PipelineConfig{
			EnableFiltering: true,
			EnableCitations: false,
			MaxHistory:      10,
			AlwaysInclude:   []string{"created_at_iso", "source_uri"},
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kbridge"
	}
	return filepath.Join(home, ".kbridge")
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := defaults()
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadLocal is Load with the retrieval backend forced to "local". Used by
// commands that only touch the local store and never need a knowledge base.
func LoadLocal() (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	applyEnvOverrides(&cfg)
	cfg.Retrieval.Backend = "local"

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	envInt(&cfg.Server.Port, "KBRIDGE_PORT")
	envString(&cfg.Server.Token, "KBRIDGE_API_TOKEN")

	envString(&cfg.AWS.Region, "KBRIDGE_AWS_REGION")
	envString(&cfg.AWS.AccessKeyID, "KBRIDGE_AWS_ACCESS_KEY_ID")
	envString(&cfg.AWS.SecretAccessKey, "KBRIDGE_AWS_SECRET_ACCESS_KEY")
	envString(&cfg.AWS.AssumeRoleARN, "KBRIDGE_ASSUME_ROLE_ARN")
	envString(&cfg.AWS.RuntimeEndpoint, "KBRIDGE_RUNTIME_ENDPOINT")
	envString(&cfg.AWS.AgentEndpoint, "KBRIDGE_AGENT_ENDPOINT")

	envString(&cfg.Model.GenerationID, "KBRIDGE_MODEL_ID")
	envString(&cfg.Model.FilterID, "KBRIDGE_FILTER_MODEL_ID")
	envInt(&cfg.Model.MaxTokens, "KBRIDGE_MAX_TOKENS")
	envFloat(&cfg.Model.Temperature, "KBRIDGE_TEMPERATURE")
	envFloat(&cfg.Model.TopP, "KBRIDGE_TOP_P")

	envString(&cfg.Retrieval.Backend, "KBRIDGE_BACKEND")
	envString(&cfg.Retrieval.KnowledgeBaseID, "KBRIDGE_KNOWLEDGE_BASE_ID")
	envInt(&cfg.Retrieval.Results, "KBRIDGE_RESULTS")
	envString(&cfg.Retrieval.DataDir, "KBRIDGE_DATA_DIR")

	envBool(&cfg.Pipeline.EnableFiltering, "KBRIDGE_ENABLE_FILTERING")
	envBool(&cfg.Pipeline.EnableCitations, "KBRIDGE_ENABLE_CITATIONS")
	envInt(&cfg.Pipeline.MaxHistory, "KBRIDGE_MAX_HISTORY")
	envString(&cfg.Pipeline.SchemaPath, "KBRIDGE_SCHEMA_PATH")
	envList(&cfg.Pipeline.AlwaysInclude, "KBRIDGE_ALWAYS_INCLUDE")
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse %s=%q as int. Using default value.\n", key, v)
		return
	}
	*dst = n
}

func envFloat(dst *float64, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse %s=%q as float. Using default value.\n", key, v)
		return
	}
	*dst = f
}

func envBool(dst *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[WARN] could not parse %s=%q as bool. Using default value.\n", key, v)
		return
	}
	*dst = b
}

func envList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

// Validate checks the configuration for out-of-range or missing values.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("temperature %g out of range [0, 1]", c.Model.Temperature)
	}
	if c.Model.TopP < 0 || c.Model.TopP > 1 {
		return fmt.Errorf("top_p %g out of range [0, 1]", c.Model.TopP)
	}
	if c.Model.MaxTokens < 1 {
		return fmt.Errorf("max tokens %d out of range", c.Model.MaxTokens)
	}
	if c.Retrieval.Results < 1 || c.Retrieval.Results > 100 {
		return fmt.Errorf("number of results %d out of range [1, 100]", c.Retrieval.Results)
	}
	switch c.Retrieval.Backend {
	case "bedrock":
		if c.Retrieval.KnowledgeBaseID == "" {
			return fmt.Errorf("knowledge base ID is required for the bedrock backend")
		}
	case "local":
	default:
		return fmt.Errorf("unknown retrieval backend %q", c.Retrieval.Backend)
	}
	if c.Pipeline.MaxHistory < 0 {
		return fmt.Errorf("max history %d out of range", c.Pipeline.MaxHistory)
	}
	return nil
}

// LoadSchema parses a metadata schema file: a JSON array of field
// definitions with key, type and description. An empty path yields an
// empty schema, which disables filter construction.
func LoadSchema(path string) (filter.Schema, error) {
	if path == "" {
		return filter.Schema{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return filter.Schema{}, fmt.Errorf("reading schema file: %w", err)
	}
	var fields []filter.Field
	if err := json.Unmarshal(data, &fields); err != nil {
		return filter.Schema{}, fmt.Errorf("parsing schema file %s: %w", path, err)
	}
	return filter.NewSchema(fields)
}
