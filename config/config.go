// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads engine configuration from a YAML file with
// environment variable overrides. Everything has a default; a missing file
// is only an error when a path was given explicitly.
package config

import (
	"fmt"
	"os"

	"github.com/poiesic/atlas/ai"
	"github.com/poiesic/atlas/search"
	"gopkg.in/yaml.v3"
)

// Config is the file-level engine configuration.
type Config struct {
	Store struct {
		// Path is the badger database directory.
		Path string `yaml:"path"`
	} `yaml:"store"`

	AI struct {
		EmbeddingHost  string  `yaml:"embedding_host"`
		GeneratorHost  string  `yaml:"generator_host"`
		EmbeddingModel string  `yaml:"embedding_model"`
		GeneratorModel string  `yaml:"generator_model"`
		Temperature    float64 `yaml:"temperature"`
		MaxTokens      int     `yaml:"max_tokens"`
	} `yaml:"ai"`

	Search struct {
		// Weights must be non-negative and sum to 1 when set. All zero
		// means use the engine defaults.
		SemanticWeight float32 `yaml:"semantic_weight"`
		SpatialWeight  float32 `yaml:"spatial_weight"`
		TemporalWeight float32 `yaml:"temporal_weight"`

		// BranchTimeoutSecs bounds each retrieval branch.
		BranchTimeoutSecs int `yaml:"branch_timeout"`
	} `yaml:"search"`

	Answer struct {
		TokenBudget     int `yaml:"token_budget"`
		IdleTimeoutSecs int `yaml:"idle_timeout"`
	} `yaml:"answer"`

	Metrics struct {
		// Addr enables the prometheus endpoint when non-empty,
		// e.g. ":9090".
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Store.Path = "atlas.db"
	aiDefaults := ai.DefaultConfig()
	cfg.AI.EmbeddingHost = aiDefaults.EmbeddingHost
	cfg.AI.GeneratorHost = aiDefaults.GeneratorHost
	cfg.AI.EmbeddingModel = aiDefaults.EmbeddingModel
	cfg.AI.GeneratorModel = aiDefaults.GeneratorModel
	cfg.AI.Temperature = aiDefaults.Temperature
	cfg.AI.MaxTokens = aiDefaults.MaxTokens
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads the configuration file at path, falling back to defaults for
// anything the file omits, then applies environment overrides. An empty
// path skips the file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets environment variables win over the file, so deployments can
// point one binary at different hosts without editing YAML.
func (c *Config) applyEnv() {
	if v := os.Getenv("ATLAS_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("ATLAS_AI_HOST"); v != "" {
		c.AI.EmbeddingHost = v
		c.AI.GeneratorHost = v
	}
	if v := os.Getenv("ATLAS_EMBEDDING_HOST"); v != "" {
		c.AI.EmbeddingHost = v
	}
	if v := os.Getenv("ATLAS_GENERATOR_HOST"); v != "" {
		c.AI.GeneratorHost = v
	}
	if v := os.Getenv("ATLAS_EMBEDDING_MODEL"); v != "" {
		c.AI.EmbeddingModel = v
	}
	if v := os.Getenv("ATLAS_GENERATOR_MODEL"); v != "" {
		c.AI.GeneratorModel = v
	}
	if v := os.Getenv("ATLAS_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("ATLAS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// AIConfig converts the file section into the ai package's configuration.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.EmbeddingHost),
		ai.WithGeneratorHost(c.AI.GeneratorHost),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithGeneratorModel(c.AI.GeneratorModel),
		ai.WithTemperature(c.AI.Temperature),
		ai.WithMaxTokens(c.AI.MaxTokens),
	)
}

// Weights returns the configured ranking weights, or the engine defaults
// when the file leaves them unset.
func (c *Config) Weights() (search.Weights, error) {
	w := search.Weights{
		Semantic: c.Search.SemanticWeight,
		Spatial:  c.Search.SpatialWeight,
		Temporal: c.Search.TemporalWeight,
	}
	if w.Semantic == 0 && w.Spatial == 0 && w.Temporal == 0 {
		return search.DefaultWeights(), nil
	}
	if err := w.Validate(); err != nil {
		return search.Weights{}, err
	}
	return w, nil
}
