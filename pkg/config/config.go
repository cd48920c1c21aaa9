// Package config loads patternminer settings from a config file, environment
// variables (PATTERNMINER_*) and command-line flags, and validates them
// before any stage runs.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. PATTERNMINER_SEARCH_WORKERS.
const EnvPrefix = "PATTERNMINER"

// Config is the full run configuration.
type Config struct {
	// Corpus is the SQLite sentence corpus.
	Corpus string `mapstructure:"corpus" validate:"required"`
	// Relations is the YAML file with relations, seeds and type overrides.
	Relations string `mapstructure:"relations"`
	// Gazetteer is the TSV entity list used for entity tagging.
	Gazetteer string `mapstructure:"gazetteer"`
	// Segmenter names the corpus tokenizer: english, kagome (Japanese) or
	// whitespace (already tokenized text). It also picks the POS tagger.
	Segmenter string `mapstructure:"segmenter" validate:"oneof=english kagome whitespace"`
	// WorkDir receives raw hits and scored mappings.
	WorkDir     string `mapstructure:"workDir" validate:"required"`
	LogLevel    string `mapstructure:"logLevel" validate:"oneof=trace debug info warn error"`
	MetricsAddr string `mapstructure:"metricsAddr"`

	Search  SearchConfig  `mapstructure:"search"`
	Filter  FilterConfig  `mapstructure:"filter"`
	Scoring ScoringConfig `mapstructure:"scoring"`
}

// SearchConfig controls the corpus search stage.
type SearchConfig struct {
	Workers             int  `mapstructure:"workers" validate:"min=1"`
	MaxSentencesPerPair int  `mapstructure:"maxSentencesPerPair" validate:"min=0"`
	MaxPatternTokens    int  `mapstructure:"maxPatternTokens" validate:"min=1"`
	UseSerializedHits   bool `mapstructure:"useSerializedHits"`
}

// FilterConfig holds the thresholds of the filter stage.
type FilterConfig struct {
	MinOccurrence int      `mapstructure:"minOccurrence" validate:"min=1"`
	MinTokens     int      `mapstructure:"minTokens" validate:"min=0"`
	MaxTokens     int      `mapstructure:"maxTokens" validate:"omitempty,gtefield=MinTokens"`
	Blacklist     []string `mapstructure:"blacklist"`
}

// ScoringConfig controls the confidence stage.
type ScoringConfig struct {
	Workers    int `mapstructure:"workers" validate:"min=1"`
	MaxSamples int `mapstructure:"maxSamples" validate:"min=1"`
}

// HitsDir is where search workers write raw hits.
func (c *Config) HitsDir() string { return filepath.Join(c.WorkDir, "hits") }

// MappingsDir is where scored mappings are persisted.
func (c *Config) MappingsDir() string { return filepath.Join(c.WorkDir, "mappings") }

var validate = validator.New()

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("corpus", "corpus.db")
	v.SetDefault("relations", "")
	v.SetDefault("gazetteer", "")
	v.SetDefault("segmenter", "english")
	v.SetDefault("workDir", "work")
	v.SetDefault("logLevel", "info")
	v.SetDefault("metricsAddr", "")
	v.SetDefault("search.workers", 4)
	v.SetDefault("search.maxSentencesPerPair", 1000)
	v.SetDefault("search.maxPatternTokens", 10)
	v.SetDefault("search.useSerializedHits", false)
	v.SetDefault("filter.minOccurrence", 2)
	v.SetDefault("filter.minTokens", 1)
	v.SetDefault("filter.maxTokens", 10)
	v.SetDefault("filter.blacklist", []string{})
	v.SetDefault("scoring.workers", 4)
	v.SetDefault("scoring.maxSamples", 100)
	return v
}

// Load reads file (if not empty) into v, decodes and validates the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks a decoded configuration.
func Validate(cfg *Config) error {
	return validateStruct(cfg)
}

func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value: %v)", e.Namespace(), tagWithParam(e), e.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func tagWithParam(e validator.FieldError) string {
	if e.Param() == "" {
		return e.Tag()
	}
	return e.Tag() + "=" + e.Param()
}
