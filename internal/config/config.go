package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDBName          = "imagedb"
	DefaultSocket          = "./searchsocket"
	DefaultDescriptorDim   = 128
	DefaultBranching       = 10
	DefaultDepth           = 6
	DefaultMaxIterations   = 100
	DefaultAttempts        = 5
	DefaultSeed            = 1
	DefaultTopMatches      = 5
	DefaultResponseMatches = 1
	DefaultQueryTimeoutSec = 30
	DefaultCacheSize       = 128
)

// Config is the image search configuration, read from YAML.
type Config struct {
	DBPath        string           `yaml:"dbpath"`
	DBName        string           `yaml:"dbname"`
	Socket        string           `yaml:"socket"`
	HTTPAddr      string           `yaml:"http_addr"`
	DescriptorDim int              `yaml:"descriptor_dim"`
	Vocabulary    VocabularyConfig `yaml:"vocabulary"`
	Search        SearchConfig     `yaml:"search"`
	Log           LogConfig        `yaml:"log"`
}

// VocabularyConfig holds hierarchical k-means parameters.
type VocabularyConfig struct {
	Branching     int    `yaml:"branching"`
	Depth         int    `yaml:"depth"`
	MaxIterations int    `yaml:"max_iterations"`
	Attempts      int    `yaml:"attempts"`
	Seed          uint64 `yaml:"seed"`
}

// SearchConfig holds query serving settings.
type SearchConfig struct {
	TopMatches      int `yaml:"top_matches"`
	ResponseMatches int `yaml:"response_matches"` // names returned on the socket reply line
	QueryTimeoutSec int `yaml:"query_timeout_sec"`
	CacheSize       int `yaml:"cache_size"` // negative disables the query cache
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// NewConfig returns a default configuration rooted at dir.
func NewConfig(dir string) (*Config, error) {
	if dir == "" {
		return nil, fmt.Errorf("config: empty database directory")
	}
	c := &Config{DBPath: dir}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromFile reads a YAML configuration file.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &c, nil
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.DBName == "" {
		c.DBName = DefaultDBName
	}
	if c.Socket == "" {
		c.Socket = DefaultSocket
	}
	if c.DescriptorDim <= 0 {
		c.DescriptorDim = DefaultDescriptorDim
	}
	if c.Vocabulary.Branching <= 0 {
		c.Vocabulary.Branching = DefaultBranching
	}
	if c.Vocabulary.Depth <= 0 {
		c.Vocabulary.Depth = DefaultDepth
	}
	if c.Vocabulary.MaxIterations <= 0 {
		c.Vocabulary.MaxIterations = DefaultMaxIterations
	}
	if c.Vocabulary.Attempts <= 0 {
		c.Vocabulary.Attempts = DefaultAttempts
	}
	if c.Vocabulary.Seed == 0 {
		c.Vocabulary.Seed = DefaultSeed
	}
	if c.Search.TopMatches <= 0 {
		c.Search.TopMatches = DefaultTopMatches
	}
	if c.Search.ResponseMatches <= 0 {
		c.Search.ResponseMatches = DefaultResponseMatches
	}
	if c.Search.QueryTimeoutSec <= 0 {
		c.Search.QueryTimeoutSec = DefaultQueryTimeoutSec
	}
	if c.Search.CacheSize == 0 {
		c.Search.CacheSize = DefaultCacheSize
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the fields defaults cannot repair.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("dbpath is required")
	}
	if c.Vocabulary.Branching < 2 {
		return fmt.Errorf("vocabulary.branching must be at least 2, got %d", c.Vocabulary.Branching)
	}
	if c.Search.ResponseMatches > c.Search.TopMatches {
		return fmt.Errorf("search.response_matches (%d) exceeds search.top_matches (%d)",
			c.Search.ResponseMatches, c.Search.TopMatches)
	}
	return nil
}

// QueryTimeout is the bound on feature extraction for one query.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Search.QueryTimeoutSec) * time.Second
}
