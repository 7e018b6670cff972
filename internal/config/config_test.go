package config

import (
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	testConfigPath := path.Join(tmpDir, "test_config.yaml")

	testConfig := `
dbpath: ./db
dbname: covers
socket: /tmp/covers.sock
http_addr: ":8080"
vocabulary:
  branching: 8
  depth: 4
search:
  top_matches: 10
  response_matches: 3
  query_timeout_sec: 5
log:
  level: debug
`
	err := os.WriteFile(testConfigPath, []byte(testConfig), 0644)
	assert.NoError(t, err)

	cfg, err := FromFile(testConfigPath)
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "./db", cfg.DBPath)
	assert.Equal(t, "covers", cfg.DBName)
	assert.Equal(t, "/tmp/covers.sock", cfg.Socket)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 8, cfg.Vocabulary.Branching)
	assert.Equal(t, 4, cfg.Vocabulary.Depth)
	assert.Equal(t, DefaultMaxIterations, cfg.Vocabulary.MaxIterations)
	assert.Equal(t, DefaultAttempts, cfg.Vocabulary.Attempts)
	assert.Equal(t, 10, cfg.Search.TopMatches)
	assert.Equal(t, 3, cfg.Search.ResponseMatches)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout())
	assert.Equal(t, DefaultDescriptorDim, cfg.DescriptorDim)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Test with non-existent file
	cfg, err = FromFile("non_existent_file.yaml")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestFromFileInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	missingPath := path.Join(tmpDir, "missing_dbpath.yaml")
	assert.NoError(t, os.WriteFile(missingPath, []byte("dbname: x\n"), 0644))
	_, err := FromFile(missingPath)
	assert.Error(t, err)

	branchPath := path.Join(tmpDir, "branching.yaml")
	assert.NoError(t, os.WriteFile(branchPath, []byte("dbpath: .\nvocabulary:\n  branching: 1\n"), 0644))
	_, err = FromFile(branchPath)
	assert.Error(t, err)

	garbagePath := path.Join(tmpDir, "garbage.yaml")
	assert.NoError(t, os.WriteFile(garbagePath, []byte("dbpath: [unterminated"), 0644))
	_, err = FromFile(garbagePath)
	assert.Error(t, err)
}

func TestNewConfigDefaults(t *testing.T) {
	cfg, err := NewConfig("/var/lib/imgsearch")
	assert.NoError(t, err)
	assert.Equal(t, "/var/lib/imgsearch", cfg.DBPath)
	assert.Equal(t, DefaultDBName, cfg.DBName)
	assert.Equal(t, DefaultSocket, cfg.Socket)
	assert.Equal(t, DefaultBranching, cfg.Vocabulary.Branching)
	assert.Equal(t, DefaultDepth, cfg.Vocabulary.Depth)
	assert.Equal(t, uint64(DefaultSeed), cfg.Vocabulary.Seed)
	assert.Equal(t, DefaultTopMatches, cfg.Search.TopMatches)
	assert.Equal(t, DefaultResponseMatches, cfg.Search.ResponseMatches)
	assert.Equal(t, DefaultCacheSize, cfg.Search.CacheSize)

	_, err = NewConfig("")
	assert.Error(t, err)
}
