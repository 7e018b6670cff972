package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgsearch/internal/config"
	"imgsearch/internal/db"
	"imgsearch/internal/feature"
	"imgsearch/internal/server"
)

func blob(x, y float32) feature.DescriptorSet {
	return feature.DescriptorSet{{x, y}, {x + 0.5, y}, {x, y + 0.5}, {x + 0.5, y + 0.5}}
}

// writeFixture lays out three descriptor files with an image list and a
// config for two-dimensional descriptors. It returns the image directory
// and the config path.
func writeFixture(t *testing.T) (string, string) {
	t.Helper()
	images := t.TempDir()
	var list strings.Builder
	fmt.Fprintln(&list, 3)
	for i, d := range []feature.DescriptorSet{blob(0, 0), blob(20, 20), blob(40, 0)} {
		name := fmt.Sprintf("img%d.dsc", i)
		require.NoError(t, feature.WriteDescriptorFile(filepath.Join(images, name), d))
		fmt.Fprintln(&list, name)
	}
	require.NoError(t, os.WriteFile(filepath.Join(images, db.DefaultListFile), []byte(list.String()), 0644))

	sockDir, err := os.MkdirTemp("", "cli")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(sockDir) })

	conf := fmt.Sprintf("dbpath: %s\ndbname: cat\nsocket: %s\ndescriptor_dim: 2\nlog:\n  level: error\n",
		filepath.Join(t.TempDir(), "db"), filepath.Join(sockDir, "s"))
	confPath := filepath.Join(t.TempDir(), "imgsearch.yaml")
	require.NoError(t, os.WriteFile(confPath, []byte(conf), 0644))
	return images, confPath
}

// runCLI executes the root command with fresh flag values.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	flagConfig, flagDBPath, flagDBName, flagSocket, flagLogLevel = "", "", "", "", ""
	flagTrainImages, flagTrainList, flagTrainBranching, flagTrainDepth = ".", db.DefaultListFile, 10, 5
	flagQuerySearch, flagQueryQuit, flagQueryTimeout = "", false, time.Minute
	flagServeHTTP = ""
	flagSearchK = 5

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTrainAndSearch(t *testing.T) {
	images, confPath := writeFixture(t)

	out, err := runCLI(t, "train", "--config", confPath, "--images", images, "-k", "2", "-d", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Trained 3 images")

	out, err = runCLI(t, "search", "--config", confPath, "-k", "2", filepath.Join(images, "img2.dsc"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "img2.dsc")
	assert.Contains(t, lines[1], "i0000002")
	assert.Contains(t, lines[1], "1.000000")
}

func TestSearchWithoutCatalog(t *testing.T) {
	images, confPath := writeFixture(t)

	_, err := runCLI(t, "search", "--config", confPath, filepath.Join(images, "img0.dsc"))
	assert.Error(t, err)
}

func TestConfigOverrides(t *testing.T) {
	_, confPath := writeFixture(t)
	flagConfig = confPath
	flagDBName = "other"
	flagLogLevel = "warn"
	t.Cleanup(func() { flagConfig, flagDBName, flagLogLevel = "", "", "" })

	conf, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "other", conf.DBName)
	assert.Equal(t, "warn", conf.Log.Level)
	assert.Equal(t, 2, conf.DescriptorDim)
}

func TestQueryRequiresOneAction(t *testing.T) {
	_, confPath := writeFixture(t)

	_, err := runCLI(t, "query", "--config", confPath)
	assert.Error(t, err)

	_, err = runCLI(t, "query", "--config", confPath, "-q", "-s", "x.dsc")
	assert.Error(t, err)
}

func TestQueryAgainstServer(t *testing.T) {
	images, confPath := writeFixture(t)
	_, err := runCLI(t, "train", "--config", confPath, "--images", images, "-k", "2", "-d", "2")
	require.NoError(t, err)

	conf, err := config.FromFile(confPath)
	require.NoError(t, err)
	d, err := db.New(conf)
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.Open(context.Background()))

	sock := server.NewSocketServer(d, conf.Socket, conf.Search.ResponseMatches)
	served := make(chan error, 1)
	go func() { served <- sock.Serve(context.Background()) }()
	require.Eventually(t, func() bool {
		_, err := os.Stat(conf.Socket)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	out, err := runCLI(t, "query", "--config", confPath, "-s", filepath.Join(images, "img1.dsc"))
	require.NoError(t, err)
	assert.Equal(t, "i0000001", strings.TrimSpace(out))

	out, err = runCLI(t, "query", "--config", confPath, "-q")
	require.NoError(t, err)
	assert.Equal(t, server.ReplyShutdown, strings.TrimSpace(out))
	require.NoError(t, <-served)
}
