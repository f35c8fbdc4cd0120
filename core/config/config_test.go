package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradlab/common"
	"gradlab/core/controller"
	"gradlab/core/dataset"
)

const sampleConfig = `
log:
  path: ""
  level: debug
  module_level:
    engine: warn
controller:
  max_retries: 3
  retry_delay: 250ms
engine:
  load_delay: 0s
  seed: 7
dataset:
  samples: 40
  noise: 0.2
server:
  listen_addr: 0.0.0.0:9000
  allowed_origins:
    - http://localhost:3000
store:
  enabled: false
`

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "gradlab_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	lc, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	logCfg, err := lc.LogConfig()
	require.NoError(t, err)
	assert.Equal(t, "", logCfg.LogPath)
	assert.Equal(t, common.LEVEL_DEBUG, logCfg.LogLevel)
	assert.Equal(t, common.LEVEL_WARN, logCfg.ModuleSpecialLevel[common.MODULE_ENGINE])

	cc, err := lc.ControllerConfig()
	require.NoError(t, err)
	assert.Equal(t, &controller.Config{MaxRetries: 3, RetryDelay: 250 * time.Millisecond}, cc)

	assert.Equal(t, int64(7), lc.Engine.Seed)
	assert.NotNil(t, lc.EngineLoader())

	src, err := lc.DatasetSource()
	require.NoError(t, err)
	obs, err := src.Load(dataset.Circle)
	require.NoError(t, err)
	assert.Len(t, obs, 40)

	sc, err := lc.ServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", sc.ListenAddr)
	assert.Equal(t, []string{"http://localhost:3000"}, sc.AllowedOrigins)

	assert.Nil(t, lc.StoreConfig())
}

func TestDefaultsWhenNoFile(t *testing.T) {
	t.Setenv(EnvCfgPath, t.TempDir())
	lc, err := Load("")
	require.NoError(t, err)

	cc, err := lc.ControllerConfig()
	require.NoError(t, err)
	assert.Equal(t, controller.DefaultMaxRetries, cc.MaxRetries)
	assert.Equal(t, controller.DefaultRetryDelay, cc.RetryDelay)
	assert.Equal(t, defaultAddr, lc.Server.ListenAddr)
	require.NotNil(t, lc.StoreConfig())
	assert.Equal(t, "./gradlab.db", lc.StoreConfig().Path)

	src, err := lc.DatasetSource()
	require.NoError(t, err)
	assert.IsType(t, &dataset.GeneratedSource{}, src)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("GRADLAB_CONTROLLER_MAX_RETRIES", "9")
	t.Setenv("GRADLAB_DATASET_DIR", "/tmp/datasets")
	lc, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, 9, lc.Controller.MaxRetries)
	src, err := lc.DatasetSource()
	require.NoError(t, err)
	assert.Equal(t, &dataset.FileSource{Dir: "/tmp/datasets"}, src)
}

func TestExplicitFileMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestInvalidValues(t *testing.T) {
	lc, err := Load(writeConfig(t, "log:\n  level: loud\n"))
	require.NoError(t, err)
	_, err = lc.LogConfig()
	assert.Error(t, err)

	lc, err = Load(writeConfig(t, "log:\n  module_level:\n    network: debug\n"))
	require.NoError(t, err)
	_, err = lc.LogConfig()
	assert.Error(t, err)

	lc, err = Load(writeConfig(t, "controller:\n  max_retries: -1\n"))
	require.NoError(t, err)
	_, err = lc.ControllerConfig()
	assert.Error(t, err)

	lc, err = Load(writeConfig(t, "dataset:\n  samples: 0\n"))
	require.NoError(t, err)
	_, err = lc.DatasetSource()
	assert.Error(t, err)
}
