package node

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradlab/core/config"
)

const nodeConfig = `
log:
  path: ""
engine:
  load_delay: 0s
dataset:
  samples: 20
server:
  listen_addr: 127.0.0.1:0
  mode: test
store:
  in_memory: true
`

func TestInitWiresEverything(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gradlab_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(nodeConfig), 0644))
	lc, err := config.Load(path)
	require.NoError(t, err)

	n := &GradNode{}
	require.NoError(t, n.Init(lc))
	require.NotNil(t, n.store)

	w := httptest.NewRecorder()
	n.server.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	assert.NoError(t, n.Stop())
}
