package node

import (
	"context"
	"fmt"
	"time"

	"gradlab/common"
	"gradlab/core/config"
	"gradlab/core/controller"
	"gradlab/core/server"
	"gradlab/core/store"
)

type GradNode struct {
	conf   *config.LocalConfig
	ctrl   *controller.Controller
	store  *store.Store
	server *server.Server
	log    common.Logger
}

func (n *GradNode) Init(c *config.LocalConfig) error {
	n.conf = c

	logConfig, err := c.LogConfig()
	if err != nil {
		return fmt.Errorf("get log config err: %s", err)
	}
	common.SetLogConfig(logConfig)
	n.log = common.GetLogger(common.MODULE_SERVER)

	source, err := c.DatasetSource()
	if err != nil {
		return fmt.Errorf("get dataset config err: %s", err)
	}
	ctrlConfig, err := c.ControllerConfig()
	if err != nil {
		return fmt.Errorf("get controller config err: %s", err)
	}
	n.ctrl = controller.New(ctrlConfig, c.EngineLoader(), source, nil)

	if storeConfig := c.StoreConfig(); storeConfig != nil {
		n.store, err = store.Open(storeConfig, nil)
		if err != nil {
			return fmt.Errorf("open run store err: %s", err)
		}
		n.ctrl.SetRecorder(n.store)
	}

	serverConfig, err := c.ServerConfig()
	if err != nil {
		return fmt.Errorf("get server config err: %s", err)
	}
	var runs server.RunStore
	if n.store != nil {
		runs = n.store
	}
	n.server = server.New(serverConfig, n.ctrl, runs, nil)
	return nil
}

// Start blocks until the HTTP server exits.
func (n *GradNode) Start() error {
	serve := make(chan error)
	go func() {
		var httpErr error
		if httpErr = n.server.Start(); httpErr != nil {
			httpErr = fmt.Errorf("http server exited with error: %s", httpErr)
		}
		serve <- httpErr
	}()

	return <-serve
}

func (n *GradNode) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := n.server.Stop(ctx)
	n.ctrl.Close()
	if n.store != nil {
		if closeErr := n.store.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
