package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gradlab/common"
	"gradlab/core/config"
	"gradlab/node"
)

func start(cmd *cobra.Command) error {
	lc, err := config.InitLocalConfig(cmd)
	if err != nil {
		return err
	}

	nodeInstance := node.GradNode{}
	if err := nodeInstance.Init(lc); err != nil {
		return err
	}
	log := common.GetLogger(common.MODULE_CLI)
	log.Infof("gradlab serving on %s", lc.Server.ListenAddr)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		if err := nodeInstance.Stop(); err != nil {
			log.Errorf("stop: %s", err)
		}
	}()

	return nodeInstance.Start()
}

func startCMD() *cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "start gradlab",
		Long:  "serve the training controller over HTTP and websocket",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return start(cmd)
		},
	}
	flagList := []string{
		"config",
	}
	attachFlags(startCmd, flagList)
	return startCmd
}
