package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"gradlab/common"
	"gradlab/core/config"
	"gradlab/core/controller"
	"gradlab/core/dataset"
	"gradlab/core/ml"
	"gradlab/core/session"
)

func train(cmd *cobra.Command) error {
	lc, err := config.InitLocalConfig(cmd)
	if err != nil {
		return err
	}
	logConfig, err := lc.LogConfig()
	if err != nil {
		return err
	}
	common.SetLogConfig(logConfig)
	log := common.GetLogger(common.MODULE_CLI)

	source, err := lc.DatasetSource()
	if err != nil {
		return err
	}
	ctrlConfig, err := lc.ControllerConfig()
	if err != nil {
		return err
	}
	ctrl := controller.New(ctrlConfig, lc.EngineLoader(), source, nil)
	defer ctrl.Close()

	finished := make(chan *controller.Event, 1)
	ctrl.AddDisplay(controller.DisplayFunc(func(ev *controller.Event) {
		if ev.Type == controller.EventUpdate {
			log.Infof("epoch %d loss %.6f", ev.Epoch, ev.Loss)
			return
		}
		select {
		case finished <- ev:
		default:
		}
	}))

	req := session.TrainingRequest{
		DatasetName:      dataset.Name(datasetFlag),
		LearningRate:     learningRateFlag,
		NumberOfEpochs:   epochsFlag,
		HiddenLayerSizes: hiddenFlag,
		TrainFraction:    trainFractionFlag,
	}
	if err := ctrl.Run(req); err != nil {
		return err
	}

	var ev *controller.Event
	select {
	case ev = <-finished:
	case <-cmd.Context().Done():
		return cmd.Context().Err()
	}
	if ev.Type == controller.EventFailed {
		return errors.New(ev.Message)
	}
	return printResult(cmd.OutOrStdout(), ev.Result, *ev.Matrix)
}

func printResult(w io.Writer, res *ml.ClassifiedTrainingResult, matrix ml.ConfusionMatrix) error {
	fmt.Fprintf(w, "dataset %s, network %v, %d epochs in %.1fms\n",
		res.DatasetName, res.NetworkDimensions, res.NumEpochs(), res.TimeToTrainMs)
	fmt.Fprintf(w, "final loss %.6f, test error %.4f, test accuracy %.4f\n",
		res.FinalLoss(), res.ClassificationError, matrix.Accuracy())
	fmt.Fprintf(w, "confusion matrix (%d test observations)\n", matrix.Total())

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tpredicted +\tpredicted -")
	fmt.Fprintf(tw, "actual +\t%d (%.1f%%)\t%d (%.1f%%)\n",
		matrix.TruePositives.Count, matrix.TruePositives.Percentage*100,
		matrix.FalseNegatives.Count, matrix.FalseNegatives.Percentage*100)
	fmt.Fprintf(tw, "actual -\t%d (%.1f%%)\t%d (%.1f%%)\n",
		matrix.FalsePositives.Count, matrix.FalsePositives.Percentage*100,
		matrix.TrueNegatives.Count, matrix.TrueNegatives.Percentage*100)
	return tw.Flush()
}

func trainCMD() *cobra.Command {
	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "train once in the terminal",
		Long:  "run one training request, log every epoch and print the test confusion matrix",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return train(cmd)
		},
	}
	flagList := []string{
		"config",
		"dataset",
		"lr",
		"epochs",
		"hidden",
		"train-fraction",
	}
	attachFlags(trainCmd, flagList)
	return trainCmd
}
