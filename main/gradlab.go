package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var flags *pflag.FlagSet

var (
	cfgPathFlag       string
	datasetFlag       string
	learningRateFlag  float64
	epochsFlag        int
	hiddenFlag        []int
	trainFractionFlag float64
	outDirFlag        string
	samplesFlag       int
	noiseFlag         float64
	seedFlag          int64
)

func init() {
	resetFlags()
}

// Explicitly define a method to facilitate tests
func resetFlags() {
	flags = &pflag.FlagSet{}

	flags.StringVarP(&cfgPathFlag, "config", "c", "",
		"gradlab config file, default gradlab_config.yaml under $GRADLAB_CFG_PATH")
	flags.StringVarP(&datasetFlag, "dataset", "d", "Circle",
		"dataset to train on: Circle, Spiral, Xor or Gaussian")
	flags.Float64VarP(&learningRateFlag, "lr", "l", 0.03,
		"learning rate")
	flags.IntVarP(&epochsFlag, "epochs", "e", 100,
		"number of epochs")
	flags.IntSliceVar(&hiddenFlag, "hidden", []int{4, 4},
		"hidden layer sizes, comma separated")
	flags.Float64VarP(&trainFractionFlag, "train-fraction", "f", 0.7,
		"fraction of the dataset used for training, in (0,1)")
	flags.StringVarP(&outDirFlag, "out", "o", "./datasets",
		"directory the generated datasets are written to")
	flags.IntVarP(&samplesFlag, "samples", "n", 500,
		"samples per generated dataset")
	flags.Float64Var(&noiseFlag, "noise", 0.1,
		"noise of generated datasets")
	flags.Int64Var(&seedFlag, "seed", 1,
		"random seed of generated datasets")
}

func attachFlags(cmd *cobra.Command, names []string) {
	cmdFlags := cmd.Flags()
	for _, name := range names {
		if flag := flags.Lookup(name); flag != nil {
			cmdFlags.AddFlag(flag)
		} else {
			panic(fmt.Errorf("Could not find flag '%s' to attach to command '%s'", name, cmd.Name()))
		}
	}
}

var mainCmd = &cobra.Command{Use: "gradlab"}

func main() {
	mainCmd.AddCommand(startCMD())
	mainCmd.AddCommand(trainCMD())
	mainCmd.AddCommand(generateCMD())

	if mainCmd.Execute() != nil {
		os.Exit(1)
	}
}
