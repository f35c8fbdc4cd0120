package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"gradlab/core/dataset"
)

func generate(cmd *cobra.Command) error {
	fs := &dataset.FileSource{Dir: outDirFlag}
	for i, name := range dataset.Names {
		rng := rand.New(rand.NewSource(seedFlag + int64(i)))
		obs, err := dataset.Generate(name, samplesFlag, noiseFlag, rng)
		if err != nil {
			return err
		}
		if err := fs.Save(name, obs); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d observations to %s\n", len(obs), name.FileName())
	}
	return nil
}

func generateCMD() *cobra.Command {
	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "generate the datasets",
		Long:  "write the Circle, Spiral, Xor and Gaussian datasets as JSON files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return generate(cmd)
		},
	}
	flagList := []string{
		"out",
		"samples",
		"noise",
		"seed",
	}
	attachFlags(generateCmd, flagList)
	return generateCmd
}
