package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docoutline/internal/classifier"
	"github.com/dgallion1/docoutline/internal/dataset"
	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/parser"
)

var (
	trainData   []string
	trainBundle string
	trainRatio  float64
	trainSeed   uint64
	trainEpochs int
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit a model bundle from labeled documents",
	Long: `Train reads labeled documents (JSON or CSV block lists with a label per block,
or Markdown, HTML and DOCX files whose heading markup provides the labels),
fits the scaler, label encoder and model, reports held-out accuracy and writes
the bundle directory.

Examples:
  outline train --data labeled/ --bundle models
  outline train --data a.json --data b.csv --test-ratio 0.25`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if trainBundle == "" {
			trainBundle = cfg.BundleDir
		}

		ds, err := dataset.Load(log, trainData, parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		counts := ds.Counts()
		fmt.Fprintf(out, "%d documents, %d blocks\n", len(ds.Documents), len(ds.Examples))
		for _, l := range doctree.Labels {
			fmt.Fprintf(out, "  %-5s %d\n", l, counts[l])
		}

		opts := classifier.DefaultTrainOptions()
		opts.TestRatio = trainRatio
		opts.Seed = trainSeed
		if trainEpochs > 0 {
			opts.Params.Epochs = trainEpochs
		}

		res, err := classifier.Train(log, ds.Examples, opts)
		if err != nil {
			return err
		}
		if res.Degenerate {
			return fmt.Errorf("training data holds a single class (%s); no bundle written", res.Classes[0])
		}

		fmt.Fprintf(out, "accuracy: %.4f (train %d, test %d, stratified %v)\n",
			res.Accuracy, res.TrainSize, res.TestSize, res.Stratified)

		if err := classifier.Save(trainBundle, res.Bundle); err != nil {
			return err
		}
		fmt.Fprintf(out, "bundle written to %s\n", trainBundle)
		return nil
	},
}

func init() {
	trainCmd.Flags().StringSliceVar(&trainData, "data", nil, "labeled files or directories (repeatable)")
	trainCmd.Flags().StringVar(&trainBundle, "bundle", "", "bundle output directory (default: bundle_dir)")
	trainCmd.Flags().Float64Var(&trainRatio, "test-ratio", 0.2, "share of blocks held out for accuracy")
	trainCmd.Flags().Uint64Var(&trainSeed, "seed", 42, "split seed")
	trainCmd.Flags().IntVar(&trainEpochs, "epochs", 0, "optimizer epochs (default: built-in)")
	_ = trainCmd.MarkFlagRequired("data")
}
