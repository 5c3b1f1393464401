package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/features"
	"github.com/dgallion1/docoutline/internal/parser"
)

type featureRow struct {
	Text     string             `json:"text"`
	Page     int                `json:"page"`
	Label    doctree.Label      `json:"label,omitempty"`
	Features map[string]float64 `json:"features"`
}

var featuresCmd = &cobra.Command{
	Use:   "features FILE",
	Short: "Print the feature matrix of a document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path := args[0]
		p, err := parser.ForFile(path, parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext})
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		doc, err := p.Parse(f, path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		rows := make([]featureRow, len(doc.Blocks))
		for i, v := range features.Extract(doc.Blocks) {
			rows[i] = featureRow{Text: doc.Blocks[i].Text, Page: doc.Blocks[i].Page, Features: v.Named()}
			if doc.Labeled() {
				rows[i].Label = doc.Labels[i]
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	},
}
