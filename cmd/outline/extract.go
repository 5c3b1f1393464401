package main

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docoutline/internal/classifier"
	"github.com/dgallion1/docoutline/internal/outliner"
	"github.com/dgallion1/docoutline/internal/parser"
	"github.com/dgallion1/docoutline/internal/pipeline"
	"github.com/dgallion1/docoutline/internal/postprocess"
	"github.com/dgallion1/docoutline/internal/sink"
)

var (
	extractOut     string
	extractWorkers int
	extractBundle  string
	extractPublish bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [files or directories...]",
	Short: "Outline documents and write one JSON file per document",
	Long: `Extract runs every document through classification and reconciliation and
writes <name>.json with the title and headings to the output directory.
Inputs that share a name are written as <dir>_<file>.json relative to their
common directory, e.g. a_report.pdf.json and b_report.pdf.json.

A document that fails is reported and skipped; the others are still written.
Without a model bundle every block is labeled NONE and the outlines are empty.

Examples:
  outline extract report.pdf
  outline extract docs/ --out outlines --workers 8`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if extractBundle != "" {
			cfg.BundleDir = extractBundle
		}
		workers := extractWorkers
		if workers <= 0 {
			workers = cfg.WorkerCount
		}

		paths, err := collectInputs(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no supported documents in %v", args)
		}
		if err := os.MkdirAll(extractOut, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}

		names, err := outputNames(paths)
		if err != nil {
			return err
		}

		models := classifier.NewStore(cfg.BundleDir, log)
		if err := models.Load(); err != nil {
			log.Warn("no model bundle, outlines will be empty", "bundle_dir", cfg.BundleDir)
		}

		var pub pipeline.Publisher
		if extractPublish {
			if cfg.SinkURL == "" {
				return fmt.Errorf("--publish requires sink_url")
			}
			client := sink.NewClient(cfg.SinkURL, cfg.SinkAPIKey)
			defer client.Close()
			pub = client
		}

		o := outliner.New(models, postprocess.New(log, cfg.Postprocess()), log)
		w := pipeline.NewWorker(o, pub, parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext},
			cfg.DocumentTimeout, pipeline.NewLatencyStats(0), log)

		sources := make([]pipeline.Source, len(paths))
		for i, p := range paths {
			sources[i] = pipeline.FileSource(p)
		}
		results := pipeline.RunBatch(cmd.Context(), w, sources, workers)

		failed := 0
		for i, r := range results {
			if r.Err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s: %v\n", paths[i], r.Err)
				continue
			}
			out := filepath.Join(extractOut, names[i])
			if err := writeJSON(out, r.Result.Outline); err != nil {
				failed++
				fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s: %v\n", paths[i], err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d headings)\n", paths[i], out, len(r.Result.Outline.Headings))
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%d documents, %d failed\n", len(results), failed)
		if failed > 0 {
			return fmt.Errorf("%d of %d documents failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractOut, "out", "output", "output directory")
	extractCmd.Flags().IntVar(&extractWorkers, "workers", 0, "documents processed in parallel (default: worker_count)")
	extractCmd.Flags().StringVar(&extractBundle, "bundle", "", "model bundle directory (default: bundle_dir)")
	extractCmd.Flags().BoolVar(&extractPublish, "publish", false, "also send outlines to the configured sink")
}

// collectInputs expands directories into the supported files they contain.
func collectInputs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && parser.IsSupportedExtension(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}

// outputNames maps each input to its output file name. Inputs with the same
// document name keep their path below the directory they share.
func outputNames(paths []string) ([]string, error) {
	groups := make(map[string][]int)
	for i, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		groups[name] = append(groups[name], i)
	}

	names := make([]string, len(paths))
	for name, idx := range groups {
		if len(idx) == 1 {
			names[idx[0]] = name + ".json"
			continue
		}
		abs := make([]string, len(idx))
		for j, i := range idx {
			a, err := filepath.Abs(paths[i])
			if err != nil {
				return nil, err
			}
			abs[j] = a
		}
		root := commonDir(abs)
		for j, i := range idx {
			rel, err := filepath.Rel(root, abs[j])
			if err != nil {
				return nil, err
			}
			names[i] = strings.ReplaceAll(filepath.ToSlash(rel), "/", "_") + ".json"
		}
	}

	seen := make(map[string]string, len(names))
	for i, n := range names {
		if prev, ok := seen[n]; ok {
			return nil, fmt.Errorf("%s and %s would both be written to %s", prev, paths[i], n)
		}
		seen[n] = paths[i]
	}
	return names, nil
}

// commonDir returns the deepest directory containing every path.
func commonDir(paths []string) string {
	dir := filepath.Dir(paths[0])
	for {
		inside := true
		for _, p := range paths[1:] {
			if !strings.HasPrefix(p, dir+string(filepath.Separator)) {
				inside = false
				break
			}
		}
		parent := filepath.Dir(dir)
		if inside || parent == dir {
			return dir
		}
		dir = parent
	}
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
