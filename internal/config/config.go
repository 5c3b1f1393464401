package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dgallion1/docoutline/internal/postprocess"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Model bundle
	BundleDir   string
	WatchBundle bool

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL          time.Duration
	DocumentTimeout time.Duration

	// PDF
	PDFFallbackPdftotext bool

	// Outline sink
	SinkURL    string
	SinkAPIKey string

	// Post-processing thresholds
	MinArtifactWidth float64
	RepeatMinPages   int
	RepeatPageRatio  float64
	Denylist         []string
}

func setDefaults(v *viper.Viper) {
	pp := postprocess.DefaultOptions()
	v.SetDefault("port", "8090")
	v.SetDefault("outliner_api_key", "")
	v.SetDefault("bundle_dir", "models")
	v.SetDefault("watch_bundle", true)
	v.SetDefault("worker_count", 4)
	v.SetDefault("max_queue_size", 100)
	v.SetDefault("max_upload_bytes", int64(52428800)) // 50MB
	v.SetDefault("job_ttl", time.Hour)
	v.SetDefault("document_timeout", 2*time.Minute)
	v.SetDefault("pdf_fallback_pdftotext", true)
	v.SetDefault("sink_url", "")
	v.SetDefault("sink_api_key", "")
	v.SetDefault("min_artifact_width", pp.MinArtifactWidth)
	v.SetDefault("repeat_min_pages", pp.Repeat.MinPages)
	v.SetDefault("repeat_page_ratio", pp.Repeat.PageRatio)
	v.SetDefault("denylist", pp.Denylist)
}

// Load reads defaults, then an optional YAML file, then environment variables.
// cfgFile may be empty, in which case ./outliner.yaml is used when present.
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("outliner")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		Port:                 v.GetString("port"),
		APIKey:               v.GetString("outliner_api_key"),
		BundleDir:            v.GetString("bundle_dir"),
		WatchBundle:          v.GetBool("watch_bundle"),
		WorkerCount:          v.GetInt("worker_count"),
		MaxQueueSize:         v.GetInt("max_queue_size"),
		MaxUploadBytes:       v.GetInt64("max_upload_bytes"),
		JobTTL:               v.GetDuration("job_ttl"),
		DocumentTimeout:      v.GetDuration("document_timeout"),
		PDFFallbackPdftotext: v.GetBool("pdf_fallback_pdftotext"),
		SinkURL:              strings.TrimRight(v.GetString("sink_url"), "/"),
		SinkAPIKey:           v.GetString("sink_api_key"),
		MinArtifactWidth:     v.GetFloat64("min_artifact_width"),
		RepeatMinPages:       v.GetInt("repeat_min_pages"),
		RepeatPageRatio:      v.GetFloat64("repeat_page_ratio"),
		Denylist:             stringList(v.Get("denylist")),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	if cfg.DocumentTimeout <= 0 {
		cfg.DocumentTimeout = 2 * time.Minute
	}

	return cfg, nil
}

// Validate checks the settings the HTTP server needs.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("OUTLINER_API_KEY is required")
	}
	if c.BundleDir == "" {
		return fmt.Errorf("BUNDLE_DIR is required")
	}
	if c.SinkURL != "" && c.SinkAPIKey == "" {
		return fmt.Errorf("SINK_API_KEY is required when SINK_URL is set")
	}
	return c.ValidateThresholds()
}

// ValidateThresholds checks the post-processing settings.
func (c Config) ValidateThresholds() error {
	if c.MinArtifactWidth < 0 {
		return fmt.Errorf("MIN_ARTIFACT_WIDTH must not be negative")
	}
	if c.RepeatMinPages < 0 {
		return fmt.Errorf("REPEAT_MIN_PAGES must not be negative")
	}
	if c.RepeatPageRatio < 0 || c.RepeatPageRatio > 1 {
		return fmt.Errorf("REPEAT_PAGE_RATIO must be between 0 and 1")
	}
	return nil
}

// Postprocess returns the post-processing options.
func (c Config) Postprocess() postprocess.Options {
	return postprocess.Options{
		MinArtifactWidth: c.MinArtifactWidth,
		Repeat: postprocess.RepeatRule{
			MinPages:  c.RepeatMinPages,
			PageRatio: c.RepeatPageRatio,
		},
		Denylist: c.Denylist,
	}
}

// stringList accepts a YAML list or a comma separated environment value.
func stringList(v any) []string {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = strings.Split(t, ",")
	case []string:
		raw = t
	case []any:
		for _, x := range t {
			raw = append(raw, fmt.Sprint(x))
		}
	}
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
