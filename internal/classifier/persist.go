package classifier

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Artifact file names inside a bundle directory.
const (
	ScalerFile   = "scaler.json"
	EncoderFile  = "label_encoder.json"
	ModelFile    = "classifier.json"
	ManifestFile = "manifest.yaml"
)

// Save writes the bundle to dir. Each artifact is replaced atomically and the
// manifest, which carries the checksums of the others, is written last, so a
// reader never accepts a mix of old and new artifacts.
func Save(dir string, b *Bundle) error {
	if err := b.validate(); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}

	manifest := b.Manifest
	manifest.Artifacts = make(map[string]string, 3)
	artifacts := []struct {
		name string
		v    any
	}{
		{ScalerFile, b.Scaler},
		{EncoderFile, b.Encoder},
		{ModelFile, b.Model},
	}
	for _, a := range artifacts {
		data, err := json.MarshalIndent(a.v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal %s: %w", a.name, err)
		}
		if err := writeFileAtomic(dir, a.name, data); err != nil {
			return err
		}
		manifest.Artifacts[a.name] = checksum(data)
	}

	data, err := yaml.Marshal(&manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return writeFileAtomic(dir, ManifestFile, data)
}

// Load restores a bundle from dir. Any missing, unreadable or inconsistent
// artifact is an error; there is no partially loaded bundle.
func Load(dir string) (*Bundle, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest: %v", ErrBundleIncomplete, err)
	}
	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %v", ErrBundleIncomplete, err)
	}
	if manifest.Version != BundleVersion {
		return nil, fmt.Errorf("%w: bundle version %d, want %d", ErrBundleIncomplete, manifest.Version, BundleVersion)
	}

	b := &Bundle{Manifest: manifest, Scaler: &Scaler{}, Encoder: &LabelEncoder{}, Model: &Softmax{}}
	artifacts := []struct {
		name string
		v    any
	}{
		{ScalerFile, b.Scaler},
		{EncoderFile, b.Encoder},
		{ModelFile, b.Model},
	}
	for _, a := range artifacts {
		data, err := os.ReadFile(filepath.Join(dir, a.name))
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrBundleIncomplete, a.name, err)
		}
		want, ok := manifest.Artifacts[a.name]
		if !ok || want != checksum(data) {
			return nil, fmt.Errorf("%w: checksum mismatch for %s", ErrBundleIncomplete, a.name)
		}
		if err := json.Unmarshal(data, a.v); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrBundleIncomplete, a.name, err)
		}
	}
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("load bundle: %w", err)
	}
	return b, nil
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

func writeFileAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
