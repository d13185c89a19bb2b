package commands

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	// Register the photo formats manifests may point at.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/goccy/go-yaml"
	"github.com/google/uuid"

	"github.com/wildseas/finprint/pkg/field"
	"github.com/wildseas/finprint/pkg/pipeline"
)

// manifestEntry is one photograph in a manifest.
type manifestEntry struct {
	// ID names the subject; generated when empty.
	ID string `yaml:"id"`

	// Image and Mask are paths relative to the manifest file.
	Image string `yaml:"image"`
	Mask  string `yaml:"mask"`

	// Identity is the known individual, required for reference
	// manifests and ignored for queries.
	Identity string `yaml:"identity"`

	// RightSide marks photos taken from the animal's right.
	RightSide bool `yaml:"right_side"`
}

type manifest struct {
	Subjects []manifestEntry `yaml:"subjects"`

	dir string
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if len(m.Subjects) == 0 {
		return nil, fmt.Errorf("manifest %s lists no subjects", path)
	}
	m.dir = filepath.Dir(path)
	for i := range m.Subjects {
		if m.Subjects[i].ID == "" {
			m.Subjects[i].ID = uuid.NewString()
		}
	}
	return &m, nil
}

// loadPipelineConfig reads the shared pipeline config file, or returns
// the defaults when none was given.
func loadPipelineConfig() (pipeline.Config, error) {
	var cfg pipeline.Config
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", configPath, err)
		}
	}
	cfg.SetDefaults()
	return cfg, nil
}

// subjects loads every photograph and mask named by the manifest. The
// mask is resized into the pipeline's localized frame. The returned map
// carries the manifest identities keyed by subject ID.
func (m *manifest) subjects(cfg pipeline.Config) ([]pipeline.Subject, map[string]string, error) {
	subs := make([]pipeline.Subject, 0, len(m.Subjects))
	identities := make(map[string]string, len(m.Subjects))
	for _, e := range m.Subjects {
		raw, err := os.ReadFile(filepath.Join(m.dir, e.Image))
		if err != nil {
			return nil, nil, fmt.Errorf("subject %s: %w", e.ID, err)
		}
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, nil, fmt.Errorf("subject %s: decoding %s: %w", e.ID, e.Image, err)
		}
		maskImg, err := imaging.Open(filepath.Join(m.dir, e.Mask))
		if err != nil {
			return nil, nil, fmt.Errorf("subject %s: %w", e.ID, err)
		}
		resized := imaging.Resize(maskImg, cfg.Preprocess.Width, cfg.Preprocess.Height, imaging.Linear)

		subs = append(subs, pipeline.Subject{
			ID:        e.ID,
			Image:     img,
			Mask:      field.FromImage(resized),
			RightSide: e.RightSide,
			Raw:       raw,
		})
		if e.Identity != "" {
			identities[e.ID] = e.Identity
		}
	}
	return subs, identities, nil
}

// extractFile is the on-disk product of `finprint extract`.
type extractFile struct {
	Results    []pipeline.Result `msgpack:"results"`
	Identities map[string]string `msgpack:"identities"`
}
