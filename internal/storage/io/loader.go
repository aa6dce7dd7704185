package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/swimmadude66/tectonica/internal/model"
)

// ManifestYAMLRepository loads run manifests from YAML files.
type ManifestYAMLRepository struct {
	fs fs.FS
}

// NewManifestYAMLRepository creates a new YAML manifest repository.
func NewManifestYAMLRepository(filesystem fs.FS) *ManifestYAMLRepository {
	return &ManifestYAMLRepository{fs: filesystem}
}

// GetManifest loads a run manifest from a YAML file and returns a validated domain model.
func (r *ManifestYAMLRepository) GetManifest(ctx context.Context, path string) (model.Manifest, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.Manifest{}, fmt.Errorf("reading manifest file: %w", err)
	}

	if ctx.Err() != nil {
		return model.Manifest{}, ctx.Err()
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return model.Manifest{}, fmt.Errorf("parsing YAML: %w", err)
	}

	res := m.toModel()
	if err := res.Validate(); err != nil {
		return model.Manifest{}, fmt.Errorf("invalid manifest: %w", err)
	}

	return res, nil
}

// Manifest represents the YAML structure for a run manifest.
type Manifest struct {
	Name    string         `yaml:"name"`
	Globals map[string]any `yaml:"globals"`
	Scripts []string       `yaml:"scripts"`
	Engine  EngineConfig   `yaml:"engine"`
}

// EngineConfig represents the YAML structure for engine settings.
type EngineConfig struct {
	MemoryLimitMB int  `yaml:"memory_limit_mb"`
	MaxStackKB    int  `yaml:"max_stack_kb"`
	Console       bool `yaml:"console"`
}

func (m Manifest) toModel() model.Manifest {
	return model.Manifest{
		Name:    m.Name,
		Globals: m.Globals,
		Scripts: m.Scripts,
		Engine: model.EngineSettings{
			MemoryLimitMB: m.Engine.MemoryLimitMB,
			MaxStackKB:    m.Engine.MaxStackKB,
			Console:       m.Engine.Console,
		},
	}
}
