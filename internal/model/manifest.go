package model

import (
	"fmt"
)

// Manifest describes a scripted VM run: globals registered before any script
// executes, and script files evaluated in order.
type Manifest struct {
	Name    string
	Globals map[string]any
	Scripts []string
	Engine  EngineSettings
}

// EngineSettings bounds the embedded engine's resources. Zero values mean
// engine defaults.
type EngineSettings struct {
	MemoryLimitMB int
	MaxStackKB    int
	Console       bool
}

// Validate validates the manifest.
func (m *Manifest) Validate() error {
	if len(m.Scripts) == 0 {
		return fmt.Errorf("at least one script is required: %w", ErrNotValid)
	}
	for i, s := range m.Scripts {
		if s == "" {
			return fmt.Errorf("script path %d is empty: %w", i, ErrNotValid)
		}
	}

	if m.Engine.MemoryLimitMB < 0 {
		return fmt.Errorf("memory limit must not be negative: %w", ErrNotValid)
	}
	if m.Engine.MaxStackKB < 0 {
		return fmt.Errorf("max stack must not be negative: %w", ErrNotValid)
	}

	return nil
}
