// Package plugins loads job definitions from a project's .slipway/plugins
// directory. A plugin declares a command job: a shell command line plus the
// artifact handling for whatever the command leaves in its output directory.
package plugins

import (
	"fmt"
	"strings"

	"github.com/kingrea/slipway/internal/artifact"
)

// JobDefinition describes a command job loaded from a plugin file.
//
// The struct mirrors the on-disk schema under .slipway/plugins/*.yaml and is
// intentionally narrow so definitions can be validated before they are wired
// into the pipeline runtime.
type JobDefinition struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string            `json:"version" yaml:"version"`
	// Command is the shell command line the job executes.
	Command string `json:"command" yaml:"command"`
	// Env holds extra environment variables for the command.
	Env map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	// Collect forwards files the command leaves in its output directory as
	// artifacts of the declared kind.
	Collect bool   `json:"collect,omitempty" yaml:"collect,omitempty"`
	Kind    string `json:"kind,omitempty" yaml:"kind,omitempty"`
	// Platform tags collected artifacts; optional.
	Platform string `json:"platform,omitempty" yaml:"platform,omitempty"`
}

// Normalized returns a trimmed, copy-on-write variant of the definition.
func (def JobDefinition) Normalized() JobDefinition {
	clone := JobDefinition{
		ID:          strings.TrimSpace(def.ID),
		Name:        strings.TrimSpace(def.Name),
		Description: strings.TrimSpace(def.Description),
		Version:     strings.TrimSpace(def.Version),
		Command:     strings.TrimSpace(def.Command),
		Collect:     def.Collect,
		Kind:        strings.TrimSpace(def.Kind),
		Platform:    strings.TrimSpace(def.Platform),
	}
	if len(def.Env) > 0 {
		clone.Env = make(map[string]string, len(def.Env))
		for key, value := range def.Env {
			trimmedKey := strings.TrimSpace(key)
			if trimmedKey == "" {
				continue
			}
			clone.Env[trimmedKey] = strings.TrimSpace(value)
		}
	}
	return clone
}

// Validate ensures the plugin definition is well-formed.
func (def JobDefinition) Validate() error {
	normalized := def.Normalized()
	if normalized.ID == "" {
		return fmt.Errorf("plugin: id is required")
	}
	if normalized.Version == "" {
		return fmt.Errorf("plugin %s: version is required", normalized.ID)
	}
	if normalized.Command == "" {
		return fmt.Errorf("plugin %s: command is required", normalized.ID)
	}
	if normalized.Collect {
		switch artifact.Kind(normalized.Kind) {
		case artifact.KindBinaryPackage, artifact.KindSourcePackage:
		default:
			return fmt.Errorf("plugin %s: collect requires kind %q or %q, got %q",
				normalized.ID, artifact.KindBinaryPackage, artifact.KindSourcePackage, normalized.Kind)
		}
	}
	return nil
}
