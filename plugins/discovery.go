package plugins

import (
	"fmt"

	"github.com/kingrea/slipway/internal/config"
	"github.com/kingrea/slipway/internal/job"
)

// RegisterCommandPlugins discovers YAML and Go job definitions under
// .slipway/plugins and registers them as command jobs.
func RegisterCommandPlugins(reg *job.Registry, cfg config.Config) error {
	if reg == nil {
		return nil
	}
	defs, err := loadAllDefinitionFiles(cfg.PluginDir())
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		return nil
	}
	seen := make(map[string]string)
	for _, file := range defs {
		def := file.Definition
		if existing, ok := seen[def.ID]; ok {
			return fmt.Errorf("plugin: duplicate job id %s (%s and %s)", def.ID, existing, file.Path)
		}
		seen[def.ID] = file.Path
		defCopy := def
		if err := reg.Register(defCopy.ID, func(cfg job.Config) (job.Job, error) {
			return newCommandJob(defCopy, cfg)
		}); err != nil {
			return fmt.Errorf("plugin: register %s from %s: %w", def.ID, file.Path, err)
		}
	}
	return nil
}

func loadAllDefinitionFiles(dir string) ([]DefinitionFile, error) {
	yamlDefs, err := LoadDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	goDefs, err := LoadGoDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	return append(yamlDefs, goDefs...), nil
}
