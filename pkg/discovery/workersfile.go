package discovery

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StaticWorker is one entry of a --workers-file list, an alternative to
// directory-based auto-discovery for environments where writing
// advertisement files isn't practical (e.g. pre-provisioned clusters).
type StaticWorker struct {
	ID     string `yaml:"id"`
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Secret string `yaml:"secret"`
}

type staticWorkersFile struct {
	Workers []StaticWorker `yaml:"workers"`
}

// LoadWorkersFile reads a YAML file of statically configured workers.
func LoadWorkersFile(path string) ([]StaticWorker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("discovery: read workers file %s: %w", path, err)
	}
	var parsed staticWorkersFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("discovery: parse workers file %s: %w", path, err)
	}
	return parsed.Workers, nil
}
