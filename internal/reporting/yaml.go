package reporting

import (
	"fmt"

	"gopkg.in/yaml.v2"

	"momentum-lab/internal/domain"
)

// ArgsFile is the YAML document of sampled parameter sets. It can be fed
// back to cmd/simulate to replay individual runs.
type ArgsFile struct {
	SweepID string                    `yaml:"sweep_id"`
	Seed    int64                     `yaml:"seed"`
	Configs []domain.SimulationConfig `yaml:"configs"`
}

// RenderArgsYAML renders the parameter sets of a sweep.
func RenderArgsYAML(sweepID string, seed int64, configs []domain.SimulationConfig) ([]byte, error) {
	out, err := yaml.Marshal(ArgsFile{SweepID: sweepID, Seed: seed, Configs: configs})
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}
	return out, nil
}

// ParseArgsYAML reads a document written by RenderArgsYAML.
func ParseArgsYAML(data []byte) (*ArgsFile, error) {
	var f ArgsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return &f, nil
}
