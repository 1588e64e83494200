package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// benchConfig is the optional YAML configuration for the -b suite.
type benchConfig struct {
	Scale     int     `yaml:"scale"`     // keys loaded per structure
	Branching []int32 `yaml:"branching"` // branching factors to sweep
	Out       string  `yaml:"out"`       // CSV output path
}

func defaultBenchConfig() benchConfig {
	return benchConfig{
		Scale:     10000,
		Branching: []int32{8, 32, 128},
		Out:       "bench_results.csv",
	}
}

func loadBenchConfig(path string) (benchConfig, error) {
	cfg := defaultBenchConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("bench config %s: %w", path, err)
	}
	if cfg.Scale <= 0 {
		cfg.Scale = defaultBenchConfig().Scale
	}
	if len(cfg.Branching) == 0 {
		cfg.Branching = defaultBenchConfig().Branching
	}
	if cfg.Out == "" {
		cfg.Out = defaultBenchConfig().Out
	}
	return cfg, nil
}
