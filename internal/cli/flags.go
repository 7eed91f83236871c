package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rp-cli/rp/internal/errors"
	"github.com/rp-cli/rp/internal/registry"
)

// GPUSpec is a parsed --gpu flag: count and model substring.
type GPUSpec struct {
	Count int
	Model string
}

// ParseGPUSpec parses "2xA100", "h100", "1xL40S". A bare model name means
// count 1.
func ParseGPUSpec(spec string) (GPUSpec, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return GPUSpec{}, errors.New(errors.ErrConfig,
			"GPU spec cannot be empty",
			"Use a spec like 1xA100 or h100")
	}

	count := 1
	model := spec
	if idx := strings.IndexAny(spec, "xX"); idx > 0 {
		if n, err := strconv.Atoi(spec[:idx]); err == nil {
			count = n
			model = spec[idx+1:]
		}
	}

	if count < 1 || count > 8 {
		return GPUSpec{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("Invalid GPU count in '%s'", spec),
			"Count must be between 1 and 8, e.g. 2xA100")
	}
	if model == "" {
		return GPUSpec{}, errors.New(errors.ErrConfig,
			fmt.Sprintf("Missing GPU model in '%s'", spec),
			"Use a spec like 2xA100")
	}

	return GPUSpec{Count: count, Model: model}, nil
}

// ParseStorageSpec parses "500GB", "1TB", "250GiB" into whole gigabytes.
// TB/TiB are treated as 1000/1024 GB respectively.
func ParseStorageSpec(spec string) (int, error) {
	s := strings.TrimSpace(strings.ToUpper(spec))
	if s == "" {
		return 0, errors.New(errors.ErrConfig,
			"Storage spec cannot be empty",
			"Use a spec like 500GB")
	}

	multiplier := 1
	switch {
	case strings.HasSuffix(s, "GIB"):
		s = strings.TrimSuffix(s, "GIB")
	case strings.HasSuffix(s, "GB"):
		s = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "TIB"):
		s = strings.TrimSuffix(s, "TIB")
		multiplier = 1024
	case strings.HasSuffix(s, "TB"):
		s = strings.TrimSuffix(s, "TB")
		multiplier = 1000
	}

	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrConfig,
			fmt.Sprintf("'%s' doesn't look like a storage size", spec),
			"Use a spec like 500GB or 1TB")
	}

	gb := n * multiplier
	if gb < 10 {
		return 0, errors.New(errors.ErrConfig,
			fmt.Sprintf("Storage size %dGB is too small", gb),
			"Minimum volume size is 10GB")
	}
	return gb, nil
}

// ParseConfigFlags parses repeated --config key=value flags into a PodConfig.
// "path" is the only supported key.
func ParseConfigFlags(flags []string) (registry.PodConfig, error) {
	var cfg registry.PodConfig
	for _, f := range flags {
		key, value, found := strings.Cut(f, "=")
		if !found || key == "" {
			return cfg, errors.New(errors.ErrConfig,
				fmt.Sprintf("Invalid config flag '%s'", f),
				"Use --config key=value, e.g. --config path=/workspace/app")
		}
		switch key {
		case "path":
			cfg.Path = value
		default:
			return cfg, errors.New(errors.ErrConfig,
				fmt.Sprintf("Unknown config key '%s'", key),
				"Supported keys: path")
		}
	}
	return cfg, nil
}
