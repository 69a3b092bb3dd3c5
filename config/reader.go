package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sort"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"go.viam.com/swerve/logging"
)

// Read reads a config from the given file. Environment variables referenced as $VAR or ${VAR} are
// substituted before parsing.
func Read(
	ctx context.Context,
	filePath string,
	logger logging.Logger,
) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(
	ctx context.Context,
	originalPath string,
	r io.Reader,
	logger logging.Logger,
) (*Config, error) {
	var attributes map[string]interface{}
	if err := json.NewDecoder(r).Decode(&attributes); err != nil {
		return nil, errors.Wrap(err, "failed to decode config from json")
	}

	cfg := Default()
	if _, ok := attributes["setpoint_generator"]; ok {
		// Module locations are never merged with the defaults.
		cfg.Generator.ModuleLocations = nil
	}

	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:  "json",
		Result:   cfg,
		Metadata: &md,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		logger.Warnw("ignoring unknown config keys", "keys", md.Unused)
	}

	cfg.ConfigFilePath = originalPath
	if err := cfg.Ensure(logger); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}
