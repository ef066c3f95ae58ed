package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goliatone/go-entitlements/core"
)

// TOMLLoader reads the raw engine configuration map from a TOML file. Keys
// follow the koanf tags on core.Config, for example:
//
//	service_name = "entitlements"
//	[access_control]
//	base_url = "https://access-control.internal"
type TOMLLoader struct {
	Path string
	// Optional treats a missing file as an empty configuration.
	Optional bool
}

func NewTOMLLoader(path string) *TOMLLoader {
	return &TOMLLoader{Path: strings.TrimSpace(path), Optional: true}
}

func (l *TOMLLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l == nil || strings.TrimSpace(l.Path) == "" {
		return map[string]any{}, nil
	}
	raw := map[string]any{}
	if _, err := toml.DecodeFile(l.Path, &raw); err != nil {
		if l.Optional && errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("config: load %s: %w", l.Path, err)
	}
	return raw, nil
}

// Load builds the engine configuration from path layered over defaults.
func Load(ctx context.Context, path string) (core.Config, error) {
	provider := core.NewCfgxConfigProvider(NewTOMLLoader(path))
	return provider.Load(ctx, core.DefaultConfig())
}

var _ core.RawConfigLoader = (*TOMLLoader)(nil)
