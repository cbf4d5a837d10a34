package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/engage/pkg/log"
)

type AppConfig struct {
	// AppID identifies the host app; surfaces are built from it.
	AppID string `env:"ENGAGE_APP_ID"`

	RuntimePath string `env:"ENGAGE_RUNTIME_PATH" envDefault:".engage"`

	// AssetTTL bounds how long downloaded image assets stay valid before a
	// conditional re-fetch is forced.
	AssetTTL time.Duration `env:"ENGAGE_ASSET_TTL" envDefault:"720h"`

	// HTTPAddr is where the simulator listens.
	HTTPAddr string `env:"ENGAGE_HTTP_ADDR" envDefault:":8787"`
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse app config")
	}
	return c
}

func (c *AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "engage.db")
}

func (c *AppConfig) GetAssetTTL() time.Duration {
	return c.AssetTTL
}

// ApplicationID satisfies core.DeviceInfo for compositions without a platform
// info service.
func (c *AppConfig) ApplicationID() string {
	return c.AppID
}
