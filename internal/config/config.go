// Package config materializes the client's settings from environment
// variables, with optional .env layering for local development.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	errs "github.com/shulebook/shulebook-go/internal/errors"
)

const envPrefix = "SHULEBOOK"

// OIDC configures the optional OpenID Connect identity provider. When
// IssuerURL is empty the client falls back to a static access token.
type OIDC struct {
	IssuerURL    string   `mapstructure:"oidc_issuer_url" validate:"omitempty,url"`
	ClientID     string   `mapstructure:"oidc_client_id" validate:"required_with=IssuerURL"`
	ClientSecret string   `mapstructure:"oidc_client_secret"`
	Scopes       []string `mapstructure:"oidc_scopes"`
}

type Config struct {
	Env     string `mapstructure:"env" validate:"required,oneof=dev test qa prod"`
	AppName string `mapstructure:"app_name" validate:"required"`

	APIBaseURL string        `mapstructure:"api_base_url" validate:"required,url"`
	APITimeout time.Duration `mapstructure:"api_timeout" validate:"gt=0"`

	// Host the client is served on; the tenant is its leftmost subdomain.
	Host             string `mapstructure:"host"`
	TenantBaseDomain string `mapstructure:"tenant_base_domain"`
	// Tenant overrides subdomain resolution when set.
	Tenant string `mapstructure:"tenant"`

	FetchRetry      int           `mapstructure:"fetch_retry" validate:"gte=0"`
	FetchRetryDelay time.Duration `mapstructure:"fetch_retry_delay" validate:"gt=0"`

	AccessToken  string `mapstructure:"access_token"`
	RollbarToken string `mapstructure:"rollbar_token"`

	OIDC OIDC `mapstructure:",squash"`
}

// Load reads SHULEBOOK_* environment variables on top of an optional .env
// file and the defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	v.SetDefault("env", "dev")
	v.SetDefault("app_name", "Shulebook")
	v.SetDefault("api_base_url", "http://localhost:3001")
	v.SetDefault("api_timeout", 30*time.Second)
	v.SetDefault("host", "")
	v.SetDefault("tenant_base_domain", "shulebook.app")
	v.SetDefault("tenant", "")
	v.SetDefault("fetch_retry", 1)
	v.SetDefault("fetch_retry_delay", time.Second)
	v.SetDefault("access_token", "")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("oidc_issuer_url", "")
	v.SetDefault("oidc_client_id", "")
	v.SetDefault("oidc_client_secret", "")
	v.SetDefault("oidc_scopes", []string{"openid", "profile", "email"})

	// load .env if it exists (ignore if it does not)
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, errs.Wrapf(err, "config: loading .env")
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.Wrapf(err, "config: unmarshal")
	}
	cfg.Env = strings.ToLower(cfg.Env)

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, errs.Wrapf(err, "config: validation")
	}
	return &cfg, nil
}
