// Package config loads and validates refresher configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/JakeFAU/showcase-refresher/internal/logging"
)

// ErrMissingToken is returned when no GitHub token was supplied.
var ErrMissingToken = errors.New("github.token is required (set GITHUB_TOKEN)")

// Config captures all knobs loaded via Viper.
type Config struct {
	GitHub   GitHubConfig   `mapstructure:"github"`
	Projects ProjectsConfig `mapstructure:"projects"`
	State    StateConfig    `mapstructure:"state"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Mirror   MirrorConfig   `mapstructure:"mirror"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  logging.Config `mapstructure:"logging"`
}

// GitHubConfig controls the GraphQL metadata client.
type GitHubConfig struct {
	Token             string        `mapstructure:"token"`
	Owner             string        `mapstructure:"owner" validate:"required"`
	Endpoint          string        `mapstructure:"endpoint" validate:"required,url"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
}

// ProjectsConfig points at the directory holding one folder per project.
type ProjectsConfig struct {
	Root string `mapstructure:"root" validate:"required"`
}

// StateConfig locates the timestamp ledger.
type StateConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// BrowserConfig configures the headless capture.
type BrowserConfig struct {
	ViewportWidth  int           `mapstructure:"viewport_width" validate:"gt=0"`
	ViewportHeight int           `mapstructure:"viewport_height" validate:"gt=0"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout" validate:"gt=0"`
	ExecPath       string        `mapstructure:"exec_path"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// MirrorConfig enables copying refreshed showcases to GCS or, when no
// bucket is set, to a local directory.
type MirrorConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	LocalDir  string `mapstructure:"local_dir"`
}

// NotifyConfig enables Pub/Sub notifications for refreshed showcases.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id" validate:"required_with=Topic"`
	Topic     string `mapstructure:"topic" validate:"required_with=ProjectID"`
}

// MetricsConfig controls pushing run metrics to a Prometheus push gateway.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url" validate:"omitempty,url"`
	Job            string `mapstructure:"job" validate:"required"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHOWCASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("github.endpoint", "https://api.github.com/graphql")
	v.SetDefault("github.timeout", "30s")
	v.SetDefault("github.requests_per_second", 0)
	v.SetDefault("projects.root", "projects")
	v.SetDefault("state.path", "data/showcase-timestamps.json")
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 800)
	v.SetDefault("browser.nav_timeout", "30s")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("mirror.gcs_bucket", "")
	v.SetDefault("mirror.prefix", "showcases")
	v.SetDefault("mirror.local_dir", "")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "showcase_refresh")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "")
}

// bindEnv maps the conventional CI variable names onto config keys.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"github.token": {"SHOWCASE_GITHUB_TOKEN", "GITHUB_TOKEN"},
		"github.owner": {"SHOWCASE_GITHUB_OWNER", "GITHUB_REPOSITORY_OWNER"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.GitHub.Token) == "" {
		return ErrMissingToken
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("%s failed %q validation", configKey(fe.Namespace()), fe.Tag())
		}
		return fmt.Errorf("validate config: %w", err)
	}
	return nil
}

// MirrorEnabled reports whether showcases should be copied anywhere.
func (c Config) MirrorEnabled() bool {
	return c.Mirror.GCSBucket != "" || c.Mirror.LocalDir != ""
}

// NotifyEnabled reports whether refresh events should be published.
func (c Config) NotifyEnabled() bool {
	return c.Notify.ProjectID != "" && c.Notify.Topic != ""
}

// configKey strips the root struct name from a validator namespace,
// "Config.github.owner" becomes "github.owner".
func configKey(namespace string) string {
	parts := strings.SplitN(namespace, ".", 2)
	if len(parts) == 2 {
		return parts[1]
	}
	return namespace
}
