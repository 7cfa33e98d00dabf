// Package config provides configuration management for sitecycle using Viper
// for loading from files, environment variables and command-line flags.
//
// Settings come from .sitecycle.yml, SITECYCLE_* environment variables, a
// .env file, and the environment names the hosting platform already sets
// (NODE_ENV, VERCEL_URL, VERCEL_DEPLOY_HOOK).
package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/sitecycle/internal/errors"
	"github.com/conneroisu/sitecycle/internal/validation"
)

type Config struct {
	Build   BuildConfig   `mapstructure:"build" yaml:"build" json:"build"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server" json:"server"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch" json:"watch"`
	Site    SiteConfig    `mapstructure:"site" yaml:"site" json:"site"`
	Deploy  DeployConfig  `mapstructure:"deploy" yaml:"deploy" json:"deploy"`
	Modules ModulesConfig `mapstructure:"modules" yaml:"modules" json:"modules"`
}

type BuildConfig struct {
	SrcDir      string   `mapstructure:"src_dir" yaml:"src_dir" json:"src_dir"`
	OutDir      string   `mapstructure:"out_dir" yaml:"out_dir" json:"out_dir"`
	EntryPoints []string `mapstructure:"entry_points" yaml:"entry_points" json:"entry_points"`
	Styles      []string `mapstructure:"styles" yaml:"styles" json:"styles"`
	PagesDir    string   `mapstructure:"pages_dir" yaml:"pages_dir" json:"pages_dir"`
	Sourcemap   bool     `mapstructure:"sourcemap" yaml:"sourcemap" json:"sourcemap"`
	Target      string   `mapstructure:"target" yaml:"target" json:"target"`
}

type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host" json:"host"`
	Port           int      `mapstructure:"port" yaml:"port" json:"port"`
	Origin         string   `mapstructure:"origin" yaml:"origin" json:"origin"`
	ReloadPath     string   `mapstructure:"reload_path" yaml:"reload_path" json:"reload_path"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
}

type WatchConfig struct {
	Paths      []string      `mapstructure:"paths" yaml:"paths" json:"paths"`
	Debounce   time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
	Extensions []string      `mapstructure:"extensions" yaml:"extensions" json:"extensions"`
	Ignore     []string      `mapstructure:"ignore" yaml:"ignore" json:"ignore"`
}

type SiteConfig struct {
	Production bool   `mapstructure:"production" yaml:"production" json:"production"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
}

type DeployConfig struct {
	HookURL string        `mapstructure:"hook_url" yaml:"hook_url" json:"hook_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

type ModulesConfig struct {
	Attribute      string `mapstructure:"attribute" yaml:"attribute" json:"attribute"`
	CycleAttribute string `mapstructure:"cycle_attribute" yaml:"cycle_attribute" json:"cycle_attribute"`
	VisibilityGate bool   `mapstructure:"visibility_gate" yaml:"visibility_gate" json:"visibility_gate"`
}

// BindEnvironment wires the platform environment names onto config keys.
// SITECYCLE_* names always win over the platform ones.
func BindEnvironment(v *viper.Viper) {
	_ = v.BindEnv("deploy.hook_url", "SITECYCLE_DEPLOY_HOOK_URL", "VERCEL_DEPLOY_HOOK")
	_ = v.BindEnv("site.base_url", "SITECYCLE_SITE_BASE_URL")
}

// Load reads the global viper instance into a Config, applying defaults and
// validating the result.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom is Load against an explicit viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Build defaults
	if config.Build.SrcDir == "" {
		config.Build.SrcDir = "src"
	}
	if config.Build.OutDir == "" {
		config.Build.OutDir = "dist"
	}
	if !v.IsSet("build.entry_points") && len(config.Build.EntryPoints) == 0 {
		config.Build.EntryPoints = []string{"src/app.js"}
	}
	if !v.IsSet("build.styles") && len(config.Build.Styles) == 0 {
		config.Build.Styles = []string{"src/styles/index.css"}
	}
	if config.Build.PagesDir == "" {
		config.Build.PagesDir = filepath.Join(config.Build.SrcDir, "pages")
	}
	if !v.IsSet("build.sourcemap") {
		config.Build.Sourcemap = true
	}
	if config.Build.Target == "" {
		config.Build.Target = "es2020"
	}

	// Server defaults
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if !v.IsSet("server.port") {
		config.Server.Port = 3000
	}
	if config.Server.Origin == "" {
		config.Server.Origin = fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)
	}
	config.Server.Origin = strings.TrimRight(config.Server.Origin, "/")
	if config.Server.ReloadPath == "" {
		config.Server.ReloadPath = "/_reload"
	}
	if len(config.Server.AllowedOrigins) == 0 {
		// The reload client runs inside pages served from other hosts.
		config.Server.AllowedOrigins = []string{"*"}
	}

	// Watch defaults
	if len(config.Watch.Paths) == 0 {
		config.Watch.Paths = []string{config.Build.SrcDir}
	}
	if config.Watch.Debounce <= 0 {
		config.Watch.Debounce = 100 * time.Millisecond
	}
	if len(config.Watch.Extensions) == 0 {
		config.Watch.Extensions = []string{".js", ".jsx", ".ts", ".tsx", ".css", ".json"}
	}
	if len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = []string{"node_modules", ".git"}
	}

	// Site defaults
	if !v.IsSet("site.production") {
		config.Site.Production = os.Getenv("NODE_ENV") == "production"
	}
	if config.Site.BaseURL == "" {
		if host := os.Getenv("VERCEL_URL"); host != "" {
			config.Site.BaseURL = "https://" + host
		}
	}
	config.Site.BaseURL = strings.TrimRight(config.Site.BaseURL, "/")

	// Deploy defaults
	if config.Deploy.Timeout <= 0 {
		config.Deploy.Timeout = 30 * time.Second
	}

	// Module defaults
	if config.Modules.Attribute == "" {
		config.Modules.Attribute = "module"
	}
	if config.Modules.CycleAttribute == "" {
		config.Modules.CycleAttribute = "cycle"
	}
	if !v.IsSet("modules.visibility_gate") {
		config.Modules.VisibilityGate = true
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Entries returns script and style entry points in build order.
func (b BuildConfig) Entries() []string {
	entries := make([]string, 0, len(b.EntryPoints)+len(b.Styles))
	entries = append(entries, b.EntryPoints...)
	return append(entries, b.Styles...)
}

// ReloadURL is the websocket URL the injected client connects to.
func (s ServerConfig) ReloadURL() string {
	origin := s.Origin
	switch {
	case strings.HasPrefix(origin, "https://"):
		origin = "wss://" + strings.TrimPrefix(origin, "https://")
	case strings.HasPrefix(origin, "http://"):
		origin = "ws://" + strings.TrimPrefix(origin, "http://")
	}
	return origin + s.ReloadPath
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateBuildConfig(&config.Build); err != nil {
		return fmt.Errorf("build config: %w", err)
	}

	for _, ext := range config.Watch.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("watch config: extension %q must start with a dot", ext)
		}
	}

	if config.Site.BaseURL != "" {
		if err := validation.ValidateURL(config.Site.BaseURL); err != nil {
			return fmt.Errorf("site config: base_url: %w", err)
		}
	}
	if config.Deploy.HookURL != "" {
		if err := validation.ValidateURL(config.Deploy.HookURL); err != nil {
			// Never echo the hook URL back; it is a credential.
			return errors.NewConfigError(errors.ErrCodeConfigInvalid, "deploy config: hook_url is not a valid URL")
		}
	}

	if config.Modules.Attribute == config.Modules.CycleAttribute {
		return fmt.Errorf("modules config: attribute and cycle_attribute must differ (both %q)", config.Modules.Attribute)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// 0 lets the OS pick a port, which tests rely on.
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(config.Host, char) {
			return fmt.Errorf("host contains dangerous character: %s", char)
		}
	}

	if err := validation.ValidateOrigin(config.Origin); err != nil {
		return fmt.Errorf("origin: %w", err)
	}

	for _, origin := range config.AllowedOrigins {
		if origin == "*" {
			continue
		}
		if err := validation.ValidateOrigin(origin); err != nil {
			return fmt.Errorf("allowed_origins: %w", err)
		}
	}

	return ValidateReloadPath(config.ReloadPath)
}

// ReservedPaths are served by the dev server itself and cannot carry the
// reload channel.
var ReservedPaths = []string{"/health", "/metrics", "/favicon.ico"}

// ValidateReloadPath checks that p can be registered as the reload route:
// absolute, clean, not the root, free of route wildcards and not one of
// ReservedPaths.
func ValidateReloadPath(p string) error {
	if !strings.HasPrefix(p, "/") || p == "/" {
		return fmt.Errorf("reload_path %q must be an absolute, non-root path", p)
	}
	if strings.ContainsAny(p, "{}?# \t") {
		return fmt.Errorf("reload_path %q contains a reserved character", p)
	}
	if path.Clean(p) != p {
		return fmt.Errorf("reload_path %q is not a clean path", p)
	}
	if slices.Contains(ReservedPaths, p) {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("reload_path %q is reserved by the server", p)).
			WithContext("reserved", ReservedPaths)
	}
	return nil
}

// validateBuildConfig validates build configuration values
func validateBuildConfig(config *BuildConfig) error {
	if err := validation.ValidatePath(config.OutDir); err != nil {
		return fmt.Errorf("invalid out_dir '%s': %w", config.OutDir, err)
	}

	for _, entry := range config.Entries() {
		if err := validation.ValidatePath(entry); err != nil {
			return fmt.Errorf("invalid entry point '%s': %w", entry, err)
		}
	}

	return nil
}
