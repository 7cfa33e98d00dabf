package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitecycle/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("NODE_ENV", "")
	t.Setenv("VERCEL_URL", "")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "dist", cfg.Build.OutDir)
	assert.Equal(t, []string{"src/app.js"}, cfg.Build.EntryPoints)
	assert.Equal(t, []string{"src/styles/index.css"}, cfg.Build.Styles)
	assert.Equal(t, filepath.Join("src", "pages"), cfg.Build.PagesDir)
	assert.True(t, cfg.Build.Sourcemap)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:3000", cfg.Server.Origin)
	assert.Equal(t, "/_reload", cfg.Server.ReloadPath)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, []string{"src"}, cfg.Watch.Paths)
	assert.Equal(t, 100*time.Millisecond, cfg.Watch.Debounce)
	assert.False(t, cfg.Site.Production)
	assert.Empty(t, cfg.Site.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Deploy.Timeout)
	assert.Equal(t, "module", cfg.Modules.Attribute)
	assert.Equal(t, "cycle", cfg.Modules.CycleAttribute)
	assert.True(t, cfg.Modules.VisibilityGate)
}

func TestLoadOverrides(t *testing.T) {
	v := viper.New()
	v.Set("server.port", 4100)
	v.Set("server.host", "127.0.0.1")
	v.Set("build.entry_points", []string{"src/main.ts"})
	v.Set("build.styles", []string{})
	v.Set("watch.debounce", "250ms")
	v.Set("site.production", true)
	v.Set("site.base_url", "https://example.com/")
	v.Set("modules.visibility_gate", false)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:4100", cfg.Server.Origin)
	assert.Equal(t, []string{"src/main.ts"}, cfg.Build.Entries())
	assert.Equal(t, 250*time.Millisecond, cfg.Watch.Debounce)
	assert.True(t, cfg.Site.Production)
	assert.Equal(t, "https://example.com", cfg.Site.BaseURL)
	assert.False(t, cfg.Modules.VisibilityGate)
}

func TestLoadPlatformEnvironment(t *testing.T) {
	t.Setenv("NODE_ENV", "production")
	t.Setenv("VERCEL_URL", "site-abc.vercel.app")
	t.Setenv("VERCEL_DEPLOY_HOOK", "https://api.vercel.com/v1/integrations/deploy/x/y")

	v := viper.New()
	BindEnvironment(v)

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.True(t, cfg.Site.Production)
	assert.Equal(t, "https://site-abc.vercel.app", cfg.Site.BaseURL)
	assert.Equal(t, os.Getenv("VERCEL_DEPLOY_HOOK"), cfg.Deploy.HookURL)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		setup func(v *viper.Viper)
	}{
		{"port too large", func(v *viper.Viper) { v.Set("server.port", 70000) }},
		{"traversal out dir", func(v *viper.Viper) { v.Set("build.out_dir", "../outside") }},
		{"dangerous entry", func(v *viper.Viper) { v.Set("build.entry_points", []string{"src/app.js;rm"}) }},
		{"relative reload path", func(v *viper.Viper) { v.Set("server.reload_path", "reload") }},
		{"extension without dot", func(v *viper.Viper) { v.Set("watch.extensions", []string{"js"}) }},
		{"same attributes", func(v *viper.Viper) { v.Set("modules.cycle_attribute", "module") }},
		{"unparseable port", func(v *viper.Viper) { v.Set("server.port", "not-a-port") }},
		{"origin with path", func(v *viper.Viper) { v.Set("server.origin", "http://localhost:3000/app") }},
		{"bad allowed origin", func(v *viper.Viper) { v.Set("server.allowed_origins", []string{"javascript:x"}) }},
		{"bad base url", func(v *viper.Viper) { v.Set("site.base_url", "ftp://example.com") }},
		{"bad hook url", func(v *viper.Viper) { v.Set("deploy.hook_url", "not a url") }},
		{"reload path on health", func(v *viper.Viper) { v.Set("server.reload_path", "/health") }},
		{"reload path on metrics", func(v *viper.Viper) { v.Set("server.reload_path", "/metrics") }},
		{"reload path on favicon", func(v *viper.Viper) { v.Set("server.reload_path", "/favicon.ico") }},
		{"reload path wildcard", func(v *viper.Viper) { v.Set("server.reload_path", "/{id}") }},
		{"reload path not clean", func(v *viper.Viper) { v.Set("server.reload_path", "/a/../_reload") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			cfg, err := LoadFrom(v)
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestValidateReloadPath(t *testing.T) {
	tests := []struct {
		path    string
		wantErr bool
	}{
		{"/_reload", false},
		{"/dev/reload", false},
		{"/", true},
		{"reload", true},
		{"/_reload/", true},
		{"/{$}", true},
		{"/reload?x=1", true},
		{"/reload now", true},
		{"/health", true},
		{"/metrics", true},
		{"/favicon.ico", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidateReloadPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigErrorsAreTyped(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(v *viper.Viper)
		secret string
	}{
		{"reserved reload path", func(v *viper.Viper) { v.Set("server.reload_path", "/metrics") }, ""},
		{"bad hook url", func(v *viper.Viper) { v.Set("deploy.hook_url", "https://hooks example/secret") }, "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			tt.setup(v)

			_, err := LoadFrom(v)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.NewConfigError(errors.ErrCodeConfigInvalid, ""))
			assert.False(t, errors.IsRecoverable(err))
			if tt.secret != "" {
				assert.NotContains(t, err.Error(), tt.secret)
			}
		})
	}
}

func TestReloadURL(t *testing.T) {
	tests := []struct {
		origin   string
		expected string
	}{
		{"http://localhost:3000", "ws://localhost:3000/_reload"},
		{"https://dev.example.com", "wss://dev.example.com/_reload"},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			s := ServerConfig{Origin: tt.origin, ReloadPath: "/_reload"}
			assert.Equal(t, tt.expected, s.ReloadURL())
		})
	}
}
