package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sitecycle/internal/errors"
)

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "src/app.js", `console.log("site");
`)
	writeFile(t, dir, "src/styles/index.css", `body { margin: 0; }
`)
	writeFile(t, dir, "src/pages/about.js", `console.log("about");
`)
	t.Chdir(dir)
	t.Setenv("NODE_ENV", "")
	t.Setenv("VERCEL_URL", "")
	t.Setenv("VERCEL_DEPLOY_HOOK", "")
	return dir
}

func TestBuildCommand(t *testing.T) {
	dir := project(t)

	out, _, err := execute(t, "build", "--production")
	require.NoError(t, err)

	assert.Contains(t, out, "app.js")
	assert.Contains(t, out, "pages/about.js")
	assert.Contains(t, out, "styles/index.css")
	assert.FileExists(t, filepath.Join(dir, "dist", "build-manifest.json"))
	assert.FileExists(t, filepath.Join(dir, "dist", "index.html"))

	script, err := os.ReadFile(filepath.Join(dir, "dist", "app.js"))
	require.NoError(t, err)
	assert.NotContains(t, string(script), "WebSocket", "production builds carry no reload client")
}

func TestBuildCommandDevelopmentInjectsReloadClient(t *testing.T) {
	dir := project(t)

	_, _, err := execute(t, "build", "--production=false")
	require.NoError(t, err)

	script, err := os.ReadFile(filepath.Join(dir, "dist", "app.js"))
	require.NoError(t, err)
	assert.Contains(t, string(script), "ws://localhost:3000/_reload")
}

func TestBuildCommandFailure(t *testing.T) {
	dir := project(t)
	writeFile(t, dir, "src/app.js", `import "./missing.js";
`)

	_, logs, err := execute(t, "build", "--production=false")
	require.Error(t, err)
	assert.Contains(t, logs, "build failed")
	assert.NoDirExists(t, filepath.Join(dir, "dist"), "failed build writes nothing")
}

func TestDeployCommand(t *testing.T) {
	project(t)

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		_, _ = w.Write([]byte(`{"job":{"id":"job_123","state":"PENDING","createdAt":1746022973310}}`))
	}))
	defer srv.Close()
	t.Setenv("VERCEL_DEPLOY_HOOK", srv.URL+"/deploy/secret")

	out, _, err := execute(t, "deploy", "--format", "json")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	var decoded struct {
		Job struct {
			ID    string `json:"id"`
			State string `json:"state"`
		} `json:"job"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "job_123", decoded.Job.ID)
	assert.Equal(t, "PENDING", decoded.Job.State)
}

func TestDeployCommandFailureIsLoggedNotRetried(t *testing.T) {
	project(t)

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	t.Setenv("VERCEL_DEPLOY_HOOK", srv.URL+"/deploy/secret")

	_, logs, err := execute(t, "deploy", "--format", "text")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, logs, "deploy failed")
	assert.NotContains(t, logs, "secret")
}

func TestDeployCommandWithoutHook(t *testing.T) {
	project(t)

	out, logs, err := execute(t, "deploy", "--format", "text")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Contains(t, logs, "not set")
}

func TestScanCommand(t *testing.T) {
	dir := project(t)
	writeFile(t, dir, "src/index.html", `<!DOCTYPE html>
<html><body>
  <section data-module="inview" data-key="hero"></section>
  <div data-cycle="cycle"></div>
  <div data-module="carousel"></div>
</body></html>`)

	out, _, err := execute(t, "scan", "--format", "json", "--strict=false", "--mount=false")
	require.NoError(t, err)

	var report []PageBindings
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report, 1)
	require.Len(t, report[0].Bindings, 3)

	resolved := map[string]bool{}
	for _, b := range report[0].Bindings {
		resolved[b.ID] = b.Resolved
	}
	assert.Equal(t, map[string]bool{"inview": true, "carousel": false, "cycle": true}, resolved)

	_, _, err = execute(t, "scan", "--format", "table", "--strict", "--mount=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 binding(s) do not resolve")
	assert.True(t, errors.IsResolveError(err))

	_, _, err = execute(t, "scan", "missing.html", "--format", "json", "--strict=false", "--mount=false")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.NewIOError(errors.ErrCodeFileNotFound, "", nil))
}

func TestScanCommandMount(t *testing.T) {
	dir := project(t)
	writeFile(t, dir, "src/index.html", `<!DOCTYPE html>
<html><body>
  <section data-module="inview" data-key="hero"></section>
  <section data-module="inview"></section>
  <div data-cycle="cycle"></div>
</body></html>`)

	out, logs, err := execute(t, "scan", "--format", "json", "--strict=false", "--mount")
	require.NoError(t, err)

	var report []PageBindings
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report, 1)
	require.NotNil(t, report[0].Instances)
	assert.Equal(t, 1, *report[0].Instances, "inview without a key fails to construct")
	assert.Contains(t, logs, "needs data-key or an id")

	out, _, err = execute(t, "scan", "--format", "table", "--strict=false", "--mount")
	require.NoError(t, err)
	assert.Contains(t, out, "1 instance(s) mounted")
}

func TestConfigShow(t *testing.T) {
	project(t)
	t.Setenv("SITECYCLE_SERVER_PORT", "4100")
	t.Setenv("VERCEL_DEPLOY_HOOK", "https://api.vercel.com/v1/integrations/deploy/prj/secret")

	out, _, err := execute(t, "config", "show", "--format", "json")
	require.NoError(t, err)

	var cfg struct {
		Server struct {
			Port       int    `json:"port"`
			ReloadPath string `json:"reload_path"`
		} `json:"server"`
		Deploy struct {
			HookURL string `json:"hook_url"`
		} `json:"deploy"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 4100, cfg.Server.Port)
	assert.Equal(t, "/_reload", cfg.Server.ReloadPath)
	assert.Equal(t, "[REDACTED]", cfg.Deploy.HookURL)

	out, _, err = execute(t, "config", "show", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "port: 4100")
	assert.NotContains(t, out, "secret")
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version", "--format", "text", "--short=false", "--detailed=false")
	require.NoError(t, err)
	assert.Contains(t, out, "sitecycle ")

	out, _, err = execute(t, "version", "--format", "json")
	require.NoError(t, err)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "go_version")

	_, _, err = execute(t, "version", "--format", "xml")
	assert.Error(t, err)
}
