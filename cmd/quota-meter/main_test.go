package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/quota-meter/pkg/config"
	"github.com/0xmhha/quota-meter/pkg/display"
	"github.com/0xmhha/quota-meter/pkg/monitor"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

// testEnv is a temp directory holding a config file that points every
// path into the same directory.
type testEnv struct {
	dir        string
	configPath string
	keyPath    string
}

func newTestEnv(t *testing.T, baseURL string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.yaml"),
		keyPath:    filepath.Join(dir, "session-key"),
	}
	if baseURL == "" {
		baseURL = "https://claude.ai/api"
	}

	content := fmt.Sprintf(`strategy: web
credential:
  path: %s
web:
  base_url: %s
  timeout: 5s
history:
  db_path: %s
display:
  color_enabled: false
activity:
  dirs:
    - %s
logging:
  level: error
`, env.keyPath, baseURL, filepath.Join(dir, "history.db"), filepath.Join(dir, "projects"))
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0600))
	return env
}

// run executes the root command with args and returns stdout.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// fakeClaude serves the organization, usage and overage endpoints.
func fakeClaude(t *testing.T, status int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/organizations", func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_, _ = w.Write([]byte(`[{"uuid":"org-1"}]`))
	})
	mux.HandleFunc("/api/organizations/org-1/usage", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"five_hour": {"utilization": 12.5, "resets_at": "2030-01-10T15:00:00Z"},
			"seven_day": {"utilization": 42, "resets_at": "2030-01-15T12:00:00Z"}
		}`))
	})
	mux.HandleFunc("/api/organizations/org-1/overage_spend_limit", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"monthly_credit_limit": 5000, "currency": "USD", "used_credits": 1250, "is_enabled": true}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"plain", errors.New("boom"), exitError},
		{"no credential", fmt.Errorf("wrapped: %w", usage.ErrNoCredential), exitReauth},
		{"unauthorized", usage.NewError(usage.KindAuthenticationFailed, nil), exitReauth},
		{"bad format", usage.ErrInvalidCredentialFormat, exitReauth},
		{"server error", usage.ErrServerError, exitError},
		{"timeout", usage.ErrTimeout, exitError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"status"},
		{"watch"},
		{"history"},
		{"key", "set"},
		{"key", "check"},
		{"key", "path"},
		{"serve"},
		{"activity"},
		{"config", "show"},
		{"config", "path"},
		{"config", "init"},
		{"version"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestUnknownStrategyRejected(t *testing.T) {
	env := newTestEnv(t, "")
	_, err := env.run(t, "", "--strategy", "scrape", "key", "path")
	assert.ErrorIs(t, err, config.ErrInvalidStrategy)
}

func TestVersionCommand(t *testing.T) {
	env := newTestEnv(t, "")
	out, err := env.run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "quota-meter "+version)
}

func TestKeyLifecycle(t *testing.T) {
	env := newTestEnv(t, "")

	out, err := env.run(t, "", "key", "path")
	require.NoError(t, err)
	assert.Equal(t, env.keyPath+"\n", out)

	out, err = env.run(t, "", "key", "check")
	assert.ErrorIs(t, err, usage.ErrNoCredential)
	assert.Equal(t, exitReauth, exitCode(err))
	assert.Contains(t, out, "not found")

	out, err = env.run(t, "", "key", "set", "sessionKey=sk-ant-sid01-abc")
	require.NoError(t, err)
	assert.Contains(t, out, "Session key saved to "+env.keyPath)

	data, err := os.ReadFile(env.keyPath)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-sid01-abc", string(data))

	out, err = env.run(t, "", "key", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "found")
}

func TestKeySetFromStdin(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "sk-ant-from-stdin\n", "key", "set", "--stdin")
	require.NoError(t, err)

	data, err := os.ReadFile(env.keyPath)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-from-stdin", string(data))
}

func TestKeySetUsageErrors(t *testing.T) {
	env := newTestEnv(t, "")

	_, err := env.run(t, "", "key", "set")
	assert.ErrorIs(t, err, errUsage)

	_, err = env.run(t, "x\n", "key", "set", "--stdin", "sk-ant-abc")
	assert.ErrorIs(t, err, errUsage)

	_, err = env.run(t, "   \n", "key", "set", "--stdin")
	require.Error(t, err)
	assert.Equal(t, usage.ErrEmptyCredential.Error(), err.Error())
}

func TestStatusAndHistory(t *testing.T) {
	srv := fakeClaude(t, http.StatusOK)
	env := newTestEnv(t, srv.URL+"/api")

	_, err := env.run(t, "", "key", "set", "sk-ant-sid01-abc")
	require.NoError(t, err)

	out, err := env.run(t, "", "status", "--format", "json")
	require.NoError(t, err)

	var snap map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, 12.5, snap["sessionPercentage"])
	assert.Equal(t, 42.0, snap["weeklyPercentage"])
	assert.Equal(t, 1250.0, snap["costUsed"])
	assert.Equal(t, "web", snap["source"])

	out, err = env.run(t, "", "status", "--format", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "Claude Usage")
	assert.Contains(t, out, "Session (5h)")

	out, err = env.run(t, "", "history", "--format", "json")
	require.NoError(t, err)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Len(t, entries, 2)

	out, err = env.run(t, "", "history", "--format", "json", "--limit", "1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Len(t, entries, 1)
}

func TestStatusNoHistory(t *testing.T) {
	srv := fakeClaude(t, http.StatusOK)
	env := newTestEnv(t, srv.URL+"/api")

	_, err := env.run(t, "", "key", "set", "sk-ant-sid01-abc")
	require.NoError(t, err)
	_, err = env.run(t, "", "status", "--no-history", "--format", "simple")
	require.NoError(t, err)

	out, err := env.run(t, "", "history", "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)
}

func TestStatusErrors(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		env := newTestEnv(t, fakeClaude(t, http.StatusOK).URL+"/api")
		_, err := env.run(t, "", "status")
		assert.ErrorIs(t, err, usage.ErrNoCredential)
		assert.Equal(t, exitReauth, exitCode(err))
	})

	t.Run("unauthorized", func(t *testing.T) {
		env := newTestEnv(t, fakeClaude(t, http.StatusUnauthorized).URL+"/api")
		_, err := env.run(t, "", "key", "set", "sk-ant-sid01-expired")
		require.NoError(t, err)

		_, err = env.run(t, "", "status")
		assert.Equal(t, usage.KindAuthenticationFailed, usage.KindOf(err))
		assert.Equal(t, exitReauth, exitCode(err))
	})

	t.Run("server error", func(t *testing.T) {
		env := newTestEnv(t, fakeClaude(t, http.StatusBadGateway).URL+"/api")
		_, err := env.run(t, "", "key", "set", "sk-ant-sid01-abc")
		require.NoError(t, err)

		_, err = env.run(t, "", "status")
		assert.Equal(t, usage.KindServerError, usage.KindOf(err))
		assert.Equal(t, exitError, exitCode(err))
	})

	t.Run("bad format flag", func(t *testing.T) {
		env := newTestEnv(t, "")
		_, err := env.run(t, "", "status", "--format", "xml")
		assert.ErrorIs(t, err, display.ErrUnknownFormat)
	})
}

func TestConfigInitAndShow(t *testing.T) {
	env := newTestEnv(t, "")
	path := filepath.Join(env.dir, "nested", "generated.yaml")

	out, err := env.run(t, "", "config", "init", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Default configuration written to: "+path)

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Web, cfg.Web)

	out, err = env.run(t, "n\n", "config", "init", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Init cancelled.")

	out, err = env.run(t, "y\n", "config", "init", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Default configuration written to")

	out, err = env.run(t, "", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# Source: "+env.configPath)
	assert.Contains(t, out, "strategy: web")
	assert.Contains(t, out, "path: "+env.keyPath)

	out, err = env.run(t, "", "--strategy", "cli", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "strategy: cli")

	out, err = env.run(t, "", "config", "show", "--format", "json")
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "web", decoded["Strategy"])

	_, err = env.run(t, "", "config", "show", "--format", "toml")
	assert.ErrorIs(t, err, errUsage)
}

func TestConfigPath(t *testing.T) {
	env := newTestEnv(t, "")
	out, err := env.run(t, "", "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "1. "+env.configPath+" [found]")
	assert.Contains(t, out, "Active configuration: "+env.configPath)
}

func TestWatchRender(t *testing.T) {
	now := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	formatter := display.New(display.Config{
		Format: display.FormatSimple,
		Now:    func() time.Time { return now },
	})
	snap := &usage.Snapshot{
		SessionPercentage: 20,
		SessionResetTime:  now.Add(2 * time.Hour),
		WeeklyPercentage:  50,
		WeeklyResetTime:   now.Add(72 * time.Hour),
	}

	t.Run("snapshot with delta", func(t *testing.T) {
		var buf bytes.Buffer
		wc := &watchCommand{clearScreen: true}
		err := wc.render(&buf, formatter, monitor.Update{
			Timestamp: now,
			Snapshot:  snap,
			Delta:     monitor.Delta{Session: 5, Weekly: 1},
		}, time.Minute)
		require.NoError(t, err)

		out := buf.String()
		assert.True(t, strings.HasPrefix(out, ansiClearScreen))
		assert.Contains(t, out, "5h: 20%")
		assert.Contains(t, out, "Change: session +5%  weekly +1%  model +0%")
		assert.Contains(t, out, "Next update in 1m0s")
	})

	t.Run("failure in append mode", func(t *testing.T) {
		var buf bytes.Buffer
		wc := &watchCommand{}
		err := wc.render(&buf, formatter, monitor.Update{
			Timestamp: now,
			Err:       usage.ErrTimeout,
		}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, "[10:00:00] fetch failed: usage command timed out\n", buf.String())
	})

	t.Run("no delta line on first reading", func(t *testing.T) {
		var buf bytes.Buffer
		wc := &watchCommand{}
		require.NoError(t, wc.render(&buf, formatter, monitor.Update{Timestamp: now, Snapshot: snap}, time.Minute))
		assert.NotContains(t, buf.String(), "Change:")
	})
}

func TestPollTimeout(t *testing.T) {
	assert.Equal(t, 60*time.Second, pollTimeout(15*time.Second, 45*time.Second))
	assert.Equal(t, 75*time.Second, pollTimeout(time.Minute, 45*time.Second))
}

func TestActivity(t *testing.T) {
	env := newTestEnv(t, "")
	now := time.Now().UTC()

	line := func(id, model string, at time.Time, in, out int) string {
		return fmt.Sprintf(`{"type":"assistant","timestamp":%q,"sessionId":"s1","requestId":"r-%s",`+
			`"message":{"id":%q,"model":%q,"usage":{"input_tokens":%d,"output_tokens":%d}}}`,
			at.Format(time.RFC3339), id, id, model, in, out)
	}
	logPath := filepath.Join(env.dir, "projects", "-home-me-api", "s1.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(logPath), 0700))
	content := strings.Join([]string{
		line("m1", "claude-opus-4", now.Add(-time.Hour), 100, 20),
		line("m2", "claude-sonnet-4", now.Add(-2*time.Hour), 10, 5),
		line("m3", "claude-opus-4", now.Add(-48*time.Hour), 1000, 1000),
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(logPath, []byte(content), 0600))

	t.Run("session window", func(t *testing.T) {
		out, err := env.run(t, "", "activity", "--format", "simple")
		require.NoError(t, err)
		assert.Equal(t, "tokens: 135  requests: 2  claude-opus-4: 120  claude-sonnet-4: 15\n", out)
	})

	t.Run("week window json", func(t *testing.T) {
		out, err := env.run(t, "", "activity", "--since", "week", "--format", "json")
		require.NoError(t, err)

		var sum struct {
			Requests int `json:"requests"`
			Sessions int `json:"sessions"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &sum))
		assert.Equal(t, 3, sum.Requests)
		assert.Equal(t, 1, sum.Sessions)
	})

	t.Run("bad window", func(t *testing.T) {
		for _, since := range []string{"fortnight", "-1h", "0s"} {
			_, err := env.run(t, "", "activity", "--since="+since)
			assert.ErrorIs(t, err, errUsage, since)
		}
	})
}
