package activity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/quota-meter/pkg/logger"
)

var base = time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)

// assistant renders one assistant log line.
func assistant(session, msgID, requestID, model string, at time.Time, in, out, cacheCreate, cacheRead int) string {
	return fmt.Sprintf(`{"type":"assistant","timestamp":%q,"sessionId":%q,"requestId":%q,`+
		`"message":{"id":%q,"model":%q,"usage":{"input_tokens":%d,"output_tokens":%d,`+
		`"cache_creation_input_tokens":%d,"cache_read_input_tokens":%d}}}`,
		at.Format(time.RFC3339Nano), session, requestID, msgID, model, in, out, cacheCreate, cacheRead)
}

func writeLog(t *testing.T, dir, project, session string, mtime time.Time, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, project, session+".jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func newTestScanner(t *testing.T, dirs ...string) *scanner {
	t.Helper()
	s := newScanner(Config{Dirs: dirs}, logger.Noop())
	s.now = func() time.Time { return base.Add(time.Hour) }
	return s
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr error
		check   func(t *testing.T, r *record)
	}{
		{
			name: "assistant usage",
			line: assistant("s1", "msg_1", "req_1", "claude-opus-4", base, 10, 20, 30, 40),
			check: func(t *testing.T, r *record) {
				assert.Equal(t, "msg_1:req_1", r.key)
				assert.Equal(t, "s1", r.sessionID)
				assert.Equal(t, "claude-opus-4", r.model)
				assert.True(t, base.Equal(r.at))
				assert.Equal(t, Tokens{Input: 10, Output: 20, CacheCreation: 30, CacheRead: 40}, r.tokens)
				assert.Equal(t, int64(100), r.tokens.Total())
			},
		},
		{
			name: "missing model",
			line: `{"type":"assistant","timestamp":"2024-01-10T10:00:00Z","message":{"usage":{"input_tokens":1}}}`,
			check: func(t *testing.T, r *record) {
				assert.Equal(t, "unknown", r.model)
				assert.Empty(t, r.key)
			},
		},
		{
			name:    "user message",
			line:    `{"type":"user","timestamp":"2024-01-10T10:00:00Z","message":{"role":"user","content":"hi"}}`,
			wantErr: ErrNotUsage,
		},
		{
			name:    "assistant without usage",
			line:    `{"type":"assistant","timestamp":"2024-01-10T10:00:00Z","message":{"id":"m"}}`,
			wantErr: ErrNotUsage,
		},
		{
			name:    "summary line",
			line:    `{"type":"summary","summary":"Refactor"}`,
			wantErr: ErrNotUsage,
		},
		{
			name:    "no timestamp",
			line:    `{"type":"assistant","message":{"usage":{"input_tokens":1}}}`,
			wantErr: ErrInvalidTimestamp,
		},
		{
			name:    "negative tokens",
			line:    `{"type":"assistant","timestamp":"2024-01-10T10:00:00Z","message":{"usage":{"output_tokens":-1}}}`,
			wantErr: ErrNegativeTokenCount,
		},
		{
			name:    "not json",
			line:    `{"type":`,
			wantErr: ErrMalformedLine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := parseLine([]byte(tt.line))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, r)
				return
			}
			require.NoError(t, err)
			tt.check(t, r)
		})
	}
}

func TestParseFileKeepsLastStreamedLine(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "proj", "s1", base,
		`{"type":"user","timestamp":"2024-01-10T10:00:00Z"}`,
		assistant("s1", "msg_1", "req_1", "opus", base, 5, 1, 0, 0),
		assistant("s1", "msg_1", "req_1", "opus", base.Add(time.Second), 5, 90, 0, 0),
		"not json at all",
		"",
		assistant("s1", "msg_2", "req_2", "opus", base.Add(time.Minute), 1, 1, 0, 0),
	)

	s := newTestScanner(t, dir)
	info, err := os.Stat(path)
	require.NoError(t, err)

	recs, err := s.parseFile(logFile{path: path, size: info.Size()}, base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(90), recs[0].tokens.Output)
	assert.Equal(t, "msg_2:req_2", recs[1].key)
}

func TestParseFileFiltersBySince(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "proj", "s1", base,
		assistant("s1", "old", "r0", "opus", base.Add(-6*time.Hour), 100, 100, 0, 0),
		assistant("s1", "new", "r1", "opus", base, 1, 2, 0, 0),
	)

	s := newTestScanner(t, dir)
	recs, err := s.parseFile(logFile{path: path}, base.Add(-5*time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "new:r1", recs[0].key)
}

func TestParseFileTooLarge(t *testing.T) {
	s := newScanner(Config{MaxFileSize: 10}, logger.Noop())
	_, err := s.parseFile(logFile{path: "/nonexistent", size: 11}, base)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}

func TestScanAggregatesAcrossProjects(t *testing.T) {
	dir := t.TempDir()
	since := base.Add(-5 * time.Hour)

	writeLog(t, dir, "-home-me-api", "s1", base,
		assistant("s1", "m1", "r1", "claude-opus-4", base.Add(-2*time.Hour), 100, 50, 10, 1000),
		assistant("s1", "m2", "r2", "claude-sonnet-4", base.Add(-time.Hour), 10, 5, 0, 0),
	)
	writeLog(t, dir, "-home-me-web", "s2", base,
		assistant("s2", "m3", "r3", "claude-opus-4", base.Add(-30*time.Minute), 1, 1, 0, 0),
	)
	// Resumed conversation repeats m1 under a new session file.
	writeLog(t, dir, "-home-me-web", "s3", base,
		assistant("s1", "m1", "r1", "claude-opus-4", base.Add(-2*time.Hour), 100, 50, 10, 1000),
	)
	// Last written before the window: never opened.
	writeLog(t, dir, "-home-me-old", "s4", base.Add(-24*time.Hour),
		assistant("s4", "m9", "r9", "claude-opus-4", base, 1e6, 1e6, 0, 0),
	)
	// Not a log.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "-home-me-api", "notes.txt"), []byte("x"), 0600))

	s := newTestScanner(t, dir, filepath.Join(dir, "missing"))
	sum, err := s.Scan(context.Background(), since)
	require.NoError(t, err)

	assert.True(t, since.Equal(sum.Since))
	assert.True(t, base.Add(time.Hour).Equal(sum.Until))
	assert.Equal(t, 3, sum.Files)
	assert.Equal(t, 2, sum.Sessions)
	assert.Equal(t, 3, sum.Requests)
	assert.Equal(t, Tokens{Input: 111, Output: 56, CacheCreation: 10, CacheRead: 1000}, sum.Tokens)
	assert.True(t, base.Add(-2*time.Hour).Equal(sum.FirstSeen))
	assert.True(t, base.Add(-30*time.Minute).Equal(sum.LastSeen))

	require.Len(t, sum.Models, 2)
	assert.Equal(t, "claude-opus-4", sum.Models[0].Model)
	assert.Equal(t, 2, sum.Models[0].Requests)
	assert.Equal(t, int64(1162), sum.Models[0].Tokens.Total())
	assert.Equal(t, "claude-sonnet-4", sum.Models[1].Model)
	assert.Equal(t, int64(15), sum.Models[1].Tokens.Total())
}

func TestScanNestedLogs(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, dir, filepath.Join("proj", "s1", "subagents"), "agent-1", base,
		assistant("s1", "m1", "r1", "claude-haiku", base, 3, 4, 0, 0),
	)

	sum, err := newTestScanner(t, dir).Scan(context.Background(), base.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Requests)
	assert.Equal(t, int64(7), sum.Tokens.Total())
}

func TestScanEmpty(t *testing.T) {
	s := newTestScanner(t, filepath.Join(t.TempDir(), "nope"))
	sum, err := s.Scan(context.Background(), base)
	require.NoError(t, err)

	assert.Equal(t, 0, sum.Files)
	assert.Equal(t, 0, sum.Requests)
	assert.NotNil(t, sum.Models)
	assert.Empty(t, sum.Models)
	assert.True(t, sum.FirstSeen.IsZero())
}

func TestScanCancelled(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		writeLog(t, dir, "proj", fmt.Sprintf("s%d", i), base,
			assistant("s", fmt.Sprintf("m%d", i), "r", "opus", base, 1, 1, 0, 0))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestScanner(t, dir).Scan(ctx, base.Add(-time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultDirs(t *testing.T) {
	dirs := DefaultDirs()
	if len(dirs) == 0 {
		t.Skip("home directory unknown")
	}
	require.Len(t, dirs, 2)
	assert.Equal(t, "projects", filepath.Base(dirs[0]))
	assert.Equal(t, ".claude", filepath.Base(filepath.Dir(dirs[0])))
}

func TestExpandHomeDirs(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("home directory unknown")
	}
	s := newScanner(Config{Dirs: []string{"~/logs", "/abs"}}, logger.Noop())
	assert.Equal(t, []string{filepath.Join(home, "logs"), "/abs"}, s.dirs)
}

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "", want: SessionWindow},
		{in: "session", want: 5 * time.Hour},
		{in: "week", want: 7 * 24 * time.Hour},
		{in: "90m", want: 90 * time.Minute},
		{in: "fortnight", wantErr: true},
		{in: "-1h", wantErr: true},
		{in: "0s", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindow(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidWindow)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
