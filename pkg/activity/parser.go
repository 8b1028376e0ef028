package activity

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// logLine is the subset of a log line the scanner reads.
type logLine struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId"`
	RequestID string    `json:"requestId"`
	Message   *struct {
		ID    string    `json:"id"`
		Model string    `json:"model"`
		Usage *rawUsage `json:"usage"`
	} `json:"message"`
}

type rawUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
}

// record is one request's usage.
type record struct {
	// key identifies the request across files; empty when the line has
	// neither a message nor a request ID.
	key       string
	sessionID string
	model     string
	at        time.Time
	tokens    Tokens
}

// parseLine parses one JSONL line into a record.
//
// Returns ErrNotUsage for lines without usage, so callers can tell them
// apart from damaged lines.
func parseLine(line []byte) (*record, error) {
	var l logLine
	if err := json.Unmarshal(line, &l); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedLine, err)
	}

	if l.Type != "assistant" || l.Message == nil || l.Message.Usage == nil {
		return nil, ErrNotUsage
	}
	if l.Timestamp.IsZero() {
		return nil, ErrInvalidTimestamp
	}

	u := l.Message.Usage
	if u.InputTokens < 0 || u.OutputTokens < 0 ||
		u.CacheCreationInputTokens < 0 || u.CacheReadInputTokens < 0 {
		return nil, ErrNegativeTokenCount
	}

	model := l.Message.Model
	if model == "" {
		model = "unknown"
	}

	key := ""
	if l.Message.ID != "" || l.RequestID != "" {
		key = l.Message.ID + ":" + l.RequestID
	}

	return &record{
		key:       key,
		sessionID: l.SessionID,
		model:     model,
		at:        l.Timestamp,
		tokens: Tokens{
			Input:         u.InputTokens,
			Output:        u.OutputTokens,
			CacheCreation: u.CacheCreationInputTokens,
			CacheRead:     u.CacheReadInputTokens,
		},
	}, nil
}

// parseFile reads every record at or after since from path.
//
// A streamed reply is logged several times with the same message ID and
// cumulative usage, so the last line per key wins. Malformed lines are
// skipped.
func (s *scanner) parseFile(f logFile, since time.Time) ([]record, error) {
	if f.size > s.maxFileSize {
		return nil, fmt.Errorf("%w: size=%d, max=%d", ErrFileTooLarge, f.size, s.maxFileSize)
	}

	file, err := os.Open(f.path) // nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close() // nolint:errcheck

	records := make([]record, 0, 64)
	index := make(map[string]int)

	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	lineNum := 0
	skipped := 0
	for sc.Scan() {
		lineNum++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}

		rec, err := parseLine(line)
		if err != nil {
			if !errors.Is(err, ErrNotUsage) {
				skipped++
			}
			continue
		}
		if rec.at.Before(since) {
			continue
		}

		if rec.key == "" {
			records = append(records, *rec)
			continue
		}
		if i, ok := index[rec.key]; ok {
			records[i] = *rec
			continue
		}
		index[rec.key] = len(records)
		records = append(records, *rec)
	}

	if err := sc.Err(); err != nil {
		return records, fmt.Errorf("scanner error at line %d: %w", lineNum+1, err)
	}
	if skipped > 0 {
		s.logger.Debug("skipped malformed lines", "path", f.path, "count", skipped)
	}

	return records, nil
}
