package display

import (
	"encoding/json"
	"io"

	"github.com/0xmhha/quota-meter/pkg/activity"
	"github.com/0xmhha/quota-meter/pkg/history"
	"github.com/0xmhha/quota-meter/pkg/usage"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

// FormatSnapshot implements Formatter.FormatSnapshot.
func (f *jsonFormatter) FormatSnapshot(w io.Writer, snap *usage.Snapshot) error {
	if snap == nil {
		return ErrNilSnapshot
	}
	return f.encoder(w).Encode(snap)
}

// FormatHistory implements Formatter.FormatHistory.
func (f *jsonFormatter) FormatHistory(w io.Writer, entries []*history.Entry) error {
	if entries == nil {
		entries = []*history.Entry{}
	}
	return f.encoder(w).Encode(entries)
}

// FormatActivity implements Formatter.FormatActivity.
func (f *jsonFormatter) FormatActivity(w io.Writer, sum *activity.Summary) error {
	if sum == nil {
		return ErrNilSummary
	}
	return f.encoder(w).Encode(sum)
}

func (f *jsonFormatter) encoder(w io.Writer) *json.Encoder {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}
	return encoder
}
