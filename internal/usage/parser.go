// Package usage turns Claude Code session logs into windowed usage snapshots.
package usage

import (
	"bytes"
	"time"

	"github.com/tidwall/gjson"

	"github.com/j-veylop/claude-usage-monitor/internal/models"
)

// FragmentSuffix is the file suffix of session log fragments.
const FragmentSuffix = ".jsonl"

const (
	pathTimestamp = "timestamp"
	pathUsage     = "message.usage"
)

var counterFields = [...]string{
	"input_tokens",
	"output_tokens",
	"cache_creation_input_tokens",
	"cache_read_input_tokens",
}

// ParseRecord decodes one log line. It reports false for lines that carry
// no billable usage: blank or malformed lines, lines whose message.usage is
// absent or empty, and lines whose timestamp is missing or not RFC 3339.
func ParseRecord(line []byte) (models.UsageRecord, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || !gjson.ValidBytes(line) {
		return models.UsageRecord{}, false
	}

	usage := gjson.GetBytes(line, pathUsage)
	if !usage.IsObject() || len(usage.Map()) == 0 {
		return models.UsageRecord{}, false
	}

	ts, ok := parseTimestamp(gjson.GetBytes(line, pathTimestamp))
	if !ok {
		return models.UsageRecord{}, false
	}

	return models.UsageRecord{
		Timestamp: ts,
		Tokens:    parseCounts(usage).Total(),
	}, true
}

func parseTimestamp(v gjson.Result) (time.Time, bool) {
	if v.Type != gjson.String {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, v.Str)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func parseCounts(usage gjson.Result) models.TokenCounts {
	var values [len(counterFields)]uint64
	for i, field := range counterFields {
		values[i] = counter(usage.Get(field))
	}
	return models.TokenCounts{
		Input:         values[0],
		Output:        values[1],
		CacheCreation: values[2],
		CacheRead:     values[3],
	}
}

// counter reads a sub-counter. Absent, non-numeric and negative values count as zero.
func counter(v gjson.Result) uint64 {
	if v.Type != gjson.Number || v.Num <= 0 {
		return 0
	}
	return v.Uint()
}
