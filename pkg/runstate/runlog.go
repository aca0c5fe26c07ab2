package runstate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const eventLogFile = "events.jsonl"

// LogEntry is one structured event-log record. The timestamp and level
// are set on append when absent.
type LogEntry map[string]any

// secretMarkers are replaced in string fields before a record hits disk.
var secretMarkers = []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "AWS_SECRET", "AWS_ACCESS_KEY"}

func redact(s string) string {
	out := s
	for _, marker := range secretMarkers {
		out = strings.ReplaceAll(out, marker, "<REDACTED>")
	}
	return out
}

// AppendLogLine appends one JSON record to the run's event log. The log
// is strictly append-only: records are never rewritten or reordered.
func AppendLogLine(runDir string, entry LogEntry) error {
	payload := LogEntry{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"level":     "info",
	}
	for k, v := range entry {
		if s, ok := v.(string); ok {
			payload[k] = redact(s)
			continue
		}
		payload[k] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to serialize log entry: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(runDir, eventLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

// ReadLogLines reads every record of a run's event log in append order.
func ReadLogLines(runDir string) ([]LogEntry, error) {
	f, err := os.Open(filepath.Join(runDir, eventLogFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			// A torn trailing line from a crashed writer is skipped.
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return entries, nil
}
