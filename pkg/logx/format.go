package logx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// record is a single log entry passed to formatters
type record struct {
	Level     Level
	Message   string
	Fields    Fields
	Error     error
	Timestamp time.Time
}

type formatFunc func(r *record, timeFormat string) []byte

// formatConsole renders "2006-01-02T15:04:05Z | INFO  | message | k=v k=v"
func formatConsole(r *record, timeFormat string) []byte {
	var buf bytes.Buffer

	buf.WriteString(r.Timestamp.Format(timeFormat))
	buf.WriteString(" | ")
	fmt.Fprintf(&buf, "%-5s", r.Level.String())
	buf.WriteString(" | ")
	buf.WriteString(r.Message)

	if len(r.Fields) > 0 {
		keys := make([]string, 0, len(r.Fields))
		for k := range r.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&buf, " %s=%v", k, r.Fields[k])
		}
	}

	buf.WriteByte('\n')
	return buf.Bytes()
}

// formatJSON renders one JSON object per line
func formatJSON(r *record, timeFormat string) []byte {
	payload := make(map[string]interface{}, len(r.Fields)+3)
	for k, v := range r.Fields {
		payload[k] = v
	}
	payload["timestamp"] = r.Timestamp.Format(timeFormat)
	payload["level"] = r.Level.String()
	payload["message"] = r.Message

	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"level":"%s","message":%q}`, r.Level, r.Message))
	}
	return append(data, '\n')
}
