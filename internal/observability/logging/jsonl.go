package logging

import (
	"context"
	"encoding/json"
	"runtime"
	"time"

	"github.com/govgate/govgate/internal/observability"
	"github.com/govgate/govgate/internal/version"
	"go.opentelemetry.io/otel/trace"
)

const SchemaVersion = "1.0"

// EventPrefix namespaces events for log pipelines
const EventPrefix = "govgate."

type jsonlLogger struct {
	*sink
}

type logEntry struct {
	Timestamp      string         `json:"ts"`
	Level          string         `json:"level"`
	Event          string         `json:"event,omitempty"`
	Component      string         `json:"component"`
	OpID           string         `json:"op_id"`
	TraceID        string         `json:"trace_id,omitempty"`
	SpanID         string         `json:"span_id,omitempty"`
	SchemaVersion  string         `json:"schema_version"`
	GovgateVersion string         `json:"govgate_version,omitempty"`
	GoVersion      string         `json:"go_version,omitempty"`
	Message        string         `json:"msg,omitempty"`
	Fields         map[string]any `json:"fields,omitempty"`
}

func newEntry(level, component string) logEntry {
	return logEntry{
		Timestamp:      time.Now().UTC().Format(time.RFC3339Nano),
		Level:          level,
		Component:      component,
		SchemaVersion:  SchemaVersion,
		GovgateVersion: version.BuildVersion(),
		GoVersion:      runtime.Version(),
	}
}

func (j *jsonlLogger) log(level, component, msg string, fields ...any) {
	if !j.enabled(level) {
		return
	}
	entry := newEntry(level, component)
	entry.Message = msg
	entry.Fields = fieldMap(fields)
	j.write(entry)
}

// Event always written; op and trace ids come from ctx
func (j *jsonlLogger) Event(ctx context.Context, event string, fields map[string]any) {
	entry := newEntry(LevelInfo, "cli")
	entry.Event = EventPrefix + event
	entry.OpID = observability.OpID(ctx)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		entry.TraceID = sc.TraceID().String()
		entry.SpanID = sc.SpanID().String()
	}
	entry.Fields = fields
	j.write(entry)
}

func (j *jsonlLogger) write(entry logEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	j.writeLine(data)
}

func (j *jsonlLogger) Debug(component, msg string, fields ...any) {
	j.log(LevelDebug, component, msg, fields...)
}
func (j *jsonlLogger) Info(component, msg string, fields ...any) {
	j.log(LevelInfo, component, msg, fields...)
}
func (j *jsonlLogger) Warn(component, msg string, fields ...any) {
	j.log(LevelWarn, component, msg, fields...)
}
func (j *jsonlLogger) Error(component, msg string, fields ...any) {
	j.log(LevelError, component, msg, fields...)
}
