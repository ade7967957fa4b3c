package logging

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// prettyLogger one human-readable line per record:
//
//	15:04:05 WARN  waiver: rejected index=0 code=expired
type prettyLogger struct {
	*sink
}

func (p *prettyLogger) log(level, component, msg string, fields map[string]any) {
	if !p.enabled(level) {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s: %s", time.Now().Format("15:04:05"), strings.ToUpper(level), component, msg)
	writeFields(&b, fields)
	p.writeLine([]byte(b.String()))
}

func writeFields(b *strings.Builder, fields map[string]any) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fmt.Sprint(fields[k])
		if strings.ContainsAny(v, " \t\"=") {
			v = fmt.Sprintf("%q", v)
		}
		fmt.Fprintf(b, " %s=%s", k, v)
	}
}

func (p *prettyLogger) Debug(component, msg string, fields ...any) {
	p.log(LevelDebug, component, msg, fieldMap(fields))
}
func (p *prettyLogger) Info(component, msg string, fields ...any) {
	p.log(LevelInfo, component, msg, fieldMap(fields))
}
func (p *prettyLogger) Warn(component, msg string, fields ...any) {
	p.log(LevelWarn, component, msg, fieldMap(fields))
}
func (p *prettyLogger) Error(component, msg string, fields ...any) {
	p.log(LevelError, component, msg, fieldMap(fields))
}

// Event shown at debug level only; events are meant for pipelines
func (p *prettyLogger) Event(ctx context.Context, event string, fields map[string]any) {
	p.log(LevelDebug, "event", EventPrefix+event, fields)
}
