package logging

import (
	"io"
	"sync"
)

// sink serializes writes from both logger flavours
type sink struct {
	mu       sync.Mutex
	writer   io.Writer
	closer   io.Closer
	minLevel int
}

func (s *sink) enabled(level string) bool {
	return levelPriority(level) >= s.minLevel
}

func (s *sink) writeLine(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// best effort, a failing log sink must not fail the gate
	_, _ = s.writer.Write(append(line, '\n'))
}

func (s *sink) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
