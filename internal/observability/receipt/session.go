package receipt

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/govgate/govgate/internal/models"
	"github.com/govgate/govgate/internal/observability"
)

// MaxErrorLength caps error strings in receipts
const MaxErrorLength = 2048

// Session tracks one command from start to finish
type Session struct {
	ctx     context.Context
	start   time.Time
	command string
	args    []string
}

func Start(ctx context.Context, cmd string, args []string) *Session {
	return &Session{
		ctx:     ctx,
		start:   time.Now(),
		command: cmd,
		args:    args,
	}
}

// Option adds detail to the receipt
type Option func(*Receipt)

// WithInput records a file the command read, hashed when readable
func WithInput(role, path string) Option {
	return func(r *Receipt) {
		if path == "" {
			return
		}
		ref := InputRef{Role: role, Path: path}
		if hash, err := fileSHA256(path); err == nil {
			ref.SHA256 = hash
		}
		r.Inputs = append(r.Inputs, ref)
	}
}

// WithDecision summarizes d. digest may be empty.
func WithDecision(d models.Decision, digest string) Option {
	return func(r *Receipt) {
		s := &DecisionSummary{
			Status:        string(d.Status),
			Score:         d.Score,
			PolicyVersion: d.PolicyVersion,
			Digest:        digest,
		}
		for _, rr := range d.Rules {
			if rr.Blocking() {
				s.Blocking = append(s.Blocking, rr.ID)
			}
			if rr.Waived {
				s.Waived = append(s.Waived, rr.ID)
			}
		}
		s.MissingEvidence = append(s.MissingEvidence, d.MissingEvidence...)
		r.Decision = s
	}
}

// WithRunDir audit directory of the run
func WithRunDir(dir string) Option {
	return func(r *Receipt) {
		r.RunDir = dir
	}
}

// Finish writes the receipt when a writer is configured
func (s *Session) Finish(err error, opts ...Option) error {
	if !Enabled(s.ctx) {
		return nil
	}

	args, redacted := RedactArgs(s.args)
	r := Receipt{
		SchemaVersion: ReceiptSchemaVersion,
		OpID:          observability.OpID(s.ctx),
		TsStart:       s.start.UTC().Format(time.RFC3339Nano),
		TsEnd:         time.Now().UTC().Format(time.RFC3339Nano),
		Command:       s.command,
		Args:          args,
		ArgsRedacted:  redacted,
		Result:        Result{Status: "success"},
	}
	if err != nil {
		r.Result = Result{Status: "fail", Error: truncateError(err.Error())}
	}

	for _, opt := range opts {
		opt(&r)
	}
	return From(s.ctx).Write(r)
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func truncateError(s string) string {
	if len(s) <= MaxErrorLength {
		return s
	}
	return s[:MaxErrorLength-3] + "..."
}
