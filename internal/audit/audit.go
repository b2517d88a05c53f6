package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/John-Robertt/domainrouter-go/internal/model"
)

// Sink receives the removal records of each reduced group. Implementations
// are safe for concurrent use.
type Sink interface {
	Append(ctx context.Context, group string, records []model.Removal) error
	Close() error
}

// Config selects and configures a sink.
type Config struct {
	Driver string // "file", "sqlite3", "mysql" or "none"
	DSN    string // sqlite3 / mysql
	// Path is the audit file. For "file", "" means
	// $XDG_STATE_HOME/domainrouter/removed.txt; for the SQL drivers a
	// non-empty Path adds a file copy next to the database.
	Path string
}

type SinkError struct {
	AppError model.AppError
	Cause    error
}

func (e *SinkError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *SinkError) Unwrap() error { return e.Cause }

func sinkError(code, msg string, cause error) *SinkError {
	return &SinkError{
		AppError: model.AppError{Code: code, Message: msg, Stage: "audit"},
		Cause:    cause,
	}
}

// Open returns the sink named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Sink, error) {
	switch cfg.Driver {
	case "", "none":
		return NopSink{}, nil
	case "file":
		return OpenFile(cfg.Path)
	case "sqlite3", "mysql":
		s, err := OpenSQL(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.Path == "" {
			return s, nil
		}
		f, err := OpenFile(cfg.Path)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		return MultiSink{s, f}, nil
	default:
		return nil, sinkError("AUDIT_OPEN_ERROR", fmt.Sprintf("不支持的审计驱动：%s", cfg.Driver), nil)
	}
}

type NopSink struct{}

func (NopSink) Append(context.Context, string, []model.Removal) error { return nil }
func (NopSink) Close() error                                          { return nil }

// MultiSink fans every Append out to all sinks and joins their errors.
type MultiSink []Sink

func (m MultiSink) Append(ctx context.Context, group string, records []model.Removal) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, group, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemorySink keeps records in memory, keyed by group.
type MemorySink struct {
	mu      sync.Mutex
	records map[string][]model.Removal
}

func (m *MemorySink) Append(_ context.Context, group string, records []model.Removal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string][]model.Removal)
	}
	m.records[group] = append(m.records[group], records...)
	return nil
}

func (m *MemorySink) Close() error { return nil }

// Records returns a copy of the records appended for group.
func (m *MemorySink) Records(group string) []model.Removal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Removal(nil), m.records[group]...)
}
