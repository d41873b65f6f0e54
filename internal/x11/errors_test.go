package x11

import (
	"io"
	"log/slog"
	"testing"
)

// stubError implements xgb.Error for the sink tests.
type stubError struct {
	seq uint16
}

func (e stubError) SequenceId() uint16 { return e.seq }
func (e stubError) BadId() uint32      { return 0 }
func (e stubError) Error() string      { return "stub X error" }

func newTestSink() *ErrorSink {
	return NewErrorSink(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestErrorSinkDispositions(t *testing.T) {
	tests := []struct {
		name      string
		register  bool
		d         Disposition
		wantFatal bool
	}{
		{"ignored", true, ErrorIgnore, false},
		{"logged", true, ErrorLog, false},
		{"abort", true, ErrorAbort, true},
		{"unregistered defaults to log", false, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSink()
			if tt.register {
				s.Expect(42, tt.d)
			}
			if got := s.Handle(stubError{seq: 42}); got != tt.wantFatal {
				t.Errorf("Handle() fatal = %v, want %v", got, tt.wantFatal)
			}
		})
	}
}

func TestErrorSinkConsumesEntries(t *testing.T) {
	s := newTestSink()
	s.Expect(7, ErrorAbort)

	if !s.Handle(stubError{seq: 7}) {
		t.Fatal("registered abort was not fatal")
	}
	// The entry is consumed: a later error with a wrapped-around sequence
	// number must not inherit the disposition.
	if s.Handle(stubError{seq: 7}) {
		t.Error("disposition survived consumption")
	}
}

func TestErrorSinkDistinguishesSequences(t *testing.T) {
	s := newTestSink()
	s.Expect(1, ErrorAbort)

	if s.Handle(stubError{seq: 2}) {
		t.Error("error on a different sequence treated as fatal")
	}
	if !s.Handle(stubError{seq: 1}) {
		t.Error("registered sequence lost its disposition")
	}
}
