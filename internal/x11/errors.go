package x11

import (
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb"
)

// Disposition says what to do with an X error matching a registered request.
type Disposition int

const (
	// ErrorIgnore drops the error silently. Used for requests that race
	// against client window destruction; a failure there is expected.
	ErrorIgnore Disposition = iota
	// ErrorLog reports the error and carries on.
	ErrorLog
	// ErrorAbort treats the error as fatal to the session.
	ErrorAbort
)

// ErrorSink routes asynchronous X errors by the sequence number of the
// request that caused them. Requests register a disposition before the
// error can arrive; anything unregistered is logged.
//
// Entries are consumed on match and evicted in bulk once the table grows
// past a bound, since sequence numbers wrap.
type ErrorSink struct {
	mu      sync.Mutex
	pending map[uint16]Disposition
	log     *slog.Logger
}

const errorSinkLimit = 4096

// NewErrorSink builds a sink logging through logger.
func NewErrorSink(logger *slog.Logger) *ErrorSink {
	return &ErrorSink{
		pending: make(map[uint16]Disposition),
		log:     logger,
	}
}

// Expect registers how to treat an error produced by the request with the
// given sequence number.
func (s *ErrorSink) Expect(seq uint16, d Disposition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) >= errorSinkLimit {
		s.pending = make(map[uint16]Disposition)
	}
	s.pending[seq] = d
}

// ExpectCookie is Expect for an unchecked request cookie.
func (s *ErrorSink) ExpectCookie(ck xgb.Cookie, d Disposition) {
	s.Expect(ck.Sequence, d)
}

// Handle consumes one X error. It returns true when the error is fatal and
// the session should shut down.
func (s *ErrorSink) Handle(err xgb.Error) bool {
	s.mu.Lock()
	d, ok := s.pending[err.SequenceId()]
	if ok {
		delete(s.pending, err.SequenceId())
	}
	s.mu.Unlock()

	if !ok {
		d = ErrorLog
	}
	switch d {
	case ErrorIgnore:
		return false
	case ErrorAbort:
		s.log.Error("fatal X error", "error", err.Error(), "sequence", err.SequenceId())
		return true
	default:
		s.log.Warn("X error", "error", err.Error(), "sequence", err.SequenceId())
		return false
	}
}
