package logging

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger that records every entry, Trace included, in memory.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger returns a recording logger.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core), config: NewDefaultConfig()},
		observed: observed,
	}
}

// All returns the recorded entries in order.
func (t *TestLogger) All() []observer.LoggedEntry { return t.observed.All() }

// FilterMessage returns entries whose message contains msg.
func (t *TestLogger) FilterMessage(msg string) *observer.ObservedLogs {
	return t.observed.FilterMessageSnippet(msg)
}

// Reset drops everything recorded so far.
func (t *TestLogger) Reset() { t.observed.TakeAll() }

func (t *TestLogger) find(level zapcore.Level, snippet string) (observer.LoggedEntry, bool) {
	for _, e := range t.observed.All() {
		if e.Level == level && strings.Contains(e.Message, snippet) {
			return e, true
		}
	}
	return observer.LoggedEntry{}, false
}

func (t *TestLogger) summary() string {
	var b strings.Builder
	for _, e := range t.observed.All() {
		b.WriteString("\n  ")
		b.WriteString(e.Level.String())
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if b.Len() == 0 {
		return " (none)"
	}
	return b.String()
}

// AssertLogged fails tb unless an entry at level contains snippet.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if _, ok := t.find(level, snippet); !ok {
		tb.Errorf("no %s entry containing %q; recorded:%s", level, snippet, t.summary())
	}
}

// AssertNotLogged fails tb if an entry at level contains snippet.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if e, ok := t.find(level, snippet); ok {
		tb.Errorf("unexpected %s entry %q", level, e.Message)
	}
}

// AssertField fails tb unless some entry whose message contains msg carries
// key with a value equal to want. Values are compared as the observer
// decodes them: strings, int64, float64, bool and so on.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	entries := t.observed.FilterMessageSnippet(msg).All()
	for _, e := range entries {
		if got, ok := e.ContextMap()[key]; ok && cmp.Equal(got, want) {
			return
		}
	}
	for _, e := range entries {
		if got, ok := e.ContextMap()[key]; ok {
			tb.Errorf("field %q in %q: %s", key, msg, cmp.Diff(want, got))
			return
		}
	}
	tb.Errorf("field %q not found in any entry containing %q", key, msg)
}
