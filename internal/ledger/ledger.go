// Package ledger accumulates per-company diagnostic and status messages
// for the lifetime of a harvest run. Entries are created lazily on the
// first diagnostic for a symbol and are append-only; message order within
// an entry is preserved.
package ledger

import (
	"fmt"
	"sync"
)

// Entry is the accumulated record for one company.
type Entry struct {
	Symbol   string
	Name     string
	Messages []string
}

// Ledger is the run-wide diagnostic aggregator. The shipped scheduler is
// single-threaded, but writes are mutex-guarded so a concurrent caller
// cannot corrupt the map.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
}

// New creates an empty Ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[string]*Entry)}
}

// Record appends a message to the company's entry, creating it on first use.
func (l *Ledger) Record(symbol, name, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[symbol]
	if !ok {
		e = &Entry{Symbol: symbol, Name: name}
		l.entries[symbol] = e
		l.order = append(l.order, symbol)
	}
	if e.Name == "" {
		e.Name = name
	}
	e.Messages = append(e.Messages, message)
}

// Recordf is Record with fmt.Sprintf formatting of the message.
func (l *Ledger) Recordf(symbol, name, format string, args ...any) {
	l.Record(symbol, name, fmt.Sprintf(format, args...))
}

// Len returns the number of companies with at least one message.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Messages returns a copy of the messages recorded for a symbol.
func (l *Ledger) Messages(symbol string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[symbol]
	if !ok {
		return nil
	}
	out := make([]string, len(e.Messages))
	copy(out, e.Messages)
	return out
}

// Entries returns a snapshot of all entries in first-diagnostic order.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, 0, len(l.order))
	for _, sym := range l.order {
		e := l.entries[sym]
		msgs := make([]string, len(e.Messages))
		copy(msgs, e.Messages)
		out = append(out, Entry{Symbol: e.Symbol, Name: e.Name, Messages: msgs})
	}
	return out
}
