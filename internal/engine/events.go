package engine

import (
	"fmt"
	"sync"

	"github.com/san-kum/mdsim/internal/config"
	"github.com/san-kum/mdsim/internal/metrics"
	"github.com/san-kum/mdsim/internal/pbc"
	"github.com/san-kum/mdsim/internal/state"
)

type Kind int

const (
	KindFrame Kind = iota
	KindDiagnostics
	KindConfig
	KindError
	KindStateReallocated
	KindWrap
	KindInstability
)

var kindNames = [...]string{
	KindFrame:            "frame",
	KindDiagnostics:      "diagnostics",
	KindConfig:           "config",
	KindError:            "error",
	KindStateReallocated: "stateReallocated",
	KindWrap:             "wrap",
	KindInstability:      "instability",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is delivered to subscribers after the engine lock is released. Only
// the fields relevant to Kind are set. State points at the live buffers and
// must be treated as read-only and not retained past the handler.
type Event struct {
	Kind        Kind
	Step        int64
	Time        float64
	State       *state.State
	Diagnostics metrics.Diagnostics
	Stability   metrics.Result
	Config      *config.Config
	Wraps       []pbc.WrapRecord
	Err         error
}

type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// bus dispatches synchronously, in subscription order, on the caller's
// goroutine.
type bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[Kind][]subscription
}

func newBus() *bus {
	return &bus{handlers: make(map[Kind][]subscription)}
}

func (b *bus) subscribe(kind Kind, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.handlers[kind] = append(b.handlers[kind], subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.handlers[kind]
			for i, s := range subs {
				if s.id == id {
					b.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (b *bus) count(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[kind])
}

func (b *bus) dispatch(events []Event) {
	for _, ev := range events {
		b.mu.Lock()
		subs := b.handlers[ev.Kind]
		b.mu.Unlock()
		for _, s := range subs {
			s.fn(ev)
		}
	}
}
