package app

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Profiler keeps the last duration of named frame scopes and a set of counters. The frame
// loop writes it; the inspector reads snapshots from other goroutines.
type Profiler struct {
	mu     sync.Mutex
	scopes map[string]time.Duration
	starts map[string]time.Time
	counts map[string]int
	order  []string
}

func NewProfiler() *Profiler {
	return &Profiler{
		scopes: make(map[string]time.Duration),
		starts: make(map[string]time.Time),
		counts: make(map[string]int),
	}
}

func (p *Profiler) BeginScope(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, seen := p.scopes[name]; !seen {
		p.order = append(p.order, name)
		p.scopes[name] = 0
	}
	p.starts[name] = time.Now()
}

func (p *Profiler) EndScope(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if start, ok := p.starts[name]; ok {
		p.scopes[name] = time.Since(start)
		delete(p.starts, name)
	}
}

// Scope begins name and returns the matching end, for use with defer.
func (p *Profiler) Scope(name string) func() {
	p.BeginScope(name)
	return func() { p.EndScope(name) }
}

func (p *Profiler) SetCount(name string, count int) {
	p.mu.Lock()
	p.counts[name] = count
	p.mu.Unlock()
}

func (p *Profiler) AddCount(name string, delta int) {
	p.mu.Lock()
	p.counts[name] += delta
	p.mu.Unlock()
}

// ProfileSnapshot is a copy of the profiler state; durations are in milliseconds.
type ProfileSnapshot struct {
	Scopes map[string]float64 `json:"scopes"`
	Counts map[string]int     `json:"counts"`
}

func (p *Profiler) Snapshot() ProfileSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := ProfileSnapshot{
		Scopes: make(map[string]float64, len(p.scopes)),
		Counts: make(map[string]int, len(p.counts)),
	}
	for k, d := range p.scopes {
		s.Scopes[k] = float64(d.Microseconds()) / 1000.0
	}
	for k, v := range p.counts {
		s.Counts[k] = v
	}
	return s
}

func (p *Profiler) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var sb strings.Builder

	sb.WriteString("Timings (CPU):\n")
	for _, name := range p.order {
		ms := float64(p.scopes[name].Microseconds()) / 1000.0
		sb.WriteString(fmt.Sprintf("  %-15s: %.2f ms\n", name, ms))
	}

	sb.WriteString("\nStats:\n")
	keys := make([]string, 0, len(p.counts))
	for k := range p.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %-15s: %d\n", k, p.counts[k]))
	}
	return sb.String()
}
