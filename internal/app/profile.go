package app

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// profiler appends per-frame section timings as CSV. A nil profiler is
// valid and all methods no-op on it.
type profiler struct {
	mu    sync.Mutex
	file  *os.File
	start time.Time
	last  time.Time
}

func newProfiler(path string, logger *log.Logger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		if logger != nil {
			logger.Printf("profiler disabled: %v", err)
		}
		return nil
	}
	p := &profiler{file: f}
	fmt.Fprintln(f, "timestamp,section,delta_ms")
	return p
}

func (p *profiler) beginFrame() {
	if p == nil {
		return
	}
	now := time.Now()
	p.start = now
	p.last = now
}

func (p *profiler) markSection(name string) {
	if p == nil {
		return
	}
	now := time.Now()
	delta := now.Sub(p.last).Seconds() * 1000
	p.last = now
	p.write(name, delta)
}

func (p *profiler) endFrame() {
	if p == nil {
		return
	}
	p.write("frame_total", time.Since(p.start).Seconds()*1000)
}

func (p *profiler) Close() error {
	if p == nil {
		return nil
	}
	return p.file.Close()
}

func (p *profiler) write(section string, deltaMs float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.file, "%s,%s,%.3f\n", time.Now().Format(time.RFC3339Nano), section, deltaMs)
}
