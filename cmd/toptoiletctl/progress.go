package main

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/term"
)

const (
	progressUpdateInterval = 100 * time.Millisecond
	clearLineSequence      = "\r\033[K"
)

// ProgressPrinter displays a single-line progress message with elapsed or
// remaining time. Output is suppressed entirely when stdout is not a
// terminal, so piped output stays clean.
//
// A ProgressPrinter is single-use: Start at most once, Stop exactly once.
type ProgressPrinter struct {
	prefix    string
	phase     atomic.Value // stores string
	startTime time.Time
	ticker    atomic.Pointer[time.Ticker]
	stopChan  chan struct{}
	done      chan struct{}
	started   atomic.Bool
	countUp   bool
	duration  time.Duration
	isTTY     bool
}

// NewProgressPrinter creates a printer that shows elapsed time.
func NewProgressPrinter(prefix, phase string) *ProgressPrinter {
	p := &ProgressPrinter{
		prefix:  prefix,
		countUp: true,
		isTTY:   term.IsTerminal(int(os.Stdout.Fd())),
	}
	p.phase.Store(phase)
	return p
}

// NewCountdownProgressPrinter creates a printer that counts down from the
// given duration.
func NewCountdownProgressPrinter(prefix, phase string, duration time.Duration) *ProgressPrinter {
	p := NewProgressPrinter(prefix, phase)
	p.countUp = false
	p.duration = duration
	return p
}

// Start begins displaying progress updates in a background goroutine.
// Panics if called more than once on the same instance.
func (p *ProgressPrinter) Start() {
	if !p.started.CompareAndSwap(false, true) {
		panic("ProgressPrinter.Start called more than once")
	}

	p.done = make(chan struct{})
	p.stopChan = make(chan struct{})
	p.startTime = time.Now()
	ticker := time.NewTicker(progressUpdateInterval)
	p.ticker.Store(ticker)

	p.print(p.phase.Load().(string), 0)

	go func() {
		defer close(p.done)
		for {
			select {
			case <-p.stopChan:
				return
			case <-ticker.C:
				elapsed := time.Since(p.startTime)
				var seconds int
				if p.countUp {
					seconds = int(elapsed.Seconds())
				} else {
					remaining := p.duration - elapsed
					if remaining > 0 {
						seconds = int(remaining.Seconds() + 0.5)
					}
				}
				p.print(p.phase.Load().(string), seconds)
			}
		}
	}()
}

func (p *ProgressPrinter) print(phase string, seconds int) {
	if !p.isTTY {
		return
	}
	if seconds > 0 {
		fmt.Printf("\r%s (%s %ds)   ", p.prefix, phase, seconds)
	} else {
		fmt.Printf("\r%s (%s...)   ", p.prefix, phase)
	}
}

// SetPhase updates the displayed phase. Safe from any goroutine.
func (p *ProgressPrinter) SetPhase(phase string) {
	p.phase.Store(phase)
}

// Callback adapts SetPhase to the scanner's progress callback.
func (p *ProgressPrinter) Callback() func(phase string) {
	return p.SetPhase
}

// Stop stops the display and clears the line. Safe to call multiple times.
func (p *ProgressPrinter) Stop() {
	ticker := p.ticker.Swap(nil)
	if ticker == nil {
		return
	}
	ticker.Stop()
	close(p.stopChan)
	<-p.done
	if p.isTTY {
		fmt.Print(clearLineSequence)
	}
}
