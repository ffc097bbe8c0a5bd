package worker

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// Liveness is the flag a worker checks before asking for the next job.
// Clearing it lets running handlers finish; it never interrupts them.
type Liveness struct {
	alive      atomic.Bool
	mu         sync.Mutex
	lastSignal os.Signal
}

func NewLiveness() *Liveness {
	l := &Liveness{}
	l.alive.Store(true)
	return l
}

func (l *Liveness) IsAlive() bool {
	return l.alive.Load()
}

// Stop clears the flag.
func (l *Liveness) Stop() {
	l.alive.Store(false)
}

// LastSignal returns the signal that cleared the flag, or nil.
func (l *Liveness) LastSignal() os.Signal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSignal
}

// InstallSignalHandler clears the flag when one of signals arrives
// (SIGTERM and SIGINT if none are given). The returned function removes
// the handler again.
func (l *Liveness) InstallSignalHandler(signals ...os.Signal) (stop func()) {
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGTERM, syscall.SIGINT}
	}

	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, signals...)

	go func() {
		for {
			select {
			case sig := <-ch:
				l.mu.Lock()
				l.lastSignal = sig
				l.mu.Unlock()
				l.Stop()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}
