package state

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Guard binds one acquired lock and one pending failure status to the full
// lifetime of a lifecycle command. Close runs exactly once on every exit
// path (normal return, error return, termination signal): unless the
// command marked itself successful it writes the operation's failure
// status, and it always removes the lock.
//
// The command is responsible for writing its own terminal success status
// before calling Succeed.
type Guard struct {
	store *Store
	op    Operation

	mu        sync.Mutex
	succeeded bool
	closed    bool
	stop      func()
}

// Begin validates the transition table, acquires the lock, transitions the
// deployment into the operation's in-progress status, and returns an armed
// Guard. On any error nothing is left behind: the status is untouched and
// no lock is held.
func Begin(store *Store, op Operation) (*Guard, error) {
	// A live lock outranks the transition table: surface the conflicting
	// operation and PID instead of a generic status complaint.
	if lock, err := store.Locks().Current(); err != nil {
		return nil, err
	} else if lock != nil && lock.Alive() {
		return nil, &ConflictError{Lock: lock}
	}

	current, err := store.Status()
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(op, current); err != nil {
		return nil, err
	}

	if _, err := store.Locks().Acquire(string(op)); err != nil {
		return nil, err
	}

	if s := op.InProgressStatus(); s != "" {
		if err := store.SetStatus(s); err != nil {
			// Roll the lock back, the operation never started.
			_ = store.Locks().Release()
			return nil, fmt.Errorf("failed to mark operation in progress: %w", err)
		}
	}

	g := &Guard{store: store, op: op}
	g.arm()
	return g, nil
}

// arm installs a signal handler that finalizes the guard before exiting.
// Subprocess teardown is handled separately through context cancellation;
// the guard only guarantees status and lock consistency.
func (g *Guard) arm() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	g.stop = func() {
		signal.Stop(ch)
		close(done)
	}
	go func() {
		select {
		case sig := <-ch:
			log.Printf("received %s, aborting %s", sig, g.op)
			g.Close()
			os.Exit(1)
		case <-done:
		}
	}()
}

// Succeed marks the command successful so Close skips the failure status.
func (g *Guard) Succeed() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.succeeded = true
}

// Close finalizes the guard. It is idempotent and safe to call from the
// signal path and a defer concurrently.
func (g *Guard) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	if g.stop != nil {
		g.stop()
	}

	if !g.succeeded {
		if s := g.op.FailureStatus(); s != "" {
			if err := g.store.SetStatus(s); err != nil {
				log.Printf("warning: failed to record %s status: %v", s, err)
			}
		}
	}
	if err := g.store.Locks().Release(); err != nil {
		log.Printf("warning: failed to release lock: %v", err)
	}
}
