package admission

import (
	"agenda/pkg/logger"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrGateClosed = errors.New("admission gate closed")

// Gate serializes work per key. Each active key owns one goroutine that runs
// its jobs strictly in arrival order; a lane with nothing pending retires after
// the idle timeout.
type Gate struct {
	log         *logger.Logger
	idleTimeout time.Duration
	queueSize   int

	mu     sync.Mutex
	lanes  map[string]*lane
	closed bool
	quit   chan struct{}
	wg     sync.WaitGroup
}

type lane struct {
	jobs    chan job
	wake    chan struct{}
	pending int
}

type job struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

func NewGate(log *logger.Logger, idleTimeout time.Duration, queueSize int) *Gate {
	if idleTimeout <= 0 {
		idleTimeout = 30 * time.Second
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Gate{
		log:         log.Component("admission"),
		idleTimeout: idleTimeout,
		queueSize:   queueSize,
		lanes:       make(map[string]*lane),
		quit:        make(chan struct{}),
	}
}

// Do runs fn on key's lane and returns its error. Once fn has been handed to
// the lane, Do waits for it to finish, so a nil error always means fn ran to
// completion; fn is expected to honour ctx.
func (g *Gate) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrGateClosed
	}
	l, ok := g.lanes[key]
	if !ok {
		l = &lane{
			jobs: make(chan job, g.queueSize),
			wake: make(chan struct{}, 1),
		}
		g.lanes[key] = l
		g.wg.Add(1)
		go g.run(key, l)
	}
	l.pending++
	g.mu.Unlock()

	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case l.jobs <- j:
	case <-ctx.Done():
		g.abandon(l)
		return ctx.Err()
	}
	return <-j.done
}

// Lanes reports the number of live lanes.
func (g *Gate) Lanes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.lanes)
}

// Close rejects new work, lets queued jobs finish and waits for every lane to exit.
func (g *Gate) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	close(g.quit)
	g.mu.Unlock()

	g.wg.Wait()
}

func (g *Gate) run(key string, l *lane) {
	defer g.wg.Done()
	g.log.Debug("Admission lane started", "key", key)

	idle := time.NewTimer(g.idleTimeout)
	defer idle.Stop()

	quit := g.quit
	draining := false
	for {
		if draining && g.retire(key, l) {
			return
		}
		select {
		case j := <-l.jobs:
			g.execute(key, j)
			g.mu.Lock()
			l.pending--
			g.mu.Unlock()
			idle.Reset(g.idleTimeout)
		case <-l.wake:
		case <-idle.C:
			if g.retire(key, l) {
				return
			}
			idle.Reset(g.idleTimeout)
		case <-quit:
			draining = true
			quit = nil
		}
	}
}

// retire removes the lane when nothing is pending. Checked under the gate lock
// so a concurrent Do either sees the lane gone or bumps pending first.
func (g *Gate) retire(key string, l *lane) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if l.pending > 0 {
		return false
	}
	if g.lanes[key] == l {
		delete(g.lanes, key)
	}
	g.log.Debug("Admission lane retired", "key", key)
	return true
}

func (g *Gate) abandon(l *lane) {
	g.mu.Lock()
	l.pending--
	g.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (g *Gate) execute(key string, j job) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("Admission job panicked", "key", key, "panic", r)
			j.done <- fmt.Errorf("admission job panicked: %v", r)
		}
	}()

	if err := j.ctx.Err(); err != nil {
		j.done <- err
		return
	}
	j.done <- j.fn(j.ctx)
}
