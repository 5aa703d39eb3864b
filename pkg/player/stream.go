package player

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/playerclient/pkg/wire"
)

// selectMode fixes the connection's read mode on first use.
func (e *engine) selectMode(op string, want int32) error {
	if e.mode.CompareAndSwap(modeUnset, want) || e.mode.Load() == want {
		return nil
	}
	return &Error{Kind: KindUsage, Op: op, Err: ErrModeConflict}
}

// RunStreaming starts the background dispatch loop. It returns immediately.
// Calling it while the loop is running keeps the loop going, cancelling an
// earlier StopStreaming that has not taken effect yet. Once called, ReadOnce
// fails with ErrModeConflict for the life of the connection.
func (c *Client) RunStreaming() error {
	e := c.e
	if err := e.closedErr(); err != nil {
		return err
	}
	if err := e.selectMode("run streaming", modeStreaming); err != nil {
		return err
	}

	e.loopMu.Lock()
	defer e.loopMu.Unlock()
	e.stopFlag.Store(false)
	if e.streaming.Load() {
		return nil
	}
	done := make(chan struct{})
	e.loopDone = done
	e.streaming.Store(true)
	go e.loop(done)

	e.log.Debug("Streaming started", zap.Duration("round_interval", e.cfg.RoundInterval))
	return nil
}

// StopStreaming asks the loop to stop after the frame it is reading. It does
// not wait and does not interrupt a blocked read; Close does.
func (c *Client) StopStreaming() {
	c.e.stopFlag.Store(true)
}

// Streaming reports whether the dispatch loop is running.
func (c *Client) Streaming() bool {
	return c.e.streaming.Load()
}

func (e *engine) loop(done chan struct{}) {
	for {
		ok := e.rounds()
		e.loopMu.Lock()
		if ok && !e.stopFlag.Load() {
			// restarted while stopping
			e.loopMu.Unlock()
			continue
		}
		e.streaming.Store(false)
		e.loopDone = nil
		close(done)
		e.loopMu.Unlock()
		e.log.Debug("Streaming stopped")
		return
	}
}

// rounds dispatches frames until the stop flag is set. It reports false when
// the connection failed or closed.
func (e *engine) rounds() bool {
	for !e.stopFlag.Load() {
		t, err := e.step(nil)
		if err != nil {
			return false
		}
		if t == wire.MsgSynch && e.cfg.RoundInterval > 0 {
			timer := time.NewTimer(e.cfg.RoundInterval)
			select {
			case <-timer.C:
			case <-e.done:
				timer.Stop()
				return false
			}
		}
	}
	return true
}

// ReadOnce reads and dispatches frames until the end of one data round
// (SYNCH). It selects single-read mode; RunStreaming then fails with
// ErrModeConflict. Cancelling ctx closes the connection.
func (c *Client) ReadOnce(ctx context.Context) error {
	e := c.e
	if err := e.selectMode("read once", modeSingleRead); err != nil {
		return err
	}
	if err := e.closedErr(); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		e.fail(&Error{Kind: KindIO, Op: "read once", Err: ctx.Err()})
	})
	defer stop()

	for {
		t, err := e.step(nil)
		if err != nil {
			return err
		}
		if t == wire.MsgSynch {
			return nil
		}
	}
}

// RequestData asks the server to send one round of data. It is meant for
// the pull data modes and does not wait for the acknowledgement, which is
// dispatched like any other frame.
func (c *Client) RequestData() error {
	return c.e.send(wire.MsgReq, metaKey, encodeSubtype(MetaData))
}

// PullRound requests one round of data and reads it.
func (c *Client) PullRound(ctx context.Context) error {
	if err := c.e.selectMode("pull round", modeSingleRead); err != nil {
		return err
	}
	if err := c.RequestData(); err != nil {
		return err
	}
	return c.ReadOnce(ctx)
}
