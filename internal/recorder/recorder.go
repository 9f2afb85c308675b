// Package recorder implements the client-side audio capture state machine.
//
// A controller owns at most one recording session at a time and moves through
// idle → recording → stopped → uploading → idle, with error as a retryable
// resting state. Fragments arriving from the capture capability are appended
// in arrival order by a single event loop per session; nothing is ever
// dropped or reordered. A hard duration cap force-stops the recording and
// finalizes the clip exactly once.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the lifecycle state of the controller.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
	StateUploading State = "uploading"
	StateError     State = "error"
)

var (
	// ErrSessionActive is returned when Start is called while a session is
	// in progress. The existing session is left untouched.
	ErrSessionActive = errors.New("a recording session is already active")

	// ErrPermissionDenied is returned by capture capabilities when the user
	// refuses microphone access. The controller stays retryable.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrNoClip is returned when Stop or Upload is called with nothing to
	// finalize.
	ErrNoClip = errors.New("no recording to finalize")
)

// Capability is the platform audio-capture dependency.
type Capability interface {
	// Acquire claims the microphone and starts delivering audio. It returns
	// ErrPermissionDenied (possibly wrapped) when access is refused.
	Acquire(ctx context.Context) (Stream, error)
}

// Stream delivers captured audio fragments until closed.
type Stream interface {
	// Chunks yields fragments in capture order. The channel is closed when
	// the capability stops delivering.
	Chunks() <-chan []byte

	// Close releases the microphone.
	Close() error
}

// Uploader receives the finalized clip. The gateway's API client implements it.
type Uploader interface {
	UploadClip(ctx context.Context, clip []byte) error
}

// Controller is the recording state machine. All methods are safe for
// concurrent use.
type Controller struct {
	capability  Capability
	maxDuration time.Duration

	mu        sync.Mutex
	state     State
	starting  bool
	fragments [][]byte
	lastErr   error
	startedAt time.Time
	elapsed   time.Duration

	stopC chan struct{}
	doneC chan struct{}
}

// New creates an idle controller. maxDuration is the hard cap after which
// recording is forcibly terminated and the clip finalized.
func New(capability Capability, maxDuration time.Duration) *Controller {
	return &Controller{
		capability:  capability,
		maxDuration: maxDuration,
		state:       StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Elapsed returns how long the current or last session has been recording.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRecording {
		return time.Since(c.startedAt)
	}
	return c.elapsed
}

// LastError returns the cause of the most recent error transition.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Start acquires the capture capability and begins a session. A second Start
// while a session is active is rejected without touching the existing
// session. Permission denial moves the controller to the error state but
// leaves it actionable: the next Start may succeed.
func (c *Controller) Start(ctx context.Context) error {
	// Claim the session before touching the capability, so two concurrent
	// Starts cannot both acquire the microphone.
	c.mu.Lock()
	if c.starting || (c.state != StateIdle && c.state != StateError) {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.starting = true
	c.mu.Unlock()

	stream, err := c.capability.Acquire(ctx)

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.state = StateError
		c.lastErr = err
		c.mu.Unlock()
		return fmt.Errorf("acquiring capture capability: %w", err)
	}

	c.state = StateRecording
	c.fragments = nil
	c.lastErr = nil
	c.startedAt = time.Now()
	c.elapsed = 0
	c.stopC = make(chan struct{}, 1)
	c.doneC = make(chan struct{})
	stopC, doneC := c.stopC, c.doneC
	c.mu.Unlock()

	go c.run(stream, stopC, doneC)
	return nil
}

// run is the single event loop of one session. It is the only goroutine that
// appends fragments, so concatenation order equals arrival order. Exactly one
// of the three events finalizes the session; after the loop returns, no
// further fragments can be appended.
func (c *Controller) run(stream Stream, stopC <-chan struct{}, doneC chan<- struct{}) {
	defer close(doneC)
	defer stream.Close()

	capTimer := time.NewTimer(c.maxDuration)
	defer capTimer.Stop()

	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				c.finalize("stream ended")
				return
			}
			c.mu.Lock()
			c.fragments = append(c.fragments, chunk)
			c.mu.Unlock()

		case <-stopC:
			c.finalize("stop requested")
			return

		case <-capTimer.C:
			c.finalize("hard cap reached")
			return
		}
	}
}

func (c *Controller) finalize(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return
	}
	c.state = StateStopped
	c.elapsed = time.Since(c.startedAt)
	slog.Debug("recording finalized", "reason", reason, "fragments", len(c.fragments), "elapsed", c.elapsed)
}

// Stop finalizes the session and returns the clip: the concatenation of all
// captured fragments in arrival order. Stopping a session the hard cap has
// already finalized simply returns the clip.
func (c *Controller) Stop() ([]byte, error) {
	c.mu.Lock()
	switch c.state {
	case StateRecording:
		stopC, doneC := c.stopC, c.doneC
		c.mu.Unlock()

		select {
		case stopC <- struct{}{}:
		default: // loop is already finalizing
		}
		<-doneC
		return c.clip()

	case StateStopped:
		c.mu.Unlock()
		return c.clip()

	default:
		c.mu.Unlock()
		return nil, ErrNoClip
	}
}

func (c *Controller) clip() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, f := range c.fragments {
		total += len(f)
	}
	clip := make([]byte, 0, total)
	for _, f := range c.fragments {
		clip = append(clip, f...)
	}
	return clip, nil
}

// Upload hands the finalized clip to the uploader. On success the session is
// destroyed and the controller returns to idle; on failure the error is
// surfaced with its cause and the controller lands in the error state, ready
// for a fresh Start.
func (c *Controller) Upload(ctx context.Context, up Uploader) error {
	c.mu.Lock()
	if c.state != StateStopped {
		c.mu.Unlock()
		return ErrNoClip
	}
	c.state = StateUploading
	c.mu.Unlock()

	clip, err := c.clip()
	if err == nil {
		err = up.UploadClip(ctx, clip)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fragments = nil
	if err != nil {
		c.state = StateError
		c.lastErr = err
		return fmt.Errorf("uploading clip: %w", err)
	}
	c.state = StateIdle
	return nil
}

// Cancel discards the session, stopping the capture loop if it is running,
// and returns the controller to idle. Already-captured fragments are dropped.
func (c *Controller) Cancel() {
	c.mu.Lock()
	recording := c.state == StateRecording
	stopC, doneC := c.stopC, c.doneC
	c.mu.Unlock()

	if recording {
		select {
		case stopC <- struct{}{}:
		default:
		}
		<-doneC
	}

	c.mu.Lock()
	c.state = StateIdle
	c.fragments = nil
	c.lastErr = nil
	c.mu.Unlock()
}
