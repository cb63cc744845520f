// Package playback plays synthesized-audio items strictly in arrival order,
// back-to-back, without overlap or audible gaps, regardless of how quickly or
// slowly items arrive.
//
// The consumer loop is started lazily by the first [Queue.Enqueue] of a
// session and terminates when the queue stays empty past a short re-check
// window. Gaplessness comes from a fixed post-write drain wait — the expected
// playback duration of the written PCM plus a small margin — rather than a
// completion callback from the device; the next item starts the moment the
// previous one has audibly finished.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wrenhold/soniclink/pkg/audio"
)

const (
	// DefaultDrainMargin is added to the computed playback duration after
	// each device write to guarantee the hardware buffer has fully drained.
	DefaultDrainMargin = 50 * time.Millisecond

	// DefaultEmptyWait is how long the consumer loop waits on an empty queue
	// before re-checking and concluding it should terminate. This closes the
	// race where an item is enqueued just as the loop is about to exit.
	DefaultEmptyWait = 20 * time.Millisecond
)

// ErrStopped is passed to the OnComplete callback of items that were cleared
// from the queue or truncated mid-play by [Queue.Stop].
var ErrStopped = errors.New("playback: stopped")

// Item is one unit of synthesized audio to play. Items are immutable once
// enqueued and are consumed exactly once.
type Item struct {
	// PCM is little-endian mono PCM16 audio.
	PCM []byte

	// SampleRate in Hz of the PCM data.
	SampleRate int

	// RouteToBluetooth selects the SCO link as the output route when the
	// device is opened for this playback session.
	RouteToBluetooth bool

	// OnComplete, when non-nil, is invoked exactly once after the item has
	// been played or has failed. A nil error means the full item was written
	// and drained.
	OnComplete func(err error)
}

// Option configures a [Queue] during construction.
type Option func(*Queue)

// WithDrainMargin overrides the post-write drain margin. Intended for tests.
func WithDrainMargin(d time.Duration) Option {
	return func(q *Queue) {
		if d >= 0 {
			q.drainMargin = d
		}
	}
}

// WithEmptyWait overrides the empty-queue re-check wait. Intended for tests.
func WithEmptyWait(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.emptyWait = d
		}
	}
}

// Queue is the strict-FIFO gapless playback queue. All exported methods are
// safe for concurrent use; the device write itself happens outside the lock
// since it may block for the full duration of the audio.
type Queue struct {
	device      OutputDevice
	drainMargin time.Duration
	emptyWait   time.Duration

	mu         sync.Mutex
	items      []Item
	running    bool
	deviceOpen bool
	openRate   int
	halt       chan struct{} // closed by Stop to truncate the in-flight item
}

// New creates a Queue that plays through device. The consumer loop starts on
// the first Enqueue.
func New(device OutputDevice, opts ...Option) *Queue {
	q := &Queue{
		device:      device,
		drainMargin: DefaultDrainMargin,
		emptyWait:   DefaultEmptyWait,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue appends item and starts the consumer loop if none is running.
func (q *Queue) Enqueue(item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, item)
	if !q.running {
		q.running = true
		q.halt = make(chan struct{})
		go q.consume(q.halt)
	}
}

// Len reports the number of items waiting to be played, excluding any item
// currently in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stop clears the pending queue, halts the current item immediately, and
// releases the output device. Cleared and truncated items receive their
// OnComplete callback with [ErrStopped]. Stop is idempotent and safe to call
// with no active session; the queue is reusable afterwards.
func (q *Queue) Stop() {
	q.mu.Lock()
	cleared := q.items
	q.items = nil
	halt := q.halt
	q.halt = nil
	q.running = false
	wasOpen := q.deviceOpen
	q.deviceOpen = false
	q.mu.Unlock()

	if halt != nil {
		close(halt)
	}
	if wasOpen {
		// Closing unblocks any in-flight Write and releases the route.
		_ = q.device.Close()
	}

	for _, item := range cleared {
		complete(item, ErrStopped)
	}
}

// consume is the single consumer loop. It pops items under the lock, plays
// them outside it, and exits once the queue stays empty past the re-check
// window. The loop's own halt channel doubles as its generation marker: once
// Stop detaches it, the loop exits without touching items enqueued by a newer
// session.
func (q *Queue) consume(halt chan struct{}) {
	for {
		item, ok := q.pop(halt)
		if !ok {
			// Empty: wait briefly and re-check before concluding the loop
			// should terminate.
			select {
			case <-halt:
				return
			case <-time.After(q.emptyWait):
			}

			q.mu.Lock()
			if q.halt != halt {
				q.mu.Unlock()
				return
			}
			if len(q.items) == 0 {
				q.running = false
				q.halt = nil
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			continue
		}

		err := q.play(item, halt)
		complete(item, err)
	}
}

// pop removes and returns the head item, refusing to pop once the loop's halt
// channel has been detached by Stop.
func (q *Queue) pop(halt chan struct{}) (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.halt != halt || len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// play writes one item to the device and waits out its computed playback
// duration plus the drain margin. Returns ErrStopped when truncated by Stop.
func (q *Queue) play(item Item, halt chan struct{}) error {
	if item.SampleRate <= 0 {
		return fmt.Errorf("playback: invalid sample rate %d", item.SampleRate)
	}

	if err := q.ensureDevice(item); err != nil {
		return err
	}

	if _, err := q.device.Write(item.PCM); err != nil {
		select {
		case <-halt:
			return ErrStopped
		default:
		}
		return fmt.Errorf("playback: write: %w", err)
	}

	// The fixed post-write wait is what guarantees gaplessness: the hardware
	// has fully drained the buffer before the next item starts.
	wait := audio.PCMDuration(len(item.PCM), item.SampleRate) + q.drainMargin
	select {
	case <-halt:
		return ErrStopped
	case <-time.After(wait):
	}
	return nil
}

// ensureDevice lazily opens the output device for the current playback
// session, reopening if the sample rate changes between items.
func (q *Queue) ensureDevice(item Item) error {
	q.mu.Lock()
	open, rate := q.deviceOpen, q.openRate
	q.mu.Unlock()

	if open && rate == item.SampleRate {
		return nil
	}
	if open {
		slog.Debug("playback: reopening device for new sample rate",
			"old", rate, "new", item.SampleRate)
		_ = q.device.Close()
	}
	if err := q.device.Open(item.SampleRate, item.RouteToBluetooth); err != nil {
		return fmt.Errorf("playback: open device: %w", err)
	}

	q.mu.Lock()
	q.deviceOpen = true
	q.openRate = item.SampleRate
	q.mu.Unlock()
	return nil
}

// complete invokes the item's callback exactly once; a failed item still
// completes so the producer never stalls waiting on a callback that will
// never fire.
func complete(item Item, err error) {
	if item.OnComplete == nil {
		if err != nil && !errors.Is(err, ErrStopped) {
			slog.Warn("playback: item failed", "err", err)
		}
		return
	}
	item.OnComplete(err)
}
