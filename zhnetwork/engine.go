// Package zhnetwork implements the message-processing engine of a
// self-organizing mesh overlay on top of a single-hop, broadcast-capable,
// fixed-address link-layer datagram primitive: broadcast delivery with
// duplicate suppression, reliable unicast via reactive source routing, and
// store-and-forward relay, all driven by a single-consumer event loop.
package zhnetwork

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// pollInterval paces WAIT_ROUTE/WAIT_RESPONSE re-checks. Each re-check is
// handed off to its own short-lived timer goroutine rather than parked on
// the worker, so the worker's only suspension points stay queue.Dequeue and
// the bounded send-completion wait in processToSend.
const pollInterval = 10 * time.Millisecond

// Engine is a single mesh node's message-processing engine: a bounded work
// queue, three bounded recency tables, the processing loop, the link
// adapter, and the event emitter, wired together into one worker.
type Engine struct {
	cfg  Config
	link Link
	self MAC

	queue      *WorkQueue
	seenIDs    *idSet
	routes     *routeTable
	confirmed  *idSet
	completion *sendCompletion
	events     *eventBus
	stats      statCounters
	logger     *log.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New constructs an Engine bound to link. Construction does not start the
// worker; call Start for that. cfg is fully validated here; an invalid
// config leaves nothing allocated.
func New(cfg Config, link Link) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if link == nil {
		return nil, fmt.Errorf("%w: link must not be nil", ErrInvalidConfig)
	}
	if WireFrameLen > link.MTU() {
		return nil, fmt.Errorf("%w: frame length %d exceeds link MTU %d", ErrInvalidConfig, WireFrameLen, link.MTU())
	}

	e := &Engine{
		cfg:        cfg,
		link:       link,
		self:       link.SelfMAC(),
		queue:      NewWorkQueue(cfg.QueueSize),
		seenIDs:    newIDSet(cfg.IDVectorSize, true), // mutex-guarded: written from the recv callback and the worker
		routes:     newRouteTable(cfg.RouteVectorSize),
		confirmed:  newIDSet(cfg.QueueSize, false), // worker-only, no lock needed
		completion: newSendCompletion(),
		events:     newEventBus(cfg.QueueSize * 4),
		logger:     log.NewWithOptions(os.Stderr, log.Options{Prefix: "zhnetwork"}),
	}
	return e, nil
}

// Start registers the engine's callbacks with the link and launches the
// single worker goroutine. It returns ErrAlreadyInitialized if already
// running.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrAlreadyInitialized
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, runCtx := errgroup.WithContext(runCtx)

	e.link.RegisterRecv(e.onRecv)
	e.link.RegisterSendResult(e.onSendResult)

	e.cancel = cancel
	e.group = group

	group.Go(func() error {
		e.run(runCtx)
		return nil
	})

	e.started = true
	e.logger.Info("engine started", "self", e.self, "network_id", fmt.Sprintf("%#08x", e.cfg.NetworkID))
	return nil
}

// Stop tears down the worker cooperatively. The event channel stays open and
// is reused if the engine is started again. It returns ErrNotInitialized if
// not running.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return ErrNotInitialized
	}
	e.cancel()
	_ = e.group.Wait()
	e.started = false
	e.logger.Info("engine stopped")
	return nil
}

// Events returns the channel of ON_SEND/ON_RECV events posted to the host.
func (e *Engine) Events() <-chan Event { return e.events.Events() }

// Stats returns a snapshot of the additive counters.
func (e *Engine) Stats() Stats { return e.stats.snapshot() }

// Send admits data for delivery to target (nil or Broadcast means
// broadcast). It returns synchronously; the eventual ON_SEND outcome arrives
// on Events().
func (e *Engine) Send(target *MAC, data []byte) error {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		return ErrNotInitialized
	}
	if len(data) == 0 || len(data) > PayloadCap {
		return fmt.Errorf("%w: payload length %d", ErrInvalidArgument, len(data))
	}
	if e.queue.FreeSlots() < e.cfg.QueueSize/2 {
		return ErrQueueBusy
	}

	dst := Broadcast
	if target != nil {
		dst = *target
	}

	id := e.newMessageID()
	var frame Frame
	if dst.IsBroadcast() {
		frame = BroadcastFrame(e.cfg.NetworkID, id, e.self, data)
	} else {
		frame = UnicastFrame(e.cfg.NetworkID, id, e.self, dst, data)
	}

	if err := e.queue.Enqueue(WorkItem{State: StateToSend, Frame: frame}); err != nil {
		return fmt.Errorf("%w: %s", ErrQueueBusy, err)
	}
	return nil
}

// newMessageID returns a uniformly random non-zero 32-bit identifier, with
// negligible collision probability within the seen_ids window.
func (e *Engine) newMessageID() uint32 {
	for {
		if id := rand.Uint32(); id != 0 {
			return id
		}
	}
}

func (e *Engine) isOriginator(f Frame) bool {
	return f.OriginalSender == e.self
}

// run is the single worker task: C4, the processing loop.
func (e *Engine) run(ctx context.Context) {
	for {
		item, ok := e.queue.Dequeue(ctx)
		if !ok {
			return
		}
		switch item.State {
		case StateToSend:
			e.processToSend(item)
		case StateOnRecv:
			e.processOnRecv(item)
		case StateWaitRoute:
			e.processWaitRoute(ctx, item)
		case StateWaitResponse:
			e.processWaitResponse(ctx, item)
		}
	}
}

// onRecv is the link's receive callback: it runs the admission filter and,
// if the frame survives, front-inserts an ON_RECV work item.
// This may run on an arbitrary link-layer goroutine, not the worker, so it
// only ever touches the mutex-guarded seenIDs table directly.
func (e *Engine) onRecv(src MAC, raw []byte) {
	if len(raw) != WireFrameLen {
		e.stats.droppedMalformed.Add(1)
		e.logger.Debug("dropping malformed frame", "from", src, "len", len(raw))
		return
	}
	frame, err := Decode(raw)
	if err != nil {
		e.stats.droppedMalformed.Add(1)
		e.logger.Debug("dropping unparseable frame", "from", src, "err", err)
		return
	}
	if frame.NetworkID != e.cfg.NetworkID {
		e.stats.droppedWrongNetwork.Add(1)
		e.logger.Debug("dropping frame from foreign network", "from", src, "network_id", frame.NetworkID)
		return
	}
	// Backpressure: prefer losing a frame to head-of-line blocking of the
	// worker. Checked before seen_ids admission so a frame
	// dropped only for congestion can still be admitted once the queue
	// drains, rather than being permanently treated as a duplicate.
	if e.queue.FreeSlots() < e.cfg.QueueSize-2 {
		e.stats.droppedBackpressure.Add(1)
		e.logger.Debug("dropping frame, queue near full", "from", src)
		return
	}
	if !e.seenIDs.Insert(frame.MessageID) {
		e.stats.droppedDuplicate.Add(1)
		e.logger.Debug("dropping duplicate frame", "from", src, "message_id", frame.MessageID)
		return
	}

	frame.SenderMAC = src
	e.stats.framesReceived.Add(1)
	_ = e.queue.EnqueueFront(WorkItem{State: StateOnRecv, Frame: frame})
}

// onSendResult is the link's send-completion callback: it only ever
// signals the single-slot completion event; only the worker waits on it.
func (e *Engine) onSendResult(dst MAC, ok bool) {
	if ok {
		e.completion.signal(resultSuccess)
	} else {
		e.completion.signal(resultFail)
	}
}
