package zhnetwork

import (
	"context"
	"time"
)

// processToSend handles a TO_SEND work item: pick a next hop (or kick off
// route discovery), transmit, and react to the outcome.
func (e *Engine) processToSend(item WorkItem) {
	frame := item.Frame

	var nextHop MAC
	if frame.Type.IsFlood() {
		nextHop = Broadcast
		// A flood frame this node originates must be recorded as seen
		// before any transmit attempt, so this node never re-accepts its
		// own relay once it hears the flood come back. A relayed flood
		// frame was already recorded on admission in onRecv, so this only
		// fires for genuinely new, self-originated frames.
		if e.isOriginator(frame) {
			e.seenIDs.Insert(frame.MessageID)
		}
	} else {
		hop, ok := e.routes.Lookup(frame.OriginalTarget)
		if !ok {
			e.beginRouteDiscovery(frame)
			return
		}
		nextHop = hop
	}

	if err := e.link.AddPeer(nextHop); err != nil {
		e.logger.Error("failed to register peer", "peer", nextHop, "err", err)
		return
	}
	defer func() { _ = e.link.DelPeer(nextHop) }()

	raw := frame.Encode()
	attempts := e.cfg.SendAttempts
	if attempts < 1 {
		attempts = 1
	}

	var result sendResult
	for attempt := 0; attempt < attempts; attempt++ {
		e.completion.reset()
		if err := e.link.Transmit(nextHop, raw); err != nil {
			result = resultFail
			break
		}
		result = e.completion.wait(sendCompletionTimeout)
		if result != resultTimeout {
			break
		}
	}

	switch result {
	case resultSuccess:
		e.stats.framesSent.Add(1)
		e.onSendSuccess(frame)
	default:
		e.onSendFailure(frame, nextHop)
	}
}

func (e *Engine) onSendSuccess(frame Frame) {
	if !e.isOriginator(frame) {
		return // relay: forwarded, no host event
	}
	switch frame.Type {
	case MessageBroadcast:
		e.events.publish(SendEvent{MAC: Broadcast, Status: SendSuccess})
	case MessageUnicast:
		// Do not emit success yet: wait for the end-to-end
		// DELIVERY_CONFIRM.
		_ = e.queue.Enqueue(WorkItem{State: StateWaitResponse, Deadline: time.Now(), Frame: frame})
	default:
		// SEARCH_REQUEST, SEARCH_RESPONSE, DELIVERY_CONFIRM: no host event.
	}
}

func (e *Engine) onSendFailure(frame Frame, nextHop MAC) {
	if nextHop.IsBroadcast() {
		// Broadcasts on failure are dropped silently.
		return
	}
	if e.routes.Remove(frame.OriginalTarget) {
		e.stats.routesInvalidated.Add(1)
		e.logger.Info("invalidated route after send failure", "destination", frame.OriginalTarget)
	}
	e.beginRouteDiscovery(frame)
}

// beginRouteDiscovery re-queues frame as WAIT_ROUTE and floods a
// SEARCH_REQUEST for its destination. Route invalidation on a send failure
// re-enters at this same point.
func (e *Engine) beginRouteDiscovery(frame Frame) {
	_ = e.queue.EnqueueFront(WorkItem{State: StateWaitRoute, Deadline: time.Now(), Frame: frame})

	req := SearchRequestFor(e.cfg.NetworkID, e.newMessageID(), e.self, frame.OriginalTarget)
	e.stats.searchesInitiated.Add(1)
	_ = e.queue.EnqueueFront(WorkItem{State: StateToSend, Frame: req})
}

// processOnRecv handles an ON_RECV work item, dispatching on message kind.
func (e *Engine) processOnRecv(item WorkItem) {
	frame := item.Frame

	switch frame.Type {
	case MessageBroadcast:
		// Delivered to the host before being re-flooded.
		e.events.publish(RecvEvent{MAC: frame.OriginalSender, Payload: copyPayload(frame)})
		_ = e.queue.Enqueue(WorkItem{State: StateToSend, Frame: frame})

	case MessageUnicast:
		if frame.OriginalTarget == e.self {
			e.events.publish(RecvEvent{MAC: frame.OriginalSender, Payload: copyPayload(frame)})
			confirm := DeliveryConfirmFor(e.cfg.NetworkID, e.newMessageID(), e.self, frame)
			_ = e.queue.EnqueueFront(WorkItem{State: StateToSend, Frame: confirm})
		} else {
			_ = e.queue.Enqueue(WorkItem{State: StateToSend, Frame: frame})
		}

	case MessageDeliveryConfirm:
		if frame.OriginalTarget == e.self {
			e.confirmed.Insert(frame.ConfirmID)
		} else {
			_ = e.queue.Enqueue(WorkItem{State: StateToSend, Frame: frame})
		}

	case MessageSearchRequest:
		// The learned entry is the path back to the originator via the
		// immediate transmitter, not a path to the (possibly unrelated)
		// target field of this frame.
		e.routes.Upsert(frame.OriginalSender, frame.SenderMAC)
		e.stats.routesLearned.Add(1)
		if frame.OriginalTarget == e.self {
			resp := SearchResponseFor(e.cfg.NetworkID, e.newMessageID(), e.self, frame)
			_ = e.queue.EnqueueFront(WorkItem{State: StateToSend, Frame: resp})
		} else {
			_ = e.queue.Enqueue(WorkItem{State: StateToSend, Frame: frame})
		}

	case MessageSearchResponse:
		e.routes.Upsert(frame.OriginalSender, frame.SenderMAC)
		e.stats.routesLearned.Add(1)
		if frame.OriginalTarget != e.self {
			_ = e.queue.Enqueue(WorkItem{State: StateToSend, Frame: frame})
		}
	}
}

// processWaitRoute handles a WAIT_ROUTE work item: re-check for a learned
// route, or time it out.
func (e *Engine) processWaitRoute(ctx context.Context, item WorkItem) {
	if _, ok := e.routes.Lookup(item.Frame.OriginalTarget); ok {
		_ = e.queue.Enqueue(WorkItem{State: StateToSend, Frame: item.Frame})
		return
	}
	if time.Since(item.Deadline) > e.cfg.MaxWaitingTime {
		if e.isOriginator(item.Frame) {
			e.events.publish(SendEvent{MAC: item.Frame.OriginalTarget, Status: SendFail})
		}
		return // drop: relays stay silent on a route timeout
	}
	e.requeueAfter(ctx, pollInterval, item)
}

// processWaitResponse handles a WAIT_RESPONSE work item: re-check for a
// matching delivery confirmation, or time it out.
func (e *Engine) processWaitResponse(ctx context.Context, item WorkItem) {
	if e.confirmed.Remove(item.Frame.MessageID) {
		e.events.publish(SendEvent{MAC: item.Frame.OriginalTarget, Status: SendSuccess})
		return
	}
	if time.Since(item.Deadline) > e.cfg.MaxWaitingTime {
		if e.isOriginator(item.Frame) {
			e.events.publish(SendEvent{MAC: item.Frame.OriginalTarget, Status: SendFail})
		}
		// confirmed_ids is intentionally left untouched on a timeout with
		// no match: there is nothing to remove, and any later stray
		// confirm for this message_id simply evicts by the table's own
		// FIFO bound.
		return
	}
	e.requeueAfter(ctx, pollInterval, item)
}

// requeueAfter paces a WAIT_* re-check without the worker itself suspending:
// it hands the wait off to its own short-lived goroutine, which re-enqueues
// item once d elapses (or drops it silently on shutdown). The worker stays
// free to dequeue and process whatever else is already waiting.
func (e *Engine) requeueAfter(ctx context.Context, d time.Duration, item WorkItem) {
	e.group.Go(func() error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			_ = e.queue.Enqueue(item)
		case <-ctx.Done():
		}
		return nil
	})
}

// copyPayload returns a fresh copy of frame's meaningful payload bytes,
// handing the host ownership of a buffer the engine never touches again.
func copyPayload(frame Frame) []byte {
	out := make([]byte, frame.PayloadLen)
	copy(out, frame.PayloadBytes())
	return out
}
