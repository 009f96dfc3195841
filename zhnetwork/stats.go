package zhnetwork

import "sync/atomic"

// Stats is a purely additive observability surface: telemetry only, not a
// congestion-control or loop-detection signal.
type Stats struct {
	FramesSent          uint64
	FramesReceived      uint64
	DroppedWrongNetwork uint64
	DroppedDuplicate    uint64
	DroppedMalformed    uint64
	DroppedBackpressure uint64
	RoutesLearned       uint64
	RoutesInvalidated   uint64
	SearchesInitiated   uint64
}

type statCounters struct {
	framesSent          atomic.Uint64
	framesReceived      atomic.Uint64
	droppedWrongNetwork atomic.Uint64
	droppedDuplicate    atomic.Uint64
	droppedMalformed    atomic.Uint64
	droppedBackpressure atomic.Uint64
	routesLearned       atomic.Uint64
	routesInvalidated   atomic.Uint64
	searchesInitiated   atomic.Uint64
}

func (c *statCounters) snapshot() Stats {
	return Stats{
		FramesSent:          c.framesSent.Load(),
		FramesReceived:      c.framesReceived.Load(),
		DroppedWrongNetwork: c.droppedWrongNetwork.Load(),
		DroppedDuplicate:    c.droppedDuplicate.Load(),
		DroppedMalformed:    c.droppedMalformed.Load(),
		DroppedBackpressure: c.droppedBackpressure.Load(),
		RoutesLearned:       c.routesLearned.Load(),
		RoutesInvalidated:   c.routesInvalidated.Load(),
		SearchesInitiated:   c.searchesInitiated.Load(),
	}
}
