// Package memlink provides an in-process shared broadcast medium
// implementing zhnetwork.Link, so multiple Engine instances in the same
// process can exercise the mesh end-to-end without any real radio
// hardware. It is a test/demo harness, not part of the engine itself —
// link-layer initialization is an external collaborator.
package memlink

import (
	"sync"

	"github.com/aZholtikov/zh-network-go/zhnetwork"
)

// mtu is comfortably larger than zhnetwork.WireFrameLen; a real radio's
// MTU would be supplied by that hardware's own driver.
const mtu = 4096

// Medium is a shared broadcast bus joining any number of Links. With no
// declared topology it is flat: every Transmit to zhnetwork.Broadcast
// reaches every other currently-registered Link, and a Transmit to a
// specific MAC reaches only that Link, if registered. Calling Connect at
// least once switches the medium into restricted mode, where only the
// declared edges carry traffic in either direction — the same way two real
// radios must be within range of each other regardless of any
// address-level peer registration.
type Medium struct {
	mu         sync.Mutex
	nodes      map[zhnetwork.MAC]*Link
	restricted bool
	adjacency  map[zhnetwork.MAC]map[zhnetwork.MAC]bool
}

// NewMedium creates an empty shared medium.
func NewMedium() *Medium {
	return &Medium{nodes: make(map[zhnetwork.MAC]*Link)}
}

// Connect declares that a and b are within range of one another. The edge
// is symmetric. The first call to Connect switches the medium from its
// default fully-connected behavior to restricted mode: after that, a pair
// of nodes can hear each other only if an edge between them was declared.
func (m *Medium) Connect(a, b zhnetwork.MAC) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.adjacency == nil {
		m.adjacency = make(map[zhnetwork.MAC]map[zhnetwork.MAC]bool)
	}
	m.restricted = true
	if m.adjacency[a] == nil {
		m.adjacency[a] = make(map[zhnetwork.MAC]bool)
	}
	if m.adjacency[b] == nil {
		m.adjacency[b] = make(map[zhnetwork.MAC]bool)
	}
	m.adjacency[a][b] = true
	m.adjacency[b][a] = true
}

// reachable reports whether dst hears a transmission from src. Must be
// called with mu held.
func (m *Medium) reachable(src, dst zhnetwork.MAC) bool {
	if !m.restricted {
		return true
	}
	return m.adjacency[src][dst]
}

// NewLink joins a new node with address self to the medium.
func (m *Medium) NewLink(self zhnetwork.MAC) *Link {
	l := &Link{
		self:   self,
		medium: m,
		peers:  make(map[zhnetwork.MAC]bool),
	}
	m.mu.Lock()
	m.nodes[self] = l
	m.mu.Unlock()
	return l
}

// PowerOff removes a node from the medium: nothing reaches it any longer,
// and it no longer relays anything either, simulating a node going dark
// mid-session.
func (m *Medium) PowerOff(mac zhnetwork.MAC) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, mac)
}

func (m *Medium) deliver(src, dst zhnetwork.MAC, raw []byte) bool {
	m.mu.Lock()
	if _, alive := m.nodes[src]; !alive {
		m.mu.Unlock()
		return false // a powered-off node's transmissions reach nobody
	}
	var targets []*Link
	if dst.IsBroadcast() {
		for mac, node := range m.nodes {
			if mac == src || !m.reachable(src, mac) {
				continue
			}
			targets = append(targets, node)
		}
	} else if node, ok := m.nodes[dst]; ok && m.reachable(src, dst) {
		targets = append(targets, node)
	}
	m.mu.Unlock()

	if len(targets) == 0 && !dst.IsBroadcast() {
		return false
	}
	for _, node := range targets {
		node.deliverFrom(src, raw)
	}
	return true
}

// Link is one node's attachment to a Medium; it implements zhnetwork.Link.
type Link struct {
	self   zhnetwork.MAC
	medium *Medium

	mu    sync.Mutex
	peers map[zhnetwork.MAC]bool

	recv       zhnetwork.RecvFunc
	sendResult zhnetwork.SendResultFunc
}

func (l *Link) SelfMAC() zhnetwork.MAC { return l.self }
func (l *Link) MTU() int               { return mtu }

func (l *Link) AddPeer(mac zhnetwork.MAC) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.peers[mac] = true
	return nil
}

func (l *Link) DelPeer(mac zhnetwork.MAC) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.peers, mac)
	return nil
}

func (l *Link) RegisterRecv(fn zhnetwork.RecvFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recv = fn
}

func (l *Link) RegisterSendResult(fn zhnetwork.SendResultFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendResult = fn
}

// Transmit delivers raw to mac (or to every other node, for the broadcast
// MAC) asynchronously, then reports completion through the registered
// send-result callback, mirroring a real radio's async ack.
func (l *Link) Transmit(mac zhnetwork.MAC, raw []byte) error {
	data := append([]byte(nil), raw...)
	go func() {
		ok := l.medium.deliver(l.self, mac, data)
		l.mu.Lock()
		cb := l.sendResult
		l.mu.Unlock()
		if cb != nil {
			cb(mac, ok)
		}
	}()
	return nil
}

func (l *Link) deliverFrom(src zhnetwork.MAC, raw []byte) {
	l.mu.Lock()
	cb := l.recv
	l.mu.Unlock()
	if cb != nil {
		cb(src, raw)
	}
}
