// Package udplink is a concrete zhnetwork.Link over a real UDP broadcast
// socket, for running the mesh across separate host processes (or separate
// machines on a LAN) rather than only in-process (see memlink). Like any
// radio/link-layer transport, it is an external collaborator — the engine
// only ever sees it through the zhnetwork.Link interface.
//
// On a real radio every registered peer within range physically hears
// every transmission; there is no address-level filtering at the hardware
// layer. A UDP broadcast socket models that honestly, so AddPeer/DelPeer
// are no-ops here and every frame is always broadcast at the transport
// layer, letting the engine's own addressing (OriginalTarget) decide who
// acts on it versus who merely relays it.
package udplink

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/aZholtikov/zh-network-go/zhnetwork"
)

// envelopeHeader is the 6-byte sender MAC prefixed to every UDP datagram,
// since a UDP socket address carries no notion of the engine's own 6-byte
// addressing scheme. The link strips it back off on receive to recover
// the source MAC the way a real radio's callback would supply it.
const envelopeHeader = 6

const mtu = 65507 - envelopeHeader

// UDPBroadcastLink implements zhnetwork.Link over a shared UDP broadcast
// socket bound to port on all interfaces.
type UDPBroadcastLink struct {
	self          zhnetwork.MAC
	conn          *net.UDPConn
	broadcastAddr *net.UDPAddr

	mu         sync.Mutex
	recv       zhnetwork.RecvFunc
	sendResult zhnetwork.SendResultFunc

	closeOnce sync.Once
	done      chan struct{}
}

// New binds a UDP broadcast socket on port for node self. SO_REUSEPORT lets
// multiple node processes share one port on the same host (for local
// multi-node demos); SO_BROADCAST permits sending to the broadcast address.
func New(self zhnetwork.MAC, port int) (*UDPBroadcastLink, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			ctrlErr := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
				if sockErr == nil {
					sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
				}
			})
			if ctrlErr != nil {
				return ctrlErr
			}
			return sockErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("udplink: listen: %w", err)
	}

	l := &UDPBroadcastLink{
		self:          self,
		conn:          pc.(*net.UDPConn),
		broadcastAddr: &net.UDPAddr{IP: net.IPv4bcast, Port: port},
		done:          make(chan struct{}),
	}
	go l.readLoop()
	return l, nil
}

func (l *UDPBroadcastLink) SelfMAC() zhnetwork.MAC { return l.self }
func (l *UDPBroadcastLink) MTU() int               { return mtu }

func (l *UDPBroadcastLink) AddPeer(zhnetwork.MAC) error { return nil }
func (l *UDPBroadcastLink) DelPeer(zhnetwork.MAC) error { return nil }

func (l *UDPBroadcastLink) RegisterRecv(fn zhnetwork.RecvFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recv = fn
}

func (l *UDPBroadcastLink) RegisterSendResult(fn zhnetwork.SendResultFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendResult = fn
}

// Transmit broadcasts raw, prefixed with this node's MAC, to every
// listener on the socket; mac is only echoed back through the
// send-completion callback, since the transport itself cannot target a
// single peer.
func (l *UDPBroadcastLink) Transmit(mac zhnetwork.MAC, raw []byte) error {
	packet := make([]byte, 0, envelopeHeader+len(raw))
	packet = append(packet, l.self[:]...)
	packet = append(packet, raw...)

	_, err := l.conn.WriteToUDP(packet, l.broadcastAddr)
	ok := err == nil
	go func() {
		l.mu.Lock()
		cb := l.sendResult
		l.mu.Unlock()
		if cb != nil {
			cb(mac, ok)
		}
	}()
	return err
}

func (l *UDPBroadcastLink) readLoop() {
	buf := make([]byte, 65535)
	for {
		n, _, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.done:
				return
			default:
				continue
			}
		}
		if n < envelopeHeader {
			continue
		}
		var src zhnetwork.MAC
		copy(src[:], buf[:envelopeHeader])
		if src == l.self {
			continue // our own broadcast looped back to us
		}
		raw := append([]byte(nil), buf[envelopeHeader:n]...)

		l.mu.Lock()
		cb := l.recv
		l.mu.Unlock()
		if cb != nil {
			cb(src, raw)
		}
	}
}

// Close releases the socket.
func (l *UDPBroadcastLink) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return l.conn.Close()
}
