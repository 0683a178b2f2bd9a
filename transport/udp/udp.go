// Package udp implements handel.Network over plain UDP sockets, using
// the u16 big-endian length-prefixed framing pinned in spec.md §6.
package udp

import (
	"encoding/binary"
	"errors"
	"net"
	"sync"

	"github.com/aggrecord/handel"
)

// maxFrameSize is the hard cap on one encoded packet's size.
const maxFrameSize = 1024

var (
	errFrameTooLarge = errors.New("udp: encoded packet exceeds frame cap")
	errShortFrame    = errors.New("udp: frame too short to decode")
)

// Network implements handel.Network over a single UDP socket. Every
// packet is sent as one datagram; RegisterListener fans received packets
// out to every listener.
type Network struct {
	conn *net.UDPConn

	mu        sync.RWMutex
	listeners []handel.Listener

	stop chan struct{}
	wg   sync.WaitGroup
}

// Listen opens a UDP socket at addr and starts its receive loop.
func Listen(addr string) (*Network, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	n := &Network{conn: conn, stop: make(chan struct{})}
	n.wg.Add(1)
	go n.readLoop()
	return n, nil
}

// RegisterListener implements handel.Network.
func (n *Network) RegisterListener(l handel.Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// Send implements handel.Network, encoding p once and writing it to
// every id's address.
func (n *Network) Send(ids []handel.Identity, p *handel.Packet) {
	buf, err := encode(p)
	if err != nil {
		return
	}
	for _, id := range ids {
		addr, err := net.ResolveUDPAddr("udp", id.Address())
		if err != nil {
			continue
		}
		_, _ = n.conn.WriteToUDP(buf, addr)
	}
}

// Close stops the receive loop and closes the socket.
func (n *Network) Close() error {
	close(n.stop)
	err := n.conn.Close()
	n.wg.Wait()
	return err
}

func (n *Network) readLoop() {
	defer n.wg.Done()
	buf := make([]byte, maxFrameSize)
	for {
		select {
		case <-n.stop:
			return
		default:
		}
		read, _, err := n.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-n.stop:
				return
			default:
				continue
			}
		}
		p, err := decode(buf[:read])
		if err != nil {
			continue
		}
		n.dispatch(p)
	}
}

func (n *Network) dispatch(p *handel.Packet) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, l := range n.listeners {
		l.NewPacket(p)
	}
}

// encode serializes a Packet as:
//
//	4 bytes  Origin (big-endian int32)
//	1 byte   Level
//	2 bytes  len(MultiSig) + MultiSig
//	2 bytes  len(Individual) + Individual
func encode(p *handel.Packet) ([]byte, error) {
	total := 4 + 1 + 2 + len(p.MultiSig) + 2 + len(p.Individual)
	if total > maxFrameSize {
		return nil, errFrameTooLarge
	}
	buf := make([]byte, 0, total)

	var tmp4 [4]byte
	binary.BigEndian.PutUint32(tmp4[:], uint32(p.Origin))
	buf = append(buf, tmp4[:]...)
	buf = append(buf, p.Level)

	var tmp2 [2]byte
	binary.BigEndian.PutUint16(tmp2[:], uint16(len(p.MultiSig)))
	buf = append(buf, tmp2[:]...)
	buf = append(buf, p.MultiSig...)

	binary.BigEndian.PutUint16(tmp2[:], uint16(len(p.Individual)))
	buf = append(buf, tmp2[:]...)
	buf = append(buf, p.Individual...)
	return buf, nil
}

func decode(data []byte) (*handel.Packet, error) {
	if len(data) < 4+1+2 {
		return nil, errShortFrame
	}
	origin := int32(binary.BigEndian.Uint32(data[:4]))
	level := data[4]
	data = data[5:]

	msLen := int(binary.BigEndian.Uint16(data[:2]))
	data = data[2:]
	if len(data) < msLen+2 {
		return nil, errShortFrame
	}
	ms := append([]byte(nil), data[:msLen]...)
	data = data[msLen:]

	indivLen := int(binary.BigEndian.Uint16(data[:2]))
	data = data[2:]
	if len(data) < indivLen {
		return nil, errShortFrame
	}
	indiv := append([]byte(nil), data[:indivLen]...)

	return &handel.Packet{Origin: origin, Level: level, MultiSig: ms, Individual: indiv}, nil
}
