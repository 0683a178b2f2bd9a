package lib

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/aggrecord/handel"
	"github.com/aggrecord/handel/transport/udp"
)

// SyncMaster handles the rendezvous of a benchmark run: every node sends a
// "READY" message over UDP, and once the expected count (or a 99.5%
// probabilistic threshold) is reached the master broadcasts back a "GO"
// acknowledgement for that run. Piggybacks on handel.Packet's MultiSig field
// so the same UDP transport serves both the protocol and this side-channel.
type SyncMaster struct {
	sync.Mutex
	exp     int
	probExp int // probabilistically expected nb, i.e. 99.5% of exp
	total   int
	n       *udp.Network
	states  map[int]*state
}

type state struct {
	n         handel.Network
	id        int
	total     int
	probExp   int
	exp       int
	readys    map[int]bool
	addresses map[string]bool
	finished  chan bool
	done      bool
}

func newState(net handel.Network, id, total, exp, probExp int) *state {
	return &state{
		n:         net,
		id:        id,
		total:     total,
		exp:       exp,
		probExp:   probExp,
		readys:    make(map[int]bool),
		addresses: make(map[string]bool),
		finished:  make(chan bool, 1),
	}
}

func (s *state) WaitFinish() chan bool {
	return s.finished
}

func (s *state) newMessage(msg *syncMessage) {
	if msg.State != s.id {
		panic("sync: message for the wrong run id")
	}
	for _, id := range msg.IDs {
		if _, stored := s.readys[id]; !stored {
			s.readys[id] = true
		}
	}
	if _, stored := s.addresses[msg.Address]; !stored {
		s.addresses[msg.Address] = true
	}
	if len(s.readys) < s.exp {
		if len(s.readys) < s.probExp {
			return
		}
	}

	outgoing := &syncMessage{State: s.id}
	buff, err := outgoing.ToBytes()
	if err != nil {
		panic(err)
	}
	packet := &handel.Packet{MultiSig: buff}
	ids := make([]handel.Identity, 0, len(s.addresses))
	for address := range s.addresses {
		ids = append(ids, handel.NewStaticIdentity(0, address, nil))
	}
	go func() {
		if len(s.readys) >= s.exp && !s.done {
			s.finished <- true
			s.done = true
		}
		for i := 0; i < retrials; i++ {
			s.n.Send(ids, packet)
			time.Sleep(1 * time.Second)
		}
	}()
}

func (s *state) String() string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "sync run %d: %d/%d ready\n", s.id, len(s.readys), s.exp)
	for id := 0; id < s.total; id++ {
		if _, ok := s.readys[id]; !ok {
			fmt.Fprintf(&b, "\t- %03d -absent-  ", id)
		} else {
			fmt.Fprintf(&b, "\t- %03d +ready+   ", id)
		}
		if (id+1)%4 == 0 {
			fmt.Fprintf(&b, "\n")
		}
	}
	return b.String()
}

// NewSyncMaster returns a SyncMaster listening on addr for "expected" READY
// messages out of "total" participants.
func NewSyncMaster(addr string, expected, total int) *SyncMaster {
	n, err := udp.Listen(addr)
	if err != nil {
		panic(err)
	}
	s := new(SyncMaster)
	n.RegisterListener(s)
	s.probExp = int(math.Ceil(float64(expected) * 0.995))
	s.states = make(map[int]*state)
	s.total = total
	s.exp = expected
	s.n = n
	return s
}

// WaitAll returns a channel signaled once run id has synced.
func (s *SyncMaster) WaitAll(id int) chan bool {
	return s.getOrCreate(id).WaitFinish()
}

func (s *SyncMaster) getOrCreate(id int) *state {
	s.Lock()
	defer s.Unlock()
	st, exist := s.states[id]
	if !exist {
		st = newState(s.n, id, s.total, s.exp, s.probExp)
		s.states[id] = st
	}
	return st
}

// NewPacket implements handel.Listener.
func (s *SyncMaster) NewPacket(p *handel.Packet) {
	msg := new(syncMessage)
	if err := msg.FromBytes(p.MultiSig); err != nil {
		panic(err)
	}
	s.getOrCreate(msg.State).newMessage(msg)
}

// Stop closes the master's UDP socket.
func (s *SyncMaster) Stop() {
	s.Lock()
	defer s.Unlock()
	s.n.Close()
}

// SyncSlave sends its own readiness to the master and waits for the master's
// acknowledgement before a run starts.
type SyncSlave struct {
	sync.Mutex
	own    string
	master string
	net    *udp.Network
	states map[int]*slaveState
}

type slaveState struct {
	sync.Mutex
	n        handel.Network
	addr     string
	master   string
	id       int
	finished chan bool
	done     bool
}

func newSlaveState(n handel.Network, master, addr string, id int) *slaveState {
	return &slaveState{n: n, id: id, master: master, addr: addr, finished: make(chan bool, 1)}
}

func (s *slaveState) WaitFinish() chan bool {
	return s.finished
}

func (s *slaveState) signal(ids []int) {
	for i := 0; i < retrials; i++ {
		msg := &syncMessage{State: s.id, IDs: ids, Address: s.addr}
		buff, err := msg.ToBytes()
		if err != nil {
			panic(err)
		}
		packet := &handel.Packet{MultiSig: buff}
		s.n.Send([]handel.Identity{handel.NewStaticIdentity(0, s.master, nil)}, packet)
		time.Sleep(wait)
		if s.isDone() {
			return
		}
	}
}

func (s *slaveState) isDone() bool {
	s.Lock()
	defer s.Unlock()
	return s.done
}

func (s *slaveState) newMessage(msg *syncMessage) {
	if msg.State != s.id {
		panic("sync: message for the wrong run id")
	}
	s.Lock()
	defer s.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.finished <- true
}

// NewSyncSlave returns a SyncSlave that signals the master at "own" and
// waits for it to acknowledge.
func NewSyncSlave(own, master string) *SyncSlave {
	n, err := udp.Listen(own)
	if err != nil {
		panic(err)
	}
	slave := new(SyncSlave)
	n.RegisterListener(slave)
	slave.net = n
	slave.own = own
	slave.master = master
	slave.states = make(map[int]*slaveState)
	return slave
}

// WaitMaster signals the master for run id and returns the channel signaled
// once the master acknowledges.
func (s *SyncSlave) WaitMaster(id int, ids []int) chan bool {
	st := s.getOrCreate(id)
	go st.signal(ids)
	return st.WaitFinish()
}

func (s *SyncSlave) getOrCreate(id int) *slaveState {
	s.Lock()
	defer s.Unlock()
	st, exists := s.states[id]
	if !exists {
		st = newSlaveState(s.net, s.master, s.own, id)
		s.states[id] = st
	}
	return st
}

// NewPacket implements handel.Listener.
func (s *SyncSlave) NewPacket(p *handel.Packet) {
	msg := new(syncMessage)
	if err := msg.FromBytes(p.MultiSig); err != nil {
		panic(err)
	}
	s.getOrCreate(msg.State).newMessage(msg)
}

// Stop closes the slave's UDP socket.
func (s *SyncSlave) Stop() {
	s.net.Close()
}

const retrials = 5
const wait = 1 * time.Second

// syncMessage is what is exchanged between a SyncMaster and a SyncSlave.
type syncMessage struct {
	State   int    // the run id this message belongs to
	Address string // sender's address
	IDs     []int  // node ids the sender is reporting ready, counted by the master
}

func (s *syncMessage) ToBytes() ([]byte, error) {
	var b bytes.Buffer
	enc := gob.NewEncoder(&b)
	err := enc.Encode(s)
	return b.Bytes(), err
}

func (s *syncMessage) FromBytes(buff []byte) error {
	b := bytes.NewBuffer(buff)
	dec := gob.NewDecoder(b)
	return dec.Decode(s)
}
