package handel

import (
	"math/rand"
	"sync"
	"time"
)

// Agent is the aggregation engine: it owns the signature store, the
// per-level state machines, the verifier pool, and the pending-todo
// queue, and drives them according to the drain loop described in
// spec.md §4.6. An Agent runs exactly one aggregation round for one
// message; build a new one per round.
type Agent struct {
	conf Config
	net  Network
	part Partitioner

	levels []*level
	store  signatureStore

	verifier *Verifier
	todos    *todoQueue
	wakeCh   chan struct{}

	timeouts *levelTimeouts
	ticker   *time.Ticker

	mu        sync.RWMutex
	done      bool
	startTime time.Time
	out       chan *MultiSignature

	ownIndividual []byte

	log Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewAgent builds an Agent for conf, wiring it as a Listener on net. It
// does not start any background work - call Start for that.
func NewAgent(conf Config, net Network) (*Agent, error) {
	nodeID := int(conf.Identity.ID())
	part := NewBinomialPartitioner(nodeID, conf.Registry.Size()-1, conf.Registry)

	rng := rand.New(rand.NewSource(int64(nodeID) + 1))
	levels, err := createLevels(part, conf.DisableShuffling, rng)
	if err != nil {
		return nil, err
	}

	log := conf.Logger
	if log == nil {
		log = nopLogger{}
	}

	a := &Agent{
		conf:     conf,
		net:      net,
		part:     part,
		levels:   levels,
		store:    newReplaceStore(part, conf.Registry.Size()),
		verifier: NewVerifier(conf.Registry, conf.Message, conf.Threshold, conf.Workers),
		todos:    newTodoQueue(),
		wakeCh:   make(chan struct{}, 1),
		timeouts: newLevelTimeouts(part.NumLevels(), conf.LevelTimeout),
		out:      make(chan *MultiSignature, 1),
		log:      log,
		stop:     make(chan struct{}),
	}
	net.RegisterListener(a)
	return a, nil
}

// Start bootstraps level 0 with the node's own signature, then launches
// the periodic-tick and processing loops.
func (a *Agent) Start() error {
	sig, err := a.conf.IndividualSignature()
	if err != nil {
		return err
	}
	buf, err := sig.MarshalBinary()
	if err != nil {
		return err
	}
	a.ownIndividual = buf

	nodeID := int(a.conf.Identity.ID())
	a.store.PutIndividual(sig, 0, nodeID)
	a.startTime = time.Now()

	a.checkCompletedLevel(0)
	a.checkFinalSignature()

	a.ticker = time.NewTicker(a.conf.UpdatePeriod)
	a.wg.Add(2)
	go a.tickLoop()
	go a.processLoop()
	return nil
}

// Stop halts every background goroutine and releases the verifier pool.
// Safe to call more than once.
func (a *Agent) Stop() {
	a.stopOnce.Do(func() {
		close(a.stop)
		if a.ticker != nil {
			a.ticker.Stop()
		}
		a.wg.Wait()
		a.timeouts.Stop()
		a.verifier.Stop()
	})
}

// FinalSignature returns the channel the agent's completed aggregate is
// published on exactly once, when the summed weight of a combined
// signature crosses Config.Threshold.
func (a *Agent) FinalSignature() <-chan *MultiSignature {
	return a.out
}

func (a *Agent) stopped() bool {
	select {
	case <-a.stop:
		return true
	default:
		return false
	}
}

func (a *Agent) isDone() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

// NewPacket implements Listener: it parses the incoming packet into one
// or two todos (a multi-signature, and optionally the sender's own
// individual contribution) and queues them for scoring.
func (a *Agent) NewPacket(p *Packet) {
	if a.stopped() || a.isDone() {
		return
	}
	level := int(p.Level)
	if level < 0 || level >= len(a.levels) {
		a.log.Debugf("packet with out-of-range level %d from %d", level, p.Origin)
		return
	}

	ms := new(MultiSignature)
	if err := ms.UnmarshalBinary(p.MultiSig, a.conf.Cons); err != nil {
		a.log.Debugf("invalid packet from %d: %s", p.Origin, err)
		return
	}
	if a.conf.Metrics != nil {
		a.conf.Metrics.PacketsReceived.Inc()
	}

	a.todos.push(multiTodo(level, ms))
	a.wake()

	if len(p.Individual) > 0 {
		sig := a.conf.Cons.Signature()
		if err := sig.UnmarshalBinary(p.Individual); err == nil {
			a.todos.push(individualTodo(level, int(p.Origin), sig))
			a.wake()
		}
	}
}

func (a *Agent) wake() {
	select {
	case a.wakeCh <- struct{}{}:
	default:
	}
}

// processLoop repeatedly pops the best-scoring pending todo, verifies it
// off the hot path, and applies it to the store on success. It never
// holds the store's lock across a verification (spec.md §5).
func (a *Agent) processLoop() {
	defer a.wg.Done()
	for {
		select {
		case <-a.stop:
			return
		default:
		}

		t := a.todos.popBest(a.store)
		if a.conf.Metrics != nil {
			a.conf.Metrics.TodosPending.Set(float64(a.todos.len()))
		}
		if t == nil {
			select {
			case <-a.stop:
				return
			case <-a.wakeCh:
			case <-time.After(20 * time.Millisecond):
			}
			continue
		}
		a.verifyAndApply(t)
	}
}

func (a *Agent) verifyAndApply(t *todo) {
	var resCh <-chan VerifyResult
	if t.kind == todoIndividual {
		resCh = a.verifier.VerifyIndividualAsync(t.signature, t.origin)
	} else {
		resCh = a.verifier.VerifyMultisigAsync(t.ms, false)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		res := <-resCh
		if !res.Ok() {
			if a.conf.Metrics != nil {
				a.conf.Metrics.VerificationsFailed.Inc()
			}
			a.log.Debugf("verification failed at level %d: %s", t.level, res.Err())
			return
		}
		if a.conf.Metrics != nil {
			a.conf.Metrics.VerificationsOK.Inc()
		}
		if !t.apply(a.store) {
			return
		}
		if a.conf.Metrics != nil {
			a.conf.Metrics.TodosApplied.Inc()
			if best, ok := a.store.Best(a.store.BestLevel()); ok {
				a.conf.Metrics.SignerCount.Set(float64(best.Len()))
			}
		}
		a.checkCompletedLevel(t.level)
		a.checkFinalSignature()
	}()
}

// tickLoop drives the periodic resend sweep and reacts to level
// activation timeouts.
func (a *Agent) tickLoop() {
	defer a.wg.Done()
	for {
		select {
		case <-a.stop:
			return
		case <-a.ticker.C:
			a.periodicUpdate()
		case lvl := <-a.timeouts.C():
			if lvl < 0 || lvl >= len(a.levels) {
				continue
			}
			if a.levels[lvl].activate() && lvl > 0 {
				a.checkCompletedLevel(lvl - 1)
			}
		}
	}
}

// periodicUpdate resends the best available combined signature to
// Config.UpdateCount peers of every active level's next rotation,
// regardless of whether it grew since the last send - this is what gives
// the protocol liveness under packet loss (spec.md §4.4 "On periodic
// tick").
func (a *Agent) periodicUpdate() {
	for i := 1; i < len(a.levels); i++ {
		lvl := a.levels[i]
		if lvl.State() == levelInactive {
			continue
		}
		sp, err := a.store.Combined(i - 1)
		if err != nil {
			a.log.Errorf("combining levels up to %d: %s", i-1, err)
			continue
		}
		if sp == nil {
			continue
		}
		a.sendLevel(lvl, sp.ms, a.conf.UpdateCount)
	}
}

// checkCompletedLevel marks level ReceiveCompleted once its best
// signature covers every peer assigned to it, activates the next level
// in sequence, and opportunistically advances every already-active
// higher level with whatever combined signature is now available
// (spec.md §4.6).
func (a *Agent) checkCompletedLevel(level int) {
	if level < 0 || level >= len(a.levels) {
		return
	}

	lvl := a.levels[level]
	if size, err := a.part.SizeAt(level); err == nil {
		if best, ok := a.store.Best(level); ok && best.Len() >= size {
			if lvl.markReceiveCompleted() {
				if a.conf.Metrics != nil {
					a.conf.Metrics.LevelsCompleted.Inc()
				}
				if level+1 < len(a.levels) {
					a.levels[level+1].activate()
				}
			}
		}
	}

	for i := level + 1; i < len(a.levels); i++ {
		next := a.levels[i]
		if next.State() == levelInactive {
			continue
		}
		sp, err := a.store.Combined(i - 1)
		if err != nil {
			a.log.Errorf("combining levels up to %d: %s", i-1, err)
			continue
		}
		if sp == nil {
			continue
		}
		if grew, _ := next.updateSignatureToSend(sp.ms.Len()); grew {
			a.sendLevel(next, sp.ms, a.conf.PeerCount)
		}
	}
}

// checkFinalSignature publishes the fully combined signature exactly
// once, as soon as its summed weight crosses the configured threshold.
func (a *Agent) checkFinalSignature() {
	if a.isDone() {
		return
	}
	last := len(a.levels) - 1
	sp, err := a.store.Combined(last)
	if err != nil {
		a.log.Errorf("combining final levels: %s", err)
		return
	}
	if sp == nil {
		return
	}
	if sp.ms.Weight(a.conf.Registry) < a.conf.Threshold {
		return
	}

	a.mu.Lock()
	if a.done {
		a.mu.Unlock()
		return
	}
	a.done = true
	a.mu.Unlock()

	if a.conf.Metrics != nil {
		a.conf.Metrics.TimeToThreshold.Observe(time.Since(a.startTime).Seconds())
	}
	a.out <- sp.ms
}

// sendLevel marshals ms and sends it to the next rotation of peerCount
// peers for lvl, attaching the node's own individual signature unless
// lvl has already finished receiving (spec.md §4.4 "Message
// construction": every outbound packet carries the sender's individual
// contribution until the destination level is receive_completed).
func (a *Agent) sendLevel(lvl *level, ms *MultiSignature, peerCount int) {
	peerIDs := lvl.selectNextPeers(peerCount)
	if len(peerIDs) == 0 {
		return
	}
	ids := make([]Identity, 0, len(peerIDs))
	for _, pid := range peerIDs {
		if id, ok := a.conf.Registry.Identity(pid); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}

	buf, err := ms.MarshalBinary()
	if err != nil {
		a.log.Errorf("marshal multi-signature for level %d: %s", lvl.id, err)
		return
	}
	packet := &Packet{
		Origin:   a.conf.Identity.ID(),
		Level:    byte(lvl.id),
		MultiSig: buf,
	}
	if lvl.State() != levelReceiveCompleted {
		packet.Individual = a.ownIndividual
	}
	a.log.Debugf("sending level %d signature (size %d) to %v", lvl.id, ms.Len(), peerIDs)
	if a.conf.Metrics != nil {
		a.conf.Metrics.PacketsSent.Inc()
	}
	a.net.Send(ids, packet)
}
