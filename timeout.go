package handel

import "time"

// levelTimeouts emits one event per level once its activation timeout
// elapses, independently of whether the previous level ever finished
// receiving. Level 0 is excluded: it's born Active (spec.md §4.3).
type levelTimeouts struct {
	events chan int
	stop   chan struct{}
}

// newLevelTimeouts schedules level i to fire after i*period, for every
// level beyond 0. period is Config.LevelTimeout.
func newLevelTimeouts(numLevels int, period time.Duration) *levelTimeouts {
	lt := &levelTimeouts{
		events: make(chan int, numLevels),
		stop:   make(chan struct{}),
	}
	for i := 1; i < numLevels; i++ {
		go lt.fire(i, time.Duration(i)*period)
	}
	return lt
}

func (lt *levelTimeouts) fire(level int, after time.Duration) {
	timer := time.NewTimer(after)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-lt.stop:
		return
	}
	select {
	case lt.events <- level:
	case <-lt.stop:
	}
}

// C returns the channel level-activation timeout events arrive on.
func (lt *levelTimeouts) C() <-chan int {
	return lt.events
}

// Stop releases every pending timer. Safe to call once.
func (lt *levelTimeouts) Stop() {
	close(lt.stop)
}
