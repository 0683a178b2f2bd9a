package lib

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSyncer(t *testing.T) {
	const runID = 0
	masterAddr := "127.0.0.1:" + strconv.Itoa(GetFreeUDPPort())
	slaveAddrs := []string{
		"127.0.0.1:" + strconv.Itoa(GetFreeUDPPort()),
		"127.0.0.1:" + strconv.Itoa(GetFreeUDPPort()),
		"127.0.0.1:" + strconv.Itoa(GetFreeUDPPort()),
	}
	n := len(slaveAddrs)

	master := NewSyncMaster(masterAddr, n, n)
	defer master.Stop()

	slaves := make([]*SyncSlave, n)
	for i, addr := range slaveAddrs {
		slaves[i] = NewSyncSlave(addr, masterAddr)
		defer slaves[i].Stop()
	}

	doneSlave := make(chan bool, n)
	for i := range slaves {
		go func(j int) {
			doneSlave <- <-slaves[j].WaitMaster(runID, []int{j})
		}(i)
	}

	var masterDone bool
	var slavesDone int
	masterWait := master.WaitAll(runID)
	for !masterDone || slavesDone != n {
		select {
		case <-masterWait:
			masterDone = true
		case <-doneSlave:
			slavesDone++
		case <-time.After(5 * time.Second):
			require.Fail(t, "sync run never converged")
		}
	}
}
