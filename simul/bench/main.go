// Command bench runs a local multi-node aggregation benchmark: it spins up
// "nodes" Agents on localhost UDP sockets, rendezvouses them through
// lib.SyncMaster/SyncSlave the same way a distributed run would, times how
// long it takes until every node has reached its threshold, and writes the
// results as a CSV row via monitor.Stats.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aggrecord/handel"
	"github.com/aggrecord/handel/crypto/bn256"
	"github.com/aggrecord/handel/simul/lib"
	"github.com/aggrecord/handel/simul/monitor"
	"github.com/aggrecord/handel/transport/udp"
)

var (
	nodes     = flag.Int("nodes", 16, "number of local nodes to run")
	threshold = flag.Uint64("threshold", 0, "weight required for completion (0 = all nodes)")
	runs      = flag.Int("runs", 1, "number of times to repeat the benchmark")
	out       = flag.String("out", "", "CSV file to write results to (default stdout)")
)

func main() {
	flag.Parse()
	n := *nodes
	th := *threshold
	if th == 0 {
		th = uint64(n)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		w = f
	}

	stats := monitor.NewStats(map[string]string{"nodes": itoa(n)}, nil)
	for r := 0; r < *runs; r++ {
		elapsed, err := runOnce(n, th, r)
		if err != nil {
			fatal(err)
		}
		stats.Update(monitor.NewMeasure("convergence_ms", float64(elapsed.Milliseconds())))
	}
	stats.WriteHeader(w)
	stats.WriteValues(w)
}

func runOnce(n int, threshold uint64, runID int) (time.Duration, error) {
	cons := bn256.NewConstructor()
	basePort := 21000 + runID*n*2

	ids := make([]handel.Identity, n)
	secrets := make([]handel.SecretKey, n)
	addrs := make([]string, n)
	for i := 0; i < n; i++ {
		sec, pub := cons.KeyPair(rand.Reader)
		addrs[i] = fmt.Sprintf("127.0.0.1:%d", basePort+i)
		ids[i] = handel.NewStaticIdentity(int32(i), addrs[i], pub)
		secrets[i] = sec
	}
	reg := handel.NewArrayRegistry(ids)

	masterAddr := fmt.Sprintf("127.0.0.1:%d", basePort+n)
	master := lib.NewSyncMaster(masterAddr, n, n)
	defer master.Stop()

	agents := make([]*handel.Agent, n)
	nets := make([]*udp.Network, n)
	for i := 0; i < n; i++ {
		net, err := udp.Listen(addrs[i])
		if err != nil {
			return 0, err
		}
		nets[i] = net
		conf := handel.DefaultConfig(ids[i], reg, secrets[i], cons, threshold, []byte("benchmark message"))
		agent, err := handel.NewAgent(conf, net)
		if err != nil {
			return 0, err
		}
		agents[i] = agent
	}
	defer func() {
		for _, net := range nets {
			net.Close()
		}
	}()

	done := master.WaitAll(runID)
	slaveReady := make(chan bool, n)
	slaves := make([]*lib.SyncSlave, n)
	for i := 0; i < n; i++ {
		slaveAddr := fmt.Sprintf("127.0.0.1:%d", basePort+n+1+i)
		slaves[i] = lib.NewSyncSlave(slaveAddr, masterAddr)
		go func(j int) {
			slaveReady <- <-slaves[j].WaitMaster(runID, []int{j})
		}(i)
	}
	for i := 0; i < n; i++ {
		<-slaveReady
	}
	<-done
	for _, s := range slaves {
		s.Stop()
	}

	start := time.Now()
	for _, a := range agents {
		if err := a.Start(); err != nil {
			return 0, err
		}
	}
	defer func() {
		for _, a := range agents {
			a.Stop()
		}
	}()

	for i, a := range agents {
		select {
		case <-a.FinalSignature():
		case <-time.After(30 * time.Second):
			return 0, fmt.Errorf("node %d never converged", i)
		}
	}
	return time.Since(start), nil
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "bench:", err)
	os.Exit(1)
}
