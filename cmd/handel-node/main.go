// Command handel-node runs a single Handel aggregation node against a
// TOML roster of peers, signing and aggregating over one message.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/aggrecord/handel"
	"github.com/aggrecord/handel/crypto/bn256"
	"github.com/aggrecord/handel/registry"
	"github.com/aggrecord/handel/transport/udp"
)

var (
	id           = flag.Int("id", -1, "this node's id in the registry")
	secretHex    = flag.String("secret-key", "", "hex-encoded BLS secret key")
	address      = flag.String("address", "127.0.0.1:1337", "address to listen on")
	registryPath = flag.String("registry", "", "TOML roster file")
	threshold    = flag.Uint64("threshold", 0, "total weight required for completion")
	message      = flag.String("message", "", "message to aggregate signatures over")
	timeout      = flag.Duration("timeout", 20*time.Second, "how long to wait for completion before giving up")
)

func main() {
	flag.Parse()
	if *id < 0 || *registryPath == "" || *secretHex == "" || *message == "" {
		fmt.Fprintln(os.Stderr, "handel-node: -id, -registry, -secret-key and -message are required")
		flag.Usage()
		os.Exit(2)
	}

	cons := bn256.NewConstructor()
	reg, err := registry.Load(*registryPath, cons)
	if err != nil {
		fatal(err)
	}

	secretBytes, err := hex.DecodeString(*secretHex)
	if err != nil {
		fatal(fmt.Errorf("decoding secret key: %w", err))
	}
	secret := cons.SecretKey()
	if err := secret.UnmarshalBinary(secretBytes); err != nil {
		fatal(err)
	}

	self, ok := reg.Identity(*id)
	if !ok {
		fatal(fmt.Errorf("id %d not present in registry", *id))
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fatal(err)
	}
	defer logger.Sync()

	conf := handel.DefaultConfig(self, reg, secret, cons, *threshold, []byte(*message))
	conf.Logger = handel.NewZapLogger(logger)

	net, err := udp.Listen(*address)
	if err != nil {
		fatal(err)
	}
	defer net.Close()

	agent, err := handel.NewAgent(conf, net)
	if err != nil {
		fatal(err)
	}
	if err := agent.Start(); err != nil {
		fatal(err)
	}
	defer agent.Stop()

	sugar := logger.Sugar()
	select {
	case final := <-agent.FinalSignature():
		sugar.Infof("aggregation complete: %d signers, weight %d", final.Len(), final.Weight(reg))
	case <-time.After(*timeout):
		sugar.Errorf("timed out waiting for aggregation to complete")
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "handel-node:", err)
	os.Exit(1)
}
