package handel

import (
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Logger is the minimal logging surface the core needs. It's deliberately
// narrow so callers can wrap whatever structured logger they already run
// (cmd/handel-node wires zap through NewZapLogger).
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger adapts a *zap.Logger to the Logger interface.
func NewZapLogger(l *zap.Logger) Logger {
	return &zapLogger{s: l.Sugar()}
}

func (z *zapLogger) Debugf(format string, args ...interface{}) { z.s.Debugf(format, args...) }
func (z *zapLogger) Infof(format string, args ...interface{})  { z.s.Infof(format, args...) }
func (z *zapLogger) Errorf(format string, args ...interface{}) { z.s.Errorf(format, args...) }

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// Config collects everything an Agent needs to run one aggregation round
// (spec.md §4.6, §9).
type Config struct {
	Identity Identity
	Registry Registry
	Secret   SecretKey
	Cons     Constructor

	Threshold uint64
	Message   []byte

	DisableShuffling bool
	UpdateCount      int
	UpdatePeriod     time.Duration
	LevelTimeout     time.Duration
	PeerCount        int

	Workers int
	Logger  Logger
	Metrics *Metrics
}

// IndividualSignature signs Message under Secret - this node's own
// contribution at level 0.
func (c Config) IndividualSignature() (Signature, error) {
	return c.Secret.Sign(c.Message)
}

// DefaultConfig fills in the fields a caller typically leaves at their
// defaults, matching what the simulation harness uses.
func DefaultConfig(id Identity, reg Registry, secret SecretKey, cons Constructor, threshold uint64, message []byte) Config {
	return Config{
		Identity:         id,
		Registry:         reg,
		Secret:           secret,
		Cons:             cons,
		Threshold:        threshold,
		Message:          message,
		DisableShuffling: false,
		UpdateCount:      3,
		UpdatePeriod:     300 * time.Millisecond,
		LevelTimeout:     300 * time.Millisecond,
		PeerCount:        10,
		Workers:          runtime.NumCPU(),
		Logger:           nopLogger{},
	}
}
