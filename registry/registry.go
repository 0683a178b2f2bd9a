// Package registry loads a static node roster from a TOML file into a
// handel.Registry.
package registry

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/aggrecord/handel"
)

// Entry is one node's roster entry, as written in a TOML roster file.
type Entry struct {
	ID      int32
	Address string
	Public  string // hex-encoded, as produced by PublicKey.MarshalBinary
	Weight  uint64
}

// File is the top-level shape of a TOML roster file.
type File struct {
	Nodes []Entry
}

// Load reads a TOML roster file and builds a handel.Registry from it,
// decoding each entry's public key with cons.
func Load(path string, cons handel.Constructor) (handel.Registry, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("registry: decode %s: %w", path, err)
	}
	return Build(f.Nodes, cons)
}

// Build turns a slice of roster entries into a dense handel.Registry,
// indexed by each entry's own ID.
func Build(entries []Entry, cons handel.Constructor) (handel.Registry, error) {
	maxID := int32(-1)
	for _, e := range entries {
		if e.ID > maxID {
			maxID = e.ID
		}
		if e.ID < 0 {
			return nil, fmt.Errorf("registry: negative id %d", e.ID)
		}
	}

	ids := make([]handel.Identity, maxID+1)
	for _, e := range entries {
		raw, err := hex.DecodeString(e.Public)
		if err != nil {
			return nil, fmt.Errorf("registry: decode public key for id %d: %w", e.ID, err)
		}
		pub := cons.PublicKey()
		if err := pub.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("registry: unmarshal public key for id %d: %w", e.ID, err)
		}
		weight := e.Weight
		if weight == 0 {
			weight = 1
		}
		ids[e.ID] = handel.NewIdentity(e.ID, e.Address, pub, weight)
	}
	return handel.NewArrayRegistry(ids), nil
}

// WriteTo encodes entries as a TOML roster file at path.
func WriteTo(path string, entries []Entry) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("registry: create %s: %w", path, err)
	}
	defer out.Close()
	return toml.NewEncoder(out).Encode(File{Nodes: entries})
}
