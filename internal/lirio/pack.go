package lirio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"framekit/internal/lir"
)

// PackSchemaVersion is bumped whenever the encoded layout of Pack changes.
const PackSchemaVersion uint16 = 1

// ErrSchemaMismatch is returned when a pack was written by another schema.
var ErrSchemaMismatch = errors.New("lirpack schema mismatch")

// Pack is a bundle of units, used both for inputs and for allocated results.
type Pack struct {
	Schema uint16

	// Target fingerprint the units were allocated for; empty for inputs.
	Target string
	Units  []*lir.Func
}

// EncodePack writes p as msgpack. The schema is stamped automatically.
func EncodePack(w io.Writer, p *Pack) error {
	if p == nil {
		return fmt.Errorf("nil pack")
	}
	out := *p
	out.Schema = PackSchemaVersion
	return msgpack.NewEncoder(w).Encode(&out)
}

// DecodePack reads a pack and recomputes the edges of every unit.
func DecodePack(r io.Reader) (*Pack, error) {
	var p Pack
	if err := msgpack.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode lirpack: %w", err)
	}
	if p.Schema != PackSchemaVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrSchemaMismatch, p.Schema, PackSchemaVersion)
	}
	for i, f := range p.Units {
		if f == nil {
			return nil, fmt.Errorf("decode lirpack: unit %d is empty", i)
		}
		f.ComputeEdges()
	}
	return &p, nil
}

// WritePackFile writes p to path atomically.
func WritePackFile(path string, p *Pack) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".lirpack-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if err = EncodePack(tmp, p); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadPackFile reads a pack from path.
func ReadPackFile(path string) (*Pack, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	p, err := DecodePack(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
