package lirio

import (
	"fmt"
	"io"
	"os"
	"strings"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"

	"framekit/internal/lir"
	"framekit/internal/storage"
)

// unitFile is the TOML form of one compilation unit:
//
//	name = "loop"
//	entry = 0
//
//	[[slots]]
//	variant = "simple"
//	kind = "i64"
//
//	[[blocks]]
//	instrs = ["label", "jump bb1 out=r1:i64"]
type unitFile struct {
	Name   string      `toml:"name"`
	Entry  int64       `toml:"entry"`
	Slots  []slotEntry `toml:"slots"`
	Blocks []blockFile `toml:"blocks"`
}

type slotEntry struct {
	Variant string `toml:"variant"`
	Kind    string `toml:"kind,omitempty"`
	Target  int64  `toml:"target,omitempty"`
	Size    int64  `toml:"size,omitempty"`
	Align   int64  `toml:"align,omitempty"`
}

type blockFile struct {
	Instrs []string `toml:"instrs"`
}

// LoadUnitFile reads a TOML unit file.
func LoadUnitFile(path string) (*lir.Func, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	f, err := DecodeUnit(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// DecodeUnit decodes a TOML unit and computes its edges.
func DecodeUnit(r io.Reader) (*lir.Func, error) {
	var uf unitFile
	meta, err := toml.NewDecoder(r).Decode(&uf)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if !meta.IsDefined("name") || strings.TrimSpace(uf.Name) == "" {
		return nil, fmt.Errorf("missing unit name")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
	}

	f := &lir.Func{Name: NormalizeName(uf.Name)}
	entry, err := safecast.Conv[int32](uf.Entry)
	if err != nil {
		return nil, fmt.Errorf("entry: %w", err)
	}
	f.Entry = lir.BlockID(entry)

	for i, se := range uf.Slots {
		slot, err := se.slot(storage.VirtualSlotID(i))
		if err != nil {
			return nil, fmt.Errorf("slots[%d]: %w", i, err)
		}
		f.Slots = append(f.Slots, slot)
	}
	for i, bf := range uf.Blocks {
		id := f.AddBlock()
		bb := f.Block(id)
		for j, line := range bf.Instrs {
			ins, err := ParseInstr(line)
			if err != nil {
				return nil, fmt.Errorf("blocks[%d].instrs[%d]: %w", i, j, err)
			}
			bb.Instrs = append(bb.Instrs, ins)
		}
	}
	f.ComputeEdges()
	return f, nil
}

func (se slotEntry) slot(id storage.VirtualSlotID) (storage.VirtualSlot, error) {
	variant, err := storage.ParseSlotVariant(se.Variant)
	if err != nil {
		return storage.VirtualSlot{}, err
	}
	switch variant {
	case storage.SlotSimple, storage.SlotAlias:
		kind, err := storage.ParseKind(se.Kind)
		if err != nil {
			return storage.VirtualSlot{}, err
		}
		if variant == storage.SlotSimple {
			return storage.NewSimpleSlot(id, kind), nil
		}
		target, err := safecast.Conv[int32](se.Target)
		if err != nil {
			return storage.VirtualSlot{}, fmt.Errorf("target: %w", err)
		}
		return storage.NewAliasSlot(id, storage.VirtualSlotID(target), kind), nil
	default:
		size, err := safecast.Conv[int](se.Size)
		if err != nil {
			return storage.VirtualSlot{}, fmt.Errorf("size: %w", err)
		}
		align, err := safecast.Conv[int](se.Align)
		if err != nil {
			return storage.VirtualSlot{}, fmt.Errorf("align: %w", err)
		}
		return storage.NewRangeSlot(id, size, align), nil
	}
}

// EncodeUnit writes f in the TOML unit form.
func EncodeUnit(w io.Writer, f *lir.Func) error {
	uf := unitFile{Name: f.Name, Entry: int64(f.Entry)}
	for _, s := range f.Slots {
		se := slotEntry{Variant: s.Variant.String()}
		switch s.Variant {
		case storage.SlotSimple:
			se.Kind = s.Kind.String()
		case storage.SlotAlias:
			se.Kind = s.Kind.String()
			se.Target = int64(s.Target)
		case storage.SlotRange:
			se.Size = int64(s.Size)
			se.Align = int64(s.Align)
		}
		uf.Slots = append(uf.Slots, se)
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		bf := blockFile{Instrs: make([]string, 0, len(bb.Instrs))}
		for j := range bb.Instrs {
			bf.Instrs = append(bf.Instrs, lir.FormatInstr(&bb.Instrs[j]))
		}
		uf.Blocks = append(uf.Blocks, bf)
	}
	return toml.NewEncoder(w).Encode(uf)
}
