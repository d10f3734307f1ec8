package lirio

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"framekit/internal/lir"
	"framekit/internal/storage"
)

const diamond = `fn diamond
slot vs0 simple i64
slot vs1 alias vs0 i32
slot vs2 range size=32 align=16
bb0:
  label
  op cmp def=r0:i64 use=r1:i64,$0:i64
  branch r0:i64 bb1 bb2
bb1:
  label
  move vs0:i64 <- r1:i64
  jump bb3 out=r1:i64,vs0:i64
bb2:
  label
  op load def=r2:i64 use=vs1:i32 temp=r3:i64 state=r4|vs0:ref
  jump bb3 out=r2:i64,$7:i64 nosplice
bb3:
  label in=r1:i64,r5:i64
  return r1:i64
`

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want storage.Value
	}{
		{"r3:i64", storage.Reg(3, storage.I64)},
		{"fs-16:i32", storage.FrameSlot(-16, storage.I32)},
		{"sp+8:f64", storage.Stack(storage.StackSlot{Offset: 8}, storage.F64)},
		{"vs2:ref", storage.VStack(2, storage.Ref)},
		{"r1|fs-8:uref", storage.Shadow(1, storage.FrameSlot(-8, storage.UnknownRef))},
		{"r1|vs4:i64", storage.Shadow(1, storage.VStack(4, storage.I64))},
		{"$-42:i32", storage.Const(-42, storage.I32)},
	}
	for _, tt := range tests {
		got, err := ParseValue(tt.in)
		if err != nil {
			t.Errorf("ParseValue(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseValue(%q) = %s, want %s", tt.in, got, tt.want)
		}
		if got.String() != tt.in {
			t.Errorf("round trip %q -> %q", tt.in, got.String())
		}
	}
}

func TestParseValue_Errors(t *testing.T) {
	for _, in := range []string{"r3", "r3:i65", "x1:i64", "r1|r2:i64", "vs-1:i64", "$x:i32", "fs:i64"} {
		if _, err := ParseValue(in); err == nil {
			t.Errorf("ParseValue(%q) succeeded, want error", in)
		}
	}
}

func TestParseInstr_Errors(t *testing.T) {
	for _, in := range []string{
		"",
		"jump",
		"jump bb1 bogus",
		"branch r0:i64 bb1",
		"move r1:i64 r2:i64",
		"op add def=r1:i64 def=r2:i64",
		"op add what=r1:i64",
		"return r1:i64 r2:i64",
		"frobnicate",
	} {
		if _, err := ParseInstr(in); err == nil {
			t.Errorf("ParseInstr(%q) succeeded, want error", in)
		}
	}
}

func TestParseFunc_RoundTrip(t *testing.T) {
	f, err := ParseFuncString(diamond)
	if err != nil {
		t.Fatalf("ParseFunc: %v", err)
	}
	if len(f.Blocks) != 4 || len(f.Slots) != 3 {
		t.Fatalf("blocks=%d slots=%d, want 4 and 3", len(f.Blocks), len(f.Slots))
	}
	if got := f.Block(3).Preds; len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("bb3 preds = %v, want [1 2]", got)
	}
	if !f.Block(2).Last().Jump.NoSplice {
		t.Error("bb2 jump lost nosplice")
	}
	if err := lir.Validate(f); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := f.String(); got != diamond {
		t.Errorf("dump mismatch:\n%s\nwant:\n%s", got, diamond)
	}
}

func TestParseFunc_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"no_header", "bb0:\n  label\n  return\n"},
		{"block_order", "fn f\nbb1:\n  label\n  return\n"},
		{"slot_order", "fn f\nslot vs1 simple i64\n"},
		{"outside_block", "fn f\nlabel\n"},
		{"bad_instr", "fn f\nbb0:\n  label\n  jump\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseFuncString(tt.src); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName(" cafe\u0301 "); got != "caf\u00e9" {
		t.Errorf("NormalizeName = %q", got)
	}
}

const diamondTOML = `
name = "diamond"

[[slots]]
variant = "simple"
kind = "i64"

[[slots]]
variant = "alias"
target = 0
kind = "i32"

[[slots]]
variant = "range"
size = 32
align = 16

[[blocks]]
instrs = ["label", "op cmp def=r0:i64 use=r1:i64,$0:i64", "branch r0:i64 bb1 bb2"]

[[blocks]]
instrs = ["label", "move vs0:i64 <- r1:i64", "jump bb3 out=r1:i64,vs0:i64"]

[[blocks]]
instrs = ["label", "op load def=r2:i64 use=vs1:i32 temp=r3:i64 state=r4|vs0:ref", "jump bb3 out=r2:i64,$7:i64 nosplice"]

[[blocks]]
instrs = ["label in=r1:i64,r5:i64", "return r1:i64"]
`

func TestDecodeUnit_MatchesText(t *testing.T) {
	fromTOML, err := DecodeUnit(strings.NewReader(diamondTOML))
	if err != nil {
		t.Fatalf("DecodeUnit: %v", err)
	}
	if got := fromTOML.String(); got != diamond {
		t.Errorf("TOML unit dump mismatch:\n%s\nwant:\n%s", got, diamond)
	}

	var buf bytes.Buffer
	if err := EncodeUnit(&buf, fromTOML); err != nil {
		t.Fatalf("EncodeUnit: %v", err)
	}
	again, err := DecodeUnit(&buf)
	if err != nil {
		t.Fatalf("DecodeUnit(EncodeUnit): %v", err)
	}
	if again.String() != diamond {
		t.Errorf("re-encoded unit differs:\n%s", again)
	}
}

func TestDecodeUnit_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing_name", "[[blocks]]\ninstrs = [\"label\", \"return\"]\n"},
		{"unknown_key", "name = \"f\"\nbogus = 1\n"},
		{"bad_variant", "name = \"f\"\n[[slots]]\nvariant = \"wide\"\n"},
		{"bad_instr", "name = \"f\"\n[[blocks]]\ninstrs = [\"label\", \"jump\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeUnit(strings.NewReader(tt.src)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPack_RoundTrip(t *testing.T) {
	f, err := ParseFuncString(diamond)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "units.lirpack")
	if err := WritePackFile(path, &Pack{Target: "amd64", Units: []*lir.Func{f}}); err != nil {
		t.Fatalf("WritePackFile: %v", err)
	}
	p, err := ReadPackFile(path)
	if err != nil {
		t.Fatalf("ReadPackFile: %v", err)
	}
	if p.Schema != PackSchemaVersion || p.Target != "amd64" || len(p.Units) != 1 {
		t.Fatalf("pack header = %d %q %d", p.Schema, p.Target, len(p.Units))
	}
	if got := p.Units[0].String(); got != diamond {
		t.Errorf("decoded unit differs:\n%s", got)
	}
	if len(p.Units[0].Block(3).Preds) != 2 {
		t.Error("edges not recomputed after decode")
	}
}

func TestDecodePack_SchemaMismatch(t *testing.T) {
	var buf bytes.Buffer
	type oldPack struct {
		Schema uint16
	}
	if err := msgpack.NewEncoder(&buf).Encode(&oldPack{Schema: PackSchemaVersion + 1}); err != nil {
		t.Fatal(err)
	}
	_, err := DecodePack(&buf)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("err = %v, want ErrSchemaMismatch", err)
	}
}
