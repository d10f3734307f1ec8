package lirio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"framekit/internal/lir"
)

// File extensions understood by LoadFile.
const (
	ExtText = ".lir"
	ExtUnit = ".toml"
	ExtPack = ".lirpack"
)

// IsUnitFile reports whether path has an extension LoadFile accepts.
func IsUnitFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtText, ExtUnit, ExtPack:
		return true
	}
	return false
}

// LoadFile reads every unit stored in path, picking the format by extension.
func LoadFile(path string) ([]*lir.Func, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtText:
		fh, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer fh.Close()
		f, err := ParseFunc(fh)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return []*lir.Func{f}, nil
	case ExtUnit:
		f, err := LoadUnitFile(path)
		if err != nil {
			return nil, err
		}
		return []*lir.Func{f}, nil
	case ExtPack:
		p, err := ReadPackFile(path)
		if err != nil {
			return nil, err
		}
		return p.Units, nil
	default:
		return nil, fmt.Errorf("%s: unsupported unit file (expected %s, %s or %s)", path, ExtText, ExtUnit, ExtPack)
	}
}
