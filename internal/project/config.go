package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"framekit/internal/storage"
	"framekit/internal/target"
)

// Config is the decoded framekit.toml.
type Config struct {
	// Path is the file the config was read from; empty for Default.
	Path string `toml:"-"`

	Target   TargetConfig   `toml:"target"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

// TargetConfig overrides the built-in target description. Empty register
// lists keep the built-in register file.
type TargetConfig struct {
	Name           string   `toml:"name"`
	WordSize       int      `toml:"word_size"`
	StackAlign     int      `toml:"stack_align"`
	General        []string `toml:"general"`
	Float          []string `toml:"float"`
	ScratchGeneral string   `toml:"scratch_general"`
	ScratchFloat   string   `toml:"scratch_float"`
}

// PipelineConfig holds defaults for the compile pipeline; CLI flags win.
type PipelineConfig struct {
	VerifyPhis   bool   `toml:"verify_phis"`
	VerifyOutput bool   `toml:"verify_output"`
	Jobs         int    `toml:"jobs"`
	Cache        string `toml:"cache"`
}

// Default returns the configuration used when no framekit.toml exists.
func Default() Config {
	return Config{
		Pipeline: PipelineConfig{VerifyPhis: true, VerifyOutput: true},
	}
}

// LoadConfig reads path. Keys missing from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("pipeline", "jobs") && cfg.Pipeline.Jobs < 0 {
		return Config{}, fmt.Errorf("%s: [pipeline].jobs must not be negative", path)
	}
	if cfg.Pipeline.Cache != "" && !filepath.IsAbs(cfg.Pipeline.Cache) {
		cfg.Pipeline.Cache = filepath.Join(filepath.Dir(path), cfg.Pipeline.Cache)
	}
	cfg.Path = path
	if _, err := cfg.BuildTarget(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Discover loads explicit when set, otherwise the nearest framekit.toml
// above startDir, otherwise Default.
func Discover(startDir, explicit string) (Config, error) {
	if explicit != "" {
		return LoadConfig(explicit)
	}
	path, ok, err := FindConfig(startDir)
	if err != nil {
		return Config{}, err
	}
	if !ok {
		return Default(), nil
	}
	return LoadConfig(path)
}

// BuildTarget applies the [target] overrides to the built-in target.
func (c Config) BuildTarget() (*target.Target, error) {
	t := target.AMD64()
	tc := c.Target
	if tc.Name != "" {
		t.Name = tc.Name
	}
	if tc.WordSize != 0 {
		t.WordSize = tc.WordSize
	}
	if tc.StackAlign != 0 {
		t.StackAlign = tc.StackAlign
	}
	if len(tc.General) > 0 || len(tc.Float) > 0 {
		if len(tc.General) == 0 || len(tc.Float) == 0 {
			return nil, errors.New("[target] needs both general and float registers")
		}
		regs := make([]target.RegisterInfo, 0, len(tc.General)+len(tc.Float))
		for _, name := range tc.General {
			regs = append(regs, target.RegisterInfo{Name: name, Class: target.ClassGeneral})
		}
		for _, name := range tc.Float {
			regs = append(regs, target.RegisterInfo{Name: name, Class: target.ClassFloat})
		}
		t.Registers = regs
		// Built-in scratch numbers are meaningless for a new register file.
		t.Scratch = map[target.RegClass]storage.Register{
			target.ClassGeneral: storage.Register(len(tc.General) - 1),
			target.ClassFloat:   storage.Register(len(regs) - 1),
		}
	}
	for class, name := range map[target.RegClass]string{
		target.ClassGeneral: tc.ScratchGeneral,
		target.ClassFloat:   tc.ScratchFloat,
	} {
		if name == "" {
			continue
		}
		r, err := lookupRegister(t, name)
		if err != nil {
			return nil, err
		}
		t.Scratch[class] = r
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// lookupRegister accepts an assembler name or the generic rN form.
func lookupRegister(t *target.Target, name string) (storage.Register, error) {
	if r, ok := t.Lookup(name); ok {
		return r, nil
	}
	var n int
	if _, err := fmt.Sscanf(name, "r%d", &n); err == nil && fmt.Sprintf("r%d", n) == name {
		if n >= 0 && n < len(t.Registers) {
			return storage.Register(n), nil
		}
	}
	return storage.NoRegister, fmt.Errorf("unknown register %q", name)
}
