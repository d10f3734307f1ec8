package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

const maxSeedBytes = 64 << 10

func addCorpusSeeds(f *testing.F) {
	addTestdataSeeds(f)
	for _, s := range builtinSeeds {
		f.Add([]byte(s))
	}
}

func addTestdataSeeds(f *testing.F) {
	root := filepath.Join("..", "..", "testdata", "units")
	if _, err := os.Stat(root); err != nil {
		return
	}
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || filepath.Ext(path) != ".lir" {
			return nil
		}
		// #nosec G304 -- path comes from repository testdata walk
		src, err := os.ReadFile(path)
		if err != nil || len(src) > maxSeedBytes {
			return nil
		}
		f.Add(src)
		return nil
	})
}

var builtinSeeds = []string{
	"fn empty\n",
	"fn straight\nbb0:\n  label\n  return\n",
	"fn swap\nbb0:\n  label\n  branch r0:i64 bb1 bb2\nbb1:\n  label\n  jump bb3 out=r2:i64,r1:i64\n" +
		"bb2:\n  label\n  jump bb3 out=r1:i64,r2:i64\nbb3:\n  label in=r1:i64,r2:i64\n  return\n",
	"fn shadows\nslot vs0 simple ref\nbb0:\n  label\n  branch r0:i64 bb1 bb2\nbb1:\n  label\n  jump bb3 out=r1|vs0:ref\n" +
		"bb2:\n  label\n  jump bb3 out=r2:ref nosplice\nbb3:\n  label in=r3|vs0:ref\n  return\n",
	"fn ranges\nslot vs0 range size=24 align=8\nslot vs1 alias vs2 i32\nslot vs2 simple i64\nbb0:\n  label\n" +
		"  op f def=vs2:i64 use=vs0:i64,vs1:i32\n  return vs2:i64\n",
	"fn overlap\nbb0:\n  label\n  branch r0:i64 bb1 bb2\nbb1:\n  label\n  jump bb3 out=sp+0:i64,sp+4:i32\n" +
		"bb2:\n  label\n  jump bb3 out=$1:i64,$2:i32\nbb3:\n  label in=sp+4:i32,sp+0:i64\n  return\n",
}
