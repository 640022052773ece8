package archive

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainpkg/chainpkg/internal/errs"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// readTree maps every regular file under root to its content.
func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func samplePackage(t *testing.T) string {
	t.Helper()
	src := filepath.Join(t.TempDir(), "alpha")
	writeTree(t, src, map[string]string{
		"Move.toml":           "[package]\nname = \"alpha\"\n",
		"chainpkg.yaml":       "kind: library\n",
		"sources/alpha.move":  "module alpha::math {}\n",
		"sources/nested/b.mv": "b",
		"scripts/run.sh":      "#!/bin/sh\necho ok\n",
	})
	require.NoError(t, os.Chmod(filepath.Join(src, "scripts/run.sh"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0o755))
	return src
}

func TestZipIsDeterministic(t *testing.T) {
	src := samplePackage(t)
	out := t.TempDir()
	ctx := context.Background()

	first, err := Zip(ctx, src, filepath.Join(out, "a.zip"))
	require.NoError(t, err)

	later := time.Now().Add(48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(src, "Move.toml"), later, later))

	second, err := Zip(ctx, src, filepath.Join(out, "b.zip"))
	require.NoError(t, err)

	assert.Equal(t, first.SHA256, second.SHA256, "modification times must not affect the bundle")
	assert.Equal(t, first.Entries, second.Entries)
	assert.Equal(t, 5, first.Files)
	assert.Positive(t, first.Size)
}

func TestZipEntriesAreSorted(t *testing.T) {
	src := samplePackage(t)
	sum, err := Zip(context.Background(), src, filepath.Join(t.TempDir(), "a.zip"))
	require.NoError(t, err)
	assert.IsIncreasing(t, sum.Entries)
	assert.Contains(t, sum.Entries, "empty/")
}

func TestZipExcludes(t *testing.T) {
	src := samplePackage(t)
	writeTree(t, src, map[string]string{
		".git/config":               "x",
		"node_modules/dep/index.js": "x",
		"sources/node_modules/a":    "x",
		"build/alpha/bytecode.mv":   "x",
		"sources/build/keep.move":   "kept: only the top-level build directory is excluded",
		".DS_Store":                 "x",
		"debug.log":                 "x",
		"notes/secret.txt":          "x",
		IgnoreFile:                  "# local noise\n**/*.log\n\nnotes/\n",
	})

	sum, err := Zip(context.Background(), src, filepath.Join(t.TempDir(), "a.zip"), "**/*.tmp")
	require.NoError(t, err)

	for _, e := range sum.Entries {
		assert.NotContains(t, []string{".git/", "node_modules/", "build/", ".DS_Store", "debug.log", "notes/"}, e)
		assert.NotRegexp(t, `(^|/)(\.git|node_modules)/`, e)
		assert.NotRegexp(t, `^(build|notes)/`, e)
	}
	assert.Contains(t, sum.Entries, "sources/build/keep.move")
	assert.Contains(t, sum.Entries, IgnoreFile)
}

func TestZipRejectsBadPattern(t *testing.T) {
	src := samplePackage(t)
	_, err := Zip(context.Background(), src, filepath.Join(t.TempDir(), "a.zip"), "[")
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestRoundTrip(t *testing.T) {
	src := samplePackage(t)
	bundle := filepath.Join(t.TempDir(), "bundle.zip")
	ctx := context.Background()

	_, err := Zip(ctx, src, bundle)
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "out")
	n, err := Extract(ctx, bundle, dst)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, readTree(t, src), readTree(t, dst))

	info, err := os.Stat(filepath.Join(dst, "empty"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	if runtime.GOOS != "windows" {
		info, err = os.Stat(filepath.Join(dst, "scripts/run.sh"))
		require.NoError(t, err)
		assert.Equal(t, fs.FileMode(0o755), info.Mode().Perm())
	}
}

func TestExtractRejectsNonZip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "download")
	require.NoError(t, os.WriteFile(p, []byte("<html>gateway error</html>"), 0o644))

	dst := filepath.Join(t.TempDir(), "out")
	_, err := Extract(context.Background(), p, dst)
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidPackage, errs.KindOf(err))
	assert.Contains(t, errs.FieldsOf(err)["mime"], "text/html")
	assert.NoDirExists(t, dst)
}

func TestExtractRejectsZipSlip(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "evil.zip")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("ok.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("fine"))
	require.NoError(t, err)
	w, err = zw.Create("../escaped.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("gotcha"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	dst := filepath.Join(dir, "out")
	_, err = Extract(context.Background(), p, dst)
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidPackage, errs.KindOf(err))
	assert.NoFileExists(t, filepath.Join(dir, "escaped.txt"))
}

func limitSizes(t *testing.T, entry, total uint64) {
	t.Helper()
	prevEntry, prevTotal := MaxEntrySize, MaxTotalSize
	MaxEntrySize, MaxTotalSize = entry, total
	t.Cleanup(func() { MaxEntrySize, MaxTotalSize = prevEntry, prevTotal })
}

func writeTestZip(t *testing.T, entries map[string]int) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "bundle.zip")
	f, err := os.Create(p)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, name := range []string{"a.bin", "b.bin", "c.bin"} {
		size, ok := entries[name]
		if !ok {
			continue
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(make([]byte, size))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return p
}

func TestExtractSizeLimits(t *testing.T) {
	tests := []struct {
		name    string
		entries map[string]int
		wantErr string
	}{
		{"within limits", map[string]int{"a.bin": 1000, "b.bin": 1000}, ""},
		{"entry too large", map[string]int{"a.bin": 1025}, "larger than 1024 bytes"},
		{"total too large", map[string]int{"a.bin": 1000, "b.bin": 1000, "c.bin": 1000}, "expands past 2500 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limitSizes(t, 1024, 2500)
			p := writeTestZip(t, tt.entries)

			n, err := Extract(context.Background(), p, filepath.Join(t.TempDir(), "out"))
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, len(tt.entries), n)
				return
			}
			require.Error(t, err)
			assert.Equal(t, errs.KindInvalidPackage, errs.KindOf(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExtractFileStopsAtLimit(t *testing.T) {
	p := writeTestZip(t, map[string]int{"a.bin": 4096})
	zr, err := zip.OpenReader(p)
	require.NoError(t, err)
	defer zr.Close()

	target := filepath.Join(t.TempDir(), "a.bin")
	n, err := extractFile(zr.File[0], target, 0o644, 100)
	assert.ErrorIs(t, err, errOverLimit)
	assert.Equal(t, uint64(101), n)
	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, int64(101), info.Size())
}

func TestSafeJoin(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")
	tests := []struct {
		name string
		ok   bool
	}{
		{"a.txt", true},
		{"dir/", true},
		{"dir/../b.txt", true},
		{"./c.txt", true},
		{"../x", false},
		{"dir/../../x", false},
		{"/etc/passwd", false},
		{`..\x`, false},
		{"..", false},
	}
	for _, tt := range tests {
		_, err := safeJoin(root, tt.name)
		assert.Equal(t, tt.ok, err == nil, tt.name)
	}
}

func TestCopyTree(t *testing.T) {
	src := samplePackage(t)
	writeTree(t, src, map[string]string{
		".git/HEAD":    "ref",
		"build/out.mv": "bytes",
	})
	dst := filepath.Join(t.TempDir(), "copy")

	n, err := CopyTree(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.NoDirExists(t, filepath.Join(dst, ".git"))
	assert.NoDirExists(t, filepath.Join(dst, "build"))
	assert.DirExists(t, filepath.Join(dst, "empty"))

	got := readTree(t, dst)
	want := readTree(t, src)
	delete(want, ".git/HEAD")
	delete(want, "build/out.mv")
	assert.Equal(t, want, got)

	// The copy is isolated from later edits.
	require.NoError(t, os.WriteFile(filepath.Join(src, "Move.toml"), []byte("changed"), 0o644))
	data, err := os.ReadFile(filepath.Join(dst, "Move.toml"))
	require.NoError(t, err)
	assert.NotEqual(t, "changed", string(data))
}

func TestCopyTreeErrors(t *testing.T) {
	src := samplePackage(t)
	ctx := context.Background()

	_, err := CopyTree(ctx, filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "x"))
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	existing := t.TempDir()
	_, err = CopyTree(ctx, src, existing)
	assert.Equal(t, errs.KindStorage, errs.KindOf(err), "the destination must not exist")
}

func TestCollectHonorsContext(t *testing.T) {
	src := samplePackage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Zip(ctx, src, filepath.Join(t.TempDir(), "a.zip"))
	assert.Error(t, err)
}
