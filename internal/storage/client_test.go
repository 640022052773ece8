package storage_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainpkg/chainpkg/internal/config"
	"github.com/chainpkg/chainpkg/internal/errs"
	"github.com/chainpkg/chainpkg/internal/storage"
	"github.com/chainpkg/chainpkg/internal/storage/localfs"
	_ "github.com/chainpkg/chainpkg/internal/storage/pinata"
)

func newLocal(t *testing.T) (*storage.Client, *localfs.CAS) {
	t.Helper()
	cas, err := localfs.New(filepath.Join(t.TempDir(), "cas"))
	require.NoError(t, err)
	return storage.New(cas, nil), cas
}

// isolateTemp points os.TempDir at a fresh directory and returns it.
func isolateTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("TMPDIR", dir)
	return dir
}

func writePackage(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "alpha")
	files := map[string]string{
		"Move.toml":          "[package]\nname = \"alpha\"\nversion = \"1.0.0\"\n",
		"sources/alpha.move": "module alpha::a {}\n",
	}
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return dir
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files left in %s", dir)
}

func TestUploadDirectoryRoundTrip(t *testing.T) {
	tmp := isolateTemp(t)
	client, cas := newLocal(t)
	src := writePackage(t)
	ctx := context.Background()

	res, err := client.UploadDirectory(ctx, src, storage.PinMetadata{Name: "alpha@1.0.0"})
	require.NoError(t, err)
	assert.True(t, cas.Has(res.ContentAddress))
	assert.Positive(t, res.Size)
	assert.False(t, res.Timestamp.IsZero())
	assertEmptyDir(t, tmp)

	again, err := client.UploadDirectory(ctx, src, storage.PinMetadata{})
	require.NoError(t, err)
	assert.Equal(t, res.ContentAddress, again.ContentAddress, "same tree, same address")

	out := filepath.Join(t.TempDir(), "installed", "alpha")
	n, err := client.DownloadPackage(ctx, res.ContentAddress, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	for _, rel := range []string{"Move.toml", "sources/alpha.move"} {
		want, err := os.ReadFile(filepath.Join(src, rel))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(out, rel))
		require.NoError(t, err)
		assert.Equal(t, want, got, rel)
	}
	assertEmptyDir(t, tmp)
}

func TestDownloadPackageIntoEmptyDir(t *testing.T) {
	client, _ := newLocal(t)
	res, err := client.UploadDirectory(context.Background(), writePackage(t), storage.PinMetadata{})
	require.NoError(t, err)

	out := t.TempDir()
	_, err = client.DownloadPackage(context.Background(), res.ContentAddress, out)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "Move.toml"))
}

func TestDownloadPackageFailures(t *testing.T) {
	client, _ := newLocal(t)
	ctx := context.Background()

	notZip := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notZip, []byte("plain text, not a bundle"), 0o644))
	textRes, err := client.UploadFile(ctx, notZip)
	require.NoError(t, err)

	missing, err := localfs.Address([]byte("never stored"))
	require.NoError(t, err)

	tests := []struct {
		name string
		addr string
		want errs.Kind
	}{
		{name: "unknown address", addr: missing.String(), want: errs.KindPackageNotFound},
		{name: "not a zip", addr: textRes.ContentAddress, want: errs.KindInvalidPackage},
		{name: "malformed address", addr: "not-a-cid", want: errs.KindStorage},
		{name: "empty address", addr: "", want: errs.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := isolateTemp(t)
			parent := t.TempDir()
			out := filepath.Join(parent, "pkg")

			_, err := client.DownloadPackage(ctx, tt.addr, out)
			require.Error(t, err)
			assert.Equal(t, tt.want, errs.KindOf(err))
			assert.NoDirExists(t, out)
			assertEmptyDir(t, parent)
			assertEmptyDir(t, tmp)
		})
	}
}

func TestDownloadPackageRefusesNonEmptyTarget(t *testing.T) {
	client, _ := newLocal(t)
	res, err := client.UploadDirectory(context.Background(), writePackage(t), storage.PinMetadata{})
	require.NoError(t, err)

	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "keep.txt"), []byte("mine"), 0o644))
	_, err = client.DownloadPackage(context.Background(), res.ContentAddress, out)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	assert.FileExists(t, filepath.Join(out, "keep.txt"))
}

func TestDownloadFile(t *testing.T) {
	client, _ := newLocal(t)
	src := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(src, []byte{0, 1, 2, 3}, 0o644))
	res, err := client.UploadFile(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Size)

	out := filepath.Join(t.TempDir(), "nested", "copy.bin")
	n, err := client.DownloadFile(context.Background(), res.ContentAddress, out)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2, 3}, data)
}

// failing is a provider whose every call fails.
type failing struct{ err error }

func (f failing) Name() string { return "failing" }

func (f failing) Put(context.Context, string, storage.PinMetadata) (*storage.Pin, error) {
	return nil, f.err
}

func (f failing) Get(context.Context, string, io.Writer) (int64, error) { return 0, f.err }

func (f failing) Ping(context.Context) error { return f.err }

func TestUploadFailureCleansUp(t *testing.T) {
	tmp := isolateTemp(t)
	client := storage.New(failing{errors.New("pinning service unavailable")}, nil)

	_, err := client.UploadDirectory(context.Background(), writePackage(t), storage.PinMetadata{})
	require.Error(t, err)
	assert.Equal(t, errs.KindStorage, errs.KindOf(err))
	assert.Equal(t, "failing", errs.FieldsOf(err)["provider"])
	assertEmptyDir(t, tmp)
}

func TestUploadRejectsDirectoryAsFile(t *testing.T) {
	client, _ := newLocal(t)
	_, err := client.UploadFile(context.Background(), t.TempDir())
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestTestConnection(t *testing.T) {
	client, _ := newLocal(t)
	assert.True(t, client.TestConnection(context.Background()))

	down := storage.New(failing{errors.New("dial tcp: refused")}, nil)
	assert.False(t, down.TestConnection(context.Background()))
}

func TestOpen(t *testing.T) {
	t.Setenv("CHAINPKG_HOME", t.TempDir())

	local, err := storage.Open(config.StorageConfig{Provider: config.ProviderLocal}, nil)
	require.NoError(t, err)
	assert.Equal(t, localfs.Name, local.Provider())
	assert.DirExists(t, storage.DefaultLocalPath())

	pin, err := storage.Open(config.StorageConfig{Provider: config.ProviderPinata, PinataJWT: "jwt"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "pinata", pin.Provider())

	_, err = storage.Open(config.StorageConfig{}, nil)
	assert.Equal(t, errs.KindConfig, errs.KindOf(err), "pinata without credentials")

	_, err = storage.Open(config.StorageConfig{Provider: "s3"}, nil)
	assert.Equal(t, errs.KindConfig, errs.KindOf(err))
}
