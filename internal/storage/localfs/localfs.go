// Package localfs is a content-addressed store in a local directory. Objects
// are keyed by CIDv1 (raw codec, sha2-256) so addresses look like the ones a
// pinning service returns, and every read re-verifies the hash.
package localfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/chainpkg/chainpkg/internal/storage"
)

// Name is the provider name in configuration.
const Name = "local"

var (
	// ErrCIDMismatch means a stored object no longer hashes to its address.
	ErrCIDMismatch = errors.New("stored content does not match its address")
	// ErrImmutable means a different object already occupies an address.
	ErrImmutable = errors.New("content address already holds different bytes")
)

// CAS stores objects under root/<last two chars of the cid>/<cid>.
type CAS struct {
	root string
	now  func() time.Time
}

// New returns a CAS rooted at root, creating the directory if needed.
func New(root string) (*CAS, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &CAS{root: root, now: time.Now}, nil
}

// Root returns the store directory.
func (c *CAS) Root() string { return c.root }

// Name implements storage.Provider.
func (c *CAS) Name() string { return Name }

// Address computes the content address of data.
func Address(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Put implements storage.Provider. Storing the same bytes twice is a no-op.
func (c *CAS) Put(_ context.Context, path string, _ storage.PinMetadata) (*storage.Pin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	id, err := Address(data)
	if err != nil {
		return nil, err
	}
	if err := c.write(id, data); err != nil {
		return nil, err
	}
	return &storage.Pin{ContentAddress: id.String(), Size: int64(len(data)), Timestamp: c.now().UTC()}, nil
}

func (c *CAS) write(id cid.Cid, data []byte) error {
	path := c.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if os.IsExist(err) {
		existing, rerr := c.read(id)
		if rerr != nil || !bytes.Equal(existing, data) {
			return ErrImmutable
		}
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

// Get implements storage.Provider.
func (c *CAS) Get(_ context.Context, addr string, w io.Writer) (int64, error) {
	id, err := cid.Decode(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid content address %q: %w", addr, err)
	}
	data, err := c.read(id)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(data)
	return int64(n), err
}

// Has reports whether an object exists at addr.
func (c *CAS) Has(addr string) bool {
	id, err := cid.Decode(addr)
	if err != nil {
		return false
	}
	_, err = os.Stat(c.pathFor(id))
	return err == nil
}

func (c *CAS) read(id cid.Cid) ([]byte, error) {
	b, err := os.ReadFile(c.pathFor(id))
	if os.IsNotExist(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	got, err := Address(b)
	if err != nil {
		return nil, err
	}
	if !got.Equals(id) {
		return nil, ErrCIDMismatch
	}
	return b, nil
}

// Ping implements storage.Provider: the root must be a writable directory.
func (c *CAS) Ping(context.Context) error {
	f, err := os.CreateTemp(c.root, ".ping-")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func (c *CAS) pathFor(id cid.Cid) string {
	s := id.String()
	if len(s) < 2 {
		return filepath.Join(c.root, s)
	}
	return filepath.Join(c.root, s[len(s)-2:], s)
}
