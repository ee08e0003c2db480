// ABOUTME: Charm KV backend for the deficit Store, synced to Charm Cloud.
// ABOUTME: Provides thread-safe initialization and automatic sync after writes.
package charm

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/charmbracelet/charm/client"
	"github.com/charmbracelet/charm/kv"
	"github.com/dgraph-io/badger/v3"

	"github.com/harperreed/deficit/internal/storage"
)

const (
	dbName    = "deficit"
	charmHost = "charm.2389.dev"
)

// ErrReadOnly is returned by writes while another process holds the database lock.
var ErrReadOnly = errors.New("cannot write: database is locked by another process (MCP server?)")

var (
	globalClient *Client
	clientOnce   sync.Once
	clientErr    error
)

// Client implements storage.Store on top of a Charm KV database.
type Client struct {
	kv       *kv.KV
	autoSync bool
	mu       sync.RWMutex
}

var _ storage.Store = (*Client)(nil)

// InitClient initializes the global Charm client.
// Thread-safe; can be called multiple times.
func InitClient() (*Client, error) {
	clientOnce.Do(func() {
		// Set server before opening KV
		if err := os.Setenv("CHARM_HOST", charmHost); err != nil {
			clientErr = err
			return
		}

		db, err := kv.OpenWithDefaultsFallback(dbName)
		if err != nil {
			clientErr = fmt.Errorf("%w: open charm kv: %w", storage.ErrUnavailable, err)
			return
		}

		globalClient = &Client{
			kv:       db,
			autoSync: true,
		}

		// Pull remote data on startup (skip in read-only mode)
		if !db.IsReadOnly() {
			_ = db.Sync()
		}
	})

	return globalClient, clientErr
}

// Close closes the KV database connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.kv != nil {
		return c.kv.Close()
	}
	return nil
}

// IsReadOnly returns true if the database is open in read-only mode.
// This happens when another process (like an MCP server) holds the lock.
func (c *Client) IsReadOnly() bool {
	return c.kv.IsReadOnly()
}

// Sync synchronizes local state with Charm Cloud.
func (c *Client) Sync() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.kv.IsReadOnly() {
		return nil
	}
	return c.kv.Sync()
}

func (c *Client) syncIfEnabled() {
	if c.autoSync && !c.kv.IsReadOnly() {
		_ = c.kv.Sync()
	}
}

// SetAutoSync enables or disables automatic sync after writes.
func (c *Client) SetAutoSync(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoSync = enabled
}

// ID returns the Charm user ID for the current account.
func (c *Client) ID() (string, error) {
	cc, err := client.NewClientWithDefaults()
	if err != nil {
		return "", fmt.Errorf("create charm client: %w", err)
	}
	return cc.ID()
}

// Reset wipes local data and rebuilds from Charm Cloud.
func (c *Client) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kv.Reset()
}

// Wipe deletes the deficit database locally and every cloud backup of it.
// It returns how many cloud backups and local files were removed.
func Wipe() (cloud, local int, err error) {
	if err := os.Setenv("CHARM_HOST", charmHost); err != nil {
		return 0, 0, err
	}
	result, err := kv.Wipe(dbName)
	if err != nil {
		return 0, 0, err
	}
	return result.CloudBackupsDeleted, result.LocalFilesDeleted, nil
}

func (c *Client) Get(key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	val, err := c.kv.Get([]byte(key))
	if err != nil {
		return nil, mapError("get", key, err)
	}
	return val, nil
}

func (c *Client) Set(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kv.IsReadOnly() {
		return ErrReadOnly
	}
	if err := c.kv.Set([]byte(key), value); err != nil {
		return mapError("set", key, err)
	}
	c.syncIfEnabled()
	return nil
}

func (c *Client) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kv.IsReadOnly() {
		return ErrReadOnly
	}
	if err := c.kv.Delete([]byte(key)); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return mapError("delete", key, err)
	}
	c.syncIfEnabled()
	return nil
}

// Entries lists every key with the prefix. Charm KV has no ranged iterator,
// so keys are filtered and sorted client side.
func (c *Client) Entries(prefix string) ([]storage.Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys, err := c.kv.Keys()
	if err != nil {
		return nil, mapError("keys", prefix, err)
	}

	matched := filterKeys(keys, prefix)
	entries := make([]storage.Entry, 0, len(matched))
	for _, key := range matched {
		val, err := c.kv.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return nil, mapError("get", key, err)
		}
		entries = append(entries, storage.Entry{Key: key, Value: val})
	}
	return entries, nil
}

// filterKeys keeps keys starting with prefix, in ascending order.
func filterKeys(keys [][]byte, prefix string) []string {
	p := []byte(prefix)
	var out []string
	for _, key := range keys {
		if bytes.HasPrefix(key, p) {
			out = append(out, string(key))
		}
	}
	sort.Strings(out)
	return out
}

func mapError(op, key string, err error) error {
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("%w: charm %s %q: %w", storage.ErrUnavailable, op, key, err)
}
