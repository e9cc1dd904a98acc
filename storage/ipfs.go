package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/collection-provisioning-backend/interfaces"
)

// IPFSBackend implements a storage backend on the mutable file system (MFS) of an IPFS node.
// Records live at {root}/{namespace}/{key}; the node pins the MFS tree.
type IPFSBackend struct {
	shell       *shell.Shell
	host        string
	port        string
	root        string
	log         *slog.Logger
	locationURI string
}

// NewIPFSBackend creates a new IPFS storage backend connected to the node API at host:port.
func NewIPFSBackend(host, port, root string, timeout time.Duration, log *slog.Logger) (*IPFSBackend, error) {
	apiURL := fmt.Sprintf("%s:%s", host, port)
	root = "/" + strings.Trim(root, "/")

	sh := shell.NewShell(apiURL)
	if timeout > 0 {
		sh.SetTimeout(timeout)
	}

	return &IPFSBackend{
		shell:       sh,
		host:        host,
		port:        port,
		root:        root,
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s%s?timeout=%s", apiURL, root, timeout),
	}, nil
}

// Fetch reads a record from MFS.
// Returns ErrContentNotFound if the file doesn't exist or ErrBackendUnavailable
// if the IPFS node is not accessible.
func (b *IPFSBackend) Fetch(ctx context.Context, ns interfaces.Namespace, key string) ([]byte, error) {
	start := time.Now()
	filePath := b.getMFSPath(ns, key)

	if !b.shell.IsUp() {
		b.log.Warn("IPFS node unavailable",
			slog.String("host", b.host),
			slog.String("port", b.port))
		return nil, interfaces.ErrBackendUnavailable
	}

	reader, err := b.shell.FilesRead(ctx, filePath)
	if err != nil {
		if isIPFSNotFound(err) {
			b.log.Debug("Record not found in IPFS",
				slog.String("path", filePath),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrContentNotFound
		}

		b.log.Error("Failed to read record from IPFS",
			slog.String("path", filePath),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to read record from IPFS: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}

	b.log.Debug("Fetched record from IPFS",
		slog.String("path", filePath),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Store writes a record to MFS, replacing any previous content.
func (b *IPFSBackend) Store(ctx context.Context, ns interfaces.Namespace, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if !b.shell.IsUp() {
		return interfaces.ErrBackendUnavailable
	}

	filePath := b.getMFSPath(ns, key)
	err := b.shell.FilesWrite(ctx, filePath, bytes.NewReader(data),
		shell.FilesWrite.Create(true),
		shell.FilesWrite.Parents(true),
		shell.FilesWrite.Truncate(true))
	if err != nil {
		return fmt.Errorf("failed to write record to IPFS: %w", err)
	}

	b.log.Debug("Stored record in IPFS",
		slog.String("path", filePath),
		slog.Int("size", len(data)))

	return nil
}

// List returns the file names in a namespace directory.
func (b *IPFSBackend) List(ctx context.Context, ns interfaces.Namespace) ([]string, error) {
	if !b.shell.IsUp() {
		return nil, interfaces.ErrBackendUnavailable
	}

	dir := path.Join(b.root, ns.String())
	entries, err := b.shell.FilesLs(ctx, dir)
	if err != nil {
		if isIPFSNotFound(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list records in IPFS: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, entry.Name)
	}
	sort.Strings(keys)
	return keys, nil
}

// Available checks if the IPFS node is accessible.
func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

// Name returns a unique identifier for this storage backend.
func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func (b *IPFSBackend) getMFSPath(ns interfaces.Namespace, key string) string {
	return path.Join(b.root, ns.String(), key)
}

func isIPFSNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "file does not exist") || strings.Contains(msg, "no link named")
}
