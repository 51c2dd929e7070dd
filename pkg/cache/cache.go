package cache

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/xhad/foiabias/internal/errs"
	"github.com/xhad/foiabias/internal/models"
	"github.com/xhad/foiabias/pkg/logger"
)

// Fetcher opens a raw byte stream for a URL. The API client satisfies this,
// which keeps downloads behind the shared rate gate.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, int64, error)
}

type Config struct {
	Dir     string
	Fetcher Fetcher
	// Workers bounds the download pool used by ResolveAll.
	Workers int
}

// DownloadCache resolves file descriptors to local paths, downloading each
// unique file identity at most once per process. Resolution of the same
// identity from concurrent workers is serialized per identity.
type DownloadCache struct {
	config Config
	logger *log.Logger

	mu      sync.Mutex
	entries map[string]string      // file identity -> local path
	locks   map[string]*sync.Mutex // per-identity download locks
}

func NewWithConfig(config Config) (*DownloadCache, error) {
	if config.Dir == "" {
		config.Dir = "data/cache"
	}
	if config.Workers == 0 {
		config.Workers = 4
	}
	if err := os.MkdirAll(config.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &DownloadCache{
		config:  config,
		logger:  logger.New("DownloadCache"),
		entries: make(map[string]string),
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Resolve materializes one file descriptor. Order of preference: a path
// already carried by the descriptor, the in-memory cache, a complete file at
// the deterministic target path, and finally a network download.
func (dc *DownloadCache) Resolve(ctx context.Context, requestID string, fd *models.FileDescriptor) (string, error) {
	if fd.LocalPath != "" {
		if _, err := os.Stat(fd.LocalPath); err == nil {
			return fd.LocalPath, nil
		}
	}

	identity := identityOf(requestID, fd)
	lock := dc.lockFor(identity)
	lock.Lock()
	defer lock.Unlock()

	if p, ok := dc.lookup(identity); ok && dc.complete(p, fd.SizeHint) {
		fd.LocalPath = p
		return p, nil
	}

	target := filepath.Join(dc.config.Dir, dc.filename(requestID, fd))
	if dc.complete(target, fd.SizeHint) {
		dc.record(identity, target)
		fd.LocalPath = target
		return target, nil
	}
	if _, err := os.Stat(target); err == nil {
		// Present but failed the completeness check: treat as a miss.
		dc.logger.Printf("%v: %s, redownloading", errs.ErrCacheInconsistent, target)
	}

	if err := dc.download(ctx, fd.URL, target); err != nil {
		return "", err
	}
	dc.record(identity, target)
	fd.LocalPath = target
	return target, nil
}

// ResolveAll resolves every file of a record through a bounded worker pool.
// A failed download is logged and skipped; it never fails the record.
func (dc *DownloadCache) ResolveAll(ctx context.Context, rec *models.DocumentRecord) []string {
	for i := range rec.Files {
		if rec.Files[i].ID == "" {
			// Positional fallback identity for sources that do not assign
			// ids, scoped to the record so anonymous files from unrelated
			// records never alias each other.
			rec.Files[i].ID = fmt.Sprintf("%s_f%d", rec.RequestID, i)
		}
	}

	paths := make([]string, len(rec.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dc.config.Workers)
	for i := range rec.Files {
		i := i
		g.Go(func() error {
			fd := &rec.Files[i]
			if fd.URL == "" && fd.LocalPath == "" {
				return nil
			}
			p, err := dc.Resolve(gctx, rec.RequestID, fd)
			if err != nil {
				dc.logger.Printf("download failed for %s file %s: %v", rec.RequestID, fd.ID, err)
				return nil
			}
			paths[i] = p
			return nil
		})
	}
	g.Wait()

	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (dc *DownloadCache) download(ctx context.Context, rawURL, target string) error {
	body, _, err := dc.config.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp := target + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, target)
}

// complete reports whether a file on disk can be trusted: it exists, is
// non-empty, and matches the expected size when one is known.
func (dc *DownloadCache) complete(path string, sizeHint int64) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return false
	}
	if sizeHint > 0 && info.Size() != sizeHint {
		return false
	}
	return true
}

func (dc *DownloadCache) filename(requestID string, fd *models.FileDescriptor) string {
	if fd.Filename != "" {
		return sanitize(fd.Filename)
	}
	return sanitize(fmt.Sprintf("%s_%s%s", requestID, fd.ID, inferSuffix(fd.URL, fd.Filetype)))
}

func (dc *DownloadCache) lockFor(identity string) *sync.Mutex {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if l, ok := dc.locks[identity]; ok {
		return l
	}
	l := &sync.Mutex{}
	dc.locks[identity] = l
	return l
}

func (dc *DownloadCache) lookup(identity string) (string, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	p, ok := dc.entries[identity]
	return p, ok
}

func (dc *DownloadCache) record(identity, path string) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	dc.entries[identity] = path
}

func identityOf(requestID string, fd *models.FileDescriptor) string {
	if fd.ID != "" {
		return fd.ID
	}
	return requestID + "|" + fd.URL
}

// inferSuffix picks a file extension: URL path extension first, then the
// declared MIME/filetype string, then a generic binary suffix.
func inferSuffix(rawURL, filetype string) string {
	trimmed := rawURL
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	if ext := strings.ToLower(path.Ext(trimmed)); ext != "" {
		return ext
	}

	switch strings.ToLower(filetype) {
	case "pdf", "application/pdf":
		return ".pdf"
	case "text/plain":
		return ".txt"
	case "html":
		return ".html"
	}
	return ".bin"
}

func sanitize(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	if len(name) > 150 {
		ext := path.Ext(name)
		name = name[:150-len(ext)] + ext
	}
	return name
}
