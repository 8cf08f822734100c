// Package index builds a database from a music tree: sequential discovery,
// parallel metadata extraction, then single-threaded interning so string
// tables stay deterministic and lock-free.
package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/sourcegraph/conc/pool"

	"github.com/thornview/tagcache/tagcache/metadata"
	"github.com/thornview/tagcache/tagcache/model"
	"github.com/thornview/tagcache/tagcache/schema"
)

// IgnoreFileName at the music root excludes paths from indexing,
// gitignore syntax.
const IgnoreFileName = ".tcignore"

// DefaultExtensions are the audio file types submitted to the reader.
var DefaultExtensions = []string{
	".mp3", ".ogg", ".oga", ".flac", ".m4a", ".m4b", ".aac",
	".wav", ".wv", ".mpc", ".ape", ".wma", ".opus",
}

// Options configures one build.
type Options struct {
	MusicRoot    string
	HostPrefix   string // stripped from host paths; defaults to MusicRoot
	DevicePrefix string // prepended to produce device-visible filenames
	GenreMap     metadata.GenreMap
	Workers      int      // 0 picks a CPU-derived count
	Extensions   []string // nil means DefaultExtensions
	CacheDSN     string   // optional sqlite scan cache; "" disables
	Reader       metadata.Reader
	Serial       uint32
	Progress     func(done, total int) // optional, called from workers
}

// MetadataError is one skipped file: the pipeline records it and moves on.
type MetadataError struct {
	Path string
	Err  error
}

func (e MetadataError) Error() string {
	return fmt.Sprintf("metadata failure on %s: %v", e.Path, e.Err)
}

func (e MetadataError) Unwrap() error { return e.Err }

// Report summarises the non-fatal side of a build.
type Report struct {
	Walked      int
	Skipped     []MetadataError
	CacheHits   int
	CacheMisses int
}

type job struct {
	path  string
	mtime int64
	size  int64
}

// Build walks opts.MusicRoot, extracts metadata with a worker pool, and
// interns the results into a fresh Database. Entry order equals walk order
// regardless of worker completion order: the walker numbers jobs and each
// worker slots its result into a preallocated vector.
func Build(ctx context.Context, opts Options) (*model.Database, *Report, error) {
	if opts.MusicRoot == "" {
		return nil, nil, fmt.Errorf("build: music root is required")
	}
	if opts.HostPrefix == "" {
		opts.HostPrefix = opts.MusicRoot
	}
	if opts.Workers <= 0 {
		// I/O bound per file; same sizing the traverser settles on.
		opts.Workers = min(max(runtime.NumCPU()*2, 4), 32)
	}
	if opts.Extensions == nil {
		opts.Extensions = DefaultExtensions
	}
	if opts.Reader == nil {
		opts.Reader = metadata.TagReader{}
	}

	adapter := &metadata.Adapter{
		Reader: opts.Reader,
		Rewrite: metadata.PathRewrite{
			HostPrefix:   opts.HostPrefix,
			DevicePrefix: opts.DevicePrefix,
		},
		Genres: opts.GenreMap,
	}

	jobs, err := discover(opts.MusicRoot, opts.Extensions)
	if err != nil {
		return nil, nil, err
	}

	report := &Report{Walked: len(jobs)}

	var cache *scanCache
	var cached map[string]cachedRecord
	if opts.CacheDSN != "" {
		cache, err = openScanCache(opts.CacheDSN)
		if err != nil {
			return nil, nil, err
		}
		defer cache.Close()
		if cached, err = cache.snapshot(); err != nil {
			return nil, nil, err
		}
	}

	// Parallel extraction. results[i] belongs to jobs[i] alone, so workers
	// never contend; ordering is restored for free.
	results := make([]*metadata.Record, len(jobs))
	failures := make([]error, len(jobs))
	var done atomic.Int64
	var hits, misses atomic.Int64

	start := time.Now()
	p := pool.New().WithMaxGoroutines(opts.Workers).WithContext(ctx)
	for i, j := range jobs {
		i, j := i, j
		p.Go(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if row, ok := cached[j.path]; ok && row.MTime == j.mtime && row.Size == j.size {
				results[i] = row.Record
				hits.Add(1)
			} else {
				rec, err := adapter.Extract(j.path)
				if err != nil {
					failures[i] = err
				} else {
					results[i] = rec
				}
				misses.Add(1)
			}

			if opts.Progress != nil {
				opts.Progress(int(done.Add(1)), len(jobs))
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, nil, err
	}

	report.CacheHits = int(hits.Load())
	report.CacheMisses = int(misses.Load())

	// Sequential collection over the reordered results: interning here is
	// what makes id assignment, and therefore file contents, deterministic.
	db := model.New()
	db.Serial = opts.Serial
	for i, rec := range results {
		if rec == nil {
			if failures[i] != nil {
				report.Skipped = append(report.Skipped, MetadataError{
					Path: jobs[i].path,
					Err:  failures[i],
				})
				slog.Warn("skipping unreadable file",
					"path", jobs[i].path,
					"error", failures[i])
			}
			continue
		}
		entry := model.NewEntry()
		for t := 0; t < schema.NumFileTags; t++ {
			if rec.Strings[t] != "" {
				entry.Strings[t] = db.Tables[t].Intern(rec.Strings[t])
			}
		}
		entry.Numbers = rec.Numbers
		entry.Flag = rec.Flag
		db.Entries = append(db.Entries, entry)
	}

	if cache != nil {
		if err := cache.store(jobs, results, cached); err != nil {
			// The cache is an accelerator, not a product; a failed
			// writeback costs the next run time, not correctness.
			slog.Warn("scan cache writeback failed", "error", err)
		}
	}

	slog.Info("build collected",
		"files", len(jobs),
		"entries", db.Len(),
		"skipped", len(report.Skipped),
		"cache_hits", report.CacheHits,
		"duration_ms", time.Since(start).Milliseconds())

	return db, report, nil
}

// discover enumerates regular files under root with a matching extension,
// in walk order. Order is preserved all the way into the master index.
func discover(root string, extensions []string) ([]job, error) {
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = true
	}

	var matcher *ignore.GitIgnore
	if m, err := ignore.CompileIgnoreFile(filepath.Join(root, IgnoreFileName)); err == nil {
		matcher = m
	}

	var jobs []job
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if matcher != nil && path != root && matcher.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if matcher != nil && matcher.MatchesPath(rel) {
			slog.Debug("ignoring file", "path", path)
			return nil
		}
		if !exts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}
		jobs = append(jobs, job{
			path:  path,
			mtime: info.ModTime().Unix(),
			size:  info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}
