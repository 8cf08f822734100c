package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v2"

	internal "github.com/thornview/tagcache/tagcache"
	"github.com/thornview/tagcache/tagcache/config"
	"github.com/thornview/tagcache/tagcache/db"
	"github.com/thornview/tagcache/tagcache/index"
	"github.com/thornview/tagcache/tagcache/metadata"
	"github.com/thornview/tagcache/tagcache/migrate"
	"github.com/thornview/tagcache/tagcache/schema"
)

var (
	doBuild      bool
	doPrint      bool
	musicRoot    string
	devicePrefix string
	outDir       string
	oldDBDir     string
	genreFile    string
	cacheDSN     string
	configPath   string
	workers      int
	serial       uint
	noCache      bool
	noProgress   bool
	debugMode    bool
)

func init() {
	flag.BoolVar(&doBuild, "build", false, "build a database from a music directory")
	flag.BoolVar(&doPrint, "print", false, "load a database directory and print its contents")
	flag.StringVar(&musicRoot, "root", "", "music directory to index")
	flag.StringVar(&devicePrefix, "device-prefix", "", "path prefix of the music directory as the device sees it")
	flag.StringVar(&outDir, "out", "", "database directory to write (or to print with -print)")
	flag.StringVar(&oldDBDir, "migrate-from", "", "old database directory to copy play statistics from")
	flag.StringVar(&genreFile, "genre-file", "", "YAML genre canonicalisation map")
	flag.StringVar(&cacheDSN, "cache", "", "sqlite scan cache path")
	flag.StringVar(&configPath, "config", "", "config file path")
	flag.IntVar(&workers, "workers", 0, "metadata extraction workers (0 = auto)")
	flag.UintVar(&serial, "serial", 0, "build serial stamped into file headers")
	flag.BoolVar(&noCache, "no-cache", false, "disable the scan cache")
	flag.BoolVar(&noProgress, "no-progress", false, "disable the progress bar")
	flag.BoolVar(&debugMode, "d", false, "enable debug logging")
	flag.BoolVar(&debugMode, "debug", false, "enable debug logging")
}

func main() {
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debugMode {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log := internal.GetLogger().With().Str("run_id", uuid.NewString()).Logger()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	applyConfig(cfg)

	switch {
	case doPrint:
		if err := printDatabase(outDir); err != nil {
			log.Fatal().Err(err).Msg("print failed")
		}
	case doBuild:
		if err := build(log); err != nil {
			log.Fatal().Err(err).Msg("build failed")
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// applyConfig fills in flags the user left unset from the config file.
func applyConfig(cfg *config.Config) {
	tc := cfg.Tagcache
	if musicRoot == "" {
		musicRoot = tc.MusicRoot
	}
	if devicePrefix == "" {
		devicePrefix = tc.DevicePrefix
	}
	if outDir == "" {
		outDir = tc.OutputDir
	}
	if genreFile == "" {
		genreFile = tc.GenreFile
	}
	if cacheDSN == "" {
		cacheDSN = tc.CacheDSN
	}
	if workers == 0 {
		workers = tc.Workers
	}
}

func build(log zerolog.Logger) error {
	if musicRoot == "" || outDir == "" {
		return fmt.Errorf("-build requires -root and -out")
	}

	var genres metadata.GenreMap
	if genreFile != "" {
		var err error
		if genres, err = metadata.LoadGenreMap(genreFile); err != nil {
			return err
		}
		log.Info().Int("mappings", len(genres)).Str("file", genreFile).Msg("genre map loaded")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := index.Options{
		MusicRoot:    musicRoot,
		DevicePrefix: devicePrefix,
		GenreMap:     genres,
		Workers:      workers,
		Serial:       uint32(serial),
	}
	if !noCache {
		opts.CacheDSN = cacheDSN
	}
	if !noProgress {
		opts.Progress = newProgress()
	}

	built, report, err := index.Build(ctx, opts)
	if err != nil {
		return err
	}
	for _, skip := range report.Skipped {
		log.Warn().Str("path", skip.Path).Err(skip.Err).Msg("file skipped")
	}
	log.Info().
		Int("walked", report.Walked).
		Int("entries", built.Len()).
		Int("skipped", len(report.Skipped)).
		Int("cache_hits", report.CacheHits).
		Msg("index built")

	if oldDBDir != "" {
		old, err := db.ParseDatabase(oldDBDir)
		if err != nil {
			return fmt.Errorf("load old database: %w", err)
		}
		migrate.Stats(old, built)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", outDir, err)
	}
	return db.WriteDatabase(built, outDir, db.WriteOptions{Serial: uint32(serial)})
}

// newProgress adapts the pipeline's per-file callback onto a progress bar.
// Workers report concurrently; the bar is not.
func newProgress() func(done, total int) {
	var mu sync.Mutex
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = progressbar.New(total)
		}
		bar.Add(1)
	}
}

func printDatabase(dir string) error {
	if dir == "" {
		return fmt.Errorf("-print requires -out")
	}
	d, err := db.ParseDatabase(dir)
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d entries, serial %d\n", dir, d.Len(), d.Serial)
	for _, tag := range schema.FileTags() {
		fmt.Printf("  %-12s %d strings\n", tag, d.Tables[tag].Len())
	}
	for i := range d.Entries {
		fmt.Printf("[%d] %s — %s (%s)\n", i,
			d.String(i, schema.Artist),
			d.String(i, schema.Title),
			d.String(i, schema.Filename))
		if flags := schema.FlagNames(d.Entries[i].Flag); len(flags) > 0 {
			fmt.Printf("     flags: %v\n", flags)
		}
		if pc := d.Number(i, schema.PlayCount); pc > 0 {
			fmt.Printf("     playcount: %d\n", pc)
		}
	}
	return nil
}
