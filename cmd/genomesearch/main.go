// Package main is the genomesearch CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/genomesearch/internal/auth"
	"github.com/hyperjump/genomesearch/internal/cli"
	"github.com/hyperjump/genomesearch/internal/config"
	"github.com/hyperjump/genomesearch/internal/indexer"
	"github.com/hyperjump/genomesearch/internal/models"
	"github.com/hyperjump/genomesearch/internal/search"
	"github.com/hyperjump/genomesearch/internal/server"
	"github.com/hyperjump/genomesearch/internal/storage"
	"github.com/hyperjump/genomesearch/internal/watcher"
	"github.com/hyperjump/genomesearch/internal/workspace"
	"github.com/hyperjump/genomesearch/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/genomesearch/config.yaml"
	defaultServerURL  = "http://localhost:5000"
	tokenEnv          = "KB_AUTH_TOKEN"
)

// loadConfig loads config from path. When path is the default and a
// config.yaml exists in the current directory, that file is used instead.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "region":
		runRegion()
	case "contigs":
		runContigs()
	case "index":
		runIndex()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("genomesearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (index builds, object reloads, requests)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode, zap.String("service", server.ServiceName), zap.String("version", version))
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if components.DirStore != nil {
		watchSvc := watcher.New(components.DirStore,
			watcher.WithLogger(logger),
			watcher.WithDebounce(cfg.Watch.Debounce()),
		)
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	if len(cfg.Index.WarmRefs) > 0 {
		go func() {
			start := time.Now()
			ready, err := components.Engine.Warm(ctx, cfg.Index.WarmRefs)
			if err != nil {
				logger.Warn("warm-up incomplete", zap.Int("ready", ready), zap.Error(err))
				return
			}
			logger.Info("warm-up done", zap.Int("ready", ready), zap.Duration("took", time.Since(start)))
		}()
	}

	var users server.UserResolver
	if components.Auth != nil {
		users = components.Auth
	}
	srv := server.NewServer(components.Engine, users, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// queryFlags are shared by the commands that run a query.
type queryFlags struct {
	configPath *string
	serverURL  *string
	token      *string
	output     *string
}

func addQueryFlags(fs *flag.FlagSet) *queryFlags {
	return &queryFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path (direct mode)"),
		serverURL:  fs.String("server", defaultServerURL, "server URL (empty = query the object store directly)"),
		token:      fs.String("token", os.Getenv(tokenEnv), "auth token (default $"+tokenEnv+")"),
		output:     fs.String("output", "text", "output format: text, compact, or json"),
	}
}

func (q *queryFlags) format() cli.OutputFormat {
	format, err := cli.ParseFormat(*q.output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

// buildSearchQuery joins all positional args with spaces so multi-word
// queries work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front so that flag.Parse sees them.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// parseSort parses "feature_type,-start" into a sort spec. A leading "-"
// sorts that field descending.
func parseSort(s string) models.SortSpec {
	var spec models.SortSpec
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || part == "-" || part == "+" {
			continue
		}
		field := models.SortField{Field: part, Ascending: true}
		switch part[0] {
		case '-':
			field = models.SortField{Field: part[1:], Ascending: false}
		case '+':
			field.Field = part[1:]
		}
		spec = append(spec, field)
	}
	return spec
}

// numFoundHint converts a --num-found value to a hint; negative means unset.
func numFoundHint(n int64) *int64 {
	if n < 0 {
		return nil
	}
	return &n
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: genomesearch search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. An empty query matches every feature.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  genomesearch search --ref KBasePublicGenomesV5/kb|g.0 dehydrogenase
  genomesearch search --ref 1/2/3 --sort feature_type,-start --limit 20 kinase
  genomesearch search --server "" --ref 1/2/3 --output json
`)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	q := addQueryFlags(fs)
	ref := fs.String("ref", "", "genome reference (required)")
	start := fs.Int("start", 0, "offset of the first feature")
	limit := fs.Int("limit", 10, "number of features")
	sortBy := fs.String("sort", "", "sort fields, comma separated; prefix - for descending")
	numFound := fs.Int64("num-found", -1, "total from a previous page, skips the count")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if *ref == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format := q.format()
	params := &models.SearchParams{
		Ref:      *ref,
		Query:    buildSearchQuery(fs.Args()),
		SortBy:   parseSort(*sortBy),
		Start:    *start,
		Limit:    *limit,
		NumFound: numFoundHint(*numFound),
	}

	var result *models.SearchResult
	err := runQuery(q, func(c *remote) error {
		return c.post("/api/v1/search", params, &result)
	}, func(ctx context.Context, e *search.Engine) (err error) {
		result, err = e.Search(ctx, params)
		return err
	})
	exitOnError("Search failed", err)
	exitOnError("Output failed", cli.WriteSearchResults(os.Stdout, result, format))
}

func runRegion() {
	fs := flag.NewFlagSet("region", flag.ExitOnError)
	q := addQueryFlags(fs)
	ref := fs.String("ref", "", "genome reference (required)")
	contig := fs.String("contig", "", "contig id")
	regionStart := fs.Int64("region-start", 0, "first base of the window")
	regionLength := fs.Int64("region-length", 0, "window length in bases")
	pageStart := fs.Int("page-start", 0, "offset of the first feature")
	pageLimit := fs.Int("page-limit", 10, "number of features")
	numFound := fs.Int64("num-found", -1, "total from a previous page, skips the count")
	_ = fs.Parse(os.Args[2:])

	if *ref == "" {
		fmt.Fprintln(os.Stderr, "Usage: genomesearch region --ref <ref> --contig <id> --region-start <n> --region-length <n>")
		os.Exit(1)
	}
	format := q.format()
	params := &models.SearchRegionParams{
		Ref:               *ref,
		QueryContigID:     *contig,
		QueryRegionStart:  *regionStart,
		QueryRegionLength: *regionLength,
		PageStart:         *pageStart,
		PageLimit:         *pageLimit,
		NumFound:          numFoundHint(*numFound),
	}

	var result *models.SearchRegionResult
	err := runQuery(q, func(c *remote) error {
		return c.post("/api/v1/search_region", params, &result)
	}, func(ctx context.Context, e *search.Engine) (err error) {
		result, err = e.SearchRegion(ctx, params)
		return err
	})
	exitOnError("Region search failed", err)
	exitOnError("Output failed", cli.WriteRegionResults(os.Stdout, result, format))
}

func runContigs() {
	fs := flag.NewFlagSet("contigs", flag.ExitOnError)
	q := addQueryFlags(fs)
	ref := fs.String("ref", "", "genome or assembly reference (required)")
	start := fs.Int("start", 0, "offset of the first contig")
	limit := fs.Int("limit", 10, "number of contigs")
	sortBy := fs.String("sort", "", "sort fields, comma separated; prefix - for descending")
	numFound := fs.Int64("num-found", -1, "total from a previous page, skips the count")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if *ref == "" {
		fmt.Fprintln(os.Stderr, "Usage: genomesearch contigs --ref <ref> [flags] [query]")
		os.Exit(1)
	}
	format := q.format()
	params := &models.SearchContigsParams{
		Ref:      *ref,
		Query:    buildSearchQuery(fs.Args()),
		SortBy:   parseSort(*sortBy),
		Start:    *start,
		Limit:    *limit,
		NumFound: numFoundHint(*numFound),
	}

	var result *models.SearchContigsResult
	err := runQuery(q, func(c *remote) error {
		return c.post("/api/v1/search_contigs", params, &result)
	}, func(ctx context.Context, e *search.Engine) (err error) {
		result, err = e.SearchContigs(ctx, params)
		return err
	})
	exitOnError("Contig search failed", err)
	exitOnError("Output failed", cli.WriteContigResults(os.Stdout, result, format))
}

func runIndex() {
	if len(os.Args) < 3 {
		printIndexUsage()
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("index "+sub, flag.ExitOnError)
	q := addQueryFlags(fs)
	offset := fs.Int("offset", 0, "offset into the catalogue (list)")
	limit := fs.Int("limit", 100, "number of entries (list)")
	_ = fs.Parse(searchArgsReorder(os.Args[3:]))
	format := q.format()

	switch sub {
	case "list":
		var records []*models.IndexRecord
		err := runQuery(q, func(c *remote) error {
			var out struct {
				Indexes []*models.IndexRecord `json:"indexes"`
			}
			err := c.get("/api/v1/indexes?offset="+strconv.Itoa(*offset)+"&limit="+strconv.Itoa(*limit), &out)
			records = out.Indexes
			return err
		}, func(ctx context.Context, e *search.Engine) (err error) {
			records, err = e.ListIndexes(ctx, *offset, *limit)
			return err
		})
		exitOnError("List failed", err)
		exitOnError("Output failed", cli.WriteIndexes(os.Stdout, records, format))
	case "drop":
		if fs.NArg() != 1 {
			printIndexUsage()
			os.Exit(1)
		}
		key := fs.Arg(0)
		err := runQuery(q, func(c *remote) error {
			return c.delete("/api/v1/indexes/" + key)
		}, func(ctx context.Context, e *search.Engine) error {
			return e.DropIndex(ctx, key)
		})
		exitOnError("Drop failed", err)
		fmt.Printf("Dropped index %s\n", key)
	case "warm":
		if fs.NArg() == 0 {
			printIndexUsage()
			os.Exit(1)
		}
		refs := fs.Args()
		var ready int
		var warmErr error
		err := runQuery(q, func(c *remote) error {
			var out struct {
				Ready int    `json:"ready"`
				Error string `json:"error"`
			}
			if err := c.post("/api/v1/indexes/warm", map[string][]string{"refs": refs}, &out); err != nil {
				return err
			}
			ready = out.Ready
			if out.Error != "" {
				warmErr = errors.New(out.Error)
			}
			return nil
		}, func(ctx context.Context, e *search.Engine) error {
			ready, warmErr = e.Warm(ctx, refs)
			return nil
		})
		exitOnError("Warm failed", err)
		fmt.Printf("Indexed %d of %d genomes\n", ready, len(refs))
		exitOnError("Some genomes failed", warmErr)
	default:
		fmt.Printf("Unknown index command: %s\n", sub)
		printIndexUsage()
		os.Exit(1)
	}
}

func printIndexUsage() {
	fmt.Println(`Usage:
  genomesearch index list [--offset n] [--limit n]
  genomesearch index drop <key>
  genomesearch index warm <ref> [ref...]`)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	q := addQueryFlags(fs)
	_ = fs.Parse(os.Args[2:])
	format := q.format()

	var status *search.Status
	err := runQuery(q, func(c *remote) error {
		return c.get("/api/v1/status", &status)
	}, func(ctx context.Context, e *search.Engine) (err error) {
		status, err = e.Status(ctx)
		return err
	})
	exitOnError("Status failed", err)
	exitOnError("Output failed", cli.WriteStatus(os.Stdout, status, format))
}

// runQuery calls the server when --server is set and otherwise opens the
// configured stores and runs direct.
func runQuery(q *queryFlags, viaServer func(*remote) error, direct func(context.Context, *search.Engine) error) error {
	if *q.serverURL != "" {
		return viaServer(newRemote(*q.serverURL, *q.token))
	}

	cfg, _, err := loadConfig(*q.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer components.Close()

	ctx := context.Background()
	if *q.token != "" {
		ctx = auth.WithToken(ctx, *q.token)
	}
	return direct(ctx, components.Engine)
}

func exitOnError(prefix string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", prefix, err)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store    workspace.ObjectStore
	DirStore *workspace.DirStore
	Cache    *workspace.CachedStore
	Storage  storage.Storage
	Indexer  *indexer.Indexer
	Engine   *search.Engine
	Auth     *auth.Client
}

// Close releases the indexes, the catalogue and the object cache.
func (c *Components) Close() {
	if c.Indexer != nil {
		_ = c.Indexer.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}

	if cfg.Workspace.LocalDir != "" {
		dirStore, err := workspace.NewDirStore(cfg.Workspace.LocalDir, workspace.WithDirLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open object directory: %w", err)
		}
		c.DirStore = dirStore
		c.Store = dirStore
		logger.Info("serving objects from directory", zap.String("dir", cfg.Workspace.LocalDir))
	} else {
		c.Store = workspace.NewClient(cfg.Workspace.URL, cfg.Workspace.Timeout())
		logger.Info("serving objects from workspace", zap.String("url", cfg.Workspace.URL))
	}

	if cfg.Storage.ObjectCachePath != "" {
		cached, err := workspace.NewCachedStore(c.Store, cfg.Storage.ObjectCachePath, workspace.WithCacheLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to open object cache: %w", err)
		}
		c.Cache = cached
		c.Store = cached
	}

	st, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = st

	c.Indexer = indexer.NewIndexer(c.Store, st, cfg.Storage.GenomeIndexDir,
		indexer.WithLogger(logger),
		indexer.WithWarmPoolSize(cfg.Index.WarmPoolSize),
	)

	usage := storage.DatabaseFiles(cfg.Storage.DatabasePath)
	for _, p := range []string{cfg.Storage.GenomeIndexDir, cfg.Storage.ObjectCachePath} {
		if p != "" {
			usage = append(usage, p)
		}
	}
	c.Engine = search.NewEngine(c.Store, c.Indexer, st, cfg.Search,
		search.WithLogger(logger),
		search.WithDiskUsagePaths(usage...),
		search.WithVersion(version),
	)

	if cfg.Auth.URL != "" {
		c.Auth = auth.NewClient(cfg.Auth.URL, nil, cfg.Auth.TokenCacheSize, cfg.Auth.TokenCacheTTL())
	}
	return c, nil
}

func printUsage() {
	fmt.Println(`genomesearch - Feature, region and contig search over genome objects

Usage:
  genomesearch server [flags]              Start the JSON-RPC and REST server
  genomesearch search [flags] [query]      Search features of a genome
  genomesearch region [flags]              List features overlapping a contig window
  genomesearch contigs [flags] [query]     Search contigs of a genome or assembly
  genomesearch index <list|drop|warm>      Manage the index catalogue
  genomesearch status [flags]              Show catalogue and cache status
  genomesearch version                     Show version
  genomesearch help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/genomesearch/config.yaml)
  --debug            Enable debug logging

Query Flags (search, region, contigs, index, status):
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:5000). Use --server "" to query the object store directly.
  --token string     Auth token (default: $KB_AUTH_TOKEN)
  --output string    Output format: text, compact or json (default: text)

Search Flags:
  --ref string       Genome reference, e.g. 12/3/1 or MyWorkspace/MyGenome
  --start int        Offset of the first result
  --limit int        Number of results (default: 10)
  --sort string      Sort fields, e.g. feature_type,-start
  --num-found int    Total from a previous page, skips the count

Region Flags:
  --ref, --contig, --region-start, --region-length, --page-start, --page-limit, --num-found

Examples:
  genomesearch server
  genomesearch search --ref 1/2/3 dehydrogenase
  genomesearch region --ref 1/2/3 --contig kb|g.0.c.1 --region-start 1000000 --region-length 10000
  genomesearch contigs --ref 1/2/3 --sort -length
  genomesearch index warm 1/2/3 1/4/1
  genomesearch status --output json`)
}
