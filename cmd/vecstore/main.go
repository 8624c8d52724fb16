// Package main is the vecstore CLI entry point.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	vecstore "github.com/openbook/vecstore"
	"github.com/openbook/vecstore/config"
	"github.com/openbook/vecstore/internal/logging"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/vecstore/config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch command := os.Args[1]; command {
	case "add":
		runAdd()
	case "query":
		runQuery()
	case "count":
		runCount()
	case "reset":
		runReset()
	case "version", "--version", "-v":
		fmt.Printf("vecstore version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`vecstore - local vector store for RAG pipelines

Usage:
  vecstore add [flags] <text> [<text>...]   add texts (reads stdin lines when no args)
  vecstore query [flags] <query>            nearest-neighbor search
  vecstore count [flags]                    number of records in the collection
  vecstore reset [flags]                    drop and recreate the collection
  vecstore version                          print version

Flags:
  -config <path>   config file (default ` + defaultConfigPath + `)
  -debug           verbose logging
  add: -upsert     replace records with the same id instead of failing
  query: -k <n>    number of results (default 5)
`)
}

// loadConfig loads config from path. When path is the default, a
// config.yaml in the current directory takes precedence (for
// development); when neither exists, built-in defaults apply.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat("config.yaml"); err == nil {
			return config.Load("config.yaml")
		}
		if _, err := os.Stat(path); err != nil {
			return config.Default()
		}
	}
	return config.Load(path)
}

func openStore(configPath string, debug bool) (*vecstore.Store, *zap.Logger) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fatalf("load config: %v", err)
	}
	logger, err := logging.NewLogger(debug || cfg.Debug)
	if err != nil {
		fatalf("create logger: %v", err)
	}
	store, err := vecstore.New(*cfg, vecstore.WithLogger(logger))
	if err != nil {
		fatalf("open store: %v", err)
	}
	return store, logger
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "verbose logging")
	upsert := fs.Bool("upsert", false, "replace records with the same id")
	_ = fs.Parse(os.Args[2:])

	texts := fs.Args()
	if len(texts) == 0 {
		texts = readLines(os.Stdin)
	}
	if len(texts) == 0 {
		fatalf("nothing to add")
	}

	store, logger := openStore(*configPath, *debug)
	defer store.Close()
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	var (
		ids []string
		err error
	)
	if *upsert {
		ids, err = store.UpsertTexts(ctx, texts, nil, nil)
	} else {
		ids, err = store.AddTexts(ctx, texts, nil, nil)
	}
	if err != nil {
		fatalf("add: %v", err)
	}
	if err := store.Persist(ctx); err != nil {
		fatalf("persist: %v", err)
	}
	for i, id := range ids {
		fmt.Printf("%s  %s\n", id, truncate(texts[i], 60))
	}
	fmt.Printf("Added %d record(s) to %q\n", len(ids), store.Collection())
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "verbose logging")
	k := fs.Int("k", vecstore.DefaultNResults, "number of results")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fatalf("usage: vecstore query [flags] <query>")
	}
	query := fs.Arg(0)

	store, logger := openStore(*configPath, *debug)
	defer store.Close()
	defer func() { _ = logger.Sync() }()

	results, err := store.SimilaritySearch(context.Background(), query, *k, vecstore.QueryOptions{})
	if err != nil {
		fatalf("query: %v", err)
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, res := range results {
		fmt.Printf("%2d. [%.4f] %s\n", i+1, res.Distance, truncate(res.Document, 80))
		fmt.Printf("    id=%s", res.ID)
		if len(res.Metadata) > 0 {
			fmt.Printf(" metadata=%v", res.Metadata)
		}
		fmt.Println()
	}
}

func runCount() {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "verbose logging")
	_ = fs.Parse(os.Args[2:])

	store, logger := openStore(*configPath, *debug)
	defer store.Close()
	defer func() { _ = logger.Sync() }()

	n, err := store.Count(context.Background())
	if err != nil {
		fatalf("count: %v", err)
	}
	fmt.Printf("%d record(s) in %q\n", n, store.Collection())
}

func runReset() {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "verbose logging")
	_ = fs.Parse(os.Args[2:])

	store, logger := openStore(*configPath, *debug)
	defer store.Close()
	defer func() { _ = logger.Sync() }()

	if err := store.Reset(context.Background()); err != nil {
		fatalf("reset: %v", err)
	}
	fmt.Printf("Collection %q is now empty\n", store.Collection())
}

func readLines(r io.Reader) []string {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
