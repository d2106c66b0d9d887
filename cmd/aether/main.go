// Package main implements the aether CLI, a thin entrypoint wiring the
// relational, graph, and vector stores together with the orchestrator,
// retrieval engine, memory engine, analysis engine, and historian. Command
// parsing itself is deliberately minimal: flags select a workspace and a
// one-shot operation, mirroring the teacher's cobra root-command idiom
// (cmd/nerd/main.go) without the teacher's interactive chat surface, which
// is out of scope here.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"aether/internal/analysis"
	"aether/internal/config"
	"aether/internal/graphstore"
	"aether/internal/historian"
	"aether/internal/inference"
	"aether/internal/logging"
	"aether/internal/memory"
	"aether/internal/orchestrator"
	"aether/internal/parser"
	"aether/internal/relstore"
	"aether/internal/retrieval"
	"aether/internal/symbol"
	"aether/internal/vcsreader"
	"aether/internal/vectorstore"
)

var (
	workspace string
	verbose   bool
	logger    *zap.Logger
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "aether",
		Short: "AETHER - a local-first code-intelligence engine",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ws := workspace
			if ws == "" {
				var err error
				ws, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("resolve workspace: %w", err)
				}
			}
			abs, err := filepath.Abs(ws)
			if err != nil {
				return fmt.Errorf("resolve workspace: %w", err)
			}
			workspace = abs

			zcfg := zap.NewProductionConfig()
			if verbose {
				zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			logger, err = zcfg.Build()
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
			logging.CloseAll()
		},
	}

	root.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		indexCmd(),
		askCmd(),
		sirCmd(),
		couplingCmd(),
		driftCmd(),
		causalCmd(),
		healthCmd(),
		snapshotCmd(),
		verifyCmd(),
		timelineCmd(),
		whyChangedCmd(),
	)
	return root
}

// aetherDir returns the per-workspace state directory, creating it if
// absent, matching §6.1's on-disk layout.
func aetherDir() (string, error) {
	dir := filepath.Join(workspace, ".aether")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}

func loadConfig() (*config.Config, error) {
	dir, err := aetherDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	if err != nil {
		if os.IsNotExist(err) {
			return config.DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config.toml: %w", err)
	}
	return config.Decode(data)
}

// system bundles every long-lived collaborator a command might need, open
// for the duration of one CLI invocation.
type system struct {
	cfg         *config.Config
	relStore    *relstore.Store
	graphStore  graphstore.Store
	vectorStore vectorstore.Store
	vcs         *vcsreader.Reader
	embedGen    inference.EmbeddingGenerator
	retrieval   *retrieval.Engine
	memoryEng   *memory.Engine
	analyzer    *analysis.Analyzer
	historian   *historian.Historian
	orch        *orchestrator.Orchestrator
}

func openSystem(ctx context.Context) (*system, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	if err := logging.Initialize(workspace, cfg.Logging.DebugMode, cfg.Logging.Level, cfg.Logging.JSONFormat, cfg.Logging.Categories); err != nil {
		fmt.Fprintf(os.Stderr, "warning: file logging init failed: %v\n", err)
	}

	dir, err := aetherDir()
	if err != nil {
		return nil, nil, err
	}

	relStore, err := relstore.Open(filepath.Join(dir, "meta.sqlite"))
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){func() { relStore.Close() }}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	graphStore, err := graphstore.Open(cfg)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append(closers, func() { graphStore.Close() })

	vectorStore, err := vectorstore.Open(cfg, workspace)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	closers = append(closers, func() { vectorStore.Close() })

	sirGen, embedGen, err := buildAdapters(ctx, cfg)
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	retryingSirGen := inference.NewRetryingSirGenerator(sirGen, 3, 2.0, 60*time.Second)

	parsers := parser.NewRegistry()
	parsers.Register(parser.NewGoParser())
	parsers.Register(parser.NewPythonParser())
	parsers.Register(parser.NewTypeScriptParser())
	parsers.Register(parser.NewRustParser())

	orch := orchestrator.New(cfg, relStore, graphStore, vectorStore, parsers, retryingSirGen, embedGen, workspace)

	var vcs *vcsreader.Reader
	if r, err := vcsreader.Open(workspace); err == nil {
		vcs = r
		orch.SetVCSReader(r)
	}

	retrievalEngine := retrieval.New(cfg, relStore, graphStore, vectorStore, embedGen, nil)
	memoryEng := memory.New(relStore, vectorStore, embedGen, retrievalEngine)

	var analysisVCS analysis.VCSWalker
	if vcs != nil {
		analysisVCS = vcs
	}
	analyzer := analysis.New(cfg, relStore, graphStore, vectorStore, analysisVCS, memoryEng, embedGen).
		WithSIRGenerator(retryingSirGen, workspace)

	hist := historian.New(relStore)

	sys := &system{
		cfg: cfg, relStore: relStore, graphStore: graphStore, vectorStore: vectorStore,
		vcs: vcs, embedGen: embedGen, retrieval: retrievalEngine, memoryEng: memoryEng,
		analyzer: analyzer, historian: hist, orch: orch,
	}
	return sys, closeAll, nil
}

// buildAdapters selects the SIR and embedding generator implementations
// per §6.2's provider options, "auto" preferring the cloud API when its key
// env var resolves to a non-empty value, mock otherwise.
func buildAdapters(ctx context.Context, cfg *config.Config) (inference.SirGenerator, inference.EmbeddingGenerator, error) {
	sirProvider := resolveProvider(cfg.Inference.Provider, cfg.Inference.APIKeyEnv)
	var sirGen inference.SirGenerator
	switch sirProvider {
	case "cloud_api":
		gen, err := inference.NewGenAISirGenerator(ctx, os.Getenv(cfg.Inference.APIKeyEnv), cfg.Inference.Model)
		if err != nil {
			return nil, nil, err
		}
		sirGen = gen
	case "local_runtime":
		sirGen = inference.NewLocalRuntimeSirGenerator(cfg.Inference.Endpoint, cfg.Inference.Model)
	default:
		sirGen = inference.NewMockSirGenerator()
	}

	embedProvider := resolveProvider(cfg.Embeddings.Provider, cfg.Inference.APIKeyEnv)
	var embedGen inference.EmbeddingGenerator
	switch embedProvider {
	case "cloud_api":
		gen, err := inference.NewGenAIEmbeddingGenerator(ctx, os.Getenv(cfg.Inference.APIKeyEnv), cfg.Embeddings.Model, 0)
		if err != nil {
			return nil, nil, err
		}
		embedGen = gen
	case "local_runtime":
		embedGen = inference.NewLocalRuntimeEmbeddingGenerator(cfg.Embeddings.Endpoint, cfg.Embeddings.Model)
	default:
		embedGen = inference.NewMockEmbeddingGenerator(768)
	}

	return sirGen, embedGen, nil
}

func resolveProvider(provider, apiKeyEnv string) string {
	if provider != "auto" {
		return provider
	}
	if apiKeyEnv != "" && os.Getenv(apiKeyEnv) != "" {
		return "cloud_api"
	}
	return "mock"
}

// discoverSourceFiles walks the workspace collecting every path the parser
// registry recognizes, relative to workspace, skipping the .aether state
// directory and any VCS metadata directory.
func discoverSourceFiles(parsers *parser.Registry) ([]string, error) {
	var out []string
	err := filepath.Walk(workspace, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(workspace, path)
		if relErr != nil {
			return relErr
		}
		if info.IsDir() {
			base := filepath.Base(rel)
			if base == ".aether" || base == ".git" || base == "node_modules" || base == "vendor" {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := parsers.ParserFor(rel); ok {
			out = append(out, rel)
		}
		return nil
	})
	return out, err
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Index every recognized source file under the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sys, closeAll, err := openSystem(ctx)
			if err != nil {
				return err
			}
			defer closeAll()

			parsers := parser.NewRegistry()
			parsers.Register(parser.NewGoParser())
			parsers.Register(parser.NewPythonParser())
			parsers.Register(parser.NewTypeScriptParser())
			parsers.Register(parser.NewRustParser())

			paths, err := discoverSourceFiles(parsers)
			if err != nil {
				return err
			}

			results := sys.orch.IndexPaths(ctx, paths)
			fmt.Fprintf(os.Stdout, "indexed %d of %d discovered files\n", len(results), len(paths))

			if sys.vcs != nil {
				mined, err := sys.analyzer.MineCoupling()
				if err != nil {
					logging.Orchestrator("coupling mining failed: %v", err)
				} else {
					fmt.Fprintf(os.Stdout, "scanned %d commits for coupling\n", mined)
				}
			}
			return nil
		},
	}
}

func askCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Run a unified hybrid/lexical/semantic query over the indexed workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeAll, err := openSystem(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			resp, err := sys.retrieval.Ask(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum results to return")
	return cmd
}

func sirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sir [symbol-id|file-id|module-id]",
		Short: "Read a SIR at whichever level id identifies, aggregating file/module rollups on demand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeAll, err := openSystem(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			lookup, err := sys.relStore.GetSIR(args[0], sys.orch.Summarizer())
			if err != nil {
				return err
			}
			return printJSON(lookup)
		},
	}
}

func couplingCmd() *cobra.Command {
	var topN int
	cmd := &cobra.Command{
		Use:   "coupling [file]",
		Short: "List the top temporally coupled files for a given file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeAll, err := openSystem(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			pairs, err := sys.analyzer.TopCoupledFiles(args[0], topN)
			if err != nil {
				return err
			}
			return printJSON(pairs)
		},
	}
	cmd.Flags().IntVar(&topN, "top", 10, "Number of coupled files to return")
	return cmd
}

func driftCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drift",
		Short: "Run semantic drift, emerging-hub, cycle, orphan, and boundary-violation detection",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeAll, err := openSystem(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			results, err := sys.analyzer.AnalyzeDrift(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(results)
		},
	}
}

func causalCmd() *cobra.Command {
	var maxDepth, limit int
	var lookbackDays int
	cmd := &cobra.Command{
		Use:   "causal [symbol-id]",
		Short: "Rank upstream symbols whose recent SIR changes likely caused a target's current behavior",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeAll, err := openSystem(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			target, err := symbol.ParseSymbolID(args[0])
			if err != nil {
				return fmt.Errorf("parse symbol id: %w", err)
			}

			links, err := sys.analyzer.CausalChain(cmd.Context(), target, maxDepth, time.Duration(lookbackDays)*24*time.Hour, limit)
			if err != nil {
				return err
			}
			return printJSON(links)
		},
	}
	cmd.Flags().IntVar(&maxDepth, "max-depth", 5, "Maximum upstream traversal depth (clamped 1-10)")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum causal links to return")
	cmd.Flags().IntVar(&lookbackDays, "lookback-days", 30, "Lookback window in days")
	return cmd
}

func healthCmd() *cobra.Command {
	var topN int
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Print the graph-health dashboard: critical symbols, bottlenecks, cycles, orphans, hotspots",
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeAll, err := openSystem(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			dash, err := sys.analyzer.Dashboard(topN)
			if err != nil {
				return err
			}
			return printJSON(dash)
		},
	}
	cmd.Flags().IntVar(&topN, "top", 10, "Number of symbols per dashboard view")
	return cmd
}

func snapshotCmd() *cobra.Command {
	var scope, label string
	cmd := &cobra.Command{
		Use:   "snapshot [target]",
		Short: "Capture an intent baseline over a file or module scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeAll, err := openSystem(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			snap, err := sys.analyzer.Snapshot(scope, args[0], label)
			if err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "file", "Scope: file or module")
	cmd.Flags().StringVar(&label, "label", "", "Human-readable snapshot label")
	return cmd
}

func verifyCmd() *cobra.Command {
	var regenerate bool
	cmd := &cobra.Command{
		Use:   "verify [snapshot-id]",
		Short: "Compare a captured snapshot against current intent and classify drift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeAll, err := openSystem(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			report, err := sys.analyzer.Verify(cmd.Context(), args[0], regenerate)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().BoolVar(&regenerate, "regenerate-sir", false, "Regenerate SIR for changed symbols before comparing")
	return cmd
}

func timelineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timeline [symbol-id]",
		Short: "Print every historical SIR version for a symbol, ascending by creation time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeAll, err := openSystem(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			id, err := symbol.ParseSymbolID(args[0])
			if err != nil {
				return fmt.Errorf("parse symbol id: %w", err)
			}
			entries, err := sys.historian.Timeline(id)
			if err != nil {
				return err
			}
			return printJSON(entries)
		},
	}
}

func whyChangedCmd() *cobra.Command {
	var fromHash, toHash string
	cmd := &cobra.Command{
		Use:   "why [symbol-id]",
		Short: "Explain why a symbol's SIR changed, diffing two versions field by field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, closeAll, err := openSystem(cmd.Context())
			if err != nil {
				return err
			}
			defer closeAll()

			id, err := symbol.ParseSymbolID(args[0])
			if err != nil {
				return fmt.Errorf("parse symbol id: %w", err)
			}

			var report interface{}
			if fromHash != "" || toHash != "" {
				if fromHash == "" || toHash == "" {
					return fmt.Errorf("both --from and --to must be set together")
				}
				report, err = sys.historian.CompareVersions(id, fromHash, toHash)
			} else {
				report, err = sys.historian.WhyChanged(id)
			}
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().StringVar(&fromHash, "from", "", "Baseline sir_hash (use with --to)")
	cmd.Flags().StringVar(&toHash, "to", "", "Comparison sir_hash (use with --from)")
	return cmd
}
