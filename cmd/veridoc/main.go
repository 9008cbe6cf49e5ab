// Command veridoc validates and remediates documents against the registered
// compliance modules. All subsystems are constructed once at startup and
// injected explicitly; there are no lazily-initialized singletons.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/veridoc-labs/veridoc/core/pkg/batch"
	"github.com/veridoc-labs/veridoc/core/pkg/config"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run dispatches subcommands. Split from main for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	cfg := config.Load()

	switch args[1] {
	case "validate":
		return runValidate(args[2:], cfg, stdout, stderr)
	case "synthesize":
		return runSynthesize(args[2:], cfg, stdout, stderr)
	case "batch":
		return runBatch(args[2:], cfg, stdout, stderr)
	case "audit":
		return runAudit(args[2:], cfg, stdout, stderr)
	default:
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: veridoc <validate|synthesize|batch|audit> [flags]")
}

func runValidate(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "document file ('-' for stdin)")
	docType := fs.String("type", "", "document type tag")
	modules := fs.String("modules", "", "comma-separated module ids (default: all)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	text, err := readInput(*file)
	if err != nil {
		fmt.Fprintln(stderr, "veridoc:", err)
		return 1
	}

	core, err := buildCore(context.Background(), cfg)
	if err != nil {
		fmt.Fprintln(stderr, "veridoc:", err)
		return 1
	}
	defer core.Close()

	result, err := core.Orchestrator.ValidateText(context.Background(), text, *docType, splitCSV(*modules))
	if err != nil {
		fmt.Fprintln(stderr, "veridoc:", err)
		return 1
	}
	return writeJSON(stdout, stderr, result)
}

func runSynthesize(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("synthesize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "document file ('-' for stdin)")
	docType := fs.String("type", "", "document type tag")
	modules := fs.String("modules", "", "comma-separated module ids (default: all)")
	contextPairs := fs.String("context", "", "template context as key=value,key=value")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	text, err := readInput(*file)
	if err != nil {
		fmt.Fprintln(stderr, "veridoc:", err)
		return 1
	}

	core, err := buildCore(context.Background(), cfg)
	if err != nil {
		fmt.Fprintln(stderr, "veridoc:", err)
		return 1
	}
	defer core.Close()

	ctx := context.Background()
	moduleIDs := splitCSV(*modules)
	validation, err := core.Orchestrator.ValidateText(ctx, text, *docType, moduleIDs)
	if err != nil {
		fmt.Fprintln(stderr, "veridoc:", err)
		return 1
	}

	result, err := core.Engine.Synthesize(ctx, text, validation, parsePairs(*contextPairs), moduleIDs)
	if err != nil {
		fmt.Fprintln(stderr, "veridoc:", err)
		return 1
	}
	return writeJSON(stdout, stderr, result)
}

func runBatch(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.String("file", "", "JSON file with an array of batch items ('-' for stdin)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	raw, err := readInput(*file)
	if err != nil {
		fmt.Fprintln(stderr, "veridoc:", err)
		return 1
	}
	var items []batch.Item
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		fmt.Fprintln(stderr, "veridoc: parse batch:", err)
		return 1
	}

	core, err := buildCore(context.Background(), cfg)
	if err != nil {
		fmt.Fprintln(stderr, "veridoc:", err)
		return 1
	}
	defer core.Close()

	processor := batch.NewProcessor(core.Orchestrator, core.Engine, &batch.Config{
		MaxConcurrency: cfg.BatchConcurrency,
		RatePerSecond:  cfg.BatchRatePerSec,
	})
	outcomes := processor.Process(context.Background(), items)
	return writeJSON(stdout, stderr, outcomes)
}

func runAudit(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verify := fs.Bool("verify", false, "verify the audit hash chain")
	export := fs.Bool("export", false, "export the audit trail as a zip pack")
	out := fs.String("out", "audit-pack.zip", "export destination file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	core, err := buildCore(context.Background(), cfg)
	if err != nil {
		fmt.Fprintln(stderr, "veridoc:", err)
		return 1
	}
	defer core.Close()

	if core.AuditStore == nil {
		fmt.Fprintln(stderr, "veridoc: no audit store configured (set AUDIT_DB_PATH)")
		return 1
	}

	ctx := context.Background()
	if *verify {
		if err := core.AuditStore.VerifyChain(ctx); err != nil {
			fmt.Fprintln(stderr, "veridoc: chain verification failed:", err)
			return 1
		}
		fmt.Fprintln(stdout, "audit chain verified")
	}
	if *export {
		pack, data, err := core.Exporter.Export(ctx, time.Time{}, time.Time{})
		if err != nil {
			fmt.Fprintln(stderr, "veridoc: export failed:", err)
			return 1
		}
		if err := os.WriteFile(*out, data, 0o600); err != nil {
			fmt.Fprintln(stderr, "veridoc: write pack:", err)
			return 1
		}
		return writeJSON(stdout, stderr, pack)
	}
	return 0
}

func readInput(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("missing -file")
	}
	if path == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parsePairs(s string) map[string]string {
	pairs := make(map[string]string)
	for _, part := range strings.Split(s, ",") {
		if key, value, ok := strings.Cut(part, "="); ok {
			pairs[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return pairs
}

func writeJSON(stdout, stderr io.Writer, v any) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(stderr, "veridoc:", err)
		return 1
	}
	return 0
}
