package records

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nobletooth/detskip/pkg/scan"
	"github.com/nobletooth/detskip/pkg/storage"
)

// OutputSuffix is appended to an input file name to name its results file in RunDir.
const OutputSuffix = ".out"

// RunFile replays the records file at `inPath` and writes results to `outPath`; an empty `outPath` means stdout.
func RunFile(ctx context.Context, set storage.KeySet, inPath, outPath string, diag io.Writer) (_ Stats, err error) {
	in, err := os.Open(inPath)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to open records file: %w", err)
	}
	defer func() { _ = in.Close() }()

	var out io.Writer = os.Stdout
	if outPath != "" {
		file, createErr := os.Create(outPath)
		if createErr != nil {
			return Stats{}, fmt.Errorf("failed to create results file: %w", createErr)
		}
		defer func() {
			if closeErr := file.Close(); closeErr != nil {
				err = errors.Join(err, fmt.Errorf("failed to close results file: %w", closeErr))
			}
		}()
		out = file
	}

	stats, err := Run(ctx, set, in, out, diag)
	if err != nil {
		return stats, fmt.Errorf("%s: %w", inPath, err)
	}
	return stats, nil
}

// RunDir replays every regular file of `dir` whose name matches the glob `pattern`, each against a fresh set from
// `newSet`, writing results next to the input as `<name>.out`. Results files are never taken as inputs.
func RunDir(ctx context.Context, newSet func() (storage.KeySet, error), dir, pattern string, diag io.Writer,
) (Stats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to list records directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && !strings.HasSuffix(entry.Name(), OutputSuffix) {
			names = append(names, entry.Name())
		}
	}
	matches, err := scan.MatchGlob(pattern, slices.Values(names))
	if err != nil {
		return Stats{}, err
	}

	var total Stats
	for name := range matches {
		set, err := newSet()
		if err != nil {
			return total, fmt.Errorf("failed to build a key set for %s: %w", name, err)
		}
		inPath := filepath.Join(dir, name)
		stats, err := RunFile(ctx, set, inPath, inPath+OutputSuffix, diag)
		total.add(stats)
		if err != nil {
			return total, err
		}
		total.Files++
		slog.Info("Replayed records file.", "file", inPath, "records", stats.Records, "invalid", stats.Invalid)
	}
	return total, nil
}
