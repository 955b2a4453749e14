// Package records replays line-oriented operation records against a key set and writes one result line per record.
//
// Every non-blank input line is `OP KEY`, with OP one of INS, FIND and REM. The result line repeats the record
// when the operation had an effect and names the failure otherwise:
//
//	INS k  -> "INS k" if k was added, "DUP k" if it was already present.
//	FIND k -> "FIND k" if k is present, "NONE k" otherwise.
//	REM k  -> "REM k" if k was removed, "NONE k" if it was absent.
//
// Malformed lines and validation failures go to a separate diagnostic stream, so the result stream stays
// comparable line by line with a reference run.
package records

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nobletooth/detskip/pkg/storage"
	"github.com/nobletooth/detskip/pkg/utils"
)

var (
	validateEachRecord = flag.Bool("records_validate", true,
		"Validate the whole key set after every record; costs a full walk per record.")
	maxLineBytes = flag.Int("records_max_line_bytes", 1<<20, /*1 MiB*/
		"The longest record line accepted.")

	recordLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "record_lines_total",
		Help: "Total number of processed record lines by operation and outcome.",
	}, []string{
		"op",     // INS | FIND | REM | unknown
		"result", // hit | miss | malformed | error
	})
)

// Op is the operation a record applies to the set.
type Op string

const (
	OpInsert Op = "INS"
	OpFind   Op = "FIND"
	OpRemove Op = "REM"
)

const (
	duplicateTag = "DUP"
	noneTag      = "NONE"
)

// Record is one parsed input line.
type Record struct {
	Op  Op
	Key string
}

// ParseRecord parses an `OP KEY` line. Fields may be separated by any whitespace.
func ParseRecord(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return Record{}, fmt.Errorf("expected `OP KEY`, got %d fields", len(fields))
	}
	switch op := Op(fields[0]); op {
	case OpInsert, OpFind, OpRemove:
		return Record{Op: op, Key: fields[1]}, nil
	default:
		return Record{}, fmt.Errorf("unknown operation %q", fields[0])
	}
}

// Stats counts what a run went through.
type Stats struct {
	Files      int // Only set by RunDir.
	Records    int
	Hits       int // Records that changed or found something.
	Misses     int // DUP and NONE results.
	Malformed  int
	Invalid    int // Records after which the set failed validation.
	BlankLines int
}

func (s *Stats) add(other Stats) {
	s.Files += other.Files
	s.Records += other.Records
	s.Hits += other.Hits
	s.Misses += other.Misses
	s.Malformed += other.Malformed
	s.Invalid += other.Invalid
	s.BlankLines += other.BlankLines
}

// apply runs `record` against `set` and returns the result line without its newline.
func apply(set storage.KeySet, record Record) (string, bool /*hit*/, error) {
	var (
		hit bool
		err error
	)
	switch record.Op {
	case OpInsert:
		hit, err = set.Add(record.Key)
	case OpFind:
		hit = set.Contains(record.Key)
	case OpRemove:
		hit, err = set.Remove(record.Key)
	default:
		return "", false, fmt.Errorf("unknown operation %q", record.Op)
	}
	if err != nil {
		return "", false, err
	}

	switch {
	case hit:
		return string(record.Op) + " " + record.Key, true, nil
	case record.Op == OpInsert:
		return duplicateTag + " " + record.Key, false, nil
	default:
		return noneTag + " " + record.Key, false, nil
	}
}

// Run replays every record of `in` against `set`, writing results to `out` and diagnostics to `diag`.
// Processing stops at the first set error (out-of-range key, exhausted arena) or when `ctx` is done.
func Run(ctx context.Context, set storage.KeySet, in io.Reader, out, diag io.Writer) (Stats, error) {
	var stats Stats
	writer := bufio.NewWriter(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, min(4096, *maxLineBytes)), *maxLineBytes)

	err := func() error {
		for lineNumber := 1; scanner.Scan(); lineNumber++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			line := scanner.Text()
			if strings.TrimSpace(line) == "" {
				stats.BlankLines++
				continue
			}

			record, err := ParseRecord(line)
			if err != nil {
				stats.Malformed++
				recordLines.WithLabelValues("unknown", "malformed").Inc()
				fmt.Fprintf(diag, "line %d: skipped malformed record %q: %v\n", lineNumber, line, err)
				continue
			}

			result, hit, err := apply(set, record)
			if err != nil {
				recordLines.WithLabelValues(string(record.Op), "error").Inc()
				fmt.Fprintf(diag, "line %d: %s %s failed: %v\n", lineNumber, record.Op, record.Key, err)
				return fmt.Errorf("line %d: %s %s: %w", lineNumber, record.Op, record.Key, err)
			}
			stats.Records++
			if hit {
				stats.Hits++
				recordLines.WithLabelValues(string(record.Op), "hit").Inc()
			} else {
				stats.Misses++
				recordLines.WithLabelValues(string(record.Op), "miss").Inc()
			}
			if _, err := fmt.Fprintln(writer, result); err != nil {
				return fmt.Errorf("failed to write the result of line %d: %w", lineNumber, err)
			}

			if *validateEachRecord && !set.Validate() {
				stats.Invalid++
				fmt.Fprintf(diag, "not valid for %s %s\n", record.Op, record.Key)
				utils.RaiseInvariant("records", "invalid_set", "Key set failed validation after a record.",
					"line", lineNumber, "op", record.Op, "key", record.Key)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read records: %w", err)
		}
		return nil
	}()

	// Results written so far are kept even when processing stopped early.
	if flushErr := writer.Flush(); flushErr != nil && err == nil {
		err = fmt.Errorf("failed to flush results: %w", flushErr)
	}
	slog.Debug("Replayed records.", "records", stats.Records, "malformed", stats.Malformed,
		"invalid", stats.Invalid, "error", err)
	return stats, err
}
