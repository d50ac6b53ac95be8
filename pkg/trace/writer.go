package trace

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	stepsFileName      = "steps.jsonl"
	stepsGzipFileName  = "steps.jsonl.gz"
	summaryFileName    = "summary.json"
	timestampDirFormat = "20060102T150405Z"
)

// Compression policies. Mirrors config values so trace stays decoupled from
// the config package.
const (
	CompressNever  = "never"
	CompressAuto   = "auto"
	CompressAlways = "always"
)

// RunDir computes the unique directory for one run:
// <root>/<suite>/<startTS>/<model>/<puzzle>/<runID>.
func RunDir(root, suite string, startedAt time.Time, modelID, puzzleID, runID string) string {
	return filepath.Join(
		root,
		sanitizePathComponent(suite),
		startedAt.UTC().Format(timestampDirFormat),
		sanitizePathComponent(modelID),
		sanitizePathComponent(puzzleID),
		runID,
	)
}

// sanitizePathComponent makes an identifier filesystem-safe. Model ids
// routinely contain "/" (e.g. "openai/gpt-4o").
func sanitizePathComponent(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	out := replacer.Replace(s)
	if out == "" {
		return "unknown"
	}
	return out
}

// Writer persists one run's steps and summary. Not safe for concurrent use;
// each run owns its writer.
type Writer struct {
	dir       string
	policy    string
	threshold int

	stepsFile *os.File
	finalized bool
}

// NewWriter creates the run directory and opens the step log.
func NewWriter(dir, compressionPolicy string, compressionThreshold int) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating run directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, stepsFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening step log: %w", err)
	}
	return &Writer{
		dir:       dir,
		policy:    compressionPolicy,
		threshold: compressionThreshold,
		stepsFile: f,
	}, nil
}

// Dir returns the run directory.
func (w *Writer) Dir() string { return w.dir }

// AppendStep writes one step record as a JSONL line.
func (w *Writer) AppendStep(record StepRecord) error {
	if w.finalized {
		return fmt.Errorf("writer already finalized")
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshaling step record: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.stepsFile.Write(data); err != nil {
		return fmt.Errorf("writing step record: %w", err)
	}
	return nil
}

// Finalize writes the summary atomically, closes the step log, and applies
// the compression policy. The summary rename happens before compression so
// an interrupted compression pass still leaves a complete, readable run.
func (w *Writer) Finalize(summary RunSummary) error {
	if w.finalized {
		return fmt.Errorf("writer already finalized")
	}
	w.finalized = true

	if err := w.stepsFile.Close(); err != nil {
		return fmt.Errorf("closing step log: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(w.dir, summaryFileName), summary); err != nil {
		return err
	}
	return w.applyCompression()
}

func writeFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".summary-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming summary: %w", err)
	}
	return nil
}

func (w *Writer) applyCompression() error {
	stepsPath := filepath.Join(w.dir, stepsFileName)
	switch w.policy {
	case CompressAlways:
	case CompressAuto:
		info, err := os.Stat(stepsPath)
		if err != nil {
			return fmt.Errorf("stat step log: %w", err)
		}
		if info.Size() <= int64(w.threshold) {
			return nil
		}
	default:
		return nil
	}

	src, err := os.Open(stepsPath)
	if err != nil {
		return fmt.Errorf("opening step log for compression: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(w.dir, ".steps-*")
	if err != nil {
		return fmt.Errorf("creating temp gzip file: %w", err)
	}
	tmpName := tmp.Name()

	gz := gzip.NewWriter(tmp)
	if _, err := io.Copy(gz, src); err != nil {
		gz.Close()
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("compressing step log: %w", err)
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("finishing gzip stream: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp gzip file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(w.dir, stepsGzipFileName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming gzip file: %w", err)
	}
	return os.Remove(stepsPath)
}
