package trace

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ReadRun loads a run's step records and summary from its directory,
// transparently handling a compressed step log.
func ReadRun(dir string) ([]StepRecord, *RunSummary, error) {
	summary, err := ReadSummary(dir)
	if err != nil {
		return nil, nil, err
	}
	steps, err := ReadSteps(dir)
	if err != nil {
		return nil, nil, err
	}
	return steps, summary, nil
}

// ReadSummary loads just the summary file.
func ReadSummary(dir string) (*RunSummary, error) {
	data, err := os.ReadFile(filepath.Join(dir, summaryFileName))
	if err != nil {
		return nil, fmt.Errorf("reading summary: %w", err)
	}
	var summary RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("parsing summary: %w", err)
	}
	return &summary, nil
}

// ReadSteps loads the step log, preferring the plain file and falling back
// to the gzip-compressed one.
func ReadSteps(dir string) ([]StepRecord, error) {
	var reader io.ReadCloser

	plain, err := os.Open(filepath.Join(dir, stepsFileName))
	switch {
	case err == nil:
		reader = plain
	case os.IsNotExist(err):
		compressed, gzErr := os.Open(filepath.Join(dir, stepsGzipFileName))
		if gzErr != nil {
			return nil, fmt.Errorf("opening step log: %w", gzErr)
		}
		gz, gzErr := gzip.NewReader(compressed)
		if gzErr != nil {
			compressed.Close()
			return nil, fmt.Errorf("opening gzip step log: %w", gzErr)
		}
		reader = &gzipStepReader{gz: gz, file: compressed}
	default:
		return nil, fmt.Errorf("opening step log: %w", err)
	}
	defer reader.Close()

	var steps []StepRecord
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record StepRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("parsing step record %d: %w", len(steps), err)
		}
		steps = append(steps, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading step log: %w", err)
	}
	return steps, nil
}

type gzipStepReader struct {
	gz   *gzip.Reader
	file *os.File
}

func (r *gzipStepReader) Read(p []byte) (int, error) { return r.gz.Read(p) }

func (r *gzipStepReader) Close() error {
	gzErr := r.gz.Close()
	fileErr := r.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}
