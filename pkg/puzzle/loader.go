package puzzle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadFile reads and validates a single puzzle JSON file.
func LoadFile(path string) (*Puzzle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading puzzle file: %w", err)
	}
	var p Puzzle
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing puzzle %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadDir loads every *.json puzzle under dir, sorted by puzzle ID so
// suite runs enumerate puzzles in a stable order.
func LoadDir(dir string) ([]Puzzle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading puzzle directory: %w", err)
	}

	var puzzles []Puzzle
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		p, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		puzzles = append(puzzles, *p)
	}
	if len(puzzles) == 0 {
		return nil, fmt.Errorf("no puzzles found in %s", dir)
	}

	sort.Slice(puzzles, func(i, j int) bool { return puzzles[i].ID < puzzles[j].ID })

	ids := make(map[string]bool, len(puzzles))
	for _, p := range puzzles {
		if ids[p.ID] {
			return nil, fmt.Errorf("duplicate puzzle id %q", p.ID)
		}
		ids[p.ID] = true
	}
	return puzzles, nil
}
