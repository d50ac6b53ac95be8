// Package puzzle defines the immutable puzzle descriptions the harness
// evaluates models against: Connections-style word grouping puzzles and
// crossword-style fill-in grids.
package puzzle

import (
	"fmt"
	"strings"
)

// Type identifies the kind of puzzle.
type Type string

const (
	TypeConnections Type = "connections"
	TypeCrossword   Type = "crossword"
)

// Puzzle is one game instance. Exactly one of the payload fields is set,
// matching Type.
type Puzzle struct {
	ID          string       `json:"id"`
	Type        Type         `json:"type"`
	Connections *Connections `json:"connections,omitempty"`
	Crossword   *Crossword   `json:"crossword,omitempty"`
}

// Group is one category of four words in a Connections puzzle.
type Group struct {
	Category string   `json:"category"`
	Level    int      `json:"level"` // 0 (easiest) .. 3 (hardest)
	Words    []string `json:"words"`
}

// Connections holds the 16-word grouping payload: exactly four groups of
// four distinct words.
type Connections struct {
	Groups []Group `json:"groups"`
}

// Words returns all 16 words across the four groups, in group order.
func (c *Connections) Words() []string {
	words := make([]string, 0, 16)
	for _, g := range c.Groups {
		words = append(words, g.Words...)
	}
	return words
}

// Clue is one across or down entry in a crossword grid.
type Clue struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	Length int    `json:"length"`
	Cells  []int  `json:"cells"` // linear indices into the grid, in fill order
}

// Crossword holds the fill-in grid payload. Cells are addressed linearly,
// row-major: index = y*Width + x.
type Crossword struct {
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Blocks   []bool   `json:"blocks"`   // len Width*Height, true = block cell
	Solution []string `json:"solution"` // len Width*Height, "" at blocks, single letter elsewhere
	Across   []Clue   `json:"across"`
	Down     []Clue   `json:"down"`
}

// Validate checks the structural invariants of the puzzle payload.
func (p *Puzzle) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("puzzle missing id")
	}
	switch p.Type {
	case TypeConnections:
		if p.Connections == nil {
			return fmt.Errorf("puzzle %s: type connections but no connections payload", p.ID)
		}
		return p.Connections.validate(p.ID)
	case TypeCrossword:
		if p.Crossword == nil {
			return fmt.Errorf("puzzle %s: type crossword but no crossword payload", p.ID)
		}
		return p.Crossword.validate(p.ID)
	default:
		return fmt.Errorf("puzzle %s: unknown type %q", p.ID, p.Type)
	}
}

func (c *Connections) validate(id string) error {
	if len(c.Groups) != 4 {
		return fmt.Errorf("puzzle %s: expected 4 groups, got %d", id, len(c.Groups))
	}
	seen := make(map[string]bool, 16)
	for _, g := range c.Groups {
		if len(g.Words) != 4 {
			return fmt.Errorf("puzzle %s: group %q has %d words, want 4", id, g.Category, len(g.Words))
		}
		for _, w := range g.Words {
			key := strings.ToLower(strings.TrimSpace(w))
			if key == "" {
				return fmt.Errorf("puzzle %s: group %q contains an empty word", id, g.Category)
			}
			if seen[key] {
				return fmt.Errorf("puzzle %s: duplicate word %q", id, w)
			}
			seen[key] = true
		}
	}
	return nil
}

func (cw *Crossword) validate(id string) error {
	size := cw.Width * cw.Height
	if cw.Width <= 0 || cw.Height <= 0 {
		return fmt.Errorf("puzzle %s: invalid grid dimensions %dx%d", id, cw.Width, cw.Height)
	}
	if len(cw.Blocks) != size {
		return fmt.Errorf("puzzle %s: blocks length %d, want %d", id, len(cw.Blocks), size)
	}
	if len(cw.Solution) != size {
		return fmt.Errorf("puzzle %s: solution length %d, want %d", id, len(cw.Solution), size)
	}
	for i := 0; i < size; i++ {
		if cw.Blocks[i] {
			if cw.Solution[i] != "" {
				return fmt.Errorf("puzzle %s: block cell %d has solution letter", id, i)
			}
			continue
		}
		letter := cw.Solution[i]
		if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
			return fmt.Errorf("puzzle %s: cell %d solution %q is not an uppercase letter", id, i, letter)
		}
	}
	for _, dir := range []struct {
		name  string
		clues []Clue
	}{{"across", cw.Across}, {"down", cw.Down}} {
		numbers := make(map[int]bool, len(dir.clues))
		for _, clue := range dir.clues {
			if numbers[clue.Number] {
				return fmt.Errorf("puzzle %s: duplicate %s clue %d", id, dir.name, clue.Number)
			}
			numbers[clue.Number] = true
			if clue.Length != len(clue.Cells) {
				return fmt.Errorf("puzzle %s: %s %d length %d but %d cells", id, dir.name, clue.Number, clue.Length, len(clue.Cells))
			}
			if clue.Length == 0 {
				return fmt.Errorf("puzzle %s: %s %d has no cells", id, dir.name, clue.Number)
			}
			for _, cell := range clue.Cells {
				if cell < 0 || cell >= size {
					return fmt.Errorf("puzzle %s: %s %d cell %d out of range", id, dir.name, clue.Number, cell)
				}
				if cw.Blocks[cell] {
					return fmt.Errorf("puzzle %s: %s %d crosses block cell %d", id, dir.name, clue.Number, cell)
				}
			}
		}
	}
	return nil
}
