package board

import "fmt"

// Cell identifies a board position. Ring cells use their global ring index
// (0..51). Home column cells are color-private and never collide with ring
// cells or with another color's home column.
type Cell int

type Color int

const (
	Blue Color = iota
	Red
	Green
	Yellow
)

var colorString = map[Color]string{
	Blue:   "blue",
	Red:    "red",
	Green:  "green",
	Yellow: "yellow",
}

func (c Color) String() string {
	return colorString[c]
}

const (
	// RingSize is the number of shared cells on the outer loop.
	RingSize = 52

	// RingSpan is how many ring cells each token traverses before turning
	// into its home column. The cell just before the color's start is the
	// entry to the column, so the loop is one short of a full lap.
	RingSpan = 51

	// HomeStretch is the length of each color's private home column.
	HomeStretch = 6

	// PathLength is the total number of cells a token visits, base excluded.
	PathLength = RingSpan + HomeStretch
)

// startOffset maps each color to its entry cell on the ring, clockwise.
var startOffset = map[Color]int{
	Blue:   0,
	Red:    13,
	Green:  26,
	Yellow: 39,
}

// homeBase gives each color a disjoint Cell range for its home column.
const homeBase = 100

// safeCells are the four start cells plus the four star cells. Captures
// never happen on these.
var safeCells = map[Cell]bool{
	0:  true,
	8:  true,
	13: true,
	21: true,
	26: true,
	34: true,
	39: true,
	47: true,
}

// PathFor returns the ordered cells a token of the given color traverses,
// from its entry cell through the last home column cell. Every color's path
// has length PathLength; the final HomeStretch cells are private to the
// color.
func PathFor(color Color) []Cell {
	path := make([]Cell, 0, PathLength)
	start := startOffset[color]
	for i := 0; i < RingSpan; i++ {
		path = append(path, Cell((start+i)%RingSize))
	}
	for i := 0; i < HomeStretch; i++ {
		path = append(path, Cell(homeBase+int(color)*10+i))
	}
	return path
}

// IsSafeCell reports whether captures are disallowed on the cell. Home
// column cells are trivially safe since only one color can occupy them.
func IsSafeCell(cell Cell) bool {
	if cell >= homeBase {
		return true
	}
	return safeCells[cell]
}

// ColorsFor returns the canonical clockwise color assignment for a room of
// the given size.
func ColorsFor(playerCount int) ([]Color, error) {
	switch playerCount {
	case 2:
		return []Color{Blue, Green}, nil
	case 3:
		return []Color{Blue, Red, Green}, nil
	case 4:
		return []Color{Blue, Red, Green, Yellow}, nil
	}
	return nil, fmt.Errorf("INVALID_PLAYER_COUNT: Rooms hold 2-4 players, got %d", playerCount)
}
