package roster

import (
	"sort"

	"github.com/google/uuid"
)

// GridCell is one computed seat of an automatic arrangement.
type GridCell struct {
	StudentID uuid.UUID
	X         int
	Y         int
}

// ArrangeGrid seats students row by row in last-name order. Ties fall back
// to first name and then to the order of the input slice, so the result is
// reproducible for the same input. columns below 1 is treated as 1.
func ArrangeGrid(students []Student, columns int) []GridCell {
	if columns < 1 {
		columns = 1
	}

	sorted := make([]Student, len(students))
	copy(sorted, students)
	sort.SliceStable(sorted, func(i, j int) bool {
		li, lj := NormalizeName(sorted[i].LastName), NormalizeName(sorted[j].LastName)
		if li != lj {
			return li < lj
		}
		return NormalizeName(sorted[i].FirstName) < NormalizeName(sorted[j].FirstName)
	})

	cells := make([]GridCell, len(sorted))
	for i, s := range sorted {
		cells[i] = GridCell{
			StudentID: s.ID,
			X:         i % columns,
			Y:         i / columns,
		}
	}
	return cells
}
