package services

import (
	"fmt"
	"io/fs"
)

// stepErrors collects the failures of a multi-step operation that keeps
// going after a step fails.
type stepErrors []string

func (e *stepErrors) add(step string, err error) {
	if err != nil {
		*e = append(*e, fmt.Sprintf("%s: %v", step, err))
	}
}

func (e stepErrors) summary() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0]
	default:
		return fmt.Sprintf("%s (and %d more)", e[0], len(e)-1)
	}
}

// fileMTime returns a file's modification time in fractional Unix seconds,
// the unit the ledger stores.
func fileMTime(info fs.FileInfo) float64 {
	return float64(info.ModTime().UnixNano()) / 1e9
}
