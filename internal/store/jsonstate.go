// Package store persists the tracked storm-cell collection: a JSON
// state file that round-trips the wire shape (including enrichment
// fields this code does not know about), and an optional sqlite
// archive for later analysis.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	"github.com/ewsofficial/EdgeWARN/internal/fsutil"
	"github.com/ewsofficial/EdgeWARN/internal/monitoring"
	"github.com/ewsofficial/EdgeWARN/internal/storm"
)

// StateFile reads and writes the tracked-cell collection as a JSON
// array. Writes go through a temp file and rename so a crash never
// leaves a half-written state behind.
type StateFile struct {
	Path string
	FS   fsutil.FileSystem
}

// NewStateFile returns a StateFile at the given path, backed by the
// real filesystem.
func NewStateFile(path string) *StateFile {
	return &StateFile{Path: path, FS: fsutil.OSFileSystem{}}
}

// Load reads the collection. A missing or empty file is an empty
// collection, not an error. Cells sharing an id (left behind by older
// tooling) are deduplicated: their histories merge by timestamp and
// the top-level fields follow the latest history entry.
func (f *StateFile) Load() (*storm.TrackedSet, error) {
	data, err := f.FS.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return storm.NewTrackedSet(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: read %s: %w", f.Path, err)
	}
	if len(data) == 0 {
		return storm.NewTrackedSet(nil), nil
	}

	var cells []*storm.TrackedCell
	if err := json.Unmarshal(data, &cells); err != nil {
		return nil, fmt.Errorf("state: parse %s: %w", f.Path, err)
	}
	return storm.NewTrackedSet(dedupeCells(cells)), nil
}

// Save writes the collection back in place.
func (f *StateFile) Save(set *storm.TrackedSet) error {
	data, err := json.MarshalIndent(set.Cells, "", "  ")
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	tmp := f.Path + ".tmp"
	if err := f.FS.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("state: write %s: %w", tmp, err)
	}
	if err := f.FS.Rename(tmp, f.Path); err != nil {
		return fmt.Errorf("state: rename %s: %w", tmp, err)
	}
	monitoring.Logf("state: saved %d tracked cells to %s", set.Len(), f.Path)
	return nil
}

// dedupeCells collapses duplicate ids. Histories merge by timestamp
// (first occurrence wins per timestamp), and when a duplicate carries
// a newer last snapshot its top-level fields replace the survivor's.
func dedupeCells(cells []*storm.TrackedCell) []*storm.TrackedCell {
	unique := make(map[int]*storm.TrackedCell, len(cells))
	var order []int
	for _, cell := range cells {
		existing, ok := unique[cell.ID]
		if !ok {
			unique[cell.ID] = cell
			order = append(order, cell.ID)
			continue
		}
		mergeDuplicate(existing, cell)
	}
	if len(order) == len(cells) {
		return cells
	}
	monitoring.Logf("state: deduplicated %d cells down to %d", len(cells), len(order))
	out := make([]*storm.TrackedCell, 0, len(order))
	for _, id := range order {
		out = append(out, unique[id])
	}
	return out
}

func mergeDuplicate(dst, src *storm.TrackedCell) {
	have := make(map[string]bool, len(dst.History))
	for _, h := range dst.History {
		have[h.Timestamp] = true
	}
	for _, h := range src.History {
		if !have[h.Timestamp] {
			dst.History = append(dst.History, h)
			have[h.Timestamp] = true
		}
	}
	sort.SliceStable(dst.History, func(i, j int) bool {
		return dst.History[i].Timestamp < dst.History[j].Timestamp
	})

	// The duplicate with the later record supplies the current state.
	dstLast, srcLast := lastTimestamp(dst), lastTimestamp(src)
	if srcLast > dstLast {
		dst.NumGates = src.NumGates
		dst.MaxDBZ = src.MaxDBZ
		dst.Centroid = src.Centroid
		dst.BBox = src.BBox
		dst.AlphaShape = src.AlphaShape
	}
}

func lastTimestamp(c *storm.TrackedCell) string {
	if len(c.History) == 0 {
		return ""
	}
	return c.History[len(c.History)-1].Timestamp
}
