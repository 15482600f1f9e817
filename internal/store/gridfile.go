package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ewsofficial/EdgeWARN/internal/storm"
)

// ReadGrid loads a reflectivity snapshot from a JSON grid file and
// validates its shape before handing it to the detector.
func ReadGrid(path string) (*storm.ReflectivityGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("grid: read %s: %w", path, err)
	}
	var grid storm.ReflectivityGrid
	if err := json.Unmarshal(data, &grid); err != nil {
		return nil, fmt.Errorf("grid: parse %s: %w", path, err)
	}
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("grid: %s: %w", path, err)
	}
	return &grid, nil
}
