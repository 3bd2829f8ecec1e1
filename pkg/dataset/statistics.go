package dataset

import (
	"encoding/json"
	"fmt"

	"github.com/cyclopcam/tcas/pkg/storage"
)

const statisticsFilename = "metadata/statistics.json"

// Statistics returns the content of metadata/statistics.json, without any validation.
// The file is read every time.
func (d *Dataset) Statistics() (map[string]any, error) {
	raw, err := storage.ReadFile(d.store, statisticsFilename)
	if err != nil {
		return nil, fmt.Errorf("Statistics file %v: %w", statisticsFilename, err)
	}
	stats := map[string]any{}
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("%w: statistics file %v: %w", ErrParse, statisticsFilename, err)
	}
	return stats, nil
}

// Statistics of the whole dataset, for the fields that we know about.
// Zero means the field was absent.
type Statistics struct {
	TotalVideos int `json:"total_videos"`
	TotalFrames int `json:"total_frames"`
}

// ParseStatistics picks the well known fields out of the raw statistics
func ParseStatistics(raw map[string]any) Statistics {
	s := Statistics{}
	if v, ok := raw["total_videos"].(float64); ok {
		s.TotalVideos = int(v)
	}
	if v, ok := raw["total_frames"].(float64); ok {
		s.TotalFrames = int(v)
	}
	return s
}
