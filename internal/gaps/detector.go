package gaps

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"gridfeed/internal/calendar"
	"gridfeed/internal/contracts"
	"gridfeed/pkg/logger"
)

// BarStore is the read side the detector needs
type BarStore interface {
	SessionBars(ctx context.Context, symbol string, sessionDate time.Time) ([]contracts.MinuteBar, error)
}

// Block is a maximal run of consecutive missing minute indexes.
// Impact is the percent price move across the block, measured from the
// close of the bar just before it to the open of the bar just after it.
// When the block touches a grid boundary there is no such pair of bars,
// so Impact stays nil and the block is flagged insufficient.
type Block struct {
	StartIndex       int      `json:"start_index"`
	EndIndex         int      `json:"end_index"`
	StartTime        string   `json:"start_time,omitempty"` // session-local HH:MM
	EndTime          string   `json:"end_time,omitempty"`
	Length           int      `json:"length"`
	Impact           *float64 `json:"impact,omitempty"`
	InsufficientData bool     `json:"insufficient_data,omitempty"`
}

// SessionGaps is the gap verdict for one symbol/session. Present and
// Missing are counts; MissingIndexes carries the actual grid indexes with
// their session-local wall-clock renderings alongside.
type SessionGaps struct {
	Symbol         string    `json:"symbol"`
	SessionDate    time.Time `json:"session_date"`
	GridSize       int       `json:"grid_size"`
	Present        int       `json:"present"`
	Missing        int       `json:"missing"`
	MissingIndexes []int     `json:"missing_indexes,omitempty"`
	MissingTimes   []string  `json:"missing_times,omitempty"`
	Blocks         []Block   `json:"blocks,omitempty"`
}

// Detector finds missing minutes on the session grid and measures the
// price impact of each gap block.
type Detector struct {
	store  BarStore
	cal    *calendar.Calendar
	logger *logger.Logger
}

// NewDetector creates a gap detector
func NewDetector(store BarStore, cal *calendar.Calendar, log *logger.Logger) *Detector {
	return &Detector{
		store:  store,
		cal:    cal,
		logger: log.WithField("module", "gaps"),
	}
}

// Detect analyzes one symbol/session against the full grid
func (d *Detector) Detect(ctx context.Context, symbol string, sessionDate time.Time) (*SessionGaps, error) {
	bars, err := d.store.SessionBars(ctx, symbol, sessionDate)
	if err != nil {
		return nil, fmt.Errorf("load session bars: %w", err)
	}

	gridSize := d.cal.SessionMinutes()

	byIndex := make(map[int]contracts.MinuteBar, len(bars))
	for _, b := range bars {
		byIndex[b.MinuteIndex] = b
	}

	missing := MissingIndexes(byIndex, gridSize)
	blocks := BuildBlocks(missing)
	for i := range blocks {
		measureImpact(&blocks[i], byIndex, gridSize)
		d.attachWallTimes(&blocks[i])
	}

	result := &SessionGaps{
		Symbol:         symbol,
		SessionDate:    sessionDate,
		GridSize:       gridSize,
		Present:        len(byIndex),
		Missing:        len(missing),
		MissingIndexes: missing,
		MissingTimes:   d.wallTimes(missing),
		Blocks:         blocks,
	}

	d.logger.WithFields(map[string]interface{}{
		"symbol":       symbol,
		"session_date": sessionDate.Format("2006-01-02"),
		"missing":      result.Missing,
		"blocks":       len(result.Blocks),
	}).Debug("Gap detection completed")

	return result, nil
}

// MissingIndexes returns the grid indexes with no stored bar, ascending
func MissingIndexes(byIndex map[int]contracts.MinuteBar, gridSize int) []int {
	var missing []int
	for i := 1; i <= gridSize; i++ {
		if _, ok := byIndex[i]; !ok {
			missing = append(missing, i)
		}
	}
	sort.Ints(missing)
	return missing
}

// ExistingIndexes is the inverse of MissingIndexes: the grid indexes that
// do have a stored bar, ascending.
func ExistingIndexes(byIndex map[int]contracts.MinuteBar, gridSize int) []int {
	var existing []int
	for i := 1; i <= gridSize; i++ {
		if _, ok := byIndex[i]; ok {
			existing = append(existing, i)
		}
	}
	sort.Ints(existing)
	return existing
}

// wallTimes renders grid indexes as session-local HH:MM strings
func (d *Detector) wallTimes(indexes []int) []string {
	if len(indexes) == 0 {
		return nil
	}
	out := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		h, m, err := d.cal.WallTime(idx)
		if err != nil {
			continue
		}
		out = append(out, fmt.Sprintf("%02d:%02d", h, m))
	}
	return out
}

// BuildBlocks folds missing indexes into maximal consecutive runs
func BuildBlocks(missing []int) []Block {
	var blocks []Block
	for _, idx := range missing {
		n := len(blocks)
		if n > 0 && blocks[n-1].EndIndex == idx-1 {
			blocks[n-1].EndIndex = idx
			blocks[n-1].Length++
			continue
		}
		blocks = append(blocks, Block{StartIndex: idx, EndIndex: idx, Length: 1})
	}
	return blocks
}

// measureImpact fills in the percent move across a block. Blocks that
// start at minute 1 or end at minute N have no surrounding bar pair and
// are marked insufficient instead.
func measureImpact(b *Block, byIndex map[int]contracts.MinuteBar, gridSize int) {
	if b.StartIndex == 1 || b.EndIndex == gridSize {
		b.InsufficientData = true
		return
	}

	before, okBefore := byIndex[b.StartIndex-1]
	after, okAfter := byIndex[b.EndIndex+1]
	if !okBefore || !okAfter || before.Close == 0 {
		b.InsufficientData = true
		return
	}

	impact := round4((after.Open - before.Close) / before.Close * 100)
	b.Impact = &impact
}

// attachWallTimes renders a block's index range as session-local clock
// times for reporting
func (d *Detector) attachWallTimes(b *Block) {
	if h, m, err := d.cal.WallTime(b.StartIndex); err == nil {
		b.StartTime = fmt.Sprintf("%02d:%02d", h, m)
	}
	if h, m, err := d.cal.WallTime(b.EndIndex); err == nil {
		b.EndTime = fmt.Sprintf("%02d:%02d", h, m)
	}
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
