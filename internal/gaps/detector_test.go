package gaps

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridfeed/internal/calendar"
	"gridfeed/internal/contracts"
	"gridfeed/pkg/config"
	"gridfeed/pkg/logger"
)

type stubStore struct {
	bars []contracts.MinuteBar
	err  error
}

func (s *stubStore) SessionBars(context.Context, string, time.Time) ([]contracts.MinuteBar, error) {
	return s.bars, s.err
}

func testDetector(t *testing.T, bars []contracts.MinuteBar) *Detector {
	t.Helper()
	cal, err := calendar.New(config.SessionConfig{
		Timezone:       "Europe/Moscow",
		OpenHour:       10,
		OpenMinute:     0,
		SessionMinutes: 480,
	})
	require.NoError(t, err)
	log := logger.New(&config.Config{Env: "development", LogLevel: "error", LogFormat: "json"})
	return NewDetector(&stubStore{bars: bars}, cal, log)
}

func barAt(index int, open, close float64) contracts.MinuteBar {
	return contracts.MinuteBar{
		Symbol:      "SBER.ME",
		MinuteIndex: index,
		Open:        open,
		Close:       close,
	}
}

// fullGridExcept fills every minute except the listed ones
func fullGridExcept(gridSize int, missing ...int) []contracts.MinuteBar {
	skip := make(map[int]bool, len(missing))
	for _, m := range missing {
		skip[m] = true
	}
	var bars []contracts.MinuteBar
	for i := 1; i <= gridSize; i++ {
		if skip[i] {
			continue
		}
		bars = append(bars, barAt(i, 100.0, 100.0))
	}
	return bars
}

func TestBuildBlocks(t *testing.T) {
	blocks := BuildBlocks([]int{5, 6, 7, 20, 50, 51})
	require.Len(t, blocks, 3)

	assert.Equal(t, Block{StartIndex: 5, EndIndex: 7, Length: 3}, blocks[0])
	assert.Equal(t, Block{StartIndex: 20, EndIndex: 20, Length: 1}, blocks[1])
	assert.Equal(t, Block{StartIndex: 50, EndIndex: 51, Length: 2}, blocks[2])
}

func TestBuildBlocksEmpty(t *testing.T) {
	assert.Empty(t, BuildBlocks(nil))
}

func TestDetectCompleteSession(t *testing.T) {
	d := testDetector(t, fullGridExcept(480))

	result, err := d.Detect(context.Background(), "SBER.ME", time.Now())
	require.NoError(t, err)

	assert.Equal(t, 480, result.GridSize)
	assert.Equal(t, 480, result.Present)
	assert.Equal(t, 0, result.Missing)
	assert.Empty(t, result.Blocks)
}

func TestDetectListsMissingIndexesWithWallTimes(t *testing.T) {
	d := testDetector(t, fullGridExcept(480, 5, 6, 7, 20))

	result, err := d.Detect(context.Background(), "SBER.ME", time.Now())
	require.NoError(t, err)

	assert.Equal(t, []int{5, 6, 7, 20}, result.MissingIndexes)
	assert.Equal(t, []string{"10:04", "10:05", "10:06", "10:19"}, result.MissingTimes)
	assert.Equal(t, 4, result.Missing)
}

func TestExistingIndexesIsInverseOfMissing(t *testing.T) {
	byIndex := map[int]contracts.MinuteBar{
		1: barAt(1, 100, 100),
		3: barAt(3, 100, 100),
		5: barAt(5, 100, 100),
	}

	assert.Equal(t, []int{1, 3, 5}, ExistingIndexes(byIndex, 5))
	assert.Equal(t, []int{2, 4}, MissingIndexes(byIndex, 5))
	assert.Empty(t, ExistingIndexes(map[int]contracts.MinuteBar{}, 5))
}

func TestDetectInteriorBlockImpact(t *testing.T) {
	bars := fullGridExcept(480, 5, 6, 7)
	// Close before the gap is 200, open after is 206: +3% move
	for i := range bars {
		switch bars[i].MinuteIndex {
		case 4:
			bars[i].Close = 200.0
		case 8:
			bars[i].Open = 206.0
		}
	}
	d := testDetector(t, bars)

	result, err := d.Detect(context.Background(), "SBER.ME", time.Now())
	require.NoError(t, err)
	require.Len(t, result.Blocks, 1)

	block := result.Blocks[0]
	assert.Equal(t, 5, block.StartIndex)
	assert.Equal(t, 7, block.EndIndex)
	assert.Equal(t, "10:04", block.StartTime)
	assert.Equal(t, "10:06", block.EndTime)
	assert.False(t, block.InsufficientData)
	require.NotNil(t, block.Impact)
	assert.Equal(t, 3.0, *block.Impact)
}

func TestDetectImpactRounding(t *testing.T) {
	bars := fullGridExcept(480, 10)
	for i := range bars {
		switch bars[i].MinuteIndex {
		case 9:
			bars[i].Close = 300.0
		case 11:
			bars[i].Open = 299.9 // -0.0333...% rounds to 4 decimals
		}
	}
	d := testDetector(t, bars)

	result, err := d.Detect(context.Background(), "SBER.ME", time.Now())
	require.NoError(t, err)
	require.Len(t, result.Blocks, 1)
	require.NotNil(t, result.Blocks[0].Impact)
	assert.Equal(t, -0.0333, *result.Blocks[0].Impact)
}

func TestDetectBoundaryBlocksHaveNoImpact(t *testing.T) {
	d := testDetector(t, fullGridExcept(480, 1, 2, 479, 480))

	result, err := d.Detect(context.Background(), "SBER.ME", time.Now())
	require.NoError(t, err)
	require.Len(t, result.Blocks, 2)

	for _, block := range result.Blocks {
		assert.True(t, block.InsufficientData)
		assert.Nil(t, block.Impact)
	}
}

func TestDetectEmptySession(t *testing.T) {
	d := testDetector(t, nil)

	result, err := d.Detect(context.Background(), "SBER.ME", time.Now())
	require.NoError(t, err)

	assert.Equal(t, 480, result.Missing)
	require.Len(t, result.Blocks, 1)
	assert.Equal(t, 1, result.Blocks[0].StartIndex)
	assert.Equal(t, 480, result.Blocks[0].EndIndex)
	assert.True(t, result.Blocks[0].InsufficientData)
}
