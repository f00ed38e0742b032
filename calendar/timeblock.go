package calendar

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIME BLOCK - Half-day scheduling granularity
// =============================================================================

// TimeBlock is the granularity of a scheduled slot: a morning, an
// afternoon, or the whole day. PTO requests use BlockBoth for a full
// day off.
type TimeBlock string

const (
	BlockAM   TimeBlock = "AM"
	BlockPM   TimeBlock = "PM"
	BlockBoth TimeBlock = "BOTH"
)

func ParseTimeBlock(s string) (TimeBlock, error) {
	switch TimeBlock(s) {
	case BlockAM, BlockPM, BlockBoth:
		return TimeBlock(s), nil
	case "FULL": // PTO requests historically say FULL for a whole day
		return BlockBoth, nil
	}
	return "", fmt.Errorf("invalid time block %q", s)
}

// Intersects reports whether two blocks occupy overlapping time.
// AM and PM only match themselves; BOTH overlaps everything.
func (b TimeBlock) Intersects(other TimeBlock) bool {
	if b == BlockBoth || other == BlockBoth {
		return true
	}
	return b == other
}

// Matches reports whether a rule block applies to a requested block,
// treating BOTH on either side as a wildcard. Same relation as
// Intersects; named separately because rule evaluation reads better
// with it.
func (b TimeBlock) Matches(other TimeBlock) bool { return b.Intersects(other) }

var half = decimal.NewFromFloat(0.5)

// DayWeight is the PTO cost of one day at this block: 1.0 for a full
// day, 0.5 for a half day.
func (b TimeBlock) DayWeight() decimal.Decimal {
	if b == BlockBoth {
		return decimal.NewFromInt(1)
	}
	return half
}
