package numerator

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatConfig controls how an allocated number is displayed.
type FormatConfig struct {
	// Prefix added to all numbers (e.g., "INV", "QUO")
	Prefix string `mapstructure:"prefix"`

	// IncludeYear adds the allocation year. It is cosmetic and never resets a sequence.
	IncludeYear bool `mapstructure:"include_year"`

	// PadWidth is the minimum number width (default 5)
	PadWidth int `mapstructure:"pad_width"`
}

// DefaultFormat returns sensible defaults for t.
func DefaultFormat(t DocumentType) FormatConfig {
	return FormatConfig{
		Prefix:      t.DefaultPrefix(),
		IncludeYear: true,
		PadWidth:    5,
	}
}

// FormatNumber creates the display string.
// Pattern: PREFIX-YEAR-XXXXX (e.g., INV-2026-00001) or PREFIX-XXXXX.
func FormatNumber(cfg FormatConfig, at time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth <= 0 {
		padWidth = 5
	}

	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, at.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}

// ParseNumber extracts the numeric part from a formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	idx := strings.LastIndexByte(formatted, '-')
	if idx < 0 || idx == len(formatted)-1 {
		return -1
	}
	num, err := strconv.ParseInt(formatted[idx+1:], 10, 64)
	if err != nil || num < 0 {
		return -1
	}
	return num
}
