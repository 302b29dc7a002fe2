package slot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpetrov/slotplan/internal/slot"
)

func TestParseStart_AMPM(t *testing.T) {
	tests := []struct {
		label string
		want  int
	}{
		{"9:00 AM - 10:00 AM", 9 * 60},
		{"12:00 AM - 1:00 AM", 0},
		{"12:00 PM - 1:00 PM", 12 * 60},
		{"1:00 PM - 2:00 PM", 13 * 60},
		{"11:30 PM - 11:45 PM", 23*60 + 30},
		{"4:15 pm - 5:00 pm", 16*60 + 15},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slot.ParseStart(tt.label), "label %q", tt.label)
	}
}

// TestParseStart_NoSuffix verifies that without an AM/PM suffix the value is
// interpreted on a 24-hour clock.
func TestParseStart_NoSuffix(t *testing.T) {
	assert.Equal(t, 14*60, slot.ParseStart("14:00 - 15:00"))
	assert.Equal(t, 9*60+30, slot.ParseStart("9:30 - 10:30"))
	assert.Equal(t, 23*60, slot.ParseStart("23:00 - 23:59"))
}

// TestParseStart_Unparseable verifies that malformed labels receive the
// maximum sort key instead of raising an error.
func TestParseStart_Unparseable(t *testing.T) {
	for _, label := range []string{"", "lunch break", "??:?? - ??:??", "25:00 - 26:00", "13:00 PM - 14:00 PM"} {
		assert.Equal(t, slot.MaxSortKey, slot.ParseStart(label), "label %q", label)
	}
}

func TestSortSlots_Chronological(t *testing.T) {
	got := slot.SortSlots([]string{"1:00 PM - 2:00 PM", "9:00 AM - 10:00 AM"})
	assert.Equal(t, []string{"9:00 AM - 10:00 AM", "1:00 PM - 2:00 PM"}, got)
}

// TestSortSlots_UnparseableLast verifies that labels without a parseable
// start time sort after all parseable ones, keeping their relative order.
func TestSortSlots_UnparseableLast(t *testing.T) {
	got := slot.SortSlots([]string{"zzz", "aaa", "3:00 PM - 4:00 PM", "9:00 AM - 10:00 AM"})
	assert.Equal(t, []string{"9:00 AM - 10:00 AM", "3:00 PM - 4:00 PM", "zzz", "aaa"}, got)
}
