package trigger

import "testing"

func TestSetFilter(t *testing.T) {
	tests := []struct {
		name    string
		level   int
		curGap  uint32
		want    uint32
	}{
		{"off", 0, 4000, 0},
		{"25pct", 1, 4000, 1000},
		{"50pct", 2, 4000, 2000},
		{"75pct", 3, 4000, 3000},
		{"unknown level", 9, 4000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SetFilter(tt.level, tt.curGap)
			if got != tt.want {
				t.Errorf("SetFilter(%d, %d) = %d, want %d", tt.level, tt.curGap, got, tt.want)
			}
		})
	}
}
