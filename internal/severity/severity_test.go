package severity

import "testing"

func TestFromHours(t *testing.T) {
	tests := []struct {
		hours    int
		expected Level
	}{
		{0, Low}, {1, Low}, {23, Low},
		{24, Medium}, {36, Medium}, {48, Medium},
		{49, Critical}, {72, Critical}, {10000, Critical},
		{-3, Low},
	}

	for _, tt := range tests {
		if got := FromHours(tt.hours); got != tt.expected {
			t.Errorf("FromHours(%d) = %s, want %s", tt.hours, got, tt.expected)
		}
	}
}

func TestLabel(t *testing.T) {
	if got := FromHours(100).Label(); got != "Crítico" {
		t.Errorf("Critical label = %q", got)
	}
	if got := Level("???").Label(); got != "Recente" {
		t.Errorf("unknown label = %q, want Recente", got)
	}
}
