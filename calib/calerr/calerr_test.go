package calerr

import (
	"fmt"
	"testing"
)

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "fit", err: fmt.Errorf("%w: singular", ErrFit), want: true},
		{name: "match", err: fmt.Errorf("row 3: %w", fmt.Errorf("%w: no peak", ErrMatch)), want: true},
		{name: "configuration", err: fmt.Errorf("%w: bad basis", ErrConfiguration), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.want {
				t.Fatalf("IsRecoverable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
