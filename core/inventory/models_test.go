package inventory

import "testing"

func TestProduct_NeedsRestock(t *testing.T) {
	tests := []struct {
		name    string
		current int
		minimum int
		want    bool
	}{
		{name: "below minimum", current: 3, minimum: 10, want: true},
		{name: "exactly at minimum", current: 10, minimum: 10},
		{name: "above minimum", current: 11, minimum: 10},
		{name: "zero stock, zero minimum", current: 0, minimum: 0},
		{name: "zero stock", current: 0, minimum: 1, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{CurrentQuantity: tt.current, MinimumQuantity: tt.minimum}
			if got := p.NeedsRestock(); got != tt.want {
				t.Errorf("NeedsRestock() = %v, want %v", got, tt.want)
			}
		})
	}
}
