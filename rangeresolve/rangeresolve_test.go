package rangeresolve

import "testing"

func TestNormalize(t *testing.T) {
	for _, tt := range []struct {
		name        string
		begin, end  int64
		n           int64
		wantB       int64
		wantE       int64
		wantErr     bool
	}{
		{"full range via zero end", 0, 0, 14, 0, 14, false},
		{"plain slice", 7, 12, 14, 7, 12, false},
		{"negative begin only", -1, 0, 14, 13, 14, false},
		{"negative begin larger than n clamps to zero", -100, 0, 14, 0, 14, false},
		{"negative end", 0, -1, 14, 0, 13, false},
		{"begin beyond n clamps", 20, 0, 14, 14, 14, false},
		{"end beyond n clamps", 0, 100, 14, 0, 14, false},
		{"empty range begin==end", 5, 5, 14, 5, 5, false},
		{"negative length is an error", 10, 2, 14, 0, 0, true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			b, e, err := Normalize(tt.begin, tt.end, tt.n)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none (b=%d e=%d)", b, e)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b != tt.wantB || e != tt.wantE {
				t.Errorf("Normalize(%d,%d,%d) = (%d,%d), want (%d,%d)", tt.begin, tt.end, tt.n, b, e, tt.wantB, tt.wantE)
			}
		})
	}
}
