package bands

import "testing"

func TestParseQuantileLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		// p-notation
		{"p50", 0.50, false},
		{"p2.5", 0.025, false},
		{"p97.5", 0.975, false},
		{"P25", 0.25, false}, // case insensitive

		// decimal notation
		{"0.025", 0.025, false},
		{"0.75", 0.75, false},
		{" 0.5 ", 0.5, false},

		// errors
		{"", 0, true},
		{"0", 0, true},
		{"1", 0, true},
		{"p0", 0, true},
		{"p100", 0, true},
		{"p-5", 0, true},
		{"1.5", 0, true},
		{"pabc", 0, true},
		{"invalid", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseQuantileLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseQuantileLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseQuantileLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLevels(t *testing.T) {
	got, err := ParseLevels("p2.5, p50,0.975")
	if err != nil {
		t.Fatalf("ParseLevels() error = %v", err)
	}
	want := []float64{0.025, 0.5, 0.975}
	if len(got) != len(want) {
		t.Fatalf("ParseLevels() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("level[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	def, err := ParseLevels("")
	if err != nil || len(def) != len(DefaultLevels) {
		t.Errorf("ParseLevels(\"\") = %v, %v; want defaults", def, err)
	}

	if _, err := ParseLevels("p50,nope"); err == nil {
		t.Error("expected error for invalid entry")
	}
}

func TestFormatQuantileLevel(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0.50, "p50"},
		{0.25, "p25"},
		{0.025, "p2.5"},
		{0.975, "p97.5"},
		{0.29, "p29"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatQuantileLevel(tt.input); got != tt.want {
				t.Errorf("FormatQuantileLevel(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, q := range DefaultLevels {
		got, err := ParseQuantileLevel(FormatQuantileLevel(q))
		if err != nil {
			t.Fatalf("round trip of %v: %v", q, err)
		}
		if got != q {
			t.Errorf("round trip of %v = %v", q, got)
		}
	}
}
