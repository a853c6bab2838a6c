package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseVolumeM3(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"5", "5", false},
		{"4.5", "4.5", false},
		{" 12 ", "12", false},
		{"1,000", "1000", false},
		{"1 000.5", "1000.5", false},
		{"", "", true},
		{"   ", "", true},
		{"abc", "", true},
		{"5m3", "", true},
		{"5.5.5", "", true},
	}

	for _, tt := range tests {
		got, err := ParseVolumeM3(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseVolumeM3(%q): expected error, got %s", tt.raw, got)
			}
			var fieldErr *FieldError
			if err != nil && !errors.As(err, &fieldErr) {
				t.Errorf("ParseVolumeM3(%q): error is not a FieldError: %v", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseVolumeM3(%q): %v", tt.raw, err)
			continue
		}
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("ParseVolumeM3(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	rules := FallbackRules()
	maxM3 := decimal.NewFromInt(500)

	tests := []struct {
		name        string
		requested   string
		serviceType string
		wantRounded string
		wantBilled  string
		wantBelow   bool
	}{
		{"exact step", "5", ServiceDirect, "5", "5", false},
		{"rounds up to half step", "4.2", ServiceDirect, "4.5", "4.5", false},
		{"just above step", "4.51", ServiceDirect, "5", "5", false},
		{"already half step", "4.5", ServiceDirect, "4.5", "4.5", false},
		{"below direct minimum", "2", ServiceDirect, "2", "3", true},
		{"below pumped minimum", "3.5", ServicePumped, "3.5", "4", true},
		{"rounding reaches the minimum", "2.7", ServiceDirect, "3", "3", false},
		{"at the ceiling", "500", ServiceDirect, "500", "500", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(decimal.RequireFromString(tt.requested), tt.serviceType, rules, maxM3)
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if !got.RoundedM3.Equal(decimal.RequireFromString(tt.wantRounded)) {
				t.Errorf("rounded = %s, want %s", got.RoundedM3, tt.wantRounded)
			}
			if !got.BilledM3.Equal(decimal.RequireFromString(tt.wantBilled)) {
				t.Errorf("billed = %s, want %s", got.BilledM3, tt.wantBilled)
			}
			if got.IsBelowMinimum != tt.wantBelow {
				t.Errorf("isBelowMinimum = %v, want %v", got.IsBelowMinimum, tt.wantBelow)
			}
		})
	}
}

func TestNormalize_Rejections(t *testing.T) {
	rules := FallbackRules()
	maxM3 := decimal.NewFromInt(500)

	tests := []struct {
		name        string
		requested   string
		serviceType string
		wantField   string
	}{
		{"zero", "0", ServiceDirect, "volume"},
		{"negative", "-3", ServiceDirect, "volume"},
		{"above ceiling", "500.5", ServiceDirect, "volume"},
		{"unknown service type", "5", "helicopter", "serviceType"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(decimal.RequireFromString(tt.requested), tt.serviceType, rules, maxM3)
			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("expected FieldError, got %v", err)
			}
			if fieldErr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", fieldErr.Field, tt.wantField)
			}
		})
	}
}

func TestSlabVolume(t *testing.T) {
	// 10 m × 8 m at 12 cm = 9.6 m³.
	got, err := SlabVolume(decimal.NewFromInt(10), decimal.NewFromInt(8), decimal.NewFromInt(12))
	if err != nil {
		t.Fatalf("SlabVolume: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("9.6")) {
		t.Errorf("SlabVolume = %s, want 9.6", got)
	}

	for _, tt := range []struct {
		name    string
		l, w, c string
		field   string
	}{
		{"zero length", "0", "8", "12", "length"},
		{"negative width", "10", "-1", "12", "width"},
		{"zero thickness", "10", "8", "0", "thickness"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SlabVolume(
				decimal.RequireFromString(tt.l),
				decimal.RequireFromString(tt.w),
				decimal.RequireFromString(tt.c),
			)
			var fieldErr *FieldError
			if !errors.As(err, &fieldErr) || fieldErr.Field != tt.field {
				t.Errorf("expected FieldError on %q, got %v", tt.field, err)
			}
		})
	}
}

func TestAreaVolume(t *testing.T) {
	// 120 m² at 10 cm = 12 m³.
	got, err := AreaVolume(decimal.NewFromInt(120), decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("AreaVolume: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(12)) {
		t.Errorf("AreaVolume = %s, want 12", got)
	}

	if _, err := AreaVolume(decimal.Zero, decimal.NewFromInt(10)); err == nil {
		t.Error("expected error for zero area")
	}
}

func TestApplyCofferedFactor(t *testing.T) {
	rules := FallbackRules()
	base := decimal.NewFromInt(10)

	got, err := ApplyCofferedFactor(base, "", rules)
	if err != nil {
		t.Fatalf("ApplyCofferedFactor: %v", err)
	}
	if !got.Equal(base) {
		t.Errorf("empty size class changed the volume: %s", got)
	}

	got, err = ApplyCofferedFactor(base, "40", rules)
	if err != nil {
		t.Fatalf("ApplyCofferedFactor: %v", err)
	}
	if !got.Equal(decimal.NewFromInt(8)) {
		t.Errorf("size 40 on 10 m³ = %s, want 8", got)
	}

	_, err = ApplyCofferedFactor(base, "99", rules)
	var fieldErr *FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "cofferedSize" {
		t.Errorf("expected cofferedSize FieldError, got %v", err)
	}
}

func TestRoundUpToStep(t *testing.T) {
	step := decimal.RequireFromString("0.5")

	tests := []struct{ in, want string }{
		{"0.1", "0.5"},
		{"0.5", "0.5"},
		{"0.51", "1"},
		{"4.2", "4.5"},
		{"7", "7"},
		{"7.0001", "7.5"},
	}
	for _, tt := range tests {
		if got := roundUpToStep(decimal.RequireFromString(tt.in), step); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("roundUpToStep(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
