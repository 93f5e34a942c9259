package audio

import "testing"

func TestSampleFormatBlockAlign(t *testing.T) {
	tests := []struct {
		format   SampleFormat
		expected int
	}{
		{SampleFormatU8, 1},
		{SampleFormatS16, 2},
		{SampleFormatS24, 3},
		{SampleFormatS32, 4},
		{SampleFormatF32, 4},
		{SampleFormat(0), 0},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := tt.format.BlockAlign(); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestParseSampleFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected SampleFormat
		wantErr  bool
	}{
		{"s16", SampleFormatS16, false},
		{"16", SampleFormatS16, false},
		{"", SampleFormatS16, false},
		{"U8", SampleFormatU8, false},
		{"24", SampleFormatS24, false},
		{"s32", SampleFormatS32, false},
		{"float", SampleFormatF32, false},
		{"mp3", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSampleFormat(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestFormatRates(t *testing.T) {
	f := Format{Channels: 2, SampleRate: 44100, SampleFormat: SampleFormatS16}
	if got := f.BlockAlign(); got != 4 {
		t.Errorf("expected block align 4, got %d", got)
	}
	if got := f.BytesPerSecond(); got != 176400 {
		t.Errorf("expected 176400 bytes/s, got %d", got)
	}
}

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{"default", DefaultFormat(), false},
		{"zero channels", Format{Channels: 0, SampleRate: 8000, SampleFormat: SampleFormatS16}, true},
		{"zero rate", Format{Channels: 1, SampleRate: 0, SampleFormat: SampleFormatS16}, true},
		{"unknown sample format", Format{Channels: 1, SampleRate: 8000}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}
