package config

import (
	"testing"
	"time"
)

func TestAsDuration(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    time.Duration
		wantErr bool
	}{
		{name: "nil", input: nil, want: 0},
		{name: "duration string", input: "1m30s", want: 90 * time.Second},
		{name: "bare int is seconds", input: 8, want: 8 * time.Second},
		{name: "bare int64 is seconds", input: int64(30), want: 30 * time.Second},
		{name: "bare float is seconds", input: 15.0, want: 15 * time.Second},
		{name: "empty string", input: "   ", want: 0},
		{name: "garbage string", input: "soon", wantErr: true},
		{name: "unsupported type", input: []string{"8s"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asDuration(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("asDuration(%v) = %s, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("asDuration(%v) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("asDuration(%v) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		name    string
		input   interface{}
		want    int
		wantErr bool
	}{
		{name: "int", input: 5, want: 5},
		{name: "float", input: 5.0, want: 5},
		{name: "string", input: " 42 ", want: 42},
		{name: "empty string", input: "", want: 0},
		{name: "garbage", input: "five", wantErr: true},
		{name: "unsupported", input: map[string]int{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := asInt(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("asInt(%v) = %d, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("asInt(%v) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestLookupSetting(t *testing.T) {
	settings := map[string]interface{}{
		"delay_between_messages": 8,
		"fast":                   true,
	}

	if _, ok := lookupSetting(settings, "delaybetweenmessages", "delay_between_messages"); !ok {
		t.Error("expected to find delay_between_messages via candidate list")
	}
	if _, ok := lookupSetting(settings, "FAST"); !ok {
		t.Error("expected lowercase fallback to find fast")
	}
	if _, ok := lookupSetting(settings, "missing"); ok {
		t.Error("found a key that does not exist")
	}
}

func TestToStringKeyMap(t *testing.T) {
	got, err := toStringKeyMap(map[interface{}]interface{}{" Max_Messages ": 5})
	if err != nil {
		t.Fatalf("toStringKeyMap error: %v", err)
	}
	if _, ok := got["max_messages"]; !ok {
		t.Errorf("keys not normalized: %v", got)
	}

	if _, err := toStringKeyMap("not a map"); err == nil {
		t.Error("expected error for non-map input")
	}
}
