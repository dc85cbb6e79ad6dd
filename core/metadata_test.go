package core

import (
	"errors"
	"testing"
)

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    any
		wantErr bool
	}{
		{name: "string", in: "x", want: "x"},
		{name: "int widened", in: 24, want: int64(24)},
		{name: "int32 widened", in: int32(7), want: int64(7)},
		{name: "uint8 widened", in: uint8(3), want: int64(3)},
		{name: "float32 widened", in: float32(0.5), want: float64(0.5)},
		{name: "bool", in: true, want: true},
		{name: "slice rejected", in: []string{"a"}, wantErr: true},
		{name: "nil rejected", in: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeValue(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMetadataValue) {
					t.Errorf("NormalizeValue() error = %v, want ErrInvalidMetadataValue", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeValue() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeValue() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestMetadata_Accessors(t *testing.T) {
	md := Metadata{KeyChannel: "general", KeyHoursBack: 24, KeyMessageCount: int64(3)}

	if got := md.String(KeyChannel); got != "general" {
		t.Errorf("String() = %q, want general", got)
	}
	if got := md.String(KeyHoursBack); got != "" {
		t.Errorf("String() on int = %q, want empty", got)
	}
	if n, ok := md.Int(KeyHoursBack); !ok || n != 24 {
		t.Errorf("Int(hours_back) = %d, %v", n, ok)
	}
	if n, ok := md.Int(KeyMessageCount); !ok || n != 3 {
		t.Errorf("Int(message_count) = %d, %v", n, ok)
	}
	if _, ok := md.Int("missing"); ok {
		t.Errorf("Int() on missing key should report false")
	}
}

func TestMetadata_Clone(t *testing.T) {
	var nilMD Metadata
	if c := nilMD.Clone(); c == nil {
		t.Errorf("Clone() of nil should return an empty map")
	}

	md := Metadata{"a": "1"}
	c := md.Clone()
	c["a"] = "2"
	if md["a"] != "1" {
		t.Errorf("Clone() aliased the original map")
	}
}

func TestNormalizeMetadata(t *testing.T) {
	out, err := NormalizeMetadata(Metadata{"n": 1, "s": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["n"] != int64(1) {
		t.Errorf("n = %#v, want int64(1)", out["n"])
	}

	_, err = NormalizeMetadata(Metadata{"bad": map[string]int{}})
	if !errors.Is(err, ErrInvalidMetadataValue) {
		t.Errorf("error = %v, want ErrInvalidMetadataValue", err)
	}
}
