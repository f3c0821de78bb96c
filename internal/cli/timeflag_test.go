package cli

import (
	"testing"
	"time"
)

func TestParseTimeFlag(t *testing.T) {
	cases := []struct {
		value   string
		want    time.Time
		wantErr bool
	}{
		{value: "2024-05-22", want: time.Date(2024, 5, 22, 0, 0, 0, 0, time.UTC)},
		{value: "2024-05-22T08:30:00+02:00", want: time.Date(2024, 5, 22, 6, 30, 0, 0, time.UTC)},
		{value: "22/05/2024", wantErr: true},
	}

	for _, tc := range cases {
		got, err := parseTimeFlag("as-of", tc.value)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.value)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.value, err)
		}
		if !got.Equal(tc.want) || got.Location() != time.UTC {
			t.Fatalf("%q: got %s, want %s", tc.value, got, tc.want)
		}
	}
}

func TestOptionalTimeFlagEmpty(t *testing.T) {
	got, err := optionalTimeFlag("from", "")
	if err != nil || got != nil {
		t.Fatalf("empty flag should yield nil, got %v (%v)", got, err)
	}
}
