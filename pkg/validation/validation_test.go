package validation

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidatePlayerName(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		want        string
		wantErr     bool
		errContains string
	}{
		{
			name:  "valid simple name",
			input: "Driver1",
			want:  "Driver1",
		},
		{
			name:  "valid name with spaces and punctuation",
			input: "Test Driver (left seat)",
			want:  "Test Driver (left seat)",
		},
		{
			name:  "leading and trailing spaces are trimmed",
			input: "  rally_01  ",
			want:  "rally_01",
		},
		{
			name:        "empty name",
			input:       "",
			wantErr:     true,
			errContains: "cannot be empty",
		},
		{
			name:        "only whitespace",
			input:       "   ",
			wantErr:     true,
			errContains: "cannot be only whitespace",
		},
		{
			name:        "too long name",
			input:       strings.Repeat("a", MaxPlayerNameLen+1),
			wantErr:     true,
			errContains: "too long",
		},
		{
			name:        "markup is rejected",
			input:       "Driver<script>",
			wantErr:     true,
			errContains: "invalid characters",
		},
		{
			name:        "control character",
			input:       "Driver\x00One",
			wantErr:     true,
			errContains: "control characters",
		},
		{
			name:        "invalid utf-8",
			input:       "Driver\xff",
			wantErr:     true,
			errContains: "UTF-8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePlayerName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePlayerName() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err != nil && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("ValidatePlayerName() error = %v, should contain %q", err, tt.errContains)
			}
			if got != tt.want {
				t.Errorf("ValidatePlayerName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDatagramValidator_Validate(t *testing.T) {
	v := NewDatagramValidator(28, 2)
	defer v.Close()

	if err := v.Validate(make([]byte, 29), "a"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Validate(29 bytes) error = %v, want ErrTooLarge", err)
	}

	for i := 0; i < 2; i++ {
		if err := v.Validate(make([]byte, 28), "a"); err != nil {
			t.Errorf("Validate() #%d error = %v, want nil", i, err)
		}
	}
	if err := v.Validate(make([]byte, 28), "a"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("Validate() over the limit error = %v, want ErrRateLimited", err)
	}
	if err := v.Validate(make([]byte, 28), "b"); err != nil {
		t.Errorf("Validate() from another source error = %v, want nil", err)
	}
}

func TestDatagramValidator_NoRateLimit(t *testing.T) {
	v := NewDatagramValidator(0, 0)
	defer v.Close()

	for i := 0; i < 1000; i++ {
		if err := v.Validate([]byte("x"), "a"); err != nil {
			t.Fatalf("Validate() #%d error = %v, want nil", i, err)
		}
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(3, time.Second)
	defer rl.Close()

	now := time.Unix(1700000000, 0)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("peer") {
			t.Errorf("Allow() #%d = false, want true", i)
		}
	}
	if rl.Allow("peer") {
		t.Error("Expected the fourth request in the window to be refused")
	}

	// A third of the window refills one token.
	now = now.Add(time.Second/3 + time.Millisecond)
	if !rl.Allow("peer") {
		t.Error("Expected a refilled token to be available")
	}
	if rl.Allow("peer") {
		t.Error("Expected only one token to refill")
	}

	// A long pause refills to the burst size, not beyond it.
	now = now.Add(time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.Allow("peer") {
			t.Errorf("Allow() after pause #%d = false, want true", i)
		}
	}
	if rl.Allow("peer") {
		t.Error("Expected the bucket to cap at the burst size")
	}
}

func TestRateLimiter_RemoveIdle(t *testing.T) {
	rl := NewRateLimiter(3, time.Second)
	defer rl.Close()

	now := time.Unix(1700000000, 0)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(3 * time.Second)
	rl.Allow("new")
	rl.removeIdle()

	if got := rl.Sources(); got != 1 {
		t.Errorf("Sources() = %d, want 1", got)
	}
	rl.Close()
	rl.Close()
}
