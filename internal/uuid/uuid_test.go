package uuid

import (
	"strings"
	"testing"
)

// =====================================================
// ID Generation Tests
// =====================================================

// TestNew_shape verifies generated ids are 32 lowercase hex chars, no dashes.
func TestNew_shape(t *testing.T) {
	id := New()

	if len(id) != 32 {
		t.Errorf("id length = %d, want 32", len(id))
	}
	if strings.Contains(id, "-") {
		t.Errorf("id %q contains dashes", id)
	}
	if !IsValid(id) {
		t.Errorf("generated id %q fails validation", id)
	}
}

// TestNew_unique verifies consecutive ids differ.
func TestNew_unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := New()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

// =====================================================
// Validation Tests
// =====================================================

// TestIsValid_rejectsMalformed verifies the strict hex-id format.
func TestIsValid_rejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"short",
		strings.Repeat("a", 31),
		strings.Repeat("a", 33),
		strings.Repeat("A", 32),                       // uppercase
		strings.Repeat("g", 32),                       // non-hex
		"123e4567-e89b-12d3-a456-426614174000",        // dashed form
	}
	for _, s := range bad {
		if IsValid(s) {
			t.Errorf("IsValid(%q) = true, want false", s)
		}
	}
	if !IsValid(strings.Repeat("0", 16) + strings.Repeat("f", 16)) {
		t.Error("valid hex id rejected")
	}
}

// TestValidate_errorMessage verifies Validate surfaces the offending value.
func TestValidate_errorMessage(t *testing.T) {
	if err := Validate(New()); err != nil {
		t.Errorf("Validate(New()) error = %v", err)
	}
	err := Validate("nope")
	if err == nil {
		t.Fatal("Validate should reject a malformed id")
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Errorf("error %q should name the bad value", err)
	}
}
