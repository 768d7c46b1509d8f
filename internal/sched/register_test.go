package sched

import "testing"

func TestRegisterString(t *testing.T) {
	tests := []struct {
		name string
		reg  Register
		want string
	}{
		{"general", General(3), "x3"},
		{"predicate", Predicate(32), "p32"},
		{"lc", LC(), "LC"},
		{"ec", EC(), "EC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.reg.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegisterRotate(t *testing.T) {
	base := General(40)
	r := base.Rotate(1, 2)
	if !r.Rotating {
		t.Fatal("expected Rotating to be set")
	}
	if r.Resolved() != 43 {
		t.Errorf("Resolved() = %d, want 43", r.Resolved())
	}
	if r.String() != "x43" {
		t.Errorf("String() = %q, want x43", r.String())
	}

	// Rotate composes with any offsets already present.
	r2 := r.Rotate(1, 0)
	if r2.Resolved() != 44 {
		t.Errorf("Resolved() after second Rotate = %d, want 44", r2.Resolved())
	}
	// The original base is untouched.
	if base.Resolved() != 40 {
		t.Errorf("base.Resolved() = %d, want 40 (Rotate must not mutate the receiver's source)", base.Resolved())
	}
}
