// ABOUTME: Tests for resource vector arithmetic and the satisfies order
// ABOUTME: Covers saturation, categorical compatibility, and transitivity

package resources

import "testing"

func TestAdd(t *testing.T) {
	a := Resources{CPU: 4, Memory: 8, Disk: 100, Bandwidth: 10}
	b := Resources{CPU: 2, Memory: 4, Disk: 50, Bandwidth: 5}

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Resources{CPU: 6, Memory: 12, Disk: 150, Bandwidth: 15}
	if sum != want {
		t.Errorf("Add() = %+v, want %+v", sum, want)
	}
}

func TestAddCategoricalMismatch(t *testing.T) {
	a := Resources{DiskSpeed: DiskSpeedFast}
	b := Resources{DiskSpeed: DiskSpeedSlow}

	if _, err := a.Add(b); err == nil {
		t.Fatal("expected a categorical mismatch error, got nil")
	}
}

func TestAddCategoricalAnyWidens(t *testing.T) {
	a := Resources{DiskSpeed: DiskSpeedFast}
	b := Resources{DiskSpeed: DiskSpeedAny}

	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.DiskSpeed != DiskSpeedFast {
		t.Errorf("DiskSpeed = %v, want fast", sum.DiskSpeed)
	}
}

func TestSubtractSaturates(t *testing.T) {
	a := Resources{CPU: 2, Memory: 2, DiskSpeed: DiskSpeedFast}
	b := Resources{CPU: 5, Memory: 1}

	diff := a.Subtract(b)
	if diff.CPU != 0 {
		t.Errorf("CPU = %v, want 0 (saturated)", diff.CPU)
	}
	if diff.Memory != 1 {
		t.Errorf("Memory = %v, want 1", diff.Memory)
	}
	if diff.DiskSpeed != DiskSpeedFast {
		t.Errorf("DiskSpeed changed across Subtract: got %v", diff.DiskSpeed)
	}
}

func TestSatisfiesNumeric(t *testing.T) {
	host := Resources{CPU: 8, Memory: 16, Disk: 200, Bandwidth: 100}
	tests := []struct {
		name     string
		required Resources
		want     bool
	}{
		{"exact fit", Resources{CPU: 8, Memory: 16, Disk: 200, Bandwidth: 100}, true},
		{"comfortably fits", Resources{CPU: 4, Memory: 8}, true},
		{"cpu too small", Resources{CPU: 9}, false},
		{"memory too small", Resources{Memory: 17}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := host.Satisfies(tt.required); got != tt.want {
				t.Errorf("Satisfies(%+v) = %v, want %v", tt.required, got, tt.want)
			}
		})
	}
}

func TestSatisfiesCategorical(t *testing.T) {
	tests := []struct {
		name string
		host Resources
		req  Resources
		want bool
	}{
		{"any host matches fast requirement", Resources{DiskSpeed: DiskSpeedAny}, Resources{DiskSpeed: DiskSpeedFast}, true},
		{"fast host matches any requirement", Resources{DiskSpeed: DiskSpeedFast}, Resources{DiskSpeed: DiskSpeedAny}, true},
		{"fast host matches fast requirement", Resources{DiskSpeed: DiskSpeedFast}, Resources{DiskSpeed: DiskSpeedFast}, true},
		{"slow host fails fast requirement", Resources{DiskSpeed: DiskSpeedSlow}, Resources{DiskSpeed: DiskSpeedFast}, false},
		{"remote storage fails local requirement", Resources{Storage: StorageTypeRemote}, Resources{Storage: StorageTypeLocal}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.host.Satisfies(tt.req); got != tt.want {
				t.Errorf("Satisfies() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestSatisfiesTransitive checks P1: satisfies composes transitively.
func TestSatisfiesTransitive(t *testing.T) {
	a := Resources{CPU: 16, Memory: 32}
	b := Resources{CPU: 8, Memory: 16}
	c := Resources{CPU: 4, Memory: 8}

	if !a.Satisfies(b) {
		t.Fatal("a should satisfy b")
	}
	if !b.Satisfies(c) {
		t.Fatal("b should satisfy c")
	}
	if !a.Satisfies(c) {
		t.Error("transitivity violated: a satisfies b, b satisfies c, but a does not satisfy c")
	}
}

func TestSatisfiesReflexive(t *testing.T) {
	r := Resources{CPU: 4, Memory: 8, Disk: 20, Bandwidth: 1, DiskSpeed: DiskSpeedFast, Storage: StorageTypeLocal}
	if !r.Satisfies(r) {
		t.Error("Satisfies should be reflexive")
	}
}

func TestSum(t *testing.T) {
	all := []Resources{
		{CPU: 1, Memory: 1},
		{CPU: 2, Memory: 2},
		{CPU: 3, Memory: 3},
	}
	total, err := Sum(all)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total.CPU != 6 || total.Memory != 6 {
		t.Errorf("Sum() = %+v, want {CPU:6 Memory:6}", total)
	}
}

func TestSumEmpty(t *testing.T) {
	total, err := Sum(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != (Resources{}) {
		t.Errorf("Sum(nil) = %+v, want zero value", total)
	}
}
