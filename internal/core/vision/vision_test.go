package vision

import "testing"

func TestFirstWeapon(t *testing.T) {
	dets := []Detection{
		{ClassID: 3, Label: "motorbike", Confidence: 0.99},
		{ClassID: WeaponClassID, Label: "Knife", Confidence: 0.5},  // at threshold, not positive
		{ClassID: WeaponClassID, Label: "Pistol", Confidence: 0.7}, // first qualifying
		{ClassID: WeaponClassID, Label: "Rifle", Confidence: 0.9},
	}

	det, ok := FirstWeapon(dets)
	if !ok {
		t.Fatal("expected a positive signal")
	}
	if det.Label != "Pistol" {
		t.Fatalf("expected first qualifying detection, got %q", det.Label)
	}

	if _, ok := FirstWeapon(nil); ok {
		t.Fatal("empty frame must be negative")
	}
	if _, ok := FirstWeapon([]Detection{{ClassID: 1, Confidence: 0.99}}); ok {
		t.Fatal("non-weapon class must be negative")
	}
}

func TestCOCOLabel(t *testing.T) {
	if got := COCOLabel(0); got != "person" {
		t.Fatalf("COCOLabel(0) = %q", got)
	}
	if got := COCOLabel(79); got != "toothbrush" {
		t.Fatalf("COCOLabel(79) = %q", got)
	}
	if got := COCOLabel(200); got != "Obj-200" {
		t.Fatalf("out-of-range fallback = %q", got)
	}
	if got := COCOLabel(-1); got != "Obj--1" {
		t.Fatalf("negative fallback = %q", got)
	}
}
