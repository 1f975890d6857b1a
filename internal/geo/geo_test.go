package geo

import (
	"math"
	"testing"
)

func TestRelativeHeadOnDistance(t *testing.T) {
	c := NewCosLat()
	c.Update(45.0)

	// 0.010 deg of longitude at 45N is about 787 m due east.
	off := Relative(c, 45.0, 8.000, 45.0, 8.010)
	if off.Distance < 780 || off.Distance > 795 {
		t.Fatalf("expected ~787 m, got %.1f", off.Distance)
	}
	if off.Bearing < 89 || off.Bearing > 91 {
		t.Fatalf("expected bearing ~90, got %.1f", off.Bearing)
	}
	if off.Dy != 0 {
		t.Fatalf("expected dy 0, got %d", off.Dy)
	}
}

func TestRelativeNorthBearing(t *testing.T) {
	c := NewCosLat()
	c.Update(45.0)

	off := Relative(c, 45.0, 8.0, 45.0045, 8.0) // ~500 m north
	if off.Bearing != 0 {
		t.Fatalf("expected bearing 0, got %.1f", off.Bearing)
	}
	if off.Distance < 495 || off.Distance > 505 {
		t.Fatalf("expected ~500 m, got %.1f", off.Distance)
	}
}

func TestRelativeBearingWrapsPositive(t *testing.T) {
	c := NewCosLat()
	c.Update(45.0)

	off := Relative(c, 45.0, 8.0, 45.0, 7.99) // due west
	if off.Bearing < 269 || off.Bearing > 271 {
		t.Fatalf("expected bearing ~270, got %.1f", off.Bearing)
	}
}

func TestCosLatRefreshThreshold(t *testing.T) {
	c := NewCosLat()
	c.Update(45.0)
	before := c.Cos()

	// Within 0.3 deg: cache must not move.
	c.Update(45.25)
	if c.Cos() != before {
		t.Fatalf("cache refreshed inside 0.3 deg window")
	}

	// Beyond 0.3 deg: cache must refresh.
	c.Update(45.35)
	want := math.Cos(DegToRad * 45.35)
	if c.Cos() != want {
		t.Fatalf("cache not refreshed: got %v want %v", c.Cos(), want)
	}
}

func TestCosLatPolarClamp(t *testing.T) {
	c := NewCosLat()
	c.Update(89.9)
	inv := c.Inv()
	c.Update(89.999) // cos below 0.01, inverse must stay clamped
	if c.Inv() != inv {
		t.Fatalf("inverse recomputed near pole: %v", c.Inv())
	}
}

func TestRelativeHeading(t *testing.T) {
	cases := []struct {
		bearing, heading float64
		want             int
	}{
		{90, 90, 0},
		{90, 270, -180},
		{10, 350, 20},
		{350, 10, -20},
		{180, 0, 180},
	}
	for _, tc := range cases {
		if got := RelativeHeading(tc.bearing, tc.heading); got != tc.want {
			t.Fatalf("RelativeHeading(%v,%v) = %d, want %d", tc.bearing, tc.heading, got, tc.want)
		}
	}
}
