package geom

import (
	"errors"
	"math"
	"testing"
)

func pointsClose(a, b Point, tol float64) bool {
	return math.Abs(a.X-b.X) < tol && math.Abs(a.Y-b.Y) < tol
}

func TestComposeOrder(t *testing.T) {
	// Scale then translate is not the same as translate then scale.
	s := Scale(2, 2)
	tr := Translate(10, 0)

	p := Point{X: 1, Y: 1}

	scaleFirst := Compose(tr, s).ApplyPoint(p)
	if !pointsClose(scaleFirst, Point{X: 12, Y: 2}, 1e-12) {
		t.Errorf("scale-then-translate = %v, want (12, 2)", scaleFirst)
	}

	translateFirst := Compose(s, tr).ApplyPoint(p)
	if !pointsClose(translateFirst, Point{X: 22, Y: 2}, 1e-12) {
		t.Errorf("translate-then-scale = %v, want (22, 2)", translateFirst)
	}
}

func TestComposeAssociative(t *testing.T) {
	a := Scale(0.5, 2)
	b := Translate(3, -7)
	c := FlipX(256)

	left := Compose(Compose(a, b), c)
	right := Compose(a, Compose(b, c))

	p := Point{X: 31, Y: 17}
	if got, want := left.ApplyPoint(p), right.ApplyPoint(p); !pointsClose(got, want, 1e-9) {
		t.Errorf("(ab)c maps to %v, a(bc) maps to %v", got, want)
	}
}

func TestThen(t *testing.T) {
	got := Scale(2, 2).Then(Translate(1, 1)).ApplyPoint(Point{X: 3, Y: 4})
	want := Point{X: 7, Y: 9}
	if !pointsClose(got, want, 1e-12) {
		t.Errorf("Then = %v, want %v", got, want)
	}
}

func TestInvertRoundTrip(t *testing.T) {
	a := Compose(Translate(12, -3), Compose(Scale(0.365714, 0.365714), FlipX(700)))
	inv, err := a.Invert()
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}

	pts := []Point{{0, 0}, {100, 50}, {699, 255}, {-17, 3.5}}
	mapped := a.Apply(pts)
	back := inv.Apply(mapped)
	for i := range pts {
		if !pointsClose(back[i], pts[i], 1e-9) {
			t.Errorf("point %d: round trip %v -> %v", i, pts[i], back[i])
		}
	}
}

func TestInvertSingular(t *testing.T) {
	_, err := Scale(0, 1).Invert()
	if !errors.Is(err, ErrSingular) {
		t.Errorf("Invert(singular) = %v, want ErrSingular", err)
	}
}

func TestApplyPreservesOrderAndCount(t *testing.T) {
	pts := []Point{{1, 2}, {3, 4}, {5, 6}}
	out := Translate(1, 1).Apply(pts)
	if len(out) != len(pts) {
		t.Fatalf("Apply returned %d points, want %d", len(out), len(pts))
	}
	for i, p := range pts {
		want := Point{X: p.X + 1, Y: p.Y + 1}
		if out[i] != want {
			t.Errorf("point %d = %v, want %v", i, out[i], want)
		}
	}
	// Input untouched.
	if pts[0] != (Point{1, 2}) {
		t.Errorf("Apply mutated its input: %v", pts[0])
	}
}

func TestFlipXInvolution(t *testing.T) {
	f := FlipX(256)
	p := Point{X: 40, Y: 10}
	if got := f.ApplyPoint(f.ApplyPoint(p)); !pointsClose(got, p, 1e-12) {
		t.Errorf("flip twice = %v, want %v", got, p)
	}
}
