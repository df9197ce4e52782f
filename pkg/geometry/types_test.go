package geometry

import "testing"

func TestRectInt_Center(t *testing.T) {
	r := NewRectInt(10, 20, 100, 50)
	c := r.Center()
	if c.X != 60 || c.Y != 45 {
		t.Errorf("Center = %+v", c)
	}
}

func TestRectInt_Contains(t *testing.T) {
	r := NewRectInt(0, 0, 10, 10)
	if !r.Contains(PointInt{X: 5, Y: 5}) {
		t.Error("interior point should be contained")
	}
	if !r.Contains(PointInt{X: 10, Y: 10}) {
		t.Error("boundary point should be contained")
	}
	if r.Contains(PointInt{X: 11, Y: 5}) {
		t.Error("outside point should not be contained")
	}
}

func TestRectInt_Empty(t *testing.T) {
	if NewRectInt(0, 0, 10, 10).Empty() {
		t.Error("10x10 rect is not empty")
	}
	if !NewRectInt(5, 5, 0, 10).Empty() {
		t.Error("zero-width rect is empty")
	}
}
