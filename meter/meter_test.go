package meter

import "testing"

func TestEditDistance(t *testing.T) {
	cases := []struct {
		a, b []string
		want int
	}{
		{nil, nil, 0},
		{[]string{"a"}, nil, 1},
		{nil, []string{"a", "b"}, 2},
		{[]string{"a", "b"}, []string{"a", "b"}, 0},
		{[]string{"a", "b"}, []string{"a", "c"}, 1},
		{[]string{"a", "b", "c"}, []string{"b", "c", "d"}, 2},
		{[]string{"x"}, []string{"a", "x", "b"}, 2},
	}
	for _, c := range cases {
		if got := EditDistance(c.a, c.b); got != c.want {
			t.Errorf("EditDistance(%v, %v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestEditMeter_Value(t *testing.T) {
	var m EditMeter
	m.Add([]string{"a", "b"}, []string{"a", "c"})
	if got := m.Value(); got != 50.0 {
		t.Errorf("Value() = %f, want 50.0", got)
	}
}

func TestEditMeter_EmptyReference(t *testing.T) {
	var m EditMeter
	m.Add(nil, nil)
	if got := m.Value(); got != 0 {
		t.Errorf("Value() = %f, want 0", got)
	}
}

func TestEditMeter_Accumulates(t *testing.T) {
	var m EditMeter
	m.Add([]string{"a", "b"}, []string{"a", "b"})
	m.Add([]string{"x"}, []string{"y"})
	// 1 edit over 3 reference symbols
	want := 100.0 / 3.0
	if got := m.Value(); got < want-1e-9 || got > want+1e-9 {
		t.Errorf("Value() = %f, want %f", got, want)
	}
}

func TestEditMeter_Reset(t *testing.T) {
	var m EditMeter
	m.Add([]string{"a"}, []string{"b"})
	m.Reset()
	if got := m.Value(); got != 0 {
		t.Errorf("Value() after Reset = %f, want 0", got)
	}
	m.Add([]string{"a"}, []string{"a"})
	if got := m.Value(); got != 0 {
		t.Errorf("Value() = %f, want 0", got)
	}
}
