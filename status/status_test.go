package status

import "testing"

func TestReady(t *testing.T) {
	cases := map[Status]bool{
		Up:      true,
		Idle:    true,
		Busy:    false,
		Down:    false,
		Error:   false,
		Invalid: false,
	}
	for s, want := range cases {
		if got := s.Ready(); got != want {
			t.Errorf("%s.Ready() = %v, want %v", s, got, want)
		}
	}
}

func TestParse(t *testing.T) {
	s, ok := Parse("UP")
	if !ok || s != Up {
		t.Fatalf("Parse(UP) = %v, %v; want Up, true", s, ok)
	}
	if _, ok := Parse("nonsense"); ok {
		t.Fatalf("Parse(nonsense) should not be recognized")
	}
}

func TestString(t *testing.T) {
	if Success.String() != "success" {
		t.Fatalf("Success.String() = %q", Success.String())
	}
}
