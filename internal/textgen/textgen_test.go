package textgen

import (
	"context"
	"errors"
	"testing"
)

func TestDisabledIsUnavailable(t *testing.T) {
	res := Disabled{}.Generate(context.Background(), Prompt{User: "x"})
	if res.Status != StatusUnavailable || !errors.Is(res.Err, ErrNotConfigured) {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestResultConstructors(t *testing.T) {
	if r := OK("hi"); r.Status != StatusOK || r.Text != "hi" {
		t.Fatalf("unexpected %+v", r)
	}
	boom := errors.New("boom")
	if r := Failed(boom); r.Status != StatusFailed || !errors.Is(r.Err, boom) {
		t.Fatalf("unexpected %+v", r)
	}
}

func TestStaticRecordsCalls(t *testing.T) {
	s := &Static{Result: OK("text")}
	s.Generate(context.Background(), Prompt{User: "first"})
	s.Generate(context.Background(), Prompt{User: "second"})
	n, last := s.Calls()
	if n != 2 || last.User != "second" {
		t.Fatalf("got %d calls, last %q", n, last.User)
	}
}
