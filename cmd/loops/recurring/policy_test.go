package recurring_test

import (
	"errors"
	"testing"
	"time"

	"github.com/opencatalog/fem/cmd/loops/recurring"
	"github.com/opencatalog/fem/pkg/loop"
)

func TestParsePolicy(t *testing.T) {
	for name, testcase := range map[string]struct {
		expr     string
		expected string
		wantErr  bool
	}{
		"forever":                     {expr: "forever", expected: "forever:0s"},
		"forever with cooldown":       {expr: "forever:30s", expected: "forever:30s"},
		"forever with empty cooldown": {expr: "forever:", expected: "forever:0s"},
		"backlog":                     {expr: "backlog", expected: "backlog"},
		"broken cooldown":             {expr: "forever:soon", wantErr: true},
		"backlog with parameter":      {expr: "backlog:1s", wantErr: true},
		"unknown policy":              {expr: "never", wantErr: true},
	} {
		t.Run(name, func(t *testing.T) {
			p, err := recurring.ParsePolicy(testcase.expr)
			if testcase.wantErr {
				if err == nil {
					t.Error("an error is expected")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if p.String() != testcase.expected {
				t.Errorf("policy = %s, expected %s", p.String(), testcase.expected)
			}
		})
	}
}

func TestForever(t *testing.T) {
	p := recurring.Forever(30 * time.Second)

	t.Run("it restarts immediately while there are things to do", func(t *testing.T) {
		if next := p.Next(true, nil); next != loop.Continue(0) {
			t.Errorf("unexpected next: %+v", next)
		}
	})

	t.Run("it cools down when there was nothing to do", func(t *testing.T) {
		if next := p.Next(false, nil); next != loop.Continue(30*time.Second) {
			t.Errorf("unexpected next: %+v", next)
		}
	})
}

func TestBacklog(t *testing.T) {
	p := recurring.Backlog()

	t.Run("it restarts immediately while there are things to do", func(t *testing.T) {
		if next := p.Next(true, nil); next != loop.Continue(0) {
			t.Errorf("unexpected next: %+v", next)
		}
	})

	t.Run("it stops when the backlog is drained", func(t *testing.T) {
		if next := p.Next(false, nil); next != loop.Break(nil) {
			t.Errorf("unexpected next: %+v", next)
		}
	})
}

func TestUntilError(t *testing.T) {
	p := recurring.UntilError(recurring.Forever(0))

	t.Run("it follows the base policy while there is no error", func(t *testing.T) {
		if next := p.Next(true, nil); next != loop.Continue(0) {
			t.Errorf("unexpected next: %+v", next)
		}
	})

	t.Run("it breaks with the error", func(t *testing.T) {
		expected := errors.New("fake error")
		if next := p.Next(true, expected); next != loop.Break(expected) {
			t.Errorf("unexpected next: %+v", next)
		}
	})
}
