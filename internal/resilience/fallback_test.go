package resilience

import (
	"errors"
	"testing"
	"time"
)

// fakeBackend is a trivial provider stand-in for group tests.
type fakeBackend struct {
	name string
	fail bool
}

func newGroup(primaryFails bool) (*FallbackGroup[*fakeBackend], *fakeBackend, *fakeBackend) {
	primary := &fakeBackend{name: "primary", fail: primaryFails}
	secondary := &fakeBackend{name: "secondary"}
	fg := NewFallbackGroup(primary, "primary", BreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})
	fg.Add("secondary", secondary)
	return fg, primary, secondary
}

func TestFallbackGroup_PrimaryFirst(t *testing.T) {
	fg, primary, _ := newGroup(false)

	var used *fakeBackend
	err := fg.Execute(func(b *fakeBackend) error {
		used = b
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != primary {
		t.Errorf("used %q, want primary", used.name)
	}
}

func TestFallbackGroup_FailoverToSecondary(t *testing.T) {
	fg, _, secondary := newGroup(true)

	var used *fakeBackend
	err := fg.Execute(func(b *fakeBackend) error {
		if b.fail {
			return errTest
		}
		used = b
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if used != secondary {
		t.Errorf("used %v, want secondary", used)
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	fg, _, _ := newGroup(true)

	err := fg.Execute(func(b *fakeBackend) error { return errTest })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroup_OpenBreakerSkipsPrimary(t *testing.T) {
	fg, primary, _ := newGroup(true)

	// Trip the primary's breaker (MaxFailures = 1).
	_ = fg.Execute(func(b *fakeBackend) error {
		if b.fail {
			return errTest
		}
		return nil
	})

	// Now the primary must not even be invoked.
	calls := map[string]int{}
	err := fg.Execute(func(b *fakeBackend) error {
		calls[b.name]++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls[primary.name] != 0 {
		t.Errorf("primary called %d times with open breaker, want 0", calls[primary.name])
	}
	if calls["secondary"] != 1 {
		t.Errorf("secondary called %d times, want 1", calls["secondary"])
	}
}

func TestExecuteWithResult(t *testing.T) {
	fg, _, _ := newGroup(true)

	got, err := ExecuteWithResult(fg, func(b *fakeBackend) (string, error) {
		if b.fail {
			return "", errTest
		}
		return "hello from " + b.name, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello from secondary" {
		t.Errorf("result = %q, want from secondary", got)
	}
}

func TestFallbackGroup_Primary(t *testing.T) {
	fg, primary, _ := newGroup(false)
	if fg.Primary() != primary {
		t.Error("Primary() did not return the first registered backend")
	}
}
