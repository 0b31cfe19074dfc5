package statemachine

import "testing"

func TestLegalTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
	}{
		{Created, Ready},
		{Created, Blocked},
		{Created, Failed},
		{Ready, InProgress},
		{Ready, Blocked},
		{Blocked, Ready},
		{InProgress, Done},
		{InProgress, Blocked},
	}
	for _, c := range cases {
		if err := AssertTransition(c.from, c.to); err != nil {
			t.Errorf("expected %s -> %s to be legal, got %v", c.from, c.to, err)
		}
	}
}

func TestIllegalTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
	}{
		{Created, InProgress},
		{Ready, Created},
		{Blocked, InProgress},
		{Blocked, Done},
	}
	for _, c := range cases {
		if err := AssertTransition(c.from, c.to); err == nil {
			t.Errorf("expected %s -> %s to be illegal", c.from, c.to)
		}
	}
}

func TestDoneAndFailedAreAbsorbing(t *testing.T) {
	for _, terminal := range []Status{Done, Failed} {
		if !IsTerminal(terminal) {
			t.Errorf("expected %s to be terminal", terminal)
		}
		for _, to := range []Status{Created, Ready, Blocked, InProgress, Done, Failed} {
			if err := AssertTransition(terminal, to); err == nil {
				t.Errorf("expected %s -> %s to be illegal (terminal source)", terminal, to)
			}
		}
	}
}

func TestToAPIErrorNilSafe(t *testing.T) {
	if ToAPIError(nil) != nil {
		t.Fatal("expected nil apierror for nil IllegalTransition")
	}
	err := AssertTransition(Done, Ready)
	it, ok := err.(*IllegalTransition)
	if !ok {
		t.Fatalf("expected *IllegalTransition, got %T", err)
	}
	ae := ToAPIError(it)
	if ae == nil || ae.Code != "illegal_transition" {
		t.Fatalf("expected illegal_transition api error, got %v", ae)
	}
}
