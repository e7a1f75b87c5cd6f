package conn

import "testing"

func TestCanTransitionHappyPath(t *testing.T) {
	steps := []State{StateDisconnected, StateGatheringHost, StateConnecting, StateAuthenticating, StateConnected}
	for i := 1; i < len(steps); i++ {
		if !CanTransition(steps[i-1], steps[i]) {
			t.Fatalf("expected %s -> %s to be legal", steps[i-1], steps[i])
		}
	}
}

func TestCanTransitionRejectsSkippingStates(t *testing.T) {
	if CanTransition(StateDisconnected, StateConnected) {
		t.Fatal("expected DISCONNECTED -> CONNECTED to be illegal")
	}
	if CanTransition(StateConnected, StateAuthenticating) {
		t.Fatal("expected CONNECTED -> AUTHENTICATING to be illegal")
	}
}

func TestInterruptedOnlyReachableFromNonDisconnected(t *testing.T) {
	for _, s := range []State{StateGatheringHost, StateConnecting, StateAuthenticating, StateConnected} {
		if !CanTransition(s, StateInterrupted) {
			t.Fatalf("expected %s -> INTERRUPTED to be legal (goOffline)", s)
		}
	}
	if !CanTransition(StateInterrupted, StateGatheringHost) {
		t.Fatal("expected INTERRUPTED -> GATHERING_HOST to be legal (goOnline)")
	}
	if CanTransition(StateDisconnected, StateInterrupted) {
		t.Fatal("expected DISCONNECTED -> INTERRUPTED to be illegal")
	}
}

func TestIsOnlineOnlyWhenConnected(t *testing.T) {
	for _, s := range []State{StateDisconnected, StateGatheringHost, StateConnecting, StateAuthenticating, StateInterrupted} {
		if s.IsOnline() {
			t.Fatalf("%s should not be online", s)
		}
	}
	if !StateConnected.IsOnline() {
		t.Fatal("CONNECTED should be online")
	}
}
