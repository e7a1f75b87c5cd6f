package conn

// State is one node of the connection's state machine (spec §4.1).
type State int32

const (
	StateDisconnected State = iota
	StateGatheringHost
	StateConnecting
	StateAuthenticating
	StateConnected
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateGatheringHost:
		return "gathering_host"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateConnected:
		return "connected"
	case StateInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// validTransitions enumerates the edges the state machine may take.
// GATHERING_HOST leads to CONNECTING once the socket opens, and CONNECTING
// leads to AUTHENTICATING when the handshake arrives; INTERRUPTED is reachable only
// by the caller's explicit goOffline, never by a network failure, and
// leaves (goOnline) back to GATHERING_HOST like any fresh connect.
var validTransitions = map[State][]State{
	StateDisconnected:   {StateGatheringHost},
	StateGatheringHost:  {StateConnecting, StateDisconnected, StateInterrupted},
	StateConnecting:     {StateAuthenticating, StateDisconnected, StateInterrupted},
	StateAuthenticating: {StateConnected, StateDisconnected, StateInterrupted},
	StateConnected:      {StateDisconnected, StateInterrupted},
	StateInterrupted:    {StateGatheringHost, StateDisconnected},
}

// CanTransition reports whether moving from cur to next is a legal edge.
func CanTransition(cur, next State) bool {
	for _, s := range validTransitions[cur] {
		if s == next {
			return true
		}
	}
	return false
}

// IsOnline reports whether writes/listens may be sent on the wire while in
// this state (only once fully CONNECTED).
func (s State) IsOnline() bool { return s == StateConnected }
