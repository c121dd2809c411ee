package mqtt

import (
	"time"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// State is the lifecycle of the broker session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDropped
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDropped:
		return "dropped"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Action is what the session does after a connection event.
type Action int

const (
	ActionProceed Action = iota
	ActionRetry
	ActionFatal
)

func (a Action) String() string {
	switch a {
	case ActionProceed:
		return "proceed"
	case ActionRetry:
		return "retry"
	default:
		return "fatal"
	}
}

// Decision pairs an action with the wait before it and a log-friendly reason.
type Decision struct {
	Action Action
	Delay  time.Duration
	Reason string
}

// DecideConnect maps the result of a connect attempt to an action. Codes 1-5
// are CONNACK return codes; packets.ErrNetworkError stands for an attempt that
// never got a CONNACK.
func (c Config) DecideConnect(code byte) Decision {
	switch code {
	case packets.Accepted:
		return Decision{Action: ActionProceed, Reason: "connection accepted"}
	case packets.ErrRefusedBadProtocolVersion:
		return Decision{Action: ActionFatal, Reason: "unacceptable protocol version"}
	case packets.ErrRefusedIDRejected:
		return Decision{Action: ActionFatal, Reason: "identifier rejected"}
	case packets.ErrRefusedServerUnavailable:
		return Decision{Action: ActionRetry, Delay: c.ServerUnavailableDelay, Reason: "server unavailable"}
	case packets.ErrRefusedBadUsernameOrPassword:
		return Decision{Action: ActionFatal, Reason: "bad username or password"}
	case packets.ErrRefusedNotAuthorised:
		return Decision{Action: ActionFatal, Reason: "not authorized"}
	case packets.ErrNetworkError:
		return Decision{Action: ActionRetry, Delay: c.ConnectRetryDelay, Reason: "connect failed"}
	default:
		return Decision{Action: ActionFatal, Reason: "unexpected result code"}
	}
}

// DecideDisconnect maps a lost connection to an action. A disconnect the
// session asked for is clean; anything else waits for paho to reconnect.
func (c Config) DecideDisconnect(requested bool) Decision {
	if requested {
		return Decision{Action: ActionProceed, Reason: "clean disconnect"}
	}
	return Decision{Action: ActionRetry, Delay: c.ReconnectDelay, Reason: "unexpected disconnection"}
}
