package connection

// ReadyState is the lifecycle stage of a connection. States below StateDone
// are ordered and a connection only moves forward through them. StateDone and
// StateCancelled are terminal; StateCancelled sits outside the ordering.
type ReadyState int

const (
	StateOpen ReadyState = iota
	StateHeadersReceived
	StateLoading
	StateDone
	StateCancelled
)

// Terminal reports whether no further forward transition is possible. Error
// is the one exception: it may still force a cancelled connection to done.
func (s ReadyState) Terminal() bool {
	return s == StateDone || s == StateCancelled
}

func (s ReadyState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHeadersReceived:
		return "headers_received"
	case StateLoading:
		return "loading"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}
