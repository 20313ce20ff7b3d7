package metrics

import "time"

// RemoteMetrics provides observability for calls to the remote store.
//
// It satisfies remote.Observer, so it plugs straight into remote.Instrument.
type RemoteMetrics interface {
	// ObserveRemote records one remote client call.
	ObserveRemote(op string, duration time.Duration, err error)
}

// NewNoopRemoteMetrics returns a RemoteMetrics that discards everything.
func NewNoopRemoteMetrics() RemoteMetrics {
	return noopRemoteMetrics{}
}

type noopRemoteMetrics struct{}

func (noopRemoteMetrics) ObserveRemote(op string, duration time.Duration, err error) {}
