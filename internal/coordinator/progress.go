package coordinator

// ProgressEvent is emitted as the Coordinator advances through a
// Deployment or Rollback. Events go to a caller-supplied
// single-producer/single-consumer channel without blocking; an event is
// silently discarded when the channel is nil or its buffer is full.
type ProgressEvent struct {
	DeploymentID int32
	ChangesetID  int32
	ChangeID     int32
	ObjectType   string
	ObjectName   string
	Message      string
}

// emit sends ev on ch without blocking, dropping it if ch is nil or full,
// so callers can choose to drain it (a CLI renderer) or ignore it
// entirely.
func emit(ch chan<- ProgressEvent, ev ProgressEvent) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}
