package log

import "time"

// Emitter stamps events with a timestamp and connection identity before
// handing them to a Logger. A nil Logger disables all output.
type Emitter struct {
	Logger       Logger
	ConnectionID string
	RemoteAddr   string
}

// Enabled reports whether events will be recorded.
func (e Emitter) Enabled() bool {
	return e.Logger != nil
}

// Emit fills the common fields of event and logs it.
func (e Emitter) Emit(event Event) {
	if e.Logger == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ConnectionID == "" {
		event.ConnectionID = e.ConnectionID
	}
	if event.RemoteAddr == "" {
		event.RemoteAddr = e.RemoteAddr
	}
	e.Logger.Log(event)
}

// State records a state transition.
func (e Emitter) State(entity StateEntity, oldState, newState, reason string) {
	e.Emit(Event{
		Direction: DirectionLocal,
		Layer:     LayerConnection,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// Queue records outbound queue activity.
func (e Emitter) Queue(op QueueOp, kind string, depth, count int) {
	e.Emit(Event{
		Direction: DirectionLocal,
		Layer:     LayerConnection,
		Category:  CategoryQueue,
		Queue: &QueueEvent{
			Op:    op,
			Kind:  kind,
			Depth: depth,
			Count: count,
		},
	})
}

// Error records an error at layer. A nil err is ignored.
func (e Emitter) Error(layer Layer, err error, context string) {
	if err == nil {
		return
	}
	e.Emit(Event{
		Direction: DirectionLocal,
		Layer:     layer,
		Category:  CategoryError,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}
