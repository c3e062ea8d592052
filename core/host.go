package core

// Job is one deferred continuation invocation, queued by a Scheduler
// and run later by the host's drain loop.
type Job func()

// Scheduler is the FIFO job queue that a Future defers its reactions
// through.
//
// Schedule must be callable from any goroutine.  When the scheduled
// Jobs actually run is the host's business; see package run.
type Scheduler interface {
	Schedule(Job)
}

// RejectionTracker is implemented by Schedulers that report
// unhandled rejections.
//
// A Future calls RejectedWithoutHandler when it rejects with no
// rejection handler ever attached, and RejectionHandled if a handler
// shows up afterwards.  A Scheduler that doesn't care doesn't
// implement this interface.
type RejectionTracker interface {
	RejectedWithoutHandler(*Future)
	RejectionHandled(*Future)
}

// Settleable is the adoption capability: anything that can report its
// eventual outcome to a pair of callbacks.
//
// Fulfilling a Future with a Settleable defers that Future's outcome
// to the Settleable's.  *Future is itself a Settleable.  An
// implementation should call at most one of the callbacks, at most
// once; an adopting Future only honors the first report regardless.
type Settleable interface {
	OnSettled(onFulfilled func(interface{}), onRejected func(error))
}
