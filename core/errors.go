package core

// A rejection usually carries an application-defined error, which
// this package passes along without looking at it.  The errors here
// are the ones the machine itself can produce.

// CyclicAdoption occurs when a Future is fulfilled with itself: the
// outcome would depend on the outcome, so the Future rejects instead
// of hanging.
//
// Only the direct cycle is detected.  A cycle through intermediaries
// leaves its Futures Pending forever, which is the same liveness
// hazard as adopting a Settleable that never settles.
type CyclicAdoption struct {
	Future *Future
}

func (e *CyclicAdoption) Error() string {
	return "future fulfilled with itself"
}
