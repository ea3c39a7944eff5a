// Package progress defines the observer sink for pipeline progress
// events. The pipeline behaves identically whether or not an observer
// is attached.
package progress

// Event is one ordered progress update.
type Event struct {
	// Stage names the pipeline stage emitting the event.
	Stage string
	// Message is a human-readable description.
	Message string
	// Fraction is the completion fraction in [0,1], or -1 when the
	// stage has no measurable progress.
	Fraction float64
}

// Observer receives ordered progress events.
type Observer interface {
	Publish(Event)
}

// Func adapts a function to the Observer interface.
type Func func(Event)

// Publish implements Observer.
func (f Func) Publish(e Event) { f(e) }

// nop discards all events.
type nop struct{}

func (nop) Publish(Event) {}

// Nop returns an observer that discards everything.
func Nop() Observer { return nop{} }
