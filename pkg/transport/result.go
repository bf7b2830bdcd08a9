package transport

// Result is the only outcome a caller of the exporter observes.
type Result int

const (
	// Failure means the batch was not delivered. Details went to the log.
	Failure Result = iota
	// Success means the collector accepted the request (2xx).
	Success
)

// String implements fmt.Stringer.
func (r Result) String() string {
	if r == Success {
		return "success"
	}

	return "failure"
}
