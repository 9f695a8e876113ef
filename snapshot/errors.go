package snapshot

// TransportError covers connection failures, timeouts and bad HTTP statuses
// from the livetrack server.
type TransportError struct{ Cause error }

func (e TransportError) Error() string { return "transport: " + e.Cause.Error() }
func (e TransportError) Unwrap() error { return e.Cause }

// DecodeError covers a payload whose shape or field types don't match what
// the source is supposed to serve.
type DecodeError struct{ Cause error }

func (e DecodeError) Error() string { return "decode: " + e.Cause.Error() }
func (e DecodeError) Unwrap() error { return e.Cause }
