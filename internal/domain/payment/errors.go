package payment

// ProcessorError is a charge rejected or not completed by the processor.
// Message is the processor's human-readable explanation.
type ProcessorError struct {
	Code        string
	DeclineCode string
	Message     string
	Err         error
}

func (e *ProcessorError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

func (e *ProcessorError) Unwrap() error { return e.Err }
