package synth

import "context"

// Request contains parameters for one synthesis call.
type Request struct {
	Text  string
	Model string
}

// Synthesizer is the contract for producing a complete audio artifact.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}
