package synth

import (
	"context"
	"fmt"
)

type mockSynth struct{}

func NewMockSynth() Synthesizer {
	return &mockSynth{}
}

// Synthesize returns deterministic bytes derived from the request so cache
// behavior is observable without a provider account.
func (m *mockSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("MOCKMP3|%s|%s", req.Model, req.Text)), nil
}
