package transcribe

import (
	"context"
	"fmt"
)

type mockRecognizer struct{}

func NewMockRecognizer() Recognizer {
	return &mockRecognizer{}
}

func (m *mockRecognizer) Transcribe(_ context.Context, audio []byte, mimeType string) (string, error) {
	return fmt.Sprintf("[transcript %s length=%d]", mimeType, len(audio)), nil
}
