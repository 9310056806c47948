package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxErrorBody bounds how much of a provider error response gets copied
// into the returned error.
const maxErrorBody = 2048

type deepgramSynth struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

type deepgramPayload struct {
	Text string `json:"text"`
}

// NewDeepgramSynth builds a Synthesizer backed by the Deepgram Speak REST
// API. The endpoint is the full speak URL (https://api.deepgram.com/v1/speak);
// the model is passed per request as a query parameter.
func NewDeepgramSynth(endpoint, apiKey string, timeout time.Duration) Synthesizer {
	return &deepgramSynth{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (d *deepgramSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	body, err := json.Marshal(deepgramPayload{Text: req.Text})
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(d.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse speak endpoint: %w", err)
	}
	q := u.Query()
	q.Set("model", req.Model)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Token "+d.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("speak request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(detail))
		if msg == "" {
			return nil, fmt.Errorf("speak returned status %s", resp.Status)
		}
		return nil, fmt.Errorf("speak returned status %s: %s", resp.Status, msg)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speak response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("speak returned empty audio for model %s", req.Model)
	}
	return audio, nil
}
