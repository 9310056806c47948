package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// transcriptionPrompt asks the model to normalize dictated contact details
// (spelled-out emails, digit-by-digit phone numbers) into standard form and
// to strip timestamps and speaker labels from the output.
const transcriptionPrompt = `Transcribe this audio accurately. If email addresses, phone numbers, or physical addresses are spoken, transcribe them carefully and standardize them: emails become lowercase with no spaces (e.g. "N I L A B 102 at GMAIL dot COM" -> nilab102@gmail.com), phone numbers spoken digit by digit become one continuous number. Remove timestamps and speaker labels from the transcription.`

type geminiRecognizer struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewGeminiRecognizer builds a Recognizer backed by the Gemini
// generateContent REST API. The endpoint is the API base
// (https://generativelanguage.googleapis.com).
func NewGeminiRecognizer(endpoint, apiKey, model string, timeout time.Duration) Recognizer {
	return &geminiRecognizer{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiGenConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (g *geminiRecognizer) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(audio),
				}},
				{Text: transcriptionPrompt},
			},
		}},
		GenerationConfig: geminiGenConfig{Temperature: 0},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.endpoint, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcription response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return "", fmt.Errorf("transcription returned status %s: %s", resp.Status, parsed.Error.Message)
		}
		return "", fmt.Errorf("transcription returned status %s", resp.Status)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("transcription response contained no candidates")
	}

	var out strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		out.WriteString(part.Text)
	}
	return out.String(), nil
}
