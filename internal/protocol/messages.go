package protocol

import "time"

// SynthesisEvent announces a completed /tts request on the bus.
type SynthesisEvent struct {
	Digest    string    `json:"digest"`
	Model     string    `json:"model"`
	Link      string    `json:"link"`
	Cached    bool      `json:"cached"`
	Bytes     int       `json:"bytes"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectSynthesisCompleted = "speech.synthesis.completed"
)
