// Package models defines the data structures for caption fragments and
// merged lines.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Validation errors for incoming fragments.
var (
	ErrMissingSpeaker     = errors.New("fragment missing speaker_id")
	ErrMissingTimestamp   = errors.New("fragment missing start_timestamp")
	ErrMissingText        = errors.New("fragment missing text")
	ErrMissingTranslation = errors.New("fragment missing translation")
)

// Fragment is one upstream-produced unit of transcribed and translated
// speech. Fragments are immutable once enqueued; the merge engine only
// reads them.
type Fragment struct {
	SessionID      string  `json:"session_id"`
	SpeakerID      string  `json:"speaker_id"`
	Language       string  `json:"language"`
	StartTimestamp *int64  `json:"start_timestamp"`
	Text           *string `json:"text"`
	Translation    *string `json:"translation"`

	// Error is an optional upstream failure marker, passed through
	// unvalidated.
	Error string `json:"error,omitempty"`
}

// Validate checks the well-formedness invariant: start_timestamp,
// speaker_id, text, and translation must all be present. Malformed
// fragments are dropped by the caller, never stored.
func (f *Fragment) Validate() error {
	if f.SpeakerID == "" {
		return ErrMissingSpeaker
	}
	if f.StartTimestamp == nil {
		return ErrMissingTimestamp
	}
	if f.Text == nil {
		return ErrMissingText
	}
	if f.Translation == nil {
		return ErrMissingTranslation
	}
	return nil
}

// DecodeFragment parses a raw fragment payload. The session id may be
// absent from the payload when it is implicit in the routing key; the
// caller supplies it via defaultSession in that case.
func DecodeFragment(payload []byte, defaultSession string) (*Fragment, error) {
	var f Fragment
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("decode fragment: %w", err)
	}
	if f.SessionID == "" {
		f.SessionID = defaultSession
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Line is the merge engine's output: an accumulated, possibly
// multi-fragment utterance stored under one stable key. Speaker,
// language, and base timestamp are fixed when the thread opens; text and
// translation grow by space-joined append.
type Line struct {
	SessionID      string `json:"session_id"`
	SpeakerID      string `json:"speaker_id"`
	Language       string `json:"language"`
	StartTimestamp int64  `json:"start_timestamp"`
	Text           string `json:"text"`
	Translation    string `json:"translation"`

	// Upstream diagnostic fields are written to the store verbatim.
	Error string `json:"error,omitempty"`
}

// NewLine opens a thread from its first fragment. The fragment must have
// passed Validate.
func NewLine(f *Fragment) *Line {
	return &Line{
		SessionID:      f.SessionID,
		SpeakerID:      f.SpeakerID,
		Language:       f.Language,
		StartTimestamp: *f.StartTimestamp,
		Text:           *f.Text,
		Translation:    *f.Translation,
		Error:          f.Error,
	}
}

// Append merges a fragment into the line by whitespace-joined
// concatenation, in arrival order.
func (l *Line) Append(f *Fragment) {
	l.Text += " " + *f.Text
	l.Translation += " " + *f.Translation
}

// Encode serializes the line for storage.
func (l *Line) Encode() ([]byte, error) {
	return json.Marshal(l)
}
