package model

import "github.com/google/uuid"

// AudioChunk is one fragment of a recording, in arrival order.
type AudioChunk []byte

// Blob is a finalized recording tagged with the codec negotiated when it started.
type Blob struct {
	Data     []byte
	MimeType string
}

// Empty reports whether the blob carries no audio.
func (b Blob) Empty() bool {
	return len(b.Data) == 0
}

// Version selects which text of a request is handed off.
type Version int

const (
	Original Version = iota
	Enhanced
)

func (v Version) String() string {
	switch v {
	case Original:
		return "original"
	case Enhanced:
		return "enhanced"
	default:
		return "unknown"
	}
}

// ProjectRequest lives for one workflow session and is never persisted.
type ProjectRequest struct {
	ID           uuid.UUID
	RawText      string
	CleanedText  string
	EnhancedText string
}

// NewProjectRequest mints an empty request with a fresh ID.
func NewProjectRequest() *ProjectRequest {
	return &ProjectRequest{ID: uuid.New()}
}

// Text returns the text for the given version. Enhanced falls back to the raw
// text when no enhancement is available.
func (r *ProjectRequest) Text(v Version) string {
	if v == Enhanced && r.EnhancedText != "" {
		return r.EnhancedText
	}
	return r.RawText
}
