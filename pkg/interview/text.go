package interview

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Fallback texts used when the candidate supplies no context.
const (
	NoContextResume = "No specific background context provided. Please proceed with a standard interview based on the Role and Scenario."
	NoResume        = "No resume provided."
	// ExtractFailed is what a TextExtractor returns for a file it cannot read.
	ExtractFailed = "Error parsing resume."
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes <think>...</think> blocks some reasoning models emit, then trims.
func StripThinking(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// TextExtractor pulls plain text out of an uploaded resume. It never fails; unreadable
// input yields ExtractFailed.
type TextExtractor interface {
	Extract(data []byte, filename string) string
}

// PlainTextExtractor reads text-like uploads and rejects binary document formats.
type PlainTextExtractor struct{}

// Extract implements TextExtractor.
func (PlainTextExtractor) Extract(data []byte, filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx", ".doc":
		return ExtractFailed
	}
	if !utf8.Valid(data) {
		data = []byte(strings.ToValidUTF8(string(data), ""))
	}
	return strings.TrimSpace(string(data))
}
