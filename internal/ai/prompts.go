// prompts.go - System instruction loaded once at startup

package ai

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/studyhub/study_eval_gemini/internal/processor"
)

// ErrPromptNotLoaded is returned by every evaluation when the system prompt
// could not be read at startup.
var ErrPromptNotLoaded = errors.New("system prompt was not loaded")

// SystemPrompt is the fixed instruction sent with every evaluation. The zero
// value and nil are the "not loaded" state.
type SystemPrompt struct {
	text     string
	path     string
	encoding string
}

// NewSystemPrompt wraps an in-memory instruction. Blank text yields the
// not-loaded state.
func NewSystemPrompt(text string) *SystemPrompt {
	return &SystemPrompt{text: strings.TrimSpace(text), encoding: "utf-8"}
}

// LoadSystemPrompt reads the instruction from path, trying UTF-8 and then
// CP949. On failure it still returns a usable not-loaded prompt alongside the
// error so the service can start and fail each evaluation fast.
func LoadSystemPrompt(path string) (*SystemPrompt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return &SystemPrompt{path: path}, fmt.Errorf("read system prompt %s: %w", path, err)
	}

	text, err := processor.DecodeText(data)
	if err != nil {
		return &SystemPrompt{path: path}, fmt.Errorf("decode system prompt %s: %w", path, err)
	}

	encoding := "utf-8"
	if !utf8.Valid(data) {
		encoding = "cp949"
	}

	prompt := &SystemPrompt{text: strings.TrimSpace(text), path: path, encoding: encoding}
	if !prompt.Loaded() {
		return prompt, fmt.Errorf("system prompt %s is empty", path)
	}
	return prompt, nil
}

// Loaded reports whether the prompt has usable text.
func (p *SystemPrompt) Loaded() bool {
	return p != nil && p.text != ""
}

// Text returns the instruction text.
func (p *SystemPrompt) Text() string {
	if p == nil {
		return ""
	}
	return p.text
}

// Encoding is the source encoding detected when loading from disk.
func (p *SystemPrompt) Encoding() string {
	if p == nil {
		return ""
	}
	return p.encoding
}

// Path is where the prompt was loaded from; empty for in-memory prompts.
func (p *SystemPrompt) Path() string {
	if p == nil {
		return ""
	}
	return p.path
}
