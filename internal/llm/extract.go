package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/voicedesk/voicedesk/internal/domain"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)```")

// ExtractJSON returns the JSON object in a model response, tolerating
// markdown code fences and prose around it.
func ExtractJSON(text string) (string, error) {
	candidate := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(candidate); m != nil {
		candidate = strings.TrimSpace(m[1])
	}
	start := strings.IndexAny(candidate, "{[")
	if start < 0 {
		return "", fmt.Errorf("%w: no JSON object in response", domain.ErrAnalysisMalformed)
	}
	closer := byte('}')
	if candidate[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(candidate, closer)
	if end < start {
		return "", fmt.Errorf("%w: unterminated JSON in response", domain.ErrAnalysisMalformed)
	}
	return candidate[start : end+1], nil
}

// DecodeJSON extracts the JSON in text and unmarshals it into v.
func DecodeJSON(text string, v any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAnalysisMalformed, err)
	}
	return nil
}

// ExtractTag returns the trimmed text between <tag> and </tag>. An
// unterminated tag yields "" since the output was likely truncated.
func ExtractTag(text, tag string) string {
	open, closing := "<"+tag+">", "</"+tag+">"
	start := strings.Index(text, open)
	if start < 0 {
		return ""
	}
	rest := text[start+len(open):]
	end := strings.Index(rest, closing)
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}
