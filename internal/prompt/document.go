package prompt

import (
	"strings"
)

const (
	// KnowledgeBaseContentMarker heads the section that holds merged KB items.
	KnowledgeBaseContentMarker = "## KNOWLEDGE BASE CONTENT"
	// KnowledgeBaseMarker heads the compiler's knowledge base chapter.
	KnowledgeBaseMarker = "## 6. Knowledge Base"

	headingPrefix = "## "
)

// SectionKind classifies a section of a compiled prompt.
type SectionKind string

const (
	KindPreamble             SectionKind = "preamble"
	KindIdentity             SectionKind = "identity"
	KindPersonality          SectionKind = "personality"
	KindCallFlow             SectionKind = "call_flow"
	KindBusinessDetails      SectionKind = "business_details"
	KindRules                SectionKind = "rules"
	KindKnowledgeBase        SectionKind = "knowledge_base"
	KindKnowledgeBaseContent SectionKind = "knowledge_base_content"
	KindOther                SectionKind = "other"
)

// KnowledgeItem is a named block of reference text.
type KnowledgeItem struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Block renders the item in the fixed shape used inside a compiled prompt.
func (k KnowledgeItem) Block() string {
	return "\n\n### " + k.Name + "\nName: " + k.Name + "\nContent:\n" + k.Content
}

// Section is one level-2 section. Text is the verbatim section text without
// trailing whitespace; Items are rendered after it and Trailer last.
type Section struct {
	Kind    SectionKind     `json:"kind"`
	Text    string          `json:"text"`
	Items   []KnowledgeItem `json:"items,omitempty"`
	Trailer string          `json:"trailer,omitempty"`
}

// Heading returns the section heading line, or "" for headless sections.
func (s Section) Heading() string {
	if !strings.HasPrefix(s.Text, headingPrefix) {
		return ""
	}
	line, _, _ := strings.Cut(s.Text, "\n")
	return strings.TrimRight(line, " \t\r")
}

// Render returns the exact text of the section.
func (s Section) Render() string {
	var b strings.Builder
	b.WriteString(s.Text)
	for _, item := range s.Items {
		b.WriteString(item.Block())
	}
	b.WriteString(s.Trailer)
	return b.String()
}

// Document is a compiled prompt held as ordered sections.
type Document struct {
	Sections []Section `json:"sections"`
}

// Render serializes the document to compiled prompt text.
func (d *Document) Render() string {
	if d == nil {
		return ""
	}
	var b strings.Builder
	for _, s := range d.Sections {
		b.WriteString(s.Render())
	}
	return b.String()
}

// Clone returns a deep copy that can be modified independently.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	clone := &Document{Sections: make([]Section, len(d.Sections))}
	for i, s := range d.Sections {
		s.Items = append([]KnowledgeItem(nil), s.Items...)
		clone.Sections[i] = s
	}
	return clone
}

// KnowledgeItems returns every structured item in document order.
func (d *Document) KnowledgeItems() []KnowledgeItem {
	var items []KnowledgeItem
	for _, s := range d.Sections {
		items = append(items, s.Items...)
	}
	return items
}

// Parse splits text at lines starting with "## ". Parse(t).Render() == t.
func Parse(text string) *Document {
	doc := &Document{}
	if text == "" {
		return doc
	}

	starts := headingOffsets(text)
	if len(starts) == 0 || starts[0] != 0 {
		starts = append([]int{0}, starts...)
	}

	for i, start := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		doc.Sections = append(doc.Sections, newSection(text[start:end]))
	}
	return doc
}

// headingOffsets returns the byte offsets of every line that opens a level-2 heading.
func headingOffsets(text string) []int {
	var offsets []int
	for i := 0; i < len(text); {
		if strings.HasPrefix(text[i:], headingPrefix) {
			offsets = append(offsets, i)
		}
		next := strings.IndexByte(text[i:], '\n')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return offsets
}

func newSection(raw string) Section {
	body := strings.TrimRight(raw, " \t\r\n")
	s := Section{Text: body, Trailer: raw[len(body):]}
	s.Kind = classify(s.Heading())
	return s
}

func classify(heading string) SectionKind {
	if heading == "" {
		return KindPreamble
	}
	if strings.HasPrefix(heading, KnowledgeBaseContentMarker) {
		return KindKnowledgeBaseContent
	}
	if strings.HasPrefix(heading, KnowledgeBaseMarker) {
		return KindKnowledgeBase
	}

	lower := strings.ToLower(heading)
	switch {
	case strings.Contains(lower, "identity"):
		return KindIdentity
	case strings.Contains(lower, "personality"):
		return KindPersonality
	case strings.Contains(lower, "call flow"):
		return KindCallFlow
	case strings.Contains(lower, "business"):
		return KindBusinessDetails
	case strings.Contains(lower, "rules"):
		return KindRules
	case strings.Contains(lower, "knowledge base"):
		return KindKnowledgeBase
	}
	return KindOther
}

// TokenCount estimates prompt size as a whitespace-separated word count.
func TokenCount(text string) int {
	return len(strings.Fields(text))
}
