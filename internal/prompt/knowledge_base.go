package prompt

import "strings"

// Placement records where a knowledge base item was merged.
type Placement string

const (
	// PlacedInContentSection appended the item to an existing content section.
	PlacedInContentSection Placement = "content_section"
	// PlacedAfterKnowledgeBase opened a content section inside the knowledge base chapter.
	PlacedAfterKnowledgeBase Placement = "knowledge_base_chapter"
	// PlacedAtEnd opened a content section at the end of the document.
	PlacedAtEnd Placement = "document_end"
)

// AddKnowledgeItem merges item into the document. Existing text is never
// removed: the rendered result is always before[:i] + inserted + before[i:].
func (d *Document) AddKnowledgeItem(item KnowledgeItem) Placement {
	for i := range d.Sections {
		if d.Sections[i].Kind == KindKnowledgeBaseContent {
			d.Sections[i].Items = append(d.Sections[i].Items, item)
			return PlacedInContentSection
		}
	}

	for i := range d.Sections {
		if d.Sections[i].Kind == KindKnowledgeBase && strings.HasPrefix(d.Sections[i].Heading(), KnowledgeBaseMarker) {
			d.splitKnowledgeBase(i, item)
			return PlacedAfterKnowledgeBase
		}
	}

	if n := len(d.Sections); n > 0 {
		d.Sections[n-1].Trailer += "\n\n"
	}
	d.Sections = append(d.Sections, contentSection(item, ""))
	return PlacedAtEnd
}

// splitKnowledgeBase inserts a content section right after the first blank
// line that follows the knowledge base heading. Without a blank line the
// content section goes at the end of the chapter.
func (d *Document) splitKnowledgeBase(idx int, item KnowledgeItem) {
	raw := d.Sections[idx].Render()

	at, found := len(raw), false
	if headingEnd := strings.IndexByte(raw, '\n'); headingEnd >= 0 {
		if end := blankLineEnd(raw[headingEnd:]); end >= 0 {
			at, found = headingEnd+end, true
		}
	}

	head, tail := raw[:at], raw[at:]
	trailer := "\n\n"
	if !found {
		// no blank line in the chapter: open one before the new section
		head += strings.Repeat("\n", 2-trailingNewlines(raw))
		if idx == len(d.Sections)-1 {
			trailer = ""
		}
	}

	replacement := []Section{withKind(newSection(head), KindKnowledgeBase), contentSection(item, trailer)}
	if tail != "" {
		replacement = append(replacement, withKind(newSection(tail), KindKnowledgeBase))
	}

	sections := make([]Section, 0, len(d.Sections)+2)
	sections = append(sections, d.Sections[:idx]...)
	sections = append(sections, replacement...)
	sections = append(sections, d.Sections[idx+1:]...)
	d.Sections = sections
}

func contentSection(item KnowledgeItem, trailer string) Section {
	return Section{
		Kind:    KindKnowledgeBaseContent,
		Text:    KnowledgeBaseContentMarker,
		Items:   []KnowledgeItem{item},
		Trailer: trailer,
	}
}

func withKind(s Section, kind SectionKind) Section {
	s.Kind = kind
	return s
}

// blankLineEnd returns the offset just past the first empty line in s,
// which starts at a line break, or -1. LF and CRLF line endings both count.
func blankLineEnd(s string) int {
	lf := strings.Index(s, "\n\n")
	crlf := strings.Index(s, "\n\r\n")
	switch {
	case lf < 0 && crlf < 0:
		return -1
	case crlf < 0 || (lf >= 0 && lf < crlf):
		return lf + 2
	default:
		return crlf + 3
	}
}

func trailingNewlines(s string) int {
	n := 0
	for n < len(s) && n < 2 && s[len(s)-1-n] == '\n' {
		n++
	}
	return n
}

// MergeKnowledgeItem parses text and merges item into it.
func MergeKnowledgeItem(text string, item KnowledgeItem) (*Document, Placement) {
	doc := Parse(text)
	placement := doc.AddKnowledgeItem(item)
	return doc, placement
}
