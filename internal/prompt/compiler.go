package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/voicedesk/voicedesk/internal/domain"
)

// Fields are the structured inputs an agent's prompt is compiled from.
type Fields struct {
	BusinessName   string          `json:"business_name"`
	AgentName      string          `json:"agent_name"`
	Industry       string          `json:"industry,omitempty"`
	Timezone       string          `json:"timezone,omitempty"`
	Personality    string          `json:"personality,omitempty"`
	Greeting       string          `json:"greeting,omitempty"`
	CallFlow       []string        `json:"call_flow,omitempty"`
	Services       []string        `json:"services,omitempty"`
	BusinessHours  string          `json:"business_hours,omitempty"`
	Location       string          `json:"location,omitempty"`
	TransferNumber string          `json:"transfer_number,omitempty"`
	Rules          []string        `json:"rules,omitempty"`
	KnowledgeItems []KnowledgeItem `json:"knowledge_items,omitempty"`
}

type sectionTemplate struct {
	kind SectionKind
	name string
	text string
}

var sectionTemplates = []sectionTemplate{
	{KindIdentity, "identity", `## 1. Identity

You are {{ .AgentName }}, the phone assistant for {{ .BusinessName }}{{ with .Industry }}, a {{ lower . }} business{{ end }}.
You answer inbound calls, help callers with their requests and represent {{ .BusinessName }} professionally.{{ with .Timezone }}
All times you mention are in the {{ . }} timezone.{{ end }}`},
	{KindPersonality, "personality", `## 2. Personality

{{ default "Warm, concise and patient. Speak naturally, keep answers short and confirm important details back to the caller." .Personality | trim }}`},
	{KindCallFlow, "call_flow", `## 3. Call Flow

Greeting: "{{ default (printf "Thanks for calling %s, this is %s. How can I help you today?" .BusinessName .AgentName) .Greeting }}"
{{- if .CallFlow }}
{{ range $i, $step := .CallFlow }}
{{ add1 $i }}. {{ trim $step }}{{ end }}
{{- else }}

1. Greet the caller and ask how you can help.
2. Understand the request and collect the caller's name and callback number.
3. Answer from the business details and knowledge base, or offer a follow-up.
4. Summarize next steps before ending the call.
{{- end }}`},
	{KindBusinessDetails, "business_details", `## 4. Business Details

Business: {{ .BusinessName }}{{ with .BusinessHours }}
Hours: {{ . }}{{ end }}{{ with .Location }}
Location: {{ . }}{{ end }}{{ if .Services }}
Services:{{ range .Services }}
- {{ trim . }}{{ end }}{{ end }}`},
	{KindRules, "rules", `## 5. Rules

- Never invent prices, availability or policies that are not in this prompt.
- If you do not know an answer, say so and offer to take a message.{{ with .TransferNumber }}
- Transfer the caller to {{ . }} when they ask for a person or the request is urgent.{{ end }}{{ range .Rules }}
- {{ trim . }}{{ end }}`},
	{KindKnowledgeBase, "knowledge_base", `## 6. Knowledge Base

Use the reference information below to answer caller questions. Prefer it over general knowledge.`},
}

// Compiler assembles compiled prompts from structured fields.
type Compiler struct {
	templates []*template.Template
}

// NewCompiler parses the section templates. It panics on a malformed
// template since they are fixed at build time.
func NewCompiler() *Compiler {
	c := &Compiler{}
	for _, st := range sectionTemplates {
		tmpl := template.Must(template.New(st.name).Funcs(sprig.FuncMap()).Parse(st.text))
		c.templates = append(c.templates, tmpl)
	}
	return c
}

// Compile renders fields into a document. Only the business and agent names
// are required.
func (c *Compiler) Compile(fields Fields) (*Document, error) {
	if strings.TrimSpace(fields.BusinessName) == "" {
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "business name is required")
	}
	if strings.TrimSpace(fields.AgentName) == "" {
		return nil, domain.NewDomainError(domain.ErrInvalidInput, "agent name is required")
	}

	doc := &Document{}
	for i, tmpl := range c.templates {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, fields); err != nil {
			return nil, fmt.Errorf("render %s section: %w", tmpl.Name(), err)
		}
		doc.Sections = append(doc.Sections, Section{
			Kind: sectionTemplates[i].kind,
			Text: strings.TrimRight(buf.String(), " \t\r\n"),
		})
	}

	for _, item := range fields.KnowledgeItems {
		if strings.TrimSpace(item.Name) == "" || strings.TrimSpace(item.Content) == "" {
			return nil, domain.NewDomainError(domain.ErrKnowledgeItemInvalid, item.Name)
		}
	}
	if len(fields.KnowledgeItems) > 0 {
		doc.Sections = append(doc.Sections, Section{
			Kind:  KindKnowledgeBaseContent,
			Text:  KnowledgeBaseContentMarker,
			Items: append([]KnowledgeItem(nil), fields.KnowledgeItems...),
		})
	}

	for i := 0; i < len(doc.Sections)-1; i++ {
		doc.Sections[i].Trailer = "\n\n"
	}
	return doc, nil
}
