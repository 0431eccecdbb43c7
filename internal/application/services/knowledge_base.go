package services

import (
	"context"
	"net/url"
	"strings"

	"github.com/voicedesk/voicedesk/internal/domain"
	"github.com/voicedesk/voicedesk/internal/domain/models"
	"github.com/voicedesk/voicedesk/internal/ports"
	"github.com/voicedesk/voicedesk/internal/prompt"
)

// KnowledgeBaseService merges named items into an agent's current prompt.
// Each merge produces a new current version; nothing is edited in place.
type KnowledgeBaseService struct {
	prompts ports.PromptService
	fetcher ports.PageFetcher
}

func NewKnowledgeBaseService(prompts ports.PromptService, fetcher ports.PageFetcher) *KnowledgeBaseService {
	return &KnowledgeBaseService{
		prompts: prompts,
		fetcher: fetcher,
	}
}

func (s *KnowledgeBaseService) AddItem(ctx context.Context, agentID string, item prompt.KnowledgeItem) (*models.PromptVersion, prompt.Placement, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.Name == "" || strings.TrimSpace(item.Content) == "" {
		return nil, "", domain.ErrKnowledgeItemInvalid
	}

	current, err := s.prompts.Current(ctx, agentID)
	if err != nil {
		return nil, "", err
	}

	doc := current.Structured()
	placement := doc.AddKnowledgeItem(item)

	version, err := s.prompts.SaveAndActivate(ctx, agentID, current.ID, doc,
		models.GenerationMethodUserEdited, "Added knowledge base item: "+item.Name)
	if err != nil {
		return nil, "", err
	}
	return version, placement, nil
}

// AddFromURL fetches a page and adds its readable content as an item named
// name, or the page title when name is empty.
func (s *KnowledgeBaseService) AddFromURL(ctx context.Context, agentID, pageURL, name string) (*models.PromptVersion, prompt.Placement, error) {
	if err := ValidateRequired(pageURL, "url"); err != nil {
		return nil, "", err
	}
	if s.fetcher == nil {
		return nil, "", domain.NewDomainError(domain.ErrInvalidInput, "fetching pages is disabled")
	}

	page, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, "", err
	}
	if strings.TrimSpace(page.Markdown) == "" {
		return nil, "", domain.NewDomainError(domain.ErrKnowledgeItemInvalid, "page has no readable content")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(page.Title)
	}
	if name == "" {
		name = hostOf(page.URL)
	}

	item := prompt.KnowledgeItem{
		Name:    name,
		Content: strings.TrimSpace(page.Markdown) + "\n\nSource: " + page.URL,
	}
	return s.AddItem(ctx, agentID, item)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
