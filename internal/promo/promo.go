// Package promo generates promotional content for selected inventory items
// through the language model.
package promo

import (
	"context"
	"fmt"
	"strings"

	"kirana/internal/models"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
)

// ItemLister is the store slice the generator reads from.
type ItemLister interface {
	ListByIDs(ctx context.Context, userID string, ids []uint) ([]models.InventoryItem, error)
}

// Generator writes short promotional blurbs for a shopkeeper's selected
// items.
type Generator struct {
	llm   llms.Model
	model string
	items ItemLister
}

// NewGenerator creates a promo generator.
func NewGenerator(llm llms.Model, model string, items ItemLister) *Generator {
	return &Generator{llm: llm, model: model, items: items}
}

// Generate produces a promotional message covering the selected items.
func (g *Generator) Generate(ctx context.Context, userID string, itemIDs []uint) (string, error) {
	items, err := g.items.ListByIDs(ctx, userID, itemIDs)
	if err != nil {
		return "", fmt.Errorf("failed to load selected items: %w", err)
	}
	if len(items) == 0 {
		return "", fmt.Errorf("no items found for selection")
	}

	var lines []string
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("- %s, %d in stock, %.2f each", item.Name, item.Quantity, item.Price))
	}

	prompt := fmt.Sprintf(`Write a short, upbeat WhatsApp promotion (under 60 words)
for a small neighborhood shop selling these products:
%s
Mention the shop has them in stock now. Plain text only, no hashtags.`, strings.Join(lines, "\n"))

	resp, err := g.llm.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, prompt)},
		llms.WithModel(g.model),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate promotion: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}
