// Package vision converts photographed shelves and invoices into structured
// inventory data through a single-shot vision model call, and stages the
// result as an editable draft the user confirms before anything is committed.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"kirana/internal/util"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

// Mode selects the extraction prompt for a capture.
type Mode string

const (
	// ModeItemSnap reads products from a photo of goods on a counter.
	ModeItemSnap Mode = "item_snap"
	// ModeInvoice reads line items from a supplier invoice.
	ModeInvoice Mode = "invoice"
	// ModeShelf diagnoses merchandising issues in a shelf walkthrough.
	ModeShelf Mode = "shelf"
)

// ExtractedRow is one structured row returned by the vision model. ExpiryDate
// is DD-MM-YYYY or empty.
type ExtractedRow struct {
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	ExpiryDate string  `json:"expiryDate"`
}

// ShelfIssue is one flagged merchandising problem with its bounding box in
// the source frame.
type ShelfIssue struct {
	Label      string `json:"label"`
	Type       string `json:"type"`
	FrameIndex int    `json:"frameIndex"`
	Box2D      []int  `json:"box2d"`
	Suggestion string `json:"suggestion"`
}

// ShelfReport is the diagnosis of a shelf walkthrough. It is presentation
// only and never mutates inventory.
type ShelfReport struct {
	Score        int          `json:"score"`
	Summary      string       `json:"summary"`
	PowerMove    string       `json:"powerMove"`
	VisualIssues []ShelfIssue `json:"visualIssues"`
}

const itemSnapPrompt = `You are looking at a photo of retail products in a small shop.
List every distinct product you can identify. Respond with ONLY a JSON array, no prose:
[{"name": string, "quantity": number, "price": number, "expiryDate": "DD-MM-YYYY" or ""}]
Use quantity 1 when the count is unclear and price 0 when no price is visible.`

const invoicePrompt = `You are reading a supplier invoice for a small shop.
Extract every line item. Respond with ONLY a JSON array, no prose:
[{"name": string, "quantity": number, "price": number, "expiryDate": "DD-MM-YYYY" or ""}]
Price is the unit price, not the line total.`

const shelfPrompt = `You are a retail merchandising expert walking through a small shop.
Review these shelf photos and respond with ONLY a JSON object, no prose:
{"score": 0-100, "summary": string, "powerMove": string,
 "visualIssues": [{"label": string, "type": "stocking"|"facing"|"cleanliness"|"signage",
   "frameIndex": number, "box2d": [x1,y1,x2,y2], "suggestion": string}]}
The powerMove is the single highest-impact change the shopkeeper should make today.`

// Extractor runs one-shot vision calls against the configured model.
type Extractor struct {
	llm         llms.Model
	model       string
	temperature float64
	log         *zap.Logger
}

// NewExtractor creates an extractor using the given vision-capable model.
func NewExtractor(llm llms.Model, model string, temperature float64) *Extractor {
	return &Extractor{
		llm:         llm,
		model:       model,
		temperature: temperature,
		log:         util.GetLogger(),
	}
}

// ExtractRows runs item-snap or invoice extraction over the JPEG frames.
// Calls are sequential per capture; there is no mid-flight abort beyond
// context cancellation.
func (e *Extractor) ExtractRows(ctx context.Context, mode Mode, frames [][]byte) ([]ExtractedRow, error) {
	var prompt string
	switch mode {
	case ModeItemSnap:
		prompt = itemSnapPrompt
	case ModeInvoice:
		prompt = invoicePrompt
	default:
		return nil, fmt.Errorf("mode %q does not produce rows", mode)
	}

	raw, err := e.generate(ctx, mode, prompt, frames)
	if err != nil {
		return nil, err
	}

	var rows []ExtractedRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("vision response is not a valid row array: %w", err)
	}

	// Drop rows the model hallucinated without a usable name.
	kept := rows[:0]
	for _, row := range rows {
		if strings.TrimSpace(row.Name) == "" {
			continue
		}
		if row.Quantity <= 0 {
			row.Quantity = 1
		}
		if row.Price < 0 {
			row.Price = 0
		}
		kept = append(kept, row)
	}
	return kept, nil
}

// AnalyzeShelf runs the merchandising diagnosis over the JPEG frames.
func (e *Extractor) AnalyzeShelf(ctx context.Context, frames [][]byte) (*ShelfReport, error) {
	raw, err := e.generate(ctx, ModeShelf, shelfPrompt, frames)
	if err != nil {
		return nil, err
	}

	var report ShelfReport
	if err := json.Unmarshal([]byte(raw), &report); err != nil {
		return nil, fmt.Errorf("vision response is not a valid shelf report: %w", err)
	}
	return &report, nil
}

// RenderWorstFrame asks the model for an annotated "after" rendering of the
// worst frame as an SVG overlay, for before/after comparison in the UI. This
// has no inventory side effect.
func (e *Extractor) RenderWorstFrame(ctx context.Context, frame []byte, issues []ShelfIssue) (string, error) {
	issueList, err := json.Marshal(issues)
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`This shelf photo has these merchandising issues: %s
Respond with ONLY an SVG snippet (no prose) that overlays the photo with the
fixed arrangement: corrected facings, filled gaps and repositioned signage.`,
		string(issueList))

	return e.generate(ctx, ModeShelf, prompt, [][]byte{frame})
}

func (e *Extractor) generate(ctx context.Context, mode Mode, prompt string, frames [][]byte) (string, error) {
	if len(frames) == 0 {
		return "", fmt.Errorf("at least one frame is required")
	}

	parts := make([]llms.ContentPart, 0, len(frames)+1)
	for _, frame := range frames {
		parts = append(parts, llms.BinaryPart("image/jpeg", frame))
	}
	parts = append(parts, llms.TextPart(prompt))

	started := time.Now()
	resp, err := e.llm.GenerateContent(ctx,
		[]llms.MessageContent{{Role: schema.ChatMessageTypeHuman, Parts: parts}},
		llms.WithModel(e.model),
		llms.WithTemperature(e.temperature),
	)
	util.VisionScanLatency.Observe(time.Since(started).Seconds())

	if err != nil {
		util.VisionScansTotal.WithLabelValues(string(mode), "error").Inc()
		return "", fmt.Errorf("vision call failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		util.VisionScansTotal.WithLabelValues(string(mode), "empty").Inc()
		return "", fmt.Errorf("empty response from vision model")
	}

	util.VisionScansTotal.WithLabelValues(string(mode), "ok").Inc()
	return stripCodeFence(resp.Choices[0].Content), nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models insist on.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
