package vision

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kirana/internal/models"

	"github.com/google/uuid"
)

// ErrDraftNotFound is returned for unknown or expired draft ids.
var ErrDraftNotFound = errors.New("draft not found")

// expiryDateFormat matches the voice flow's spoken-date layout.
const expiryDateFormat = "02-01-2006"

// DraftRow is an editable extracted row awaiting confirmation.
type DraftRow struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	ExpiryDate string  `json:"expiryDate,omitempty"`
}

// Draft is a staged extraction result. Nothing in a draft touches the
// inventory until ConfirmAll; cancelling discards it without side effects.
type Draft struct {
	ID        string     `json:"id"`
	UserID    string     `json:"-"`
	Mode      Mode       `json:"mode"`
	Rows      []DraftRow `json:"rows"`
	CreatedAt time.Time  `json:"createdAt"`
}

// RowFailure records one row that could not be committed.
type RowFailure struct {
	RowID   string `json:"rowId"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// ConfirmResult aggregates the per-row outcomes of a confirm. One row's
// failure never blocks the others.
type ConfirmResult struct {
	Committed int          `json:"committed"`
	Failures  []RowFailure `json:"failures,omitempty"`
}

// ItemWriter is the store operation drafts commit through.
type ItemWriter interface {
	AddOrUpdate(ctx context.Context, userID, name string, qty int, price float64, expiry *time.Time) (*models.InventoryItem, error)
}

// DraftManager stages drafts in memory between extraction and confirmation.
type DraftManager struct {
	mu     sync.Mutex
	drafts map[string]*Draft
	writer ItemWriter
}

// NewDraftManager creates a draft manager committing through the given writer.
func NewDraftManager(writer ItemWriter) *DraftManager {
	return &DraftManager{
		drafts: make(map[string]*Draft),
		writer: writer,
	}
}

// Create stages extracted rows as a new draft for review.
func (m *DraftManager) Create(userID string, mode Mode, rows []ExtractedRow) *Draft {
	draft := &Draft{
		ID:        uuid.NewString(),
		UserID:    userID,
		Mode:      mode,
		CreatedAt: time.Now(),
	}
	for _, row := range rows {
		draft.Rows = append(draft.Rows, DraftRow{
			ID:         uuid.NewString(),
			Name:       row.Name,
			Quantity:   row.Quantity,
			Price:      row.Price,
			ExpiryDate: row.ExpiryDate,
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.drafts[draft.ID] = draft
	return draft
}

// Get returns a user's draft.
func (m *DraftManager) Get(userID, draftID string) (*Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft, ok := m.drafts[draftID]
	if !ok || draft.UserID != userID {
		return nil, ErrDraftNotFound
	}
	return draft, nil
}

// UpdateRow edits a draft row in place.
func (m *DraftManager) UpdateRow(userID, draftID string, row DraftRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft, ok := m.drafts[draftID]
	if !ok || draft.UserID != userID {
		return ErrDraftNotFound
	}
	for i := range draft.Rows {
		if draft.Rows[i].ID == row.ID {
			if row.Name != "" {
				draft.Rows[i].Name = row.Name
			}
			if row.Quantity > 0 {
				draft.Rows[i].Quantity = row.Quantity
			}
			if row.Price >= 0 {
				draft.Rows[i].Price = row.Price
			}
			draft.Rows[i].ExpiryDate = row.ExpiryDate
			return nil
		}
	}
	return fmt.Errorf("row %s not in draft", row.ID)
}

// RemoveRow deletes a row from a draft.
func (m *DraftManager) RemoveRow(userID, draftID, rowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft, ok := m.drafts[draftID]
	if !ok || draft.UserID != userID {
		return ErrDraftNotFound
	}
	for i := range draft.Rows {
		if draft.Rows[i].ID == rowID {
			draft.Rows = append(draft.Rows[:i], draft.Rows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("row %s not in draft", rowID)
}

// Cancel discards a draft without committing anything.
func (m *DraftManager) Cancel(userID, draftID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft, ok := m.drafts[draftID]
	if !ok || draft.UserID != userID {
		return ErrDraftNotFound
	}
	delete(m.drafts, draftID)
	return nil
}

// ConfirmAll commits every remaining row individually and discards the
// draft. Failures are collected per row, never aborting the rest.
func (m *DraftManager) ConfirmAll(ctx context.Context, userID, draftID string) (*ConfirmResult, error) {
	m.mu.Lock()
	draft, ok := m.drafts[draftID]
	if !ok || draft.UserID != userID {
		m.mu.Unlock()
		return nil, ErrDraftNotFound
	}
	delete(m.drafts, draftID)
	rows := append([]DraftRow(nil), draft.Rows...)
	m.mu.Unlock()

	result := &ConfirmResult{}
	for _, row := range rows {
		var expiry *time.Time
		if row.ExpiryDate != "" {
			parsed, err := time.Parse(expiryDateFormat, row.ExpiryDate)
			if err != nil {
				result.Failures = append(result.Failures, RowFailure{
					RowID:   row.ID,
					Name:    row.Name,
					Message: fmt.Sprintf("invalid expiry date %q, expected DD-MM-YYYY", row.ExpiryDate),
				})
				continue
			}
			expiry = &parsed
		}

		if _, err := m.writer.AddOrUpdate(ctx, userID, row.Name, row.Quantity, row.Price, expiry); err != nil {
			result.Failures = append(result.Failures, RowFailure{
				RowID:   row.ID,
				Name:    row.Name,
				Message: err.Error(),
			})
			continue
		}
		result.Committed++
	}
	return result, nil
}
