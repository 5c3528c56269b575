package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// MockLLM is a mock implementation of the model interface
type MockLLM struct {
	mock.Mock
}

func (m *MockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	args := m.Called(ctx, messages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*llms.ContentResponse), args.Error(1)
}

func textResponse(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}
}

func TestExtractRows(t *testing.T) {
	mockLLM := new(MockLLM)
	mockLLM.On("GenerateContent", mock.Anything, mock.Anything).
		Return(textResponse(`[
			{"name":"Pepsi","quantity":12,"price":20,"expiryDate":""},
			{"name":"Milk","quantity":4,"price":30,"expiryDate":"15-01-2026"}
		]`), nil)

	e := NewExtractor(mockLLM, "test-model", 0.2)
	rows, err := e.ExtractRows(context.Background(), ModeItemSnap, [][]byte{{0xFF, 0xD8}})
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "Pepsi", rows[0].Name)
	assert.Equal(t, 12, rows[0].Quantity)
	assert.Equal(t, "15-01-2026", rows[1].ExpiryDate)
}

func TestExtractRowsStripsCodeFence(t *testing.T) {
	mockLLM := new(MockLLM)
	mockLLM.On("GenerateContent", mock.Anything, mock.Anything).
		Return(textResponse("```json\n[{\"name\":\"Chips\",\"quantity\":3,\"price\":10,\"expiryDate\":\"\"}]\n```"), nil)

	e := NewExtractor(mockLLM, "test-model", 0.2)
	rows, err := e.ExtractRows(context.Background(), ModeInvoice, [][]byte{{0xFF, 0xD8}})
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "Chips", rows[0].Name)
}

func TestExtractRowsDropsBadRows(t *testing.T) {
	mockLLM := new(MockLLM)
	mockLLM.On("GenerateContent", mock.Anything, mock.Anything).
		Return(textResponse(`[
			{"name":"","quantity":2,"price":5,"expiryDate":""},
			{"name":"Soap","quantity":0,"price":-3,"expiryDate":""}
		]`), nil)

	e := NewExtractor(mockLLM, "test-model", 0.2)
	rows, err := e.ExtractRows(context.Background(), ModeItemSnap, [][]byte{{0xFF, 0xD8}})
	require.NoError(t, err)

	// Nameless rows are dropped; implausible numbers are defaulted.
	require.Len(t, rows, 1)
	assert.Equal(t, "Soap", rows[0].Name)
	assert.Equal(t, 1, rows[0].Quantity)
	assert.Equal(t, 0.0, rows[0].Price)
}

func TestExtractRowsInvalidJSON(t *testing.T) {
	mockLLM := new(MockLLM)
	mockLLM.On("GenerateContent", mock.Anything, mock.Anything).
		Return(textResponse("I see some products on a shelf."), nil)

	e := NewExtractor(mockLLM, "test-model", 0.2)
	_, err := e.ExtractRows(context.Background(), ModeItemSnap, [][]byte{{0xFF, 0xD8}})
	assert.Error(t, err)
}

func TestExtractRowsRejectsShelfMode(t *testing.T) {
	e := NewExtractor(new(MockLLM), "test-model", 0.2)
	_, err := e.ExtractRows(context.Background(), ModeShelf, [][]byte{{0xFF, 0xD8}})
	assert.Error(t, err)
}

func TestExtractRowsRequiresFrames(t *testing.T) {
	e := NewExtractor(new(MockLLM), "test-model", 0.2)
	_, err := e.ExtractRows(context.Background(), ModeItemSnap, nil)
	assert.Error(t, err)
}

func TestAnalyzeShelf(t *testing.T) {
	mockLLM := new(MockLLM)
	mockLLM.On("GenerateContent", mock.Anything, mock.Anything).
		Return(textResponse(`{
			"score": 62,
			"summary": "Cluttered lower shelves, strong eye-level presentation.",
			"powerMove": "Move the chips rack next to the cold drinks fridge.",
			"visualIssues": [
				{"label":"empty slot","type":"stocking","frameIndex":0,"box2d":[10,20,110,140],"suggestion":"Refill with fast movers"}
			]
		}`), nil)

	e := NewExtractor(mockLLM, "test-model", 0.2)
	report, err := e.AnalyzeShelf(context.Background(), [][]byte{{0xFF, 0xD8}})
	require.NoError(t, err)

	assert.Equal(t, 62, report.Score)
	assert.NotEmpty(t, report.PowerMove)
	require.Len(t, report.VisualIssues, 1)
	assert.Equal(t, "stocking", report.VisualIssues[0].Type)
	assert.Equal(t, []int{10, 20, 110, 140}, report.VisualIssues[0].Box2D)
}

func TestStripCodeFence(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{`[]`, `[]`},
		{"```json\n[]\n```", `[]`},
		{"```\n{}\n```", `{}`},
		{"  ```json\n[1]\n```  ", `[1]`},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, stripCodeFence(tc.in))
	}
}
