package scrape

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maroofsyyed/Duesense1/internal/resilience"
	"github.com/maroofsyyed/Duesense1/pkg/jina"
	jinamocks "github.com/maroofsyyed/Duesense1/pkg/jina/mocks"
)

var longContent = "# Acme Robotics\n\n" + strings.Repeat("Autonomous picking robots for mid-size warehouses. ", 5)

func TestJinaAdapter_Scrape_Success(t *testing.T) {
	t.Parallel()
	client := jinamocks.NewMockClient(t)
	client.On("Read", mock.Anything, "https://acme.ai").Return(&jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{
			URL:     "https://acme.ai",
			Title:   "Acme Robotics",
			Content: longContent,
			Usage:   jina.ReadUsage{Tokens: 500},
		},
	}, nil)

	result, err := NewJinaAdapter(client).Scrape(context.Background(), "https://acme.ai")
	require.NoError(t, err)
	assert.Equal(t, "jina", result.Source)
	assert.Equal(t, "Acme Robotics", result.Page.Title)
	assert.Equal(t, 200, result.Page.StatusCode)
	assert.Equal(t, 500, result.Tokens)
}

func TestJinaAdapter_Scrape_NeedsFallback(t *testing.T) {
	t.Parallel()
	client := jinamocks.NewMockClient(t)
	client.On("Read", mock.Anything, "https://blocked.ai").Return(&jina.ReadResponse{
		Code: 200,
		Data: jina.ReadData{Content: "short"},
	}, nil)

	_, err := NewJinaAdapter(client).Scrape(context.Background(), "https://blocked.ai")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNeedsFallback)
}

func TestJinaAdapter_CircuitOpensAfterFailures(t *testing.T) {
	t.Parallel()
	client := jinamocks.NewMockClient(t)
	client.On("Read", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused")).Times(3)

	adapter := NewJinaAdapter(client)
	for i := 0; i < 3; i++ {
		_, err := adapter.Scrape(context.Background(), "https://fail.ai")
		require.Error(t, err)
	}

	assert.False(t, adapter.Supports("https://fail.ai"))
	_, err := adapter.Scrape(context.Background(), "https://fail.ai")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestNeedsFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp *jina.ReadResponse
		want bool
	}{
		{"nil", nil, true},
		{"non-200", &jina.ReadResponse{Code: 451, Data: jina.ReadData{Content: longContent}}, true},
		{"too short", &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: "hi"}}, true},
		{"challenge", &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: "Just a moment... " + strings.Repeat("x", 120)}}, true},
		{"good", &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: longContent}}, false},
		{"long page mentioning access denied", &jina.ReadResponse{Code: 200, Data: jina.ReadData{Content: "access denied " + strings.Repeat("y", 1200)}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, needsFallback(tt.resp))
		})
	}
}
