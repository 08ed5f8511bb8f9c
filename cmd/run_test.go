package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

func TestDocumentKind(t *testing.T) {
	tests := []struct {
		file    string
		want    model.DocumentKind
		wantErr bool
	}{
		{"deck.pdf", model.KindPDF, false},
		{"Deck.PDF", model.KindPDF, false},
		{"seed-round.pptx", model.KindSlideDeck, false},
		{"notes.docx", "", true},
		{"legacy.ppt", "", true},
		{"README", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, err := documentKind(tt.file)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildInput_ReadsDeck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acme.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 fake"), 0o644))

	in, err := buildInput(path, " https://acme.ai ", "", "", "Acme")
	require.NoError(t, err)
	require.NotNil(t, in.Document)
	assert.Equal(t, "acme.pdf", in.Document.Filename)
	assert.Equal(t, model.KindPDF, in.Document.Kind)
	assert.Equal(t, "https://acme.ai", in.WebsiteURL)
	assert.Equal(t, "Acme", in.NameOverride)
}

func TestBuildInput_NothingSupplied(t *testing.T) {
	_, err := buildInput("", "", "", "  ", "Acme")

	var insufficient *model.InsufficientInputError
	assert.ErrorAs(t, err, &insufficient)
}

func TestBuildInput_MissingDeckFile(t *testing.T) {
	_, err := buildInput(filepath.Join(t.TempDir(), "missing.pdf"), "", "", "", "")
	assert.Error(t, err)
}

func sampleResult() *model.RunResult {
	return &model.RunResult{
		Deal:  model.Deal{ID: "deal-1", Name: "Acme Robotics", Stage: model.StageCompleted},
		Score: &model.ScoreRecord{CompositeScore: 67, Tier: model.Tier3},
	}
}

func TestWriteResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, sampleResult(), "json"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "deal-1", got["deal"].(map[string]any)["id"])
}

func TestWriteResult_YAMLUsesJSONFieldNames(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, sampleResult(), "yaml"))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	score := got["score"].(map[string]any)
	assert.Equal(t, 67, score["composite_score"])
	assert.Equal(t, "TIER_3", score["tier"])
}

func TestWriteResult_UnknownFormat(t *testing.T) {
	assert.Error(t, writeResult(&bytes.Buffer{}, sampleResult(), "xml"))
}
