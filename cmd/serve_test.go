package main

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/internal/pipeline"
)

type mockDealService struct {
	mock.Mock
}

func (m *mockDealService) Submit(ctx context.Context, in model.InputSet) (*model.Deal, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Deal), args.Error(1)
}

func (m *mockDealService) Run(ctx context.Context, dealID string, in model.InputSet) (*pipeline.Run, error) {
	args := m.Called(ctx, dealID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.Run), args.Error(1)
}

func (m *mockDealService) Status(ctx context.Context, dealID string) (*model.StatusView, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StatusView), args.Error(1)
}

func (m *mockDealService) List(ctx context.Context, stage model.Stage, limit int) ([]model.StatusView, error) {
	args := m.Called(ctx, stage, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StatusView), args.Error(1)
}

func (m *mockDealService) Result(ctx context.Context, dealID string) (*model.RunResult, error) {
	args := m.Called(ctx, dealID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RunResult), args.Error(1)
}

func multipartBody(t *testing.T, fields map[string]string, deckName string, deck []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if deckName != "" {
		fw, err := mw.CreateFormFile("deck", deckName)
		require.NoError(t, err)
		_, err = fw.Write(deck)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestBuildMux_HealthEndpoint(t *testing.T) {
	mux, _ := buildMux(context.Background(), &mockDealService{})

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildMux_SubmitRunsInBackground(t *testing.T) {
	svc := &mockDealService{}
	mux, runs := buildMux(context.Background(), svc)

	deck := []byte("%PDF-1.4 fake deck")
	want := model.InputSet{
		Document:     &model.DocumentInput{Filename: "acme.pdf", Kind: model.KindPDF, Data: deck},
		WebsiteURL:   "https://acme.ai",
		NameOverride: "Acme",
	}
	svc.On("Submit", mock.Anything, want).
		Return(&model.Deal{ID: "deal-1", Stage: model.StageProcessing}, nil)
	svc.On("Run", mock.Anything, "deal-1", want).
		Return(&pipeline.Run{DealID: "deal-1", History: []model.Stage{model.StageProcessing, model.StageCompleted}}, nil)

	body, contentType := multipartBody(t, map[string]string{"website": "https://acme.ai", "name": "Acme"}, "acme.pdf", deck)
	req := httptest.NewRequest(http.MethodPost, "/deals", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	runs.Wait()

	assert.Equal(t, http.StatusAccepted, rr.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "deal-1", resp["deal_id"])
	assert.Equal(t, "processing", resp["stage"])
	svc.AssertExpectations(t)
}

func TestBuildMux_SubmitWithoutInputs(t *testing.T) {
	svc := &mockDealService{}
	mux, runs := buildMux(context.Background(), svc)

	svc.On("Submit", mock.Anything, model.InputSet{NameOverride: "Acme"}).
		Return(nil, &model.InsufficientInputError{Reason: "no document, website, profile or text supplied"})

	body, contentType := multipartBody(t, map[string]string{"name": "Acme"}, "", nil)
	req := httptest.NewRequest(http.MethodPost, "/deals", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	runs.Wait()

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "insufficient input")
	svc.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestBuildMux_SubmitRejectsUnsupportedDeck(t *testing.T) {
	svc := &mockDealService{}
	mux, _ := buildMux(context.Background(), svc)

	for _, name := range []string{"deck.key", "legacy.ppt"} {
		body, contentType := multipartBody(t, nil, name, []byte("binary deck"))
		req := httptest.NewRequest(http.MethodPost, "/deals", body)
		req.Header.Set("Content-Type", contentType)
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code, name)
	}
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestBuildMux_Status(t *testing.T) {
	svc := &mockDealService{}
	mux, _ := buildMux(context.Background(), svc)

	svc.On("Status", mock.Anything, "deal-1").Return(&model.StatusView{
		DealID: "deal-1", Stage: model.StageFailed, FailureReason: "insufficient input: no usable text",
	}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/deals/deal-1/status", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var got model.StatusView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, model.StageFailed, got.Stage)
	assert.Equal(t, "insufficient input: no usable text", got.FailureReason)
}

func TestBuildMux_ListDeals(t *testing.T) {
	svc := &mockDealService{}
	mux, _ := buildMux(context.Background(), svc)

	svc.On("List", mock.Anything, model.StageFailed, 5).Return([]model.StatusView{
		{DealID: "deal-2", Stage: model.StageFailed, FailureReason: "stage write conflict"},
		{DealID: "deal-1", Stage: model.StageFailed},
	}, nil)
	svc.On("List", mock.Anything, model.Stage(""), 0).Return([]model.StatusView{}, nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/deals?stage=failed&limit=5", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var got struct {
		Deals []model.StatusView `json:"deals"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got.Deals, 2)
	assert.Equal(t, "deal-2", got.Deals[0].DealID)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/deals", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"deals":[]}`, rr.Body.String())
	svc.AssertExpectations(t)
}

func TestBuildMux_ListDealsRejectsBadQuery(t *testing.T) {
	svc := &mockDealService{}
	mux, _ := buildMux(context.Background(), svc)
	svc.On("List", mock.Anything, model.Stage("archived"), 0).
		Return(nil, eris.Wrap(model.ErrInvalidInput, `pipeline: unknown stage "archived"`))

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/deals?stage=archived", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/deals?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "limit")
	svc.AssertNumberOfCalls(t, "List", 1)
}

func TestBuildMux_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"unknown deal", eris.Wrap(model.ErrNotFound, "deal missing"), http.StatusNotFound},
		{"still running", eris.Wrap(model.ErrNotCompleted, "deal is scoring"), http.StatusConflict},
		{"store down", eris.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockDealService{}
			mux, _ := buildMux(context.Background(), svc)
			svc.On("Result", mock.Anything, "deal-1").Return(nil, tt.err)

			rr := httptest.NewRecorder()
			mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/deals/deal-1/result", nil))

			assert.Equal(t, tt.code, rr.Code)
			assert.Contains(t, rr.Body.String(), `"error"`)
		})
	}
}

func TestBuildMux_Result(t *testing.T) {
	svc := &mockDealService{}
	mux, _ := buildMux(context.Background(), svc)
	svc.On("Result", mock.Anything, "deal-1").Return(sampleResult(), nil)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/deals/deal-1/result", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var got model.RunResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, model.Tier3, got.Score.Tier)
}

func TestBuildMux_CORSPreflight(t *testing.T) {
	mux, _ := buildMux(context.Background(), &mockDealService{})

	req := httptest.NewRequest(http.MethodOptions, "/deals/deal-1/status", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
