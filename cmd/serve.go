package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/maroofsyyed/Duesense1/internal/model"
	"github.com/maroofsyyed/Duesense1/internal/pipeline"
)

var servePort int

// dealService is the part of the pipeline the HTTP API needs.
type dealService interface {
	Submit(ctx context.Context, in model.InputSet) (*model.Deal, error)
	Run(ctx context.Context, dealID string, in model.InputSet) (*pipeline.Run, error)
	Status(ctx context.Context, dealID string) (*model.StatusView, error)
	List(ctx context.Context, stage model.Stage, limit int) ([]model.StatusView, error)
	Result(ctx context.Context, dealID string) (*model.RunResult, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the deal API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		handler, runs := buildMux(ctx, env.Pipeline)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		// In-flight runs see the cancelled context and record their failure.
		runs.Wait()
		return nil
	},
}

// buildMux wires the deal API. Submitted deals run in the background on
// ctx; the returned WaitGroup tracks them.
func buildMux(ctx context.Context, svc dealService) (http.Handler, *sync.WaitGroup) {
	var runs sync.WaitGroup

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/deals", func(w http.ResponseWriter, req *http.Request) {
		in, err := parseSubmission(w, req)
		if err != nil {
			writeError(w, err)
			return
		}

		deal, err := svc.Submit(req.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}

		runs.Add(1)
		go func() {
			defer runs.Done()
			run, err := svc.Run(ctx, deal.ID, in)
			if err != nil {
				zap.L().Error("deal run failed", zap.String("deal_id", deal.ID), zap.Error(err))
				return
			}
			zap.L().Info("deal run complete",
				zap.String("deal_id", deal.ID),
				zap.String("stage", string(run.Stage())),
			)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"deal_id": deal.ID,
			"stage":   string(deal.Stage),
		})
	})

	r.Get("/deals", func(w http.ResponseWriter, req *http.Request) {
		limit := 0
		if v := req.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, eris.Wrapf(model.ErrInvalidInput, "limit %q", v))
				return
			}
			limit = n
		}

		deals, err := svc.List(req.Context(), model.Stage(req.URL.Query().Get("stage")), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deals": deals})
	})

	r.Get("/deals/{id}/status", func(w http.ResponseWriter, req *http.Request) {
		status, err := svc.Status(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	})

	r.Get("/deals/{id}/result", func(w http.ResponseWriter, req *http.Request) {
		res, err := svc.Result(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	return r, &runs
}

// parseSubmission reads a multipart deal submission: an optional "deck"
// file plus website, profile, text and name fields.
func parseSubmission(w http.ResponseWriter, req *http.Request) (model.InputSet, error) {
	req.Body = http.MaxBytesReader(w, req.Body, model.MaxDocumentBytes+1<<20)
	if err := req.ParseMultipartForm(8 << 20); err != nil {
		return model.InputSet{}, eris.Wrapf(model.ErrInvalidInput, "parse form: %v", err)
	}

	in := model.InputSet{
		WebsiteURL:   req.FormValue("website"),
		ProfileURL:   req.FormValue("profile"),
		Text:         req.FormValue("text"),
		NameOverride: req.FormValue("name"),
	}

	file, header, err := req.FormFile("deck")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil
	case err != nil:
		return in, eris.Wrapf(model.ErrInvalidInput, "read deck: %v", err)
	}
	defer file.Close() //nolint:errcheck

	kind, err := documentKind(header.Filename)
	if err != nil {
		return in, err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return in, eris.Wrapf(model.ErrInvalidInput, "read deck: %v", err)
	}
	in.Document = &model.DocumentInput{Filename: filepath.Base(header.Filename), Kind: kind, Data: data}
	return in, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var insufficient *model.InsufficientInputError
	switch {
	case errors.As(err, &insufficient), errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrNotCompleted):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
