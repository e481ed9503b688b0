package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/newsfacts/internal/dataset"
	"github.com/sells-group/newsfacts/internal/eval"
	"github.com/sells-group/newsfacts/internal/model"
	"github.com/sells-group/newsfacts/internal/monitoring"
	"github.com/sells-group/newsfacts/internal/store"
)

// maxEvaluateBody caps POST /evaluate payloads.
const maxEvaluateBody = 32 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for evaluation and run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(monitoring.NewCollector(st), monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(st),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// evaluateRequest keeps records raw so each element is checked against the
// same schemas as dataset files.
type evaluateRequest struct {
	Predictions []json.RawMessage `json:"predictions"`
	GroundTruth []json.RawMessage `json:"ground_truth"`
}

type evaluateResponse struct {
	RunID  string       `json:"run_id,omitempty"`
	Report *eval.Result `json:"report"`
}

// buildRouter wires the API routes over st.
func buildRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
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

	r.Post("/evaluate", func(w http.ResponseWriter, r *http.Request) {
		var req evaluateRequest
		body := http.MaxBytesReader(w, r.Body, maxEvaluateBody)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		preds, err := dataset.DecodePredictions(req.Predictions)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		truth, err := dataset.DecodeGroundTruth(req.GroundTruth)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, run, err := evaluateAndRecord(r.Context(), st, preds, truth, "", map[string]any{
			"source":       "api",
			"predictions":  len(preds),
			"ground_truth": len(truth),
		})
		if errors.Is(err, eval.ErrMalformedInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			zap.L().Error("evaluate request failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "evaluation failed")
			return
		}

		resp := evaluateResponse{Report: res}
		if run != nil {
			resp.RunID = run.ID
		}
		writeJSON(w, http.StatusOK, resp)
	})

	r.Route("/runs", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			filter := store.RunFilter{
				Kind:   model.RunKind(q.Get("kind")),
				Status: model.RunStatus(q.Get("status")),
			}
			var err error
			if filter.Limit, err = intParam(q.Get("limit")); err != nil {
				writeError(w, http.StatusBadRequest, "limit must be an integer")
				return
			}
			if filter.Offset, err = intParam(q.Get("offset")); err != nil {
				writeError(w, http.StatusBadRequest, "offset must be an integer")
				return
			}

			runs, err := st.ListRuns(r.Context(), filter)
			if err != nil {
				writeStoreError(w, err)
				return
			}
			if runs == nil {
				runs = []model.Run{}
			}
			writeJSON(w, http.StatusOK, runs)
		})

		r.Get("/{id}", func(w http.ResponseWriter, r *http.Request) {
			run, err := st.GetRun(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeStoreError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, run)
		})

		r.Get("/{id}/report", func(w http.ResponseWriter, r *http.Request) {
			raw, err := st.GetReport(r.Context(), chi.URLParam(r, "id"))
			if err != nil {
				writeStoreError(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(raw)
		})
	})

	return r
}

// requestLogger logs one line per request through zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("store request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
