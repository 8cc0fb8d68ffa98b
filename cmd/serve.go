package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/classifieds-cli/internal/analysis"
	"github.com/sells-group/classifieds-cli/internal/fetcher"
	"github.com/sells-group/classifieds-cli/internal/scrape"
	"github.com/sells-group/classifieds-cli/internal/store"
)

const maxRequestBytes = 1 << 20

var adIDParamRe = regexp.MustCompile(`^\d+$`)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for scraping, analysis, and follow-up questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initPipeline(ctx, cfg, modeServe)
		if err != nil {
			return err
		}
		defer env.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(env, cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
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

// apiServer adapts the pipelines to HTTP. It holds no state of its own.
type apiServer struct {
	store   store.Store
	scraper *scrape.Scraper
	service *analysis.Service
}

// buildRouter wires the API routes onto a chi router.
func buildRouter(env *pipelineEnv, corsOrigins []string) http.Handler {
	s := &apiServer{store: env.Store, scraper: env.Scraper, service: env.Service}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Disposition", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestSize(maxRequestBytes))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape", s.handleScrape)
		r.Route("/ads/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetAd)
			r.Get("/download", s.handleDownload)
			r.Post("/analyze", s.handleAnalyze)
			r.Post("/ask", s.handleAsk)
			r.Get("/chat", s.handleGetChat)
		})
	})
	r.Get("/images/{filename}", s.handleImage)

	return r
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	listingURL, err := scrape.NormalizeListingURL(req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid kleinanzeigen listing url")
		return
	}

	rec, err := s.scraper.Scrape(r.Context(), listingURL)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": rec})
}

func (s *apiServer) handleGetAd(w http.ResponseWriter, r *http.Request) {
	adID, ok := adIDParam(w, r)
	if !ok {
		return
	}
	rec, err := s.store.GetAd(r.Context(), adID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	adID, ok := adIDParam(w, r)
	if !ok {
		return
	}
	rec, err := s.store.GetAd(r.Context(), adID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", adID+".json"))
	writeJSON(w, http.StatusOK, rec)
}

func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	adID, ok := adIDParam(w, r)
	if !ok {
		return
	}
	rec, err := s.service.Analyze(r.Context(), adID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *apiServer) handleAsk(w http.ResponseWriter, r *http.Request) {
	adID, ok := adIDParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.service.AskFollowup(r.Context(), adID, req.Question)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *apiServer) handleGetChat(w http.ResponseWriter, r *http.Request) {
	adID, ok := adIDParam(w, r)
	if !ok {
		return
	}
	rec, err := s.store.GetChat(r.Context(), adID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *apiServer) handleImage(w http.ResponseWriter, r *http.Request) {
	path, err := s.store.ImagePath(chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image filename")
		return
	}
	http.ServeFile(w, r, path)
}

// fail maps err onto a status code and logs server-side failures.
func (s *apiServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	var fe *fetcher.FetchError
	switch {
	case eris.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case eris.Is(err, scrape.ErrInvalidURL), eris.Is(err, scrape.ErrNoAdID), eris.Is(err, analysis.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.As(err, &fe):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func adIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	adID := chi.URLParam(r, "id")
	if !adIDParamRe.MatchString(adID) {
		writeError(w, http.StatusBadRequest, "invalid ad id")
		return "", false
	}
	return adID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
