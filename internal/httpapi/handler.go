// Package httpapi exposes runs over HTTP: submit a batch, list history and
// fetch summaries.
package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpattn/enrollgate/internal/domain"
	"github.com/rpattn/enrollgate/internal/logging"
	"github.com/rpattn/enrollgate/internal/middleware"
	"github.com/rpattn/enrollgate/internal/pipeline"
	"github.com/rpattn/enrollgate/internal/repository"
	"github.com/rpattn/enrollgate/internal/runloader"
)

const maxUploadMemory = 32 << 20

// Options configures the handler.
type Options struct {
	Runner     *pipeline.Runner
	Repository repository.RunRepository
	OutDir     string
	UploadDir  string
	Logger     *zap.SugaredLogger
}

// Handler serves the run API.
type Handler struct {
	runner    *pipeline.Runner
	repo      repository.RunRepository
	outDir    string
	uploadDir string
	log       *zap.SugaredLogger
	mux       *http.ServeMux
}

// NewHandler registers the routes. The run loader middleware must wrap the
// returned handler for GET /runs/{key} to batch; without it each request
// builds its own loader.
func NewHandler(opts Options) (*Handler, error) {
	if opts.Runner == nil {
		return nil, errors.New("httpapi: runner is required")
	}
	if opts.Repository == nil {
		return nil, errors.New("httpapi: repository is required")
	}
	if opts.UploadDir == "" {
		return nil, errors.New("httpapi: upload dir is required")
	}
	if err := os.MkdirAll(opts.UploadDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create upload dir %s", opts.UploadDir)
	}
	if opts.Logger == nil {
		opts.Logger = logging.ComponentLogger("httpapi")
	}

	h := &Handler{
		runner:    opts.Runner,
		repo:      opts.Repository,
		outDir:    opts.OutDir,
		uploadDir: opts.UploadDir,
		log:       opts.Logger,
		mux:       http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /runs", h.createRun)
	h.mux.HandleFunc("GET /runs", h.listRuns)
	h.mux.HandleFunc("GET /runs/batch", h.batchRuns)
	h.mux.HandleFunc("GET /runs/{key}", h.getRun)
	h.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type errorResponse struct {
	Error  string `json:"error"`
	RunKey string `json:"run_key,omitempty"`
	RunDir string `json:"run_dir,omitempty"`
}

type listResponse struct {
	Runs   []domain.RunSummary `json:"runs"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

type batchResponse struct {
	Runs    []domain.RunSummary `json:"runs"`
	Missing []string            `json:"missing"`
}

func (h *Handler) createRun(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form data: %v", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file required: %v", err))
		return
	}
	defer file.Close()

	uploadPath, err := h.storeUpload(file, header.Filename)
	if err != nil {
		h.log.Errorw("failed to store upload", logging.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	res, err := h.runner.Run(r.Context(), pipeline.Request{
		InputPath: uploadPath,
		Format:    strings.TrimSpace(r.FormValue("format")),
		OutDir:    h.outDir,
		RunLabel:  strings.TrimSpace(r.FormValue("runLabel")),
		Command:   "POST /runs",
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrFatalInput) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:  err.Error(),
				RunKey: res.Identity.RunKey,
				RunDir: res.RunDir,
			})
			return
		}
		h.log.Errorw("run failed", logging.FieldInput, uploadPath, logging.FieldError, err)
		writeError(w, http.StatusInternalServerError, "run failed")
		return
	}

	writeJSON(w, http.StatusCreated, res.Summary)
}

// storeUpload copies the upload under a random name that keeps the original
// extension, so format auto-detection still works.
func (h *Handler) storeUpload(src io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	path := filepath.Join(h.uploadDir, uuid.NewString()+ext)

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(path)
		return "", errors.Wrap(err, "copy upload")
	}
	if err := dst.Close(); err != nil {
		return "", errors.Wrapf(err, "close %s", path)
	}
	return path, nil
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", repository.DefaultListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, total, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		h.log.Errorw("failed to list runs", logging.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []domain.RunSummary{}
	}
	writeJSON(w, http.StatusOK, listResponse{Runs: runs, Total: total, Limit: limit, Offset: offset})
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	summary, err := h.loader(r).Load(r.Context(), key)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", key))
			return
		}
		h.log.Errorw("failed to load run", logging.FieldRunKey, key, logging.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) batchRuns(w http.ResponseWriter, r *http.Request) {
	keys := r.URL.Query()["key"]
	if len(keys) == 0 {
		writeError(w, http.StatusBadRequest, "at least one key parameter is required")
		return
	}
	if len(keys) > repository.MaxListLimit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d keys per request", repository.MaxListLimit))
		return
	}

	summaries, errs := h.loader(r).LoadMany(r.Context(), keys)
	resp := batchResponse{Runs: []domain.RunSummary{}, Missing: []string{}}
	for i, err := range errs {
		switch {
		case err == nil:
			resp.Runs = append(resp.Runs, summaries[i])
		case errors.Is(err, repository.ErrRunNotFound):
			resp.Missing = append(resp.Missing, keys[i])
		default:
			h.log.Errorw("failed to load runs", logging.FieldCount, len(keys), logging.FieldError, err)
			writeError(w, http.StatusInternalServerError, "failed to load runs")
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) loader(r *http.Request) *runloader.RunLoader {
	if l := middleware.RunLoaderFromContext(r.Context()); l != nil {
		return l
	}
	return runloader.NewRunLoader(h.repo)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.Newf("%s must be a non-negative integer", name)
	}
	return v, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
