// Package admin serves a read-only HTTP view of the package registry and
// the query engine.
package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/kk-code-lab/btide/internal/clock"
	"github.com/kk-code-lab/btide/internal/ops"
	"github.com/kk-code-lab/btide/internal/pkgchk"
	"github.com/kk-code-lab/btide/internal/registry"
)

// Hash kinds accepted by the hashes endpoint.
const (
	KindAll       = "all"
	KindCompleted = "completed"
	KindMin       = "min"
)

type Handler struct {
	Registry *registry.Store
	Clock    clock.Clock
	Log      logrus.FieldLogger
	// Dir enables GET /scan over the manifests in this directory.
	Dir string
}

// NewHandler returns the admin router.
func NewHandler(h Handler) http.Handler {
	if h.Clock == nil {
		h.Clock = clock.RealClock{}
	}
	if h.Log == nil {
		h.Log = logrus.StandardLogger()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return LoggingMiddleware(next, h.Clock, h.Log)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "unknown admin endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", h.health)
	r.Get("/scan", h.scan)
	r.Route("/packages", func(r chi.Router) {
		r.Get("/", h.listPackages)
		r.Get("/{ident}", h.getPackage)
		r.Get("/{ident}/hashes", h.hashes)
		r.Get("/{ident}/chunks/{hash}", h.chunks)
	})
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.Registry == nil {
		writeError(w, http.StatusInternalServerError, "registry not initialized")
		return
	}
	entries, err := h.Registry.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, HealthResponse{
		Status:   "ok",
		Packages: len(entries),
		Time:     h.Clock.Now().Format(time.RFC3339),
	})
}

func (h *Handler) scan(w http.ResponseWriter, r *http.Request) {
	if h.Dir == "" {
		writeError(w, http.StatusNotFound, "scan directory not configured")
		return
	}
	report, err := ops.Scan(h.Dir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, report)
}

func (h *Handler) listPackages(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Registry.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]PackageView, 0, len(entries))
	for _, e := range entries {
		out = append(out, view(e))
	}
	writeJSON(w, out)
}

func (h *Handler) getPackage(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, view(entry))
}

func (h *Handler) hashes(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = KindAll
	}
	if kind != KindAll && kind != KindCompleted && kind != KindMin {
		writeError(w, http.StatusBadRequest, "kind must be all|completed|min")
		return
	}
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var hashes pkgchk.Result
	switch kind {
	case KindAll:
		hashes = pkgchk.AllHashes(entry.Descriptor)
	case KindCompleted:
		hashes = pkgchk.CompletedChunks(entry.Descriptor)
	case KindMin:
		pkg, ok := h.build(w, entry)
		if !ok {
			return
		}
		hashes = pkg.MinCompletedHashes()
	}
	writeJSON(w, HashesResponse{Ident: entry.Ident, Kind: kind, Hashes: hashes})
}

func (h *Handler) chunks(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	pkg, ok := h.build(w, entry)
	if !ok {
		return
	}
	hash := chi.URLParam(r, "hash")
	chunks, err := pkg.ChunksUnder(hash)
	if err != nil {
		var nf *pkgchk.NotFoundError
		if errors.As(err, &nf) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, ChunksResponse{Ident: entry.Ident, Hash: hash, Chunks: chunks})
}

// lookup resolves the {ident} parameter, writing the error response when it
// does not name a managed package.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (registry.Entry, bool) {
	entry, err := h.Registry.Get(r.Context(), chi.URLParam(r, "ident"))
	switch {
	case err == nil:
		return entry, true
	case errors.Is(err, registry.ErrIdentTooShort):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
	return registry.Entry{}, false
}

func (h *Handler) build(w http.ResponseWriter, entry registry.Entry) (*pkgchk.Package, bool) {
	pkg, err := entry.Package()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return nil, false
	}
	return pkg, true
}

func view(e registry.Entry) PackageView {
	v := PackageView{
		Ident:    e.Ident,
		Filename: e.Filename,
		Size:     e.Descriptor.Size,
		Status:   string(e.Status),
		Done:     e.Done,
		Total:    e.Total,
		AddedAt:  e.AddedAt,
	}
	if pkg, err := e.Package(); err == nil {
		v.Root = pkg.RootHash()
	}
	return v
}
