package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pinotes/pinotes/internal/auth"
	"github.com/pinotes/pinotes/internal/index"
	"github.com/pinotes/pinotes/internal/note"
	"github.com/pinotes/pinotes/internal/tree"
	"github.com/pinotes/pinotes/internal/vault"
	"github.com/pinotes/pinotes/internal/wikilink"
)

// Handler holds API route handlers and their collaborators.
type Handler struct {
	vault     *vault.Vault
	engine    *index.Engine
	auth      *auth.Service
	tree      *tree.Cache
	links     *wikilink.Index
	backlinks *wikilink.Finder
}

// NewHandler creates a new Handler.
func NewHandler(v *vault.Vault, engine *index.Engine, authSvc *auth.Service, treeCache *tree.Cache, links *wikilink.Index, backlinks *wikilink.Finder) *Handler {
	return &Handler{
		vault:     v,
		engine:    engine,
		auth:      authSvc,
		tree:      treeCache,
		links:     links,
		backlinks: backlinks,
	}
}

// wildcardPath extracts the trailing path from the URL. Supports encoded
// slashes from API clients (e.g. topics%2Fnote.md).
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Login handles POST /api/auth/login: authenticate and set the session
// cookie. A locked account answers 429 with the lockout deadline.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	result, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		writePathError(w, err)
		return
	}
	if !result.LockedUntil.IsZero() {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"locked_until": result.LockedUntil.Format(time.RFC3339),
		})
		return
	}
	if result.Token == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody("invalid credentials"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    result.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true})
}

// Logout handles POST /api/auth/logout: delete the session and clear the
// cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(cookieValue(r))
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]any{})
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	_, ok := h.auth.Validate(cookieValue(r))
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": ok})
}

// Healthz handles GET /api/healthz (requires auth).
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// Tree handles GET /api/notes/tree: the filtered, cached vault file tree.
func (h *Handler) Tree(w http.ResponseWriter, _ *http.Request) {
	root, err := h.tree.Get()
	if err != nil {
		writePathError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, root)
}

// GetNote handles GET /api/notes/*: parsed frontmatter plus raw body.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	detail, err := note.Read(h.vault, path)
	if err != nil {
		writePathError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// GetAttachment handles GET /api/attachments/*: any validated vault file.
func (h *Handler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	abs, err := h.vault.Resolve(path, vault.KindAttachment)
	if err != nil {
		writePathError(w, err)
		return
	}
	http.ServeFile(w, r, abs)
}

// Search handles GET /api/search?q=: ranked full-text matches with
// highlighted snippets, at most 20.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"results": h.engine.Search(r.URL.Query().Get("q")),
	})
}

// RefreshIndex handles POST /api/search/refresh: run one refresh cycle on
// demand. The wikilink index and tree cache are invalidated alongside,
// since a manual refresh is the one acknowledgement that the vault changed.
func (h *Handler) RefreshIndex(w http.ResponseWriter, _ *http.Request) {
	count, elapsed, err := h.engine.Refresh()
	if err != nil {
		writePathError(w, err)
		return
	}
	h.links.Invalidate()
	h.tree.Invalidate()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":            count,
		"duration_seconds": elapsed.Seconds(),
	})
}

// Wikilinks handles GET /api/wikilinks: the stem → paths index.
func (h *Handler) Wikilinks(w http.ResponseWriter, _ *http.Request) {
	idx, err := h.links.Get()
	if err != nil {
		writePathError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

// Backlinks handles GET /api/backlinks/{stem}.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	stem := chi.URLParam(r, "stem")
	if stem == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("stem is required"))
		return
	}
	records, err := h.backlinks.Find(stem)
	if err != nil {
		writePathError(w, err)
		return
	}
	if records == nil {
		records = []wikilink.Backlink{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"backlinks": records})
}
