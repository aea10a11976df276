/*
Copyright © 2025 Jamie Mulcahy <jamie@mulcahy.dev>
*/

package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// createRetro handles POST /api/retros. It mints a collision-checked
// board id and a high-entropy owner secret, initializes the board, and
// returns the secret this one time only.
func createRetro(cfg *Config, store *RetroStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}

		var id string
		for {
			id = newRetroID()
			_, exists, err := store.RetroName(r.Context(), id)
			if err != nil {
				http.Error(w, "storage error", http.StatusInternalServerError)
				return
			}
			if !exists {
				break
			}
		}

		secret := newOwnerSecret()
		state := newRetroState(id, name)
		if err := store.CreateRetro(r.Context(), state, secret); err != nil {
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}

		logf(cfg, "RETRO: Created board %s (%q)", id, name)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":     id,
			"name":   name,
			"secret": secret,
		})
	}
}

// retroExists handles GET /api/retros/:retroid. It reports only whether
// the board is initialized and its display name, never the secret.
func retroExists(store *RetroStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		name, ok, err := store.RetroName(r.Context(), ps.ByName("retroid"))
		if err != nil {
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "no such retro", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":   ps.ByName("retroid"),
			"name": name,
		})
	}
}

// exportRetro handles GET /retro/:retroid/export, rendering the persisted
// snapshot as Markdown. Every accepted mutation is saved before broadcast,
// so the stored snapshot is never behind the live board.
func exportRetro(store *RetroStore) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		state, _, err := store.LoadRetro(r.Context(), ps.ByName("retroid"))
		if err != nil {
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		if state == nil {
			http.Error(w, "no such retro", http.StatusNotFound)
			return
		}

		state.refreshVoteCounts()

		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="`+state.ID+`.md"`)
		_, _ = w.Write([]byte(exportMarkdown(state)))
	}
}

// qrHandler generates a PNG QR code for the current board URL.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	retroID := ps.ByName("retroid")
	if retroID == "" {
		http.Error(w, "missing retro id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /retro/:retroid/qr; strip trailing "/qr" to get the board URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// registerRetroBoards sets up routes so that:
//   - POST /api/retros            → create a board, returning the owner secret once
//   - /api/retros/:retroid        → existence check
//   - /retro/:retroid             → HTML client shell
//   - /retro/:retroid/ws          → WebSocket for that board
//   - /retro/:retroid/qr          → PNG QR code for that board URL
//   - /retro/:retroid/export      → Markdown export of the board
func registerRetroBoards(cfg *Config, store *RetroStore, mux *httprouter.Router) {
	rm := newRetroManager(cfg, store)

	mux.POST(cfg.prefix+"/api/retros", createRetro(cfg, store))

	mux.GET(cfg.prefix+"/api/retros/:retroid", retroExists(store))

	mux.GET(cfg.prefix+"/retro/:retroid", serveRetroPage(cfg, store))

	mux.GET(cfg.prefix+"/retro/:retroid/ws", serveRetroWS(cfg, rm))

	mux.GET(cfg.prefix+"/retro/:retroid/qr", qrHandler)

	mux.GET(cfg.prefix+"/retro/:retroid/export", exportRetro(store))
}
