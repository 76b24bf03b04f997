package httpapi

import (
	"database/sql"
	"net/http"
	"path/filepath"
)

// NewMux registers the health check, the static assets and the index page.
// Feature modules add their own routes.
func NewMux(db *sql.DB, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db)
	if staticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
		index := filepath.Join(staticDir, "index.html")
		mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFile(w, r, index)
		})
	}
	return mux
}
