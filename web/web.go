package web

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
)

var (
	//go:embed public_html/*
	publicHTML embed.FS
)

// Handler serves the embedded web interface, unknown paths fall back to
// index.html so the single page app owns its own routing.
func Handler() http.Handler {
	contentStatic, _ := fs.Sub(fs.FS(publicHTML), "public_html")
	fileServer := http.FileServer(http.FS(contentStatic))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fileName := strings.TrimPrefix(r.URL.Path, "/")
		if fileName == "" {
			fileName = "index.html"
		}

		file, err := contentStatic.Open(fileName)
		if err != nil {
			r.URL.Path = "/"
		} else {
			file.Close()
		}

		fileServer.ServeHTTP(w, r)
	})
}
