// Package frontend embeds the demo page and its assets.
package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed assets
var assets embed.FS

// Asset is one embedded file served at a fixed route.
type Asset struct {
	Route       string
	File        string
	ContentType string
}

// Assets lists every route served from the embedded files.
var Assets = []Asset{
	{Route: "/", File: "home.html", ContentType: "text/html; charset=utf-8"},
	{Route: "/ws-demo", File: "ws-demo.html", ContentType: "text/html; charset=utf-8"},
	{Route: "/ws-demo.css", File: "ws-demo.css", ContentType: "text/css"},
	{Route: "/ws-demo.js", File: "ws-demo.js", ContentType: "text/javascript"},
	{Route: "/main.css", File: "main.css", ContentType: "text/css"},
}

// Read returns the content of an embedded asset.
func Read(name string) ([]byte, error) {
	return fs.ReadFile(assets, "assets/"+name)
}

// Handler serves a single embedded asset with its content type.
func Handler(asset Asset) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := Read(asset.File)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", asset.ContentType)
		_, _ = w.Write(body)
	}
}
