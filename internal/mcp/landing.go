package mcp

import (
	"html/template"
	"net/http"
)

var landingTemplate = template.Must(template.New("landing").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Curriculum RAG</title>
<style>
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; background: #f8fafc; color: #0f172a; max-width: 640px; margin: 3rem auto; padding: 0 1rem; }
  h1 { font-size: 1.5rem; }
  code { font-family: Menlo, monospace; background: #e2e8f0; padding: 0 0.25rem; border-radius: 4px; }
  li { margin: 0.25rem 0; }
</style>
</head>
<body>
  <h1>Curriculum RAG</h1>
  <p>Answers NCERT textbook questions in the student's language, with page citations, over the Model Context Protocol.</p>
  <h2>Endpoints</h2>
  <ul>
    <li><a href="/mcp"><code>/mcp</code></a> MCP Streamable HTTP</li>
    <li><a href="/health"><code>/health</code></a> Health check</li>
  </ul>
  <h2>Tools</h2>
  <ul>
  {{- range .}}
    <li><code>{{.Name}}</code> {{.Description}}</li>
  {{- end}}
  </ul>
</body>
</html>`))

// NewLandingHandler returns an HTTP handler that serves the landing page at /,
// listing the tools registered on server.
func NewLandingHandler(server *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		landingTemplate.Execute(w, server.tools)
	}
}
