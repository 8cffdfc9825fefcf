package guard

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const decisionContextKey contextKey = "guard:decision"

// MiddlewareConfig customizes how denials are answered.
type MiddlewareConfig struct {
	// LoginPath is the redirect target for unauthenticated requests.
	// Defaults to LoginRoute.
	LoginPath string

	// UnauthenticatedHandler replaces the default redirect.
	UnauthenticatedHandler http.Handler

	// ForbiddenHandler replaces the default 403 denial panel.
	ForbiddenHandler func(w http.ResponseWriter, r *http.Request, d Decision)
}

// Middleware guards a handler with fixed requirements:
//   - while the session loads it answers 503 with a checking notice,
//   - unauthenticated requests are redirected to the login page with 302,
//     without a return path,
//   - forbidden requests get 403 and the denial panel as HTML or JSON,
//   - allowed requests proceed with the decision in their context.
func Middleware(g *Guard, route string, req Requirements, cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return middleware(g, cfg, func(*http.Request) (string, Requirements) { return route, req })
}

// RouteMiddleware guards requests using the Routes table entry for the
// request path. Paths not in the table only require authentication.
func RouteMiddleware(g *Guard, cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return middleware(g, cfg, func(r *http.Request) (string, Requirements) {
		rt, _ := Lookup(r.URL.Path)
		return r.URL.Path, rt.Requirements
	})
}

func middleware(g *Guard, cfg MiddlewareConfig, resolve func(*http.Request) (string, Requirements)) func(http.Handler) http.Handler {
	login := cfg.LoginPath
	if login == "" {
		login = LoginRoute
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, req := resolve(r)
			d := g.Check(route, req)

			switch d.State {
			case StateAllowed:
				next.ServeHTTP(w, r.WithContext(withDecision(r.Context(), d)))

			case StateChecking:
				w.Header().Set("Retry-After", "1")
				writeDecision(w, r, http.StatusServiceUnavailable, "checking", d)

			case StateDeniedUnauthenticated:
				if cfg.UnauthenticatedHandler != nil {
					cfg.UnauthenticatedHandler.ServeHTTP(w, r)
					return
				}
				http.Redirect(w, r, login, http.StatusFound)

			case StateDeniedForbidden:
				if cfg.ForbiddenHandler != nil {
					cfg.ForbiddenHandler(w, r, d)
					return
				}
				writeDecision(w, r, http.StatusForbidden, "forbidden", d)
			}
		})
	}
}

func withDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, decisionContextKey, d)
}

// DecisionFromContext returns the decision that let the request through.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionContextKey).(Decision)
	return d, ok
}

// ErrorResponse is the JSON body of a denial.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// WantsJSON reports whether r asks for JSON rather than a page.
func WantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}

func writeDecision(w http.ResponseWriter, r *http.Request, status int, code string, d Decision) {
	lines := d.Lines()
	if WantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		resp := ErrorResponse{Error: code}
		if len(lines) > 0 {
			resp.Message = lines[0]
			resp.Details = lines[1:]
		}
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = panelTemplate.Execute(w, panelData(d))
}

type panel struct {
	Title   string
	Lines   []string
	Items   []string
	Loading bool
}

func panelData(d Decision) panel {
	p := panel{Loading: d.State == StateChecking}
	lines := d.Lines()
	if len(lines) > 0 {
		p.Title = lines[0]
	}
	for _, l := range lines[min(1, len(lines)):] {
		if item, ok := strings.CutPrefix(l, "  - "); ok {
			p.Items = append(p.Items, item)
			continue
		}
		p.Lines = append(p.Lines, l)
	}
	return p
}

var panelTemplate = template.Must(template.New("panel").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<div class="{{if .Loading}}checking{{else}}alert alert-error{{end}}" role="alert">
<strong>{{.Title}}</strong>
{{- range .Lines}}
<p>{{.}}</p>
{{- end}}
{{- if .Items}}
<ul>
{{- range .Items}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
</div>
</body></html>
`))
