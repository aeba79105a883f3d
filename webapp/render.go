package webapp

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/andrebq/secrets/internal/logutil"
)

type (
	page struct {
		Error         string   `json:"error,omitempty"`
		Secrets       []string `json:"secrets,omitempty"`
		Authenticated bool     `json:"authenticated"`
		Federated     bool     `json:"-"`
	}

	renderer struct {
		pages map[string]*template.Template
	}
)

var (
	//go:embed views/*.html
	views embed.FS

	pageNames = []string{"home", "login", "register", "secrets", "submit", "error"}
)

func newRenderer() (*renderer, error) {
	rd := &renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		tpl, err := template.ParseFS(views, "views/layout.html", fmt.Sprintf("views/%v.html", name))
		if err != nil {
			return nil, fmt.Errorf("unable to parse view %v, cause %w", name, err)
		}
		rd.pages[name] = tpl
	}
	return rd, nil
}

// render writes the named page, or its data as JSON when the client asks
// for it.
func (rd *renderer) render(w http.ResponseWriter, r *http.Request, status int, name string, data page) {
	var buf bytes.Buffer
	var contentType string
	if wantsJSON(r) {
		contentType = "application/json; charset=utf-8"
		if err := json.NewEncoder(&buf).Encode(data); err != nil {
			rd.fail(w, r, name, err)
			return
		}
	} else {
		tpl, ok := rd.pages[name]
		if !ok {
			rd.fail(w, r, name, fmt.Errorf("view %v not found", name))
			return
		}
		contentType = "text/html; charset=utf-8"
		// render to memory first so a template error never leaves a half written page
		if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
			rd.fail(w, r, name, err)
			return
		}
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (rd *renderer) fail(w http.ResponseWriter, r *http.Request, name string, err error) {
	log := logutil.GetOrDefault(r.Context())
	log.Error().Err(err).Str("view", name).Msg("Unable to render view")
	http.Error(w, "unable to render page", http.StatusInternalServerError)
}

func wantsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		switch mt {
		case "application/json":
			return true
		case "text/html":
			return false
		}
	}
	return false
}
