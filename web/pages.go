package web

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/andrebq/secrets/internal/logutil"
	"github.com/andrebq/secrets/session"
)

// MaxSecretLength bounds what a single account may submit.
const MaxSecretLength = 1024

var (
	//go:embed templates/*.html
	templateFS embed.FS

	//go:embed static
	staticFS embed.FS

	pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))
)

type (
	view struct {
		Message   string
		Secrets   []string
		Session   bool
		Identity  *session.Identity
		Google    bool
		Facebook  bool
		MaxSecret int
	}
)

func staticFiles() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

// render executes the page into memory first, a template failure must not
// leave a half written page behind a 200 status.
func render(w http.ResponseWriter, r *http.Request, status int, name string, data view) {
	var buf bytes.Buffer
	err := pages.ExecuteTemplate(&buf, name, data)
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Str("page", name).Msg("Unable to render page")
		http.Error(w, "unable to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	log := logutil.GetOrDefault(r.Context())
	log.Error().Err(err).Msg(msg)
	http.Error(w, "server is misbehaving, please try again later", http.StatusInternalServerError)
}
