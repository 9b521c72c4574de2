// Package web holds the HTML templates served to browsers and sent in
// emails.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/unrolled/render"

	"github.com/turfwar-server/internal/upi"
)

//go:embed templates
var templates embed.FS

const (
	PayRedirectTemplate   = "pay_redirect"
	ReminderEmailTemplate = "reminder_email"
)

// Renderer renders the embedded templates.
type Renderer struct {
	r *render.Render
}

// NewRenderer loads the embedded templates.
func NewRenderer() *Renderer {
	return &Renderer{
		r: render.New(render.Options{
			Directory: "templates",
			FileSystem: &render.EmbedFileSystem{
				FS: templates,
			},
			Extensions: []string{".tmpl"},
			Funcs: []template.FuncMap{
				{
					// Deep links use wallet schemes that html/template would
					// otherwise replace with #ZgotmplZ.
					"deeplink": func(s string) template.URL { return template.URL(s) },
					"rupees":   rupees,
				},
			},
		}),
	}
}

// PayRedirectPage is the data for the deep-link landing page.
type PayRedirectPage struct {
	upi.DeepLinks
}

// ReminderEmail is the data for the payment reminder email body.
type ReminderEmail struct {
	MatchTitle    string
	RecipientName string
	Amount        int64
	QRImageURL    string
	RedirectURL   string
	OrganizerName string
	PayeeVPA      string
}

// WritePayRedirect renders the landing page to w.
func (rn *Renderer) WritePayRedirect(w http.ResponseWriter, status int, page PayRedirectPage) error {
	return rn.r.HTML(w, status, PayRedirectTemplate, page)
}

// ReminderEmailHTML renders the reminder email body.
func (rn *Renderer) ReminderEmailHTML(data ReminderEmail) (string, error) {
	var buf bytes.Buffer
	if err := rn.r.HTML(&buf, http.StatusOK, ReminderEmailTemplate, data); err != nil {
		return "", fmt.Errorf("rendering reminder email: %w", err)
	}
	return buf.String(), nil
}

func rupees(v interface{}) string {
	return fmt.Sprintf("₹%v", v)
}
