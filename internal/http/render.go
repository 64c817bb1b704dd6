package http

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"minimal-user/internal/domain"
	"minimal-user/internal/forms"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded page templates.
func Templates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}

type page struct {
	Title     string
	User      *domain.User
	RequestID string

	Values  map[string]string
	Errors  forms.Errors
	Message string
	Next    string

	Searched bool
	Result   *domain.UserSummary
}

var pageTitles = map[string]string{
	"home.html":     "Home",
	"login.html":    "Log in",
	"register.html": "Register",
	"lookup.html":   "User lookup",
	"404.html":      "Page not found",
	"429.html":      "Too many requests",
	"500.html":      "Server error",
}

func render(c *gin.Context, status int, name string, p page) {
	if p.Title == "" {
		p.Title = pageTitles[name]
	}
	p.User = currentUser(c)
	p.RequestID = c.GetString(requestIDKey)
	c.HTML(status, name, p)
}

func renderError(c *gin.Context, status int) {
	var name string
	switch status {
	case http.StatusNotFound:
		name = "404.html"
	case http.StatusTooManyRequests:
		name = "429.html"
	default:
		status = http.StatusInternalServerError
		name = "500.html"
	}
	render(c, status, name, page{})
}
