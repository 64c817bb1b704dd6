package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/sirupsen/logrus"

	"minimal-user/internal/forms"
	"minimal-user/internal/ratelimit"
	"minimal-user/internal/service"
	"minimal-user/internal/session"
)

const (
	scopeLogin    = "login"
	scopeRegister = "register"

	msgInvalidLogin = "Invalid username or password"
	msgUserExists   = "A user with that username already exists."
	msgUnreadable   = "The submitted form could not be read. Please try again."
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users          service.UserService
	sessions       *session.Manager
	limiter        *ratelimit.Limiter
	logger         logrus.FieldLogger
	protectedPaths []string
}

func NewHandler(users service.UserService, sessions *session.Manager, limiter *ratelimit.Limiter, logger logrus.FieldLogger, protectedPaths []string) *Handler {
	if protectedPaths == nil {
		protectedPaths = DefaultProtectedPaths
	}
	return &Handler{
		users:          users,
		sessions:       sessions,
		limiter:        limiter,
		logger:         logger,
		protectedPaths: protectedPaths,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) error {
	tmpl, err := Templates()
	if err != nil {
		return err
	}
	router.SetHTMLTemplate(tmpl)

	router.Use(
		ErrorHandler(h.logger),
		RequestID(),
		Session(h.sessions, h.users, h.logger),
		AccessLog(h.logger, h.protectedPaths),
	)

	router.GET("/", h.home)
	router.Match([]string{http.MethodGet, http.MethodPost}, "/login/", RateLimit(h.limiter, scopeLogin), h.login)
	router.Match([]string{http.MethodGet, http.MethodPost}, "/register/", RateLimit(h.limiter, scopeRegister), h.register)
	router.Any("/logout/", h.logout)
	router.GET("/lookup/", LoginRequired(), h.lookup)
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})
	return nil
}

func (h *Handler) home(c *gin.Context) {
	render(c, http.StatusOK, "home.html", page{})
}

func (h *Handler) register(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		render(c, http.StatusOK, "register.html", page{})
		return
	}

	var form forms.RegistrationForm
	if err := c.ShouldBindWith(&form, binding.Form); err != nil {
		render(c, http.StatusOK, "register.html", page{Errors: h.unreadableForm(c, err)})
		return
	}

	errs := form.Validate()
	if errs.Valid() {
		_, err := h.users.Register(c.Request.Context(), form.Username, form.Email, form.Password1)
		switch {
		case err == nil:
			c.Redirect(http.StatusFound, "/login/")
			return
		case errors.Is(err, service.ErrUserAlreadyExists):
			errs.Add(forms.FieldUsername, msgUserExists)
		default:
			_ = c.Error(err)
			return
		}
	}

	render(c, http.StatusOK, "register.html", page{
		Values: map[string]string{
			forms.FieldUsername: form.Username,
			forms.FieldEmail:    form.Email,
		},
		Errors: errs,
	})
}

func (h *Handler) login(c *gin.Context) {
	next := safeNext(c.Query("next"))
	if c.Request.Method != http.MethodPost {
		render(c, http.StatusOK, "login.html", page{Next: next})
		return
	}

	var form forms.LoginForm
	if err := c.ShouldBindWith(&form, binding.Form); err != nil {
		render(c, http.StatusOK, "login.html", page{Errors: h.unreadableForm(c, err), Next: next})
		return
	}
	if v := c.PostForm("next"); v != "" {
		next = safeNext(v)
	}

	p := page{
		Values: map[string]string{forms.FieldUsername: form.Username},
		Next:   next,
	}
	p.Errors = form.Validate()
	if !p.Errors.Valid() {
		render(c, http.StatusOK, "login.html", p)
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		if !errors.Is(err, service.ErrInvalidCredentials) {
			_ = c.Error(err)
			return
		}
		p.Message = msgInvalidLogin
		render(c, http.StatusOK, "login.html", p)
		return
	}

	if err := h.sessions.Login(c.Writer, user); err != nil {
		_ = c.Error(err)
		return
	}
	if next == "" {
		next = "/"
	}
	c.Redirect(http.StatusFound, next)
}

func (h *Handler) logout(c *gin.Context) {
	h.sessions.Logout(c.Writer)
	c.Redirect(http.StatusFound, "/login/")
}

func (h *Handler) lookup(c *gin.Context) {
	username := c.Query("username")
	p := page{Values: map[string]string{forms.FieldUsername: username}}
	if username != "" {
		result, err := h.users.Lookup(c.Request.Context(), username)
		if err != nil {
			_ = c.Error(err)
			return
		}
		p.Searched = true
		p.Result = result
	}
	render(c, http.StatusOK, "lookup.html", p)
}

func (h *Handler) unreadableForm(c *gin.Context, err error) forms.Errors {
	requestLogger(h.logger, c).WithError(err).Debug("unreadable form body")
	errs := forms.Errors{}
	errs.Add(forms.FieldAll, msgUnreadable)
	return errs
}

// safeNext keeps only same-site absolute paths.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return next
}
