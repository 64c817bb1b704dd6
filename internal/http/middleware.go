package http

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"minimal-user/internal/domain"
	"minimal-user/internal/ratelimit"
	"minimal-user/internal/repository"
	"minimal-user/internal/service"
	"minimal-user/internal/session"
)

const (
	requestIDKey    = "request_id"
	userKey         = "user"
	requestIDHeader = "X-Request-ID"
)

// DefaultProtectedPaths are the request paths AccessLog reports for anonymous visitors.
var DefaultProtectedPaths = []string{"/", "lookup/"}

// ErrorHandler renders the custom error pages. Panics and errors pushed with
// c.Error become the 500 page; a 404 without a body becomes the 404 page.
func ErrorHandler(logger logrus.FieldLogger) gin.HandlerFunc {
	recovery := gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		requestLogger(logger, c).WithField("panic", recovered).Error("request panicked")
		renderError(c, http.StatusInternalServerError)
		c.Abort()
	})

	return func(c *gin.Context) {
		recovery(c)

		// AbortWithStatus flushes headers, so only a written body counts as handled.
		if c.Writer.Size() > 0 {
			return
		}
		if len(c.Errors) > 0 {
			requestLogger(logger, c).WithError(c.Errors.Last()).Error("request failed")
			renderError(c, http.StatusInternalServerError)
			return
		}
		if c.Writer.Status() == http.StatusNotFound {
			renderError(c, http.StatusNotFound)
		}
	}
}

// RequestID tags every request with an id, reusing a well-formed incoming one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// Session resolves the session cookie into the current user. Requests with a
// missing, invalid or stale cookie continue anonymously.
func Session(sessions *session.Manager, users service.UserService, logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := sessions.UserID(c.Request)
		if err != nil {
			c.Next()
			return
		}

		user, err := users.GetByID(c.Request.Context(), id)
		switch {
		case err == nil:
			c.Set(userKey, user)
		case errors.Is(err, repository.ErrUserNotFound):
			sessions.Logout(c.Writer)
		default:
			requestLogger(logger, c).WithError(err).Warn("resolve session user")
		}
		c.Next()
	}
}

// AccessLog records anonymous hits on protected paths. Paths are compared
// verbatim against the request path.
func AccessLog(logger logrus.FieldLogger, protectedPaths []string) gin.HandlerFunc {
	protected := make(map[string]struct{}, len(protectedPaths))
	for _, p := range protectedPaths {
		protected[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if currentUser(c) == nil {
			if _, ok := protected[c.Request.URL.Path]; ok {
				requestLogger(logger, c).Infof("Unauthorized access to %s", c.Request.URL.Path)
			}
		}
		c.Next()
	}
}

// RateLimit blocks a client IP once it exceeds the limiter's quota for scope.
func RateLimit(limiter *ratelimit.Limiter, scope string) gin.HandlerFunc {
	retryAfter := strconv.Itoa(int(limiter.Window().Seconds()))

	return func(c *gin.Context) {
		allowed, err := limiter.Allow(c.Request.Context(), scope, c.ClientIP())
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		if !allowed {
			c.Header("Retry-After", retryAfter)
			renderError(c, http.StatusTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}

// LoginRequired sends anonymous visitors to the login page.
func LoginRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) == nil {
			c.Redirect(http.StatusFound, "/login/?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(userKey)
	if !ok {
		return nil
	}
	user, _ := v.(*domain.User)
	return user
}

func requestLogger(logger logrus.FieldLogger, c *gin.Context) logrus.FieldLogger {
	return logger.WithFields(logrus.Fields{
		"request_id": c.GetString(requestIDKey),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"client_ip":  c.ClientIP(),
	})
}
