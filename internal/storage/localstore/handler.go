package localstore

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler serves the signed upload and download URLs under the base URL path.
func (s *Store) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequest())

	g := r.Group(s.baseURL.Path)
	g.PUT("/*key", s.handleUpload)
	g.GET("/*key", s.handleDownload)
	return r
}

func (s *Store) logRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("content request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

func (s *Store) authorize(c *gin.Context, method string) (string, signedLink, bool) {
	key, err := cleanKey(c.Param("key"))
	if err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return "", signedLink{}, false
	}
	l := signedLink{name: c.Query("name"), expires: c.Query("expires"), sig: c.Query("sig")}
	if m := c.Query("max"); m != "" {
		if l.limit, err = strconv.ParseInt(m, 10, 64); err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return "", signedLink{}, false
		}
	}
	if !s.verify(method, key, l) {
		c.AbortWithStatus(http.StatusForbidden)
		return "", signedLink{}, false
	}
	return key, l, true
}

func (s *Store) handleUpload(c *gin.Context) {
	key, l, ok := s.authorize(c, http.MethodPut)
	if !ok {
		return
	}
	limit := s.maxUpload
	if l.limit > 0 && l.limit < limit {
		limit = l.limit
	}
	if c.Request.ContentLength > limit {
		c.AbortWithStatus(http.StatusRequestEntityTooLarge)
		return
	}
	body := http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	dst := s.file(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		s.fail(c, key, err)
		return
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		s.fail(c, key, err)
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatus(http.StatusRequestEntityTooLarge)
			return
		}
		s.fail(c, key, err)
		return
	}
	if err := tmp.Close(); err != nil {
		s.fail(c, key, err)
		return
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		s.fail(c, key, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (s *Store) handleDownload(c *gin.Context) {
	key, _, ok := s.authorize(c, http.MethodGet)
	if !ok {
		return
	}
	src := s.file(key)
	if _, err := os.Stat(src); err != nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	name := c.Query("name")
	if name == "" {
		name = path.Base(key)
	}
	c.FileAttachment(src, strings.ReplaceAll(name, `"`, ""))
}

func (s *Store) fail(c *gin.Context, key string, err error) {
	s.log.Error("content write failed", zap.String("key", key), zap.Error(err))
	c.AbortWithStatus(http.StatusInternalServerError)
}
