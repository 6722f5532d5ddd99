package web

import (
	"errors"
	"net/http"

	"github.com/deemkeen/versiond/domain"
	"github.com/deemkeen/versiond/federation"
	"github.com/gin-gonic/gin"
)

// HandleInbox feeds the request to the inbox processor. The shared inbox
// and the per-user inboxes behave the same; the entity decides who it is
// addressed to.
func (s *Server) HandleInbox(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		s.log.Warn("Failed to read inbox body", "path", c.Request.URL.Path, "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	req := federation.InboxRequest{
		Method:   c.Request.Method,
		Path:     c.Request.URL.RequestURI(),
		Header:   c.Request.Header,
		Body:     body,
		SourceIP: s.sourceIP(c),
	}

	if err := s.inbox.Process(c.Request.Context(), req); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// sourceIP is the peer address unless a trusted proxy forwarded the request.
func (s *Server) sourceIP(c *gin.Context) string {
	if len(s.conf.Conf.TrustedProxies) == 0 {
		return c.RemoteIP()
	}
	return c.ClientIP()
}

// writeError answers with the status carried by an ApiError, or 500.
func (s *Server) writeError(c *gin.Context, err error) {
	apiErr, ok := domain.AsApiError(err)
	if !ok {
		s.log.Error("Request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if apiErr.Status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "path", c.Request.URL.Path, "status", apiErr.Status, "err", apiErr)
	} else {
		s.log.Debug("Request rejected", "path", c.Request.URL.Path, "status", apiErr.Status, "err", apiErr)
	}
	body := gin.H{"error": apiErr.Message}
	if apiErr.Details != "" {
		body["details"] = apiErr.Details
	}
	c.JSON(apiErr.Status, body)
}
