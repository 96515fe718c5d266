package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/authbridge/internal/bridge"
	identitydomain "github.com/smallbiznis/authbridge/internal/identity/domain"
	"github.com/smallbiznis/authbridge/internal/session"
	userdomain "github.com/smallbiznis/authbridge/internal/user/domain"
	"go.uber.org/zap"
)

type userResponse struct {
	ID             string  `json:"id"`
	ExternalUserID *string `json:"stytch_user_id,omitempty"`
	Email          *string `json:"email,omitempty"`
	Name           string  `json:"name"`
	OrganizationID *string `json:"stytch_organization_id,omitempty"`
	ViaRemember    bool    `json:"via_remember"`
}

func newUserResponse(u *userdomain.User, viaRemember bool) userResponse {
	return userResponse{
		ID:             u.ID.String(),
		ExternalUserID: u.ExternalUserID,
		Email:          u.Email,
		Name:           u.DisplayName,
		OrganizationID: u.OrganizationRef,
		ViaRemember:    viaRemember,
	}
}

type passwordLoginRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	OrganizationID string `json:"organization_id"`
	Remember       bool   `json:"remember"`
}

func (s *Server) Me(c *gin.Context) {
	user, ok := bridge.UserFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user, s.guard.ViaRemember(c)))
}

func (s *Server) Session(c *gin.Context) {
	sess, ok := s.guard.SessionData(c)
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}
	raw, err := session.Encode(sess)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}

func (s *Server) LoginPassword(c *gin.Context) {
	var req passwordLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("request", "invalid_json", "request body must be JSON"))
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		AbortWithError(c, newValidationError("email", "required", "email and password are required"))
		return
	}

	if !s.allowLogin(c, req.Email) {
		return
	}

	ok, err := s.guard.Attempt(c, identitydomain.Credentials{
		Email:          req.Email,
		Password:       req.Password,
		OrganizationID: strings.TrimSpace(req.OrganizationID),
	}, req.Remember)
	if err != nil {
		s.log.Warn("password login failed", zap.Error(err))
		AbortWithError(c, err)
		return
	}
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	user, _ := bridge.UserFrom(c)
	c.JSON(http.StatusOK, newUserResponse(user, false))
}

func (s *Server) Logout(c *gin.Context) {
	if err := s.guard.Logout(c); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// allowLogin applies the login rate limit. Limiter failures let the attempt
// through.
func (s *Server) allowLogin(c *gin.Context, email string) bool {
	res, err := s.limiter.Allow(c.Request.Context(), email, c.ClientIP())
	if err != nil {
		s.log.Warn("login rate limit unavailable", zap.Error(err))
		return true
	}
	if res.Allowed {
		return true
	}
	if secs := int(math.Ceil(res.RetryAfter.Seconds())); secs > 0 {
		c.Header("Retry-After", strconv.Itoa(secs))
	}
	AbortWithError(c, ErrTooManyRequests)
	return false
}
