package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradestore/internal/middleware"
	"github.com/noah-isme/gradestore/internal/service"
	appErrors "github.com/noah-isme/gradestore/pkg/errors"
	"github.com/noah-isme/gradestore/pkg/response"
)

// TokenHandler lets admins mint access tokens for other TAs.
type TokenHandler struct {
	data   *service.DataService
	tokens *service.TokenService
}

// NewTokenHandler constructs handler.
func NewTokenHandler(data *service.DataService, tokens *service.TokenService) *TokenHandler {
	return &TokenHandler{data: data, tokens: tokens}
}

// Issue godoc
// @Summary Issue an access token for a TA
// @Tags Auth
// @Produce json
// @Param login path string true "TA login"
// @Success 201 {object} response.Envelope
// @Router /tas/{login}/token [post]
func (h *TokenHandler) Issue(c *gin.Context) {
	ta, err := h.data.TAByLogin(c.Param("login"))
	if err != nil {
		response.Error(c, err)
		return
	}
	res, err := h.tokens.Issue(ta)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Me returns the claims of the calling TA.
func (h *TokenHandler) Me(c *gin.Context) {
	claims := middleware.CurrentTA(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.OK(c, gin.H{"ta_id": claims.TAID, "login": claims.Login, "admin": claims.Admin})
}
