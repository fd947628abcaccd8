package handler

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradestore/internal/models"
	"github.com/noah-isme/gradestore/internal/service"
	appErrors "github.com/noah-isme/gradestore/pkg/errors"
	"github.com/noah-isme/gradestore/pkg/response"
)

// BlacklistRequest lists student logins to add to or remove from a TA's blacklist.
type BlacklistRequest struct {
	Students []string `json:"students" binding:"required,min=1"`
}

// BlacklistHandler exposes per TA blacklists.
type BlacklistHandler struct {
	data *service.DataService
}

// NewBlacklistHandler constructs handler.
func NewBlacklistHandler(data *service.DataService) *BlacklistHandler {
	return &BlacklistHandler{data: data}
}

// Get godoc
// @Summary List the students a TA must not grade
// @Tags Blacklist
// @Produce json
// @Param login path string true "TA login"
// @Success 200 {object} response.Envelope
// @Router /tas/{login}/blacklist [get]
func (h *BlacklistHandler) Get(c *gin.Context) {
	ta, err := h.data.TAByLogin(c.Param("login"))
	if err != nil {
		response.Error(c, err)
		return
	}
	ids, err := h.data.BlacklistFor(c.Request.Context(), ta.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	logins := studentLogins(h.data)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if login, ok := logins[id]; ok {
			out = append(out, login)
		}
	}
	sort.Strings(out)
	response.OK(c, gin.H{"ta": ta.Login, "students": out})
}

// Add godoc
// @Summary Blacklist students for a TA
// @Description Existing distribution rows giving the students' groups to the TA are removed.
// @Tags Blacklist
// @Accept json
// @Param login path string true "TA login"
// @Param payload body BlacklistRequest true "Students"
// @Success 204
// @Router /tas/{login}/blacklist [post]
func (h *BlacklistHandler) Add(c *gin.Context) {
	ta, ids, ok := h.bind(c)
	if !ok {
		return
	}
	if err := h.data.Blacklist(c.Request.Context(), ta.ID, ids); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Remove lifts blacklist entries. Entries that do not exist are ignored.
func (h *BlacklistHandler) Remove(c *gin.Context) {
	ta, ids, ok := h.bind(c)
	if !ok {
		return
	}
	if err := h.data.Unblacklist(c.Request.Context(), ta.ID, ids); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *BlacklistHandler) bind(c *gin.Context) (*models.TA, []int64, bool) {
	var req BlacklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid blacklist payload"))
		return nil, nil, false
	}
	ta, err := h.data.TAByLogin(c.Param("login"))
	if err != nil {
		response.Error(c, err)
		return nil, nil, false
	}
	ids := make([]int64, 0, len(req.Students))
	for _, login := range req.Students {
		st, err := h.data.StudentByLogin(login)
		if err != nil {
			response.Error(c, err)
			return nil, nil, false
		}
		ids = append(ids, st.ID)
	}
	return ta, ids, true
}
