package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradestore/internal/models"
	"github.com/noah-isme/gradestore/internal/service"
	appErrors "github.com/noah-isme/gradestore/pkg/errors"
	"github.com/noah-isme/gradestore/pkg/response"
)

// AssignGraderRequest names the TA that should grade a group. An empty TA unassigns the group.
// Student selects the group by member login when the path carries group id 0, which is how
// not yet stored singleton groups are addressed.
type AssignGraderRequest struct {
	TA      string `json:"ta"`
	Student string `json:"student"`
}

// distributionView lists the groups each TA grades for a part.
type distributionView struct {
	PartID     int64                  `json:"part_id"`
	Graders    map[string][]groupView `json:"graders"`
	Unassigned []groupView            `json:"unassigned"`
}

// DistributionHandler exposes grader assignment for parts.
type DistributionHandler struct {
	data *service.DataService
}

// NewDistributionHandler constructs handler.
func NewDistributionHandler(data *service.DataService) *DistributionHandler {
	return &DistributionHandler{data: data}
}

// Get godoc
// @Summary Show which TA grades which group for a part
// @Tags Distribution
// @Produce json
// @Param id path int true "Part ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /parts/{id}/distribution [get]
func (h *DistributionHandler) Get(c *gin.Context) {
	partID, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	asgn, err := h.data.AssignmentForPart(partID)
	if err != nil {
		response.Error(c, err)
		return
	}
	groups, err := h.data.Groups(asgn.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	dist, err := h.data.Distribution(c.Request.Context(), partID)
	if err != nil {
		response.Error(c, err)
		return
	}

	logins := studentLogins(h.data)
	byID := make(map[int64]*models.Group, len(groups))
	for _, g := range groups {
		if g.ID != 0 {
			byID[g.ID] = g
		}
	}
	view := distributionView{PartID: partID, Graders: make(map[string][]groupView)}
	assigned := make(map[int64]bool)
	for _, ta := range h.data.TAs() {
		var graded []*models.Group
		for _, gid := range dist[ta.ID] {
			if g, ok := byID[gid]; ok {
				graded = append(graded, g)
				assigned[gid] = true
			}
		}
		if len(graded) > 0 {
			view.Graders[ta.Login] = viewGroups(graded, logins)
		}
	}
	var rest []*models.Group
	for _, g := range groups {
		if g.ID == 0 || !assigned[g.ID] {
			rest = append(rest, g)
		}
	}
	view.Unassigned = viewGroups(rest, logins)
	response.OK(c, view)
}

// AssignGrader godoc
// @Summary Assign a group's part to a TA
// @Tags Distribution
// @Accept json
// @Produce json
// @Param id path int true "Part ID"
// @Param groupId path int true "Group ID, 0 to address a singleton group by student"
// @Param payload body AssignGraderRequest true "Grader payload"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /parts/{id}/groups/{groupId}/grader [put]
func (h *DistributionHandler) AssignGrader(c *gin.Context) {
	partID, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	groupID, err := int64Param(c, "groupId")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req AssignGraderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grader payload"))
		return
	}

	asgn, err := h.data.AssignmentForPart(partID)
	if err != nil {
		response.Error(c, err)
		return
	}
	group, err := h.resolveGroup(asgn.ID, groupID, req.Student)
	if err != nil {
		response.Error(c, err)
		return
	}
	taID := models.Unassigned
	if req.TA != "" {
		ta, err := h.data.TAByLogin(req.TA)
		if err != nil {
			response.Error(c, err)
			return
		}
		taID = ta.ID
	}

	if err := h.data.AssignGrader(c.Request.Context(), partID, group, taID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *DistributionHandler) resolveGroup(assignmentID, groupID int64, student string) (*models.Group, error) {
	if groupID == 0 {
		if student == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student is required when group id is 0")
		}
		st, err := h.data.StudentByLogin(student)
		if err != nil {
			return nil, err
		}
		return h.data.Group(assignmentID, st.ID)
	}
	groups, err := h.data.Groups(assignmentID)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if g.ID == groupID {
			return g, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "group not found in assignment")
}
