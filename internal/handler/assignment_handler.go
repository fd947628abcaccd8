package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradestore/internal/models"
	"github.com/noah-isme/gradestore/internal/service"
	"github.com/noah-isme/gradestore/pkg/response"
)

// groupView is a group as shown to admins, with member logins resolved.
type groupView struct {
	ID        int64    `json:"id,omitempty"`
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	Synthetic bool     `json:"synthetic,omitempty"`
}

// AssignmentHandler exposes the assignment tree and its groups.
type AssignmentHandler struct {
	data *service.DataService
}

// NewAssignmentHandler constructs handler.
func NewAssignmentHandler(data *service.DataService) *AssignmentHandler {
	return &AssignmentHandler{data: data}
}

// List godoc
// @Summary List assignments with their gradable events and parts
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	assignments := h.data.Assignments()
	response.OK(c, assignments, map[string]interface{}{"total": len(assignments)})
}

// Get returns one assignment.
func (h *AssignmentHandler) Get(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	asgn, err := h.data.Assignment(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, asgn)
}

// Groups godoc
// @Summary List the groups of an assignment
// @Description Assignments without explicit grouping list one singleton group per enabled student.
// @Tags Assignments
// @Produce json
// @Param id path int true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /assignments/{id}/groups [get]
func (h *AssignmentHandler) Groups(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	groups, err := h.data.Groups(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, viewGroups(groups, studentLogins(h.data)), map[string]interface{}{"total": len(groups)})
}

func studentLogins(data *service.DataService) map[int64]string {
	logins := make(map[int64]string)
	for _, st := range data.Students() {
		logins[st.ID] = st.Login
	}
	return logins
}

func viewGroups(groups []*models.Group, logins map[int64]string) []groupView {
	out := make([]groupView, 0, len(groups))
	for _, g := range groups {
		v := groupView{ID: g.ID, Name: g.Name, Members: make([]string, 0, len(g.MemberIDs)), Synthetic: g.ID == 0}
		for _, id := range g.MemberIDs {
			v.Members = append(v.Members, logins[id])
		}
		out = append(out, v)
	}
	return out
}
