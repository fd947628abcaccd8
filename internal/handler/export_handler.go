package handler

import (
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradestore/internal/models"
	"github.com/noah-isme/gradestore/internal/service"
	appErrors "github.com/noah-isme/gradestore/pkg/errors"
	"github.com/noah-isme/gradestore/pkg/response"
)

// ExportHandler serves grade sheets and their exports.
type ExportHandler struct {
	exports *service.ExportService
	local   *service.LocalExportStore
}

// NewExportHandler constructs handler. local may be nil when exports go to S3.
func NewExportHandler(exports *service.ExportService, local *service.LocalExportStore) *ExportHandler {
	return &ExportHandler{exports: exports, local: local}
}

// GradeSheet godoc
// @Summary Grade sheet of a part
// @Tags Grades
// @Produce json
// @Param id path int true "Part ID"
// @Success 200 {object} response.Envelope
// @Router /parts/{id}/grades [get]
func (h *ExportHandler) GradeSheet(c *gin.Context) {
	partID, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	part, rows, err := h.exports.GradeSheet(c.Request.Context(), partID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, rows, map[string]interface{}{"part": part.Name, "out_of": part.OutOf, "total": len(rows)})
}

// Export godoc
// @Summary Export the grade sheet of a part
// @Tags Grades
// @Produce json
// @Param id path int true "Part ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /parts/{id}/grades/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	partID, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	format := models.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(models.ExportCSV))))
	res, err := h.exports.ExportGrades(c.Request.Context(), partID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Download streams a locally stored export. The signed token is the only credential.
func (h *ExportHandler) Download(c *gin.Context) {
	if h.local == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "local exports disabled"))
		return
	}
	f, obj, err := h.local.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	name := path.Base(obj.Key)
	contentType := models.ExportFormat(strings.TrimPrefix(path.Ext(name), ".")).ContentType()
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.DataFromReader(http.StatusOK, info.Size(), contentType, f, nil)
}
