package controller

import (
	"comic_english_backend/internal/service"
	"comic_english_backend/internal/util"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ReportController 教师端报表
type ReportController struct {
	ReportService *service.ReportService
}

func NewReportController(reportService *service.ReportService) *ReportController {
	return &ReportController{ReportService: reportService}
}

// ListTypes godoc
// @Summary 报表类型
// @Tags 报表
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.ReportType} "成功"
// @Router /api/reports/types [get]
func (c *ReportController) ListTypes(ctx *gin.Context) {
	util.Success(ctx, service.ReportTypes)
}

// GenerateReport godoc
// @Summary 生成报表
// @Description format=json 返回数据；pdf 和 excel 以附件形式下载
// @Tags 报表
// @Produce  json
// @Produce  application/pdf
// @Produce  application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security ApiKeyAuth
// @Param   type path string true "报表类型"
// @Param   format query string false "输出格式" Enums(json, pdf, excel) default(json)
// @Param   student_id query int false "学生ID（student_progress）"
// @Param   module_id query string false "模块ID（module_performance）"
// @Param   week_offset query int false "向前偏移的周数（weekly_summary）"
// @Param   comparison_type query string false "对比维度" Enums(students, modules, time)
// @Param   student_ids query string false "逗号分隔的学生ID"
// @Param   module_ids query string false "逗号分隔的模块ID"
// @Param   date_from query string false "开始日期 2006-01-02"
// @Param   date_to query string false "结束日期（含）"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "报表类型或参数无效"
// @Failure 404 {object} util.Response "学生或模块不存在"
// @Router /api/reports/{type} [get]
func (c *ReportController) GenerateReport(ctx *gin.Context) {
	format := ctx.DefaultQuery("format", service.FormatJSON)
	if format != service.FormatJSON && format != service.FormatPDF && format != service.FormatExcel {
		util.BadRequest(ctx, "format must be json, pdf or excel")
		return
	}

	var comparative service.ComparativeQuery
	if err := ctx.ShouldBindQuery(&comparative); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}

	report, err := c.ReportService.Generate(ctx.Param("type"), service.ReportParams{
		StudentID:   util.MustParseUint(ctx.Query("student_id")),
		ModuleID:    ctx.Query("module_id"),
		WeekOffset:  util.IntDefault(ctx.Query("week_offset"), 0),
		Comparative: comparative,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	if format == service.FormatJSON {
		util.Success(ctx, report.Data)
		return
	}

	file, err := service.RenderReport(report, format)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	ctx.Data(http.StatusOK, file.ContentType, file.Body)
}
