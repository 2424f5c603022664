package controller

import (
	"comic_english_backend/internal/service"
	"comic_english_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ProgressController 作答、学习记录和排行榜
type ProgressController struct {
	ProgressService *service.ProgressService
}

func NewProgressController(progressService *service.ProgressService) *ProgressController {
	return &ProgressController{ProgressService: progressService}
}

// AnswerQuestion godoc
// @Summary 提交单题答案
// @Description 服务端判分，同一次学习中每道题只能作答一次
// @Tags 学习进度
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   moduleId path string true "模块ID"
// @Param   body body service.AnswerRequest true "答案"
// @Success 200 {object} util.Response{data=service.AnswerResult} "成功"
// @Failure 404 {object} util.Response "练习不存在"
// @Failure 409 {object} util.Response "已作答"
// @Router /api/progress/{moduleId}/answer [post]
func (c *ProgressController) AnswerQuestion(ctx *gin.Context) {
	var req service.AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}
	claims := util.GetUserFromContext(ctx)
	result, err := c.ProgressService.AnswerQuestion(claims.UserID, ctx.Param("moduleId"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// SubmitAttempt godoc
// @Summary 整份提交
// @Description 重新提交会替换之前的作答并重新计分，客户端的 is_correct 会被忽略
// @Tags 学习进度
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.SubmitRequest true "全部答案"
// @Success 200 {object} util.Response{data=service.SubmitResult} "成功"
// @Failure 404 {object} util.Response "模块不存在"
// @Router /api/progress/submit [post]
func (c *ProgressController) SubmitAttempt(ctx *gin.Context) {
	var req service.SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}
	claims := util.GetUserFromContext(ctx)
	result, err := c.ProgressService.SubmitAttempt(claims.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Complete godoc
// @Summary 标记模块完成
// @Tags 学习进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   moduleId path string true "模块ID"
// @Success 200 {object} util.Response{data=model.UserProgress} "成功"
// @Failure 404 {object} util.Response "模块不存在"
// @Router /api/progress/{moduleId}/complete [post]
func (c *ProgressController) Complete(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	progress, err := c.ProgressService.Complete(claims.UserID, ctx.Param("moduleId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// ModuleProgress godoc
// @Summary 当前用户在模块上的学习记录
// @Tags 学习进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   moduleId path string true "模块ID"
// @Success 200 {object} util.Response{data=model.UserProgress} "成功"
// @Failure 404 {object} util.Response "没有学习记录"
// @Router /api/progress/{moduleId} [get]
func (c *ProgressController) ModuleProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	progress, err := c.ProgressService.ModuleProgress(claims.UserID, ctx.Param("moduleId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// MyProgress godoc
// @Summary 我的学习记录
// @Tags 学习进度
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.MyProgress} "成功"
// @Router /api/progress/me [get]
func (c *ProgressController) MyProgress(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	progress, err := c.ProgressService.MyProgress(claims.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// Leaderboard godoc
// @Summary 排行榜
// @Description 只统计时间范围内有学习记录的学生；学生请求时附带自己的名次
// @Tags 排行榜
// @Produce  json
// @Security ApiKeyAuth
// @Param   timeframe query string false "时间范围" Enums(all_time, this_week, this_month) default(all_time)
// @Param   limit query int false "条数 1-100" default(10)
// @Success 200 {object} util.Response{data=service.Leaderboard} "成功"
// @Failure 400 {object} util.Response "时间范围无效"
// @Router /api/leaderboard [get]
func (c *ProgressController) Leaderboard(ctx *gin.Context) {
	viewer := viewerFromClaims(util.GetUserFromContext(ctx))
	board, err := c.ProgressService.Leaderboard(
		ctx.Request.Context(),
		viewer,
		ctx.DefaultQuery("timeframe", "all_time"),
		util.IntDefault(ctx.Query("limit"), 0),
	)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, board)
}

// StudentRank godoc
// @Summary 学生名次
// @Description 教师可查询任意学生，学生只能查询自己
// @Tags 排行榜
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "学生ID"
// @Success 200 {object} util.Response{data=service.StudentRank} "成功"
// @Failure 403 {object} util.Response "权限不足"
// @Failure 404 {object} util.Response "学生不存在"
// @Router /api/leaderboard/students/{id}/rank [get]
func (c *ProgressController) StudentRank(ctx *gin.Context) {
	id, ok := userIDParam(ctx, "id")
	if !ok {
		return
	}
	rank, err := c.ProgressService.StudentRank(viewerFromClaims(util.GetUserFromContext(ctx)), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, rank)
}

// TopPerformers godoc
// @Summary 优秀学生
// @Tags 排行榜
// @Produce  json
// @Security ApiKeyAuth
// @Param   metric query string false "排序指标" Enums(score, accuracy, modules) default(score)
// @Param   limit query int false "条数" default(10)
// @Success 200 {object} util.Response{data=service.TopPerformers} "成功"
// @Failure 400 {object} util.Response "指标无效"
// @Router /api/progress/top-performers [get]
func (c *ProgressController) TopPerformers(ctx *gin.Context) {
	result, err := c.ProgressService.TopPerformers(ctx.Query("metric"), util.IntDefault(ctx.Query("limit"), 0))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// StudentsOverview godoc
// @Summary 全部学生学习概况
// @Tags 学习进度
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.StudentsOverview} "成功"
// @Router /api/progress/students [get]
func (c *ProgressController) StudentsOverview(ctx *gin.Context) {
	overview, err := c.ProgressService.StudentsOverview()
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, overview)
}

// StudentDetails godoc
// @Summary 学生学习详情
// @Tags 学习进度
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "学生ID"
// @Success 200 {object} util.Response{data=service.StudentDetails} "成功"
// @Failure 404 {object} util.Response "学生不存在"
// @Router /api/progress/students/{id} [get]
func (c *ProgressController) StudentDetails(ctx *gin.Context) {
	id, ok := userIDParam(ctx, "id")
	if !ok {
		return
	}
	details, err := c.ProgressService.StudentDetails(id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, details)
}
