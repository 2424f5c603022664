package controller

import (
	"comic_english_backend/internal/service"
	"comic_english_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ContentController 学习模块、练习和分镜语音
type ContentController struct {
	ModuleService *service.ModuleService
}

func NewContentController(moduleService *service.ModuleService) *ContentController {
	return &ContentController{ModuleService: moduleService}
}

// SaveModule godoc
// @Summary 保存学习模块
// @Description 保存文本、脚本、分镜和练习。无效练习计入拒绝数，全部无效时返回 400
// @Tags 学习模块
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.SaveModuleRequest true "模块内容"
// @Success 201 {object} util.Response{data=service.SaveModuleResult} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 409 {object} util.Response "分镜编号重复"
// @Router /api/modules [post]
func (c *ContentController) SaveModule(ctx *gin.Context) {
	var req service.SaveModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}

	var createdBy *uint
	if claims := util.GetUserFromContext(ctx); claims != nil {
		id := claims.UserID
		createdBy = &id
	}
	result, err := c.ModuleService.SaveModule(createdBy, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, result)
}

// ListModules godoc
// @Summary 学习模块列表
// @Tags 学习模块
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.ModuleSummary} "成功"
// @Router /api/modules [get]
func (c *ContentController) ListModules(ctx *gin.Context) {
	modules, err := c.ModuleService.ListModules()
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, modules)
}

// GetModule godoc
// @Summary 学习模块详情
// @Description 分镜按编号排序，附带练习
// @Tags 学习模块
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "模块ID"
// @Success 200 {object} util.Response{data=model.LearningModule} "成功"
// @Failure 404 {object} util.Response "模块不存在"
// @Router /api/modules/{id} [get]
func (c *ContentController) GetModule(ctx *gin.Context) {
	module, err := c.ModuleService.GetModule(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, module)
}

// DeleteModule godoc
// @Summary 删除学习模块
// @Description 练习已有学生作答时拒绝删除
// @Tags 学习模块
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "模块ID"
// @Success 200 {object} util.Response "成功"
// @Failure 404 {object} util.Response "模块不存在"
// @Failure 409 {object} util.Response "已有作答记录"
// @Router /api/modules/{id} [delete]
func (c *ContentController) DeleteModule(ctx *gin.Context) {
	if err := c.ModuleService.DeleteModule(ctx.Param("id")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMsg(ctx, "Module deleted", nil)
}

// ModuleExercises godoc
// @Summary 模块练习及作答统计
// @Tags 练习
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "模块ID"
// @Success 200 {object} util.Response{data=[]service.ExerciseWithStats} "成功"
// @Failure 404 {object} util.Response "模块不存在"
// @Router /api/modules/{id}/exercises [get]
func (c *ContentController) ModuleExercises(ctx *gin.Context) {
	exercises, err := c.ModuleService.ModuleExercises(ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, exercises)
}

// AddExercise godoc
// @Summary 新增练习
// @Description correct_answer 可以是选项下标、选项文本或数字字符串
// @Tags 练习
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "模块ID"
// @Param   body body service.ExerciseInput true "练习"
// @Success 201 {object} util.Response{data=model.Exercise} "创建成功"
// @Failure 400 {object} util.Response "练习无效"
// @Failure 404 {object} util.Response "模块不存在"
// @Router /api/modules/{id}/exercises [post]
func (c *ContentController) AddExercise(ctx *gin.Context) {
	var in service.ExerciseInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}
	exercise, err := c.ModuleService.AddExercise(ctx.Param("id"), in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, exercise)
}

// UpdateExercise godoc
// @Summary 更新练习
// @Tags 练习
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "练习ID"
// @Param   body body service.ExerciseUpdate true "更新内容"
// @Success 200 {object} util.Response{data=model.Exercise} "成功"
// @Failure 400 {object} util.Response "练习无效"
// @Failure 404 {object} util.Response "练习不存在"
// @Router /api/exercises/{id} [put]
func (c *ContentController) UpdateExercise(ctx *gin.Context) {
	var upd service.ExerciseUpdate
	if err := ctx.ShouldBindJSON(&upd); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}
	exercise, err := c.ModuleService.UpdateExercise(ctx.Param("id"), upd)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, exercise)
}

// DeleteExercise godoc
// @Summary 删除练习
// @Description 该练习已有学生作答时拒绝删除
// @Tags 练习
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "练习ID"
// @Success 200 {object} util.Response "成功"
// @Failure 404 {object} util.Response "练习不存在"
// @Failure 409 {object} util.Response "已有作答记录"
// @Router /api/exercises/{id} [delete]
func (c *ContentController) DeleteExercise(ctx *gin.Context) {
	if err := c.ModuleService.DeleteExercise(ctx.Param("id")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMsg(ctx, "Exercise deleted", nil)
}

// swagger:model PanelAudioRequest
type PanelAudioRequest struct {
	AudioType string  `json:"audio_type" binding:"required,oneof=dialogue narration"`
	AudioData string  `json:"audio_data" binding:"required"`
	Duration  float64 `json:"duration" binding:"omitempty,min=0"`
}

func panelNumberParam(ctx *gin.Context) (int, bool) {
	n, err := strconv.Atoi(ctx.Param("panel"))
	if err != nil || n < 1 {
		util.BadRequest(ctx, "invalid panel number")
		return 0, false
	}
	return n, true
}

// SavePanelAudio godoc
// @Summary 保存分镜语音
// @Description audio_data 为 base64 或 data URI；未给出时长时尝试读取
// @Tags 学习模块
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "模块ID"
// @Param   panel path int true "分镜编号"
// @Param   body body PanelAudioRequest true "语音"
// @Success 200 {object} util.Response "成功"
// @Failure 400 {object} util.Response "音频无效"
// @Failure 404 {object} util.Response "分镜不存在"
// @Router /api/modules/{id}/panels/{panel}/audio [put]
func (c *ContentController) SavePanelAudio(ctx *gin.Context) {
	panel, ok := panelNumberParam(ctx)
	if !ok {
		return
	}
	var req PanelAudioRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}
	if err := c.ModuleService.SavePanelAudio(ctx.Param("id"), panel, req.AudioType, req.AudioData, req.Duration); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMsg(ctx, "Audio saved", gin.H{"panel_number": panel, "audio_type": req.AudioType})
}

// GetPanelAudio godoc
// @Summary 获取分镜语音
// @Tags 学习模块
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "模块ID"
// @Param   panel path int true "分镜编号"
// @Success 200 {object} util.Response{data=service.PanelAudio} "成功"
// @Failure 404 {object} util.Response "分镜不存在"
// @Router /api/modules/{id}/panels/{panel}/audio [get]
func (c *ContentController) GetPanelAudio(ctx *gin.Context) {
	panel, ok := panelNumberParam(ctx)
	if !ok {
		return
	}
	audio, err := c.ModuleService.GetPanelAudio(ctx.Param("id"), panel)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, audio)
}
