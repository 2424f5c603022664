package controller

import (
	"comic_english_backend/internal/generation"
	"comic_english_backend/internal/service"
	"comic_english_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// GenerationController 文本、漫画脚本、图片、语音和练习生成
type GenerationController struct {
	GenerationService *service.GenerationService
	Hub               *service.GenerationHub
}

func NewGenerationController(generationService *service.GenerationService, hub *service.GenerationHub) *GenerationController {
	return &GenerationController{
		GenerationService: generationService,
		Hub:               hub,
	}
}

// swagger:model ModernizeRequest
type ModernizeRequest struct {
	ClassicText string `json:"classic_text" binding:"required"`
}

// Modernize godoc
// @Summary 改写为现代英语
// @Tags 内容生成
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body ModernizeRequest true "古典英语原文"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 502 {object} util.Response "模型服务失败"
// @Router /api/generate/modernize [post]
func (c *GenerationController) Modernize(ctx *gin.Context) {
	var req ModernizeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}
	modern, err := c.GenerationService.Modernize(ctx.Request.Context(), req.ClassicText)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"classic_text": req.ClassicText, "modern_text": modern})
}

// swagger:model ComicScriptRequest
type ComicScriptRequest struct {
	ClassicText string `json:"classic_text" binding:"required"`
	ModernText  string `json:"modern_text" binding:"required"`
	PanelCount  int    `json:"panel_count" binding:"omitempty,min=1,max=12"`
}

// ComicScript godoc
// @Summary 生成漫画脚本
// @Description 同时提取角色，角色提取失败时返回空列表
// @Tags 内容生成
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body ComicScriptRequest true "原文和现代文"
// @Success 200 {object} util.Response{data=service.ComicScriptResult} "成功"
// @Failure 502 {object} util.Response "模型服务失败或脚本没有分镜"
// @Router /api/generate/script [post]
func (c *GenerationController) ComicScript(ctx *gin.Context) {
	var req ComicScriptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}
	panelCount := req.PanelCount
	if panelCount == 0 {
		panelCount = 4
	}
	result, err := c.GenerationService.GenerateComicScript(ctx.Request.Context(), req.ClassicText, req.ModernText, panelCount)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Characters godoc
// @Summary 提取角色
// @Tags 内容生成
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body ComicScriptRequest true "原文和现代文"
// @Success 200 {object} util.Response{data=[]generation.Character} "成功"
// @Router /api/generate/characters [post]
func (c *GenerationController) Characters(ctx *gin.Context) {
	var req ComicScriptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}
	characters := c.GenerationService.ExtractCharacters(ctx.Request.Context(), req.ClassicText, req.ModernText)
	util.Success(ctx, characters)
}

// PanelImage godoc
// @Summary 生成分镜图片
// @Tags 内容生成
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.PanelImageRequest true "分镜和角色"
// @Success 200 {object} util.Response{data=service.PanelImageResult} "成功"
// @Failure 502 {object} util.Response "图片服务失败或超时"
// @Router /api/generate/image [post]
func (c *GenerationController) PanelImage(ctx *gin.Context) {
	var req service.PanelImageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}
	result, err := c.GenerationService.GeneratePanelImage(ctx.Request.Context(), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// PanelAudio godoc
// @Summary 生成分镜语音
// @Description 对白为 none 或清理后为空时不生成对白音轨
// @Tags 内容生成
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.PanelAudioRequest true "对白和旁白"
// @Success 200 {object} util.Response{data=service.PanelAudioResult} "成功"
// @Failure 502 {object} util.Response "语音服务失败"
// @Router /api/generate/audio [post]
func (c *GenerationController) PanelAudio(ctx *gin.Context) {
	var req service.PanelAudioRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}
	result, err := c.GenerationService.GeneratePanelAudio(ctx.Request.Context(), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Exercises godoc
// @Summary 生成练习
// @Description 返回通过校验的练习以及被拒绝的记录
// @Tags 内容生成
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.ExerciseGenerationRequest true "生成参数"
// @Success 200 {object} util.Response{data=service.ExerciseGenerationResult} "成功"
// @Failure 400 {object} util.Response "没有有效练习"
// @Failure 502 {object} util.Response "模型服务失败"
// @Router /api/generate/exercises [post]
func (c *GenerationController) Exercises(ctx *gin.Context) {
	var req service.ExerciseGenerationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}
	result, err := c.GenerationService.GenerateExercises(ctx.Request.Context(), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMsg(ctx, result.Message, result)
}

// CreateModule godoc
// @Summary 一键生成学习模块
// @Description 依次生成现代文、脚本、角色、图片、语音和练习并保存，进度通过 websocket 推送
// @Tags 内容生成
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.PipelineRequest true "生成参数"
// @Success 201 {object} util.Response{data=service.SaveModuleResult} "创建成功"
// @Failure 400 {object} util.Response "没有有效练习"
// @Failure 502 {object} util.Response "外部服务失败"
// @Router /api/generate/module [post]
func (c *GenerationController) CreateModule(ctx *gin.Context) {
	var req service.PipelineRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}
	claims := util.GetUserFromContext(ctx)
	result, err := c.GenerationService.CreateModulePipeline(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, result)
}

// Topics godoc
// @Summary 语法主题
// @Tags 内容生成
// @Produce  json
// @Success 200 {object} util.Response{data=[]generation.GrammarTopic} "成功"
// @Router /api/topics [get]
func (c *GenerationController) Topics(ctx *gin.Context) {
	util.Success(ctx, generation.GrammarTopics)
}

// Connect godoc
// @Summary 生成进度推送
// @Description websocket 连接，token 通过查询参数传递
// @Tags 内容生成
// @Param   token query string true "JWT"
// @Router /api/ws/generation [get]
func (c *GenerationController) Connect(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	service.ServeWs(c.Hub, ctx.Writer, ctx.Request, claims.UserID)
}
