package controller

import (
	"comic_english_backend/internal/service"
	"comic_english_backend/internal/util"
	"time"

	"github.com/gin-gonic/gin"
)

// UserController 教师端用户管理
type UserController struct {
	UserService   *service.UserService
	ModuleService *service.ModuleService
}

func NewUserController(userService *service.UserService, moduleService *service.ModuleService) *UserController {
	return &UserController{
		UserService:   userService,
		ModuleService: moduleService,
	}
}

// ListUsers godoc
// @Summary 获取用户列表
// @Description 支持角色、关键词、启用状态筛选和分页，学生附带学习汇总
// @Tags 用户管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   role query string false "角色" Enums(student, teacher)
// @Param   search query string false "用户名、邮箱或姓名"
// @Param   is_active query bool false "启用状态"
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页条数" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse{list=[]service.UserWithStats}} "成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Failure 403 {object} util.Response "权限不足"
// @Router /api/users [get]
func (c *UserController) ListUsers(ctx *gin.Context) {
	var q service.UserListQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}

	users, total, err := c.UserService.ListUsers(q)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit <= 0 {
		limit = util.DefaultPageSize
	}
	util.Success(ctx, util.PageResponse{
		List:  users,
		Total: total,
		Page:  page,
		Limit: util.Clamp(limit, 1, util.MaxPageSize),
	})
}

// GetUser godoc
// @Summary 获取用户详情
// @Tags 用户管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "用户ID"
// @Success 200 {object} util.Response{data=service.UserWithStats} "成功"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/users/{id} [get]
func (c *UserController) GetUser(ctx *gin.Context) {
	id, ok := userIDParam(ctx, "id")
	if !ok {
		return
	}
	user, err := c.UserService.GetUser(id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// GetUserProgress godoc
// @Summary 用户学习记录
// @Tags 用户管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "用户ID"
// @Success 200 {object} util.Response{data=[]service.UserProgressItem} "成功"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/users/{id}/progress [get]
func (c *UserController) GetUserProgress(ctx *gin.Context) {
	id, ok := userIDParam(ctx, "id")
	if !ok {
		return
	}
	names, err := c.ModuleService.ModuleNames()
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	items, err := c.UserService.UserProgress(id, names)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, items)
}

// UpdateUser godoc
// @Summary 更新用户
// @Description 不能修改其他教师；只有学生账号可以修改角色
// @Tags 用户管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "用户ID"
// @Param   body body service.UpdateUserRequest true "更新内容"
// @Success 200 {object} util.Response{data=model.User} "成功"
// @Failure 403 {object} util.Response "权限不足"
// @Failure 409 {object} util.Response "邮箱已被注册"
// @Router /api/users/{id} [put]
func (c *UserController) UpdateUser(ctx *gin.Context) {
	id, ok := userIDParam(ctx, "id")
	if !ok {
		return
	}
	var req service.UpdateUserRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, util.BindErrorMessage(err))
		return
	}

	claims := util.GetUserFromContext(ctx)
	user, err := c.UserService.UpdateUser(claims.UserID, id, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, user)
}

// ToggleStatus godoc
// @Summary 切换用户启用状态
// @Tags 用户管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "用户ID"
// @Success 200 {object} util.Response{data=model.User} "成功"
// @Failure 403 {object} util.Response "不能操作教师或自己"
// @Router /api/users/{id}/toggle-status [patch]
func (c *UserController) ToggleStatus(ctx *gin.Context) {
	id, ok := userIDParam(ctx, "id")
	if !ok {
		return
	}
	claims := util.GetUserFromContext(ctx)
	user, err := c.UserService.ToggleStatus(claims.UserID, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	status := "deactivated"
	if user.IsActive {
		status = "activated"
	}
	util.SuccessMsg(ctx, "User "+status, user)
}

// DeleteUser godoc
// @Summary 删除用户
// @Description 同时删除该用户的全部学习记录
// @Tags 用户管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "用户ID"
// @Success 200 {object} util.Response "成功"
// @Failure 403 {object} util.Response "不能删除教师或自己"
// @Router /api/users/{id} [delete]
func (c *UserController) DeleteUser(ctx *gin.Context) {
	id, ok := userIDParam(ctx, "id")
	if !ok {
		return
	}
	claims := util.GetUserFromContext(ctx)
	if err := c.UserService.DeleteUser(claims.UserID, id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMsg(ctx, "User deleted", nil)
}

// ResetProgress godoc
// @Summary 重置学习记录
// @Tags 用户管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "用户ID"
// @Success 200 {object} util.Response{data=object} "返回删除的记录数"
// @Failure 404 {object} util.Response "用户不存在"
// @Router /api/users/{id}/reset-progress [post]
func (c *UserController) ResetProgress(ctx *gin.Context) {
	id, ok := userIDParam(ctx, "id")
	if !ok {
		return
	}
	n, err := c.UserService.ResetProgress(id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.SuccessMsg(ctx, "Progress reset", gin.H{"deleted_records": n})
}

// Statistics godoc
// @Summary 用户统计总览
// @Tags 用户管理
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.StatisticsOverview} "成功"
// @Router /api/users/statistics [get]
func (c *UserController) Statistics(ctx *gin.Context) {
	overview, err := c.UserService.Statistics(time.Now())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, overview)
}
