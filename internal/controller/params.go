package controller

import (
	"comic_english_backend/internal/model"
	"comic_english_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// userIDParam 解析路径中的用户 id，非法时直接返回 400
func userIDParam(ctx *gin.Context, name string) (uint, bool) {
	id := util.MustParseUint(ctx.Param(name))
	if id == 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return id, true
}

// viewerFromClaims 只带 id 和角色的当前用户，用于按角色裁剪数据
func viewerFromClaims(claims *util.Claims) *model.User {
	if claims == nil {
		return nil
	}
	viewer := &model.User{Username: claims.Username, Role: claims.Role}
	viewer.ID = claims.UserID
	return viewer
}
