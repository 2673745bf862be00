package controller

import (
	"errors"
	"mathquest_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleServiceError 服务层错误到HTTP状态码的统一映射
func handleServiceError(ctx *gin.Context, err error) {
	var verr *util.ValidationError
	if errors.As(err, &verr) {
		util.BadRequest(ctx, verr.Error())
		return
	}

	switch {
	case errors.Is(err, util.ErrUserNotFound), errors.Is(err, util.ErrLessonNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPrerequisiteNotMet):
		util.Error(ctx, http.StatusForbidden, "prerequisites not completed")
	case errors.Is(err, util.ErrLessonInactive):
		util.Error(ctx, http.StatusForbidden, "lesson is not active")
	case errors.Is(err, util.ErrInsufficientXP):
		util.Error(ctx, http.StatusForbidden, "not enough XP")
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrConcurrencyConflict):
		util.Error(ctx, http.StatusConflict, "concurrent update, please retry")
	default:
		util.LogInternalError(ctx, err)
	}
}
