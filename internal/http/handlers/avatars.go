package handlers

import (
	"errors"
	"net/http"
	"time"

	"userhub/internal/avatar"
	"userhub/internal/config"
	"userhub/internal/domain/user"
	"userhub/internal/http/middlewares"
	"userhub/internal/observability"
	"userhub/internal/repo"

	"github.com/gin-gonic/gin"
)

// avatarField is the multipart form field the image must arrive under.
const avatarField = "avatar"

type AvatarsHandler struct {
	store   UserStore
	avatars *avatar.Manager
	prom    *observability.Prom
}

func NewAvatarsHandler(store UserStore, avatars *avatar.Manager, prom *observability.Prom) *AvatarsHandler {
	return &AvatarsHandler{store: store, avatars: avatars, prom: prom}
}

func (h *AvatarsHandler) Upload(ctx *gin.Context) {
	target, ok := middlewares.TargetFromContext(ctx)

	if !ok {
		RespondNotFound(ctx, "User not found")
		return
	}

	fileHeader, err := ctx.FormFile(avatarField)

	if err != nil {
		RespondBadRequest(ctx, "An image file is required under the 'avatar' field", nil)
		return
	}

	if fileHeader.Size > avatar.MaxSize {
		RespondBadRequest(ctx, "Image exceeds the 2 MiB limit", nil)
		return
	}

	src, err := fileHeader.Open()

	if err != nil {
		RespondInternal(ctx, "Could not read upload")
		return
	}

	defer src.Close()

	publicPath, err := h.avatars.Save(src, target.Username, fileHeader.Filename, fileHeader.Header.Get("Content-Type"))

	if err != nil {
		switch {
		case errors.Is(err, avatar.ErrNotImage):
			RespondBadRequest(ctx, "Only image files are allowed", nil)
		case errors.Is(err, avatar.ErrTooLarge):
			RespondBadRequest(ctx, "Image exceeds the 2 MiB limit", nil)
		default:
			RespondInternal(ctx, "Could not store avatar")
		}
		return
	}

	// drop the previous image before persisting the new path; a crash in
	// between leaves an orphan at worst
	if target.ProfilePhoto != nil {
		if err := h.avatars.DeleteIfExists(*target.ProfilePhoto); err != nil {
			_ = h.avatars.DeleteIfExists(publicPath)
			RespondInternal(ctx, "Could not replace previous avatar")
			return
		}
	}

	target.ProfilePhoto = &publicPath
	target.UpdatedAt = time.Now().UTC()

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.Update(cctx, target); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not update user")
		return
	}

	if h.prom != nil {
		h.prom.AvatarUploadBytes.Add(float64(fileHeader.Size))
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":      "Avatar uploaded",
		"profilePhoto": publicPath,
	})
}

func (h *AvatarsHandler) Delete(ctx *gin.Context) {
	target, ok := middlewares.TargetFromContext(ctx)

	if !ok {
		RespondNotFound(ctx, "User not found")
		return
	}

	if target.ProfilePhoto != nil {
		if err := h.avatars.DeleteIfExists(*target.ProfilePhoto); err != nil {
			RespondInternal(ctx, "Could not delete avatar")
			return
		}
	}

	target.ProfilePhoto = nil
	target.UpdatedAt = time.Now().UTC()

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.Update(cctx, target); err != nil {
		if errors.Is(err, repo.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not update user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":      "Avatar removed",
		"profilePhoto": user.DefaultAvatar,
	})
}
