package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lucemdev/fundtrace/internal/invite"
	pkgerrors "github.com/lucemdev/fundtrace/internal/pkg/errors"
	"github.com/lucemdev/fundtrace/internal/platform/logger"
)

// SignupHandler receives the auth provider's account-creation webhook and
// hands it to the provisioner.
type SignupHandler struct {
	log         *logger.Logger
	provisioner *invite.Provisioner
}

func NewSignupHandler(provisioner *invite.Provisioner, log *logger.Logger) *SignupHandler {
	return &SignupHandler{
		log:         log.With("handler", "SignupHandler"),
		provisioner: provisioner,
	}
}

func (h *SignupHandler) UserCreated(c *gin.Context) {
	var signup invite.Signup
	if err := c.ShouldBindJSON(&signup); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := h.provisioner.UserCreated(c.Request.Context(), signup); err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidArgument) {
			RespondError(c, http.StatusBadRequest, "invalid_signup", err)
			return
		}
		h.log.Error("provisioning failed", "user_id", signup.UserID, "error", err)
		RespondError(c, http.StatusInternalServerError, "provision_failed", err)
		return
	}
	RespondOK(c, gin.H{"status": "provisioned"})
}
