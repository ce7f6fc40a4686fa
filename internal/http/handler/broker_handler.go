package handler

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainoauth "github.com/daisinet/securetools/internal/domain/oauth"
	"github.com/daisinet/securetools/internal/service"
	"github.com/daisinet/securetools/internal/service/flow"
)

// BrokerHandler exposes the broker endpoints.
type BrokerHandler struct {
	Broker *service.Broker
	Logger *zap.Logger
}

// NewBrokerHandler creates the handler set.
func NewBrokerHandler(broker *service.Broker, logger *zap.Logger) *BrokerHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &BrokerHandler{Broker: broker, Logger: logger}
}

type installRequest struct {
	InstallID       string `json:"installId" binding:"required"`
	ToolID          string `json:"toolId" binding:"required"`
	BundleInstallID string `json:"bundleInstallId"`
}

type uninstallRequest struct {
	InstallID string `json:"installId" binding:"required"`
}

type configureStatusRequest struct {
	InstallID string `json:"installId" binding:"required"`
}

type configureRequest struct {
	InstallID   string            `json:"installId" binding:"required"`
	SetupValues map[string]string `json:"setupValues"`
}

type executeRequest struct {
	InstallID  string                   `json:"installId" binding:"required"`
	ToolID     string                   `json:"toolId" binding:"required"`
	Parameters []service.ParameterValue `json:"parameters"`
}

type authStartRequest struct {
	InstallID string `json:"installId" binding:"required"`
	SetupKey  string `json:"setupKey" binding:"required"`
	ReturnURL string `json:"returnUrl"`
}

type authStatusRequest struct {
	InstallID string `json:"installId" binding:"required"`
	SetupKey  string `json:"setupKey" binding:"required"`
}

// Install registers an installation. Reached only through the operator
// middleware.
func (h *BrokerHandler) Install(c *gin.Context) {
	var req installRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request", "error_description": "installId and toolId are required."})
		return
	}
	if err := h.Broker.Install(c.Request.Context(), req.InstallID, req.ToolID, req.BundleInstallID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Uninstall removes an installation and its setup record.
func (h *BrokerHandler) Uninstall(c *gin.Context) {
	var req uninstallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request", "error_description": "installId is required."})
		return
	}
	if err := h.Broker.Uninstall(c.Request.Context(), req.InstallID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Configure overwrites the setup record for an installation.
func (h *BrokerHandler) Configure(c *gin.Context) {
	var req configureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request", "error_description": "installId is required."})
		return
	}
	if err := h.Broker.Configure(c.Request.Context(), req.InstallID, req.SetupValues); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ConfigureStatus reports which plain setup keys are present.
func (h *BrokerHandler) ConfigureStatus(c *gin.Context) {
	var req configureStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request", "error_description": "installId is required."})
		return
	}
	status, err := h.Broker.ConfigureStatusFor(c.Request.Context(), req.InstallID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	keys := status.ConfiguredKeys
	if keys == nil {
		keys = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "isConfigured": status.IsConfigured, "configuredKeys": keys})
}

// Execute runs a tool with resolved credentials. Execution failures come
// back as 200 with success=false; only registry failures map to HTTP
// errors.
func (h *BrokerHandler) Execute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request", "error_description": "installId and toolId are required."})
		return
	}
	result, err := h.Broker.Execute(c.Request.Context(), req.InstallID, req.ToolID, req.Parameters)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AuthStart returns the provider consent URL for a JSON request.
func (h *BrokerHandler) AuthStart(c *gin.Context) {
	var req authStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request", "error_description": "installId and setupKey are required."})
		return
	}
	authorizeURL, err := h.Broker.AuthStart(c.Request.Context(), req.InstallID, req.SetupKey, req.ReturnURL)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "authorizeUrl": authorizeURL})
}

// AuthStartRedirect is the browser-facing variant: it sends the user agent
// straight to the provider consent page.
func (h *BrokerHandler) AuthStartRedirect(c *gin.Context) {
	installID := strings.TrimSpace(c.Query("installId"))
	setupKey := strings.TrimSpace(c.Query("setupKey"))
	returnURL := strings.TrimSpace(c.Query("returnUrl"))
	if installID == "" || setupKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request", "error_description": "installId and setupKey are required."})
		return
	}
	authorizeURL, err := h.Broker.AuthStart(c.Request.Context(), installID, setupKey, returnURL)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Redirect(http.StatusFound, authorizeURL)
}

// AuthCallback terminates the provider redirect leg. A successful exchange
// either redirects to the return URL carried in the state or renders an
// auto-closing page; failures always render the page so the user sees what
// happened.
func (h *BrokerHandler) AuthCallback(c *gin.Context) {
	state := c.Query("state")
	payload, ok := flow.ParseState(state)
	if !ok {
		h.renderCallbackPage(c, http.StatusBadRequest, false, "The authentication response was malformed.")
		return
	}

	if provErr := c.Query("error"); provErr != "" {
		desc := c.Query("error_description")
		if desc == "" {
			desc = provErr
		}
		h.Logger.Warn("provider denied authorization",
			zap.String("install_id", payload.InstallID),
			zap.String("service", payload.SetupKey),
			zap.String("error", provErr))
		h.renderCallbackPage(c, http.StatusOK, false, desc)
		return
	}

	code := c.Query("code")
	if code == "" {
		h.renderCallbackPage(c, http.StatusBadRequest, false, "The authentication response was missing a code.")
		return
	}

	if err := h.Broker.CompleteAuth(c.Request.Context(), payload, code, state); err != nil {
		status := http.StatusOK
		switch {
		case errors.Is(err, domainoauth.ErrUnknownInstall):
			status = http.StatusForbidden
		case errors.Is(err, domainoauth.ErrProviderNotFound):
			status = http.StatusBadRequest
		}
		h.renderCallbackPage(c, status, false, "Authentication could not be completed. You can close this window and try again.")
		return
	}

	if payload.ReturnURL != "" {
		c.Redirect(http.StatusFound, payload.ReturnURL)
		return
	}
	h.renderCallbackPage(c, http.StatusOK, true, "You are all set. This window will close itself.")
}

// AuthStatus reports whether the service has completed authentication.
func (h *BrokerHandler) AuthStatus(c *gin.Context) {
	var req authStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request", "error_description": "installId and setupKey are required."})
		return
	}
	authenticated, err := h.Broker.AuthStatus(c.Request.Context(), req.InstallID, req.SetupKey)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "isAuthenticated": authenticated})
}

const callbackPageTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h2 style="color: %s;">%s</h2>
<p>%s</p>
<script>setTimeout(function () { window.close(); }, 3000);</script>
</body>
</html>`

func (h *BrokerHandler) renderCallbackPage(c *gin.Context, status int, success bool, detail string) {
	title, color, heading := "Authentication Failed", "#c0392b", "Authentication failed"
	if success {
		title, color, heading = "Authentication Complete", "#27ae60", "Authentication successful"
	}
	page := fmt.Sprintf(callbackPageTemplate, title, color, heading, html.EscapeString(detail))
	c.Data(status, "text/html; charset=utf-8", []byte(page))
}

func (h *BrokerHandler) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domainoauth.ErrUnknownInstall):
		h.Logger.Warn("unknown install", zap.Error(err))
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "unknown_install", "error_description": "Installation is not registered."})
	case errors.Is(err, domainoauth.ErrInvalidRequest):
		h.Logger.Warn("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid_request", "error_description": "The request was malformed."})
	case errors.Is(err, domainoauth.ErrProviderNotFound):
		h.Logger.Warn("unknown service", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown_service", "error_description": "No OAuth provider is configured for this service."})
	default:
		h.Logger.Error("broker failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "server_error", "error_description": "Internal server error."})
	}
}
