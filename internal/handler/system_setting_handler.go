package handler

import (
	"errors"
	"net/http"

	"github.com/daypace/internal/service"
	"github.com/gin-gonic/gin"
)

type systemSettingsPayload struct {
	AIProvider     string `json:"ai_provider"`
	OpenAIAPIKey   string `json:"openai_api_key"`
	DeepSeekAPIKey string `json:"deepseek_api_key"`
}

type aiConnectionPayload struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

// GetSystemSettings 返回系统设置
func (a *API) GetSystemSettings(c *gin.Context) {
	settings, err := a.system.GetSettings()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "获取系统设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": systemSettingsToPayload(settings)})
}

// UpdateSystemSettings 保存系统设置
func (a *API) UpdateSystemSettings(c *gin.Context) {
	var payload systemSettingsPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	settings, err := a.system.UpdateSettings(service.SystemSettingsInput{
		AIProvider:     payload.AIProvider,
		OpenAIAPIKey:   payload.OpenAIAPIKey,
		DeepSeekAPIKey: payload.DeepSeekAPIKey,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "保存系统设置失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"settings": systemSettingsToPayload(settings)})
}

// TestAIConnection 校验给定平台 API Key 是否可用
func (a *API) TestAIConnection(c *gin.Context) {
	var payload aiConnectionPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	if err := a.system.TestAIConnection(c.Request.Context(), payload.Provider, payload.APIKey); err != nil {
		if errors.Is(err, service.ErrAIAPIKeyMissing) {
			respondError(c, http.StatusBadRequest, "请先填写 API Key")
			return
		}
		respondError(c, http.StatusBadGateway, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func systemSettingsToPayload(settings service.SystemSettings) gin.H {
	return gin.H{
		"ai_provider":      settings.AIProvider,
		"openai_api_key":   settings.OpenAIAPIKey,
		"deepseek_api_key": settings.DeepSeekAPIKey,
	}
}
