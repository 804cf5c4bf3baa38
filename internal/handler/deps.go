package handler

import (
	"livechat/internal/app/chat"
	"livechat/internal/configs"
)

// AppDeps bundles what the HTTP handlers need.
type AppDeps struct {
	Controller *chat.Controller
	Hub        *chat.Hub
	Config     *configs.AppConfig
}
