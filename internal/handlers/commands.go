package handlers

import (
	"context"

	"go.uber.org/zap"

	"telegram-emotion-diary/internal/conversation"
	"telegram-emotion-diary/internal/models"
)

func (h *Handler) HandleCommand(ctx context.Context, userID int64, cmd string) {
	switch cmd {
	case "start":
		h.send(ctx, userID, h.Engine.Start(ctx, userID))
	case "meal":
		h.send(ctx, userID, h.Engine.Begin(ctx, userID))
	case "cancel":
		h.send(ctx, userID, h.Engine.Cancel(userID))
	case "history":
		h.send(ctx, userID, h.Engine.History(ctx, userID))
	default:
		// неизвестная команда не считается ответом, сессия не меняется
		h.Log.Debug("unknown command", zap.Int64("user_id", userID), zap.String("command", cmd))
		h.send(ctx, userID, models.Prompt{Text: conversation.UnknownCommandText})
	}
}
