package handlers

import (
	"context"
	"runtime/debug"

	"go.uber.org/zap"

	"telegram-emotion-diary/internal/conversation"
	"telegram-emotion-diary/internal/gateway"
	"telegram-emotion-diary/internal/models"
)

type Handler struct {
	Bot    gateway.Sender
	Engine *conversation.Engine
	Log    *zap.Logger
}

func NewHandler(bot gateway.Sender, engine *conversation.Engine, log *zap.Logger) *Handler {
	return &Handler{Bot: bot, Engine: engine, Log: log}
}

// HandleUpdate answers one message. A panic is contained to this message.
func (h *Handler) HandleUpdate(ctx context.Context, upd gateway.Update) {
	defer func() {
		if r := recover(); r != nil {
			h.Log.Error("panic while handling update",
				zap.Int64("user_id", upd.UserID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			h.send(ctx, upd.UserID, models.Prompt{Text: conversation.InternalFailureText})
		}
	}()

	if upd.Command != "" {
		h.HandleCommand(ctx, upd.UserID, upd.Command)
		return
	}
	h.HandleText(ctx, upd.UserID, upd.Text)
}

// Busy tells the user a message was dropped while earlier ones are still being handled.
func (h *Handler) Busy(ctx context.Context, upd gateway.Update) {
	h.Log.Warn("user queue full, update dropped", zap.Int64("user_id", upd.UserID))
	h.send(ctx, upd.UserID, models.Prompt{Text: conversation.BusyText})
}

func (h *Handler) HandleText(ctx context.Context, userID int64, text string) {
	h.send(ctx, userID, h.Engine.Handle(ctx, userID, text))
}

func (h *Handler) send(ctx context.Context, userID int64, p models.Prompt) {
	if err := h.Bot.Send(ctx, userID, p); err != nil {
		h.Log.Warn("send reply", zap.Int64("user_id", userID), zap.Error(err))
	}
}
