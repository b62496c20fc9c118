package actions

import (
	"context"
	"encoding/json"

	"chessarena/arena/broadcast"
	"chessarena/models"

	"go.uber.org/zap"
)

func handleFindMatch(ctx context.Context, client *models.Client, payload json.RawMessage, deps Deps) {
	var cmd models.FindMatchCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		sendError(client, models.CmdFindMatch, "Invalid findMatch payload", deps.Logger)
		return
	}

	result, err := deps.Coordinator.FindMatch(ctx, client.UserID, &cmd)
	if err != nil {
		sendError(client, models.CmdFindMatch, err.Error(), deps.Logger)
		return
	}

	// 相手が見つかった場合の通知はコーディネーターが双方へ送っている。
	// 待機に入った場合のみここで知らせる
	if result.Proposal == nil {
		deps.Hub.ToUser(client.UserID, broadcast.Queued{
			TimeControl: result.Request.TimeControl,
			RatingType:  result.Request.RatingType,
			MinRating:   result.Request.MinRating,
			MaxRating:   result.Request.MaxRating,
		})
	}
}

func handleCancelMatch(client *models.Client, deps Deps) {
	if !deps.Coordinator.Cancel(client.UserID) {
		sendError(client, models.CmdCancelMatch, "No active match request", deps.Logger)
		return
	}
	deps.Logger.Info("Match request cancelled", zap.Uint("UserID", client.UserID))
}

func handleAcceptMatch(ctx context.Context, client *models.Client, payload json.RawMessage, deps Deps) {
	var cmd models.ProposalCommand
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.ProposalID == "" {
		sendError(client, models.CmdAccept, "Invalid acceptMatch payload", deps.Logger)
		return
	}
	if err := deps.Coordinator.Accept(ctx, client.UserID, cmd.ProposalID); err != nil {
		sendError(client, models.CmdAccept, err.Error(), deps.Logger)
	}
}

func handleDeclineMatch(ctx context.Context, client *models.Client, payload json.RawMessage, deps Deps) {
	var cmd models.ProposalCommand
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.ProposalID == "" {
		sendError(client, models.CmdDecline, "Invalid declineMatch payload", deps.Logger)
		return
	}
	if err := deps.Coordinator.Decline(ctx, client.UserID, cmd.ProposalID); err != nil {
		sendError(client, models.CmdDecline, err.Error(), deps.Logger)
	}
}
