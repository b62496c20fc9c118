package actions

import (
	"context"
	"encoding/json"

	"chessarena/models"

	"go.uber.org/zap"
)

func handleMove(ctx context.Context, client *models.Client, payload json.RawMessage, deps Deps) {
	var cmd models.MoveCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		sendError(client, models.CmdMove, "Invalid move payload", deps.Logger)
		return
	}
	if err := deps.Orchestrator.HandleMove(ctx, client.UserID, &cmd); err != nil {
		deps.Logger.Info("Move rejected",
			zap.Uint("UserID", client.UserID),
			zap.String("gameID", cmd.GameID),
			zap.Error(err),
		)
		sendError(client, models.CmdMove, err.Error(), deps.Logger)
	}
}

func handleResign(ctx context.Context, client *models.Client, payload json.RawMessage, deps Deps) {
	var cmd models.GameCommand
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.GameID == "" {
		sendError(client, models.CmdResign, "Invalid resign payload", deps.Logger)
		return
	}
	if err := deps.Orchestrator.Resign(ctx, client.UserID, cmd.GameID); err != nil {
		sendError(client, models.CmdResign, err.Error(), deps.Logger)
	}
}

func handleOfferDraw(ctx context.Context, client *models.Client, payload json.RawMessage, deps Deps) {
	var cmd models.GameCommand
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.GameID == "" {
		sendError(client, models.CmdOfferDraw, "Invalid offerDraw payload", deps.Logger)
		return
	}
	if err := deps.Orchestrator.OfferDraw(ctx, client.UserID, cmd.GameID); err != nil {
		sendError(client, models.CmdOfferDraw, err.Error(), deps.Logger)
	}
}

func handleAcceptDraw(ctx context.Context, client *models.Client, payload json.RawMessage, deps Deps) {
	var cmd models.GameCommand
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.GameID == "" {
		sendError(client, models.CmdAcceptDraw, "Invalid acceptDraw payload", deps.Logger)
		return
	}
	if err := deps.Orchestrator.AcceptDraw(ctx, client.UserID, cmd.GameID); err != nil {
		sendError(client, models.CmdAcceptDraw, err.Error(), deps.Logger)
	}
}
