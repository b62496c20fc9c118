package matchmaking

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"chessarena/arena/broadcast"
	"chessarena/arena/proposal"
	"chessarena/arena/storage"
	"chessarena/models"
)

// defaultWindow は希望レーティング未指定時のウィンドウ幅（±）です。
const defaultWindow = 100

// GameCreator は双方承諾済みの提案からゲームを開始する境界です。
// GameOrchestratorが実装します。
type GameCreator interface {
	CreateFromProposal(ctx context.Context, p *models.MatchProposal) error
	InGame(userID uint) bool
}

// FindMatchResult はFindMatchの結果です。Proposalがnilの場合は待機中で、
// Requestに確定したウィンドウが入ります。
type FindMatchResult struct {
	Proposal *models.MatchProposal
	Request  *models.MatchRequest
}

// Coordinator はプールと提案ストアを束ね、二つの互換なリクエストを
// 確定したゲームへ変換します。
type Coordinator struct {
	pool      *Pool
	proposals *proposal.Store
	store     storage.Store
	notifier  broadcast.Notifier
	creator   GameCreator
	logger    *zap.Logger
}

// NewCoordinator はコーディネーターを生成します。
func NewCoordinator(pool *Pool, proposals *proposal.Store, store storage.Store,
	notifier broadcast.Notifier, creator GameCreator, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		pool:      pool,
		proposals: proposals,
		store:     store,
		notifier:  notifier,
		creator:   creator,
		logger:    logger,
	}
}

// FindMatch はユーザーのマッチングリクエストを処理します。互換な相手が
// 待機中なら提案を作って双方に通知し、いなければプールに入れます。
func (c *Coordinator) FindMatch(ctx context.Context, userID uint, cmd *models.FindMatchCommand) (*FindMatchResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	if c.creator.InGame(userID) {
		return nil, ErrAlreadyInGame
	}
	// 待機中のリクエストがある間は新しいリクエストを受け付けない。
	// 別プールへの二重投入が即時マッチした場合に古いリクエストが
	// 残留するのを防ぐ
	if c.pool.Waiting(userID) {
		return nil, ErrAlreadyQueued
	}

	rating, err := c.resolveRating(ctx, userID, cmd.RatingType)
	if err != nil {
		return nil, err
	}

	req := &models.MatchRequest{
		UserID:      userID,
		TimeControl: cmd.TimeControl,
		RatingType:  cmd.RatingType,
		Rated:       cmd.Rated,
		MinRating:   rating - defaultWindow,
		MaxRating:   rating + defaultWindow,
		Center:      rating,
		EnqueuedAt:  time.Now(),
	}
	if cmd.MinRating != nil {
		req.MinRating = *cmd.MinRating
	}
	if cmd.MaxRating != nil {
		req.MaxRating = *cmd.MaxRating
	}
	if cmd.MinRating != nil || cmd.MaxRating != nil {
		req.Center = (req.MinRating + req.MaxRating) / 2
	}

	opponent := c.pool.MatchAndRemove(req)
	if opponent == nil {
		if err := c.pool.Enqueue(req); err != nil {
			return nil, err
		}
		return &FindMatchResult{Request: req}, nil
	}

	p, err := c.proposals.Create(ctx, *opponent, *req)
	if err != nil {
		// 取り出してしまった相手を失わないように戻す
		if reErr := c.pool.Enqueue(opponent); reErr != nil {
			c.logger.Error("Failed to restore opponent request", zap.Error(reErr))
		}
		return nil, err
	}
	c.notifyProposal(p)
	return &FindMatchResult{Proposal: p, Request: req}, nil
}

// Cancel はユーザーの待機リクエストを全プールから取り除きます。
func (c *Coordinator) Cancel(userID uint) bool {
	return c.pool.Remove(userID)
}

// Accept は提案の承諾を処理します。双方の承諾が揃った呼び出しだけが
// ゲーム作成まで進みます。
func (c *Coordinator) Accept(ctx context.Context, userID uint, proposalID string) error {
	status, p, err := c.proposals.Accept(ctx, userID, proposalID)
	if err != nil {
		return err
	}

	switch status {
	case proposal.StatusWaiting, proposal.StatusResolved:
		return nil
	case proposal.StatusBothAccepted:
		if err := c.creator.CreateFromProposal(ctx, p); err != nil {
			// 作成失敗は両者に明示的に通知し、提案は破棄する。
			// プールの予約は既に消費済みなので双方の再キューが必要
			c.logger.Error("Game creation after double-accept failed",
				zap.String("proposalID", proposalID), zap.Error(err))
			c.proposals.Delete(ctx, proposalID)
			event := broadcast.MatchError{ProposalID: proposalID,
				Message: "Failed to create game, please queue again"}
			c.notifier.ToUser(p.Player1, event)
			c.notifier.ToUser(p.Player2, event)
			return err
		}
		c.proposals.Delete(ctx, proposalID)
	}
	return nil
}

// Decline は提案の辞退を処理します。相手の元リクエストを再キューし、
// 辞退されたことを通知します。
func (c *Coordinator) Decline(ctx context.Context, userID uint, proposalID string) error {
	p, err := c.proposals.Decline(ctx, userID, proposalID)
	if err != nil {
		return err
	}

	other := p.Opponent(userID)
	otherReq := p.RequestOf(other)
	otherReq.EnqueuedAt = time.Now()
	requeued := c.pool.Enqueue(&otherReq) == nil
	c.notifier.ToUser(other, broadcast.MatchDeclined{
		ProposalID: proposalID,
		By:         userID,
		Requeued:   requeued,
	})
	return nil
}

// Run はバックグラウンドの掃除とウィンドウ拡大マッチングを駆動します。
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(ExpandInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.sweepAndExpand(ctx, now)
		}
	}
}

func (c *Coordinator) sweepAndExpand(ctx context.Context, now time.Time) {
	for _, userID := range c.pool.SweepExpired(now) {
		c.notifier.ToUser(userID, broadcast.ErrorEvent{
			Command: models.CmdFindMatch,
			Message: "Matchmaking request expired, please queue again",
		})
	}

	for _, pair := range c.pool.ExpandAndPair(now) {
		p, err := c.createWithRetry(ctx, *pair[0], *pair[1])
		if err != nil {
			c.logger.Error("Failed to create proposal for expanded pair", zap.Error(err))
			// 提案にできなかったペアはプールへ戻す
			for _, req := range pair {
				if reErr := c.pool.Enqueue(req); reErr != nil {
					c.logger.Error("Failed to restore request", zap.Error(reErr))
				}
			}
			continue
		}
		c.notifyProposal(p)
	}
}

// createWithRetry は一時的なストア障害に対して指数バックオフ付きで
// 3回まで再試行します。
func (c *Coordinator) createWithRetry(ctx context.Context, req1, req2 models.MatchRequest) (*models.MatchProposal, error) {
	backoff := 100 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		p, err := c.proposals.Create(ctx, req1, req2)
		if err == nil {
			return p, nil
		}
		lastErr = err
		time.Sleep(backoff)
		backoff *= 2
	}
	return nil, lastErr
}

func (c *Coordinator) notifyProposal(p *models.MatchProposal) {
	req := p.Request1
	c.notifier.ToUser(p.Player1, broadcast.MatchFound{
		ProposalID:  p.ProposalID,
		OpponentID:  p.Player2,
		TimeControl: req.TimeControl,
		RatingType:  req.RatingType,
		Rated:       req.Rated,
	})
	c.notifier.ToUser(p.Player2, broadcast.MatchFound{
		ProposalID:  p.ProposalID,
		OpponentID:  p.Player1,
		TimeControl: req.TimeControl,
		RatingType:  req.RatingType,
		Rated:       req.Rated,
	})
}

// resolveRating はユーザーの現在レーティングを取得します。レコードが
// 無ければ既定値1200を使います。
func (c *Coordinator) resolveRating(ctx context.Context, userID uint, ratingType string) (int, error) {
	record, err := c.store.GetRating(ctx, userID, ratingType)
	if errors.Is(err, storage.ErrNotFound) {
		return models.DefaultRating, nil
	}
	if err != nil {
		return 0, err
	}
	return record.Rating, nil
}
