package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chessarena/arena/broadcast"
	"chessarena/arena/clock"
	"chessarena/arena/rating"
	"chessarena/arena/storage"
	"chessarena/models"
)

// オーケストレーターのエラー
var (
	// ErrGameNotFound は存在しない（または片付け済みの）ゲームへの操作です。
	ErrGameNotFound = errors.New("game not found")
	// ErrPlayerBusy はどちらかのプレイヤーが既に対局中の提案です。
	ErrPlayerBusy = errors.New("player is already in an active game")
)

// cleanupDelay は終局からセッションを破棄するまでの猶予です。
const defaultCleanupDelay = 30 * time.Second

// RoomNotifier は配信に加えてルーム所属の管理も行う境界です。
// broadcast.Hub が実装します。
type RoomNotifier interface {
	broadcast.Notifier
	JoinRoom(gameID string, userID uint)
	CloseRoom(gameID string)
	RoomOnlineCount(gameID string) int
	ToOpponents(gameID string, userID uint, event broadcast.Event)
}

// Orchestrator は進行中の全ゲームセッションを所有し、一局のライフサイクル
// （作成、着手、時計、終局、レーティング反映、片付け）を調整します。
type Orchestrator struct {
	mu       sync.Mutex
	sessions map[string]*Session
	byUser   map[uint]string // ユーザーID → 参加中のゲームID

	clocks       *clock.Registry
	store        storage.Store
	notifier     RoomNotifier
	logger       *zap.Logger
	cleanupDelay time.Duration
	randGen      *rand.Rand
}

// NewOrchestrator はオーケストレーターと、その配下の時計レジストリを
// 生成します。tickInterval は通常1秒です。
func NewOrchestrator(store storage.Store, notifier RoomNotifier, tickInterval time.Duration, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		sessions:     make(map[string]*Session),
		byUser:       make(map[uint]string),
		store:        store,
		notifier:     notifier,
		logger:       logger,
		cleanupDelay: defaultCleanupDelay,
		randGen:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	o.clocks = clock.NewRegistry(tickInterval, o.handleTick, o.handleTimeout, logger)
	return o
}

// InGame はユーザーが進行中のゲームに参加しているかを返します。
// 終局済みのセッションは片付け猶予中でも対局中とは数えません。
func (o *Orchestrator) InGame(userID uint) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inGameLocked(userID)
}

func (o *Orchestrator) inGameLocked(userID uint) bool {
	gameID, exists := o.byUser[userID]
	if !exists {
		return false
	}
	if s, ok := o.sessions[gameID]; ok {
		return !s.Terminal()
	}
	// セッション登録前の予約。作成処理が進行中なので対局中として扱う
	return true
}

// Session はゲームIDからセッションを引きます。
func (o *Orchestrator) Session(gameID string) (*Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, exists := o.sessions[gameID]
	if !exists {
		return nil, ErrGameNotFound
	}
	return s, nil
}

// GameOf はユーザーが参加中のゲームIDを返します。
func (o *Orchestrator) GameOf(userID uint) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	gameID, exists := o.byUser[userID]
	return gameID, exists
}

// CreateFromProposal は双方承諾済みの提案からゲームを作成して開始します。
// 色はランダムに割り当てます。永続化に失敗した場合はエラーを返し、
// セッションは作られません。
func (o *Orchestrator) CreateFromProposal(ctx context.Context, p *models.MatchProposal) error {
	req := p.Request1
	tc, err := models.ParseTimeControl(req.TimeControl)
	if err != nil {
		return err
	}

	// 先後はランダムに決める
	whiteID, blackID := p.Player1, p.Player2
	if o.randGen.Intn(2) == 0 {
		whiteID, blackID = blackID, whiteID
	}

	gameID := uuid.New().String()

	// どちらかが対局中なら作らない。先に両者の枠を予約しておき、
	// 同じユーザーを含む提案が並行して作成されるのを防ぐ
	o.mu.Lock()
	if o.inGameLocked(whiteID) || o.inGameLocked(blackID) {
		o.mu.Unlock()
		return ErrPlayerBusy
	}
	o.byUser[whiteID] = gameID
	o.byUser[blackID] = gameID
	o.mu.Unlock()

	if _, err := o.store.CreateGame(ctx, storage.GameSpec{
		GameID:      gameID,
		WhiteID:     whiteID,
		BlackID:     blackID,
		TimeControl: req.TimeControl,
		RatingType:  req.RatingType,
		Rated:       req.Rated,
		StartTime:   time.Now().Unix(),
	}); err != nil {
		o.mu.Lock()
		delete(o.byUser, whiteID)
		delete(o.byUser, blackID)
		o.mu.Unlock()
		return fmt.Errorf("persist game: %w", err)
	}

	s := NewSession(gameID, whiteID, blackID, req.TimeControl, tc, req.Rated, req.RatingType)

	o.mu.Lock()
	o.sessions[gameID] = s
	o.mu.Unlock()

	s.Activate()
	status := models.GameStatusActive
	if err := o.store.UpdateGame(ctx, gameID, storage.GamePatch{Status: &status}); err != nil {
		o.logger.Error("ゲーム状態の更新に失敗しました", zap.String("gameID", gameID), zap.Error(err))
	}

	o.notifier.JoinRoom(gameID, whiteID)
	o.notifier.JoinRoom(gameID, blackID)

	snap := s.Snapshot()
	start := broadcast.GameStart{
		GameID:      gameID,
		WhiteID:     whiteID,
		BlackID:     blackID,
		TimeControl: req.TimeControl,
		RatingType:  req.RatingType,
		Rated:       req.Rated,
		FEN:         snap.FEN,
		Turn:        snap.Turn,
		WhiteTimeMs: tc.BaseMs,
		BlackTimeMs: tc.BaseMs,
	}
	o.notifier.ToUser(whiteID, start)
	o.notifier.ToUser(blackID, start)

	o.clocks.Start(gameID, tc)
	o.logger.Info("Game started",
		zap.String("gameID", gameID),
		zap.Uint("white", whiteID),
		zap.Uint("black", blackID),
		zap.String("timeControl", req.TimeControl),
	)
	return nil
}

// HandleMove は着手コマンドを処理します。非合法手・手番違いは状態を
// 変えずにエラーを返し、ブロードキャストもしません。
func (o *Orchestrator) HandleMove(ctx context.Context, userID uint, cmd *models.MoveCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	s, err := o.Session(cmd.GameID)
	if err != nil {
		return err
	}

	result, terminal, err := s.ApplyMove(userID, cmd.From, cmd.To, cmd.Promotion)
	if err != nil {
		return err
	}

	move := broadcast.Move{
		GameID:    s.ID,
		MoveUCI:   result.UCI,
		FEN:       result.FEN,
		Turn:      result.Turn,
		Check:     result.Check,
		Checkmate: result.Checkmate,
		Stalemate: result.Stalemate,
		Draw:      result.Draw,
	}

	if terminal {
		o.notifier.ToRoom(s.ID, move)
		o.finish(ctx, s)
		return nil
	}

	// 指した側に加算してから手番の色を切り替える
	whiteMs, blackMs, active, ok := o.clocks.Switch(s.ID)
	o.notifier.ToRoom(s.ID, move)
	if ok {
		o.notifier.ToRoom(s.ID, broadcast.TurnChanged{
			GameID:      s.ID,
			Turn:        active,
			WhiteTimeMs: whiteMs,
			BlackTimeMs: blackMs,
		})
	}
	return nil
}

// Resign は投了を処理します。
func (o *Orchestrator) Resign(ctx context.Context, userID uint, gameID string) error {
	s, err := o.Session(gameID)
	if err != nil {
		return err
	}
	if _, err := s.Resign(userID); err != nil {
		return err
	}
	o.finish(ctx, s)
	return nil
}

// OfferDraw は引き分け提案を処理し、相手に通知します。
func (o *Orchestrator) OfferDraw(ctx context.Context, userID uint, gameID string) error {
	s, err := o.Session(gameID)
	if err != nil {
		return err
	}
	if err := s.OfferDraw(userID); err != nil {
		return err
	}
	o.notifier.ToRoom(gameID, broadcast.DrawOffered{GameID: gameID, By: userID})
	return nil
}

// AcceptDraw は引き分けの合意を処理します。
func (o *Orchestrator) AcceptDraw(ctx context.Context, userID uint, gameID string) error {
	s, err := o.Session(gameID)
	if err != nil {
		return err
	}
	if err := s.AcceptDraw(userID); err != nil {
		return err
	}
	o.finish(ctx, s)
	return nil
}

// HandleConnect は接続（再接続）したユーザーを参加中のゲームに戻します。
func (o *Orchestrator) HandleConnect(userID uint) {
	gameID, exists := o.GameOf(userID)
	if !exists {
		return
	}
	o.notifier.JoinRoom(gameID, userID)
	o.notifier.ToOpponents(gameID, userID, broadcast.OnlineStatus{UserID: userID, IsOnline: true})

	// 現在の局面と残り時間を送り直す
	s, err := o.Session(gameID)
	if err != nil {
		return
	}
	snap := s.Snapshot()
	whiteMs, blackMs, _, ok := o.clocks.Remaining(gameID)
	if !ok {
		return
	}
	o.notifier.ToUser(userID, broadcast.GameStart{
		GameID:      gameID,
		WhiteID:     snap.WhiteID,
		BlackID:     snap.BlackID,
		TimeControl: s.TCString,
		RatingType:  s.RatingType,
		Rated:       s.Rated,
		FEN:         snap.FEN,
		Turn:        snap.Turn,
		WhiteTimeMs: whiteMs,
		BlackTimeMs: blackMs,
	})
	o.clocks.Resume(gameID)
}

// HandleDisconnect は切断を相手に通知します。両者とも不在になった場合は
// 再接続猶予として時計を一時停止します。
func (o *Orchestrator) HandleDisconnect(userID uint) {
	gameID, exists := o.GameOf(userID)
	if !exists {
		return
	}
	o.notifier.ToOpponents(gameID, userID, broadcast.OnlineStatus{UserID: userID, IsOnline: false})
	if o.notifier.RoomOnlineCount(gameID) == 0 {
		o.clocks.Pause(gameID)
		o.logger.Info("Clock paused, both players offline", zap.String("gameID", gameID))
	}
}

// handleTick は時計レジストリからの毎秒通知です。
func (o *Orchestrator) handleTick(gameID string, whiteMs, blackMs int64, active string) {
	o.notifier.ToRoom(gameID, broadcast.TimerUpdate{
		GameID:      gameID,
		WhiteTimeMs: whiteMs,
		BlackTimeMs: blackMs,
		CurrentTurn: active,
	})
}

// handleTimeout は残り時間0の通知です。時間切れした色の相手が勝ちます。
func (o *Orchestrator) handleTimeout(gameID string, loser string) {
	s, err := o.Session(gameID)
	if err != nil {
		return
	}
	if _, ok := s.ForceTimeout(loser); !ok {
		return // 着手による終局と競合した場合はそちらが勝つ
	}

	winnerID := s.WinnerUserID()
	loserID := s.BlackID
	if loser == "white" {
		loserID = s.WhiteID
	}
	if winnerID != nil {
		o.notifier.ToRoom(gameID, broadcast.TimeOut{
			GameID: gameID,
			Winner: *winnerID,
			Loser:  loserID,
		})
	}
	o.finish(context.Background(), s)
}

// finish は終局処理の唯一の経路です。呼び出し側で終局遷移が成立した
// 場合にのみ呼ばれるため、一局につきちょうど一回実行されます。
// 結果の配信は必ずレーティング反映より先に行います。観戦者は
// レーティング永続化が失敗しても結果を見られます。
func (o *Orchestrator) finish(ctx context.Context, s *Session) {
	o.clocks.Stop(s.ID)

	winner, reason := s.Result()
	o.notifier.ToRoom(s.ID, broadcast.GameEnded{
		GameID: s.ID,
		Winner: winner,
		Reason: reason,
	})

	snap := s.Snapshot()
	finishTime := time.Now().Unix()
	moves := s.MovesUCI()
	if err := o.store.UpdateGame(ctx, s.ID, storage.GamePatch{
		Status:     &snap.Status,
		Winner:     &winner,
		Reason:     &reason,
		FEN:        &snap.FEN,
		MovesUCI:   &moves,
		FinishTime: &finishTime,
	}); err != nil {
		o.logger.Error("終局したゲームの永続化に失敗しました",
			zap.String("gameID", s.ID), zap.Error(err))
	}

	if s.Rated {
		o.applyRatings(ctx, s)
	}

	// 片付けは少し遅らせ、クライアントが最終状態を取り切れるようにする
	gameID, whiteID, blackID := s.ID, s.WhiteID, s.BlackID
	time.AfterFunc(o.cleanupDelay, func() {
		o.mu.Lock()
		delete(o.sessions, gameID)
		if o.byUser[whiteID] == gameID {
			delete(o.byUser, whiteID)
		}
		if o.byUser[blackID] == gameID {
			delete(o.byUser, blackID)
		}
		o.mu.Unlock()
		o.notifier.CloseRoom(gameID)
	})

	o.logger.Info("Game finished",
		zap.String("gameID", s.ID),
		zap.String("winner", winner),
		zap.String("reason", reason),
	)
}

// applyRatings は終局したレート戦の結果を両者のレーティングに一度だけ
// 反映します。失敗してもゲームの完了自体は成立します。
func (o *Orchestrator) applyRatings(ctx context.Context, s *Session) {
	white := o.loadOrInitRating(ctx, s.WhiteID, s.RatingType)
	black := o.loadOrInitRating(ctx, s.BlackID, s.RatingType)
	if white == nil || black == nil {
		return
	}

	rating.ApplyResult(white, black, s.WinnerUserID(), time.Now())
	if err := o.store.SaveRatings(ctx, white, black); err != nil {
		o.logger.Error("レーティング更新に失敗しました",
			zap.String("gameID", s.ID), zap.Error(err))
		return
	}
	o.logger.Info("Ratings updated",
		zap.String("gameID", s.ID),
		zap.Int("whiteRating", white.Rating),
		zap.Int("blackRating", black.Rating),
	)
}

func (o *Orchestrator) loadOrInitRating(ctx context.Context, userID uint, ratingType string) *models.RatingRecord {
	record, err := o.store.GetRating(ctx, userID, ratingType)
	if errors.Is(err, storage.ErrNotFound) {
		return &models.RatingRecord{
			UserID:     userID,
			RatingType: ratingType,
			Rating:     models.DefaultRating,
			PeakRating: models.DefaultRating,
		}
	}
	if err != nil {
		o.logger.Error("レーティングの取得に失敗しました",
			zap.Uint("userID", userID), zap.Error(err))
		return nil
	}
	return record
}
