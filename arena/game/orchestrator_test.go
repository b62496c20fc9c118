package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"chessarena/arena/broadcast"
	"chessarena/arena/storage"
	"chessarena/models"
)

// fakeStore はstorage.Storeのインメモリ実装です。呼び出し順の検証のため
// 共有ログにも記録します。
type fakeStore struct {
	mu          sync.Mutex
	games       map[string]*models.GameRecord
	ratings     map[string]*models.RatingRecord // key: userID-ratingType
	saveCount   int
	log         *eventLog
	failUpdates bool
}

type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func newFakeStore(log *eventLog) *fakeStore {
	return &fakeStore{
		games:   make(map[string]*models.GameRecord),
		ratings: make(map[string]*models.RatingRecord),
		log:     log,
	}
}

func ratingKey(userID uint, ratingType string) string {
	return ratingType + "-" + string(rune('0'+userID))
}

func (f *fakeStore) CreateGame(ctx context.Context, spec storage.GameSpec) (*models.GameRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record := &models.GameRecord{
		GameID: spec.GameID, WhiteID: spec.WhiteID, BlackID: spec.BlackID,
		TimeControl: spec.TimeControl, RatingType: spec.RatingType,
		Rated: spec.Rated, Status: models.GameStatusPending,
	}
	f.games[spec.GameID] = record
	return record, nil
}

func (f *fakeStore) UpdateGame(ctx context.Context, gameID string, patch storage.GamePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdates {
		return errors.New("store unavailable")
	}
	record, exists := f.games[gameID]
	if !exists {
		return storage.ErrNotFound
	}
	if patch.Status != nil {
		record.Status = *patch.Status
	}
	if patch.Winner != nil {
		record.Winner = *patch.Winner
	}
	if patch.Reason != nil {
		record.Reason = *patch.Reason
	}
	return nil
}

func (f *fakeStore) GetRating(ctx context.Context, userID uint, ratingType string) (*models.RatingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, exists := f.ratings[ratingKey(userID, ratingType)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (f *fakeStore) SaveRatings(ctx context.Context, white, black *models.RatingRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ratings[ratingKey(white.UserID, white.RatingType)] = white
	f.ratings[ratingKey(black.UserID, black.RatingType)] = black
	f.saveCount++
	f.log.add("saveRatings")
	return nil
}

// fakeNotifier はRoomNotifierの記録実装です。
type fakeNotifier struct {
	mu     sync.Mutex
	events []broadcast.Event
	rooms  map[string]map[uint]bool
	log    *eventLog
}

func newFakeNotifier(log *eventLog) *fakeNotifier {
	return &fakeNotifier{rooms: make(map[string]map[uint]bool), log: log}
}

func (f *fakeNotifier) record(event broadcast.Event) {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
	f.log.add(event.EventType())
}

func (f *fakeNotifier) ToUser(userID uint, event broadcast.Event) bool {
	f.record(event)
	return true
}

func (f *fakeNotifier) ToRoom(gameID string, event broadcast.Event) {
	f.record(event)
}

func (f *fakeNotifier) ToOpponents(gameID string, userID uint, event broadcast.Event) {
	f.record(event)
}

func (f *fakeNotifier) JoinRoom(gameID string, userID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rooms[gameID] == nil {
		f.rooms[gameID] = make(map[uint]bool)
	}
	f.rooms[gameID][userID] = true
}

func (f *fakeNotifier) CloseRoom(gameID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, gameID)
}

func (f *fakeNotifier) RoomOnlineCount(gameID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rooms[gameID])
}

func (f *fakeNotifier) eventsOf(eventType string) []broadcast.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []broadcast.Event
	for _, event := range f.events {
		if event.EventType() == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func proposalBetween(player1, player2 uint, rated bool) *models.MatchProposal {
	req1 := models.MatchRequest{UserID: player1, TimeControl: "5+0", RatingType: models.RatingBlitz,
		Rated: rated, MinRating: 1100, MaxRating: 1300, Center: 1200}
	req2 := req1
	req2.UserID = player2
	return &models.MatchProposal{ProposalID: "p1", Player1: player1, Player2: player2,
		Request1: req1, Request2: req2, CreatedAt: time.Now()}
}

func testProposal(rated bool) *models.MatchProposal {
	return proposalBetween(1, 2, rated)
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeStore, *fakeNotifier) {
	t.Helper()
	log := &eventLog{}
	store := newFakeStore(log)
	notifier := newFakeNotifier(log)
	// ティックはテストでは不要なので長い間隔にする
	o := NewOrchestrator(store, notifier, time.Hour, zap.NewNop())
	return o, store, notifier
}

func TestCreateFromProposal(t *testing.T) {
	o, store, notifier := newTestOrchestrator(t)
	ctx := context.Background()

	if err := o.CreateFromProposal(ctx, testProposal(true)); err != nil {
		t.Fatal(err)
	}

	starts := notifier.eventsOf(broadcast.TypeGameStart)
	if len(starts) != 2 {
		t.Fatalf("game-start sent %d times, want 2", len(starts))
	}
	start := starts[0].(broadcast.GameStart)
	if start.WhiteTimeMs != 300000 || start.BlackTimeMs != 300000 {
		t.Errorf("initial times = %d/%d, want 300000", start.WhiteTimeMs, start.BlackTimeMs)
	}
	if start.Turn != "white" {
		t.Errorf("turn = %q, want white", start.Turn)
	}

	s, err := o.Session(start.GameID)
	if err != nil {
		t.Fatal(err)
	}
	if s.Status() != models.GameStatusActive {
		t.Errorf("status = %q, want ACTIVE", s.Status())
	}
	if !o.InGame(1) || !o.InGame(2) {
		t.Errorf("players not registered as in game")
	}
	if o.clocks.Count() != 1 {
		t.Errorf("clock not started")
	}

	store.mu.Lock()
	record := store.games[start.GameID]
	store.mu.Unlock()
	if record == nil || record.Status != models.GameStatusActive {
		t.Errorf("persisted record = %+v", record)
	}
}

// 対局中のプレイヤーを含む提案からはゲームを作らない。
func TestCreateFromProposalRejectsBusyPlayer(t *testing.T) {
	o, _, notifier := newTestOrchestrator(t)
	ctx := context.Background()

	if err := o.CreateFromProposal(ctx, testProposal(false)); err != nil {
		t.Fatal(err)
	}

	err := o.CreateFromProposal(ctx, proposalBetween(1, 3, false))
	if !errors.Is(err, ErrPlayerBusy) {
		t.Fatalf("err = %v, want ErrPlayerBusy", err)
	}
	if o.InGame(3) {
		t.Errorf("player 3 registered for a rejected game")
	}
	// game-startは最初の一局の分だけ
	if starts := notifier.eventsOf(broadcast.TypeGameStart); len(starts) != 2 {
		t.Errorf("game-start sent %d times, want 2", len(starts))
	}
}

// 終局したプレイヤーは片付け猶予中でも対局中とは数えず、すぐに
// 次の対局へ入れる。
func TestInGameClearsAfterFinish(t *testing.T) {
	o, _, notifier := newTestOrchestrator(t)
	ctx := context.Background()

	if err := o.CreateFromProposal(ctx, testProposal(false)); err != nil {
		t.Fatal(err)
	}
	start := notifier.eventsOf(broadcast.TypeGameStart)[0].(broadcast.GameStart)
	if err := o.Resign(ctx, start.WhiteID, start.GameID); err != nil {
		t.Fatal(err)
	}

	if o.InGame(start.WhiteID) || o.InGame(start.BlackID) {
		t.Errorf("finished players still counted as in game")
	}
	if err := o.CreateFromProposal(ctx, proposalBetween(start.WhiteID, 3, false)); err != nil {
		t.Fatalf("rematch right after game end rejected: %v", err)
	}
}

func TestHandleMoveBroadcasts(t *testing.T) {
	o, _, notifier := newTestOrchestrator(t)
	ctx := context.Background()
	if err := o.CreateFromProposal(ctx, testProposal(false)); err != nil {
		t.Fatal(err)
	}
	start := notifier.eventsOf(broadcast.TypeGameStart)[0].(broadcast.GameStart)

	err := o.HandleMove(ctx, start.WhiteID, &models.MoveCommand{
		GameID: start.GameID, From: "e2", To: "e4"})
	if err != nil {
		t.Fatal(err)
	}

	moves := notifier.eventsOf(broadcast.TypeMove)
	if len(moves) != 1 {
		t.Fatalf("move broadcast %d times, want 1", len(moves))
	}
	if mv := moves[0].(broadcast.Move); mv.MoveUCI != "e2e4" || mv.Turn != "black" {
		t.Errorf("move event = %+v", mv)
	}
	turns := notifier.eventsOf(broadcast.TypeTurnChanged)
	if len(turns) != 1 {
		t.Fatalf("turnChanged broadcast %d times, want 1", len(turns))
	}

	// 非合法手はブロードキャストされない
	err = o.HandleMove(ctx, start.BlackID, &models.MoveCommand{
		GameID: start.GameID, From: "e7", To: "e4"})
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("err = %v, want ErrIllegalMove", err)
	}
	if len(notifier.eventsOf(broadcast.TypeMove)) != 1 {
		t.Errorf("illegal move was broadcast")
	}
}

func TestTimeoutFinishesGame(t *testing.T) {
	o, store, notifier := newTestOrchestrator(t)
	ctx := context.Background()
	if err := o.CreateFromProposal(ctx, testProposal(true)); err != nil {
		t.Fatal(err)
	}
	start := notifier.eventsOf(broadcast.TypeGameStart)[0].(broadcast.GameStart)

	// 白の時間切れを時計レジストリからの通知として扱う
	o.handleTimeout(start.GameID, "white")

	s, err := o.Session(start.GameID)
	if err != nil {
		t.Fatal(err)
	}
	if s.Status() != models.GameStatusCompleted {
		t.Errorf("status = %q, want COMPLETED", s.Status())
	}
	winner, reason := s.Result()
	if winner != "black" || reason != models.ReasonTimeout {
		t.Errorf("result = %q/%q, want black/timeout", winner, reason)
	}

	timeouts := notifier.eventsOf(broadcast.TypeTimeOut)
	if len(timeouts) != 1 {
		t.Fatalf("timeOut broadcast %d times, want 1", len(timeouts))
	}
	if to := timeouts[0].(broadcast.TimeOut); to.Winner != start.BlackID || to.Loser != start.WhiteID {
		t.Errorf("timeOut = %+v", to)
	}
	if len(notifier.eventsOf(broadcast.TypeGameEnded)) != 1 {
		t.Errorf("gameEnded not broadcast")
	}
	if o.clocks.Count() != 0 {
		t.Errorf("clock not stopped after timeout")
	}

	// レート戦なのでレーティングが一度だけ更新される
	store.mu.Lock()
	saves := store.saveCount
	store.mu.Unlock()
	if saves != 1 {
		t.Errorf("ratings saved %d times, want 1", saves)
	}

	// 二重のタイムアウト通知は無視される
	o.handleTimeout(start.GameID, "black")
	store.mu.Lock()
	saves = store.saveCount
	store.mu.Unlock()
	if saves != 1 {
		t.Errorf("replayed timeout re-applied ratings")
	}
}

// 引き分け提案は型付きイベントとしてルームに配信される。
func TestOfferDrawNotifiesRoom(t *testing.T) {
	o, _, notifier := newTestOrchestrator(t)
	ctx := context.Background()
	if err := o.CreateFromProposal(ctx, testProposal(false)); err != nil {
		t.Fatal(err)
	}
	start := notifier.eventsOf(broadcast.TypeGameStart)[0].(broadcast.GameStart)

	if err := o.OfferDraw(ctx, start.WhiteID, start.GameID); err != nil {
		t.Fatal(err)
	}

	offers := notifier.eventsOf(broadcast.TypeDrawOffered)
	if len(offers) != 1 {
		t.Fatalf("drawOffered broadcast %d times, want 1", len(offers))
	}
	if e := offers[0].(broadcast.DrawOffered); e.By != start.WhiteID || e.GameID != start.GameID {
		t.Errorf("drawOffered = %+v", e)
	}
}

func TestResignFinishes(t *testing.T) {
	o, store, notifier := newTestOrchestrator(t)
	ctx := context.Background()
	if err := o.CreateFromProposal(ctx, testProposal(true)); err != nil {
		t.Fatal(err)
	}
	start := notifier.eventsOf(broadcast.TypeGameStart)[0].(broadcast.GameStart)

	if err := o.Resign(ctx, start.WhiteID, start.GameID); err != nil {
		t.Fatal(err)
	}

	ended := notifier.eventsOf(broadcast.TypeGameEnded)
	if len(ended) != 1 {
		t.Fatalf("gameEnded broadcast %d times, want 1", len(ended))
	}
	if e := ended[0].(broadcast.GameEnded); e.Winner != "black" || e.Reason != models.ReasonResignation {
		t.Errorf("gameEnded = %+v", e)
	}

	// 同点同士の決着なので±16
	white, err := store.GetRating(ctx, start.WhiteID, models.RatingBlitz)
	if err != nil {
		t.Fatal(err)
	}
	black, err := store.GetRating(ctx, start.BlackID, models.RatingBlitz)
	if err != nil {
		t.Fatal(err)
	}
	if white.Rating != 1184 || black.Rating != 1216 {
		t.Errorf("ratings = %d/%d, want 1184/1216", white.Rating, black.Rating)
	}
}

func TestResultBroadcastBeforeRatingPersistence(t *testing.T) {
	log := &eventLog{}
	store := newFakeStore(log)
	notifier := newFakeNotifier(log)
	o := NewOrchestrator(store, notifier, time.Hour, zap.NewNop())
	ctx := context.Background()

	if err := o.CreateFromProposal(ctx, testProposal(true)); err != nil {
		t.Fatal(err)
	}
	start := notifier.eventsOf(broadcast.TypeGameStart)[0].(broadcast.GameStart)
	if err := o.Resign(ctx, start.WhiteID, start.GameID); err != nil {
		t.Fatal(err)
	}

	// 結果の配信はレーティング永続化より先に行われる
	entries := log.all()
	endedIdx, saveIdx := -1, -1
	for i, entry := range entries {
		switch entry {
		case broadcast.TypeGameEnded:
			endedIdx = i
		case "saveRatings":
			saveIdx = i
		}
	}
	if endedIdx == -1 || saveIdx == -1 || endedIdx > saveIdx {
		t.Errorf("order wrong: gameEnded at %d, saveRatings at %d", endedIdx, saveIdx)
	}
}

func TestUnratedGameSkipsRatings(t *testing.T) {
	o, store, notifier := newTestOrchestrator(t)
	ctx := context.Background()
	if err := o.CreateFromProposal(ctx, testProposal(false)); err != nil {
		t.Fatal(err)
	}
	start := notifier.eventsOf(broadcast.TypeGameStart)[0].(broadcast.GameStart)
	if err := o.Resign(ctx, start.WhiteID, start.GameID); err != nil {
		t.Fatal(err)
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.saveCount != 0 {
		t.Errorf("unrated game updated ratings %d times", store.saveCount)
	}
}
