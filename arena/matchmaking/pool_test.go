package matchmaking

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"chessarena/models"
)

func req(userID uint, minRating, maxRating int, enqueuedAt time.Time) *models.MatchRequest {
	return &models.MatchRequest{
		UserID:      userID,
		TimeControl: "5+0",
		RatingType:  models.RatingBlitz,
		Rated:       true,
		MinRating:   minRating,
		MaxRating:   maxRating,
		Center:      (minRating + maxRating) / 2,
		EnqueuedAt:  enqueuedAt,
	}
}

func TestFindCompatibleOverlap(t *testing.T) {
	p := NewPool(zap.NewNop())
	now := time.Now()
	if err := p.Enqueue(req(1, 1100, 1300, now)); err != nil {
		t.Fatal(err)
	}

	// ウィンドウが重なる場合はマッチ
	if got := p.FindCompatible(req(2, 1150, 1350, now)); got == nil || got.UserID != 1 {
		t.Errorf("overlapping windows should match, got %+v", got)
	}
	// 重ならない場合はマッチしない
	if got := p.FindCompatible(req(3, 1400, 1600, now)); got != nil {
		t.Errorf("disjoint windows should not match, got %+v", got)
	}
	// タイムコントロールが違えばマッチしない
	other := req(4, 1100, 1300, now)
	other.TimeControl = "10+0"
	if got := p.FindCompatible(other); got != nil {
		t.Errorf("different time control should not match, got %+v", got)
	}
	// レート戦フラグが違えばマッチしない
	casual := req(5, 1100, 1300, now)
	casual.Rated = false
	if got := p.FindCompatible(casual); got != nil {
		t.Errorf("different ratedness should not match, got %+v", got)
	}
}

func TestFIFOTieBreak(t *testing.T) {
	p := NewPool(zap.NewNop())
	now := time.Now()
	// A, B の順で投入。後から来た C は最古の A と組む
	if err := p.Enqueue(req(1, 1000, 1400, now)); err != nil {
		t.Fatal(err)
	}
	if err := p.Enqueue(req(2, 1000, 1400, now.Add(time.Second))); err != nil {
		t.Fatal(err)
	}

	got := p.MatchAndRemove(req(3, 1000, 1400, now.Add(2*time.Second)))
	if got == nil || got.UserID != 1 {
		t.Fatalf("expected oldest request (user 1), got %+v", got)
	}
	// A は取り除かれ、B が残る
	if p.Waiting(1) {
		t.Errorf("matched request should be removed from pool")
	}
	if !p.Waiting(2) {
		t.Errorf("user 2 should still be waiting")
	}
}

func TestMatchAndRemoveAtomic(t *testing.T) {
	p := NewPool(zap.NewNop())
	now := time.Now()
	if err := p.Enqueue(req(1, 1000, 1400, now)); err != nil {
		t.Fatal(err)
	}

	if got := p.MatchAndRemove(req(2, 1000, 1400, now)); got == nil {
		t.Fatal("first match failed")
	}
	// 同じ相手を二度取ることはできない
	if got := p.MatchAndRemove(req(3, 1000, 1400, now)); got != nil {
		t.Errorf("request matched twice: %+v", got)
	}
}

func TestAlreadyQueued(t *testing.T) {
	p := NewPool(zap.NewNop())
	now := time.Now()
	if err := p.Enqueue(req(1, 1000, 1400, now)); err != nil {
		t.Fatal(err)
	}
	if err := p.Enqueue(req(1, 1000, 1400, now)); !errors.Is(err, ErrAlreadyQueued) {
		t.Errorf("err = %v, want ErrAlreadyQueued", err)
	}
}

func TestSweepExpired(t *testing.T) {
	p := NewPool(zap.NewNop())
	start := time.Now()
	if err := p.Enqueue(req(1, 1000, 1400, start)); err != nil {
		t.Fatal(err)
	}
	if err := p.Enqueue(req(2, 1000, 1400, start.Add(30*time.Second))); err != nil {
		t.Fatal(err)
	}

	// t=61s: t=0 のリクエストだけが破棄される
	swept := p.SweepExpired(start.Add(61 * time.Second))
	if len(swept) != 1 || swept[0] != 1 {
		t.Errorf("swept = %v, want [1]", swept)
	}
	if p.Waiting(1) {
		t.Errorf("expired request still in pool")
	}
	if !p.Waiting(2) {
		t.Errorf("fresh request swept")
	}
}

func TestExpandAndPair(t *testing.T) {
	p := NewPool(zap.NewNop())
	now := time.Now()
	// 中心1200と中心1550のウィンドウは当初は重ならない
	if err := p.Enqueue(req(1, 1150, 1250, now)); err != nil {
		t.Fatal(err)
	}
	if err := p.Enqueue(req(2, 1500, 1600, now)); err != nil {
		t.Fatal(err)
	}

	// 1回の拡大（±100）では [1050,1350] と [1400,1700] でまだ届かない
	if pairs := p.ExpandAndPair(now); len(pairs) != 0 {
		t.Fatalf("matched too early: %v", pairs)
	}
	// 2回目の拡大で [950,1450] と [1300,1800] が重なる
	pairs := p.ExpandAndPair(now)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %d, want 1", len(pairs))
	}
	if p.Len() != 0 {
		t.Errorf("paired requests should leave the pool, %d remain", p.Len())
	}
}

func TestExpandCap(t *testing.T) {
	p := NewPool(zap.NewNop())
	now := time.Now()
	r := req(1, 1150, 1250, now) // 中心1200
	if err := p.Enqueue(r); err != nil {
		t.Fatal(err)
	}

	// 何度広げても元の中心±400を超えない
	for i := 0; i < 10; i++ {
		p.ExpandAndPair(now)
	}
	if r.MinRating != 800 || r.MaxRating != 1600 {
		t.Errorf("window = [%d,%d], want [800,1600]", r.MinRating, r.MaxRating)
	}
}
