package game

import (
	"errors"
	"testing"

	"chessarena/models"
)

const (
	whiteID = uint(1)
	blackID = uint(2)
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	tc, err := models.ParseTimeControl("5+0")
	if err != nil {
		t.Fatal(err)
	}
	s := NewSession("g1", whiteID, blackID, "5+0", tc, true, models.RatingBlitz)
	s.Activate()
	return s
}

// 白黒交互に指すヘルパー。uci は "e2e4" 形式。
func playMoves(t *testing.T, s *Session, moves []string) {
	t.Helper()
	players := [2]uint{whiteID, blackID}
	for i, uci := range moves {
		_, _, err := s.ApplyMove(players[i%2], uci[:2], uci[2:4], uci[4:])
		if err != nil {
			t.Fatalf("move %d (%s): %v", i, uci, err)
		}
	}
}

func TestTurnAlternates(t *testing.T) {
	s := newTestSession(t)
	moves := []string{"e2e4", "e7e5", "g1f3", "b8c6"}
	players := [2]uint{whiteID, blackID}
	wantTurn := [...]string{"black", "white", "black", "white"}

	for i, uci := range moves {
		result, terminal, err := s.ApplyMove(players[i%2], uci[:2], uci[2:4], "")
		if err != nil {
			t.Fatalf("move %d: %v", i, err)
		}
		if terminal {
			t.Fatalf("move %d unexpectedly terminal", i)
		}
		if result.Turn != wantTurn[i] {
			t.Errorf("after move %d turn = %q, want %q", i, result.Turn, wantTurn[i])
		}
	}
}

func TestMoveWhenNotActive(t *testing.T) {
	tc, _ := models.ParseTimeControl("5+0")
	s := NewSession("g1", whiteID, blackID, "5+0", tc, false, models.RatingBlitz)
	// まだPENDING
	if _, _, err := s.ApplyMove(whiteID, "e2", "e4", ""); !errors.Is(err, ErrGameNotActive) {
		t.Errorf("err = %v, want ErrGameNotActive", err)
	}
}

func TestMoveOutOfTurn(t *testing.T) {
	s := newTestSession(t)
	if _, _, err := s.ApplyMove(blackID, "e7", "e5", ""); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("err = %v, want ErrNotYourTurn", err)
	}
	// 部外者も手番エラー扱い
	if _, _, err := s.ApplyMove(99, "e2", "e4", ""); !errors.Is(err, ErrNotYourTurn) {
		t.Errorf("outsider err = %v, want ErrNotYourTurn", err)
	}
}

func TestIllegalMoveIsNoOp(t *testing.T) {
	s := newTestSession(t)
	before := s.Snapshot()

	_, _, err := s.ApplyMove(whiteID, "e2", "e5", "")
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("err = %v, want ErrIllegalMove", err)
	}

	after := s.Snapshot()
	if after.FEN != before.FEN || after.Turn != before.Turn ||
		after.Status != before.Status || after.MoveCount != before.MoveCount {
		t.Errorf("illegal move mutated state: before=%+v after=%+v", before, after)
	}
}

func TestScholarsMateCompletesGame(t *testing.T) {
	s := newTestSession(t)
	playMoves(t, s, []string{"e2e4", "e7e5", "d1h5", "b8c6", "f1c4", "g8f6"})

	result, terminal, err := s.ApplyMove(whiteID, "h5", "f7", "")
	if err != nil {
		t.Fatal(err)
	}
	if !terminal || !result.Checkmate {
		t.Fatalf("expected checkmate, got terminal=%v result=%+v", terminal, result)
	}
	if s.Status() != models.GameStatusCompleted {
		t.Errorf("status = %q, want COMPLETED", s.Status())
	}
	winner, reason := s.Result()
	if winner != "white" || reason != models.ReasonCheckmate {
		t.Errorf("result = %q/%q, want white/checkmate", winner, reason)
	}
	if id := s.WinnerUserID(); id == nil || *id != whiteID {
		t.Errorf("winner user = %v, want %d", id, whiteID)
	}

	// 終局後の着手は拒否される
	if _, _, err := s.ApplyMove(blackID, "e8", "f7", ""); !errors.Is(err, ErrGameNotActive) {
		t.Errorf("post-game move err = %v, want ErrGameNotActive", err)
	}
}

func TestResign(t *testing.T) {
	s := newTestSession(t)
	winner, err := s.Resign(whiteID)
	if err != nil {
		t.Fatal(err)
	}
	if winner != "black" {
		t.Errorf("winner = %q, want black", winner)
	}
	if s.Status() != models.GameStatusCompleted {
		t.Errorf("status = %q, want COMPLETED", s.Status())
	}
	if _, reason := s.Result(); reason != models.ReasonResignation {
		t.Errorf("reason = %q, want resignation", reason)
	}
}

func TestDrawOfferAccept(t *testing.T) {
	s := newTestSession(t)

	// 提案がないのに受諾はできない
	if err := s.AcceptDraw(blackID); !errors.Is(err, ErrNoDrawOffer) {
		t.Errorf("err = %v, want ErrNoDrawOffer", err)
	}

	if err := s.OfferDraw(whiteID); err != nil {
		t.Fatal(err)
	}
	// 自分の提案は自分で受諾できない
	if err := s.AcceptDraw(whiteID); !errors.Is(err, ErrNoDrawOffer) {
		t.Errorf("self-accept err = %v, want ErrNoDrawOffer", err)
	}
	if err := s.AcceptDraw(blackID); err != nil {
		t.Fatal(err)
	}
	if s.Status() != models.GameStatusDraw {
		t.Errorf("status = %q, want DRAW", s.Status())
	}
}

func TestDrawOfferClearedByMove(t *testing.T) {
	s := newTestSession(t)
	if err := s.OfferDraw(whiteID); err != nil {
		t.Fatal(err)
	}
	playMoves(t, s, []string{"e2e4"})
	if err := s.AcceptDraw(blackID); !errors.Is(err, ErrNoDrawOffer) {
		t.Errorf("offer should be void after a move, err = %v", err)
	}
}

func TestForceTimeout(t *testing.T) {
	s := newTestSession(t)
	winner, ok := s.ForceTimeout("white")
	if !ok || winner != "black" {
		t.Fatalf("ForceTimeout = %q/%v, want black/true", winner, ok)
	}
	if _, reason := s.Result(); reason != models.ReasonTimeout {
		t.Errorf("reason = %q, want timeout", reason)
	}
	// 2回目は無効（状態は後退しない）
	if _, ok := s.ForceTimeout("black"); ok {
		t.Errorf("second ForceTimeout should be a no-op")
	}
}

func TestPromotionMove(t *testing.T) {
	s := newTestSession(t)
	// 白ポーンを8段目まで運んで昇格させる
	playMoves(t, s, []string{"a2a4", "b7b5", "a4b5", "h7h6", "b5b6", "h6h5", "b6a7", "h5h4"})
	result, _, err := s.ApplyMove(whiteID, "a7", "b8", "q")
	if err != nil {
		t.Fatalf("promotion rejected: %v", err)
	}
	if result.UCI != "a7b8q" {
		t.Errorf("uci = %q, want a7b8q", result.UCI)
	}
}
