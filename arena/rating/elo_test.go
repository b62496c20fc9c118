package rating

import (
	"math"
	"testing"
	"time"

	"chessarena/models"
)

func TestExpectedEqualRatings(t *testing.T) {
	if e := Expected(1500, 1500); math.Abs(e-0.5) > 1e-9 {
		t.Errorf("Expected(1500,1500) = %f, want 0.5", e)
	}
}

func TestDeltaSymmetry(t *testing.T) {
	// 同レート同士の決着局は +16/-16 になる
	win := Delta(1500, 1500, ScoreWin)
	loss := Delta(1500, 1500, ScoreLoss)
	if win != 16 {
		t.Errorf("winner delta = %d, want 16", win)
	}
	if loss != -16 {
		t.Errorf("loser delta = %d, want -16", loss)
	}
	if win != -loss {
		t.Errorf("deltas not symmetric: %d vs %d", win, loss)
	}
}

func TestDeltaUnderdog(t *testing.T) {
	// 格下の勝利は格上の勝利より大きく動く
	underdog := Delta(1200, 1400, ScoreWin)
	favorite := Delta(1400, 1200, ScoreWin)
	if underdog <= favorite {
		t.Errorf("underdog delta %d should exceed favorite delta %d", underdog, favorite)
	}
}

func TestApplyResultDecisive(t *testing.T) {
	white := &models.RatingRecord{UserID: 1, Rating: 1500, PeakRating: 1500}
	black := &models.RatingRecord{UserID: 2, Rating: 1500, PeakRating: 1500}
	winner := white.UserID
	now := time.Now()

	ApplyResult(white, black, &winner, now)

	if white.Rating != 1516 || black.Rating != 1484 {
		t.Errorf("ratings = %d/%d, want 1516/1484", white.Rating, black.Rating)
	}
	if white.Wins != 1 || black.Losses != 1 {
		t.Errorf("tally wrong: white.Wins=%d black.Losses=%d", white.Wins, black.Losses)
	}
	if white.GamesPlayed != 1 || black.GamesPlayed != 1 {
		t.Errorf("games played not incremented")
	}
	if white.PeakRating != 1516 || !white.PeakDate.Equal(now) {
		t.Errorf("peak not updated: %d at %v", white.PeakRating, white.PeakDate)
	}
	if black.PeakRating != 1500 {
		t.Errorf("loser peak should not move, got %d", black.PeakRating)
	}
}

func TestApplyResultDraw(t *testing.T) {
	white := &models.RatingRecord{UserID: 1, Rating: 1400, PeakRating: 1400}
	black := &models.RatingRecord{UserID: 2, Rating: 1600, PeakRating: 1600}

	ApplyResult(white, black, nil, time.Now())

	// 引き分けでは格下が得をし、格上が損をする
	if white.Rating <= 1400 {
		t.Errorf("lower-rated player should gain on draw, got %d", white.Rating)
	}
	if black.Rating >= 1600 {
		t.Errorf("higher-rated player should lose on draw, got %d", black.Rating)
	}
	if white.Draws != 1 || black.Draws != 1 {
		t.Errorf("draw tally wrong")
	}
}
