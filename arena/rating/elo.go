// Package rating は標準的なELOレーティングの計算を行います。
package rating

import (
	"math"
	"time"

	"chessarena/models"
)

// KFactor は全プレイヤー共通のK係数です。
const KFactor = 32

// 対局結果のスコア
const (
	ScoreWin  = 1.0
	ScoreDraw = 0.5
	ScoreLoss = 0.0
)

// Expected は相手との期待勝率を返します。
func Expected(player, opponent int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(opponent-player)/400.0))
}

// Delta は一局の結果によるレーティング変動を返します。
// score は 1（勝ち）、0.5（引き分け）、0（負け）のいずれかです。
func Delta(player, opponent int, score float64) int {
	return int(math.Round(KFactor * (score - Expected(player, opponent))))
}

// ApplyResult は終局した一局の結果を両者のレコードに反映します。
// winner が nil の場合は引き分けとして扱います。呼び出し側が
// レート戦かどうか、および一局につき一度だけ適用することを保証します。
func ApplyResult(white, black *models.RatingRecord, winner *uint, finishedAt time.Time) {
	whiteScore := ScoreDraw
	blackScore := ScoreDraw
	switch {
	case winner == nil:
		white.Draws++
		black.Draws++
	case *winner == white.UserID:
		whiteScore, blackScore = ScoreWin, ScoreLoss
		white.Wins++
		black.Losses++
	default:
		whiteScore, blackScore = ScoreLoss, ScoreWin
		black.Wins++
		white.Losses++
	}

	whiteDelta := Delta(white.Rating, black.Rating, whiteScore)
	blackDelta := Delta(black.Rating, white.Rating, blackScore)

	white.Rating += whiteDelta
	black.Rating += blackDelta
	white.GamesPlayed++
	black.GamesPlayed++

	if white.Rating > white.PeakRating {
		white.PeakRating = white.Rating
		white.PeakDate = finishedAt
	}
	if black.Rating > black.PeakRating {
		black.PeakRating = black.Rating
		black.PeakDate = finishedAt
	}
}
