package models

import (
	"time"
)

// PoolKey はマッチングプールの分割キーです。タイムコントロールと
// レーティング種別の組み合わせごとに一つのFIFOキューを持ちます。
type PoolKey struct {
	TimeControl string
	RatingType  string
}

// MatchRequest はプール内で待機中のマッチングリクエストです。
// ユーザーは全プールを通して同時に一件しか持てません。
type MatchRequest struct {
	UserID      uint      `json:"userId"`
	TimeControl string    `json:"timeControl"`
	RatingType  string    `json:"ratingType"`
	Rated       bool      `json:"rated"`
	MinRating   int       `json:"minRating"`
	MaxRating   int       `json:"maxRating"`
	Center      int       `json:"center"` // ウィンドウ拡大の基準となる元のレーティング中心
	EnqueuedAt  time.Time `json:"enqueuedAt"`
}

// Key はこのリクエストが属するプールのキーを返します。
func (r *MatchRequest) Key() PoolKey {
	return PoolKey{TimeControl: r.TimeControl, RatingType: r.RatingType}
}

// CompatibleWith は二つのリクエストが対戦可能かどうかを判定します。
// 同一のタイムコントロール・レーティング種別・レート戦フラグであり、
// かつレーティングウィンドウが重なっている必要があります。
func (r *MatchRequest) CompatibleWith(o *MatchRequest) bool {
	if r.UserID == o.UserID {
		return false
	}
	if r.TimeControl != o.TimeControl || r.RatingType != o.RatingType || r.Rated != o.Rated {
		return false
	}
	return max(r.MinRating, o.MinRating) <= min(r.MaxRating, o.MaxRating)
}
