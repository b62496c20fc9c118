// Package clock は対局ごとのカウントダウン時計を管理します。
package clock

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"chessarena/models"
)

// 時計が刻む手番の色
const (
	White = "white"
	Black = "black"
)

// TickFunc は1秒ごとの残り時間通知です。
type TickFunc func(gameID string, whiteMs, blackMs int64, active string)

// TimeoutFunc は残り時間が0になった時の通知です。loser は時間切れした色。
type TimeoutFunc func(gameID string, loser string)

// Clock は一つのアクティブな対局の時計状態です。
type Clock struct {
	gameID      string
	whiteMs     int64
	blackMs     int64
	incrementMs int64
	active      string
	paused      bool
	ticker      *time.Ticker
	done        chan struct{}
}

// Registry はゲームIDごとの時計を保持し、ティックを駆動します。
// 時計の生成・破棄は必ずRegistryの操作を通して行われ、終了経路は
// teardownLocked の一箇所に集約されます（タイマーハンドルのリーク防止）。
type Registry struct {
	mu       sync.Mutex
	clocks   map[string]*Clock
	interval time.Duration

	onTick    TickFunc
	onTimeout TimeoutFunc
	logger    *zap.Logger
}

// NewRegistry はレジストリを生成します。interval は通常1秒、テストでは
// 短縮できます。
func NewRegistry(interval time.Duration, onTick TickFunc, onTimeout TimeoutFunc, logger *zap.Logger) *Registry {
	return &Registry{
		clocks:    make(map[string]*Clock),
		interval:  interval,
		onTick:    onTick,
		onTimeout: onTimeout,
		logger:    logger,
	}
}

// Start は対局の時計を生成して刻み始めます。最初の手番は白です。
func (r *Registry) Start(gameID string, tc models.TimeControl) {
	r.mu.Lock()
	if _, exists := r.clocks[gameID]; exists {
		r.mu.Unlock()
		r.logger.Warn("Clock already started", zap.String("gameID", gameID))
		return
	}
	c := &Clock{
		gameID:      gameID,
		whiteMs:     tc.BaseMs,
		blackMs:     tc.BaseMs,
		incrementMs: tc.IncrementMs,
		active:      White,
		ticker:      time.NewTicker(r.interval),
		done:        make(chan struct{}),
	}
	r.clocks[gameID] = c
	r.mu.Unlock()

	go r.run(c)
}

func (r *Registry) run(c *Clock) {
	for {
		select {
		case <-c.done:
			return
		case <-c.ticker.C:
			r.tick(c)
		}
	}
}

// tick はアクティブな色の残り時間を減算し、0になったらタイムアウトとして
// 時計を破棄します。タイムアウト後にティックが届くことはありません。
func (r *Registry) tick(c *Clock) {
	r.mu.Lock()
	if _, exists := r.clocks[c.gameID]; !exists {
		r.mu.Unlock()
		return
	}
	if c.paused {
		r.mu.Unlock()
		return
	}

	dec := r.interval.Milliseconds()
	remaining := &c.whiteMs
	if c.active == Black {
		remaining = &c.blackMs
	}
	*remaining -= dec
	if *remaining < 0 {
		*remaining = 0 // 残り時間は負にならない
	}

	whiteMs, blackMs, active := c.whiteMs, c.blackMs, c.active
	timedOut := *remaining == 0
	if timedOut {
		r.teardownLocked(c)
	}
	r.mu.Unlock()

	if timedOut {
		r.onTimeout(c.gameID, active)
		return
	}
	r.onTick(c.gameID, whiteMs, blackMs, active)
}

// Switch は着手成立時に呼ばれます。手番側の残り時間にフィッシャー加算を
// 足してから、アクティブな色を切り替えます。
func (r *Registry) Switch(gameID string) (whiteMs, blackMs int64, active string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, exists := r.clocks[gameID]
	if !exists {
		return 0, 0, "", false
	}
	if c.active == White {
		c.whiteMs += c.incrementMs
		c.active = Black
	} else {
		c.blackMs += c.incrementMs
		c.active = White
	}
	return c.whiteMs, c.blackMs, c.active, true
}

// Pause は時計を一時停止します（切断時の再接続猶予などに使用）。
func (r *Registry) Pause(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, exists := r.clocks[gameID]; exists {
		c.paused = true
	}
}

// Resume は一時停止中の時計を再開します。
func (r *Registry) Resume(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, exists := r.clocks[gameID]; exists {
		c.paused = false
	}
}

// Stop は対局終了時に時計を破棄します。
func (r *Registry) Stop(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, exists := r.clocks[gameID]; exists {
		r.teardownLocked(c)
	}
}

// Remaining は現在の残り時間を返します。
func (r *Registry) Remaining(gameID string) (whiteMs, blackMs int64, active string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, exists := r.clocks[gameID]
	if !exists {
		return 0, 0, "", false
	}
	return c.whiteMs, c.blackMs, c.active, true
}

// Count は稼働中の時計の数を返します。
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clocks)
}

// teardownLocked は唯一の破棄経路です。ティッカーの停止、ゴルーチンの
// 終了、レジストリからの削除をまとめて行います。r.mu 保持中に呼ぶこと。
func (r *Registry) teardownLocked(c *Clock) {
	c.ticker.Stop()
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	delete(r.clocks, c.gameID)
}
