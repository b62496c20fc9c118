package game

import (
	"sync"
	"time"

	"chessarena/models"
)

// MoveRecord は適用済みの一手です。
type MoveRecord struct {
	UCI string    `json:"uci"`
	FEN string    `json:"fen"`
	By  uint      `json:"by"`
	At  time.Time `json:"at"`
}

// Snapshot はブロードキャスト用のセッション状態のコピーです。
type Snapshot struct {
	GameID    string       `json:"gameId"`
	WhiteID   uint         `json:"whiteId"`
	BlackID   uint         `json:"blackId"`
	Status    string       `json:"status"`
	FEN       string       `json:"fen"`
	Turn      string       `json:"turn"`
	LastMove  *MoveRecord  `json:"lastMove,omitempty"`
	Check     bool         `json:"check"`
	Checkmate bool         `json:"checkmate"`
	Stalemate bool         `json:"stalemate"`
	Draw      bool         `json:"draw"`
	Winner    string       `json:"winner,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	MoveCount int          `json:"moveCount"`
}

// Session は一局分の状態機械です。状態遷移は
// PENDING → ACTIVE → COMPLETED / DRAW の一方向のみで、
// 全ての更新はセッションのミューテックスの中で行われます。
type Session struct {
	ID          string
	WhiteID     uint
	BlackID     uint
	Rated       bool
	RatingType  string
	TimeControl models.TimeControl
	TCString    string

	mu          sync.Mutex
	engine      RulesEngine
	status      string
	fen         string
	turn        string
	moves       []MoveRecord
	lastMove    *MoveRecord
	check       bool
	checkmate   bool
	stalemate   bool
	draw        bool
	winner      string // 終局時の勝者の色。引き分けは空
	reason      string
	drawOfferBy uint // 引き分け提案中のユーザーID。0は提案なし
}

// NewSession は初期局面のセッションをPENDING状態で生成します。
func NewSession(id string, whiteID, blackID uint, tcString string, tc models.TimeControl, rated bool, ratingType string) *Session {
	engine := NewRulesEngine()
	return &Session{
		ID:          id,
		WhiteID:     whiteID,
		BlackID:     blackID,
		Rated:       rated,
		RatingType:  ratingType,
		TimeControl: tc,
		TCString:    tcString,
		engine:      engine,
		status:      models.GameStatusPending,
		fen:         engine.FEN(),
		turn:        engine.Turn(),
	}
}

// Activate は両プレイヤーが確定したセッションを開始します。
func (s *Session) Activate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == models.GameStatusPending {
		s.status = models.GameStatusActive
	}
}

// ApplyMove は着手を検証して適用します。terminal が true の場合、
// この一手でゲームが終局しています。エラー時は盤面・手番・状態の
// いずれも変化しません。
func (s *Session) ApplyMove(userID uint, from, to, promotion string) (result *MoveResult, terminal bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.GameStatusActive {
		return nil, false, ErrGameNotActive
	}
	if userID != s.turnPlayerLocked() {
		return nil, false, ErrNotYourTurn
	}

	result, err = s.engine.ApplyMove(from, to, promotion)
	if err != nil {
		return nil, false, err
	}

	record := MoveRecord{UCI: result.UCI, FEN: result.FEN, By: userID, At: time.Now()}
	s.moves = append(s.moves, record)
	s.lastMove = &record
	s.fen = result.FEN
	s.turn = result.Turn
	s.check = result.Check
	s.checkmate = result.Checkmate
	s.stalemate = result.Stalemate
	s.draw = result.Draw
	s.drawOfferBy = 0 // 着手で引き分け提案は流れる

	switch {
	case result.Checkmate:
		// チェックメイトを掛けたのは指した側
		s.status = models.GameStatusCompleted
		s.winner = s.colorOfLocked(userID)
		s.reason = models.ReasonCheckmate
		terminal = true
	case result.Stalemate:
		s.status = models.GameStatusDraw
		s.reason = models.ReasonStalemate
		terminal = true
	case result.Draw:
		s.status = models.GameStatusDraw
		s.reason = models.ReasonDrawRule
		terminal = true
	}
	return result, terminal, nil
}

// Resign は投了です。投了した側の相手が勝者になります。
func (s *Session) Resign(userID uint) (winner string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.GameStatusActive {
		return "", ErrGameNotActive
	}
	color := s.colorOfLocked(userID)
	if color == "" {
		return "", ErrNotInGame
	}
	s.status = models.GameStatusCompleted
	s.winner = opponentColor(color)
	s.reason = models.ReasonResignation
	return s.winner, nil
}

// OfferDraw は引き分けを提案します。
func (s *Session) OfferDraw(userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.GameStatusActive {
		return ErrGameNotActive
	}
	if s.colorOfLocked(userID) == "" {
		return ErrNotInGame
	}
	s.drawOfferBy = userID
	return nil
}

// AcceptDraw は相手からの引き分け提案を受諾し、合意の引き分けで終局します。
func (s *Session) AcceptDraw(userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.GameStatusActive {
		return ErrGameNotActive
	}
	if s.colorOfLocked(userID) == "" {
		return ErrNotInGame
	}
	if s.drawOfferBy == 0 || s.drawOfferBy == userID {
		return ErrNoDrawOffer
	}
	s.status = models.GameStatusDraw
	s.reason = models.ReasonAgreement
	s.drawOfferBy = 0
	return nil
}

// ForceTimeout は時間切れによる強制終局です。時計レジストリからの
// タイムアウト通知で呼ばれます。すでに終局している場合は何もしません。
func (s *Session) ForceTimeout(loserColor string) (winner string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.GameStatusActive {
		return "", false
	}
	s.status = models.GameStatusCompleted
	s.winner = opponentColor(loserColor)
	s.reason = models.ReasonTimeout
	return s.winner, true
}

// Status は現在の状態を返します。
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Turn は現在の手番の色を返します。
func (s *Session) Turn() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// Terminal は終局済みかどうかを返します。
func (s *Session) Terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == models.GameStatusCompleted || s.status == models.GameStatusDraw
}

// Result は終局時の勝者の色と理由を返します。
func (s *Session) Result() (winner, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winner, s.reason
}

// WinnerUserID は勝者のユーザーIDを返します。引き分けはnilです。
func (s *Session) WinnerUserID() *uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.winner {
	case "white":
		id := s.WhiteID
		return &id
	case "black":
		id := s.BlackID
		return &id
	}
	return nil
}

// ColorOf はユーザーの色を返します。参加していなければ空文字です。
func (s *Session) ColorOf(userID uint) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colorOfLocked(userID)
}

// MovesUCI は棋譜をスペース区切りのUCI形式で返します。
func (s *Session) MovesUCI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := ""
	for i, m := range s.moves {
		if i > 0 {
			out += " "
		}
		out += m.UCI
	}
	return out
}

// Snapshot は現在の状態のコピーを返します。
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *MoveRecord
	if s.lastMove != nil {
		copied := *s.lastMove
		last = &copied
	}
	return Snapshot{
		GameID:    s.ID,
		WhiteID:   s.WhiteID,
		BlackID:   s.BlackID,
		Status:    s.status,
		FEN:       s.fen,
		Turn:      s.turn,
		LastMove:  last,
		Check:     s.check,
		Checkmate: s.checkmate,
		Stalemate: s.stalemate,
		Draw:      s.draw,
		Winner:    s.winner,
		Reason:    s.reason,
		MoveCount: len(s.moves),
	}
}

func (s *Session) turnPlayerLocked() uint {
	if s.turn == "white" {
		return s.WhiteID
	}
	return s.BlackID
}

func (s *Session) colorOfLocked(userID uint) string {
	switch userID {
	case s.WhiteID:
		return "white"
	case s.BlackID:
		return "black"
	}
	return ""
}

func opponentColor(color string) string {
	if color == "white" {
		return "black"
	}
	return "white"
}
