// Package game は一局分の状態機械とルールエンジンの境界を持ちます。
package game

import (
	"errors"

	"github.com/notnil/chess"
)

// ルール・手番に関するエラー
var (
	ErrIllegalMove   = errors.New("illegal move")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrGameNotActive = errors.New("game is not active")
	ErrNotInGame     = errors.New("user is not a player of this game")
	ErrNoDrawOffer   = errors.New("no draw offer to accept")
)

// MoveResult はルールエンジンが返す着手結果です。
type MoveResult struct {
	UCI       string `json:"uci"`
	FEN       string `json:"fen"`
	Turn      string `json:"turn"` // 次の手番の色
	Check     bool   `json:"check"`
	Checkmate bool   `json:"checkmate"`
	Stalemate bool   `json:"stalemate"`
	Draw      bool   `json:"draw"`
}

// RulesEngine はチェスのルール判定の境界です。盤面の合法性判定と
// 着手適用のみを担い、手番の所有者やゲームの進行状態は関知しません。
type RulesEngine interface {
	// LoadPosition は任意のFEN局面から再開します。
	LoadPosition(fen string) error
	// ApplyMove は合法手なら局面を進め、結果を返します。
	// 非合法手の場合は局面を変えずに ErrIllegalMove を返します。
	ApplyMove(from, to, promotion string) (*MoveResult, error)
	// FEN は現在の局面を返します。
	FEN() string
	// Turn は現在の手番の色を返します。
	Turn() string
}

// notnilEngine は github.com/notnil/chess によるRulesEngine実装です。
type notnilEngine struct {
	game *chess.Game
}

// NewRulesEngine は初期局面のルールエンジンを生成します。
func NewRulesEngine() RulesEngine {
	return &notnilEngine{game: chess.NewGame()}
}

func (e *notnilEngine) LoadPosition(fen string) error {
	opt, err := chess.FEN(fen)
	if err != nil {
		return err
	}
	e.game = chess.NewGame(opt)
	return nil
}

func (e *notnilEngine) ApplyMove(from, to, promotion string) (*MoveResult, error) {
	uci := from + to + promotion
	move, err := chess.UCINotation{}.Decode(e.game.Position(), uci)
	if err != nil {
		return nil, ErrIllegalMove
	}
	if err := e.game.Move(move); err != nil {
		return nil, ErrIllegalMove
	}

	pos := e.game.Position()
	result := &MoveResult{
		UCI:   uci,
		FEN:   pos.String(),
		Turn:  colorName(pos.Turn()),
		Check: move.HasTag(chess.Check),
	}
	switch e.game.Method() {
	case chess.Checkmate:
		result.Checkmate = true
	case chess.Stalemate:
		result.Stalemate = true
	}
	if e.game.Outcome() == chess.Draw {
		result.Draw = true
	}
	return result, nil
}

func (e *notnilEngine) FEN() string {
	return e.game.Position().String()
}

func (e *notnilEngine) Turn() string {
	return colorName(e.game.Position().Turn())
}

func colorName(c chess.Color) string {
	if c == chess.White {
		return "white"
	}
	return "black"
}
