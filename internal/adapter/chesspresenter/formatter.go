package chesspresenter

import (
	"fmt"

	"github.com/park285/cheese-chess-server/internal/chess"
	"github.com/park285/cheese-chess-server/internal/msgcat"
)

// Formatter renders narration lines from the message catalog, falling back
// to built-in English when a template is missing.
type Formatter struct {
	msgs *msgcat.Catalog
}

func NewFormatter(msgs *msgcat.Catalog) *Formatter {
	return &Formatter{msgs: msgs}
}

func (f *Formatter) Move(move chess.AppliedMove) string {
	data := map[string]string{"Side": move.Side.String(), "From": string(move.From), "To": string(move.To)}
	return f.text("game.move", data, fmt.Sprintf("%s moved %s -> %s", move.Side, move.From, move.To))
}

func (f *Formatter) Check(by, against chess.Side) string {
	data := map[string]string{"By": by.String(), "Against": against.String()}
	return f.text("game.check", data, fmt.Sprintf("%s side set CHECK to %s.", by, against))
}

func (f *Formatter) Checkmate(winner chess.Side) string {
	data := map[string]string{"Winner": winner.String()}
	return f.text("game.checkmate", data, fmt.Sprintf("%s set CHECK MATE! Match has ended.", winner))
}

func (f *Formatter) Draw(reason string) string {
	return f.text("game.draw", map[string]string{"Reason": reason}, fmt.Sprintf("Match ended in a draw (%s).", reason))
}

func (f *Formatter) Forfeit(loser string) string {
	return f.text("game.forfeit", map[string]string{"Loser": loser}, fmt.Sprintf("%s left the match.", loser))
}

func (f *Formatter) Direct(from, text string) string {
	return f.text("direct.line", map[string]string{"From": from, "Text": text}, from+": "+text)
}

func (f *Formatter) text(key string, data map[string]string, fallback string) string {
	if f == nil {
		return fallback
	}
	return f.msgs.Text(key, data, fallback)
}
