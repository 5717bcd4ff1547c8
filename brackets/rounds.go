package brackets

import (
	"regexp"
	"strings"

	"github.com/Dosada05/tournament-hub/models"
)

// Round is the canonical name of a knockout stage.
type Round string

const (
	RoundOf64    Round = "round-of-64"
	RoundOf32    Round = "round-of-32"
	RoundOf16    Round = "round-of-16"
	Quarterfinal Round = "quarterfinal"
	Semifinal    Round = "semifinal"
	Final        Round = "final"
	GrandFinal   Round = "grand-final"
	LoserFinal   Round = "loser-final"
)

// Планировщики присылают раунды в разных написаниях (включая немецкие).
var roundAliases = map[string]Round{
	"roundof64":     RoundOf64,
	"best64":        RoundOf64,
	"last64":        RoundOf64,
	"r64":           RoundOf64,
	"roundof32":     RoundOf32,
	"best32":        RoundOf32,
	"last32":        RoundOf32,
	"r32":           RoundOf32,
	"roundof16":     RoundOf16,
	"best16":        RoundOf16,
	"last16":        RoundOf16,
	"r16":           RoundOf16,
	"achtelfinale":  RoundOf16,
	"quarterfinal":  Quarterfinal,
	"quarterfinals": Quarterfinal,
	"qf":            Quarterfinal,
	"viertelfinale": Quarterfinal,
	"semifinal":     Semifinal,
	"semifinals":    Semifinal,
	"sf":            Semifinal,
	"halbfinale":    Semifinal,
	"final":         Final,
	"finale":        Final,
	"f":             Final,
	"grandfinal":    GrandFinal,
	"grandfinale":   GrandFinal,
	"loserfinal":    LoserFinal,
	"loserfinale":   LoserFinal,
	"lbfinal":       LoserFinal,
}

// loserRoundNumber matches numbered loser-bracket rounds ("round3", "r3").
var loserRoundNumber = regexp.MustCompile(`^(?:round|r)([0-9]+)$`)

func roundKey(s string) string {
	r := strings.NewReplacer("-", "", "_", "", " ", "", ".", "")
	return r.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// NormalizeRound maps a planner round label to its canonical name.
// In the loser bracket a plain "final" is the loser final.
func NormalizeRound(bracket models.BracketType, label string) (Round, bool) {
	key := roundKey(label)
	if bracket == models.BracketLoser {
		key = strings.TrimPrefix(key, "loser")
		key = strings.TrimPrefix(key, "lb")
		if key == "final" || key == "finale" {
			return LoserFinal, true
		}
		if round, ok := roundAliases["loser"+key]; ok {
			return round, true
		}
		if m := loserRoundNumber.FindStringSubmatch(key); m != nil {
			return Round("loser-round-" + m[1]), true
		}
	}
	round, ok := roundAliases[key]
	return round, ok
}
