package brackets

import (
	"testing"

	"github.com/Dosada05/tournament-hub/models"
)

func baseRule33() models.GameRule {
	return models.GameRule{ID: "base", SetsToWin: 3, LegsToWin: 3, LegsPerSet: 5}
}

func TestEffectiveRulesWinnerBracket(t *testing.T) {
	tests := []struct {
		round string
		want  models.RuleSet
	}{
		{"Best64", models.RuleSet{SetsToWin: 2, LegsToWin: 3, LegsPerSet: 5}},
		{"round-of-32", models.RuleSet{SetsToWin: 2, LegsToWin: 3, LegsPerSet: 5}},
		{"Achtelfinale", models.RuleSet{SetsToWin: 3, LegsToWin: 3, LegsPerSet: 5}},
		{"Quarterfinal", models.RuleSet{SetsToWin: 3, LegsToWin: 3, LegsPerSet: 5}},
		{"Semifinal", models.RuleSet{SetsToWin: 3, LegsToWin: 4, LegsPerSet: 5}},
		{"Final", models.RuleSet{SetsToWin: 4, LegsToWin: 4, LegsPerSet: 5}},
		{"Grand Final", models.RuleSet{SetsToWin: 4, LegsToWin: 4, LegsPerSet: 5}},
		{"Round 7", models.RuleSet{SetsToWin: 3, LegsToWin: 3, LegsPerSet: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.round, func(t *testing.T) {
			got := EffectiveRules(models.BracketWinner, tt.round, baseRule33())
			if got != tt.want {
				t.Errorf("EffectiveRules(%q) = %+v, want %+v", tt.round, got, tt.want)
			}
		})
	}
}

func TestEffectiveRulesCaps(t *testing.T) {
	base := models.GameRule{SetsToWin: 5, LegsToWin: 6, LegsPerSet: 11}
	got := EffectiveRules(models.BracketWinner, "final", base)
	if got.SetsToWin != 5 || got.LegsToWin != 6 {
		t.Errorf("final at caps = %+v, want sets 5 legs 6", got)
	}

	above := models.GameRule{SetsToWin: 7, LegsToWin: 8}
	got = EffectiveRules(models.BracketWinner, "semifinal", above)
	if got.SetsToWin != 7 || got.LegsToWin != 8 {
		t.Errorf("rule above cap must stay unchanged, got %+v", got)
	}

	single := models.GameRule{SetsToWin: 1, LegsToWin: 2}
	got = EffectiveRules(models.BracketWinner, "best64", single)
	if got.SetsToWin != 1 {
		t.Errorf("relaxing one set must not drop below one, got %+v", got)
	}
}

func TestEffectiveRulesLoserBracket(t *testing.T) {
	base := baseRule33()
	if got := EffectiveRules(models.BracketLoser, "Loser Round 2", base); got.SetsToWin != 2 || got.LegsToWin != 3 {
		t.Errorf("loser round = %+v, want one set less", got)
	}
	if got := EffectiveRules(models.BracketLoser, "Final", base); got != base.Rules() {
		t.Errorf("loser final = %+v, want base %+v", got, base.Rules())
	}
	if got := EffectiveRules(models.BracketLoser, "semifinal", base); got.SetsToWin != 2 {
		t.Errorf("loser semifinal = %+v, want 2 sets", got)
	}
	for _, label := range []string{"LB R3", "loser-round-4"} {
		if got := EffectiveRules(models.BracketLoser, label, base); got.SetsToWin != 2 {
			t.Errorf("numbered loser round %q = %+v, want one set less", label, got)
		}
	}
	for _, label := range []string{"Repechage", "Rest", "round two", "r3b"} {
		if got := EffectiveRules(models.BracketLoser, label, base); got != base.Rules() {
			t.Errorf("unknown loser round %q = %+v, want base %+v", label, got, base.Rules())
		}
	}
}

func TestEffectiveRulesOverrides(t *testing.T) {
	base := baseRule33()
	base.RoundOverrides = map[string]models.RuleSet{
		"Halbfinale": {SetsToWin: 1, LegsToWin: 5, LegsPerSet: 9},
		"final":      {SetsToWin: 2, LegsToWin: 2, LegsPerSet: 3},
	}
	if got := EffectiveRules(models.BracketWinner, "Halbfinale", base); got.LegsToWin != 5 {
		t.Errorf("label override ignored: %+v", got)
	}
	if got := EffectiveRules(models.BracketWinner, "Finale", base); got.SetsToWin != 2 || got.LegsToWin != 2 {
		t.Errorf("canonical override ignored: %+v", got)
	}
}

func TestEffectiveRulesIsPure(t *testing.T) {
	base := baseRule33()
	first := EffectiveRules(models.BracketWinner, "semifinal", base)
	for i := 0; i < 10; i++ {
		if got := EffectiveRules(models.BracketWinner, "semifinal", base); got != first {
			t.Fatalf("run %d: %+v != %+v", i, got, first)
		}
	}
	if base.LegsToWin != 3 {
		t.Fatalf("base rule was mutated: %+v", base)
	}
}

func TestRuleForMatch(t *testing.T) {
	classGold := 2
	winner := models.BracketWinner
	semi := "Semifinal"
	tournament := &models.Tournament{
		ID: "T1",
		GameRules: []models.GameRule{
			models.DefaultGameRule(),
			{ID: "gold", ClassID: &classGold, SetsToWin: 2, LegsToWin: 3},
		},
	}

	group := &models.Match{ID: "1", ClassID: &classGold}
	if got := RuleForMatch(tournament, group); got.ID != "gold" || got.SetsToWin != 2 {
		t.Errorf("group match rule = %+v, want class rule", got)
	}

	knockout := &models.Match{ID: "2", ClassID: &classGold, Bracket: &winner, Round: &semi}
	got := RuleForMatch(tournament, knockout)
	if got.SetsToWin != 2 || got.LegsToWin != 4 {
		t.Errorf("knockout rule = %+v, want class rule escalated to legs 4", got)
	}

	other := &models.Match{ID: "3"}
	if got := RuleForMatch(tournament, other); got.ID != models.DefaultGameRuleID {
		t.Errorf("classless match rule = %+v, want default", got)
	}

	tournament.GameRules = append(tournament.GameRules, models.GameRule{
		ID: models.RoundRuleID("T1", winner, semi), SetsToWin: 1, LegsToWin: 7,
	})
	if got := RuleForMatch(tournament, knockout); got.SetsToWin != 1 || got.LegsToWin != 7 {
		t.Errorf("explicit round rule = %+v, want it unchanged", got)
	}
}

func TestRuleForMatchWithoutRules(t *testing.T) {
	got := RuleForMatch(&models.Tournament{ID: "empty"}, &models.Match{ID: "1"})
	if got.SetsToWin != 3 || got.LegsToWin != 3 {
		t.Errorf("built-in default = %+v", got)
	}
}

func TestNormalizeNumberedLoserRounds(t *testing.T) {
	tests := []struct {
		label string
		want  Round
		known bool
	}{
		{"Loser Round 2", "loser-round-2", true},
		{"LB R3", "loser-round-3", true},
		{"lb_final", LoserFinal, true},
		{"Repechage", "", false},
		{"round two", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeRound(models.BracketLoser, tt.label)
		if got != tt.want || ok != tt.known {
			t.Errorf("NormalizeRound(%q) = %q, %v; want %q, %v", tt.label, got, ok, tt.want, tt.known)
		}
	}
}
