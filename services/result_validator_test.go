package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Dosada05/tournament-hub/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func statusPtr(s models.MatchStatus) *models.MatchStatus { return &s }

func TestResultValidator(t *testing.T) {
	rule := models.DefaultGameRule()

	tests := []struct {
		name    string
		input   MatchResultInput
		rule    *models.GameRule
		wantErr bool
	}{
		{
			name:  "set winner without rule",
			input: MatchResultInput{Player1Sets: intPtr(3), Player2Sets: intPtr(1), Player1Legs: intPtr(0), Player2Legs: intPtr(0)},
		},
		{
			name:  "leg winner only",
			input: MatchResultInput{Player1Legs: intPtr(2), Player2Legs: intPtr(3)},
		},
		{
			name:    "all zero and not finished",
			input:   MatchResultInput{Player1Sets: intPtr(0), Player2Sets: intPtr(0)},
			wantErr: true,
		},
		{
			name:    "missing everything",
			input:   MatchResultInput{},
			wantErr: true,
		},
		{
			name:  "tie declared finished",
			input: MatchResultInput{Player1Sets: intPtr(1), Player2Sets: intPtr(1), Status: statusPtr(models.MatchStatusFinished)},
		},
		{
			name:    "tie declared in progress",
			input:   MatchResultInput{Status: statusPtr(models.MatchStatusInProgress)},
			wantErr: true,
		},
		{
			name:    "negative legs",
			input:   MatchResultInput{Player1Sets: intPtr(3), Player2Legs: intPtr(-1)},
			wantErr: true,
		},
		{
			name:    "sets over cap",
			input:   MatchResultInput{Player1Sets: intPtr(4), Player2Sets: intPtr(2)},
			rule:    &rule,
			wantErr: true,
		},
		{
			name:  "sets at cap",
			input: MatchResultInput{Player1Sets: intPtr(3), Player2Sets: intPtr(2)},
			rule:  &rule,
		},
		{
			name:  "legs over cap only warn",
			input: MatchResultInput{Player1Sets: intPtr(3), Player1Legs: intPtr(40), Player2Legs: intPtr(1)},
			rule:  &rule,
		},
	}

	v := NewResultValidator(discardLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(context.Background(), tt.input, tt.rule)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidResult) {
					t.Fatalf("err = %v, want ErrInvalidResult", err)
				}
				var verr *ValidationError
				if !errors.As(err, &verr) || verr.Reason == "" {
					t.Errorf("missing reason in %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
