package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-hub/repositories"
)

// --- Общие хелперы ---

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func intPtr(v int) *int {
	return &v
}

// registryError translates registry failures into the service error taxonomy.
func registryError(err error, tournamentID, matchID string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return fmt.Errorf("%w: %s", ErrTournamentNotFound, tournamentID)
	case errors.Is(err, repositories.ErrMatchNotFound):
		return fmt.Errorf("%w: %s in tournament %s", ErrMatchNotFound, matchID, tournamentID)
	case errors.Is(err, repositories.ErrTournamentConflict):
		return fmt.Errorf("%w: %s", ErrTournamentConflict, tournamentID)
	default:
		return err
	}
}
