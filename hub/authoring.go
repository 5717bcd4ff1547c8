package hub

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-hub/models"
	"github.com/Dosada05/tournament-hub/services"
)

// AuthoringForwarder hands accepted results to the planner through its
// authoring channel. It is used when the planner has no HTTP endpoint.
type AuthoringForwarder struct {
	router *Router
}

func NewAuthoringForwarder(router *Router) *AuthoringForwarder {
	return &AuthoringForwarder{router: router}
}

func (f *AuthoringForwarder) Forward(ctx context.Context, item *models.PendingForward) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", services.ErrForwardingFailed, err)
	}
	n := f.router.Publish(ctx, AuthoringChannel(item.TournamentID), models.EventForwardResult, item)
	if n == 0 {
		return fmt.Errorf("%w: no authoring client connected to tournament %s", services.ErrForwardingFailed, item.TournamentID)
	}
	return nil
}
