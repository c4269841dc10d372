package provisioning

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// PostAction is a step that runs after the tenant database is provisioned and routable.
type PostAction struct {
	Name string
	Run  func(ctx context.Context) error
}

// RunPostActions runs the actions in parallel and returns the first error. The context given to the actions is
// cancelled as soon as one of them fails.
func RunPostActions(ctx context.Context, actions ...PostAction) error {
	g, gCtx := errgroup.WithContext(ctx)
	for _, action := range actions {
		g.Go(func() error {
			if err := action.Run(gCtx); err != nil {
				return fmt.Errorf("running post action %s: %w", action.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
