package checks

import (
	"context"
	"fmt"

	"github.com/distribution/webhdfs/client"
	"github.com/distribution/webhdfs/health"
)

// HomeDirectoryChecker resolves the home directory of the configured user,
// which authenticates against the service when no token is held.
func HomeDirectoryChecker(c *client.Client) health.Checker {
	return health.CheckFunc(func(ctx context.Context) error {
		resp, err := c.GetHomeDirectory(ctx)
		if err != nil {
			return err
		}
		_, err = client.DecodePath(resp)
		return err
	})
}

// PathChecker verifies that p exists, taking the service out of rotation if
// it does not.
func PathChecker(c *client.Client, p string) health.Checker {
	return health.CheckFunc(func(ctx context.Context) error {
		if _, err := c.Stat(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		return nil
	})
}
