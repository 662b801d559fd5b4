package commands

import (
	"context"
	"fmt"

	"github.com/chimelab/chime/internal/app"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the alarm service",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := app.New(app.Options{
				ConfigPath: cmd.String("config"),
				Version:    cmd.Root().Version,
			})
			if err != nil {
				return fmt.Errorf("failed to create app: %w", err)
			}

			if err := a.Initialize(ctx); err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- a.Start()
			}()

			select {
			case <-ctx.Done():
				return a.Shutdown(context.Background())
			case err := <-errCh:
				if err != nil {
					_ = a.Shutdown(context.Background())
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			}
		},
	}
}
