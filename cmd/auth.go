package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/beatsync/internal/auth"
	"github.com/desertthunder/beatsync/internal/server"
	"github.com/desertthunder/beatsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthURL prints the manual authorization URL.
func (r *Runner) AuthURL(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	manager, _, _, err := r.buildAuth()
	if err != nil {
		return err
	}

	r.writePlainln("Visit the URL below, authorize the application, then run:")
	r.writePlainln("  beatsync auth exchange <code>")
	r.writePlainln("")
	return r.writePlainln("%s", manager.AuthURL())
}

// AuthExchange trades an authorization code for a persisted token pair.
func (r *Runner) AuthExchange(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	code := cmd.StringArg("code")
	if code == "" {
		return fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}

	manager, _, _, err := r.buildAuth()
	if err != nil {
		return err
	}

	if err := manager.Exchange(ctx, code); err != nil {
		return err
	}

	r.logger.Info("authorization code exchanged, tokens persisted")
	return r.writePlainln("✓ Authorized")
}

// AuthLogin runs the interactive flow: a local callback server catches the
// redirect so no code has to be copied by hand.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	listen := cmd.String("listen")
	r.config.Spotify.RedirectURI = fmt.Sprintf("http://%s/callback", listen)

	manager, _, _, err := r.buildAuth()
	if err != nil {
		return err
	}

	state := shared.GenerateID()
	srv := server.NewCallbackServer(listen, state)
	serveErr := srv.Start()
	defer srv.Shutdown(context.Background())

	url := manager.AuthURLForState(state)
	if err := shared.OpenBrowser(url); err != nil {
		r.logger.Warn("failed to open browser", "error", err)
	}
	r.writePlainln("Waiting for authorization at %s", url)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("callback server failed: %w", err)
		}
		return errors.New("callback server stopped before authorization")
	case result := <-srv.Result():
		if err := result.Error(); err != nil {
			return err
		}
		if err := manager.Exchange(ctx, result.Code); err != nil {
			return err
		}
	}

	r.logger.Info("authorization complete, tokens persisted")
	return r.writePlainln("✓ Authorized")
}

// AuthStatus reports the current credential state, probing the API when a
// token pair is persisted.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	manager, client, store, err := r.buildAuth()
	if err != nil {
		return err
	}

	accessToken, err := store.Read(auth.ValueAccessToken)
	if err != nil {
		return err
	}
	refreshToken, err := store.Read(auth.ValueRefreshToken)
	if err != nil {
		return err
	}

	if accessToken == "" && refreshToken == "" {
		r.writePlainln("Authorization: ✗ Not authorized")
		return r.writePlainln("Run 'beatsync auth login' to authorize.")
	}

	if err := manager.Ensure(ctx); err != nil {
		if errors.Is(err, shared.ErrAuthorizationRequired) {
			r.writePlainln("Authorization: ✗ Tokens rejected, re-authorization required")
			return nil
		}
		return err
	}

	userID, err := client.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	r.writePlainln("Authorization: ✓ Authorized")
	return r.writePlainln("User: %s", userID)
}

// AuthLogout deletes the persisted token pair.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	manager, _, _, err := r.buildAuth()
	if err != nil {
		return err
	}

	if err := manager.ClearTokens(); err != nil {
		return err
	}

	r.logger.Info("persisted tokens deleted")
	return r.writePlainln("✓ Logged out")
}
