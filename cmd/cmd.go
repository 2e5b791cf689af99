// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// setupCommand initializes the config file, data directory, and history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, data directory, and history database",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// runCommand starts the long-running sync daemon.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the sync daemon on the configured schedule",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Run,
	}
}

// syncCommand performs a single synchronous sync pass.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "sync",
		Usage:  "Sync all configured charts once and exit",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Sync,
	}
}

// authCommand handles Spotify authorization operations.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:   "url",
				Usage:  "Print the manual authorization URL",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthURL,
			},
			{
				Name:  "exchange",
				Usage: "Exchange an authorization code for tokens",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "code"},
				},
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthExchange,
			},
			{
				Name:  "login",
				Usage: "Authorize interactively through a local callback server",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "listen",
						Usage: "Local address for the OAuth callback server",
						Value: "127.0.0.1:8917",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Check the current authorization state",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Delete the persisted token pair",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogout,
			},
		},
	}
}

// cacheCommand inspects and resets the track match cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the track match cache",
		Commands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache size and location",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Delete all cached track matches",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CacheClear,
			},
		},
	}
}

// historyCommand prints recent sync runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent sync runs",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 10,
			},
		},
		Action: r.History,
	}
}

// tuiCommand launches the interactive history browser.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Browse sync history interactively",
		Flags:   []cli.Flag{configFlag()},
		Action:  r.TUI,
	}
}
