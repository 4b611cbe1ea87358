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

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Initialize database and run migrations",
		Flags:  []cli.Flag{configFlag()},
		Action: r.SetupDatabase,
	}
}

// authCommand handles Spotify authorization
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Spotify account authorization",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authorize with Spotify using OAuth2",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show stored credential state",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the curation API server",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Serve,
	}
}

// syncCommand ingests a Beatport catalog window
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync Beatport releases into the local track cache",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:     "genre",
				Aliases:  []string{"g"},
				Usage:    "Beatport genre ID to sync",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "start",
				Usage: "Publish date window start (YYYY-MM-DD, default 7 days ago)",
			},
			&cli.StringFlag{
				Name:  "end",
				Usage: "Publish date window end (YYYY-MM-DD, default today)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent match workers",
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Match requests per second",
			},
		},
		Action: r.Sync,
	}
}

// playlistsCommand operates on curation playlists
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Curation playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List local curation playlists",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"},
				},
				Action: r.PlaylistsList,
			},
			{
				Name:  "create",
				Usage: "Create a local curation playlist",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Playlist name", Required: true},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Playlist description"},
				},
				Action: r.PlaylistsCreate,
			},
			{
				Name:  "build",
				Usage: "Create a Spotify playlist from a local playlist's tracks",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "id", Usage: "Local playlist ID", Required: true},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Remote playlist name (defaults to local name)"},
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Usage: "Remote playlist description"},
					&cli.BoolFlag{Name: "public", Usage: "Make the Spotify playlist public"},
				},
				Action: r.PlaylistsBuild,
			},
			{
				Name:  "import",
				Usage: "Import a Spotify playlist's items into a local playlist",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "id", Usage: "Local playlist ID", Required: true},
					&cli.StringFlag{Name: "spotify-id", Usage: "Spotify playlist ID to import from", Required: true},
				},
				Action: r.PlaylistsImport,
			},
			{
				Name:  "export",
				Usage: "Export a local playlist to CSV, Markdown, or plain text",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "id", Usage: "Local playlist ID", Required: true},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Export format: csv, md, or txt", Value: "csv"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output path (base filename or directory)"},
				},
				Action: r.PlaylistsExport,
			},
			{
				Name:  "delete",
				Usage: "Delete a local playlist and unfollow its Spotify playlist",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{Name: "id", Usage: "Local playlist ID", Required: true},
				},
				Action: r.PlaylistsDelete,
			},
		},
	}
}
