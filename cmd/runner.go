package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/clouder-dj/clouder/internal/models"
	"github.com/clouder-dj/clouder/internal/repositories"
	"github.com/clouder-dj/clouder/internal/services"
	"github.com/clouder-dj/clouder/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config *shared.Config
	logger *log.Logger
	output io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *shared.Config
	Logger *log.Logger
	Output io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config: opts.Config,
		logger: opts.Logger,
		output: opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, serveCommand, syncCommand, playlistsCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig resolves the effective configuration for a command, preferring
// the --config flag's file over the runner's startup config.
func (r *Runner) loadConfig(cmd *cli.Command) *shared.Config {
	configPath := cmd.String("config")
	if configPath == "" {
		return r.config
	}

	if _, err := os.Stat(configPath); err != nil {
		return r.config
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		r.logger.Warn("failed to load config, using startup config", "path", configPath, "error", err)
		return r.config
	}
	return config
}

// stores bundles the database handle and every repository a command needs.
type stores struct {
	db          *sql.DB
	users       *repositories.UserRepository
	credentials *repositories.CredentialRepository
	tracks      *repositories.TrackRepository
	playlists   *repositories.PlaylistRepository
	jobs        *repositories.SyncJobRepository
}

func (s *stores) Close() error {
	return s.db.Close()
}

// openStores opens the configured database and wires up the repositories.
// The credential repository requires an encryption key; commands that touch
// tokens fail here rather than after a partial write.
func (r *Runner) openStores(config *shared.Config) (*stores, error) {
	if config.Security.EncryptionKey == "" {
		return nil, fmt.Errorf("%w: security.encryption_key must be set in config.toml", shared.ErrMissingConfig)
	}

	enc, err := shared.NewEncryptor(config.Security.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	return &stores{
		db:          db,
		users:       repositories.NewUserRepository(db),
		credentials: repositories.NewCredentialRepository(db, enc),
		tracks:      repositories.NewTrackRepository(db),
		playlists:   repositories.NewPlaylistRepository(db),
		jobs:        repositories.NewSyncJobRepository(db),
	}, nil
}

// currentUser returns the single local account, or an error directing the
// user to authorize first.
func (r *Runner) currentUser(s *stores) (*models.User, error) {
	users, err := s.users.List(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%w: no account found, run 'clouder auth login' first", shared.ErrCredentialNotFound)
	}
	return users[0], nil
}

// spotifyClient builds an authenticated client for the local account.
func (r *Runner) spotifyClient(config *shared.Config, s *stores) (*services.SpotifyClient, error) {
	user, err := r.currentUser(s)
	if err != nil {
		return nil, err
	}

	cred, err := s.credentials.GetByUserID(user.ID())
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, fmt.Errorf("%w: run 'clouder auth login' first", shared.ErrCredentialNotFound)
	}

	return services.NewSpotifyClient(config.Credentials.Spotify, config.Retry, s.credentials, cred, user.SpotifyUserID(), r.logger)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
