package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/noah-isme/worksmarter/internal/client"
	"github.com/noah-isme/worksmarter/internal/syncclient"
	"github.com/noah-isme/worksmarter/pkg/config"
	"github.com/noah-isme/worksmarter/pkg/logger"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v      *viper.Viper
	cfg    *config.Config
	logger *zap.Logger
	api    *client.Client
}

func newRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "classroom-sync",
		Short:         "Join a virtual classroom table, chat with your group and work through AI discussion prompts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.String("base-url", "", "server origin (SYNC_BASE_URL)")
	flags.String("classroom", "", "classroom id (SYNC_CLASSROOM_ID)")
	flags.String("assignment", "", "assignment id for prompts (SYNC_ASSIGNMENT_ID)")
	flags.String("token-file", "", "where the session is stored (SYNC_TOKEN_FILE)")
	flags.String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	for key, name := range map[string]string{
		"SYNC_BASE_URL":      "base-url",
		"SYNC_CLASSROOM_ID":  "classroom",
		"SYNC_ASSIGNMENT_ID": "assignment",
		"SYNC_TOKEN_FILE":    "token-file",
		"LOG_LEVEL":          "log-level",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}

	root.AddCommand(
		newLoginCommand(a),
		newWatchCommand(a),
		newSeatCommand(a),
		newSendCommand(a),
		newGenerateCommand(a),
		newGenerateAllCommand(a),
		newRespondCommand(a),
	)
	root.SetErr(os.Stderr)
	root.SetOut(os.Stdout)
	return root
}

func (a *app) init() error {
	cfg, err := config.LoadWith(a.v)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if os.Getenv("LOG_FORMAT") == "" {
		cfg.Log.Format = "console"
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	session, err := client.NewSession(client.FileTokenStore{Path: cfg.Sync.TokenFile})
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	session.OnUnauthorized = func() {
		fmt.Fprintln(os.Stderr, "Session expired. Run `classroom-sync login` again.")
	}

	a.cfg = cfg
	a.logger = logr
	a.api = client.New(client.Config{
		BaseURL: cfg.Sync.BaseURL,
		Timeout: cfg.Sync.RequestTimeout,
		Logger:  logr.Named("client"),
	}, session)
	return nil
}

// requireClassroom fails early when no classroom was configured.
func (a *app) requireClassroom() error {
	if a.cfg.Sync.ClassroomID == "" {
		return errors.New("no classroom: pass --classroom or set SYNC_CLASSROOM_ID")
	}
	return nil
}

// user returns the signed-in user, resolving it from the server if the
// stored session predates it.
func (a *app) user(ctx context.Context) (string, string, error) {
	if u := a.api.Session().User(); u != nil {
		return u.ID, u.FullName, nil
	}
	if a.api.Session().CurrentToken() == "" {
		return "", "", errors.New("not signed in: run `classroom-sync login` first")
	}
	u, err := a.api.Me(ctx)
	if err != nil {
		return "", "", err
	}
	return u.ID, u.FullName, nil
}

// sync builds a SyncClient for the configured classroom and loads the
// current seating.
func (a *app) sync(ctx context.Context, cmd *cobra.Command) (*syncclient.SyncClient, error) {
	if err := a.requireClassroom(); err != nil {
		return nil, err
	}
	userID, userName, err := a.user(ctx)
	if err != nil {
		return nil, err
	}
	sc := syncclient.New(a.api, syncclient.Config{
		ClassroomID:      a.cfg.Sync.ClassroomID,
		AssignmentID:     a.cfg.Sync.AssignmentID,
		UserID:           userID,
		UserName:         userName,
		TablesInterval:   a.cfg.Sync.TablesInterval,
		MessagesInterval: a.cfg.Sync.MessagesInterval,
		PromptsInterval:  a.cfg.Sync.PromptsInterval,
		RequestTimeout:   a.cfg.Sync.RequestTimeout,
		MaxBackoff:       a.cfg.Sync.MaxBackoff,
		Logger:           a.logger.Named("sync"),
		Notifier:         printNotifier(cmd),
	})
	if err := sc.Refresh(ctx); err != nil {
		return nil, describe(err)
	}
	return sc, nil
}

// describe turns client errors into the line the user should read.
func describe(err error) error {
	var apiErr *client.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.Kind {
	case client.KindAuth:
		return errors.New("not signed in: run `classroom-sync login` first")
	case client.KindTransient:
		return fmt.Errorf("server unreachable, try again: %s", apiErr.Message)
	default:
		return errors.New(apiErr.Message)
	}
}
