package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noah-isme/worksmarter/internal/syncclient"
)

func newLoginCommand(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("SYNC_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("--email and --password (or SYNC_PASSWORD) are required")
			}
			user, err := a.api.Login(cmd.Context(), email, password)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s).\n", user.FullName, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the classroom seating, your table's chat and prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sc, err := a.sync(ctx, cmd)
			if err != nil {
				return err
			}
			if err := sc.Start(ctx); err != nil {
				return err
			}
			defer sc.Stop()

			out := cmd.OutOrStdout()
			render(out, sc.View())
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev := <-sc.Events():
					if ev.Type == syncclient.EventTableChanged {
						fmt.Fprintf(out, "\n>> You moved from %s to %s.\n", tableLabel(ev.From), tableLabel(ev.To))
					}
					render(out, sc.View())
				}
			}
		},
	}
}

func newSeatCommand(a *app) *cobra.Command {
	var student, table string
	var vacate, yes bool
	cmd := &cobra.Command{
		Use:   "seat",
		Short: "Take a seat at a table, move a student, or vacate a seat",
		RunE: func(cmd *cobra.Command, args []string) error {
			if vacate == (table != "") {
				return errors.New("pass exactly one of --table or --vacate")
			}
			ctx := cmd.Context()
			sc, err := a.sync(ctx, cmd)
			if err != nil {
				return err
			}
			student, err := a.seatSubject(ctx, student)
			if err != nil {
				return describe(err)
			}
			if vacate {
				return describe(sc.Seats.AssignSeat(ctx, student, nil))
			}
			if sc.View().Table(table) == nil {
				return fmt.Errorf("no table %q in this classroom", table)
			}

			decision, err := sc.Seats.RequestSeat(ctx, student, table)
			if err != nil {
				return describe(err)
			}
			if !decision.NeedsConfirmation {
				return nil
			}
			if !yes && !confirmMove(cmd, sc.View(), decision) {
				fmt.Fprintln(cmd.OutOrStdout(), "Staying put.")
				return nil
			}
			return describe(sc.Seats.AssignSeat(ctx, student, &decision.To))
		},
	}
	cmd.Flags().StringVar(&student, "student", "", "student to seat (defaults to you)")
	cmd.Flags().StringVar(&table, "table", "", "target table id")
	cmd.Flags().BoolVar(&vacate, "vacate", false, "leave the current table")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "move without asking")
	return cmd
}

// seatSubject returns student, or the signed-in user when student is empty.
func (a *app) seatSubject(ctx context.Context, student string) (string, error) {
	if student != "" {
		return student, nil
	}
	id, _, err := a.user(ctx)
	if err != nil {
		return "", err
	}
	return id, nil
}

func confirmMove(cmd *cobra.Command, view syncclient.View, d *syncclient.SeatDecision) bool {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Move from %s to %s?\n", tableName(view, d.From), tableName(view, &d.To))
	if len(d.Occupants) > 0 {
		names := make([]string, 0, len(d.Occupants))
		for _, s := range d.Occupants {
			names = append(names, s.FullName)
		}
		fmt.Fprintf(out, "Already there: %s\n", strings.Join(names, ", "))
	}
	fmt.Fprint(out, "[y/N] ")
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func newSendCommand(a *app) *cobra.Command {
	var table string
	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Post a message to your table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sc, err := a.sync(ctx, cmd)
			if err != nil {
				return err
			}
			if table == "" {
				mine := sc.Store().MyTableID()
				if mine == nil {
					return errors.New("you are not seated: pass --table or take a seat first")
				}
				table = *mine
			}
			_, err = sc.Messenger.Send(ctx, table, strings.Join(args, " "))
			if errors.Is(err, syncclient.ErrEmptyMessage) {
				return err
			}
			return describe(err)
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "table id (defaults to your table)")
	return cmd
}

func newGenerateCommand(a *app) *cobra.Command {
	var table string
	var questions int
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate discussion prompts for one group",
		RunE: func(cmd *cobra.Command, args []string) error {
			if table == "" {
				return errors.New("--table is required")
			}
			if err := a.requireAssignment(); err != nil {
				return err
			}
			ctx := cmd.Context()
			sc, err := a.sync(ctx, cmd)
			if err != nil {
				return err
			}
			run, err := sc.Prompts.Generate(ctx, table, a.cfg.Sync.AssignmentID, questions)
			if err != nil {
				return describe(err)
			}
			for _, p := range run.Prompts {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. [%s] %s\n", p.OrderIndex+1, p.Type, p.Text)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "table id")
	cmd.Flags().IntVar(&questions, "questions", 0, "number of prompts (server default when 0)")
	return cmd
}

func newGenerateAllCommand(a *app) *cobra.Command {
	var questions int
	cmd := &cobra.Command{
		Use:   "generate-all",
		Short: "Generate discussion prompts for every group",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireAssignment(); err != nil {
				return err
			}
			ctx := cmd.Context()
			sc, err := a.sync(ctx, cmd)
			if err != nil {
				return err
			}
			res, err := sc.Prompts.GenerateAll(ctx, a.cfg.Sync.AssignmentID, questions)
			if err != nil {
				return describe(err)
			}
			view := sc.View()
			for _, t := range view.Tables {
				if t.Generation == syncclient.GenerationFailed {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", t.Name, t.GenerationError)
				}
			}
			if res.Successful == 0 && res.TotalGroups > 0 {
				return errors.New("no group received prompts")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&questions, "questions", 0, "number of prompts per group (server default when 0)")
	return cmd
}

func newRespondCommand(a *app) *cobra.Command {
	var prompt string
	cmd := &cobra.Command{
		Use:   "respond [answer]",
		Short: "Save your group's answer to a prompt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if prompt == "" {
				return errors.New("--prompt is required")
			}
			ctx := cmd.Context()
			sc, err := a.sync(ctx, cmd)
			if err != nil {
				return err
			}
			_, err = sc.Prompts.SaveResponse(ctx, prompt, strings.Join(args, " "))
			if errors.Is(err, syncclient.ErrEmptyResponse) {
				return err
			}
			return describe(err)
		},
	}
	cmd.Flags().StringVar(&prompt, "prompt", "", "prompt id")
	return cmd
}

func (a *app) requireAssignment() error {
	if a.cfg.Sync.AssignmentID == "" {
		return errors.New("no assignment: pass --assignment or set SYNC_ASSIGNMENT_ID")
	}
	return nil
}

func printNotifier(cmd *cobra.Command) syncclient.Notifier {
	return syncclient.NotifierFunc(func(level syncclient.Level, message string) {
		w := cmd.OutOrStdout()
		if level == syncclient.LevelError {
			w = cmd.ErrOrStderr()
		}
		fmt.Fprintf(w, "[%s] %s\n", level, message)
	})
}
