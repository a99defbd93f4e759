package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/splax/teamhub/internal/i18n"
	"github.com/splax/teamhub/internal/ui/pending"
	apiclient "github.com/splax/teamhub/pkg/api/client"
)

func commandInvitations(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: teamctl invitations [list|create|remove|watch]")
	}
	switch args[0] {
	case "list":
		return invitationsList(args[1:])
	case "create":
		return invitationsCreate(args[1:])
	case "remove":
		return invitationsRemove(args[1:])
	case "watch":
		return invitationsWatch(args[1:])
	default:
		return fmt.Errorf("unknown invitations command: %s", args[0])
	}
}

// errReported marks failures the notifier already printed.
var errReported = errors.New("reported")

// consoleNotifier prints workflow notifications.
type consoleNotifier struct {
	out io.Writer
	err io.Writer
}

func (n consoleNotifier) Success(msg string) { fmt.Fprintln(n.out, msg) }
func (n consoleNotifier) Error(msg string)   { fmt.Fprintln(n.err, "error: "+msg) }

func translator(cfg cliConfig) i18n.Translator {
	bundle, err := i18n.LoadEmbedded()
	if err != nil {
		return i18n.Translator{}
	}
	return bundle.Translator(cfg.Locale, os.Getenv("LANG"))
}

func newWorkflow(cfg cliConfig, client *apiclient.Client, token, slug string) *pending.Workflow {
	return pending.New(pending.Config{
		Source:     client,
		Notifier:   consoleNotifier{out: os.Stdout, err: os.Stderr},
		Translator: translator(cfg),
		Token:      token,
		Team:       slug,
	})
}

func invitationsList(args []string) error {
	fs := flag.NewFlagSet("invitations list", flag.ExitOnError)
	team := fs.String("team", "", "Team slug")
	fs.Parse(args)

	cfg, client, token, err := session()
	if err != nil {
		return err
	}
	slug, err := resolveTeam(*team, cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	wf := newWorkflow(cfg, client, token, slug)
	_ = wf.Load(ctx)
	return renderView(os.Stdout, wf.View())
}

func invitationsCreate(args []string) error {
	fs := flag.NewFlagSet("invitations create", flag.ExitOnError)
	team := fs.String("team", "", "Team slug")
	email := fs.String("email", "", "Invitee email (omit for a link invitation)")
	role := fs.String("role", "member", "Role granted on acceptance")
	fs.Parse(args)

	cfg, client, token, err := session()
	if err != nil {
		return err
	}
	slug, err := resolveTeam(*team, cfg)
	if err != nil {
		return err
	}
	input := apiclient.CreateInvitationInput{Role: *role}
	if addr := strings.TrimSpace(*email); addr != "" {
		input.Email = &addr
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	inv, err := client.CreateInvitation(ctx, token, slug, input)
	if err != nil {
		return err
	}
	fmt.Printf("invitation %s created for %s (token %s, expires %s)\n", inv.ID, inv.EmailOrDash(), inv.Token, inv.Expires.Format(time.RFC3339))
	return nil
}

func invitationsRemove(args []string) error {
	fs := flag.NewFlagSet("invitations remove", flag.ExitOnError)
	team := fs.String("team", "", "Team slug")
	id := fs.String("id", "", "Invitation identifier")
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	fs.Parse(args)

	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}
	cfg, client, token, err := session()
	if err != nil {
		return err
	}
	slug, err := resolveTeam(*team, cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	wf := newWorkflow(cfg, client, token, slug)
	if err := wf.Load(ctx); err != nil {
		return err
	}
	if !wf.SelectID(strings.TrimSpace(*id)) {
		return fmt.Errorf("invitation %s is not pending for team %s", *id, slug)
	}
	if !*yes {
		ok, err := confirm(os.Stdin, os.Stdout, wf.View().Dialog)
		if err != nil {
			return err
		}
		if !ok {
			wf.Cancel()
			return nil
		}
	}
	if err := wf.Confirm(ctx); err != nil {
		return errReported
	}
	return renderView(os.Stdout, wf.View())
}

func invitationsWatch(args []string) error {
	fs := flag.NewFlagSet("invitations watch", flag.ExitOnError)
	team := fs.String("team", "", "Team slug")
	fs.Parse(args)

	cfg, client, token, err := session()
	if err != nil {
		return err
	}
	slug, err := resolveTeam(*team, cfg)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wf := newWorkflow(cfg, client, token, slug)
	refresh := func() error {
		loadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		_ = wf.Load(loadCtx)
		fmt.Printf("\n[%s]\n", time.Now().Format(time.TimeOnly))
		return renderView(os.Stdout, wf.View())
	}
	if err := refresh(); err != nil {
		return err
	}
	events, err := client.SubscribeInvitations(ctx, token, slug)
	if err != nil {
		return err
	}
	for evt := range events {
		if evt.Type != "invitations.changed" {
			continue
		}
		if err := refresh(); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return errors.New("invitation stream closed by server")
}

func confirm(in io.Reader, out io.Writer, dialog *pending.Dialog) (bool, error) {
	if dialog == nil {
		return false, nil
	}
	fmt.Fprintf(out, "%s\n%s\n[y/N]: ", dialog.Title, dialog.Body)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func renderView(w io.Writer, view pending.View) error {
	switch view.Mode {
	case pending.Hidden:
		return nil
	case pending.Loading:
		_, err := fmt.Fprintln(w, view.Message)
		return err
	case pending.Failed:
		return errors.New(view.Message)
	}
	fmt.Fprintf(w, "%s\n%s\n\n", view.Title, view.Description)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\t"+strings.Join(view.Columns[:3], "\t"))
	for _, row := range view.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", row.ID, row.Email, row.Role, row.Expires)
	}
	return tw.Flush()
}
