package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

func commandTeams(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: teamctl teams [list|create|use|members]")
	}
	switch args[0] {
	case "list":
		return teamsList(args[1:])
	case "create":
		return teamsCreate(args[1:])
	case "use":
		return teamsUse(args[1:])
	case "members":
		return teamsMembers(args[1:])
	default:
		return fmt.Errorf("unknown teams command: %s", args[0])
	}
}

func teamsList(args []string) error {
	fs := flag.NewFlagSet("teams list", flag.ExitOnError)
	fs.Parse(args)

	cfg, client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	teams, err := client.ListTeams(ctx, token)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tNAME\tCREATED")
	for _, t := range teams {
		marker := ""
		if t.Slug == cfg.DefaultTeam {
			marker = " *"
		}
		fmt.Fprintf(tw, "%s%s\t%s\t%s\n", t.Slug, marker, t.Name, t.CreatedAt.Format(time.DateOnly))
	}
	return tw.Flush()
}

func teamsCreate(args []string) error {
	fs := flag.NewFlagSet("teams create", flag.ExitOnError)
	name := fs.String("name", "", "Team name")
	slug := fs.String("slug", "", "URL slug (derived from name when empty)")
	fs.Parse(args)

	if strings.TrimSpace(*name) == "" {
		return errors.New("--name is required")
	}
	_, client, token, err := session()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	team, err := client.CreateTeam(ctx, token, *name, *slug)
	if err != nil {
		return err
	}
	fmt.Printf("team created: %s (%s)\n", team.Name, team.Slug)
	return nil
}

func teamsUse(args []string) error {
	fs := flag.NewFlagSet("teams use", flag.ExitOnError)
	team := fs.String("team", "", "Team slug to use by default")
	fs.Parse(args)

	if strings.TrimSpace(*team) == "" {
		return errors.New("--team is required")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.DefaultTeam = strings.TrimSpace(*team)
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("default team set to %s\n", cfg.DefaultTeam)
	return nil
}

func teamsMembers(args []string) error {
	fs := flag.NewFlagSet("teams members", flag.ExitOnError)
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
	members, err := client.ListMembers(ctx, token, slug)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tROLE\tJOINED")
	for _, m := range members {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.UserID, m.Role, m.CreatedAt.Format(time.DateOnly))
	}
	return tw.Flush()
}

func resolveTeam(flagValue string, cfg cliConfig) (string, error) {
	if slug := strings.TrimSpace(flagValue); slug != "" {
		return slug, nil
	}
	if slug := strings.TrimSpace(cfg.DefaultTeam); slug != "" {
		return slug, nil
	}
	return "", errors.New("--team is required (or set one with 'teamctl teams use')")
}
