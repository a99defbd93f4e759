package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	apiclient "github.com/splax/teamhub/pkg/api/client"
	"golang.org/x/term"
)

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
	DefaultTeam string `json:"default_team,omitempty"`
	Locale      string `json:"locale,omitempty"`
}

const defaultAPIBaseURL = "http://localhost:4000"

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = commandLogin(args)
	case "signup":
		err = commandSignup(args)
	case "logout":
		err = commandLogout()
	case "teams":
		err = commandTeams(args)
	case "invitations":
		err = commandInvitations(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage(os.Stdout)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func commandLogin(args []string) error {
	return authenticate("login", args, func(ctx context.Context, c *apiclient.Client, email, password string) (apiclient.LoginResponse, error) {
		return c.Login(ctx, email, password)
	})
}

func commandSignup(args []string) error {
	return authenticate("signup", args, func(ctx context.Context, c *apiclient.Client, email, password string) (apiclient.LoginResponse, error) {
		return c.Signup(ctx, email, password)
	})
}

type credentialFunc func(ctx context.Context, c *apiclient.Client, email, password string) (apiclient.LoginResponse, error)

func authenticate(name string, args []string, call credentialFunc) error {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+defaultAPIBaseURL+")")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}

	secret := strings.TrimSpace(*password)
	if secret == "" {
		fmt.Print("Password: ")
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Print("\n")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		secret = string(bytes)
	}

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	}

	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := call(ctx, client, *email, secret)
	if err != nil {
		return err
	}
	cfg.APIBaseURL = client.BaseURL()
	cfg.AccessToken = resp.Tokens.AccessToken
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("%s successful (%s)\n", name, resp.User.Email)
	return nil
}

func commandLogout() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.AccessToken = ""
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("signed out")
	return nil
}

// session returns a client and token for commands that need an authenticated user.
func session() (cliConfig, *apiclient.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cliConfig{}, nil, "", err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return cliConfig{}, nil, "", errors.New("please login first using 'teamctl login'")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return cliConfig{}, nil, "", err
	}
	return cfg, client, token, nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBaseURL}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "teamhub", "config.json"), nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "teamctl %s\n\n", buildVersion)
	fmt.Fprint(w, `Usage:
	teamctl login --email user@example.com [--password secret] [--api http://localhost:4000]
	teamctl signup --email user@example.com [--password secret] [--api http://localhost:4000]
	teamctl logout
	teamctl teams list
	teamctl teams create --name <name> [--slug <slug>]
	teamctl teams use --team <slug>
	teamctl teams members --team <slug>
	teamctl invitations list --team <slug>
	teamctl invitations create --team <slug> [--email addr] [--role member]
	teamctl invitations remove --team <slug> --id <invitation-id> [--yes]
	teamctl invitations watch --team <slug>
	teamctl version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
