package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	apiclient "github.com/kycdesk/kycdesk/pkg/api/client"
)

type cliConfig struct {
	APIBaseURL  string `json:"api_base_url"`
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
}

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "register":
		err = commandRegister(args)
	case "login":
		err = commandLogin(args)
	case "kyc":
		err = commandKYC(args)
	case "dashboard":
		err = commandDashboard(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	name := fs.String("name", "", "Full name")
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+apiclient.DefaultBaseURL+")")
	fs.Parse(args)

	if strings.TrimSpace(*name) == "" {
		return errors.New("--name is required")
	}
	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := readSecret(*password)
	if err != nil {
		return err
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

	msg, err := client.Register(ctx, *name, *email, secret)
	if err != nil {
		return err
	}
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+apiclient.DefaultBaseURL+")")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}
	secret, err := readSecret(*password)
	if err != nil {
		return err
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

	resp, err := client.Login(ctx, *email, secret)
	if err != nil {
		return err
	}
	cfg.AccessToken = resp.Token
	cfg.Role = resp.Role
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("login successful (role=%s)\n", resp.Role)
	return nil
}

func readSecret(flagValue string) (string, error) {
	if secret := strings.TrimSpace(flagValue); secret != "" {
		return secret, nil
	}
	fmt.Print("Password: ")
	bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Print("\n")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(bytes), nil
}

func commandKYC(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: kycctl kyc [submit|status|list|decide]")
	}
	sub := args[0]
	switch sub {
	case "submit":
		return kycSubmit(args[1:])
	case "status":
		return kycStatus(args[1:])
	case "list":
		return kycList(args[1:])
	case "decide":
		return kycDecide(args[1:])
	default:
		return fmt.Errorf("unknown kyc command: %s", sub)
	}
}

func kycSubmit(args []string) error {
	fs := flag.NewFlagSet("kyc submit", flag.ExitOnError)
	file := fs.String("file", "", "Path to the identity document")
	fs.Parse(args)

	if strings.TrimSpace(*file) == "" {
		return errors.New("--file is required")
	}
	client, token, err := authedClient()
	if err != nil {
		return err
	}
	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := client.SubmitDocument(ctx, token, filepath.Base(*file), f)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s status=%s\n", res.Message, res.Submission.ID, res.Submission.Status)
	return nil
}

func kycStatus(args []string) error {
	fs := flag.NewFlagSet("kyc status", flag.ExitOnError)
	fs.Parse(args)

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sub, err := client.Status(ctx, token)
	if err != nil {
		return err
	}
	fmt.Printf("%s\t%s\t%s\t%s\n", sub.ID, sub.Status, sub.DocumentPath, sub.SubmittedAt.Format(time.RFC3339))
	return nil
}

func kycList(args []string) error {
	fs := flag.NewFlagSet("kyc list", flag.ExitOnError)
	status := fs.String("status", "", "Only show submissions with this status")
	limit := fs.Int("limit", 0, "Maximum number of submissions to display")
	fs.Parse(args)

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	subs, err := client.ListSubmissions(ctx, token)
	if err != nil {
		return err
	}
	shown := 0
	for _, sub := range subs {
		if *status != "" && !strings.EqualFold(sub.Status, *status) {
			continue
		}
		if *limit > 0 && shown >= *limit {
			break
		}
		owner, _ := sub.Owner()
		fmt.Printf("%s\t%s\t%s <%s>\t%s\n", sub.ID, sub.Status, owner.Name, owner.Email, sub.SubmittedAt.Format(time.RFC3339))
		shown++
	}
	return nil
}

func kycDecide(args []string) error {
	fs := flag.NewFlagSet("kyc decide", flag.ExitOnError)
	id := fs.String("id", "", "Submission identifier")
	status := fs.String("status", "", "Verdict (approved|rejected)")
	fs.Parse(args)

	if strings.TrimSpace(*id) == "" {
		return errors.New("--id is required")
	}
	if strings.TrimSpace(*status) == "" {
		return errors.New("--status is required")
	}
	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	res, err := client.Decide(ctx, token, *id, *status)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s status=%s\n", res.Message, res.Submission.ID, res.Submission.Status)
	return nil
}

func commandDashboard(args []string) error {
	fs := flag.NewFlagSet("dashboard", flag.ExitOnError)
	fs.Parse(args)

	client, token, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	stats, err := client.Dashboard(ctx, token)
	if err != nil {
		return err
	}
	fmt.Printf("users\t%d\nsubmissions\t%d\npending\t%d\napproved\t%d\nrejected\t%d\n",
		stats.TotalUsers, stats.TotalKYCSubmissions, stats.PendingCount, stats.ApprovedCount, stats.RejectedCount)
	return nil
}

func authedClient() (*apiclient.Client, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, "", errors.New("please login first using 'kycctl login'")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return nil, "", err
	}
	return client, token, nil
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: apiclient.DefaultBaseURL}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = apiclient.DefaultBaseURL
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
	return filepath.Join(base, "kycctl", "config.json"), nil
}

func printUsage() {
	fmt.Printf("kycctl %s\n\n", buildVersion)
	fmt.Print(`Usage:
	kycctl register --name "Ann Lee" --email ann@example.com [--password secret] [--api http://localhost:5000]
	kycctl login --email ann@example.com [--password secret] [--api http://localhost:5000]
	kycctl kyc submit --file ./passport.png
	kycctl kyc status
	kycctl kyc list [--status pending|approved|rejected] [--limit N]
	kycctl kyc decide --id <submission-id> --status approved|rejected
	kycctl dashboard
	kycctl version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
