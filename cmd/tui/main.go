package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"chatrelay/internal/client"
	uichat "chatrelay/internal/ui/chat"
)

func main() {
	var (
		serverURL = flag.String("server", "", "relay server URL (overrides config)")
		email     = flag.String("email", "", "account email")
		password  = flag.String("password", "", "account password")
		register  = flag.Bool("register", false, "create the account before signing in")
		chatID    = flag.String("chat", "", "resume an existing chat by id")
	)
	flag.Parse()

	cfg, err := client.LoadConfig()
	if err != nil {
		fatal("failed to load config: %v", err)
	}
	if *serverURL != "" {
		cfg.ServerURL = *serverURL
	}
	if *email != "" {
		cfg.Email = *email
	}

	cli := client.New(cfg.ServerURL)
	cli.Token = cfg.Token

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// A fresh login replaces whatever token the config holds.
	if *password != "" {
		if cfg.Email == "" {
			fatal("an email is required to sign in (use -email)")
		}
		var token string
		var err error
		if *register {
			token, err = cli.Register(ctx, cfg.Email, *password)
		} else {
			token, err = cli.Login(ctx, cfg.Email, *password)
		}
		if err != nil {
			fatal("sign-in failed: %v", err)
		}
		cfg.Token = token
		if err := client.SaveConfig(cfg); err != nil {
			fatal("failed to save config: %v", err)
		}
	}

	if cli.Token == "" {
		fatal("no session token; sign in with -email and -password first")
	}

	var history []client.Message
	if *chatID != "" {
		details, err := cli.GetChat(ctx, *chatID)
		if err != nil {
			fatal("failed to load chat %s: %v", *chatID, err)
		}
		history = details.Messages
	}

	model := uichat.New(cli, *chatID, history)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		fatal("terminal UI failed: %v", err)
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
