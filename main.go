package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/adnsh/clerk/agent"
	"github.com/adnsh/clerk/auth"
	"github.com/adnsh/clerk/calendar"
	"github.com/adnsh/clerk/config"
	"github.com/adnsh/clerk/gmail"
	"github.com/adnsh/clerk/llm"
	"github.com/adnsh/clerk/prompt"
	"github.com/adnsh/clerk/triage"
)

const (
	settingsPath = "config/clerk.json"
	logPath      = "clerk.log"
)

var rootCmd = &cobra.Command{
	Use:   "clerk",
	Short: "An administrative-assistant agent for your inbox and calendar",
	Long: `Clerk polls your unread email and upcoming calendar events, classifies
each email with an LLM, and either marks it read, stars it, or drafts a
reply for you. Run with no arguments to start the polling daemon, or use
the chat command for a one-shot question.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask a one-shot question with calendar and email access",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

func main() {
	rootCmd.AddCommand(chatCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildAgent wires credentials, the remote clients, and the triage engine.
func buildAgent(ctx context.Context, settings config.Settings) (*agent.Agent, error) {
	provider, err := auth.NewProvider(settings.TokenFile, settings.CredentialsFile)
	if err != nil {
		return nil, err
	}
	httpClient, err := provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	gmailClient, err := gmail.NewClient(ctx, httpClient)
	if err != nil {
		return nil, err
	}
	calendarClient, err := calendar.NewClient(ctx, httpClient, settings.SelfEmail, settings.Location())
	if err != nil {
		return nil, err
	}

	llmClient := llm.New(settings.Model)
	engine := &triage.Engine{LLM: llmClient, Mail: gmailClient}

	return &agent.Agent{
		Settings: settings,
		Mail:     gmailClient,
		Calendar: calendarClient,
		Triage:   engine,
		LLM:      llmClient,
		Prompt:   prompt.Builder{PreferencesFile: settings.PreferencesFile},
		Refresh: func(ctx context.Context) error {
			_, err := provider.Token(ctx)
			return err
		},
	}, nil
}

func runDaemon() error {
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0660)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	log.SetOutput(logFile)
	log.Println("Agent starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received, cancelling context...")
		cancel()
	}()

	manager, err := config.NewManager(settingsPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	a, err := buildAgent(ctx, manager.Settings())
	if err != nil {
		return err
	}
	a.Run(ctx)
	return nil
}

func runChat() error {
	ctx := context.Background()

	manager, err := config.NewManager(settingsPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	a, err := buildAgent(ctx, manager.Settings())
	if err != nil {
		return err
	}

	fmt.Print("> ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read query: %w", err)
	}

	answer, err := a.Call(ctx, strings.TrimSpace(line))
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}
