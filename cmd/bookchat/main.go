package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bookworm-labs/bookchat/internal/chat"
	"github.com/bookworm-labs/bookchat/internal/config"
	"github.com/bookworm-labs/bookchat/internal/domain"
	"github.com/bookworm-labs/bookchat/internal/logging"
	"github.com/bookworm-labs/bookchat/internal/storage/memory"
	"github.com/bookworm-labs/bookchat/internal/storage/postgres"
	"github.com/bookworm-labs/bookchat/internal/storage/redis"
	"github.com/bookworm-labs/bookchat/internal/storage/sqlite"
)

func main() {
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.Setup(cfg.Logging)

	stateStore, err := openStateStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open state store")
	}
	defer stateStore.Close()

	store := chat.NewStore(stateStore, logger)

	jar, _ := cookiejar.New(nil)
	httpClient := &http.Client{Timeout: cfg.Backend.Timeout, Jar: jar}
	client := chat.NewClient(store, cfg.Backend.BaseURL, httpClient, logger)

	fmt.Printf("bookchat — connected to %s\n", cfg.Backend.BaseURL)
	fmt.Println("Commands: /new, /list, /switch <n>, /delete <n>, /clear, /retry, /quit")
	printLastMessage(store)

	var lastSent string
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/retry" {
			if lastSent == "" {
				fmt.Println("nothing to retry")
				continue
			}
			line = lastSent
		} else if strings.HasPrefix(line, "/") {
			if !runCommand(store, line) {
				return
			}
			continue
		}

		lastSent = line
		if err := client.SendMessage(context.Background(), line); err != nil {
			logger.Error().Err(err).Msg("Send failed")
		}
		printLastMessage(store)
	}
}

func openStateStore(cfg *config.Config, logger zerolog.Logger) (domain.StateStore, error) {
	namespace, err := os.Hostname()
	if err != nil || namespace == "" {
		namespace = "default"
	}

	switch cfg.Storage.Driver {
	case "memory":
		return memory.NewStateStore(), nil
	case "sqlite":
		return sqlite.New(cfg.Storage.SQLitePath)
	case "redis":
		return redis.New(cfg.Storage.Redis, namespace)
	case "postgres":
		return postgres.New(context.Background(), cfg.Storage.Postgres.DSN, namespace)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// runCommand executes a slash command; it returns false when the user quits.
func runCommand(store *chat.Store, line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]

	switch cmd {
	case "/quit", "/exit":
		return false
	case "/new":
		store.CreateSession()
		printLastMessage(store)
	case "/clear":
		store.ClearCurrentSession()
		printLastMessage(store)
	case "/list":
		current := store.CurrentID()
		for i, sess := range store.Sessions() {
			marker := " "
			if sess.ID == current {
				marker = "*"
			}
			fmt.Printf("%s %d. %s (%d messages)\n", marker, i+1, sess.Title, len(sess.Messages))
		}
	case "/switch", "/delete":
		if len(fields) < 2 {
			fmt.Printf("usage: %s <n>\n", cmd)
			return true
		}
		n, err := strconv.Atoi(fields[1])
		sessions := store.Sessions()
		if err != nil || n < 1 || n > len(sessions) {
			fmt.Println("no such session")
			return true
		}
		if cmd == "/switch" {
			store.SetCurrentSession(sessions[n-1].ID)
		} else {
			store.DeleteSession(sessions[n-1].ID)
		}
	default:
		fmt.Printf("unknown command %s\n", cmd)
	}
	return true
}

func printLastMessage(store *chat.Store) {
	sess := store.CurrentSession()
	if msg := sess.LastMessage(); msg != nil {
		fmt.Printf("[%s] %s\n", msg.Sender, msg.Content)
	}
}
