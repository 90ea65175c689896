package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourorg/lendingdesk/internal/domain"
	"github.com/yourorg/lendingdesk/internal/infrastructure/logger"
	"github.com/yourorg/lendingdesk/internal/repository"
	"github.com/yourorg/lendingdesk/internal/service"
	"github.com/yourorg/lendingdesk/pkg/config"
	"github.com/yourorg/lendingdesk/pkg/database"
)

var apiURL string

func main() {
	root := &cobra.Command{
		Use:   "lendingdesk-admin",
		Short: "Admin tooling for the LendingDesk API",
	}
	root.PersistentFlags().StringVar(&apiURL, "api", envOr("LENDINGDESK_API", "http://localhost:8080"), "API base URL")

	root.AddCommand(booksCmd())
	root.AddCommand(bootstrapLibrarianCmd())
	root.AddCommand(loginCmd())
	root.AddCommand(whoamiCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// openRepos connects to the database for commands that bypass the API
func openRepos(ctx context.Context) (*database.ConnectionPool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.NewLogger("error")
	return database.NewConnectionPool(ctx, &cfg.Database, log)
}

func booksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "books",
		Short: "Manage the book catalog",
	}
	cmd.AddCommand(booksSeedCmd())
	cmd.AddCommand(booksListCmd())
	return cmd
}

type seedBook struct {
	Title            string `json:"title"`
	Author           string `json:"author"`
	UniqueIdentifier string `json:"unique_identifier"`
}

func booksSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert catalog entries from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			var books []seedBook
			if err := json.Unmarshal(raw, &books); err != nil {
				return fmt.Errorf("failed to parse %s: %w", file, err)
			}

			ctx := cmd.Context()
			pool, err := openRepos(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			log := logger.NewLogger("error")
			bookRepo := repository.NewPostgresBookRepository(pool.GetDB(), log)
			catalog := service.NewCatalogService(bookRepo, nil, time.Second, log)

			seeded := 0
			for _, b := range books {
				book := &domain.Book{
					ID:               uuid.NewString(),
					Title:            b.Title,
					Author:           b.Author,
					UniqueIdentifier: b.UniqueIdentifier,
					CreatedAt:        time.Now().UTC(),
				}
				if err := catalog.AddBook(ctx, book); err != nil {
					fmt.Fprintf(os.Stderr, "skipping %q: %v\n", b.Title, err)
					continue
				}
				seeded++
			}

			fmt.Printf("Seeded %d of %d books\n", seeded, len(books))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "books.json", "JSON file with catalog entries")
	return cmd
}

func booksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the book catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := openRepos(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			log := logger.NewLogger("error")
			bookRepo := repository.NewPostgresBookRepository(pool.GetDB(), log)

			books, err := bookRepo.List(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tIDENTIFIER")
			for _, b := range books {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Title, b.Author, b.UniqueIdentifier)
			}
			return w.Flush()
		},
	}
}

func bootstrapLibrarianCmd() *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "bootstrap-librarian",
		Short: "Create the first librarian account directly in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" || password == "" {
				return fmt.Errorf("--username and --password are required")
			}
			if len(password) < 8 {
				return fmt.Errorf("password must be at least 8 characters")
			}

			ctx := cmd.Context()
			pool, err := openRepos(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}

			log := logger.NewLogger("error")
			userRepo := repository.NewPostgresUserRepository(pool.GetDB(), log)
			user := &domain.User{
				ID:           uuid.NewString(),
				Username:     username,
				Email:        email,
				PasswordHash: string(hash),
				IsLibrarian:  true,
				CreatedAt:    time.Now().UTC(),
			}
			if err := userRepo.Create(ctx, user); err != nil {
				return err
			}

			fmt.Printf("Created librarian %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "librarian username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "librarian email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "librarian password")
	return cmd
}

func loginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in against the API and store the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := json.Marshal(map[string]string{
				"username": username,
				"password": password,
			})

			resp, err := http.Post(apiURL+"/api/login", "application/json", bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("login request failed: %w", err)
			}
			defer resp.Body.Close()

			var result map[string]any
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("login failed: %v", result["error"])
			}

			token, _ := result["token"].(string)
			if token == "" {
				return fmt.Errorf("no token in response")
			}
			if err := saveToken(token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			fmt.Println("Logged in")
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored login token",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := loadToken()
			if token == "" {
				return fmt.Errorf("not logged in")
			}
			if len(token) > 20 {
				token = token[:20] + "..."
			}
			fmt.Printf("Logged in (token: %s)\n", token)
			return nil
		},
	}
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lendingdesk", "token")
}

func saveToken(token string) error {
	if err := os.MkdirAll(filepath.Dir(tokenFile()), 0700); err != nil {
		return err
	}
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
