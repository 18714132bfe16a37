package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"libraryhub.com/internal/auth"
	"libraryhub.com/internal/domain"
	"libraryhub.com/internal/event"
	"libraryhub.com/internal/service"
)

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(bytePassword)), nil
}

func createAdminCmd() *cobra.Command {
	var in domain.RegisterInput

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a verified administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword("Password: ")
			if err != nil {
				return err
			}
			confirm, err := readPassword("Confirm password: ")
			if err != nil {
				return err
			}
			if password != confirm {
				return errors.New("passwords do not match")
			}
			in.Password = password

			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer db.Close()

			bus := event.NewBus()
			bus.Subscribe(event.All, event.LogHandler)
			tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
			authSvc := service.NewAuthService(db.DB, tokens, cfg.Auth, bus)

			user, err := authSvc.CreateAdmin(cmd.Context(), in)
			if err != nil {
				var appErr *domain.AppError
				if errors.As(err, &appErr) {
					for _, d := range appErr.Details {
						log.Printf("  %s: %s", d.Field, d.Message)
					}
				}
				return err
			}

			log.Printf("Admin created: %s (%s)", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "admin email")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "Library", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "Admin", "last name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
