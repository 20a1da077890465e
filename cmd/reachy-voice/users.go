package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/teslashibe/reachy-voice/pkg/faceid"
	"github.com/teslashibe/reachy-voice/pkg/memory"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Inspect and manage registered users",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := openRegistry(cmd.Context(), cfg, false, logger)
		if err != nil {
			return err
		}
		defer reg.Close()

		return printUsers(os.Stdout, reg.ListUsers())
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete a user's face embeddings and memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := openRegistry(cmd.Context(), cfg, false, logger)
		if err != nil {
			return err
		}
		defer reg.Close()

		var forget forgetter
		if cfg.Memory.Enabled {
			m, err := memory.NewWithFile(cfg.Memory.Path, memory.WithLogger(logger))
			if err != nil {
				return err
			}
			defer m.Close()
			forget = m
		}

		return deleteUser(cmd.Context(), os.Stdout, reg, forget, args[0])
	},
}

func init() {
	usersCmd.AddCommand(usersListCmd, usersDeleteCmd)
}

type forgetter interface {
	Forget(userID string) (bool, error)
}

type userDeleter interface {
	DeleteUser(ctx context.Context, userID string) (bool, error)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

func printUsers(w io.Writer, users []faceid.UserSummary) error {
	if len(users) == 0 {
		_, err := fmt.Fprintln(w, dimStyle.Render("No users registered"))
		return err
	}

	width := len("USER ID")
	for _, u := range users {
		width = max(width, lipgloss.Width(u.UserID))
	}
	cell := lipgloss.NewStyle().Width(width + 2)

	fmt.Fprintln(w, headerStyle.Render(cell.Render("USER ID")+"EMBEDDINGS"))
	for _, u := range users {
		if _, err := fmt.Fprintln(w, cell.Render(u.UserID)+strconv.Itoa(u.Embeddings)); err != nil {
			return err
		}
	}
	return nil
}

// deleteUser removes userID from the registry and, when mem is set, from
// memory. A user unknown to both is an error.
func deleteUser(ctx context.Context, w io.Writer, reg userDeleter, mem forgetter, userID string) error {
	found, err := reg.DeleteUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", userID, err)
	}
	forgotten := false
	if mem != nil {
		if forgotten, err = mem.Forget(userID); err != nil {
			return fmt.Errorf("forget %s: %w", userID, err)
		}
	}
	if !found && !forgotten {
		return fmt.Errorf("user %q not found", userID)
	}
	fmt.Fprintf(w, "Deleted %s\n", userID)
	return nil
}
