package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/newsintel/internal/auth"
)

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token signed with JWT_SECRET",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "newsctl", "token subject")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(auth.RoleReader), "reader, editor or admin")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime, 0 for none")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	switch auth.Role(tokenRole) {
	case auth.RoleReader, auth.RoleEditor, auth.RoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", tokenRole)
	}

	token, err := auth.IssueToken(secret, tokenSubject, auth.Role(tokenRole), tokenTTL)
	if err != nil {
		return err
	}
	cmd.Println(token)
	return nil
}
