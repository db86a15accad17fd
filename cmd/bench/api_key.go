package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inferbench/bench-server/internal/config"
	"github.com/inferbench/bench-server/internal/db"
	"github.com/inferbench/bench-server/internal/db/models"
	"github.com/inferbench/bench-server/internal/db/repository"
	"github.com/inferbench/bench-server/internal/utils/hashutil"
	"github.com/inferbench/bench-server/internal/utils/randutil"
)

type contextKey string

const apiKeyRepoKey contextKey = "apikey_repo"

var apiKeyCmd = &cobra.Command{
	Use:   "api-key",
	Short: "Manage bench server API keys",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		driver, err := db.NewConnection(cmd.Context(), config.GetConfig())
		if err != nil {
			return err
		}

		repo := repository.NewAPIKeyRepository(driver.GetDB())
		cmd.SetContext(context.WithValue(cmd.Context(), apiKeyRepoKey, repo))
		return nil
	},
}

func init() {
	setupAPIKeyCmd(apiKeyCmd)
}

func apiKeyRepo(ctx context.Context) repository.IAPIKeyRepository {
	return ctx.Value(apiKeyRepoKey).(repository.IAPIKeyRepository)
}

func setupAPIKeyCmd(cmd *cobra.Command) {
	newAPIKeyCmd := &cobra.Command{
		Use:   "new",
		Short: "Creates a new API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := randutil.RandomString(32)
			if err != nil {
				return err
			}

			name, _ := cmd.Flags().GetString("name")
			mask := randutil.MaskString(key, 4, 4)
			apiKey := models.NewAPIKey(name, hashutil.Blake3Hash([]byte(key)), mask)

			if _, err := apiKeyRepo(cmd.Context()).Create(cmd.Context(), apiKey); err != nil {
				return err
			}

			fmt.Printf("API key created: %s\n", key)
			return nil
		},
	}
	newAPIKeyCmd.Flags().String("name", "", "Label for the new key")

	revokeAPIKeyCmd := &cobra.Command{
		Use:   "revoke <key>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			repo := apiKeyRepo(cmd.Context())

			if err := repo.RevokeAPIKeyWithHash(cmd.Context(), hashutil.Blake3Hash([]byte(key))); err != nil {
				return err
			}

			fmt.Printf("API key revoked: %s\n", randutil.MaskString(key, 4, 4))
			return nil
		},
	}

	listAPIKeysCmd := &cobra.Command{
		Use:   "list",
		Short: "List all API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			apiKeys, err := apiKeyRepo(cmd.Context()).ListAPIKeys(cmd.Context())
			if err != nil {
				return err
			}

			if len(apiKeys) == 0 {
				fmt.Println("No API keys found")
				return nil
			}

			fmt.Println("API keys:")
			for _, apiKey := range apiKeys {
				name := apiKey.Name
				if name == "" {
					name = "(unnamed)"
				}
				fmt.Printf("%s  %s (Revoked: %t)\n", apiKey.KeyMask, name, apiKey.IsRevoked)
			}

			return nil
		},
	}

	cmd.AddCommand(newAPIKeyCmd, revokeAPIKeyCmd, listAPIKeysCmd)
}
