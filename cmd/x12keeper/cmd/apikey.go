package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/solatis/x12keeper/internal/core/auth"
	"github.com/solatis/x12keeper/internal/core/config"
	"github.com/solatis/x12keeper/internal/core/db"
	"github.com/solatis/x12keeper/internal/segment"
	"github.com/solatis/x12keeper/internal/types"
)

var apiKeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage trading partner API keys",
}

var apiKeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a new API key for a partner",
	RunE:  runAPIKeyCreate,
}

var apiKeyRevokeCmd = &cobra.Command{
	Use:   "revoke <api_key_id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAPIKeyRevoke,
}

func init() {
	rootCmd.AddCommand(apiKeyCmd)
	apiKeyCmd.AddCommand(apiKeyCreateCmd, apiKeyRevokeCmd)

	apiKeyCreateCmd.Flags().String("partner", "", "trading partner id (required)")
	apiKeyCreateCmd.Flags().String("secret-id", "", "HMAC secret id to bind the key to (required with multiple secrets)")
	_ = apiKeyCreateCmd.MarkFlagRequired("partner")
}

func openStore() (*db.Store, func() error, error) {
	url, err := resolveDBURL()
	if err != nil {
		return nil, nil, err
	}
	database, err := db.Open(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return db.NewStore(database, queries, segment.DefaultSchema(), 0), database.Close, nil
}

// selectSecret picks the HMAC secret a new key is bound to.
func selectSecret(secrets map[string][]byte, secretID string) (string, []byte, error) {
	if secretID != "" {
		secret, ok := secrets[secretID]
		if !ok {
			return "", nil, fmt.Errorf("secret id %s not configured", secretID)
		}
		return secretID, secret, nil
	}

	switch len(secrets) {
	case 0:
		return "", nil, fmt.Errorf("no HMAC secrets configured (set X12_HMAC_SECRET environment variable)")
	case 1:
		for id, secret := range secrets {
			return id, secret, nil
		}
	}

	ids := make([]string, 0, len(secrets))
	for id := range secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return "", nil, fmt.Errorf("multiple HMAC secrets configured, pass --secret-id (one of %v)", ids)
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	partner, _ := cmd.Flags().GetString("partner")
	secretID, _ := cmd.Flags().GetString("secret-id")

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	secretID, secret, err := selectSecret(secrets, secretID)
	if err != nil {
		return err
	}

	key, hash, err := auth.GenerateAPIKey(secretID, secret)
	if err != nil {
		return err
	}

	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	id, err := store.CreateAPIKey(context.Background(), types.PartnerID(partner), hash)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "api_key_id: %s\n", id)
	fmt.Fprintf(out, "partner_id: %s\n", partner)
	fmt.Fprintf(out, "api_key:    %s\n", key)
	fmt.Fprintln(out, "The key is shown once and cannot be recovered.")
	return nil
}

func runAPIKeyRevoke(cmd *cobra.Command, args []string) error {
	store, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := store.RevokeAPIKey(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", args[0])
	return nil
}
