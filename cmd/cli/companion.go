package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/turtacn/ccs/internal/domain/models"
	"github.com/turtacn/ccs/internal/infrastructure/persistence/postgres"
)

var companionCmd = &cobra.Command{
	Use:   "companion",
	Short: "Manage per-tenant persona variants",
}

var companionAddFlags struct {
	tenantSlug   string
	key          string
	name         string
	greeting     string
	instructions string
	personality  string
	language     string
	isDefault    bool
}

var companionAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a companion to a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, log, err := openDB()
		if err != nil {
			return err
		}
		ctx := context.Background()
		repo := postgres.NewTenantRepository(db, log)

		tenant, err := repo.FindBySlug(ctx, companionAddFlags.tenantSlug)
		if err != nil {
			return err
		}
		if tenant.CompanionByKey(companionAddFlags.key) != nil {
			return fmt.Errorf("companion key %q already exists for tenant %s", companionAddFlags.key, tenant.Slug)
		}

		companion := &models.Companion{
			ID:                 uuid.NewString(),
			TenantID:           tenant.ID,
			Key:                companionAddFlags.key,
			Name:               companionAddFlags.name,
			Greeting:           companionAddFlags.greeting,
			SystemInstructions: companionAddFlags.instructions,
			Personality:        companionAddFlags.personality,
			Language:           companionAddFlags.language,
			IsDefault:          companionAddFlags.isDefault,
		}
		if err := repo.SaveCompanion(ctx, companion); err != nil {
			return err
		}
		fmt.Printf("companion added: %s/%s (%s)\n", tenant.Slug, companion.Key, companion.ID)
		return nil
	},
}

func init() {
	companionAddCmd.Flags().StringVar(&companionAddFlags.tenantSlug, "tenant", "", "owning tenant slug (required)")
	companionAddCmd.Flags().StringVar(&companionAddFlags.key, "key", "", "stable selection key (required)")
	companionAddCmd.Flags().StringVar(&companionAddFlags.name, "name", "", "presented name")
	companionAddCmd.Flags().StringVar(&companionAddFlags.greeting, "greeting", "", "opening line override")
	companionAddCmd.Flags().StringVar(&companionAddFlags.instructions, "instructions", "", "system instructions override")
	companionAddCmd.Flags().StringVar(&companionAddFlags.personality, "personality", "", "personality description")
	companionAddCmd.Flags().StringVar(&companionAddFlags.language, "language", "", "reply language override")
	companionAddCmd.Flags().BoolVar(&companionAddFlags.isDefault, "default", false, "use as the tenant's default companion")
	_ = companionAddCmd.MarkFlagRequired("tenant")
	_ = companionAddCmd.MarkFlagRequired("key")

	companionCmd.AddCommand(companionAddCmd)
}
