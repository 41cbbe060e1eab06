package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/turtacn/ccs/internal/domain/models"
	"github.com/turtacn/ccs/internal/infrastructure/persistence/postgres"
	"github.com/turtacn/ccs/pkg/utils"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenants",
}

var tenantCreateFlags struct {
	slug         string
	name         string
	aiName       string
	greeting     string
	instructions string
	knowledge    string
	language     string
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a tenant with its default persona",
	RunE: func(cmd *cobra.Command, args []string) error {
		slug := utils.NormalizeSlug(tenantCreateFlags.slug)
		if !utils.IsValidTenantSlug(slug) {
			return fmt.Errorf("invalid slug %q: lowercase letters, digits and hyphens only", tenantCreateFlags.slug)
		}

		db, log, err := openDB()
		if err != nil {
			return err
		}
		ctx := context.Background()
		repo := postgres.NewTenantRepository(db, log)

		tenant := models.NewTenant(uuid.NewString(), slug, tenantCreateFlags.name)
		if tenantCreateFlags.aiName != "" {
			tenant.AIName = tenantCreateFlags.aiName
		}
		if tenantCreateFlags.greeting != "" {
			tenant.Greeting = tenantCreateFlags.greeting
		}
		tenant.SystemInstructions = tenantCreateFlags.instructions
		tenant.KnowledgeText = tenantCreateFlags.knowledge
		if tenantCreateFlags.language != "" {
			tenant.Language = tenantCreateFlags.language
		}

		if err := repo.Save(ctx, tenant); err != nil {
			return err
		}
		fmt.Printf("tenant created: %s (%s)\n", tenant.Slug, tenant.ID)
		return nil
	},
}

var tenantListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tenants",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, log, err := openDB()
		if err != nil {
			return err
		}
		repo := postgres.NewTenantRepository(db, log)

		tenants, err := repo.FindAll(context.Background(), 200, 0)
		if err != nil {
			return err
		}
		for _, t := range tenants {
			fmt.Printf("%-30s %-12s %-10s %s\n", t.Slug, t.Type(), t.Status, t.Name)
		}
		return nil
	},
}

func init() {
	tenantCreateCmd.Flags().StringVar(&tenantCreateFlags.slug, "slug", "", "unique URL-safe tenant identifier (required)")
	tenantCreateCmd.Flags().StringVar(&tenantCreateFlags.name, "name", "", "display name (required)")
	tenantCreateCmd.Flags().StringVar(&tenantCreateFlags.aiName, "ai-name", "", "default persona name")
	tenantCreateCmd.Flags().StringVar(&tenantCreateFlags.greeting, "greeting", "", "opening line")
	tenantCreateCmd.Flags().StringVar(&tenantCreateFlags.instructions, "instructions", "", "system instructions")
	tenantCreateCmd.Flags().StringVar(&tenantCreateFlags.knowledge, "knowledge", "", "tenant-level reference text")
	tenantCreateCmd.Flags().StringVar(&tenantCreateFlags.language, "language", "", "default reply language")
	_ = tenantCreateCmd.MarkFlagRequired("slug")
	_ = tenantCreateCmd.MarkFlagRequired("name")

	tenantCmd.AddCommand(tenantCreateCmd)
	tenantCmd.AddCommand(tenantListCmd)
}
