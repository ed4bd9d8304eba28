package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/types"
)

func newLoadIngredientsCommand(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "load-ingredients",
		Short: "Import ingredients from a JSON file",
		Long:  `Reads a JSON array of {"name": ..., "measurement_unit": ...} objects. Pairs already present are skipped.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return errors.Wrap(err, "read ingredient file")
			}
			var records []types.IngredientRecord
			if err := json.Unmarshal(data, &records); err != nil {
				return errors.Wrapf(err, "parse %s", file)
			}

			return opts.withDB(func(db *gorm.DB, log *zap.Logger) error {
				result, err := service.NewIngredientService(db).Load(cmd.Context(), records)
				if err != nil {
					return err
				}
				log.Info("ingredients loaded", zap.Int("created", result.Created), zap.Int("duplicates", result.Duplicates))
				fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d ingredients, skipped %d duplicates\n", result.Created, result.Duplicates)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Path to the ingredients JSON file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newCreateTagCommand(opts *options) *cobra.Command {
	var req types.CreateTagRequest
	cmd := &cobra.Command{
		Use:   "create-tag",
		Short: "Create a recipe tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(func(db *gorm.DB, _ *zap.Logger) error {
				tag, err := service.NewTagService(db).Create(cmd.Context(), &req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created tag %q (%s) %s\n", tag.Name, tag.Slug, tag.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Tag name")
	cmd.Flags().StringVar(&req.Color, "color", "", "Color as #RRGGBB")
	cmd.Flags().StringVar(&req.Slug, "slug", "", "URL slug")
	for _, f := range []string{"name", "color", "slug"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func newCreateSuperuserCommand(opts *options) *cobra.Command {
	var req types.CreateUserRequest
	cmd := &cobra.Command{
		Use:   "create-superuser",
		Short: "Create a staff account",
		Long:  "Creates a staff user. The password falls back to FOODGRAM_SUPERUSER_PASSWORD when --password is omitted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = os.Getenv("FOODGRAM_SUPERUSER_PASSWORD")
			}
			if req.FirstName == "" {
				req.FirstName = req.Username
			}
			if req.LastName == "" {
				req.LastName = req.Username
			}

			return opts.withDB(func(db *gorm.DB, log *zap.Logger) error {
				user, err := service.NewUserService(db).Create(cmd.Context(), &req, true)
				if err != nil {
					return err
				}
				log.Info("superuser created", zap.String("user_id", user.ID.String()))
				fmt.Fprintf(cmd.OutOrStdout(), "Created staff user %s <%s> %s\n", user.Username, user.Email, user.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Username, "username", "", "Username")
	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "First name (defaults to the username)")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name (defaults to the username)")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newDeleteUserCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user <email>",
		Short: "Delete a user with their recipes, subscriptions, favorites and cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.TrimSpace(args[0])
			return opts.withDB(func(db *gorm.DB, log *zap.Logger) error {
				users := service.NewUserService(db)
				user, err := users.GetByEmail(cmd.Context(), email)
				if err != nil {
					return err
				}
				if err := users.Delete(cmd.Context(), user.ID); err != nil {
					return err
				}
				log.Info("user deleted", zap.String("user_id", user.ID.String()))
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", email)
				return nil
			})
		},
	}
}
