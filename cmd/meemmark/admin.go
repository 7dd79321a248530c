package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/KareemA-Saad/Meem-Market/internal/authz"
	"github.com/KareemA-Saad/Meem-Market/internal/model"
	"github.com/KareemA-Saad/Meem-Market/internal/options"
	"github.com/KareemA-Saad/Meem-Market/internal/store"
)

func newInitCommand(flags *globalFlags) *cobra.Command {
	var adminUser, adminEmail string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database, seed roles and options, and create an administrator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, closeLog, err := loadConfig(flags)
			if err != nil {
				return err
			}
			defer closeLog()

			if _, err := os.Stat(cfg.DB); err == nil {
				return fmt.Errorf("database %s already exists", cfg.DB)
			}
			password, err := initDatabase(cmd.Context(), cfg.DB, adminUser, adminEmail)
			if err != nil {
				return err
			}
			printInitResult(cfg.DB, adminUser, password)
			return nil
		},
	}
	cmd.Flags().StringVarP(&adminUser, "user", "u", "admin", "admin login")
	cmd.Flags().StringVar(&adminEmail, "email", "", "admin email (default: the admin_email option)")
	return cmd
}

// initDatabase creates a new database with schema, default options and roles,
// and an administrator with a random password. On failure the file is removed.
func initDatabase(ctx context.Context, path, adminLogin, adminEmail string) (password string, err error) {
	svc, err := openServices(path)
	if err != nil {
		return "", err
	}
	defer func() {
		svc.db.Close()
		if err != nil {
			os.Remove(path)
		}
	}()

	if err := svc.options.SeedDefaults(ctx); err != nil {
		return "", fmt.Errorf("seeding options: %w", err)
	}
	if err := seedRolesIfEmpty(ctx, svc.authz); err != nil {
		return "", err
	}

	if adminEmail == "" {
		if adminEmail, err = svc.options.Get(ctx, "admin_email", adminLogin+"@localhost"); err != nil {
			return "", err
		}
	}

	password, err = generatePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	user, err := store.CreateUser(ctx, svc.db, adminLogin, adminEmail, "", string(hash))
	if err != nil {
		return "", fmt.Errorf("creating admin user: %w", err)
	}
	if err := svc.authz.AssignRole(ctx, user.ID, model.RoleAdministrator); err != nil {
		return "", fmt.Errorf("assigning admin role: %w", err)
	}
	return password, nil
}

func seedRolesIfEmpty(ctx context.Context, engine *authz.Engine) error {
	roles, err := engine.Roles(ctx)
	if err != nil {
		return err
	}
	if len(roles) > 0 {
		return nil
	}
	if err := engine.SeedRoles(ctx, authz.DefaultRegistry()); err != nil {
		return fmt.Errorf("seeding roles: %w", err)
	}
	return nil
}

func newRolesCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Manage the role registry",
	}

	var file string
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Replace the role registry with the built-in roles or a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, closeLog, err := loadConfig(flags)
			if err != nil {
				return err
			}
			defer closeLog()

			registry := authz.DefaultRegistry()
			if file != "" {
				if registry, err = authz.LoadRegistryFile(file); err != nil {
					return err
				}
			}

			svc, err := openServices(cfg.DB)
			if err != nil {
				return err
			}
			defer svc.db.Close()

			if err := svc.authz.SeedRoles(cmd.Context(), registry); err != nil {
				return err
			}
			slog.Info("role registry seeded", "roles", registry.Slugs())
			return nil
		},
	}
	seed.Flags().StringVarP(&file, "file", "f", "", "YAML role definitions")

	cmd.AddCommand(seed)
	return cmd
}

func newUsersCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage users",
	}

	setRole := &cobra.Command{
		Use:   "set-role <login> <role>",
		Short: "Assign a role to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig(flags)
			if err != nil {
				return err
			}
			defer closeLog()

			svc, err := openServices(cfg.DB)
			if err != nil {
				return err
			}
			defer svc.db.Close()

			ctx := options.WithCache(cmd.Context())
			user, err := store.GetUserByLogin(ctx, svc.db, args[0])
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("user %q not found", args[0])
			}
			if err := svc.authz.AssignRole(ctx, user.ID, args[1]); err != nil {
				if errors.Is(err, authz.ErrUnknownRole) {
					roles, _ := svc.authz.Roles(ctx)
					return fmt.Errorf("%w (known roles: %v)", err, roles.Slugs())
				}
				return err
			}
			slog.Info("role assigned", "user", user.Login, "role", args[1])
			return nil
		},
	}

	cmd.AddCommand(setRole)
	return cmd
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, login, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized, default roles and options seeded.")
	fmt.Println()
	fmt.Println("Administrator account created:")
	fmt.Printf("  Login:    %s\n", login)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("It can be changed after logging in.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
