package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	errors "github.com/frahmantamala/reimbursement-tracker/internal"
	"github.com/frahmantamala/reimbursement-tracker/internal/user"
	userPostgres "github.com/frahmantamala/reimbursement-tracker/internal/user/postgres"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed one user per role, with budgets and a reporting line, for development and testing.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := openGorm(sqlDB)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if clearData {
			if err := db.WithContext(ctx).Exec("DELETE FROM reimbursement_requests").Error; err != nil {
				log.Fatalf("failed to clear requests: %v", err)
			}
			if err := db.WithContext(ctx).Exec("UPDATE users SET manager_id = NULL").Error; err != nil {
				log.Fatalf("failed to detach managers: %v", err)
			}
			if err := db.WithContext(ctx).Exec("DELETE FROM users").Error; err != nil {
				log.Fatalf("failed to clear users: %v", err)
			}
			fmt.Println("Cleared existing requests and users")
		}

		password := "password"
		hash, err := bcrypt.GenerateFromPassword([]byte(password), cfg.Security.BCryptCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}

		repo := userPostgres.NewUserRepository(db)

		// managers first so reports can point at them
		seeds := []struct {
			Email   string
			Name    string
			Role    user.Role
			Budget  int64
			Manager string
		}{
			{"admin@mail.com", "Padil Admin", user.RoleAdmin, 0, ""},
			{"finance@mail.com", "Fina Finance", user.RoleFinance, 0, ""},
			{"manager@mail.com", "Mira Manager", user.RoleManager, 5000, "admin@mail.com"},
			{"fadhil@mail.com", "Fadhil", user.RoleEmployee, 2000, "manager@mail.com"},
			{"eve@mail.com", "Eve Employee", user.RoleEmployee, 1500, "manager@mail.com"},
		}

		ids := make(map[string]string, len(seeds))
		for _, s := range seeds {
			existing, err := repo.GetByEmail(ctx, s.Email)
			if err == nil {
				fmt.Println("user already exists; skipping:", s.Email)
				ids[s.Email] = existing.ID
				continue
			}
			if !errors.Is(err, errors.ErrUserNotFound) {
				log.Fatalf("failed to look up %s: %v", s.Email, err)
			}

			u := &user.User{
				ID:                  uuid.NewString(),
				Email:               s.Email,
				Name:                s.Name,
				PasswordHash:        string(hash),
				Role:                s.Role,
				ReimbursementBudget: decimal.NewFromInt(s.Budget),
				IsActive:            true,
			}
			if s.Manager != "" {
				managerID, ok := ids[s.Manager]
				if !ok {
					log.Fatalf("manager %s of %s was not seeded", s.Manager, s.Email)
				}
				u.ManagerID = &managerID
			}

			if err := repo.Create(ctx, u); err != nil {
				log.Fatalf("failed to insert %s: %v", s.Email, err)
			}
			ids[s.Email] = u.ID
			fmt.Printf("Seeded %s user: %s\n", s.Role, s.Email)
		}

		fmt.Printf("Seeded users share the password %q\n", password)
	},
}
