package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	recruitingDatamodel "github.com/frahmantamala/messaging-permissions/internal/core/datamodel/recruiting"
	subscriptionDatamodel "github.com/frahmantamala/messaging-permissions/internal/core/datamodel/subscription"
	userDatamodel "github.com/frahmantamala/messaging-permissions/internal/core/datamodel/user"
	coreuser "github.com/frahmantamala/messaging-permissions/internal/core/user"
	"github.com/frahmantamala/messaging-permissions/internal/subscription"
	"github.com/frahmantamala/messaging-permissions/pkg/logger"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		if cfg.Database.Driver == "memory" {
			log.Fatal("the memory driver is seeded by the server on startup")
		}

		storage, err := openStorage(cfg.Database, logger.LoggerWrapper())
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer storage.Close()

		if err := seedDemoData(context.Background(), storage.Gorm, cfg.Security.BCryptCost, clearData); err != nil {
			log.Fatalf("failed to seed: %v", err)
		}
		fmt.Println("Seeding completed. Every demo account uses the password \"password\".")
	},
}

type demoUser struct {
	Email string
	Name  string
	Role  coreuser.Role
}

var demoUsers = []demoUser{
	{"admin@mail.com", "Platform Admin", coreuser.RoleAdmin},
	{"acme@mail.com", "Acme Hiring", coreuser.RoleEmployer},
	{"startup@mail.com", "Tiny Startup", coreuser.RoleEmployer},
	{"fadhil@mail.com", "Fadhil", coreuser.RoleJobSeeker},
	{"padil@mail.com", "Padil", coreuser.RoleJobSeeker},
}

// seedDemoData inserts the demo accounts plus one job per employer, an
// enterprise subscription for acme and a free one for startup, and an
// application from fadhil to acme. Existing users are left alone.
func seedDemoData(ctx context.Context, db *gorm.DB, bcryptCost int, clear bool) error {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if clear {
			for _, table := range []string{"messaging_permissions", "applications", "jobs", "subscriptions", "users"} {
				if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
					return fmt.Errorf("clear %s: %w", table, err)
				}
			}
		}

		ids := make(map[string]string, len(demoUsers))
		for _, du := range demoUsers {
			var existing userDatamodel.User
			err := tx.Where("email = ?", du.Email).Take(&existing).Error
			if err == nil {
				ids[du.Email] = existing.ID
				fmt.Println(du.Email, "already exists; skipping")
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("look up %s: %w", du.Email, err)
			}

			row := userDatamodel.User{
				ID:           uuid.NewString(),
				Email:        du.Email,
				Name:         du.Name,
				PasswordHash: string(hash),
				Role:         string(du.Role),
				IsActive:     true,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("insert %s: %w", du.Email, err)
			}
			ids[du.Email] = row.ID
			fmt.Println("Seeded user:", du.Email, "role:", du.Role)
		}

		acme, startup, fadhil := ids["acme@mail.com"], ids["startup@mail.com"], ids["fadhil@mail.com"]

		periodEnd := time.Now().UTC().AddDate(1, 0, 0)
		subs := []subscriptionDatamodel.Subscription{
			{ID: uuid.NewString(), UserID: acme, Plan: string(subscription.PlanEnterprise), Status: string(subscription.StatusActive), MessagingEnabled: true, CurrentPeriodEnd: &periodEnd},
			{ID: uuid.NewString(), UserID: startup, Plan: string(subscription.PlanFree), Status: string(subscription.StatusActive)},
		}
		for i := range subs {
			var count int64
			if err := tx.Model(&subscriptionDatamodel.Subscription{}).Where("user_id = ?", subs[i].UserID).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			if err := tx.Create(&subs[i]).Error; err != nil {
				return fmt.Errorf("insert subscription: %w", err)
			}
		}

		jobs := map[string]*recruitingDatamodel.Job{}
		for _, employer := range []string{acme, startup} {
			var job recruitingDatamodel.Job
			err := tx.Where("employer_id = ?", employer).Take(&job).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				job = recruitingDatamodel.Job{ID: uuid.NewString(), EmployerID: employer, Title: "Backend Engineer", Status: "open"}
				if err := tx.Create(&job).Error; err != nil {
					return fmt.Errorf("insert job: %w", err)
				}
			} else if err != nil {
				return err
			}
			jobs[employer] = &job
		}

		var count int64
		if err := tx.Model(&recruitingDatamodel.Application{}).
			Where("candidate_id = ? AND job_id = ?", fadhil, jobs[acme].ID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			app := recruitingDatamodel.Application{ID: uuid.NewString(), JobID: jobs[acme].ID, CandidateID: fadhil, Status: "submitted"}
			if err := tx.Create(&app).Error; err != nil {
				return fmt.Errorf("insert application: %w", err)
			}
			fmt.Println("Seeded application: fadhil -> acme")
		}

		return nil
	})
}
