// Command reset-password sets an account's password and optionally its role.
// It also creates the account when none exists, which is how the first admin
// is provisioned:
//
//	go run ./cmd/reset-password -email admin@example.com -password 'Admin123!' -role admin
package main

import (
	"flag"
	"log"
	"strings"

	"go-marketplace/internal/config"
	"go-marketplace/internal/model"
	"go-marketplace/internal/repository"
	"go-marketplace/pkg/database"
	"go-marketplace/pkg/validator"
)

func main() {
	email := flag.String("email", "", "account e-mail (required)")
	password := flag.String("password", "", "new password (required)")
	role := flag.String("role", "", "set role to user or admin (optional)")
	flag.Parse()

	*email = strings.ToLower(strings.TrimSpace(*email))
	if *email == "" || *password == "" {
		flag.Usage()
		log.Fatal("❌ -email and -password are required")
	}
	if !validator.IsStrongPassword(*password) {
		log.Fatal("❌ Password must be 8-128 chars with upper, lower, digit and one of @$!%*?&")
	}
	if *role != "" && *role != model.RoleUser && *role != model.RoleAdmin {
		log.Fatalf("❌ Unknown role %q", *role)
	}

	// 1. Load Env
	config.LoadEnv()
	cfg := config.Load()

	// 2. Setup Database
	db, err := database.ConnectDB(cfg.DB.DSN(), false)
	if err != nil {
		log.Fatalf("❌ Database connection failed: %v", err)
	}
	defer database.Close(db)

	if err := db.AutoMigrate(&model.User{}); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	userRepo := repository.NewUserRepo(db)

	// 3. Find account
	user, err := userRepo.FindByEmail(*email)
	if err != nil {
		log.Fatalf("❌ Lookup failed: %v", err)
	}

	// 4. Hash new password
	target := &model.User{}
	if err := target.SetPassword(*password); err != nil {
		log.Fatalf("❌ Failed to hash password: %v", err)
	}

	if user == nil {
		target.Email = *email
		target.Username = strings.SplitN(*email, "@", 2)[0]
		target.Role = model.RoleUser
		target.AuthProvider = model.ProviderLocal
		if *role != "" {
			target.Role = *role
		}
		if err := userRepo.Create(target); err != nil {
			log.Fatalf("❌ Failed to create user: %v", err)
		}
		log.Printf("✅ Created %s (%s) with id %s", target.Email, target.Role, target.ID)
		return
	}

	// 5. Update
	if err := userRepo.UpdatePassword(user.ID, *target.Password); err != nil {
		log.Fatalf("❌ Failed to update password in DB: %v", err)
	}
	if err := userRepo.UpdateAccessToken(user.ID, nil); err != nil {
		log.Fatalf("❌ Failed to revoke session: %v", err)
	}
	if *role != "" && *role != user.Role {
		// the repository's profile update refuses role changes
		if err := db.Model(&model.User{}).Where("id = ?", user.ID).Update("role", *role).Error; err != nil {
			log.Fatalf("❌ Failed to update role: %v", err)
		}
		log.Printf("Role for %s changed %s -> %s", user.Email, user.Role, *role)
	}

	log.Printf("✅ Success! Password for %s has been reset", user.Email)
}
