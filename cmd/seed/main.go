package main

import (
	"context"
	"log"
	"time"

	"wisebox-backend/internal/auth"
	"wisebox-backend/internal/config"
	"wisebox-backend/internal/db"
	"wisebox-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type seedUser struct {
	Name     string
	Email    string
	Role     string
	Status   string
	Location string
	Phone    string
}

var demoUsers = []seedUser{
	{Name: "System Administrator", Email: "admin@wisebox.com", Role: models.UserRoleAdmin, Status: models.UserStatusActive, Location: "System", Phone: "+1-800-WISEBOX"},
	{Name: "Ahmed Rahman", Email: "ahmed.rahman@email.com", Role: models.UserRoleUser, Status: models.UserStatusActive, Location: "Toronto, Canada", Phone: "+1-416-555-0123"},
	{Name: "Fatima Khatun", Email: "fatima.khatun@email.com", Role: models.UserRoleUser, Status: models.UserStatusActive, Location: "London, UK", Phone: "+44-20-7946-0958"},
	{Name: "Dr. Sarah Khan", Email: "consultant@wisebox.com", Role: models.UserRoleConsultant, Status: models.UserStatusActive, Location: "Dhaka, Bangladesh", Phone: "+880-1234-567890"},
	{Name: "Advocate Rafiq Uddin", Email: "rafiq.legal@email.com", Role: models.UserRoleConsultant, Status: models.UserStatusActive, Location: "Chittagong, Bangladesh", Phone: "+880-1876-543210"},
	{Name: "Mohammad Ali", Email: "mohammad.ali@email.com", Role: models.UserRoleUser, Status: models.UserStatusSuspended, Location: "New York, USA", Phone: "+1-212-555-0199"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, cols, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal(err)
	}
	defer client.Disconnect(context.Background())

	if err := db.EnsureIndexes(ctx, cols); err != nil {
		log.Fatal(err)
	}

	if cfg.SeedDemoPassword == "" {
		log.Println("seed users: SEED_DEMO_PASSWORD missing, skipping demo users")
		log.Println("seed completed")
		return
	}

	// One hash for every demo account keeps the seed fast.
	hash, err := auth.HashPassword(cfg.SeedDemoPassword)
	if err != nil {
		log.Fatalf("seed users: hash error: %v", err)
	}

	for _, u := range demoUsers {
		inserted, err := seedDemoUser(ctx, cols, u, hash, cfg.Timezone)
		if err != nil {
			log.Fatalf("seed user error for %s: %v", u.Email, err)
		}
		if inserted {
			log.Printf("seed user: created %s (%s)", u.Email, u.Role)
		} else {
			log.Printf("seed user: %s already exists, left unchanged", u.Email)
		}
	}

	log.Println("seed completed")
}

// seedDemoUser inserts u unless an account with its email exists.
func seedDemoUser(ctx context.Context, cols *db.Collections, u seedUser, hash string, loc *time.Location) (bool, error) {
	now := time.Now().In(loc)
	update := bson.M{
		"$setOnInsert": bson.M{
			"_id":          primitive.NewObjectID().Hex(),
			"name":         u.Name,
			"email":        u.Email,
			"passwordHash": hash,
			"role":         u.Role,
			"status":       u.Status,
			"location":     u.Location,
			"phone":        u.Phone,
			"createdAt":    now,
			"updatedAt":    now,
		},
	}
	res, err := cols.Users.UpdateOne(ctx, bson.M{"email": u.Email}, update, options.Update().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}
