// seed inserts a handful of scheduled posts into the local dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/tasuboyz/Insta-Publish-Bot/internal/infrastructure/postgres"
)

const seedOwner = "seed-owner"

type postSpec struct {
	imageURL string
	caption  string
	dueIn    time.Duration
}

var posts = []postSpec{
	// Due shortly — the poller should pick these up on its next cycles
	{"https://picsum.photos/seed/one/1080", "first seeded post", time.Minute},
	{"https://picsum.photos/seed/two/1080", "second seeded post", 2 * time.Minute},
	{"https://picsum.photos/seed/three/1080", "third seeded post", 3 * time.Minute},

	// Already past due — fires on the very first cycle
	{"https://picsum.photos/seed/late/1080", "overdue seeded post", -time.Minute},

	// Far future — stays scheduled, good for testing cancel
	{"https://picsum.photos/seed/future/1080", "cancel me", 24 * time.Hour},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	now := time.Now()
	var ids []string
	for _, spec := range posts {
		id := uuid.NewString()
		_, err := pool.Exec(ctx, `
			INSERT INTO posts (id, owner_id, image_url, caption, status, scheduled_at)
			VALUES ($1, $2, $3, $4, 'scheduled', $5)`,
			id, seedOwner, spec.imageURL, spec.caption, now.Add(spec.dueIn),
		)
		if err != nil {
			log.Fatalf("insert post %q: %v", spec.caption, err)
		}
		ids = append(ids, id)
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Owner:         %s\n", seedOwner)
	fmt.Printf("  Posts created: %d\n", len(ids))
	fmt.Println()
	fmt.Println("  Post IDs:")
	for _, id := range ids {
		fmt.Printf("    %s\n", id)
	}
	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Printf("  Sign a JWT with sub=%q using JWT_SECRET, then:\n", seedOwner)
	fmt.Println()
	fmt.Println("    export JWT=eyJ...")
	fmt.Println("    curl -s http://localhost:8080/posts -H \"Authorization: Bearer $JWT\"")
	fmt.Println()
	fmt.Println("  Wait for the poller cycle (default 60s) and list again to see outcomes.")
}
