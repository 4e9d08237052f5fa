package main

import (
	"context"
	"log"
	"os"
	"time"

	"compclient/internal/repository"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}
	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "compdb"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(dbName)
	if err := repository.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	questions := repository.NewQuestionRepo(db)
	seeded := 0
	for _, q := range repository.SampleQuestions() {
		if err := q.Validate(); err != nil {
			log.Fatalf("Refusing to seed invalid question: %v", err)
		}
		if err := questions.Upsert(ctx, &q); err != nil {
			log.Fatalf("Failed to upsert question %s: %v", q.ID, err)
		}
		seeded++
	}

	log.Printf("Seeded %d questions into %s", seeded, dbName)
}
