package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// The database backends run the shared contract only when a server is
// available. Mongo needs a replica set for transactions.

func TestMongoStoreContract(t *testing.T) {
	uri := os.Getenv("CIVICWATCH_TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("CIVICWATCH_TEST_MONGODB_URI not set")
	}
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	runStoreContract(t, func(t *testing.T) Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		require.NoError(t, err)

		database := "civicwatch_test_" + primitive.NewObjectID().Hex()
		s := NewMongoStore(client, database)
		require.NoError(t, s.EnsureIndexes(ctx))

		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = client.Database(database).Drop(ctx)
			_ = client.Disconnect(ctx)
		})
		return s
	})
}

func TestPostgresStoreContract(t *testing.T) {
	url := os.Getenv("CIVICWATCH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CIVICWATCH_TEST_DATABASE_URL not set")
	}
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	runStoreContract(t, func(t *testing.T) Store {
		ctx := context.Background()
		db, err := Open(ctx, url)
		require.NoError(t, err)
		require.NoError(t, ApplyMigrations(ctx, db))

		_, err = db.ExecContext(ctx, `TRUNCATE issue_images, comments, upvotes, issues, issue_categories, users`)
		require.NoError(t, err)

		t.Cleanup(func() { _ = db.Close() })
		return NewPostgresStore(db)
	})
}
