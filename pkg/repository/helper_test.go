package repository_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/db4dd/db4dd/pkg/domain/interfaces"
	"github.com/db4dd/db4dd/pkg/repository/firestore"
	"github.com/db4dd/db4dd/pkg/repository/memory"
	"github.com/db4dd/db4dd/pkg/repository/redis"
	"github.com/db4dd/db4dd/pkg/repository/sqlite"
	"github.com/m-mizutani/gt"
)

type repoFactory struct {
	name string
	new  func(t *testing.T) interfaces.Repository
}

func allRepositories() []repoFactory {
	return []repoFactory{
		{name: "memory", new: newMemoryRepository},
		{name: "sqlite", new: newSQLiteRepository},
		{name: "redis", new: newRedisRepository},
		{name: "firestore", new: newFirestoreRepository},
	}
}

func newMemoryRepository(t *testing.T) interfaces.Repository {
	return memory.New()
}

func newSQLiteRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	path := filepath.Join(t.TempDir(), "state", "db4dd.db")
	repo, err := sqlite.New(context.Background(), path)
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func newRedisRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	prefix := fmt.Sprintf("test_%d", time.Now().UnixNano())
	repo, err := redis.New(context.Background(), url, redis.WithKeyPrefix(prefix))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	prefix := fmt.Sprintf("test_%d", time.Now().UnixNano())
	repo, err := firestore.New(context.Background(), projectID, databaseID, firestore.WithCollectionPrefix(prefix))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		gt.NoError(t, repo.Close())
	})
	return repo
}
