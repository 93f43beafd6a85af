package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/resume-vault/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to the database named by DATABASE_URL for integration
// testing. Skipped if it is not set or the connection fails.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	db, err := Connect(ctx, dbURL)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to DB: %v", err)
	}
	require.NoError(t, db.Migrate(context.Background()))
	t.Cleanup(db.Close)
	return db
}

func repositories(t *testing.T) map[string]func(t *testing.T) Users {
	return map[string]func(t *testing.T) Users{
		"memory":   func(*testing.T) Users { return NewMemory() },
		"postgres": func(t *testing.T) Users { return setupTestDB(t) },
	}
}

// unique keeps usernames distinct across runs against a shared database.
func unique(name string) string {
	return name + "-" + uuid.NewString()[:8]
}

func TestUsers_CRUD(t *testing.T) {
	for name, open := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()

			username := unique("bob")
			u, err := repo.CreateUser(ctx, username, "hash-1", types.RoleBidder)
			require.NoError(t, err)
			assert.NotEmpty(t, u.ID)
			assert.Equal(t, types.RoleBidder, u.Role)

			_, err = repo.CreateUser(ctx, username, "hash-2", types.RoleBidder)
			var taken *ErrUsernameTaken
			assert.ErrorAs(t, err, &taken)

			got, err := repo.GetUserByUsername(ctx, username)
			require.NoError(t, err)
			assert.Equal(t, u.ID, got.ID)
			assert.Equal(t, "hash-1", got.PasswordHash)

			require.NoError(t, repo.SetPassword(ctx, u.ID, "hash-3"))
			got, err = repo.GetUser(ctx, u.ID)
			require.NoError(t, err)
			assert.Equal(t, "hash-3", got.PasswordHash)

			require.NoError(t, repo.DeleteUser(ctx, u.ID))
			_, err = repo.GetUser(ctx, u.ID)
			var missing *ErrUserNotFound
			assert.ErrorAs(t, err, &missing)
			assert.ErrorAs(t, repo.DeleteUser(ctx, u.ID), &missing)
		})
	}
}

func TestUsers_Assignments(t *testing.T) {
	for name, open := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()

			bidder, err := repo.CreateUser(ctx, unique("bidder"), "h", types.RoleBidder)
			require.NoError(t, err)
			dev, err := repo.CreateUser(ctx, unique("dev"), "h", types.RoleDeveloper)
			require.NoError(t, err)

			var invalid *ErrInvalidAssignment
			assert.ErrorAs(t, repo.Assign(ctx, dev.ID, bidder.ID), &invalid, "roles reversed")

			require.NoError(t, repo.Assign(ctx, bidder.ID, dev.ID))
			assigned, err := repo.ListAssignedBidders(ctx, dev.ID)
			require.NoError(t, err)
			require.Len(t, assigned, 1)
			assert.Equal(t, bidder.ID, assigned[0].ID)
			assert.Equal(t, dev.ID, assigned[0].DeveloperID)

			// Demoting the developer releases its bidders.
			require.NoError(t, repo.SetRole(ctx, dev.ID, types.RoleBidder))
			assigned, err = repo.ListAssignedBidders(ctx, dev.ID)
			require.NoError(t, err)
			assert.Empty(t, assigned)

			require.NoError(t, repo.SetRole(ctx, dev.ID, types.RoleDeveloper))
			require.NoError(t, repo.Assign(ctx, bidder.ID, dev.ID))
			require.NoError(t, repo.DeleteUser(ctx, dev.ID))
			got, err := repo.GetUser(ctx, bidder.ID)
			require.NoError(t, err)
			assert.Empty(t, got.DeveloperID, "deleting a developer unassigns its bidders")

			require.NoError(t, repo.DeleteUser(ctx, bidder.ID))
		})
	}
}

func TestMemory_ListUsersSorted(t *testing.T) {
	repo := NewMemory()
	ctx := context.Background()
	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := repo.CreateUser(ctx, name, "h", types.RoleBidder)
		require.NoError(t, err)
	}
	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	var names []string
	for _, u := range users {
		names = append(names, u.Username)
	}
	assert.Equal(t, []string{"alice", "bob", "carol"}, names)
}

func TestUser_PublicDropsHash(t *testing.T) {
	u := User{ID: "1", Username: "bob", PasswordHash: "secret", Role: types.RoleBidder, DeveloperID: "2"}
	assert.Equal(t, types.User{ID: "1", Username: "bob", Role: types.RoleBidder, DeveloperID: "2"}, u.Public())
}
