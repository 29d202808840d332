package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/looks-entitlements/internal/billing"
	"github.com/tbourn/looks-entitlements/internal/catalog"
	"github.com/tbourn/looks-entitlements/internal/domain"
	"github.com/tbourn/looks-entitlements/internal/repo"
)

// newTestDB opens a migrated in-memory database unique to the test. A single
// connection serializes transactions the way row locks would.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

// newPooledDB opens a migrated file database through repo.Open, so
// concurrent callers get separate connections and race inside SQLite.
func newPooledDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.Open(repo.DriverSQLite, filepath.Join(t.TempDir(), "looks.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

// storages runs a concurrency test against both test databases.
var storages = []struct {
	name string
	open func(*testing.T) *gorm.DB
}{
	{"single-conn", newTestDB},
	{"pooled-file", newPooledDB},
}

// fakeBilling is an in-memory SubscriberLookup.
type fakeBilling struct {
	mu    sync.Mutex
	subs  map[string]*billing.Subscriber
	err   error
	calls int
}

func (f *fakeBilling) GetSubscriber(_ context.Context, id string) (*billing.Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if s, ok := f.subs[id]; ok {
		return s, nil
	}
	return nil, billing.ErrSubscriberNotFound
}

func (f *fakeBilling) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func packPurchase(id, txn string, at time.Time) billing.NonSubscription {
	return billing.NonSubscription{ID: id, StoreTransactionID: txn, PurchaseDate: at}
}

func seedGenerations(t *testing.T, db *gorm.DB, userID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, db.Create(&domain.Generation{
			ID:     fmt.Sprintf("%s-g%d", userID, i),
			UserID: userID,
			Status: domain.GenerationSucceeded,
		}).Error)
	}
}

func requireMirrored(t *testing.T, db *gorm.DB, userID string, want int) {
	t.Helper()
	e, err := repo.GetEntitlement(context.Background(), db, userID)
	require.NoError(t, err)
	c, err := repo.GetCredits(context.Background(), db, userID)
	require.NoError(t, err)
	require.Equal(t, want, e.ConsumableBalance, "entitlement balance")
	require.Equal(t, want, c.Balance, "mirrored balance")
}

func testCatalog() *catalog.Catalog { return catalog.Default() }
