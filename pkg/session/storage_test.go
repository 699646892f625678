package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type closableStorage interface {
	BatchStorage
	Close() error
}

func mustGet(t *testing.T, s Storage, key string) (string, bool) {
	t.Helper()
	v, ok, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", key, err)
	}
	return v, ok
}

// testStorage runs the behavior every backend must share.
func testStorage(t *testing.T, s closableStorage) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		if v, ok := mustGet(t, s, "missing"); ok || v != "" {
			t.Errorf("Get(missing) = %q, %v; want \"\", false", v, ok)
		}
	})

	t.Run("SetGet", func(t *testing.T) {
		if err := s.Set(ctx, "greeting", "hello"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if v, ok := mustGet(t, s, "greeting"); !ok || v != "hello" {
			t.Errorf("Get(greeting) = %q, %v; want \"hello\", true", v, ok)
		}

		if err := s.Set(ctx, "greeting", "bonjour"); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if v, _ := mustGet(t, s, "greeting"); v != "bonjour" {
			t.Errorf("Get(greeting) = %q, want \"bonjour\"", v)
		}
	})

	t.Run("EmptyValueIsPresent", func(t *testing.T) {
		if err := s.Set(ctx, "blank", ""); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		if v, ok := mustGet(t, s, "blank"); !ok || v != "" {
			t.Errorf("Get(blank) = %q, %v; want \"\", true", v, ok)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		if err := s.Remove(ctx, "greeting"); err != nil {
			t.Fatalf("Remove() error = %v", err)
		}
		if _, ok := mustGet(t, s, "greeting"); ok {
			t.Error("Get(greeting) found a removed entry")
		}
		if err := s.Remove(ctx, "never-set"); err != nil {
			t.Errorf("Remove(never-set) error = %v", err)
		}
	})

	t.Run("SetManyRemoveMany", func(t *testing.T) {
		if err := s.SetMany(ctx, map[string]string{
			TokenKey: "tok",
			UserKey:  `{"id":1}`,
		}); err != nil {
			t.Fatalf("SetMany() error = %v", err)
		}
		for _, key := range []string{TokenKey, UserKey} {
			if _, ok := mustGet(t, s, key); !ok {
				t.Errorf("Get(%q) missing after SetMany", key)
			}
		}

		if err := s.RemoveMany(ctx, TokenKey, UserKey); err != nil {
			t.Fatalf("RemoveMany() error = %v", err)
		}
		for _, key := range []string{TokenKey, UserKey} {
			if _, ok := mustGet(t, s, key); ok {
				t.Errorf("Get(%q) present after RemoveMany", key)
			}
		}
	})

	t.Run("BacksStore", func(t *testing.T) {
		first := NewStore(s)
		if err := first.Set(ctx, "tok", testUser()); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		second, err := Open(ctx, s)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		wantSession(t, second.Read(), "tok", testUser())

		if err := second.Clear(ctx); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		third, err := Open(ctx, s)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		if third.Read().LoggedIn() {
			t.Error("restored a session after Clear")
		}
	})

	t.Run("Closed", func(t *testing.T) {
		if err := s.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		if err := s.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}

		_, _, getErr := s.Get(ctx, "greeting")
		ops := map[string]error{
			"Get":        getErr,
			"Set":        s.Set(ctx, "k", "v"),
			"Remove":     s.Remove(ctx, "k"),
			"SetMany":    s.SetMany(ctx, map[string]string{"k": "v"}),
			"RemoveMany": s.RemoveMany(ctx, "k"),
		}
		for name, err := range ops {
			if !errors.Is(err, ErrStorageClosed{}) {
				t.Errorf("%s after Close error = %v, want ErrStorageClosed", name, err)
			}
		}
	})
}

func TestMemoryStorage(t *testing.T) {
	testStorage(t, NewMemoryStorage())
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.json")
	s, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	if s.Path() != path {
		t.Errorf("Path() = %q, want %q", s.Path(), path)
	}
	testStorage(t, s)
}

func TestFileStorage_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storage.json")

	s, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	if err := NewStore(s).Set(ctx, "tok", testUser()); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	reopened, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("NewFileStorage(reopen) error = %v", err)
	}
	restored, err := Open(ctx, reopened)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := restored.Token(); got != "tok" {
		t.Errorf("Token() = %q, want %q", got, "tok")
	}
}

func TestFileStorage_CorruptFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "storage.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := NewFileStorage(path)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}

	_, err = Open(ctx, s)
	var herr *HydrationError
	if !errors.As(err, &herr) {
		t.Fatalf("Open() error = %v, want *HydrationError", err)
	}
	if herr.Key != TokenKey {
		t.Errorf("HydrationError.Key = %q, want %q", herr.Key, TokenKey)
	}
}

func newMiniredisClient(t *testing.T, opts *redis.Options) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	opts.Addr = mr.Addr()
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStorage(t *testing.T) {
	_, client := newMiniredisClient(t, &redis.Options{})

	s := NewRedisStorage(client)
	if got := s.Prefix(); got != "storefront:" {
		t.Errorf("Prefix() = %q, want %q", got, "storefront:")
	}
	testStorage(t, s)
}

func TestRedisStorage_PrefixAndTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredisClient(t, &redis.Options{})

	s := NewRedisStorage(client, WithRedisPrefix("shop:"), WithRedisTTL(time.Hour))
	if err := s.SetMany(ctx, map[string]string{TokenKey: "tok"}); err != nil {
		t.Fatalf("SetMany() error = %v", err)
	}

	if !mr.Exists("shop:token") {
		t.Fatal("shop:token not written")
	}
	if ttl := mr.TTL("shop:token"); ttl != time.Hour {
		t.Errorf("TTL = %v, want %v", ttl, time.Hour)
	}

	mr.FastForward(2 * time.Hour)
	if _, ok := mustGet(t, s, TokenKey); ok {
		t.Error("token still present after TTL expiry")
	}
}

func TestRedisStorage_Unreachable(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredisClient(t, &redis.Options{MaxRetries: -1})
	mr.Close()

	store := NewStore(NewRedisStorage(client))
	err := store.Hydrate(ctx)
	var herr *HydrationError
	if !errors.As(err, &herr) {
		t.Fatalf("Hydrate() error = %v, want *HydrationError", err)
	}
	if got := store.Read(); got != (Session{}) {
		t.Errorf("Read() = %+v, want empty session", got)
	}
}

func TestSQLStorage_SQLite(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "storefront.db"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	testStorage(t, s)
}

func TestSQLStorage_CustomTable(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "storefront.db"), WithSQLTableName("client_storage"))
	if err != nil {
		t.Fatalf("OpenSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Set(ctx, TokenKey, "tok"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM client_storage`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Errorf("rows = %d, want 1", count)
	}
}

func TestSQLStorage_Placeholders(t *testing.T) {
	pg := NewSQLStorage(nil)
	if got := pg.placeholder(2); got != "$2" {
		t.Errorf("postgres placeholder(2) = %q, want %q", got, "$2")
	}
	if q := pg.upsertQuery(); !strings.Contains(q, "EXCLUDED.value") {
		t.Errorf("postgres upsert = %q", q)
	}

	my := NewSQLStorage(nil, WithSQLDialect(DialectMySQL))
	if got := my.placeholder(2); got != "?" {
		t.Errorf("mysql placeholder(2) = %q, want %q", got, "?")
	}
	if q := my.upsertQuery(); !strings.Contains(q, "ON DUPLICATE KEY UPDATE") {
		t.Errorf("mysql upsert = %q", q)
	}
}

func TestOpenSQLite_RequiresPath(t *testing.T) {
	if _, err := OpenSQLite(context.Background(), "  "); err == nil {
		t.Error("OpenSQLite(blank) error = nil, want error")
	}
}

func TestSetEntries_WithoutBatch(t *testing.T) {
	ctx := context.Background()
	storage := newPlainStorage()
	storage.entries[TokenKey] = "old-token"
	storage.entries[UserKey] = "old-user"

	if err := setEntries(ctx, storage, map[string]string{TokenKey: "new-token", UserKey: "new-user"}); err != nil {
		t.Fatalf("setEntries() error = %v", err)
	}
	if v, _ := mustGet(t, storage, TokenKey); v != "new-token" {
		t.Errorf("token = %q, want %q", v, "new-token")
	}
	if v, _ := mustGet(t, storage, UserKey); v != "new-user" {
		t.Errorf("user = %q, want %q", v, "new-user")
	}

	storage.failToken = true
	if err := setEntries(ctx, storage, map[string]string{TokenKey: "next-token", UserKey: "next-user"}); !errors.Is(err, errTokenWrite) {
		t.Fatalf("setEntries() error = %v, want %v", err, errTokenWrite)
	}
	if _, ok := mustGet(t, storage, TokenKey); ok {
		t.Error("old token survived a failed token write")
	}
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	var u Unavailable
	if available(u) {
		t.Error("available(Unavailable{}) = true")
	}
	if available(nil) {
		t.Error("available(nil) = true")
	}
	if !available(NewMemoryStorage()) {
		t.Error("available(MemoryStorage) = false")
	}

	if err := u.Set(ctx, "k", "v"); err != nil {
		t.Errorf("Set() error = %v", err)
	}
	if _, ok := mustGet(t, u, "k"); ok {
		t.Error("Unavailable kept a value")
	}
	if err := u.Remove(ctx, "k"); err != nil {
		t.Errorf("Remove() error = %v", err)
	}
}
