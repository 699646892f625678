// Package session provides the storefront's client-side session state.
//
// A Store holds the authentication token and user profile for the running
// process. Every mutation is mirrored to a durable key/value Storage so that
// a restarted process restores the session without a round trip to the
// catalog API.
//
// # Storage
//
// Storage backends are pluggable:
//
//	storage := session.NewMemoryStorage()
//	// or
//	dir, err := os.UserConfigDir()
//	...
//	storage, err := session.NewFileStorage(filepath.Join(dir, "storefront", "storage.json"))
//	// or
//	storage := session.NewRedisStorage(redisClient)
//	// or
//	storage, err := session.OpenSQLite(ctx, "storefront.db")
//
// A nil Storage or Unavailable{} disables persistence. The store behaves the
// same in memory either way.
//
// # Usage
//
//	store := session.NewStore(storage)
//	if err := store.Hydrate(ctx); err != nil {
//	    // stored user entry is corrupt; the session starts empty
//	}
//
//	unsubscribe := store.Subscribe(func(s session.Session) {
//	    fmt.Println("logged in:", s.LoggedIn())
//	})
//	defer unsubscribe()
//
//	err := store.Set(ctx, token, &session.User{ID: 7, Email: "a@b.c"})
//	...
//	err = store.Clear(ctx)
//
// # Durable entries
//
// Two string entries are written or removed together:
//
//	token -> raw bearer token
//	user  -> {"id":7,"email":"...","firstName":"...","lastName":"...","role":"...","phone":"..."}
package session
