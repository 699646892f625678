// Package catalog is the storefront's client for the product catalog API.
//
// The catalog API is an external collaborator: it answers product queries
// with JSON and signs users in. Any non-2xx answer fails the request with a
// *StatusError; nothing is retried.
//
// Usage:
//
//	client := catalog.NewClient("http://localhost:8080",
//	    catalog.WithTokenSource(sessionStore),
//	)
//
//	home, err := client.Home(ctx)
//	page, err := client.Products(ctx, catalog.Query{Search: "lamp", Limit: 8})
//
//	token, user, err := client.SignIn(ctx, email, password)
//	if err == nil {
//	    err = sessionStore.Set(ctx, token, user)
//	}
package catalog
