// Package errors provides the coded, explained errors the storefront CLI
// prints in place of bare error strings.
//
// Every failure a command can surface maps to a code:
//   - S1xx: session and storage (restore, persist, closed storage)
//   - S2xx: catalog (sign-in, error statuses, unreachable server)
//   - S3xx: upload (authorization, size and type limits)
//   - S4xx: configuration (syntax, validation, environment)
//   - S5xx: command line arguments
//
// Each code carries a short message, a longer explanation and, where one
// exists, a hint on how to fix it.
//
// # Usage
//
//	err := errors.New("S103").WithSuggestion("Pass both --token and --user-json.")
//
// Errors returned by the packages below are mapped with Classify:
//
//	if err := cmd.Execute(); err != nil {
//	    errors.PrintError(os.Stderr, err)
//	    os.Exit(1)
//	}
//
// Configuration syntax errors point into storefront.json:
//
//	ERROR S401: Invalid configuration file
//
//	  storefront.json:3:16
//
//	       2 │   "storage": {
//	  →    3 │     "backend": memory
//	         │                ^
//	       4 │   }
package errors
