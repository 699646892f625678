// Package config loads storefront configuration.
//
// Settings come from three layers, later ones winning:
//
//  1. storefront.json in the project directory (optional)
//  2. .env next to it, loaded into the environment without overriding
//     variables that are already set
//  3. STOREFRONT_* environment variables
//
// Anything still unset gets a default. Secrets (the upload JWT secret and
// S3 keys) are read from the environment only.
//
// # Configuration File Structure
//
//	{
//	  "storage": {
//	    "backend": "redis",
//	    "redis": {"addr": "localhost:6379", "prefix": "storefront:", "ttl": "720h"}
//	  },
//	  "catalog": {
//	    "baseURL": "http://localhost:8080",
//	    "timeout": "10s"
//	  },
//	  "upload": {
//	    "addr": ":8145",
//	    "dir": "uploads",
//	    "maxFileSize": 4194304,
//	    "allowedOrigins": ["http://localhost:5173"]
//	  },
//	  "log": {"level": "info", "format": "text"}
//	}
//
// # Environment
//
// Every field has a variable named after its path, e.g.
// STOREFRONT_STORAGE_BACKEND, STOREFRONT_STORAGE_REDIS_ADDR,
// STOREFRONT_CATALOG_URL, STOREFRONT_UPLOAD_JWT_SECRET.
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Catalog:", cfg.Catalog.BaseURL)
package config
