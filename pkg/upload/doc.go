// Package upload is the storefront's upload service.
//
// Each request goes through the same pipeline: authorize the caller, check
// the files against the route's constraints, store them, then run the
// completion hook. Authorization happens before the body is read, and the
// content type is detected server side with http.DetectContentType; the
// part's Content-Type header is never trusted.
//
// # Usage
//
//	store, _ := upload.NewDiskStore("./uploads", 4<<20)
//	h := upload.Router(upload.RouterConfig{
//	    Store:      store,
//	    Authorizer: upload.NewJWTAuthorizer(secret),
//	})
//	srv := upload.NewServer(upload.ServerConfig{Handler: h, Store: store})
//	err := srv.Run(ctx)
//
// The default route is "imageUploader" at POST /api/upload/image: a single
// image of at most 4MB. Files stay pending until claimed:
//
//	file, err := upload.Claim(ctx, store, id)
//	if err != nil {
//	    return err
//	}
//	defer file.Close()
package upload
