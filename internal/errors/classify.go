package errors

import (
	stderrors "errors"
	"net"
	"net/http"
	"net/url"

	"github.com/vango-dev/storefront/internal/config"
	"github.com/vango-dev/storefront/pkg/catalog"
	"github.com/vango-dev/storefront/pkg/session"
	"github.com/vango-dev/storefront/pkg/upload"
)

// Classify maps err onto a registered code. Errors nobody registered a code
// for are returned as an uncoded CLI error carrying the original message.
func Classify(err error) *StorefrontError {
	if err == nil {
		return nil
	}

	var se *StorefrontError
	if stderrors.As(err, &se) {
		return se
	}

	// Session
	var hydrateErr *session.HydrationError
	if stderrors.As(err, &hydrateErr) {
		return New("S101").Wrap(err)
	}
	var persistErr *session.PersistError
	if stderrors.As(err, &persistErr) {
		return New("S102").Wrap(err)
	}
	if stderrors.Is(err, session.ErrPartialSession) {
		return New("S103").Wrap(err)
	}
	if stderrors.Is(err, session.ErrInvalidUser) {
		return New("S106").Wrap(err)
	}
	if stderrors.As(err, new(session.ErrStorageClosed)) {
		return New("S104").Wrap(err)
	}

	// Catalog
	if stderrors.Is(err, catalog.ErrInvalidSignIn) {
		return New("S201").Wrap(err)
	}
	var statusErr *catalog.StatusError
	if stderrors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusUnauthorized {
			return New("S201").Wrap(err)
		}
		return New("S202").Wrap(err)
	}

	// Upload
	switch {
	case stderrors.Is(err, upload.ErrUnauthorized):
		return New("S301").Wrap(err)
	case stderrors.Is(err, upload.ErrTooLarge):
		return New("S302").Wrap(err)
	case stderrors.Is(err, upload.ErrTypeNotAllowed):
		return New("S303").Wrap(err)
	case stderrors.Is(err, upload.ErrNotFound):
		return New("S304").Wrap(err)
	}

	// Config
	var syntaxErr *config.SyntaxError
	if stderrors.As(err, &syntaxErr) {
		return New("S401").
			WithLocation(syntaxErr.File, syntaxErr.Line, syntaxErr.Column).
			Wrap(syntaxErr.Err)
	}
	var validationErr *config.ValidationError
	if stderrors.As(err, &validationErr) {
		return New("S402").
			WithDetail(validationErr.Field + ": " + validationErr.Reason)
	}
	if stderrors.Is(err, config.ErrEnv) {
		return New("S403").Wrap(err)
	}

	// Transport
	var urlErr *url.Error
	var netErr net.Error
	if stderrors.As(err, &urlErr) || stderrors.As(err, &netErr) {
		return New("S203").Wrap(err)
	}

	return Newf(CategoryCLI, "%s", err.Error())
}
