package remote

import (
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"capturesync/internal/services"
)

// authReasons are API error reasons that mean the credential grant itself is
// invalid or revoked. Permission denials on a folder or bucket are not among
// them: re-linking cannot fix those, so they spend the retry budget.
var authReasons = map[string]struct{}{
	"authError":          {},
	"invalidCredentials": {},
}

// Classify tags a storage API or token error with its failure kind.
func Classify(operation, target string, err error) error {
	if err == nil {
		return nil
	}
	if isAuthFailure(err) {
		return services.AuthExpired(operation, err)
	}
	return services.Transient(operation, target, err)
}

func isAuthFailure(err error) bool {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		switch retrieve.ErrorCode {
		case "invalid_grant", "unauthorized_client", "invalid_client":
			return true
		}
		if retrieve.Response != nil {
			code := retrieve.Response.StatusCode
			return code == http.StatusBadRequest || code == http.StatusUnauthorized
		}
		return false
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == http.StatusUnauthorized {
		return true
	}
	if apiErr.Code == http.StatusForbidden {
		for _, item := range apiErr.Errors {
			if _, ok := authReasons[item.Reason]; ok {
				return true
			}
		}
	}
	return false
}

// IsNotFound reports whether the API answered 404.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
