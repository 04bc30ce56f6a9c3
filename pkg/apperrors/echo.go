package apperrors

import (
	"github.com/labstack/echo/v4"
)

// ToHTTP converts a service error into an echo HTTP error, keeping the
// original error as the internal cause for logging.
func ToHTTP(err error) *echo.HTTPError {
	he := echo.NewHTTPError(HTTPStatus(err), PublicMessage(err))
	he.Internal = err
	return he
}
