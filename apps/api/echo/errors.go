package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/authz"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errAuthenticationFailed = echo.NewHTTPError(http.StatusBadRequest, "authentication failed")
	errAccountDeactivated   = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired       = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound         = echo.NewHTTPError(http.StatusNotFound, "not found")
)

var notFoundErrs = []error{
	user.ErrNotFound,
	school.ErrNotFound,
	school.ErrStreamNotFound,
	school.ErrSubjectNotFound,
	school.ErrStudentNotFound,
	assignment.ErrNotFound,
	exam.ErrNotFound,
	exam.ErrSettingNotFound,
	exam.ErrResultNotFound,
	exam.ErrGradingNotFound,
}

var conflictErrs = []error{
	exam.ErrStatusConflict,
	exam.ErrResultsFrozen,
	exam.ErrExamHasResults,
	exam.ErrExamNotDraft,
	assignment.ErrExists,
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case authz.Error:
			code = http.StatusForbidden
			message = echo.Map{
				"error":  origErr.Error(),
				"gate":   string(origErr.Gate),
				"reason": string(origErr.Reason),
			}
		case authz.UnknownGateError, assignment.UnknownCapabilityError:
			code = http.StatusBadRequest
			message = origErr.Error()
		case exam.ConfigError:
			code = http.StatusBadRequest
			message = echo.Map{
				"error":      origErr.Error(),
				"subject_id": origErr.SubjectID,
				"rule":       origErr.Rule,
			}
		case exam.InvalidTransitionError:
			code = http.StatusConflict
			message = origErr.Error()
		case exam.IncompleteEntryError:
			code = http.StatusBadRequest
			message = origErr.Error()
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if matchesAny(cause, notFoundErrs) {
				code = http.StatusNotFound
				message = cause.Error()
				break
			}
			if matchesAny(cause, conflictErrs) {
				code = http.StatusConflict
				message = cause.Error()
				break
			}
			if cause == exam.ErrGradingSystemInvalid {
				code = http.StatusBadRequest
				message = cause.Error()
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var usr user.User
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				usr.ID = claims.Subject
				usr.Username = claims.Username
				usr.Email = claims.Email
			}
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if err == target {
			return true
		}
	}
	return false
}
