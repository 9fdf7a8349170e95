package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskmaster-api/domain"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, tasks TaskAccess, users UserAccess, auth Authenticator, issuer TokenMinter, logger *log.Logger) {
	e.GET("/api/tasks", getTasks(tasks, auth, logger))
	e.POST("/api/tasks", postTask(tasks, auth))
	e.PUT("/api/tasks/:id", putTask(tasks, auth))
	e.DELETE("/api/tasks/:id", deleteTask(tasks, auth))

	e.POST("/api/users", registerUser(users, issuer))
	e.POST("/api/users/login", loginUser(users, issuer))
	e.GET("/api/users/me", getMe(users, auth))

	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getTasks(tasks TaskAccess, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newTaskRequestMetrics(ctx, logger)
		c.SetRequest(c.Request().WithContext(spanCtx))
		ctx = spanCtx
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.JSON(http.StatusUnauthorized, errorResponse{Message: authErr.Error()})
			return err
		}

		fetchStart := time.Now()
		list, fetchErr := tasks.List(ctx, userID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Message: fetchErr.Error()})
			return err
		}
		metrics.SetTasksReturned(len(list))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, list)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func postTask(tasks TaskAccess, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Message: err.Error()})
		}
		var draft domain.TaskDraft
		if err := decodeBody(c, &draft); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid body"})
		}
		created, err := tasks.Create(c.Request().Context(), userID, draft)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, created)
	}
}

func putTask(tasks TaskAccess, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Message: err.Error()})
		}
		var patch domain.TaskPatch
		if err := decodeBody(c, &patch); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid body"})
		}
		updated, err := tasks.Update(c.Request().Context(), userID, c.Param("id"), patch)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, updated)
	}
}

func deleteTask(tasks TaskAccess, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Message: err.Error()})
		}
		id, err := tasks.Delete(c.Request().Context(), userID, c.Param("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, deleteResponse{ID: id})
	}
}

func registerUser(users UserAccess, issuer TokenMinter) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registerRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid body"})
		}
		user, err := users.Register(c.Request().Context(), req.Name, req.Email, req.Password)
		if err != nil {
			return respondError(c, err)
		}
		return respondWithToken(c, user, issuer)
	}
}

func loginUser(users UserAccess, issuer TokenMinter) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req loginRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Message: "invalid body"})
		}
		user, err := users.Authenticate(c.Request().Context(), req.Email, req.Password)
		if err != nil {
			return respondError(c, err)
		}
		return respondWithToken(c, user, issuer)
	}
}

func getMe(users UserAccess, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorResponse{Message: err.Error()})
		}
		user, err := users.Profile(c.Request().Context(), userID)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, user)
	}
}

func respondWithToken(c echo.Context, user domain.User, issuer TokenMinter) error {
	token, err := issuer.Issue(user.ID)
	if err != nil {
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "failed to issue token"})
	}
	return c.JSON(http.StatusOK, authResponse{ID: user.ID, Name: user.Name, Email: user.Email, Token: token})
}

// decodeBody reads a size-limited JSON request body. Unknown fields are
// ignored: the web client habitually sends whole task objects on edit.
func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	return sonic.ConfigStd.NewDecoder(lr).Decode(out)
}

// respondError maps domain errors onto the status codes the web client was
// built against. A missing task deliberately maps to 400 rather than 404;
// the client treats any 4xx alike and the contract is frozen.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyTitle),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrMissingFields),
		errors.Is(err, domain.ErrEmailTaken),
		errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error()})
	case errors.Is(err, domain.ErrNotOwner),
		errors.Is(err, domain.ErrBadCredentials),
		errors.Is(err, domain.ErrUserNotFound):
		return c.JSON(http.StatusUnauthorized, errorResponse{Message: err.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: err.Error()})
	}
}
