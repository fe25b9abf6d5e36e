package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/promptmarket/api/internal/middleware"
	"github.com/promptmarket/api/internal/models"
	"github.com/promptmarket/api/internal/services"
	"github.com/promptmarket/api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProfileUpdater struct {
	user      *models.User
	updateErr error

	lastActor  models.UserSnapshot
	lastTarget uuid.UUID
	lastInput  services.UpdateProfileInput
}

func (f *fakeProfileUpdater) UpdateProfile(_ context.Context, actor models.UserSnapshot, targetID uuid.UUID, input services.UpdateProfileInput) (*models.User, error) {
	f.lastActor = actor
	f.lastTarget = targetID
	f.lastInput = input
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.user, nil
}

type fakeSnapshotRefresher struct {
	err   error
	calls int
}

func (f *fakeSnapshotRefresher) RefreshSnapshots(_ context.Context, _ *models.User) error {
	f.calls++
	return f.err
}

// updateRequest builds a PUT /api/users/{id} request carrying actor's
// session and the chi route context a mounted handler would see.
func updateRequest(t *testing.T, actor *models.User, targetID string, body interface{}) *http.Request {
	t.Helper()
	req := testutil.MakeRequest(t, http.MethodPut, "/api/users/"+targetID, body)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", targetID)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)

	if actor != nil {
		ctx = middleware.WithSession(ctx, testutil.TestSession(actor))
	}
	return req.WithContext(ctx)
}

func TestUpdateProfileHandler(t *testing.T) {
	t.Run("updates own profile and refreshes sessions", func(t *testing.T) {
		user := testutil.TestUser()
		updated := *user
		updated.Name = "New Name"
		updated.Bio = testutil.StringPtr("Prompt engineer")

		users := &fakeProfileUpdater{user: &updated}
		sessions := &fakeSnapshotRefresher{}
		handler := NewUserHandler(users, sessions)

		resp := httptest.NewRecorder()
		handler.UpdateProfile(resp, updateRequest(t, user, user.ID.String(), map[string]interface{}{
			"name": "New Name",
			"bio":  "Prompt engineer",
		}))

		testutil.AssertStatusCode(t, resp, http.StatusOK)
		assert.Equal(t, 1, sessions.calls)
		assert.Equal(t, user.ID, users.lastTarget)
		assert.Equal(t, user.ID, users.lastActor.ID)
		require.NotNil(t, users.lastInput.Name)
		assert.Equal(t, "New Name", *users.lastInput.Name)
		assert.Nil(t, users.lastInput.EmailNotifications)

		var body models.UserSnapshot
		testutil.ParseJSONResponse(t, resp, &body)
		assert.Equal(t, "New Name", body.Name)
	})

	t.Run("answers 401 without a session", func(t *testing.T) {
		handler := NewUserHandler(&fakeProfileUpdater{}, &fakeSnapshotRefresher{})

		resp := httptest.NewRecorder()
		handler.UpdateProfile(resp, updateRequest(t, nil, uuid.NewString(), map[string]string{"name": "X"}))

		testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)
	})

	t.Run("answers 400 for a malformed user ID", func(t *testing.T) {
		handler := NewUserHandler(&fakeProfileUpdater{}, &fakeSnapshotRefresher{})

		resp := httptest.NewRecorder()
		handler.UpdateProfile(resp, updateRequest(t, testutil.TestUser(), "not-a-uuid", map[string]string{"name": "X"}))

		testutil.AssertStatusCode(t, resp, http.StatusBadRequest)

		var body struct {
			Message string `json:"message"`
		}
		testutil.ParseJSONResponse(t, resp, &body)
		assert.Equal(t, "Invalid user ID", body.Message)
	})

	t.Run("answers 403 when editing someone else's profile", func(t *testing.T) {
		sessions := &fakeSnapshotRefresher{}
		handler := NewUserHandler(&fakeProfileUpdater{updateErr: services.ErrUnauthorized}, sessions)

		resp := httptest.NewRecorder()
		handler.UpdateProfile(resp, updateRequest(t, testutil.TestUser(), uuid.NewString(), map[string]string{"name": "X"}))

		testutil.AssertStatusCode(t, resp, http.StatusForbidden)
		assert.Zero(t, sessions.calls)
	})

	t.Run("answers 404 when the target does not exist", func(t *testing.T) {
		handler := NewUserHandler(&fakeProfileUpdater{updateErr: services.ErrNotFound}, &fakeSnapshotRefresher{})

		resp := httptest.NewRecorder()
		handler.UpdateProfile(resp, updateRequest(t, testutil.TestUser(), uuid.NewString(), map[string]string{"name": "X"}))

		testutil.AssertStatusCode(t, resp, http.StatusNotFound)
	})

	t.Run("answers 400 with the validation message", func(t *testing.T) {
		user := testutil.TestUser()
		handler := NewUserHandler(&fakeProfileUpdater{
			updateErr: services.NewValidationError("name", "name must not be empty"),
		}, &fakeSnapshotRefresher{})

		resp := httptest.NewRecorder()
		handler.UpdateProfile(resp, updateRequest(t, user, user.ID.String(), map[string]string{"name": ""}))

		testutil.AssertStatusCode(t, resp, http.StatusBadRequest)

		var body struct {
			Message string `json:"message"`
		}
		testutil.ParseJSONResponse(t, resp, &body)
		assert.Equal(t, "name must not be empty", body.Message)
	})

	t.Run("still answers 200 when the snapshot refresh fails", func(t *testing.T) {
		user := testutil.TestUser()
		handler := NewUserHandler(&fakeProfileUpdater{user: user}, &fakeSnapshotRefresher{err: services.ErrSessionStoreUnavailable})

		resp := httptest.NewRecorder()
		handler.UpdateProfile(resp, updateRequest(t, user, user.ID.String(), map[string]string{"name": user.Name}))

		testutil.AssertStatusCode(t, resp, http.StatusOK)
	})
}
