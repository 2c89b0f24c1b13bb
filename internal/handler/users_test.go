package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tablepos/api/internal/database"
	"github.com/tablepos/api/internal/handler"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock UserStore ---

type mockUserStore struct {
	users []database.User
}

func (m *mockUserStore) ListUsersByRestaurant(_ context.Context, restaurantID uuid.UUID) ([]database.User, error) {
	var out []database.User
	for _, u := range m.users {
		if u.RestaurantID == restaurantID {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserStore) CreateUser(_ context.Context, arg database.CreateUserParams) (database.User, error) {
	for _, u := range m.users {
		if u.Username == arg.Username {
			return database.User{}, &pgconn.PgError{Code: "23505"}
		}
	}
	u := database.User{
		ID:             uuid.New(),
		RestaurantID:   arg.RestaurantID,
		Username:       arg.Username,
		HashedPassword: arg.HashedPassword,
		FullName:       arg.FullName,
		Email:          arg.Email,
		Role:           arg.Role,
		IsActive:       true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	m.users = append(m.users, u)
	return u, nil
}

func (m *mockUserStore) DeactivateUser(_ context.Context, arg database.DeactivateUserParams) (uuid.UUID, error) {
	for i, u := range m.users {
		if u.ID == arg.ID && u.RestaurantID == arg.RestaurantID {
			m.users[i].IsActive = false
			return u.ID, nil
		}
	}
	return uuid.Nil, pgx.ErrNoRows
}

func TestListUsers(t *testing.T) {
	claims := testClaims("manager")
	store := &mockUserStore{users: []database.User{
		{ID: uuid.New(), RestaurantID: claims.RestaurantID, Username: "waiter1", Role: "waiter", IsActive: true},
		{ID: uuid.New(), RestaurantID: uuid.New(), Username: "stranger", Role: "admin", IsActive: true},
	}}
	router := newTestRouter(handler.NewUserHandler(store))

	rr := doAuthRequest(t, router, "GET", "/users", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	var resp []map[string]interface{}
	decodeJSON(t, rr, &resp)
	if len(resp) != 1 || resp[0]["username"] != "waiter1" {
		t.Errorf("users: got %v", resp)
	}
	if _, leaked := resp[0]["hashed_password"]; leaked {
		t.Error("response must not include the password hash")
	}

	rr = doAuthRequest(t, router, "GET", "/users", nil, testClaims("waiter"))
	if rr.Code != http.StatusForbidden {
		t.Errorf("waiter status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestCreateUser_HashesPassword(t *testing.T) {
	claims := testClaims("admin")
	store := &mockUserStore{}
	router := newTestRouter(handler.NewUserHandler(store))

	rr := doAuthRequest(t, router, "POST", "/users", map[string]string{
		"username":  "chef2",
		"password":  "tandoor99",
		"full_name": "Second Chef",
		"role":      "chef",
	}, claims)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d (body: %s)", rr.Code, http.StatusCreated, rr.Body.String())
	}

	u := store.users[0]
	if u.RestaurantID != claims.RestaurantID {
		t.Errorf("restaurant: got %v, want %v", u.RestaurantID, claims.RestaurantID)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte("tandoor99")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestCreateUser_Validation(t *testing.T) {
	valid := func() map[string]string {
		return map[string]string{"username": "new", "password": "secret1", "full_name": "New Person", "role": "waiter"}
	}
	tests := []struct {
		name   string
		mutate func(map[string]string)
		status int
	}{
		{"missing username", func(b map[string]string) { delete(b, "username") }, http.StatusBadRequest},
		{"bad role", func(b map[string]string) { b["role"] = "owner" }, http.StatusBadRequest},
		{"short password", func(b map[string]string) { b["password"] = "123" }, http.StatusBadRequest},
		{"bad email", func(b map[string]string) { b["email"] = "nope" }, http.StatusBadRequest},
		{"duplicate username", func(b map[string]string) { b["username"] = "admin" }, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &mockUserStore{users: []database.User{{ID: uuid.New(), Username: "admin"}}}
			router := newTestRouter(handler.NewUserHandler(store))

			body := valid()
			tt.mutate(body)
			rr := doAuthRequest(t, router, "POST", "/users", body, testClaims("admin"))
			if rr.Code != tt.status {
				t.Errorf("status: got %d, want %d (body: %s)", rr.Code, tt.status, rr.Body.String())
			}
		})
	}
}

func TestDeleteUser(t *testing.T) {
	claims := testClaims("admin")
	target := database.User{ID: uuid.New(), RestaurantID: claims.RestaurantID, Username: "waiter1", IsActive: true}
	store := &mockUserStore{users: []database.User{target}}
	router := newTestRouter(handler.NewUserHandler(store))

	rr := doAuthRequest(t, router, "DELETE", "/users/"+claims.UserID.String(), nil, claims)
	if rr.Code != http.StatusConflict {
		t.Errorf("self status: got %d, want %d", rr.Code, http.StatusConflict)
	}

	rr = doAuthRequest(t, router, "DELETE", "/users/"+uuid.New().String(), nil, claims)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown status: got %d, want %d", rr.Code, http.StatusNotFound)
	}

	rr = doAuthRequest(t, router, "DELETE", "/users/"+target.ID.String(), nil, claims)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if store.users[0].IsActive {
		t.Error("user should be deactivated")
	}
}
