package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/linguacall/linguacall-api/api/handlers"
	"github.com/linguacall/linguacall-api/databases"
	"github.com/linguacall/linguacall-api/databases/mocks"
	"github.com/linguacall/linguacall-api/models"
)

func TestUser_UserHandlerInvalidID(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/user/asdf", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"user_id": "asdf"})

	u := handlers.User{}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "failed to get objectID from Hex")
}

func TestUser_UserHandlerNotFound(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/user/5fc51f36c72ff10004dca381", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"user_id": "5fc51f36c72ff10004dca381"})

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	singleResultHelper := &mocks.SingleResultHelper{}

	singleResultHelper.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.On("Collection", "users").Return(conn)

	u := handlers.User{DB: databases.NewUserDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "failed to get user by ID")
}

func TestUser_UserHandlerRedactsPassword(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/v1/user/5fc51f36c72ff10004dca381", nil)
	if err != nil {
		t.Fatal(err)
	}
	req = mux.SetURLVars(req, map[string]string{"user_id": "5fc51f36c72ff10004dca381"})

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	singleResultHelper := &mocks.SingleResultHelper{}

	singleResultHelper.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.User)
		(*arg).ID = "5fc51f36c72ff10004dca381"
		(*arg).Details.Email = "pat@example.com"
		(*arg).Details.Password = "bcrypt-hash-here"
		(*arg).Details.Credits = 1800
	})
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.On("Collection", "users").Return(conn)

	u := handlers.User{DB: databases.NewUserDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"email":"pat@example.com"`)
	assert.Contains(t, rr.Body.String(), `"credits":1800`)
	assert.NotContains(t, rr.Body.String(), "bcrypt-hash-here")
}

func TestUser_UserCreateHandlerBadBody(t *testing.T) {
	req, err := http.NewRequest("POST", "/api/v1/user/create-user", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}

	u := handlers.User{}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserCreateHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "failed to decode request")
}

func TestUser_UserCreateHandlerMissingFields(t *testing.T) {
	req, err := http.NewRequest("POST", "/api/v1/user/create-user", strings.NewReader(`{"email":"pat@example.com"}`))
	if err != nil {
		t.Fatal(err)
	}

	u := handlers.User{}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserCreateHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "email and password are required")
}

func TestUser_UserCreateHandlerDuplicateEmail(t *testing.T) {
	body := `{"email":"pat@example.com","password":"hunter22","name":"Pat"}`
	req, err := http.NewRequest("POST", "/api/v1/user/create-user", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	singleResultHelper := &mocks.SingleResultHelper{}

	// an existing user decodes cleanly
	singleResultHelper.On("Decode", mock.Anything).Return(nil)
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.On("Collection", "users").Return(conn)

	u := handlers.User{DB: databases.NewUserDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserCreateHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "email already exists")
}

func TestUser_UserCreateHandlerSuccess(t *testing.T) {
	body := `{"email":"New@Example.com","password":"hunter22","name":"Pat","preferredLanguage":"en"}`
	req, err := http.NewRequest("POST", "/api/v1/user/create-user", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	db := &mocks.DatabaseHelper{}
	userConn := &mocks.CollectionHelper{}
	userResult := &mocks.SingleResultHelper{}
	pvConn := &mocks.CollectionHelper{}
	insertResult := &mocks.InsertOneResultHelper{}

	userResult.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	userConn.On("FindOne", mock.Anything, mock.Anything).Return(userResult)
	userConn.On("InsertOne", mock.Anything, mock.Anything).Return(insertResult, nil)
	db.On("Collection", "users").Return(userConn)

	pvConn.On("InsertOne", mock.Anything, mock.Anything).Return(insertResult, nil)
	db.On("Collection", "pendingVerifications").Return(pvConn)

	u := handlers.User{
		DB:   databases.NewUserDatabase(db),
		PVDB: databases.NewPendingVerificationDatabase(db),
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserCreateHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success": true`)

	// the stored email is normalized and the password never stored in clear
	inserted := userConn.Calls[1].Arguments.Get(1)
	assert.Contains(t, toJSON(t, inserted), "new@example.com")
	assert.NotContains(t, toJSON(t, inserted), "hunter22")
}

func toJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func TestUser_UserCheckEmailHandlerAvailable(t *testing.T) {
	body := `{"email":"new@example.com"}`
	req, err := http.NewRequest("POST", "/api/v1/user/check-user", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	db := &mocks.DatabaseHelper{}
	conn := &mocks.CollectionHelper{}
	singleResultHelper := &mocks.SingleResultHelper{}

	singleResultHelper.On("Decode", mock.Anything).Return(mongo.ErrNoDocuments)
	conn.On("FindOne", mock.Anything, mock.Anything).Return(singleResultHelper)
	db.On("Collection", "users").Return(conn)

	u := handlers.User{DB: databases.NewUserDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.UserCheckEmailHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUser_VerifyEmailHandlerMissingEmail(t *testing.T) {
	req, err := http.NewRequest("POST", "/api/v1/user/verify-email", strings.NewReader(`{"code":"123456"}`))
	if err != nil {
		t.Fatal(err)
	}

	u := handlers.User{}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.VerifyEmailHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "email is required")
}

func TestUser_VerifyEmailHandlerWrongCode(t *testing.T) {
	body := `{"email":"pat@example.com","code":"000000"}`
	req, err := http.NewRequest("POST", "/api/v1/user/verify-email", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	db := &mocks.DatabaseHelper{}
	pvConn := &mocks.CollectionHelper{}
	pvResult := &mocks.SingleResultHelper{}

	pvResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.PendingVerification)
		(*arg).Email = "pat@example.com"
		(*arg).Code = "123456"
	})
	pvConn.On("FindOne", mock.Anything, mock.Anything).Return(pvResult)
	pvConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	db.On("Collection", "pendingVerifications").Return(pvConn)

	u := handlers.User{PVDB: databases.NewPendingVerificationDatabase(db)}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.VerifyEmailHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid verification code")
	pvConn.AssertCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestUser_VerifyEmailHandlerSuccess(t *testing.T) {
	body := `{"email":"Pat@Example.com","code":"123456"}`
	req, err := http.NewRequest("POST", "/api/v1/user/verify-email", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}

	db := &mocks.DatabaseHelper{}
	pvConn := &mocks.CollectionHelper{}
	pvResult := &mocks.SingleResultHelper{}
	userConn := &mocks.CollectionHelper{}

	pvResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.PendingVerification)
		(*arg).Email = "pat@example.com"
		(*arg).Code = "123456"
	})
	pvConn.On("FindOne", mock.Anything, mock.Anything).Return(pvResult)
	pvConn.On("DeleteOne", mock.Anything, mock.Anything).Return(nil)
	db.On("Collection", "pendingVerifications").Return(pvConn)

	userConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	db.On("Collection", "users").Return(userConn)

	u := handlers.User{
		DB:   databases.NewUserDatabase(db),
		PVDB: databases.NewPendingVerificationDatabase(db),
	}

	rr := httptest.NewRecorder()
	http.HandlerFunc(u.VerifyEmailHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success": true`)
	userConn.AssertCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
	pvConn.AssertCalled(t, "DeleteOne", mock.Anything, mock.Anything)
}
