package handlers

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/linguacall/linguacall-api/api"
	"github.com/linguacall/linguacall-api/config"
	"github.com/linguacall/linguacall-api/databases"
	"github.com/linguacall/linguacall-api/models"
	templates "github.com/linguacall/linguacall-api/templates/html"
)

// starterCredits is the free trial balance granted at signup, in seconds of
// conversation.
const starterCredits = 300

// User exported for testing purposes
type User struct {
	DB   databases.UserDatabase
	PVDB databases.PendingVerificationDatabase
}

// UserHandler returns a user given a userID
func (u User) UserHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["user_id"]

	zap.S().Debugf("user_id: %v", userID)

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := u.DB.FindOne(ctx, bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}

	// never hand the password hash back out
	dbResp.Details.Password = ""

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UserCreateHandler creates a user
func (u User) UserCreateHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var user models.UserDetails
	err := json.NewDecoder(r.Body).Decode(&user)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	user.Email = strings.TrimSpace(strings.ToLower(user.Email))
	if user.Email == "" || user.Password == "" {
		config.ErrorStatus("email and password are required", http.StatusBadRequest, w,
			fmt.Errorf("missing required fields"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	// check if the user already exists
	existingUser, _ := u.DB.FindOne(ctx, bson.M{"user.email": user.Email})
	if existingUser != nil {
		config.ErrorStatus("email already exists", http.StatusConflict, w, fmt.Errorf("duplicate email"))
		return
	}

	// hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}
	user.Password = string(hashedPassword)
	user.Verified = false
	user.Credits = starterCredits
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	// insert the user
	_, err = u.DB.InsertOne(ctx, user)
	if err != nil {
		config.ErrorStatus("failed to insert user", http.StatusInternalServerError, w, err)
		return
	}

	// Generate a 6-digit code
	code := fmt.Sprintf("%06d", 100000+rand.Intn(900000))

	newPending := models.PendingVerification{
		ID:        primitive.NewObjectID(),
		Email:     user.Email,
		Code:      code,
		CreatedAt: primitive.NewDateTimeFromTime(time.Now()),
	}
	if _, err := u.PVDB.InsertOne(ctx, newPending); err != nil {
		config.ErrorStatus("failed to create pending verification", http.StatusInternalServerError, w, err)
		return
	}

	// Send email with the code (non-blocking, in background)
	go sendVerificationEmail(user.Email, user.Name, code)

	w.WriteHeader(http.StatusCreated)
	w.Write([]byte(`{"success": true}`))
}

// UserCheckEmailHandler checks if an email exists using POST
func (u User) UserCheckEmailHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var user models.UserDetails
	err := json.NewDecoder(r.Body).Decode(&user)
	if err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	user.Email = strings.TrimSpace(strings.ToLower(user.Email))

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	// check if the user already exists
	existingUser, _ := u.DB.FindOne(ctx, bson.M{"user.email": user.Email})
	if existingUser != nil {
		config.ErrorStatus("email already exists", http.StatusConflict, w, fmt.Errorf("duplicate email"))
		return
	}

	w.WriteHeader(http.StatusOK)
}

type verifyEmailRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	Token string `json:"token"`
}

// VerifyEmailHandler flips a user to verified, either from the 6-digit code
// the signup email carries or from the signed link token in the same email.
func (u User) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req verifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	if req.Token != "" {
		email, err := parseVerificationToken(req.Token)
		if err != nil {
			config.ErrorStatus("invalid verification token", http.StatusUnauthorized, w, err)
			return
		}
		req.Email = email
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		config.ErrorStatus("email is required", http.StatusBadRequest, w, fmt.Errorf("email is required"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	// The link token alone is proof enough; the code path has to match the
	// pending verification record.
	if req.Token == "" {
		pending, err := u.PVDB.FindOne(ctx, bson.M{"email": req.Email})
		if err != nil {
			if err == mongo.ErrNoDocuments {
				config.ErrorStatus("pending verification not found", http.StatusNotFound, w, err)
				return
			}
			config.ErrorStatus("failed to find pending verification", http.StatusInternalServerError, w, err)
			return
		}
		if pending.Code != req.Code {
			if err := u.PVDB.UpdateOne(ctx,
				bson.M{"email": req.Email},
				bson.M{"$inc": bson.M{"attempts": 1}},
			); err != nil {
				config.ErrorStatus("failed to increment attempts", http.StatusInternalServerError, w, err)
				return
			}
			http.Error(w, `{"success": false, "message": "Invalid verification code"}`, http.StatusBadRequest)
			return
		}
	}

	if err := u.DB.UpdateOne(ctx,
		bson.M{"user.email": req.Email},
		bson.M{"$set": bson.M{"user.verified": true, "user.updatedAt": time.Now()}},
	); err != nil {
		config.ErrorStatus("failed to mark user verified", http.StatusInternalServerError, w, err)
		return
	}

	if err := u.PVDB.DeleteOne(ctx, bson.M{"email": req.Email}); err != nil && err != mongo.ErrNoDocuments {
		zap.S().Warnw("failed to delete pending verification", "email", req.Email, "error", err)
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"success": true}`))
}

// sendVerificationEmail sends the signup verification email in the
// background. Failures are logged, never surfaced to the signup response.
func sendVerificationEmail(email, name, code string) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("panic in sendVerificationEmail", "email", email, "panic", r)
		}
	}()

	link, err := buildVerificationLink(email)
	if err != nil {
		zap.S().Errorw("failed to build verification link", "email", email, "error", err)
	}

	from := mail.NewEmail("LinguaCall", "no-reply@linguacall.app")
	subject := "LinguaCall Email Verification Code"
	to := mail.NewEmail(name, email)
	plainTextContent := "Verification code: " + code + ". This code will expire in 24 hours."
	htmlContent := templates.RenderVerificationEmail(name, code, link)
	message := mail.NewSingleEmail(from, subject, to, plainTextContent, htmlContent)

	sendgridAPIKey := os.Getenv("SENDGRID_API_KEY")
	if sendgridAPIKey == "" {
		zap.S().Errorw("SENDGRID_API_KEY not set, cannot send email", "email", email)
		return
	}

	client := sendgrid.NewSendClient(sendgridAPIKey)
	response, err := client.Send(message)
	if err != nil {
		zap.S().Errorw("failed to send verification email", "email", email, "error", err)
		return
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		zap.S().Infow("verification email sent successfully", "email", email, "statusCode", response.StatusCode)
	} else {
		zap.S().Warnw("verification email sent with non-2xx status", "email", email, "statusCode", response.StatusCode, "body", response.Body)
	}
}

// buildVerificationLink signs a short-lived token so the email can carry a
// one-click verify link alongside the code.
func buildVerificationLink(email string) (string, error) {
	secret := []byte(os.Getenv("JWT_SECRET"))
	if len(secret) == 0 {
		return "", fmt.Errorf("jwt secret is not set")
	}

	claims := jwt.MapClaims{
		"sub": email,
		"typ": "email-verify",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(24 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/verify-email?token=%s", os.Getenv("BASE_URL"), signed), nil
}

func parseVerificationToken(tokenString string) (string, error) {
	secret := []byte(os.Getenv("JWT_SECRET"))
	if len(secret) == 0 {
		return "", fmt.Errorf("jwt secret is not set")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	if typ, _ := claims["typ"].(string); typ != "email-verify" {
		return "", fmt.Errorf("unexpected token type")
	}
	email, _ := claims["sub"].(string)
	if email == "" {
		return "", fmt.Errorf("token missing subject")
	}
	return email, nil
}
