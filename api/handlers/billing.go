package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/linguacall/linguacall-api/api"
	"github.com/linguacall/linguacall-api/config"
	"github.com/linguacall/linguacall-api/databases"
)

// creditPack is a purchasable bundle of conversation seconds.
type creditPack struct {
	Name     string
	Credits  int64
	AmountUS int64 // cents
}

// creditPacks maps the client-facing pack id to its pricing. Prices live
// here rather than in stripe products so a test-mode key works out of the
// box.
var creditPacks = map[string]creditPack{
	"starter":  {Name: "Starter Pack - 30 minutes", Credits: 1800, AmountUS: 499},
	"standard": {Name: "Standard Pack - 2 hours", Credits: 7200, AmountUS: 1499},
	"pro":      {Name: "Pro Pack - 6 hours", Credits: 21600, AmountUS: 3499},
}

// Billing exported for testing purposes
type Billing struct {
	DB databases.UserDatabase
}

type checkoutSessionRequest struct {
	UserID string `json:"userId"`
	PackID string `json:"packId"`
}

// CreateCheckoutSessionHandler creates a stripe checkout session for a
// credit pack purchase
func (b Billing) CreateCheckoutSessionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req checkoutSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	pack, ok := creditPacks[req.PackID]
	if !ok {
		config.ErrorStatus("unknown credit pack", http.StatusBadRequest, w,
			fmt.Errorf("packId %q", req.PackID))
		return
	}
	if _, err := primitive.ObjectIDFromHex(req.UserID); err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	baseURL := os.Getenv("BASE_URL")
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(pack.Name),
					},
					UnitAmount: stripe.Int64(pack.AmountUS),
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.UserID),
		SuccessURL:        stripe.String(baseURL + "/api/v1/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(baseURL + "/api/v1/cancel"),
	}
	params.AddMetadata("credits", strconv.FormatInt(pack.Credits, 10))
	params.AddMetadata("packId", req.PackID)

	s, err := session.New(params)
	if err != nil {
		config.ErrorStatus("failed to create checkout session", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Infow("checkout session created",
		"userId", req.UserID,
		"packId", req.PackID,
		"sessionId", s.ID,
	)

	resp := map[string]string{"sessionId": s.ID, "url": s.URL}
	bts, err := json.Marshal(resp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(bts)
}

type verifyCheckoutRequest struct {
	SessionID string `json:"sessionId"`
}

// VerifyCheckoutHandler confirms a completed checkout session with stripe
// and credits the purchased pack to the user's balance. The session id is
// recorded on the user document so a replayed verify never double-credits.
func (b Billing) VerifyCheckoutHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req verifyCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if req.SessionID == "" {
		config.ErrorStatus("sessionId is required", http.StatusBadRequest, w,
			fmt.Errorf("missing sessionId"))
		return
	}

	s, err := session.Get(req.SessionID, nil)
	if err != nil {
		config.ErrorStatus("failed to fetch checkout session", http.StatusNotFound, w, err)
		return
	}
	if s.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		config.ErrorStatus("checkout session is not paid", http.StatusPaymentRequired, w,
			fmt.Errorf("payment status %s", s.PaymentStatus))
		return
	}

	credits, err := strconv.ParseInt(s.Metadata["credits"], 10, 64)
	if err != nil || credits <= 0 {
		config.ErrorStatus("checkout session has no credit metadata", http.StatusBadRequest, w, err)
		return
	}
	uID, err := primitive.ObjectIDFromHex(s.ClientReferenceID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	// The $ne guard makes the credit grant idempotent per session id.
	err = b.DB.UpdateOne(ctx,
		bson.M{"_id": uID, "user.processedCheckouts": bson.M{"$ne": s.ID}},
		bson.M{
			"$inc":  bson.M{"user.credits": credits},
			"$push": bson.M{"user.processedCheckouts": s.ID},
			"$set":  bson.M{"user.updatedAt": time.Now()},
		},
	)
	if err != nil {
		config.ErrorStatus("failed to credit user", http.StatusInternalServerError, w, err)
		return
	}

	user, err := b.DB.FindOne(ctx, bson.M{"_id": uID})
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusNotFound, w, err)
		return
	}

	zap.S().Infow("checkout verified",
		"userId", s.ClientReferenceID,
		"sessionId", s.ID,
		"credits", credits,
	)

	resp := map[string]interface{}{
		"success":          true,
		"creditsRemaining": user.Details.Credits,
	}
	bts, err := json.Marshal(resp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(bts)
}

func (b Billing) handleSuccessRedirect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<html><body><h1>Payment successful</h1><p>You can close this window and return to LinguaCall.</p></body></html>`))
}

func (b Billing) handleCancelRedirect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<html><body><h1>Payment canceled</h1><p>No charge was made. You can close this window.</p></body></html>`))
}
