package models

// User holds the structure for the user collection in mongo
type User struct {
	ID      string      `json:"_id" bson:"_id"`
	Details UserDetails `json:"user" bson:"user"`
	Version int32       `json:"__v" bson:"__v"`
}

// UserDetails holds the structure for the inner user structure as defined in the user collection in mongo
type UserDetails struct {
	Email           string      `json:"email" bson:"email"`
	Name            string      `json:"name" bson:"name"`
	Password        string      `json:"password" bson:"password"`
	Verified        bool        `json:"verified" bson:"verified"`
	Credits         int64       `json:"credits" bson:"credits"`
	PreferredLanguage string    `json:"preferredLanguage" bson:"preferredLanguage"`
	StripeCustomerID  string    `json:"stripeCustomerId" bson:"stripeCustomerId"`
	ProcessedCheckouts []string `json:"processedCheckouts" bson:"processedCheckouts"`
	CreatedAt       interface{} `json:"createdAt" bson:"createdAt"`
	UpdatedAt       interface{} `json:"updatedAt" bson:"updatedAt"`
}
