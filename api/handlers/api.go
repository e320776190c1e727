package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/linguacall/linguacall-api/api"
	"github.com/linguacall/linguacall-api/api/scheduler"
	"github.com/linguacall/linguacall-api/config"
	"github.com/linguacall/linguacall-api/databases"
	"github.com/linguacall/linguacall-api/models"
	"github.com/linguacall/linguacall-api/relay"
	"github.com/linguacall/linguacall-api/translation"
)

// App stores the router, relay hub and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Hub       *relay.Hub
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper), TDB: databases.NewTokenDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	u := User{DB: databases.NewUserDatabase(a.dbHelper), PVDB: databases.NewPendingVerificationDatabase(a.dbHelper)}
	rm := Room{DB: databases.NewRoomDatabase(a.dbHelper), UDB: databases.NewUserDatabase(a.dbHelper)}
	b := Billing{DB: databases.NewUserDatabase(a.dbHelper)}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	// websocket relay entrypoint; auth happens inside the hub via the
	// token resolver so guests can still join with an invite link
	r.HandleFunc("/ws", a.Hub.HandleConn)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(30 * time.Second))

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(m.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(u.UserCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/check-user", http.HandlerFunc(u.UserCheckEmailHandler)).Methods("POST")
	apiCreate.Handle("/user/verify-email", http.HandlerFunc(u.VerifyEmailHandler)).Methods("POST")
	apiCreate.Handle("/user/create-checkout-session", api.Middleware(http.HandlerFunc(b.CreateCheckoutSessionHandler))).Methods("POST")
	apiCreate.Handle("/user/verify-checkout", api.Middleware(http.HandlerFunc(b.VerifyCheckoutHandler))).Methods("POST")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UserHandler))).Methods("GET")

	apiCreate.Handle("/room", api.Middleware(http.HandlerFunc(rm.CreateRoomHandler))).Methods("POST")
	apiCreate.Handle("/room/{room_id}", api.Middleware(http.HandlerFunc(rm.RoomHandler))).Methods("GET")

	apiCreate.Handle("/success", http.HandlerFunc(b.handleSuccessRedirect)).Methods("GET")
	apiCreate.Handle("/cancel", http.HandlerFunc(b.handleCancelRedirect)).Methods("GET")

	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("linguacall-api has connected to the database")

	// initialize stripe
	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		return fmt.Errorf("stripe secret key is not set")
	}
	stripe.Key = stripeKey

	// initialize the relay hub with its persistence and translation backends
	a.Hub = relay.NewHub(relay.Config{
		Store:      roomStore{DB: databases.NewRoomDatabase(a.dbHelper)},
		Users:      api.TokenResolver{TDB: databases.NewTokenDatabase(a.dbHelper)},
		Translator: translation.NewClient(a.Config.TranslatorURL),
		Credits:    creditStore{DB: databases.NewUserDatabase(a.dbHelper)},
	})

	// start the janitor jobs
	a.Scheduler = scheduler.New(
		databases.NewRoomDatabase(a.dbHelper),
		databases.NewTokenDatabase(a.dbHelper),
		databases.NewPendingVerificationDatabase(a.dbHelper),
	)
	a.Scheduler.Start()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
