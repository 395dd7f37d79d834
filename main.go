package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/gorilla/sessions"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/oklog/ulid/v2"
	"github.com/srinathgs/mysqlstore"
)

const (
	sessionCookieName = "alzin_session"
	headerUserEmail   = "X-User-Email"
	defaultCategorie  = "Autre"
)

var (
	db           *sqlx.DB
	sessionStore sessions.Store
	fileStore    *FileStore
	// for use ULID
	entropy = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

func getEnv(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val != "" {
		return val
	}
	return defaultValue
}

func connectDB() (*sqlx.DB, error) {
	config := mysql.NewConfig()
	config.Net = "tcp"
	config.Addr = getEnv("ALZIN_DB_HOST", "127.0.0.1") + ":" + getEnv("ALZIN_DB_PORT", "3306")
	config.User = getEnv("ALZIN_DB_USER", "alzin")
	config.Passwd = getEnv("ALZIN_DB_PASSWORD", "alzin")
	config.DBName = getEnv("ALZIN_DB_NAME", "alzin")
	config.ParseTime = true

	dsn := config.FormatDSN()
	return sqlx.Open("mysql", dsn)
}

func newULID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	e := echo.New()
	e.Logger.SetLevel(log.INFO)

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	mediaRoot := getEnv("ALZIN_MEDIA_ROOT", "./media")
	baseURL := getEnv("ALZIN_PUBLIC_BASE_URL", "http://localhost:3000")
	fileStore = newFileStore(mediaRoot, baseURL)
	e.Static("/media", mediaRoot)

	// auth & users
	e.POST("/api/signup", apiSignupHandler)
	e.POST("/api/login", apiLoginHandler)
	e.POST("/api/logout", apiLogoutHandler)
	e.POST("/api/auth/reset-password", apiResetPasswordHandler)
	e.GET("/api/me", apiMeHandler)
	e.PATCH("/api/me", apiMeUpdateHandler)
	e.GET("/api/utilisateurs", apiUsersHandler)
	e.GET("/api/admin/users", apiAdminUsersHandler)
	e.PUT("/api/admin/users/:userID", apiAdminUserUpdateHandler)
	e.PUT("/api/admin/users/:userID/role", apiAdminUserRoleHandler)
	e.DELETE("/api/admin/users/:userID", apiAdminUserDeleteHandler)

	// songs & categories
	e.GET("/api/chants", apiChantsHandler)
	e.POST("/api/chants", apiChantAddHandler)
	e.GET("/api/chants/:chantID", apiChantHandler)
	e.PUT("/api/chants/:chantID", apiChantUpdateHandler)
	e.PATCH("/api/chants/:chantID", apiChantUpdateHandler)
	e.DELETE("/api/chants/:chantID", apiChantDeleteHandler)
	e.GET("/api/categories", apiCategoriesHandler)
	e.POST("/api/categories", apiCategorieAddHandler)
	e.PUT("/api/categories", apiCategorieRenameHandler)
	e.DELETE("/api/categories", apiCategorieDeleteHandler)
	e.POST("/api/appartenir", apiAppartenirAddHandler)
	e.DELETE("/api/appartenir", apiAppartenirDeleteHandler)

	// audio tracks & ratings
	e.GET("/api/pistes-audio", apiPistesAudioHandler)
	e.GET("/api/pistes-audio/:pisteID", apiPisteAudioHandler)
	e.POST("/api/pistes-audio", apiPisteAudioAddHandler)
	e.DELETE("/api/pistes-audio/:pisteID", apiPisteAudioDeleteHandler)
	e.GET("/api/noter", apiNotesHandler)
	e.POST("/api/noter", apiNoterHandler)
	e.DELETE("/api/noter/:noteID", apiNoteDeleteHandler)

	// favorites & comments
	e.GET("/api/favoris", apiFavorisHandler)
	e.POST("/api/favoris", apiFavoriAddHandler)
	e.DELETE("/api/favoris", apiFavoriDeleteHandler)
	e.GET("/api/commentaires", apiCommentairesHandler)
	e.POST("/api/commentaires", apiCommentaireAddHandler)
	e.PUT("/api/commentaires", apiCommentaireEditHandler)
	e.DELETE("/api/commentaires", apiCommentaireDeleteHandler)

	// moderation requests (self-service)
	e.GET("/api/demandes/chants", apiDemandesHandler(demandeKindChant))
	e.POST("/api/demandes/chants", apiDemandeChantSubmitHandler)
	e.GET("/api/demandes/chants/:demandeID", apiDemandeHandler(demandeKindChant))
	e.GET("/api/demandes/audio", apiDemandesHandler(demandeKindAudio))
	e.POST("/api/demandes/audio", apiDemandeAudioSubmitHandler)
	e.GET("/api/demandes/audio/:demandeID", apiDemandeHandler(demandeKindAudio))
	e.GET("/api/demandes/modifications", apiDemandesHandler(demandeKindModification))
	e.POST("/api/demandes/modifications", apiDemandeModificationSubmitHandler)
	e.GET("/api/demandes/modifications/:demandeID", apiDemandeHandler(demandeKindModification))

	// moderation requests (admin review)
	e.GET("/api/admin/demandes/chants", apiAdminDemandesHandler(demandeKindChant))
	e.GET("/api/admin/demandes/chants/:demandeID", apiAdminDemandeHandler(demandeKindChant))
	e.PATCH("/api/admin/demandes/chants/:demandeID", apiAdminDemandeDecisionHandler(demandeKindChant))
	e.GET("/api/admin/demandes/audio", apiAdminDemandesHandler(demandeKindAudio))
	e.GET("/api/admin/demandes/audio/:demandeID", apiAdminDemandeHandler(demandeKindAudio))
	e.PATCH("/api/admin/demandes/audio/:demandeID", apiAdminDemandeDecisionHandler(demandeKindAudio))
	e.GET("/api/admin/demandes/modifications", apiAdminDemandesHandler(demandeKindModification))
	e.GET("/api/admin/demandes/modifications/:demandeID", apiAdminDemandeHandler(demandeKindModification))
	e.PATCH("/api/admin/demandes/modifications/:demandeID", apiAdminDemandeDecisionHandler(demandeKindModification))

	// songbooks & templates
	e.GET("/api/mes-chansonniers", apiMesChansonniersHandler)
	e.POST("/api/mes-chansonniers", apiChansonnierAddHandler)
	e.GET("/api/mes-chansonniers/:chansonnierID", apiChansonnierHandler)
	e.PUT("/api/mes-chansonniers/:chansonnierID", apiChansonnierUpdateHandler)
	e.DELETE("/api/mes-chansonniers/:chansonnierID", apiChansonnierDeleteHandler)
	e.GET("/api/templates-chansonniers", apiTemplatesHandler)
	e.POST("/api/templates-chansonniers", apiTemplateAddHandler)
	e.GET("/api/templates-chansonniers/:templateID", apiTemplateHandler)
	e.PUT("/api/templates-chansonniers/:templateID", apiTemplateUpdateHandler)
	e.PATCH("/api/templates-chansonniers/:templateID", apiTemplateUpdateHandler)
	e.DELETE("/api/templates-chansonniers/:templateID", apiTemplateDeleteHandler)

	// orders & suppliers
	e.GET("/api/commandes", apiCommandesHandler)
	e.GET("/api/mes-commandes", apiMesCommandesHandler)
	e.POST("/api/mes-commandes", apiCommandeAddHandler)
	e.GET("/api/mes-commandes/:commandeID", apiCommandeHandler)
	e.PUT("/api/mes-commandes/:commandeID", apiCommandeUpdateHandler)
	e.DELETE("/api/mes-commandes/:commandeID", apiCommandeDeleteHandler)
	e.GET("/api/commandes-lignes", apiLignesCommandeHandler)
	e.POST("/api/commandes-lignes", apiLigneCommandeAddHandler)
	e.GET("/api/fournisseurs", apiFournisseursHandler)
	e.POST("/api/fournisseurs", apiFournisseurAddHandler)
	e.PATCH("/api/fournisseurs/:fournisseurID", apiFournisseurUpdateHandler)
	e.DELETE("/api/fournisseurs/:fournisseurID", apiFournisseurDeleteHandler)
	e.GET("/api/fournir", apiFournituresHandler)
	e.POST("/api/fournir", apiFournirHandler)

	// events & choir masters
	e.GET("/api/evenements", apiEvenementsHandler)
	e.POST("/api/evenements", apiEvenementAddHandler)
	e.GET("/api/evenements/:evenementID", apiEvenementHandler)
	e.PUT("/api/evenements/:evenementID", apiEvenementUpdateHandler)
	e.DELETE("/api/evenements/:evenementID", apiEvenementDeleteHandler)
	e.GET("/api/chanter", apiChanterHandler)
	e.POST("/api/chanter", apiChanterAddHandler)
	e.DELETE("/api/chanter", apiChanterDeleteHandler)
	e.GET("/api/maitres", apiMaitresHandler)
	e.POST("/api/maitres", apiMaitresReplaceHandler)

	// support tickets
	e.GET("/api/support", apiSupportHandler)
	e.POST("/api/support", apiSupportAddHandler)
	e.GET("/api/admin/support", apiAdminSupportListHandler)
	e.GET("/api/admin/support/:ticketID", apiAdminSupportHandler)
	e.PATCH("/api/admin/support/:ticketID", apiAdminSupportUpdateHandler)

	var err error
	db, err = connectDB()
	if err != nil {
		e.Logger.Fatalf("failed to connect db: %v", err)
		return
	}
	db.SetMaxOpenConns(10)
	defer db.Close()

	sessionStore, err = mysqlstore.NewMySQLStoreFromConnection(
		db.DB, "sessions", "/", 86400, []byte(getEnv("ALZIN_SESSION_SECRET", "alzin-dev-secret")),
	)
	if err != nil {
		e.Logger.Fatalf("failed to initialize session store: %v", err)
		return
	}

	port := getEnv("ALZIN_APP_PORT", "3000")
	e.Logger.Infof("starting alzin server on : %s ...", port)
	e.Logger.Fatal(e.Start(fmt.Sprintf(":%s", port)))
}

// connOrTx lets query helpers run against either a connection or a
// transaction.
type connOrTx interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// apiError carries the HTTP status a handler failure maps onto.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string { return e.message }

func errValidation(message string) *apiError   { return &apiError{400, message} }
func errConflict(message string) *apiError     { return &apiError{409, message} }
func errNotFound(message string) *apiError     { return &apiError{404, message} }
func errForbidden(message string) *apiError    { return &apiError{403, message} }
func errUnauthorized(message string) *apiError { return &apiError{401, message} }

// errInvalidState marks a transition attempted on a request that already
// reached a terminal state.
func errInvalidState(message string) *apiError { return &apiError{400, message} }

func respondError(c echo.Context, err error) error {
	var ae *apiError
	if errors.As(err, &ae) {
		return errorResponse(c, ae.status, ae.message)
	}
	c.Logger().Errorf("internal error: %s", err)
	return errorResponse(c, 500, "internal server error")
}

func errorResponse(c echo.Context, code int, message string) error {
	c.Logger().Debugf("error: status=%d, message=%s", code, message)

	body := BasicResponse{
		Result: false,
		Status: code,
		Error:  &message,
	}
	if code == 401 {
		sess, err := sessionStore.Get(c.Request(), sessionCookieName)
		if err == nil {
			sess.Options.MaxAge = -1
			if err := sess.Save(c.Request(), c.Response()); err != nil {
				return fmt.Errorf("error Save to session at errorResponse: %w", err)
			}
		}
	}
	if err := c.JSON(code, body); err != nil {
		return fmt.Errorf("error returns JSON at errorResponse: %w", err)
	}
	return nil
}

func okResponse() BasicResponse {
	return BasicResponse{Result: true, Status: 200}
}

func paramInt(c echo.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil || v <= 0 {
		return 0, errValidation(fmt.Sprintf("bad %s", name))
	}
	return v, nil
}

func formInt(c echo.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.FormValue(name))
	if err != nil || v <= 0 {
		return 0, errValidation(fmt.Sprintf("bad %s", name))
	}
	return v, nil
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid || v.String == "" {
		return nil
	}
	s := v.String
	return &s
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func timePtr(v sql.NullTime) *string {
	if !v.Valid {
		return nil
	}
	s := v.Time.Format(time.RFC3339)
	return &s
}
