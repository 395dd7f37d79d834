package main

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useMockDB swaps the global connection for a sqlmock-backed one.
func useMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	old := db
	db = sqlx.NewDb(mockDB, "mysql")
	t.Cleanup(func() {
		db.Close()
		db = old
	})
	return mock
}

func useTempFileStore(t *testing.T) {
	t.Helper()
	old := fileStore
	fileStore = newFileStore(t.TempDir(), "http://media.test")
	t.Cleanup(func() { fileStore = old })
}

func userColumns() []string {
	return []string{"id", "email", "nom", "prenom", "pseudo", "password_hash", "ville", "role", "created_at"}
}

func adminUserRows() *sqlmock.Rows {
	return sqlmock.NewRows(userColumns()).
		AddRow(1, "admin@alzin.test", "Admin", "Al", "al", "x", "Lille", "admin", time.Now())
}

func expectUserByEmail(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery(`SELECT \* FROM utilisateur WHERE email = \?`).WillReturnRows(rows)
}

func newJSONRequest(method, target, body string) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(headerUserEmail, "admin@alzin.test")
	return req, httptest.NewRecorder()
}

func TestChantTitleTakenByExistingSong(t *testing.T) {
	mock := useMockDB(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM chant WHERE LOWER\(nom_chant\) = LOWER\(\?\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	taken, err := chantTitleTaken(context.Background(), db, "Le P'tit Quinquin", 0, 0)
	require.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChantTitleTakenByPendingDemande(t *testing.T) {
	mock := useMockDB(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM chant WHERE LOWER\(nom_chant\) = LOWER\(\?\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM demande WHERE kind = \? AND statut = \?`).
		WithArgs(demandeKindChant, statutEnAttente, "Min Corps", 0).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	taken, err := chantTitleTaken(context.Background(), db, "Min Corps", 0, 0)
	require.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChantTitleFreeWhenOnlyRefusedDemandesMatch(t *testing.T) {
	mock := useMockDB(t)

	// refused requests are filtered out by the pending-status predicate, so
	// both counts come back zero
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM chant WHERE LOWER\(nom_chant\) = LOWER\(\?\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM demande WHERE kind = \? AND statut = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	taken, err := chantTitleTaken(context.Background(), db, "Min Corps", 0, 0)
	require.NoError(t, err)
	assert.False(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func demandeColumns() []string {
	return []string{
		"id", "ulid", "kind", "statut", "utilisateur_id", "chant_id",
		"nom_chant", "auteur", "ville_origine", "paroles", "description",
		"categorie_id", "categories", "illustration_chant", "paroles_pdf",
		"partition_file", "fichier_mp3", "justification_refus",
		"date_creation", "date_decision",
	}
}

func pendingDemandeRow(kind string) *sqlmock.Rows {
	return sqlmock.NewRows(demandeColumns()).AddRow(
		7, "01J0000000000000000000TEST", kind, statutEnAttente, 2, nil,
		"Min Corps", "", "", "", "",
		nil, "", nil, nil,
		nil, nil, nil,
		time.Now(), nil,
	)
}

func TestDecisionRejectsUnknownAction(t *testing.T) {
	mock := useMockDB(t)
	useTempFileStore(t)

	expectUserByEmail(mock, adminUserRows())

	e := echo.New()
	req, rec := newJSONRequest(http.MethodPatch, "/api/admin/demandes/chants/7", `{"action":"PEUT-ETRE"}`)
	c := e.NewContext(req, rec)
	c.SetParamNames("demandeID")
	c.SetParamValues("7")

	require.NoError(t, apiAdminDemandeDecisionHandler(demandeKindChant)(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecisionRefuseRequiresJustification(t *testing.T) {
	mock := useMockDB(t)
	useTempFileStore(t)

	expectUserByEmail(mock, adminUserRows())

	e := echo.New()
	req, rec := newJSONRequest(http.MethodPatch, "/api/admin/demandes/chants/7", `{"action":"REFUSER","justification":"  "}`)
	c := e.NewContext(req, rec)
	c.SetParamNames("demandeID")
	c.SetParamValues("7")

	require.NoError(t, apiAdminDemandeDecisionHandler(demandeKindChant)(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecisionAlreadyDecided(t *testing.T) {
	mock := useMockDB(t)
	useTempFileStore(t)

	expectUserByEmail(mock, adminUserRows())
	mock.ExpectQuery(`SELECT \* FROM demande WHERE id = \? AND kind = \?`).
		WillReturnRows(pendingDemandeRow(demandeKindChant))
	mock.ExpectBegin()
	// the check-and-set misses: someone else decided first
	mock.ExpectExec(`UPDATE demande SET statut = \?.+WHERE id = \? AND statut = \?`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	e := echo.New()
	req, rec := newJSONRequest(http.MethodPatch, "/api/admin/demandes/chants/7", `{"action":"ACCEPTER"}`)
	c := e.NewContext(req, rec)
	c.SetParamNames("demandeID")
	c.SetParamValues("7")

	require.NoError(t, apiAdminDemandeDecisionHandler(demandeKindChant)(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body BasicResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "Demande déjà traitée", *body.Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecisionRefuseFlipsStatus(t *testing.T) {
	mock := useMockDB(t)
	useTempFileStore(t)

	expectUserByEmail(mock, adminUserRows())
	mock.ExpectQuery(`SELECT \* FROM demande WHERE id = \? AND kind = \?`).
		WillReturnRows(pendingDemandeRow(demandeKindChant))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE demande SET statut = \?.+WHERE id = \? AND statut = \?`).
		WithArgs(statutRefusee, sqlmock.AnyArg(), 7, statutEnAttente).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	refused := sqlmock.NewRows(demandeColumns()).AddRow(
		7, "01J0000000000000000000TEST", demandeKindChant, statutRefusee, 2, nil,
		"Min Corps", "", "", "", "",
		nil, "", nil, nil,
		nil, nil, "paroles incomplètes",
		time.Now(), time.Now(),
	)
	mock.ExpectQuery(`SELECT \* FROM demande WHERE id = \? AND kind = \?`).WillReturnRows(refused)
	// serialization reloads the owner and the request's track list
	mock.ExpectQuery(`SELECT \* FROM utilisateur WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows(userColumns()).
			AddRow(2, "u@alzin.test", "Durand", "Jo", "jo", "x", "Lille", "user", time.Now()))
	mock.ExpectQuery(`SELECT \* FROM demande_piste WHERE demande_id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "demande_id", "fichier_mp3"}))

	e := echo.New()
	req, rec := newJSONRequest(http.MethodPatch, "/api/admin/demandes/chants/7",
		`{"action":"REFUSER","justification":"paroles incomplètes"}`)
	c := e.NewContext(req, rec)
	c.SetParamNames("demandeID")
	c.SetParamValues("7")

	require.NoError(t, apiAdminDemandeDecisionHandler(demandeKindChant)(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var body DecisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, statutRefusee, body.Demande.Statut)
	require.NotNil(t, body.Demande.JustificationRefus)
	assert.Equal(t, "paroles incomplètes", *body.Demande.JustificationRefus)
	assert.Nil(t, body.Chant)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// captureArg records a string query argument so the test can look at what
// the handler actually wrote.
type captureArg struct{ dst *string }

func (a captureArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	*a.dst = s
	return true
}

func chantColumns() []string {
	return []string{
		"id", "nom_chant", "auteur", "ville_origine", "paroles", "description",
		"illustration_chant", "paroles_pdf", "partition_file", "utilisateur_id", "created_at",
	}
}

func TestDecisionAccepterPromotesChant(t *testing.T) {
	mock := useMockDB(t)
	useTempFileStore(t)

	origBytes := []byte("png-bytes")
	origRel, err := fileStore.Save("illustrations", "cover.png", origBytes)
	require.NoError(t, err)

	pending := sqlmock.NewRows(demandeColumns()).AddRow(
		7, "01J0000000000000000000TEST", demandeKindChant, statutEnAttente, 2, nil,
		"Amazing Grace", "Trad.", "Lille", "paroles...", "",
		nil, "", origRel, nil,
		nil, nil, nil,
		time.Now(), nil,
	)

	expectUserByEmail(mock, adminUserRows())
	mock.ExpectQuery(`SELECT \* FROM demande WHERE id = \? AND kind = \?`).WillReturnRows(pending)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE demande SET statut = \?.+WHERE id = \? AND statut = \?`).
		WithArgs(statutAcceptee, sqlmock.AnyArg(), 7, statutEnAttente).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM chant WHERE LOWER\(nom_chant\) = LOWER\(\?\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM demande WHERE kind = \? AND statut = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	var clonedRel string
	mock.ExpectExec(`INSERT INTO chant`).
		WithArgs("Amazing Grace", "Trad.", "Lille", "paroles...", "",
			captureArg{&clonedRel}, sqlmock.AnyArg(), sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(42, 1))
	// no category supplied: the song lands in the default one
	mock.ExpectQuery(`SELECT id FROM categorie WHERE nom_categorie = \?`).
		WithArgs(defaultCategorie).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`INSERT IGNORE INTO appartenir`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM demande_piste WHERE demande_id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "demande_id", "fichier_mp3"}))
	mock.ExpectExec(`UPDATE demande SET chant_id = \? WHERE id = \?`).
		WithArgs(42, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	promoted := func() *sqlmock.Rows {
		return sqlmock.NewRows(chantColumns()).AddRow(
			42, "Amazing Grace", "Trad.", "Lille", "paroles...", "",
			"illustrations/x/cover.png", nil, nil, 2, time.Now(),
		)
	}
	mock.ExpectQuery(`SELECT \* FROM chant WHERE id = \?`).WillReturnRows(promoted())
	mock.ExpectQuery(`SELECT pseudo FROM utilisateur WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"pseudo"}).AddRow("jo"))
	mock.ExpectQuery(`nom_categorie FROM categorie c JOIN appartenir`).
		WillReturnRows(sqlmock.NewRows([]string{"nom_categorie"}).AddRow(defaultCategorie))
	mock.ExpectQuery(`SELECT \* FROM piste_audio WHERE chant_id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "fichier_mp3", "chant_id", "utilisateur_id", "created_at"}))
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"e"}).AddRow(false))
	mock.ExpectCommit()

	accepted := sqlmock.NewRows(demandeColumns()).AddRow(
		7, "01J0000000000000000000TEST", demandeKindChant, statutAcceptee, 2, 42,
		"Amazing Grace", "Trad.", "Lille", "paroles...", "",
		nil, "", origRel, nil,
		nil, nil, nil,
		time.Now(), time.Now(),
	)
	mock.ExpectQuery(`SELECT \* FROM demande WHERE id = \? AND kind = \?`).WillReturnRows(accepted)
	mock.ExpectQuery(`SELECT \* FROM utilisateur WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows(userColumns()).
			AddRow(2, "u@alzin.test", "Durand", "Jo", "jo", "x", "Lille", "user", time.Now()))
	mock.ExpectQuery(`SELECT \* FROM demande_piste WHERE demande_id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "demande_id", "fichier_mp3"}))
	mock.ExpectQuery(`SELECT \* FROM chant WHERE id = \?`).WillReturnRows(promoted())

	e := echo.New()
	req, rec := newJSONRequest(http.MethodPatch, "/api/admin/demandes/chants/7", `{"action":"ACCEPTER"}`)
	c := e.NewContext(req, rec)
	c.SetParamNames("demandeID")
	c.SetParamValues("7")

	require.NoError(t, apiAdminDemandeDecisionHandler(demandeKindChant)(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var body DecisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, statutAcceptee, body.Demande.Statut)
	require.NotNil(t, body.Chant)
	assert.Equal(t, "Amazing Grace", body.Chant.NomChant)
	assert.False(t, body.Chant.AEteModifie)

	// the song got its own copy of the upload, byte for byte, on a fresh
	// path; the demande's file is untouched
	require.NotEmpty(t, clonedRel)
	assert.NotEqual(t, origRel, clonedRel)
	clonedBytes, _ := fileStore.Clone(clonedRel)
	assert.Equal(t, origBytes, clonedBytes)
	stillThere, _ := fileStore.Clone(origRel)
	assert.Equal(t, origBytes, stillThere)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecisionAccepterReplacesWholeChantOnModification(t *testing.T) {
	mock := useMockDB(t)
	useTempFileStore(t)

	// the demande proposes a new title and blanks for every other field,
	// with no category: the song must come out exactly like that
	pending := sqlmock.NewRows(demandeColumns()).AddRow(
		9, "01J0000000000000000000TEST", demandeKindModification, statutEnAttente, 2, 42,
		"Nouveau Titre", "", "", "", "",
		nil, "", nil, nil,
		nil, nil, nil,
		time.Now(), nil,
	)

	expectUserByEmail(mock, adminUserRows())
	mock.ExpectQuery(`SELECT \* FROM demande WHERE id = \? AND kind = \?`).WillReturnRows(pending)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE demande SET statut = \?.+WHERE id = \? AND statut = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT \* FROM chant WHERE id = \? FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(chantColumns()).AddRow(
			42, "Ancien Titre", "Vieil Auteur", "Lille", "anciennes paroles", "ancienne description",
			nil, nil, nil, 1, time.Now(),
		))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM chant WHERE LOWER\(nom_chant\) = LOWER\(\?\)`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM demande WHERE kind = \? AND statut = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`UPDATE chant SET nom_chant = \?.+utilisateur_id = \? WHERE id = \?`).
		WithArgs("Nouveau Titre", "", "", "", "",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 2, 42).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM appartenir WHERE chant_id = \?`).
		WithArgs(42).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id FROM categorie WHERE nom_categorie = \?`).
		WithArgs(defaultCategorie).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`INSERT IGNORE INTO appartenir`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT pseudo FROM utilisateur WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"pseudo"}).AddRow("jo"))
	mock.ExpectQuery(`nom_categorie FROM categorie c JOIN appartenir`).
		WillReturnRows(sqlmock.NewRows([]string{"nom_categorie"}).AddRow(defaultCategorie))
	mock.ExpectQuery(`SELECT \* FROM piste_audio WHERE chant_id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "fichier_mp3", "chant_id", "utilisateur_id", "created_at"}))
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"e"}).AddRow(true))
	mock.ExpectCommit()

	accepted := sqlmock.NewRows(demandeColumns()).AddRow(
		9, "01J0000000000000000000TEST", demandeKindModification, statutAcceptee, 2, 42,
		"Nouveau Titre", "", "", "", "",
		nil, "", nil, nil,
		nil, nil, nil,
		time.Now(), time.Now(),
	)
	mock.ExpectQuery(`SELECT \* FROM demande WHERE id = \? AND kind = \?`).WillReturnRows(accepted)
	mock.ExpectQuery(`SELECT \* FROM utilisateur WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows(userColumns()).
			AddRow(2, "u@alzin.test", "Durand", "Jo", "jo", "x", "Lille", "user", time.Now()))
	mock.ExpectQuery(`SELECT \* FROM demande_piste WHERE demande_id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "demande_id", "fichier_mp3"}))
	mock.ExpectQuery(`SELECT \* FROM chant WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows(chantColumns()).AddRow(
			42, "Nouveau Titre", "", "", "", "",
			nil, nil, nil, 2, time.Now(),
		))

	e := echo.New()
	req, rec := newJSONRequest(http.MethodPatch, "/api/admin/demandes/modifications/9", `{"action":"ACCEPTER"}`)
	c := e.NewContext(req, rec)
	c.SetParamNames("demandeID")
	c.SetParamValues("9")

	require.NoError(t, apiAdminDemandeDecisionHandler(demandeKindModification)(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var body DecisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Chant)
	assert.Equal(t, "Nouveau Titre", body.Chant.NomChant)
	assert.Equal(t, "", body.Chant.Auteur)
	assert.Equal(t, "", body.Chant.Paroles)
	require.NotNil(t, body.Chant.UtilisateurID)
	assert.Equal(t, 2, *body.Chant.UtilisateurID)
	assert.Equal(t, []string{defaultCategorie}, body.Chant.Categories)
	assert.True(t, body.Chant.AEteModifie)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecisionAccepterAudioToleratesMissingFile(t *testing.T) {
	mock := useMockDB(t)
	useTempFileStore(t)

	// the referenced upload is gone from disk
	pending := sqlmock.NewRows(demandeColumns()).AddRow(
		8, "01J0000000000000000000TEST", demandeKindAudio, statutEnAttente, 2, 42,
		"", "", "", "", "",
		nil, "", nil, nil,
		nil, "demandes_audio/x/gone.mp3", nil,
		time.Now(), nil,
	)

	expectUserByEmail(mock, adminUserRows())
	mock.ExpectQuery(`SELECT \* FROM demande WHERE id = \? AND kind = \?`).WillReturnRows(pending)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE demande SET statut = \?.+WHERE id = \? AND statut = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM chant WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	// no track insert: the acceptance goes through regardless
	mock.ExpectCommit()

	accepted := sqlmock.NewRows(demandeColumns()).AddRow(
		8, "01J0000000000000000000TEST", demandeKindAudio, statutAcceptee, 2, 42,
		"", "", "", "", "",
		nil, "", nil, nil,
		nil, "demandes_audio/x/gone.mp3", nil,
		time.Now(), time.Now(),
	)
	mock.ExpectQuery(`SELECT \* FROM demande WHERE id = \? AND kind = \?`).WillReturnRows(accepted)
	mock.ExpectQuery(`SELECT \* FROM utilisateur WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows(userColumns()).
			AddRow(2, "u@alzin.test", "Durand", "Jo", "jo", "x", "Lille", "user", time.Now()))
	mock.ExpectQuery(`SELECT \* FROM demande_piste WHERE demande_id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "demande_id", "fichier_mp3"}))
	mock.ExpectQuery(`SELECT \* FROM chant WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows(chantColumns()).AddRow(
			42, "Min Corps", "", "", "", "",
			nil, nil, nil, 2, time.Now(),
		))

	e := echo.New()
	req, rec := newJSONRequest(http.MethodPatch, "/api/admin/demandes/audio/8", `{"action":"ACCEPTER"}`)
	c := e.NewContext(req, rec)
	c.SetParamNames("demandeID")
	c.SetParamValues("8")

	require.NoError(t, apiAdminDemandeDecisionHandler(demandeKindAudio)(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var body DecisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, statutAcceptee, body.Demande.Statut)
	assert.Nil(t, body.PisteAudio)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestModificationSubmitRequiresTitle(t *testing.T) {
	mock := useMockDB(t)
	useTempFileStore(t)

	expectUserByEmail(mock, adminUserRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM chant WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	form := url.Values{}
	form.Set("chant_id", "42")
	req := httptest.NewRequest(http.MethodPost, "/api/demandes/modifications", strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	req.Header.Set(headerUserEmail, "admin@alzin.test")
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, apiDemandeModificationSubmitHandler(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAudioSubmitRejectsBadUploadName(t *testing.T) {
	mock := useMockDB(t)
	useTempFileStore(t)

	expectUserByEmail(mock, adminUserRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM chant WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("chant_id", "42"))
	fw, err := mw.CreateFormFile("fichier_mp3", ".")
	require.NoError(t, err)
	_, err = fw.Write([]byte("mp3-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/demandes/audio", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(headerUserEmail, "admin@alzin.test")
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	require.NoError(t, apiDemandeAudioSubmitHandler(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body BasicResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "bad file name", *body.Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecisionForbiddenForNonAdmin(t *testing.T) {
	mock := useMockDB(t)
	useTempFileStore(t)

	expectUserByEmail(mock, sqlmock.NewRows(userColumns()).
		AddRow(2, "u@alzin.test", "Durand", "Jo", "jo", "x", "Lille", "user", time.Now()))

	e := echo.New()
	req, rec := newJSONRequest(http.MethodPatch, "/api/admin/demandes/chants/7", `{"action":"ACCEPTER"}`)
	req.Header.Set(headerUserEmail, "u@alzin.test")
	c := e.NewContext(req, rec)
	c.SetParamNames("demandeID")
	c.SetParamValues("7")

	require.NoError(t, apiAdminDemandeDecisionHandler(demandeKindChant)(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
