package main

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatingSummaryEmpty(t *testing.T) {
	mock := useMockDB(t)

	mock.ExpectQuery(`SELECT COALESCE\(AVG\(valeur_note\), 0\)`).
		WillReturnRows(sqlmock.NewRows([]string{"moyenne", "nb_notes"}).AddRow(0.0, 0))

	moyenne, nbNotes, err := ratingSummary(context.Background(), db, 42)
	require.NoError(t, err)
	assert.Equal(t, 0.0, moyenne)
	assert.Equal(t, 0, nbNotes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingSummaryRoundsToTwoDecimals(t *testing.T) {
	mock := useMockDB(t)

	mock.ExpectQuery(`SELECT COALESCE\(AVG\(valeur_note\), 0\)`).
		WillReturnRows(sqlmock.NewRows([]string{"moyenne", "nb_notes"}).AddRow(11.0/3.0, 3))

	moyenne, nbNotes, err := ratingSummary(context.Background(), db, 42)
	require.NoError(t, err)
	assert.Equal(t, 3.67, moyenne)
	assert.Equal(t, 3, nbNotes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func regularUserRows() *sqlmock.Rows {
	return sqlmock.NewRows(userColumns()).
		AddRow(2, "jo@alzin.test", "Durand", "Jo", "jo", "x", "Lille", "user", time.Now())
}

func TestNoterRejectsOutOfRangeValues(t *testing.T) {
	for _, valeur := range []int{0, 6, -3} {
		mock := useMockDB(t)
		expectUserByEmail(mock, regularUserRows())

		e := echo.New()
		req, rec := newJSONRequest(http.MethodPost, "/api/noter",
			`{"piste_audio_id":5,"valeur_note":`+jsonInt(valeur)+`}`)
		req.Header.Set(headerUserEmail, "jo@alzin.test")
		c := e.NewContext(req, rec)

		require.NoError(t, apiNoterHandler(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "valeur_note=%d", valeur)
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func jsonInt(v int) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func noterColumns() []string {
	return []string{"id", "utilisateur_id", "piste_audio_id", "valeur_note", "date_rating"}
}

func TestNoterInsertsFirstRating(t *testing.T) {
	mock := useMockDB(t)

	expectUserByEmail(mock, regularUserRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM piste_audio WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO noter .+ON DUPLICATE KEY UPDATE valeur_note = VALUES\(valeur_note\)`).
		WithArgs(2, 5, 4).
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectQuery(`SELECT \* FROM noter WHERE utilisateur_id = \? AND piste_audio_id = \?`).
		WillReturnRows(sqlmock.NewRows(noterColumns()).AddRow(9, 2, 5, 4, time.Now()))

	e := echo.New()
	req, rec := newJSONRequest(http.MethodPost, "/api/noter", `{"piste_audio_id":5,"valeur_note":4}`)
	req.Header.Set(headerUserEmail, "jo@alzin.test")
	c := e.NewContext(req, rec)

	require.NoError(t, apiNoterHandler(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var body SingleNoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Created)
	assert.Equal(t, 4, body.Note.ValeurNote)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoterOverwritesExistingRating(t *testing.T) {
	mock := useMockDB(t)

	expectUserByEmail(mock, regularUserRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM piste_audio WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	// MySQL reports two affected rows when the upsert replaced a value
	mock.ExpectExec(`INSERT INTO noter .+ON DUPLICATE KEY UPDATE valeur_note = VALUES\(valeur_note\)`).
		WithArgs(2, 5, 2).
		WillReturnResult(sqlmock.NewResult(9, 2))
	mock.ExpectQuery(`SELECT \* FROM noter WHERE utilisateur_id = \? AND piste_audio_id = \?`).
		WillReturnRows(sqlmock.NewRows(noterColumns()).AddRow(9, 2, 5, 2, time.Now()))

	e := echo.New()
	req, rec := newJSONRequest(http.MethodPost, "/api/noter", `{"piste_audio_id":5,"valeur_note":2}`)
	req.Header.Set(headerUserEmail, "jo@alzin.test")
	c := e.NewContext(req, rec)

	require.NoError(t, apiNoterHandler(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var body SingleNoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Created)
	assert.Equal(t, 2, body.Note.ValeurNote)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoterUnknownTrack(t *testing.T) {
	mock := useMockDB(t)

	expectUserByEmail(mock, regularUserRows())
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM piste_audio WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	e := echo.New()
	req, rec := newJSONRequest(http.MethodPost, "/api/noter", `{"piste_audio_id":999,"valeur_note":3}`)
	req.Header.Set(headerUserEmail, "jo@alzin.test")
	c := e.NewContext(req, rec)

	require.NoError(t, apiNoterHandler(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
