package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminUserDeleteRemovesUploadedMedia(t *testing.T) {
	mock := useMockDB(t)
	useTempFileStore(t)

	demandeFile, err := fileStore.Save("illustrations", "cover.png", []byte("png"))
	require.NoError(t, err)
	pisteFile, err := fileStore.Save("demandes_audio", "take.mp3", []byte("mp3"))
	require.NoError(t, err)
	supportFile, err := fileStore.Save("support", "screenshot.png", []byte("png2"))
	require.NoError(t, err)

	expectUserByEmail(mock, adminUserRows())
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM utilisateur WHERE id = \? FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(userColumns()).
			AddRow(2, "u@alzin.test", "Durand", "Jo", "jo", "x", "Lille", "user", time.Now()))
	mock.ExpectQuery(`SELECT \* FROM demande WHERE utilisateur_id = \?`).
		WillReturnRows(sqlmock.NewRows(demandeColumns()).AddRow(
			7, "01J0000000000000000000TEST", demandeKindChant, statutEnAttente, 2, nil,
			"Min Corps", "", "", "", "",
			nil, "", demandeFile, nil,
			nil, nil, nil,
			time.Now(), nil,
		))
	mock.ExpectQuery(`SELECT fichier_mp3 FROM demande_piste`).
		WillReturnRows(sqlmock.NewRows([]string{"fichier_mp3"}).AddRow(pisteFile))
	mock.ExpectQuery(`SELECT fichier FROM piece_jointe_support`).
		WillReturnRows(sqlmock.NewRows([]string{"fichier"}).AddRow(supportFile))
	for i := 0; i < 12; i++ {
		mock.ExpectExec(`DELETE FROM`).WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(`UPDATE chant SET utilisateur_id = NULL`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE piste_audio SET utilisateur_id = NULL`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM utilisateur WHERE id = \?`).
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/users/2", nil)
	req.Header.Set(headerUserEmail, "admin@alzin.test")
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.SetParamNames("userID")
	c.SetParamValues("2")

	require.NoError(t, apiAdminUserDeleteHandler(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// the account's uploads left the disk together with the rows
	for _, rel := range []string{demandeFile, pisteFile, supportFile} {
		content, _ := fileStore.Clone(rel)
		assert.Nil(t, content)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}
