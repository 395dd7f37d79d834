package main

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// ratingSummary computes the average and count for one track. No ratings
// yield (0, 0), not an error.
func ratingSummary(ctx context.Context, q connOrTx, pisteID int) (float64, int, error) {
	var row struct {
		Moyenne float64 `db:"moyenne"`
		NbNotes int     `db:"nb_notes"`
	}
	err := q.GetContext(ctx, &row,
		"SELECT COALESCE(AVG(valeur_note), 0) AS moyenne, COUNT(*) AS nb_notes FROM noter WHERE piste_audio_id = ?",
		pisteID,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("error Get rating summary: %w", err)
	}
	return math.Round(row.Moyenne*100) / 100, row.NbNotes, nil
}

func apiPistesAudioHandler(c echo.Context) error {
	ctx := c.Request().Context()

	query := "SELECT * FROM piste_audio"
	args := []interface{}{}
	if raw := c.QueryParam("chant_id"); raw != "" {
		chantID, err := strconv.Atoi(raw)
		if err != nil || chantID <= 0 {
			return errorResponse(c, 400, "bad chant_id")
		}
		query += " WHERE chant_id = ?"
		args = append(args, chantID)
	}
	query += " ORDER BY id"

	var rows []PisteAudioRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("error Select piste_audio: %w", err)
	}

	pistes := make([]PisteAudio, 0, len(rows))
	for _, row := range rows {
		piste, err := serializePisteAudio(ctx, db, row)
		if err != nil {
			return err
		}
		pistes = append(pistes, piste)
	}
	body := PistesAudioResponse{BasicResponse: okResponse(), Pistes: pistes}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiPistesAudioHandler: %w", err)
	}
	return nil
}

func apiPisteAudioHandler(c echo.Context) error {
	ctx := c.Request().Context()

	pisteID, err := paramInt(c, "pisteID")
	if err != nil {
		return respondError(c, err)
	}

	var row PisteAudioRow
	err = db.GetContext(ctx, &row, "SELECT * FROM piste_audio WHERE id = ?", pisteID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such piste audio")
	}
	if err != nil {
		return fmt.Errorf("error Get piste_audio: %w", err)
	}

	piste, err := serializePisteAudio(ctx, db, row)
	if err != nil {
		return err
	}
	body := SinglePisteAudioResponse{BasicResponse: okResponse(), Piste: piste}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiPisteAudioHandler: %w", err)
	}
	return nil
}

// apiPisteAudioAddHandler lets an admin attach a track directly, without
// going through a moderation request.
func apiPisteAudioAddHandler(c echo.Context) error {
	ctx := c.Request().Context()

	admin, err := requireAdmin(c)
	if err != nil {
		return respondError(c, err)
	}

	chantID, err := formInt(c, "chant_id")
	if err != nil {
		return respondError(c, err)
	}
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM chant WHERE id = ?", chantID); err != nil {
		return fmt.Errorf("error Count chant: %w", err)
	}
	if count == 0 {
		return errorResponse(c, 404, "no such chant")
	}

	content, name, err := readMultipartFile(c, "fichier_mp3")
	if err != nil {
		return err
	}
	if content == nil {
		return errorResponse(c, 400, "fichier_mp3 is required")
	}
	rel, err := fileStore.Save("pistes_audio", name, content)
	if err != nil {
		return respondError(c, err)
	}

	result, err := db.ExecContext(ctx,
		"INSERT INTO piste_audio (fichier_mp3, chant_id, utilisateur_id, created_at) VALUES (?, ?, ?, ?)",
		rel, chantID, admin.ID, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("error Insert piste_audio: %w", err)
	}
	pisteID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error LastInsertId of piste_audio: %w", err)
	}

	var row PisteAudioRow
	if err := db.GetContext(ctx, &row, "SELECT * FROM piste_audio WHERE id = ?", pisteID); err != nil {
		return fmt.Errorf("error Get piste_audio after insert: %w", err)
	}
	piste, err := serializePisteAudio(ctx, db, row)
	if err != nil {
		return err
	}
	body := SinglePisteAudioResponse{BasicResponse: okResponse(), Piste: piste}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiPisteAudioAddHandler: %w", err)
	}
	return nil
}

func apiPisteAudioDeleteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	pisteID, err := paramInt(c, "pisteID")
	if err != nil {
		return respondError(c, err)
	}

	var row PisteAudioRow
	err = db.GetContext(ctx, &row, "SELECT * FROM piste_audio WHERE id = ?", pisteID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such piste audio")
	}
	if err != nil {
		return fmt.Errorf("error Get piste_audio: %w", err)
	}
	if user.Role != "admin" && (!row.UtilisateurID.Valid || int(row.UtilisateurID.Int64) != user.ID) {
		return errorResponse(c, 403, "not your piste audio")
	}

	conn, err := db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("error db.Connx: %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error BeginTxx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM noter WHERE piste_audio_id = ?", pisteID); err != nil {
		return fmt.Errorf("error Delete noter: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM piste_audio WHERE id = ?", pisteID); err != nil {
		return fmt.Errorf("error Delete piste_audio: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error Commit at piste delete: %w", err)
	}

	if err := fileStore.Remove(row.FichierMP3); err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiPisteAudioDeleteHandler: %w", err)
	}
	return nil
}

func apiNotesHandler(c echo.Context) error {
	ctx := c.Request().Context()

	pisteID, err := strconv.Atoi(c.QueryParam("piste_audio_id"))
	if err != nil || pisteID <= 0 {
		return errorResponse(c, 400, "bad piste_audio_id")
	}

	var rows []NoterRow
	if err := db.SelectContext(ctx, &rows,
		"SELECT * FROM noter WHERE piste_audio_id = ? ORDER BY date_rating DESC, id DESC", pisteID,
	); err != nil {
		return fmt.Errorf("error Select noter: %w", err)
	}

	moyenne, nbNotes, err := ratingSummary(ctx, db, pisteID)
	if err != nil {
		return err
	}

	notes := make([]Note, 0, len(rows))
	for _, row := range rows {
		notes = append(notes, toNote(row))
	}
	body := NotesResponse{
		BasicResponse: okResponse(),
		Notes:         notes,
		Moyenne:       moyenne,
		NbNotes:       nbNotes,
	}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiNotesHandler: %w", err)
	}
	return nil
}

func toNote(row NoterRow) Note {
	return Note{
		ID:            row.ID,
		UtilisateurID: row.UtilisateurID,
		PisteAudioID:  row.PisteAudioID,
		ValeurNote:    row.ValeurNote,
		DateRating:    row.DateRating.Format(time.RFC3339),
	}
}

// apiNoterHandler records a rating. A second rating from the same user on
// the same track overwrites the first one.
func apiNoterHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var req NoterRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.ValeurNote < 1 || req.ValeurNote > 5 {
		return errorResponse(c, 400, "valeur_note must be between 1 and 5")
	}
	if req.PisteAudioID <= 0 {
		return errorResponse(c, 400, "bad piste_audio_id")
	}

	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM piste_audio WHERE id = ?", req.PisteAudioID); err != nil {
		return fmt.Errorf("error Count piste_audio: %w", err)
	}
	if count == 0 {
		return errorResponse(c, 404, "no such piste audio")
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO noter (utilisateur_id, piste_audio_id, valeur_note, date_rating) VALUES (?, ?, ?, NOW(6))
		 ON DUPLICATE KEY UPDATE valeur_note = VALUES(valeur_note), date_rating = NOW(6)`,
		user.ID, req.PisteAudioID, req.ValeurNote,
	)
	if err != nil {
		return fmt.Errorf("error Upsert noter: %w", err)
	}
	// MySQL reports 1 affected row for an insert, 2 for an overwrite
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error RowsAffected: %w", err)
	}

	var row NoterRow
	if err := db.GetContext(ctx, &row,
		"SELECT * FROM noter WHERE utilisateur_id = ? AND piste_audio_id = ?",
		user.ID, req.PisteAudioID,
	); err != nil {
		return fmt.Errorf("error Get noter after upsert: %w", err)
	}

	body := SingleNoteResponse{
		BasicResponse: okResponse(),
		Note:          toNote(row),
		Created:       affected == 1,
	}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiNoterHandler: %w", err)
	}
	return nil
}

func apiNoteDeleteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	noteID, err := paramInt(c, "noteID")
	if err != nil {
		return respondError(c, err)
	}

	var row NoterRow
	err = db.GetContext(ctx, &row, "SELECT * FROM noter WHERE id = ?", noteID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such note")
	}
	if err != nil {
		return fmt.Errorf("error Get noter: %w", err)
	}
	if user.Role != "admin" && row.UtilisateurID != user.ID {
		return errorResponse(c, 403, "not your note")
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM noter WHERE id = ?", noteID); err != nil {
		return fmt.Errorf("error Delete noter: %w", err)
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiNoteDeleteHandler: %w", err)
	}
	return nil
}
