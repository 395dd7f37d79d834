package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// readMultipartFile pulls one uploaded file out of the form. A missing part
// is not an error, the field is simply absent.
func readMultipartFile(c echo.Context, field string) ([]byte, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, "", fmt.Errorf("error Open multipart file %s: %w", field, err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, "", fmt.Errorf("error ReadAll multipart file %s: %w", field, err)
	}
	return content, fh.Filename, nil
}

func readAndClose(f io.ReadCloser) ([]byte, error) {
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("error ReadAll upload: %w", err)
	}
	return content, nil
}

// formHas reports whether the field was present in the submitted form,
// distinguishing "absent" from "sent empty". FormValue forces the parse.
func formHas(c echo.Context, key string) bool {
	_ = c.FormValue(key)
	if c.Request().Form == nil {
		return false
	}
	_, ok := c.Request().Form[key]
	return ok
}

func userPseudo(ctx context.Context, q connOrTx, userID sql.NullInt64) (*int, *string, error) {
	if !userID.Valid {
		return nil, nil, nil
	}
	var pseudo string
	err := q.GetContext(ctx, &pseudo, "SELECT pseudo FROM utilisateur WHERE id = ?", userID.Int64)
	if err == sql.ErrNoRows {
		return nullIntPtr(userID), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("error Get pseudo: %w", err)
	}
	return nullIntPtr(userID), &pseudo, nil
}

func serializePisteAudio(ctx context.Context, q connOrTx, row PisteAudioRow) (PisteAudio, error) {
	moyenne, nbNotes, err := ratingSummary(ctx, q, row.ID)
	if err != nil {
		return PisteAudio{}, err
	}
	userID, pseudo, err := userPseudo(ctx, q, row.UtilisateurID)
	if err != nil {
		return PisteAudio{}, err
	}
	return PisteAudio{
		ID:                row.ID,
		FichierMP3:        fileStore.URL(row.FichierMP3),
		UtilisateurID:     userID,
		UtilisateurPseudo: pseudo,
		NoteMoyenne:       moyenne,
		NbNotes:           nbNotes,
	}, nil
}

func serializeChant(ctx context.Context, q connOrTx, row ChantRow) (Chant, error) {
	userID, pseudo, err := userPseudo(ctx, q, row.UtilisateurID)
	if err != nil {
		return Chant{}, err
	}

	categories := []string{}
	if err := q.SelectContext(ctx, &categories,
		"SELECT c.nom_categorie FROM categorie c JOIN appartenir a ON a.categorie_id = c.id WHERE a.chant_id = ? ORDER BY c.nom_categorie",
		row.ID,
	); err != nil {
		return Chant{}, fmt.Errorf("error Select categories of chant: %w", err)
	}

	var pisteRows []PisteAudioRow
	if err := q.SelectContext(ctx, &pisteRows,
		"SELECT * FROM piste_audio WHERE chant_id = ? ORDER BY id", row.ID,
	); err != nil {
		return Chant{}, fmt.Errorf("error Select piste_audio of chant: %w", err)
	}
	pistes := make([]PisteAudio, 0, len(pisteRows))
	for _, p := range pisteRows {
		piste, err := serializePisteAudio(ctx, q, p)
		if err != nil {
			return Chant{}, err
		}
		pistes = append(pistes, piste)
	}

	var modifie bool
	if err := q.GetContext(ctx, &modifie,
		"SELECT EXISTS (SELECT 1 FROM demande WHERE kind = ? AND statut = ? AND chant_id = ?)",
		demandeKindModification, statutAcceptee, row.ID,
	); err != nil {
		return Chant{}, fmt.Errorf("error Get a_ete_modifie: %w", err)
	}

	return Chant{
		ID:                row.ID,
		NomChant:          row.NomChant,
		Auteur:            row.Auteur,
		VilleOrigine:      row.VilleOrigine,
		Paroles:           row.Paroles,
		Description:       row.Description,
		UtilisateurID:     userID,
		UtilisateurPseudo: pseudo,
		IllustrationURL:   fileStore.URL(row.Illustration.String),
		ParolesPDFURL:     fileStore.URL(row.ParolesPDF.String),
		PartitionURL:      fileStore.URL(row.PartitionFile.String),
		Categories:        categories,
		PistesAudio:       pistes,
		AEteModifie:       modifie,
	}, nil
}

func apiChantsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var rows []ChantRow
	if err := db.SelectContext(ctx, &rows, "SELECT * FROM chant ORDER BY id"); err != nil {
		return fmt.Errorf("error Select chant: %w", err)
	}

	chants := make([]Chant, 0, len(rows))
	for _, row := range rows {
		chant, err := serializeChant(ctx, db, row)
		if err != nil {
			return err
		}
		chants = append(chants, chant)
	}
	body := ChantsResponse{BasicResponse: okResponse(), Chants: chants}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiChantsHandler: %w", err)
	}
	return nil
}

func apiChantHandler(c echo.Context) error {
	ctx := c.Request().Context()

	chantID, err := paramInt(c, "chantID")
	if err != nil {
		return respondError(c, err)
	}

	var row ChantRow
	err = db.GetContext(ctx, &row, "SELECT * FROM chant WHERE id = ?", chantID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such chant")
	}
	if err != nil {
		return fmt.Errorf("error Get chant: %w", err)
	}

	chant, err := serializeChant(ctx, db, row)
	if err != nil {
		return err
	}
	body := SingleChantResponse{BasicResponse: okResponse(), Chant: chant}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiChantHandler: %w", err)
	}
	return nil
}

// chant file fields and the media directory each one stores under
var chantFileFields = map[string]string{
	"illustration_chant": "illustrations",
	"paroles_pdf":        "paroles_pdf",
	"partition_file":     "partitions",
}

func saveChantFiles(c echo.Context) (map[string]string, error) {
	saved := map[string]string{}
	for field, dir := range chantFileFields {
		content, name, err := readMultipartFile(c, field)
		if err != nil {
			return nil, err
		}
		if content == nil {
			continue
		}
		rel, err := fileStore.Save(dir, name, content)
		if err != nil {
			return nil, err
		}
		saved[field] = rel
	}
	return saved, nil
}

func apiChantAddHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := requireAdmin(c)
	if err != nil {
		return respondError(c, err)
	}

	nomChant := strings.TrimSpace(c.FormValue("nom_chant"))
	if nomChant == "" {
		return errorResponse(c, 400, "nom_chant is required")
	}

	var count int
	if err := db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM chant WHERE LOWER(nom_chant) = LOWER(?)", nomChant,
	); err != nil {
		return fmt.Errorf("error Count chant by name: %w", err)
	}
	if count > 0 {
		return errorResponse(c, 409, "Un chant avec ce titre existe déjà")
	}

	saved, err := saveChantFiles(c)
	if err != nil {
		return respondError(c, err)
	}

	result, err := db.ExecContext(ctx,
		"INSERT INTO chant (nom_chant, auteur, ville_origine, paroles, description, illustration_chant, paroles_pdf, partition_file, utilisateur_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(6))",
		nomChant, c.FormValue("auteur"), c.FormValue("ville_origine"),
		c.FormValue("paroles"), c.FormValue("description"),
		sqlNullable(saved["illustration_chant"]), sqlNullable(saved["paroles_pdf"]), sqlNullable(saved["partition_file"]),
		user.ID,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return errorResponse(c, 409, "Un chant avec ce titre existe déjà")
		}
		return fmt.Errorf("error Insert chant: %w", err)
	}
	chantID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error LastInsertId of chant: %w", err)
	}

	if err := attachCategories(ctx, db, int(chantID), splitCategories(c.FormValue("categories")), user.ID); err != nil {
		return err
	}

	var row ChantRow
	if err := db.GetContext(ctx, &row, "SELECT * FROM chant WHERE id = ?", chantID); err != nil {
		return fmt.Errorf("error Get chant after insert: %w", err)
	}
	chant, err := serializeChant(ctx, db, row)
	if err != nil {
		return err
	}
	body := SingleChantResponse{BasicResponse: okResponse(), Chant: chant}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiChantAddHandler: %w", err)
	}
	return nil
}

func apiChantUpdateHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	chantID, err := paramInt(c, "chantID")
	if err != nil {
		return respondError(c, err)
	}

	var row ChantRow
	err = db.GetContext(ctx, &row, "SELECT * FROM chant WHERE id = ?", chantID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such chant")
	}
	if err != nil {
		return fmt.Errorf("error Get chant: %w", err)
	}
	if user.Role != "admin" && (!row.UtilisateurID.Valid || int(row.UtilisateurID.Int64) != user.ID) {
		return errorResponse(c, 403, "not your chant")
	}

	if v := c.FormValue("nom_chant"); v != "" {
		nomChant := strings.TrimSpace(v)
		var count int
		if err := db.GetContext(ctx, &count,
			"SELECT COUNT(*) FROM chant WHERE LOWER(nom_chant) = LOWER(?) AND id <> ?", nomChant, chantID,
		); err != nil {
			return fmt.Errorf("error Count chant by name: %w", err)
		}
		if count > 0 {
			return errorResponse(c, 409, "Un chant avec ce titre existe déjà")
		}
		row.NomChant = nomChant
	}
	if formHas(c, "auteur") {
		row.Auteur = c.FormValue("auteur")
	}
	if formHas(c, "ville_origine") {
		row.VilleOrigine = c.FormValue("ville_origine")
	}
	if formHas(c, "paroles") {
		row.Paroles = c.FormValue("paroles")
	}
	if formHas(c, "description") {
		row.Description = c.FormValue("description")
	}

	saved, err := saveChantFiles(c)
	if err != nil {
		return respondError(c, err)
	}
	replaceFile := func(old *sql.NullString, rel string) error {
		if rel == "" {
			return nil
		}
		if err := fileStore.Remove(old.String); err != nil {
			return err
		}
		*old = sql.NullString{String: rel, Valid: true}
		return nil
	}
	if err := replaceFile(&row.Illustration, saved["illustration_chant"]); err != nil {
		return err
	}
	if err := replaceFile(&row.ParolesPDF, saved["paroles_pdf"]); err != nil {
		return err
	}
	if err := replaceFile(&row.PartitionFile, saved["partition_file"]); err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx,
		"UPDATE chant SET nom_chant = ?, auteur = ?, ville_origine = ?, paroles = ?, description = ?, illustration_chant = ?, paroles_pdf = ?, partition_file = ? WHERE id = ?",
		row.NomChant, row.Auteur, row.VilleOrigine, row.Paroles, row.Description,
		row.Illustration, row.ParolesPDF, row.PartitionFile, chantID,
	); err != nil {
		if isDuplicateEntry(err) {
			return errorResponse(c, 409, "Un chant avec ce titre existe déjà")
		}
		return fmt.Errorf("error Update chant: %w", err)
	}

	if formHas(c, "categories") {
		if err := replaceCategories(ctx, chantID, splitCategories(c.FormValue("categories")), user.ID); err != nil {
			return err
		}
	}

	chant, err := serializeChant(ctx, db, row)
	if err != nil {
		return err
	}
	body := SingleChantResponse{BasicResponse: okResponse(), Chant: chant}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiChantUpdateHandler: %w", err)
	}
	return nil
}

// apiChantDeleteHandler removes a song, or just one of its file fields when
// ?field= names one.
func apiChantDeleteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	chantID, err := paramInt(c, "chantID")
	if err != nil {
		return respondError(c, err)
	}

	var row ChantRow
	err = db.GetContext(ctx, &row, "SELECT * FROM chant WHERE id = ?", chantID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such chant")
	}
	if err != nil {
		return fmt.Errorf("error Get chant: %w", err)
	}
	if user.Role != "admin" && (!row.UtilisateurID.Valid || int(row.UtilisateurID.Int64) != user.ID) {
		return errorResponse(c, 403, "not your chant")
	}

	if field := c.QueryParam("field"); field != "" {
		if _, ok := chantFileFields[field]; !ok {
			return errorResponse(c, 400, "unknown file field")
		}
		var rel string
		switch field {
		case "illustration_chant":
			rel = row.Illustration.String
		case "paroles_pdf":
			rel = row.ParolesPDF.String
		case "partition_file":
			rel = row.PartitionFile.String
		}
		if err := fileStore.Remove(rel); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx,
			fmt.Sprintf("UPDATE chant SET %s = NULL WHERE id = ?", field), chantID,
		); err != nil {
			return fmt.Errorf("error Clear chant file field: %w", err)
		}
		if err := c.JSON(http.StatusOK, okResponse()); err != nil {
			return fmt.Errorf("error returns JSON at apiChantDeleteHandler: %w", err)
		}
		return nil
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

	var pisteFiles []string
	if err := tx.SelectContext(ctx, &pisteFiles, "SELECT fichier_mp3 FROM piste_audio WHERE chant_id = ?", chantID); err != nil {
		return fmt.Errorf("error Select piste files: %w", err)
	}
	cleanups := []string{
		"DELETE FROM noter WHERE piste_audio_id IN (SELECT id FROM piste_audio WHERE chant_id = ?)",
		"DELETE FROM piste_audio WHERE chant_id = ?",
		"DELETE FROM appartenir WHERE chant_id = ?",
		"DELETE FROM favoris WHERE chant_id = ?",
		"DELETE FROM commentaire WHERE chant_id = ?",
		"DELETE FROM contenir_chant_perso WHERE chant_id = ?",
		"DELETE FROM contenir_chant_template WHERE chant_id = ?",
		"DELETE FROM chanter WHERE chant_id = ?",
		"DELETE FROM chant WHERE id = ?",
	}
	for _, q := range cleanups {
		if _, err := tx.ExecContext(ctx, q, chantID); err != nil {
			return fmt.Errorf("error cleanup on chant delete: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error Commit at chant delete: %w", err)
	}

	for _, rel := range []string{row.Illustration.String, row.ParolesPDF.String, row.PartitionFile.String} {
		if err := fileStore.Remove(rel); err != nil {
			return err
		}
	}
	for _, rel := range pisteFiles {
		if err := fileStore.Remove(rel); err != nil {
			return err
		}
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiChantDeleteHandler: %w", err)
	}
	return nil
}

func sqlNullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func splitCategories(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
