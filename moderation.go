package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	actionAccepter = "ACCEPTER"
	actionRefuser  = "REFUSER"
)

func serializeDemande(ctx context.Context, q connOrTx, row DemandeRow) (Demande, error) {
	var owner UserRow
	err := q.GetContext(ctx, &owner, "SELECT * FROM utilisateur WHERE id = ?", row.UtilisateurID)
	if err != nil && err != sql.ErrNoRows {
		return Demande{}, fmt.Errorf("error Get demande owner: %w", err)
	}

	d := Demande{
		ID:                 row.ID,
		ULID:               row.ULID,
		Kind:               row.Kind,
		NomChant:           row.NomChant,
		Auteur:             row.Auteur,
		VilleOrigine:       row.VilleOrigine,
		Paroles:            row.Paroles,
		Description:        row.Description,
		Categories:         splitCategories(row.Categories),
		Statut:             row.Statut,
		JustificationRefus: nullStringPtr(row.JustificationRefus),
		DateCreation:       row.DateCreation.Format(time.RFC3339),
		DateDecision:       timePtr(row.DateDecision),
		Utilisateur:        toUserPublic(owner),
		IllustrationURL:    fileStore.URL(row.Illustration.String),
		ParolesPDFURL:      fileStore.URL(row.ParolesPDF.String),
		PartitionURL:       fileStore.URL(row.PartitionFile.String),
		FichierMP3URL:      fileStore.URL(row.FichierMP3.String),
		PistesAudio:        []DemandeAudio{},
	}

	if row.CategorieID.Valid {
		var cat CategorieRow
		err := q.GetContext(ctx, &cat, "SELECT * FROM categorie WHERE id = ?", row.CategorieID.Int64)
		if err != nil && err != sql.ErrNoRows {
			return Demande{}, fmt.Errorf("error Get demande categorie: %w", err)
		}
		if err == nil {
			d.Categorie = &Categorie{ID: cat.ID, NomCategorie: cat.NomCategorie}
		}
	}

	var pisteRows []DemandePisteRow
	if err := q.SelectContext(ctx, &pisteRows,
		"SELECT * FROM demande_piste WHERE demande_id = ? ORDER BY id", row.ID,
	); err != nil {
		return Demande{}, fmt.Errorf("error Select demande_piste: %w", err)
	}
	for _, p := range pisteRows {
		d.PistesAudio = append(d.PistesAudio, DemandeAudio{ID: p.ID, FichierMP3: fileStore.URL(p.FichierMP3)})
	}

	if row.ChantID.Valid {
		var chant ChantRow
		err := q.GetContext(ctx, &chant, "SELECT * FROM chant WHERE id = ?", row.ChantID.Int64)
		if err != nil && err != sql.ErrNoRows {
			return Demande{}, fmt.Errorf("error Get demande chant: %w", err)
		}
		if err == nil {
			d.Chant = &ChantRef{ID: chant.ID, NomChant: chant.NomChant}
		}
	}

	return d, nil
}

// chantTitleTaken reports whether a title collides, case-insensitively, with
// an existing song or another pending creation request. Refused requests do
// not block a resubmission.
func chantTitleTaken(ctx context.Context, q connOrTx, nom string, excludeChantID, excludeDemandeID int) (bool, error) {
	var count int
	if err := q.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM chant WHERE LOWER(nom_chant) = LOWER(?) AND id <> ?",
		nom, excludeChantID,
	); err != nil {
		return false, fmt.Errorf("error Count chant by title: %w", err)
	}
	if count > 0 {
		return true, nil
	}
	if err := q.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM demande WHERE kind = ? AND statut = ? AND LOWER(nom_chant) = LOWER(?) AND id <> ?",
		demandeKindChant, statutEnAttente, nom, excludeDemandeID,
	); err != nil {
		return false, fmt.Errorf("error Count pending demandes by title: %w", err)
	}
	return count > 0, nil
}

func apiDemandeChantSubmitHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	nomChant := strings.TrimSpace(c.FormValue("nom_chant"))
	if nomChant == "" {
		return errorResponse(c, 400, "nom_chant is required")
	}
	taken, err := chantTitleTaken(ctx, db, nomChant, 0, 0)
	if err != nil {
		return err
	}
	if taken {
		return errorResponse(c, 409, "Un chant avec ce titre existe déjà")
	}

	saved, err := saveChantFiles(c)
	if err != nil {
		return respondError(c, err)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO demande (ulid, kind, statut, utilisateur_id, nom_chant, auteur, ville_origine, paroles, description, categories, illustration_chant, paroles_pdf, partition_file, date_creation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(6))`,
		newULID(), demandeKindChant, statutEnAttente, user.ID,
		nomChant, c.FormValue("auteur"), c.FormValue("ville_origine"),
		c.FormValue("paroles"), c.FormValue("description"), c.FormValue("categories"),
		sqlNullable(saved["illustration_chant"]), sqlNullable(saved["paroles_pdf"]), sqlNullable(saved["partition_file"]),
	)
	if err != nil {
		return fmt.Errorf("error Insert demande: %w", err)
	}
	demandeID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error LastInsertId of demande: %w", err)
	}

	// any number of proposed audio tracks may ride along
	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, fh := range form.File["pistes_audio"] {
			f, err := fh.Open()
			if err != nil {
				return fmt.Errorf("error Open piste upload: %w", err)
			}
			content, err := readAndClose(f)
			if err != nil {
				return err
			}
			rel, err := fileStore.Save("demandes_audio", fh.Filename, content)
			if err != nil {
				return respondError(c, err)
			}
			if _, err := db.ExecContext(ctx,
				"INSERT INTO demande_piste (demande_id, fichier_mp3) VALUES (?, ?)", demandeID, rel,
			); err != nil {
				return fmt.Errorf("error Insert demande_piste: %w", err)
			}
		}
	}

	return respondDemande(c, int(demandeID))
}

func apiDemandeAudioSubmitHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
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
	rel, err := fileStore.Save("demandes_audio", name, content)
	if err != nil {
		return respondError(c, err)
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO demande (ulid, kind, statut, utilisateur_id, chant_id, paroles, description, categories, fichier_mp3, date_creation)
		 VALUES (?, ?, ?, ?, ?, '', ?, '', ?, NOW(6))`,
		newULID(), demandeKindAudio, statutEnAttente, user.ID, chantID,
		c.FormValue("description"), rel,
	)
	if err != nil {
		return fmt.Errorf("error Insert demande: %w", err)
	}
	demandeID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error LastInsertId of demande: %w", err)
	}

	return respondDemande(c, int(demandeID))
}

func apiDemandeModificationSubmitHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
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

	nomChant := strings.TrimSpace(c.FormValue("nom_chant"))
	if nomChant == "" {
		return errorResponse(c, 400, "nom_chant is required")
	}
	taken, err := chantTitleTaken(ctx, db, nomChant, chantID, 0)
	if err != nil {
		return err
	}
	if taken {
		return errorResponse(c, 409, "Un chant avec ce titre existe déjà")
	}

	saved, err := saveChantFiles(c)
	if err != nil {
		return respondError(c, err)
	}

	var categorieID sql.NullInt64
	if nom := strings.TrimSpace(c.FormValue("categorie")); nom != "" {
		id, err := getOrCreateCategorie(ctx, db, nom)
		if err != nil {
			return err
		}
		categorieID = sql.NullInt64{Int64: int64(id), Valid: true}
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO demande (ulid, kind, statut, utilisateur_id, chant_id, nom_chant, auteur, ville_origine, paroles, description, categorie_id, categories, illustration_chant, paroles_pdf, partition_file, date_creation)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(6))`,
		newULID(), demandeKindModification, statutEnAttente, user.ID, chantID,
		nomChant, c.FormValue("auteur"), c.FormValue("ville_origine"),
		c.FormValue("paroles"), c.FormValue("description"),
		categorieID, c.FormValue("categories"),
		sqlNullable(saved["illustration_chant"]), sqlNullable(saved["paroles_pdf"]), sqlNullable(saved["partition_file"]),
	)
	if err != nil {
		return fmt.Errorf("error Insert demande: %w", err)
	}
	demandeID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error LastInsertId of demande: %w", err)
	}

	return respondDemande(c, int(demandeID))
}

func respondDemande(c echo.Context, demandeID int) error {
	ctx := c.Request().Context()

	var row DemandeRow
	if err := db.GetContext(ctx, &row, "SELECT * FROM demande WHERE id = ?", demandeID); err != nil {
		return fmt.Errorf("error Get demande after insert: %w", err)
	}
	demande, err := serializeDemande(ctx, db, row)
	if err != nil {
		return err
	}
	body := SingleDemandeResponse{BasicResponse: okResponse(), Demande: demande}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at respondDemande: %w", err)
	}
	return nil
}

func listDemandes(c echo.Context, kind string, userID int) error {
	ctx := c.Request().Context()

	query := "SELECT * FROM demande WHERE kind = ?"
	args := []interface{}{kind}
	if userID > 0 {
		query += " AND utilisateur_id = ?"
		args = append(args, userID)
	}
	if statut := c.QueryParam("statut"); statut != "" {
		if statut != statutEnAttente && statut != statutAcceptee && statut != statutRefusee {
			return errorResponse(c, 400, "unknown statut")
		}
		query += " AND statut = ?"
		args = append(args, statut)
	}
	query += " ORDER BY date_creation DESC, id DESC"

	var rows []DemandeRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("error Select demande: %w", err)
	}

	demandes := make([]Demande, 0, len(rows))
	for _, row := range rows {
		d, err := serializeDemande(ctx, db, row)
		if err != nil {
			return err
		}
		demandes = append(demandes, d)
	}
	body := DemandesResponse{BasicResponse: okResponse(), Demandes: demandes}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at listDemandes: %w", err)
	}
	return nil
}

func apiDemandesHandler(kind string) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := currentUser(c)
		if err != nil {
			return respondError(c, err)
		}
		return listDemandes(c, kind, user.ID)
	}
}

func apiAdminDemandesHandler(kind string) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, err := requireAdmin(c); err != nil {
			return respondError(c, err)
		}
		return listDemandes(c, kind, 0)
	}
}

func getDemande(ctx context.Context, kind string, demandeID int) (*DemandeRow, error) {
	var row DemandeRow
	err := db.GetContext(ctx, &row, "SELECT * FROM demande WHERE id = ? AND kind = ?", demandeID, kind)
	if err == sql.ErrNoRows {
		return nil, errNotFound("no such demande")
	}
	if err != nil {
		return nil, fmt.Errorf("error Get demande: %w", err)
	}
	return &row, nil
}

func apiDemandeHandler(kind string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		user, err := currentUser(c)
		if err != nil {
			return respondError(c, err)
		}
		demandeID, err := paramInt(c, "demandeID")
		if err != nil {
			return respondError(c, err)
		}
		row, err := getDemande(ctx, kind, demandeID)
		if err != nil {
			return respondError(c, err)
		}
		if row.UtilisateurID != user.ID && user.Role != "admin" {
			return errorResponse(c, 403, "not your demande")
		}

		demande, err := serializeDemande(ctx, db, *row)
		if err != nil {
			return err
		}
		body := SingleDemandeResponse{BasicResponse: okResponse(), Demande: demande}
		if err := c.JSON(http.StatusOK, body); err != nil {
			return fmt.Errorf("error returns JSON at apiDemandeHandler: %w", err)
		}
		return nil
	}
}

func apiAdminDemandeHandler(kind string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		if _, err := requireAdmin(c); err != nil {
			return respondError(c, err)
		}
		demandeID, err := paramInt(c, "demandeID")
		if err != nil {
			return respondError(c, err)
		}
		row, err := getDemande(ctx, kind, demandeID)
		if err != nil {
			return respondError(c, err)
		}

		demande, err := serializeDemande(ctx, db, *row)
		if err != nil {
			return err
		}
		body := SingleDemandeResponse{BasicResponse: okResponse(), Demande: demande}
		if err := c.JSON(http.StatusOK, body); err != nil {
			return fmt.Errorf("error returns JSON at apiAdminDemandeHandler: %w", err)
		}
		return nil
	}
}

// apiAdminDemandeDecisionHandler applies an admin decision. The status flip
// and every promotion side effect run in one transaction, guarded by a
// check-and-set on the pending status so concurrent decisions cannot both
// win.
func apiAdminDemandeDecisionHandler(kind string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		if _, err := requireAdmin(c); err != nil {
			return respondError(c, err)
		}
		demandeID, err := paramInt(c, "demandeID")
		if err != nil {
			return respondError(c, err)
		}

		var req DecisionRequest
		if err := c.Bind(&req); err != nil {
			return errorResponse(c, 400, "failed to fetch request parameter")
		}
		if req.Action != actionAccepter && req.Action != actionRefuser {
			return errorResponse(c, 400, "action must be ACCEPTER or REFUSER")
		}
		if req.Action == actionRefuser && strings.TrimSpace(req.Justification) == "" {
			return errorResponse(c, 400, "une justification est requise pour refuser")
		}

		row, err := getDemande(ctx, kind, demandeID)
		if err != nil {
			return respondError(c, err)
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

		statut := statutAcceptee
		var justification sql.NullString
		if req.Action == actionRefuser {
			statut = statutRefusee
			justification = sql.NullString{String: req.Justification, Valid: true}
		}

		result, err := tx.ExecContext(ctx,
			"UPDATE demande SET statut = ?, justification_refus = ?, date_decision = NOW(6) WHERE id = ? AND statut = ?",
			statut, justification, demandeID, statutEnAttente,
		)
		if err != nil {
			return fmt.Errorf("error Update demande statut: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("error RowsAffected: %w", err)
		}
		if affected == 0 {
			return respondError(c, errInvalidState("Demande déjà traitée"))
		}

		var chant *Chant
		var piste *PisteAudio
		if req.Action == actionAccepter {
			switch kind {
			case demandeKindChant:
				chant, err = promoteChantDemande(ctx, tx, row)
			case demandeKindAudio:
				piste, err = promoteAudioDemande(ctx, tx, row)
			case demandeKindModification:
				chant, err = applyModificationDemande(ctx, tx, row)
			}
			if err != nil {
				return respondError(c, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("error Commit at demande decision: %w", err)
		}

		decided, err := getDemande(ctx, kind, demandeID)
		if err != nil {
			return respondError(c, err)
		}
		demande, err := serializeDemande(ctx, db, *decided)
		if err != nil {
			return err
		}
		body := DecisionResponse{
			BasicResponse: okResponse(),
			Demande:       demande,
			Chant:         chant,
			PisteAudio:    piste,
		}
		if err := c.JSON(http.StatusOK, body); err != nil {
			return fmt.Errorf("error returns JSON at apiAdminDemandeDecisionHandler: %w", err)
		}
		return nil
	}
}

// cloneStoredFile copies the bytes of a request upload into a fresh file of
// its own, so deleting the request later can never strand the promoted row.
func cloneStoredFile(rel, dir string) (sql.NullString, error) {
	content, name := fileStore.Clone(rel)
	if content == nil {
		return sql.NullString{}, nil
	}
	cloned, err := fileStore.Save(dir, name, content)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: cloned, Valid: true}, nil
}

func promoteChantDemande(ctx context.Context, tx connOrTx, row *DemandeRow) (*Chant, error) {
	taken, err := chantTitleTaken(ctx, tx, row.NomChant, 0, row.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errConflict("Un chant avec ce titre existe déjà")
	}

	illustration, err := cloneStoredFile(row.Illustration.String, "illustrations")
	if err != nil {
		return nil, err
	}
	parolesPDF, err := cloneStoredFile(row.ParolesPDF.String, "paroles_pdf")
	if err != nil {
		return nil, err
	}
	partition, err := cloneStoredFile(row.PartitionFile.String, "partitions")
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		"INSERT INTO chant (nom_chant, auteur, ville_origine, paroles, description, illustration_chant, paroles_pdf, partition_file, utilisateur_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(6))",
		row.NomChant, row.Auteur, row.VilleOrigine, row.Paroles, row.Description,
		illustration, parolesPDF, partition, row.UtilisateurID,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, errConflict("Un chant avec ce titre existe déjà")
		}
		return nil, fmt.Errorf("error Insert chant at promotion: %w", err)
	}
	chantID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("error LastInsertId of chant: %w", err)
	}

	if err := attachCategories(ctx, tx, int(chantID), splitCategories(row.Categories), row.UtilisateurID); err != nil {
		return nil, err
	}

	var pisteRows []DemandePisteRow
	if err := tx.SelectContext(ctx, &pisteRows,
		"SELECT * FROM demande_piste WHERE demande_id = ? ORDER BY id", row.ID,
	); err != nil {
		return nil, fmt.Errorf("error Select demande_piste at promotion: %w", err)
	}
	for _, p := range pisteRows {
		cloned, err := cloneStoredFile(p.FichierMP3, "pistes_audio")
		if err != nil {
			return nil, err
		}
		if !cloned.Valid {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO piste_audio (fichier_mp3, chant_id, utilisateur_id, created_at) VALUES (?, ?, ?, NOW(6))",
			cloned.String, chantID, row.UtilisateurID,
		); err != nil {
			return nil, fmt.Errorf("error Insert piste_audio at promotion: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE demande SET chant_id = ? WHERE id = ?", chantID, row.ID,
	); err != nil {
		return nil, fmt.Errorf("error Link demande to chant: %w", err)
	}

	var chantRow ChantRow
	if err := tx.GetContext(ctx, &chantRow, "SELECT * FROM chant WHERE id = ?", chantID); err != nil {
		return nil, fmt.Errorf("error Get chant after promotion: %w", err)
	}
	chant, err := serializeChant(ctx, tx, chantRow)
	if err != nil {
		return nil, err
	}
	return &chant, nil
}

func promoteAudioDemande(ctx context.Context, tx connOrTx, row *DemandeRow) (*PisteAudio, error) {
	if !row.ChantID.Valid {
		return nil, errValidation("demande has no target chant")
	}
	var count int
	if err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM chant WHERE id = ?", row.ChantID.Int64); err != nil {
		return nil, fmt.Errorf("error Count chant at promotion: %w", err)
	}
	if count == 0 {
		return nil, errConflict("le chant cible n'existe plus")
	}

	cloned, err := cloneStoredFile(row.FichierMP3.String, "pistes_audio")
	if err != nil {
		return nil, err
	}
	if !cloned.Valid {
		// source upload vanished; the demande is still accepted, just
		// without a track to show for it
		return nil, nil
	}

	result, err := tx.ExecContext(ctx,
		"INSERT INTO piste_audio (fichier_mp3, chant_id, utilisateur_id, created_at) VALUES (?, ?, ?, NOW(6))",
		cloned.String, row.ChantID.Int64, row.UtilisateurID,
	)
	if err != nil {
		return nil, fmt.Errorf("error Insert piste_audio at promotion: %w", err)
	}
	pisteID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("error LastInsertId of piste_audio: %w", err)
	}

	var pisteRow PisteAudioRow
	if err := tx.GetContext(ctx, &pisteRow, "SELECT * FROM piste_audio WHERE id = ?", pisteID); err != nil {
		return nil, fmt.Errorf("error Get piste_audio after promotion: %w", err)
	}
	piste, err := serializePisteAudio(ctx, tx, pisteRow)
	if err != nil {
		return nil, err
	}
	return &piste, nil
}

func applyModificationDemande(ctx context.Context, tx connOrTx, row *DemandeRow) (*Chant, error) {
	if !row.ChantID.Valid {
		return nil, errValidation("demande has no target chant")
	}

	var chantRow ChantRow
	err := tx.GetContext(ctx, &chantRow, "SELECT * FROM chant WHERE id = ? FOR UPDATE", row.ChantID.Int64)
	if err == sql.ErrNoRows {
		return nil, errConflict("le chant cible n'existe plus")
	}
	if err != nil {
		return nil, fmt.Errorf("error Get chant at modification: %w", err)
	}

	taken, err := chantTitleTaken(ctx, tx, row.NomChant, chantRow.ID, row.ID)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, errConflict("Un chant avec ce titre existe déjà")
	}

	// the demande carries the complete replacement field set, and the song
	// passes to the submitter
	chantRow.NomChant = row.NomChant
	chantRow.Auteur = row.Auteur
	chantRow.VilleOrigine = row.VilleOrigine
	chantRow.Paroles = row.Paroles
	chantRow.Description = row.Description
	chantRow.UtilisateurID = sql.NullInt64{Int64: int64(row.UtilisateurID), Valid: true}

	applyFile := func(dst *sql.NullString, rel, dir string) error {
		if rel == "" {
			return nil
		}
		cloned, err := cloneStoredFile(rel, dir)
		if err != nil {
			return err
		}
		if !cloned.Valid {
			return nil
		}
		if err := fileStore.Remove(dst.String); err != nil {
			return err
		}
		*dst = cloned
		return nil
	}
	if err := applyFile(&chantRow.Illustration, row.Illustration.String, "illustrations"); err != nil {
		return nil, err
	}
	if err := applyFile(&chantRow.ParolesPDF, row.ParolesPDF.String, "paroles_pdf"); err != nil {
		return nil, err
	}
	if err := applyFile(&chantRow.PartitionFile, row.PartitionFile.String, "partitions"); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE chant SET nom_chant = ?, auteur = ?, ville_origine = ?, paroles = ?, description = ?, illustration_chant = ?, paroles_pdf = ?, partition_file = ?, utilisateur_id = ? WHERE id = ?",
		chantRow.NomChant, chantRow.Auteur, chantRow.VilleOrigine, chantRow.Paroles, chantRow.Description,
		chantRow.Illustration, chantRow.ParolesPDF, chantRow.PartitionFile, chantRow.UtilisateurID, chantRow.ID,
	); err != nil {
		if isDuplicateEntry(err) {
			return nil, errConflict("Un chant avec ce titre existe déjà")
		}
		return nil, fmt.Errorf("error Update chant at modification: %w", err)
	}

	// the proposed category set replaces the whole current one; with none
	// supplied the song ends up in the default category
	names := splitCategories(row.Categories)
	if row.CategorieID.Valid {
		var nom string
		err := tx.GetContext(ctx, &nom, "SELECT nom_categorie FROM categorie WHERE id = ?", row.CategorieID.Int64)
		if err != nil && err != sql.ErrNoRows {
			return nil, fmt.Errorf("error Get categorie at modification: %w", err)
		}
		if err == nil {
			names = append(names, nom)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM appartenir WHERE chant_id = ?", chantRow.ID); err != nil {
		return nil, fmt.Errorf("error Delete appartenir at modification: %w", err)
	}
	if err := attachCategories(ctx, tx, chantRow.ID, names, row.UtilisateurID); err != nil {
		return nil, err
	}

	chant, err := serializeChant(ctx, tx, chantRow)
	if err != nil {
		return nil, err
	}
	return &chant, nil
}
