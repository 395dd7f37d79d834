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

func chansonnierChantIDs(ctx context.Context, q connOrTx, chansonnierID int) ([]int, error) {
	ids := []int{}
	if err := q.SelectContext(ctx, &ids,
		"SELECT chant_id FROM contenir_chant_perso WHERE chansonnier_perso_id = ? ORDER BY id", chansonnierID,
	); err != nil {
		return nil, fmt.Errorf("error Select contenir_chant_perso: %w", err)
	}
	return ids, nil
}

func templateChantIDs(ctx context.Context, q connOrTx, templateID int) ([]int, error) {
	ids := []int{}
	if err := q.SelectContext(ctx, &ids,
		"SELECT chant_id FROM contenir_chant_template WHERE template_id = ? ORDER BY id", templateID,
	); err != nil {
		return nil, fmt.Errorf("error Select contenir_chant_template: %w", err)
	}
	return ids, nil
}

func serializeChansonnier(ctx context.Context, q connOrTx, row ChansonnierPersoRow) (Chansonnier, error) {
	ids, err := chansonnierChantIDs(ctx, q, row.ID)
	if err != nil {
		return Chansonnier{}, err
	}
	return Chansonnier{
		ID:           row.ID,
		ULID:         row.ULID,
		Nom:          row.Nom,
		Couleur:      row.Couleur,
		TypePapier:   row.TypePapier,
		DateCreation: row.DateCreation.Format(time.RFC3339),
		TemplateID:   nullIntPtr(row.TemplateID),
		ChantIDs:     ids,
	}, nil
}

func apiMesChansonniersHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var rows []ChansonnierPersoRow
	if err := db.SelectContext(ctx, &rows,
		"SELECT * FROM chansonnier_perso WHERE utilisateur_id = ? ORDER BY date_creation DESC, id DESC", user.ID,
	); err != nil {
		return fmt.Errorf("error Select chansonnier_perso: %w", err)
	}

	chansonniers := make([]Chansonnier, 0, len(rows))
	for _, row := range rows {
		ch, err := serializeChansonnier(ctx, db, row)
		if err != nil {
			return err
		}
		chansonniers = append(chansonniers, ch)
	}
	body := ChansonniersResponse{BasicResponse: okResponse(), Chansonniers: chansonniers}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiMesChansonniersHandler: %w", err)
	}
	return nil
}

func setChansonnierChants(ctx context.Context, q connOrTx, chansonnierID int, chantIDs []int) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM contenir_chant_perso WHERE chansonnier_perso_id = ?", chansonnierID,
	); err != nil {
		return fmt.Errorf("error Delete contenir_chant_perso: %w", err)
	}
	for _, chantID := range chantIDs {
		var count int
		if err := q.GetContext(ctx, &count, "SELECT COUNT(*) FROM chant WHERE id = ?", chantID); err != nil {
			return fmt.Errorf("error Count chant: %w", err)
		}
		if count == 0 {
			return errValidation(fmt.Sprintf("no such chant: %d", chantID))
		}
		if _, err := q.ExecContext(ctx,
			"INSERT IGNORE INTO contenir_chant_perso (chant_id, chansonnier_perso_id) VALUES (?, ?)",
			chantID, chansonnierID,
		); err != nil {
			return fmt.Errorf("error Insert contenir_chant_perso: %w", err)
		}
	}
	return nil
}

// apiChansonnierAddHandler creates a personal songbook. Starting from a
// template copies its look and its song set unless the request overrides
// them.
func apiChansonnierAddHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var req ChansonnierCreateRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	nom := strings.TrimSpace(req.Nom)
	if nom == "" {
		return errorResponse(c, 400, "nom_chansonnier_perso is required")
	}

	var templateID sql.NullInt64
	if req.TemplateID != nil {
		var tmpl TemplateChansonnierRow
		err := db.GetContext(ctx, &tmpl, "SELECT * FROM template_chansonnier WHERE id = ?", *req.TemplateID)
		if err == sql.ErrNoRows {
			return errorResponse(c, 404, "no such template")
		}
		if err != nil {
			return fmt.Errorf("error Get template_chansonnier: %w", err)
		}
		templateID = sql.NullInt64{Int64: int64(tmpl.ID), Valid: true}
		if req.Couleur == "" {
			req.Couleur = tmpl.Couleur
		}
		if req.TypePapier == "" {
			req.TypePapier = tmpl.TypePapier
		}
		if len(req.ChantIDs) == 0 {
			ids, err := templateChantIDs(ctx, db, tmpl.ID)
			if err != nil {
				return err
			}
			req.ChantIDs = ids
		}
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

	result, err := tx.ExecContext(ctx,
		"INSERT INTO chansonnier_perso (ulid, nom_chansonnier_perso, couleur, type_papier, utilisateur_id, template_id, date_creation) VALUES (?, ?, ?, ?, ?, ?, NOW(6))",
		newULID(), nom, req.Couleur, req.TypePapier, user.ID, templateID,
	)
	if err != nil {
		return fmt.Errorf("error Insert chansonnier_perso: %w", err)
	}
	chansonnierID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error LastInsertId of chansonnier_perso: %w", err)
	}

	if err := setChansonnierChants(ctx, tx, int(chansonnierID), req.ChantIDs); err != nil {
		return respondError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error Commit at chansonnier create: %w", err)
	}

	var row ChansonnierPersoRow
	if err := db.GetContext(ctx, &row, "SELECT * FROM chansonnier_perso WHERE id = ?", chansonnierID); err != nil {
		return fmt.Errorf("error Get chansonnier_perso after insert: %w", err)
	}
	ch, err := serializeChansonnier(ctx, db, row)
	if err != nil {
		return err
	}
	body := SingleChansonnierResponse{BasicResponse: okResponse(), Chansonnier: ch}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiChansonnierAddHandler: %w", err)
	}
	return nil
}

func getOwnChansonnier(c echo.Context) (*ChansonnierPersoRow, error) {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	chansonnierID, err := paramInt(c, "chansonnierID")
	if err != nil {
		return nil, err
	}

	var row ChansonnierPersoRow
	err = db.GetContext(ctx, &row, "SELECT * FROM chansonnier_perso WHERE id = ?", chansonnierID)
	if err == sql.ErrNoRows {
		return nil, errNotFound("no such chansonnier")
	}
	if err != nil {
		return nil, fmt.Errorf("error Get chansonnier_perso: %w", err)
	}
	if user.Role != "admin" && row.UtilisateurID != user.ID {
		return nil, errForbidden("not your chansonnier")
	}
	return &row, nil
}

func apiChansonnierHandler(c echo.Context) error {
	ctx := c.Request().Context()

	row, err := getOwnChansonnier(c)
	if err != nil {
		return respondError(c, err)
	}
	ch, err := serializeChansonnier(ctx, db, *row)
	if err != nil {
		return err
	}
	body := SingleChansonnierResponse{BasicResponse: okResponse(), Chansonnier: ch}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiChansonnierHandler: %w", err)
	}
	return nil
}

func apiChansonnierUpdateHandler(c echo.Context) error {
	ctx := c.Request().Context()

	row, err := getOwnChansonnier(c)
	if err != nil {
		return respondError(c, err)
	}

	var req ChansonnierUpdateRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.Nom != nil {
		nom := strings.TrimSpace(*req.Nom)
		if nom == "" {
			return errorResponse(c, 400, "nom_chansonnier_perso must not be empty")
		}
		row.Nom = nom
	}
	if req.Couleur != nil {
		row.Couleur = *req.Couleur
	}
	if req.TypePapier != nil {
		row.TypePapier = *req.TypePapier
	}
	if req.TemplateID != nil {
		row.TemplateID = sql.NullInt64{Int64: int64(*req.TemplateID), Valid: *req.TemplateID > 0}
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

	if _, err := tx.ExecContext(ctx,
		"UPDATE chansonnier_perso SET nom_chansonnier_perso = ?, couleur = ?, type_papier = ?, template_id = ? WHERE id = ?",
		row.Nom, row.Couleur, row.TypePapier, row.TemplateID, row.ID,
	); err != nil {
		return fmt.Errorf("error Update chansonnier_perso: %w", err)
	}
	if req.ChantIDs != nil {
		if err := setChansonnierChants(ctx, tx, row.ID, *req.ChantIDs); err != nil {
			return respondError(c, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error Commit at chansonnier update: %w", err)
	}

	ch, err := serializeChansonnier(ctx, db, *row)
	if err != nil {
		return err
	}
	body := SingleChansonnierResponse{BasicResponse: okResponse(), Chansonnier: ch}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiChansonnierUpdateHandler: %w", err)
	}
	return nil
}

func apiChansonnierDeleteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	row, err := getOwnChansonnier(c)
	if err != nil {
		return respondError(c, err)
	}

	// an ordered songbook cannot disappear from under its order
	var ordered int
	if err := db.GetContext(ctx, &ordered,
		"SELECT COUNT(*) FROM details_commande WHERE chansonnier_perso_id = ?", row.ID,
	); err != nil {
		return fmt.Errorf("error Count details_commande: %w", err)
	}
	if ordered > 0 {
		return errorResponse(c, 409, "ce chansonnier est référencé par une commande")
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

	for _, q := range []string{
		"DELETE FROM contenir_chant_perso WHERE chansonnier_perso_id = ?",
		"DELETE FROM fournir WHERE chansonnier_perso_id = ?",
		"DELETE FROM chansonnier_perso WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, row.ID); err != nil {
			return fmt.Errorf("error cleanup on chansonnier delete: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error Commit at chansonnier delete: %w", err)
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiChansonnierDeleteHandler: %w", err)
	}
	return nil
}

func serializeTemplate(ctx context.Context, q connOrTx, row TemplateChansonnierRow) (Template, error) {
	ids, err := templateChantIDs(ctx, q, row.ID)
	if err != nil {
		return Template{}, err
	}
	return Template{
		ID:          row.ID,
		NomTemplate: row.NomTemplate,
		Description: row.Description,
		Couleur:     row.Couleur,
		TypePapier:  row.TypePapier,
		ChantIDs:    ids,
	}, nil
}

func apiTemplatesHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var rows []TemplateChansonnierRow
	if err := db.SelectContext(ctx, &rows, "SELECT * FROM template_chansonnier ORDER BY id"); err != nil {
		return fmt.Errorf("error Select template_chansonnier: %w", err)
	}

	templates := make([]Template, 0, len(rows))
	for _, row := range rows {
		t, err := serializeTemplate(ctx, db, row)
		if err != nil {
			return err
		}
		templates = append(templates, t)
	}
	body := TemplatesResponse{BasicResponse: okResponse(), Templates: templates}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiTemplatesHandler: %w", err)
	}
	return nil
}

func apiTemplateHandler(c echo.Context) error {
	ctx := c.Request().Context()

	templateID, err := paramInt(c, "templateID")
	if err != nil {
		return respondError(c, err)
	}

	var row TemplateChansonnierRow
	err = db.GetContext(ctx, &row, "SELECT * FROM template_chansonnier WHERE id = ?", templateID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such template")
	}
	if err != nil {
		return fmt.Errorf("error Get template_chansonnier: %w", err)
	}

	t, err := serializeTemplate(ctx, db, row)
	if err != nil {
		return err
	}
	body := SingleTemplateResponse{BasicResponse: okResponse(), Template: t}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiTemplateHandler: %w", err)
	}
	return nil
}

func setTemplateChants(ctx context.Context, q connOrTx, templateID int, chantIDs []int) error {
	if _, err := q.ExecContext(ctx,
		"DELETE FROM contenir_chant_template WHERE template_id = ?", templateID,
	); err != nil {
		return fmt.Errorf("error Delete contenir_chant_template: %w", err)
	}
	for _, chantID := range chantIDs {
		var count int
		if err := q.GetContext(ctx, &count, "SELECT COUNT(*) FROM chant WHERE id = ?", chantID); err != nil {
			return fmt.Errorf("error Count chant: %w", err)
		}
		if count == 0 {
			return errValidation(fmt.Sprintf("no such chant: %d", chantID))
		}
		if _, err := q.ExecContext(ctx,
			"INSERT IGNORE INTO contenir_chant_template (chant_id, template_id) VALUES (?, ?)",
			chantID, templateID,
		); err != nil {
			return fmt.Errorf("error Insert contenir_chant_template: %w", err)
		}
	}
	return nil
}

func apiTemplateAddHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	var req TemplateRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	nom := strings.TrimSpace(req.NomTemplate)
	if nom == "" {
		return errorResponse(c, 400, "nom_template is required")
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

	result, err := tx.ExecContext(ctx,
		"INSERT INTO template_chansonnier (nom_template, description, couleur, type_papier) VALUES (?, ?, ?, ?)",
		nom, req.Description, req.Couleur, req.TypePapier,
	)
	if err != nil {
		return fmt.Errorf("error Insert template_chansonnier: %w", err)
	}
	templateID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error LastInsertId of template_chansonnier: %w", err)
	}
	if err := setTemplateChants(ctx, tx, int(templateID), req.ChantIDs); err != nil {
		return respondError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error Commit at template create: %w", err)
	}

	var row TemplateChansonnierRow
	if err := db.GetContext(ctx, &row, "SELECT * FROM template_chansonnier WHERE id = ?", templateID); err != nil {
		return fmt.Errorf("error Get template_chansonnier after insert: %w", err)
	}
	t, err := serializeTemplate(ctx, db, row)
	if err != nil {
		return err
	}
	body := SingleTemplateResponse{BasicResponse: okResponse(), Template: t}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiTemplateAddHandler: %w", err)
	}
	return nil
}

func apiTemplateUpdateHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}
	templateID, err := paramInt(c, "templateID")
	if err != nil {
		return respondError(c, err)
	}

	var row TemplateChansonnierRow
	err = db.GetContext(ctx, &row, "SELECT * FROM template_chansonnier WHERE id = ?", templateID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such template")
	}
	if err != nil {
		return fmt.Errorf("error Get template_chansonnier: %w", err)
	}

	var req TemplateUpdateRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.NomTemplate != nil {
		nom := strings.TrimSpace(*req.NomTemplate)
		if nom == "" {
			return errorResponse(c, 400, "nom_template must not be empty")
		}
		row.NomTemplate = nom
	}
	if req.Description != nil {
		row.Description = *req.Description
	}
	if req.Couleur != nil {
		row.Couleur = *req.Couleur
	}
	if req.TypePapier != nil {
		row.TypePapier = *req.TypePapier
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

	if _, err := tx.ExecContext(ctx,
		"UPDATE template_chansonnier SET nom_template = ?, description = ?, couleur = ?, type_papier = ? WHERE id = ?",
		row.NomTemplate, row.Description, row.Couleur, row.TypePapier, row.ID,
	); err != nil {
		return fmt.Errorf("error Update template_chansonnier: %w", err)
	}
	if req.ChantIDs != nil {
		if err := setTemplateChants(ctx, tx, row.ID, *req.ChantIDs); err != nil {
			return respondError(c, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error Commit at template update: %w", err)
	}

	t, err := serializeTemplate(ctx, db, row)
	if err != nil {
		return err
	}
	body := SingleTemplateResponse{BasicResponse: okResponse(), Template: t}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiTemplateUpdateHandler: %w", err)
	}
	return nil
}

func apiTemplateDeleteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}
	templateID, err := paramInt(c, "templateID")
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

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM contenir_chant_template WHERE template_id = ?", templateID,
	); err != nil {
		return fmt.Errorf("error Delete contenir_chant_template: %w", err)
	}
	// songbooks built from it keep living, just unlinked
	if _, err := tx.ExecContext(ctx,
		"UPDATE chansonnier_perso SET template_id = NULL WHERE template_id = ?", templateID,
	); err != nil {
		return fmt.Errorf("error Unlink chansonnier_perso: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM template_chansonnier WHERE id = ?", templateID)
	if err != nil {
		return fmt.Errorf("error Delete template_chansonnier: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error RowsAffected: %w", err)
	}
	if affected == 0 {
		return errorResponse(c, 404, "no such template")
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error Commit at template delete: %w", err)
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiTemplateDeleteHandler: %w", err)
	}
	return nil
}
