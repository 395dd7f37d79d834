package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

func toEvenement(row EvenementRow) Evenement {
	e := Evenement{
		ID:             row.ID,
		Lieu:           row.Lieu,
		NomEvenement:   row.NomEvenement,
		AnnonceFilActu: row.AnnonceFilActu,
		Histoire:       row.Histoire,
	}
	if row.DateEvenement.Valid {
		s := row.DateEvenement.Time.Format("2006-01-02")
		e.DateEvenement = &s
	}
	return e
}

func apiEvenementsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var rows []EvenementRow
	if err := db.SelectContext(ctx, &rows,
		"SELECT * FROM evenement ORDER BY date_evenement DESC, id DESC",
	); err != nil {
		return fmt.Errorf("error Select evenement: %w", err)
	}

	evenements := make([]Evenement, 0, len(rows))
	for _, row := range rows {
		evenements = append(evenements, toEvenement(row))
	}
	body := EvenementsResponse{BasicResponse: okResponse(), Evenements: evenements}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiEvenementsHandler: %w", err)
	}
	return nil
}

func apiEvenementHandler(c echo.Context) error {
	ctx := c.Request().Context()

	evenementID, err := paramInt(c, "evenementID")
	if err != nil {
		return respondError(c, err)
	}

	var row EvenementRow
	err = db.GetContext(ctx, &row, "SELECT * FROM evenement WHERE id = ?", evenementID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such evenement")
	}
	if err != nil {
		return fmt.Errorf("error Get evenement: %w", err)
	}

	body := SingleEvenementResponse{BasicResponse: okResponse(), Evenement: toEvenement(row)}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiEvenementHandler: %w", err)
	}
	return nil
}

func parseEvenementDate(raw *string) (sql.NullTime, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return sql.NullTime{}, nil
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(*raw))
	if err != nil {
		return sql.NullTime{}, errValidation("date_evenement must be YYYY-MM-DD")
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}

func apiEvenementAddHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	var req EvenementRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.NomEvenement == nil || strings.TrimSpace(*req.NomEvenement) == "" {
		return errorResponse(c, 400, "nom_evenement is required")
	}
	date, err := parseEvenementDate(req.DateEvenement)
	if err != nil {
		return respondError(c, err)
	}

	lieu, annonce, histoire := "", "", ""
	if req.Lieu != nil {
		lieu = *req.Lieu
	}
	if req.AnnonceFilActu != nil {
		annonce = *req.AnnonceFilActu
	}
	if req.Histoire != nil {
		histoire = *req.Histoire
	}

	result, err := db.ExecContext(ctx,
		"INSERT INTO evenement (nom_evenement, lieu, date_evenement, annonce_fil_actu, histoire) VALUES (?, ?, ?, ?, ?)",
		strings.TrimSpace(*req.NomEvenement), lieu, date, annonce, histoire,
	)
	if err != nil {
		return fmt.Errorf("error Insert evenement: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error LastInsertId of evenement: %w", err)
	}

	var row EvenementRow
	if err := db.GetContext(ctx, &row, "SELECT * FROM evenement WHERE id = ?", id); err != nil {
		return fmt.Errorf("error Get evenement after insert: %w", err)
	}
	body := SingleEvenementResponse{BasicResponse: okResponse(), Evenement: toEvenement(row)}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiEvenementAddHandler: %w", err)
	}
	return nil
}

func apiEvenementUpdateHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}
	evenementID, err := paramInt(c, "evenementID")
	if err != nil {
		return respondError(c, err)
	}

	var row EvenementRow
	err = db.GetContext(ctx, &row, "SELECT * FROM evenement WHERE id = ?", evenementID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such evenement")
	}
	if err != nil {
		return fmt.Errorf("error Get evenement: %w", err)
	}

	var req EvenementRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.NomEvenement != nil {
		nom := strings.TrimSpace(*req.NomEvenement)
		if nom == "" {
			return errorResponse(c, 400, "nom_evenement must not be empty")
		}
		row.NomEvenement = nom
	}
	if req.Lieu != nil {
		row.Lieu = *req.Lieu
	}
	if req.AnnonceFilActu != nil {
		row.AnnonceFilActu = *req.AnnonceFilActu
	}
	if req.Histoire != nil {
		row.Histoire = *req.Histoire
	}
	if req.DateEvenement != nil {
		date, err := parseEvenementDate(req.DateEvenement)
		if err != nil {
			return respondError(c, err)
		}
		row.DateEvenement = date
	}

	if _, err := db.ExecContext(ctx,
		"UPDATE evenement SET nom_evenement = ?, lieu = ?, date_evenement = ?, annonce_fil_actu = ?, histoire = ? WHERE id = ?",
		row.NomEvenement, row.Lieu, row.DateEvenement, row.AnnonceFilActu, row.Histoire, row.ID,
	); err != nil {
		return fmt.Errorf("error Update evenement: %w", err)
	}

	body := SingleEvenementResponse{BasicResponse: okResponse(), Evenement: toEvenement(row)}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiEvenementUpdateHandler: %w", err)
	}
	return nil
}

func apiEvenementDeleteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}
	evenementID, err := paramInt(c, "evenementID")
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

	if _, err := tx.ExecContext(ctx, "DELETE FROM chanter WHERE evenement_id = ?", evenementID); err != nil {
		return fmt.Errorf("error Delete chanter: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM evenement WHERE id = ?", evenementID)
	if err != nil {
		return fmt.Errorf("error Delete evenement: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error RowsAffected: %w", err)
	}
	if affected == 0 {
		return errorResponse(c, 404, "no such evenement")
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error Commit at evenement delete: %w", err)
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiEvenementDeleteHandler: %w", err)
	}
	return nil
}

func apiChanterHandler(c echo.Context) error {
	ctx := c.Request().Context()

	query := "SELECT * FROM chanter"
	args := []interface{}{}
	if raw := c.QueryParam("evenement_id"); raw != "" {
		evenementID, err := strconv.Atoi(raw)
		if err != nil || evenementID <= 0 {
			return errorResponse(c, 400, "bad evenement_id")
		}
		query += " WHERE evenement_id = ?"
		args = append(args, evenementID)
	}
	query += " ORDER BY id"

	var rows []ChanterRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("error Select chanter: %w", err)
	}

	liens := make([]ChanterLink, 0, len(rows))
	for _, row := range rows {
		liens = append(liens, ChanterLink{ID: row.ID, ChantID: row.ChantID, EvenementID: row.EvenementID})
	}
	body := ChanterResponse{BasicResponse: okResponse(), Liens: liens}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiChanterHandler: %w", err)
	}
	return nil
}

func apiChanterAddHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	var req ChanterRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.ChantID <= 0 || req.EvenementID <= 0 {
		return errorResponse(c, 400, "chant_id and evenement_id are required")
	}

	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM chant WHERE id = ?", req.ChantID); err != nil {
		return fmt.Errorf("error Count chant: %w", err)
	}
	if count == 0 {
		return errorResponse(c, 404, "no such chant")
	}
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM evenement WHERE id = ?", req.EvenementID); err != nil {
		return fmt.Errorf("error Count evenement: %w", err)
	}
	if count == 0 {
		return errorResponse(c, 404, "no such evenement")
	}

	result, err := db.ExecContext(ctx,
		"INSERT INTO chanter (chant_id, evenement_id) VALUES (?, ?)", req.ChantID, req.EvenementID,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return errorResponse(c, 409, "ce chant est déjà lié à cet événement")
		}
		return fmt.Errorf("error Insert chanter: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error LastInsertId of chanter: %w", err)
	}

	body := SingleChanterResponse{
		BasicResponse: okResponse(),
		Lien:          ChanterLink{ID: int(id), ChantID: req.ChantID, EvenementID: req.EvenementID},
	}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiChanterAddHandler: %w", err)
	}
	return nil
}

func apiChanterDeleteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	var req ChanterRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.ChantID <= 0 || req.EvenementID <= 0 {
		return errorResponse(c, 400, "chant_id and evenement_id are required")
	}

	result, err := db.ExecContext(ctx,
		"DELETE FROM chanter WHERE chant_id = ? AND evenement_id = ?", req.ChantID, req.EvenementID,
	)
	if err != nil {
		return fmt.Errorf("error Delete chanter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error RowsAffected: %w", err)
	}
	if affected == 0 {
		return errorResponse(c, 404, "no such link")
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiChanterDeleteHandler: %w", err)
	}
	return nil
}

func apiMaitresHandler(c echo.Context) error {
	ctx := c.Request().Context()

	maitres := []string{}
	if err := db.SelectContext(ctx, &maitres, "SELECT nom FROM maitre_chant ORDER BY id"); err != nil {
		return fmt.Errorf("error Select maitre_chant: %w", err)
	}

	body := MaitresResponse{BasicResponse: okResponse(), Maitres: maitres}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiMaitresHandler: %w", err)
	}
	return nil
}

// apiMaitresReplaceHandler swaps the whole choir master list in one shot,
// the way the admin screen edits it.
func apiMaitresReplaceHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	var req MaitresRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
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

	if _, err := tx.ExecContext(ctx, "DELETE FROM maitre_chant"); err != nil {
		return fmt.Errorf("error Delete maitre_chant: %w", err)
	}
	maitres := make([]string, 0, len(req.Maitres))
	for _, nom := range req.Maitres {
		nom = strings.TrimSpace(nom)
		if nom == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO maitre_chant (nom) VALUES (?)", nom); err != nil {
			return fmt.Errorf("error Insert maitre_chant: %w", err)
		}
		maitres = append(maitres, nom)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error Commit at maitres replace: %w", err)
	}

	body := MaitresResponse{BasicResponse: okResponse(), Maitres: maitres}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiMaitresReplaceHandler: %w", err)
	}
	return nil
}
