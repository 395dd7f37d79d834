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

func toFavori(row FavorisRow) Favori {
	return Favori{
		ID:            row.ID,
		UtilisateurID: row.UtilisateurID,
		ChantID:       row.ChantID,
		DateFavori:    row.DateFavori.Format(time.RFC3339),
	}
}

func apiFavorisHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var rows []FavorisRow
	if err := db.SelectContext(ctx, &rows,
		"SELECT * FROM favoris WHERE utilisateur_id = ? ORDER BY date_favori DESC, id DESC", user.ID,
	); err != nil {
		return fmt.Errorf("error Select favoris: %w", err)
	}

	favoris := make([]Favori, 0, len(rows))
	for _, row := range rows {
		favoris = append(favoris, toFavori(row))
	}
	body := FavorisResponse{BasicResponse: okResponse(), Favoris: favoris}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiFavorisHandler: %w", err)
	}
	return nil
}

func apiFavoriAddHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var req FavoriRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.ChantID <= 0 {
		return errorResponse(c, 400, "bad chant_id")
	}

	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM chant WHERE id = ?", req.ChantID); err != nil {
		return fmt.Errorf("error Count chant: %w", err)
	}
	if count == 0 {
		return errorResponse(c, 404, "no such chant")
	}

	if _, err := db.ExecContext(ctx,
		"INSERT INTO favoris (utilisateur_id, chant_id, date_favori) VALUES (?, ?, NOW(6))",
		user.ID, req.ChantID,
	); err != nil {
		if isDuplicateEntry(err) {
			return errorResponse(c, 409, "déjà en favoris")
		}
		return fmt.Errorf("error Insert favoris: %w", err)
	}

	var row FavorisRow
	if err := db.GetContext(ctx, &row,
		"SELECT * FROM favoris WHERE utilisateur_id = ? AND chant_id = ?", user.ID, req.ChantID,
	); err != nil {
		return fmt.Errorf("error Get favoris after insert: %w", err)
	}

	body := SingleFavoriResponse{BasicResponse: okResponse(), Favori: toFavori(row)}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiFavoriAddHandler: %w", err)
	}
	return nil
}

func apiFavoriDeleteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	chantID, err := strconv.Atoi(c.QueryParam("chant_id"))
	if err != nil || chantID <= 0 {
		return errorResponse(c, 400, "bad chant_id")
	}

	result, err := db.ExecContext(ctx,
		"DELETE FROM favoris WHERE utilisateur_id = ? AND chant_id = ?", user.ID, chantID,
	)
	if err != nil {
		return fmt.Errorf("error Delete favoris: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error RowsAffected: %w", err)
	}
	if affected == 0 {
		return errorResponse(c, 404, "no such favori")
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiFavoriDeleteHandler: %w", err)
	}
	return nil
}

func serializeCommentaire(row CommentaireRow, pseudo string) Commentaire {
	return Commentaire{
		ID:                row.ID,
		UtilisateurID:     row.UtilisateurID,
		UtilisateurPseudo: pseudo,
		Texte:             row.Texte,
		DateComment:       row.DateComment.Format(time.RFC3339),
		ChantID:           row.ChantID,
	}
}

func apiCommentairesHandler(c echo.Context) error {
	ctx := c.Request().Context()

	chantID, err := strconv.Atoi(c.QueryParam("chant_id"))
	if err != nil || chantID <= 0 {
		return errorResponse(c, 400, "bad chant_id")
	}

	type commentWithPseudo struct {
		CommentaireRow
		Pseudo string `db:"pseudo"`
	}
	var rows []commentWithPseudo
	if err := db.SelectContext(ctx, &rows,
		`SELECT co.*, u.pseudo FROM commentaire co
		 JOIN utilisateur u ON u.id = co.utilisateur_id
		 WHERE co.chant_id = ? ORDER BY co.date_comment DESC, co.id DESC`,
		chantID,
	); err != nil {
		return fmt.Errorf("error Select commentaire: %w", err)
	}

	commentaires := make([]Commentaire, 0, len(rows))
	for _, row := range rows {
		commentaires = append(commentaires, serializeCommentaire(row.CommentaireRow, row.Pseudo))
	}
	body := CommentairesResponse{BasicResponse: okResponse(), Commentaires: commentaires}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiCommentairesHandler: %w", err)
	}
	return nil
}

// apiCommentaireAddHandler stores a comment. One comment per user per song:
// a second one is rejected, edit the first instead.
func apiCommentaireAddHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var req CommentCreateRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	texte := strings.TrimSpace(req.Texte)
	if req.ChantID <= 0 || texte == "" {
		return errorResponse(c, 400, "chant_id and texte are required")
	}

	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM chant WHERE id = ?", req.ChantID); err != nil {
		return fmt.Errorf("error Count chant: %w", err)
	}
	if count == 0 {
		return errorResponse(c, 404, "no such chant")
	}

	if _, err := db.ExecContext(ctx,
		"INSERT INTO commentaire (utilisateur_id, chant_id, texte, date_comment) VALUES (?, ?, ?, NOW(6))",
		user.ID, req.ChantID, texte,
	); err != nil {
		if isDuplicateEntry(err) {
			return errorResponse(c, 409, "vous avez déjà commenté ce chant")
		}
		return fmt.Errorf("error Insert commentaire: %w", err)
	}

	var row CommentaireRow
	if err := db.GetContext(ctx, &row,
		"SELECT * FROM commentaire WHERE utilisateur_id = ? AND chant_id = ?", user.ID, req.ChantID,
	); err != nil {
		return fmt.Errorf("error Get commentaire after insert: %w", err)
	}

	body := SingleCommentaireResponse{
		BasicResponse: okResponse(),
		Commentaire:   serializeCommentaire(row, user.Pseudo),
	}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiCommentaireAddHandler: %w", err)
	}
	return nil
}

func apiCommentaireEditHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var req CommentEditRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.ID <= 0 || req.Texte == nil || strings.TrimSpace(*req.Texte) == "" {
		return errorResponse(c, 400, "id and texte are required")
	}

	var row CommentaireRow
	err = db.GetContext(ctx, &row, "SELECT * FROM commentaire WHERE id = ?", req.ID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such commentaire")
	}
	if err != nil {
		return fmt.Errorf("error Get commentaire: %w", err)
	}
	if user.Role != "admin" && row.UtilisateurID != user.ID {
		return errorResponse(c, 403, "not your commentaire")
	}

	texte := strings.TrimSpace(*req.Texte)
	if _, err := db.ExecContext(ctx,
		"UPDATE commentaire SET texte = ?, date_comment = NOW(6) WHERE id = ?", texte, req.ID,
	); err != nil {
		return fmt.Errorf("error Update commentaire: %w", err)
	}
	row.Texte = texte

	var pseudo string
	if err := db.GetContext(ctx, &pseudo, "SELECT pseudo FROM utilisateur WHERE id = ?", row.UtilisateurID); err != nil {
		return fmt.Errorf("error Get pseudo: %w", err)
	}

	body := SingleCommentaireResponse{
		BasicResponse: okResponse(),
		Commentaire:   serializeCommentaire(row, pseudo),
	}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiCommentaireEditHandler: %w", err)
	}
	return nil
}

func apiCommentaireDeleteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	commentID, err := strconv.Atoi(c.QueryParam("id"))
	if err != nil || commentID <= 0 {
		return errorResponse(c, 400, "bad id")
	}

	var row CommentaireRow
	err = db.GetContext(ctx, &row, "SELECT * FROM commentaire WHERE id = ?", commentID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such commentaire")
	}
	if err != nil {
		return fmt.Errorf("error Get commentaire: %w", err)
	}
	if user.Role != "admin" && row.UtilisateurID != user.ID {
		return errorResponse(c, 403, "not your commentaire")
	}

	if _, err := db.ExecContext(ctx, "DELETE FROM commentaire WHERE id = ?", commentID); err != nil {
		return fmt.Errorf("error Delete commentaire: %w", err)
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiCommentaireDeleteHandler: %w", err)
	}
	return nil
}
