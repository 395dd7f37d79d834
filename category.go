package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

func getOrCreateCategorie(ctx context.Context, q connOrTx, nom string) (int, error) {
	var id int
	err := q.GetContext(ctx, &id, "SELECT id FROM categorie WHERE nom_categorie = ?", nom)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("error Get categorie: %w", err)
	}
	result, err := q.ExecContext(ctx, "INSERT INTO categorie (nom_categorie) VALUES (?)", nom)
	if err != nil {
		if isDuplicateEntry(err) {
			if err := q.GetContext(ctx, &id, "SELECT id FROM categorie WHERE nom_categorie = ?", nom); err != nil {
				return 0, fmt.Errorf("error Get categorie after duplicate: %w", err)
			}
			return id, nil
		}
		return 0, fmt.Errorf("error Insert categorie: %w", err)
	}
	newID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("error LastInsertId of categorie: %w", err)
	}
	return int(newID), nil
}

// attachCategories links a song to each named category, creating categories
// on the fly. Songs left with no category at all get the default one.
func attachCategories(ctx context.Context, q connOrTx, chantID int, names []string, userID int) error {
	if len(names) == 0 {
		names = []string{defaultCategorie}
	}
	for _, nom := range names {
		catID, err := getOrCreateCategorie(ctx, q, nom)
		if err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			"INSERT IGNORE INTO appartenir (categorie_id, chant_id, utilisateur_id) VALUES (?, ?, ?)",
			catID, chantID, userID,
		); err != nil {
			return fmt.Errorf("error Insert appartenir: %w", err)
		}
	}
	return nil
}

// replaceCategories swaps the full category set of a song.
func replaceCategories(ctx context.Context, chantID int, names []string, userID int) error {
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

	if _, err := tx.ExecContext(ctx, "DELETE FROM appartenir WHERE chant_id = ?", chantID); err != nil {
		return fmt.Errorf("error Delete appartenir: %w", err)
	}
	if err := attachCategories(ctx, tx, chantID, names, userID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error Commit at replaceCategories: %w", err)
	}
	return nil
}

func apiCategoriesHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var rows []CategorieRow
	if err := db.SelectContext(ctx, &rows, "SELECT * FROM categorie ORDER BY nom_categorie"); err != nil {
		return fmt.Errorf("error Select categorie: %w", err)
	}

	categories := make([]Categorie, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, Categorie{ID: row.ID, NomCategorie: row.NomCategorie})
	}
	body := CategoriesResponse{BasicResponse: okResponse(), Categories: categories}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiCategoriesHandler: %w", err)
	}
	return nil
}

func apiCategorieAddHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	var req CategorieCreateRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	nom := strings.TrimSpace(req.NomCategorie)
	if nom == "" {
		return errorResponse(c, 400, "nom_categorie is required")
	}

	result, err := db.ExecContext(ctx, "INSERT INTO categorie (nom_categorie) VALUES (?)", nom)
	if err != nil {
		if isDuplicateEntry(err) {
			return errorResponse(c, 409, "cette catégorie existe déjà")
		}
		return fmt.Errorf("error Insert categorie: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error LastInsertId of categorie: %w", err)
	}

	body := SingleCategorieResponse{
		BasicResponse: okResponse(),
		Categorie:     Categorie{ID: int(id), NomCategorie: nom},
	}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiCategorieAddHandler: %w", err)
	}
	return nil
}

func apiCategorieRenameHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	var req CategorieRenameRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	oldName := strings.TrimSpace(req.OldName)
	newName := strings.TrimSpace(req.NewName)
	if oldName == "" || newName == "" {
		return errorResponse(c, 400, "old_name and new_name are required")
	}
	if oldName == defaultCategorie {
		return errorResponse(c, 400, "la catégorie par défaut ne peut pas être renommée")
	}

	result, err := db.ExecContext(ctx,
		"UPDATE categorie SET nom_categorie = ? WHERE nom_categorie = ?", newName, oldName,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return errorResponse(c, 409, "cette catégorie existe déjà")
		}
		return fmt.Errorf("error Update categorie: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error RowsAffected: %w", err)
	}
	if affected == 0 {
		return errorResponse(c, 404, "no such categorie")
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiCategorieRenameHandler: %w", err)
	}
	return nil
}

// apiCategorieDeleteHandler removes a category by name. Songs that end up
// with no category fall back to the default one.
func apiCategorieDeleteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	admin, err := requireAdmin(c)
	if err != nil {
		return respondError(c, err)
	}

	nom := strings.TrimSpace(c.QueryParam("nom"))
	if nom == "" {
		return errorResponse(c, 400, "nom query parameter is required")
	}
	if nom == defaultCategorie {
		return errorResponse(c, 400, "la catégorie par défaut ne peut pas être supprimée")
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

	var catID int
	err = tx.GetContext(ctx, &catID, "SELECT id FROM categorie WHERE nom_categorie = ?", nom)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such categorie")
	}
	if err != nil {
		return fmt.Errorf("error Get categorie: %w", err)
	}

	var orphans []int
	if err := tx.SelectContext(ctx, &orphans,
		`SELECT a.chant_id FROM appartenir a
		 WHERE a.categorie_id = ?
		   AND NOT EXISTS (SELECT 1 FROM appartenir b WHERE b.chant_id = a.chant_id AND b.categorie_id <> ?)`,
		catID, catID,
	); err != nil {
		return fmt.Errorf("error Select orphan chants: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM appartenir WHERE categorie_id = ?", catID); err != nil {
		return fmt.Errorf("error Delete appartenir: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM categorie WHERE id = ?", catID); err != nil {
		return fmt.Errorf("error Delete categorie: %w", err)
	}
	for _, chantID := range orphans {
		if err := attachCategories(ctx, tx, chantID, nil, admin.ID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error Commit at categorie delete: %w", err)
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiCategorieDeleteHandler: %w", err)
	}
	return nil
}

func apiAppartenirAddHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var req AppartenirRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	nom := strings.TrimSpace(req.NomCategorie)
	if req.ChantID <= 0 || nom == "" {
		return errorResponse(c, 400, "chant_id and nom_categorie are required")
	}

	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM chant WHERE id = ?", req.ChantID); err != nil {
		return fmt.Errorf("error Count chant: %w", err)
	}
	if count == 0 {
		return errorResponse(c, 404, "no such chant")
	}

	if err := attachCategories(ctx, db, req.ChantID, []string{nom}, user.ID); err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiAppartenirAddHandler: %w", err)
	}
	return nil
}

func apiAppartenirDeleteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var req AppartenirRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	nom := strings.TrimSpace(req.NomCategorie)
	if req.ChantID <= 0 || nom == "" {
		return errorResponse(c, 400, "chant_id and nom_categorie are required")
	}

	result, err := db.ExecContext(ctx,
		"DELETE a FROM appartenir a JOIN categorie c ON c.id = a.categorie_id WHERE a.chant_id = ? AND c.nom_categorie = ?",
		req.ChantID, nom,
	)
	if err != nil {
		return fmt.Errorf("error Delete appartenir: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error RowsAffected: %w", err)
	}
	if affected == 0 {
		return errorResponse(c, 404, "no such link")
	}

	// keep the song categorized
	if err := attachCategoriesIfEmpty(ctx, req.ChantID, user.ID); err != nil {
		return err
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiAppartenirDeleteHandler: %w", err)
	}
	return nil
}

func attachCategoriesIfEmpty(ctx context.Context, chantID int, userID int) error {
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM appartenir WHERE chant_id = ?", chantID); err != nil {
		return fmt.Errorf("error Count appartenir: %w", err)
	}
	if count == 0 {
		return attachCategories(ctx, db, chantID, nil, userID)
	}
	return nil
}
