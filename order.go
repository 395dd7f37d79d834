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

var commandeStatuses = map[string]bool{
	"PANIER":   true,
	"VALIDEE":  true,
	"EXPEDIEE": true,
	"LIVREE":   true,
	"ANNULEE":  true,
}

func toCommande(row CommandeRow) Commande {
	return Commande{
		ID:           row.ID,
		DateCommande: row.DateCommande.Format(time.RFC3339),
		Status:       row.Status,
	}
}

func apiCommandesHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	var rows []CommandeRow
	if err := db.SelectContext(ctx, &rows, "SELECT * FROM commande ORDER BY date_commande DESC, id DESC"); err != nil {
		return fmt.Errorf("error Select commande: %w", err)
	}

	commandes := make([]Commande, 0, len(rows))
	for _, row := range rows {
		commandes = append(commandes, toCommande(row))
	}
	body := CommandesResponse{BasicResponse: okResponse(), Commandes: commandes}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiCommandesHandler: %w", err)
	}
	return nil
}

func apiMesCommandesHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var rows []CommandeRow
	if err := db.SelectContext(ctx, &rows,
		"SELECT * FROM commande WHERE utilisateur_id = ? ORDER BY date_commande DESC, id DESC", user.ID,
	); err != nil {
		return fmt.Errorf("error Select commande: %w", err)
	}

	commandes := make([]Commande, 0, len(rows))
	for _, row := range rows {
		commandes = append(commandes, toCommande(row))
	}
	body := CommandesResponse{BasicResponse: okResponse(), Commandes: commandes}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiMesCommandesHandler: %w", err)
	}
	return nil
}

func apiCommandeAddHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var req CommandeCreateRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = "PANIER"
	}
	if !commandeStatuses[status] {
		return errorResponse(c, 400, "unknown status")
	}

	result, err := db.ExecContext(ctx,
		"INSERT INTO commande (utilisateur_id, status, date_commande) VALUES (?, ?, NOW(6))",
		user.ID, status,
	)
	if err != nil {
		return fmt.Errorf("error Insert commande: %w", err)
	}
	commandeID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error LastInsertId of commande: %w", err)
	}

	var row CommandeRow
	if err := db.GetContext(ctx, &row, "SELECT * FROM commande WHERE id = ?", commandeID); err != nil {
		return fmt.Errorf("error Get commande after insert: %w", err)
	}
	body := SingleCommandeResponse{BasicResponse: okResponse(), Commande: toCommande(row)}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiCommandeAddHandler: %w", err)
	}
	return nil
}

func getOwnCommande(c echo.Context) (*CommandeRow, error) {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	commandeID, err := paramInt(c, "commandeID")
	if err != nil {
		return nil, err
	}

	var row CommandeRow
	err = db.GetContext(ctx, &row, "SELECT * FROM commande WHERE id = ?", commandeID)
	if err == sql.ErrNoRows {
		return nil, errNotFound("no such commande")
	}
	if err != nil {
		return nil, fmt.Errorf("error Get commande: %w", err)
	}
	if user.Role != "admin" && row.UtilisateurID != user.ID {
		return nil, errForbidden("not your commande")
	}
	return &row, nil
}

func apiCommandeHandler(c echo.Context) error {
	row, err := getOwnCommande(c)
	if err != nil {
		return respondError(c, err)
	}
	body := SingleCommandeResponse{BasicResponse: okResponse(), Commande: toCommande(*row)}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiCommandeHandler: %w", err)
	}
	return nil
}

func apiCommandeUpdateHandler(c echo.Context) error {
	ctx := c.Request().Context()

	row, err := getOwnCommande(c)
	if err != nil {
		return respondError(c, err)
	}

	var req CommandeUpdateRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.Status != nil {
		status := strings.TrimSpace(*req.Status)
		if !commandeStatuses[status] {
			return errorResponse(c, 400, "unknown status")
		}
		row.Status = status
	}

	if _, err := db.ExecContext(ctx, "UPDATE commande SET status = ? WHERE id = ?", row.Status, row.ID); err != nil {
		return fmt.Errorf("error Update commande: %w", err)
	}

	body := SingleCommandeResponse{BasicResponse: okResponse(), Commande: toCommande(*row)}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiCommandeUpdateHandler: %w", err)
	}
	return nil
}

func apiCommandeDeleteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	row, err := getOwnCommande(c)
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

	if _, err := tx.ExecContext(ctx, "DELETE FROM details_commande WHERE commande_id = ?", row.ID); err != nil {
		return fmt.Errorf("error Delete details_commande: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM commande WHERE id = ?", row.ID); err != nil {
		return fmt.Errorf("error Delete commande: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error Commit at commande delete: %w", err)
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiCommandeDeleteHandler: %w", err)
	}
	return nil
}

func toLigne(row DetailsCommandeRow) LigneCommande {
	return LigneCommande{
		ID:                 row.ID,
		CommandeID:         row.CommandeID,
		ChansonnierPersoID: row.ChansonnierPersoID,
		Quantite:           row.Quantite,
	}
}

func apiLignesCommandeHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}
	commandeID, err := strconv.Atoi(c.QueryParam("commande_id"))
	if err != nil || commandeID <= 0 {
		return errorResponse(c, 400, "bad commande_id")
	}

	var commande CommandeRow
	err = db.GetContext(ctx, &commande, "SELECT * FROM commande WHERE id = ?", commandeID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such commande")
	}
	if err != nil {
		return fmt.Errorf("error Get commande: %w", err)
	}
	if user.Role != "admin" && commande.UtilisateurID != user.ID {
		return errorResponse(c, 403, "not your commande")
	}

	var rows []DetailsCommandeRow
	if err := db.SelectContext(ctx, &rows,
		"SELECT * FROM details_commande WHERE commande_id = ? ORDER BY id", commandeID,
	); err != nil {
		return fmt.Errorf("error Select details_commande: %w", err)
	}

	lignes := make([]LigneCommande, 0, len(rows))
	for _, row := range rows {
		lignes = append(lignes, toLigne(row))
	}
	body := LignesCommandeResponse{BasicResponse: okResponse(), Lignes: lignes}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiLignesCommandeHandler: %w", err)
	}
	return nil
}

// apiLigneCommandeAddHandler puts a songbook on an order. Adding the same
// songbook twice bumps the quantity instead of duplicating the line.
func apiLigneCommandeAddHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var req LigneCommandeRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.CommandeID <= 0 || req.ChansonnierPersoID <= 0 {
		return errorResponse(c, 400, "commande_id and chansonnier_perso_id are required")
	}
	if req.Quantite <= 0 {
		req.Quantite = 1
	}

	var commande CommandeRow
	err = db.GetContext(ctx, &commande, "SELECT * FROM commande WHERE id = ?", req.CommandeID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such commande")
	}
	if err != nil {
		return fmt.Errorf("error Get commande: %w", err)
	}
	if user.Role != "admin" && commande.UtilisateurID != user.ID {
		return errorResponse(c, 403, "not your commande")
	}

	var chansonnier ChansonnierPersoRow
	err = db.GetContext(ctx, &chansonnier, "SELECT * FROM chansonnier_perso WHERE id = ?", req.ChansonnierPersoID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such chansonnier")
	}
	if err != nil {
		return fmt.Errorf("error Get chansonnier_perso: %w", err)
	}

	if _, err := db.ExecContext(ctx,
		`INSERT INTO details_commande (commande_id, chansonnier_perso_id, quantite) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE quantite = quantite + VALUES(quantite)`,
		req.CommandeID, req.ChansonnierPersoID, req.Quantite,
	); err != nil {
		return fmt.Errorf("error Upsert details_commande: %w", err)
	}

	var row DetailsCommandeRow
	if err := db.GetContext(ctx, &row,
		"SELECT * FROM details_commande WHERE commande_id = ? AND chansonnier_perso_id = ?",
		req.CommandeID, req.ChansonnierPersoID,
	); err != nil {
		return fmt.Errorf("error Get details_commande after upsert: %w", err)
	}

	body := SingleLigneCommandeResponse{BasicResponse: okResponse(), Ligne: toLigne(row)}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiLigneCommandeAddHandler: %w", err)
	}
	return nil
}

func toFournisseur(row FournisseurRow) Fournisseur {
	return Fournisseur{
		ID:               row.ID,
		NomFournisseur:   row.NomFournisseur,
		VilleFournisseur: row.VilleFournisseur,
		TypeReliure:      row.TypeReliure,
	}
}

func apiFournisseursHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	var rows []FournisseurRow
	if err := db.SelectContext(ctx, &rows, "SELECT * FROM fournisseur ORDER BY id"); err != nil {
		return fmt.Errorf("error Select fournisseur: %w", err)
	}

	fournisseurs := make([]Fournisseur, 0, len(rows))
	for _, row := range rows {
		fournisseurs = append(fournisseurs, toFournisseur(row))
	}
	body := FournisseursResponse{BasicResponse: okResponse(), Fournisseurs: fournisseurs}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiFournisseursHandler: %w", err)
	}
	return nil
}

func apiFournisseurAddHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	var req FournisseurRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.NomFournisseur == nil || strings.TrimSpace(*req.NomFournisseur) == "" {
		return errorResponse(c, 400, "nom_fournisseur is required")
	}

	ville := ""
	if req.VilleFournisseur != nil {
		ville = *req.VilleFournisseur
	}
	reliure := ""
	if req.TypeReliure != nil {
		reliure = *req.TypeReliure
	}

	result, err := db.ExecContext(ctx,
		"INSERT INTO fournisseur (nom_fournisseur, ville_fournisseur, type_reliure) VALUES (?, ?, ?)",
		strings.TrimSpace(*req.NomFournisseur), ville, reliure,
	)
	if err != nil {
		return fmt.Errorf("error Insert fournisseur: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error LastInsertId of fournisseur: %w", err)
	}

	var row FournisseurRow
	if err := db.GetContext(ctx, &row, "SELECT * FROM fournisseur WHERE id = ?", id); err != nil {
		return fmt.Errorf("error Get fournisseur after insert: %w", err)
	}
	body := SingleFournisseurResponse{BasicResponse: okResponse(), Fournisseur: toFournisseur(row)}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiFournisseurAddHandler: %w", err)
	}
	return nil
}

func apiFournisseurUpdateHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}
	fournisseurID, err := paramInt(c, "fournisseurID")
	if err != nil {
		return respondError(c, err)
	}

	var row FournisseurRow
	err = db.GetContext(ctx, &row, "SELECT * FROM fournisseur WHERE id = ?", fournisseurID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such fournisseur")
	}
	if err != nil {
		return fmt.Errorf("error Get fournisseur: %w", err)
	}

	var req FournisseurRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.NomFournisseur != nil {
		nom := strings.TrimSpace(*req.NomFournisseur)
		if nom == "" {
			return errorResponse(c, 400, "nom_fournisseur must not be empty")
		}
		row.NomFournisseur = nom
	}
	if req.VilleFournisseur != nil {
		row.VilleFournisseur = *req.VilleFournisseur
	}
	if req.TypeReliure != nil {
		row.TypeReliure = *req.TypeReliure
	}

	if _, err := db.ExecContext(ctx,
		"UPDATE fournisseur SET nom_fournisseur = ?, ville_fournisseur = ?, type_reliure = ? WHERE id = ?",
		row.NomFournisseur, row.VilleFournisseur, row.TypeReliure, row.ID,
	); err != nil {
		return fmt.Errorf("error Update fournisseur: %w", err)
	}

	body := SingleFournisseurResponse{BasicResponse: okResponse(), Fournisseur: toFournisseur(row)}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiFournisseurUpdateHandler: %w", err)
	}
	return nil
}

func apiFournisseurDeleteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}
	fournisseurID, err := paramInt(c, "fournisseurID")
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

	if _, err := tx.ExecContext(ctx, "DELETE FROM fournir WHERE fournisseur_id = ?", fournisseurID); err != nil {
		return fmt.Errorf("error Delete fournir: %w", err)
	}
	result, err := tx.ExecContext(ctx, "DELETE FROM fournisseur WHERE id = ?", fournisseurID)
	if err != nil {
		return fmt.Errorf("error Delete fournisseur: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error RowsAffected: %w", err)
	}
	if affected == 0 {
		return errorResponse(c, 404, "no such fournisseur")
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error Commit at fournisseur delete: %w", err)
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiFournisseurDeleteHandler: %w", err)
	}
	return nil
}

func apiFournituresHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	var rows []FournirRow
	if err := db.SelectContext(ctx, &rows, "SELECT * FROM fournir ORDER BY date_fourniture DESC, id DESC"); err != nil {
		return fmt.Errorf("error Select fournir: %w", err)
	}

	fournitures := make([]Fourniture, 0, len(rows))
	for _, row := range rows {
		fournitures = append(fournitures, Fourniture{
			ID:                 row.ID,
			FournisseurID:      row.FournisseurID,
			ChansonnierPersoID: row.ChansonnierPersoID,
			DateFourniture:     row.DateFourniture.Format("2006-01-02"),
		})
	}
	body := FournituresResponse{BasicResponse: okResponse(), Fournitures: fournitures}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiFournituresHandler: %w", err)
	}
	return nil
}

func apiFournirHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	var req FournirRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.FournisseurID <= 0 || req.ChansonnierPersoID <= 0 {
		return errorResponse(c, 400, "fournisseur_id and chansonnier_perso_id are required")
	}
	date, err := time.Parse("2006-01-02", req.DateFourniture)
	if err != nil {
		return errorResponse(c, 400, "date_fourniture must be YYYY-MM-DD")
	}

	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM fournisseur WHERE id = ?", req.FournisseurID); err != nil {
		return fmt.Errorf("error Count fournisseur: %w", err)
	}
	if count == 0 {
		return errorResponse(c, 404, "no such fournisseur")
	}
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM chansonnier_perso WHERE id = ?", req.ChansonnierPersoID); err != nil {
		return fmt.Errorf("error Count chansonnier_perso: %w", err)
	}
	if count == 0 {
		return errorResponse(c, 404, "no such chansonnier")
	}

	result, err := db.ExecContext(ctx,
		"INSERT INTO fournir (fournisseur_id, chansonnier_perso_id, date_fourniture) VALUES (?, ?, ?)",
		req.FournisseurID, req.ChansonnierPersoID, date,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return errorResponse(c, 409, "fourniture déjà enregistrée")
		}
		return fmt.Errorf("error Insert fournir: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error LastInsertId of fournir: %w", err)
	}

	body := SingleFournitureResponse{
		BasicResponse: okResponse(),
		Fourniture: Fourniture{
			ID:                 int(id),
			FournisseurID:      req.FournisseurID,
			ChansonnierPersoID: req.ChansonnierPersoID,
			DateFourniture:     date.Format("2006-01-02"),
		},
	}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiFournirHandler: %w", err)
	}
	return nil
}
