package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 11

// currentUser resolves the caller. The X-User-Email header set by the
// frontend proxy wins; a server session opened by login is the fallback.
func currentUser(c echo.Context) (*UserRow, error) {
	ctx := c.Request().Context()

	email := strings.TrimSpace(c.Request().Header.Get(headerUserEmail))
	if email != "" {
		var user UserRow
		err := db.GetContext(ctx, &user, "SELECT * FROM utilisateur WHERE email = ?", email)
		if err == sql.ErrNoRows {
			return nil, errUnauthorized("unknown user")
		}
		if err != nil {
			return nil, fmt.Errorf("error Get utilisateur by email: %w", err)
		}
		return &user, nil
	}

	sess, err := sessionStore.Get(c.Request(), sessionCookieName)
	if err != nil {
		return nil, errUnauthorized("failed to get session")
	}
	userID, ok := sess.Values["user_id"].(int)
	if !ok || userID <= 0 {
		return nil, errUnauthorized("not logged in")
	}

	var user UserRow
	err = db.GetContext(ctx, &user, "SELECT * FROM utilisateur WHERE id = ?", userID)
	if err == sql.ErrNoRows {
		return nil, errUnauthorized("unknown user")
	}
	if err != nil {
		return nil, fmt.Errorf("error Get utilisateur by id: %w", err)
	}
	return &user, nil
}

func requireAdmin(c echo.Context) (*UserRow, error) {
	user, err := currentUser(c)
	if err != nil {
		return nil, err
	}
	if user.Role != "admin" {
		return nil, errForbidden("admin only")
	}
	return user, nil
}

func isDuplicateEntry(err error) bool {
	var merr *mysql.MySQLError
	return errors.As(err, &merr) && merr.Number == 1062
}

func toUserPublic(row UserRow) UserPublic {
	return UserPublic{ID: row.ID, Pseudo: row.Pseudo, Email: row.Email}
}

func toUserDetail(row UserRow) UserDetail {
	return UserDetail{
		ID:     row.ID,
		Email:  row.Email,
		Nom:    row.Nom,
		Prenom: row.Prenom,
		Pseudo: row.Pseudo,
		Ville:  row.Ville,
		Role:   row.Role,
	}
}

func apiSignupHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Pseudo = strings.TrimSpace(req.Pseudo)
	if req.Email == "" || req.Pseudo == "" || req.Password == "" {
		return errorResponse(c, 400, "email, pseudo and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return fmt.Errorf("error Bcrypt GenerateFromPassword: %w", err)
	}

	result, err := db.ExecContext(ctx,
		"INSERT INTO utilisateur (email, nom, prenom, pseudo, password_hash, ville, role, created_at) VALUES (?, ?, ?, ?, ?, ?, 'user', ?)",
		req.Email, req.Nom, req.Prenom, req.Pseudo, string(hash), req.Ville, time.Now(),
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return errorResponse(c, 409, "email ou pseudo déjà utilisé")
		}
		return fmt.Errorf("error Insert utilisateur: %w", err)
	}
	userID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error LastInsertId of utilisateur: %w", err)
	}

	sess, err := sessionStore.Get(c.Request(), sessionCookieName)
	if err == nil {
		sess.Values["user_id"] = int(userID)
		if err := sess.Save(c.Request(), c.Response()); err != nil {
			return fmt.Errorf("error Save session at signup: %w", err)
		}
	}

	body := SignupResponse{BasicResponse: okResponse(), UserID: int(userID)}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiSignupHandler: %w", err)
	}
	return nil
}

func apiLoginHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}

	var user UserRow
	err := db.GetContext(ctx, &user, "SELECT * FROM utilisateur WHERE email = ?", req.Email)
	if err == sql.ErrNoRows {
		return errorResponse(c, 401, "failed to login (no such user)")
	}
	if err != nil {
		return fmt.Errorf("error Get utilisateur at login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return errorResponse(c, 401, "failed to login (wrong password)")
	}

	sess, err := sessionStore.Get(c.Request(), sessionCookieName)
	if err != nil {
		return fmt.Errorf("error Get session at login: %w", err)
	}
	sess.Values["user_id"] = user.ID
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return fmt.Errorf("error Save session at login: %w", err)
	}

	body := LoginResponse{
		BasicResponse: okResponse(),
		UserID:        user.ID,
		Email:         user.Email,
		Pseudo:        user.Pseudo,
		Role:          user.Role,
	}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiLoginHandler: %w", err)
	}
	return nil
}

func apiLogoutHandler(c echo.Context) error {
	sess, err := sessionStore.Get(c.Request(), sessionCookieName)
	if err != nil {
		return fmt.Errorf("error Get session at logout: %w", err)
	}
	sess.Options.MaxAge = -1
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		return fmt.Errorf("error Save session at logout: %w", err)
	}
	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiLogoutHandler: %w", err)
	}
	return nil
}

func apiResetPasswordHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.NewPassword == "" {
		return errorResponse(c, 400, "new password is required")
	}

	var user UserRow
	err := db.GetContext(ctx, &user, "SELECT * FROM utilisateur WHERE email = ?", req.Email)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such user")
	}
	if err != nil {
		return fmt.Errorf("error Get utilisateur at reset-password: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return errorResponse(c, 401, "wrong password")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("error Bcrypt GenerateFromPassword: %w", err)
	}
	if _, err := db.ExecContext(ctx,
		"UPDATE utilisateur SET password_hash = ? WHERE id = ?", string(hash), user.ID,
	); err != nil {
		return fmt.Errorf("error Update utilisateur password: %w", err)
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiResetPasswordHandler: %w", err)
	}
	return nil
}

func apiMeHandler(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	body := MeResponse{BasicResponse: okResponse(), User: toUserDetail(*user)}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiMeHandler: %w", err)
	}
	return nil
}

func apiMeUpdateHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if err := applyProfileUpdate(ctx, user, &req); err != nil {
		return respondError(c, err)
	}

	body := MeResponse{BasicResponse: okResponse(), User: toUserDetail(*user)}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiMeUpdateHandler: %w", err)
	}
	return nil
}

func applyProfileUpdate(ctx context.Context, user *UserRow, req *UpdateProfileRequest) error {
	if req.Nom != nil {
		user.Nom = *req.Nom
	}
	if req.Prenom != nil {
		user.Prenom = *req.Prenom
	}
	if req.Pseudo != nil {
		user.Pseudo = strings.TrimSpace(*req.Pseudo)
	}
	if req.Ville != nil {
		user.Ville = *req.Ville
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if user.Email == "" || user.Pseudo == "" {
		return errValidation("email and pseudo must not be empty")
	}

	_, err := db.ExecContext(ctx,
		"UPDATE utilisateur SET email = ?, nom = ?, prenom = ?, pseudo = ?, ville = ? WHERE id = ?",
		user.Email, user.Nom, user.Prenom, user.Pseudo, user.Ville, user.ID,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return errConflict("email ou pseudo déjà utilisé")
		}
		return fmt.Errorf("error Update utilisateur: %w", err)
	}
	return nil
}

func apiUsersHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := currentUser(c); err != nil {
		return respondError(c, err)
	}

	var rows []UserRow
	if err := db.SelectContext(ctx, &rows, "SELECT * FROM utilisateur ORDER BY id"); err != nil {
		return fmt.Errorf("error Select utilisateur: %w", err)
	}

	users := make([]UserDetail, 0, len(rows))
	for _, row := range rows {
		users = append(users, toUserDetail(row))
	}
	body := UsersResponse{BasicResponse: okResponse(), Users: users}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiUsersHandler: %w", err)
	}
	return nil
}

func apiAdminUsersHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	var rows []UserRow
	if err := db.SelectContext(ctx, &rows, "SELECT * FROM utilisateur ORDER BY id"); err != nil {
		return fmt.Errorf("error Select utilisateur: %w", err)
	}

	users := make([]UserDetail, 0, len(rows))
	for _, row := range rows {
		users = append(users, toUserDetail(row))
	}
	body := UsersResponse{BasicResponse: okResponse(), Users: users}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiAdminUsersHandler: %w", err)
	}
	return nil
}

func apiAdminUserUpdateHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}
	userID, err := paramInt(c, "userID")
	if err != nil {
		return respondError(c, err)
	}

	var user UserRow
	err = db.GetContext(ctx, &user, "SELECT * FROM utilisateur WHERE id = ?", userID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such user")
	}
	if err != nil {
		return fmt.Errorf("error Get utilisateur: %w", err)
	}

	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if err := applyProfileUpdate(ctx, &user, &req); err != nil {
		return respondError(c, err)
	}

	body := MeResponse{BasicResponse: okResponse(), User: toUserDetail(user)}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiAdminUserUpdateHandler: %w", err)
	}
	return nil
}

func apiAdminUserRoleHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}
	userID, err := paramInt(c, "userID")
	if err != nil {
		return respondError(c, err)
	}

	var req UpdateRoleRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	if req.Role != "user" && req.Role != "admin" {
		return errorResponse(c, 400, "role must be user or admin")
	}

	result, err := db.ExecContext(ctx, "UPDATE utilisateur SET role = ? WHERE id = ?", req.Role, userID)
	if err != nil {
		return fmt.Errorf("error Update utilisateur role: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error RowsAffected: %w", err)
	}
	if affected == 0 {
		var count int
		if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM utilisateur WHERE id = ?", userID); err != nil {
			return fmt.Errorf("error Count utilisateur: %w", err)
		}
		if count == 0 {
			return errorResponse(c, 404, "no such user")
		}
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiAdminUserRoleHandler: %w", err)
	}
	return nil
}

// apiAdminUserDeleteHandler removes an account and everything hanging off
// it. The cleanup runs in one transaction so a failure leaves no orphans.
func apiAdminUserDeleteHandler(c echo.Context) error {
	ctx := c.Request().Context()

	admin, err := requireAdmin(c)
	if err != nil {
		return respondError(c, err)
	}
	userID, err := paramInt(c, "userID")
	if err != nil {
		return respondError(c, err)
	}
	if userID == admin.ID {
		return errorResponse(c, 400, "cannot delete yourself")
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

	var user UserRow
	err = tx.GetContext(ctx, &user, "SELECT * FROM utilisateur WHERE id = ? FOR UPDATE", userID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such user")
	}
	if err != nil {
		return fmt.Errorf("error Get utilisateur for delete: %w", err)
	}

	// uploads referenced only by rows about to go away
	var orphaned []string
	var demandeRows []DemandeRow
	if err := tx.SelectContext(ctx, &demandeRows, "SELECT * FROM demande WHERE utilisateur_id = ?", userID); err != nil {
		return fmt.Errorf("error Select demande for delete: %w", err)
	}
	for _, d := range demandeRows {
		for _, rel := range []string{d.Illustration.String, d.ParolesPDF.String, d.PartitionFile.String, d.FichierMP3.String} {
			if rel != "" {
				orphaned = append(orphaned, rel)
			}
		}
	}
	var pisteFiles []string
	if err := tx.SelectContext(ctx, &pisteFiles,
		"SELECT fichier_mp3 FROM demande_piste WHERE demande_id IN (SELECT id FROM demande WHERE utilisateur_id = ?)", userID,
	); err != nil {
		return fmt.Errorf("error Select demande_piste for delete: %w", err)
	}
	orphaned = append(orphaned, pisteFiles...)
	var supportFiles []string
	if err := tx.SelectContext(ctx, &supportFiles,
		"SELECT fichier FROM piece_jointe_support WHERE demande_id IN (SELECT id FROM demande_support WHERE utilisateur_id = ?)", userID,
	); err != nil {
		return fmt.Errorf("error Select piece_jointe_support for delete: %w", err)
	}
	orphaned = append(orphaned, supportFiles...)

	cleanups := []string{
		"DELETE FROM noter WHERE utilisateur_id = ?",
		"DELETE FROM favoris WHERE utilisateur_id = ?",
		"DELETE FROM commentaire WHERE utilisateur_id = ?",
		"DELETE FROM contenir_chant_perso WHERE chansonnier_perso_id IN (SELECT id FROM chansonnier_perso WHERE utilisateur_id = ?)",
		"DELETE FROM details_commande WHERE commande_id IN (SELECT id FROM commande WHERE utilisateur_id = ?)",
		"DELETE FROM commande WHERE utilisateur_id = ?",
		"DELETE FROM fournir WHERE chansonnier_perso_id IN (SELECT id FROM chansonnier_perso WHERE utilisateur_id = ?)",
		"DELETE FROM chansonnier_perso WHERE utilisateur_id = ?",
		"DELETE FROM piece_jointe_support WHERE demande_id IN (SELECT id FROM demande_support WHERE utilisateur_id = ?)",
		"DELETE FROM demande_support WHERE utilisateur_id = ?",
		"DELETE FROM demande_piste WHERE demande_id IN (SELECT id FROM demande WHERE utilisateur_id = ?)",
		"DELETE FROM demande WHERE utilisateur_id = ?",
	}
	for _, q := range cleanups {
		if _, err := tx.ExecContext(ctx, q, userID); err != nil {
			return fmt.Errorf("error cleanup on user delete: %w", err)
		}
	}
	// contributed songs and tracks survive, anonymized
	if _, err := tx.ExecContext(ctx, "UPDATE chant SET utilisateur_id = NULL WHERE utilisateur_id = ?", userID); err != nil {
		return fmt.Errorf("error anonymize chant: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE piste_audio SET utilisateur_id = NULL WHERE utilisateur_id = ?", userID); err != nil {
		return fmt.Errorf("error anonymize piste_audio: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM utilisateur WHERE id = ?", userID); err != nil {
		return fmt.Errorf("error Delete utilisateur: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error Commit at user delete: %w", err)
	}

	for _, rel := range orphaned {
		if err := fileStore.Remove(rel); err != nil {
			return err
		}
	}

	if err := c.JSON(http.StatusOK, okResponse()); err != nil {
		return fmt.Errorf("error returns JSON at apiAdminUserDeleteHandler: %w", err)
	}
	return nil
}
