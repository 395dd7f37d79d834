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

// Ticket statuses are stored in French and exposed to the API in English,
// matching what the support screens expect.
var supportStatusOut = map[string]string{
	"NOUVEAU":  "new",
	"EN_COURS": "in_progress",
	"RESOLU":   "closed",
}

var supportStatusIn = map[string]string{
	"new":         "NOUVEAU",
	"in_progress": "EN_COURS",
	"closed":      "RESOLU",
}

func serializeSupportTicket(ctx context.Context, q connOrTx, row DemandeSupportRow, withAttachments bool) (SupportTicket, error) {
	status, ok := supportStatusOut[row.Statut]
	if !ok {
		status = strings.ToLower(row.Statut)
	}

	ticket := SupportTicket{
		ID:          row.ID,
		Objet:       row.Objet,
		Description: row.Description,
		Status:      status,
		CreatedAt:   row.DateCreation.Format(time.RFC3339),
	}

	var owner UserRow
	err := q.GetContext(ctx, &owner, "SELECT * FROM utilisateur WHERE id = ?", row.UtilisateurID)
	if err != nil && err != sql.ErrNoRows {
		return SupportTicket{}, fmt.Errorf("error Get ticket owner: %w", err)
	}
	if err == nil {
		u := toUserPublic(owner)
		ticket.Utilisateur = &u
	}

	var attachments []PieceJointeSupportRow
	if err := q.SelectContext(ctx, &attachments,
		"SELECT * FROM piece_jointe_support WHERE demande_id = ? ORDER BY id", row.ID,
	); err != nil {
		return SupportTicket{}, fmt.Errorf("error Select piece_jointe_support: %w", err)
	}
	ticket.HasAttachments = len(attachments) > 0
	if withAttachments {
		ticket.Attachments = make([]SupportAttachment, 0, len(attachments))
		for _, a := range attachments {
			ticket.Attachments = append(ticket.Attachments, SupportAttachment{
				ID:       a.ID,
				Filename: a.Fichier[strings.LastIndex(a.Fichier, "/")+1:],
				URL:      fileStore.URL(a.Fichier),
			})
		}
	}
	return ticket, nil
}

func apiSupportHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	var rows []DemandeSupportRow
	if err := db.SelectContext(ctx, &rows,
		"SELECT * FROM demande_support WHERE utilisateur_id = ? ORDER BY date_creation DESC, id DESC", user.ID,
	); err != nil {
		return fmt.Errorf("error Select demande_support: %w", err)
	}

	tickets := make([]SupportTicket, 0, len(rows))
	for _, row := range rows {
		ticket, err := serializeSupportTicket(ctx, db, row, false)
		if err != nil {
			return err
		}
		tickets = append(tickets, ticket)
	}
	body := SupportTicketsResponse{BasicResponse: okResponse(), Tickets: tickets}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiSupportHandler: %w", err)
	}
	return nil
}

func apiSupportAddHandler(c echo.Context) error {
	ctx := c.Request().Context()

	user, err := currentUser(c)
	if err != nil {
		return respondError(c, err)
	}

	objet := strings.TrimSpace(c.FormValue("objet"))
	description := strings.TrimSpace(c.FormValue("description"))
	if objet == "" || description == "" {
		return errorResponse(c, 400, "objet and description are required")
	}

	result, err := db.ExecContext(ctx,
		"INSERT INTO demande_support (utilisateur_id, objet, description, statut, date_creation) VALUES (?, ?, ?, 'NOUVEAU', NOW(6))",
		user.ID, objet, description,
	)
	if err != nil {
		return fmt.Errorf("error Insert demande_support: %w", err)
	}
	ticketID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("error LastInsertId of demande_support: %w", err)
	}

	if form, err := c.MultipartForm(); err == nil && form != nil {
		for _, fh := range form.File["pieces_jointes"] {
			f, err := fh.Open()
			if err != nil {
				return fmt.Errorf("error Open support attachment: %w", err)
			}
			content, err := readAndClose(f)
			if err != nil {
				return err
			}
			rel, err := fileStore.Save("support", fh.Filename, content)
			if err != nil {
				return respondError(c, err)
			}
			if _, err := db.ExecContext(ctx,
				"INSERT INTO piece_jointe_support (demande_id, fichier) VALUES (?, ?)", ticketID, rel,
			); err != nil {
				return fmt.Errorf("error Insert piece_jointe_support: %w", err)
			}
		}
	}

	var row DemandeSupportRow
	if err := db.GetContext(ctx, &row, "SELECT * FROM demande_support WHERE id = ?", ticketID); err != nil {
		return fmt.Errorf("error Get demande_support after insert: %w", err)
	}
	ticket, err := serializeSupportTicket(ctx, db, row, true)
	if err != nil {
		return err
	}
	body := SingleSupportTicketResponse{BasicResponse: okResponse(), Ticket: ticket}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiSupportAddHandler: %w", err)
	}
	return nil
}

func apiAdminSupportListHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	query := "SELECT * FROM demande_support"
	args := []interface{}{}
	if raw := c.QueryParam("status"); raw != "" {
		statut, ok := supportStatusIn[raw]
		if !ok {
			return errorResponse(c, 400, "unknown status")
		}
		query += " WHERE statut = ?"
		args = append(args, statut)
	}
	query += " ORDER BY date_creation DESC, id DESC"

	var rows []DemandeSupportRow
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return fmt.Errorf("error Select demande_support: %w", err)
	}

	tickets := make([]SupportTicket, 0, len(rows))
	for _, row := range rows {
		ticket, err := serializeSupportTicket(ctx, db, row, false)
		if err != nil {
			return err
		}
		tickets = append(tickets, ticket)
	}
	body := SupportTicketsResponse{BasicResponse: okResponse(), Tickets: tickets}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiAdminSupportListHandler: %w", err)
	}
	return nil
}

func apiAdminSupportHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}
	ticketID, err := paramInt(c, "ticketID")
	if err != nil {
		return respondError(c, err)
	}

	var row DemandeSupportRow
	err = db.GetContext(ctx, &row, "SELECT * FROM demande_support WHERE id = ?", ticketID)
	if err == sql.ErrNoRows {
		return errorResponse(c, 404, "no such ticket")
	}
	if err != nil {
		return fmt.Errorf("error Get demande_support: %w", err)
	}

	ticket, err := serializeSupportTicket(ctx, db, row, true)
	if err != nil {
		return err
	}
	body := SingleSupportTicketResponse{BasicResponse: okResponse(), Ticket: ticket}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiAdminSupportHandler: %w", err)
	}
	return nil
}

func apiAdminSupportUpdateHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}
	ticketID, err := paramInt(c, "ticketID")
	if err != nil {
		return respondError(c, err)
	}

	var req SupportStatusRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, 400, "failed to fetch request parameter")
	}
	statut, ok := supportStatusIn[req.Status]
	if !ok {
		return errorResponse(c, 400, "status must be new, in_progress or closed")
	}

	result, err := db.ExecContext(ctx,
		"UPDATE demande_support SET statut = ? WHERE id = ?", statut, ticketID,
	)
	if err != nil {
		return fmt.Errorf("error Update demande_support: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error RowsAffected: %w", err)
	}
	if affected == 0 {
		var count int
		if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM demande_support WHERE id = ?", ticketID); err != nil {
			return fmt.Errorf("error Count demande_support: %w", err)
		}
		if count == 0 {
			return errorResponse(c, 404, "no such ticket")
		}
	}

	var row DemandeSupportRow
	if err := db.GetContext(ctx, &row, "SELECT * FROM demande_support WHERE id = ?", ticketID); err != nil {
		return fmt.Errorf("error Get demande_support after update: %w", err)
	}
	ticket, err := serializeSupportTicket(ctx, db, row, true)
	if err != nil {
		return err
	}
	body := SingleSupportTicketResponse{BasicResponse: okResponse(), Ticket: ticket}
	if err := c.JSON(http.StatusOK, body); err != nil {
		return fmt.Errorf("error returns JSON at apiAdminSupportUpdateHandler: %w", err)
	}
	return nil
}
