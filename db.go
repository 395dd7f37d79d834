package main

import (
	"database/sql"
	"time"
)

type UserRow struct {
	ID           int       `db:"id"`
	Email        string    `db:"email"`
	Nom          string    `db:"nom"`
	Prenom       string    `db:"prenom"`
	Pseudo       string    `db:"pseudo"`
	PasswordHash string    `db:"password_hash"`
	Ville        string    `db:"ville"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
}

type ChantRow struct {
	ID            int            `db:"id"`
	NomChant      string         `db:"nom_chant"`
	Auteur        string         `db:"auteur"`
	VilleOrigine  string         `db:"ville_origine"`
	Paroles       string         `db:"paroles"`
	Description   string         `db:"description"`
	Illustration  sql.NullString `db:"illustration_chant"`
	ParolesPDF    sql.NullString `db:"paroles_pdf"`
	PartitionFile sql.NullString `db:"partition_file"`
	UtilisateurID sql.NullInt64  `db:"utilisateur_id"`
	CreatedAt     time.Time      `db:"created_at"`
}

type CategorieRow struct {
	ID           int    `db:"id"`
	NomCategorie string `db:"nom_categorie"`
}

type AppartenirRow struct {
	ID            int           `db:"id"`
	CategorieID   int           `db:"categorie_id"`
	ChantID       int           `db:"chant_id"`
	UtilisateurID sql.NullInt64 `db:"utilisateur_id"`
}

type PisteAudioRow struct {
	ID            int           `db:"id"`
	FichierMP3    string        `db:"fichier_mp3"`
	ChantID       int           `db:"chant_id"`
	UtilisateurID sql.NullInt64 `db:"utilisateur_id"`
	CreatedAt     time.Time     `db:"created_at"`
}

type NoterRow struct {
	ID            int       `db:"id"`
	UtilisateurID int       `db:"utilisateur_id"`
	PisteAudioID  int       `db:"piste_audio_id"`
	ValeurNote    int       `db:"valeur_note"`
	DateRating    time.Time `db:"date_rating"`
}

type FavorisRow struct {
	ID            int       `db:"id"`
	UtilisateurID int       `db:"utilisateur_id"`
	ChantID       int       `db:"chant_id"`
	DateFavori    time.Time `db:"date_favori"`
}

type CommentaireRow struct {
	ID            int       `db:"id"`
	UtilisateurID int       `db:"utilisateur_id"`
	ChantID       int       `db:"chant_id"`
	Texte         string    `db:"texte"`
	DateComment   time.Time `db:"date_comment"`
}

type TemplateChansonnierRow struct {
	ID          int    `db:"id"`
	NomTemplate string `db:"nom_template"`
	Description string `db:"description"`
	Couleur     string `db:"couleur"`
	TypePapier  string `db:"type_papier"`
}

type ChansonnierPersoRow struct {
	ID            int           `db:"id"`
	ULID          string        `db:"ulid"`
	Nom           string        `db:"nom_chansonnier_perso"`
	Couleur       string        `db:"couleur"`
	TypePapier    string        `db:"type_papier"`
	UtilisateurID int           `db:"utilisateur_id"`
	TemplateID    sql.NullInt64 `db:"template_id"`
	DateCreation  time.Time     `db:"date_creation"`
}

type CommandeRow struct {
	ID            int       `db:"id"`
	UtilisateurID int       `db:"utilisateur_id"`
	Status        string    `db:"status"`
	DateCommande  time.Time `db:"date_commande"`
}

type DetailsCommandeRow struct {
	ID                 int `db:"id"`
	CommandeID         int `db:"commande_id"`
	ChansonnierPersoID int `db:"chansonnier_perso_id"`
	Quantite           int `db:"quantite"`
}

type FournisseurRow struct {
	ID               int    `db:"id"`
	NomFournisseur   string `db:"nom_fournisseur"`
	VilleFournisseur string `db:"ville_fournisseur"`
	TypeReliure      string `db:"type_reliure"`
}

type FournirRow struct {
	ID                 int       `db:"id"`
	FournisseurID      int       `db:"fournisseur_id"`
	ChansonnierPersoID int       `db:"chansonnier_perso_id"`
	DateFourniture     time.Time `db:"date_fourniture"`
}

type EvenementRow struct {
	ID             int          `db:"id"`
	NomEvenement   string       `db:"nom_evenement"`
	Lieu           string       `db:"lieu"`
	DateEvenement  sql.NullTime `db:"date_evenement"`
	AnnonceFilActu string       `db:"annonce_fil_actu"`
	Histoire       string       `db:"histoire"`
}

type ChanterRow struct {
	ID          int `db:"id"`
	ChantID     int `db:"chant_id"`
	EvenementID int `db:"evenement_id"`
}

// Moderation request kinds. One table carries the three structurally
// identical request shapes, discriminated by kind.
const (
	demandeKindChant        = "CHANT"
	demandeKindAudio        = "AUDIO"
	demandeKindModification = "MODIFICATION"
)

const (
	statutEnAttente = "EN_ATTENTE"
	statutAcceptee  = "ACCEPTEE"
	statutRefusee   = "REFUSEE"
)

type DemandeRow struct {
	ID                 int            `db:"id"`
	ULID               string         `db:"ulid"`
	Kind               string         `db:"kind"`
	Statut             string         `db:"statut"`
	UtilisateurID      int            `db:"utilisateur_id"`
	ChantID            sql.NullInt64  `db:"chant_id"`
	NomChant           string         `db:"nom_chant"`
	Auteur             string         `db:"auteur"`
	VilleOrigine       string         `db:"ville_origine"`
	Paroles            string         `db:"paroles"`
	Description        string         `db:"description"`
	CategorieID        sql.NullInt64  `db:"categorie_id"`
	Categories         string         `db:"categories"`
	Illustration       sql.NullString `db:"illustration_chant"`
	ParolesPDF         sql.NullString `db:"paroles_pdf"`
	PartitionFile      sql.NullString `db:"partition_file"`
	FichierMP3         sql.NullString `db:"fichier_mp3"`
	JustificationRefus sql.NullString `db:"justification_refus"`
	DateCreation       time.Time      `db:"date_creation"`
	DateDecision       sql.NullTime   `db:"date_decision"`
}

type DemandePisteRow struct {
	ID         int    `db:"id"`
	DemandeID  int    `db:"demande_id"`
	FichierMP3 string `db:"fichier_mp3"`
}

type DemandeSupportRow struct {
	ID            int       `db:"id"`
	UtilisateurID int       `db:"utilisateur_id"`
	Objet         string    `db:"objet"`
	Description   string    `db:"description"`
	Statut        string    `db:"statut"`
	DateCreation  time.Time `db:"date_creation"`
}

type PieceJointeSupportRow struct {
	ID        int    `db:"id"`
	DemandeID int    `db:"demande_id"`
	Fichier   string `db:"fichier"`
}

type MaitreChantRow struct {
	ID  int    `db:"id"`
	Nom string `db:"nom"`
}
