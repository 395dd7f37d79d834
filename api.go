package main

// API essential types

type UserPublic struct {
	ID     int    `json:"id"`
	Pseudo string `json:"pseudo"`
	Email  string `json:"email"`
}

type UserDetail struct {
	ID     int    `json:"id"`
	Email  string `json:"email"`
	Nom    string `json:"nom"`
	Prenom string `json:"prenom"`
	Pseudo string `json:"pseudo"`
	Ville  string `json:"ville"`
	Role   string `json:"role"`
}

type PisteAudio struct {
	ID                int     `json:"id"`
	FichierMP3        *string `json:"fichier_mp3"`
	UtilisateurID     *int    `json:"utilisateur_id"`
	UtilisateurPseudo *string `json:"utilisateur_pseudo"`
	NoteMoyenne       float64 `json:"note_moyenne"`
	NbNotes           int     `json:"nb_notes"`
}

type Chant struct {
	ID                int          `json:"id"`
	NomChant          string       `json:"nom_chant"`
	Auteur            string       `json:"auteur"`
	VilleOrigine      string       `json:"ville_origine"`
	Paroles           string       `json:"paroles"`
	Description       string       `json:"description"`
	UtilisateurID     *int         `json:"utilisateur_id"`
	UtilisateurPseudo *string      `json:"utilisateur_pseudo"`
	IllustrationURL   *string      `json:"illustration_chant_url"`
	ParolesPDFURL     *string      `json:"paroles_pdf_url"`
	PartitionURL      *string      `json:"partition_url"`
	Categories        []string     `json:"categories"`
	PistesAudio       []PisteAudio `json:"pistes_audio"`
	AEteModifie       bool         `json:"a_ete_modifie"`
}

type Categorie struct {
	ID           int    `json:"id"`
	NomCategorie string `json:"nom_categorie"`
}

type ChantRef struct {
	ID       int    `json:"id"`
	NomChant string `json:"nom_chant"`
}

type DemandeAudio struct {
	ID         int     `json:"id"`
	FichierMP3 *string `json:"fichier_mp3"`
}

type Demande struct {
	ID                 int            `json:"id"`
	ULID               string         `json:"ulid"`
	Kind               string         `json:"kind"`
	NomChant           string         `json:"nom_chant"`
	Auteur             string         `json:"auteur"`
	VilleOrigine       string         `json:"ville_origine"`
	Paroles            string         `json:"paroles"`
	Description        string         `json:"description"`
	Categories         []string       `json:"categories"`
	Categorie          *Categorie     `json:"categorie"`
	Statut             string         `json:"statut"`
	JustificationRefus *string        `json:"justification_refus"`
	DateCreation       string         `json:"date_creation"`
	DateDecision       *string        `json:"date_decision"`
	Utilisateur        UserPublic     `json:"utilisateur"`
	IllustrationURL    *string        `json:"illustration_chant_url"`
	ParolesPDFURL      *string        `json:"paroles_pdf_url"`
	PartitionURL       *string        `json:"partition_url"`
	FichierMP3URL      *string        `json:"fichier_mp3_url"`
	PistesAudio        []DemandeAudio `json:"pistes_audio"`
	Chant              *ChantRef      `json:"chant"`
}

type Commentaire struct {
	ID                int    `json:"id"`
	UtilisateurID     int    `json:"utilisateur_id"`
	UtilisateurPseudo string `json:"utilisateur_pseudo"`
	Texte             string `json:"texte"`
	DateComment       string `json:"date_comment"`
	ChantID           int    `json:"chant"`
}

type Favori struct {
	ID            int    `json:"id"`
	UtilisateurID int    `json:"utilisateur_id"`
	ChantID       int    `json:"chant_id"`
	DateFavori    string `json:"date_favori"`
}

type Note struct {
	ID            int    `json:"id"`
	UtilisateurID int    `json:"utilisateur_id"`
	PisteAudioID  int    `json:"piste_audio_id"`
	ValeurNote    int    `json:"valeur_note"`
	DateRating    string `json:"date_rating"`
}

type Chansonnier struct {
	ID           int    `json:"id"`
	ULID         string `json:"ulid"`
	Nom          string `json:"nom_chansonnier_perso"`
	Couleur      string `json:"couleur"`
	TypePapier   string `json:"type_papier"`
	DateCreation string `json:"date_creation"`
	TemplateID   *int   `json:"template_id"`
	ChantIDs     []int  `json:"chant_ids,omitempty"`
}

type Template struct {
	ID          int    `json:"id"`
	NomTemplate string `json:"nom_template"`
	Description string `json:"description"`
	Couleur     string `json:"couleur"`
	TypePapier  string `json:"type_papier"`
	ChantIDs    []int  `json:"chant_ids"`
}

type Commande struct {
	ID           int    `json:"id"`
	DateCommande string `json:"date_commande"`
	Status       string `json:"status"`
}

type LigneCommande struct {
	ID                 int `json:"id"`
	CommandeID         int `json:"commande_id"`
	ChansonnierPersoID int `json:"chansonnier_perso_id"`
	Quantite           int `json:"quantite"`
}

type Fournisseur struct {
	ID               int    `json:"id"`
	NomFournisseur   string `json:"nom_fournisseur"`
	VilleFournisseur string `json:"ville_fournisseur"`
	TypeReliure      string `json:"type_reliure"`
}

type Fourniture struct {
	ID                 int    `json:"id"`
	FournisseurID      int    `json:"fournisseur_id"`
	ChansonnierPersoID int    `json:"chansonnier_perso_id"`
	DateFourniture     string `json:"date_fourniture"`
}

type Evenement struct {
	ID             int     `json:"id"`
	DateEvenement  *string `json:"date_evenement"`
	Lieu           string  `json:"lieu"`
	NomEvenement   string  `json:"nom_evenement"`
	AnnonceFilActu string  `json:"annonce_fil_actu"`
	Histoire       string  `json:"histoire"`
}

type ChanterLink struct {
	ID          int `json:"id"`
	ChantID     int `json:"chant_id"`
	EvenementID int `json:"evenement_id"`
}

type SupportAttachment struct {
	ID       int     `json:"id"`
	Filename string  `json:"filename"`
	URL      *string `json:"url"`
}

type SupportTicket struct {
	ID             int                 `json:"id"`
	Objet          string              `json:"objet"`
	Description    string              `json:"description"`
	Status         string              `json:"status"`
	CreatedAt      string              `json:"created_at"`
	Utilisateur    *UserPublic         `json:"utilisateur,omitempty"`
	HasAttachments bool                `json:"has_attachments"`
	Attachments    []SupportAttachment `json:"attachments,omitempty"`
}

// API request types

type SignupRequest struct {
	Email    string `json:"email"`
	Nom      string `json:"nom"`
	Prenom   string `json:"prenom"`
	Pseudo   string `json:"pseudo"`
	Ville    string `json:"ville"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type UpdateProfileRequest struct {
	Nom    *string `json:"nom"`
	Prenom *string `json:"prenom"`
	Pseudo *string `json:"pseudo"`
	Ville  *string `json:"ville"`
	Email  *string `json:"email"`
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// DecisionRequest is the admin action payload for a moderation request.
type DecisionRequest struct {
	Action        string `json:"action"`
	Justification string `json:"justification"`
}

type NoterRequest struct {
	UtilisateurID int `json:"utilisateur_id"`
	PisteAudioID  int `json:"piste_audio_id"`
	ValeurNote    int `json:"valeur_note"`
}

type FavoriRequest struct {
	UtilisateurID int `json:"utilisateur_id"`
	ChantID       int `json:"chant_id"`
}

type CommentCreateRequest struct {
	UtilisateurID int    `json:"utilisateur_id"`
	ChantID       int    `json:"chant_id"`
	Texte         string `json:"texte"`
}

type CommentEditRequest struct {
	ID     int     `json:"id"`
	UserID int     `json:"userId"`
	Texte  *string `json:"texte"`
}

type CategorieCreateRequest struct {
	NomCategorie string `json:"nom_categorie"`
}

type CategorieRenameRequest struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

type AppartenirRequest struct {
	ChantID       int    `json:"chant_id"`
	NomCategorie  string `json:"nom_categorie"`
	UtilisateurID *int   `json:"utilisateur_id"`
}

type ChansonnierCreateRequest struct {
	Nom        string `json:"nom_chansonnier_perso"`
	Couleur    string `json:"couleur"`
	TypePapier string `json:"type_papier"`
	TemplateID *int   `json:"template_id"`
	ChantIDs   []int  `json:"chant_ids"`
}

type ChansonnierUpdateRequest struct {
	Nom        *string `json:"nom_chansonnier_perso"`
	Couleur    *string `json:"couleur"`
	TypePapier *string `json:"type_papier"`
	TemplateID *int    `json:"template_id"`
	ChantIDs   *[]int  `json:"chant_ids"`
}

type TemplateRequest struct {
	NomTemplate string `json:"nom_template"`
	Description string `json:"description"`
	Couleur     string `json:"couleur"`
	TypePapier  string `json:"type_papier"`
	ChantIDs    []int  `json:"chant_ids"`
}

type TemplateUpdateRequest struct {
	NomTemplate *string `json:"nom_template"`
	Description *string `json:"description"`
	Couleur     *string `json:"couleur"`
	TypePapier  *string `json:"type_papier"`
	ChantIDs    *[]int  `json:"chant_ids"`
}

type CommandeCreateRequest struct {
	Status string `json:"status"`
}

type CommandeUpdateRequest struct {
	Status *string `json:"status"`
}

type LigneCommandeRequest struct {
	CommandeID         int `json:"commande_id"`
	ChansonnierPersoID int `json:"chansonnier_perso_id"`
	Quantite           int `json:"quantite"`
}

type FournisseurRequest struct {
	NomFournisseur   *string `json:"nom_fournisseur"`
	VilleFournisseur *string `json:"ville_fournisseur"`
	TypeReliure      *string `json:"type_reliure"`
}

type FournirRequest struct {
	FournisseurID      int    `json:"fournisseur_id"`
	ChansonnierPersoID int    `json:"chansonnier_perso_id"`
	DateFourniture     string `json:"date_fourniture"`
}

type EvenementRequest struct {
	DateEvenement  *string `json:"date_evenement"`
	Lieu           *string `json:"lieu"`
	NomEvenement   *string `json:"nom_evenement"`
	AnnonceFilActu *string `json:"annonce_fil_actu"`
	Histoire       *string `json:"histoire"`
}

type ChanterRequest struct {
	ChantID     int `json:"chant_id"`
	EvenementID int `json:"evenement_id"`
}

type MaitresRequest struct {
	Maitres []string `json:"maitres"`
}

type SupportStatusRequest struct {
	Status string `json:"status"`
}

// API response types

type BasicResponse struct {
	Result bool    `json:"result"`
	Status int     `json:"status"`
	Error  *string `json:"error,omitempty"`
}

type SignupResponse struct {
	BasicResponse
	UserID int `json:"user_id"`
}

type LoginResponse struct {
	BasicResponse
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	Pseudo string `json:"pseudo"`
	Role   string `json:"role"`
}

type MeResponse struct {
	BasicResponse
	User UserDetail `json:"user"`
}

type UsersResponse struct {
	BasicResponse
	Users []UserDetail `json:"users"`
}

type ChantsResponse struct {
	BasicResponse
	Chants []Chant `json:"chants"`
}

type SingleChantResponse struct {
	BasicResponse
	Chant Chant `json:"chant"`
}

type CategoriesResponse struct {
	BasicResponse
	Categories []Categorie `json:"categories"`
}

type SingleCategorieResponse struct {
	BasicResponse
	Categorie Categorie `json:"categorie"`
}

type DemandesResponse struct {
	BasicResponse
	Demandes []Demande `json:"demandes"`
}

type SingleDemandeResponse struct {
	BasicResponse
	Demande Demande `json:"demande"`
}

// DecisionResponse carries the decided request plus whatever the acceptance
// materialized (a song for creation requests, a track for audio requests).
type DecisionResponse struct {
	BasicResponse
	Demande    Demande     `json:"demande"`
	Chant      *Chant      `json:"chant,omitempty"`
	PisteAudio *PisteAudio `json:"piste_audio,omitempty"`
}

type PistesAudioResponse struct {
	BasicResponse
	Pistes []PisteAudio `json:"pistes_audio"`
}

type SinglePisteAudioResponse struct {
	BasicResponse
	Piste PisteAudio `json:"piste_audio"`
}

type NotesResponse struct {
	BasicResponse
	Notes   []Note  `json:"notes"`
	Moyenne float64 `json:"moyenne"`
	NbNotes int     `json:"nb_notes"`
}

type SingleNoteResponse struct {
	BasicResponse
	Note    Note `json:"note"`
	Created bool `json:"created"`
}

type FavorisResponse struct {
	BasicResponse
	Favoris []Favori `json:"favoris"`
}

type SingleFavoriResponse struct {
	BasicResponse
	Favori Favori `json:"favori"`
}

type CommentairesResponse struct {
	BasicResponse
	Commentaires []Commentaire `json:"commentaires"`
}

type SingleCommentaireResponse struct {
	BasicResponse
	Commentaire Commentaire `json:"commentaire"`
}

type ChansonniersResponse struct {
	BasicResponse
	Chansonniers []Chansonnier `json:"chansonniers"`
}

type SingleChansonnierResponse struct {
	BasicResponse
	Chansonnier Chansonnier `json:"chansonnier"`
}

type TemplatesResponse struct {
	BasicResponse
	Templates []Template `json:"templates"`
}

type SingleTemplateResponse struct {
	BasicResponse
	Template Template `json:"template"`
}

type CommandesResponse struct {
	BasicResponse
	Commandes []Commande `json:"commandes"`
}

type SingleCommandeResponse struct {
	BasicResponse
	Commande Commande `json:"commande"`
}

type LignesCommandeResponse struct {
	BasicResponse
	Lignes []LigneCommande `json:"lignes"`
}

type SingleLigneCommandeResponse struct {
	BasicResponse
	Ligne LigneCommande `json:"ligne"`
}

type FournisseursResponse struct {
	BasicResponse
	Fournisseurs []Fournisseur `json:"fournisseurs"`
}

type SingleFournisseurResponse struct {
	BasicResponse
	Fournisseur Fournisseur `json:"fournisseur"`
}

type FournituresResponse struct {
	BasicResponse
	Fournitures []Fourniture `json:"fournitures"`
}

type SingleFournitureResponse struct {
	BasicResponse
	Fourniture Fourniture `json:"fourniture"`
}

type EvenementsResponse struct {
	BasicResponse
	Evenements []Evenement `json:"evenements"`
}

type SingleEvenementResponse struct {
	BasicResponse
	Evenement Evenement `json:"evenement"`
}

type ChanterResponse struct {
	BasicResponse
	Liens []ChanterLink `json:"liens"`
}

type SingleChanterResponse struct {
	BasicResponse
	Lien ChanterLink `json:"lien"`
}

type MaitresResponse struct {
	BasicResponse
	Maitres []string `json:"maitres"`
}

type SupportTicketsResponse struct {
	BasicResponse
	Tickets []SupportTicket `json:"tickets"`
}

type SingleSupportTicketResponse struct {
	BasicResponse
	Ticket SupportTicket `json:"ticket"`
}
