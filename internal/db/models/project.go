package models

import "time"

// Project is the stored header of a translation project. The JSON columns
// hold project-file sections the server does not interpret.
type Project struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	SourceLanguage string    `json:"sourceLanguage" db:"source_language"`
	TargetLanguage string    `json:"targetLanguage" db:"target_language"`
	Kind           string    `json:"kind" db:"kind"`
	OwnerID        int64     `json:"ownerId" db:"owner_id"`
	SourceName     string    `json:"sourceName,omitempty" db:"source_name"`
	SourceHTML     string    `json:"-" db:"source_html"`
	Settings       string    `json:"-" db:"settings"`
	Extras         string    `json:"-" db:"extras"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// Member is one role a user holds on a project. A user may hold several.
type Member struct {
	ProjectID string `json:"projectId" db:"project_id"`
	UserID    int64  `json:"userId" db:"user_id"`
	Username  string `json:"username" db:"username"`
	Role      string `json:"role" db:"role"`
}
