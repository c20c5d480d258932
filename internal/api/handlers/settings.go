package handlers

import (
	"net/http"
	"strings"

	"github.com/catdesk/backend/internal/db"
	"github.com/catdesk/backend/internal/qa"
)

// settingsKeys lists the editable keys with their display metadata.
var settingsKeys = []SettingDef{
	{Key: "provider_model", Label: "Default Model", Group: "intelligence", Placeholder: "default"},
	{Key: "default_source_language", Label: "Default Source Language", Group: "projects", Placeholder: "en"},
	{Key: "default_target_language", Label: "Default Target Language", Group: "projects", Placeholder: "hu"},
	{Key: "qa_rules", Label: "QA Rules", Group: "projects", Placeholder: "empty,inconsistent,terminology,number,spacing"},
}

type SettingDef struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Group       string `json:"group"`
	Placeholder string `json:"placeholder"`
}

type SettingsHandler struct {
	database *db.Database
}

func NewSettingsHandler(database *db.Database) *SettingsHandler {
	return &SettingsHandler{database: database}
}

// GetSettings returns every known setting with its current value.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	all, err := h.database.GetAllSettings()
	if err != nil {
		fail(w, r, err)
		return
	}

	type SettingResponse struct {
		SettingDef
		Value    string `json:"value"`
		HasValue bool   `json:"has_value"`
	}

	result := make([]SettingResponse, 0, len(settingsKeys))
	for _, def := range settingsKeys {
		val := all[def.Key]
		result = append(result, SettingResponse{
			SettingDef: def,
			Value:      val,
			HasValue:   val != "",
		})
	}

	jsonResponse(w, result, http.StatusOK)
}

// UpdateSettings saves known settings from the request body; unknown keys
// are ignored. A QA rule list is checked before anything is written.
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if !decode(w, r, &updates) {
		return
	}
	if v, ok := updates["qa_rules"]; ok {
		if _, err := qa.ParseRules(splitRules(v)); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	allowed := make(map[string]bool, len(settingsKeys))
	for _, def := range settingsKeys {
		allowed[def.Key] = true
	}
	for key, value := range updates {
		if !allowed[key] {
			continue
		}
		if err := h.database.SetSetting(key, strings.TrimSpace(value)); err != nil {
			fail(w, r, err)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
