package handlers

import (
	"net/http"
)

type SchemaMetric struct {
	Name        string `json:"name"`
	Model       string `json:"model"`
	Description string `json:"description,omitempty"`
}

type SchemaDimension struct {
	Name        string `json:"name"`
	Model       string `json:"model"`
	Description string `json:"description,omitempty"`
}

type SchemaModel struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Columns     []string `json:"columns"`
}

type SchemaRelationship struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SchemaResponse lists what questions can be asked about. Physical table
// and column names are not exposed.
type SchemaResponse struct {
	Metrics       []SchemaMetric       `json:"metrics"`
	Dimensions    []SchemaDimension    `json:"dimensions"`
	Models        []SchemaModel        `json:"models"`
	Relationships []SchemaRelationship `json:"relationships"`
}

func (h *Handler) Schema(w http.ResponseWriter, r *http.Request) {
	resp := SchemaResponse{
		Metrics:       []SchemaMetric{},
		Dimensions:    []SchemaDimension{},
		Models:        []SchemaModel{},
		Relationships: []SchemaRelationship{},
	}
	for _, m := range h.registry.Metrics() {
		resp.Metrics = append(resp.Metrics, SchemaMetric{Name: m.Name, Model: m.Model, Description: m.Description})
	}
	for _, d := range h.registry.Dimensions() {
		resp.Dimensions = append(resp.Dimensions, SchemaDimension{Name: d.Name, Model: d.Model, Description: d.Description})
	}
	for _, m := range h.registry.Models() {
		cols := make([]string, 0, len(m.Columns))
		for _, c := range m.Columns {
			cols = append(cols, c.Name)
		}
		resp.Models = append(resp.Models, SchemaModel{Name: m.Name, Description: m.Description, Columns: cols})
	}
	for _, rel := range h.registry.Relationships() {
		resp.Relationships = append(resp.Relationships, SchemaRelationship{From: rel.From, To: rel.To})
	}
	writeJSON(w, http.StatusOK, resp)
}
