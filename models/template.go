package models

// Template is stored under (templateId, "template"). Content is html/template source
// with the render variables as top-level fields, e.g. {{.contactName}}.
type Template struct {
	TemplateID string `json:"-"`
	Name       string `json:"name"`
	Content    string `json:"content"`
}
