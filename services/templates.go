package services

import (
	"embed"
	"fmt"
	"html"
	"sort"

	"github.com/osteele/liquid"
)

//go:embed templates/*.html
var templateFS embed.FS

// TemplateInfo describes a phishing email template available to campaigns
type TemplateInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var builtinTemplates = []TemplateInfo{
	{ID: "password-expiry", Name: "Password expiry", Description: "Urgent notice that the mailbox password expires today"},
	{ID: "it-helpdesk", Name: "IT helpdesk alert", Description: "Service desk ticket about suspicious sign-in activity"},
	{ID: "package-delivery", Name: "Failed parcel delivery", Description: "Courier asking for a small redelivery fee"},
	{ID: "payroll-update", Name: "Payroll provider change", Description: "HR request to confirm bank details"},
}

const landingTemplate = "landing"

const missingTemplatePage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Template not found</title></head>
<body style="font-family: Arial, sans-serif; padding: 40px;">
  <h2 style="color: #c0392b;">Template not found</h2>
  <p>The campaign refers to the email template <code>{{template_id}}</code>, which does not exist.
    Edit the campaign and pick one of the available templates.</p>
</body>
</html>`

// TemplateVars are the placeholder values available to email templates
type TemplateVars struct {
	TargetName       string
	TargetEmail      string
	TargetDepartment string
	CampaignName     string
	Subject          string
	SenderName       string
	SenderEmail      string
	PhishingLink     string
	TrackingPixel    string // raw HTML
	Token            string
	SubmitURL        string
}

// bindings escapes every text value. The tracking pixel is already markup.
func (v TemplateVars) bindings() liquid.Bindings {
	return liquid.Bindings{
		"target_name":       html.EscapeString(v.TargetName),
		"target_email":      html.EscapeString(v.TargetEmail),
		"target_department": html.EscapeString(v.TargetDepartment),
		"campaign_name":     html.EscapeString(v.CampaignName),
		"subject":           html.EscapeString(v.Subject),
		"sender_name":       html.EscapeString(v.SenderName),
		"sender_email":      html.EscapeString(v.SenderEmail),
		"phishing_link":     html.EscapeString(v.PhishingLink),
		"token":             html.EscapeString(v.Token),
		"submit_url":        html.EscapeString(v.SubmitURL),
		"tracking_pixel":    v.TrackingPixel,
	}
}

// TemplateRenderer renders the embedded email and landing templates with Liquid.
// All templates are parsed once at construction.
type TemplateRenderer struct {
	engine    *liquid.Engine
	templates map[string]*liquid.Template
	missing   *liquid.Template
}

func NewTemplateRenderer() (*TemplateRenderer, error) {
	engine := liquid.NewEngine()
	r := &TemplateRenderer{
		engine:    engine,
		templates: make(map[string]*liquid.Template),
	}

	ids := []string{landingTemplate}
	for _, info := range builtinTemplates {
		ids = append(ids, info.ID)
	}
	for _, id := range ids {
		src, err := templateFS.ReadFile("templates/" + id + ".html")
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", id, err)
		}
		tpl, err := engine.ParseString(string(src))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", id, err)
		}
		r.templates[id] = tpl
	}

	missing, err := engine.ParseString(missingTemplatePage)
	if err != nil {
		return nil, fmt.Errorf("failed to parse error page: %w", err)
	}
	r.missing = missing
	return r, nil
}

// Templates lists the email templates campaigns may use
func (r *TemplateRenderer) Templates() []TemplateInfo {
	out := make([]TemplateInfo, len(builtinTemplates))
	copy(out, builtinTemplates)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Has reports whether id names an email template
func (r *TemplateRenderer) Has(id string) bool {
	_, ok := templateInfo(id)
	return ok
}

// Name returns the display name of a template, or the id itself when unknown
func (r *TemplateRenderer) Name(id string) string {
	if info, ok := templateInfo(id); ok {
		return info.Name
	}
	return id
}

// Render renders an email template. An unknown id renders an error page
// and reports found=false instead of failing.
func (r *TemplateRenderer) Render(id string, vars TemplateVars) (string, bool, error) {
	if !r.Has(id) {
		out, err := r.missing.RenderString(liquid.Bindings{"template_id": html.EscapeString(id)})
		if err != nil {
			return "", false, err
		}
		return out, false, nil
	}
	out, err := r.templates[id].RenderString(vars.bindings())
	if err != nil {
		return "", true, fmt.Errorf("failed to render template %s: %w", id, err)
	}
	return out, true, nil
}

func subjectBindings(vars TemplateVars) liquid.Bindings {
	return liquid.Bindings{
		"target_name":       vars.TargetName,
		"target_email":      vars.TargetEmail,
		"target_department": vars.TargetDepartment,
		"campaign_name":     vars.CampaignName,
		"sender_name":       vars.SenderName,
	}
}

// ValidateSubject parses a subject line and renders it once with sample
// values, so unknown filters are caught as well as syntax errors
func (r *TemplateRenderer) ValidateSubject(subject string) error {
	_, err := r.engine.ParseAndRenderString(subject, subjectBindings(TemplateVars{
		TargetName:       "Sample Target",
		TargetEmail:      "target@example.com",
		TargetDepartment: "Sample",
		CampaignName:     "Sample",
		SenderName:       "Sample Sender",
	}))
	return err
}

// RenderSubject substitutes placeholders in a campaign subject line. The
// result is plain text, so values are not HTML escaped. A subject that does
// not render is returned as written.
func (r *TemplateRenderer) RenderSubject(subject string, vars TemplateVars) string {
	out, err := r.engine.ParseAndRenderString(subject, subjectBindings(vars))
	if err != nil {
		return subject
	}
	return out
}

// RenderLanding renders the simulated sign-in page shown after a click
func (r *TemplateRenderer) RenderLanding(vars TemplateVars) (string, error) {
	out, err := r.templates[landingTemplate].RenderString(vars.bindings())
	if err != nil {
		return "", fmt.Errorf("failed to render landing page: %w", err)
	}
	return out, nil
}

func templateInfo(id string) (TemplateInfo, bool) {
	for _, info := range builtinTemplates {
		if info.ID == id {
			return info, true
		}
	}
	return TemplateInfo{}, false
}
