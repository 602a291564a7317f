package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateRenderer_EveryTemplateRenders(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)

	vars := TemplateVars{
		TargetName:    "Ann",
		TargetEmail:   "ann@example.com",
		PhishingLink:  "http://x/landing?token=t1",
		TrackingPixel: `<img src="http://x/track-open?token=t1">`,
	}
	for _, info := range r.Templates() {
		t.Run(info.ID, func(t *testing.T) {
			out, found, err := r.Render(info.ID, vars)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Contains(t, out, "Ann")
			assert.Contains(t, out, `href="http://x/landing?token=t1"`)
			assert.Contains(t, out, `<img src="http://x/track-open?token=t1">`)
		})
	}
}

func TestTemplateRenderer_EscapesValues(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)

	out, _, err := r.Render("password-expiry", TemplateVars{TargetName: `<script>alert(1)</script>`})
	require.NoError(t, err)
	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestTemplateRenderer_SubjectAndLanding(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)

	subject := r.RenderSubject("Hi {{target_name}}, action needed", TemplateVars{TargetName: "O'Neil"})
	assert.Equal(t, "Hi O'Neil, action needed", subject)

	broken := "Hi {{ target_name | nosuchfilter }} {% if %}"
	assert.Equal(t, broken, r.RenderSubject(broken, TemplateVars{TargetName: "Ann"}))

	page, err := r.RenderLanding(TemplateVars{Token: "abc", CampaignName: "Q3", SubmitURL: "/submit"})
	require.NoError(t, err)
	assert.Contains(t, page, `value="abc"`)
	assert.Contains(t, page, "Exercise: <strong>Q3</strong>")
	assert.Contains(t, page, "fetch('/submit'")
}

func TestTemplateRenderer_ValidateSubject(t *testing.T) {
	r, err := NewTemplateRenderer()
	require.NoError(t, err)

	assert.NoError(t, r.ValidateSubject("Hi {{ target_name | upcase }}"))
	assert.NoError(t, r.ValidateSubject("Plain subject"))
	assert.Error(t, r.ValidateSubject("Hi {% if %}"))
	assert.Error(t, r.ValidateSubject("{{ target_name | nosuchfilter }}"))
}
