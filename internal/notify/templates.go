package notify

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/driftwatch/driftwatch/internal/models"
)

// changeEmailData feeds both change notification templates.
type changeEmailData struct {
	SiteURL    string
	SiteID     string
	DetectedAt string
	Total      int
	ByType     map[models.ChangeType]int
	Changes    []models.Change
}

const changeTextTemplate = `Permission changes detected on {{if .SiteURL}}{{.SiteURL}}{{else}}{{.SiteID}}{{end}}

Detected at: {{.DetectedAt}}
Total changes: {{.Total}}
{{range $type, $count := .ByType}}  {{$type}}: {{$count}}
{{end}}
Details:
{{range .Changes}}  [{{.ChangeType}}] {{.ResourceName}} - {{.PrincipalName}}{{if .PrincipalEmail}} ({{deref .PrincipalEmail}}){{end}}
{{end}}
Review these changes with: driftwatch changes list --site {{.SiteID}}
`

const changeHTMLTemplate = `<html><body>
<h2>Permission changes detected</h2>
<p><strong>Site:</strong> {{if .SiteURL}}{{.SiteURL}}{{else}}{{.SiteID}}{{end}}<br>
<strong>Detected at:</strong> {{.DetectedAt}}<br>
<strong>Total changes:</strong> {{.Total}}</p>
<table border="1" cellpadding="4" cellspacing="0">
<tr><th>Type</th><th>Resource</th><th>Principal</th><th>Email</th></tr>
{{range .Changes}}<tr><td>{{.ChangeType}}</td><td>{{.ResourceName}}</td><td>{{.PrincipalName}}</td><td>{{if .PrincipalEmail}}{{deref .PrincipalEmail}}{{end}}</td></tr>
{{end}}</table>
</body></html>
`

const digestTextTemplate = `Daily permission change digest

Period: {{.Since}} to {{.Until}}
Total changes: {{.Total}}
{{range $site, $count := .BySite}}  {{$site}}: {{$count}} change(s)
{{end}}
Review with: driftwatch changes list
`

var (
	textFuncs = texttemplate.FuncMap{"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}}
	htmlFuncs = htmltemplate.FuncMap{"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}}

	changeText = texttemplate.Must(texttemplate.New("change_text").Funcs(textFuncs).Parse(changeTextTemplate))
	changeHTML = htmltemplate.Must(htmltemplate.New("change_html").Funcs(htmlFuncs).Parse(changeHTMLTemplate))
	digestText = texttemplate.Must(texttemplate.New("digest_text").Parse(digestTextTemplate))
)

func renderChangeEmail(siteID string, changes []models.Change) (subject, textBody, htmlBody string, err error) {
	data := changeEmailData{
		SiteID:     siteID,
		DetectedAt: time.Now().UTC().Format(time.RFC1123),
		Total:      len(changes),
		ByType:     map[models.ChangeType]int{},
		Changes:    changes,
	}
	for _, ch := range changes {
		data.ByType[ch.ChangeType]++
	}
	var text, html strings.Builder
	if err = changeText.Execute(&text, data); err != nil {
		return "", "", "", err
	}
	if err = changeHTML.Execute(&html, data); err != nil {
		return "", "", "", err
	}

	subject = "Permission changes detected"
	if siteID != "" {
		subject += " on " + siteID
	}
	return subject, text.String(), html.String(), nil
}

type digestData struct {
	Since  string
	Until  string
	Total  int
	BySite map[string]int
}

func renderDigest(since, until time.Time, changes []models.Change) (subject, body string, err error) {
	data := digestData{
		Since:  since.UTC().Format(time.RFC1123),
		Until:  until.UTC().Format(time.RFC1123),
		Total:  len(changes),
		BySite: map[string]int{},
	}
	for _, ch := range changes {
		data.BySite[ch.SiteID]++
	}

	var text strings.Builder
	if err = digestText.Execute(&text, data); err != nil {
		return "", "", err
	}
	return "Daily permission change digest", text.String(), nil
}
