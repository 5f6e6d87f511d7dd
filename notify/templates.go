package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"
)

const (
	TemplateStatusChanged   = "issue_status_changed"
	TemplateManagerAssigned = "issue_assigned"
	TemplateIssueReported   = "issue_reported"
	TemplateCommentAdded    = "comment_added"
)

// Message is a rendered email.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

type StatusChangedData struct {
	UserName        string
	IssueTitle      string
	OldStatus       string
	NewStatus       string
	Closed          bool
	Resolved        bool
	ResolutionNotes string
	ResolutionImage string
	IssueURL        string
}

type ManagerAssignedData struct {
	ManagerName string
	IssueTitle  string
	Description string
	Priority    string
	Status      string
	IssueURL    string
}

type IssueReportedData struct {
	IssueTitle   string
	Description  string
	ReporterName string
	CategoryName string
	ReportedDate time.Time
	AdminURL     string
}

type CommentAddedData struct {
	ReporterName  string
	IssueTitle    string
	CommenterName string
	Snippet       string
	IssueURL      string
}

type emailTemplate struct {
	subject *template.Template
	text    *template.Template
	html    *htmltemplate.Template
}

var templates = map[string]emailTemplate{
	TemplateStatusChanged: mustTemplate(
		`Update on Your Reported Issue: '{{short .IssueTitle}}...'`,
		`Hello {{.UserName}},

The status of your reported issue "{{.IssueTitle}}" has changed from {{.OldStatus}} to {{.NewStatus}}.
{{- if .Closed}} This issue is now closed.{{end}}
{{- if .Resolved}}
{{if .ResolutionNotes}}
Resolution notes: {{.ResolutionNotes}}
{{- end}}
{{- if .ResolutionImage}}
Resolution photo: {{.ResolutionImage}}
{{- end}}
{{- end}}

View the issue: {{.IssueURL}}
`,
		`<p>Hello {{.UserName}},</p>
<p>The status of your reported issue <strong>{{.IssueTitle}}</strong> has changed from
<em>{{.OldStatus}}</em> to <em>{{.NewStatus}}</em>.{{if .Closed}} This issue is now closed.{{end}}</p>
{{if .Resolved}}{{if .ResolutionNotes}}<p>Resolution notes: {{.ResolutionNotes}}</p>{{end}}
{{if .ResolutionImage}}<p><a href="{{.ResolutionImage}}">View the resolution photo</a></p>{{end}}{{end}}
<p><a href="{{.IssueURL}}">View the issue</a></p>`,
	),
	TemplateManagerAssigned: mustTemplate(
		`Issue Assigned to You: '{{short .IssueTitle}}...'`,
		`Hello {{.ManagerName}},

You have been assigned the issue "{{.IssueTitle}}" ({{.Priority}} priority, currently {{.Status}}).

{{.Description}}

Open the issue: {{.IssueURL}}
`,
		`<p>Hello {{.ManagerName}},</p>
<p>You have been assigned the issue <strong>{{.IssueTitle}}</strong>
({{.Priority}} priority, currently {{.Status}}).</p>
<blockquote>{{.Description}}</blockquote>
<p><a href="{{.IssueURL}}">Open the issue</a></p>`,
	),
	TemplateIssueReported: mustTemplate(
		`New Civic Issue Reported: '{{short .IssueTitle}}...'`,
		`A new issue was reported by {{.ReporterName}} on {{.ReportedDate.Format "2006-01-02 15:04"}}.

Title: {{.IssueTitle}}
Category: {{.CategoryName}}

{{.Description}}

Review it: {{.AdminURL}}
`,
		`<p>A new issue was reported by {{.ReporterName}} on {{.ReportedDate.Format "2006-01-02 15:04"}}.</p>
<p><strong>{{.IssueTitle}}</strong><br>Category: {{.CategoryName}}</p>
<blockquote>{{.Description}}</blockquote>
<p><a href="{{.AdminURL}}">Review it</a></p>`,
	),
	TemplateCommentAdded: mustTemplate(
		`New Comment on Your Issue: '{{short .IssueTitle}}...'`,
		`Hello {{.ReporterName}},

{{.CommenterName}} commented on your issue "{{.IssueTitle}}":

{{.Snippet}}

Read the discussion: {{.IssueURL}}
`,
		`<p>Hello {{.ReporterName}},</p>
<p>{{.CommenterName}} commented on your issue <strong>{{.IssueTitle}}</strong>:</p>
<blockquote>{{.Snippet}}</blockquote>
<p><a href="{{.IssueURL}}">Read the discussion</a></p>`,
	),
}

func shortTitle(title string) string {
	runes := []rune(title)
	if len(runes) > 50 {
		return string(runes[:50])
	}
	return title
}

func mustTemplate(subject, text, html string) emailTemplate {
	funcs := template.FuncMap{"short": shortTitle}
	return emailTemplate{
		subject: template.Must(template.New("subject").Funcs(funcs).Parse(subject)),
		text:    template.Must(template.New("text").Funcs(funcs).Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New("html").Funcs(htmltemplate.FuncMap{"short": shortTitle}).Parse(html)),
	}
}

// Render produces the subject and bodies for templateID.
func Render(templateID string, data any) (Message, error) {
	tmpl, ok := templates[templateID]
	if !ok {
		return Message{}, fmt.Errorf("unknown email template %q", templateID)
	}

	var subject, text, html bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render %s subject: %w", templateID, err)
	}
	if err := tmpl.text.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", templateID, err)
	}
	if err := tmpl.html.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render %s html: %w", templateID, err)
	}
	return Message{Subject: subject.String(), Text: text.String(), HTML: html.String()}, nil
}
