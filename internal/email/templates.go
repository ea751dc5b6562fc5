package email

import (
	"bytes"
	"fmt"
	"html/template"
)

// Template names as constants for type safety.
const (
	TemplateWelcome = "welcome"
)

// WelcomeData contains data for welcome emails.
type WelcomeData struct {
	Username string
	NotesURL string
}

var welcomeTemplate = template.Must(template.New(TemplateWelcome).Parse(`<!DOCTYPE html>
<html lang="ru">
<head>
    <meta charset="UTF-8">
    <title>Добро пожаловать в YaNote</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="margin-top: 0;">Здравствуйте, {{.Username}}!</h2>
    <p>Ваш аккаунт в YaNote создан. Заметки видны только вам.</p>
    {{if .NotesURL}}<p><a href="{{.NotesURL}}">Перейти к заметкам</a></p>{{end}}
    <hr style="border: none; border-top: 1px solid #e0e0e0; margin: 20px 0;">
    <p style="color: #999; font-size: 12px;">Это автоматическое письмо, отвечать на него не нужно.</p>
</body>
</html>`))

// renderTemplate renders the named template and returns subject and HTML body.
func renderTemplate(templateName string, data any) (subject, html string, err error) {
	switch templateName {
	case TemplateWelcome:
		d, ok := data.(WelcomeData)
		if !ok {
			return "", "", fmt.Errorf("template %s: unexpected data %T", templateName, data)
		}
		var buf bytes.Buffer
		if err := welcomeTemplate.Execute(&buf, d); err != nil {
			return "", "", fmt.Errorf("template %s: %w", templateName, err)
		}
		return "Добро пожаловать в YaNote", buf.String(), nil
	default:
		return "", "", fmt.Errorf("unknown email template %q", templateName)
	}
}
