package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for report rendering
type TemplateData struct {
	Title               string
	Question            string
	SafetyWarning       string
	Summary             string
	GeneratedAt         time.Time
	Version             int
	VersionCount        int
	Instruction         string
	Criteria            []TemplateCriterion
	Options             []TemplateOption
	Recommended         string
	Reasoning           []string
	ReflectionQuestions []string
}

// TemplateCriterion holds one weighted criterion row
type TemplateCriterion struct {
	Name        string
	Weight      int
	Explanation string
}

// TemplateOption holds one analyzed option with its scoreboard row
type TemplateOption struct {
	Name       string
	Suggested  bool
	Unrated    bool
	TotalScore float64
	Pros       []string
	Cons       []string
	Scores     []TemplateScore
}

// TemplateScore is a single criterion score cell
type TemplateScore struct {
	Criterion string
	Score     int
}

// RenderReportHTML renders the report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.GeneratedAt.Format "Jan 2, 2006"}} | version {{.Version}} of {{.VersionCount}}</div>
  {{if .SafetyWarning}}<p>{{.SafetyWarning}}</p>{{end}}
  <p>{{.Summary}}</p>
  {{if .Recommended}}<p><strong>Recommended:</strong> {{.Recommended}}</p>{{end}}
</body>
</html>`
