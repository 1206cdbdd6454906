package v1

import (
	"embed"
	"html/template"
	"strconv"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// ReplyTimeLayout is how reply timestamps are shown.
const ReplyTimeLayout = "2006-01-02 15:04:05"

// LoadTemplates parses the embedded views. publicURL maps stored file paths
// to URLs under /static.
func LoadTemplates(publicURL func(string) string) (*template.Template, error) {
	funcs := template.FuncMap{
		"asset": publicURL,
		"join":  strings.Join,
		"fmtTime": func(t time.Time) string {
			return t.Format(ReplyTimeLayout)
		},
		"percent": func(f float64) string {
			return strconv.FormatFloat(f, 'f', -1, 64) + "%"
		},
	}
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}
