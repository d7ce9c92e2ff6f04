package pages

import (
	"embed"
	"html/template"
	"regexp"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// templateNames maps pages to their template file.
var templateNames = map[PageID]string{
	PageHome:         "home.html",
	PageCampaignList: "campaign.html",
	PageStaffList:    "staff.html",
	PageServiceList:  "services.html",
	PageAbout:        "about.html",
}

// Templates parses the embedded page templates for gin's HTML renderer.
func Templates() *template.Template {
	return template.Must(template.New("pages").Funcs(template.FuncMap{
		"color": cssColor,
		"stars": starString,
	}).ParseFS(templateFS, "templates/*.html"))
}

// TemplateName returns the template that renders page.
func TemplateName(page PageID) (string, bool) {
	name, ok := templateNames[page]
	return name, ok
}

// cssColor lets only hex colors into the stylesheet.
func cssColor(s string) template.CSS {
	s = strings.TrimSpace(s)
	if !hexColor.MatchString(s) {
		return template.CSS("inherit")
	}
	return template.CSS(s)
}

func starString(s Stars) string {
	return strings.Repeat("★", s.Full) + strings.Repeat("☆", s.Half+s.Empty)
}
