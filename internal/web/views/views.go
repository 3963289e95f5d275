// Package views renders the HTML pages of the risk tracker.
//
// Pages are html/template files embedded in the binary and exposed as templ
// components; shared fragments are templ components embedded back into the
// pages, so handlers render every page the same way:
//
//	views.Dashboard(data).Render(r.Context(), w)
package views

import (
	"embed"
	"html/template"
	"net/url"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/RiskTracker/internal/core"
)

//go:embed templates/*.html
var templateFS embed.FS

const timeLayout = "2006-01-02 15:04"

var funcs = template.FuncMap{
	"strideName": core.StrideName,
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(timeLayout)
	},
	"datetimePtr": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.UTC().Format(timeLayout)
	},
	"statusBadge": func(s core.ReviewStatus) (template.HTML, error) { return toHTML(StatusBadge(s)) },
	"alert":       func(m core.UserMessage) (template.HTML, error) { return toHTML(Alert(m)) },
	"fieldLabel":  FieldLabel,
}

var (
	dashboardPage = mustPage("dashboard")
	risksPage     = mustPage("risks")
	riskPage      = mustPage("risk")
	assetsPage    = mustPage("assets")
	controlsPage  = mustPage("controls")
	importPage    = mustPage("import")
	errorPage     = mustPage("error")
)

func mustPage(name string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).ParseFS(templateFS,
		"templates/layout.html", "templates/"+name+".html"))
}

func render(t *template.Template, data any) templ.Component {
	return templ.FromGoHTML(t.Lookup("layout"), data)
}

// FieldLabel is the column header shown for an editable field.
func FieldLabel(f core.Field) string {
	switch f {
	case core.FieldPostExploitRisk:
		return "Post-mitigation exploit risk"
	case core.FieldPostRiskRating:
		return "Post-mitigation risk rating"
	case core.FieldReviewStatus:
		return "Review status"
	case core.FieldNotes:
		return "Notes"
	}
	return string(f)
}

// DashboardData feeds the landing page.
type DashboardData struct {
	Stats *core.Stats
}

// Dashboard renders review progress and the most recent edits.
func Dashboard(d DashboardData) templ.Component { return render(dashboardPage, d) }

// RiskListData feeds the filtered register.
type RiskListData struct {
	Page   *core.RiskPage
	Assets []core.AssetSummary

	// Query holds the request's filter and sort parameters, without page.
	Query url.Values

	Statuses    []core.ReviewStatus
	Strides     []core.StrideCategory
	Severities  []string
	Ratings     []string
	SortColumns []core.SortColumn
}

// NewRiskListData fills the reference lists used by the filter form.
func NewRiskListData(page *core.RiskPage, assets []core.AssetSummary, query url.Values) RiskListData {
	q := url.Values{}
	for k, v := range query {
		if k != "page" && len(v) > 0 && v[0] != "" {
			q.Set(k, v[0])
		}
	}
	return RiskListData{
		Page:        page,
		Assets:      assets,
		Query:       q,
		Statuses:    core.ReviewStatuses,
		Strides:     core.StrideCategories,
		Severities:  core.SeverityLevels,
		Ratings:     core.RiskRatings,
		SortColumns: core.SortColumns,
	}
}

// Param returns the current value of a filter or sort parameter.
func (d RiskListData) Param(name string) string { return d.Query.Get(name) }

// AssetSelected reports whether id is the asset filter.
func (d RiskListData) AssetSelected(id int64) bool {
	return d.Query.Get("asset") == strconv.FormatInt(id, 10)
}

// PageURL links to page n of the current result set.
func (d RiskListData) PageURL(n int) string {
	q := url.Values{}
	for k, v := range d.Query {
		q[k] = v
	}
	q.Set("page", strconv.Itoa(n))
	return "/risks?" + q.Encode()
}

// HasPrev reports whether a previous page exists.
func (d RiskListData) HasPrev() bool { return d.Page.Page > 1 }

// HasNext reports whether a next page exists.
func (d RiskListData) HasNext() bool { return d.Page.Page < d.Page.TotalPages }

// PrevPage is the previous page number.
func (d RiskListData) PrevPage() int { return d.Page.Page - 1 }

// NextPage is the next page number.
func (d RiskListData) NextPage() int { return d.Page.Page + 1 }

// ExportURL downloads the current filter as a workbook.
func (d RiskListData) ExportURL() string { return d.filterURL("/api/export") }

// ReportURL downloads the current filter as a PDF report.
func (d RiskListData) ReportURL() string { return d.filterURL("/api/export/report") }

func (d RiskListData) filterURL(path string) string {
	q := url.Values{}
	for k, v := range d.Query {
		if k != "sort" && k != "dir" && k != "page_size" {
			q[k] = v
		}
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// RiskList renders the filtered, paged register.
func RiskList(d RiskListData) templ.Component { return render(risksPage, d) }

// RiskDetailData feeds the risk item page.
type RiskDetailData struct {
	Risk  *core.RiskAssessment
	Trail []core.AuditEntry

	// Saved is the number of fields changed by the save that redirected here,
	// or -1 when the page was not reached from a save.
	Saved int
	Error *core.UserMessage

	// AskActor shows a name field when requests carry no authenticated user.
	AskActor bool
	Actor    string

	Statuses      []core.ReviewStatus
	ExploitLevels []string
	Ratings       []string
}

// NewRiskDetailData fills the reference lists used by the edit form.
func NewRiskDetailData(risk *core.RiskAssessment, trail []core.AuditEntry) RiskDetailData {
	return RiskDetailData{
		Risk:          risk,
		Trail:         trail,
		Saved:         -1,
		Statuses:      core.ReviewStatuses,
		ExploitLevels: core.ExploitRiskLevels,
		Ratings:       core.RiskRatings,
	}
}

// RiskDetail renders a risk item, its edit form and its audit trail.
func RiskDetail(d RiskDetailData) templ.Component { return render(riskPage, d) }

// AssetsData feeds the asset list.
type AssetsData struct {
	Assets []core.AssetSummary
}

// Assets renders every asset with its risk count.
func Assets(d AssetsData) templ.Component { return render(assetsPage, d) }

// ControlsData feeds the control list.
type ControlsData struct {
	Controls []core.Control
}

// Controls renders the control catalog.
func Controls(d ControlsData) templ.Component { return render(controlsPage, d) }

// ImportData feeds the import form and its result.
type ImportData struct {
	Report       *core.ImportReport
	Error        *core.UserMessage
	RiskSheet    string
	ControlSheet string
	MaxFileMB    int64
}

// Import renders the upload form, and the report of the last run if any.
func Import(d ImportData) templ.Component { return render(importPage, d) }

// ErrorData feeds the full-page error view.
type ErrorData struct {
	Status  int
	Message core.UserMessage
}

// Error renders a user-facing error page.
func Error(d ErrorData) templ.Component { return render(errorPage, d) }
