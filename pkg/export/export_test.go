package export

import (
	"html/template"
	"strings"
	"testing"
	"time"

	"github.com/iWorld-y/account_radar/pkg/model"
)

func sampleProfile() *model.CompanyProfile {
	return &model.CompanyProfile{
		Canonical:   "tesla",
		DisplayName: "Tesla",
		Plan: &model.AccountPlan{
			CompanyName:              "Tesla",
			ExecutiveSummary:         "Leads the EV market.",
			ProductsServices:         "Vehicles and energy.",
			MarketAnalysis:           "Expanding.",
			FinancialHealth:          "Strong.",
			SWOT:                     "Strengths: brand.",
			StrategicRecommendations: "Invest in batteries.",
		},
		OriginalReport: "# Executive Summary\noriginal text",
		CurrentReport:  "# Executive Summary\nupdated text",
		Provenance: []model.SearchResult{
			{Provider: "tavily", Title: "Tesla deep dive", URL: "https://example.com/tesla"},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestRender_Variants(t *testing.T) {
	p := sampleProfile()

	initial, err := Render(p, VariantInitial)
	if err != nil {
		t.Fatalf("Render(initial) error = %v", err)
	}
	if !strings.Contains(string(initial), "original text") {
		t.Errorf("initial variant does not carry the original report")
	}

	updated, err := Render(p, VariantUpdated)
	if err != nil {
		t.Fatalf("Render(updated) error = %v", err)
	}
	if !strings.Contains(string(updated), "updated text") {
		t.Errorf("updated variant does not carry the current report")
	}
	if strings.Contains(string(updated), "original text") {
		t.Errorf("updated variant leaked the original report")
	}
}

func TestRender_ContainsSectionsAndSources(t *testing.T) {
	doc, err := Render(sampleProfile(), VariantUpdated)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	html := string(doc)

	// 模板转义后 "&" 变成 "&amp;"，按转义后的形式断言
	for _, title := range model.SectionTitles {
		if !strings.Contains(html, template.HTMLEscapeString(title)) {
			t.Errorf("document missing section title %q", title)
		}
	}
	if !strings.Contains(html, "https://example.com/tesla") {
		t.Errorf("document missing provenance link")
	}
	if !strings.Contains(html, "Tesla") {
		t.Errorf("document missing company name")
	}
}

func TestRender_EscapesHTML(t *testing.T) {
	p := sampleProfile()
	p.CurrentReport = `<script>alert("x")</script>`

	doc, err := Render(p, VariantUpdated)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if strings.Contains(string(doc), `<script>alert`) {
		t.Errorf("report content was not escaped")
	}
}
