package export

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/iWorld-y/account_radar/pkg/model"
)

// Variant 导出的报告版本
type Variant string

const (
	// VariantInitial 首次研究生成的原始报告
	VariantInitial Variant = "initial"
	// VariantUpdated 经过编辑再生成后的当前报告
	VariantUpdated Variant = "updated"
)

// ContentType 导出产物的 MIME 类型
const ContentType = "text/html; charset=utf-8"

// htmlData 模板渲染数据
type htmlData struct {
	Company  string
	Variant  string
	Date     string
	Report   string
	Sections []sectionData
	Sources  []model.SearchResult
}

type sectionData struct {
	Title   string
	Content string
}

// Render 将报告与结构化计划渲染为自包含的 HTML 文档
// 返回字节流即导出边界约定的"不透明产物"
func Render(p *model.CompanyProfile, variant Variant) ([]byte, error) {
	report := p.CurrentReport
	if variant == VariantInitial {
		report = p.OriginalReport
	}

	data := htmlData{
		Company: p.DisplayName,
		Variant: string(variant),
		Date:    time.Now().Format("2006-01-02"),
		Report:  report,
		Sources: p.Provenance,
	}
	if p.Plan != nil {
		for _, key := range model.SectionKeys() {
			content, _ := p.Plan.Section(key)
			data.Sections = append(data.Sections, sectionData{
				Title:   model.SectionTitles[key],
				Content: content,
			})
		}
	}

	t, err := template.New("plan").Parse(htmlTpl)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	return buf.Bytes(), nil
}

const htmlTpl = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{ .Company }} | Strategic Account Plan</title>
    <script src="https://cdn.jsdelivr.net/npm/marked/marked.min.js"></script>
    <style>
        :root {
            --primary-color: #2563eb;
            --bg-color: #f8fafc;
            --card-bg: #ffffff;
            --text-main: #1e293b;
            --text-secondary: #64748b;
            --border-color: #e2e8f0;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, "Helvetica Neue", Arial, sans-serif;
            background-color: var(--bg-color);
            color: var(--text-main);
            line-height: 1.6;
            margin: 0;
            padding: 20px;
        }
        .container { max-width: 900px; margin: 0 auto; }
        header { text-align: center; margin-bottom: 40px; padding: 20px 0; }
        h1 { font-size: 2.2rem; margin: 0 0 10px 0; }
        .date-info { color: var(--text-secondary); }
        .variant-tag {
            display: inline-block; padding: 2px 10px; border-radius: 12px;
            background: #eff6ff; color: var(--primary-color); font-size: 0.85rem;
        }
        .report-card, .section-card {
            background: var(--card-bg);
            border-radius: 12px;
            padding: 24px;
            margin-bottom: 24px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.05);
            border: 1px solid var(--border-color);
        }
        .section-card h3 { margin-top: 0; border-bottom: 2px solid var(--primary-color); display: inline-block; padding-bottom: 6px; }
        .references {
            margin-top: 20px;
            padding-top: 15px;
            border-top: 1px dashed #e2e8f0;
            font-size: 0.9rem;
        }
        .ref-title { font-weight: bold; color: #64748b; margin-bottom: 10px; }
        .ref-list { list-style: none; padding: 0; }
        .ref-list li { margin-bottom: 6px; }
        .ref-list a { color: var(--primary-color); text-decoration: none; }
        .ref-list a:hover { text-decoration: underline; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>{{ .Company }}</h1>
            <div class="date-info">{{ .Date }} • Strategic Account Plan • <span class="variant-tag">{{ .Variant }}</span></div>
        </header>

        <div class="report-card">
            <div id="report"></div>
            <div style="display:none" id="raw-report">{{ .Report }}</div>
        </div>

        {{range .Sections}}
        <div class="section-card">
            <h3>{{ .Title }}</h3>
            <div class="markdown-content"></div>
            <div style="display:none" class="raw-section">{{ .Content }}</div>
        </div>
        {{end}}

        {{if .Sources}}
        <div class="references">
            <div class="ref-title">Sources</div>
            <ul class="ref-list">
                {{range .Sources}}
                <li><a href="{{ .URL }}" target="_blank">{{ .Title }}</a> <span style="color:#94a3b8; font-size: 0.8em">({{ .Provider }})</span></li>
                {{end}}
            </ul>
        </div>
        {{end}}
    </div>

    <script>
        // 解析 Markdown
        document.addEventListener('DOMContentLoaded', function() {
            const reportRaw = document.getElementById('raw-report');
            if (reportRaw) document.getElementById('report').innerHTML = marked.parse(reportRaw.textContent);

            const sections = document.querySelectorAll('.raw-section');
            sections.forEach(el => {
                el.previousElementSibling.innerHTML = marked.parse(el.textContent);
            });
        });
    </script>
</body>
</html>
`
