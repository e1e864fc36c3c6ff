// Package dashboard renders run history into a self-contained HTML
// report with score and cost charts, and serves it over HTTP so the
// page always reflects the latest runs.
package dashboard

import (
	"bytes"
	"encoding/json"
	"html/template"
	"math"
	"os"
	"path/filepath"

	"github.com/fyrsmithlabs/forge/internal/history"
)

// Filename is the generated report in the working directory.
const Filename = ".forge-dashboard.html"

// tableLimit caps the run table; the chart still plots every run.
const tableLimit = 50

var gradeColors = map[string]template.CSS{
	"A": "#22c55e",
	"B": "#86efac",
	"C": "#fbbf24",
	"D": "#f97316",
	"F": "#ef4444",
}

type pageData struct {
	Runs         int
	AvgScore     float64
	ApprovalRate float64
	TotalCost    float64
	Labels       template.JS
	Scores       template.JS
	Costs        template.JS
	Rows         []tableRow
}

type tableRow struct {
	Time       string
	Objective  string
	FullTitle  string
	Planner    string
	Coder      string
	Grade      string
	GradeColor template.CSS
	Score      int
	Duration   float64
	Cost       float64
	Approved   bool
}

// Generate writes the HTML dashboard for a working directory and
// returns its path.
func Generate(dir string) (string, error) {
	html, err := Render(history.Load(dir))
	if err != nil {
		return "", err
	}
	out := filepath.Join(dir, Filename)
	if err := os.WriteFile(out, html, 0o644); err != nil {
		return "", err
	}
	return out, nil
}

// Render produces the dashboard HTML for a record list, oldest first.
func Render(records []history.RunRecord) ([]byte, error) {
	stats := history.Summarize(records)

	scores := make([]int, len(records))
	costs := make([]float64, len(records))
	labels := make([]string, len(records))
	for i, r := range records {
		scores[i] = r.QualityScore
		costs[i] = math.Round(r.CostUSD*10000) / 10000
		labels[i] = clip(r.Timestamp, 10)
	}

	recent := records
	if len(recent) > tableLimit {
		recent = recent[len(recent)-tableLimit:]
	}
	rows := make([]tableRow, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		r := recent[i]
		grade := r.Grade
		if grade == "" {
			grade = "?"
		}
		color, ok := gradeColors[grade]
		if !ok {
			color = "#888"
		}
		rows = append(rows, tableRow{
			Time:       clip(r.Timestamp, 19),
			Objective:  clip(r.Objective, 40),
			FullTitle:  clip(r.Objective, 100),
			Planner:    r.Planner,
			Coder:      r.Coder,
			Grade:      grade,
			GradeColor: color,
			Score:      r.QualityScore,
			Duration:   r.DurationSecs,
			Cost:       r.CostUSD,
			Approved:   r.Approved,
		})
	}

	data := pageData{
		Runs:         stats.Runs,
		AvgScore:     stats.AvgScore,
		ApprovalRate: stats.ApprovalRate,
		TotalCost:    stats.TotalCostUSD,
		Labels:       jsonJS(labels),
		Scores:       jsonJS(scores),
		Costs:        jsonJS(costs),
		Rows:         rows,
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// jsonJS marshals chart data for direct embedding in the page script.
func jsonJS(v any) template.JS {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return template.JS(data)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var page = template.Must(template.New("dashboard").Parse(pageHTML))

const pageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Forge Dashboard</title>
<script src="https://cdn.jsdelivr.net/npm/chart.js@4"></script>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
         background: #0f172a; color: #e2e8f0; padding: 2rem; }
  h1 { font-size: 2rem; margin-bottom: 1.5rem; }
  h1 span { color: #38bdf8; }
  .stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
           gap: 1rem; margin-bottom: 2rem; }
  .stat { background: #1e293b; border-radius: 12px; padding: 1.5rem;
          border: 1px solid #334155; }
  .stat .label { font-size: 0.85rem; color: #94a3b8; margin-bottom: 0.5rem; }
  .stat .value { font-size: 2rem; font-weight: 700; }
  .chart-container { background: #1e293b; border-radius: 12px; padding: 1.5rem;
                     border: 1px solid #334155; margin-bottom: 2rem; }
  table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
  th { text-align: left; padding: 0.75rem; border-bottom: 2px solid #334155;
       color: #94a3b8; font-weight: 600; }
  td { padding: 0.75rem; border-bottom: 1px solid #1e293b; }
  tr:hover { background: #1e293b; }
  .empty { text-align: center; padding: 3rem; color: #64748b; }
</style>
</head>
<body>
  <h1>⚡ <span>Forge</span> Dashboard</h1>

  <div class="stats">
    <div class="stat">
      <div class="label">Total Runs</div>
      <div class="value">{{.Runs}}</div>
    </div>
    <div class="stat">
      <div class="label">Avg Quality Score</div>
      <div class="value">{{printf "%.0f" .AvgScore}}</div>
    </div>
    <div class="stat">
      <div class="label">Approval Rate</div>
      <div class="value">{{printf "%.0f" .ApprovalRate}}%</div>
    </div>
    <div class="stat">
      <div class="label">Total Cost</div>
      <div class="value">${{printf "%.2f" .TotalCost}}</div>
    </div>
  </div>

  <div class="chart-container">
    <canvas id="scoreChart" height="80"></canvas>
  </div>

  <div class="chart-container" style="overflow-x:auto;">
    <table>
      <thead>
        <tr>
          <th>Time</th><th>Objective</th><th>Planner</th><th>Coder</th>
          <th>Grade</th><th>Score</th><th>Duration</th><th>Cost</th><th>Status</th>
        </tr>
      </thead>
      <tbody>
        {{range .Rows}}<tr>
          <td>{{.Time}}</td>
          <td title="{{.FullTitle}}">{{.Objective}}...</td>
          <td>{{.Planner}}</td>
          <td>{{.Coder}}</td>
          <td><span style="color:{{.GradeColor}};font-weight:700">{{.Grade}}</span></td>
          <td>{{.Score}}</td>
          <td>{{printf "%.1f" .Duration}}s</td>
          <td>${{printf "%.4f" .Cost}}</td>
          <td>{{if .Approved}}&#9989;{{else}}&#9888;&#65039;{{end}}</td>
        </tr>
        {{else}}<tr><td colspan="9" class="empty">No runs yet. Run forge duo to get started!</td></tr>
        {{end}}
      </tbody>
    </table>
  </div>

  <script>
    const ctx = document.getElementById('scoreChart').getContext('2d');
    new Chart(ctx, {
      type: 'line',
      data: {
        labels: {{.Labels}},
        datasets: [
          { label: 'Quality Score', data: {{.Scores}}, borderColor: '#38bdf8',
            backgroundColor: 'rgba(56,189,248,0.1)', fill: true, tension: 0.3 },
          { label: 'Cost ($)', data: {{.Costs}}, borderColor: '#fbbf24',
            backgroundColor: 'rgba(251,191,36,0.1)', fill: true, tension: 0.3,
            yAxisID: 'y1' }
        ]
      },
      options: {
        responsive: true,
        plugins: { legend: { labels: { color: '#94a3b8' } } },
        scales: {
          x: { ticks: { color: '#64748b' }, grid: { color: '#1e293b' } },
          y: { position: 'left', ticks: { color: '#64748b' }, grid: { color: '#1e293b' },
               min: 0, max: 100 },
          y1: { position: 'right', ticks: { color: '#fbbf24' }, grid: { display: false },
                min: 0 }
        }
      }
    });
  </script>
</body>
</html>
`
