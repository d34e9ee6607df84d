package dashboard

import "html/template"

var pageTemplate = template.Must(template.New("dashboard").Parse(dashboardHTML))

const dashboardHTML = `<!DOCTYPE html>
<html lang="ko">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>rallybrief</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: 'Inter', -apple-system, system-ui, sans-serif; background: #0f172a; color: #e2e8f0; min-height: 100vh; }
        .header { background: linear-gradient(135deg, #1e293b, #334155); padding: 1.5rem 2rem; border-bottom: 1px solid #475569; display: flex; justify-content: space-between; align-items: center; }
        .header h1 { font-size: 1.5rem; color: #38bdf8; }
        .actions button { background: #334155; color: #e2e8f0; border: 1px solid #475569; border-radius: 8px; padding: 0.5rem 1rem; margin-left: 0.5rem; cursor: pointer; }
        .actions button:hover { border-color: #38bdf8; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 1rem; padding: 2rem; }
        .card { background: #1e293b; border: 1px solid #334155; border-radius: 12px; padding: 1.25rem; }
        .card .label { font-size: 0.75rem; text-transform: uppercase; letter-spacing: 0.05em; color: #94a3b8; margin-bottom: 0.5rem; }
        .card .value { font-size: 1.75rem; font-weight: 700; color: #f1f5f9; }
        table { width: calc(100% - 4rem); margin: 0 2rem 2rem; border-collapse: collapse; font-size: 0.875rem; }
        th, td { text-align: left; padding: 0.5rem; border-bottom: 1px solid #334155; }
        th { color: #94a3b8; font-weight: 600; }
        .success { color: #4ade80; }
        .failed { color: #f87171; }
        pre { margin: 0 2rem 2rem; padding: 1rem; background: #1e293b; border-radius: 12px; white-space: pre-wrap; }
        .footer { text-align: center; padding: 1rem; color: #475569; font-size: 0.75rem; }
    </style>
</head>
<body>
    <div class="header">
        <h1>rallybrief</h1>
        <div class="actions">
            <button onclick="trigger('/api/news')">News</button>
            <button onclick="trigger('/api/pdf/fetch')">Fetch PDF</button>
            <button onclick="trigger('/api/analyze')">Analyze</button>
            <button onclick="trigger('/api/auto')">Auto</button>
        </div>
    </div>
    <div class="grid">
        <div class="card"><div class="label">Runs</div><div class="value" id="runs_total">0</div></div>
        <div class="card"><div class="label">Failed Stages</div><div class="value" id="stage_failures_total">0</div></div>
        <div class="card"><div class="label">Lines Extracted</div><div class="value" id="lines_extracted_total">0</div></div>
        <div class="card"><div class="label">PDF Downloads</div><div class="value" id="downloads_total">0</div></div>
        <div class="card"><div class="label">LLM Calls</div><div class="value" id="llm_calls_total">0</div></div>
        <div class="card"><div class="label">Forwards</div><div class="value" id="forwards_total">0</div></div>
    </div>
    <table>
        <thead><tr><th>Started</th><th>Kind</th><th>Status</th><th>Error</th></tr></thead>
        <tbody id="runs"></tbody>
    </table>
    <pre id="news">No news file yet.</pre>
    <div class="footer">rallybrief {{.Version}} · refreshes every 5s</div>
    <script>
        async function refresh() {
            try {
                const h = await (await fetch('/api/health')).json();
                const m = h.metrics || {};
                ['runs_total','stage_failures_total','lines_extracted_total','downloads_total','llm_calls_total','forwards_total'].forEach(k => {
                    document.getElementById(k).textContent = Number(m[k] || 0).toLocaleString();
                });
                const runs = await (await fetch('/api/runs')).json();
                const body = document.getElementById('runs');
                body.innerHTML = '';
                (runs || []).forEach(r => {
                    const tr = document.createElement('tr');
                    [new Date(r.started_at).toLocaleString(), r.kind, r.status, r.error || ''].forEach((v, i) => {
                        const td = document.createElement('td');
                        td.textContent = v;
                        if (i === 2) td.className = r.status;
                        tr.appendChild(td);
                    });
                    body.appendChild(tr);
                });
                const n = await fetch('/api/news');
                if (n.ok) document.getElementById('news').textContent = (await n.json()).result.content;
            } catch (e) {}
        }
        async function trigger(path) {
            await fetch(path, { method: 'POST' });
            refresh();
        }
        setInterval(refresh, 5000);
        refresh();
    </script>
</body>
</html>`
