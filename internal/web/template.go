package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/thermolearn/home-agent/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Home Agent</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.home { color: green; font-weight: bold; }
.away { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.paired { color: green; }
.failed { color: red; }
</style>
</head>
<body>
<h1>Home Agent</h1>

<h2>Presence</h2>
<table>
<tr><th>Presence</th><td class="{{if .AtHome}}home{{else}}away{{end}}">{{if .AtHome}}HOME{{else}}AWAY{{end}}</td></tr>
{{if .HaveDistance}}<tr><th>Distance</th><td>{{printf "%.0f" .Distance}}m</td></tr>{{end}}
<tr><th>Home location</th><td>{{if .HomeSet}}set{{else}}not set{{end}}</td></tr>
</table>

<h2>Session</h2>
<table>
<tr><th>Logged in</th><td>{{if .LoggedIn}}yes{{if .FirstName}} ({{.FirstName}}){{end}}{{else}}no{{end}}</td></tr>
<tr><th>Pairing</th><td class="{{if eq (printf "%s" .PairingState) "PAIRED"}}paired{{else if eq (printf "%s" .PairingState) "FAILED"}}failed{{end}}">{{.PairingState}}{{if .ThermostatID}} — {{.ThermostatID}}{{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Backend</th><td>{{.Config.APIBase}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>IN</th><td>{{.Counts.In}}</td></tr>
<tr><th>OUT</th><td>{{.Counts.Out}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Sample</th><td>{{.Config.SampleMs}}ms</td></tr>
<tr><th>Telemetry</th><td>{{if eq .Config.TelemetryMs 0}}disabled{{else}}{{.Config.TelemetryMs}}ms{{end}}</td></tr>
<tr><th>Pair poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/api/events">Events</a> · <a href="/metrics">Metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
