package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/light-timer/internal/status"
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
	"stateClass": func(s string) string {
		switch s {
		case "ON":
			return "on"
		case "OFF":
			return "off"
		default:
			return "unknown"
		}
	},
	"orDash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Light Timer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
pre { background: #f6f6f6; padding: 8px; overflow-x: auto; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.forced { color: #b60; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Light Timer{{if .Config.DeviceID}} ({{.Config.DeviceID}}){{end}}{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Light</h2>
<table>
<tr><th>Relay</th><td id="relay" class="{{stateClass .Light}}">{{.Light}}</td></tr>
<tr><th>Mode</th><td id="mode"{{if and (ne .Mode "auto") (ne .Mode "UNKNOWN")}} class="forced"{{end}}>{{.Mode}}</td></tr>
{{with .Last}}<tr><th>Light on</th><td id="light-on">{{orDash .LightOn}}</td></tr>
<tr><th>Light off</th><td id="light-off">{{orDash .LightOff}}</td></tr>
<tr><th>Sunset</th><td>{{orDash .Sunset}}</td></tr>
<tr><th>Last run</th><td id="last-updated">{{.LastUpdated}}{{if .Error}} <span class="disconnected">{{.Error}}</span>{{end}}</td></tr>
{{if .AutoRevert}}<tr><th>Auto-revert</th><td>{{.AutoRevert}}</td></tr>{{end}}{{end}}
</table>
{{with .Last}}<pre id="output">{{range .ScriptOutputLines}}{{.}}
{{end}}{{range .StderrLines}}{{.}}
{{end}}</pre>{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>Commands</th><td>{{.Config.CommandSource}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{orDash .Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Runs</h2>
<table>
<tr><th>Total</th><td>{{.Runs}}</td></tr>
<tr><th>Failed</th><td>{{.Failures}}</td></tr>
<tr><th>Auto-reverts</th><td>{{.Reverts}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Location</th><td>{{.Config.Location}} ({{.Config.Timezone}})</td></tr>
<tr><th>Off hour</th><td>{{printf "%02d:00" .Config.OffHour}}</td></tr>
<tr><th>Interval</th><td>{{.Config.Interval}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
{{if .Config.WSBroker}}
<script src="https://unpkg.com/mqtt@5/dist/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Config.StatusTopic}}";
  var dot = document.getElementById("live-dot");
  var relayEl = document.getElementById("relay");
  var modeEl = document.getElementById("mode");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });
  client.on("reconnect", function() { setDot("pending", "reconnecting"); });
  client.on("offline", function() { setDot("err", "offline"); });
  client.on("error", function() { setDot("err", "error"); });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString());
      if (msg.relay) {
        relayEl.textContent = msg.relay;
        relayEl.className = msg.relay === "ON" ? "on" : msg.relay === "OFF" ? "off" : "unknown";
      }
      if (msg.override_mode) {
        modeEl.textContent = msg.override_mode;
        modeEl.className = msg.override_mode === "auto" ? "" : "forced";
      }
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

// pageData is what the template sees.
type pageData struct {
	status.Snapshot
	Uptime time.Duration
	Light  string
	Mode   string
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	data := pageData{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Light:    "UNKNOWN",
		Mode:     "UNKNOWN",
	}
	if snap.Last != nil {
		if snap.Last.Relay != "" {
			data.Light = snap.Last.Relay
		}
		data.Mode = snap.Last.OverrideMode
	}
	indexTmpl.Execute(w, data)
}
