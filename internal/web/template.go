package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/edge-sampler/internal/mqtt"
	"github.com/sweeney/edge-sampler/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": formatUptime,
	"levelClass": func(s string) string {
		switch s {
		case "HIGH":
			return "high"
		case "LOW":
			return "low"
		}
		return "unknown"
	},
	"eventsTopic": func() string { return mqtt.Topic },
	"systemTopic": func() string { return mqtt.TopicSystem },
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>edge-sampler</title>
<style>
:root { --ok: #2a7d2a; --bad: #b32d2d; --dim: #777; --amber: #c77700; }
body { font: 14px/1.4 ui-monospace, Menlo, monospace; max-width: 40em; margin: 1.5em auto; padding: 0 1em; }
section { border: 1px solid #ccc; border-radius: 4px; padding: .5em 1em; margin-bottom: 1em; }
section h2 { font-size: 1em; margin: 0 0 .5em; text-transform: uppercase; color: var(--dim); }
dl { display: grid; grid-template-columns: 45% 55%; margin: 0; }
dt { color: var(--dim); }
dd { margin: 0; }
.high { color: var(--ok); font-weight: bold; }
.low, .unknown { color: var(--dim); }
.up { color: var(--ok); }
.down { color: var(--bad); }
.warn { color: var(--amber); }
#live { float: right; font-size: .8em; color: var(--dim); }
#log { list-style: none; padding: 0; margin: 0; max-height: 12em; overflow-y: auto; }
</style>
</head>
<body>
<h1>edge-sampler{{if .Config.WSBroker}} <span id="live">connecting</span>{{end}}</h1>

<section>
<h2>Hardware</h2>
<dl>
<dt>GPIO{{.Config.PinOut}} output</dt><dd id="output" class="{{levelClass .OutputString}}">{{.OutputString}}</dd>
<dt>GPIO{{.Config.PinIn}} input</dt><dd>falling edge</dd>
<dt>ADC channel {{.Config.ADCChannel}}</dt><dd id="sample">{{if .HasSample}}{{.LastSample.Percent}}% at {{.LastSample.Time.UTC.Format "15:04:05"}}{{else}}no sample yet{{end}}</dd>
<dt>Worker</dt><dd>{{.Worker}}</dd>
{{if .LastError}}<dt>Last error</dt><dd class="warn">{{.LastError}}</dd>{{end}}
</dl>
</section>

<section>
<h2>Dispatch</h2>
<dl>
<dt>Toggles</dt><dd>{{.Counts.Toggles}}</dd>
<dt>Samples</dt><dd>{{.Counts.Samples}}</dd>
<dt>Timeouts</dt><dd>{{.Counts.Timeouts}}</dd>
<dt>Unrecognized</dt><dd>{{.Counts.Unrecognized}}</dd>
<dt>Errors</dt><dd{{if .Counts.Errors}} class="warn"{{end}}>{{.Counts.Errors}}</dd>
<dt>Channel writes</dt><dd>{{.Channel.Writes}}</dd>
<dt>Superseded</dt><dd{{if .Channel.Superseded}} class="warn"{{end}}>{{.Channel.Superseded}}</dd>
</dl>
</section>

<section>
<h2>Links</h2>
<dl>
<dt>MQTT {{.Config.Broker}}</dt><dd class="{{if .MQTTConnected}}up{{else}}down{{end}}">{{if .MQTTConnected}}up{{else}}down{{end}}</dd>
{{with .Network}}<dt>Network</dt><dd>{{.Status}} via {{.Type}}{{if .SSID}} ({{.SSID}}){{end}}</dd>
<dt>Address</dt><dd>{{.IP}}</dd>{{end}}
</dl>
</section>

<section>
<h2>Process</h2>
<dl>
<dt>Up for</dt><dd>{{uptime .Uptime}}</dd>
<dt>Started</dt><dd>{{.StartTime.UTC.Format "2006-01-02 15:04:05"}} UTC</dd>
<dt>Backend</dt><dd>{{.Config.Backend}}{{if .Config.Chip}} on {{.Config.Chip}}{{end}}</dd>
<dt>Wait timeout</dt><dd>{{.Config.WaitTimeoutMs}} ms</dd>
<dt>Sample every</dt><dd>{{if .Config.SampleIntervalMs}}{{.Config.SampleIntervalMs}} ms{{else}}off{{end}}</dd>
<dt>Heartbeat every</dt><dd>{{if .Config.HeartbeatMs}}{{.Config.HeartbeatMs}} ms{{else}}off{{end}}</dd>
</dl>
</section>
{{if .Config.WSBroker}}
<section>
<h2>Recent events</h2>
<ul id="log"></ul>
</section>
{{end}}
<p><a href="/index.json">index.json</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var live = document.getElementById("live");
  var log = document.getElementById("log");
  var out = document.getElementById("output");
  var sample = document.getElementById("sample");

  function note(text) {
    var li = document.createElement("li");
    li.textContent = new Date().toLocaleTimeString() + " " + text;
    log.insertBefore(li, log.firstChild);
    while (log.children.length > 50) log.removeChild(log.lastChild);
  }

  var c = mqtt.connect("{{.Config.WSBroker}}", { reconnectPeriod: 5000 });
  c.on("connect", function() {
    live.textContent = "live";
    c.subscribe(["{{eventsTopic}}", "{{systemTopic}}"]);
  });
  c.on("reconnect", function() { live.textContent = "reconnecting"; });
  c.on("offline", function() { live.textContent = "offline"; });

  c.on("message", function(topic, payload) {
    var msg;
    try { msg = JSON.parse(payload.toString()); } catch (e) { return; }
    if (msg.device) {
      var d = msg.device;
      if (d.error) { note(d.event + " failed: " + d.error); return; }
      if (d.output) {
        out.textContent = d.output.level;
        out.className = d.output.level.toLowerCase();
        note("toggle -> " + d.output.level);
      }
      if (d.sample) {
        sample.textContent = d.sample.percent + "%";
        note("sample ch" + d.sample.channel + " " + d.sample.percent + "%");
      }
    } else if (msg.status && msg.status.event) {
      note(msg.status.event + (msg.status.reason ? " (" + msg.status.reason + ")" : ""));
    } else if (msg.system) {
      note(msg.system.event);
    }
  });
})();
</script>
{{end}}
</body>
</html>
`

// formatUptime renders d as "1d 2h 3m", dropping leading zero units.
// Durations under a minute show seconds.
func formatUptime(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	mins := d / time.Minute

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	if err := indexTmpl.Execute(w, snap); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
