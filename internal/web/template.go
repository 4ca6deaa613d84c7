package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/bike-computer/internal/logic"
	"github.com/sweeney/bike-computer/internal/status"
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
	"kmh": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
	"km": func(v float64) string {
		return fmt.Sprintf("%.3f", v)
	},
	"trip": status.FormatTrip,
	"used": func(t logic.Trip) bool {
		return !t.Empty()
	},
	"modeOrUnknown": func(m logic.Mode) string {
		if m == "" {
			return "UNKNOWN"
		}
		return string(m)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Bike Computer</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.alarm { color: red; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Bike Computer<span id="live-dot" class="live-dot pending" title="connecting"></span></h1>

<h2>Ride</h2>
<table>
<tr><th>Mode</th><td id="mode">{{modeOrUnknown .Ride.Mode}}{{if .Ride.Overlay}} ({{.Ride.Overlay}}){{end}}{{if .Ride.Standby}} standby{{end}}</td></tr>
<tr><th>Speed</th><td><span id="speed">{{kmh .Ride.Speed.Instant}}</span> km/h</td></tr>
<tr><th>Average</th><td><span id="avg">{{kmh .Ride.Speed.Average}}</span> km/h</td></tr>
<tr><th>Cadence</th><td><span id="cadence">{{printf "%.0f" .Ride.Speed.Cadence}}</span> rpm</td></tr>
<tr><th>Odometer</th><td><span id="odometer">{{km .Ride.Odometer.KM}}</span> km</td></tr>
<tr><th>Ride time</th><td>{{uptime .Ride.Odometer.RideTime}}</td></tr>
<tr><th>Wheel</th><td>{{printf "%.1f" .Ride.WheelDiameter}} in</td></tr>
{{if .Ride.Locked}}<tr><th>Lock</th><td class="{{if .Ride.Alarm}}alarm{{end}}">{{if .Ride.Alarm}}ALARM{{else}}armed{{end}}, {{.Ride.AttemptsLeft}} attempts left</td></tr>{{end}}
</table>

{{if .Ride.TripRunning}}{{with trip .Ride.Trip}}
<h2>Current Trip</h2>
<table>
<tr><th>Distance</th><td>{{km .DistanceKm}} km</td></tr>
<tr><th>Duration</th><td>{{.Seconds}}s</td></tr>
<tr><th>Max</th><td>{{kmh .MaxSpeedKmh}} km/h</td></tr>
<tr><th>Min</th><td>{{kmh .MinSpeedKmh}} km/h</td></tr>
<tr><th>Started</th><td>{{.Start}}</td></tr>
</table>
{{end}}{{end}}

<h2>Trip Log</h2>
<table>
<tr><th>Slot</th><th>Start</th><th>km</th><th>Avg</th><th>Max</th></tr>
{{range $i, $t := .Ride.TripLog}}{{if used $t}}{{with trip $t}}<tr><td>{{$i}}</td><td>{{.Start}}</td><td>{{km .DistanceKm}}</td><td>{{kmh .AvgSpeedKmh}}</td><td>{{kmh .MaxSpeedKmh}}</td></tr>
{{end}}{{end}}{{end}}</table>
<p><a href="/export.csv">CSV export</a></p>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Console</th><td>{{if .Config.Console}}{{.Config.Console}}{{else}}disabled{{end}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Trips started</th><td>{{.Counts.TripsStarted}}</td></tr>
<tr><th>Trips stopped</th><td>{{.Counts.TripsStopped}}</td></tr>
<tr><th>Locks armed</th><td>{{.Counts.LocksArmed}}</td></tr>
<tr><th>Wrong PINs</th><td>{{.Counts.WrongPINs}}</td></tr>
<tr><th>Alarms</th><td>{{.Counts.Alarms}}</td></tr>
<tr><th>Exports</th><td>{{.Counts.Exports}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Tick</th><td>{{.Config.TickMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Standby</th><td>{{if eq .Config.StandbyMs 0}}disabled{{else}}{{.Config.StandbyMs}}ms{{end}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>Storage</th><td>{{.Config.Storage}}</td></tr>
<tr><th>Pulses</th><td>{{.Ride.Pulses}} ({{.Ride.Rejected}} rejected)</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var fields = {
    mode: document.getElementById("mode"),
    speed: document.getElementById("speed"),
    avg: document.getElementById("avg"),
    cadence: document.getElementById("cadence"),
    odometer: document.getElementById("odometer")
  };

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss:" : "ws:";
    var ws = new WebSocket(proto + "//" + location.host + "/live");

    ws.onopen = function() { setDot("ok", "live"); };
    ws.onerror = function() { setDot("err", "error"); };
    ws.onclose = function() {
      setDot("pending", "reconnecting");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(msg) {
      try {
        var ride = JSON.parse(msg.data).status.ride;
        fields.mode.textContent = ride.mode + (ride.overlay ? " (" + ride.overlay + ")" : "") + (ride.standby ? " standby" : "");
        fields.speed.textContent = ride.speed_kmh.toFixed(1);
        fields.avg.textContent = ride.avg_speed_kmh.toFixed(1);
        fields.cadence.textContent = ride.cadence_rpm.toFixed(0);
        fields.odometer.textContent = ride.odometer_km.toFixed(3);
      } catch (e) {}
    };
  }
  connect();
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
