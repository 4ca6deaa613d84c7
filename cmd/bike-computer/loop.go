package main

import (
	"log"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/bike-computer/internal/computer"
	"github.com/sweeney/bike-computer/internal/export"
	"github.com/sweeney/bike-computer/internal/gpio"
	"github.com/sweeney/bike-computer/internal/logic"
	"github.com/sweeney/bike-computer/internal/mqtt"
	"github.com/sweeney/bike-computer/internal/rtc"
	"github.com/sweeney/bike-computer/internal/status"
)

// loop is the main ride loop and its collaborators. console and tracker
// may be nil.
type loop struct {
	buttons    gpio.Reader
	comp       *computer.Computer
	console    *export.Console
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	clock      rtc.Clock
	debouncer  *logic.Debouncer
	heartbeat  time.Duration
	mono       func() time.Duration

	hb *logic.Heartbeat
}

// run ticks the engine until a signal arrives. Nothing inside a tick is
// fatal: read, publish and storage errors are logged and the loop goes on.
func (l *loop) run(tick <-chan time.Time, sig <-chan os.Signal) error {
	l.hb = logic.NewHeartbeat(l.mono())

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			l.shutdown(s)
			return nil

		case <-tick:
			l.step(l.mono())
		}
	}
}

func (l *loop) step(now time.Duration) {
	var presses []logic.Button
	levels, err := l.buttons.Read()
	if err != nil {
		log.Printf("gpio read error: %v", err)
	} else {
		presses = l.debouncer.Process(logic.ButtonInput{Levels: levels, Time: now})
	}

	events, err := l.comp.Step(now, presses)
	if err != nil {
		log.Printf("storage: %v", err)
	}

	exportRequested := false
	for _, event := range events {
		logEvent(event)
		if event.Type == logic.EventExport {
			exportRequested = true
		}
		if err := l.publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
		}
	}

	if l.console != nil {
		requested, err := l.console.Poll()
		if err != nil {
			log.Printf("console: %v", err)
		}
		if requested {
			log.Printf("console: export requested")
			exportRequested = true
		}
	}
	if exportRequested {
		l.export()
	}

	if l.tracker != nil {
		l.tracker.Update(l.comp.Ride(), l.debouncer.IsBaselined(), l.comp.Counts())
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}

	if hbData := l.hb.Check(now, l.heartbeat, l.comp.Counts()); hbData != nil {
		c := hbData.Counts
		log.Printf("heartbeat: uptime=%v trips=%d/%d locks=%d wrong_pins=%d alarms=%d exports=%d",
			hbData.Uptime.Truncate(time.Second), c.TripsStarted, c.TripsStopped, c.LocksArmed, c.WrongPINs, c.Alarms, c.Exports)

		hbEvent := mqtt.SystemEvent{
			Timestamp: l.clock.Now(),
			Event:     "HEARTBEAT",
		}
		if l.tracker != nil {
			hbEvent.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "HEARTBEAT", "")
		}
		if err := l.publisher.PublishSystem(hbEvent); err != nil {
			log.Printf("heartbeat publish error: %v", err)
		}
	}
}

func (l *loop) export() {
	if l.console == nil {
		log.Printf("export: no console configured")
		return
	}
	if err := l.comp.Export(l.console); err != nil {
		log.Printf("export: %v", err)
		return
	}
	log.Printf("export: sent trip log")
}

func (l *loop) shutdown(s os.Signal) {
	if err := l.comp.Shutdown(l.mono()); err != nil {
		log.Printf("storage: save on shutdown: %v", err)
	}

	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	event := mqtt.SystemEvent{
		Timestamp: l.clock.Now(),
		Event:     "SHUTDOWN",
		Reason:    signalName,
		Retained:  true,
	}
	if l.tracker != nil {
		l.tracker.Update(l.comp.Ride(), l.debouncer.IsBaselined(), l.comp.Counts())
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
		event.RawPayload = status.FormatStatusEvent(l.tracker.Snapshot(), "SHUTDOWN", signalName)
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish shutdown event: %v", err)
	} else {
		log.Printf("published shutdown event")
	}
}

func logEvent(e logic.Event) {
	switch {
	case e.Trip != nil:
		t := e.Trip
		log.Printf("event: %s mode=%s distance=%.3fkm duration=%v avg=%.2fkm/h max=%.2fkm/h",
			e.Type, e.Mode, t.DistanceKm, t.Duration, t.AvgSpeed, t.MaxSpeed)
	case e.Message != "":
		log.Printf("event: %s mode=%s attempts_left=%d message=%q", e.Type, e.Mode, e.AttemptsLeft, e.Message)
	default:
		log.Printf("event: %s mode=%s", e.Type, e.Mode)
	}
}
