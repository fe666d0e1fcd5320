// Package tagkit assembles industrial time-series adapters: a tag
// definition registry, a real-time subscription hub, and a derived
// historical query engine that synthesizes interpolated, plot-friendly,
// aggregated and at-instant values from any raw-sample source.
//
// An adapter wraps one backing system (a historian, a PLC gateway, a
// plain database) and exposes it through a uniform capability model.
// Hosts discover what an adapter supports through its capability
// registry instead of type assertions, so the same host code drives a
// full-featured historian adapter and a minimal raw-only one.
//
// Construct an adapter with New, which wires the subsystems per the
// config package:
//
//	cfg, err := config.Load("adapter.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	a, err := tagkit.New(ctx, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
//	sub, _ := a.Hub().Subscribe(ctx, caller)
//	a.Hub().AddTags(sub, []string{"Pump1.Flow"})
//
// The subsystems are usable standalone; New only saves the wiring.
package tagkit
