/*
Package config loads dispatcher settings from YAML or JSON files and
EVENTBATCH_* environment variables.

# Raw Access

Config wraps a map[string]any and provides typed accessors that return a
default when a key is missing or has the wrong type:

	cfg, err := config.FromFile("eventbatch.yaml")
	if err != nil {
	    log.Fatal(err)
	}
	delay := cfg.Duration("debounce_delay", time.Second)
	sink := cfg.Section("sink").String("type", "log")

Bare numbers given for durations are milliseconds, so `debounce_delay: 1000`
and `debounce_delay: 1s` are equivalent.

# Settings

LoadSettings turns a Config into Settings; ApplyEnv layers environment
overrides on top and Validate checks the result:

	s := config.LoadSettings(cfg)
	if err := s.ApplyEnv(os.LookupEnv); err != nil {
	    return err
	}
	if err := s.Validate(); err != nil {
	    return err
	}
*/
package config
