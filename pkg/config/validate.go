package config

import "fmt"

// Validate checks the config for structural correctness.
func Validate(c *Config) []error {
	var errs []error

	if c.Version != 1 {
		errs = append(errs, fmt.Errorf("version must be 1, got %d", c.Version))
	}
	if c.Daemon.Listen == "" {
		errs = append(errs, fmt.Errorf("daemon.listen is required"))
	}
	if c.Daemon.Retention < 0 {
		errs = append(errs, fmt.Errorf("daemon.retention must not be negative"))
	}
	if c.Daemon.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("daemon.rate_limit must not be negative"))
	}

	for i, src := range c.Daemon.Sources {
		switch src.Kind {
		case "file":
			if src.Path == "" {
				errs = append(errs, fmt.Errorf("source %d (file): path is required", i))
			}
		case "journald":
			if src.Unit == "" {
				errs = append(errs, fmt.Errorf("source %d (journald): unit is required", i))
			}
		case "":
			errs = append(errs, fmt.Errorf("source %d: kind is required", i))
		default:
			errs = append(errs, fmt.Errorf("source %d: unknown kind %q", i, src.Kind))
		}
		if src.Service == "" {
			errs = append(errs, fmt.Errorf("source %d: service tag is required", i))
		}
	}

	if c.Viewer.Backend == "" {
		errs = append(errs, fmt.Errorf("viewer.backend is required"))
	}
	if c.Viewer.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("viewer.poll_interval must be positive"))
	}
	if c.Viewer.PageLimit <= 0 {
		errs = append(errs, fmt.Errorf("viewer.page_limit must be positive"))
	}
	if c.Viewer.Window <= 0 {
		errs = append(errs, fmt.Errorf("viewer.window must be positive"))
	}

	return errs
}
