package neighbourhood

import "fmt"

// ConfigurationError reports a boundary dataset that cannot support
// resolution. It is fatal for a run.
type ConfigurationError struct {
	Neighbourhood string
	Source        string
	Reason        string
}

func (e *ConfigurationError) Error() string {
	if e.Neighbourhood == "" && e.Source == "" {
		return "neighbourhood: " + e.Reason
	}
	return fmt.Sprintf("neighbourhood: %q (source %s): %s", e.Neighbourhood, e.Source, e.Reason)
}
