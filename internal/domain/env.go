package domain

import "log/slog"

const redactedValue = "[redacted]"

// EnvVar is one name→value configuration entry injected into a container at
// deploy time. Secret entries must never surface in logs, build output or
// error messages; every render path goes through LogValue or Display.
type EnvVar struct {
	Name   string `json:"name" yaml:"name"`
	Value  string `json:"-" yaml:"value"`
	Secret bool   `json:"secret,omitempty" yaml:"secret,omitempty"`
}

// Display returns the value suitable for human-facing output.
func (e EnvVar) Display() string {
	if e.Secret {
		return redactedValue
	}
	return e.Value
}

// LogValue implements slog.LogValuer so a secret entry cannot leak through
// structured logging.
func (e EnvVar) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", e.Name),
		slog.String("value", e.Display()),
	)
}

// String implements fmt.Stringer with the same redaction as Display.
func (e EnvVar) String() string {
	return e.Name + "=" + e.Display()
}
