package model

import (
	"fmt"
	"strings"
)

// TriggerMode selects how a job is triggered. The value doubles as the
// trigger path segment under the job URI.
type TriggerMode string

const (
	TriggerSimple         TriggerMode = "build"
	TriggerWithParameters TriggerMode = "buildWithParameters"
)

// ParseTriggerMode maps the Build_Type cell onto a trigger mode.
// "buildWithParameters" (any case) selects parameterized builds, every other
// non-empty value selects a simple build.
func ParseTriggerMode(value string) (TriggerMode, error) {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return "", fmt.Errorf("trigger mode cannot be empty")
	case strings.EqualFold(value, string(TriggerWithParameters)):
		return TriggerWithParameters, nil
	default:
		return TriggerSimple, nil
	}
}

// JobConfig identifies the job to drive and how to trigger it
type JobConfig struct {
	ServerURL  string      `json:"serverURL" yaml:"serverURL"`
	JobName    string      `json:"jobName" yaml:"jobName"`
	Mode       TriggerMode `json:"mode" yaml:"mode"`
	Token      string      `json:"token,omitempty" yaml:"token,omitempty"`
	BuildCount int         `json:"buildCount" yaml:"buildCount"`
}

// JobURI returns the canonical job URI: the server URL with a trailing
// slash followed by "job/<name>".
func (c JobConfig) JobURI() string {
	base := c.ServerURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "job/" + c.JobName
}

// ParameterKind tags how a build parameter is sent
type ParameterKind int

const (
	ParameterPlain ParameterKind = iota
	ParameterFileUpload
	ParameterMultiValue
)

const (
	fileParameterPrefix     = "File : "
	multipleParameterPrefix = "Multiple : "
)

func (k ParameterKind) String() string {
	switch k {
	case ParameterFileUpload:
		return "file"
	case ParameterMultiValue:
		return "multiple"
	default:
		return "plain"
	}
}

// Parameter is a single named build parameter value
type Parameter struct {
	Name  string        `json:"name" yaml:"name"`
	Kind  ParameterKind `json:"kind" yaml:"kind"`
	Value string        `json:"value" yaml:"value"`
}

// ParseParameterName strips the type prefix from a parameter header and
// returns the bare name with its kind.
func ParseParameterName(header string) (string, ParameterKind) {
	header = strings.TrimSpace(header)
	if name, ok := strings.CutPrefix(header, fileParameterPrefix); ok {
		return strings.TrimSpace(name), ParameterFileUpload
	}
	if name, ok := strings.CutPrefix(header, multipleParameterPrefix); ok {
		return strings.TrimSpace(name), ParameterMultiValue
	}
	return header, ParameterPlain
}

// Values returns the values sent for the parameter. Multi-value parameters
// are split on commas.
func (p Parameter) Values() []string {
	if p.Kind != ParameterMultiValue {
		return []string{p.Value}
	}
	parts := strings.Split(p.Value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// ParameterSet is one build invocation's parameters, in column order
type ParameterSet []Parameter

// NonEmpty returns the parameters that carry a value
func (s ParameterSet) NonEmpty() ParameterSet {
	out := make(ParameterSet, 0, len(s))
	for _, p := range s {
		if p.Value != "" {
			out = append(out, p)
		}
	}
	return out
}
