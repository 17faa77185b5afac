package model

// BuildStatus is the result reported for a build
type BuildStatus string

const (
	// StatusRunning is reported while the server has no result for the build yet
	StatusRunning  BuildStatus = "RUNNING"
	StatusSuccess  BuildStatus = "SUCCESS"
	StatusFailure  BuildStatus = "FAILURE"
	StatusAborted  BuildStatus = "ABORTED"
	StatusUnstable BuildStatus = "UNSTABLE"
	StatusNotBuilt BuildStatus = "NOT_BUILT"
)

// Terminal reports whether the build has finished
func (s BuildStatus) Terminal() bool {
	return s != StatusRunning
}

// BuildRecord is the final outcome of one triggered build
type BuildRecord struct {
	Number int         `json:"buildNumber" yaml:"buildNumber"`
	Status BuildStatus `json:"status" yaml:"status"`
}
