package domain

// Status is the machine-readable line printed when a run finishes.
type Status struct {
	Success    bool    `json:"success"`
	OutputPath *string `json:"outputPath"`
}

func NewStatus(success bool, outputPath string) Status {
	if !success {
		return Status{}
	}
	return Status{Success: true, OutputPath: &outputPath}
}
