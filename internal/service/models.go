package service

// ParameterValue is a single name/value tool parameter.
type ParameterValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ExecuteResult is the structured outcome of one tool execution. Business
// failures (not configured, executor error) travel here with Success=false
// rather than as transport errors.
type ExecuteResult struct {
	Success       bool   `json:"success"`
	Output        string `json:"output,omitempty"`
	OutputFormat  string `json:"outputFormat,omitempty"`
	OutputMessage string `json:"outputMessage,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
}

// ConfigureStatus reports which plain setup keys exist for an installation
// without revealing their values.
type ConfigureStatus struct {
	IsConfigured   bool
	ConfiguredKeys []string
}
