package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/daisinet/securetools/internal/domain"
	"github.com/daisinet/securetools/internal/service"
)

// Echo is the reference executor. It mirrors the "message" parameter back
// and reports which services hold valid credentials, which makes it useful
// for verifying an installation end to end without touching a real
// upstream.
func Echo(_ context.Context, _, _ string, params []service.ParameterValue, setup map[string]string) (*service.ExecuteResult, error) {
	var message string
	for _, p := range params {
		if p.Name == "message" {
			message = p.Value
		}
	}
	if strings.TrimSpace(message) == "" {
		return &service.ExecuteResult{
			Success:      false,
			ErrorMessage: "Parameter 'message' is required.",
		}, nil
	}

	var authenticated []string
	for key, value := range setup {
		if strings.HasSuffix(key, domain.SuffixAuthenticated) && value == domain.AuthenticatedSentinel {
			authenticated = append(authenticated, strings.TrimSuffix(key, domain.SuffixAuthenticated))
		}
	}
	sort.Strings(authenticated)

	outputMessage := "Echo complete."
	if len(authenticated) > 0 {
		outputMessage = fmt.Sprintf("Echo complete. Authenticated services: %s.", strings.Join(authenticated, ", "))
	}

	return &service.ExecuteResult{
		Success:       true,
		Output:        message,
		OutputFormat:  "plaintext",
		OutputMessage: outputMessage,
	}, nil
}
