package services

import (
	"fmt"
	"strings"

	"messaging-service/internal/models"
)

// requiredTemplateVars maps each notification type to the variables its
// template needs. Rendering fails fast on a missing variable instead of
// leaving an unexpanded token in user-facing text.
var requiredTemplateVars = map[string][]string{
	"message_received":    {"senderName", "preview", "conversationId"},
	"conversation_added":  {"actorName", "conversationName", "conversationId"},
	"connection_request":  {"actorName"},
	"connection_accepted": {"actorName", "actorId"},
	"mention":             {"actorName", "preview", "conversationId"},
	"project_invitation":  {"actorName", "projectName", "projectId"},
	"system_announcement": {"title", "body"},
}

// validateTemplateVars checks the statically known variable set for the type.
// Unknown types carry no requirement; the template row lookup is what gates
// unknown types.
func validateTemplateVars(typ string, vars map[string]string) error {
	for _, name := range requiredTemplateVars[typ] {
		if _, ok := vars[name]; !ok {
			return fmt.Errorf("%w: %s for type %s", ErrMissingTemplateVar, name, typ)
		}
	}
	return nil
}

// renderTemplate interpolates {{var}} tokens into title, message and action
// URL.
func renderTemplate(tpl models.NotificationTemplate, vars map[string]string) (title, message string, actionURL *string) {
	title = interpolate(tpl.Title, vars)
	message = interpolate(tpl.Message, vars)
	if tpl.ActionURL != nil {
		rendered := interpolate(*tpl.ActionURL, vars)
		actionURL = &rendered
	}
	return title, message, actionURL
}

func interpolate(s string, vars map[string]string) string {
	for name, value := range vars {
		s = strings.ReplaceAll(s, "{{"+name+"}}", value)
	}
	return s
}
