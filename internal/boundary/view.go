package boundary

import (
	"embed"
	"html/template"
	"io"
	"strings"
)

// ViewKind identifies one of the recovery layouts.
type ViewKind string

const (
	InlineNotice  ViewKind = "inline-notice"
	RestartPrompt ViewKind = "restart-prompt"
	FullPage      ViewKind = "full-page"
)

// ActionKind is what a recovery action does when chosen.
type ActionKind string

const (
	// ActionReload reloads the whole page.
	ActionReload ActionKind = "reload"
	// ActionReset resets the boundary and renders the child again.
	ActionReset ActionKind = "reset"
)

type Action struct {
	Kind  ActionKind
	Label string
}

// RecoveryView replaces the output of a failed subtree.
type RecoveryView struct {
	Kind    ViewKind
	Icon    string
	Title   string
	Message string
	Actions []Action
	// Detail is only filled in development mode.
	Detail string
}

func selectView(cfg Config, state State) *RecoveryView {
	switch cfg.LogLevel {
	case LevelConsole:
		return &RecoveryView{
			Kind:    InlineNotice,
			Icon:    "⚠️",
			Title:   "Form Error",
			Message: "There was an issue with the loan application form.",
			Actions: []Action{{Kind: ActionReload, Label: "Reload Form"}},
		}
	case LevelLocalStorage:
		return &RecoveryView{
			Kind:    RestartPrompt,
			Icon:    "🚨",
			Title:   "Application Error",
			Message: "The loan application form encountered an error.",
			Actions: []Action{{Kind: ActionReload, Label: "Restart Application"}},
		}
	}

	v := &RecoveryView{
		Kind:    FullPage,
		Icon:    "⚠️",
		Title:   "Something went wrong",
		Message: "We're sorry, but an unexpected error occurred. Please try refreshing the page.",
		Actions: []Action{
			{Kind: ActionReload, Label: "Refresh Page"},
			{Kind: ActionReset, Label: "Try Again"},
		},
	}
	if cfg.Development {
		v.Detail = failureDetail(state)
	}
	return v
}

func failureDetail(state State) string {
	var b strings.Builder
	if state.Err != nil {
		b.WriteString(state.Err.Error())
	}
	if state.Info != nil && state.Info.ComponentStack != "" {
		b.WriteString("\n")
		b.WriteString(state.Info.ComponentStack)
	}
	return b.String()
}

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var recoveryTemplate = template.Must(template.ParseFS(templateFS, "templates/recovery.html.tmpl"))

type htmlData struct {
	*RecoveryView
	ActionURL string
}

// RenderHTML writes the view as an HTML page. Every action links to
// actionURL; under Middleware a new request is a new mount, so reload and
// reset both retry the page.
func (v *RecoveryView) RenderHTML(w io.Writer, actionURL string) error {
	return recoveryTemplate.Execute(w, htmlData{RecoveryView: v, ActionURL: actionURL})
}
