package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/aretw0/cpm/internal/platform"
	"github.com/aretw0/cpm/pkg/core"
	"github.com/aretw0/cpm/pkg/hsm"
)

var appCmd = &cobra.Command{
	Use:   "app",
	Short: "Interactive menu to generate templates, analyze tables and read model documentation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Log lines would corrupt the terminal UI.
		slog.SetDefault(slog.New(slog.DiscardHandler))

		_, err := tea.NewProgram(newApp(cmd.Context(), openModel), tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(appCmd)
}

type appStep int

const (
	stepModel appStep = iota
	stepAction
	stepPath
	stepResult
)

const (
	actionTemplate = "Template"
	actionAnalyze  = "Analyze"
	actionDocs     = "Documentation"
	actionRandom   = "Random data"
	actionBack     = "Back"
)

var appActions = []string{actionTemplate, actionAnalyze, actionDocs, actionRandom, actionBack}

type appTheme struct {
	Title    lipgloss.Style
	Selected lipgloss.Style
	Help     lipgloss.Style
	Error    lipgloss.Style
	Card     lipgloss.Style
}

var theme = appTheme{
	Title:    lipgloss.NewStyle().Bold(true),
	Selected: keyStyle,
	Help:     lipgloss.NewStyle().Faint(true),
	Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	Card: lipgloss.NewStyle().
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")),
}

// actionDoneMsg reports the outcome of a file action.
type actionDoneMsg struct {
	text string
	err  error
}

// app walks through choosing a model, then an action on it.
type app struct {
	ctx  context.Context
	open func(string) (*core.Model, error)

	step   appStep
	cursor int
	models []string

	model  *core.Model
	action string
	path   string
	result string
	err    error
}

var _ tea.Model = app{}

func newApp(ctx context.Context, open func(string) (*core.Model, error)) app {
	if ctx == nil {
		ctx = context.Background()
	}
	return app{ctx: ctx, open: open, models: hsm.Names()}
}

func (a app) Init() tea.Cmd { return nil }

func (a app) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case actionDoneMsg:
		a.step = stepResult
		a.result, a.err = msg.text, msg.err
		return a, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return a, tea.Quit
		}
		switch a.step {
		case stepModel:
			return a.updateModel(msg)
		case stepAction:
			return a.updateAction(msg)
		case stepPath:
			return a.updatePath(msg)
		case stepResult:
			switch msg.String() {
			case "enter", "esc", "q":
				a.step, a.result, a.err = stepAction, "", nil
			}
		}
	}
	return a, nil
}

func (a app) moveCursor(key string, n int) app {
	switch key {
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < n-1 {
			a.cursor++
		}
	}
	return a
}

func (a app) updateModel(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return a, tea.Quit
	case "enter":
		m, err := a.open(a.models[a.cursor])
		if err != nil {
			a.err = err
			return a, nil
		}
		a.model, a.err = m, nil
		a.step, a.cursor = stepAction, 0
		return a, nil
	}
	return a.moveCursor(msg.String(), len(a.models)), nil
}

func (a app) updateAction(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.step, a.cursor = stepModel, a.modelIndex()
		return a, nil
	case "enter":
		a.action = appActions[a.cursor]
		switch a.action {
		case actionBack:
			a.step, a.cursor = stepModel, a.modelIndex()
		case actionDocs:
			desc, _ := hsm.Describe(a.model.Name())
			a.step, a.result, a.err = stepResult, desc+"\n\n"+a.model.How(styleKey), nil
		case actionTemplate:
			a.step, a.path = stepPath, a.model.Name()+"_template.csv"
		case actionRandom:
			a.step, a.path = stepPath, a.model.Name()+"_random.csv"
		default:
			a.step, a.path = stepPath, ""
		}
		return a, nil
	}
	return a.moveCursor(msg.String(), len(appActions)), nil
}

func (a app) updatePath(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		a.step = stepAction
	case tea.KeyEnter:
		if strings.TrimSpace(a.path) == "" {
			return a, nil
		}
		return a, a.run(strings.TrimSpace(a.path))
	case tea.KeyBackspace:
		if r := []rune(a.path); len(r) > 0 {
			a.path = string(r[:len(r)-1])
		}
	case tea.KeyRunes, tea.KeySpace:
		a.path += string(msg.Runes)
	}
	return a, nil
}

func (a app) modelIndex() int {
	for i, name := range a.models {
		if a.model != nil && name == a.model.Name() {
			return i
		}
	}
	return 0
}

// run performs the chosen file action off the update loop.
func (a app) run(path string) tea.Cmd {
	m, action, ctx := a.model, a.action, a.ctx
	return func() tea.Msg {
		switch action {
		case actionTemplate:
			if err := platform.TemplateFile(m, path, 1); err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{text: fmt.Sprintf("Template written to %s", path)}
		case actionRandom:
			if err := platform.RandomFile(m, path, 10, uint64(time.Now().UnixNano())); err != nil {
				return actionDoneMsg{err: err}
			}
			return actionDoneMsg{text: fmt.Sprintf("10 random rows written to %s", path)}
		default:
			s, err := platform.PredictFile(ctx, m, path, "", platform.WithConfig(cfg))
			if err != nil {
				return actionDoneMsg{err: err}
			}
			var b strings.Builder
			printSummary(&b, s)
			return actionDoneMsg{text: strings.TrimSpace(b.String())}
		}
	}
}

func (a app) View() string {
	var b strings.Builder
	switch a.step {
	case stepModel:
		b.WriteString(theme.Title.Render("Choose a model") + "\n\n")
		for i, name := range a.models {
			desc, _ := hsm.Describe(name)
			b.WriteString(a.item(i, fmt.Sprintf("%-8s %s", name, desc)))
		}
		b.WriteString(theme.Help.Render("\n↑/↓ move • enter select • q quit"))
	case stepAction:
		b.WriteString(theme.Title.Render(a.model.Name()) + "\n\n")
		for i, action := range appActions {
			b.WriteString(a.item(i, action))
		}
		b.WriteString(theme.Help.Render("\n↑/↓ move • enter select • esc back"))
	case stepPath:
		prompt := "Output table"
		if a.action == actionAnalyze {
			prompt = "Input table"
		}
		b.WriteString(theme.Title.Render(a.model.Name()+" • "+a.action) + "\n\n")
		b.WriteString(fmt.Sprintf("%s: %s█\n", prompt, a.path))
		b.WriteString(theme.Help.Render("\nenter confirm • esc back"))
	case stepResult:
		b.WriteString(theme.Title.Render(a.model.Name()+" • "+a.action) + "\n\n")
		if a.err == nil {
			b.WriteString(theme.Card.Render(a.result) + "\n")
		}
		b.WriteString(theme.Help.Render("\nenter back"))
	}
	if a.err != nil {
		b.WriteString("\n" + theme.Error.Render(a.err.Error()))
	}
	return b.String() + "\n"
}

func (a app) item(i int, text string) string {
	if i == a.cursor {
		return theme.Selected.Render("> "+text) + "\n"
	}
	return "  " + text + "\n"
}
