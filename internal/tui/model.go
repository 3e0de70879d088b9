package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rescale/assetmover/internal/prompt"
)

// model is a single conflict modal.
type model struct {
	req     prompt.Request
	options []prompt.Choice
	cursor  int
	apply   bool

	answer    prompt.Answer
	done      bool
	dismissed bool
}

func newModel(req prompt.Request) model {
	options := append(append([]prompt.Choice(nil), req.Prompt.Choices...),
		prompt.Choice{Value: prompt.ChoiceCancel, Title: "Cancel"})
	return model{req: req, options: options}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc", "q":
		// Closing the modal is the same as cancel
		m.dismissed = true
		return m, tea.Quit

	case "up", "k", "shift+tab":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j", "tab":
		if m.cursor < len(m.options)-1 {
			m.cursor++
		}

	case " ", "a":
		if m.req.AllowApply() {
			m.apply = !m.apply
		}

	case "enter":
		return m.choose(m.cursor)

	default:
		if r := key.Runes; len(r) == 1 && r[0] >= '1' && r[0] <= '9' {
			if i := int(r[0] - '1'); i < len(m.options) {
				return m.choose(i)
			}
		}
	}

	return m, nil
}

func (m model) choose(i int) (tea.Model, tea.Cmd) {
	m.cursor = i
	m.answer = prompt.Answer{
		Choice:           m.options[i].Value,
		ApplyToRemaining: m.apply && m.req.AllowApply(),
	}
	m.done = true
	return m, tea.Quit
}

func (m model) View() string {
	if m.done || m.dismissed {
		return ""
	}

	var b strings.Builder

	title := "Conflict"
	if m.req.Total > 1 {
		title = fmt.Sprintf("Conflict %d of %d", m.req.Index+1, m.req.Total)
	}
	b.WriteString(titleStyle.Render(title) + "\n")
	b.WriteString(messageStyle.Render(m.req.Prompt.Message) + "\n")

	for i, opt := range m.options {
		line := fmt.Sprintf("%d. %s", i+1, opt.Title)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString(optionStyle.Render("  "+line) + "\n")
		}
	}

	if m.req.AllowApply() {
		box := "[ ]"
		if m.apply {
			box = "[x]"
		}
		b.WriteString(checkboxStyle.Render(fmt.Sprintf("%s Apply to remaining %d", box, m.req.Remaining)) + "\n")
	}

	hint := "↑/↓ select • enter confirm • esc cancel"
	if m.req.AllowApply() {
		hint = "↑/↓ select • space apply to remaining • enter confirm • esc cancel"
	}
	b.WriteString(hintStyle.Render(hint))

	return modalStyle.Render(b.String()) + "\n"
}
