package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// form is a vertical stack of labelled text fields.
type form struct {
	labels []string
	inputs []textinput.Model
	index  int
	err    string
}

func newInput(placeholder string, limit int) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = limit
	in.Width = 40
	in.Cursor.SetMode(cursor.CursorStatic)
	return in
}

func newPasswordInput() textinput.Model {
	in := newInput("password", 128)
	in.EchoMode = textinput.EchoPassword
	in.EchoCharacter = '•'
	return in
}

func newForm(labels []string, inputs ...textinput.Model) form {
	f := form{labels: labels, inputs: inputs}
	f.focusIndex(0)
	return f
}

func (f *form) focusIndex(i int) {
	if len(f.inputs) == 0 {
		return
	}
	if i < 0 {
		i = len(f.inputs) - 1
	}
	if i >= len(f.inputs) {
		i = 0
	}
	for j := range f.inputs {
		f.inputs[j].Blur()
	}
	f.index = i
	f.inputs[i].Focus()
}

func (f *form) next() { f.focusIndex(f.index + 1) }
func (f *form) prev() { f.focusIndex(f.index - 1) }

func (f *form) last() bool {
	return f.index == len(f.inputs)-1
}

// focused returns the focused field, or nil when the form is blurred.
func (f *form) focused() *textinput.Model {
	if f.index < 0 || f.index >= len(f.inputs) || !f.inputs[f.index].Focused() {
		return nil
	}
	return &f.inputs[f.index]
}

func (f *form) blur() {
	for j := range f.inputs {
		f.inputs[j].Blur()
	}
}

func (f *form) update(msg tea.Msg) tea.Cmd {
	in := f.focused()
	if in == nil {
		return nil
	}
	var cmd tea.Cmd
	*in, cmd = in.Update(msg)
	return cmd
}

func (f form) value(i int) string {
	if i < 0 || i >= len(f.inputs) {
		return ""
	}
	return f.inputs[i].Value()
}

func (f form) view(styles Styles) string {
	var b strings.Builder
	for i, in := range f.inputs {
		label := ""
		if i < len(f.labels) {
			label = f.labels[i]
		}
		labelStyle := styles.MutedText
		if i == f.index && in.Focused() {
			labelStyle = styles.AccentText
		}
		b.WriteString(labelStyle.Render(label))
		b.WriteString("\n")
		b.WriteString(in.View())
		b.WriteString("\n\n")
	}
	if f.err != "" {
		b.WriteString(styles.DangerText.Render(f.err))
		b.WriteString("\n")
	}
	return b.String()
}
