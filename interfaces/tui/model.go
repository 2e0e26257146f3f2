// Package tui is a terminal explorer for trie fragments: a query line, the
// laid out graph as an indented list, and inspection popups.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aymericbeaumet/loupe/application/session"
	"github.com/aymericbeaumet/loupe/application/view"
	"github.com/aymericbeaumet/loupe/domain/graph"
	"github.com/aymericbeaumet/loupe/domain/pathtext"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	byteStyle      = lipgloss.NewStyle()
	recordStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	highlightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	cursorStyle    = lipgloss.NewStyle().Reverse(true)
	popupStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	helpStyle      = lipgloss.NewStyle().Faint(true)
	rawTailStyle   = lipgloss.NewStyle().Faint(true).Italic(true)
)

type popupState struct {
	content string
	visible bool
}

// Model is the bubbletea model of the explorer.
type Model struct {
	session *session.Session
	surface *surface
	input   textinput.Model

	nodes       []view.SceneNode
	highlighted map[string]bool
	selected    map[string]bool
	popups      map[string]*popupState
	cursor      int
	hovered     string
	err         string

	width  int
	height int
}

// NewModel creates a model querying fetcher. The session is owned by the
// model and closed by Close.
func NewModel(fetcher session.Fetcher, opts ...session.Option) *Model {
	in := textinput.New()
	in.Placeholder = "query"
	in.Prompt = "› "
	in.Focus()

	s := newSurface()
	m := &Model{
		surface:     s,
		input:       in,
		highlighted: map[string]bool{},
		selected:    map[string]bool{},
		popups:      map[string]*popupState{},
	}
	opts = append([]session.Option{
		session.WithErrorHandler(func(query string, err error) {
			s.emit(errMsg{query: query, err: err})
		}),
	}, opts...)
	m.session = session.New(fetcher, s, opts...)
	return m
}

// Close tears the session down.
func (m *Model) Close() {
	m.session.Close()
	m.surface.detach()
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyUp:
			m.move(-1)
			return m, nil
		case tea.KeyDown:
			m.move(1)
			return m, nil
		case tea.KeyEnter:
			m.toggle()
			return m, nil
		}

		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if q := m.input.Value(); q != before {
			m.session.Submit(q)
		}
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case sceneMsg:
		m.nodes = ordered(view.Scene(msg).Nodes)
		m.cursor = 0
		m.hovered = ""
		m.err = ""
		m.hover()

	case clearMsg:
		m.nodes = nil
		m.highlighted = map[string]bool{}
		m.selected = map[string]bool{}
		m.popups = map[string]*popupState{}
		m.hovered = ""

	case highlightMsg:
		for _, id := range msg.ids {
			if msg.on {
				m.highlighted[id] = true
			} else {
				delete(m.highlighted, id)
			}
		}

	case popupOpenMsg:
		m.popups[msg.id] = &popupState{content: msg.content}

	case popupStateMsg:
		if msg.gone {
			delete(m.popups, msg.id)
		} else if p, ok := m.popups[msg.id]; ok {
			p.visible = msg.visible
		}

	case errMsg:
		m.err = fmt.Sprintf("%q: %v", msg.query, msg.err)
	}

	return m, nil
}

func (m *Model) move(delta int) {
	if len(m.nodes) == 0 {
		return
	}
	m.cursor = (m.cursor + delta + len(m.nodes)) % len(m.nodes)
	m.hover()
}

// hover moves the hover state to the node under the cursor.
func (m *Model) hover() {
	v := m.session.Current()
	if v == nil || len(m.nodes) == 0 {
		return
	}
	id := m.nodes[m.cursor].ID
	if id == m.hovered {
		return
	}
	if m.hovered != "" {
		_ = v.HoverLeave(m.hovered)
	}
	if err := v.HoverEnter(id); err == nil {
		m.hovered = id
	}
}

func (m *Model) toggle() {
	v := m.session.Current()
	if v == nil || len(m.nodes) == 0 {
		return
	}
	id := m.nodes[m.cursor].ID
	var err error
	if m.selected[id] {
		err = v.Deselect(id)
		delete(m.selected, id)
	} else {
		err = v.Select(id)
		m.selected[id] = true
	}
	if err != nil {
		m.err = err.Error()
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("loupe"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	for i, n := range m.nodes {
		style := byteStyle
		if n.Kind == graph.KindRecordNode {
			style = recordStyle
		}
		if m.highlighted[n.ID] {
			style = highlightStyle
		}
		line := strings.Repeat("  ", n.Rank) + renderLabel(n, style)
		if i == m.cursor {
			line = cursorStyle.Render(">") + " " + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if m.hovered != "" {
		if p, ok := m.popups[m.hovered]; ok && p.visible {
			b.WriteString("\n")
			b.WriteString(popupStyle.Render(p.content))
			b.WriteString("\n")
		}
	}
	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.err))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ move • enter select • esc quit"))
	return b.String()
}

// renderLabel dims the raw byte suffix of a byte node label.
func renderLabel(n view.SceneNode, style lipgloss.Style) string {
	if n.Kind != graph.KindByteNode {
		return style.Render(n.Label)
	}
	prefix, tail, ok := pathtext.SplitRendered(n.Label)
	if !ok {
		return style.Render(n.Label)
	}
	out := rawTailStyle.Render(pathtext.HexList(tail))
	if prefix != "" {
		out = style.Render(prefix) + out
	}
	return out
}

// ordered sorts nodes for display: by rank, then left to right.
func ordered(nodes []view.SceneNode) []view.SceneNode {
	out := append([]view.SceneNode(nil), nodes...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].X < out[j].X
	})
	return out
}

// Run starts the explorer on the terminal and blocks until it exits.
func Run(ctx context.Context, fetcher session.Fetcher, initial string, opts ...session.Option) error {
	m := NewModel(fetcher, opts...)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen())
	m.surface.attach(p.Send)
	if initial != "" {
		m.input.SetValue(initial)
		m.session.Submit(initial)
	}

	_, err := p.Run()
	return err
}
