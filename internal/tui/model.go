// Package tui is the interactive chat front end. It owns the session
// history and appends a turn only after the engine answered it, so a
// failed turn leaves the conversation exactly as it was.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragbot/internal/agent"
	"ragbot/internal/domain"
)

// AnswerPort is the TUI-facing subset of the answer engine.
type AnswerPort interface {
	Answer(ctx context.Context, question string, history []domain.Turn) (*agent.Answer, error)
}

type answerMsg struct {
	question string
	answer   *agent.Answer
	err      error
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	engine   AnswerPort
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	history  []domain.Turn
	status   string
	waiting  bool
	ready    bool
}

// New creates a new chat model instance.
func New(engine AnswerPort) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	vp := viewport.New(0, 0)
	return Model{
		engine:   engine,
		input:    ti,
		viewport: vp,
		spinner:  sp,
		status:   "Ready. Ask about the indexed corpus.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input frame, spacer
		vh := msg.Height - reserved - ch
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = vh
		m.viewport.SetContent(m.renderConversation())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.waiting {
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				m.waiting = true
				m.status = "Thinking..."
				m.input.SetValue("")
				history := append([]domain.Turn(nil), m.history...)
				return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
					answer, err := m.engine.Answer(context.Background(), q, history)
					return answerMsg{question: q, answer: answer, err: err}
				})
			}
		}

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.history = append(m.history,
				domain.Turn{Role: domain.RoleUser, Content: msg.question},
				domain.Turn{Role: domain.RoleAssistant, Content: msg.answer.Text},
			)
			m.status = statusLine(msg.answer)
		}
		m.viewport.SetContent(m.renderConversation())
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		if m.waiting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAGBot")
	chat := chatBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.waiting {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + chat + "\n" + input + "\n" + statusStyle.Render(status)
}

func (m Model) renderConversation() string {
	if len(m.history) == 0 {
		return "No turns yet. Ask something."
	}
	var b strings.Builder
	for _, t := range m.history {
		switch t.Role {
		case domain.RoleUser:
			b.WriteString(userStyle.Render("You: ") + t.Content)
		case domain.RoleAssistant:
			b.WriteString(botStyle.Render("RAGBot: ") + t.Content)
		}
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func statusLine(a *agent.Answer) string {
	parts := []string{fmt.Sprintf("%d evidence chunks", len(a.Evidence))}
	if a.Judge != nil {
		if a.Judge.Score != nil {
			verdict := "fail"
			if a.Judge.Pass {
				verdict = "pass"
			}
			parts = append(parts, fmt.Sprintf("judge %.2f (%s)", *a.Judge.Score, verdict))
		} else {
			parts = append(parts, "judge unavailable")
		}
	}
	return strings.Join(parts, " | ")
}

var (
	chatBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
