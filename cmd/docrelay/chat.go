package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/a-h/docrelay/client"
	"github.com/a-h/docrelay/models"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

type ChatCommand struct {
	RelayURL         string   `help:"The URL of the relay." env:"DOCRELAY_URL" default:"http://localhost:9020"`
	APIKey           string   `help:"The API key to pass to the upstream services." env:"DOCRELAY_API_KEY" default:""`
	Model            string   `help:"The chat model to use." env:"CHAT_MODEL" default:"solar-pro"`
	Documents        []string `help:"Documents to chat about, may be repeated." name:"document" short:"d"`
	SystemPromptFile string   `help:"A file containing a system prompt to send after the documents." env:"SYSTEM_PROMPT" default:""`
	LogLevel         string   `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c ChatCommand) Run(ctx context.Context) (err error) {
	rc := client.New(c.RelayURL, c.APIKey)

	var history []models.Message
	if c.SystemPromptFile != "" {
		pfBytes, err := os.ReadFile(c.SystemPromptFile)
		if err != nil {
			return fmt.Errorf("failed to read system prompt file: %w", err)
		}
		history = append(history, models.Message{
			Role:    models.RoleSystem,
			Content: string(pfBytes),
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	toLLM := make(chan models.Message)
	fromLLM := make(chan []models.Message)
	errors := make(chan error)

	go func() {
		for toSend := range toLLM {
			history = append(history, toSend)
			reply := models.Message{Role: models.RoleAssistant}
			publish := func() {
				msgs := append(append([]models.Message{}, history...), reply)
				select {
				case fromLLM <- msgs:
				case <-ctx.Done():
				}
			}
			publish()
			if err := c.send(ctx, rc, history, &reply, publish); err != nil {
				select {
				case errors <- err:
				case <-ctx.Done():
				}
				history = history[:len(history)-1]
				continue
			}
			history = append(history, reply)
		}
	}()

	p := tea.NewProgram(newModel(ctx, c.Documents, toLLM, fromLLM, errors))
	_, err = p.Run()
	close(toLLM)
	return err
}

// send re-uploads the documents with every turn, since the relay keeps no state.
func (c ChatCommand) send(ctx context.Context, rc client.Client, history []models.Message, reply *models.Message, publish func()) (err error) {
	docs, closeDocs, err := openDocuments(c.Documents)
	if err != nil {
		return err
	}
	defer closeDocs()
	var sb strings.Builder
	dd := client.NewDeltaDecoder(func(content string) error {
		sb.WriteString(content)
		reply.Content = sb.String()
		publish()
		return nil
	})
	err = rc.APIPost(ctx, models.APIPostRequest{
		Messages:  history,
		Model:     c.Model,
		Stream:    true,
		Documents: docs,
	}, dd.Write)
	if err != nil {
		return err
	}
	return dd.Flush()
}

// Dracula color scheme.
var (
	Background  = lipgloss.Color("#282a36")
	CurrentLine = lipgloss.Color("#44475a")
	Cyan        = lipgloss.Color("#8be9fd")
	Green       = lipgloss.Color("#50fa7b")
	Pink        = lipgloss.Color("#ff79c6")
	Purple      = lipgloss.Color("#bd93f9")
	Red         = lipgloss.Color("#ff5555")
)

var headerStyle = lipgloss.NewStyle().Background(CurrentLine).Foreground(Purple).Bold(true).Margin(1).Padding(1)

var errorStyle = lipgloss.NewStyle().Foreground(Red).Margin(0, 1)

func formatHeader(documents []string) string {
	var sb strings.Builder
	sb.WriteString("docrelay")
	if len(documents) == 0 {
		sb.WriteString("\n\nno documents attached")
	}
	for _, d := range documents {
		sb.WriteString("\n📄 ")
		sb.WriteString(filepath.Base(d))
	}
	return headerStyle.Render(sb.String())
}

type model struct {
	viewport viewport.Model
	textarea textarea.Model
	header   string
	err      error
	ctx      context.Context

	// Chatbot interactions.
	toLLM   chan models.Message
	fromLLM chan []models.Message
	errors  chan error
}

func newModel(ctx context.Context, documents []string, toLLM chan models.Message, fromLLM chan []models.Message, errors chan error) model {
	ta := textarea.New()
	ta.Placeholder = "Ask about your documents..."
	ta.Focus()

	ta.Prompt = "┃ "
	ta.CharLimit = 2000

	ta.SetHeight(3)

	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()

	ta.ShowLineNumbers = false

	header := formatHeader(documents)
	vp := viewport.New(80, 20)
	vp.SetContent(header)

	ta.KeyMap.InsertNewline.SetEnabled(false)

	return model{
		ctx:      ctx,
		textarea: ta,
		viewport: vp,
		header:   header,
		fromLLM:  fromLLM,
		toLLM:    toLLM,
		errors:   errors,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.subscribeToFromLLM(),
		m.subscribeToErrors(),
	)
}

func (m model) subscribeToFromLLM() tea.Cmd {
	return func() tea.Msg {
		select {
		case x := <-m.fromLLM:
			return x
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m model) subscribeToErrors() tea.Cmd {
	return func() tea.Msg {
		select {
		case x := <-m.errors:
			return x
		case <-m.ctx.Done():
			return nil
		}
	}
}

var roleToStyle = map[models.Role]lipgloss.Style{
	models.RoleSystem:    lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).MaxWidth(90).Background(Background).Foreground(Green),
	models.RoleUser:      lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).Background(Background).Foreground(Pink),
	models.RoleAssistant: lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).Background(Background).Foreground(Cyan),
}

var roleToIcon = map[models.Role]string{
	models.RoleSystem:    "🤖",
	models.RoleUser:      "🥷",
	models.RoleAssistant: "✨",
}

func formatMessage(msg models.Message, width int) string {
	style, ok := roleToStyle[msg.Role]
	if !ok {
		return msg.Content
	}
	icon, ok := roleToIcon[msg.Role]
	if !ok {
		icon = "🤷"
	}
	wrapped := wordwrap.String(strings.TrimSpace(icon+" "+msg.Content), width)
	return style.Render(wrapped)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case error:
		m.err = msg
		return m, m.subscribeToErrors()
	case []models.Message:
		m.err = nil
		var sb strings.Builder
		sb.WriteString(m.header)
		sb.WriteString("\n")
		for _, cm := range msg {
			sb.WriteString(formatMessage(cm, 80))
			sb.WriteString("\n")
		}
		m.viewport.SetContent(sb.String())
		m.viewport.GotoBottom()
		return m, m.subscribeToFromLLM()
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - m.textarea.Height() - 3
		m.textarea.SetWidth(msg.Width)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			return m, tea.Quit
		case "enter":
			v := m.textarea.Value()

			if v == "" {
				// Don't send empty messages.
				return m, nil
			}

			m.textarea.Reset()
			toSend := models.Message{
				Role:    models.RoleUser,
				Content: v,
			}
			return m, func() tea.Msg {
				select {
				case m.toLLM <- toSend:
				case <-m.ctx.Done():
				}
				return nil
			}
		default:
			// Send all other keypresses to the textarea.
			var cmd tea.Cmd
			m.textarea, cmd = m.textarea.Update(msg)
			return m, cmd
		}

	case cursor.BlinkMsg:
		// Textarea should also process cursor blinks.
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

func (m model) View() string {
	var status string
	if m.err != nil {
		status = errorStyle.Render(m.err.Error())
	}
	return fmt.Sprintf("%s\n%s\n%s",
		m.viewport.View(),
		status,
		m.textarea.View(),
	) + "\n\n"
}
