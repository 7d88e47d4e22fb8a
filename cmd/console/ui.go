package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jwebster45206/dialogue-engine/pkg/dialogue"
	"github.com/jwebster45206/dialogue-engine/pkg/state"
	"github.com/muesli/reflow/wordwrap"
)

// ConsoleUI is the BubbleTea model that plays dialogue graphs locally.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	config *ConsoleConfig
	log    *slog.Logger
	graphs []*dialogue.Graph

	gameState *state.GameState
	session   *dialogue.Session
	script    *transcript

	chatViewport viewport.Model
	metaViewport viewport.Model
	ready        bool
	width        int
	height       int
	err          error
	flash        string

	// Typing animation for the current line
	typing    bool
	typed     int
	typingGen int

	selectedOption int

	showGraphModal bool
	selectedGraph  int

	showQuitModal bool
}

type typeTickMsg struct{ gen int }

var (
	chatPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(1).
			PaddingLeft(3).
			PaddingRight(0)

	metaPanelStyle = lipgloss.NewStyle().
			PaddingTop(2).
			PaddingBottom(0).
			PaddingLeft(0).
			PaddingRight(2)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")). // pink
			Bold(true)

	speakerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212")). // purple
			Bold(true)

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")) // teal

	noteStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")). // green
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")) // red

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")) // yellow

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2).
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("255"))

	modalTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Align(lipgloss.Center)

	modalItemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("205")).
				Bold(true)

	separatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")) // dark grey
)

func NewConsoleUI(cfg *ConsoleConfig, log *slog.Logger, cast *state.Cast, graphs []*dialogue.Graph) ConsoleUI {
	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true
	metaVp := viewport.New(20, 20)

	gs := cast.NewGameState()
	script := newTranscript()
	gs.Events().Subscribe(script.onEvent)

	return ConsoleUI{
		config:         cfg,
		log:            log,
		graphs:         graphs,
		gameState:      gs,
		script:         script,
		chatViewport:   chatVp,
		metaViewport:   metaVp,
		showGraphModal: len(graphs) > 1,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	if m.showGraphModal {
		return nil
	}
	return func() tea.Msg { return startGraphMsg{index: 0} }
}

type startGraphMsg struct{ index int }

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.showQuitModal {
		return m.updateQuitModal(msg)
	}
	if m.showGraphModal {
		return m.updateGraphModal(msg)
	}

	var (
		vpCmd tea.Cmd
		mvCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.MouseMsg:
		m.chatViewport, vpCmd = m.chatViewport.Update(msg)
		m.metaViewport, mvCmd = m.metaViewport.Update(msg)
		return m, tea.Batch(vpCmd, mvCmd)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.render()
		return m, nil

	case startGraphMsg:
		cmd := m.startGraph(msg.index)
		m.render()
		return m, cmd

	case typeTickMsg:
		if !m.typing || msg.gen != m.typingGen {
			return m, nil
		}
		m.typed++
		if m.typed >= m.lineLength() {
			m.finishTyping()
			m.render()
			return m, nil
		}
		m.render()
		return m, m.typeTick()

	case tea.KeyMsg:
		m.flash = ""
		cmd := m.handleKey(msg)
		m.render()
		return m, cmd
	}

	m.chatViewport, vpCmd = m.chatViewport.Update(msg)
	m.metaViewport, mvCmd = m.metaViewport.Update(msg)
	return m, tea.Batch(vpCmd, mvCmd)
}

func (m *ConsoleUI) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.showQuitModal = true
		return nil
	case "pgup", "pgdown":
		m.chatViewport, _ = m.chatViewport.Update(msg)
		return nil
	case "c":
		if err := clipboard.WriteAll(m.script.Plain()); err != nil {
			m.flash = errorStyle.Render("Copy failed: " + err.Error())
		} else {
			m.flash = noteStyle.Render("Transcript copied to clipboard")
		}
		return nil
	case "g":
		if len(m.graphs) > 1 {
			m.endSession()
			m.showGraphModal = true
		}
		return nil
	case "r":
		if m.session != nil {
			return m.startGraph(m.selectedGraph)
		}
		return nil
	case "e":
		m.endSession()
		return nil
	}

	if m.session == nil {
		return nil
	}

	switch m.session.Status() {
	case dialogue.StatusPlaying:
		if msg.String() == "enter" || msg.String() == " " {
			m.finishTyping()
		}

	case dialogue.StatusAwaitingAdvance:
		if msg.String() == "enter" || msg.String() == " " {
			return m.step(m.session.Advance())
		}

	case dialogue.StatusAwaitingChoice:
		opts := m.session.AvailableOptions()
		switch key := msg.String(); key {
		case "up", "k":
			if m.selectedOption > 0 {
				m.selectedOption--
			}
		case "down", "j":
			if m.selectedOption < len(opts)-1 {
				m.selectedOption++
			}
		case "enter":
			return m.choose(opts, m.selectedOption)
		default:
			if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
				return m.choose(opts, int(key[0]-'1'))
			}
		}

	case dialogue.StatusTerminal:
		if msg.String() == "enter" {
			m.endSession()
		}
	}
	return nil
}

// choose selects the i-th visible option. Options are addressed by their index in the full list.
func (m *ConsoleUI) choose(opts []dialogue.AvailableOption, i int) tea.Cmd {
	if i < 0 || i >= len(opts) {
		return nil
	}
	m.script.add(entryChoice, "", opts[i].Text)
	return m.step(m.session.SelectOption(opts[i].Index))
}

// step handles the outcome of a session transition and starts typing a newly displayed line
func (m *ConsoleUI) step(err error) tea.Cmd {
	m.selectedOption = 0
	if err != nil {
		m.log.Warn("Dialogue transition failed", "error", err)
		var cycle *dialogue.GraphCycleError
		var invalid *dialogue.InvalidSelectionError
		switch {
		case errors.As(err, &cycle):
			m.err = fmt.Errorf("this conversation loops forever: %w", err)
		case errors.As(err, &invalid):
			m.flash = warningStyle.Render(invalid.Error())
		default:
			m.err = err
		}
		return nil
	}

	if m.session.Status() == dialogue.StatusPlaying {
		m.typing = true
		m.typed = 0
		m.typingGen++
		if m.config.TypeSpeed == 0 {
			m.finishTyping()
			return nil
		}
		return m.typeTick()
	}
	return nil
}

func (m *ConsoleUI) finishTyping() {
	m.typing = false
	if m.session == nil || m.session.Status() != dialogue.StatusPlaying {
		return
	}
	if err := m.session.TypingComplete(); err != nil {
		m.log.Warn("Typing complete rejected", "error", err)
	}
}

func (m *ConsoleUI) typeTick() tea.Cmd {
	gen := m.typingGen
	return tea.Tick(m.config.TypeSpeed, func(time.Time) tea.Msg {
		return typeTickMsg{gen: gen}
	})
}

func (m *ConsoleUI) lineLength() int {
	i := m.script.lastLine()
	if i < 0 {
		return 0
	}
	return len([]rune(m.script.entries[i].text))
}

func (m *ConsoleUI) startGraph(index int) tea.Cmd {
	if index < 0 || index >= len(m.graphs) {
		return nil
	}
	m.endSession()
	m.err = nil
	m.selectedGraph = index

	g := m.graphs[index]
	m.session = dialogue.NewSession(g, m.gameState, m.log).
		WithEvents(m.gameState.Events()).
		WithMaxDepth(m.config.MaxDepth)
	m.script.add(entryNote, "", "── "+g.Name+" ──")
	return m.step(m.session.StartDialogue())
}

func (m *ConsoleUI) endSession() {
	if m.session == nil {
		return
	}
	m.typing = false
	m.session.EndDialogue()
}

func (m *ConsoleUI) resize(width, height int) {
	m.width = width
	m.height = height

	chatWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - chatWidth - 6

	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = m.height - 9
	m.metaViewport.Width = metaWidth - 2
	m.metaViewport.Height = m.height - 4
	m.ready = true
}

// render rebuilds both panels for the current width
func (m *ConsoleUI) render() {
	if !m.ready {
		return
	}
	m.chatViewport.SetContent(m.writeChatContent(m.chatViewport.Width - 6))
	m.chatViewport.GotoBottom()
	m.metaViewport.SetContent(m.writeMetadata())
}

func (m *ConsoleUI) writeChatContent(width int) string {
	if width < 10 {
		width = 10
	}
	var content strings.Builder
	content.WriteString(titleStyle.Render("DIALOGUE ENGINE") + "\n\n")
	content.WriteString(separatorStyle.Render(strings.Repeat("─", width)) + "\n\n")

	last := m.script.lastLine()
	for i, e := range m.script.entries {
		text := e.text
		if i == last && m.typing {
			runes := []rune(text)
			if m.typed < len(runes) {
				text = string(runes[:m.typed])
			}
		}

		switch e.kind {
		case entryLine:
			prefix := ""
			if e.speaker != "" {
				prefix = e.speaker + ": "
			}
			wrapped := wordwrap.String(prefix+text, width)
			if prefix != "" {
				wrapped = speakerStyle.Render(e.speaker+":") + strings.TrimPrefix(wrapped, e.speaker+":")
			}
			content.WriteString(wrapped + "\n\n")
		case entryChoice:
			content.WriteString(choiceStyle.Render("You: "+wordwrap.String(text, width-5)) + "\n\n")
		case entryNote:
			content.WriteString(noteStyle.Render(wordwrap.String(text, width)) + "\n\n")
		case entryWarning:
			content.WriteString(warningStyle.Render(wordwrap.String("[!] "+text, width)) + "\n\n")
		}
	}

	if m.err != nil {
		content.WriteString(errorStyle.Render(wordwrap.String("Error: "+m.err.Error(), width)) + "\n\n")
	}
	return content.String()
}

// renderPrompt shows what the player can do next, below the transcript
func (m ConsoleUI) renderPrompt(width int) string {
	if m.session == nil {
		return promptStyle.Render("No conversation running")
	}

	switch m.session.Status() {
	case dialogue.StatusPlaying:
		return promptStyle.Render("Enter: skip")
	case dialogue.StatusAwaitingAdvance:
		return promptStyle.Render("Enter: continue")
	case dialogue.StatusAwaitingChoice:
		var b strings.Builder
		for i, opt := range m.session.AvailableOptions() {
			line := wordwrap.String(fmt.Sprintf("%d. %s", i+1, opt.Text), width)
			if i == m.selectedOption {
				b.WriteString(selectedItemStyle.Render("▶ "+line) + "\n")
			} else {
				b.WriteString(modalItemStyle.Render("  "+line) + "\n")
			}
		}
		return strings.TrimSuffix(b.String(), "\n")
	case dialogue.StatusTerminal:
		return promptStyle.Render("The conversation is over. Enter: close")
	case dialogue.StatusStalled:
		return warningStyle.Render("The conversation cannot continue. e: end, r: restart")
	default:
		return promptStyle.Render("r: play again")
	}
}

func (m *ConsoleUI) writeMetadata() string {
	var content strings.Builder
	content.WriteString(titleStyle.Render("GAME STATE") + "\n\n")

	if m.session != nil {
		snap := m.session.Snapshot()
		content.WriteString("Graph:\n" + snap.Graph + "\n\n")
		content.WriteString("Status:\n" + string(snap.Status) + "\n\n")
		if snap.CurrentNodeID != "" {
			content.WriteString("Node:\n" + snap.CurrentNodeID + "\n\n")
		}
	}

	bachelors := sortedKeys(m.gameState.Bachelors)
	if len(bachelors) > 0 {
		content.WriteString("Bachelors:\n")
		for _, id := range bachelors {
			name := m.script.speakerName(m.gameState.Bachelors[id].Name)
			if score, ok := m.gameState.GetLoveScore(id); ok {
				content.WriteString(fmt.Sprintf("• %s ♥ %d\n", name, score))
			} else {
				content.WriteString(fmt.Sprintf("• %s\n", name))
			}
			likes, dislikes := m.gameState.DiscoveredPreferences(id)
			for _, l := range likes {
				content.WriteString("   + " + l + "\n")
			}
			for _, d := range dislikes {
				content.WriteString("   - " + d + "\n")
			}
		}
		content.WriteString("\n")
	}

	if vars := sortedKeys(m.gameState.Vars); len(vars) > 0 {
		content.WriteString("Variables:\n")
		for _, k := range vars {
			content.WriteString(fmt.Sprintf("• %s: %s\n", k, m.gameState.GetVariable(k)))
		}
		content.WriteString("\n")
	}
	if flags := sortedKeys(m.gameState.Flags); len(flags) > 0 {
		content.WriteString("Flags:\n")
		for _, k := range flags {
			content.WriteString(fmt.Sprintf("• %s: %t\n", k, m.gameState.GetBoolean(k)))
		}
		content.WriteString("\n")
	}

	content.WriteString("Keys:\n")
	content.WriteString("• Enter: continue\n")
	content.WriteString("• 1-9, ↑/↓: choose\n")
	content.WriteString("• e: end  r: restart\n")
	if len(m.graphs) > 1 {
		content.WriteString("• g: pick graph\n")
	}
	content.WriteString("• c: copy transcript\n")
	content.WriteString("• Esc: quit\n")
	return content.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m ConsoleUI) updateGraphModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.showQuitModal = true
		case "up", "k":
			if m.selectedGraph > 0 {
				m.selectedGraph--
			}
		case "down", "j":
			if m.selectedGraph < len(m.graphs)-1 {
				m.selectedGraph++
			}
		case "enter":
			m.showGraphModal = false
			cmd := m.startGraph(m.selectedGraph)
			m.render()
			return m, cmd
		}
	}
	return m, nil
}

func (m ConsoleUI) updateQuitModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.render()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "enter", "y", "Y":
			return m, tea.Quit
		case "n", "N":
			m.showQuitModal = false
		}
	}
	return m, nil
}

func (m ConsoleUI) renderQuitModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Quit?"))
	content.WriteString("\n\n")
	content.WriteString("Are you sure you want to leave your date?")
	content.WriteString("\n\n")
	content.WriteString(promptStyle.Render("Press Y to quit, N to continue, or Ctrl+C to force quit"))

	modal := modalStyle.Width(50).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) renderGraphModal() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content strings.Builder
	content.WriteString(modalTitleStyle.Render("Select a Conversation"))
	content.WriteString("\n\n")
	for i, g := range m.graphs {
		label := fmt.Sprintf("%s (%d nodes)", g.Name, g.Len())
		if i == m.selectedGraph {
			content.WriteString(selectedItemStyle.Render("▶ " + label))
		} else {
			content.WriteString(modalItemStyle.Render("  " + label))
		}
		content.WriteString("\n")
	}
	content.WriteString("\n")
	content.WriteString(promptStyle.Render("Use ↑/↓ to navigate, Enter to select, Esc to exit"))

	modal := modalStyle.Width(60).Render(content.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) View() string {
	if m.showQuitModal {
		return m.renderQuitModal()
	}
	if m.showGraphModal {
		return m.renderGraphModal()
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	chatWidth := int(float64(m.width)*0.7) - 4
	metaWidth := m.width - chatWidth - 6

	footer := m.renderPrompt(chatWidth - 8)
	if m.flash != "" {
		footer = m.flash + "\n" + footer
	}

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 3).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			m.chatViewport.View(),
			"",
			separatorStyle.Render(strings.Repeat("─", chatWidth-4)),
			footer,
		),
	)

	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 2).Render(
		m.metaViewport.View(),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}
