package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"tickerpulse/internal/domain"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshEvery = 60 * time.Second

// SentimentQuerier supplies the sentiment column data.
type SentimentQuerier interface {
	GetAggregatedSentiment(ctx context.Context, symbol string, hours int, sources []string) (*domain.AggregatedSentiment, error)
}

// Scorer supplies the confluence column data.
type Scorer interface {
	ScorePlain(ctx context.Context, symbol string, hours int) (*domain.ConfluenceScore, error)
}

// Services bundles everything the dashboard reads from. Username labels the
// session in the header.
type Services struct {
	Sentiment SentimentQuerier
	Scores    Scorer
	Watchlist []string
	Hours     int
	Username  string
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	bullStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	bearStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	signalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	tableBorder = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240"))
)

// symbolRow is one refreshed watchlist entry. Nil fields mean that side had
// no data this cycle.
type symbolRow struct {
	symbol     string
	sentiment  *domain.AggregatedSentiment
	confluence *domain.ConfluenceScore
}

type rowsMsg struct {
	rows      []symbolRow
	fetchedAt time.Time
}

type refreshErrMsg struct{ err error }

type tickMsg time.Time

// Model is the SSH watchlist dashboard.
type Model struct {
	services  Services
	table     table.Model
	rows      []symbolRow
	lastFetch time.Time
	loading   bool
	err       error
	width     int
	height    int
}

func NewModel(services Services) *Model {
	if services.Hours <= 0 {
		services.Hours = 24
	}

	columns := []table.Column{
		{Title: "Symbol", Width: 8},
		{Title: "Sentiment", Width: 12},
		{Title: "Level", Width: 14},
		{Title: "Confluence", Width: 12},
		{Title: "Bias", Width: 8},
		{Title: "Signal", Width: 8},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(len(services.Watchlist)+1),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).BorderBottom(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	return &Model{
		services: services,
		table:    t,
		loading:  true,
	}
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refreshCmd(), tickCmd())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, m.refreshCmd()
		}

	case rowsMsg:
		m.loading = false
		m.err = nil
		m.rows = msg.rows
		m.lastFetch = msg.fetchedAt
		m.table.SetRows(buildTableRows(msg.rows))
		return m, nil

	case refreshErrMsg:
		m.loading = false
		m.err = msg.err
		return m, nil

	case tickMsg:
		m.loading = true
		return m, tea.Batch(m.refreshCmd(), tickCmd())
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	var sb strings.Builder

	title := "tickerpulse"
	if m.services.Username != "" {
		title += " · " + m.services.Username
	}
	sb.WriteString(headerStyle.Render(title))
	sb.WriteString("\n\n")
	sb.WriteString(tableBorder.Render(m.table.View()))
	sb.WriteString("\n")

	switch {
	case m.err != nil:
		sb.WriteString(errorStyle.Render("refresh failed: " + m.err.Error()))
	case m.loading:
		sb.WriteString(statusStyle.Render("refreshing..."))
	case !m.lastFetch.IsZero():
		sb.WriteString(statusStyle.Render("updated " + m.lastFetch.UTC().Format("15:04:05") + " UTC"))
	}
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render("r refresh · q quit"))
	return sb.String()
}

func (m *Model) refreshCmd() tea.Cmd {
	services := m.services
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()

		rows := make([]symbolRow, 0, len(services.Watchlist))
		for _, symbol := range services.Watchlist {
			row := symbolRow{symbol: symbol}
			if services.Sentiment != nil {
				if agg, err := services.Sentiment.GetAggregatedSentiment(ctx, symbol, services.Hours, nil); err == nil {
					row.sentiment = agg
				}
			}
			if services.Scores != nil {
				if score, err := services.Scores.ScorePlain(ctx, symbol, services.Hours); err == nil {
					row.confluence = score
				}
			}
			rows = append(rows, row)
		}

		// Strongest setups first
		sort.SliceStable(rows, func(i, j int) bool {
			return rowStrength(rows[i]) > rowStrength(rows[j])
		})
		return rowsMsg{rows: rows, fetchedAt: time.Now()}
	}
}

func rowStrength(row symbolRow) float64 {
	if row.confluence == nil {
		return -1
	}
	return row.confluence.ConfluenceScore
}

func buildTableRows(rows []symbolRow) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for _, row := range rows {
		sentimentCol, levelCol := "-", "-"
		if agg := row.sentiment; agg != nil {
			sentimentCol = renderSigned(agg.UnifiedSentiment)
			levelCol = string(agg.SentimentLevel)
		}
		confluenceCol, biasCol, signalCol := "-", "-", ""
		if score := row.confluence; score != nil {
			confluenceCol = fmt.Sprintf("%.2f", score.ConfluenceScore)
			biasCol = renderSigned(score.DirectionalBias)
			if score.MeetsHighThreshold {
				signalCol = signalStyle.Render("ALERT")
			} else if score.MeetsMinimumThreshold {
				signalCol = "watch"
			}
		}
		out = append(out, table.Row{row.symbol, sentimentCol, levelCol, confluenceCol, biasCol, signalCol})
	}
	return out
}

func renderSigned(v float64) string {
	s := fmt.Sprintf("%+.2f", v)
	switch {
	case v > 0.05:
		return bullStyle.Render(s)
	case v < -0.05:
		return bearStyle.Render(s)
	}
	return s
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
