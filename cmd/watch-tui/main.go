// watch-tui 监控面板：轮询机器人状态 API 并渲染监控列表、预算与结算记录
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-resty/resty/v2"
)

const (
	refreshInterval = 2 * time.Second
	watchlistDepth  = 15 // 监控列表最多显示的行数
	outcomesDepth   = 8  // 结算记录最多显示的行数
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	wonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")) // 绿色

	lostStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")) // 红色

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	priorityStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("3")) // 黄色

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

type statusData struct {
	UptimeSec  int `json:"uptimeSec"`
	Watching   int `json:"watching"`
	Reconciled int `json:"reconciled"`
}

type watchEntry struct {
	ID             string `json:"id"`
	Question       string `json:"question"`
	ActivationTime string `json:"activationTime"`
	Priority       bool   `json:"priority"`
}

type watchlistData struct {
	Count int          `json:"count"`
	Items []watchEntry `json:"items"`
}

type budgetData struct {
	Ready           bool   `json:"ready"`
	TotalBudget     string `json:"totalBudget"`
	CashAvailable   string `json:"cashAvailable"`
	EffectiveBudget string `json:"effectiveBudget"`
}

type outcomeEntry struct {
	Label      string `json:"label"`
	Won        bool   `json:"won"`
	PnL        string `json:"pnl"`
	ResolvedAt string `json:"resolvedAt"`
}

type outcomesData struct {
	TotalPnL string         `json:"totalPnl"`
	Outcomes []outcomeEntry `json:"outcomes"`
}

// snapshotMsg 一次完整的状态拉取结果
type snapshotMsg struct {
	status    statusData
	watchlist watchlistData
	budget    budgetData
	outcomes  outcomesData
}

type errMsg struct{ err error }

type tickMsg time.Time

type model struct {
	client *resty.Client

	status    statusData
	watchlist watchlistData
	budget    budgetData
	outcomes  outcomesData

	connected bool
	err       error
	updatedAt time.Time
}

func initialModel(baseURL string) model {
	return model{
		client: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetTimeout(5 * time.Second),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(fetchCmd(m.client), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(fetchCmd(m.client), tickCmd())
	case snapshotMsg:
		m.status = msg.status
		m.watchlist = msg.watchlist
		m.budget = msg.budget
		m.outcomes = msg.outcomes
		m.connected = true
		m.err = nil
		m.updatedAt = time.Now()
	case errMsg:
		m.connected = false
		m.err = msg.err
	}
	return m, nil
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(headerStyle.Render("🎯 snipebot 监控面板"))
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(lostStyle.Render(fmt.Sprintf("连接失败: %v", m.err)))
		s.WriteString("\n")
		s.WriteString(dimStyle.Render("确认机器人已启动且状态 API 可达（按 q 退出）"))
		s.WriteString("\n")
		return s.String()
	}
	if !m.connected {
		s.WriteString(dimStyle.Render("连接中..."))
		s.WriteString("\n")
		return s.String()
	}

	s.WriteString(borderStyle.Render(m.renderSummary()))
	s.WriteString("\n")
	s.WriteString(borderStyle.Render(m.renderWatchlist()))
	s.WriteString("\n")
	s.WriteString(borderStyle.Render(m.renderOutcomes()))
	s.WriteString("\n")
	s.WriteString(dimStyle.Render(fmt.Sprintf("更新于 %s · q 退出", m.updatedAt.Format("15:04:05"))))
	s.WriteString("\n")
	return s.String()
}

func (m model) renderSummary() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("概览"))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("运行时长 %s · 监控 %d · 已结算 %d\n",
		(time.Duration(m.status.UptimeSec) * time.Second).String(),
		m.status.Watching, m.status.Reconciled))

	if m.budget.Ready {
		s.WriteString(fmt.Sprintf("预算: 总额 %s · 现金 %s · 可用 %s\n",
			m.budget.TotalBudget, m.budget.CashAvailable, m.budget.EffectiveBudget))
	} else {
		s.WriteString(dimStyle.Render("预算: 等待首轮计算\n"))
	}

	pnl := m.outcomes.TotalPnL
	style := wonStyle
	if strings.HasPrefix(pnl, "-") {
		style = lostStyle
	}
	s.WriteString("累计盈亏: ")
	s.WriteString(style.Render(pnl + " USDC"))
	return s.String()
}

func (m model) renderWatchlist() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render(fmt.Sprintf("监控列表 (%d)", m.watchlist.Count)))
	s.WriteString("\n")
	if len(m.watchlist.Items) == 0 {
		s.WriteString(dimStyle.Render("  空"))
		return s.String()
	}
	for i, it := range m.watchlist.Items {
		if i >= watchlistDepth {
			s.WriteString(dimStyle.Render(fmt.Sprintf("  … 还有 %d 条", len(m.watchlist.Items)-watchlistDepth)))
			break
		}
		marker := "  "
		line := fmt.Sprintf("%s %s", shortTime(it.ActivationTime), truncate(it.Question, 48))
		if it.Priority {
			marker = priorityStyle.Render("⭐")
			line = priorityStyle.Render(line)
		}
		s.WriteString(marker)
		s.WriteString(line)
		s.WriteString("\n")
	}
	return strings.TrimRight(s.String(), "\n")
}

func (m model) renderOutcomes() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("结算记录"))
	s.WriteString("\n")
	if len(m.outcomes.Outcomes) == 0 {
		s.WriteString(dimStyle.Render("  暂无"))
		return s.String()
	}
	for i, o := range m.outcomes.Outcomes {
		if i >= outcomesDepth {
			break
		}
		style := wonStyle
		tag := "✅"
		if !o.Won {
			style = lostStyle
			tag = "❌"
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			tag, style.Render(o.PnL), truncate(o.Label, 48)))
	}
	return strings.TrimRight(s.String(), "\n")
}

func shortTime(iso string) string {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return "--:--"
	}
	return t.Local().Format("01-02 15:04")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// Commands

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchCmd(client *resty.Client) tea.Cmd {
	return func() tea.Msg {
		var snap snapshotMsg
		fetch := func(path string, out any) error {
			resp, err := client.R().SetResult(out).Get(path)
			if err != nil {
				return err
			}
			if resp.IsError() {
				return fmt.Errorf("%s 返回 %d", path, resp.StatusCode())
			}
			return nil
		}
		if err := fetch("/api/status", &snap.status); err != nil {
			return errMsg{err}
		}
		if err := fetch("/api/watchlist", &snap.watchlist); err != nil {
			return errMsg{err}
		}
		if err := fetch("/api/budget", &snap.budget); err != nil {
			return errMsg{err}
		}
		if err := fetch("/api/outcomes", &snap.outcomes); err != nil {
			return errMsg{err}
		}
		return snap
	}
}

func main() {
	baseURL := flag.String("api", "http://127.0.0.1:8712", "状态 API 地址")
	flag.Parse()

	p := tea.NewProgram(initialModel(*baseURL), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "启动面板失败: %v\n", err)
		os.Exit(1)
	}
}
