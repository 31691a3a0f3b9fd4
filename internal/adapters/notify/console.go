package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alejandrodnm/betgpt/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier y los reportes de la CLI.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyTick imprime el resultado de un tick del agente.
// Los ticks sin movimientos solo imprimen la línea de balance.
func (c *Console) NotifyTick(_ context.Context, r domain.TickReport) error {
	now := r.At.Format("15:04:05")
	fmt.Fprintf(c.out, "[%s] tick #%d bal $%.2f roi %+.1f%% open:%d +%d/-%d",
		now, r.Tick, r.Balance, r.ROI, r.OpenCount, len(r.Opened), len(r.Resolved))
	if r.Refused > 0 {
		fmt.Fprintf(c.out, " refused:%d", r.Refused)
	}
	if r.Skipped > 0 {
		fmt.Fprintf(c.out, " skipped:%d", r.Skipped)
	}
	fmt.Fprintln(c.out)

	if !c.table || len(r.Opened)+len(r.Resolved) == 0 {
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Event", "Market", "Action", "Entry", "AI", "Conf", "Stake", "Outcome", "Profit")
	for _, t := range r.Opened {
		table.Append(tradeRow("OPEN", t)...)
	}
	for _, t := range r.Resolved {
		table.Append(tradeRow("RESOLVE", t)...)
	}
	table.Render()
	return nil
}

// PrintMarkets imprime los mercados puntuados, ordenados como llegan.
func (c *Console) PrintMarkets(markets []domain.ScoredMarket) {
	if len(markets) == 0 {
		fmt.Fprintln(c.out, "  no markets")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Platform", "Market", "Mkt%", "AI%", "Score", "Label", "Action", "Conf", "ROI%")
	for i, m := range markets {
		name := compactName(m.Title, 45)
		if m.Stale {
			name += " (stale)"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			string(m.Platform),
			name,
			fmt.Sprintf("%.1f", m.MarketProb*100),
			fmt.Sprintf("%.1f", m.AIProbability*100),
			fmt.Sprintf("%.3f", m.Score),
			string(m.Label),
			string(m.Recommendation.Action),
			fmt.Sprintf("%.0f", m.Recommendation.Confidence),
			fmt.Sprintf("%.1f", m.Recommendation.ExpectedROI),
		)
	}
	table.Render()
}

// PrintArbitrage imprime las oportunidades de una pasada y su resumen.
func (c *Console) PrintArbitrage(r domain.ArbitrageReport) {
	s := r.Summary
	fmt.Fprintf(c.out, "\n  ARBITRAGE: %d opps, avg spread %.1f%%, max %.1f%%, profit %.1f, platforms %d\n",
		s.TotalOpportunities, s.AvgSpread, s.MaxSpread, s.TotalPotentialProfit, s.PlatformsCompared)
	if len(r.Opportunities) == 0 {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Question", "Sim", "Cheap", "Price", "Expensive", "Price", "Spread", "Profit")
	for _, o := range r.Opportunities {
		table.Append(
			compactName(o.Question, 40),
			fmt.Sprintf("%.2f", o.SimilarityScore),
			string(o.CheaperPlatform),
			fmt.Sprintf("%.1f", o.CheaperPrice),
			string(o.ExpensivePlatform),
			fmt.Sprintf("%.1f", o.ExpensivePrice),
			fmt.Sprintf("%.1f", o.SpreadPercent),
			fmt.Sprintf("%.1f", o.PotentialProfit),
		)
	}
	table.Render()
}

// PrintBacktest imprime el reporte completo de una corrida.
func (c *Console) PrintBacktest(r domain.BacktestResult) {
	s := r.Summary
	fmt.Fprintf(c.out, "\n")
	fmt.Fprintf(c.out, "========================================================\n")
	fmt.Fprintf(c.out, "  BACKTEST REPORT (%d days, seed %d)\n", s.DaysTested, r.Seed)
	fmt.Fprintf(c.out, "========================================================\n\n")

	if len(r.WeeklyPerformance) > 0 {
		tbl := tablewriter.NewWriter(c.out)
		tbl.Header("Week", "Trades", "Win%", "Profit")
		for _, w := range r.WeeklyPerformance {
			tbl.Append(
				w.Week,
				fmt.Sprintf("%d", w.Trades),
				fmt.Sprintf("%.1f", w.WinRate),
				fmt.Sprintf("$%.2f", w.Profit),
			)
		}
		tbl.Render()
	}

	fmt.Fprintf(c.out, "\n  --- SUMMARY ---\n")
	fmt.Fprintf(c.out, "  Trades:             %d (%d W / %d L)\n", s.TotalTrades, s.Wins, s.Losses)
	fmt.Fprintf(c.out, "  Win rate:           %.1f%%\n", s.WinRate)
	fmt.Fprintf(c.out, "  Total profit:       $%.2f\n", s.TotalProfit)
	fmt.Fprintf(c.out, "  ROI:                %.1f%%\n", s.ROI)
	fmt.Fprintf(c.out, "  Capital:            $%.2f → $%.2f\n", s.InitialCapital, s.FinalCapital)
	fmt.Fprintf(c.out, "  Avg profit/trade:   $%.2f\n", s.AvgProfitPerTrade)
	if s.BestTrade != nil {
		fmt.Fprintf(c.out, "  Best trade:         $%.2f %s\n", s.BestTrade.Profit, compactName(s.BestTrade.MarketTitle, 40))
	}
	if s.WorstTrade != nil {
		fmt.Fprintf(c.out, "  Worst trade:        $%.2f %s\n", s.WorstTrade.Profit, compactName(s.WorstTrade.MarketTitle, 40))
	}
	if r.Skipped > 0 {
		fmt.Fprintf(c.out, "  Skipped snapshots:  %d\n", r.Skipped)
	}
}

func tradeRow(event string, t domain.Trade) []any {
	profit := "-"
	if t.Resolved() {
		profit = fmt.Sprintf("$%+.2f", t.Profit)
	}
	return []any{
		event,
		compactName(t.MarketTitle, 35),
		string(t.Action),
		fmt.Sprintf("%.1f", t.EntryPrice),
		fmt.Sprintf("%.1f", t.AIEstimate),
		fmt.Sprintf("%.0f", t.Confidence),
		fmt.Sprintf("$%.0f", t.Stake),
		string(t.Outcome),
		profit,
	}
}

func compactName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if idx := strings.LastIndex(cut, " "); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
